// Command devtoken prints an access token for local testing.  Identity is
// owned by an external provider in production; this only signs tokens
// with the shared JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/property-booking/internal/config"
	"github.com/iliyamo/property-booking/internal/model"
	"github.com/iliyamo/property-booking/internal/utils"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		logrus.WithError(err).Fatal("load .env")
	}
	user := flag.Uint64("user", 1, "user id placed in the sub claim")
	role := flag.String("role", model.RoleGuest, "guest or host")
	ttl := flag.Int("ttl", 60, "lifetime in minutes")
	flag.Parse()

	if *role != model.RoleGuest && *role != model.RoleHost {
		logrus.Fatalf("unknown role %q", *role)
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logrus.Fatal("JWT_SECRET is not set")
	}
	tok, err := utils.NewAccessToken(secret, *user, *role, *ttl)
	if err != nil {
		logrus.WithError(err).Fatal("sign token")
	}
	fmt.Println(tok.Token)
}
