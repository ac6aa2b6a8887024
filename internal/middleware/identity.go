package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/property-booking/internal/model"
)

// ActorFrom returns the authenticated caller stored by JWTAuth.
func ActorFrom(c echo.Context) (model.Actor, bool) {
	uid, ok := c.Get(CtxUserID).(uint64)
	if !ok || uid == 0 {
		return model.Actor{}, false
	}
	role, _ := c.Get(CtxRole).(string)
	return model.Actor{UserID: uid, Role: role}, true
}

// userKey identifies the caller in rate-limit keys; anonymous requests
// share "anon".
func userKey(c echo.Context) string {
	if a, ok := ActorFrom(c); ok {
		return strconv.FormatUint(a.UserID, 10)
	}
	return "anon"
}

func subject(v interface{}) (uint64, bool) {
	switch t := v.(type) {
	case float64:
		if t <= 0 || t != float64(uint64(t)) {
			return 0, false
		}
		return uint64(t), true
	case string:
		n, err := strconv.ParseUint(t, 10, 64)
		return n, err == nil && n > 0
	}
	return 0, false
}
