// Package router registers the HTTP routes on an echo instance: public
// property reads, guest booking endpoints and host endpoints.
package router

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/property-booking/internal/config"
	"github.com/iliyamo/property-booking/internal/handler"
	"github.com/iliyamo/property-booking/internal/middleware"
)

// Deps are the collaborators the routes need.  Redis may be nil; rate
// limiting and caching are then skipped.
type Deps struct {
	API       handler.BookingAPI
	JWTSecret string
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Logger    logrus.FieldLogger
}

// New builds the echo instance with request logging, panic recovery,
// validation and every route registered.
func New(d Deps) *echo.Echo {
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(requestLogger(d.Logger))

	RegisterRoutes(e)
	RegisterPublic(e, handler.NewPropertyHandler(d.API, d.Logger), d)
	bookings := handler.NewBookingHandler(d.API, d.Logger).
		WithCache(middleware.NewPropertyCache(d.Cache, d.Redis, d.Logger))
	RegisterGuest(e, bookings, d)
	RegisterHost(e, bookings, d)
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

func requestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			entry := log.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": float64(v.Latency) / float64(time.Millisecond),
				"remote_ip":  v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	})
}
