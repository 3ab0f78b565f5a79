package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/Im-manisha14/Fullstackproject1-Queue-sub000/internal/platform/auth"
)

// Logger writes one line per request. Poll revalidations that end in 304
// are logged at debug level; every queue screen produces one every few
// seconds.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			// Auth middleware replaces the request, so read it afterwards.
			req := c.Request()
			status := c.Response().Status
			var evt *zerolog.Event
			switch {
			case err != nil:
				evt = logger.Error().Err(err)
			case status == http.StatusNotModified:
				evt = logger.Debug()
			default:
				evt = logger.Info()
			}

			rid, _ := c.Get(requestIDKey).(string)
			evt.
				Str("request_id", rid).
				Str("user_id", auth.UserIDFromContext(req.Context())).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("route", c.Path()).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
