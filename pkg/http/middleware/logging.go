package middleware

import (
	"time"

	"CrashCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs HTTP requests.
func RequestLogging(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			err := next(c)

			if log != nil {
				log.Debug("http request",
					logger.String("method", req.Method),
					logger.String("uri", req.RequestURI),
					logger.Int("status", res.Status),
					logger.Duration("latency_ms", time.Since(start)),
				)
			}
			return err
		}
	}
}
