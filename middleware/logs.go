package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"SaniTrack/Models"
	"SaniTrack/logger"
)

// RequestLogger records one structured line per request: method, path,
// status, latency, client IP and the authenticated username when present.
func RequestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if ferr, ok := err.(*fiber.Error); ok {
			status = ferr.Code
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if user, ok := c.Locals("user").(Models.User); ok {
			fields = append(fields, zap.String("username", user.Username))
		}
		logger.System.Info("request", fields...)
		return err
	}
}
