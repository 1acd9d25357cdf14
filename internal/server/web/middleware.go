package web

import (
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/logging"
	"github.com/dmitrijs2005/useraccounts/internal/server/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Locals keys.
const (
	requestIDKey = "request_id"
	loggerKey    = "logger"
	claimsKey    = "claims"
)

// requestID reuses a client supplied X-Request-ID or generates one, and
// echoes it in the response.
func requestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(common.RequestIDHeaderName)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(common.RequestIDHeaderName, id)
		c.Locals(requestIDKey, id)
		return c.Next()
	}
}

// accessLog logs one line per request and makes a request scoped logger
// available to handlers.
func accessLog(l logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		rl := l
		if id, ok := c.Locals(requestIDKey).(string); ok {
			rl = l.With("request_id", id)
		}
		c.Locals(loggerKey, rl)

		err := resolveError(c, c.Next())

		rl.Info(c.UserContext(), "request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration", time.Since(start),
		)
		return err
	}
}

// observe records request count and latency per route.
func observe(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := resolveError(c, c.Next())

		m.ObserveRequest(c.Method(), c.Route().Path, c.Response().StatusCode(), time.Since(start))
		return err
	}
}

// resolveError runs the app error handler right away, so the status code is
// final when the calling middleware inspects the response.
func resolveError(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}
	return c.App().ErrorHandler(c, err)
}

func loggerFrom(c *fiber.Ctx, fallback logging.Logger) logging.Logger {
	if l, ok := c.Locals(loggerKey).(logging.Logger); ok {
		return l
	}
	return fallback
}
