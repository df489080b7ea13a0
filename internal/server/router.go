package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	ListenPort int
}

// RegisterFunc attaches routes to the application before the fallback handler.
type RegisterFunc func(app *fiber.App)

const contextKeyRequestID = "_resourcehub_request_id"

// NewApp builds a Fiber application with request-id middleware, registers the
// given routes and finishes with a JSON 404 for everything else.
func NewApp(opts AppOptions, register ...RegisterFunc) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts))

	for _, fn := range register {
		if fn != nil {
			fn(app)
		}
	}

	app.Use(func(c fiber.Ctx) error {
		return renderNotFound(c, opts.Logger)
	})
	return app, nil
}

// requestContextMiddleware 负责生成请求 ID，并在请求结束后记录访问日志。
func requestContextMiddleware(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		started := time.Now()
		err := c.Next()
		opts.Logger.WithFields(logrus.Fields{
			"action":     "http_request",
			"request_id": reqID,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"elapsed_ms": time.Since(started).Milliseconds(),
			"port":       opts.ListenPort,
		}).Debug("request handled")
		return err
	}
}

func renderNotFound(c fiber.Ctx, logger *logrus.Logger) error {
	path := string(c.Request().URI().Path())
	if !IsDiagnosticsPath(path) {
		logger.WithFields(logrus.Fields{
			"action": "route_lookup",
			"path":   path,
		}).Warn("path outside diagnostics prefix")
	}
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "not_found",
		"path":  path,
	})
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// IsDiagnosticsPath reports whether path lives under the /-/ prefix.
func IsDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
