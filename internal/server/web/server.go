// Package web serves the HTML account pages and the small JSON API over
// fiber.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/logging"
	"github.com/dmitrijs2005/useraccounts/internal/server/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const shutdownTimeout = 5 * time.Second

type HTTPServer struct {
	address string
	app     *fiber.App
	logger  logging.Logger
	views   *views
}

// NewHTTPServer builds the fiber app with every route registered. Session
// cookies get the Secure flag when secureCookies is set.
func NewHTTPServer(address string, l logging.Logger, users UserService, m *metrics.Metrics, secureCookies bool) (*HTTPServer, error) {
	v, err := newViews()
	if err != nil {
		return nil, err
	}

	s := &HTTPServer{
		address: address,
		logger:  l.With("module", "http_server"),
		views:   v,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "useraccounts",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	uc := &userController{
		users:         users,
		views:         v,
		metrics:       m,
		secureCookies: secureCookies,
	}

	s.app.Use(requestID())
	s.app.Use(accessLog(s.logger))
	s.app.Use(observe(m))
	s.app.Use(recover.New())

	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/user/login")
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	u := s.app.Group("/user")
	u.Get("/signup", uc.signupForm)
	u.Post("/signup", uc.signup)
	u.Get("/login", uc.loginForm)
	u.Post("/login", uc.login)
	u.Get("/forgot_password", uc.forgotPassword)
	u.Post("/reset_password", uc.resetPassword)
	u.Get("/new_password", uc.newPasswordForm)
	u.Post("/new_password", uc.newPassword)
	u.Get("/dashboard", uc.requireSession(false), uc.dashboard)
	u.Post("/logout", uc.requireSession(false), uc.logout)

	api := s.app.Group("/api")
	api.Get("/me", uc.requireSession(true), uc.me)

	return s, nil
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := s.app.Listen(s.address); err != nil {
		return err
	}

	return nil
}

// errorHandler renders unhandled errors as an HTML error page.
func (s *HTTPServer) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	if code >= fiber.StatusInternalServerError {
		loggerFrom(c, s.logger).Error(c.UserContext(), "request failed", "error", err)
	}

	return s.views.render(c, code, "error", pageData{
		Title:   http.StatusText(code),
		Message: http.StatusText(code),
	})
}
