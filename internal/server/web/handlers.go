package web

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/logging"
	"github.com/dmitrijs2005/useraccounts/internal/server/auth"
	"github.com/dmitrijs2005/useraccounts/internal/server/metrics"
	"github.com/dmitrijs2005/useraccounts/internal/server/models"
	"github.com/dmitrijs2005/useraccounts/internal/server/services"
	"github.com/gofiber/fiber/v2"
)

// Messages shown to the user.
const (
	msgMissingFields   = "Required fields are missing."
	msgRegistered      = "User registered successfully."
	msgAlreadyExists   = "An account with that email address already exists."
	msgInvalidLogin    = "Invalid login credentials."
	msgResetSent       = "A password reset link has been sent to your email."
	msgNoSuchUser      = "No user found with that email address."
	msgBadResetLink    = "This password reset link is invalid or has expired."
	msgPasswordUpdated = "Your password has been updated. You can now log in."
	msgPasswordTooLong = "Password must be at most 72 bytes long."
)

// UserService is what the controllers need from services.UserService.
type UserService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.Session, error)
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
	Logout(ctx context.Context, claims *auth.Claims) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ValidateResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, password string) error
}

var _ UserService = (*services.UserService)(nil)

type userController struct {
	users         UserService
	views         *views
	metrics       *metrics.Metrics
	secureCookies bool
}

func (uc *userController) signupForm(c *fiber.Ctx) error {
	return uc.views.render(c, fiber.StatusOK, "signup", pageData{Title: "Sign up"})
}

func (uc *userController) signup(c *fiber.Ctx) error {
	email := c.FormValue("email")
	password := c.FormValue("password")

	page := pageData{Title: "Sign up", Email: email}

	u, err := uc.users.Register(c.UserContext(), email, password)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorValidation):
			page.Error = validationMessage(err)
			return uc.views.render(c, fiber.StatusBadRequest, "signup", page)
		case errors.Is(err, common.ErrorAlreadyExists):
			page.Error = msgAlreadyExists
			return uc.views.render(c, fiber.StatusConflict, "signup", page)
		}
		return err
	}

	uc.metrics.Event(metrics.EventSignup)
	loggerFrom(c, logging.Nop{}).Info(c.UserContext(), "user registered", "user_id", u.ID())

	return uc.views.render(c, fiber.StatusCreated, "message", pageData{
		Title:     "Sign up",
		Message:   msgRegistered,
		LoginLink: true,
	})
}

func (uc *userController) loginForm(c *fiber.Ctx) error {
	return uc.views.render(c, fiber.StatusOK, "login", pageData{Title: "Log in"})
}

func (uc *userController) login(c *fiber.Ctx) error {
	email := c.FormValue("email")

	s, err := uc.users.Login(c.UserContext(), email, c.FormValue("password"))
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			uc.metrics.Event(metrics.EventLoginFailure)
			return uc.views.render(c, fiber.StatusUnauthorized, "login", pageData{
				Title: "Log in",
				Email: email,
				Error: msgInvalidLogin,
			})
		}
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     common.SessionCookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HTTPOnly: true,
		Secure:   uc.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	uc.metrics.Event(metrics.EventLoginSuccess)
	loggerFrom(c, logging.Nop{}).Info(c.UserContext(), "user logged in", "user_id", s.User.ID())

	return uc.views.render(c, fiber.StatusOK, "dashboard", pageData{Title: "Dashboard", User: s.User.Public()})
}

func (uc *userController) forgotPassword(c *fiber.Ctx) error {
	return uc.views.render(c, fiber.StatusOK, "forgot_password", pageData{Title: "Forgot Password"})
}

func (uc *userController) resetPassword(c *fiber.Ctx) error {
	email := c.FormValue("email")
	page := pageData{Title: "Forgot Password", Email: email}

	err := uc.users.RequestPasswordReset(c.UserContext(), email)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorValidation):
			page.Error = msgMissingFields
			return uc.views.render(c, fiber.StatusBadRequest, "forgot_password", page)
		case errors.Is(err, common.ErrorNotFound):
			page.Error = msgNoSuchUser
			return uc.views.render(c, fiber.StatusNotFound, "forgot_password", page)
		}
		return err
	}

	uc.metrics.Event(metrics.EventResetRequested)

	return uc.views.render(c, fiber.StatusOK, "message", pageData{Title: "Forgot Password", Message: msgResetSent})
}

func (uc *userController) newPasswordForm(c *fiber.Ctx) error {
	token := c.Query("token")

	if err := uc.users.ValidateResetToken(c.UserContext(), token); err != nil {
		if isTokenError(err) {
			return uc.views.render(c, fiber.StatusBadRequest, "message", pageData{Title: "New Password", Error: msgBadResetLink})
		}
		return err
	}

	return uc.views.render(c, fiber.StatusOK, "new_password", pageData{Title: "New Password", Token: token})
}

func (uc *userController) newPassword(c *fiber.Ctx) error {
	token := c.FormValue("token")

	err := uc.users.ResetPassword(c.UserContext(), token, c.FormValue("password"))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorValidation):
			return uc.views.render(c, fiber.StatusBadRequest, "new_password", pageData{
				Title: "New Password",
				Token: token,
				Error: validationMessage(err),
			})
		case isTokenError(err):
			return uc.views.render(c, fiber.StatusBadRequest, "message", pageData{Title: "New Password", Error: msgBadResetLink})
		}
		return err
	}

	uc.metrics.Event(metrics.EventResetCompleted)

	return uc.views.render(c, fiber.StatusOK, "message", pageData{
		Title:     "New Password",
		Message:   msgPasswordUpdated,
		LoginLink: true,
	})
}

func (uc *userController) dashboard(c *fiber.Ctx) error {
	u, err := uc.currentUser(c)
	if err != nil {
		return err
	}
	return uc.views.render(c, fiber.StatusOK, "dashboard", pageData{Title: "Dashboard", User: u.Public()})
}

func (uc *userController) logout(c *fiber.Ctx) error {
	claims := c.Locals(claimsKey).(*auth.Claims)

	if err := uc.users.Logout(c.UserContext(), claims); err != nil {
		return err
	}

	c.ClearCookie(common.SessionCookieName)
	uc.metrics.Event(metrics.EventLogout)

	return c.Redirect("/user/login", fiber.StatusSeeOther)
}

func (uc *userController) me(c *fiber.Ctx) error {
	u, err := uc.currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(u.Public())
}

// requireSession admits requests carrying a valid, unrevoked session cookie.
// Others are redirected to the login page, or get 401 on the JSON API.
func (uc *userController) requireSession(api bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(common.SessionCookieName)
		if token == "" {
			return unauthenticated(c, api)
		}

		claims, err := uc.users.Authenticate(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, common.ErrorInternal) {
				return err
			}
			c.ClearCookie(common.SessionCookieName)
			return unauthenticated(c, api)
		}

		c.Locals(claimsKey, claims)
		return c.Next()
	}
}

func (uc *userController) currentUser(c *fiber.Ctx) (*models.User, error) {
	claims := c.Locals(claimsKey).(*auth.Claims)

	u, err := uc.users.GetByID(c.UserContext(), claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// the account is gone but the cookie survived
			c.ClearCookie(common.SessionCookieName)
			return nil, fiber.ErrUnauthorized
		}
		return nil, err
	}
	return u, nil
}

func unauthenticated(c *fiber.Ctx, api bool) error {
	if api {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	return c.Redirect("/user/login", fiber.StatusSeeOther)
}

func isTokenError(err error) bool {
	return errors.Is(err, common.ErrInvalidToken) || errors.Is(err, common.ErrTokenExpired)
}

func validationMessage(err error) string {
	if errors.Is(err, common.ErrPasswordTooLong) {
		return msgPasswordTooLong
	}
	return msgMissingFields
}
