// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login, sessions and the password
// reset flow.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/cryptox"
	"github.com/dmitrijs2005/useraccounts/internal/dbx"
	"github.com/dmitrijs2005/useraccounts/internal/server/auth"
	"github.com/dmitrijs2005/useraccounts/internal/server/config"
	"github.com/dmitrijs2005/useraccounts/internal/server/models"
	"github.com/dmitrijs2005/useraccounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/useraccounts/internal/server/sessions"
	"github.com/google/uuid"
)

// resetTokenSize is the number of random bytes in a reset token.
const resetTokenSize = 32

// Session is a signed-in user together with the token stored in the
// session cookie.
type Session struct {
	Token     string
	ID        string
	ExpiresAt time.Time
	User      *models.User
}

// UserService provides account operations:
// - Register, Login, Logout, Authenticate
// - RequestPasswordReset and ResetPassword
// - GetByID and SetPassword
type UserService struct {
	db                         *sql.DB
	repomanager                repomanager.RepositoryManager
	mailer                     Mailer
	revoker                    sessions.Revoker
	jwtSecret                  []byte
	sessionValidityDuration    time.Duration
	resetTokenValidityDuration time.Duration
	baseURL                    string
	bcryptCost                 int
	now                        func() time.Time
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, mailer Mailer, revoker sessions.Revoker, cfg *config.Config) *UserService {
	return &UserService{
		db:                         db,
		repomanager:                m,
		mailer:                     mailer,
		revoker:                    revoker,
		jwtSecret:                  []byte(cfg.SecretKey),
		sessionValidityDuration:    cfg.SessionValidityDuration,
		resetTokenValidityDuration: cfg.ResetTokenValidityDuration,
		baseURL:                    strings.TrimRight(cfg.BaseURL, "/"),
		bcryptCost:                 cfg.BcryptCost,
		now:                        time.Now,
	}
}

// Register creates a user with a bcrypt hash of password.
func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, common.ErrorValidation
	}
	if err := checkPasswordLength(password); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	_, err := repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, common.ErrorAlreadyExists
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	hash, err := cryptox.HashPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, common.ErrorInternal
	}

	user := models.NewUser(map[string]any{"emailId": email, "password": hash})

	u, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// Login verifies the credentials and, on success, opens a new session.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if !cryptox.CheckPassword(user.PasswordHash(), []byte(password)) {
		return nil, common.ErrorUnauthorized
	}

	sessionID := uuid.NewString()
	// exp in the token has second precision; the cookie must expire with it
	issuedAt := s.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.sessionValidityDuration)
	token, err := auth.GenerateToken(user.ID(), sessionID, s.jwtSecret, issuedAt, s.sessionValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	return &Session{
		Token:     token,
		ID:        sessionID,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

// Authenticate validates a session token and checks it was not revoked.
func (s *UserService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.SessionID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if revoked {
		return nil, common.ErrSessionRevoked
	}
	return claims, nil
}

// Logout revokes the session until its token would have expired.
func (s *UserService) Logout(ctx context.Context, claims *auth.Claims) error {
	ttl := s.sessionValidityDuration
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	if err := s.revoker.Revoke(ctx, claims.SessionID, ttl); err != nil {
		return fmt.Errorf("error revoking session: %w", err)
	}
	return nil
}

// GetByID returns common.ErrorNotFound for unknown ids.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, common.ErrorInternal
	}
	return user, nil
}

// SetPassword replaces the password of the user with the given email.
func (s *UserService) SetPassword(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return common.ErrorValidation
	}
	if err := checkPasswordLength(password); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return common.ErrorInternal
	}

	if err := s.repomanager.Users(s.db).UpdatePassword(ctx, email, hash); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return fmt.Errorf("error updating password: %w", err)
	}
	return nil
}

// RequestPasswordReset replaces any pending reset of the user with a new one
// and mails the link carrying the raw token.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return common.ErrorValidation
	}

	user, err := s.repomanager.Users(s.db).GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return common.ErrorInternal
	}

	token, err := common.MakeRandHexString(resetTokenSize)
	if err != nil {
		return common.ErrorInternal
	}

	reset := models.NewPasswordReset(map[string]any{
		"userId":    user.ID(),
		"tokenHash": cryptox.HashToken(token),
		"expiresAt": s.now().Add(s.resetTokenValidityDuration),
	})

	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.PasswordResets(tx)
		if err := repoTx.DeleteForUser(ctx, user.ID()); err != nil {
			return fmt.Errorf("error deleting reset tokens: %w", err)
		}
		if _, err := repoTx.Create(ctx, reset); err != nil {
			return fmt.Errorf("error creating reset token: %w", err)
		}
		return nil
	}); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, user.Email(), s.resetLink(token)); err != nil {
		return fmt.Errorf("error sending reset link: %w", err)
	}
	return nil
}

// ValidateResetToken reports whether token belongs to a pending, unexpired
// reset.
func (s *UserService) ValidateResetToken(ctx context.Context, token string) error {
	_, err := s.findReset(ctx, token)
	return err
}

// ResetPassword sets a new password for the owner of token and consumes the
// token, both in one transaction. Only one of several concurrent resets with
// the same token commits; the others get common.ErrInvalidToken.
func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" || password == "" {
		return common.ErrorValidation
	}
	if err := checkPasswordLength(password); err != nil {
		return err
	}

	reset, err := s.findReset(ctx, token)
	if err != nil {
		return err
	}

	user, err := s.repomanager.Users(s.db).GetUserByID(ctx, reset.UserID())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return common.ErrorInternal
	}

	hash, err := cryptox.HashPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return common.ErrorInternal
	}
	user.SetPasswordHash(hash)

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).Update(ctx, user); err != nil {
			return fmt.Errorf("error updating password: %w", err)
		}
		// a concurrent reset may have consumed the token after findReset
		if err := s.repomanager.PasswordResets(tx).Delete(ctx, reset.ID()); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return fmt.Errorf("error deleting reset token: %w", err)
		}
		return nil
	})
}

func (s *UserService) findReset(ctx context.Context, token string) (*models.PasswordReset, error) {
	if token == "" {
		return nil, common.ErrInvalidToken
	}

	reset, err := s.repomanager.PasswordResets(s.db).FindByTokenHash(ctx, cryptox.HashToken(token))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, common.ErrorInternal
	}
	if reset.Expired(s.now()) {
		return nil, common.ErrTokenExpired
	}
	return reset, nil
}

func (s *UserService) resetLink(token string) string {
	return s.baseURL + "/user/new_password?token=" + url.QueryEscape(token)
}

// checkPasswordLength rejects passwords bcrypt would refuse to hash.
func checkPasswordLength(password string) error {
	if len(password) > cryptox.MaxPasswordLength {
		return fmt.Errorf("%w: %w", common.ErrorValidation, common.ErrPasswordTooLong)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
