package models

import (
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/entity"
)

var passwordResetSchema = entity.MustSchema(
	entity.WithFieldMap(map[string]string{
		"resetId":   "reset_id",
		"userId":    "user_id",
		"tokenHash": "token_hash",
		"expiresAt": "expires_at",
		"createdAt": "created_at",
	}),
	entity.WithAllowedFields("reset_id", "user_id", "token_hash", "expires_at", "created_at"),
)

// PasswordReset is a pending password reset. Only the SHA-256 of the token
// handed to the user is stored.
type PasswordReset struct {
	*entity.Record
}

var _ entity.Serializable = (*PasswordReset)(nil)

// NewPasswordReset builds a reset record. Unknown keys are dropped.
func NewPasswordReset(data map[string]any) *PasswordReset {
	return &PasswordReset{Record: entity.New(passwordResetSchema, data)}
}

func (p *PasswordReset) ID() string        { return stringValue(p.Get("reset_id")) }
func (p *PasswordReset) UserID() string    { return stringValue(p.Get("user_id")) }
func (p *PasswordReset) TokenHash() string { return stringValue(p.Get("token_hash")) }

func (p *PasswordReset) ExpiresAt() time.Time { return timeValue(p.Get("expires_at")) }

// Expired reports whether the reset can no longer be used at now.
func (p *PasswordReset) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt())
}
