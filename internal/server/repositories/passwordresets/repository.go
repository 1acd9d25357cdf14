// Package passwordresets declares the repository contract for pending
// password reset tokens.
package passwordresets

import (
	"context"

	"github.com/dmitrijs2005/useraccounts/internal/server/models"
)

// Repository stores reset tokens by hash; raw tokens never reach storage.
type Repository interface {
	// Create inserts the reset and fills in its id and creation time.
	Create(ctx context.Context, reset *models.PasswordReset) (*models.PasswordReset, error)

	// FindByTokenHash returns common.ErrorNotFound when no reset matches.
	FindByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordReset, error)

	// Delete removes one reset. It returns common.ErrorNotFound when the reset
	// is already gone, so a token can be consumed only once.
	Delete(ctx context.Context, resetID string) error

	// DeleteForUser removes every pending reset of the user.
	DeleteForUser(ctx context.Context, userID string) error
}
