package passwordresets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/dbx"
	"github.com/dmitrijs2005/useraccounts/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, reset *models.PasswordReset) (*models.PasswordReset, error) {
	query := `
		INSERT INTO password_resets (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING reset_id, created_at
	`

	var (
		id      string
		created time.Time
	)
	err := r.db.QueryRowContext(ctx, query, reset.UserID(), reset.TokenHash(), reset.ExpiresAt()).Scan(&id, &created)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	reset.Set("reset_id", id)
	reset.Set("created_at", created)
	reset.SyncOriginal()

	return reset, nil
}

func (r *PostgresRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordReset, error) {
	query := `
		SELECT reset_id, user_id, token_hash, expires_at, created_at
		FROM password_resets
		WHERE token_hash = $1
	`

	var (
		id, userID, hash   string
		expires, createdAt time.Time
	)
	if err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(&id, &userID, &hash, &expires, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return models.NewPasswordReset(map[string]any{
		"reset_id":   id,
		"user_id":    userID,
		"token_hash": hash,
		"expires_at": expires,
		"created_at": createdAt,
	}), nil
}

func (r *PostgresRepository) Delete(ctx context.Context, resetID string) error {
	query := `
		DELETE FROM password_resets
		WHERE reset_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, resetID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteForUser(ctx context.Context, userID string) error {
	query := `
		DELETE FROM password_resets
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
