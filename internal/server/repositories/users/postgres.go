package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/dbx"
	"github.com/dmitrijs2005/useraccounts/internal/server/models"
)

// writableColumns are the users columns a record may set, in statement order.
var writableColumns = []string{"email_id", "password"}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts the user and fills in the generated columns. The returned
// user is the same record, synced so it reports no changes.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	raw := user.ToRawArray(false)

	args := make([]any, 0, len(writableColumns))
	placeholders := make([]string, 0, len(writableColumns))
	for i, col := range writableColumns {
		args = append(args, raw[col])
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}

	query := fmt.Sprintf(
		`INSERT INTO users (%s)
		 VALUES (%s)
		 RETURNING user_id, created_at, updated_at`,
		strings.Join(writableColumns, ", "), strings.Join(placeholders, ", "))

	var (
		id                 string
		created, updatedAt time.Time
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&id, &created, &updatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.SetAttribute("user_id", id)
	user.SetAttribute("created_at", created)
	user.SetAttribute("updated_at", updatedAt)
	user.SyncOriginal()

	return user, nil
}

const selectUser = `SELECT user_id, email_id, password, created_at, updated_at FROM users`

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := selectUser + `
		 WHERE email_id = $1
		 `
	return r.getOne(ctx, query, strings.ToLower(strings.TrimSpace(email)))
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := selectUser + `
		 WHERE user_id = $1
		 `
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var (
		id, email, password string
		created, updatedAt  time.Time
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(&id, &email, &password, &created, &updatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return models.NewUser(map[string]any{
		"user_id":    id,
		"email_id":   email,
		"password":   password,
		"created_at": created,
		"updated_at": updatedAt,
	}), nil
}

// Update writes only the changed writable columns. A clean record is a no-op.
func (r *PostgresRepository) Update(ctx context.Context, user *models.User) error {
	changed := user.ToRawArray(true)

	sets := make([]string, 0, len(writableColumns))
	args := make([]any, 0, len(writableColumns)+1)
	for _, col := range writableColumns {
		v, ok := changed[col]
		if !ok {
			continue
		}
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if len(sets) == 0 {
		return nil
	}

	args = append(args, user.ID())
	query := fmt.Sprintf(
		`UPDATE users SET %s, updated_at = now()
		 WHERE user_id = $%d
		 RETURNING updated_at`,
		strings.Join(sets, ", "), len(args))

	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&updatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}

	user.SetAttribute("updated_at", updatedAt)
	user.SyncOriginal()

	return nil
}

func (r *PostgresRepository) UpdatePassword(ctx context.Context, email string, hash string) error {
	query :=
		`UPDATE users SET password = $1, updated_at = now()
		 WHERE email_id = $2
		 `

	res, err := r.db.ExecContext(ctx, query, hash, strings.ToLower(strings.TrimSpace(email)))
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
