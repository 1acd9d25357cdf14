package passwordresets

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock, db
}

var (
	expires = time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	created = expires.Add(-30 * time.Minute)
)

const insertQ = `(?s)^INSERT\s+INTO\s+password_resets\s*\(user_id,\s*token_hash,\s*expires_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+reset_id,\s*created_at\s*$`

func TestCreate_Success(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(insertQ).
		WithArgs("u1", "hash", expires).
		WillReturnRows(sqlmock.NewRows([]string{"reset_id", "created_at"}).AddRow("r1", created))

	reset := models.NewPasswordReset(map[string]any{"userId": "u1", "tokenHash": "hash", "expiresAt": expires})
	got, err := repo.Create(context.Background(), reset)

	require.NoError(t, err)
	assert.Equal(t, "r1", got.ID())
	assert.False(t, got.Dirty())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Errors(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(insertQ).WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery(insertQ).WillReturnError(errors.New("db down"))

	reset := models.NewPasswordReset(map[string]any{"userId": "u1", "tokenHash": "hash", "expiresAt": expires})

	_, err := repo.Create(context.Background(), reset)
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	_, err = repo.Create(context.Background(), reset)
	require.Error(t, err)
	assert.Regexp(t, regexp.MustCompile(`db error: .*db down`), err.Error())
}

func TestFindByTokenHash(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	q := `(?s)^SELECT\s+reset_id,\s*user_id,\s*token_hash,\s*expires_at,\s*created_at\s+FROM\s+password_resets\s+WHERE\s+token_hash\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).WithArgs("hash").
		WillReturnRows(sqlmock.NewRows([]string{"reset_id", "user_id", "token_hash", "expires_at", "created_at"}).
			AddRow("r1", "u1", "hash", expires, created))
	mock.ExpectQuery(q).WithArgs("nope").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(q).WithArgs("boom").WillReturnError(errors.New("db err"))

	got, err := repo.FindByTokenHash(context.Background(), "hash")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID())
	assert.True(t, got.ExpiresAt().Equal(expires))
	assert.False(t, got.Expired(created))

	_, err = repo.FindByTokenHash(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.FindByTokenHash(context.Background(), "boom")
	assert.ErrorContains(t, err, "db error: db err")
}

func TestDelete(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	q := `(?s)^DELETE\s+FROM\s+password_resets\s+WHERE\s+reset_id\s*=\s*\$1\s*$`
	mock.ExpectExec(q).WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("r2").WillReturnError(errors.New("db err"))
	mock.ExpectExec(q).WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WithArgs("r3").WillReturnResult(sqlmock.NewErrorResult(errors.New("no count")))

	require.NoError(t, repo.Delete(context.Background(), "r1"))
	assert.ErrorContains(t, repo.Delete(context.Background(), "r2"), "db error")
	// second delete of the same reset finds nothing
	assert.ErrorIs(t, repo.Delete(context.Background(), "r1"), common.ErrorNotFound)
	assert.ErrorContains(t, repo.Delete(context.Background(), "r3"), "db error: no count")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteForUser(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	q := `(?s)^DELETE\s+FROM\s+password_resets\s+WHERE\s+user_id\s*=\s*\$1\s*$`
	mock.ExpectExec(q).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(q).WithArgs("u2").WillReturnError(errors.New("db err"))

	require.NoError(t, repo.DeleteForUser(context.Background(), "u1"))
	assert.ErrorContains(t, repo.DeleteForUser(context.Background(), "u2"), "db error")
}
