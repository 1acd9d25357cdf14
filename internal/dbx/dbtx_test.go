package dbx

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var errResetGone = errors.New("reset gone")

// setupDB creates a private in-memory database with a cut-down version of the
// accounts schema.
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := sql.Open("sqlite", "file:"+name+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE users (user_id TEXT PRIMARY KEY, email_id TEXT UNIQUE, password TEXT);
		CREATE TABLE password_resets (reset_id TEXT PRIMARY KEY, user_id TEXT, token_hash TEXT);
		INSERT INTO users VALUES ('u1', 'alice@example.com', 'old');
		INSERT INTO password_resets VALUES ('r1', 'u1', 'h1');
	`)
	require.NoError(t, err)
	return db
}

func password(t *testing.T, db *sql.DB) string {
	t.Helper()
	var p string
	require.NoError(t, db.QueryRow(`SELECT password FROM users WHERE user_id = 'u1'`).Scan(&p))
	return p
}

func resets(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM password_resets`).Scan(&n))
	return n
}

// consume updates the password and deletes the reset, failing when the
// reset was already used.
func consume(ctx context.Context, tx DBTX, hash string) error {
	if _, err := tx.ExecContext(ctx, `UPDATE users SET password = ? WHERE user_id = 'u1'`, hash); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM password_resets WHERE reset_id = 'r1'`)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errResetGone
	}
	return nil
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return consume(ctx, tx, "new")
	})

	require.NoError(t, err)
	assert.Equal(t, "new", password(t, db))
	assert.Equal(t, 0, resets(t, db))
}

func TestWithTx_SecondConsumeRollsBack(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	require.NoError(t, WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		return consume(ctx, tx, "first")
	}))

	err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		return consume(ctx, tx, "second")
	})

	// ошибка возвращается как есть
	assert.ErrorIs(t, err, errResetGone)
	assert.Equal(t, "first", password(t, db), "update of the losing tx is rolled back")
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		assert.Equal(t, "old", password(t, db), "must rollback on panic")
		assert.Equal(t, 1, resets(t, db))
	}()

	_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, consume(ctx, tx, "new"))
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.False(t, called)
}
