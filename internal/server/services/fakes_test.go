package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/useraccounts/internal/common"
	"github.com/dmitrijs2005/useraccounts/internal/dbx"
	"github.com/dmitrijs2005/useraccounts/internal/server/models"
	"github.com/dmitrijs2005/useraccounts/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/useraccounts/internal/server/repositories/users"
	"github.com/google/uuid"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// fakeUsersRepo keeps raw rows keyed by user id and hands out fresh records,
// the way a database would.
type fakeUsersRepo struct {
	rows map[string]map[string]any

	getErr    error
	createErr error
	updateErr error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{rows: map[string]map[string]any{}}
}

func (f *fakeUsersRepo) add(email, hash string) string {
	id := uuid.NewString()
	f.rows[id] = map[string]any{"user_id": id, "email_id": email, "password": hash}
	return id
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	id := uuid.NewString()
	u.SetAttribute("user_id", id)
	u.SyncOriginal()
	f.rows[id] = u.ToRawArray(false)
	return u, nil
}

func (f *fakeUsersRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, row := range f.rows {
		if row["email_id"] == email {
			return models.NewUser(row), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	row, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return models.NewUser(row), nil
}

func (f *fakeUsersRepo) Update(ctx context.Context, u *models.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	row, ok := f.rows[u.ID()]
	if !ok {
		return common.ErrorNotFound
	}
	for k, v := range u.ToRawArray(true) {
		row[k] = v
	}
	u.SyncOriginal()
	return nil
}

func (f *fakeUsersRepo) UpdatePassword(ctx context.Context, email string, hash string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	for _, row := range f.rows {
		if row["email_id"] == email {
			row["password"] = hash
			return nil
		}
	}
	return common.ErrorNotFound
}

type fakeResetsRepo struct {
	byHash map[string]*models.PasswordReset

	findErr   error
	createErr error
	deleteErr error

	afterFind func()
}

func newFakeResetsRepo() *fakeResetsRepo {
	return &fakeResetsRepo{byHash: map[string]*models.PasswordReset{}}
}

func (f *fakeResetsRepo) Create(ctx context.Context, r *models.PasswordReset) (*models.PasswordReset, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	r.Set("reset_id", uuid.NewString())
	r.SyncOriginal()
	f.byHash[r.TokenHash()] = r
	return r, nil
}

func (f *fakeResetsRepo) FindByTokenHash(ctx context.Context, hash string) (*models.PasswordReset, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	r, ok := f.byHash[hash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if f.afterFind != nil {
		f.afterFind()
	}
	return r, nil
}

func (f *fakeResetsRepo) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	n := 0
	for h, r := range f.byHash {
		if r.ID() == id {
			delete(f.byHash, h)
			n++
		}
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (f *fakeResetsRepo) DeleteForUser(ctx context.Context, userID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for h, r := range f.byHash {
		if r.UserID() == userID {
			delete(f.byHash, h)
		}
	}
	return nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeResetsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error         { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository                   { return m.u }
func (m *fakeRepoManager) PasswordResets(db dbx.DBTX) passwordresets.Repository { return m.r }

type sentMail struct {
	email, link string
}

type fakeMailer struct {
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendPasswordReset(ctx context.Context, email, link string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{email: email, link: link})
	return nil
}

type sqlmockHandle struct {
	sqlmock.Sqlmock
}

func (h *sqlmockHandle) met(t *testing.T) {
	t.Helper()
	if err := h.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}
