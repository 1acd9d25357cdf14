package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/useraccounts/internal/dbx"
	"github.com/dmitrijs2005/useraccounts/internal/logging"
	"github.com/dmitrijs2005/useraccounts/internal/server/config"
	"github.com/dmitrijs2005/useraccounts/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/useraccounts/internal/server/repositories/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepoManager struct {
	migrateErr error
	migrated   bool
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error {
	m.migrated = true
	return m.migrateErr
}
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                   { return nil }
func (m *fakeRepoManager) PasswordResets(dbx.DBTX) passwordresets.Repository { return nil }

type fakeRunner struct {
	started chan struct{}
	err     error
}

func (r *fakeRunner) Run(ctx context.Context) error {
	close(r.started)
	if r.err != nil {
		return r.err
	}
	<-ctx.Done()
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestNewApp_BuildsWithoutConnecting(t *testing.T) {
	var c config.Config
	c.LoadDefaults()

	app, err := NewApp(&c)
	require.NoError(t, err)
	t.Cleanup(app.close)

	assert.NotNil(t, app.httpServer)
	assert.NotNil(t, app.db)
	assert.Len(t, app.closers, 1)
}

func TestNewApp_RedisUnavailable(t *testing.T) {
	var c config.Config
	c.LoadDefaults()
	c.RedisAddr = "127.0.0.1:1"

	_, err := NewApp(&c)
	assert.ErrorContains(t, err, "redis init error")
}

func TestRun_StopsOnCancel(t *testing.T) {
	rm := &fakeRepoManager{}
	r := &fakeRunner{started: make(chan struct{})}
	closed := false
	app := &App{
		logger:      logging.Nop{},
		repomanager: rm,
		httpServer:  r,
		closers:     nil,
	}
	app.closers = append(app.closers, closerFunc(func() error { closed = true; return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	<-r.started
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
	assert.True(t, rm.migrated)
	assert.True(t, closed)
}

func TestRun_ServerErrorStopsApp(t *testing.T) {
	app := &App{
		logger:      logging.Nop{},
		repomanager: &fakeRepoManager{},
		httpServer:  &fakeRunner{started: make(chan struct{}), err: errors.New("address in use")},
	}

	require.NoError(t, app.Run(context.Background()))
}

func TestRun_MigrationError(t *testing.T) {
	r := &fakeRunner{started: make(chan struct{})}
	app := &App{
		logger:      logging.Nop{},
		repomanager: &fakeRepoManager{migrateErr: errors.New("boom")},
		httpServer:  r,
	}

	err := app.Run(context.Background())

	assert.ErrorContains(t, err, "migrations: boom")
	select {
	case <-r.started:
		t.Fatal("server must not start when migrations fail")
	default:
	}
}
