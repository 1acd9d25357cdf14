package main

import (
	"bufio"
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/dmitrijs2005/useraccounts/internal/logging"
	"github.com/dmitrijs2005/useraccounts/internal/server/config"
	"github.com/dmitrijs2005/useraccounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/useraccounts/internal/server/services"
	"github.com/dmitrijs2005/useraccounts/internal/server/sessions"
	"github.com/dmitrijs2005/useraccounts/internal/useradmin"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	opts, err := useradmin.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)
	us := services.NewUserService(db, rm, services.NewLogMailer(logger), sessions.NewMemoryRevoker(), cfg)

	in := bufio.NewReader(os.Stdin)
	if err := useradmin.Run(ctx, opts, int(os.Stdin.Fd()), in, os.Stdout, us); err != nil {
		log.Fatalf("%v", err)
	}

}
