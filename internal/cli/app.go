package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/hray3182/ledgerline/internal/config"
	"github.com/hray3182/ledgerline/internal/database"
	"github.com/hray3182/ledgerline/internal/obligation"
	"github.com/hray3182/ledgerline/internal/repository"
	"github.com/hray3182/ledgerline/internal/scheduler"
)

// app is the engine wired against Postgres. Every command builds one.
type app struct {
	cfg   *config.Config
	db    *database.DB
	store *repository.Store
	clock obligation.Clock
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	db, err := database.New(ctx, cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	log.Println("Connected to database")

	return &app{
		cfg:   cfg,
		db:    db,
		store: repository.NewStore(db),
		clock: obligation.SystemClock{},
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}

// engine builds the scheduling pipeline around notifier, which may be nil.
func (a *app) engine(notifier obligation.Notifier) *scheduler.Scheduler {
	advancer := obligation.NewAdvancer(a.store, notifier, a.clock)
	scanner := obligation.NewScanner(a.store, a.cfg.ScanPageSize)
	return scheduler.New(scanner, advancer, a.clock, a.cfg.Schedule, a.cfg.Location)
}
