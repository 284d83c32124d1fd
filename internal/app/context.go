package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"actionboard/internal/config"
	"actionboard/internal/db"
	"actionboard/internal/engine"
	"actionboard/internal/migrate"
)

// Options select the workspace and database an engine is opened against.
type Options struct {
	Workspace string
	DB        db.Config
	Logger    *zap.Logger
}

// Open connects, migrates, loads the workspace config and seeds reference
// data on first use. The caller closes the returned engine's DB.
func Open(ctx context.Context, opts Options, actorID string) (engine.Engine, error) {
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return engine.Engine{}, err
	}
	if opts.DB.Workspace == "" {
		opts.DB.Workspace = opts.Workspace
	}
	conn, dialect, err := db.Open(opts.DB)
	if err != nil {
		return engine.Engine{}, err
	}
	if err := migrate.Migrate(conn, dialect); err != nil {
		conn.Close()
		return engine.Engine{}, fmt.Errorf("migrate: %w", err)
	}
	eng := engine.New(conn, dialect, cfg)
	if opts.Logger != nil {
		eng.Logger = opts.Logger
	}
	if err := EnsureReference(ctx, eng, actorID); err != nil {
		conn.Close()
		return engine.Engine{}, err
	}
	return eng, nil
}

// EnsureReference seeds the lookup tables from config when none are stored yet.
// An already seeded workspace is left alone so edits made through the API survive.
func EnsureReference(ctx context.Context, eng engine.Engine, actorID string) error {
	n, err := eng.Repo.CountStates(ctx)
	if err != nil {
		return fmt.Errorf("inspect reference data: %w", err)
	}
	if n > 0 {
		return nil
	}
	if actorID == "" {
		actorID = "local-user"
	}
	if err := eng.SeedReference(ctx, actorID); err != nil {
		return fmt.Errorf("seed reference data: %w", err)
	}
	eng.Logger.Info("reference data seeded", zap.String("actor_id", actorID))
	return nil
}
