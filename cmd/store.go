package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/meridian-ehs/incidentctl/internal/rules"
	"github.com/meridian-ehs/incidentctl/internal/store"
)

// initStore opens the configured persistence backend.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEngine builds the classification engine from the configured rule table,
// falling back to the built-in defaults when no rules file is set.
func initEngine() (*rules.Engine, error) {
	if cfg.Rules.Path == "" {
		return rules.NewEngine(nil)
	}
	rs, err := rules.LoadFile(cfg.Rules.Path)
	if err != nil {
		return nil, err
	}
	return rules.NewEngine(rs)
}
