package main

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/grdload/internal/db"
	"github.com/gyeh/grdload/internal/exitcode"
	"github.com/gyeh/grdload/internal/norms"
)

// openStore connects to Postgres or exits with DBConnError.
func openStore(ctx context.Context, log zerolog.Logger) (*db.Store, *pgxpool.Pool) {
	pool, err := db.NewPool(ctx, cfg.DSN)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	return db.NewStore(pool), pool
}

// newNormCache builds the norm cache from the configured source. It returns
// nil when no source is configured; persister may be nil.
func newNormCache(persister norms.Persister, log zerolog.Logger) *norms.Cache {
	src, err := cfg.NormSource()
	if err != nil {
		log.Warn().Err(err).Msg("norm source not configured")
		return nil
	}
	return norms.NewCache(src, norms.CacheOptions{
		Load:      cfg.LoadOptions(),
		Interval:  cfg.RefreshInterval(),
		Persister: persister,
	}, log)
}
