package main

import (
	"context"
	"fmt"

	"github.com/cuetime/reservations/internal/app"
	"github.com/cuetime/reservations/internal/config"
	"github.com/cuetime/reservations/internal/storage/postgres"
	"github.com/cuetime/reservations/internal/storage/sqlite"
	transporthttp "github.com/cuetime/reservations/internal/transport/http"
	"github.com/cuetime/reservations/migrations"
)

// store is an open reservation repository for the configured driver.
type store struct {
	repo  app.ReservationRepository
	ping  transporthttp.PingFunc
	close func()
}

// openStore connects to the configured database and brings its schema up
// to date.
func openStore(ctx context.Context, cfg config.DBConfig) (*store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := postgres.Open(ctx, cfg.URL, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		if err := migrations.Apply(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
		return &store{
			repo:  postgres.NewReservationRepository(pool),
			ping:  pool.Ping,
			close: pool.Close,
		}, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &store{
			repo:  sqlite.NewReservationRepository(db),
			ping:  db.PingContext,
			close: func() { _ = db.Close() },
		}, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", cfg.Driver)
	}
}
