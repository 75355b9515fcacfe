// Package migrate applies the storefront's schema from the embedded sql
// directory. Sessions are the only locally owned table; orders and catalog
// live in the commerce platform.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed sql/*.sql
var schemaFS embed.FS

// Apply brings the schema up to date. Already-applied versions are a no-op.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	source, err := iofs.New(schemaFS, "sql")
	if err != nil {
		return fmt.Errorf("migrate: load embedded schema: %w", err)
	}

	db, err := sql.Open("pgx", pool.Config().ConnString())
	if err != nil {
		return fmt.Errorf("migrate: open connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("migrate: ping: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migrate: init driver: %w", err)
	}

	runner, err := migrate.NewWithInstance("iofs", source, "pgx", driver)
	if err != nil {
		return fmt.Errorf("migrate: init runner: %w", err)
	}
	defer runner.Close()

	switch err := runner.Up(); {
	case err == nil, errors.Is(err, migrate.ErrNoChange):
		return nil
	case errors.Is(err, fs.ErrNotExist):
		// A version missing its up or down half surfaces as ErrNotExist.
		return fmt.Errorf("migrate: incomplete version, up and down files ship together: %w", err)
	default:
		return fmt.Errorf("migrate: up: %w", err)
	}
}
