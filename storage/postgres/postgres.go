package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/vultisig/fluidpay/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

const pgErrUniqueViolation = "23505"

type PostgresBackend struct {
	pool *pgxpool.Pool
}

var _ storage.DatabaseStorage = (*PostgresBackend)(nil)

// NewPostgresBackend connects to dsn and, unless readonly, applies pending migrations.
func NewPostgresBackend(readonly bool, dsn string) (*PostgresBackend, error) {
	ctx := context.Background()
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	backend := &PostgresBackend{pool: pool}
	if !readonly {
		if err := backend.Migrate(); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return backend, nil
}

func (p *PostgresBackend) Migrate() error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose.SetDialect failed: %w", err)
	}
	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("fail to run migrations: %w", err)
	}
	return nil
}

func (p *PostgresBackend) Close() error {
	p.pool.Close()
	return nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}

func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
