// Package postgres stores accounts in PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-feed-server/accounts"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
)

var _ accounts.Repo = (*Store)(nil)

type Config struct {
	ConnString  string
	MaxConns    int32
	AutoMigrate bool
}

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ConnString == "" {
		return nil, apperrors.New("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to parse connection string")
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, apperrors.Wrapf(err, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, apperrors.Wrapf(err, "failed to ping database")
	}

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Get(ctx context.Context, id string) (*accounts.Account, error) {
	var a accounts.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, username, full_name, created_at FROM accounts WHERE id = $1`, id,
	).Scan(&a.ID, &a.Email, &a.Username, &a.FullName, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "account %s", id)
	}
	if err != nil {
		return nil, mapPostgresError(err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func (s *Store) Insert(ctx context.Context, a *accounts.Account) error {
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, email, username, full_name, created_at) VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.Email, a.Username, a.FullName, createdAt,
	)
	return mapPostgresError(err)
}
