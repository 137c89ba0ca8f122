// Package sqlite stores accounts in a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jrsteele09/go-feed-server/accounts"
	apperrors "github.com/jrsteele09/go-feed-server/internal/errors"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

var _ accounts.Repo = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dsn and applies pending migrations.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY between concurrent provisioning calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, apperrors.Wrapf(err, "apply migrations")
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Get(ctx context.Context, id string) (*accounts.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, username, full_name, created_at FROM accounts WHERE id = ?`, id)

	var (
		a        accounts.Account
		fullName sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Email, &a.Username, &fullName, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Wrapf(apperrors.ErrNotFound, "account %s", id)
		}
		return nil, err
	}
	if fullName.Valid {
		a.FullName = &fullName.String
	}
	a.CreatedAt = a.CreatedAt.UTC()
	return &a, nil
}

func (s *Store) Insert(ctx context.Context, a *accounts.Account) error {
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var fullName sql.NullString
	if a.FullName != nil {
		fullName = sql.NullString{String: *a.FullName, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, username, full_name, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Email, a.Username, fullName, createdAt.UTC())
	if isConstraintError(err) {
		return apperrors.Wrapf(apperrors.ErrAlreadyExists, "account %s", a.ID)
	}
	return err
}

func isConstraintError(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3lib.SQLITE_CONSTRAINT || code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
}
