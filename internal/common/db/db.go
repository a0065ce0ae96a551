// Package db provides the shared MySQL access layer. Repositories depend on
// the Database interface so tests can substitute a fake without a server.
package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"

	appErr "gavel/pkg/errors"
)

// Database is the subset of sql.DB the repositories use.
type Database interface {
	Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Config holds MySQL pool settings.
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// MySQL implements Database over a pooled sql.DB.
type MySQL struct {
	db *sql.DB
}

// NewMySQL opens a pooled connection and verifies it with a bounded ping.
func NewMySQL(cfg Config) (*MySQL, error) {
	if cfg.DSN == "" {
		return nil, appErr.ValidationError("dsn", "required")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	handle, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "open database")
	}
	handle.SetMaxOpenConns(cfg.MaxOpenConns)
	handle.SetMaxIdleConns(cfg.MaxIdleConns)
	handle.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := handle.PingContext(ctx); err != nil {
		_ = handle.Close()
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "ping database")
	}
	return &MySQL{db: handle}, nil
}

// NewMySQLWithDB wraps an existing handle. Used by tests.
func NewMySQLWithDB(handle *sql.DB) *MySQL {
	return &MySQL{db: handle}
}

func (m *MySQL) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return m.db.QueryContext(ctx, query, args...)
}

func (m *MySQL) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return m.db.QueryRowContext(ctx, query, args...)
}

func (m *MySQL) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return m.db.ExecContext(ctx, query, args...)
}

// Transaction runs fn inside a transaction, rolling back when fn returns an
// error and committing otherwise.
func (m *MySQL) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "commit transaction")
	}
	return nil
}

func (m *MySQL) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *MySQL) Close() error {
	return m.db.Close()
}
