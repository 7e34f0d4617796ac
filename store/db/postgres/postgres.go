// Package postgres implements store.Driver against PostgreSQL.
package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/convergeai/core/internal/profile"
)

// DB is the postgres-backed store.Driver implementation.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a connection pool against profile.DSN.
func NewDB(profile *profile.Profile) (*DB, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres connection")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping postgres")
	}

	return &DB{db: db, profile: profile}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// SQLDB returns the underlying connection pool, for callers (the vector
// index) that need to share it rather than opening a second pool.
func (d *DB) SQLDB() *sql.DB {
	return d.db
}

// placeholder returns a postgres positional parameter ("$1", "$2", ...).
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns a comma-joined list of n positional parameters
// starting at $1, for use in VALUES(...) clauses.
func placeholders(n int) string {
	s := ""
	for i := 1; i <= n; i++ {
		if i > 1 {
			s += ", "
		}
		s += placeholder(i)
	}
	return s
}
