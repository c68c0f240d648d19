// Package db wraps the Postgres connection used for Project and Plan
// persistence. Job persistence has its own connection-free store
// (internal/jobstore.PostgresStore) since a job's single-writer lease is a
// Postgres advisory lock scoped to one transaction, not a row CRUD
// concern — see DESIGN.md for why the two were not merged into one
// package.
package db

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned by Get*/scan helpers when no row matches.
var ErrNotFound = errors.New("db: not found")

// DB is a thin wrapper over *sql.DB so Project/Plan query methods can be
// defined on it, following the teacher's queue.Queue/storage.Storage
// shape (a struct wrapping one client, constructed with a ping check).
type DB struct {
	*sql.DB
}

func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	return &DB{DB: conn}, nil
}
