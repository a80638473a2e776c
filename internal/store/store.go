package store

import (
	"database/sql"
)

// Store handles all database operations
type Store struct {
	db *sql.DB
}

// New creates a new store instance
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Ping checks database connectivity for the health endpoint
func (s *Store) Ping() error {
	return s.db.Ping()
}
