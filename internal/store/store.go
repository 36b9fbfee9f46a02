// Package store is an embedded document store over a single sqlite file.
// Every collection is an (id, doc) table holding JSON documents, and all
// access is serialized behind one process-wide lock. Engines run their
// multi-step operations as a single Execute closure so invariants hold
// without any finer-grained locking.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens or creates the store file and ensures every registered
// collection has its table.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// The store lock already serializes everything; a single connection
	// keeps sqlite from ever seeing concurrent writers.
	db.SetMaxOpenConns(1)
	for _, table := range tables {
		q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (id TEXT PRIMARY KEY, doc TEXT NOT NULL)`, table)
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, fmt.Errorf("create table %s: %w", table, err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Tx is a handle valid only inside an Execute closure.
type Tx struct {
	tx *sql.Tx
}

// Execute runs fn under the store lock inside one transaction. A nil return
// commits, any error rolls back and is returned unchanged. Closures must not
// retain the Tx and must not perform I/O beyond the store.
func (s *Store) Execute(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(&Tx{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// tables accumulates collection table names at init time, before Open runs.
var tables []string
