// Package inmemdb is a process-local implementation of the storage layer, used by tests and when the database engine is "memory".
//
// Transactions are serialized: a transaction holds the database until it commits or rolls back,
// and rolling back restores the state it started from.
package inmemdb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/asistencia/core"
	"github.com/trezcool/asistencia/core/attendance"
	"github.com/trezcool/asistencia/core/organization"
)

type (
	DB struct {
		// the in-memory repositories never issue SQL
		sqlx.ExtContext

		txMutex sync.Mutex // held for the lifetime of a transaction, or of a single statement outside one
		mutex   sync.Mutex // guards tables
		tables  *tables
	}

	tables struct {
		organizations map[string]organization.Organization
		students      map[string]attendance.Student
		records       map[string]attendance.Record // by recordKey
	}

	tx struct {
		sqlx.ExtContext

		db       *DB
		snapshot *tables
		done     bool
	}
)

var (
	_ core.DB           = (*DB)(nil) // interface compliance check
	_ core.DBTransactor = (*tx)(nil) // interface compliance check
)

func Open() *DB {
	return &DB{tables: newTables()}
}

func newTables() *tables {
	return &tables{
		organizations: make(map[string]organization.Organization),
		students:      make(map[string]attendance.Student),
		records:       make(map[string]attendance.Record),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.organizations {
		c.organizations[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.records {
		c.records[k] = v
	}
	return c
}

func (db *DB) BeginTx(ctx context.Context, _ *sql.TxOptions) (core.DBTransactor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	db.txMutex.Lock()

	db.mutex.Lock()
	defer db.mutex.Unlock()
	return &tx{db: db, snapshot: db.tables.clone()}, nil
}

func (db *DB) Close() error { return nil }

// Reset drops all data.
func (db *DB) Reset() {
	db.txMutex.Lock()
	defer db.txMutex.Unlock()
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.tables = newTables()
}

// acquire locks the tables for one repository call and returns the matching unlock func.
// Calls made through one of db's open transactions already own the transaction lock.
func (db *DB) acquire(exec []core.DBExecutor) func() {
	if len(exec) > 0 {
		if t, ok := exec[0].(*tx); ok && t.db == db && !t.done {
			db.mutex.Lock()
			return db.mutex.Unlock
		}
	}
	db.txMutex.Lock()
	db.mutex.Lock()
	return func() {
		db.mutex.Unlock()
		db.txMutex.Unlock()
	}
}

func (t *tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.snapshot = nil
	t.db.txMutex.Unlock()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true

	t.db.mutex.Lock()
	t.db.tables = t.snapshot
	t.db.mutex.Unlock()

	t.snapshot = nil
	t.db.txMutex.Unlock()
	return nil
}
