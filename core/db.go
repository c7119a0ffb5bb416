package core

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
	DBExecutor interface {
		sqlx.ExtContext
	}

	DB interface {
		DBExecutor

		BeginTx(ctx context.Context, opts *sql.TxOptions) (DBTransactor, error)
		Close() error
	}

	DBTransactor interface {
		DBExecutor

		Commit() error
		Rollback() error
	}
)

// ReadSnapshot is used for reads that must observe a single consistent state.
var ReadSnapshot = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// RunInTx runs fn inside a transaction: committed if fn returns nil, rolled back otherwise (panics included).
func RunInTx(ctx context.Context, db DB, opts *sql.TxOptions, fn func(tx DBTransactor) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return NewStorageError("beginning transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = errors.Wrap(err, fmt.Sprintf("rolling back: %v", rbErr))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return NewStorageError("committing transaction", err)
	}
	return nil
}
