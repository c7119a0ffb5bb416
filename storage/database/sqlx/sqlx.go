// Package sqlxrepos implements the repositories on Postgres, with plain SQL run through sqlx.
package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"

	"github.com/trezcool/asistencia/core"
)

const uniqueViolation = "23505"

type repository struct {
	exec core.DBExecutor
}

// getExec returns the executor passed by the service (usually a transaction), or the repository's own.
func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// trapNoRowsErr maps psql "no rows" err to notFound; any other err becomes a *core.StorageError.
func trapNoRowsErr(err error, notFound error, op string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return core.NewStorageError(op, err)
}

// isUniqueViolation tells whether err violates the named unique constraint.
func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == uniqueViolation && pqErr.Constraint == constraint
}
