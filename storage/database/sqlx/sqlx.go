// Package sqlxrepos implements the repositories on top of jmoiron/sqlx.
// Queries are written with `?` placeholders & rebound to the driver's bindvar: postgres in production,
// sqlite in tests.
package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core"
)

// pgUniqueViolation is the postgres error code of unique constraint violations.
const pgUniqueViolation = "23505"

type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func (repo repository) get(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, exec, dest, exec.Rebind(query), args...)
}

func (repo repository) selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, exec, dest, exec.Rebind(query), args...)
}

func (repo repository) execute(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (sql.Result, error) {
	return exec.ExecContext(ctx, exec.Rebind(query), args...)
}

// trapNoRowsErr maps sql "no rows" err to `notFound`
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

