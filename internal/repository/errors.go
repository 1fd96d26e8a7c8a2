// Package repository implements the catalog and store contracts on MySQL
// through database/sql.  Methods run against whichever handle the
// repository was built with: the pool for plain reads, or the *sql.Tx of
// an open unit of work.  Driver errors that carry domain meaning are
// translated to apperr sentinels here so that higher layers never
// inspect MySQL error codes.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/reservation-engine/internal/apperr"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// notFound maps sql.ErrNoRows to apperr.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	return err
}
