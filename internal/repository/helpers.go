package repository

import (
	"database/sql"
	"fmt"
)

// requireRow converts a zero-row update into sql.ErrNoRows so services can
// map it to a not-found error.
func requireRow(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
