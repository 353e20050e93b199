package repository

import (
	"database/sql"
	"errors"
)

// HandleNotFound converts sql.ErrNoRows into a nil result without error.
// Lookups like "is this pairing code still submittable" or "does this pair
// already have an active relationship" treat a missing row as a negative
// answer, not a failure.
//
// Usage:
//
//	var pc model.PairingCode
//	err := r.db.GetContext(ctx, &pc, query, code)
//	return HandleNotFound(&pc, err)
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RowsAffected unwraps the affected-row count from a guarded write. The
// count is how callers observe whether the guard held, so a count error is
// a real error rather than a zero.
func RowsAffected(result sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
