package database

import (
	"context"
	"time"
)

// Cleanup removes readings older than retention and returns how many were deleted.
func (db *Database) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	tag, err := db.pool.Exec(ctx, "DELETE FROM readings WHERE time_stamp < $1", time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
