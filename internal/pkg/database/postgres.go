// Package database stores reading history in Postgres.
package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

type Database struct {
	pool *pgxpool.Pool
}

// NewDatabase expects the schema to be migrated already.
func NewDatabase(pool *pgxpool.Pool) *Database {
	return &Database{
		pool: pool,
	}
}

func (db *Database) Close() error {
	if db.pool == nil {
		return nil
	}
	db.pool.Close()
	return nil
}
