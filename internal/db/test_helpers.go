package db

import (
	"database/sql"
	"io"
	"log/slog"
)

// NewTestDB wraps an existing sql.DB (or nil, for services whose test path
// never reaches the database) with a discarding logger. Test use only.
func NewTestDB(sqlDB *sql.DB) *DB {
	return &DB{
		DB:     sqlDB,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}
