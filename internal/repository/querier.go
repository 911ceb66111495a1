// Package repository provides data access layer implementations for the
// payments engine.
package repository

import (
	"context"
	"database/sql"
)

// Querier is the subset of database/sql shared by *sql.DB, *sql.Tx and the
// db.DB wrapper. Repositories accept a Querier so services can run them
// inside their own transactions.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
