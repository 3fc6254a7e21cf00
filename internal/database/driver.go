// Package database provides thin engine adapters for the lab. Each adapter
// wraps a single connection and knows how to capture its engine's execution
// plan for a query.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Efreh/sqlOptimizer/internal/plan"
)

// Supported engine names.
const (
	EnginePostgres = "postgres"
	EngineMySQL    = "mysql"
	EngineSQLite   = "sqlite"
)

// Row is the single-row scan surface shared by all engines.
type Row interface {
	Scan(dest ...any) error
}

// Rows is the multi-row scan surface shared by all engines.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Driver wraps one database connection. A Driver is not safe for concurrent
// use; the bench runner opens one per worker. Queries are written with
// $1-style placeholders and rebound by drivers that need ? instead.
type Driver interface {
	Name() string
	Connect(ctx context.Context, dsn string) error
	Close(ctx context.Context) error
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	// Explain captures and summarizes the engine's execution plan.
	Explain(ctx context.Context, query string, args ...any) (*plan.Report, error)
	// RefreshStats updates planner statistics after a bulk load, so captured
	// plans reflect the seeded data rather than empty-table estimates.
	RefreshStats(ctx context.Context) error
	// Reset drops the lab tables and migration bookkeeping if present.
	Reset(ctx context.Context) error
}

// labTables lists every table Reset removes, dependents first.
// schema_migrations is golang-migrate's bookkeeping table.
var labTables = []string{"cart_items", "orders", "products", "users", "schema_migrations"}

// Open connects a fresh driver for the named engine.
func Open(ctx context.Context, engine, dsn string) (Driver, error) {
	var d Driver
	switch engine {
	case EnginePostgres:
		d = &PostgresDriver{}
	case EngineMySQL:
		d = &MySQLDriver{}
	case EngineSQLite:
		d = &SQLiteDriver{}
	default:
		return nil, fmt.Errorf("unsupported engine: %s", engine)
	}
	if err := d.Connect(ctx, dsn); err != nil {
		return nil, fmt.Errorf("connect %s: %w", engine, err)
	}
	return d, nil
}

// sqlRows adapts *sql.Rows for the MySQL and SQLite drivers.
type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool             { return r.rows.Next() }
func (r *sqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *sqlRows) Err() error             { return r.rows.Err() }
func (r *sqlRows) Close()                 { _ = r.rows.Close() }
