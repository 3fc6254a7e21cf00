package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Efreh/sqlOptimizer/internal/plan"
)

// SQLiteDriver adapts a modernc.org/sqlite handle pinned to one connection.
// It lets the lab run without a database server and keeps the package tests
// hermetic.
type SQLiteDriver struct {
	db *sql.DB
}

func (sd *SQLiteDriver) Name() string { return EngineSQLite }

func (sd *SQLiteDriver) Connect(ctx context.Context, dsn string) error {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	// SQLite is single-writer; one connection also keeps :memory: databases
	// from silently multiplying per pooled connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	sd.db = db
	return nil
}

func (sd *SQLiteDriver) Close(ctx context.Context) error {
	if sd.db == nil {
		return nil
	}
	return sd.db.Close()
}

func (sd *SQLiteDriver) Exec(ctx context.Context, query string, args ...any) error {
	_, err := sd.db.ExecContext(ctx, Rebind(query), args...)
	return err
}

func (sd *SQLiteDriver) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := sd.db.QueryContext(ctx, Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (sd *SQLiteDriver) QueryRow(ctx context.Context, query string, args ...any) Row {
	return sd.db.QueryRowContext(ctx, Rebind(query), args...)
}

// Explain runs EXPLAIN QUERY PLAN and summarizes the access-path rows.
// SQLite reports no timings or row counts, only scan and index choices.
func (sd *SQLiteDriver) Explain(ctx context.Context, query string, args ...any) (*plan.Report, error) {
	rows, err := sd.db.QueryContext(ctx, "EXPLAIN QUERY PLAN "+Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite explain: %w", err)
	}
	defer rows.Close()

	var details []string
	for rows.Next() {
		var id, parent, notused int
		var detail string
		if err := rows.Scan(&id, &parent, &notused, &detail); err != nil {
			return nil, fmt.Errorf("sqlite explain scan: %w", err)
		}
		details = append(details, detail)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite explain rows: %w", err)
	}
	return plan.ParseSQLite(details), nil
}

// RefreshStats populates sqlite_stat1 so the planner can rank the indexes.
func (sd *SQLiteDriver) RefreshStats(ctx context.Context) error {
	_, err := sd.db.ExecContext(ctx, "ANALYZE")
	return err
}

func (sd *SQLiteDriver) Reset(ctx context.Context) error {
	for _, table := range labTables {
		if _, err := sd.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}
