package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/Efreh/sqlOptimizer/internal/plan"
)

// MySQLDriver adapts a database/sql handle pinned to one connection.
type MySQLDriver struct {
	db *sql.DB
}

func (md *MySQLDriver) Name() string { return EngineMySQL }

func (md *MySQLDriver) Connect(ctx context.Context, dsn string) error {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return err
	}
	// One worker, one connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	md.db = db
	return nil
}

func (md *MySQLDriver) Close(ctx context.Context) error {
	if md.db == nil {
		return nil
	}
	return md.db.Close()
}

func (md *MySQLDriver) Exec(ctx context.Context, query string, args ...any) error {
	_, err := md.db.ExecContext(ctx, Rebind(query), args...)
	return err
}

func (md *MySQLDriver) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := md.db.QueryContext(ctx, Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (md *MySQLDriver) QueryRow(ctx context.Context, query string, args ...any) Row {
	return md.db.QueryRowContext(ctx, Rebind(query), args...)
}

// Explain runs MySQL 8's EXPLAIN ANALYZE, which returns the plan as tree text.
func (md *MySQLDriver) Explain(ctx context.Context, query string, args ...any) (*plan.Report, error) {
	rows, err := md.db.QueryContext(ctx, "EXPLAIN ANALYZE "+Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("mysql explain: %w", err)
	}
	defer rows.Close()

	var chunks []string
	for rows.Next() {
		var chunk string
		if err := rows.Scan(&chunk); err != nil {
			return nil, fmt.Errorf("mysql explain scan: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql explain rows: %w", err)
	}
	return plan.ParseMySQL(strings.Join(chunks, "\n"))
}

// RefreshStats recalculates InnoDB statistics. ANALYZE TABLE returns a
// result set, so it runs through Query and gets drained.
func (md *MySQLDriver) RefreshStats(ctx context.Context) error {
	rows, err := md.db.QueryContext(ctx, "ANALYZE TABLE cart_items, orders, products, users")
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
	}
	return rows.Err()
}

func (md *MySQLDriver) Reset(ctx context.Context) error {
	for _, table := range labTables {
		if _, err := md.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}
