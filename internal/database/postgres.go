package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Efreh/sqlOptimizer/internal/plan"
)

// PostgresDriver adapts a single pgx connection.
type PostgresDriver struct {
	conn *pgx.Conn
}

func (pd *PostgresDriver) Name() string { return EnginePostgres }

func (pd *PostgresDriver) Connect(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	pd.conn = conn
	return nil
}

func (pd *PostgresDriver) Close(ctx context.Context) error {
	if pd.conn == nil {
		return nil
	}
	return pd.conn.Close(ctx)
}

func (pd *PostgresDriver) Exec(ctx context.Context, query string, args ...any) error {
	_, err := pd.conn.Exec(ctx, query, args...)
	return err
}

func (pd *PostgresDriver) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := pd.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

func (pd *PostgresDriver) QueryRow(ctx context.Context, query string, args ...any) Row {
	return pd.conn.QueryRow(ctx, query, args...)
}

func (pd *PostgresDriver) Explain(ctx context.Context, query string, args ...any) (*plan.Report, error) {
	var raw []byte
	stmt := "EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) " + query
	if err := pd.conn.QueryRow(ctx, stmt, args...).Scan(&raw); err != nil {
		return nil, fmt.Errorf("postgres explain: %w", err)
	}
	return plan.ParsePostgres(raw)
}

func (pd *PostgresDriver) RefreshStats(ctx context.Context) error {
	_, err := pd.conn.Exec(ctx, "ANALYZE")
	return err
}

func (pd *PostgresDriver) Reset(ctx context.Context) error {
	for _, table := range labTables {
		if _, err := pd.conn.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}

type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool             { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgxRows) Err() error             { return r.rows.Err() }
func (r *pgxRows) Close()                 { r.rows.Close() }
