// Package migrations manages the lab schema through embedded SQL migrations.
//
// Version 1 creates the four base tables with no secondary indexes, which is
// the schema the baseline measurements run against. Version 2 adds the three
// indexes from the tuning pass. Both directions are reversible, so a single
// database can flip between the two worlds any number of times.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	migdb "github.com/golang-migrate/migrate/v4/database"
	migmysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migpostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migsqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Efreh/sqlOptimizer/internal/database"
)

//go:embed postgres/*.sql mysql/*.sql sqlite/*.sql
var files embed.FS

// Schema versions the lab moves between.
const (
	VersionBase    uint = 1
	VersionIndexes uint = 2
)

// Base brings the schema to the four bare tables, creating or dropping as
// needed to get there.
func Base(engine, dsn string) error {
	return To(engine, dsn, VersionBase)
}

// ApplyIndexes creates idx_cart_items_user_id, idx_orders_user_id_status and
// idx_cart_items_product_id on top of the base schema.
func ApplyIndexes(engine, dsn string) error {
	return To(engine, dsn, VersionIndexes)
}

// RollbackIndexes drops the three indexes, returning to the base schema.
func RollbackIndexes(engine, dsn string) error {
	return To(engine, dsn, VersionBase)
}

// IndexDDL returns the engine's index migration script, the three CREATE
// INDEX statements from the tuning pass.
func IndexDDL(engine string) (string, error) {
	data, err := files.ReadFile(engine + "/000002_cart_total_indexes.up.sql")
	if err != nil {
		return "", fmt.Errorf("read %s index migration: %w", engine, err)
	}
	return string(data), nil
}

// To migrates the schema to the requested version, in either direction.
// Already being at the version is not an error.
func To(engine, dsn string, version uint) error {
	m, cleanup, err := newMigrate(engine, dsn)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s to version %d: %w", engine, version, err)
	}
	return nil
}

// Down reverts every migration, dropping the tables.
func Down(engine, dsn string) error {
	m, cleanup, err := newMigrate(engine, dsn)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s down: %w", engine, err)
	}
	return nil
}

// Version reports the current schema version. A fresh database reports 0.
func Version(engine, dsn string) (uint, bool, error) {
	m, cleanup, err := newMigrate(engine, dsn)
	if err != nil {
		return 0, false, err
	}
	defer cleanup()

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read %s schema version: %w", engine, err)
	}
	return v, dirty, nil
}

func newMigrate(engine, dsn string) (*migrate.Migrate, func(), error) {
	src, err := iofs.New(files, engine)
	if err != nil {
		return nil, nil, fmt.Errorf("open embedded %s migrations: %w", engine, err)
	}

	db, drv, err := openTarget(engine, dsn)
	if err != nil {
		return nil, nil, err
	}

	m, err := migrate.NewWithInstance("iofs", src, engine, drv)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create %s migrator: %w", engine, err)
	}
	return m, func() { _ = db.Close() }, nil
}

// openTarget opens a connection dedicated to migrations. PostgreSQL goes
// through lib/pq because its simple query protocol runs multi-statement
// migration files in one Exec; the lab's pgx connection cannot.
func openTarget(engine, dsn string) (*sql.DB, migdb.Driver, error) {
	switch engine {
	case database.EnginePostgres:
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres for migrations: %w", err)
		}
		drv, err := migpostgres.WithInstance(db, &migpostgres.Config{})
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("wrap postgres for migrations: %w", err)
		}
		return db, drv, nil

	case database.EngineMySQL:
		multiDSN, err := withMultiStatements(dsn)
		if err != nil {
			return nil, nil, err
		}
		db, err := sql.Open("mysql", multiDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql for migrations: %w", err)
		}
		drv, err := migmysql.WithInstance(db, &migmysql.Config{})
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("wrap mysql for migrations: %w", err)
		}
		return db, drv, nil

	case database.EngineSQLite:
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite for migrations: %w", err)
		}
		drv, err := migsqlite.WithInstance(db, &migsqlite.Config{})
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("wrap sqlite for migrations: %w", err)
		}
		return db, drv, nil

	default:
		return nil, nil, fmt.Errorf("unsupported engine: %s", engine)
	}
}

// withMultiStatements rewrites a MySQL DSN so migration files holding several
// statements execute in a single call.
func withMultiStatements(dsn string) (string, error) {
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.MultiStatements = true
	return cfg.FormatDSN(), nil
}
