package migrations

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Efreh/sqlOptimizer/internal/database"
)

func sqliteDSN(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "lab.db")
}

func indexNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_%' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestBaseCreatesTablesWithoutIndexes(t *testing.T) {
	dsn := sqliteDSN(t)
	require.NoError(t, Base(database.EngineSQLite, dsn))

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"users", "products", "orders", "cart_items"} {
		var count int
		err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count)
		require.NoError(t, err)
		require.Equal(t, 1, count, "table %s should exist", table)
	}
	require.Empty(t, indexNames(t, db))
}

func TestApplyAndRollbackIndexes(t *testing.T) {
	dsn := sqliteDSN(t)
	require.NoError(t, ApplyIndexes(database.EngineSQLite, dsn))

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	require.Equal(t, []string{
		"idx_cart_items_product_id",
		"idx_cart_items_user_id",
		"idx_orders_user_id_status",
	}, indexNames(t, db))

	require.NoError(t, RollbackIndexes(database.EngineSQLite, dsn))
	require.Empty(t, indexNames(t, db))
}

func TestToSameVersionIsNotAnError(t *testing.T) {
	dsn := sqliteDSN(t)
	require.NoError(t, ApplyIndexes(database.EngineSQLite, dsn))
	require.NoError(t, ApplyIndexes(database.EngineSQLite, dsn))

	v, dirty, err := Version(database.EngineSQLite, dsn)
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, VersionIndexes, v)
}

func TestDownDropsEverything(t *testing.T) {
	dsn := sqliteDSN(t)
	require.NoError(t, ApplyIndexes(database.EngineSQLite, dsn))
	require.NoError(t, Down(database.EngineSQLite, dsn))

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	var count int
	err = db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('users', 'products', 'orders', 'cart_items')`).Scan(&count)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestVersionOnFreshDatabase(t *testing.T) {
	v, dirty, err := Version(database.EngineSQLite, sqliteDSN(t))
	require.NoError(t, err)
	require.False(t, dirty)
	require.Zero(t, v)
}

func TestUnsupportedEngine(t *testing.T) {
	err := Base("oracle", "ignored")
	require.ErrorContains(t, err, "unsupported engine")
}

func TestIndexDDLCarriesAllThreeIndexes(t *testing.T) {
	for _, engine := range []string{"postgres", "mysql", "sqlite"} {
		ddl, err := IndexDDL(engine)
		require.NoError(t, err, engine)
		require.Contains(t, ddl, "CREATE INDEX idx_cart_items_user_id ON cart_items (user_id)", engine)
		require.Contains(t, ddl, "CREATE INDEX idx_orders_user_id_status ON orders (user_id, status)", engine)
		require.Contains(t, ddl, "CREATE INDEX idx_cart_items_product_id ON cart_items (product_id)", engine)
	}

	_, err := IndexDDL("oracle")
	require.Error(t, err)
}
