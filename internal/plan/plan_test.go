package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pgSeqScanPlan = `[
  {
    "Plan": {
      "Node Type": "Aggregate",
      "Plan Rows": 1,
      "Actual Rows": 1,
      "Plans": [
        {
          "Node Type": "Nested Loop",
          "Plan Rows": 68,
          "Actual Rows": 72,
          "Plans": [
            {
              "Node Type": "Seq Scan",
              "Relation Name": "cart_items",
              "Plan Rows": 18,
              "Actual Rows": 18
            },
            {
              "Node Type": "Seq Scan",
              "Relation Name": "orders",
              "Plan Rows": 4,
              "Actual Rows": 4
            }
          ]
        }
      ]
    },
    "Planning Time": 0.21,
    "Execution Time": 12.47
  }
]`

const pgIndexScanPlan = `[
  {
    "Plan": {
      "Node Type": "Aggregate",
      "Plan Rows": 1,
      "Actual Rows": 1,
      "Plans": [
        {
          "Node Type": "Nested Loop",
          "Plan Rows": 68,
          "Actual Rows": 72,
          "Plans": [
            {
              "Node Type": "Index Scan",
              "Relation Name": "cart_items",
              "Index Name": "idx_cart_items_user_id",
              "Plan Rows": 18,
              "Actual Rows": 18
            },
            {
              "Node Type": "Index Only Scan",
              "Relation Name": "orders",
              "Index Name": "idx_orders_user_id_status",
              "Plan Rows": 4,
              "Actual Rows": 4
            }
          ]
        }
      ]
    },
    "Planning Time": 0.35,
    "Execution Time": 0.58
  }
]`

func TestParsePostgresSeqScans(t *testing.T) {
	r, err := ParsePostgres([]byte(pgSeqScanPlan))
	require.NoError(t, err)

	assert.Equal(t, "postgres", r.Engine)
	assert.Contains(t, r.NodeTypes, "Aggregate")
	assert.Contains(t, r.NodeTypes, "Seq Scan")
	assert.Equal(t, []string{"cart_items", "orders"}, r.TableScans)
	assert.Empty(t, r.IndexesUsed)
	assert.True(t, r.ScansTable("cart_items"))
	assert.False(t, r.ScansTable("products"))

	assert.EqualValues(t, 1, r.EstimatedRows)
	assert.EqualValues(t, 1, r.ActualRows)
	assert.EqualValues(t, 72, r.PeakActualRows, "the join node carries the fanned-out rows")
	assert.Equal(t, 0.21, r.PlanningMS)
	assert.Equal(t, 12.47, r.ExecutionMS)
	assert.NotEmpty(t, r.Raw)
}

func TestParsePostgresIndexScans(t *testing.T) {
	r, err := ParsePostgres([]byte(pgIndexScanPlan))
	require.NoError(t, err)

	assert.True(t, r.UsesIndex("idx_cart_items_user_id"))
	assert.True(t, r.UsesIndex("idx_orders_user_id_status"))
	assert.False(t, r.UsesIndex("idx_cart_items_product_id"))
	assert.Empty(t, r.TableScans)
	assert.EqualValues(t, 72, r.PeakActualRows)
	assert.Equal(t, 0.58, r.ExecutionMS)
}

func TestParsePostgresRejectsBadInput(t *testing.T) {
	_, err := ParsePostgres([]byte("{"))
	require.Error(t, err)

	_, err = ParsePostgres([]byte("[]"))
	require.ErrorContains(t, err, "empty document")
}

const mysqlIndexPlan = `-> Aggregate: sum((ci.price * ci.quantity))  (cost=8.95 rows=1) (actual time=0.123..0.124 rows=1 loops=1)
    -> Nested loop inner join  (cost=6.25 rows=27) (actual time=0.055..0.102 rows=72 loops=1)
        -> Index lookup on o using idx_orders_user_id_status (user_id=1, status='active')  (cost=1.40 rows=4) (actual time=0.024..0.026 rows=4 loops=1)
        -> Index lookup on ci using idx_cart_items_user_id (user_id=1)  (cost=1.21 rows=7) (actual time=0.008..0.016 rows=18 loops=4)
`

const mysqlTableScanPlan = `-> Aggregate: sum((p.price * ci.quantity))  (cost=13.75 rows=1) (actual time=0.512..0.512 rows=1 loops=1)
    -> Inner hash join (ci.product_id = p.id)  (cost=11.00 rows=27) (actual time=0.301..0.476 rows=72 loops=1)
        -> Table scan on ci  (cost=2.65 rows=18) (actual time=0.019..0.051 rows=18 loops=1)
        -> Hash
            -> Table scan on p  (cost=4.15 rows=40) (actual time=0.012..0.133 rows=40 loops=1)
`

func TestParseMySQLIndexLookups(t *testing.T) {
	r, err := ParseMySQL(mysqlIndexPlan)
	require.NoError(t, err)

	assert.Equal(t, "mysql", r.Engine)
	assert.True(t, r.UsesIndex("idx_orders_user_id_status"))
	assert.True(t, r.UsesIndex("idx_cart_items_user_id"))
	assert.Empty(t, r.TableScans)

	// The first node is the plan root.
	assert.EqualValues(t, 1, r.EstimatedRows)
	assert.EqualValues(t, 1, r.ActualRows)
	assert.Equal(t, 0.124, r.ExecutionMS)
	assert.EqualValues(t, 72, r.PeakActualRows)
}

func TestParseMySQLTableScans(t *testing.T) {
	r, err := ParseMySQL(mysqlTableScanPlan)
	require.NoError(t, err)

	assert.Equal(t, []string{"ci", "p"}, r.TableScans)
	assert.Empty(t, r.IndexesUsed)
	assert.Contains(t, r.NodeTypes, "Hash")
	assert.EqualValues(t, 72, r.PeakActualRows)
}

func TestParseMySQLRejectsNonPlanOutput(t *testing.T) {
	_, err := ParseMySQL("mysql: syntax error near 'EXPLAIN ANALYZE'")
	require.ErrorContains(t, err, "no plan nodes")
}

func TestParseSQLiteIndexSearch(t *testing.T) {
	r := ParseSQLite([]string{
		"SEARCH ci USING INDEX idx_cart_items_user_id (user_id=?)",
		"SEARCH o USING COVERING INDEX idx_orders_user_id_status (user_id=? AND status=?)",
	})

	assert.Equal(t, "sqlite", r.Engine)
	assert.True(t, r.UsesIndex("idx_cart_items_user_id"))
	assert.True(t, r.UsesIndex("idx_orders_user_id_status"))
	assert.Empty(t, r.TableScans)
	assert.NotEmpty(t, r.Raw)
}

func TestParseSQLiteScans(t *testing.T) {
	r := ParseSQLite([]string{"SCAN ci", "SCAN o"})
	assert.Equal(t, []string{"ci", "o"}, r.TableScans)
	assert.Empty(t, r.IndexesUsed)

	// Older SQLite versions spell out the table.
	r = ParseSQLite([]string{"SCAN TABLE cart_items AS ci"})
	assert.True(t, r.ScansTable("cart_items"))
}

func TestParseSQLiteIgnoresAutomaticIndexes(t *testing.T) {
	r := ParseSQLite([]string{
		"SCAN ci",
		"SEARCH o USING AUTOMATIC COVERING INDEX (user_id=?)",
	})
	assert.Empty(t, r.IndexesUsed, "automatic indexes are not the lab's indexes")
}

func TestParseSQLiteEmpty(t *testing.T) {
	r := ParseSQLite(nil)
	assert.Empty(t, r.NodeTypes)
	assert.Empty(t, r.IndexesUsed)
	assert.Empty(t, r.TableScans)
}
