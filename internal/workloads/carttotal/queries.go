// Package carttotal is the lab's experiment: one cart total query, rewritten
// to drop a redundant products join, captured and timed before and after the
// three indexes from the tuning pass.
package carttotal

import (
	"context"
	"fmt"

	"github.com/Efreh/sqlOptimizer/internal/database"
)

// Variant names.
const (
	VariantBaseline  = "baseline"
	VariantOptimized = "optimized"
)

// The three indexes the tuning pass creates.
const (
	IndexCartItemsUserID    = "idx_cart_items_user_id"
	IndexOrdersUserIDStatus = "idx_orders_user_id_status"
	IndexCartItemsProductID = "idx_cart_items_product_id"
)

// BaselineQuery is the original query. It joins products to read the price
// even though cart_items already carries one, and its orders join matches on
// user_id alone, so every active order duplicates every cart row before the
// SUM.
const BaselineQuery = `
SELECT SUM(p.price * ci.quantity) AS total_cost
FROM cart_items ci
JOIN orders o ON o.user_id = ci.user_id
JOIN products p ON p.id = ci.product_id
WHERE ci.user_id = $1
  AND o.status = 'active'`

// OptimizedQuery is the rewrite: the price comes from cart_items, so the
// products join is gone. The orders join and its row duplication are
// deliberately untouched; the rewrite changes cost, not meaning.
const OptimizedQuery = `
SELECT SUM(ci.price * ci.quantity) AS total_cost
FROM cart_items ci
JOIN orders o ON o.user_id = ci.user_id
WHERE ci.user_id = $1
  AND o.status = 'active'`

// Queries maps variant name to SQL.
var Queries = map[string]string{
	VariantBaseline:  BaselineQuery,
	VariantOptimized: OptimizedQuery,
}

// QueryFor returns the SQL for a variant name.
func QueryFor(variant string) (string, error) {
	q, ok := Queries[variant]
	if !ok {
		return "", fmt.Errorf("unknown variant %q (want %s or %s)", variant, VariantBaseline, VariantOptimized)
	}
	return q, nil
}

// TotalCost runs one variant for one user. A nil result is the SQL NULL that
// SUM returns when the user has no cart items or no active orders.
func TotalCost(ctx context.Context, drv database.Driver, variant string, userID int64) (*float64, error) {
	query, err := QueryFor(variant)
	if err != nil {
		return nil, err
	}
	var total *float64
	if err := drv.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return nil, fmt.Errorf("%s total for user %d: %w", variant, userID, err)
	}
	return total, nil
}
