package carttotal

import (
	"context"
	"fmt"
	"math"

	"github.com/Efreh/sqlOptimizer/internal/database"
	"github.com/Efreh/sqlOptimizer/internal/report"
)

// ParityTolerance absorbs numeric-type differences between engines when the
// two variants' totals are compared. Half a cent.
const ParityTolerance = 0.005

const (
	cartRowsQuery     = `SELECT count(*) FROM cart_items WHERE user_id = $1`
	activeOrdersQuery = `SELECT count(*) FROM orders WHERE user_id = $1 AND status = 'active'`

	// The baseline's orders join without the SUM, so the duplication is
	// visible as a row count.
	joinRowsQuery = `
SELECT count(*)
FROM cart_items ci
JOIN orders o ON o.user_id = ci.user_id
WHERE ci.user_id = $1
  AND o.status = 'active'`
)

// VerifyParity runs both variants for one user and checks that the totals
// agree within ParityTolerance. NULL agrees only with NULL.
func VerifyParity(ctx context.Context, drv database.Driver, userID int64) (*report.Parity, error) {
	baseline, err := TotalCost(ctx, drv, VariantBaseline, userID)
	if err != nil {
		return nil, err
	}
	optimized, err := TotalCost(ctx, drv, VariantOptimized, userID)
	if err != nil {
		return nil, err
	}

	return &report.Parity{
		UserID:         userID,
		BaselineTotal:  baseline,
		OptimizedTotal: optimized,
		Tolerance:      ParityTolerance,
		Match:          totalsAgree(baseline, optimized),
	}, nil
}

// totalsAgree compares two totals: NULL agrees only with NULL, values agree
// within ParityTolerance.
func totalsAgree(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(*a-*b) <= ParityTolerance
}

// MeasureFanout counts how many rows the orders join feeds into the SUM for
// one user. With N cart rows and K active orders the join returns N*K rows.
func MeasureFanout(ctx context.Context, drv database.Driver, userID int64) (*report.Fanout, error) {
	f := &report.Fanout{UserID: userID}

	if err := drv.QueryRow(ctx, cartRowsQuery, userID).Scan(&f.CartRows); err != nil {
		return nil, fmt.Errorf("count cart rows for user %d: %w", userID, err)
	}
	if err := drv.QueryRow(ctx, activeOrdersQuery, userID).Scan(&f.ActiveOrders); err != nil {
		return nil, fmt.Errorf("count active orders for user %d: %w", userID, err)
	}
	if err := drv.QueryRow(ctx, joinRowsQuery, userID).Scan(&f.JoinRows); err != nil {
		return nil, fmt.Errorf("count join rows for user %d: %w", userID, err)
	}
	if f.CartRows > 0 {
		f.Multiplier = float64(f.JoinRows) / float64(f.CartRows)
	}
	return f, nil
}
