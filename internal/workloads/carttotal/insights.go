package carttotal

import (
	"fmt"

	"github.com/Efreh/sqlOptimizer/internal/plan"
	"github.com/Efreh/sqlOptimizer/internal/report"
)

// deriveInsights flags what a reviewer of the run would: scans surviving the
// index migration, the retained product index the optimized query never
// reads, the join fanout, and the headline speedup.
func deriveInsights(c *report.Comparison) []plan.Insight {
	var insights []plan.Insight

	if post := c.Plans.OptimizedPostIndex; post != nil {
		for _, table := range post.TableScans {
			insights = append(insights, plan.Insight{
				Level:    plan.LevelWarning,
				Category: plan.CategorySeqScan,
				Message:  fmt.Sprintf("optimized query still scans %s after the index migration", table),
			})
		}
		if post.UsesIndex(IndexCartItemsUserID) || post.UsesIndex(IndexOrdersUserIDStatus) {
			insights = append(insights, plan.Insight{
				Level:    plan.LevelSuccess,
				Category: plan.CategoryIndexUsage,
				Message:  fmt.Sprintf("optimized query reads through %v", post.IndexesUsed),
			})
		}
		if !post.UsesIndex(IndexCartItemsProductID) {
			insights = append(insights, plan.Insight{
				Level:    plan.LevelInfo,
				Category: plan.CategoryUnusedIndex,
				Message:  IndexCartItemsProductID + " is never read by the optimized query; only the baseline's products join can use it",
			})
		}
	}

	if f := c.Fanout; f != nil && f.JoinRows > f.CartRows {
		insights = append(insights, plan.Insight{
			Level:    plan.LevelWarning,
			Category: plan.CategoryRowFanout,
			Message: fmt.Sprintf("orders join multiplies %d cart rows into %d before SUM (%d active orders); both variants share this",
				f.CartRows, f.JoinRows, f.ActiveOrders),
		})
	}

	if c.Speedup > 1 {
		insights = append(insights, plan.Insight{
			Level:    plan.LevelSuccess,
			Category: plan.CategorySpeedup,
			Message:  fmt.Sprintf("optimized variant is %.2fx faster on average latency", c.Speedup),
		})
	}
	return insights
}
