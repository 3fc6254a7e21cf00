package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/Efreh/sqlOptimizer/internal/database"
)

const insertBatchSize = 500

// Run populates the four tables. It assumes the base schema exists and the
// tables are empty. Every cart item copies its price from the product it
// references, so the baseline and optimized totals can be compared.
func Run(ctx context.Context, drv database.Driver, profile Profile) (*Summary, error) {
	if err := profile.validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(profile.Seed))

	users := make([][]any, 0, profile.Users)
	for id := 1; id <= profile.Users; id++ {
		users = append(users, []any{id, fmt.Sprintf("user-%d", id), fmt.Sprintf("user-%d@example.com", id)})
	}
	if err := insertRows(ctx, drv, "users", []string{"id", "name", "email"}, users); err != nil {
		return nil, err
	}

	// prices[id] is the product's price, kept so cart items can copy it.
	prices := make(map[int]float64, profile.Products)
	products := make([][]any, 0, profile.Products)
	for id := 1; id <= profile.Products; id++ {
		price := float64(rng.Intn(49901)+100) / 100
		prices[id] = price
		products = append(products, []any{id, fmt.Sprintf("product-%d", id), price})
	}
	if err := insertRows(ctx, drv, "products", []string{"id", "name", "price"}, products); err != nil {
		return nil, err
	}

	// The demo user's orders come first so their count is exact; filler
	// orders go to users 2..N and never touch the demo user.
	orders := make([][]any, 0, profile.Orders)
	for id := 1; id <= DemoActiveOrders; id++ {
		orders = append(orders, []any{id, DemoUserID, "active"})
	}
	for id := DemoActiveOrders + 1; id <= profile.Orders; id++ {
		status := orderStatuses[1+rng.Intn(len(orderStatuses)-1)]
		if rng.Float64() < profile.ActiveRatio {
			status = "active"
		}
		orders = append(orders, []any{id, fillerUser(rng, profile.Users), status})
	}
	if err := insertRows(ctx, drv, "orders", []string{"id", "user_id", "status"}, orders); err != nil {
		return nil, err
	}

	items := make([][]any, 0, profile.CartItems)
	for i, productID := range rng.Perm(profile.Products)[:DemoCartItems] {
		productID++
		items = append(items, []any{i + 1, DemoUserID, productID, prices[productID], 1 + rng.Intn(5)})
	}
	for id := DemoCartItems + 1; id <= profile.CartItems; id++ {
		productID := 1 + rng.Intn(profile.Products)
		items = append(items, []any{id, fillerUser(rng, profile.Users), productID, prices[productID], 1 + rng.Intn(5)})
	}
	if err := insertRows(ctx, drv, "cart_items", []string{"id", "user_id", "product_id", "price", "quantity"}, items); err != nil {
		return nil, err
	}

	return &Summary{
		Users:     profile.Users,
		Products:  profile.Products,
		Orders:    profile.Orders,
		CartItems: profile.CartItems,
	}, nil
}

// fillerUser picks a user other than the demo user.
func fillerUser(rng *rand.Rand, users int) int {
	return 2 + rng.Intn(users-1)
}

func insertRows(ctx context.Context, drv database.Driver, table string, columns []string, rows [][]any) error {
	for start := 0; start < len(rows); start += insertBatchSize {
		end := min(start+insertBatchSize, len(rows))
		if err := insertChunk(ctx, drv, table, columns, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func insertChunk(ctx context.Context, drv database.Driver, table string, columns []string, rows [][]any) error {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	n := 1
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := range columns {
			if j > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", n)
			n++
		}
		sb.WriteByte(')')
		args = append(args, row...)
	}

	if err := drv.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert %s rows: %w", table, err)
	}
	return nil
}
