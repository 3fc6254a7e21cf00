// Package seed fills the lab schema with a deterministic, reproducible data
// set so plan captures and timings are comparable across runs and engines.
package seed

import "fmt"

// The demo user the write-up's numbers describe: 18 cart items and 4 active
// orders. Joining orders on user_id therefore repeats every cart item 4
// times, which is what the duplicated-join probe measures.
const (
	DemoUserID       = 1
	DemoCartItems    = 18
	DemoActiveOrders = 4
)

var orderStatuses = []string{"active", "completed", "cancelled", "pending"}

// Profile sizes the generated data set. The same seed always produces the
// same rows.
type Profile struct {
	Users       int
	Products    int
	Orders      int
	CartItems   int
	ActiveRatio float64
	Seed        int64
}

func (p Profile) validate() error {
	switch {
	case p.Users < 2:
		return fmt.Errorf("seed profile: need at least 2 users, got %d", p.Users)
	case p.Products < DemoCartItems:
		return fmt.Errorf("seed profile: need at least %d products, got %d", DemoCartItems, p.Products)
	case p.Orders < DemoActiveOrders:
		return fmt.Errorf("seed profile: need at least %d orders, got %d", DemoActiveOrders, p.Orders)
	case p.CartItems < DemoCartItems:
		return fmt.Errorf("seed profile: need at least %d cart items, got %d", DemoCartItems, p.CartItems)
	case p.ActiveRatio < 0 || p.ActiveRatio > 1:
		return fmt.Errorf("seed profile: active ratio %v outside [0, 1]", p.ActiveRatio)
	}
	return nil
}

// Summary reports how many rows the seeder wrote.
type Summary struct {
	Users     int `json:"users"`
	Products  int `json:"products"`
	Orders    int `json:"orders"`
	CartItems int `json:"cart_items"`
}
