package domain

import "github.com/utafrali/catalog/internal/search"

// Customer accumulates the revenue (yield) and number of purchases of the
// orders placed in their name.
type Customer struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Yield     float64 `json:"yield"`
	Purchases int     `json:"purchases"`
}

// SetID assigns the store identifier.
func (c *Customer) SetID(id string) { c.ID = id }

// Accrue records one purchase worth total.
func (c *Customer) Accrue(total float64) {
	c.Yield += total
	c.Purchases++
}

// Sortable customer attributes.
const (
	CustomerSortName      = "name"
	CustomerSortYield     = "yield"
	CustomerSortPurchases = "purchases"
)

// CustomerSchema describes the customers index.
var CustomerSchema = search.Schema{
	Index: "customers",
	Fields: []search.Field{
		{Name: "name", Kind: search.KindText},
		{Name: "yield", Kind: search.KindDouble},
		{Name: "purchases", Kind: search.KindInteger},
	},
	Sortable: []string{CustomerSortName, CustomerSortYield, CustomerSortPurchases},
}
