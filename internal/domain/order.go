package domain

import "github.com/utafrali/catalog/internal/search"

// Order records the purchase of Amount units of a product by a customer. The
// names and unit price are snapshots taken when the order was placed.
type Order struct {
	ID           string  `json:"id"`
	ProductID    string  `json:"productId"`
	CustomerID   string  `json:"customerId"`
	ProductName  string  `json:"productName"`
	CustomerName string  `json:"customerName"`
	Price        float64 `json:"price"`
	Amount       int     `json:"amount"`
}

// SetID assigns the store identifier.
func (o *Order) SetID(id string) { o.ID = id }

// Total returns the order value.
func (o *Order) Total() float64 {
	return o.Price * float64(o.Amount)
}

// Sortable order attributes.
const (
	OrderSortProductName  = "productName"
	OrderSortCustomerName = "customerName"
	OrderSortPrice        = "price"
	OrderSortAmount       = "amount"
)

// Attributes an order listing can be scoped by.
const (
	OrderScopeProduct  = "productId"
	OrderScopeCustomer = "customerId"
)

// IsValidOrderScope reports whether variant names a scopable order reference.
func IsValidOrderScope(variant string) bool {
	return variant == OrderScopeProduct || variant == OrderScopeCustomer
}

// OrderSchema describes the orders index.
var OrderSchema = search.Schema{
	Index: "orders",
	Fields: []search.Field{
		{Name: "productName", Kind: search.KindText},
		{Name: "productId", Kind: search.KindKeyword},
		{Name: "customerName", Kind: search.KindText},
		{Name: "customerId", Kind: search.KindKeyword},
		{Name: "price", Kind: search.KindDouble},
		{Name: "amount", Kind: search.KindInteger},
	},
	Sortable: []string{OrderSortProductName, OrderSortCustomerName, OrderSortPrice, OrderSortAmount},
}
