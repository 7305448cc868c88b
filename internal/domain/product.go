package domain

import "github.com/utafrali/catalog/internal/search"

// Product is a catalog item with a unit price and available stock.
type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

// SetID assigns the store identifier.
func (p *Product) SetID(id string) { p.ID = id }

// Sortable product attributes.
const (
	ProductSortName  = "name"
	ProductSortPrice = "price"
	ProductSortStock = "stock"
)

// ProductSchema describes the products index.
var ProductSchema = search.Schema{
	Index: "products",
	Fields: []search.Field{
		{Name: "name", Kind: search.KindText},
		{Name: "price", Kind: search.KindDouble},
		{Name: "stock", Kind: search.KindInteger},
	},
	Sortable: []string{ProductSortName, ProductSortPrice, ProductSortStock},
}
