package search

import (
	"fmt"
	"strings"

	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// IDField addresses the store-assigned document identifier in a MatchExact
// clause.
const IDField = "_id"

// Query is a closed union of the clause kinds the repositories compose.
// Store backends translate it into their own query language with a type
// switch over the concrete types below.
type Query interface {
	isQuery()
}

// MatchAll matches every document in the index.
type MatchAll struct{}

// PrefixMatch matches documents whose analyzed Field contains Text as a
// phrase, the last term of which may be a prefix.
type PrefixMatch struct {
	Field string
	Text  string
}

// RangeMatch matches documents whose numeric Field lies in [GTE, LTE].
type RangeMatch struct {
	Field string
	GTE   float64
	LTE   float64
}

// MatchExact matches documents whose unanalyzed Field equals Value. Field may
// be IDField.
type MatchExact struct {
	Field string
	Value string
}

// Bool combines clauses. A document matches when it satisfies every Must and
// Filter clause and at least MinimumShouldMatch Should clauses.
type Bool struct {
	Should             []Query
	Must               []Query
	Filter             []Query
	MinimumShouldMatch int
}

func (MatchAll) isQuery()    {}
func (PrefixMatch) isQuery() {}
func (RangeMatch) isQuery()  {}
func (MatchExact) isQuery()  {}
func (Bool) isQuery()        {}

// Direction is a sort order.
type Direction string

// Sort directions accepted from clients.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection validates a client-supplied sort order. An empty value
// yields Asc.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(s)) {
	case "", Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	default:
		return "", apperrors.InvalidInput(fmt.Sprintf("order must be one of: %s, %s", Asc, Desc))
	}
}

// Sort orders hits by an indexed field.
type Sort struct {
	Field     string
	Direction Direction
}

// Request is what a repository hands to the document store.
type Request struct {
	Query Query
	Sort  []Sort
	Size  int
}
