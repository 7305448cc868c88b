package search

import (
	"fmt"
	"math"
	"strconv"

	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// ParseNumber reports whether s reads as a finite number. The same rule
// decides whether a free-text search also range-matches numeric attributes.
func ParseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// BuildSearchQuery turns a free-text search into a disjunctive query over the
// schema: a prefix-phrase clause per text attribute and, when freeText is
// numeric, an equality range per numeric attribute. At least one clause must
// match.
func BuildSearchQuery(freeText, sortBy string, dir Direction, schema Schema) (Query, Sort, error) {
	sort, err := resolveSort(sortBy, dir, schema)
	if err != nil {
		return nil, Sort{}, err
	}

	var should []Query
	for _, name := range schema.TextFields() {
		should = append(should, PrefixMatch{Field: name, Text: freeText})
	}

	if v, ok := ParseNumber(freeText); ok {
		for _, name := range schema.NumericFields() {
			should = append(should, RangeMatch{Field: name, GTE: v, LTE: v})
		}
	}

	return Bool{Should: should, MinimumShouldMatch: 1}, sort, nil
}

// BuildListAllQuery returns a match-everything query with the resolved sort.
func BuildListAllQuery(sortBy string, dir Direction, schema Schema) (Query, Sort, error) {
	sort, err := resolveSort(sortBy, dir, schema)
	if err != nil {
		return nil, Sort{}, err
	}
	return MatchAll{}, sort, nil
}

// BuildScopedQuery restricts inner to documents whose keyword attribute
// field equals value.
func BuildScopedQuery(field, value string, inner Query, schema Schema) (Query, error) {
	f, ok := schema.Field(field)
	if !ok || f.Kind != KindKeyword {
		return nil, apperrors.InvalidInput(fmt.Sprintf("cannot scope %s by %q", schema.Index, field))
	}
	return Bool{
		Must:   []Query{inner},
		Filter: []Query{MatchExact{Field: field, Value: value}},
	}, nil
}

// BuildIDQuery matches the single document stored under id.
func BuildIDQuery(id string) Query {
	return MatchExact{Field: IDField, Value: id}
}

func resolveSort(sortBy string, dir Direction, schema Schema) (Sort, error) {
	if sortBy == "" {
		sortBy = schema.DefaultSort()
	}
	field, err := schema.SortField(sortBy)
	if err != nil {
		return Sort{}, err
	}
	if dir == "" {
		dir = Asc
	}
	if dir != Asc && dir != Desc {
		return Sort{}, apperrors.InvalidInput(fmt.Sprintf("order must be one of: %s, %s", Asc, Desc))
	}
	return Sort{Field: field, Direction: dir}, nil
}
