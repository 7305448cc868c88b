package elasticsearch

import (
	"fmt"

	"github.com/utafrali/catalog/internal/search"
)

// buildSearchBody renders a search request into the query DSL.
func buildSearchBody(req search.Request) (map[string]any, error) {
	query, err := renderQuery(req.Query)
	if err != nil {
		return nil, err
	}

	body := map[string]any{"query": query}

	if len(req.Sort) > 0 {
		sort := make([]any, 0, len(req.Sort))
		for _, s := range req.Sort {
			sort = append(sort, map[string]any{
				s.Field: map[string]any{"order": string(s.Direction)},
			})
		}
		body["sort"] = sort
	}

	if req.Size > 0 {
		body["size"] = req.Size
	}

	return body, nil
}

func renderQuery(q search.Query) (map[string]any, error) {
	switch q := q.(type) {
	case nil, search.MatchAll:
		return map[string]any{"match_all": map[string]any{}}, nil

	case search.PrefixMatch:
		return map[string]any{
			"match_phrase_prefix": map[string]any{
				q.Field: map[string]any{"query": q.Text},
			},
		}, nil

	case search.RangeMatch:
		return map[string]any{
			"range": map[string]any{
				q.Field: map[string]any{"gte": q.GTE, "lte": q.LTE},
			},
		}, nil

	case search.MatchExact:
		if q.Field == search.IDField {
			return map[string]any{
				"ids": map[string]any{"values": []string{q.Value}},
			}, nil
		}
		return map[string]any{
			"term": map[string]any{q.Field: q.Value},
		}, nil

	case search.Bool:
		clauses := map[string]any{}
		for name, qs := range map[string][]search.Query{
			"should": q.Should,
			"must":   q.Must,
			"filter": q.Filter,
		} {
			if len(qs) == 0 {
				continue
			}
			rendered, err := renderQueries(qs)
			if err != nil {
				return nil, err
			}
			clauses[name] = rendered
		}
		if q.MinimumShouldMatch > 0 {
			clauses["minimum_should_match"] = q.MinimumShouldMatch
		}
		return map[string]any{"bool": clauses}, nil

	default:
		return nil, fmt.Errorf("elasticsearch: unsupported query clause %T", q)
	}
}

func renderQueries(qs []search.Query) ([]any, error) {
	out := make([]any, 0, len(qs))
	for _, q := range qs {
		r, err := renderQuery(q)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
