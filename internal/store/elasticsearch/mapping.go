package elasticsearch

import (
	"encoding/json"

	"github.com/utafrali/catalog/internal/search"
)

// keywordIgnoreAbove bounds the length of values copied into keyword
// sub-fields.
const keywordIgnoreAbove = 256

// buildIndexMapping renders the create-index body for schema. Text
// attributes are analyzed with the standard analyzer and carry a "keyword"
// sub-field for sorting and exact filtering.
func buildIndexMapping(schema search.Schema) ([]byte, error) {
	properties := make(map[string]any, len(schema.Fields))
	for _, f := range schema.Fields {
		properties[f.Name] = fieldMapping(f.Kind)
	}

	return json.Marshal(map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]any{
			"dynamic":    false,
			"properties": properties,
		},
	})
}

func fieldMapping(kind search.FieldKind) map[string]any {
	if kind == search.KindText {
		return map[string]any{
			"type": "text",
			"fields": map[string]any{
				"keyword": map[string]any{
					"type":         "keyword",
					"ignore_above": keywordIgnoreAbove,
				},
			},
		}
	}
	return map[string]any{"type": kind.String()}
}
