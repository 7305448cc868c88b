package search

import (
	"fmt"
	"strings"

	apperrors "github.com/utafrali/catalog/pkg/errors"
)

// KeywordSuffix is the name of the unanalyzed sub-field stored next to every
// text field. Sorting and exact filtering on text attributes go through it.
const KeywordSuffix = ".keyword"

// FieldKind describes how an attribute is indexed.
type FieldKind int

const (
	// KindText is analyzed for prefix search and carries a keyword sub-field.
	KindText FieldKind = iota
	// KindKeyword is stored verbatim; used for reference ids.
	KindKeyword
	// KindDouble is a floating point number.
	KindDouble
	// KindInteger is a whole number.
	KindInteger
)

// String returns the store-neutral name of the kind.
func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindKeyword:
		return "keyword"
	case KindDouble:
		return "double"
	case KindInteger:
		return "integer"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether the kind takes part in numeric range matching.
func (k FieldKind) IsNumeric() bool {
	return k == KindDouble || k == KindInteger
}

// Field is one attribute of an entity schema.
type Field struct {
	Name string
	Kind FieldKind
}

// Schema describes one entity collection: its index name and the attributes
// the store must map.
type Schema struct {
	Index  string
	Fields []Field
	// Sortable lists the attribute names accepted as a sort-by value, in the
	// order they are advertised to clients. The first entry is the default.
	Sortable []string
}

// WithIndexPrefix returns a copy of s whose index name starts with prefix.
func (s Schema) WithIndexPrefix(prefix string) Schema {
	s.Index = prefix + s.Index
	return s
}

// Field returns the attribute with the given name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// TextFields returns the names of all analyzed text attributes.
func (s Schema) TextFields() []string {
	return s.fieldsWhere(func(f Field) bool { return f.Kind == KindText })
}

// NumericFields returns the names of all numeric attributes.
func (s Schema) NumericFields() []string {
	return s.fieldsWhere(func(f Field) bool { return f.Kind.IsNumeric() })
}

func (s Schema) fieldsWhere(pred func(Field) bool) []string {
	var names []string
	for _, f := range s.Fields {
		if pred(f) {
			names = append(names, f.Name)
		}
	}
	return names
}

// DefaultSort returns the attribute used when a client does not pick one.
func (s Schema) DefaultSort() string {
	if len(s.Sortable) == 0 {
		return ""
	}
	return s.Sortable[0]
}

// SortField resolves a client sort-by value to the indexed field the store
// must sort on. Text attributes sort on their keyword sub-field, everything
// else on the raw field.
func (s Schema) SortField(sortBy string) (string, error) {
	if !s.isSortable(sortBy) {
		return "", apperrors.InvalidInput(fmt.Sprintf("sort-by must be one of: %s", strings.Join(s.Sortable, ", ")))
	}
	f, ok := s.Field(sortBy)
	if !ok {
		return "", apperrors.InvalidInput(fmt.Sprintf("unknown field %q", sortBy))
	}
	if f.Kind == KindText {
		return f.Name + KeywordSuffix, nil
	}
	return f.Name, nil
}

func (s Schema) isSortable(name string) bool {
	for _, n := range s.Sortable {
		if n == name {
			return true
		}
	}
	return false
}
