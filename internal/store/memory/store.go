// Package memory provides an in-process DocumentStore. It evaluates the full
// query union so repository and service tests run without a search engine,
// and it backs STORE_BACKEND=memory for local development.
package memory

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/utafrali/catalog/internal/search"
	"github.com/utafrali/catalog/internal/store"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

var _ store.DocumentStore = (*Store)(nil)

type document struct {
	raw    []byte
	fields map[string]any
}

type index struct {
	schema search.Schema
	docs   map[string]document
}

// Store is a thread-safe map of indexes.
type Store struct {
	mu      sync.RWMutex
	indexes map[string]*index
}

// New creates an empty Store.
func New() *Store {
	return &Store{indexes: make(map[string]*index)}
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	return nil
}

// IndexExists reports whether the index has been created.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.indexes[name]
	return ok, nil
}

// CreateIndex creates the index. An existing index is left untouched.
func (s *Store) CreateIndex(ctx context.Context, schema search.Schema) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.indexes[schema.Index]; !ok {
		s.indexes[schema.Index] = &index{schema: schema, docs: make(map[string]document)}
	}
	return nil
}

// IndexDocument stores a copy of body under id.
func (s *Store) IndexDocument(ctx context.Context, name, id string, body []byte) (store.Outcome, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", apperrors.InvalidInput(fmt.Sprintf("document body is not a JSON object: %v", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.lookup(name)
	if err != nil {
		return "", err
	}

	outcome := store.OutcomeCreated
	if _, ok := idx.docs[id]; ok {
		outcome = store.OutcomeUpdated
	}
	idx.docs[id] = document{raw: bytes.Clone(body), fields: fields}
	return outcome, nil
}

// DeleteDocument removes the document stored under id.
func (s *Store) DeleteDocument(ctx context.Context, name, id string) (store.Outcome, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.lookup(name)
	if err != nil {
		return "", err
	}
	if _, ok := idx.docs[id]; !ok {
		return store.OutcomeNotFound, nil
	}
	delete(idx.docs, id)
	return store.OutcomeDeleted, nil
}

// Search evaluates req against every document of the index.
func (s *Store) Search(ctx context.Context, name string, req search.Request) ([]store.Hit, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		id  string
		doc document
	}
	var matched []candidate
	for id, doc := range idx.docs {
		if matches(req.Query, id, doc.fields) {
			matched = append(matched, candidate{id: id, doc: doc})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		for _, srt := range req.Sort {
			field := strings.TrimSuffix(srt.Field, search.KeywordSuffix)
			a, b := matched[i].doc.fields[field], matched[j].doc.fields[field]
			if (a == nil) != (b == nil) {
				return b == nil
			}
			c := compareValues(a, b)
			if c == 0 {
				continue
			}
			if srt.Direction == search.Desc {
				return c > 0
			}
			return c < 0
		}
		return matched[i].id < matched[j].id
	})

	if req.Size > 0 && len(matched) > req.Size {
		matched = matched[:req.Size]
	}

	hits := make([]store.Hit, 0, len(matched))
	for _, m := range matched {
		hits = append(hits, store.Hit{ID: m.id, Source: bytes.Clone(m.doc.raw)})
	}
	return hits, nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return checkContext(ctx)
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) lookup(name string) (*index, error) {
	idx, ok := s.indexes[name]
	if !ok {
		return nil, apperrors.StoreInconsistency("index %s does not exist", name)
	}
	return idx, nil
}

func matches(q search.Query, id string, fields map[string]any) bool {
	switch q := q.(type) {
	case nil, search.MatchAll:
		return true
	case search.PrefixMatch:
		s, ok := fields[q.Field].(string)
		return ok && phrasePrefix(tokenize(s), tokenize(q.Text))
	case search.RangeMatch:
		v, ok := fields[q.Field].(float64)
		return ok && v >= q.GTE && v <= q.LTE
	case search.MatchExact:
		if q.Field == search.IDField {
			return id == q.Value
		}
		s, ok := fields[strings.TrimSuffix(q.Field, search.KeywordSuffix)].(string)
		return ok && s == q.Value
	case search.Bool:
		for _, c := range q.Must {
			if !matches(c, id, fields) {
				return false
			}
		}
		for _, c := range q.Filter {
			if !matches(c, id, fields) {
				return false
			}
		}
		need := q.MinimumShouldMatch
		if need == 0 && len(q.Must) == 0 && len(q.Filter) == 0 && len(q.Should) > 0 {
			need = 1
		}
		n := 0
		for _, c := range q.Should {
			if matches(c, id, fields) {
				n++
			}
		}
		return n >= need
	default:
		return false
	}
}

// tokenize lower-cases s and splits it on anything that is not a letter or
// digit, approximating the standard analyzer.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// phrasePrefix reports whether query occurs as consecutive tokens of text,
// the last query token matching as a prefix.
func phrasePrefix(text, query []string) bool {
	if len(query) == 0 {
		return false
	}
	last := len(query) - 1
	for start := 0; start+len(query) <= len(text); start++ {
		ok := true
		for i, qt := range query {
			tt := text[start+i]
			if i == last {
				ok = strings.HasPrefix(tt, qt)
			} else {
				ok = tt == qt
			}
			if !ok {
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// compareValues orders numbers numerically and strings lexically. Missing
// values are handled by the caller and always sort last.
func compareValues(a, b any) int {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return -1
		}
		return cmp.Compare(av, bv)
	case string:
		bv, ok := b.(string)
		if !ok {
			return 1
		}
		return strings.Compare(av, bv)
	default:
		return 0
	}
}
