// Package bleve implements store.DocumentStore with embedded bleve indexes,
// either in memory or on disk. It serves single-node deployments that do not
// run an Elasticsearch cluster.
package bleve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevesearch "github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/utafrali/catalog/internal/search"
	"github.com/utafrali/catalog/internal/store"
	apperrors "github.com/utafrali/catalog/pkg/errors"
)

var _ store.DocumentStore = (*Store)(nil)

const (
	// IndexSuffix is appended to index names to form on-disk directories.
	IndexSuffix = ".bleve"

	// sourceField holds the original JSON body. It is stored, never indexed.
	sourceField = "_source"

	// defaultSize mirrors the Elasticsearch default page size.
	defaultSize = 10
)

// Store keeps one bleve index per collection.
type Store struct {
	dir    string
	logger *slog.Logger

	// mu guards indexes and serializes writes so the created/updated
	// outcome of a write is exact.
	mu      sync.Mutex
	indexes map[string]bleve.Index
}

// New returns a store that keeps its indexes under dir. An empty dir keeps
// them in memory only.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("bleve: create index directory: %w", err)
		}
	}
	return &Store{
		dir:     dir,
		logger:  logger,
		indexes: make(map[string]bleve.Index),
	}, nil
}

func (s *Store) indexPath(name string) string {
	return filepath.Join(s.dir, name+IndexSuffix)
}

// IndexExists reports whether the index is open or present on disk.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.lookup(name)
	if err != nil {
		return false, err
	}
	return idx != nil, nil
}

// CreateIndex builds the index from the schema. An existing index is kept.
func (s *Store) CreateIndex(ctx context.Context, schema search.Schema) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.lookup(schema.Index)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	var idx bleve.Index
	if s.dir == "" {
		idx, err = bleve.NewMemOnly(buildIndexMapping(schema))
	} else {
		idx, err = bleve.New(s.indexPath(schema.Index), buildIndexMapping(schema))
	}
	if err != nil {
		return apperrors.StoreUnavailable(fmt.Errorf("bleve: create index %s: %w", schema.Index, err))
	}

	s.indexes[schema.Index] = idx
	s.logger.InfoContext(ctx, "bleve index created", "index", schema.Index, "persistent", s.dir != "")
	return nil
}

// IndexDocument stores body under id.
func (s *Store) IndexDocument(ctx context.Context, name, id string, body []byte) (store.Outcome, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", apperrors.InvalidInput(fmt.Sprintf("document body is not a JSON object: %v", err))
	}
	doc[sourceField] = string(body)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.mustLookup(name)
	if err != nil {
		return "", err
	}

	existing, err := idx.Document(id)
	if err != nil {
		return "", apperrors.StoreUnavailable(fmt.Errorf("bleve: load document %s: %w", id, err))
	}

	if err := idx.Index(id, doc); err != nil {
		return "", apperrors.StoreUnavailable(fmt.Errorf("bleve: index document %s: %w", id, err))
	}

	if existing != nil {
		return store.OutcomeUpdated, nil
	}
	return store.OutcomeCreated, nil
}

// DeleteDocument removes the document stored under id.
func (s *Store) DeleteDocument(ctx context.Context, name, id string) (store.Outcome, error) {
	if err := checkContext(ctx); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, err := s.mustLookup(name)
	if err != nil {
		return "", err
	}

	existing, err := idx.Document(id)
	if err != nil {
		return "", apperrors.StoreUnavailable(fmt.Errorf("bleve: load document %s: %w", id, err))
	}
	if existing == nil {
		return store.OutcomeNotFound, nil
	}

	if err := idx.Delete(id); err != nil {
		return "", apperrors.StoreUnavailable(fmt.Errorf("bleve: delete document %s: %w", id, err))
	}
	return store.OutcomeDeleted, nil
}

// Search runs req and returns the stored bodies of the matching documents.
func (s *Store) Search(ctx context.Context, name string, req search.Request) ([]store.Hit, error) {
	s.mu.Lock()
	idx, err := s.mustLookup(name)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	size := req.Size
	if size <= 0 {
		size = defaultSize
	}

	q, err := buildQuery(idx, req.Query)
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("bleve: search %s: %w", name, err))
	}

	sr := bleve.NewSearchRequestOptions(q, size, 0, false)
	sr.Fields = []string{sourceField}
	sr.SortByCustom(buildSort(req.Sort))

	res, err := idx.SearchInContext(ctx, sr)
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("bleve: search %s: %w", name, err))
	}

	hits := make([]store.Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		src, ok := h.Fields[sourceField].(string)
		if !ok {
			return nil, apperrors.StoreInconsistency("bleve: document %s in %s has no stored source", h.ID, name)
		}
		hits = append(hits, store.Hit{ID: h.ID, Source: json.RawMessage(src)})
	}
	return hits, nil
}

// Ping reports whether the store is usable.
func (s *Store) Ping(ctx context.Context) error {
	return checkContext(ctx)
}

// Close closes every open index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, idx := range s.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
		delete(s.indexes, name)
	}
	return errors.Join(errs...)
}

// lookup returns the open index, opening a persisted one on first use. A nil
// index with a nil error means the index does not exist. Callers hold mu.
func (s *Store) lookup(name string) (bleve.Index, error) {
	if idx, ok := s.indexes[name]; ok {
		return idx, nil
	}
	if s.dir == "" {
		return nil, nil
	}

	path := s.indexPath(name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.StoreUnavailable(fmt.Errorf("bleve: stat %s: %w", path, err))
	}

	idx, err := bleve.Open(path)
	if err != nil {
		return nil, apperrors.StoreUnavailable(fmt.Errorf("bleve: open %s: %w", path, err))
	}
	s.indexes[name] = idx
	return idx, nil
}

func (s *Store) mustLookup(name string) (bleve.Index, error) {
	idx, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, apperrors.StoreInconsistency("index %s does not exist", name)
	}
	return idx, nil
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperrors.StoreUnavailable(err)
	}
	return nil
}

// buildIndexMapping maps each schema attribute statically. Text attributes
// get a second, keyword-analyzed field named "<attr>.keyword".
func buildIndexMapping(schema search.Schema) mapping.IndexMapping {
	docMapping := bleve.NewDocumentStaticMapping()

	for _, f := range schema.Fields {
		switch f.Kind {
		case search.KindText:
			text := bleve.NewTextFieldMapping()
			text.Analyzer = standard.Name

			kw := bleve.NewTextFieldMapping()
			kw.Name = f.Name + search.KeywordSuffix
			kw.Analyzer = keyword.Name
			kw.IncludeInAll = false

			docMapping.AddFieldMappingsAt(f.Name, text, kw)
		case search.KindKeyword:
			kw := bleve.NewTextFieldMapping()
			kw.Analyzer = keyword.Name
			docMapping.AddFieldMappingsAt(f.Name, kw)
		case search.KindDouble, search.KindInteger:
			docMapping.AddFieldMappingsAt(f.Name, bleve.NewNumericFieldMapping())
		}
	}

	src := bleve.NewTextFieldMapping()
	src.Index = false
	src.Store = true
	src.IncludeInAll = false
	src.DocValues = false
	docMapping.AddFieldMappingsAt(sourceField, src)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// buildQuery translates q for idx. Phrase prefixes read the term
// dictionary of idx.
func buildQuery(idx bleve.Index, q search.Query) (query.Query, error) {
	switch q := q.(type) {
	case nil, search.MatchAll:
		return bleve.NewMatchAllQuery(), nil

	case search.PrefixMatch:
		return buildPhrasePrefix(idx, q.Field, q.Text)

	case search.RangeMatch:
		gte, lte := q.GTE, q.LTE
		inclusive := true
		r := bleve.NewNumericRangeInclusiveQuery(&gte, &lte, &inclusive, &inclusive)
		r.SetField(q.Field)
		return r, nil

	case search.MatchExact:
		if q.Field == search.IDField {
			return bleve.NewDocIDQuery([]string{q.Value}), nil
		}
		t := bleve.NewTermQuery(q.Value)
		t.SetField(q.Field)
		return t, nil

	case search.Bool:
		var must, should []query.Query
		for _, group := range [][]search.Query{q.Must, q.Filter} {
			for _, c := range group {
				bq, err := buildQuery(idx, c)
				if err != nil {
					return nil, err
				}
				must = append(must, bq)
			}
		}
		for _, c := range q.Should {
			bq, err := buildQuery(idx, c)
			if err != nil {
				return nil, err
			}
			should = append(should, bq)
		}
		b := query.NewBooleanQuery(must, should, nil)
		if len(should) > 0 {
			minShould := q.MinimumShouldMatch
			if minShould == 0 && len(must) == 0 {
				minShould = 1
			}
			b.SetMinShould(float64(minShould))
		}
		return b, nil

	default:
		return bleve.NewMatchNoneQuery(), nil
	}
}

// maxExpansions caps how many indexed terms the last word of a phrase
// prefix may stand for, as match_phrase_prefix does in Elasticsearch.
const maxExpansions = 50

// buildPhrasePrefix matches text as a phrase whose last word is a prefix.
// The text goes through the field analyzer, so the phrase positions match
// the ones recorded at index time, stop word gaps included. The last word
// is expanded against the field's term dictionary and must directly follow
// the phrase.
func buildPhrasePrefix(idx bleve.Index, field, text string) (query.Query, error) {
	words := strings.FieldsFunc(strings.ToLower(text), notWordRune)
	if len(words) == 0 {
		return bleve.NewMatchNoneQuery(), nil
	}

	analyzer := idx.Mapping().AnalyzerNamed(standard.Name)
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer %s not registered", standard.Name)
	}
	tokens := analyzer.Analyze([]byte(text))

	// A trailing stop word is dropped by the analyzer but still takes the
	// next position.
	last, lastPos := words[len(words)-1], 0
	if n := len(tokens); n > 0 {
		if tokens[n-1].End == len(strings.TrimRightFunc(text, notWordRune)) {
			last, lastPos = string(tokens[n-1].Term), tokens[n-1].Position
			tokens = tokens[:n-1]
		} else {
			lastPos = tokens[n-1].Position + 1
		}
	}

	if len(tokens) == 0 {
		prefix := bleve.NewPrefixQuery(last)
		prefix.SetField(field)
		return prefix, nil
	}

	expansions, err := expandPrefix(idx, field, last)
	if err != nil {
		return nil, err
	}
	if len(expansions) == 0 {
		return bleve.NewMatchNoneQuery(), nil
	}

	first := tokens[0].Position
	positions := make([][]string, lastPos-first+1)
	for _, tok := range tokens {
		positions[tok.Position-first] = append(positions[tok.Position-first], string(tok.Term))
	}
	positions[len(positions)-1] = expansions
	return query.NewMultiPhraseQuery(positions, field), nil
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func expandPrefix(idx bleve.Index, field, prefix string) ([]string, error) {
	dict, err := idx.FieldDictPrefix(field, []byte(prefix))
	if err != nil {
		return nil, fmt.Errorf("expand %q in %s: %w", prefix, field, err)
	}
	defer func() { _ = dict.Close() }()

	var terms []string
	for len(terms) < maxExpansions {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("expand %q in %s: %w", prefix, field, err)
		}
		if entry == nil {
			break
		}
		terms = append(terms, entry.Term)
	}
	return terms, nil
}

func buildSort(sorts []search.Sort) blevesearch.SortOrder {
	order := make(blevesearch.SortOrder, 0, len(sorts)+1)
	for _, s := range sorts {
		order = append(order, &blevesearch.SortField{
			Field:   s.Field,
			Desc:    s.Direction == search.Desc,
			Type:    blevesearch.SortFieldAuto,
			Mode:    blevesearch.SortFieldDefault,
			Missing: blevesearch.SortFieldMissingLast,
		})
	}
	order = append(order, &blevesearch.SortDocID{})
	return order
}
