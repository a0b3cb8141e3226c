package keyword

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

// DefaultFacetSize is the number of body values returned when SearchRequest.FacetSize is zero.
const DefaultFacetSize = 250

// BleveIndex implements MeetingIndex using Bleve.
type BleveIndex struct {
	mu    sync.RWMutex
	path  string
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path gives an in-memory index.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	index, err := openIndex(path)
	if err != nil {
		return nil, err
	}
	return &BleveIndex{path: path, index: index}, nil
}

func openIndex(path string) (bleve.Index, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(meetingMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return index, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return index, nil
	}
	index, err := bleve.New(path, meetingMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return index, nil
}

func meetingMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// Standard analyzer (lowercase + tokenize, no stemming) so keyphrases match exact words.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(FieldBodyText, textFieldMapping)
	docMapping.AddFieldMappingsAt(FieldLatestAgenda, textFieldMapping)
	docMapping.AddFieldMappingsAt(FieldLatestMinutes, textFieldMapping)

	bodyFieldMapping := bleve.NewTextFieldMapping()
	bodyFieldMapping.Analyzer = keywordanalyzer.Name
	bodyFieldMapping.IncludeTermVectors = false
	docMapping.AddFieldMappingsAt(FieldBody, bodyFieldMapping)

	docMapping.AddFieldMappingsAt(FieldMeetingDT, bleve.NewNumericFieldMapping())

	im.AddDocumentMapping("meeting", docMapping)
	im.DefaultType = "meeting"
	im.DefaultMapping = docMapping
	return im
}

// IndexBatch indexes docs in one Bleve batch.
func (b *BleveIndex) IndexBatch(ctx context.Context, docs map[string]*MeetingDoc) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	batch := b.index.NewBatch()
	for id, doc := range docs {
		if err := batch.Index(id, doc); err != nil {
			return fmt.Errorf("failed to batch meeting %s: %w", id, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

// Search runs req and returns hits with <mark> highlights and the body facet.
func (b *BleveIndex) Search(ctx context.Context, req *SearchRequest) (*SearchResult, error) {
	size := req.Size
	if size <= 0 {
		size = 10
	}
	facetSize := req.FacetSize
	if facetSize <= 0 {
		facetSize = DefaultFacetSize
	}

	search := bleve.NewSearchRequest(buildQuery(req))
	search.Size = size
	search.SortBy([]string{"-_score", "-" + FieldMeetingDT})
	search.AddFacet(FieldBody, bleve.NewFacetRequest(FieldBody, facetSize))
	search.Highlight = bleve.NewHighlightWithStyle(html.Name)
	search.Highlight.Fields = []string{FieldBodyText, FieldLatestAgenda, FieldLatestMinutes}

	b.mu.RLock()
	results, err := b.index.SearchInContext(ctx, search)
	b.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := &SearchResult{Total: results.Total, Hits: make([]*Hit, len(results.Hits))}
	for i, hit := range results.Hits {
		out.Hits[i] = &Hit{ID: hit.ID, Score: hit.Score, Fragments: hit.Fragments}
	}
	if fr, ok := results.Facets[FieldBody]; ok && fr != nil && fr.Terms != nil {
		for _, tf := range fr.Terms.Terms() {
			out.Facet = append(out.Facet, FacetTerm{Term: tf.Term, Count: tf.Count})
		}
	}
	return out, nil
}

// buildQuery combines the keyphrase match with the body term and date range filters.
func buildQuery(req *SearchRequest) blevequery.Query {
	var clauses []blevequery.Query
	if req.Keyphrase == "" || req.Keyphrase == MatchAll {
		clauses = append(clauses, bleve.NewMatchAllQuery())
	} else {
		fields := []string{FieldBodyText, FieldLatestAgenda, FieldLatestMinutes}
		matches := make([]blevequery.Query, 0, len(fields))
		for _, f := range fields {
			mq := bleve.NewMatchQuery(req.Keyphrase)
			mq.SetField(f)
			mq.SetOperator(blevequery.MatchQueryOperatorAnd)
			matches = append(matches, mq)
		}
		clauses = append(clauses, bleve.NewDisjunctionQuery(matches...))
	}
	if req.Body != nil {
		tq := bleve.NewTermQuery(*req.Body)
		tq.SetField(FieldBody)
		clauses = append(clauses, tq)
	}
	if req.DateStart != nil || req.DateEnd != nil {
		var min, max *float64
		if req.DateStart != nil {
			v := float64(*req.DateStart)
			min = &v
		}
		if req.DateEnd != nil {
			v := float64(*req.DateEnd)
			max = &v
		}
		inclusive := true
		rq := bleve.NewNumericRangeInclusiveQuery(min, max, &inclusive, &inclusive)
		rq.SetField(FieldMeetingDT)
		clauses = append(clauses, rq)
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return bleve.NewConjunctionQuery(clauses...)
}

// Reset closes the index, removes its files and creates it again empty.
func (b *BleveIndex) Reset(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.index.Close(); err != nil {
		return fmt.Errorf("failed to close Bleve index: %w", err)
	}
	if b.path != "" {
		if err := os.RemoveAll(b.path); err != nil {
			return fmt.Errorf("failed to remove Bleve index: %w", err)
		}
	}
	index, err := openIndex(b.path)
	if err != nil {
		return err
	}
	b.index = index
	return nil
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}

// DocCount returns the total number of meetings in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.DocCount()
}
