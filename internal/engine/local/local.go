// Package local is the embedded engine backend: meeting documents live in SQLite and are
// searched through a Bleve index, so the search core runs without a hosted engine.
package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/openmeetings/meetsearch/internal/engine"
	"github.com/openmeetings/meetsearch/internal/keyword"
	"github.com/openmeetings/meetsearch/internal/storage"
	"go.uber.org/zap"
)

// Config locates the on-disk state and sizes responses.
type Config struct {
	DatabasePath   string
	IndexPath      string
	PerPage        int
	MaxFacetValues int
}

// Engine implements engine.Engine over a keyword index and a meeting store.
type Engine struct {
	index  keyword.MeetingIndex
	store  storage.MeetingStore
	cfg    Config
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// Open creates or opens the database and index named by cfg.
func Open(cfg Config, opts ...Option) (*Engine, error) {
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	index, err := keyword.NewBleveIndex(cfg.IndexPath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return New(index, store, cfg, opts...), nil
}

// New wires an Engine from existing parts.
func New(index keyword.MeetingIndex, store storage.MeetingStore, cfg Config, opts ...Option) *Engine {
	if cfg.PerPage <= 0 {
		cfg.PerPage = 250
	}
	if cfg.MaxFacetValues <= 0 {
		cfg.MaxFacetValues = keyword.DefaultFacetSize
	}
	e := &Engine{index: index, store: store, cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs q against the index and loads hit documents from the store.
func (e *Engine) Search(ctx context.Context, q *engine.Query) (*engine.Response, error) {
	res, err := e.index.Search(ctx, &keyword.SearchRequest{
		Keyphrase: q.Keyphrase,
		Body:      q.Body,
		DateStart: q.DateStart,
		DateEnd:   q.DateEnd,
		Size:      e.cfg.PerPage,
		FacetSize: e.cfg.MaxFacetValues,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrConnectivity, err)
	}
	total, err := e.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrConnectivity, err)
	}

	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	docs, err := e.store.GetMeetings(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrConnectivity, err)
	}

	found := int(res.Total)
	outOf := int(total)
	resp := &engine.Response{
		Found: &found,
		OutOf: &outOf,
		Hits:  make([]engine.Hit, 0, len(res.Hits)),
		FacetCounts: []engine.Facet{{
			FieldName: engine.FacetField,
			Counts:    make([]engine.FacetValue, 0, len(res.Facet)),
		}},
	}
	for _, ft := range res.Facet {
		resp.FacetCounts[0].Counts = append(resp.FacetCounts[0].Counts, engine.FacetValue{Value: ft.Term, Count: ft.Count})
	}
	for _, h := range res.Hits {
		doc, ok := docs[h.ID]
		if !ok {
			e.logger.Warn("indexed meeting missing from store", zap.String("id", h.ID))
			continue
		}
		resp.Hits = append(resp.Hits, engine.Hit{Document: doc, Highlights: highlights(h.Fragments)})
	}
	return resp, nil
}

// highlights maps index fragments onto engine highlights. The analyzed body copy reports as
// the scalar body field; agenda and minutes are array fields.
func highlights(fragments map[string][]string) []engine.Highlight {
	var out []engine.Highlight
	if frags := fragments[keyword.FieldBodyText]; len(frags) > 0 {
		snippet := frags[0]
		out = append(out, engine.Highlight{Field: keyword.FieldBody, Snippet: &snippet})
	}
	for _, field := range []string{keyword.FieldLatestAgenda, keyword.FieldLatestMinutes} {
		if frags := fragments[field]; len(frags) > 0 {
			out = append(out, engine.Highlight{Field: field, Snippets: append([]string(nil), frags...)})
		}
	}
	return out
}

// GetMeeting returns the stored document for id.
func (e *Engine) GetMeeting(ctx context.Context, id string) (*engine.Document, error) {
	return e.store.GetMeeting(ctx, id)
}

// Recreate empties both the store and the index.
func (e *Engine) Recreate(ctx context.Context) error {
	if err := e.store.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to clear meetings: %w", err)
	}
	if err := e.index.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset index: %w", err)
	}
	return nil
}

// Import stores and indexes docs. Documents without id, body or meeting_dt are reported as
// failures and skipped.
func (e *Engine) Import(ctx context.Context, docs []*engine.Document) (*engine.ImportResult, error) {
	result := &engine.ImportResult{Total: len(docs)}
	valid := make([]*engine.Document, 0, len(docs))
	batch := make(map[string]*keyword.MeetingDoc, len(docs))
	for _, d := range docs {
		if err := checkIndexable(d); err != nil {
			result.Failures = append(result.Failures, engine.ImportFailure{ID: d.DocID(), Error: err.Error()})
			continue
		}
		if _, dup := batch[*d.ID]; dup {
			result.Failures = append(result.Failures, engine.ImportFailure{ID: *d.ID, Error: "duplicate id"})
			continue
		}
		valid = append(valid, d)
		batch[*d.ID] = toMeetingDoc(d)
	}
	if err := e.store.PutMeetings(ctx, valid); err != nil {
		return nil, fmt.Errorf("failed to store meetings: %w", err)
	}
	if err := e.index.IndexBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to index meetings: %w", err)
	}
	result.Succeeded = len(valid)
	return result, nil
}

func checkIndexable(d *engine.Document) error {
	switch {
	case d == nil:
		return errors.New("empty document")
	case d.ID == nil || *d.ID == "":
		return errors.New("missing id")
	case d.Body == nil:
		return errors.New("missing body")
	case d.MeetingDT == nil:
		return errors.New("missing meeting_dt")
	}
	return nil
}

func toMeetingDoc(d *engine.Document) *keyword.MeetingDoc {
	return &keyword.MeetingDoc{
		Body:          *d.Body,
		BodyText:      *d.Body,
		MeetingDT:     float64(*d.MeetingDT),
		LatestAgenda:  d.LatestAgenda,
		LatestMinutes: d.LatestMinutes,
	}
}

// Count returns the number of stored meetings.
func (e *Engine) Count(ctx context.Context) (int, error) {
	n, err := e.store.CountMeetings(ctx)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Drop empties the engine; engine.ErrNotFound when it already holds nothing.
func (e *Engine) Drop(ctx context.Context) error {
	n, err := e.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("local collection: %w", engine.ErrNotFound)
	}
	return e.Recreate(ctx)
}

// Footprint reports the on-disk size of the database and index.
func (e *Engine) Footprint() (storage.Footprint, error) {
	return storage.MeasureFootprint(e.cfg.DatabasePath, e.cfg.IndexPath)
}

// Close closes the index and the store.
func (e *Engine) Close() error {
	indexErr := e.index.Close()
	storeErr := e.store.Close()
	if indexErr != nil {
		return indexErr
	}
	return storeErr
}
