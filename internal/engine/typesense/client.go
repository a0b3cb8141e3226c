// Package typesense is the hosted-engine backend: it drives a Typesense node through the
// typesense-go client for searching, fetching and loading meeting documents.
package typesense

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/openmeetings/meetsearch/internal/engine"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"go.uber.org/zap"
)

// Config holds connection and query settings.
type Config struct {
	URL            string
	APIKey         string
	Collection     string
	Timeout        time.Duration
	PerPage        int
	MaxFacetValues int
}

// Client implements engine.Engine against a Typesense node.
type Client struct {
	cfg    Config
	ts     *typesense.Client
	logger *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets a logger for request tracing.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient validates cfg and returns a client. Zero PerPage and MaxFacetValues default to 250.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid typesense url %q", cfg.URL)
	}
	if cfg.Collection == "" {
		cfg.Collection = "meetings"
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 250
	}
	if cfg.MaxFacetValues <= 0 {
		cfg.MaxFacetValues = 250
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := &Client{
		cfg: cfg,
		ts: typesense.NewClient(
			typesense.WithServer(base.String()),
			typesense.WithAPIKey(cfg.APIKey),
			typesense.WithConnectionTimeout(cfg.Timeout),
		),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

// Search runs q against the collection.
func (c *Client) Search(ctx context.Context, q *engine.Query) (*engine.Response, error) {
	params, err := SearchParams(q, c.cfg.PerPage, c.cfg.MaxFacetValues)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("typesense search",
		zap.String("q", *params.Q),
		zap.Stringp("filter_by", params.FilterBy))

	result, err := c.ts.Collection(c.cfg.Collection).Documents().Search(ctx, params)
	if err != nil {
		return nil, classify("search", err)
	}
	var resp engine.Response
	if err := remarshal(result, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetMeeting retrieves one document by id.
func (c *Client) GetMeeting(ctx context.Context, id string) (*engine.Document, error) {
	raw, err := c.ts.Collection(c.cfg.Collection).Document(id).Retrieve(ctx)
	if err != nil {
		return nil, fmt.Errorf("meeting %s: %w", id, classify("retrieve document", err))
	}
	var doc engine.Document
	if err := remarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("meeting %s: %w", id, err)
	}
	return &doc, nil
}

// Recreate drops the collection when present and creates it from the meeting schema.
func (c *Client) Recreate(ctx context.Context) error {
	err := c.Drop(ctx)
	switch {
	case err == nil:
		c.logger.Info("deleted old collection", zap.String("collection", c.cfg.Collection))
	case errors.Is(err, engine.ErrNotFound):
	default:
		return err
	}
	if _, err := c.ts.Collections().Create(ctx, collectionSchema(engine.MeetingSchema(c.cfg.Collection))); err != nil {
		return fmt.Errorf("failed to create collection: %w", classify("create collection", err))
	}
	return nil
}

// Import creates docs and reports per-document failures. The import action is the server
// default, create, so existing ids are reported as failures rather than overwritten.
func (c *Client) Import(ctx context.Context, docs []*engine.Document) (*engine.ImportResult, error) {
	result := &engine.ImportResult{Total: len(docs)}
	if len(docs) == 0 {
		return result, nil
	}
	batch := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		batch = append(batch, d)
	}
	lines, err := c.ts.Collection(c.cfg.Collection).Documents().Import(ctx, batch, &api.ImportDocumentsParams{})
	if err != nil {
		return nil, fmt.Errorf("import failed: %w", classify("import", err))
	}
	for i, line := range lines {
		if line == nil {
			continue
		}
		if line.Success {
			result.Succeeded++
			continue
		}
		id := ""
		if i < len(docs) {
			id = docs[i].DocID()
		}
		result.Failures = append(result.Failures, engine.ImportFailure{ID: id, Error: line.Error})
	}
	return result, nil
}

// Count returns num_documents for the collection.
func (c *Client) Count(ctx context.Context) (int, error) {
	info, err := c.ts.Collection(c.cfg.Collection).Retrieve(ctx)
	if err != nil {
		return 0, classify("retrieve collection", err)
	}
	var count struct {
		NumDocuments int `json:"num_documents"`
	}
	if err := remarshal(info, &count); err != nil {
		return 0, err
	}
	return count.NumDocuments, nil
}

// Drop deletes the collection.
func (c *Client) Drop(ctx context.Context) error {
	if _, err := c.ts.Collection(c.cfg.Collection).Delete(ctx); err != nil {
		return classify("delete collection", err)
	}
	return nil
}

// Close is a no-op; the client holds no resources beyond idle connections.
func (c *Client) Close() error {
	return nil
}

// SearchParams builds Typesense search parameters for q.
func SearchParams(q *engine.Query, perPage, maxFacetValues int) (*api.SearchCollectionParams, error) {
	facetBy := q.FacetBy
	if facetBy == "" {
		facetBy = engine.FacetField
	}
	params := &api.SearchCollectionParams{
		Q:              pointer.String(q.Keyphrase),
		QueryBy:        pointer.String(strings.Join(engine.QueryBy, ",")),
		FacetBy:        pointer.String(facetBy),
		PerPage:        pointer.Int(perPage),
		MaxFacetValues: pointer.Int(maxFacetValues),
	}
	filter, err := FilterBy(q)
	if err != nil {
		return nil, err
	}
	if filter != "" {
		params.FilterBy = pointer.String(filter)
	}
	return params, nil
}

// FilterBy joins the body and date clauses of q with " && ". filter_by quotes values in
// backticks and has no escape for them, so a body containing one is rejected.
func FilterBy(q *engine.Query) (string, error) {
	var clauses []string
	if q.Body != nil {
		if strings.Contains(*q.Body, "`") {
			return "", fmt.Errorf("%w: body %q contains a backtick", engine.ErrInvalidQuery, *q.Body)
		}
		clauses = append(clauses, fmt.Sprintf("body:=`%s`", *q.Body))
	}
	if q.DateStart != nil {
		clauses = append(clauses, fmt.Sprintf("meeting_dt:>=%d", *q.DateStart))
	}
	if q.DateEnd != nil {
		clauses = append(clauses, fmt.Sprintf("meeting_dt:<=%d", *q.DateEnd))
	}
	return strings.Join(clauses, " && "), nil
}

func collectionSchema(s engine.CollectionSchema) *api.CollectionSchema {
	fields := make([]api.Field, 0, len(s.Fields))
	for _, f := range s.Fields {
		field := api.Field{Name: f.Name, Type: f.Type, Facet: boolPtr(f.Facet)}
		if f.Optional {
			field.Optional = boolPtr(true)
		}
		fields = append(fields, field)
	}
	return &api.CollectionSchema{Name: s.Name, Fields: fields}
}

func boolPtr(b bool) *bool { return &b }

// classify maps client errors onto the engine taxonomy: 404 is ErrNotFound, an undecodable
// success body is ErrMalformedResponse, and everything else is ErrConnectivity.
func classify(op string, err error) error {
	var httpErr *typesense.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status == 404:
			return fmt.Errorf("%s: %w", op, engine.ErrNotFound)
		case httpErr.Status < 300:
			return fmt.Errorf("%w: %s: unexpected body: %s", engine.ErrMalformedResponse, op, errorMessage(httpErr.Body))
		default:
			return fmt.Errorf("%w: %s returned %d: %s", engine.ErrConnectivity, op, httpErr.Status, errorMessage(httpErr.Body))
		}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return fmt.Errorf("%w: %s: %v", engine.ErrMalformedResponse, op, err)
	}
	return fmt.Errorf("%w: %s: %v", engine.ErrConnectivity, op, err)
}

func errorMessage(raw []byte) string {
	var msg struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &msg) == nil && msg.Message != "" {
		return msg.Message
	}
	return strings.TrimSpace(string(raw))
}

// remarshal converts a decoded client value into the engine's wire types.
func remarshal(in, out interface{}) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: %v", engine.ErrMalformedResponse, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", engine.ErrMalformedResponse, err)
	}
	return nil
}
