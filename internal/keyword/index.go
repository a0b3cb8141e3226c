// Package keyword provides the embedded full-text meeting index used by the local engine.
package keyword

import "context"

// Indexed field names.
const (
	FieldBody          = "body"
	FieldBodyText      = "bodyText"
	FieldMeetingDT     = "meeting_dt"
	FieldLatestAgenda  = "latestAgenda"
	FieldLatestMinutes = "latestMinutes"
)

// MatchAll is the keyphrase that matches every meeting.
const MatchAll = "*"

// MeetingDoc is the indexed projection of a meeting. Body is indexed as an exact keyword for
// filtering and faceting; BodyText carries the same value analyzed for matching.
type MeetingDoc struct {
	Body          string   `json:"body"`
	BodyText      string   `json:"bodyText"`
	MeetingDT     float64  `json:"meeting_dt"`
	LatestAgenda  []string `json:"latestAgenda,omitempty"`
	LatestMinutes []string `json:"latestMinutes,omitempty"`
}

// SearchRequest is a keyword query with optional body and inclusive date filters.
type SearchRequest struct {
	Keyphrase string
	Body      *string
	DateStart *int64
	DateEnd   *int64
	Size      int
	FacetSize int
}

// FacetTerm is one body value and its count.
type FacetTerm struct {
	Term  string
	Count int
}

// Hit is one matching meeting id with highlighted fragments keyed by field.
type Hit struct {
	ID        string
	Score     float64
	Fragments map[string][]string
}

// SearchResult is the outcome of one index search.
type SearchResult struct {
	Total uint64
	Hits  []*Hit
	Facet []FacetTerm
}

// MeetingIndex defines meeting index operations.
type MeetingIndex interface {
	// IndexBatch indexes docs keyed by id in a single batch.
	IndexBatch(ctx context.Context, docs map[string]*MeetingDoc) error
	Search(ctx context.Context, req *SearchRequest) (*SearchResult, error)
	// Reset removes every document.
	Reset(ctx context.Context) error
	DocCount() (uint64, error)
	Close() error
}
