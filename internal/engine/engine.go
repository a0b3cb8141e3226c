// Package engine defines the contract between the search core and a full-text search engine:
// the query and response shapes, the meeting document, and the executor, lookup and loader
// capabilities an engine backend provides.
package engine

import (
	"context"
	"errors"
)

// Errors returned by engine backends and the search core. Callers match them with errors.Is.
var (
	// ErrConnectivity means the engine could not be reached or did not answer in time.
	ErrConnectivity = errors.New("search engine unreachable")
	// ErrMalformedResponse means the engine answered with a shape the core does not understand.
	ErrMalformedResponse = errors.New("malformed search response")
	// ErrMissingFacet means the response lacks the mandatory body facet.
	ErrMissingFacet = errors.New("body facet missing from search response")
	// ErrNotFound means the requested meeting or collection does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuery means the engine cannot express the query's filters.
	ErrInvalidQuery = errors.New("invalid search query")
)

// FacetField is the only facet the core requests.
const FacetField = "body"

// Query is a search request in engine terms. Date bounds are inclusive epoch seconds.
type Query struct {
	Keyphrase string
	Body      *string
	DateStart *int64
	DateEnd   *int64
	FacetBy   string
}

// Response is an undecoded-to-domain engine answer. Pointer and slice fields are nil when the
// engine omitted them, which the normalizer reports as malformed.
type Response struct {
	Found       *int    `json:"found"`
	OutOf       *int    `json:"out_of"`
	FacetCounts []Facet `json:"facet_counts"`
	Hits        []Hit   `json:"hits"`
}

// Facet is the per-value counts for one field.
type Facet struct {
	FieldName string       `json:"field_name"`
	Counts    []FacetValue `json:"counts"`
}

// FacetValue is one value of a facet field and its count.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Hit is a matched document and its highlights.
type Hit struct {
	Document   *Document   `json:"document"`
	Highlights []Highlight `json:"highlights,omitempty"`
}

// Highlight carries Snippet for scalar fields and Snippets for array fields.
type Highlight struct {
	Field    string   `json:"field"`
	Snippet  *string  `json:"snippet,omitempty"`
	Snippets []string `json:"snippets,omitempty"`
}

// Document is a meeting record as stored in the engine. Timestamps are epoch seconds.
type Document struct {
	ID                *string  `json:"id"`
	Body              *string  `json:"body"`
	MeetingDT         *int64   `json:"meeting_dt"`
	Address           *string  `json:"address"`
	FilingDT          *int64   `json:"filing_dt,omitempty"`
	IsEmergency       *bool    `json:"is_emergency,omitempty"`
	IsAnnualCalendar  *bool    `json:"is_annual_calendar,omitempty"`
	IsPublicNotice    *bool    `json:"is_public_notice,omitempty"`
	IsCancelled       *bool    `json:"is_cancelled"`
	CancelledDT       *int64   `json:"cancelled_dt"`
	CancelledReason   *string  `json:"cancelled_reason,omitempty"`
	LatestAgenda      []string `json:"latestAgenda,omitempty"`
	LatestAgendaLink  *string  `json:"latestAgendaLink,omitempty"`
	LatestMinutes     []string `json:"latestMinutes,omitempty"`
	LatestMinutesLink *string  `json:"latestMinutesLink,omitempty"`
	ContactPerson     *string  `json:"contactPerson,omitempty"`
	ContactEmail      *string  `json:"contactEmail,omitempty"`
	ContactPhone      *string  `json:"contactPhone,omitempty"`
}

// DocID returns the document id or "" when absent.
func (d *Document) DocID() string {
	if d == nil || d.ID == nil {
		return ""
	}
	return *d.ID
}

// Executor runs search queries.
type Executor interface {
	Search(ctx context.Context, q *Query) (*Response, error)
}

// MeetingSource fetches a single meeting document by id. Unknown ids yield ErrNotFound.
type MeetingSource interface {
	GetMeeting(ctx context.Context, id string) (*Document, error)
}

// ImportFailure describes one rejected document.
type ImportFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failures  []ImportFailure `json:"failures,omitempty"`
}

// Loader manages the meetings collection.
type Loader interface {
	// Recreate drops the collection when it exists and creates it empty.
	Recreate(ctx context.Context) error
	// Import creates the given documents.
	Import(ctx context.Context, docs []*Document) (*ImportResult, error)
	// Count returns the number of documents in the collection.
	Count(ctx context.Context) (int, error)
	// Drop deletes the collection; ErrNotFound when it does not exist.
	Drop(ctx context.Context) error
}

// Engine is a complete backend.
type Engine interface {
	Executor
	MeetingSource
	Loader
	Close() error
}
