// Package search is the meeting-search core: it builds engine queries, normalizes responses,
// reconciles body facets against the date filter and owns the per-session search state.
package search

import (
	"time"

	"github.com/openmeetings/meetsearch/internal/engine"
	"github.com/openmeetings/meetsearch/internal/models"
)

// BuildQuery maps a logical request onto an engine query. The start date is inclusive from
// local midnight and the end date inclusive through 23:59 of that day. Inverted ranges pass
// through unchanged.
func BuildQuery(req models.SearchRequest) engine.Query {
	q := engine.Query{
		Keyphrase: req.Keyphrase,
		FacetBy:   engine.FacetField,
	}
	if q.Keyphrase == "" {
		q.Keyphrase = models.MatchAll
	}
	if req.Filters.Body != nil {
		body := *req.Filters.Body
		q.Body = &body
	}
	if req.Filters.DateStart != nil {
		start := StartOfDay(*req.Filters.DateStart).Unix()
		q.DateStart = &start
	}
	if req.Filters.DateEnd != nil {
		end := EndOfDay(*req.Filters.DateEnd).Unix()
		q.DateEnd = &end
	}
	return q
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59 of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 0, 0, t.Location())
}

// baselineRequest drops every filter from req.
func baselineRequest(keyphrase string) models.SearchRequest {
	return models.SearchRequest{Keyphrase: keyphrase}
}

// datedFacetRequest keeps the date range of f but never the body filter.
func datedFacetRequest(keyphrase string, f models.SearchFilters) models.SearchRequest {
	return models.SearchRequest{Keyphrase: keyphrase, Filters: f.WithBody(nil)}
}
