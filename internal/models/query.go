package models

import (
	"strings"
	"time"
)

// MatchAll is the keyphrase that matches every meeting. The engine never receives an empty keyphrase.
const MatchAll = "*"

// SearchFilters narrows a keyphrase search. A nil Body means all bodies; a nil date means the
// range is unbounded on that side. Values are never mutated in place; the With* methods return copies.
type SearchFilters struct {
	Body      *string    `json:"body"`
	DateStart *time.Time `json:"dateStart"`
	DateEnd   *time.Time `json:"dateEnd"`
}

// WithBody returns a copy of f with the body filter replaced.
func (f SearchFilters) WithBody(body *string) SearchFilters {
	return SearchFilters{
		Body:      cloneString(body),
		DateStart: cloneTime(f.DateStart),
		DateEnd:   cloneTime(f.DateEnd),
	}
}

// WithDates returns a copy of f with the date range replaced.
func (f SearchFilters) WithDates(start, end *time.Time) SearchFilters {
	return SearchFilters{
		Body:      cloneString(f.Body),
		DateStart: cloneTime(start),
		DateEnd:   cloneTime(end),
	}
}

// DatesActive reports whether either side of the date range is set.
func (f SearchFilters) DatesActive() bool {
	return f.DateStart != nil || f.DateEnd != nil
}

// SearchRequest is a logical search: keyphrase plus filters.
type SearchRequest struct {
	Keyphrase string        `json:"keyphrase"`
	Filters   SearchFilters `json:"filters"`
}

// NormalizeKeyphrase trims s and maps blank input to MatchAll.
func NormalizeKeyphrase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return MatchAll
	}
	return s
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
