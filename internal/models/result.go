package models

import "time"

// FieldBody is the document field holding the public body name; it is also the facet field.
const FieldBody = "body"

// ResultHighlight is a matched snippet for one field. The engine returns a single Snippet for
// scalar fields and Snippets for list fields such as minutes paragraphs; exactly one is set.
type ResultHighlight struct {
	Field    string   `json:"field"`
	Snippet  *string  `json:"snippet,omitempty"`
	Snippets []string `json:"snippets,omitempty"`
}

// IsList reports whether the highlight carries the list shape.
func (h ResultHighlight) IsList() bool {
	return h.Snippet == nil
}

// Texts returns the snippets regardless of shape.
func (h ResultHighlight) Texts() []string {
	if h.Snippet != nil {
		return []string{*h.Snippet}
	}
	return h.Snippets
}

// MeetingResult is one search hit. CancelledDate is set iff IsCancelled.
type MeetingResult struct {
	ID                  string            `json:"id"`
	Body                string            `json:"body"`
	MeetingDate         time.Time         `json:"meetingDate"`
	Address             string            `json:"address"`
	Highlights          []ResultHighlight `json:"highlights,omitempty"`
	LatestAgendaPreview *string           `json:"latestAgendaPreview,omitempty"`
	IsCancelled         bool              `json:"isCancelled"`
	CancelledDate       *time.Time        `json:"cancelledDate,omitempty"`
}

// Highlight returns the highlight for field, if any.
func (r MeetingResult) Highlight(field string) (ResultHighlight, bool) {
	for _, h := range r.Highlights {
		if h.Field == field {
			return h, true
		}
	}
	return ResultHighlight{}, false
}

// DisplayBody returns the marked-up body name when the body field matched, else the raw name.
func (r MeetingResult) DisplayBody() string {
	if h, ok := r.Highlight(FieldBody); ok {
		if texts := h.Texts(); len(texts) > 0 {
			return texts[0]
		}
	}
	return r.Body
}

// ResultsInfo holds how many meetings matched out of the whole collection.
type ResultsInfo struct {
	Found int `json:"found"`
	OutOf int `json:"outOf"`
}

// SearchResults is a normalized engine response.
type SearchResults struct {
	Results      []MeetingResult `json:"results"`
	BodyFacetMap FacetCount      `json:"bodyFacetMap"`
	ResultsInfo  ResultsInfo     `json:"resultsInfo"`
}

// SearchState is everything a search page renders. BodyFacet is computed from the keyphrase
// alone; FilteredBodyFacet additionally honours the date range but never the body filter.
type SearchState struct {
	Keyphrase         string        `json:"keyphrase"`
	Filters           SearchFilters `json:"filters"`
	BodyFacet         FacetCount    `json:"bodyFacet"`
	FilteredBodyFacet FacetCount    `json:"filteredBodyFacet"`
	Results           SearchResults `json:"results"`
}

// Request returns the keyphrase and filters as a SearchRequest.
func (s SearchState) Request() SearchRequest {
	return SearchRequest{Keyphrase: s.Keyphrase, Filters: s.Filters.WithBody(s.Filters.Body)}
}

// Clone returns a copy sharing nothing mutable with s.
func (s SearchState) Clone() SearchState {
	results := make([]MeetingResult, len(s.Results.Results))
	copy(results, s.Results.Results)
	return SearchState{
		Keyphrase:         s.Keyphrase,
		Filters:           s.Filters.WithBody(s.Filters.Body),
		BodyFacet:         s.BodyFacet.Clone(),
		FilteredBodyFacet: s.FilteredBodyFacet.Clone(),
		Results: SearchResults{
			Results:      results,
			BodyFacetMap: s.Results.BodyFacetMap.Clone(),
			ResultsInfo:  s.Results.ResultsInfo,
		},
	}
}
