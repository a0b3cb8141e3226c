package search

import (
	"fmt"
	"time"

	"github.com/openmeetings/meetsearch/internal/engine"
	"github.com/openmeetings/meetsearch/internal/models"
)

// Normalize validates an engine response and converts it into SearchResults. Errors wrap
// engine.ErrMalformedResponse or engine.ErrMissingFacet; no partial result is returned.
func Normalize(resp *engine.Response) (models.SearchResults, error) {
	if resp == nil {
		return models.SearchResults{}, fmt.Errorf("%w: empty response", engine.ErrMalformedResponse)
	}
	switch {
	case resp.Found == nil:
		return models.SearchResults{}, fmt.Errorf("%w: missing found", engine.ErrMalformedResponse)
	case resp.OutOf == nil:
		return models.SearchResults{}, fmt.Errorf("%w: missing out_of", engine.ErrMalformedResponse)
	case resp.FacetCounts == nil:
		return models.SearchResults{}, fmt.Errorf("%w: missing facet_counts", engine.ErrMalformedResponse)
	case resp.Hits == nil:
		return models.SearchResults{}, fmt.Errorf("%w: missing hits", engine.ErrMalformedResponse)
	}

	facet, err := bodyFacet(resp.FacetCounts)
	if err != nil {
		return models.SearchResults{}, err
	}

	results := make([]models.MeetingResult, 0, len(resp.Hits))
	for i := range resp.Hits {
		r, err := normalizeHit(&resp.Hits[i])
		if err != nil {
			return models.SearchResults{}, fmt.Errorf("hit %d: %w", i, err)
		}
		results = append(results, r)
	}

	return models.SearchResults{
		Results:      results,
		BodyFacetMap: facet,
		ResultsInfo:  models.ResultsInfo{Found: *resp.Found, OutOf: *resp.OutOf},
	}, nil
}

// bodyFacet extracts the mandatory body facet in engine order.
func bodyFacet(facets []engine.Facet) (models.FacetCount, error) {
	for _, f := range facets {
		if f.FieldName != engine.FacetField {
			continue
		}
		values := make([]models.FacetValue, 0, len(f.Counts))
		for _, c := range f.Counts {
			values = append(values, models.FacetValue{Value: c.Value, Count: c.Count})
		}
		return models.NewFacetCount(values...), nil
	}
	return models.FacetCount{}, engine.ErrMissingFacet
}

func normalizeHit(hit *engine.Hit) (models.MeetingResult, error) {
	doc := hit.Document
	switch {
	case doc == nil:
		return models.MeetingResult{}, fmt.Errorf("%w: missing document", engine.ErrMalformedResponse)
	case doc.ID == nil:
		return models.MeetingResult{}, fmt.Errorf("%w: document missing id", engine.ErrMalformedResponse)
	case doc.Body == nil:
		return models.MeetingResult{}, fmt.Errorf("%w: document %s missing body", engine.ErrMalformedResponse, *doc.ID)
	case doc.MeetingDT == nil:
		return models.MeetingResult{}, fmt.Errorf("%w: document %s missing meeting_dt", engine.ErrMalformedResponse, *doc.ID)
	case doc.Address == nil:
		return models.MeetingResult{}, fmt.Errorf("%w: document %s missing address", engine.ErrMalformedResponse, *doc.ID)
	case doc.IsCancelled == nil:
		return models.MeetingResult{}, fmt.Errorf("%w: document %s missing is_cancelled", engine.ErrMalformedResponse, *doc.ID)
	case *doc.IsCancelled && doc.CancelledDT == nil:
		return models.MeetingResult{}, fmt.Errorf("%w: cancelled document %s missing cancelled_dt", engine.ErrMalformedResponse, *doc.ID)
	}

	r := models.MeetingResult{
		ID:          *doc.ID,
		Body:        *doc.Body,
		MeetingDate: time.Unix(*doc.MeetingDT, 0),
		Address:     *doc.Address,
		IsCancelled: *doc.IsCancelled,
	}
	if r.IsCancelled {
		cancelled := time.Unix(*doc.CancelledDT, 0)
		r.CancelledDate = &cancelled
	}

	for _, h := range hit.Highlights {
		rh, err := normalizeHighlight(h)
		if err != nil {
			return models.MeetingResult{}, fmt.Errorf("document %s: %w", r.ID, err)
		}
		r.Highlights = append(r.Highlights, rh)
	}
	if len(r.Highlights) == 0 && len(doc.LatestAgenda) > 0 {
		preview := doc.LatestAgenda[0]
		r.LatestAgendaPreview = &preview
	}
	return r, nil
}

// normalizeHighlight keeps the array shape for list fields and the scalar shape otherwise.
func normalizeHighlight(h engine.Highlight) (models.ResultHighlight, error) {
	switch {
	case h.Snippets != nil:
		return models.ResultHighlight{Field: h.Field, Snippets: append([]string(nil), h.Snippets...)}, nil
	case h.Snippet != nil:
		snippet := *h.Snippet
		return models.ResultHighlight{Field: h.Field, Snippet: &snippet}, nil
	}
	return models.ResultHighlight{}, fmt.Errorf("%w: highlight for %q has no snippet", engine.ErrMalformedResponse, h.Field)
}
