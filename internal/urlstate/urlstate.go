// Package urlstate converts search requests to and from the query parameters of a search page
// URL, and parses the yyyy-mm-dd dates those parameters carry.
package urlstate

import (
	"fmt"
	"net/url"
	"time"

	"github.com/openmeetings/meetsearch/internal/models"
)

// Query parameter names.
const (
	ParamKeyphrase = "keyphrase"
	ParamBody      = "body"
	ParamDateStart = "dateStart"
	ParamDateEnd   = "dateEnd"
)

// AllBodies is the body parameter value for no body filter.
const AllBodies = "all"

// DateLayout is the date format used in URLs.
const DateLayout = "2006-01-02"

// ParseDate parses a yyyy-mm-dd string as local midnight in loc. The empty string is nil.
func ParseDate(s string, loc *time.Location) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return &t, nil
}

// FormatDate formats t as yyyy-mm-dd in its own location. Nil is the empty string.
func FormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(DateLayout)
}

// Decode builds a request from URL parameters. A missing keyphrase matches everything, a
// missing body or "all" means no body filter and missing dates leave the range open.
// Round trips are exact only for canonical parameter sets: Encode always writes keyphrase
// and body, so a set without body comes back with body=all.
func Decode(values url.Values, loc *time.Location) (models.SearchRequest, error) {
	req := models.SearchRequest{Keyphrase: models.NormalizeKeyphrase(values.Get(ParamKeyphrase))}

	if body := values.Get(ParamBody); body != "" && body != AllBodies {
		req.Filters.Body = &body
	}
	start, err := ParseDate(values.Get(ParamDateStart), loc)
	if err != nil {
		return models.SearchRequest{}, fmt.Errorf("%s: %w", ParamDateStart, err)
	}
	end, err := ParseDate(values.Get(ParamDateEnd), loc)
	if err != nil {
		return models.SearchRequest{}, fmt.Errorf("%s: %w", ParamDateEnd, err)
	}
	req.Filters.DateStart = start
	req.Filters.DateEnd = end
	return req, nil
}

// Encode serializes a request. Keyphrase and body are always present; dates only when set.
func Encode(req models.SearchRequest) url.Values {
	values := url.Values{}
	values.Set(ParamKeyphrase, models.NormalizeKeyphrase(req.Keyphrase))
	if req.Filters.Body != nil {
		values.Set(ParamBody, *req.Filters.Body)
	} else {
		values.Set(ParamBody, AllBodies)
	}
	if req.Filters.DateStart != nil {
		values.Set(ParamDateStart, FormatDate(req.Filters.DateStart))
	}
	if req.Filters.DateEnd != nil {
		values.Set(ParamDateEnd, FormatDate(req.Filters.DateEnd))
	}
	return values
}

// EncodeState serializes the request part of a search state.
func EncodeState(st models.SearchState) url.Values {
	return Encode(st.Request())
}
