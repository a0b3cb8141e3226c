package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNormalizeKeyphrase(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty becomes match all", "", MatchAll},
		{"blank becomes match all", "   ", MatchAll},
		{"trimmed", "  taskforce ", "taskforce"},
		{"match all kept", "*", "*"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeKeyphrase(tt.in); got != tt.want {
				t.Errorf("NormalizeKeyphrase(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSearchFilters_WithCopies(t *testing.T) {
	start := time.Date(2023, 3, 1, 0, 0, 0, 0, time.Local)
	body := "School Committee"
	f := SearchFilters{Body: &body, DateStart: &start}

	g := f.WithBody(nil)
	if g.Body != nil {
		t.Error("WithBody(nil) should clear body")
	}
	if g.DateStart == nil || !g.DateStart.Equal(start) {
		t.Error("WithBody should keep the date range")
	}
	if g.DateStart == f.DateStart {
		t.Error("WithBody should not share date pointers")
	}

	body = "changed"
	if *f.Body != "changed" {
		t.Fatal("test setup: f.Body aliases body")
	}
	h := f.WithDates(nil, nil)
	if h.DatesActive() {
		t.Error("WithDates(nil, nil) should clear dates")
	}
	if h.Body == f.Body || *h.Body != "changed" {
		t.Error("WithDates should copy the body value")
	}
}

func TestFacetCount_Order(t *testing.T) {
	fc := NewFacetCount(
		FacetValue{Value: "Zoning Board", Count: 4},
		FacetValue{Value: "Arts Council", Count: 2},
		FacetValue{Value: "Zoning Board", Count: 5},
	)
	keys := fc.Keys()
	if len(keys) != 2 || keys[0] != "Zoning Board" || keys[1] != "Arts Council" {
		t.Errorf("keys = %v", keys)
	}
	if c, _ := fc.Get("Zoning Board"); c != 5 {
		t.Errorf("duplicate should overwrite count, got %d", c)
	}
	if fc.Total() != 7 {
		t.Errorf("Total = %d, want 7", fc.Total())
	}
}

func TestFacetCount_JSON(t *testing.T) {
	fc := NewFacetCount(FacetValue{Value: "B", Count: 1}, FacetValue{Value: "A", Count: 3})
	data, err := json.Marshal(fc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `[{"value":"B","count":1},{"value":"A","count":3}]` {
		t.Errorf("json = %s", data)
	}
	var back FacetCount
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(fc) {
		t.Errorf("decoded %v, want %v", back.Values(), fc.Values())
	}
}

func TestFacetCount_ZeroValue(t *testing.T) {
	var fc FacetCount
	if _, ok := fc.Get("x"); ok {
		t.Error("zero value should be empty")
	}
	if !fc.Equal(NewFacetCount()) {
		t.Error("zero value should equal an empty facet count")
	}
}

func TestMeetingResult_DisplayBody(t *testing.T) {
	r := MeetingResult{Body: "Town Council"}
	if r.DisplayBody() != "Town Council" {
		t.Errorf("DisplayBody = %q", r.DisplayBody())
	}
	r.Highlights = []ResultHighlight{
		{Field: "latestMinutes", Snippets: []string{"a", "b"}},
		{Field: FieldBody, Snippet: StringPtr("<mark>Town</mark> Council")},
	}
	if r.DisplayBody() != "<mark>Town</mark> Council" {
		t.Errorf("DisplayBody = %q", r.DisplayBody())
	}
}
