// Package cli renders search states and meetings for the meetsearch command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/openmeetings/meetsearch/internal/models"
	"github.com/openmeetings/meetsearch/internal/urlstate"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" and "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text or json)", s)
}

const (
	markOpen  = "<mark>"
	markClose = "</mark>"
	rule      = "─────────────────────────────────────────────────────────"
)

// WriteState writes a settled search state to w in the given format.
func WriteState(w io.Writer, st models.SearchState, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	writeStateText(w, st)
	return nil
}

// WriteMeeting writes one meeting's detail to w in the given format.
func WriteMeeting(w io.Writer, m *models.Meeting, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, m)
	}
	writeMeetingText(w, m)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeStateText(w io.Writer, st models.SearchState) {
	info := st.Results.ResultsInfo
	fmt.Fprintf(w, "\nFound %d of %d meetings for %q\n", info.Found, info.OutOf, st.Keyphrase)
	fmt.Fprintf(w, "Filters: %s\n", describeFilters(st.Filters))

	if st.FilteredBodyFacet.Len() > 0 {
		fmt.Fprintln(w, "\nBodies:")
		for _, v := range st.FilteredBodyFacet.Values() {
			marker := " "
			if st.Filters.Body != nil && *st.Filters.Body == v.Value {
				marker = "*"
			}
			fmt.Fprintf(w, " %s %s (%d)\n", marker, v.Value, v.Count)
		}
	}
	fmt.Fprintln(w)
	for _, r := range st.Results.Results {
		writeResult(w, r)
	}
}

func describeFilters(f models.SearchFilters) string {
	body := urlstate.AllBodies
	if f.Body != nil {
		body = *f.Body
	}
	parts := []string{"body=" + body}
	if f.DatesActive() {
		start, end := urlstate.FormatDate(f.DateStart), urlstate.FormatDate(f.DateEnd)
		if start == "" {
			start = "…"
		}
		if end == "" {
			end = "…"
		}
		parts = append(parts, "dates "+start+".."+end)
	}
	return strings.Join(parts, ", ")
}

func writeResult(w io.Writer, r models.MeetingResult) {
	fmt.Fprintln(w, rule)
	status := ""
	if r.IsCancelled {
		status = " CANCELLED"
		if r.CancelledDate != nil {
			status += " on " + r.CancelledDate.Format(time.DateOnly)
		}
	}
	fmt.Fprintf(w, "%s  %s  [%s]%s\n", r.MeetingDate.Format("2006-01-02 15:04"), RenderMarks(r.DisplayBody()), r.ID, status)
	if r.Address != "" {
		fmt.Fprintf(w, "  %s\n", r.Address)
	}
	for _, h := range r.Highlights {
		if h.Field == models.FieldBody {
			continue
		}
		for _, s := range h.Texts() {
			fmt.Fprintf(w, "  %s: %s\n", h.Field, Truncate(RenderMarks(s), 200))
		}
	}
	if r.LatestAgendaPreview != nil {
		fmt.Fprintf(w, "  agenda: %s\n", Truncate(*r.LatestAgendaPreview, 200))
	}
	fmt.Fprintln(w)
}

func writeMeetingText(w io.Writer, m *models.Meeting) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%s  [%s]\n", m.Body, m.ID)
	fmt.Fprintf(w, "When:    %s\n", m.MeetingDate.Format("Monday, January 2, 2006 3:04 PM"))
	fmt.Fprintf(w, "Where:   %s\n", m.Address)
	if m.IsCancelled {
		fmt.Fprint(w, "Status:  CANCELLED")
		if m.CancelledDate != nil {
			fmt.Fprintf(w, " on %s", m.CancelledDate.Format(time.DateOnly))
		}
		if m.CancelledReason != nil {
			fmt.Fprintf(w, " (%s)", *m.CancelledReason)
		}
		fmt.Fprintln(w)
	}
	if m.FilingDate != nil {
		fmt.Fprintf(w, "Filed:   %s\n", m.FilingDate.Format(time.DateOnly))
	}
	var flags []string
	if m.IsEmergency {
		flags = append(flags, "emergency")
	}
	if m.IsAnnualCalendar {
		flags = append(flags, "annual calendar")
	}
	if m.IsPublicNotice {
		flags = append(flags, "public notice")
	}
	if len(flags) > 0 {
		fmt.Fprintf(w, "Notice:  %s\n", strings.Join(flags, ", "))
	}
	if m.ContactPerson != "" || m.ContactEmail != "" || m.ContactPhone != "" {
		fmt.Fprintf(w, "Contact: %s\n", strings.Join(nonEmpty(m.ContactPerson, m.ContactEmail, m.ContactPhone), " / "))
	}
	writeDocument(w, "Agenda", m.LatestAgenda, m.LatestAgendaLink)
	writeDocument(w, "Minutes", m.LatestMinutes, m.LatestMinutesLink)
}

func writeDocument(w io.Writer, title string, lines []string, link *string) {
	if len(lines) == 0 && link == nil {
		return
	}
	fmt.Fprintf(w, "\n%s", title)
	if link != nil {
		fmt.Fprintf(w, " (%s)", *link)
	}
	fmt.Fprintln(w, ":")
	for _, l := range lines {
		fmt.Fprintf(w, "  %s\n", l)
	}
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// RenderMarks replaces engine highlight tags with asterisks for terminal output. An
// unterminated mark runs to the end of the string.
func RenderMarks(s string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, markOpen)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i+len(markOpen):]
		j := strings.Index(s, markClose)
		if j < 0 {
			b.WriteString("*" + s + "*")
			return b.String()
		}
		b.WriteString("*" + s[:j] + "*")
		s = s[j+len(markClose):]
	}
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
