package local

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openmeetings/meetsearch/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }
func i64p(n int64) *int64   { return &n }
func boolp(b bool) *bool    { return &b }

func meeting(id, body string, dt int64, agenda ...string) *engine.Document {
	return &engine.Document{
		ID:           strp(id),
		Body:         strp(body),
		MeetingDT:    i64p(dt),
		Address:      strp("Town Hall"),
		IsCancelled:  boolp(false),
		LatestAgenda: agenda,
	}
}

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	dir := t.TempDir()
	e, err := Open(Config{
		DatabasePath: filepath.Join(dir, "meetings.db"),
		IndexPath:    filepath.Join(dir, "bleve"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func seed(t *testing.T, e *Engine) {
	t.Helper()
	res, err := e.Import(context.Background(), []*engine.Document{
		meeting("m1", "School Committee", 1680000000, "Budget review"),
		meeting("m2", "School Committee", 1690000000, "Bus routes"),
		meeting("m3", "Conservation Commission", 1685000000, "Wetlands budget"),
	})
	require.NoError(t, err)
	require.Equal(t, 3, res.Succeeded)
}

func TestEngine_SearchShape(t *testing.T) {
	e := openTestEngine(t)
	seed(t, e)

	resp, err := e.Search(context.Background(), &engine.Query{Keyphrase: "budget", FacetBy: engine.FacetField})
	require.NoError(t, err)
	require.NotNil(t, resp.Found)
	require.NotNil(t, resp.OutOf)
	assert.Equal(t, 2, *resp.Found)
	assert.Equal(t, 3, *resp.OutOf)

	require.Len(t, resp.FacetCounts, 1)
	assert.Equal(t, "body", resp.FacetCounts[0].FieldName)
	counts := map[string]int{}
	for _, c := range resp.FacetCounts[0].Counts {
		counts[c.Value] = c.Count
	}
	assert.Equal(t, map[string]int{"School Committee": 1, "Conservation Commission": 1}, counts)

	require.Len(t, resp.Hits, 2)
	for _, h := range resp.Hits {
		require.NotNil(t, h.Document)
		require.NotEmpty(t, h.Highlights)
		hl := h.Highlights[0]
		assert.Equal(t, "latestAgenda", hl.Field)
		assert.Nil(t, hl.Snippet)
		require.NotEmpty(t, hl.Snippets)
		assert.Contains(t, strings.ToLower(hl.Snippets[0]), "<mark>budget</mark>")
	}
}

func TestEngine_BodyHighlightIsScalar(t *testing.T) {
	e := openTestEngine(t)
	seed(t, e)

	resp, err := e.Search(context.Background(), &engine.Query{Keyphrase: "conservation"})
	require.NoError(t, err)
	require.Len(t, resp.Hits, 1)
	require.NotEmpty(t, resp.Hits[0].Highlights)
	hl := resp.Hits[0].Highlights[0]
	assert.Equal(t, "body", hl.Field)
	require.NotNil(t, hl.Snippet)
	assert.Contains(t, *hl.Snippet, "<mark>")
	assert.Empty(t, hl.Snippets)
}

func TestEngine_Filters(t *testing.T) {
	e := openTestEngine(t)
	seed(t, e)
	ctx := context.Background()

	resp, err := e.Search(ctx, &engine.Query{Keyphrase: "*", Body: strp("School Committee")})
	require.NoError(t, err)
	assert.Equal(t, 2, *resp.Found)

	resp, err = e.Search(ctx, &engine.Query{Keyphrase: "*", DateStart: i64p(1684000000), DateEnd: i64p(1686000000)})
	require.NoError(t, err)
	assert.Equal(t, 1, *resp.Found)
	require.Len(t, resp.Hits, 1)
	assert.Equal(t, "m3", resp.Hits[0].Document.DocID())
}

func TestEngine_ImportRejectsIncomplete(t *testing.T) {
	e := openTestEngine(t)
	res, err := e.Import(context.Background(), []*engine.Document{
		meeting("ok", "Board of Health", 1),
		{ID: strp("nobody"), MeetingDT: i64p(1)},
		meeting("ok", "Board of Health", 2),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.Succeeded)
	require.Len(t, res.Failures, 2)
	assert.Equal(t, "missing body", res.Failures[0].Error)
	assert.Equal(t, "duplicate id", res.Failures[1].Error)
}

func TestEngine_GetMeetingAndDrop(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	assert.ErrorIs(t, e.Drop(ctx), engine.ErrNotFound)

	seed(t, e)
	doc, err := e.GetMeeting(ctx, "m2")
	require.NoError(t, err)
	assert.Equal(t, "Bus routes", doc.LatestAgenda[0])

	_, err = e.GetMeeting(ctx, "missing")
	assert.ErrorIs(t, err, engine.ErrNotFound)

	n, err := e.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	fp, err := e.Footprint()
	require.NoError(t, err)
	assert.Positive(t, fp.Total())

	require.NoError(t, e.Drop(ctx))
	n, err = e.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	resp, err := e.Search(ctx, &engine.Query{Keyphrase: "*"})
	require.NoError(t, err)
	assert.Zero(t, *resp.Found)
	assert.Empty(t, resp.Hits)
}
