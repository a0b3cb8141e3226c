package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/openmeetings/meetsearch/internal/engine"
)

func strp(s string) *string { return &s }
func i64p(n int64) *int64   { return &n }

func testMeeting(id, body string, dt int64) *engine.Document {
	cancelled := false
	return &engine.Document{
		ID:           strp(id),
		Body:         strp(body),
		MeetingDT:    i64p(dt),
		Address:      strp("1 Main St"),
		IsCancelled:  &cancelled,
		LatestAgenda: []string{"Call to order"},
	}
}

func TestSQLiteStorage_CRUD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	store, err := NewSQLiteStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	ctx := context.Background()

	if err := store.PutMeetings(ctx, []*engine.Document{
		testMeeting("m1", "Select Board", 1680000000),
		testMeeting("m2", "Finance Committee", 1690000000),
	}); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetMeeting(ctx, "m1")
	if err != nil {
		t.Fatal(err)
	}
	if *got.Body != "Select Board" || *got.MeetingDT != 1680000000 {
		t.Errorf("got %+v", got)
	}
	if len(got.LatestAgenda) != 1 || got.LatestAgenda[0] != "Call to order" {
		t.Errorf("agenda = %v", got.LatestAgenda)
	}
	if got.CancelledDT != nil {
		t.Error("cancelled_dt should stay null")
	}

	// Upsert replaces the stored document.
	if err := store.PutMeetings(ctx, []*engine.Document{testMeeting("m1", "Select Board (Special)", 1680000000)}); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetMeeting(ctx, "m1")
	if *got.Body != "Select Board (Special)" {
		t.Errorf("expected upserted body, got %s", *got.Body)
	}

	n, err := store.CountMeetings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 meetings, got %d", n)
	}

	many, err := store.GetMeetings(ctx, []string{"m1", "m2", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(many) != 2 || many["m2"] == nil {
		t.Errorf("GetMeetings = %v", many)
	}

	if err := store.DeleteAll(ctx); err != nil {
		t.Fatal(err)
	}
	n, _ = store.CountMeetings(ctx)
	if n != 0 {
		t.Errorf("expected 0 meetings after DeleteAll, got %d", n)
	}
	_, err = store.GetMeeting(ctx, "m1")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("expected ErrNotFound after DeleteAll, got %v", err)
	}
}

func TestSQLiteStorage_PutMeetingsRequiresID(t *testing.T) {
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	err = store.PutMeetings(context.Background(), []*engine.Document{{Body: strp("x")}})
	if err == nil {
		t.Fatal("expected error for meeting without id")
	}
}

func TestSQLiteStorage_GetMeetingsEmpty(t *testing.T) {
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	got, err := store.GetMeetings(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty map, got %v", got)
	}
}
