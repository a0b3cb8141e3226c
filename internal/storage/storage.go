// Package storage defines the persistence interface for meeting records held by the local engine.
package storage

import (
	"context"

	"github.com/openmeetings/meetsearch/internal/engine"
)

// MeetingStore persists full meeting documents keyed by id.
type MeetingStore interface {
	// PutMeetings inserts or replaces docs in one transaction.
	PutMeetings(ctx context.Context, docs []*engine.Document) error
	// GetMeeting returns the document with id; engine.ErrNotFound when absent.
	GetMeeting(ctx context.Context, id string) (*engine.Document, error)
	// GetMeetings returns the documents found for ids keyed by id. Missing ids are omitted.
	GetMeetings(ctx context.Context, ids []string) (map[string]*engine.Document, error)
	DeleteAll(ctx context.Context) error
	CountMeetings(ctx context.Context) (int64, error)

	Close() error
}
