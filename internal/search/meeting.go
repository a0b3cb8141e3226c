package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openmeetings/meetsearch/internal/engine"
	"github.com/openmeetings/meetsearch/internal/models"
)

// GetMeeting looks up one meeting for its detail page. Unknown ids yield engine.ErrNotFound.
func GetMeeting(ctx context.Context, src engine.MeetingSource, id string) (*models.Meeting, error) {
	doc, err := src.GetMeeting(ctx, id)
	if err != nil {
		if !isTaxonomyError(err) && !errors.Is(err, engine.ErrNotFound) {
			err = fmt.Errorf("%w: %v", engine.ErrConnectivity, err)
		}
		return nil, err
	}
	return NormalizeMeeting(doc)
}

// NormalizeMeeting validates a full document and converts it into a Meeting.
func NormalizeMeeting(doc *engine.Document) (*models.Meeting, error) {
	switch {
	case doc == nil:
		return nil, fmt.Errorf("%w: empty document", engine.ErrMalformedResponse)
	case doc.ID == nil, doc.Body == nil, doc.MeetingDT == nil, doc.Address == nil, doc.IsCancelled == nil:
		return nil, fmt.Errorf("%w: meeting %q missing required fields", engine.ErrMalformedResponse, doc.DocID())
	case *doc.IsCancelled && doc.CancelledDT == nil:
		return nil, fmt.Errorf("%w: cancelled meeting %s missing cancelled_dt", engine.ErrMalformedResponse, *doc.ID)
	}

	m := &models.Meeting{
		ID:                *doc.ID,
		Body:              *doc.Body,
		MeetingDate:       time.Unix(*doc.MeetingDT, 0),
		Address:           *doc.Address,
		IsEmergency:       boolValue(doc.IsEmergency),
		IsAnnualCalendar:  boolValue(doc.IsAnnualCalendar),
		IsPublicNotice:    boolValue(doc.IsPublicNotice),
		LatestAgenda:      append([]string(nil), doc.LatestAgenda...),
		LatestAgendaLink:  doc.LatestAgendaLink,
		LatestMinutes:     append([]string(nil), doc.LatestMinutes...),
		LatestMinutesLink: doc.LatestMinutesLink,
		ContactPerson:     stringValue(doc.ContactPerson),
		ContactEmail:      stringValue(doc.ContactEmail),
		ContactPhone:      stringValue(doc.ContactPhone),
		IsCancelled:       *doc.IsCancelled,
	}
	if doc.FilingDT != nil {
		filed := time.Unix(*doc.FilingDT, 0)
		m.FilingDate = &filed
	}
	if m.IsCancelled {
		cancelled := time.Unix(*doc.CancelledDT, 0)
		m.CancelledDate = &cancelled
		reason := stringValue(doc.CancelledReason)
		m.CancelledReason = &reason
	}
	return m, nil
}

func boolValue(b *bool) bool {
	return b != nil && *b
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
