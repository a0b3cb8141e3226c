package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/openmeetings/meetsearch/internal/engine"
)

// requiredKeys must be present in every record. Their values may be null.
var requiredKeys = []string{
	"id", "body", "meeting_dt", "address", "is_cancelled", "cancelled_dt",
	"cancelled_reason", "latestAgenda", "latestAgendaLink", "latestMinutes",
	"latestMinutesLink", "contactPerson", "contactEmail", "contactPhone",
}

// InvalidRecord describes a record that failed validation.
type InvalidRecord struct {
	Index int
	ID    string
	Err   error
}

// ParseRecords decodes a JSON array of meeting records. Valid records are returned as
// documents in input order; the others are reported in invalid. An input that is not a JSON
// array is an error.
func ParseRecords(r io.Reader) (docs []*engine.Document, invalid []InvalidRecord, err error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("meeting records must be a JSON array: %w", err)
	}
	docs = make([]*engine.Document, 0, len(raw))
	for i, rec := range raw {
		doc, err := ParseRecord(rec)
		if err != nil {
			invalid = append(invalid, InvalidRecord{Index: i, ID: doc.DocID(), Err: err})
			continue
		}
		docs = append(docs, doc)
	}
	return docs, invalid, nil
}

// ParseRecord decodes and validates one record. On a validation failure the decoded document
// is still returned, when decoding got that far, so callers can report its id.
func ParseRecord(data []byte) (*engine.Document, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("record is not an object: %w", err)
	}
	var doc engine.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	for _, key := range requiredKeys {
		if _, ok := keys[key]; !ok {
			return &doc, fmt.Errorf("missing '%s' property", key)
		}
	}
	if err := Validate(&doc); err != nil {
		return &doc, err
	}
	return &doc, nil
}

// Validate checks the cross-field rules of a meeting document.
func Validate(doc *engine.Document) error {
	if doc.DocID() == "" {
		return errors.New("id must be a non-empty string")
	}
	if doc.Body == nil || *doc.Body == "" {
		return errors.New("body must be a non-empty string")
	}
	if doc.MeetingDT == nil {
		return errors.New("meeting_dt must be set")
	}
	if doc.IsCancelled == nil {
		return errors.New("is_cancelled must be set")
	}
	if *doc.IsCancelled && (doc.CancelledDT == nil || *doc.CancelledDT == 0 || doc.CancelledReason == nil || *doc.CancelledReason == "") {
		return errors.New("cancelled meetings must have a cancelled_dt and cancelled_reason property")
	}
	if doc.LatestAgenda != nil && doc.LatestAgendaLink == nil {
		return errors.New("meetings with agendas must have an agenda link")
	}
	if doc.LatestMinutes != nil && doc.LatestMinutesLink == nil {
		return errors.New("meetings with minutes must have a minutes link")
	}
	return nil
}
