// Package models defines the meeting, search request, and search state types shared by the
// search core, the HTTP server and the CLI.
package models

import "time"

// Meeting is the full record shown on a meeting detail page. CancelledDate and
// CancelledReason are set iff IsCancelled.
type Meeting struct {
	ID                string     `json:"id"`
	Body              string     `json:"body"`
	MeetingDate       time.Time  `json:"meetingDate"`
	FilingDate        *time.Time `json:"filingDate,omitempty"`
	Address           string     `json:"address"`
	IsEmergency       bool       `json:"isEmergency"`
	IsAnnualCalendar  bool       `json:"isAnnualCalendar"`
	IsPublicNotice    bool       `json:"isPublicNotice"`
	LatestAgenda      []string   `json:"latestAgenda"`
	LatestAgendaLink  *string    `json:"latestAgendaLink"`
	LatestMinutes     []string   `json:"latestMinutes"`
	LatestMinutesLink *string    `json:"latestMinutesLink"`
	ContactPerson     string     `json:"contactPerson"`
	ContactEmail      string     `json:"contactEmail"`
	ContactPhone      string     `json:"contactPhone"`
	IsCancelled       bool       `json:"isCancelled"`
	CancelledDate     *time.Time `json:"cancelledDate,omitempty"`
	CancelledReason   *string    `json:"cancelledReason,omitempty"`
}
