package domain

import "time"

// MetricEventType enumerates the interaction events a popup can report.
type MetricEventType string

const (
	EventImpression MetricEventType = "impression"
	EventClick      MetricEventType = "click"
	EventClose      MetricEventType = "close"
)

// Valid reports whether t is one of the known event types.
func (t MetricEventType) Valid() bool {
	switch t {
	case EventImpression, EventClick, EventClose:
		return true
	}
	return false
}

// MetricEvent is one immutable interaction record from an anonymous site
// visitor. Events are append-only: created once by the recorder, never
// updated, deleted only as a cascade when the parent activity is deleted.
//
// Exactly one of IsUniqueVisitor/IsRepeatVisitor is true once the visitor
// ledger has resolved the event.
type MetricEvent struct {
	ID              string          `json:"id" db:"id"`
	ActivityID      string          `json:"activity_id" db:"activity_id"`
	ProjectID       string          `json:"project_id" db:"project_id"`
	EventType       MetricEventType `json:"event_type" db:"event_type"`
	VisitorID       string          `json:"visitor_id" db:"visitor_id"`
	ElementSelector string          `json:"element_selector,omitempty" db:"element_selector"`
	ElementText     string          `json:"element_text,omitempty" db:"element_text"`
	PageURL         string          `json:"page_url" db:"page_url"`
	UserAgent       string          `json:"user_agent,omitempty" db:"user_agent"`
	SourceIP        string          `json:"source_ip,omitempty" db:"source_ip"`
	IsUniqueVisitor bool            `json:"is_unique_visitor" db:"is_unique_visitor"`
	IsRepeatVisitor bool            `json:"is_repeat_visitor" db:"is_repeat_visitor"`
	Timestamp       time.Time       `json:"timestamp" db:"timestamp"`
	Metadata        Metadata        `json:"metadata,omitempty" db:"metadata"`
}

// VisitorLedgerEntry records the first time a visitor was seen on an
// activity. Entries are written once and never mutated.
type VisitorLedgerEntry struct {
	ActivityID  string    `json:"activity_id"`
	VisitorID   string    `json:"visitor_id"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}
