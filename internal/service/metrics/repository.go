package metrics

import (
	"context"
	"time"

	"github.com/ignite/popup-engine/internal/domain"
)

// VisitorType filters events by the unique/repeat flag resolved at record
// time.
type VisitorType string

const (
	VisitorAny    VisitorType = ""
	VisitorUnique VisitorType = "unique"
	VisitorRepeat VisitorType = "repeat"
)

// EventFilter narrows an event query. Zero values mean "no restriction".
//
// When Search is set it takes precedence over the exact VisitorID match;
// Normalize enforces that so store implementations can apply both fields
// naively.
type EventFilter struct {
	Start           *time.Time
	End             *time.Time
	EventType       domain.MetricEventType
	VisitorID       string
	Search          string
	VisitorType     VisitorType
	ElementSelector string
}

// Normalize applies the documented precedence rules.
func (f EventFilter) Normalize() EventFilter {
	if f.Search != "" {
		f.VisitorID = ""
	}
	return f
}

// EventStore persists and retrieves metric events. Events are append-only:
// no update, no per-event delete. Implementations must be safe for
// concurrent use.
type EventStore interface {
	// Insert persists a new event.
	Insert(ctx context.Context, ev *domain.MetricEvent) error

	// List returns events matching the filter ordered by timestamp DESC,
	// windowed by skip/limit.
	List(ctx context.Context, activityID string, f EventFilter, limit, skip int) ([]domain.MetricEvent, error)

	// Count returns the total number of matching events, independent of
	// any window.
	Count(ctx context.Context, activityID string, f EventFilter) (int, error)

	// Sample returns up to max of the most recent matching events, for
	// bounded-cost aggregation.
	Sample(ctx context.Context, activityID string, f EventFilter, max int) ([]domain.MetricEvent, error)

	// DeleteByActivity removes all events for an activity (cascade on
	// activity deletion). Returns the number of deleted events.
	DeleteByActivity(ctx context.Context, activityID string) (int64, error)
}

// VisitorLedger tracks first-seen state per (activity, visitor) pair.
type VisitorLedger interface {
	// Touch atomically records the pair if it was never seen before.
	// It returns true when this call created the entry (the visitor's
	// first-ever event on the activity) and false when the entry already
	// existed. The insert-if-absent must be a single conditional write so
	// concurrent duplicate first events cannot both observe true.
	Touch(ctx context.Context, activityID, visitorID string, now time.Time) (firstSeen bool, err error)

	// PurgeActivity removes all ledger entries for an activity (cascade on
	// activity deletion).
	PurgeActivity(ctx context.Context, activityID string) error
}

// ActivityStore is the read-only view of activities owned by the
// surrounding product.
type ActivityStore interface {
	// Get returns an activity. Returns ErrActivityNotFound if it doesn't
	// exist.
	Get(ctx context.Context, id string) (*domain.Activity, error)
}

// SubmissionStore is the read-only view of form submissions owned by the
// product's form subsystem.
type SubmissionStore interface {
	// ListByVisitor returns all submissions recorded against the activity
	// by the given visitor, ordered by submitted_at ASC.
	ListByVisitor(ctx context.Context, activityID, visitorID string) ([]domain.FormSubmission, error)
}
