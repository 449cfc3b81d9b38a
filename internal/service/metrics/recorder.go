package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/popup-engine/internal/domain"
	"github.com/ignite/popup-engine/internal/pkg/logger"
)

// Recorder validates and persists incoming tracking events. It is
// stateless; all state lives in the injected stores.
type Recorder struct {
	activities ActivityStore
	ledger     VisitorLedger
	events     EventStore
	now        func() time.Time
}

// NewRecorder creates a new event recorder.
func NewRecorder(activities ActivityStore, ledger VisitorLedger, events EventStore) *Recorder {
	return &Recorder{
		activities: activities,
		ledger:     ledger,
		events:     events,
		now:        time.Now,
	}
}

// RecordRequest carries one incoming tracking event. Client-supplied
// unique/repeat hints are deliberately absent: the ledger is the only
// authority on visitor status, since the ingestion path is public and the
// caller untrusted.
type RecordRequest struct {
	ActivityID      string
	EventType       domain.MetricEventType
	VisitorID       string
	ElementSelector string
	ElementText     string
	PageURL         string
	UserAgent       string
	SourceIP        string
	Metadata        domain.Metadata
}

// Record runs the full ingestion pipeline: activity existence check,
// atomic visitor-ledger upsert, event persist.
//
// Ordering matters: the ledger is touched before the event write, so a
// half-failed call at worst drops one event and never double-counts a
// unique visitor. Duplicate calls produce duplicate events by design; the
// engine deduplicates visitors, not events.
func (r *Recorder) Record(ctx context.Context, req RecordRequest) (*domain.MetricEvent, error) {
	if !req.EventType.Valid() {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, req.EventType)
	}
	if req.VisitorID == "" {
		return nil, fmt.Errorf("%w: missing visitor id", ErrInvalidEvent)
	}
	if req.PageURL == "" {
		return nil, fmt.Errorf("%w: missing page url", ErrInvalidEvent)
	}

	activity, err := r.activities.Get(ctx, req.ActivityID)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()

	firstSeen, err := r.ledger.Touch(ctx, activity.ID, req.VisitorID, now)
	if err != nil {
		return nil, fmt.Errorf("visitor ledger: %w", err)
	}

	ev := &domain.MetricEvent{
		ID:              uuid.New().String(),
		ActivityID:      activity.ID,
		ProjectID:       activity.ProjectID,
		EventType:       req.EventType,
		VisitorID:       req.VisitorID,
		ElementSelector: req.ElementSelector,
		ElementText:     req.ElementText,
		PageURL:         req.PageURL,
		UserAgent:       req.UserAgent,
		SourceIP:        req.SourceIP,
		IsUniqueVisitor: firstSeen,
		IsRepeatVisitor: !firstSeen,
		Timestamp:       now,
		Metadata:        req.Metadata,
	}

	if err := r.events.Insert(ctx, ev); err != nil {
		// The ledger entry stays; retried inserts for the same visitor
		// will correctly resolve as repeat.
		return nil, fmt.Errorf("persist event: %w", err)
	}

	logger.Debug("event recorded",
		"activity_id", ev.ActivityID,
		"event_type", string(ev.EventType),
		"visitor_id", ev.VisitorID,
		"unique", fmt.Sprintf("%t", ev.IsUniqueVisitor),
	)
	return ev, nil
}

// DeleteActivityData removes all engine-owned state for an activity: its
// metric events and its visitor ledger entries. Called by the surrounding
// product when an activity is deleted.
func (r *Recorder) DeleteActivityData(ctx context.Context, activityID string) (int64, error) {
	deleted, err := r.events.DeleteByActivity(ctx, activityID)
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	if err := r.ledger.PurgeActivity(ctx, activityID); err != nil {
		return deleted, fmt.Errorf("purge ledger: %w", err)
	}
	logger.Info("activity data deleted", "activity_id", activityID, "events", fmt.Sprintf("%d", deleted))
	return deleted, nil
}
