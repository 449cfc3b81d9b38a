// Package memory provides in-memory implementations of the metrics
// repository interfaces. They honor the same contracts as the production
// stores (atomic ledger upsert, timestamp-DESC ordering) and back the
// service-level tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ignite/popup-engine/internal/domain"
	"github.com/ignite/popup-engine/internal/service/metrics"
)

// Ledger is an in-memory metrics.VisitorLedger. The mutex makes the
// insert-if-absent decision atomic, mirroring the conditional put of the
// DynamoDB implementation.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]domain.VisitorLedgerEntry // key: activityID + "\x00" + visitorID
}

// NewLedger creates an empty in-memory visitor ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]domain.VisitorLedgerEntry)}
}

func ledgerKey(activityID, visitorID string) string {
	return activityID + "\x00" + visitorID
}

func (l *Ledger) Touch(_ context.Context, activityID, visitorID string, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey(activityID, visitorID)
	if _, ok := l.entries[key]; ok {
		return false, nil
	}
	l.entries[key] = domain.VisitorLedgerEntry{
		ActivityID:  activityID,
		VisitorID:   visitorID,
		FirstSeenAt: now,
	}
	return true, nil
}

func (l *Ledger) PurgeActivity(_ context.Context, activityID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := activityID + "\x00"
	for k := range l.entries {
		if strings.HasPrefix(k, prefix) {
			delete(l.entries, k)
		}
	}
	return nil
}

// Len reports the number of ledger entries; test helper.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// EventStore is an in-memory metrics.EventStore.
type EventStore struct {
	mu     sync.RWMutex
	events []domain.MetricEvent
}

// NewEventStore creates an empty in-memory event store.
func NewEventStore() *EventStore { return &EventStore{} }

func (s *EventStore) Insert(_ context.Context, ev *domain.MetricEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *ev)
	return nil
}

func (s *EventStore) List(_ context.Context, activityID string, f metrics.EventFilter, limit, skip int) ([]domain.MetricEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.filtered(activityID, f)
	if skip >= len(matched) {
		return []domain.MetricEvent{}, nil
	}
	matched = matched[skip:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	out := make([]domain.MetricEvent, len(matched))
	copy(out, matched)
	return out, nil
}

func (s *EventStore) Count(_ context.Context, activityID string, f metrics.EventFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.filtered(activityID, f)), nil
}

func (s *EventStore) Sample(_ context.Context, activityID string, f metrics.EventFilter, max int) ([]domain.MetricEvent, error) {
	return s.List(context.Background(), activityID, f, max, 0)
}

func (s *EventStore) DeleteByActivity(_ context.Context, activityID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for _, ev := range s.events {
		if ev.ActivityID == activityID {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return deleted, nil
}

// filtered returns matching events sorted timestamp DESC. Callers hold the
// lock.
func (s *EventStore) filtered(activityID string, f metrics.EventFilter) []domain.MetricEvent {
	f = f.Normalize()

	matched := make([]domain.MetricEvent, 0)
	for _, ev := range s.events {
		if ev.ActivityID != activityID {
			continue
		}
		if f.Start != nil && ev.Timestamp.Before(*f.Start) {
			continue
		}
		if f.End != nil && ev.Timestamp.After(*f.End) {
			continue
		}
		if f.EventType != "" && ev.EventType != f.EventType {
			continue
		}
		if f.Search != "" && !strings.Contains(ev.VisitorID, f.Search) {
			continue
		}
		if f.VisitorID != "" && ev.VisitorID != f.VisitorID {
			continue
		}
		if f.VisitorType == metrics.VisitorUnique && !ev.IsUniqueVisitor {
			continue
		}
		if f.VisitorType == metrics.VisitorRepeat && !ev.IsRepeatVisitor {
			continue
		}
		if f.ElementSelector != "" && ev.ElementSelector != f.ElementSelector {
			continue
		}
		matched = append(matched, ev)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	return matched
}

// ActivityStore is an in-memory metrics.ActivityStore.
type ActivityStore struct {
	mu         sync.RWMutex
	activities map[string]domain.Activity
}

// NewActivityStore creates an activity store seeded with the given
// activities.
func NewActivityStore(activities ...domain.Activity) *ActivityStore {
	s := &ActivityStore{activities: make(map[string]domain.Activity)}
	for _, a := range activities {
		s.activities[a.ID] = a
	}
	return s
}

func (s *ActivityStore) Get(_ context.Context, id string) (*domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.activities[id]
	if !ok {
		return nil, metrics.ErrActivityNotFound
	}
	return &a, nil
}

// SubmissionStore is an in-memory metrics.SubmissionStore.
type SubmissionStore struct {
	mu          sync.RWMutex
	submissions []domain.FormSubmission

	// FailFor makes lookups for the given visitor fail, for exercising
	// the export path's per-visitor failure isolation.
	FailFor map[string]error
}

// NewSubmissionStore creates a submission store seeded with the given
// submissions.
func NewSubmissionStore(subs ...domain.FormSubmission) *SubmissionStore {
	return &SubmissionStore{submissions: subs, FailFor: make(map[string]error)}
}

// Add appends a submission after construction; test helper.
func (s *SubmissionStore) Add(sub domain.FormSubmission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions = append(s.submissions, sub)
}

func (s *SubmissionStore) ListByVisitor(_ context.Context, activityID, visitorID string) ([]domain.FormSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err, ok := s.FailFor[visitorID]; ok {
		return nil, err
	}

	out := []domain.FormSubmission{}
	for _, sub := range s.submissions {
		if sub.ActivityID == activityID && sub.VisitorID == visitorID {
			out = append(out, sub)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}
