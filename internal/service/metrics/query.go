package metrics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ignite/popup-engine/internal/domain"
)

// DefaultStatsSample caps how many recent events feed a stats snapshot.
// Aggregation re-scans the filtered set on every query; the cap keeps that
// scan bounded as event volume grows.
const DefaultStatsSample = 10000

// Engine answers dashboard queries over recorded metric events.
type Engine struct {
	events    EventStore
	sampleMax int
	statsLoc  *time.Location
	now       func() time.Time
}

// NewEngine creates a query engine. loc controls the "today" bucket
// boundary; nil means server-local time, matching the historical dashboard
// behavior.
func NewEngine(events EventStore, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		events:    events,
		sampleMax: DefaultStatsSample,
		statsLoc:  loc,
		now:       time.Now,
	}
}

// QueryRequest selects and windows events for one activity.
type QueryRequest struct {
	ActivityID string
	Filter     EventFilter

	// Limit 0 suppresses event retrieval entirely (stats-only mode).
	Limit int
	Skip  int

	// EventsOnly skips stats computation.
	EventsOnly bool
}

// Pagination describes the window of a query result.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Skip    int  `json:"skip"`
	HasMore bool `json:"hasMore"`
}

// ElementClickCount is the click count for one element selector, paired
// with the text most often seen on that element.
type ElementClickCount struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
	Count    int    `json:"count"`
}

// StatsSnapshot is an on-demand aggregate over a bounded sample of
// matching events. It is computed per query and never persisted.
type StatsSnapshot struct {
	Impressions      int                 `json:"impressions"`
	Clicks           int                 `json:"clicks"`
	Closes           int                 `json:"closes"`
	CTR              float64             `json:"ctr"`
	UniqueVisitors   int                 `json:"uniqueVisitors"`
	RepeatVisitors   int                 `json:"repeatVisitors"`
	ElementClicks    []ElementClickCount `json:"elementClicks"`
	TodayImpressions int                 `json:"todayImpressions"`
	TodayClicks      int                 `json:"todayClicks"`
	SampleSize       int                 `json:"sampleSize"`
}

// QueryResult carries the selected events, the optional stats snapshot,
// and pagination metadata.
type QueryResult struct {
	Stats      *StatsSnapshot       `json:"stats,omitempty"`
	Events     []domain.MetricEvent `json:"metrics"`
	Pagination Pagination           `json:"pagination"`
}

// Query runs the event listing and/or the stats aggregation for one
// activity. Zero matching events yield zeroed stats, never an error.
func (e *Engine) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	f := req.Filter.Normalize()
	if req.Skip < 0 {
		req.Skip = 0
	}
	if req.Limit < 0 {
		req.Limit = 0
	}

	// Total is computed independently of the windowed fetch so pagination
	// stays correct in stats-only mode.
	total, err := e.events.Count(ctx, req.ActivityID, f)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	res := &QueryResult{
		Events: []domain.MetricEvent{},
		Pagination: Pagination{
			Total:   total,
			Limit:   req.Limit,
			Skip:    req.Skip,
			HasMore: req.Skip+req.Limit < total,
		},
	}

	if req.Limit > 0 {
		events, err := e.events.List(ctx, req.ActivityID, f, req.Limit, req.Skip)
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}
		res.Events = events
	}

	if !req.EventsOnly {
		sample, err := e.events.Sample(ctx, req.ActivityID, f, e.sampleMax)
		if err != nil {
			return nil, fmt.Errorf("sample events: %w", err)
		}
		res.Stats = e.aggregate(sample)
	}

	return res, nil
}

// aggregate computes a stats snapshot over the sampled events. The sample
// is ordered timestamp DESC; first-encountered tie-breaks follow that
// iteration order.
func (e *Engine) aggregate(sample []domain.MetricEvent) *StatsSnapshot {
	snap := &StatsSnapshot{
		ElementClicks: []ElementClickCount{},
		SampleSize:    len(sample),
	}

	todayStart := e.dayStart(e.now())

	visitors := make(map[string]struct{})
	selectors := make(map[string]*selectorAgg)

	for i, ev := range sample {
		switch ev.EventType {
		case domain.EventImpression:
			snap.Impressions++
			if !ev.Timestamp.Before(todayStart) {
				snap.TodayImpressions++
			}
		case domain.EventClick:
			snap.Clicks++
			if !ev.Timestamp.Before(todayStart) {
				snap.TodayClicks++
			}
			if ev.ElementSelector != "" {
				agg, ok := selectors[ev.ElementSelector]
				if !ok {
					agg = &selectorAgg{first: i, texts: make(map[string]*textCount)}
					selectors[ev.ElementSelector] = agg
				}
				agg.count++
				if ev.ElementText != "" {
					tc, ok := agg.texts[ev.ElementText]
					if !ok {
						tc = &textCount{first: i}
						agg.texts[ev.ElementText] = tc
					}
					tc.count++
				}
			}
		case domain.EventClose:
			snap.Closes++
		}

		visitors[ev.VisitorID] = struct{}{}
		if ev.IsRepeatVisitor {
			snap.RepeatVisitors++
		}
	}

	snap.UniqueVisitors = len(visitors)
	if snap.Impressions > 0 {
		snap.CTR = math.Round(float64(snap.Clicks)/float64(snap.Impressions)*100*100) / 100
	}

	// Stable output: selectors ordered by count DESC, then first seen.
	for sel, agg := range selectors {
		snap.ElementClicks = append(snap.ElementClicks, ElementClickCount{
			Selector: sel,
			Text:     modalText(agg.texts),
			Count:    agg.count,
		})
	}
	sortElementClicks(snap.ElementClicks, selectors)

	return snap
}

type textCount struct {
	count int
	first int
}

type selectorAgg struct {
	count int
	first int
	texts map[string]*textCount
}

// modalText picks the most frequent element text; ties go to the text seen
// first in sample order.
func modalText(texts map[string]*textCount) string {
	best := ""
	bestCount := 0
	bestFirst := math.MaxInt
	for text, tc := range texts {
		if tc.count > bestCount || (tc.count == bestCount && tc.first < bestFirst) {
			best = text
			bestCount = tc.count
			bestFirst = tc.first
		}
	}
	return best
}

func sortElementClicks(out []ElementClickCount, selectors map[string]*selectorAgg) {
	sort.Slice(out, func(i, j int) bool {
		a, b := selectors[out[i].Selector], selectors[out[j].Selector]
		if a.count != b.count {
			return a.count > b.count
		}
		return a.first < b.first
	})
}

// dayStart returns midnight of now's calendar day in the engine's stats
// timezone.
func (e *Engine) dayStart(now time.Time) time.Time {
	local := now.In(e.statsLoc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, e.statsLoc)
}
