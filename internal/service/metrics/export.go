package metrics

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ignite/popup-engine/internal/domain"
	"github.com/ignite/popup-engine/internal/instrument"
	"github.com/ignite/popup-engine/internal/pkg/logger"
)

// DefaultExportRows caps the number of event rows in one CSV export.
const DefaultExportRows = 10000

// Exporter correlates visitor event timelines with form submissions and
// renders them as CSV.
type Exporter struct {
	engine      *Engine
	submissions SubmissionStore

	// fan-out controls for bulk correlation
	parallelism   int
	lookupTimeout time.Duration
}

// NewExporter creates an exporter. parallelism bounds concurrent
// submission lookups during bulk export; lookupTimeout bounds each lookup.
func NewExporter(engine *Engine, submissions SubmissionStore, parallelism int, lookupTimeout time.Duration) *Exporter {
	if parallelism <= 0 {
		parallelism = 4
	}
	if lookupTimeout <= 0 {
		lookupTimeout = 5 * time.Second
	}
	return &Exporter{
		engine:        engine,
		submissions:   submissions,
		parallelism:   parallelism,
		lookupTimeout: lookupTimeout,
	}
}

// Correlate returns the form submissions recorded against the activity by
// one visitor, for the expanded-row view in the dashboard.
func (e *Exporter) Correlate(ctx context.Context, activityID, visitorID string) ([]domain.FormSubmission, error) {
	subs, err := e.submissions.ListByVisitor(ctx, activityID, visitorID)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	if subs == nil {
		subs = []domain.FormSubmission{}
	}
	return subs, nil
}

// ExportRequest selects the events to export. Limit <= 0 falls back to
// DefaultExportRows.
type ExportRequest struct {
	ActivityID string
	Filter     EventFilter
	Limit      int
	Skip       int
}

var exportHeader = []string{
	"timestamp", "event_type", "visitor_id", "element_selector",
	"element_text", "page_url", "unique_visitor", "repeat_visitor",
	"submission_count", "submission_form_ids", "submission_dates",
	"submission_data",
}

// ExportCSV writes one CSV row per matching metric event, each enriched
// with a summary of the visitor's form submissions on the same activity.
//
// Submission lookups fan out once per distinct visitor under a bounded
// semaphore. A single visitor's lookup failing (or timing out) never
// aborts the export: that visitor's rows carry a zero submission count.
func (e *Exporter) ExportCSV(ctx context.Context, w io.Writer, req ExportRequest) error {
	limit := req.Limit
	if limit <= 0 || limit > DefaultExportRows {
		limit = DefaultExportRows
	}

	res, err := e.engine.Query(ctx, QueryRequest{
		ActivityID: req.ActivityID,
		Filter:     req.Filter,
		Limit:      limit,
		Skip:       req.Skip,
		EventsOnly: true,
	})
	if err != nil {
		return err
	}

	subsByVisitor := e.correlateAll(ctx, req.ActivityID, res.Events)

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, ev := range res.Events {
		if err := cw.Write(exportRow(ev, subsByVisitor[ev.VisitorID])); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	instrument.ExportRowsTotal.Add(float64(len(res.Events)))
	return nil
}

// correlateAll looks up submissions for every distinct visitor in the
// event set, at most e.parallelism lookups in flight.
func (e *Exporter) correlateAll(ctx context.Context, activityID string, events []domain.MetricEvent) map[string][]domain.FormSubmission {
	distinct := make([]string, 0)
	seen := make(map[string]struct{})
	for _, ev := range events {
		if _, ok := seen[ev.VisitorID]; !ok {
			seen[ev.VisitorID] = struct{}{}
			distinct = append(distinct, ev.VisitorID)
		}
	}

	out := make(map[string][]domain.FormSubmission, len(distinct))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.parallelism)

	for _, visitorID := range distinct {
		wg.Add(1)
		sem <- struct{}{}
		go func(vid string) {
			defer wg.Done()
			defer func() { <-sem }()

			lookupCtx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
			defer cancel()

			subs, err := e.submissions.ListByVisitor(lookupCtx, activityID, vid)
			if err != nil {
				// Recovered locally: the row is emitted with count 0.
				logger.Warn("submission lookup failed during export",
					"activity_id", activityID, "visitor_id", vid, "error", err.Error())
				instrument.CorrelationFailuresTotal.Inc()
				return
			}
			mu.Lock()
			out[vid] = subs
			mu.Unlock()
		}(visitorID)
	}
	wg.Wait()
	return out
}

func exportRow(ev domain.MetricEvent, subs []domain.FormSubmission) []string {
	formIDs := make([]string, 0, len(subs))
	dates := make([]string, 0, len(subs))
	data := make([]string, 0, len(subs))
	for _, s := range subs {
		formIDs = append(formIDs, s.FormID)
		dates = append(dates, s.SubmittedAt.UTC().Format(time.RFC3339))
		data = append(data, submissionSummary(s.Data))
	}

	return []string{
		ev.Timestamp.UTC().Format(time.RFC3339),
		string(ev.EventType),
		ev.VisitorID,
		ev.ElementSelector,
		ev.ElementText,
		ev.PageURL,
		strconv.FormatBool(ev.IsUniqueVisitor),
		strconv.FormatBool(ev.IsRepeatVisitor),
		strconv.Itoa(len(subs)),
		strings.Join(formIDs, "; "),
		strings.Join(dates, "; "),
		strings.Join(data, "; "),
	}
}

// submissionSummary renders one submission's fields as "key: value" pairs
// in stable key order.
func submissionSummary(data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+data[k])
	}
	return strings.Join(parts, ", ")
}
