// Package postgres implements the metrics repository interfaces against
// PostgreSQL using database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ignite/popup-engine/internal/domain"
	"github.com/ignite/popup-engine/internal/service/metrics"
)

// EventRepo implements metrics.EventStore against PostgreSQL.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed metric event store.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, activity_id, project_id, event_type, visitor_id,
	       COALESCE(element_selector,''), COALESCE(element_text,''), page_url,
	       COALESCE(user_agent,''), COALESCE(source_ip,''),
	       is_unique_visitor, is_repeat_visitor, event_at, metadata`

func (r *EventRepo) Insert(ctx context.Context, ev *domain.MetricEvent) error {
	meta, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO popup_metric_events
			(id, activity_id, project_id, event_type, visitor_id,
			 element_selector, element_text, page_url, user_agent, source_ip,
			 is_unique_visitor, is_repeat_visitor, event_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, ev.ID, ev.ActivityID, ev.ProjectID, ev.EventType, ev.VisitorID,
		ev.ElementSelector, ev.ElementText, ev.PageURL, ev.UserAgent, ev.SourceIP,
		ev.IsUniqueVisitor, ev.IsRepeatVisitor, ev.Timestamp, meta)
	if err != nil {
		return fmt.Errorf("insert metric event: %w", err)
	}
	return nil
}

func (r *EventRepo) List(ctx context.Context, activityID string, f metrics.EventFilter, limit, skip int) ([]domain.MetricEvent, error) {
	where, args := buildEventWhere(activityID, f)

	q := fmt.Sprintf(`
		SELECT %s
		FROM popup_metric_events
		%s
		ORDER BY event_at DESC
		LIMIT $%d OFFSET $%d`, eventColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, skip)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list metric events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (r *EventRepo) Count(ctx context.Context, activityID string, f metrics.EventFilter) (int, error) {
	where, args := buildEventWhere(activityID, f)

	var total int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM popup_metric_events "+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count metric events: %w", err)
	}
	return total, nil
}

func (r *EventRepo) Sample(ctx context.Context, activityID string, f metrics.EventFilter, max int) ([]domain.MetricEvent, error) {
	return r.List(ctx, activityID, f, max, 0)
}

func (r *EventRepo) DeleteByActivity(ctx context.Context, activityID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM popup_metric_events WHERE activity_id = $1`, activityID)
	if err != nil {
		return 0, fmt.Errorf("delete metric events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// buildEventWhere assembles the WHERE clause shared by List/Count/Sample.
// The filter is normalized first so search wins over the exact visitor
// match.
func buildEventWhere(activityID string, f metrics.EventFilter) (string, []interface{}) {
	f = f.Normalize()

	clauses := []string{"activity_id = $1"}
	args := []interface{}{activityID}
	idx := 2

	add := func(clause string, arg interface{}) {
		clauses = append(clauses, fmt.Sprintf(clause, idx))
		args = append(args, arg)
		idx++
	}

	if f.Start != nil {
		add("event_at >= $%d", *f.Start)
	}
	if f.End != nil {
		add("event_at <= $%d", *f.End)
	}
	if f.EventType != "" {
		add("event_type = $%d", string(f.EventType))
	}
	if f.Search != "" {
		add("visitor_id ILIKE '%%' || $%d || '%%'", f.Search)
	}
	if f.VisitorID != "" {
		add("visitor_id = $%d", f.VisitorID)
	}
	switch f.VisitorType {
	case metrics.VisitorUnique:
		clauses = append(clauses, "is_unique_visitor = TRUE")
	case metrics.VisitorRepeat:
		clauses = append(clauses, "is_repeat_visitor = TRUE")
	}
	if f.ElementSelector != "" {
		add("element_selector = $%d", f.ElementSelector)
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

func scanEvents(rows *sql.Rows) ([]domain.MetricEvent, error) {
	events := []domain.MetricEvent{}
	for rows.Next() {
		var ev domain.MetricEvent
		var meta []byte
		err := rows.Scan(
			&ev.ID, &ev.ActivityID, &ev.ProjectID, &ev.EventType, &ev.VisitorID,
			&ev.ElementSelector, &ev.ElementText, &ev.PageURL,
			&ev.UserAgent, &ev.SourceIP,
			&ev.IsUniqueVisitor, &ev.IsRepeatVisitor, &ev.Timestamp, &meta,
		)
		if err != nil {
			return nil, fmt.Errorf("scan metric event: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata for event %s: %w", ev.ID, err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metric events: %w", err)
	}
	return events, nil
}
