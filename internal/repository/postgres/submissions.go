package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/popup-engine/internal/domain"
)

// SubmissionRepo implements metrics.SubmissionStore against the form
// submissions table owned by the product's form subsystem. Read-only.
type SubmissionRepo struct{ db *sql.DB }

// NewSubmissionRepo creates a Postgres-backed submission reader.
func NewSubmissionRepo(db *sql.DB) *SubmissionRepo { return &SubmissionRepo{db: db} }

func (r *SubmissionRepo) ListByVisitor(ctx context.Context, activityID, visitorID string) ([]domain.FormSubmission, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, form_id, activity_id, visitor_id, data, submitted_at
		FROM form_submissions
		WHERE activity_id = $1 AND visitor_id = $2
		ORDER BY submitted_at ASC
	`, activityID, visitorID)
	if err != nil {
		return nil, fmt.Errorf("list form submissions: %w", err)
	}
	defer rows.Close()

	subs := []domain.FormSubmission{}
	for rows.Next() {
		var s domain.FormSubmission
		var data []byte
		if err := rows.Scan(&s.ID, &s.FormID, &s.ActivityID, &s.VisitorID, &data, &s.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan form submission: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &s.Data); err != nil {
				return nil, fmt.Errorf("unmarshal data for submission %s: %w", s.ID, err)
			}
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate form submissions: %w", err)
	}
	return subs, nil
}
