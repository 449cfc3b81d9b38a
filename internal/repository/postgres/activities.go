package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/popup-engine/internal/domain"
	"github.com/ignite/popup-engine/internal/service/metrics"
)

// ActivityRepo implements metrics.ActivityStore against the activities
// table owned by the surrounding dashboard product. Read-only.
type ActivityRepo struct{ db *sql.DB }

// NewActivityRepo creates a Postgres-backed activity reader.
func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{db: db} }

func (r *ActivityRepo) Get(ctx context.Context, id string) (*domain.Activity, error) {
	a := &domain.Activity{}
	var conditions []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, status, conditions, logic_operator,
		       created_at, updated_at
		FROM activities
		WHERE id = $1
	`, id).Scan(
		&a.ID, &a.ProjectID, &a.Name, &a.Status, &conditions, &a.LogicOperator,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, metrics.ErrActivityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}

	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &a.Conditions); err != nil {
			return nil, fmt.Errorf("unmarshal conditions for activity %s: %w", id, err)
		}
	}
	return a, nil
}
