package domain

import "time"

// FormSubmission is a form entry recorded against an activity by the
// surrounding product's form subsystem. The engine reads submissions to
// correlate them with a visitor's event timeline; it never writes them.
type FormSubmission struct {
	ID          string            `json:"id" db:"id"`
	FormID      string            `json:"form_id" db:"form_id"`
	ActivityID  string            `json:"activity_id" db:"activity_id"`
	VisitorID   string            `json:"visitor_id" db:"visitor_id"`
	Data        map[string]string `json:"data" db:"data"`
	SubmittedAt time.Time         `json:"submitted_at" db:"submitted_at"`
}
