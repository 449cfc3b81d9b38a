package domain

import "time"

// ConditionType enumerates the kinds of URL targeting rules an activity
// can carry.
type ConditionType string

const (
	ConditionContains       ConditionType = "contains"
	ConditionEquals         ConditionType = "equals"
	ConditionStartsWith     ConditionType = "startsWith"
	ConditionDoesNotContain ConditionType = "doesNotContain"
	ConditionLanding        ConditionType = "landing"
)

// LogicOperator combines an activity's targeting conditions.
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// TargetingCondition is a single URL rule. Value is ignored for the
// landing type. Domain, when set, restricts the condition to pages served
// from that host.
type TargetingCondition struct {
	Type   ConditionType `json:"type" db:"type"`
	Value  string        `json:"value" db:"value"`
	Domain string        `json:"domain,omitempty" db:"domain"`
}

// ActivityStatus enumerates the lifecycle states of a popup activity.
type ActivityStatus string

const (
	ActivityDraft    ActivityStatus = "draft"
	ActivityActive   ActivityStatus = "active"
	ActivityPaused   ActivityStatus = "paused"
	ActivityArchived ActivityStatus = "archived"
)

// Activity is a configured popup with its targeting rules. Activities are
// owned by the surrounding dashboard product; the engine reads them and
// never writes them.
type Activity struct {
	ID            string               `json:"id" db:"id"`
	ProjectID     string               `json:"project_id" db:"project_id"`
	Name          string               `json:"name" db:"name"`
	Status        ActivityStatus       `json:"status" db:"status"`
	Conditions    []TargetingCondition `json:"conditions" db:"conditions"`
	LogicOperator LogicOperator        `json:"logic_operator" db:"logic_operator"`
	CreatedAt     time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at" db:"updated_at"`
}
