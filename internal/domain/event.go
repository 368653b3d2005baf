package domain

import "time"

// TableName is the relational table the enriched events are persisted to.
const TableName = "user_behavior"

// Action is the kind of user interaction recorded by an event.
type Action string

const (
	ActionViewProduct   Action = "view_product"
	ActionAddToCart     Action = "add_to_cart"
	ActionCheckoutStart Action = "checkout_start"
	ActionPurchase      Action = "purchase"
	ActionPageRefresh   Action = "page_refresh"
)

// RawEvent is one record as it appears in the input log.
// Pointer fields distinguish a missing/null value from a zero value.
type RawEvent struct {
	UserID    *string  `json:"user_id" validate:"required,min=1,max=128"`
	Timestamp *string  `json:"timestamp" validate:"required,min=1"`
	Action    *string  `json:"action" validate:"required,oneof=view_product add_to_cart checkout_start purchase page_refresh"`
	Category  *string  `json:"category" validate:"required,min=1,max=64"`
	Amount    *float64 `json:"amount" validate:"required,gte=0"`
	SessionID *string  `json:"session_id" validate:"required,min=1,max=128"`
}

// Event is a record that passed schema validation.
// Timestamp is always set.
type Event struct {
	UserID    string
	Timestamp time.Time
	Action    Action
	Category  string
	Amount    float64
	SessionID string
}

// EnrichedEvent is an Event plus the per-user and per-session features
// derived over the whole batch. Nil pointers mean "undefined".
type EnrichedEvent struct {
	Event

	TimeDiff           *float64
	RollingAvgLatency  *float64
	AmountVolatility   float64
	SessionDurationMin float64
	Hour               int
	IsHighRisk         bool
}

// Columns lists the persisted columns of TableName in order.
var Columns = []string{
	"user_id",
	"timestamp",
	"action",
	"category",
	"amount",
	"session_id",
	"time_diff",
	"rolling_avg_latency",
	"amount_volatility",
	"session_duration_min",
	"hour",
	"is_high_risk",
}

// Run describes one pipeline execution for audit purposes.
type Run struct {
	ID          string
	InputPath   string
	InputDigest string
	StartedAt   time.Time
	Read        int
	Valid       int
	Rejected    int
	HighRisk    int
}
