package core

import (
	"time"

	"github.com/google/uuid"
)

type CheckStatus string

const (
	CheckSuccess CheckStatus = "success"
	CheckFailed  CheckStatus = "failed"
)

// CheckLog is the append-only audit record for one probe. Exactly one row is
// written per probe regardless of outcome; rows are removed only by the
// retention job.
type CheckLog struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	WebsiteID      uuid.UUID   `json:"website_id" db:"website_id"`
	Status         CheckStatus `json:"status" db:"status"`
	HTTPStatus     *int        `json:"http_status" db:"http_status"`
	ResponseTimeMs int64       `json:"response_time_ms" db:"response_time_ms"`
	ErrorMessage   *string     `json:"error_message" db:"error_message"`
	CheckedAt      time.Time   `json:"checked_at" db:"checked_at"`
}

// Outcome is the classified result of probing one URL.
type Outcome struct {
	WebsiteID      uuid.UUID   `json:"website_id"`
	URL            string      `json:"url"`
	Status         CheckStatus `json:"status"`
	HTTPStatus     *int        `json:"http_status,omitempty"`
	ResponseTimeMs int64       `json:"response_time_ms"`
	ErrorMessage   *string     `json:"error_message,omitempty"`
	CheckedAt      time.Time   `json:"checked_at"`
}

// SweepSummary aggregates one full pass over the registered websites.
// Details holds one outcome per website in traversal order.
type SweepSummary struct {
	Total   int       `json:"total"`
	Success int       `json:"success"`
	Failed  int       `json:"failed"`
	Details []Outcome `json:"details"`
}
