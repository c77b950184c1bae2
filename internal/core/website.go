package core

import (
	"time"

	"github.com/google/uuid"
)

type WebsiteStatus string

const (
	StatusUnchecked WebsiteStatus = "unchecked"
	StatusActive    WebsiteStatus = "active"
	StatusFailed    WebsiteStatus = "failed"
)

// Website is a registered external URL the monitor probes. Rows are created
// by the registration API and mutated only through status updates and the
// explicit reset operation; the monitor never deletes them.
type Website struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	URL           string        `json:"url" db:"url"`
	Name          string        `json:"name" db:"name"`
	Status        WebsiteStatus `json:"status" db:"status"`
	LastCheckedAt *time.Time    `json:"last_checked_at" db:"last_checked_at"`
	FailedCount   int           `json:"failed_count" db:"failed_count"`
	StatusMessage *string       `json:"status_message" db:"status_message"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// StatusUpdate is the write applied to a website after one probe settles.
type StatusUpdate struct {
	Status        WebsiteStatus
	LastCheckedAt *time.Time
	FailedCount   int
	StatusMessage *string
}
