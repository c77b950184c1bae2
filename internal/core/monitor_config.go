package core

import "time"

// MonitorConfig is the single-row runtime configuration for the monitor.
// CheckInterval is informational; the actual cadence is the scheduler's
// fixed daily trigger. MaxRetries is persisted for operators but the status
// transition does not gate on it (see DESIGN.md).
type MonitorConfig struct {
	CheckInterval int       `json:"check_interval" db:"check_interval"` // seconds
	Timeout       int       `json:"timeout" db:"timeout"`               // milliseconds per probe
	MaxRetries    int       `json:"max_retries" db:"max_retries"`
	Enabled       bool      `json:"enabled" db:"enabled"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultMonitorConfig is written on first read when no config row exists.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		CheckInterval: 86400,
		Timeout:       10000,
		MaxRetries:    3,
		Enabled:       true,
		UpdatedAt:     time.Now().UTC(),
	}
}

// Statistics is the read-only aggregate over all websites and check logs.
// ActiveRate is a percentage, 0 when no websites are registered.
type Statistics struct {
	Total       int        `json:"total"`
	Active      int        `json:"active"`
	Failed      int        `json:"failed"`
	Unchecked   int        `json:"unchecked"`
	LastCheckAt *time.Time `json:"last_check_at"`
	ActiveRate  float64    `json:"active_rate"`
}
