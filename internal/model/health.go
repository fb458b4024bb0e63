package model

import "time"

// AdapterHealth is the persisted failure-isolation record for one source
// adapter. Counters live in the store so auto-disable survives restarts.
type AdapterHealth struct {
	Name                string     `json:"name"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Disabled            bool       `json:"disabled"`
	LastError           string     `json:"last_error,omitempty"`
	LastRunAt           *time.Time `json:"last_run_at,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
}
