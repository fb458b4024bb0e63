package model

import "time"

// MissionLogEntry is one append-only record of an enrichment attempt. The
// mission log is the sole audit trail for why a lead did or did not resolve.
type MissionLogEntry struct {
	ID         string    `json:"id"`
	LeadID     string    `json:"lead_id"`
	Pass       int       `json:"pass"`
	Phase      string    `json:"phase"`  // name_resolution, domain_discovery, email_discovery, phone_extraction, outreach
	Action     string    `json:"action"` // the specific sub-layer or check attempted
	Query      string    `json:"query,omitempty"`
	Result     string    `json:"result,omitempty"`
	Success    bool      `json:"success"`
	Detail     string    `json:"detail,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Enrichment phases recorded in the mission log.
const (
	PhaseName     = "name_resolution"
	PhaseDomain   = "domain_discovery"
	PhaseEmail    = "email_discovery"
	PhasePhone    = "phone_extraction"
	PhaseOutreach = "outreach"
	PhaseArchive  = "archive"
)
