// Package store provides durable persistence for signals, lead events,
// companies, mission log entries, and outreach records, with SQLite and
// Postgres backends behind a common interface.
package store

import (
	"context"
	"time"

	"github.com/sells-group/signals-cli/internal/model"
)

// LeadFilter specifies criteria for listing lead events.
type LeadFilter struct {
	States []model.EnrichState `json:"states,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
}

// LeadUpdate describes a partial update applied to a lead event together
// with its mission log entry. Nil fields are left untouched.
type LeadUpdate struct {
	State            *model.EnrichState
	LeadName         *string
	LeadCompany      *string
	LeadDomain       *string
	LeadEmail        *string
	LeadPhone        *string
	DomainConfidence *float64
	EmailConfidence  *float64
	CompanyID        *string
	ArchiveReason    *string
	IncrementAttempt bool
}

// MissionStat aggregates mission log outcomes per phase and action.
type MissionStat struct {
	Phase     string `json:"phase"`
	Action    string `json:"action"`
	Attempts  int    `json:"attempts"`
	Successes int    `json:"successes"`
}

// Store defines the persistence interface for the signal pipeline.
type Store interface {
	// Signals
	InsertSignal(ctx context.Context, sig *model.Signal) (bool, error)
	GetSignal(ctx context.Context, id string) (*model.Signal, error)
	UpdateSignalScore(ctx context.Context, id string, score float64, promoted bool) error
	ListSignals(ctx context.Context, limit int) ([]model.Signal, error)

	// Lead events
	CreateLead(ctx context.Context, lead *model.LeadEvent) error
	GetLead(ctx context.Context, id string) (*model.LeadEvent, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.LeadEvent, error)
	// RecordAttempt appends a mission log entry and applies the lead update
	// in a single transaction, so a layer's log and state commit together.
	RecordAttempt(ctx context.Context, leadID string, entry model.MissionLogEntry, upd *LeadUpdate) error
	// MarkSent performs the compare-and-set transition out of
	// ENRICHED_NO_OUTBOUND. Returns false when another worker already won.
	MarkSent(ctx context.Context, leadID string, at time.Time) (bool, error)
	// RevertSent undoes MarkSent after a failed delivery so the
	// catch-up pass can retry the lead.
	RevertSent(ctx context.Context, leadID string) error
	RequeueLead(ctx context.Context, leadID string, to model.EnrichState) error

	// Mission log
	ListMissionLog(ctx context.Context, leadID string) ([]model.MissionLogEntry, error)
	HasAttempted(ctx context.Context, leadID, phase, action string) (bool, error)
	NextPass(ctx context.Context, leadID string) (int, error)

	// Companies
	UpsertCompany(ctx context.Context, c *model.Company) (string, error)
	GetCompanyByDomain(ctx context.Context, domain string) (*model.Company, error)

	// Adapter health
	RecordAdapterResult(ctx context.Context, name string, errMsg string, failureLimit int) (*model.AdapterHealth, error)
	GetAdapterHealth(ctx context.Context, name string) (*model.AdapterHealth, error)
	ListAdapterHealth(ctx context.Context) ([]model.AdapterHealth, error)
	ResetAdapter(ctx context.Context, name string) error

	// Outbound log and review queue
	LogOutbound(ctx context.Context, rec *model.OutboundRecord) error
	CountOutboundSince(ctx context.Context, since time.Time) (int, error)
	EnqueuePending(ctx context.Context, p *model.PendingOutbound) error
	GetPending(ctx context.Context, id string) (*model.PendingOutbound, error)
	ListPending(ctx context.Context, status model.PendingStatus) ([]model.PendingOutbound, error)
	UpdatePendingStatus(ctx context.Context, id string, status model.PendingStatus) error

	// Settings (operator overrides such as pipeline mode)
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Metrics
	CountLeadsByState(ctx context.Context) (map[model.EnrichState]int, error)
	CountSignalsBySource(ctx context.Context) (map[string]int, error)
	MissionStats(ctx context.Context) ([]MissionStat, error)
	// SuppressionCounts aggregates gate suppressions by triggering rule.
	SuppressionCounts(ctx context.Context) (map[string]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// SettingMode is the settings key holding the operator's pipeline mode
// override. Empty means the configured default applies.
const SettingMode = "pipeline_mode"
