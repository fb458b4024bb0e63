package model

import "time"

// EnrichState tracks a lead event through identity resolution. States only
// move forward; ArchivedUnenrichable is a side terminal reachable from any
// non-terminal state.
type EnrichState string

const (
	StateUnenriched         EnrichState = "UNENRICHED"
	StateEnriching          EnrichState = "ENRICHING"
	StateWithDomainNoEmail  EnrichState = "WITH_DOMAIN_NO_EMAIL"
	StateEnrichedNoOutbound EnrichState = "ENRICHED_NO_OUTBOUND"
	StateOutboundSent       EnrichState = "OUTBOUND_SENT"
	StateArchived           EnrichState = "ARCHIVED_UNENRICHABLE"
)

// stateRank orders the forward progression. The archive state sits outside
// the ordering and is handled explicitly.
var stateRank = map[EnrichState]int{
	StateUnenriched:         0,
	StateEnriching:          1,
	StateWithDomainNoEmail:  2,
	StateEnrichedNoOutbound: 3,
	StateOutboundSent:       4,
}

// Valid reports whether s is a recognized enrichment state.
func (s EnrichState) Valid() bool {
	if s == StateArchived {
		return true
	}
	_, ok := stateRank[s]
	return ok
}

// Terminal reports whether no further transitions are allowed from s.
func (s EnrichState) Terminal() bool {
	return s == StateOutboundSent || s == StateArchived
}

// CanAdvanceTo reports whether a transition from s to next is legal: strictly
// forward through the resolution sequence, or into the archive terminal from
// any non-terminal state.
func (s EnrichState) CanAdvanceTo(next EnrichState) bool {
	if s.Terminal() {
		return false
	}
	if next == StateArchived {
		return true
	}
	from, ok := stateRank[s]
	if !ok {
		return false
	}
	to, ok := stateRank[next]
	if !ok {
		return false
	}
	return to > from
}

// UrgencyTier buckets promoted signals by score for outreach prioritization.
type UrgencyTier string

const (
	TierCritical UrgencyTier = "critical"
	TierHigh     UrgencyTier = "high"
	TierStandard UrgencyTier = "standard"
)

// TierForScore maps a composite score to an urgency tier.
func TierForScore(score float64) UrgencyTier {
	switch {
	case score >= 90:
		return TierCritical
	case score >= 75:
		return TierHigh
	default:
		return TierStandard
	}
}

// LeadEvent is a signal promoted past the score threshold, tracked through
// enrichment to outreach. Mutated only by the enrichment state machine and
// the outreach gate; archived, never deleted.
type LeadEvent struct {
	ID               string      `json:"id"`
	SignalID         string      `json:"signal_id"`
	Score            float64     `json:"score"`
	Category         Category    `json:"category"`
	Tier             UrgencyTier `json:"tier"`
	State            EnrichState `json:"state"`
	Attempts         int         `json:"attempts"`
	LeadName         string      `json:"lead_name,omitempty"`
	LeadCompany      string      `json:"lead_company,omitempty"`
	LeadDomain       string      `json:"lead_domain,omitempty"`
	LeadEmail        string      `json:"lead_email,omitempty"`
	LeadPhone        string      `json:"lead_phone,omitempty"`
	DomainConfidence float64     `json:"domain_confidence,omitempty"`
	EmailConfidence  float64     `json:"email_confidence,omitempty"`
	CompanyID        string      `json:"company_id,omitempty"`
	ArchiveReason    string      `json:"archive_reason,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	SentAt           *time.Time  `json:"sent_at,omitempty"`
}

// Contactable reports whether the lead has a resolved email and is in a state
// where outreach may be attempted.
func (l *LeadEvent) Contactable() bool {
	return l.State == StateEnrichedNoOutbound && l.LeadEmail != ""
}
