// Package metrics aggregates pipeline counters from the store into a
// single snapshot for the status command and the control server.
package metrics

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/signals-cli/internal/model"
	"github.com/sells-group/signals-cli/internal/store"
)

// Snapshot is a point-in-time view of pipeline health and throughput.
type Snapshot struct {
	TakenAt          time.Time                 `json:"taken_at"`
	Mode             model.Mode                `json:"mode"`
	LeadsByState     map[model.EnrichState]int `json:"leads_by_state"`
	SignalsBySource  map[string]int            `json:"signals_by_source"`
	MissionStats     []store.MissionStat       `json:"mission_stats"`
	Suppressions     map[string]int            `json:"suppressions"`
	Adapters         []model.AdapterHealth     `json:"adapters"`
	SentLastHour     int                       `json:"sent_last_hour"`
	PendingReview    int                       `json:"pending_review"`
	FunnelConversion float64                   `json:"funnel_conversion"`
}

// Collector builds snapshots.
type Collector struct {
	store store.Store
	mode  func(ctx context.Context) model.Mode
}

// NewCollector wires a collector. The mode func resolves the effective
// pipeline mode including any operator override.
func NewCollector(st store.Store, mode func(ctx context.Context) model.Mode) *Collector {
	return &Collector{store: st, mode: mode}
}

// Collect queries every counter in one pass.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{TakenAt: time.Now().UTC()}
	if c.mode != nil {
		snap.Mode = c.mode(ctx)
	}

	var err error
	if snap.LeadsByState, err = c.store.CountLeadsByState(ctx); err != nil {
		return nil, eris.Wrap(err, "metrics: leads by state")
	}
	if snap.SignalsBySource, err = c.store.CountSignalsBySource(ctx); err != nil {
		return nil, eris.Wrap(err, "metrics: signals by source")
	}
	if snap.MissionStats, err = c.store.MissionStats(ctx); err != nil {
		return nil, eris.Wrap(err, "metrics: mission stats")
	}
	if snap.Suppressions, err = c.store.SuppressionCounts(ctx); err != nil {
		return nil, eris.Wrap(err, "metrics: suppression counts")
	}
	if snap.Adapters, err = c.store.ListAdapterHealth(ctx); err != nil {
		return nil, eris.Wrap(err, "metrics: adapter health")
	}
	if snap.SentLastHour, err = c.store.CountOutboundSince(ctx, snap.TakenAt.Add(-time.Hour)); err != nil {
		return nil, eris.Wrap(err, "metrics: outbound count")
	}

	pending, err := c.store.ListPending(ctx, model.PendingOpen)
	if err != nil {
		return nil, eris.Wrap(err, "metrics: pending review")
	}
	snap.PendingReview = len(pending)

	snap.FunnelConversion = conversion(snap.LeadsByState)
	return snap, nil
}

// conversion is the share of all leads that reached OUTBOUND_SENT.
func conversion(byState map[model.EnrichState]int) float64 {
	total := 0
	for _, n := range byState {
		total += n
	}
	if total == 0 {
		return 0
	}
	return float64(byState[model.StateOutboundSent]) / float64(total)
}
