// Package outreach gates enriched leads through suppression and rate
// checks, then sends immediately or queues for human review.
package outreach

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/signals-cli/internal/config"
	"github.com/sells-group/signals-cli/internal/model"
	"github.com/sells-group/signals-cli/internal/store"
)

// Suppression reasons recorded on gate decisions.
const (
	ReasonDoNotContact = "do_not_contact"
	ReasonNoEmail      = "no_email"
	ReasonSelfSignal   = "self_signal"
	ReasonCycleCap     = "cycle_cap_reached"
	ReasonHourlyCap    = "hourly_cap_reached"
	ReasonAlreadySent  = "already_sent"
	ReasonBadState     = "not_contactable"
)

// Gate runs every enriched lead through an ordered suppression check list
// before anything leaves the system.
type Gate struct {
	store     store.Store
	deliverer Deliverer
	dnc       *Suppression

	mode          model.OutreachMode
	customerEmail string
	selfDomains   []string
	selfNames     []string
	maxPerCycle   int
	maxPerHour    int

	mu        sync.Mutex
	sentCycle int
	now       func() time.Time
}

// NewGate builds the gate from config. An unrecognized mode falls back to
// REVIEW: the safe failure is a queue, never an unintended send.
func NewGate(st store.Store, deliverer Deliverer, cfg config.OutreachConfig) *Gate {
	mode := model.OutreachMode(strings.ToUpper(cfg.Mode))
	if mode != model.OutreachAuto && mode != model.OutreachReview {
		if cfg.Mode != "" {
			zap.L().Warn("unrecognized outreach mode, defaulting to REVIEW",
				zap.String("mode", cfg.Mode))
		}
		mode = model.OutreachReview
	}
	return &Gate{
		store:         st,
		deliverer:     deliverer,
		dnc:           ParseDNC(cfg.DoNotContact),
		mode:          mode,
		customerEmail: cfg.CustomerEmail,
		selfDomains:   lowerAll(cfg.SelfDomains),
		selfNames:     lowerAll(cfg.SelfNames),
		maxPerCycle:   cfg.MaxPerCycle,
		maxPerHour:    cfg.MaxPerHour,
		now:           time.Now,
	}
}

// ResetCycle zeroes the per-cycle send counter. The pipeline calls this at
// the top of every cycle.
func (g *Gate) ResetCycle() {
	g.mu.Lock()
	g.sentCycle = 0
	g.mu.Unlock()
}

// Dispatch runs the check list for one lead and acts on the verdict.
func (g *Gate) Dispatch(ctx context.Context, lead *model.LeadEvent) (model.GateDecision, error) {
	log := zap.L().With(zap.String("lead_id", lead.ID), zap.String("email", lead.LeadEmail))

	decision := g.evaluate(ctx, lead)
	switch decision.Outcome {
	case model.GateSuppress:
		g.logDecision(ctx, lead.ID, decision)
		log.Info("outreach suppressed", zap.String("reason", decision.Reason))
		return decision, nil

	case model.GateQueue:
		pending := &model.PendingOutbound{
			LeadID:  lead.ID,
			Message: Compose(lead, g.customerEmail),
		}
		if err := g.store.EnqueuePending(ctx, pending); err != nil {
			return decision, eris.Wrap(err, "outreach: enqueue pending")
		}
		g.logDecision(ctx, lead.ID, decision)
		log.Info("outreach queued for review", zap.String("pending_id", pending.ID))
		return decision, nil

	case model.GateSend:
		sent, err := g.send(ctx, lead)
		if err != nil {
			return model.GateDecision{}, err
		}
		if !sent {
			decision = model.GateDecision{Outcome: model.GateSuppress, Reason: ReasonAlreadySent}
		}
		g.logDecision(ctx, lead.ID, decision)
		if sent {
			log.Info("outreach sent", zap.String("channel", g.deliverer.Name()))
		}
		return decision, nil
	}
	return decision, nil
}

// evaluate applies the suppression checks in order. First hit wins.
func (g *Gate) evaluate(ctx context.Context, lead *model.LeadEvent) model.GateDecision {
	if blocked, entry := g.dnc.Blocks(lead.LeadEmail); blocked {
		return model.GateDecision{Outcome: model.GateSuppress, Reason: ReasonDoNotContact + ":" + entry}
	}
	if lead.LeadEmail == "" {
		return model.GateDecision{Outcome: model.GateSuppress, Reason: ReasonNoEmail}
	}
	if lead.State != model.StateEnrichedNoOutbound {
		return model.GateDecision{Outcome: model.GateSuppress, Reason: ReasonBadState}
	}
	if g.isSelfSignal(lead) {
		return model.GateDecision{Outcome: model.GateSuppress, Reason: ReasonSelfSignal}
	}

	g.mu.Lock()
	cycleFull := g.maxPerCycle > 0 && g.sentCycle >= g.maxPerCycle
	g.mu.Unlock()
	if cycleFull {
		return model.GateDecision{Outcome: model.GateSuppress, Reason: ReasonCycleCap}
	}

	if g.maxPerHour > 0 {
		count, err := g.store.CountOutboundSince(ctx, g.now().UTC().Add(-time.Hour))
		if err != nil {
			zap.L().Warn("outbound rate lookup failed", zap.Error(err))
			return model.GateDecision{Outcome: model.GateSuppress, Reason: ReasonHourlyCap}
		}
		if count >= g.maxPerHour {
			return model.GateDecision{Outcome: model.GateSuppress, Reason: ReasonHourlyCap}
		}
	}

	if g.mode == model.OutreachReview {
		return model.GateDecision{Outcome: model.GateQueue}
	}
	return model.GateDecision{Outcome: model.GateSend}
}

// send performs the compare-and-set state transition, then delivers. The
// CAS guarantees a lead is sent at most once even under concurrent
// dispatch; the loser backs off without touching the channel.
func (g *Gate) send(ctx context.Context, lead *model.LeadEvent) (bool, error) {
	at := g.now().UTC()
	won, err := g.store.MarkSent(ctx, lead.ID, at)
	if err != nil {
		return false, eris.Wrap(err, "outreach: mark sent")
	}
	if !won {
		return false, nil
	}

	msg := Compose(lead, g.customerEmail)
	if err := g.deliverer.Deliver(ctx, msg); err != nil {
		// undo the transition so the catch-up pass retries; a delivery
		// failure never counts against the enrichment budget
		if revertErr := g.store.RevertSent(ctx, lead.ID); revertErr != nil {
			zap.L().Error("revert after failed delivery also failed",
				zap.String("lead_id", lead.ID), zap.Error(revertErr))
		}
		g.logDeliveryFailure(ctx, lead.ID, err)
		return false, eris.Wrap(err, "outreach: deliver")
	}

	if err := g.store.LogOutbound(ctx, &model.OutboundRecord{
		LeadID:    lead.ID,
		Recipient: msg.To,
		SentAt:    at,
	}); err != nil {
		return true, eris.Wrap(err, "outreach: log outbound")
	}

	g.mu.Lock()
	g.sentCycle++
	g.mu.Unlock()

	lead.State = model.StateOutboundSent
	lead.SentAt = &at
	return true, nil
}

// ApprovePending delivers a reviewed message and closes it out.
func (g *Gate) ApprovePending(ctx context.Context, id string) error {
	pending, err := g.store.GetPending(ctx, id)
	if err != nil {
		return err
	}
	if pending == nil {
		return eris.Errorf("outreach: pending %s not found", id)
	}
	if pending.Status != model.PendingOpen {
		return eris.Errorf("outreach: pending %s already %s", id, pending.Status)
	}

	lead, err := g.store.GetLead(ctx, pending.LeadID)
	if err != nil {
		return err
	}

	sent, err := g.send(ctx, lead)
	if err != nil {
		return err
	}
	if !sent {
		// already sent through another path; close the review item anyway
		zap.L().Warn("approved message was already sent",
			zap.String("pending_id", id), zap.String("lead_id", pending.LeadID))
	}
	return g.store.UpdatePendingStatus(ctx, id, model.PendingApproved)
}

// RejectPending closes a queued message without sending.
func (g *Gate) RejectPending(ctx context.Context, id string) error {
	pending, err := g.store.GetPending(ctx, id)
	if err != nil {
		return err
	}
	if pending == nil {
		return eris.Errorf("outreach: pending %s not found", id)
	}
	if pending.Status != model.PendingOpen {
		return eris.Errorf("outreach: pending %s already %s", id, pending.Status)
	}
	return g.store.UpdatePendingStatus(ctx, id, model.PendingRejected)
}

func (g *Gate) isSelfSignal(lead *model.LeadEvent) bool {
	_, domain, _ := strings.Cut(strings.ToLower(lead.LeadEmail), "@")
	for _, d := range g.selfDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	if lead.LeadDomain != "" {
		leadDomain := model.NormalizeDomain(lead.LeadDomain)
		for _, d := range g.selfDomains {
			if leadDomain == d {
				return true
			}
		}
	}
	name := model.NormalizeName(lead.LeadName)
	for _, n := range g.selfNames {
		if name != "" && name == model.NormalizeName(n) {
			return true
		}
	}
	return false
}

func (g *Gate) logDeliveryFailure(ctx context.Context, leadID string, cause error) {
	entry := model.MissionLogEntry{
		Phase:   model.PhaseOutreach,
		Action:  "deliver",
		Result:  "failed",
		Detail:  cause.Error(),
		Success: false,
	}
	if err := g.store.RecordAttempt(ctx, leadID, entry, nil); err != nil {
		zap.L().Warn("record delivery failure failed",
			zap.String("lead_id", leadID), zap.Error(err))
	}
}

func (g *Gate) logDecision(ctx context.Context, leadID string, decision model.GateDecision) {
	entry := model.MissionLogEntry{
		Phase:   model.PhaseOutreach,
		Action:  "gate",
		Result:  string(decision.Outcome),
		Detail:  decision.Reason,
		Success: decision.Outcome != model.GateSuppress,
	}
	if err := g.store.RecordAttempt(ctx, leadID, entry, nil); err != nil {
		zap.L().Warn("record gate decision failed",
			zap.String("lead_id", leadID), zap.Error(err))
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
