// Package enrich implements the forward-only lead enrichment state
// machine: name resolution, domain discovery, email discovery, and
// best-effort phone extraction, with a mission log entry per attempt.
package enrich

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/signals-cli/internal/config"
	"github.com/sells-group/signals-cli/internal/fetch"
	"github.com/sells-group/signals-cli/internal/model"
	"github.com/sells-group/signals-cli/internal/store"
)

// Dispatcher attempts outreach for a fully enriched lead. Implemented by
// the outreach gate; enrichment fires it the moment an email lands.
type Dispatcher interface {
	Dispatch(ctx context.Context, lead *model.LeadEvent) (model.GateDecision, error)
}

// Archive reasons recorded on the lead event.
const (
	ArchiveBudgetExhausted = "attempt_budget_exhausted"
	ArchiveStale           = "stale_no_progress"
)

// PassStats summarizes one enrichment pass.
type PassStats struct {
	Processed  int `json:"processed"`
	Advanced   int `json:"advanced"`
	Archived   int `json:"archived"`
	Dispatched int `json:"dispatched"`
}

// Engine drives enrichment for promoted leads.
type Engine struct {
	store      store.Store
	fetcher    *fetch.Fetcher
	domains    *DomainDiscoverer
	emails     *EmailDiscoverer
	phones     *PhoneExtractor
	dispatcher Dispatcher

	attemptBudget int
	stalenessDays int
	maxPerCycle   int
	workers       int
	now           func() time.Time
}

// NewEngine wires the enrichment layers together.
func NewEngine(st store.Store, fetcher *fetch.Fetcher, domains *DomainDiscoverer, emails *EmailDiscoverer, phones *PhoneExtractor, dispatcher Dispatcher, cfg config.EnrichConfig, workers int) *Engine {
	if workers <= 0 {
		workers = 1
	}
	return &Engine{
		store:         st,
		fetcher:       fetcher,
		domains:       domains,
		emails:        emails,
		phones:        phones,
		dispatcher:    dispatcher,
		attemptBudget: cfg.AttemptBudget,
		stalenessDays: cfg.StalenessDays,
		maxPerCycle:   cfg.MaxPerCycle,
		workers:       workers,
		now:           time.Now,
	}
}

// RunPass enriches up to the per-cycle cap of in-flight leads, then runs
// the catch-up dispatch over already-enriched leads.
func (e *Engine) RunPass(ctx context.Context) (PassStats, error) {
	leads, err := e.store.ListLeads(ctx, store.LeadFilter{
		States: []model.EnrichState{
			model.StateUnenriched,
			model.StateEnriching,
			model.StateWithDomainNoEmail,
		},
		Limit: e.maxPerCycle,
	})
	if err != nil {
		return PassStats{}, eris.Wrap(err, "enrich: list leads")
	}

	var stats PassStats
	results := make([]leadOutcome, len(leads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range leads {
		g.Go(func() error {
			results[i] = e.enrichLead(gctx, &leads[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	for _, r := range results {
		stats.Processed++
		if r.advanced {
			stats.Advanced++
		}
		if r.archived {
			stats.Archived++
		}
		if r.dispatched {
			stats.Dispatched++
		}
	}

	dispatched, err := e.CatchUp(ctx)
	if err != nil {
		return stats, err
	}
	stats.Dispatched += dispatched
	return stats, nil
}

// CatchUp re-dispatches enriched leads that never made it out, the safety
// net behind immediate send.
func (e *Engine) CatchUp(ctx context.Context) (int, error) {
	if e.dispatcher == nil {
		return 0, nil
	}
	leads, err := e.store.ListLeads(ctx, store.LeadFilter{
		States: []model.EnrichState{model.StateEnrichedNoOutbound},
	})
	if err != nil {
		return 0, eris.Wrap(err, "enrich: list enriched leads")
	}

	dispatched := 0
	for i := range leads {
		decision, err := e.dispatcher.Dispatch(ctx, &leads[i])
		if err != nil {
			zap.L().Warn("catch-up dispatch failed",
				zap.String("lead_id", leads[i].ID), zap.Error(err))
			continue
		}
		if decision.Outcome == model.GateSend {
			dispatched++
		}
	}
	return dispatched, nil
}

type leadOutcome struct {
	advanced   bool
	archived   bool
	dispatched bool
}

func (e *Engine) enrichLead(ctx context.Context, lead *model.LeadEvent) leadOutcome {
	log := zap.L().With(zap.String("lead_id", lead.ID), zap.String("state", string(lead.State)))
	var out leadOutcome

	if e.shouldArchive(lead) {
		reason := ArchiveBudgetExhausted
		if lead.Attempts < e.attemptBudget {
			reason = ArchiveStale
		}
		if err := e.archive(ctx, lead, reason); err != nil {
			log.Warn("archive failed", zap.Error(err))
			return out
		}
		log.Info("lead archived", zap.String("reason", reason))
		out.archived = true
		return out
	}

	pass, err := e.store.NextPass(ctx, lead.ID)
	if err != nil {
		log.Warn("next pass lookup failed", zap.Error(err))
		return out
	}

	sig, err := e.store.GetSignal(ctx, lead.SignalID)
	if err != nil {
		log.Warn("signal lookup failed", zap.Error(err))
		return out
	}

	articleHTML := e.fetchArticle(ctx, sig)
	progressed := false
	attemptCounted := false

	// record commits the mission entry and any lead update in one
	// transaction, charging the attempt budget once per pass.
	record := func(entry model.MissionLogEntry, upd *store.LeadUpdate) error {
		entry.Pass = pass
		if !attemptCounted {
			if upd == nil {
				upd = &store.LeadUpdate{}
			}
			upd.IncrementAttempt = true
			attemptCounted = true
		}
		if err := e.store.RecordAttempt(ctx, lead.ID, entry, upd); err != nil {
			return err
		}
		if upd != nil {
			applyUpdate(lead, upd)
		}
		return nil
	}

	// Layer 1: name
	if lead.LeadName == "" {
		if ok := e.resolveName(ctx, lead, sig, articleHTML, record, log); ok {
			progressed = true
		}
	}

	// Layer 2: domain
	if lead.LeadDomain == "" {
		if ok := e.resolveDomain(ctx, lead, sig, articleHTML, record, log); ok {
			progressed = true
		}
	}

	// Layer 3: email
	if lead.LeadDomain != "" && lead.LeadEmail == "" {
		if ok := e.resolveEmail(ctx, lead, record, log); ok {
			progressed = true
		}
	}

	// Layer 4: phone, best effort only
	if lead.LeadDomain != "" && lead.LeadPhone == "" {
		e.resolvePhone(ctx, lead, record, log)
	}

	// every pass burns an attempt, even one where each remaining action
	// is dedupe-blocked, or a stuck lead would occupy the queue forever
	if !attemptCounted {
		entry := model.MissionLogEntry{
			Phase:  pendingPhase(lead),
			Action: "retry",
			Detail: "all remaining actions previously failed",
		}
		if err := record(entry, nil); err != nil {
			log.Warn("record blocked pass failed", zap.Error(err))
		}
	}

	if progressed {
		e.upsertCompany(ctx, lead, log)
		out.advanced = true
	}

	if lead.State == model.StateEnrichedNoOutbound && e.dispatcher != nil {
		decision, err := e.dispatcher.Dispatch(ctx, lead)
		if err != nil {
			log.Warn("immediate dispatch failed", zap.Error(err))
		} else if decision.Outcome == model.GateSend {
			out.dispatched = true
		}
	}

	if !progressed && attemptCounted && lead.Attempts >= e.attemptBudget {
		if err := e.archive(ctx, lead, ArchiveBudgetExhausted); err == nil {
			out.archived = true
		}
	}
	return out
}

func (e *Engine) shouldArchive(lead *model.LeadEvent) bool {
	if lead.Attempts >= e.attemptBudget {
		return true
	}
	if e.stalenessDays > 0 {
		staleAfter := time.Duration(e.stalenessDays) * 24 * time.Hour
		if e.now().UTC().Sub(lead.UpdatedAt) > staleAfter {
			return true
		}
	}
	return false
}

func (e *Engine) archive(ctx context.Context, lead *model.LeadEvent, reason string) error {
	state := model.StateArchived
	entry := model.MissionLogEntry{
		Phase:   model.PhaseArchive,
		Action:  "archive",
		Result:  reason,
		Success: true,
	}
	upd := &store.LeadUpdate{State: &state, ArchiveReason: &reason}
	if err := e.store.RecordAttempt(ctx, lead.ID, entry, upd); err != nil {
		return err
	}
	applyUpdate(lead, upd)
	return nil
}

func (e *Engine) fetchArticle(ctx context.Context, sig *model.Signal) string {
	if sig.URL == "" || strings.Contains(sig.URL, "news.google.com") {
		return ""
	}
	page, err := e.fetcher.Get(ctx, sig.URL)
	if err != nil {
		return ""
	}
	return page.HTML
}

type recordFunc func(entry model.MissionLogEntry, upd *store.LeadUpdate) error

func (e *Engine) resolveName(ctx context.Context, lead *model.LeadEvent, sig *model.Signal, articleHTML string, record recordFunc, log *zap.Logger) bool {
	const action = "namestorm"
	if e.alreadyFailed(ctx, lead.ID, model.PhaseName, action) {
		return false
	}

	start := e.now()
	candidate, ok := BestName(sig.Title, sig.Summary, articleHTML)
	entry := model.MissionLogEntry{
		Phase:      model.PhaseName,
		Action:     action,
		Query:      truncate(sig.Title, 120),
		Success:    ok,
		DurationMS: e.now().Sub(start).Milliseconds(),
	}

	if !ok {
		entry.Detail = "no branded candidate above floor"
		if err := record(entry, nil); err != nil {
			log.Warn("record name attempt failed", zap.Error(err))
		}
		return false
	}

	entry.Result = candidate.Name
	entry.Detail = candidate.Source

	state := lead.State
	if state == model.StateUnenriched {
		state = model.StateEnriching
	}
	upd := &store.LeadUpdate{
		LeadName:    &candidate.Name,
		LeadCompany: &candidate.Name,
		State:       &state,
	}
	if err := record(entry, upd); err != nil {
		log.Warn("record name attempt failed", zap.Error(err))
		return false
	}
	log.Info("name resolved",
		zap.String("name", candidate.Name),
		zap.Float64("confidence", candidate.Confidence),
		zap.String("source", candidate.Source))
	return true
}

func (e *Engine) resolveDomain(ctx context.Context, lead *model.LeadEvent, sig *model.Signal, articleHTML string, record recordFunc, log *zap.Logger) bool {
	const action = "domain_discovery"
	if e.alreadyFailed(ctx, lead.ID, model.PhaseDomain, action) {
		return false
	}

	start := e.now()
	result, err := e.domains.Discover(ctx, lead, sig, articleHTML)
	entry := model.MissionLogEntry{
		Phase:      model.PhaseDomain,
		Action:     action,
		Query:      lead.LeadName,
		DurationMS: e.now().Sub(start).Milliseconds(),
	}
	if err != nil {
		entry.Detail = err.Error()
		if rerr := record(entry, nil); rerr != nil {
			log.Warn("record domain attempt failed", zap.Error(rerr))
		}
		return false
	}
	if result == nil {
		entry.Detail = "no owned domain found"
		if rerr := record(entry, nil); rerr != nil {
			log.Warn("record domain attempt failed", zap.Error(rerr))
		}
		return false
	}

	entry.Success = true
	entry.Result = result.Domain
	entry.Detail = result.Method

	state := model.StateWithDomainNoEmail
	upd := &store.LeadUpdate{
		LeadDomain:       &result.Domain,
		DomainConfidence: &result.Confidence,
		State:            &state,
	}
	if rerr := record(entry, upd); rerr != nil {
		log.Warn("record domain attempt failed", zap.Error(rerr))
		return false
	}
	log.Info("domain resolved",
		zap.String("domain", result.Domain),
		zap.Float64("confidence", result.Confidence),
		zap.String("method", result.Method))
	return true
}

func (e *Engine) resolveEmail(ctx context.Context, lead *model.LeadEvent, record recordFunc, log *zap.Logger) bool {
	const action = "email_scan"
	if e.alreadyFailed(ctx, lead.ID, model.PhaseEmail, action) {
		return false
	}

	start := e.now()
	candidates, err := e.emails.Discover(ctx, lead.LeadDomain)
	entry := model.MissionLogEntry{
		Phase:      model.PhaseEmail,
		Action:     action,
		Query:      lead.LeadDomain,
		DurationMS: e.now().Sub(start).Milliseconds(),
	}
	if err != nil || len(candidates) == 0 {
		if err != nil {
			entry.Detail = err.Error()
		} else {
			entry.Detail = "no valid address found"
		}
		if rerr := record(entry, nil); rerr != nil {
			log.Warn("record email attempt failed", zap.Error(rerr))
		}
		return false
	}

	best := candidates[0]
	entry.Success = true
	entry.Result = best.Email
	entry.Detail = best.Source

	state := model.StateEnrichedNoOutbound
	upd := &store.LeadUpdate{
		LeadEmail:       &best.Email,
		EmailConfidence: &best.Confidence,
		State:           &state,
	}
	if rerr := record(entry, upd); rerr != nil {
		log.Warn("record email attempt failed", zap.Error(rerr))
		return false
	}
	log.Info("email resolved",
		zap.String("email", best.Email),
		zap.Float64("confidence", best.Confidence))
	return true
}

func (e *Engine) resolvePhone(ctx context.Context, lead *model.LeadEvent, record recordFunc, log *zap.Logger) {
	const action = "phone_scan"
	if e.alreadyFailed(ctx, lead.ID, model.PhasePhone, action) {
		return
	}

	start := e.now()
	result := e.phones.Extract(ctx, lead.LeadDomain)
	entry := model.MissionLogEntry{
		Phase:      model.PhasePhone,
		Action:     action,
		Query:      lead.LeadDomain,
		DurationMS: e.now().Sub(start).Milliseconds(),
	}
	if result == nil {
		entry.Detail = "no number found"
		if err := record(entry, nil); err != nil {
			log.Warn("record phone attempt failed", zap.Error(err))
		}
		return
	}

	entry.Success = true
	entry.Result = result.Number
	entry.Detail = result.Source

	upd := &store.LeadUpdate{LeadPhone: &result.Number}
	if err := record(entry, upd); err != nil {
		log.Warn("record phone attempt failed", zap.Error(err))
	}
}

// upsertCompany keeps the company roster in sync once a lead has both a
// name and a domain.
func (e *Engine) upsertCompany(ctx context.Context, lead *model.LeadEvent, log *zap.Logger) {
	if lead.LeadName == "" || lead.LeadDomain == "" || lead.CompanyID != "" {
		return
	}
	id, err := e.store.UpsertCompany(ctx, &model.Company{
		Name:   lead.LeadName,
		Domain: lead.LeadDomain,
		Phone:  lead.LeadPhone,
	})
	if err != nil {
		log.Warn("company upsert failed", zap.Error(err))
		return
	}
	entry := model.MissionLogEntry{
		Phase:   model.PhaseDomain,
		Action:  "company_upsert",
		Result:  id,
		Success: true,
	}
	upd := &store.LeadUpdate{CompanyID: &id}
	if err := e.store.RecordAttempt(ctx, lead.ID, entry, upd); err != nil {
		log.Warn("record company upsert failed", zap.Error(err))
		return
	}
	applyUpdate(lead, upd)
}

// pendingPhase names the first layer the lead is still missing, for
// logging a pass that found no runnable action.
func pendingPhase(lead *model.LeadEvent) string {
	switch {
	case lead.LeadName == "":
		return model.PhaseName
	case lead.LeadDomain == "":
		return model.PhaseDomain
	default:
		return model.PhaseEmail
	}
}

// alreadyFailed consults the mission log so a repeated pass does not
// re-run an identical action that already failed.
func (e *Engine) alreadyFailed(ctx context.Context, leadID, phase, action string) bool {
	attempted, err := e.store.HasAttempted(ctx, leadID, phase, action)
	return err == nil && attempted
}

func applyUpdate(lead *model.LeadEvent, upd *store.LeadUpdate) {
	if upd.State != nil {
		lead.State = *upd.State
	}
	if upd.LeadName != nil {
		lead.LeadName = *upd.LeadName
	}
	if upd.LeadCompany != nil {
		lead.LeadCompany = *upd.LeadCompany
	}
	if upd.LeadDomain != nil {
		lead.LeadDomain = *upd.LeadDomain
	}
	if upd.LeadEmail != nil {
		lead.LeadEmail = *upd.LeadEmail
	}
	if upd.LeadPhone != nil {
		lead.LeadPhone = *upd.LeadPhone
	}
	if upd.DomainConfidence != nil {
		lead.DomainConfidence = *upd.DomainConfidence
	}
	if upd.EmailConfidence != nil {
		lead.EmailConfidence = *upd.EmailConfidence
	}
	if upd.CompanyID != nil {
		lead.CompanyID = *upd.CompanyID
	}
	if upd.ArchiveReason != nil {
		lead.ArchiveReason = *upd.ArchiveReason
	}
	if upd.IncrementAttempt {
		lead.Attempts++
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
