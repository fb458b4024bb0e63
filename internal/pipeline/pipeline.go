// Package pipeline runs one full signal-to-outreach cycle: adapter
// ingestion, scoring and promotion, enrichment, and gated outreach.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/signals-cli/internal/config"
	"github.com/sells-group/signals-cli/internal/enrich"
	"github.com/sells-group/signals-cli/internal/model"
	"github.com/sells-group/signals-cli/internal/outreach"
	"github.com/sells-group/signals-cli/internal/scoring"
	"github.com/sells-group/signals-cli/internal/source"
	"github.com/sells-group/signals-cli/internal/store"
)

// CycleResult summarizes one pipeline cycle.
type CycleResult struct {
	Mode      model.Mode             `json:"mode"`
	StartedAt time.Time              `json:"started_at"`
	Duration  time.Duration          `json:"duration"`
	Adapters  []source.AdapterResult `json:"adapters,omitempty"`
	Scored    int                    `json:"scored"`
	Promoted  int                    `json:"promoted"`
	Enriched  enrich.PassStats       `json:"enriched"`
}

// Pipeline owns the cycle orchestration.
type Pipeline struct {
	store   store.Store
	runner  *source.Runner
	scorer  *scoring.Scorer
	engine  *enrich.Engine
	gate    *outreach.Gate
	mode    model.Mode
	timeout time.Duration
}

// New assembles a pipeline. The gate may be nil when outreach is handled
// elsewhere (enrich-only invocations).
func New(st store.Store, runner *source.Runner, scorer *scoring.Scorer, engine *enrich.Engine, gate *outreach.Gate, cfg config.PipelineConfig) *Pipeline {
	mode := model.Mode(cfg.Mode)
	if !mode.Valid() {
		mode = model.ModeFull
	}
	timeout := time.Duration(cfg.CycleTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Pipeline{
		store:   st,
		runner:  runner,
		scorer:  scorer,
		engine:  engine,
		gate:    gate,
		mode:    mode,
		timeout: timeout,
	}
}

// EffectiveMode resolves the pipeline mode, preferring the operator's
// runtime override in settings over the configured default.
func (p *Pipeline) EffectiveMode(ctx context.Context) model.Mode {
	override, err := p.store.GetSetting(ctx, store.SettingMode)
	if err != nil {
		zap.L().Warn("mode override lookup failed", zap.Error(err))
		return p.mode
	}
	if m := model.Mode(override); m.Valid() {
		return m
	}
	return p.mode
}

// SetMode stores a runtime mode override.
func (p *Pipeline) SetMode(ctx context.Context, mode model.Mode) error {
	if !mode.Valid() {
		return eris.Errorf("pipeline: invalid mode %q", mode)
	}
	return p.store.SetSetting(ctx, store.SettingMode, string(mode))
}

// RunCycle executes one ingest-score-enrich cycle under the configured
// timeout.
func (p *Pipeline) RunCycle(ctx context.Context) (*CycleResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now().UTC()
	mode := p.EffectiveMode(ctx)
	result := &CycleResult{Mode: mode, StartedAt: start}
	log := zap.L().With(zap.String("mode", string(mode)))

	if mode == model.ModeOff {
		log.Info("pipeline off, skipping cycle")
		result.Duration = time.Since(start)
		return result, nil
	}

	if p.gate != nil {
		p.gate.ResetCycle()
	}

	adapters, err := p.runner.RunCycle(ctx)
	if err != nil {
		return result, eris.Wrap(err, "pipeline: ingest")
	}
	result.Adapters = adapters

	scored, promoted, err := p.scorePass(ctx, mode)
	if err != nil {
		return result, err
	}
	result.Scored = scored
	result.Promoted = promoted

	stats, err := p.engine.RunPass(ctx)
	if err != nil {
		return result, eris.Wrap(err, "pipeline: enrich")
	}
	result.Enriched = stats

	result.Duration = time.Since(start)
	log.Info("cycle complete",
		zap.Int("scored", result.Scored),
		zap.Int("promoted", result.Promoted),
		zap.Int("enriched", stats.Advanced),
		zap.Int("dispatched", stats.Dispatched),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// scorePass scores every unscored signal and promotes qualifiers. Sandbox
// mode persists scores but suppresses promotion.
func (p *Pipeline) scorePass(ctx context.Context, mode model.Mode) (scored, promoted int, err error) {
	signals, err := p.store.ListSignals(ctx, 500)
	if err != nil {
		return 0, 0, eris.Wrap(err, "pipeline: list signals")
	}

	for i := range signals {
		sig := &signals[i]
		if sig.Promoted || sig.Score > 0 {
			continue
		}

		b := p.scorer.Score(sig)
		scored++

		qualifies := p.scorer.Qualifies(b.Total)
		promote := qualifies && mode == model.ModeFull

		if err := p.store.UpdateSignalScore(ctx, sig.ID, b.Total, promote); err != nil {
			return scored, promoted, eris.Wrap(err, "pipeline: update score")
		}

		if qualifies && !promote {
			zap.L().Info("sandbox: qualifying signal not promoted",
				zap.String("signal_id", sig.ID), zap.Float64("score", b.Total))
			continue
		}
		if !promote {
			continue
		}

		lead := scoring.Promote(sig, b.Total)
		if err := p.store.CreateLead(ctx, lead); err != nil {
			return scored, promoted, eris.Wrap(err, "pipeline: promote signal")
		}
		promoted++
		zap.L().Info("signal promoted",
			zap.String("signal_id", sig.ID),
			zap.String("lead_id", lead.ID),
			zap.Float64("score", b.Total),
			zap.String("tier", string(lead.Tier)))
	}
	return scored, promoted, nil
}
