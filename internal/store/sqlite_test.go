package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/signals-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSignal(t *testing.T, s *SQLiteStore) *model.Signal {
	t.Helper()
	sig := &model.Signal{
		Source:     "news",
		Category:   model.CategoryHurricane,
		Title:      "Hurricane warning issued for Miami-Dade",
		Summary:    "Storm expected to make landfall Friday",
		URL:        "https://example.com/hurricane",
		Geography:  "Miami, FL",
		ObservedAt: time.Now().UTC(),
	}
	inserted, err := s.InsertSignal(context.Background(), sig)
	require.NoError(t, err)
	require.True(t, inserted)
	return sig
}

func seedLead(t *testing.T, s *SQLiteStore, state model.EnrichState) *model.LeadEvent {
	t.Helper()
	sig := seedSignal(t, s)
	lead := &model.LeadEvent{
		SignalID: sig.ID,
		Score:    88.5,
		Category: sig.Category,
		Tier:     model.TierHigh,
		State:    state,
	}
	require.NoError(t, s.CreateLead(context.Background(), lead))
	return lead
}

func TestInsertSignalDedupe(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sig := seedSignal(t, s)

	dup := &model.Signal{
		Source:     sig.Source,
		Category:   sig.Category,
		Title:      sig.Title,
		URL:        sig.URL,
		ObservedAt: time.Now().UTC(),
	}
	inserted, err := s.InsertSignal(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	signals, err := s.ListSignals(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, signals, 1)
}

func TestUpdateSignalScore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sig := seedSignal(t, s)
	require.NoError(t, s.UpdateSignalScore(ctx, sig.ID, 91.25, true))

	signals, err := s.ListSignals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, 91.25, signals[0].Score)
	assert.True(t, signals[0].Promoted)

	err = s.UpdateSignalScore(ctx, "missing", 10, false)
	assert.Error(t, err)
}

func TestRecordAttemptCommitsLogAndUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead := seedLead(t, s, model.StateUnenriched)

	name := "Miami Best Roofing"
	state := model.StateEnriching
	entry := model.MissionLogEntry{
		Pass:    1,
		Phase:   model.PhaseName,
		Action:  "schema_org",
		Result:  name,
		Success: true,
	}
	upd := &LeadUpdate{
		State:            &state,
		LeadName:         &name,
		IncrementAttempt: true,
	}
	require.NoError(t, s.RecordAttempt(ctx, lead.ID, entry, upd))

	got, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateEnriching, got.State)
	assert.Equal(t, name, got.LeadName)
	assert.Equal(t, 1, got.Attempts)

	entries, err := s.ListMissionLog(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.PhaseName, entries[0].Phase)
	assert.True(t, entries[0].Success)

	attempted, err := s.HasAttempted(ctx, lead.ID, model.PhaseName, "schema_org")
	require.NoError(t, err)
	assert.True(t, attempted)

	attempted, err = s.HasAttempted(ctx, lead.ID, model.PhaseDomain, "schema_org")
	require.NoError(t, err)
	assert.False(t, attempted)

	pass, err := s.NextPass(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, pass)
}

func TestRecordAttemptRejectsBackwardTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead := seedLead(t, s, model.StateEnrichedNoOutbound)

	state := model.StateUnenriched
	entry := model.MissionLogEntry{Pass: 2, Phase: model.PhaseName, Action: "namestorm"}
	err := s.RecordAttempt(ctx, lead.ID, entry, &LeadUpdate{State: &state})
	require.Error(t, err)

	got, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateEnrichedNoOutbound, got.State)

	// the log entry rolls back with the rejected transition
	entries, err := s.ListMissionLog(ctx, lead.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// re-asserting the current state is a legal no-op
	same := model.StateEnrichedNoOutbound
	err = s.RecordAttempt(ctx, lead.ID, entry, &LeadUpdate{State: &same})
	require.NoError(t, err)
}

func TestRecordAttemptUnknownLeadRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead := seedLead(t, s, model.StateUnenriched)

	state := model.StateEnriching
	err := s.RecordAttempt(ctx, "missing", model.MissionLogEntry{Pass: 1, Phase: model.PhaseName, Action: "title"}, &LeadUpdate{State: &state})
	require.Error(t, err)

	// the mission row must not survive the failed update
	entries, err := s.ListMissionLog(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, entries)

	got, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateUnenriched, got.State)
}

func TestSuppressionCountsAggregatePerRule(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead := seedLead(t, s, model.StateEnrichedNoOutbound)

	for _, detail := range []string{
		"do_not_contact:acmeroofing.com",
		"do_not_contact:info@rivalroofer.com",
		"no_email",
	} {
		require.NoError(t, s.RecordAttempt(ctx, lead.ID, model.MissionLogEntry{
			Phase:  model.PhaseOutreach,
			Action: "gate",
			Result: string(model.GateSuppress),
			Detail: detail,
		}, nil))
	}

	counts, err := s.SuppressionCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["do_not_contact"])
	assert.Equal(t, 1, counts["no_email"])
}

func TestMarkSentCompareAndSet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead := seedLead(t, s, model.StateEnrichedNoOutbound)

	won, err := s.MarkSent(ctx, lead.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, won)

	won, err = s.MarkSent(ctx, lead.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, won)

	got, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateOutboundSent, got.State)
	require.NotNil(t, got.SentAt)
}

func TestMarkSentConcurrentSingleWinner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead := seedLead(t, s, model.StateEnrichedNoOutbound)

	const workers = 8
	wins := make(chan bool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := s.MarkSent(ctx, lead.ID, time.Now().UTC())
			assert.NoError(t, err)
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	var count int
	for won := range wins {
		if won {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRevertSentClearsTransition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead := seedLead(t, s, model.StateEnrichedNoOutbound)

	won, err := s.MarkSent(ctx, lead.ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, s.RevertSent(ctx, lead.ID))

	got, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateEnrichedNoOutbound, got.State)
	assert.Nil(t, got.SentAt)

	// only sent leads can be reverted
	assert.Error(t, s.RevertSent(ctx, lead.ID))
}

func TestRequeueLead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lead := seedLead(t, s, model.StateArchived)

	require.NoError(t, s.RequeueLead(ctx, lead.ID, model.StateUnenriched))

	got, err := s.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateUnenriched, got.State)
	assert.Equal(t, 0, got.Attempts)
	assert.Empty(t, got.ArchiveReason)

	// only archived leads can be requeued
	err = s.RequeueLead(ctx, lead.ID, model.StateUnenriched)
	assert.Error(t, err)
}

func TestListLeadsFilterByState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedLead(t, s, model.StateUnenriched)
	sig := &model.Signal{
		Source:     "permits",
		Category:   model.CategoryPermit,
		Title:      "Roofing permit filed",
		URL:        "https://example.com/permit",
		ObservedAt: time.Now().UTC(),
	}
	_, err := s.InsertSignal(ctx, sig)
	require.NoError(t, err)
	require.NoError(t, s.CreateLead(ctx, &model.LeadEvent{
		SignalID: sig.ID,
		Score:    70,
		Category: sig.Category,
		Tier:     model.TierStandard,
		State:    model.StateEnrichedNoOutbound,
	}))

	leads, err := s.ListLeads(ctx, LeadFilter{States: []model.EnrichState{model.StateEnrichedNoOutbound}})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, model.StateEnrichedNoOutbound, leads[0].State)

	leads, err = s.ListLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	assert.Len(t, leads, 2)
}

func TestUpsertCompanyMergesOnConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertCompany(ctx, &model.Company{
		Name:   "Miami Best Roofing LLC",
		Domain: "miamibestroofing.com",
	})
	require.NoError(t, err)

	second, err := s.UpsertCompany(ctx, &model.Company{
		Name:   "Miami Best Roofing, LLC",
		Domain: "miamibestroofing.com",
		Phone:  "+13055550100",
	})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got, err := s.GetCompanyByDomain(ctx, "miamibestroofing.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.LeadCount)
	assert.Equal(t, "+13055550100", got.Phone)

	missing, err := s.GetCompanyByDomain(ctx, "nobody.example")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAdapterHealthDisablesAtLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		h, err := s.RecordAdapterResult(ctx, "weather", "connection refused", 5)
		require.NoError(t, err)
		assert.Equal(t, i, h.ConsecutiveFailures)
		assert.False(t, h.Disabled)
	}

	h, err := s.RecordAdapterResult(ctx, "weather", "connection refused", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, h.ConsecutiveFailures)
	assert.True(t, h.Disabled)

	// disabled state persists until an operator reset
	got, err := s.GetAdapterHealth(ctx, "weather")
	require.NoError(t, err)
	assert.True(t, got.Disabled)

	require.NoError(t, s.ResetAdapter(ctx, "weather"))
	got, err = s.GetAdapterHealth(ctx, "weather")
	require.NoError(t, err)
	assert.False(t, got.Disabled)
	assert.Equal(t, 0, got.ConsecutiveFailures)
}

func TestAdapterHealthSuccessResetsCounter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.RecordAdapterResult(ctx, "news", "timeout", 5)
	require.NoError(t, err)
	_, err = s.RecordAdapterResult(ctx, "news", "timeout", 5)
	require.NoError(t, err)

	h, err := s.RecordAdapterResult(ctx, "news", "", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, h.ConsecutiveFailures)
	assert.Empty(t, h.LastError)
	require.NotNil(t, h.LastSuccessAt)
}

func TestOutboundLogAndRateWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.LogOutbound(ctx, &model.OutboundRecord{LeadID: "l1", Recipient: "a@x.com", SentAt: now.Add(-2 * time.Hour)}))
	require.NoError(t, s.LogOutbound(ctx, &model.OutboundRecord{LeadID: "l2", Recipient: "b@x.com", SentAt: now.Add(-10 * time.Minute)}))
	require.NoError(t, s.LogOutbound(ctx, &model.OutboundRecord{LeadID: "l3", Recipient: "c@x.com", SentAt: now}))

	n, err := s.CountOutboundSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPendingOutboundLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &model.PendingOutbound{
		LeadID: "lead-1",
		Message: model.Message{
			To:      "owner@miamibestroofing.com",
			Subject: "Storm damage response",
			Body:    "Hello",
		},
	}
	require.NoError(t, s.EnqueuePending(ctx, p))

	open, err := s.ListPending(ctx, model.PendingOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "owner@miamibestroofing.com", open[0].Message.To)

	require.NoError(t, s.UpdatePendingStatus(ctx, p.ID, model.PendingApproved))

	got, err := s.GetPending(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PendingApproved, got.Status)

	open, err = s.ListPending(ctx, model.PendingOpen)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestSettingsRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.GetSetting(ctx, SettingMode)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetSetting(ctx, SettingMode, "sandbox"))
	require.NoError(t, s.SetSetting(ctx, SettingMode, "off"))

	v, err = s.GetSetting(ctx, SettingMode)
	require.NoError(t, err)
	assert.Equal(t, "off", v)
}

func TestCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedLead(t, s, model.StateUnenriched)

	byState, err := s.CountLeadsByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, byState[model.StateUnenriched])

	bySource, err := s.CountSignalsBySource(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, bySource["news"])
}
