package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/signals-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresMarkSentWinsRace(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE lead_events SET state`).
		WithArgs(string(model.StateOutboundSent), pgxmock.AnyArg(), pgxmock.AnyArg(),
			"lead-1", string(model.StateEnrichedNoOutbound)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	won, err := s.MarkSent(context.Background(), "lead-1", time.Now())
	require.NoError(t, err)
	assert.True(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkSentLosesRace(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE lead_events SET state`).
		WithArgs(string(model.StateOutboundSent), pgxmock.AnyArg(), pgxmock.AnyArg(),
			"lead-1", string(model.StateEnrichedNoOutbound)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	won, err := s.MarkSent(context.Background(), "lead-1", time.Now())
	require.NoError(t, err)
	assert.False(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRevertSent(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE lead_events SET state`).
		WithArgs(string(model.StateEnrichedNoOutbound), pgxmock.AnyArg(),
			"lead-1", string(model.StateOutboundSent)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.RevertSent(context.Background(), "lead-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateSignalScoreNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE signals SET score`).
		WithArgs(42.0, false, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateSignalScore(context.Background(), "missing", 42.0, false)
	assert.ErrorContains(t, err, "signal not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordAttemptTransaction(t *testing.T) {
	s, mock := newMockStore(t)

	state := model.StateEnriching
	name := "Acme Roofing"

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO mission_log`).
		WithArgs(pgxmock.AnyArg(), "lead-1", 1, model.PhaseName, "title", "", name, true, "", int64(0), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT state FROM lead_events`).
		WithArgs("lead-1").
		WillReturnRows(pgxmock.NewRows([]string{"state"}).AddRow(string(model.StateUnenriched)))
	mock.ExpectExec(`UPDATE lead_events SET updated_at`).
		WithArgs(pgxmock.AnyArg(), string(state), name, "lead-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	entry := model.MissionLogEntry{Pass: 1, Phase: model.PhaseName, Action: "title", Result: name, Success: true}
	err := s.RecordAttempt(context.Background(), "lead-1", entry, &LeadUpdate{State: &state, LeadName: &name})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordAttemptRollsBackOnMissingLead(t *testing.T) {
	s, mock := newMockStore(t)

	state := model.StateEnriching

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO mission_log`).
		WithArgs(pgxmock.AnyArg(), "missing", 1, model.PhaseName, "title", "", "", false, "", int64(0), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT state FROM lead_events`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"state"}).AddRow(string(model.StateUnenriched)))
	mock.ExpectExec(`UPDATE lead_events SET updated_at`).
		WithArgs(pgxmock.AnyArg(), string(state), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	entry := model.MissionLogEntry{Pass: 1, Phase: model.PhaseName, Action: "title"}
	err := s.RecordAttempt(context.Background(), "missing", entry, &LeadUpdate{State: &state})
	assert.ErrorContains(t, err, "lead not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordAttemptRejectsBackwardTransition(t *testing.T) {
	s, mock := newMockStore(t)

	state := model.StateUnenriched

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO mission_log`).
		WithArgs(pgxmock.AnyArg(), "lead-1", 2, model.PhaseName, "namestorm", "", "", false, "", int64(0), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT state FROM lead_events`).
		WithArgs("lead-1").
		WillReturnRows(pgxmock.NewRows([]string{"state"}).AddRow(string(model.StateEnrichedNoOutbound)))
	mock.ExpectRollback()

	entry := model.MissionLogEntry{Pass: 2, Phase: model.PhaseName, Action: "namestorm"}
	err := s.RecordAttempt(context.Background(), "lead-1", entry, &LeadUpdate{State: &state})
	assert.ErrorContains(t, err, "illegal transition")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetSettingMissing(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT value FROM settings`).
		WithArgs(SettingMode).
		WillReturnRows(pgxmock.NewRows([]string{"value"}))

	v, err := s.GetSetting(context.Background(), SettingMode)
	require.NoError(t, err)
	assert.Empty(t, v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresResetAdapter(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE adapter_health SET consecutive_failures = 0`).
		WithArgs("weather").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.ResetAdapter(context.Background(), "weather"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
