package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/signals-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS signals (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	category    TEXT NOT NULL,
	title       TEXT NOT NULL,
	summary     TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	geography   TEXT NOT NULL DEFAULT '',
	lead_domain TEXT NOT NULL DEFAULT '',
	lead_email  TEXT NOT NULL DEFAULT '',
	observed_at DATETIME NOT NULL,
	score       REAL NOT NULL DEFAULT 0,
	promoted    INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(source, url, title)
);

CREATE TABLE IF NOT EXISTS lead_events (
	id                TEXT PRIMARY KEY,
	signal_id         TEXT NOT NULL REFERENCES signals(id),
	score             REAL NOT NULL,
	category          TEXT NOT NULL,
	tier              TEXT NOT NULL,
	state             TEXT NOT NULL DEFAULT 'UNENRICHED',
	attempts          INTEGER NOT NULL DEFAULT 0,
	lead_name         TEXT NOT NULL DEFAULT '',
	lead_company      TEXT NOT NULL DEFAULT '',
	lead_domain       TEXT NOT NULL DEFAULT '',
	lead_email        TEXT NOT NULL DEFAULT '',
	lead_phone        TEXT NOT NULL DEFAULT '',
	domain_confidence REAL NOT NULL DEFAULT 0,
	email_confidence  REAL NOT NULL DEFAULT 0,
	company_id        TEXT NOT NULL DEFAULT '',
	archive_reason    TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL,
	sent_at           DATETIME
);

CREATE TABLE IF NOT EXISTS companies (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	domain          TEXT NOT NULL,
	phone           TEXT NOT NULL DEFAULT '',
	lead_count      INTEGER NOT NULL DEFAULT 0,
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL,
	UNIQUE(domain, normalized_name)
);

CREATE TABLE IF NOT EXISTS mission_log (
	id          TEXT PRIMARY KEY,
	lead_id     TEXT NOT NULL REFERENCES lead_events(id),
	pass        INTEGER NOT NULL,
	phase       TEXT NOT NULL,
	action      TEXT NOT NULL,
	query       TEXT NOT NULL DEFAULT '',
	result      TEXT NOT NULL DEFAULT '',
	success     INTEGER NOT NULL DEFAULT 0,
	detail      TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	ts          DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS adapter_health (
	name                 TEXT PRIMARY KEY,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	disabled             INTEGER NOT NULL DEFAULT 0,
	last_error           TEXT NOT NULL DEFAULT '',
	last_run_at          DATETIME,
	last_success_at      DATETIME
);

CREATE TABLE IF NOT EXISTS outbound_log (
	id        TEXT PRIMARY KEY,
	lead_id   TEXT NOT NULL,
	recipient TEXT NOT NULL,
	sent_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_outbound (
	id        TEXT PRIMARY KEY,
	lead_id   TEXT NOT NULL,
	message   TEXT NOT NULL,
	status    TEXT NOT NULL DEFAULT 'open',
	queued_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_signals_source ON signals(source);
CREATE INDEX IF NOT EXISTS idx_lead_events_state ON lead_events(state);
CREATE INDEX IF NOT EXISTS idx_mission_log_lead_id ON mission_log(lead_id);
CREATE INDEX IF NOT EXISTS idx_outbound_log_sent_at ON outbound_log(sent_at);
CREATE INDEX IF NOT EXISTS idx_pending_outbound_status ON pending_outbound(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertSignal(ctx context.Context, sig *model.Signal) (bool, error) {
	if sig.ID == "" {
		sig.ID = uuid.New().String()
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO signals
		 (id, source, category, title, summary, url, geography, lead_domain, lead_email, observed_at, score, promoted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.ID, sig.Source, string(sig.Category), sig.Title, sig.Summary, sig.URL,
		sig.Geography, sig.LeadDomain, sig.LeadEmail, sig.ObservedAt.UTC(), sig.Score,
		boolToInt(sig.Promoted), sig.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert signal")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert signal rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetSignal(ctx context.Context, id string) (*model.Signal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, category, title, summary, url, geography, lead_domain, lead_email, observed_at, score, promoted, created_at
		 FROM signals WHERE id = ?`, id,
	)
	var sig model.Signal
	var promoted int
	err := row.Scan(&sig.ID, &sig.Source, &sig.Category, &sig.Title, &sig.Summary, &sig.URL,
		&sig.Geography, &sig.LeadDomain, &sig.LeadEmail, &sig.ObservedAt, &sig.Score, &promoted, &sig.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("signal not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get signal")
	}
	sig.Promoted = promoted != 0
	return &sig, nil
}

func (s *SQLiteStore) UpdateSignalScore(ctx context.Context, id string, score float64, promoted bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE signals SET score = ?, promoted = ? WHERE id = ?`,
		score, boolToInt(promoted), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update signal score %s", id)
	}
	return checkRowsAffected(res, "signal", id)
}

func (s *SQLiteStore) ListSignals(ctx context.Context, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, category, title, summary, url, geography, lead_domain, lead_email, observed_at, score, promoted, created_at
		 FROM signals ORDER BY observed_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list signals")
	}
	defer rows.Close()

	var signals []model.Signal
	for rows.Next() {
		var sig model.Signal
		var promoted int
		if err := rows.Scan(&sig.ID, &sig.Source, &sig.Category, &sig.Title, &sig.Summary, &sig.URL,
			&sig.Geography, &sig.LeadDomain, &sig.LeadEmail, &sig.ObservedAt, &sig.Score, &promoted, &sig.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal")
		}
		sig.Promoted = promoted != 0
		signals = append(signals, sig)
	}
	return signals, eris.Wrap(rows.Err(), "sqlite: list signals iterate")
}

const leadColumns = `id, signal_id, score, category, tier, state, attempts,
	lead_name, lead_company, lead_domain, lead_email, lead_phone,
	domain_confidence, email_confidence, company_id, archive_reason,
	created_at, updated_at, sent_at`

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.LeadEvent) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now
	if lead.State == "" {
		lead.State = model.StateUnenriched
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_events (`+leadColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.SignalID, lead.Score, string(lead.Category), string(lead.Tier),
		string(lead.State), lead.Attempts, lead.LeadName, lead.LeadCompany, lead.LeadDomain,
		lead.LeadEmail, lead.LeadPhone, lead.DomainConfidence, lead.EmailConfidence,
		lead.CompanyID, lead.ArchiveReason, lead.CreatedAt, lead.UpdatedAt, lead.SentAt,
	)
	return eris.Wrap(err, "sqlite: insert lead")
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.LeadEvent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM lead_events WHERE id = ?`, id,
	)
	return scanLead(row)
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.LeadEvent, error) {
	query := `SELECT ` + leadColumns + ` FROM lead_events WHERE 1=1`
	var args []any

	if len(filter.States) > 0 {
		query += ` AND state IN (`
		for i, st := range filter.States {
			if i > 0 {
				query += `, `
			}
			query += `?`
			args = append(args, string(st))
		}
		query += `)`
	}
	query += ` ORDER BY created_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.LeadEvent
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) RecordAttempt(ctx context.Context, leadID string, entry model.MissionLogEntry, upd *LeadUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin record attempt")
	}
	defer tx.Rollback() //nolint:errcheck

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.LeadID = leadID

	_, err = tx.ExecContext(ctx,
		`INSERT INTO mission_log (id, lead_id, pass, phase, action, query, result, success, detail, duration_ms, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.LeadID, entry.Pass, entry.Phase, entry.Action, entry.Query,
		entry.Result, boolToInt(entry.Success), entry.Detail, entry.DurationMS, entry.Timestamp,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert mission log entry")
	}

	if upd != nil {
		if upd.State != nil {
			var cur string
			err := tx.QueryRowContext(ctx, `SELECT state FROM lead_events WHERE id = ?`, leadID).Scan(&cur)
			if err != nil {
				return eris.Wrapf(err, "sqlite: read lead state %s", leadID)
			}
			from := model.EnrichState(cur)
			if from != *upd.State && !from.CanAdvanceTo(*upd.State) {
				return eris.Errorf("sqlite: illegal transition %s -> %s for lead %s", cur, *upd.State, leadID)
			}
		}
		query, args := buildLeadUpdate(leadID, upd, false)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return eris.Wrapf(err, "sqlite: update lead %s", leadID)
		}
		if err := checkRowsAffected(res, "lead", leadID); err != nil {
			return err
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit record attempt")
}

func (s *SQLiteStore) MarkSent(ctx context.Context, leadID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lead_events SET state = ?, sent_at = ?, updated_at = ?
		 WHERE id = ? AND state = ?`,
		string(model.StateOutboundSent), at.UTC(), time.Now().UTC(),
		leadID, string(model.StateEnrichedNoOutbound),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: mark sent %s", leadID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: mark sent rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) RevertSent(ctx context.Context, leadID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lead_events SET state = ?, sent_at = NULL, updated_at = ?
		 WHERE id = ? AND state = ?`,
		string(model.StateEnrichedNoOutbound), time.Now().UTC(),
		leadID, string(model.StateOutboundSent),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: revert sent %s", leadID)
	}
	return checkRowsAffected(res, "sent lead", leadID)
}

func (s *SQLiteStore) RequeueLead(ctx context.Context, leadID string, to model.EnrichState) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE lead_events SET state = ?, attempts = 0, archive_reason = '', updated_at = ?
		 WHERE id = ? AND state = ?`,
		string(to), time.Now().UTC(), leadID, string(model.StateArchived),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: requeue lead %s", leadID)
	}
	return checkRowsAffected(res, "archived lead", leadID)
}

func (s *SQLiteStore) ListMissionLog(ctx context.Context, leadID string) ([]model.MissionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, pass, phase, action, query, result, success, detail, duration_ms, ts
		 FROM mission_log WHERE lead_id = ? ORDER BY ts ASC, pass ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list mission log")
	}
	defer rows.Close()

	var entries []model.MissionLogEntry
	for rows.Next() {
		var e model.MissionLogEntry
		var success int
		if err := rows.Scan(&e.ID, &e.LeadID, &e.Pass, &e.Phase, &e.Action, &e.Query,
			&e.Result, &success, &e.Detail, &e.DurationMS, &e.Timestamp); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mission log entry")
		}
		e.Success = success != 0
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list mission log iterate")
}

func (s *SQLiteStore) HasAttempted(ctx context.Context, leadID, phase, action string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM mission_log WHERE lead_id = ? AND phase = ? AND action = ?`,
		leadID, phase, action,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: has attempted")
	}
	return n > 0, nil
}

func (s *SQLiteStore) NextPass(ctx context.Context, leadID string) (int, error) {
	var maxPass sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(pass) FROM mission_log WHERE lead_id = ?`, leadID,
	).Scan(&maxPass)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: next pass")
	}
	return int(maxPass.Int64) + 1, nil
}

func (s *SQLiteStore) UpsertCompany(ctx context.Context, c *model.Company) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if c.NormalizedName == "" {
		c.NormalizedName = model.NormalizeName(c.Name)
	}

	var id string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO companies (id, name, normalized_name, domain, phone, lead_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		 ON CONFLICT(domain, normalized_name) DO UPDATE SET
		   phone = CASE WHEN excluded.phone != '' THEN excluded.phone ELSE companies.phone END,
		   lead_count = companies.lead_count + 1,
		   updated_at = excluded.updated_at
		 RETURNING id`,
		c.ID, c.Name, c.NormalizedName, c.Domain, c.Phone, now, now,
	).Scan(&id)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: upsert company %s", c.Domain)
	}
	c.ID = id
	return id, nil
}

func (s *SQLiteStore) GetCompanyByDomain(ctx context.Context, domain string) (*model.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, normalized_name, domain, phone, lead_count, created_at, updated_at
		 FROM companies WHERE domain = ? ORDER BY updated_at DESC LIMIT 1`,
		domain,
	)
	var c model.Company
	err := row.Scan(&c.ID, &c.Name, &c.NormalizedName, &c.Domain, &c.Phone, &c.LeadCount, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get company by domain")
	}
	return &c, nil
}

func (s *SQLiteStore) RecordAdapterResult(ctx context.Context, name string, errMsg string, failureLimit int) (*model.AdapterHealth, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin adapter result")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	h := model.AdapterHealth{Name: name}

	row := tx.QueryRowContext(ctx,
		`SELECT consecutive_failures, disabled, last_error, last_run_at, last_success_at
		 FROM adapter_health WHERE name = ?`, name,
	)
	var disabled int
	err = row.Scan(&h.ConsecutiveFailures, &disabled, &h.LastError, &h.LastRunAt, &h.LastSuccessAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, eris.Wrap(err, "sqlite: read adapter health")
	}
	h.Disabled = disabled != 0

	h.LastRunAt = &now
	if errMsg == "" {
		h.ConsecutiveFailures = 0
		h.LastError = ""
		h.LastSuccessAt = &now
	} else {
		h.ConsecutiveFailures++
		h.LastError = errMsg
		if failureLimit > 0 && h.ConsecutiveFailures >= failureLimit {
			h.Disabled = true
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO adapter_health (name, consecutive_failures, disabled, last_error, last_run_at, last_success_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
		   consecutive_failures = excluded.consecutive_failures,
		   disabled = excluded.disabled,
		   last_error = excluded.last_error,
		   last_run_at = excluded.last_run_at,
		   last_success_at = excluded.last_success_at`,
		name, h.ConsecutiveFailures, boolToInt(h.Disabled), h.LastError, h.LastRunAt, h.LastSuccessAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: upsert adapter health %s", name)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit adapter result")
	}
	return &h, nil
}

func (s *SQLiteStore) GetAdapterHealth(ctx context.Context, name string) (*model.AdapterHealth, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, consecutive_failures, disabled, last_error, last_run_at, last_success_at
		 FROM adapter_health WHERE name = ?`, name,
	)
	var h model.AdapterHealth
	var disabled int
	err := row.Scan(&h.Name, &h.ConsecutiveFailures, &disabled, &h.LastError, &h.LastRunAt, &h.LastSuccessAt)
	if err == sql.ErrNoRows {
		return &model.AdapterHealth{Name: name}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get adapter health")
	}
	h.Disabled = disabled != 0
	return &h, nil
}

func (s *SQLiteStore) ListAdapterHealth(ctx context.Context) ([]model.AdapterHealth, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, consecutive_failures, disabled, last_error, last_run_at, last_success_at
		 FROM adapter_health ORDER BY name ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list adapter health")
	}
	defer rows.Close()

	var out []model.AdapterHealth
	for rows.Next() {
		var h model.AdapterHealth
		var disabled int
		if err := rows.Scan(&h.Name, &h.ConsecutiveFailures, &disabled, &h.LastError, &h.LastRunAt, &h.LastSuccessAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan adapter health")
		}
		h.Disabled = disabled != 0
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list adapter health iterate")
}

func (s *SQLiteStore) ResetAdapter(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE adapter_health SET consecutive_failures = 0, disabled = 0, last_error = '' WHERE name = ?`,
		name,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reset adapter %s", name)
	}
	return checkRowsAffected(res, "adapter", name)
}

func (s *SQLiteStore) LogOutbound(ctx context.Context, rec *model.OutboundRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outbound_log (id, lead_id, recipient, sent_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.LeadID, rec.Recipient, rec.SentAt,
	)
	return eris.Wrap(err, "sqlite: log outbound")
}

func (s *SQLiteStore) CountOutboundSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM outbound_log WHERE sent_at >= ?`, since.UTC(),
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count outbound")
}

func (s *SQLiteStore) EnqueuePending(ctx context.Context, p *model.PendingOutbound) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.QueuedAt.IsZero() {
		p.QueuedAt = time.Now().UTC()
	}
	if p.Status == "" {
		p.Status = model.PendingOpen
	}

	msgJSON, err := json.Marshal(p.Message)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal pending message")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_outbound (id, lead_id, message, status, queued_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.LeadID, string(msgJSON), string(p.Status), p.QueuedAt,
	)
	return eris.Wrap(err, "sqlite: enqueue pending")
}

func (s *SQLiteStore) GetPending(ctx context.Context, id string) (*model.PendingOutbound, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, lead_id, message, status, queued_at FROM pending_outbound WHERE id = ?`, id,
	)
	var p model.PendingOutbound
	var msgJSON string
	err := row.Scan(&p.ID, &p.LeadID, &msgJSON, &p.Status, &p.QueuedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("pending outbound not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get pending")
	}
	if err := json.Unmarshal([]byte(msgJSON), &p.Message); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal pending message")
	}
	return &p, nil
}

func (s *SQLiteStore) ListPending(ctx context.Context, status model.PendingStatus) ([]model.PendingOutbound, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, message, status, queued_at FROM pending_outbound
		 WHERE status = ? ORDER BY queued_at ASC`,
		string(status),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending")
	}
	defer rows.Close()

	var out []model.PendingOutbound
	for rows.Next() {
		var p model.PendingOutbound
		var msgJSON string
		if err := rows.Scan(&p.ID, &p.LeadID, &msgJSON, &p.Status, &p.QueuedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pending")
		}
		if err := json.Unmarshal([]byte(msgJSON), &p.Message); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal pending message")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list pending iterate")
}

func (s *SQLiteStore) UpdatePendingStatus(ctx context.Context, id string, status model.PendingStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_outbound SET status = ? WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update pending status %s", id)
	}
	return checkRowsAffected(res, "pending outbound", id)
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "sqlite: get setting")
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return eris.Wrap(err, "sqlite: set setting")
}

func (s *SQLiteStore) CountLeadsByState(ctx context.Context) (map[model.EnrichState]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, COUNT(1) FROM lead_events GROUP BY state`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count leads by state")
	}
	defer rows.Close()

	out := make(map[model.EnrichState]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead count")
		}
		out[model.EnrichState(state)] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: count leads iterate")
}

func (s *SQLiteStore) CountSignalsBySource(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, COUNT(1) FROM signals GROUP BY source`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count signals by source")
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan signal count")
		}
		out[source] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: count signals iterate")
}

func (s *SQLiteStore) MissionStats(ctx context.Context) ([]MissionStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT phase, action, COUNT(1), SUM(success) FROM mission_log
		 GROUP BY phase, action ORDER BY phase, action`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: mission stats")
	}
	defer rows.Close()

	var stats []MissionStat
	for rows.Next() {
		var st MissionStat
		if err := rows.Scan(&st.Phase, &st.Action, &st.Attempts, &st.Successes); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mission stat")
		}
		stats = append(stats, st)
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: mission stats iterate")
}

func (s *SQLiteStore) SuppressionCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT detail, COUNT(1) FROM mission_log
		 WHERE phase = ? AND action = 'gate' AND result = ?
		 GROUP BY detail`,
		model.PhaseOutreach, string(model.GateSuppress),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: suppression counts")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var rule string
		var n int
		if err := rows.Scan(&rule, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan suppression count")
		}
		// the gate appends the matched entry after a colon; counts roll up
		// per rule, not per entry
		rule, _, _ = strings.Cut(rule, ":")
		counts[rule] += n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: suppression counts iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.LeadEvent, error) {
	var l model.LeadEvent
	var sentAt sql.NullTime

	err := row.Scan(&l.ID, &l.SignalID, &l.Score, &l.Category, &l.Tier, &l.State, &l.Attempts,
		&l.LeadName, &l.LeadCompany, &l.LeadDomain, &l.LeadEmail, &l.LeadPhone,
		&l.DomainConfidence, &l.EmailConfidence, &l.CompanyID, &l.ArchiveReason,
		&l.CreatedAt, &l.UpdatedAt, &sentAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("lead not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan lead")
	}
	if sentAt.Valid {
		t := sentAt.Time
		l.SentAt = &t
	}
	return &l, nil
}

// buildLeadUpdate assembles the dynamic UPDATE for a LeadUpdate.
// Placeholders are "?" for SQLite and "$1".."$n" for Postgres.
func buildLeadUpdate(leadID string, upd *LeadUpdate, postgres bool) (string, []any) {
	var args []any
	next := func() string {
		if postgres {
			return "$" + strconv.Itoa(len(args))
		}
		return "?"
	}

	args = append(args, time.Now().UTC())
	set := `updated_at = ` + next()

	add := func(col string, val any) {
		args = append(args, val)
		set += `, ` + col + ` = ` + next()
	}

	if upd.State != nil {
		add("state", string(*upd.State))
	}
	if upd.LeadName != nil {
		add("lead_name", *upd.LeadName)
	}
	if upd.LeadCompany != nil {
		add("lead_company", *upd.LeadCompany)
	}
	if upd.LeadDomain != nil {
		add("lead_domain", *upd.LeadDomain)
	}
	if upd.LeadEmail != nil {
		add("lead_email", *upd.LeadEmail)
	}
	if upd.LeadPhone != nil {
		add("lead_phone", *upd.LeadPhone)
	}
	if upd.DomainConfidence != nil {
		add("domain_confidence", *upd.DomainConfidence)
	}
	if upd.EmailConfidence != nil {
		add("email_confidence", *upd.EmailConfidence)
	}
	if upd.CompanyID != nil {
		add("company_id", *upd.CompanyID)
	}
	if upd.ArchiveReason != nil {
		add("archive_reason", *upd.ArchiveReason)
	}
	if upd.IncrementAttempt {
		set += `, attempts = attempts + 1`
	}

	args = append(args, leadID)
	query := `UPDATE lead_events SET ` + set + ` WHERE id = ` + next()
	return query, args
}
