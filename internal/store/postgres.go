package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/signals-cli/internal/model"
)

// Pool abstracts pgxpool.Pool for testing.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store backed by a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to the given database URL.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
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
	observed_at TIMESTAMPTZ NOT NULL,
	score       DOUBLE PRECISION NOT NULL DEFAULT 0,
	promoted    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(source, url, title)
);

CREATE TABLE IF NOT EXISTS lead_events (
	id                TEXT PRIMARY KEY,
	signal_id         TEXT NOT NULL REFERENCES signals(id),
	score             DOUBLE PRECISION NOT NULL,
	category          TEXT NOT NULL,
	tier              TEXT NOT NULL,
	state             TEXT NOT NULL DEFAULT 'UNENRICHED',
	attempts          INTEGER NOT NULL DEFAULT 0,
	lead_name         TEXT NOT NULL DEFAULT '',
	lead_company      TEXT NOT NULL DEFAULT '',
	lead_domain       TEXT NOT NULL DEFAULT '',
	lead_email        TEXT NOT NULL DEFAULT '',
	lead_phone        TEXT NOT NULL DEFAULT '',
	domain_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	email_confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
	company_id        TEXT NOT NULL DEFAULT '',
	archive_reason    TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	sent_at           TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS companies (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	domain          TEXT NOT NULL,
	phone           TEXT NOT NULL DEFAULT '',
	lead_count      INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
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
	success     BOOLEAN NOT NULL DEFAULT FALSE,
	detail      TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL DEFAULT 0,
	ts          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS adapter_health (
	name                 TEXT PRIMARY KEY,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	disabled             BOOLEAN NOT NULL DEFAULT FALSE,
	last_error           TEXT NOT NULL DEFAULT '',
	last_run_at          TIMESTAMPTZ,
	last_success_at      TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS outbound_log (
	id        TEXT PRIMARY KEY,
	lead_id   TEXT NOT NULL,
	recipient TEXT NOT NULL,
	sent_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pending_outbound (
	id        TEXT PRIMARY KEY,
	lead_id   TEXT NOT NULL,
	message   JSONB NOT NULL,
	status    TEXT NOT NULL DEFAULT 'open',
	queued_at TIMESTAMPTZ NOT NULL
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

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) InsertSignal(ctx context.Context, sig *model.Signal) (bool, error) {
	if sig.ID == "" {
		sig.ID = uuid.New().String()
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO signals
		 (id, source, category, title, summary, url, geography, lead_domain, lead_email, observed_at, score, promoted, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (source, url, title) DO NOTHING`,
		sig.ID, sig.Source, string(sig.Category), sig.Title, sig.Summary, sig.URL,
		sig.Geography, sig.LeadDomain, sig.LeadEmail, sig.ObservedAt.UTC(), sig.Score,
		sig.Promoted, sig.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: insert signal")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetSignal(ctx context.Context, id string) (*model.Signal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, category, title, summary, url, geography, lead_domain, lead_email, observed_at, score, promoted, created_at
		 FROM signals WHERE id = $1`, id,
	)
	var sig model.Signal
	err := row.Scan(&sig.ID, &sig.Source, &sig.Category, &sig.Title, &sig.Summary, &sig.URL,
		&sig.Geography, &sig.LeadDomain, &sig.LeadEmail, &sig.ObservedAt, &sig.Score, &sig.Promoted, &sig.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, eris.Errorf("signal not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get signal")
	}
	return &sig, nil
}

func (s *PostgresStore) UpdateSignalScore(ctx context.Context, id string, score float64, promoted bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE signals SET score = $1, promoted = $2 WHERE id = $3`,
		score, promoted, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update signal score %s", id)
	}
	return checkTag(tag, "signal", id)
}

func (s *PostgresStore) ListSignals(ctx context.Context, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, category, title, summary, url, geography, lead_domain, lead_email, observed_at, score, promoted, created_at
		 FROM signals ORDER BY observed_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list signals")
	}
	defer rows.Close()

	var signals []model.Signal
	for rows.Next() {
		var sig model.Signal
		if err := rows.Scan(&sig.ID, &sig.Source, &sig.Category, &sig.Title, &sig.Summary, &sig.URL,
			&sig.Geography, &sig.LeadDomain, &sig.LeadEmail, &sig.ObservedAt, &sig.Score, &sig.Promoted, &sig.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal")
		}
		signals = append(signals, sig)
	}
	return signals, eris.Wrap(rows.Err(), "postgres: list signals iterate")
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.LeadEvent) error {
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

	_, err := s.pool.Exec(ctx,
		`INSERT INTO lead_events (`+leadColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		lead.ID, lead.SignalID, lead.Score, string(lead.Category), string(lead.Tier),
		string(lead.State), lead.Attempts, lead.LeadName, lead.LeadCompany, lead.LeadDomain,
		lead.LeadEmail, lead.LeadPhone, lead.DomainConfidence, lead.EmailConfidence,
		lead.CompanyID, lead.ArchiveReason, lead.CreatedAt, lead.UpdatedAt, lead.SentAt,
	)
	return eris.Wrap(err, "postgres: insert lead")
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.LeadEvent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM lead_events WHERE id = $1`, id,
	)
	return scanLead(row)
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.LeadEvent, error) {
	query := `SELECT ` + leadColumns + ` FROM lead_events WHERE 1=1`
	var args []any

	if len(filter.States) > 0 {
		states := make([]string, len(filter.States))
		for i, st := range filter.States {
			states[i] = string(st)
		}
		args = append(args, states)
		query += ` AND state = ANY($1)`
	}
	query += ` ORDER BY created_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	if len(args) == 2 {
		query += ` LIMIT $2`
	} else {
		query += ` LIMIT $1`
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
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
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) RecordAttempt(ctx context.Context, leadID string, entry model.MissionLogEntry, upd *LeadUpdate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin record attempt")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.LeadID = leadID

	_, err = tx.Exec(ctx,
		`INSERT INTO mission_log (id, lead_id, pass, phase, action, query, result, success, detail, duration_ms, ts)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.LeadID, entry.Pass, entry.Phase, entry.Action, entry.Query,
		entry.Result, entry.Success, entry.Detail, entry.DurationMS, entry.Timestamp,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert mission log entry")
	}

	if upd != nil {
		if upd.State != nil {
			var cur string
			if err := tx.QueryRow(ctx, `SELECT state FROM lead_events WHERE id = $1`, leadID).Scan(&cur); err != nil {
				return eris.Wrapf(err, "postgres: read lead state %s", leadID)
			}
			from := model.EnrichState(cur)
			if from != *upd.State && !from.CanAdvanceTo(*upd.State) {
				return eris.Errorf("postgres: illegal transition %s -> %s for lead %s", cur, *upd.State, leadID)
			}
		}
		query, args := buildLeadUpdate(leadID, upd, true)
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return eris.Wrapf(err, "postgres: update lead %s", leadID)
		}
		if err := checkTag(tag, "lead", leadID); err != nil {
			return err
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit record attempt")
}

func (s *PostgresStore) MarkSent(ctx context.Context, leadID string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE lead_events SET state = $1, sent_at = $2, updated_at = $3
		 WHERE id = $4 AND state = $5`,
		string(model.StateOutboundSent), at.UTC(), time.Now().UTC(),
		leadID, string(model.StateEnrichedNoOutbound),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: mark sent %s", leadID)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) RevertSent(ctx context.Context, leadID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE lead_events SET state = $1, sent_at = NULL, updated_at = $2
		 WHERE id = $3 AND state = $4`,
		string(model.StateEnrichedNoOutbound), time.Now().UTC(),
		leadID, string(model.StateOutboundSent),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: revert sent %s", leadID)
	}
	return checkTag(tag, "sent lead", leadID)
}

func (s *PostgresStore) RequeueLead(ctx context.Context, leadID string, to model.EnrichState) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE lead_events SET state = $1, attempts = 0, archive_reason = '', updated_at = $2
		 WHERE id = $3 AND state = $4`,
		string(to), time.Now().UTC(), leadID, string(model.StateArchived),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: requeue lead %s", leadID)
	}
	return checkTag(tag, "archived lead", leadID)
}

func (s *PostgresStore) ListMissionLog(ctx context.Context, leadID string) ([]model.MissionLogEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, pass, phase, action, query, result, success, detail, duration_ms, ts
		 FROM mission_log WHERE lead_id = $1 ORDER BY ts ASC, pass ASC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list mission log")
	}
	defer rows.Close()

	var entries []model.MissionLogEntry
	for rows.Next() {
		var e model.MissionLogEntry
		if err := rows.Scan(&e.ID, &e.LeadID, &e.Pass, &e.Phase, &e.Action, &e.Query,
			&e.Result, &e.Success, &e.Detail, &e.DurationMS, &e.Timestamp); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mission log entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list mission log iterate")
}

func (s *PostgresStore) HasAttempted(ctx context.Context, leadID, phase, action string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM mission_log WHERE lead_id = $1 AND phase = $2 AND action = $3`,
		leadID, phase, action,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "postgres: has attempted")
	}
	return n > 0, nil
}

func (s *PostgresStore) NextPass(ctx context.Context, leadID string) (int, error) {
	var maxPass sql.NullInt64
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(pass) FROM mission_log WHERE lead_id = $1`, leadID,
	).Scan(&maxPass)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: next pass")
	}
	return int(maxPass.Int64) + 1, nil
}

func (s *PostgresStore) UpsertCompany(ctx context.Context, c *model.Company) (string, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if c.NormalizedName == "" {
		c.NormalizedName = model.NormalizeName(c.Name)
	}

	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO companies (id, name, normalized_name, domain, phone, lead_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 1, $6, $7)
		 ON CONFLICT (domain, normalized_name) DO UPDATE SET
		   phone = CASE WHEN excluded.phone != '' THEN excluded.phone ELSE companies.phone END,
		   lead_count = companies.lead_count + 1,
		   updated_at = excluded.updated_at
		 RETURNING id`,
		c.ID, c.Name, c.NormalizedName, c.Domain, c.Phone, now, now,
	).Scan(&id)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: upsert company %s", c.Domain)
	}
	c.ID = id
	return id, nil
}

func (s *PostgresStore) GetCompanyByDomain(ctx context.Context, domain string) (*model.Company, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, normalized_name, domain, phone, lead_count, created_at, updated_at
		 FROM companies WHERE domain = $1 ORDER BY updated_at DESC LIMIT 1`,
		domain,
	)
	var c model.Company
	err := row.Scan(&c.ID, &c.Name, &c.NormalizedName, &c.Domain, &c.Phone, &c.LeadCount, &c.CreatedAt, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get company by domain")
	}
	return &c, nil
}

func (s *PostgresStore) RecordAdapterResult(ctx context.Context, name string, errMsg string, failureLimit int) (*model.AdapterHealth, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin adapter result")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	h := model.AdapterHealth{Name: name}

	row := tx.QueryRow(ctx,
		`SELECT consecutive_failures, disabled, last_error, last_run_at, last_success_at
		 FROM adapter_health WHERE name = $1`, name,
	)
	err = row.Scan(&h.ConsecutiveFailures, &h.Disabled, &h.LastError, &h.LastRunAt, &h.LastSuccessAt)
	if err != nil && err != pgx.ErrNoRows {
		return nil, eris.Wrap(err, "postgres: read adapter health")
	}

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

	_, err = tx.Exec(ctx,
		`INSERT INTO adapter_health (name, consecutive_failures, disabled, last_error, last_run_at, last_success_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name) DO UPDATE SET
		   consecutive_failures = excluded.consecutive_failures,
		   disabled = excluded.disabled,
		   last_error = excluded.last_error,
		   last_run_at = excluded.last_run_at,
		   last_success_at = excluded.last_success_at`,
		name, h.ConsecutiveFailures, h.Disabled, h.LastError, h.LastRunAt, h.LastSuccessAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: upsert adapter health %s", name)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit adapter result")
	}
	return &h, nil
}

func (s *PostgresStore) GetAdapterHealth(ctx context.Context, name string) (*model.AdapterHealth, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT name, consecutive_failures, disabled, last_error, last_run_at, last_success_at
		 FROM adapter_health WHERE name = $1`, name,
	)
	var h model.AdapterHealth
	err := row.Scan(&h.Name, &h.ConsecutiveFailures, &h.Disabled, &h.LastError, &h.LastRunAt, &h.LastSuccessAt)
	if err == pgx.ErrNoRows {
		return &model.AdapterHealth{Name: name}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get adapter health")
	}
	return &h, nil
}

func (s *PostgresStore) ListAdapterHealth(ctx context.Context) ([]model.AdapterHealth, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, consecutive_failures, disabled, last_error, last_run_at, last_success_at
		 FROM adapter_health ORDER BY name ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list adapter health")
	}
	defer rows.Close()

	var out []model.AdapterHealth
	for rows.Next() {
		var h model.AdapterHealth
		if err := rows.Scan(&h.Name, &h.ConsecutiveFailures, &h.Disabled, &h.LastError, &h.LastRunAt, &h.LastSuccessAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan adapter health")
		}
		out = append(out, h)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list adapter health iterate")
}

func (s *PostgresStore) ResetAdapter(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE adapter_health SET consecutive_failures = 0, disabled = FALSE, last_error = '' WHERE name = $1`,
		name,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: reset adapter %s", name)
	}
	return checkTag(tag, "adapter", name)
}

func (s *PostgresStore) LogOutbound(ctx context.Context, rec *model.OutboundRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO outbound_log (id, lead_id, recipient, sent_at) VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.LeadID, rec.Recipient, rec.SentAt,
	)
	return eris.Wrap(err, "postgres: log outbound")
}

func (s *PostgresStore) CountOutboundSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM outbound_log WHERE sent_at >= $1`, since.UTC(),
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count outbound")
}

func (s *PostgresStore) EnqueuePending(ctx context.Context, p *model.PendingOutbound) error {
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
		return eris.Wrap(err, "postgres: marshal pending message")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO pending_outbound (id, lead_id, message, status, queued_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.LeadID, string(msgJSON), string(p.Status), p.QueuedAt,
	)
	return eris.Wrap(err, "postgres: enqueue pending")
}

func (s *PostgresStore) GetPending(ctx context.Context, id string) (*model.PendingOutbound, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, lead_id, message, status, queued_at FROM pending_outbound WHERE id = $1`, id,
	)
	var p model.PendingOutbound
	var msgJSON []byte
	err := row.Scan(&p.ID, &p.LeadID, &msgJSON, &p.Status, &p.QueuedAt)
	if err == pgx.ErrNoRows {
		return nil, eris.Errorf("pending outbound not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get pending")
	}
	if err := json.Unmarshal(msgJSON, &p.Message); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal pending message")
	}
	return &p, nil
}

func (s *PostgresStore) ListPending(ctx context.Context, status model.PendingStatus) ([]model.PendingOutbound, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, message, status, queued_at FROM pending_outbound
		 WHERE status = $1 ORDER BY queued_at ASC`,
		string(status),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending")
	}
	defer rows.Close()

	var out []model.PendingOutbound
	for rows.Next() {
		var p model.PendingOutbound
		var msgJSON []byte
		if err := rows.Scan(&p.ID, &p.LeadID, &msgJSON, &p.Status, &p.QueuedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pending")
		}
		if err := json.Unmarshal(msgJSON, &p.Message); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal pending message")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list pending iterate")
}

func (s *PostgresStore) UpdatePendingStatus(ctx context.Context, id string, status model.PendingStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pending_outbound SET status = $1 WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update pending status %s", id)
	}
	return checkTag(tag, "pending outbound", id)
}

func (s *PostgresStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = $1`, key,
	).Scan(&value)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "postgres: get setting")
	}
	return value, nil
}

func (s *PostgresStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return eris.Wrap(err, "postgres: set setting")
}

func (s *PostgresStore) CountLeadsByState(ctx context.Context) (map[model.EnrichState]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT state, COUNT(1) FROM lead_events GROUP BY state`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count leads by state")
	}
	defer rows.Close()

	out := make(map[model.EnrichState]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead count")
		}
		out[model.EnrichState(state)] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: count leads iterate")
}

func (s *PostgresStore) CountSignalsBySource(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source, COUNT(1) FROM signals GROUP BY source`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count signals by source")
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan signal count")
		}
		out[source] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: count signals iterate")
}

func (s *PostgresStore) MissionStats(ctx context.Context) ([]MissionStat, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT phase, action, COUNT(1), COUNT(1) FILTER (WHERE success) FROM mission_log
		 GROUP BY phase, action ORDER BY phase, action`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: mission stats")
	}
	defer rows.Close()

	var stats []MissionStat
	for rows.Next() {
		var st MissionStat
		if err := rows.Scan(&st.Phase, &st.Action, &st.Attempts, &st.Successes); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mission stat")
		}
		stats = append(stats, st)
	}
	return stats, eris.Wrap(rows.Err(), "postgres: mission stats iterate")
}

func (s *PostgresStore) SuppressionCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT detail, COUNT(1) FROM mission_log
		 WHERE phase = $1 AND action = 'gate' AND result = $2
		 GROUP BY detail`,
		model.PhaseOutreach, string(model.GateSuppress),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: suppression counts")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var rule string
		var n int
		if err := rows.Scan(&rule, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan suppression count")
		}
		// the gate appends the matched entry after a colon; counts roll up
		// per rule, not per entry
		rule, _, _ = strings.Cut(rule, ":")
		counts[rule] += n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: suppression counts iterate")
}

func checkTag(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
