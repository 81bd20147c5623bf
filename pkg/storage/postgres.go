// Package storage provides the Postgres persistence layer and the Redis
// hash lists backing the pipeline.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/audit"
	"github.com/trustlayer-ai/bastion/pkg/content"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("storage: not found")

// Postgres wraps a pgx pool with the queries the pipeline needs: dynamic
// spam rules, verdict persistence, feedback, and the audit trail.
type Postgres struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgres connects and verifies the pool with a ping.
func NewPostgres(ctx context.Context, dsn string, logger zerolog.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Postgres{
		pool:   pool,
		logger: logger.With().Str("component", "postgres").Logger(),
	}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// Migrate creates the tables if they do not exist yet. Intended for small
// deployments; larger ones run their own migrations.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS spam_rules (
    id        BIGSERIAL PRIMARY KEY,
    pattern   TEXT NOT NULL,
    priority  INT  NOT NULL DEFAULT 0,
    score     INT  NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS verdicts (
    request_id  TEXT PRIMARY KEY,
    risk_score  INT  NOT NULL,
    risk_level  TEXT NOT NULL,
    issues      JSONB NOT NULL DEFAULT '[]',
    feedback    JSONB,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS audit_log (
    id          BIGSERIAL PRIMARY KEY,
    request_id  TEXT NOT NULL,
    stage       TEXT NOT NULL,
    action      TEXT NOT NULL,
    details     JSONB NOT NULL DEFAULT '{}',
    recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_request ON audit_log (request_id);
`

// ListRules returns the active dynamic rules, highest priority first.
// Rules with non-positive priority are considered disabled.
func (p *Postgres) ListRules(ctx context.Context) ([]content.SpamRule, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, pattern, priority, score
		 FROM spam_rules
		 WHERE priority > 0
		 ORDER BY priority DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query spam rules: %w", err)
	}
	defer rows.Close()

	var out []content.SpamRule
	for rows.Next() {
		var r content.SpamRule
		if err := rows.Scan(&r.ID, &r.Pattern, &r.Priority, &r.Score); err != nil {
			return nil, fmt.Errorf("scan spam rule: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spam rules: %w", err)
	}
	return out, nil
}

// SaveVerdict upserts the terminal verdict for a request.
func (p *Postgres) SaveVerdict(ctx context.Context, v content.RiskVerdict) error {
	issues, err := json.Marshal(v.Issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO verdicts (request_id, risk_score, risk_level, issues)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (request_id) DO UPDATE
		 SET risk_score = EXCLUDED.risk_score,
		     risk_level = EXCLUDED.risk_level,
		     issues     = EXCLUDED.issues`,
		v.RequestID, v.RiskScore, string(v.RiskLevel), issues)
	if err != nil {
		return fmt.Errorf("save verdict: %w", err)
	}
	return nil
}

// GetVerdict looks up an earlier verdict by request id.
func (p *Postgres) GetVerdict(ctx context.Context, requestID string) (content.RiskVerdict, error) {
	var (
		v      content.RiskVerdict
		level  string
		issues []byte
	)
	err := p.pool.QueryRow(ctx,
		`SELECT request_id, risk_score, risk_level, issues
		 FROM verdicts WHERE request_id = $1`, requestID).
		Scan(&v.RequestID, &v.RiskScore, &level, &issues)
	if errors.Is(err, pgx.ErrNoRows) {
		return content.RiskVerdict{}, ErrNotFound
	}
	if err != nil {
		return content.RiskVerdict{}, fmt.Errorf("get verdict: %w", err)
	}
	v.RiskLevel = content.RiskLevel(level)
	if err := json.Unmarshal(issues, &v.Issues); err != nil {
		return content.RiskVerdict{}, fmt.Errorf("decode issues: %w", err)
	}
	return v, nil
}

// SaveFeedback attaches reviewer feedback to an existing verdict. Feedback
// for an unknown request id is reported via ErrNotFound so the caller can
// decide to ignore it.
func (p *Postgres) SaveFeedback(ctx context.Context, fb content.Feedback) error {
	payload, err := json.Marshal(fb)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE verdicts SET feedback = $2 WHERE request_id = $1`,
		fb.RequestID, payload)
	if err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertAuditLog persists one audit event. Implements audit.Writer.
func (p *Postgres) InsertAuditLog(ctx context.Context, e audit.Event) error {
	details := make(map[string]string, len(e.Details))
	for _, f := range e.Details {
		details[f.Key] = f.Value
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO audit_log (request_id, stage, action, details, recorded_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.RequestID, e.Stage, e.Action, payload, at)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
