package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
)

// AuditRepository persists access-decision records consumed from the audit
// bus. Append-only by contract; nothing in the service updates or deletes
// audit rows.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082702)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	recorded_at TIMESTAMPTZ NOT NULL,
	user_id TEXT NOT NULL,
	role TEXT NOT NULL,
	action TEXT NOT NULL,
	decision TEXT NOT NULL,
	reason TEXT,
	tenant_ids JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_audit_log_user ON audit_log(user_id, recorded_at DESC);
CREATE INDEX IF NOT EXISTS idx_audit_log_decision ON audit_log(decision);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *AuditRepository) Append(ctx context.Context, record domain.AuditRecord) error {
	tenantsJSON, err := json.Marshal(record.TenantIDs)
	if err != nil {
		return fmt.Errorf("marshal tenant ids: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO audit_log (id, recorded_at, user_id, role, action, decision, reason, tenant_ids)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO NOTHING
`,
		record.ID, record.Timestamp, record.UserID, string(record.Role),
		record.Action, record.Decision, record.Reason, tenantsJSON,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}
