package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
)

// ChunkRepository reads evidence chunks from postgres. The pipeline never
// writes chunk rows; ingestion owns them.
type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ChunkRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS evidence_chunks (
	chunk_id TEXT PRIMARY KEY,
	source_id TEXT NOT NULL,
	sequence_index INTEGER NOT NULL,
	chunk_text TEXT NOT NULL,
	scope TEXT NOT NULL,
	owner_tenant_id TEXT,
	trust_level TEXT NOT NULL DEFAULT 'unknown',
	source_title TEXT,
	section TEXT,
	page INTEGER,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	search_vector_ru tsvector GENERATED ALWAYS AS (to_tsvector('russian', chunk_text)) STORED,
	search_vector_en tsvector GENERATED ALWAYS AS (to_tsvector('english', chunk_text)) STORED
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_evidence_chunks_source_seq ON evidence_chunks(source_id, sequence_index);
CREATE INDEX IF NOT EXISTS idx_evidence_chunks_scope ON evidence_chunks(scope);
CREATE INDEX IF NOT EXISTS idx_evidence_chunks_tenant ON evidence_chunks(owner_tenant_id) WHERE owner_tenant_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_evidence_chunks_fts_ru ON evidence_chunks USING GIN (search_vector_ru);
CREATE INDEX IF NOT EXISTS idx_evidence_chunks_fts_en ON evidence_chunks USING GIN (search_vector_en);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const chunkColumns = `chunk_id, source_id, sequence_index, chunk_text, scope, owner_tenant_id, trust_level, source_title, section, page`

func (r *ChunkRepository) GetByID(ctx context.Context, chunkID string) (*domain.EvidenceChunk, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+chunkColumns+`
FROM evidence_chunks
WHERE chunk_id = $1
`, chunkID)

	chunk, err := scanChunk(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrChunkNotFound, "get chunk", fmt.Errorf("chunk %s", chunkID))
		}
		return nil, fmt.Errorf("scan chunk: %w", err)
	}
	return chunk, nil
}

// Neighbors returns the chunks directly before and after the given position
// in the same source, in sequence order.
func (r *ChunkRepository) Neighbors(ctx context.Context, sourceID string, sequenceIndex int) ([]domain.EvidenceChunk, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+chunkColumns+`
FROM evidence_chunks
WHERE source_id = $1 AND sequence_index IN ($2, $3)
ORDER BY sequence_index ASC
`, sourceID, sequenceIndex-1, sequenceIndex+1)
	if err != nil {
		return nil, fmt.Errorf("query neighbors: %w", err)
	}
	defer rows.Close()

	var chunks []domain.EvidenceChunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scan neighbor: %w", err)
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate neighbors: %w", err)
	}
	return chunks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*domain.EvidenceChunk, error) {
	var chunk domain.EvidenceChunk
	var owner, title, section sql.NullString
	var page sql.NullInt64
	var scope, trust string

	err := row.Scan(
		&chunk.ChunkID, &chunk.SourceID, &chunk.SequenceIndex, &chunk.Text,
		&scope, &owner, &trust, &title, &section, &page,
	)
	if err != nil {
		return nil, err
	}
	chunk.Scope = domain.Scope(scope)
	chunk.TrustLevel = domain.TrustLevel(trust)
	chunk.OwnerTenantID = owner.String
	chunk.SourceTitle = title.String
	chunk.Section = section.String
	chunk.Page = int(page.Int64)
	return &chunk, nil
}
