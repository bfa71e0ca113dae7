package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
	"github.com/auditkit/evidence-pipeline/internal/core/ports"
)

// Retriever runs lexical full-text search over the evidence_chunks table.
// Two tsvector columns cover the bilingual corpus; a query matches when
// either configuration hits. The access predicate is rendered into the WHERE
// clause, so filtering happens inside postgres.
type Retriever struct {
	db *sql.DB
}

func NewRetriever(db *sql.DB) *Retriever {
	return &Retriever{db: db}
}

func (r *Retriever) Name() string { return "sparse" }

func (r *Retriever) Search(
	ctx context.Context,
	query ports.RetrieverQuery,
	predicate domain.AccessPredicate,
	k int,
) ([]domain.RetrievalHit, error) {
	if strings.TrimSpace(query.Text) == "" {
		return nil, nil
	}

	whereSQL, args := buildAccessWhere(predicate, 2)
	if whereSQL == "" {
		return nil, nil
	}

	sqlQuery := fmt.Sprintf(`
SELECT chunk_id, source_id, sequence_index, chunk_text, scope, owner_tenant_id, trust_level, source_title, section, page,
       ts_rank_cd(search_vector_ru, websearch_to_tsquery('russian', $1)) +
       ts_rank_cd(search_vector_en, websearch_to_tsquery('english', $1)) AS score
FROM evidence_chunks
WHERE (search_vector_ru @@ websearch_to_tsquery('russian', $1)
    OR search_vector_en @@ websearch_to_tsquery('english', $1))
  AND (%s)
ORDER BY score DESC, chunk_id ASC
LIMIT $%d
`, whereSQL, len(args)+2)

	queryArgs := append([]any{query.Text}, args...)
	queryArgs = append(queryArgs, k)

	rows, err := r.db.QueryContext(ctx, sqlQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("query lexical search: %w", err)
	}
	defer rows.Close()

	var hits []domain.RetrievalHit
	for rows.Next() {
		var chunk domain.EvidenceChunk
		var owner, title, section sql.NullString
		var page sql.NullInt64
		var scope, trust string
		var score float64
		if err := rows.Scan(
			&chunk.ChunkID, &chunk.SourceID, &chunk.SequenceIndex, &chunk.Text,
			&scope, &owner, &trust, &title, &section, &page, &score,
		); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		chunk.Scope = domain.Scope(scope)
		chunk.TrustLevel = domain.TrustLevel(trust)
		chunk.OwnerTenantID = owner.String
		chunk.SourceTitle = title.String
		chunk.Section = section.String
		chunk.Page = int(page.Int64)
		hits = append(hits, domain.RetrievalHit{Chunk: chunk, RawScore: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].RawScore != hits[j].RawScore {
			return hits[i].RawScore > hits[j].RawScore
		}
		return hits[i].Chunk.ChunkID < hits[j].Chunk.ChunkID
	})
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits, nil
}

// buildAccessWhere renders the predicate as a SQL disjunction starting at
// placeholder index firstArg. An empty clause means nothing is visible.
func buildAccessWhere(predicate domain.AccessPredicate, firstArg int) (string, []any) {
	var clauses []string
	var args []any
	next := firstArg

	if predicate.AllowRegulatory {
		clauses = append(clauses, fmt.Sprintf("scope = $%d", next))
		args = append(args, string(domain.ScopeRegulatory))
		next++
	}

	if predicate.AllowTenantDocs {
		if predicate.AllTenants {
			clauses = append(clauses, fmt.Sprintf("scope = $%d", next))
			args = append(args, string(domain.ScopeTenantDocument))
			next++
		} else if len(predicate.TenantIDs) > 0 {
			placeholders := make([]string, 0, len(predicate.TenantIDs))
			scopeArg := next
			args = append(args, string(domain.ScopeTenantDocument))
			next++
			for _, tenantID := range predicate.TenantIDs {
				placeholders = append(placeholders, fmt.Sprintf("$%d", next))
				args = append(args, tenantID)
				next++
			}
			clauses = append(clauses, fmt.Sprintf("(scope = $%d AND owner_tenant_id IN (%s))", scopeArg, strings.Join(placeholders, ",")))
		}
	}

	return strings.Join(clauses, " OR "), args
}
