package neo4j

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
	"github.com/auditkit/evidence-pipeline/internal/core/ports"
)

// Retriever queries the knowledge graph's full-text index over chunk nodes.
// Optional third retrieval source; regulatory corpora with heavy
// cross-references benefit from it, plain document sets do not.
type Retriever struct {
	driver neo4j.DriverWithContext
	index  string
}

func New(ctx context.Context, uri, user, password, index string) (*Retriever, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	if strings.TrimSpace(index) == "" {
		index = "chunk_text"
	}
	return &Retriever{driver: driver, index: index}, nil
}

func (r *Retriever) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func (r *Retriever) Name() string { return "graph" }

func (r *Retriever) Search(
	ctx context.Context,
	query ports.RetrieverQuery,
	predicate domain.AccessPredicate,
	k int,
) ([]domain.RetrievalHit, error) {
	if strings.TrimSpace(query.Text) == "" {
		return nil, nil
	}

	where, params := buildScopeClause(predicate)
	if where == "" {
		return nil, nil
	}
	params["query"] = query.Text
	params["limit"] = k
	params["index"] = r.index

	cypher := fmt.Sprintf(`
CALL db.index.fulltext.queryNodes($index, $query) YIELD node, score
WHERE %s
RETURN node.chunk_id AS chunk_id,
       node.source_id AS source_id,
       node.sequence_index AS sequence_index,
       node.text AS text,
       node.scope AS scope,
       node.owner_tenant_id AS owner_tenant_id,
       node.trust_level AS trust_level,
       node.source_title AS source_title,
       score
ORDER BY score DESC, chunk_id ASC
LIMIT $limit
`, where)

	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	records, err := neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) ([]*neo4j.Record, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("run graph query: %w", err)
	}

	hits := make([]domain.RetrievalHit, 0, len(records))
	for _, record := range records {
		chunk := domain.EvidenceChunk{
			ChunkID:       recordString(record, "chunk_id"),
			SourceID:      recordString(record, "source_id"),
			SequenceIndex: recordInt(record, "sequence_index"),
			Text:          recordString(record, "text"),
			Scope:         domain.Scope(recordString(record, "scope")),
			OwnerTenantID: recordString(record, "owner_tenant_id"),
			TrustLevel:    domain.TrustLevel(recordString(record, "trust_level")),
			SourceTitle:   recordString(record, "source_title"),
		}
		if chunk.ChunkID == "" {
			continue
		}
		score := 0.0
		if v, ok := record.Get("score"); ok {
			if f, ok := v.(float64); ok {
				score = f
			}
		}
		hits = append(hits, domain.RetrievalHit{Chunk: chunk, Rank: len(hits) + 1, RawScore: score})
	}
	return hits, nil
}

func buildScopeClause(predicate domain.AccessPredicate) (string, map[string]any) {
	params := make(map[string]any)
	var clauses []string

	if predicate.AllowRegulatory {
		clauses = append(clauses, "node.scope = $regulatory_scope")
		params["regulatory_scope"] = string(domain.ScopeRegulatory)
	}
	if predicate.AllowTenantDocs {
		if predicate.AllTenants {
			clauses = append(clauses, "node.scope = $tenant_scope")
			params["tenant_scope"] = string(domain.ScopeTenantDocument)
		} else if len(predicate.TenantIDs) > 0 {
			clauses = append(clauses, "(node.scope = $tenant_scope AND node.owner_tenant_id IN $tenant_ids)")
			params["tenant_scope"] = string(domain.ScopeTenantDocument)
			params["tenant_ids"] = predicate.TenantIDs
		}
	}
	return strings.Join(clauses, " OR "), params
}

func recordString(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func recordInt(record *neo4j.Record, key string) int {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
