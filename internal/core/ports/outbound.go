package ports

import (
	"context"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
)

// RetrieverQuery carries both representations of the routed query so that
// dense and lexical backends can share one contract.
type RetrieverQuery struct {
	Text      string
	Embedding []float32
}

// Retriever is a pluggable retrieval backend. Implementations apply the
// predicate as a hard filter and return hits ordered by descending score,
// ties broken by chunk id ascending.
type Retriever interface {
	Name() string
	Search(ctx context.Context, query RetrieverQuery, predicate domain.AccessPredicate, k int) ([]domain.RetrievalHit, error)
}

// RerankService scores candidate texts against a query in one batched call.
// Scores are returned in candidate order.
type RerankService interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// ChunkStore reads chunk records from the ingestion-owned store. The pipeline
// only ever reads; writes belong to ingestion.
type ChunkStore interface {
	GetByID(ctx context.Context, chunkID string) (*domain.EvidenceChunk, error)
	Neighbors(ctx context.Context, sourceID string, sequenceIndex int) ([]domain.EvidenceChunk, error)
}

// Embedder builds a vector for the query text when the router did not
// supply one.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// AuditTrail publishes access decisions and degradations to the external
// audit collaborator. Implementations must not block the request path.
type AuditTrail interface {
	Record(ctx context.Context, record domain.AuditRecord) error
}

// AuditLogStore persists audit records on the consumer side.
type AuditLogStore interface {
	Append(ctx context.Context, record domain.AuditRecord) error
}
