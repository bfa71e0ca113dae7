package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
	"github.com/auditkit/evidence-pipeline/internal/core/ports"
)

var errEmptyQuery = errors.New("empty query text")

type PipelineConfig struct {
	RRFK             int
	DedupeWindow     int
	DedupeSimilarity float64
	MaxPerSource     int
	// CandidateBudget bounds how many fused results reach the reranker (M).
	CandidateBudget int
	// FinalBudget bounds how many items leave the pipeline (N).
	FinalBudget      int
	TrustEpsilon     float64
	DefaultKDense    int
	DefaultKSparse   int
	RetrieverTimeout time.Duration
	RerankTimeout    time.Duration
}

func (c PipelineConfig) normalize() PipelineConfig {
	out := c
	if out.RRFK <= 0 {
		out.RRFK = 60
	}
	if out.DedupeSimilarity <= 0 {
		out.DedupeSimilarity = 0.95
	}
	if out.MaxPerSource <= 0 {
		out.MaxPerSource = 3
	}
	if out.CandidateBudget <= 0 {
		out.CandidateBudget = 30
	}
	if out.FinalBudget <= 0 {
		out.FinalBudget = 12
	}
	if out.TrustEpsilon <= 0 {
		out.TrustEpsilon = 0.05
	}
	if out.DefaultKDense <= 0 {
		out.DefaultKDense = 20
	}
	if out.DefaultKSparse <= 0 {
		out.DefaultKSparse = 20
	}
	if out.RetrieverTimeout <= 0 {
		out.RetrieverTimeout = 3 * time.Second
	}
	if out.RerankTimeout <= 0 {
		out.RerankTimeout = 2 * time.Second
	}
	return out
}

// EvidencePipeline runs the retrieve-fuse-dedupe-rerank-assemble flow.
// Everything past access control degrades instead of failing: a dead
// retriever, embedder, or reranker shrinks or reorders the pack but never
// turns a partially answerable query into an error.
type EvidencePipeline struct {
	access     *AccessControl
	retrievers []ports.Retriever
	embedder   ports.Embedder
	reranker   ports.RerankService
	chunks     ports.ChunkStore
	logger     *slog.Logger
	cfg        PipelineConfig
}

func NewEvidencePipeline(
	access *AccessControl,
	retrievers []ports.Retriever,
	embedder ports.Embedder,
	reranker ports.RerankService,
	chunks ports.ChunkStore,
	logger *slog.Logger,
	cfg PipelineConfig,
) *EvidencePipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvidencePipeline{
		access:     access,
		retrievers: retrievers,
		embedder:   embedder,
		reranker:   reranker,
		chunks:     chunks,
		logger:     logger,
		cfg:        cfg.normalize(),
	}
}

func (p *EvidencePipeline) Retrieve(ctx context.Context, query domain.EvidenceQuery) (*domain.EvidencePack, error) {
	if strings.TrimSpace(query.QueryText) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve evidence", errEmptyQuery)
	}

	predicate, err := p.access.BuildPredicate(ctx, query)
	if err != nil {
		return nil, err
	}

	pack := &domain.EvidencePack{}

	embedding := p.resolveEmbedding(ctx, query, pack)

	lists := p.runRetrievers(ctx, query, embedding, predicate, pack)
	if len(lists) == 0 {
		// every retriever failed; nothing retrievable at all
		return nil, domain.WrapError(domain.ErrRetrieverUnavailable, "retrieve evidence", errors.New("all retrievers failed"))
	}

	fused := fuseReciprocalRank(lists, p.cfg.RRFK)
	fused = dedupeFused(fused, dedupeConfig{
		Window:              p.cfg.DedupeWindow,
		SimilarityThreshold: p.cfg.DedupeSimilarity,
		MaxPerSource:        p.cfg.MaxPerSource,
	})

	ranked := p.rerankOrFallback(ctx, query.QueryText, fused, pack)

	pack.Items = assembleEvidence(ctx, p.chunks, ranked)

	p.logger.Info("evidence_pack_built",
		"user_id", query.Requester.UserID,
		"role", string(query.Requester.Role),
		"items", len(pack.Items),
		"degraded", pack.Degraded,
		"reasons", pack.DegradedReasons,
	)
	return pack, nil
}

// resolveEmbedding returns the router-supplied vector, or embeds the query
// text itself. Embedding failure is not fatal: the lexical retrievers still
// run and the pack is marked degraded.
func (p *EvidencePipeline) resolveEmbedding(ctx context.Context, query domain.EvidenceQuery, pack *domain.EvidencePack) []float32 {
	if len(query.QueryEmbedding) > 0 {
		return query.QueryEmbedding
	}
	if p.embedder == nil {
		return nil
	}
	embedding, err := p.embedder.EmbedQuery(ctx, query.QueryText)
	if err != nil {
		p.logger.Warn("query_embedding_failed", "error", err)
		p.markDegraded(pack, "query_embedding_unavailable")
		return nil
	}
	return embedding
}

type retrieverResult struct {
	name string
	hits []domain.RetrievalHit
	err  error
}

// runRetrievers fans the query out to every configured retriever and
// collects whatever came back in time. Per-retriever failures and timeouts
// become degradation reasons, not errors. Hits are re-checked against the
// predicate so a misbehaving backend can never leak a chunk past access
// control.
func (p *EvidencePipeline) runRetrievers(
	ctx context.Context,
	query domain.EvidenceQuery,
	embedding []float32,
	predicate domain.AccessPredicate,
	pack *domain.EvidencePack,
) map[string][]domain.RetrievalHit {
	rq := ports.RetrieverQuery{Text: query.QueryText, Embedding: embedding}

	results := make(chan retrieverResult, len(p.retrievers))
	launched := 0
	for _, retriever := range p.retrievers {
		k := p.retrieverK(retriever.Name(), query, predicate)
		if k <= 0 {
			continue
		}
		if retriever.Name() == "dense" && len(embedding) == 0 {
			// no vector to search with; the embedding failure was already recorded
			continue
		}
		launched++
		go func(r ports.Retriever, k int) {
			searchCtx, cancel := context.WithTimeout(ctx, p.cfg.RetrieverTimeout)
			defer cancel()
			hits, err := r.Search(searchCtx, rq, predicate, k)
			results <- retrieverResult{name: r.Name(), hits: hits, err: err}
		}(retriever, k)
	}

	lists := make(map[string][]domain.RetrievalHit, launched)
	for i := 0; i < launched; i++ {
		result := <-results
		if result.err != nil {
			p.logger.Warn("retriever_failed", "retriever", result.name, "error", result.err)
			p.markDegraded(pack, result.name+"_unavailable")
			continue
		}
		lists[result.name] = filterHits(result.hits, predicate)
	}
	return lists
}

// retrieverK resolves the per-retriever candidate count, clamped by the
// role's MaxK from the predicate.
func (p *EvidencePipeline) retrieverK(name string, query domain.EvidenceQuery, predicate domain.AccessPredicate) int {
	var k int
	switch name {
	case "dense":
		k = query.KDense
		if k <= 0 {
			k = p.cfg.DefaultKDense
		}
	case "sparse":
		k = query.KSparse
		if k <= 0 {
			k = p.cfg.DefaultKSparse
		}
	default:
		k = p.cfg.DefaultKSparse
	}
	if predicate.MaxK > 0 && k > predicate.MaxK {
		k = predicate.MaxK
	}
	return k
}

// filterHits drops any hit the predicate does not allow and re-ranks the
// survivors 1..n.
func filterHits(hits []domain.RetrievalHit, predicate domain.AccessPredicate) []domain.RetrievalHit {
	out := make([]domain.RetrievalHit, 0, len(hits))
	for _, hit := range hits {
		if !predicate.Allows(hit.Chunk.Scope, hit.Chunk.OwnerTenantID) {
			continue
		}
		hit.Rank = len(out) + 1
		out = append(out, hit)
	}
	return out
}

func (p *EvidencePipeline) rerankOrFallback(ctx context.Context, queryText string, fused []domain.FusedResult, pack *domain.EvidencePack) []rankedEvidence {
	if p.reranker == nil {
		return fusedFallback(fused, p.cfg.FinalBudget)
	}

	rerankCtx, cancel := context.WithTimeout(ctx, p.cfg.RerankTimeout)
	defer cancel()

	ranked, err := rerankCandidates(rerankCtx, p.reranker, queryText, fused, p.cfg.CandidateBudget, p.cfg.FinalBudget, p.cfg.TrustEpsilon)
	if err != nil {
		p.logger.Warn("rerank_failed", "error", err)
		p.markDegraded(pack, "reranker_unavailable")
		return fusedFallback(fused, p.cfg.FinalBudget)
	}
	return ranked
}

func (p *EvidencePipeline) markDegraded(pack *domain.EvidencePack, reason string) {
	pack.Degraded = true
	for _, existing := range pack.DegradedReasons {
		if existing == reason {
			return
		}
	}
	pack.DegradedReasons = append(pack.DegradedReasons, reason)
}
