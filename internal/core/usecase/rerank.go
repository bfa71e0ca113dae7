package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
	"github.com/auditkit/evidence-pipeline/internal/core/ports"
)

// rankedEvidence is a reranked candidate on its way to assembly.
type rankedEvidence struct {
	Chunk     domain.EvidenceChunk
	Relevance float64
}

// rerankCandidates sends at most candidateBudget fused/deduped results to
// the rerank service in one batched call and returns the top finalBudget by
// model relevance. Trust level breaks ties when scores land within epsilon:
// official > client_provided > unknown. An unbounded candidate list is never
// allowed through here.
func rerankCandidates(
	ctx context.Context,
	svc ports.RerankService,
	queryText string,
	fused []domain.FusedResult,
	candidateBudget int,
	finalBudget int,
	trustEpsilon float64,
) ([]rankedEvidence, error) {
	if len(fused) == 0 {
		return nil, nil
	}
	if candidateBudget <= 0 {
		candidateBudget = 30
	}
	if trustEpsilon <= 0 {
		trustEpsilon = 0.05
	}
	if len(fused) > candidateBudget {
		fused = fused[:candidateBudget]
	}

	texts := make([]string, len(fused))
	for i := range fused {
		texts[i] = fused[i].Chunk.Text
	}

	scores, err := svc.Score(ctx, queryText, texts)
	if err != nil {
		return nil, fmt.Errorf("score candidates: %w", err)
	}
	if len(scores) != len(fused) {
		return nil, fmt.Errorf("score candidates: got %d scores for %d candidates", len(scores), len(fused))
	}

	type scored struct {
		candidate domain.FusedResult
		relevance float64
	}
	ranked := make([]scored, len(fused))
	for i := range fused {
		ranked[i] = scored{candidate: fused[i], relevance: scores[i]}
	}

	// Rounding scores to epsilon-wide buckets keeps the comparator
	// transitive: a pairwise "within epsilon" check is not, and sorting with
	// it could order the same candidates differently per input permutation.
	scoreBucket := func(s float64) int64 {
		return int64(math.Round(s / trustEpsilon))
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		bi, bj := scoreBucket(ranked[i].relevance), scoreBucket(ranked[j].relevance)
		if bi != bj {
			return bi > bj
		}
		ti := ranked[i].candidate.Chunk.TrustLevel.Weight()
		tj := ranked[j].candidate.Chunk.TrustLevel.Weight()
		if ti != tj {
			return ti > tj
		}
		if ranked[i].candidate.FusedScore != ranked[j].candidate.FusedScore {
			return ranked[i].candidate.FusedScore > ranked[j].candidate.FusedScore
		}
		return ranked[i].candidate.Chunk.ChunkID < ranked[j].candidate.Chunk.ChunkID
	})

	if finalBudget > 0 && len(ranked) > finalBudget {
		ranked = ranked[:finalBudget]
	}

	out := make([]rankedEvidence, len(ranked))
	for i := range ranked {
		out[i] = rankedEvidence{
			Chunk:     ranked[i].candidate.Chunk,
			Relevance: ranked[i].relevance,
		}
	}
	return out, nil
}

// fusedFallback keeps the fused order when the rerank service is down:
// degraded but available.
func fusedFallback(fused []domain.FusedResult, finalBudget int) []rankedEvidence {
	if finalBudget > 0 && len(fused) > finalBudget {
		fused = fused[:finalBudget]
	}
	out := make([]rankedEvidence, len(fused))
	for i := range fused {
		out[i] = rankedEvidence{
			Chunk:     fused[i].Chunk,
			Relevance: fused[i].FusedScore,
		}
	}
	return out
}
