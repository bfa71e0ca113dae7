package usecase

import (
	"sort"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
)

// fuseReciprocalRank merges per-retriever ranked lists with Reciprocal Rank
// Fusion: score(chunk) = sum over lists of 1/(K + rank). A chunk absent from
// a list contributes nothing for that list. RRF needs no score calibration
// between backends, which is why raw scores never enter the formula.
func fuseReciprocalRank(lists map[string][]domain.RetrievalHit, rrfK int) []domain.FusedResult {
	if rrfK <= 0 {
		rrfK = 60
	}

	acc := make(map[string]*domain.FusedResult)
	for name, hits := range lists {
		for _, hit := range hits {
			id := hit.Chunk.ChunkID
			if id == "" {
				continue
			}
			fused, ok := acc[id]
			if !ok {
				fused = &domain.FusedResult{
					Chunk:       hit.Chunk,
					SourceRanks: make(map[string]int, len(lists)),
				}
				acc[id] = fused
			}
			if fused.Chunk.Text == "" && hit.Chunk.Text != "" {
				fused.Chunk = hit.Chunk
			}
			fused.FusedScore += 1.0 / float64(rrfK+hit.Rank)
			fused.SourceRanks[name] = hit.Rank
		}
	}

	out := make([]domain.FusedResult, 0, len(acc))
	for _, fused := range acc {
		out = append(out, *fused)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FusedScore != out[j].FusedScore {
			return out[i].FusedScore > out[j].FusedScore
		}
		bi, bj := out[i].BestRank(), out[j].BestRank()
		if bi != bj {
			return bi < bj
		}
		return out[i].Chunk.ChunkID < out[j].Chunk.ChunkID
	})

	return out
}
