package usecase

import "github.com/auditkit/evidence-pipeline/internal/core/domain"

type dedupeConfig struct {
	// Window is the sequence-index distance within one source that still
	// counts as the same content. 0 means only the identical position.
	Window int
	// SimilarityThreshold guards against re-chunking artifacts: two nearby
	// chunks are duplicates only when their text is this similar.
	SimilarityThreshold float64
	// MaxPerSource caps surviving chunks per source, 0 disables the cap.
	MaxPerSource int
}

// dedupeFused collapses duplicate chunks in a fused list. The input is
// ordered by descending fused score, so the first member of every duplicate
// group is the one kept. Must run before any top-N truncation or duplicates
// would waste rerank budget. Idempotent.
func dedupeFused(fused []domain.FusedResult, cfg dedupeConfig) []domain.FusedResult {
	if len(fused) == 0 {
		return fused
	}

	kept := make([]domain.FusedResult, 0, len(fused))
	keptTokens := make([]map[string]struct{}, 0, len(fused))
	perSource := make(map[string]int)

	for _, candidate := range fused {
		tokens := tokenSet(candidate.Chunk.Text)
		if isDuplicate(candidate, tokens, kept, keptTokens, cfg) {
			continue
		}
		if cfg.MaxPerSource > 0 && perSource[candidate.Chunk.SourceID] >= cfg.MaxPerSource {
			continue
		}
		kept = append(kept, candidate)
		keptTokens = append(keptTokens, tokens)
		perSource[candidate.Chunk.SourceID]++
	}

	return kept
}

func isDuplicate(
	candidate domain.FusedResult,
	candidateTokens map[string]struct{},
	kept []domain.FusedResult,
	keptTokens []map[string]struct{},
	cfg dedupeConfig,
) bool {
	for i := range kept {
		if kept[i].Chunk.ChunkID == candidate.Chunk.ChunkID {
			return true
		}
		if kept[i].Chunk.SourceID != candidate.Chunk.SourceID {
			continue
		}
		distance := kept[i].Chunk.SequenceIndex - candidate.Chunk.SequenceIndex
		if distance < 0 {
			distance = -distance
		}
		if distance > cfg.Window {
			continue
		}
		if jaccardSimilarity(candidateTokens, keptTokens[i]) >= cfg.SimilarityThreshold {
			return true
		}
	}
	return false
}
