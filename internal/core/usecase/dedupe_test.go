package usecase

import (
	"testing"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
)

func fusedChunk(chunkID, sourceID string, seq int, text string, score float64) domain.FusedResult {
	return domain.FusedResult{
		Chunk: domain.EvidenceChunk{
			ChunkID:       chunkID,
			SourceID:      sourceID,
			SequenceIndex: seq,
			Text:          text,
		},
		FusedScore: score,
	}
}

func TestDedupeFusedKeepsHigherScoredDuplicate(t *testing.T) {
	fused := []domain.FusedResult{
		fusedChunk("c1", "src-1", 4, "the quarterly retention policy requires seven years", 0.9),
		fusedChunk("c2", "src-1", 5, "the quarterly retention policy requires seven years", 0.5),
		fusedChunk("c3", "src-2", 0, "an unrelated clause about data residency", 0.4),
	}

	kept := dedupeFused(fused, dedupeConfig{Window: 1, SimilarityThreshold: 0.9})
	if len(kept) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(kept))
	}
	if kept[0].Chunk.ChunkID != "c1" {
		t.Fatalf("expected higher-scored duplicate kept, got %s", kept[0].Chunk.ChunkID)
	}
	if kept[1].Chunk.ChunkID != "c3" {
		t.Fatalf("expected unrelated chunk kept, got %s", kept[1].Chunk.ChunkID)
	}
}

func TestDedupeFusedDistantChunksSurvive(t *testing.T) {
	fused := []domain.FusedResult{
		fusedChunk("c1", "src-1", 0, "the quarterly retention policy requires seven years", 0.9),
		fusedChunk("c2", "src-1", 10, "the quarterly retention policy requires seven years", 0.5),
	}

	kept := dedupeFused(fused, dedupeConfig{Window: 1, SimilarityThreshold: 0.9})
	if len(kept) != 2 {
		t.Fatalf("expected distant chunks in one source to survive, got %d", len(kept))
	}
}

func TestDedupeFusedDissimilarNeighborsSurvive(t *testing.T) {
	fused := []domain.FusedResult{
		fusedChunk("c1", "src-1", 4, "the quarterly retention policy requires seven years", 0.9),
		fusedChunk("c2", "src-1", 5, "appendix b lists contact addresses for each office", 0.5),
	}

	kept := dedupeFused(fused, dedupeConfig{Window: 1, SimilarityThreshold: 0.9})
	if len(kept) != 2 {
		t.Fatalf("expected dissimilar neighbors to survive, got %d", len(kept))
	}
}

func TestDedupeFusedSameChunkIDAlwaysCollapses(t *testing.T) {
	fused := []domain.FusedResult{
		fusedChunk("c1", "src-1", 0, "alpha", 0.9),
		fusedChunk("c1", "src-1", 0, "alpha", 0.3),
	}

	kept := dedupeFused(fused, dedupeConfig{})
	if len(kept) != 1 {
		t.Fatalf("expected identical chunk ids collapsed, got %d", len(kept))
	}
}

func TestDedupeFusedIdempotent(t *testing.T) {
	fused := []domain.FusedResult{
		fusedChunk("c1", "src-1", 4, "the quarterly retention policy requires seven years", 0.9),
		fusedChunk("c2", "src-1", 5, "the quarterly retention policy requires seven years", 0.5),
		fusedChunk("c3", "src-2", 0, "an unrelated clause about data residency", 0.4),
	}
	cfg := dedupeConfig{Window: 1, SimilarityThreshold: 0.9}

	once := dedupeFused(fused, cfg)
	twice := dedupeFused(once, cfg)
	if len(once) != len(twice) {
		t.Fatalf("expected idempotent dedupe, got %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Chunk.ChunkID != twice[i].Chunk.ChunkID {
			t.Fatalf("expected stable order, got %s vs %s at %d", once[i].Chunk.ChunkID, twice[i].Chunk.ChunkID, i)
		}
	}
}

func TestDedupeFusedPerSourceCap(t *testing.T) {
	fused := []domain.FusedResult{
		fusedChunk("c1", "src-1", 0, "alpha text one", 0.9),
		fusedChunk("c2", "src-1", 10, "beta text two", 0.8),
		fusedChunk("c3", "src-1", 20, "gamma text three", 0.7),
		fusedChunk("c4", "src-2", 0, "delta text four", 0.6),
	}

	kept := dedupeFused(fused, dedupeConfig{MaxPerSource: 2})
	if len(kept) != 3 {
		t.Fatalf("expected per-source cap to drop one, got %d", len(kept))
	}
	if kept[2].Chunk.ChunkID != "c4" {
		t.Fatalf("expected other-source chunk kept, got %s", kept[2].Chunk.ChunkID)
	}
}
