package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
	"github.com/auditkit/evidence-pipeline/internal/core/ports"
)

// formatCitation renders the stable citation string downstream prompts and
// verification markers rely on. Section and page are appended only when the
// chunk carries them.
func formatCitation(c domain.EvidenceChunk) string {
	citation := fmt.Sprintf("scope=%s source=%s chunk=%d", c.Scope, c.SourceID, c.SequenceIndex)
	if c.Section != "" {
		citation += " section=" + c.Section
	}
	if c.Page > 0 {
		citation += fmt.Sprintf(" page=%d", c.Page)
	}
	return citation
}

// assembleEvidence turns reranked candidates into the final pack items:
// citation, trust level, and adjacent-chunk context. Neighbor lookups run in
// parallel and are strictly best-effort; a store failure degrades the item to
// no neighbors, it never drops the item. Input order is preserved.
func assembleEvidence(ctx context.Context, store ports.ChunkStore, ranked []rankedEvidence) []domain.EvidenceItem {
	items := make([]domain.EvidenceItem, len(ranked))
	for i := range ranked {
		items[i] = domain.EvidenceItem{
			Chunk:          ranked[i].Chunk,
			Citation:       formatCitation(ranked[i].Chunk),
			TrustLevel:     ranked[i].Chunk.TrustLevel,
			RelevanceScore: ranked[i].Relevance,
		}
	}
	if store == nil {
		return items
	}

	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(item *domain.EvidenceItem) {
			defer wg.Done()
			neighbors, err := store.Neighbors(ctx, item.Chunk.SourceID, item.Chunk.SequenceIndex)
			if err != nil {
				slog.Debug("neighbor_fetch_failed",
					"chunk_id", item.Chunk.ChunkID,
					"source_id", item.Chunk.SourceID,
					"error", err,
				)
				return
			}
			for _, neighbor := range neighbors {
				if neighbor.ChunkID == item.Chunk.ChunkID {
					continue
				}
				item.Neighbors = append(item.Neighbors, neighbor)
				item.NeighborChunkIDs = append(item.NeighborChunkIDs, neighbor.ChunkID)
			}
		}(&items[i])
	}
	wg.Wait()

	return items
}
