package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
)

type chunkStoreFake struct {
	neighbors map[string][]domain.EvidenceChunk
	err       error
}

func (f *chunkStoreFake) GetByID(_ context.Context, chunkID string) (*domain.EvidenceChunk, error) {
	return nil, domain.ErrChunkNotFound
}

func (f *chunkStoreFake) Neighbors(_ context.Context, sourceID string, _ int) ([]domain.EvidenceChunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.neighbors[sourceID], nil
}

func TestFormatCitation(t *testing.T) {
	chunk := domain.EvidenceChunk{
		SourceID:      "gdpr-2016",
		SequenceIndex: 17,
		Scope:         domain.ScopeRegulatory,
	}
	got := formatCitation(chunk)
	want := "scope=regulatory_knowledge source=gdpr-2016 chunk=17"
	if got != want {
		t.Fatalf("expected citation %q, got %q", want, got)
	}
}

func TestFormatCitationWithSectionAndPage(t *testing.T) {
	chunk := domain.EvidenceChunk{
		SourceID:      "contract-44",
		SequenceIndex: 2,
		Scope:         domain.ScopeTenantDocument,
		Section:       "5.2",
		Page:          14,
	}
	got := formatCitation(chunk)
	want := "scope=tenant_document source=contract-44 chunk=2 section=5.2 page=14"
	if got != want {
		t.Fatalf("expected citation %q, got %q", want, got)
	}
}

func TestAssembleEvidenceAttachesNeighbors(t *testing.T) {
	store := &chunkStoreFake{neighbors: map[string][]domain.EvidenceChunk{
		"src-1": {
			{ChunkID: "n-prev", SourceID: "src-1", SequenceIndex: 3},
			{ChunkID: "c1", SourceID: "src-1", SequenceIndex: 4},
			{ChunkID: "n-next", SourceID: "src-1", SequenceIndex: 5},
		},
	}}
	ranked := []rankedEvidence{{
		Chunk:     domain.EvidenceChunk{ChunkID: "c1", SourceID: "src-1", SequenceIndex: 4, TrustLevel: domain.TrustOfficial},
		Relevance: 0.8,
	}}

	items := assembleEvidence(context.Background(), store, ranked)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if len(items[0].Neighbors) != 2 {
		t.Fatalf("expected 2 neighbors excluding the chunk itself, got %d", len(items[0].Neighbors))
	}
	if items[0].TrustLevel != domain.TrustOfficial {
		t.Fatalf("expected trust level carried, got %s", items[0].TrustLevel)
	}
	if items[0].RelevanceScore != 0.8 {
		t.Fatalf("expected relevance carried, got %v", items[0].RelevanceScore)
	}
}

func TestAssembleEvidenceNeighborFailureKeepsItem(t *testing.T) {
	store := &chunkStoreFake{err: errors.New("store down")}
	ranked := []rankedEvidence{{
		Chunk: domain.EvidenceChunk{ChunkID: "c1", SourceID: "src-1", SequenceIndex: 0},
	}}

	items := assembleEvidence(context.Background(), store, ranked)
	if len(items) != 1 {
		t.Fatalf("expected item kept on neighbor failure, got %d items", len(items))
	}
	if len(items[0].Neighbors) != 0 {
		t.Fatalf("expected no neighbors, got %d", len(items[0].Neighbors))
	}
	if items[0].Citation == "" {
		t.Fatalf("expected citation present")
	}
}

func TestAssembleEvidencePreservesOrder(t *testing.T) {
	store := &chunkStoreFake{}
	ranked := []rankedEvidence{
		{Chunk: domain.EvidenceChunk{ChunkID: "c1", SourceID: "s1"}, Relevance: 0.9},
		{Chunk: domain.EvidenceChunk{ChunkID: "c2", SourceID: "s2"}, Relevance: 0.5},
		{Chunk: domain.EvidenceChunk{ChunkID: "c3", SourceID: "s3"}, Relevance: 0.1},
	}

	items := assembleEvidence(context.Background(), store, ranked)
	for i, want := range []string{"c1", "c2", "c3"} {
		if items[i].Chunk.ChunkID != want {
			t.Fatalf("expected %s at position %d, got %s", want, i, items[i].Chunk.ChunkID)
		}
	}
}
