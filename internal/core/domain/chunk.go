package domain

type Scope string

const (
	ScopeRegulatory     Scope = "regulatory_knowledge"
	ScopeTenantDocument Scope = "tenant_document"
)

type TrustLevel string

const (
	TrustOfficial       TrustLevel = "official"
	TrustClientProvided TrustLevel = "client_provided"
	TrustUnknown        TrustLevel = "unknown"
)

// Weight orders trust levels for tie-breaking: official > client_provided > unknown.
func (t TrustLevel) Weight() int {
	switch t {
	case TrustOfficial:
		return 2
	case TrustClientProvided:
		return 1
	default:
		return 0
	}
}

// EvidenceChunk is the atomic retrievable unit. OwnerTenantID is empty
// exactly when Scope is ScopeRegulatory.
type EvidenceChunk struct {
	ChunkID       string     `json:"chunk_id"`
	SourceID      string     `json:"source_id"`
	SequenceIndex int        `json:"sequence_index"`
	Text          string     `json:"text"`
	Scope         Scope      `json:"scope"`
	OwnerTenantID string     `json:"owner_tenant_id,omitempty"`
	TrustLevel    TrustLevel `json:"trust_level"`
	SourceTitle   string     `json:"source_title,omitempty"`
	Section       string     `json:"section,omitempty"`
	Page          int        `json:"page,omitempty"`
}

// RetrievalHit is one retriever's result for one chunk. Rank is 1-based
// within that retriever's list. Discarded after fusion.
type RetrievalHit struct {
	Chunk    EvidenceChunk
	Rank     int
	RawScore float64
}

// FusedResult carries the RRF score plus the contributing per-retriever
// ranks, kept for explainability and tests.
type FusedResult struct {
	Chunk       EvidenceChunk
	FusedScore  float64
	SourceRanks map[string]int
}

// BestRank returns the best (lowest) rank any retriever assigned, or 0
// when no ranks contributed.
func (f FusedResult) BestRank() int {
	best := 0
	for _, rank := range f.SourceRanks {
		if best == 0 || rank < best {
			best = rank
		}
	}
	return best
}

// EvidenceItem is the final unit entering prompt assembly. Request-local,
// never persisted.
type EvidenceItem struct {
	Chunk            EvidenceChunk   `json:"chunk"`
	NeighborChunkIDs []string        `json:"neighbor_chunk_ids,omitempty"`
	Neighbors        []EvidenceChunk `json:"neighbors,omitempty"`
	Citation         string          `json:"citation"`
	TrustLevel       TrustLevel      `json:"trust_level"`
	RelevanceScore   float64         `json:"relevance_score"`
}

// EvidencePack is the pipeline's outbound result. DegradedReasons
// enumerates every non-fatal failure that occurred on the way.
type EvidencePack struct {
	Items           []EvidenceItem `json:"evidence_items"`
	Degraded        bool           `json:"degraded"`
	DegradedReasons []string       `json:"degraded_reasons,omitempty"`
}

// FindItem returns the pack item for a chunk id, or nil.
func (p *EvidencePack) FindItem(chunkID string) *EvidenceItem {
	if p == nil {
		return nil
	}
	for i := range p.Items {
		if p.Items[i].Chunk.ChunkID == chunkID {
			return &p.Items[i]
		}
	}
	return nil
}
