package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
	"github.com/auditkit/evidence-pipeline/internal/core/ports"
)

// Retriever searches the dense-vector index over the qdrant REST API. The
// access predicate becomes a payload filter evaluated server-side, so
// disallowed chunks never travel over the wire.
type Retriever struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

func New(baseURL, collection string) *Retriever {
	return &Retriever{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *Retriever) Name() string { return "dense" }

func (r *Retriever) Search(
	ctx context.Context,
	query ports.RetrieverQuery,
	predicate domain.AccessPredicate,
	k int,
) ([]domain.RetrievalHit, error) {
	if len(query.Embedding) == 0 {
		return nil, fmt.Errorf("dense search without embedding")
	}

	filter := buildPayloadFilter(predicate)
	if filter == nil {
		// predicate allows no scope at all
		return nil, nil
	}

	reqBody := map[string]any{
		"vector":       query.Embedding,
		"limit":        k,
		"with_payload": true,
		"filter":       filter,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", r.baseURL, r.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, newHTTPStatusError("search", resp)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]domain.RetrievalHit, 0, len(searchResp.Result))
	for _, result := range searchResp.Result {
		chunk := chunkFromPayload(result.Payload)
		if chunk.ChunkID == "" {
			continue
		}
		hits = append(hits, domain.RetrievalHit{Chunk: chunk, RawScore: result.Score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].RawScore != hits[j].RawScore {
			return hits[i].RawScore > hits[j].RawScore
		}
		return hits[i].Chunk.ChunkID < hits[j].Chunk.ChunkID
	})
	for i := range hits {
		hits[i].Rank = i + 1
	}
	return hits, nil
}

// buildPayloadFilter renders the predicate as a qdrant filter: a should-list
// of per-scope must-groups. Returns nil when no scope is allowed.
func buildPayloadFilter(predicate domain.AccessPredicate) map[string]any {
	var groups []map[string]any

	if predicate.AllowRegulatory {
		groups = append(groups, map[string]any{
			"must": []map[string]any{
				{"key": "scope", "match": map[string]any{"value": string(domain.ScopeRegulatory)}},
			},
		})
	}

	if predicate.AllowTenantDocs {
		must := []map[string]any{
			{"key": "scope", "match": map[string]any{"value": string(domain.ScopeTenantDocument)}},
		}
		if !predicate.AllTenants {
			if len(predicate.TenantIDs) == 0 {
				return scopeFilterOrNil(groups)
			}
			must = append(must, map[string]any{
				"key":   "owner_tenant_id",
				"match": map[string]any{"any": predicate.TenantIDs},
			})
		}
		groups = append(groups, map[string]any{"must": must})
	}

	return scopeFilterOrNil(groups)
}

func scopeFilterOrNil(groups []map[string]any) map[string]any {
	if len(groups) == 0 {
		return nil
	}
	return map[string]any{"should": groups}
}

func chunkFromPayload(payload map[string]any) domain.EvidenceChunk {
	return domain.EvidenceChunk{
		ChunkID:       payloadString(payload, "chunk_id"),
		SourceID:      payloadString(payload, "source_id"),
		SequenceIndex: payloadInt(payload, "sequence_index"),
		Text:          payloadString(payload, "text"),
		Scope:         domain.Scope(payloadString(payload, "scope")),
		OwnerTenantID: payloadString(payload, "owner_tenant_id"),
		TrustLevel:    domain.TrustLevel(payloadString(payload, "trust_level")),
		SourceTitle:   payloadString(payload, "source_title"),
		Section:       payloadString(payload, "section"),
		Page:          payloadInt(payload, "page"),
	}
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func payloadInt(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "qdrant status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func newHTTPStatusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &HTTPStatusError{
		Operation:  operation,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}
}
