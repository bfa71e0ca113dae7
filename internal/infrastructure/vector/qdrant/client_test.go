package qdrant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
	"github.com/auditkit/evidence-pipeline/internal/core/ports"
)

func TestSearchSendsPredicateFilter(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/evidence/points/search" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"result":[
			{"score":0.9,"payload":{"chunk_id":"c1","source_id":"s1","sequence_index":3,"text":"alpha","scope":"regulatory_knowledge","trust_level":"official"}},
			{"score":0.5,"payload":{"chunk_id":"c2","source_id":"s2","sequence_index":0,"text":"beta","scope":"tenant_document","owner_tenant_id":"t1","trust_level":"client_provided"}}
		]}`))
	}))
	defer server.Close()

	retriever := New(server.URL, "evidence")
	predicate := domain.AccessPredicate{
		AllowRegulatory: true,
		AllowTenantDocs: true,
		TenantIDs:       []string{"t1"},
	}

	hits, err := retriever.Search(context.Background(), ports.RetrieverQuery{Embedding: []float32{0.1, 0.2}}, predicate, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Chunk.ChunkID != "c1" || hits[0].Rank != 1 {
		t.Fatalf("expected c1 ranked first, got %s rank %d", hits[0].Chunk.ChunkID, hits[0].Rank)
	}
	if hits[1].Chunk.OwnerTenantID != "t1" {
		t.Fatalf("expected owner tenant parsed, got %q", hits[1].Chunk.OwnerTenantID)
	}

	filter, ok := gotBody["filter"].(map[string]any)
	if !ok {
		t.Fatalf("expected filter in request body, got %v", gotBody)
	}
	should, ok := filter["should"].([]any)
	if !ok || len(should) != 2 {
		t.Fatalf("expected two should groups, got %v", filter)
	}
	if gotBody["limit"].(float64) != 10 {
		t.Fatalf("expected limit 10, got %v", gotBody["limit"])
	}
}

func TestSearchWithoutEmbedding(t *testing.T) {
	retriever := New("http://localhost:6333", "evidence")
	_, err := retriever.Search(context.Background(), ports.RetrieverQuery{Text: "q"}, domain.AccessPredicate{AllowRegulatory: true}, 5)
	if err == nil {
		t.Fatalf("expected error without embedding")
	}
}

func TestSearchEmptyPredicateShortCircuits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer server.Close()

	retriever := New(server.URL, "evidence")
	hits, err := retriever.Search(context.Background(), ports.RetrieverQuery{Embedding: []float32{0.1}}, domain.AccessPredicate{}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(hits))
	}
}

func TestSearchStatusErrorIncludesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection missing", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	retriever := New(server.URL, "evidence")
	_, err := retriever.Search(context.Background(), ports.RetrieverQuery{Embedding: []float32{0.1}}, domain.AccessPredicate{AllowRegulatory: true}, 5)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "collection missing") {
		t.Fatalf("expected body in error, got %v", err)
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected HTTPStatusError with 503, got %v", err)
	}
}

func TestBuildPayloadFilterTenantScoping(t *testing.T) {
	filter := buildPayloadFilter(domain.AccessPredicate{AllowTenantDocs: true, TenantIDs: []string{"t1", "t2"}})
	should := filter["should"].([]map[string]any)
	if len(should) != 1 {
		t.Fatalf("expected one group, got %d", len(should))
	}
	must := should[0]["must"].([]map[string]any)
	if len(must) != 2 {
		t.Fatalf("expected scope and tenant conditions, got %d", len(must))
	}
}

func TestBuildPayloadFilterAllTenants(t *testing.T) {
	filter := buildPayloadFilter(domain.AccessPredicate{AllowTenantDocs: true, AllTenants: true})
	should := filter["should"].([]map[string]any)
	must := should[0]["must"].([]map[string]any)
	if len(must) != 1 {
		t.Fatalf("expected scope-only condition for all tenants, got %d", len(must))
	}
}
