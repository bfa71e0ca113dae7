package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
	"github.com/auditkit/evidence-pipeline/internal/core/ports"
)

func newRetrieverWithMock(t *testing.T) (*Retriever, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &Retriever{db: db}, mock, func() { _ = db.Close() }
}

func chunkRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"chunk_id", "source_id", "sequence_index", "chunk_text", "scope",
		"owner_tenant_id", "trust_level", "source_title", "section", "page", "score",
	})
}

func TestSearchScopesTenantsInQuery(t *testing.T) {
	retriever, mock, done := newRetrieverWithMock(t)
	defer done()

	rows := chunkRows().
		AddRow("c1", "s1", 3, "retention policy text", "regulatory_knowledge", nil, "official", "GDPR", "5", 12, 0.8).
		AddRow("c2", "s2", 0, "tenant contract text", "tenant_document", "t1", "client_provided", nil, nil, nil, 0.4)

	mock.ExpectQuery("SELECT chunk_id, source_id, sequence_index").
		WithArgs("retention policy", "regulatory_knowledge", "tenant_document", "t1", 10).
		WillReturnRows(rows)

	predicate := domain.AccessPredicate{
		AllowRegulatory: true,
		AllowTenantDocs: true,
		TenantIDs:       []string{"t1"},
	}
	hits, err := retriever.Search(context.Background(), ports.RetrieverQuery{Text: "retention policy"}, predicate, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Chunk.ChunkID != "c1" || hits[0].Rank != 1 {
		t.Fatalf("expected c1 first by score, got %s rank %d", hits[0].Chunk.ChunkID, hits[0].Rank)
	}
	if hits[1].Chunk.OwnerTenantID != "t1" {
		t.Fatalf("expected tenant owner scanned, got %q", hits[1].Chunk.OwnerTenantID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchEmptyPredicateShortCircuits(t *testing.T) {
	retriever, mock, done := newRetrieverWithMock(t)
	defer done()

	hits, err := retriever.Search(context.Background(), ports.RetrieverQuery{Text: "anything"}, domain.AccessPredicate{}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if hits != nil {
		t.Fatalf("expected no hits without visible scopes, got %v", hits)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchBlankQuery(t *testing.T) {
	retriever, _, done := newRetrieverWithMock(t)
	defer done()

	hits, err := retriever.Search(context.Background(), ports.RetrieverQuery{Text: "   "}, domain.AccessPredicate{AllowRegulatory: true}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if hits != nil {
		t.Fatalf("expected no hits for blank query, got %v", hits)
	}
}

func TestSearchQueryErrorSurfaces(t *testing.T) {
	retriever, mock, done := newRetrieverWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT chunk_id, source_id, sequence_index").
		WillReturnError(errors.New("connection refused"))

	_, err := retriever.Search(context.Background(), ports.RetrieverQuery{Text: "q"}, domain.AccessPredicate{AllowRegulatory: true}, 5)
	if err == nil {
		t.Fatalf("expected query error surfaced")
	}
}

func TestBuildAccessWhereAllTenants(t *testing.T) {
	where, args := buildAccessWhere(domain.AccessPredicate{AllowRegulatory: true, AllowTenantDocs: true, AllTenants: true}, 2)
	if where != "scope = $2 OR scope = $3" {
		t.Fatalf("unexpected where clause: %q", where)
	}
	if len(args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(args))
	}
}

func TestBuildAccessWhereTenantList(t *testing.T) {
	where, args := buildAccessWhere(domain.AccessPredicate{AllowTenantDocs: true, TenantIDs: []string{"t1", "t2"}}, 2)
	if where != "(scope = $2 AND owner_tenant_id IN ($3,$4))" {
		t.Fatalf("unexpected where clause: %q", where)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
}
