package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*ChunkRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ChunkRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT chunk_id, source_id, sequence_index").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrChunkNotFound) {
		t.Fatalf("expected ErrChunkNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansChunk(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{
		"chunk_id", "source_id", "sequence_index", "chunk_text", "scope",
		"owner_tenant_id", "trust_level", "source_title", "section", "page",
	}).AddRow("c1", "s1", 4, "retention text", "tenant_document", "t1", "client_provided", "Contract 44", "5.2", 14)

	mock.ExpectQuery("SELECT chunk_id, source_id, sequence_index").
		WithArgs("c1").
		WillReturnRows(rows)

	chunk, err := repo.GetByID(context.Background(), "c1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if chunk.Scope != domain.ScopeTenantDocument || chunk.OwnerTenantID != "t1" {
		t.Fatalf("unexpected chunk: %+v", chunk)
	}
	if chunk.TrustLevel != domain.TrustClientProvided {
		t.Fatalf("expected trust level scanned, got %s", chunk.TrustLevel)
	}
}

func TestNeighborsQueriesAdjacentPositions(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{
		"chunk_id", "source_id", "sequence_index", "chunk_text", "scope",
		"owner_tenant_id", "trust_level", "source_title", "section", "page",
	}).
		AddRow("c3", "s1", 3, "before", "regulatory_knowledge", nil, "official", nil, nil, nil).
		AddRow("c5", "s1", 5, "after", "regulatory_knowledge", nil, "official", nil, nil, nil)

	mock.ExpectQuery("SELECT chunk_id, source_id, sequence_index").
		WithArgs("s1", 3, 5).
		WillReturnRows(rows)

	neighbors, err := repo.Neighbors(context.Background(), "s1", 4)
	if err != nil {
		t.Fatalf("Neighbors() error = %v", err)
	}
	if len(neighbors) != 2 {
		t.Fatalf("expected 2 neighbors, got %d", len(neighbors))
	}
	if neighbors[0].ChunkID != "c3" || neighbors[1].ChunkID != "c5" {
		t.Fatalf("expected sequence order, got %+v", neighbors)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
