package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
	"github.com/auditkit/evidence-pipeline/internal/core/ports"
	"github.com/auditkit/evidence-pipeline/internal/infrastructure/resilience"
)

// ResilientRetriever gives lexical search the same retry and circuit-breaker
// treatment as the dense backend. Connection-level failures are retried;
// query-shaped errors are not, they would fail identically on every attempt.
type ResilientRetriever struct {
	inner    *Retriever
	executor *resilience.Executor
}

func NewResilientRetriever(inner *Retriever, executor *resilience.Executor) *ResilientRetriever {
	return &ResilientRetriever{inner: inner, executor: executor}
}

func (r *ResilientRetriever) Name() string { return r.inner.Name() }

func (r *ResilientRetriever) Search(
	ctx context.Context,
	query ports.RetrieverQuery,
	predicate domain.AccessPredicate,
	k int,
) ([]domain.RetrievalHit, error) {
	var hits []domain.RetrievalHit
	err := r.executor.Execute(ctx, "postgres_fts_search", func(ctx context.Context) error {
		var searchErr error
		hits, searchErr = r.inner.Search(ctx, query, predicate, k)
		return searchErr
	}, classifyPostgresError)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieverUnavailable, "sparse search", err)
	}
	return hits, nil
}

func classifyPostgresError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: true,
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// SQLSTATE class 08 is a connection exception, 57P* is the server
		// shutting down or being killed. Everything else the server answered
		// deliberately, so retrying cannot help.
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P") {
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
			}
		}
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, io.EOF) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}
