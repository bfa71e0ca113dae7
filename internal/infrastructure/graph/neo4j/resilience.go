package neo4j

import (
	"context"
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
	"github.com/auditkit/evidence-pipeline/internal/core/ports"
	"github.com/auditkit/evidence-pipeline/internal/infrastructure/resilience"
)

// ResilientRetriever applies the shared retry and circuit-breaker policy to
// graph search, same contract as the other retrieval backends.
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
	err := r.executor.Execute(ctx, "neo4j_search", func(ctx context.Context) error {
		var searchErr error
		hits, searchErr = r.inner.Search(ctx, query, predicate, k)
		return searchErr
	}, classifyNeo4jError)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieverUnavailable, "graph search", err)
	}
	return hits, nil
}

func classifyNeo4jError(err error) resilience.ErrorClassification {
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
	if neo4j.IsConnectivityError(err) || neo4j.IsRetryable(err) {
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
