package qdrant

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
	"github.com/auditkit/evidence-pipeline/internal/core/ports"
	"github.com/auditkit/evidence-pipeline/internal/infrastructure/resilience"
)

// ResilientRetriever adds retry and circuit breaking around the raw client.
// Dense search has a sparse fallback upstream, so the breaker trips fast
// instead of queueing on a dead qdrant.
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
	err := r.executor.Execute(ctx, "qdrant_search", func(ctx context.Context) error {
		var searchErr error
		hits, searchErr = r.inner.Search(ctx, query, predicate, k)
		return searchErr
	}, classifyQdrantError)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrieverUnavailable, "dense search", err)
	}
	return hits, nil
}

func classifyQdrantError(err error) resilience.ErrorClassification {
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

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if isRetryableHTTPStatus(statusErr.StatusCode) {
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

func isRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
