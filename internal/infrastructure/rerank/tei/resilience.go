package tei

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
	"github.com/auditkit/evidence-pipeline/internal/infrastructure/resilience"
)

// ResilientClient wraps the rerank client with retry and circuit breaking.
// The pipeline falls back to fused order when this errors, so the breaker
// keeps a flapping reranker from adding latency to every request.
type ResilientClient struct {
	inner    *Client
	executor *resilience.Executor
}

func NewResilientClient(inner *Client, executor *resilience.Executor) *ResilientClient {
	return &ResilientClient{inner: inner, executor: executor}
}

func (c *ResilientClient) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	var scores []float64
	err := c.executor.Execute(ctx, "tei_rerank", func(ctx context.Context) error {
		var scoreErr error
		scores, scoreErr = c.inner.Score(ctx, query, texts)
		return scoreErr
	}, classifyRerankError)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRerankerUnavailable, "rerank", err)
	}
	return scores, nil
}

func classifyRerankError(err error) resilience.ErrorClassification {
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
