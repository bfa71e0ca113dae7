package neo4j

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
)

func TestClassifyNeo4jError(t *testing.T) {
	cases := []struct {
		name          string
		err           error
		retryable     bool
		recordFailure bool
	}{
		{"context canceled", context.Canceled, false, false},
		{"deadline exceeded", context.DeadlineExceeded, false, false},
		{"circuit open", gobreaker.ErrOpenState, false, true},
		{"unknown error", errors.New("boom"), false, true},
	}
	for _, tc := range cases {
		class := classifyNeo4jError(tc.err)
		if class.Retryable != tc.retryable || class.RecordFailure != tc.recordFailure {
			t.Fatalf("%s: got %+v, want retryable=%v record=%v", tc.name, class, tc.retryable, tc.recordFailure)
		}
	}
}
