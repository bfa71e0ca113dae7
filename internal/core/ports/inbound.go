package ports

import (
	"context"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
)

// EvidenceQueryService is the inbound contract for the retrieval pipeline:
// routed query plus access context in, ranked evidence pack out.
type EvidenceQueryService interface {
	Retrieve(ctx context.Context, query domain.EvidenceQuery) (*domain.EvidencePack, error)
}

// AnswerVerifier is the inbound contract for the post-generation grounding
// check. It reports per-claim verdicts; acting on them is the caller's job.
type AnswerVerifier interface {
	Verify(ctx context.Context, answerText string, pack *domain.EvidencePack) ([]domain.Claim, error)
}
