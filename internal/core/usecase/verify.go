package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
)

var errEmptyAnswer = errors.New("empty answer text")

// ClaimSplitter cuts an answer into individually checkable claims with the
// evidence ids each claim cites.
type ClaimSplitter interface {
	Split(answer string) []domain.Claim
}

// EntailmentChecker judges how strongly one evidence text supports a claim,
// returning a score in [0, 1].
type EntailmentChecker interface {
	Support(ctx context.Context, claim, evidence string) (float64, error)
}

var citationMarkerRe = regexp.MustCompile(`\[([A-Za-z0-9_:.-]+)\]`)

// markerClaimSplitter splits on sentence boundaries and reads inline
// [chunk-id] citation markers. A sentence with no marker carries no
// citations and cannot be grounded.
type markerClaimSplitter struct{}

func (markerClaimSplitter) Split(answer string) []domain.Claim {
	sentences := splitSentences(answer)
	claims := make([]domain.Claim, 0, len(sentences))
	for _, sentence := range sentences {
		trimmed := strings.TrimSpace(sentence)
		if trimmed == "" {
			continue
		}
		var cited []string
		for _, match := range citationMarkerRe.FindAllStringSubmatch(trimmed, -1) {
			cited = append(cited, match[1])
		}
		claims = append(claims, domain.Claim{
			TextSpan:         citationMarkerRe.ReplaceAllString(trimmed, ""),
			CitedEvidenceIDs: cited,
		})
	}
	return claims
}

func splitSentences(s string) []string {
	var out []string
	var b strings.Builder
	for _, r := range s {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// lexicalEntailmentChecker approximates entailment with token coverage: the
// fraction of claim tokens that appear in the evidence text. Crude but
// deterministic, and it needs no model on the hot path.
type lexicalEntailmentChecker struct{}

func (lexicalEntailmentChecker) Support(_ context.Context, claim, evidence string) (float64, error) {
	return tokenCoverage(tokenSet(claim), tokenSet(evidence)), nil
}

// GroundingVerifier checks each answer claim against the evidence pack it was
// generated from and assigns a verdict. A cited id missing from the pack is a
// broken citation and makes the claim unsupported regardless of text overlap.
// A claim with no citation at all is unsupported too: the whole pack is still
// scanned so SupportingIDs can suggest where a citation should have pointed,
// but support without a citation never upgrades the verdict.
type GroundingVerifier struct {
	splitter         ClaimSplitter
	checker          EntailmentChecker
	supportThreshold float64
	partialThreshold float64
}

func NewGroundingVerifier(splitter ClaimSplitter, checker EntailmentChecker) *GroundingVerifier {
	if splitter == nil {
		splitter = markerClaimSplitter{}
	}
	if checker == nil {
		checker = lexicalEntailmentChecker{}
	}
	return &GroundingVerifier{
		splitter:         splitter,
		checker:          checker,
		supportThreshold: 0.5,
		partialThreshold: 0.2,
	}
}

func (v *GroundingVerifier) Verify(ctx context.Context, answerText string, pack *domain.EvidencePack) ([]domain.Claim, error) {
	if strings.TrimSpace(answerText) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "verify answer", errEmptyAnswer)
	}

	claims := v.splitter.Split(answerText)
	for i := range claims {
		if err := v.verdict(ctx, &claims[i], pack); err != nil {
			return nil, err
		}
	}
	return claims, nil
}

func (v *GroundingVerifier) verdict(ctx context.Context, claim *domain.Claim, pack *domain.EvidencePack) error {
	candidates, brokenCitation := v.candidateItems(claim, pack)
	if brokenCitation {
		claim.Verdict = domain.VerdictUnsupported
		return nil
	}

	best := 0.0
	for _, item := range candidates {
		score, err := v.checker.Support(ctx, claim.TextSpan, item.Chunk.Text)
		if err != nil {
			return domain.WrapError(domain.ErrTemporary, "check entailment", err)
		}
		if score >= v.partialThreshold {
			claim.SupportingIDs = append(claim.SupportingIDs, item.Chunk.ChunkID)
		}
		if score > best {
			best = score
		}
	}

	if len(claim.CitedEvidenceIDs) == 0 {
		claim.Verdict = domain.VerdictUnsupported
		return nil
	}

	switch {
	case best >= v.supportThreshold:
		claim.Verdict = domain.VerdictSupported
	case best >= v.partialThreshold:
		claim.Verdict = domain.VerdictPartiallySupported
	default:
		claim.Verdict = domain.VerdictUnsupported
	}
	return nil
}

// candidateItems resolves the evidence a claim should be checked against:
// the cited items when citations are present, the whole pack otherwise (for
// SupportingIDs only). The second return reports a citation pointing outside
// the pack.
func (v *GroundingVerifier) candidateItems(claim *domain.Claim, pack *domain.EvidencePack) ([]*domain.EvidenceItem, bool) {
	if len(claim.CitedEvidenceIDs) == 0 {
		if pack == nil {
			return nil, false
		}
		items := make([]*domain.EvidenceItem, 0, len(pack.Items))
		for i := range pack.Items {
			items = append(items, &pack.Items[i])
		}
		return items, false
	}

	items := make([]*domain.EvidenceItem, 0, len(claim.CitedEvidenceIDs))
	for _, id := range claim.CitedEvidenceIDs {
		item := pack.FindItem(id)
		if item == nil {
			return nil, true
		}
		items = append(items, item)
	}
	return items, false
}
