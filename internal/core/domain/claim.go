package domain

type Verdict string

const (
	VerdictSupported          Verdict = "supported"
	VerdictPartiallySupported Verdict = "partially_supported"
	VerdictUnsupported        Verdict = "unsupported"
)

// Claim is one factual assertion extracted from a generated answer.
// CitedEvidenceIDs are the chunk ids the generator declared; SupportingIDs
// are the subset that actually backs the claim after checking.
type Claim struct {
	TextSpan         string   `json:"text_span"`
	CitedEvidenceIDs []string `json:"cited_evidence_ids,omitempty"`
	SupportingIDs    []string `json:"supporting_ids,omitempty"`
	Verdict          Verdict  `json:"verdict"`
}
