package domain

// EvidenceQuery is the inbound contract from the query router. The embedding
// is optional; when absent the pipeline embeds QueryText itself.
type EvidenceQuery struct {
	QueryText         string    `json:"query_text"`
	QueryEmbedding    []float32 `json:"query_embedding,omitempty"`
	Requester         Requester `json:"requester"`
	KDense            int       `json:"k_dense,omitempty"`
	KSparse           int       `json:"k_sparse,omitempty"`
	IncludeRegulatory *bool     `json:"include_regulatory,omitempty"`
	IncludeTenantDocs *bool     `json:"include_tenant_docs,omitempty"`
}

// WantsRegulatory defaults to true when the router did not say otherwise.
func (q EvidenceQuery) WantsRegulatory() bool {
	return q.IncludeRegulatory == nil || *q.IncludeRegulatory
}

func (q EvidenceQuery) WantsTenantDocs() bool {
	return q.IncludeTenantDocs == nil || *q.IncludeTenantDocs
}
