package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
	"github.com/auditkit/evidence-pipeline/internal/core/ports"
	"github.com/auditkit/evidence-pipeline/internal/observability/metrics"
)

type RouterOptions struct {
	// APIKey guards the evidence endpoints when set; empty disables auth.
	APIKey string
	// RateLimitRPS and RateLimitBurst shape per-instance inbound traffic.
	// Role-based quotas are enforced deeper in the pipeline.
	RateLimitRPS   float64
	RateLimitBurst int
	// MaxConcurrent bounds in-flight evidence requests, 0 disables.
	MaxConcurrent  int
	AcquireTimeout time.Duration
}

type Router struct {
	pipeline ports.EvidenceQueryService
	verifier ports.AnswerVerifier
	chunks   ports.ChunkStore
	metrics  *metrics.HTTPServerMetrics
	service  string
	opts     RouterOptions
}

func NewRouter(
	pipeline ports.EvidenceQueryService,
	verifier ports.AnswerVerifier,
	chunks ports.ChunkStore,
	m *metrics.HTTPServerMetrics,
	service string,
	opts RouterOptions,
) *Router {
	return &Router{
		pipeline: pipeline,
		verifier: verifier,
		chunks:   chunks,
		metrics:  m,
		service:  service,
		opts:     opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/evidence/query", rt.authorized(rt.queryEvidence))
	mux.HandleFunc("/v1/answers/verify", rt.authorized(rt.verifyAnswer))
	mux.HandleFunc("/v1/chunks/", rt.authorized(rt.getChunkByID))
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.opts.MaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.opts.MaxConcurrent, rt.opts.AcquireTimeout)
	}
	if rt.opts.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) queryEvidence(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var query domain.EvidenceQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(query.QueryText) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query_text is required"})
		return
	}
	if strings.TrimSpace(query.Requester.UserID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "requester.user_id is required"})
		return
	}

	start := time.Now()
	pack, err := rt.pipeline.Retrieve(r.Context(), query)
	if err != nil {
		rt.recordAccessOutcome(query.Requester.Role, err)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordEvidenceQuery(rt.service, string(query.Requester.Role), len(pack.Items), pack.Degraded, time.Since(start))
		for _, reason := range pack.DegradedReasons {
			rt.metrics.RecordDegradedReason(rt.service, reason)
		}
	}
	writeJSON(w, http.StatusOK, pack)
}

func (rt *Router) verifyAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		AnswerText string               `json:"answer_text"`
		Pack       *domain.EvidencePack `json:"evidence_pack"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.AnswerText) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "answer_text is required"})
		return
	}

	claims, err := rt.verifier.Verify(r.Context(), req.AnswerText, req.Pack)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		for _, claim := range claims {
			rt.metrics.RecordClaimVerdict(rt.service, string(claim.Verdict))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"claims": claims})
}

func (rt *Router) getChunkByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/chunks/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chunk id is required"})
		return
	}

	chunk, err := rt.chunks.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, chunk)
}

func (rt *Router) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rt.opts.APIKey == "" {
			next(w, r)
			return
		}
		if isAuthorizedBearerHeader(r.Header.Get("Authorization"), rt.opts.APIKey) {
			next(w, r)
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
}

func isAuthorizedBearerHeader(headerValue, expectedToken string) bool {
	headerValue = strings.TrimSpace(headerValue)
	if headerValue == "" || expectedToken == "" {
		return false
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(headerValue, bearerPrefix))
	return token == expectedToken
}

func (rt *Router) recordAccessOutcome(role domain.Role, err error) {
	if rt.metrics == nil {
		return
	}
	if domain.IsKind(err, domain.ErrAccessDenied) {
		rt.metrics.RecordAccessDecision(rt.service, string(role), domain.AuditDecisionDenied)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
