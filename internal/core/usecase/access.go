package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
	"github.com/auditkit/evidence-pipeline/internal/core/ports"
)

type AccessConfig struct {
	// RoleKLimits caps how many candidates a role may pull per retriever.
	RoleKLimits map[domain.Role]int
	// RoleRatePerHour throttles evidence queries per requester id.
	RoleRatePerHour map[domain.Role]int
	RateBurst       int
}

func DefaultAccessConfig() AccessConfig {
	return AccessConfig{
		RoleKLimits: map[domain.Role]int{
			domain.RoleAdmin:    20,
			domain.RoleEmployee: 15,
			domain.RoleCustomer: 10,
			domain.RoleGuest:    5,
		},
		RoleRatePerHour: map[domain.Role]int{
			domain.RoleAdmin:    1000,
			domain.RoleEmployee: 500,
			domain.RoleCustomer: 100,
			domain.RoleGuest:    10,
		},
		RateBurst: 10,
	}
}

func (c AccessConfig) normalize() AccessConfig {
	out := c
	def := DefaultAccessConfig()
	if len(out.RoleKLimits) == 0 {
		out.RoleKLimits = def.RoleKLimits
	}
	if len(out.RoleRatePerHour) == 0 {
		out.RoleRatePerHour = def.RoleRatePerHour
	}
	if out.RateBurst <= 0 {
		out.RateBurst = def.RateBurst
	}
	return out
}

// AccessControl translates a requester's role and tenant context into an
// AccessPredicate. Predicate construction itself is pure; the audit record
// goes out through the AuditTrail collaborator and never fails the request.
type AccessControl struct {
	cfg   AccessConfig
	audit ports.AuditTrail

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewAccessControl(cfg AccessConfig, audit ports.AuditTrail) *AccessControl {
	return &AccessControl{
		cfg:      cfg.normalize(),
		audit:    audit,
		limiters: make(map[string]*rate.Limiter),
	}
}

// BuildPredicate evaluates the requester against the role rules:
// admins see every scope and every tenant; employees see regulatory
// knowledge plus their assigned tenants; customers see regulatory knowledge
// plus their own tenant; guests see regulatory knowledge only. Scopes the
// role cannot serve are removed from the predicate; an EXPLICIT request for
// tenant-scoped evidence without any authorized tenant is a denial, and so is
// a request for which no scope remains.
func (a *AccessControl) BuildPredicate(ctx context.Context, query domain.EvidenceQuery) (domain.AccessPredicate, error) {
	req := query.Requester
	role := req.Role
	if role == "" {
		role = domain.RoleGuest
	}

	if !a.allowRate(req.UserID, role) {
		return domain.AccessPredicate{}, a.deny(ctx, req, role, "rate_limited")
	}

	wantRegulatory := query.WantsRegulatory()
	wantTenantDocs := query.WantsTenantDocs()
	explicitTenantDocs := query.IncludeTenantDocs != nil && *query.IncludeTenantDocs
	if !wantRegulatory && !wantTenantDocs {
		return domain.AccessPredicate{}, a.deny(ctx, req, role, "no_scopes_requested")
	}

	pred := domain.AccessPredicate{
		MaxK: a.cfg.RoleKLimits[role],
	}

	switch role {
	case domain.RoleAdmin:
		pred.AllowRegulatory = wantRegulatory
		pred.AllowTenantDocs = wantTenantDocs
		pred.AllTenants = wantTenantDocs
	case domain.RoleEmployee, domain.RoleCustomer:
		pred.AllowRegulatory = wantRegulatory
		if wantTenantDocs {
			if len(req.TenantIDs) > 0 {
				pred.AllowTenantDocs = true
				pred.TenantIDs = append([]string(nil), req.TenantIDs...)
			} else if explicitTenantDocs || !wantRegulatory {
				return domain.AccessPredicate{}, a.deny(ctx, req, role, "no_authorized_tenants")
			}
			// implicit ask without tenants narrows to regulatory knowledge
		}
	case domain.RoleGuest:
		if wantTenantDocs && (explicitTenantDocs || !wantRegulatory) {
			return domain.AccessPredicate{}, a.deny(ctx, req, role, "no_authorized_tenants")
		}
		pred.AllowRegulatory = wantRegulatory
	default:
		return domain.AccessPredicate{}, a.deny(ctx, req, role, "unknown_role")
	}

	a.record(ctx, req, role, domain.AuditDecisionAllowed, "")
	return pred, nil
}

func (a *AccessControl) allowRate(userID string, role domain.Role) bool {
	perHour := a.cfg.RoleRatePerHour[role]
	if perHour <= 0 {
		return true
	}

	a.mu.Lock()
	limiter, ok := a.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), a.cfg.RateBurst)
		a.limiters[userID] = limiter
	}
	a.mu.Unlock()

	return limiter.Allow()
}

func (a *AccessControl) deny(ctx context.Context, req domain.Requester, role domain.Role, reason string) error {
	a.record(ctx, req, role, domain.AuditDecisionDenied, reason)
	return domain.WrapError(domain.ErrAccessDenied, "build access predicate", errors.New(reason))
}

func (a *AccessControl) record(ctx context.Context, req domain.Requester, role domain.Role, decision, reason string) {
	if a.audit == nil {
		return
	}
	record := domain.AuditRecord{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		UserID:    req.UserID,
		Role:      role,
		Action:    domain.AuditActionEvidenceQuery,
		Decision:  decision,
		Reason:    reason,
		TenantIDs: req.TenantIDs,
	}
	if err := a.audit.Record(ctx, record); err != nil {
		slog.Warn("audit_record_failed", "user_id", req.UserID, "decision", decision, "error", err)
	}
}
