package domain

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
	RoleCustomer Role = "customer"
	RoleGuest    Role = "guest"
)

// Requester is the access-control context attached to every evidence query.
// TenantIDs lists the tenants the requester is authorized for.
type Requester struct {
	UserID    string   `json:"user_id"`
	Role      Role     `json:"role"`
	TenantIDs []string `json:"tenant_ids,omitempty"`
}

// AccessPredicate restricts which chunks are visible to a request. It is a
// pure value; retrievers apply it as a hard filter, never as a ranking hint.
type AccessPredicate struct {
	AllowRegulatory bool
	AllowTenantDocs bool
	AllTenants      bool
	TenantIDs       []string
	MaxK            int
}

// Allows reports whether a chunk with the given scope and owning tenant is
// visible under the predicate.
func (p AccessPredicate) Allows(scope Scope, ownerTenantID string) bool {
	switch scope {
	case ScopeRegulatory:
		return p.AllowRegulatory
	case ScopeTenantDocument:
		if !p.AllowTenantDocs {
			return false
		}
		if p.AllTenants {
			return true
		}
		for _, id := range p.TenantIDs {
			if id == ownerTenantID {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// AuditRecord captures an access decision or a pipeline degradation for the
// external audit trail.
type AuditRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Action    string    `json:"action"`
	Decision  string    `json:"decision"`
	Reason    string    `json:"reason,omitempty"`
	TenantIDs []string  `json:"tenant_ids,omitempty"`
}

const (
	AuditActionEvidenceQuery = "evidence_query"
	AuditDecisionAllowed     = "allowed"
	AuditDecisionDenied      = "denied"
	AuditDecisionDegraded    = "degraded"
)
