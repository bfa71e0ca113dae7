package neo4j

import (
	"testing"

	"github.com/auditkit/evidence-pipeline/internal/core/domain"
)

func TestBuildScopeClauseRegulatoryOnly(t *testing.T) {
	where, params := buildScopeClause(domain.AccessPredicate{AllowRegulatory: true})
	if where != "node.scope = $regulatory_scope" {
		t.Fatalf("unexpected clause: %q", where)
	}
	if params["regulatory_scope"] != "regulatory_knowledge" {
		t.Fatalf("unexpected params: %v", params)
	}
}

func TestBuildScopeClauseTenantList(t *testing.T) {
	where, params := buildScopeClause(domain.AccessPredicate{
		AllowRegulatory: true,
		AllowTenantDocs: true,
		TenantIDs:       []string{"t1", "t2"},
	})
	want := "node.scope = $regulatory_scope OR (node.scope = $tenant_scope AND node.owner_tenant_id IN $tenant_ids)"
	if where != want {
		t.Fatalf("unexpected clause: %q", where)
	}
	tenants, ok := params["tenant_ids"].([]string)
	if !ok || len(tenants) != 2 {
		t.Fatalf("unexpected tenant params: %v", params)
	}
}

func TestBuildScopeClauseNothingVisible(t *testing.T) {
	where, _ := buildScopeClause(domain.AccessPredicate{})
	if where != "" {
		t.Fatalf("expected empty clause, got %q", where)
	}
}
