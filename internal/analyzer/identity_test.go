package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/domain/inventory"
	"github.com/azgovernor/azgovernor/internal/testutil"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestEnterpriseAppsAnalyzer(t *testing.T) {
	expired := time.Now().AddDate(0, 0, -10)
	valid := time.Now().AddDate(0, 6, 0)

	dir := &testutil.MockDirectoryProvider{
		Snapshot: &inventory.DirectorySnapshot{
			ServicePrincipals: []inventory.ServicePrincipal{
				{ID: "sp-1", DisplayName: "healthy-app", OwnerCount: 2, CredentialExpires: timePtr(valid)},
				{ID: "sp-2", DisplayName: "expired-app", OwnerCount: 1, CredentialExpires: timePtr(expired)},
				{ID: "sp-3", DisplayName: "ownerless-app", OwnerCount: 0},
			},
		},
	}

	a := NewEnterpriseAppsAnalyzer(dir)
	result, err := a.Analyze(context.Background(), testutil.Inventory(), defaultOptions())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	// One of three applications is clean.
	if result.Score == nil || *result.Score < 33.3 || *result.Score > 33.4 {
		t.Errorf("Analyze() score = %v, want ~33.3", result.Score)
	}
	if len(result.Findings) != 2 {
		t.Fatalf("Findings = %d, want 2", len(result.Findings))
	}

	severities := map[assessment.Severity]int{}
	for _, f := range result.Findings {
		severities[f.Severity]++
	}
	if severities[assessment.SeverityHigh] != 1 {
		t.Errorf("high findings = %d, want 1 for the expired credential", severities[assessment.SeverityHigh])
	}
	if severities[assessment.SeverityMedium] != 1 {
		t.Errorf("medium findings = %d, want 1 for the missing owner", severities[assessment.SeverityMedium])
	}
}

func TestStaleIdentitiesAnalyzer(t *testing.T) {
	recent := time.Now().AddDate(0, 0, -5)
	old := time.Now().AddDate(0, 0, -200)

	dir := &testutil.MockDirectoryProvider{
		Snapshot: &inventory.DirectorySnapshot{
			Users: []inventory.DirectoryUser{
				{ID: "u-1", UserPrincipal: "active@corp", AccountEnabled: true, LastSignInAt: timePtr(recent)},
				{ID: "u-2", UserPrincipal: "stale@corp", AccountEnabled: true, LastSignInAt: timePtr(old)},
				{ID: "u-3", UserPrincipal: "stale-guest@ext", AccountEnabled: true, IsGuest: true},
				{ID: "u-4", UserPrincipal: "disabled@corp", AccountEnabled: false},
			},
		},
	}

	a := NewStaleIdentitiesAnalyzer(dir)
	result, err := a.Analyze(context.Background(), testutil.Inventory(), defaultOptions())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	// Disabled accounts are skipped; two of four users are stale.
	if result.Metrics["stale_accounts"] != 2 {
		t.Errorf("stale_accounts = %v, want 2", result.Metrics["stale_accounts"])
	}
	if result.Score == nil || *result.Score != 50 {
		t.Errorf("Analyze() score = %v, want 50", result.Score)
	}

	for _, f := range result.Findings {
		want := assessment.SeverityMedium
		if f.ResourceName == "stale-guest@ext" {
			want = assessment.SeverityHigh
		}
		if f.Severity != want {
			t.Errorf("finding for %s severity = %s, want %s", f.ResourceName, f.Severity, want)
		}
	}
}

func TestRBACAnalyzer(t *testing.T) {
	sub := "/subscriptions/00000000-0000-0000-0000-000000000001"

	assignments := []inventory.RoleAssignment{
		{PrincipalID: "p-guest", PrincipalType: "User", RoleName: "Contributor", Scope: sub, IsGuest: true},
	}
	// Four direct subscription owners exceed the default limit of three.
	for i := 0; i < 4; i++ {
		assignments = append(assignments, inventory.RoleAssignment{
			PrincipalID: "p-owner", PrincipalType: "User", RoleName: "Owner", Scope: sub,
		})
	}
	// Owner at a resource group scope does not count toward the limit.
	assignments = append(assignments, inventory.RoleAssignment{
		PrincipalID: "p-rg", PrincipalType: "User", RoleName: "Owner", Scope: sub + "/resourceGroups/rg-app",
	})

	dir := &testutil.MockDirectoryProvider{
		Snapshot: &inventory.DirectorySnapshot{RoleAssignments: assignments},
	}

	a := NewRBACAnalyzer(dir)
	result, err := a.Analyze(context.Background(), testutil.Inventory(), defaultOptions())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	var critical, high int
	for _, f := range result.Findings {
		switch f.Severity {
		case assessment.SeverityCritical:
			critical++
		case assessment.SeverityHigh:
			high++
		}
	}
	if critical != 1 {
		t.Errorf("critical findings = %d, want 1 for the privileged guest", critical)
	}
	if high != 1 {
		t.Errorf("high findings = %d, want 1 for the owner count", high)
	}
}

func TestConditionalAccessAnalyzer(t *testing.T) {
	tests := []struct {
		name         string
		policies     []inventory.ConditionalAccessPolicy
		wantScore    float64
		wantCritical bool
	}{
		{
			name: "mfa enforced for all users",
			policies: []inventory.ConditionalAccessPolicy{
				{ID: "ca-1", DisplayName: "require-mfa", State: "enabled", UserScope: "all", GrantControls: []string{"mfa"}},
			},
			wantScore: 100,
		},
		{
			name:         "no policies at all",
			policies:     nil,
			wantScore:    50,
			wantCritical: true,
		},
		{
			name: "mfa policy parked in report-only",
			policies: []inventory.ConditionalAccessPolicy{
				{ID: "ca-1", DisplayName: "require-mfa", State: "enabledForReportingButNotEnforced", UserScope: "all", GrantControls: []string{"mfa"}},
			},
			wantScore:    0,
			wantCritical: true,
		},
		{
			name: "mfa only for selected users",
			policies: []inventory.ConditionalAccessPolicy{
				{ID: "ca-1", DisplayName: "require-mfa-admins", State: "enabled", UserScope: "selected", GrantControls: []string{"mfa"}},
			},
			wantScore:    50,
			wantCritical: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := &testutil.MockDirectoryProvider{
				Snapshot: &inventory.DirectorySnapshot{
					TenantID:                  "tenant-1",
					ConditionalAccessPolicies: tt.policies,
				},
			}

			a := NewConditionalAccessAnalyzer(dir)
			result, err := a.Analyze(context.Background(), testutil.Inventory(), defaultOptions())
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}

			if result.Score == nil || *result.Score != tt.wantScore {
				t.Errorf("Analyze() score = %v, want %v", result.Score, tt.wantScore)
			}

			critical := false
			for _, f := range result.Findings {
				if f.Severity == assessment.SeverityCritical {
					critical = true
				}
			}
			if critical != tt.wantCritical {
				t.Errorf("critical finding = %v, want %v", critical, tt.wantCritical)
			}
		})
	}
}

func TestIdentityAnalyzers_DirectoryUnavailable(t *testing.T) {
	dir := &testutil.MockDirectoryProvider{FetchError: errors.New("graph timeout")}

	nodes := []Node{
		NewEnterpriseAppsAnalyzer(dir),
		NewStaleIdentitiesAnalyzer(dir),
		NewRBACAnalyzer(dir),
		NewConditionalAccessAnalyzer(dir),
	}

	for _, n := range nodes {
		outcome := Run(context.Background(), n, testutil.Inventory(), defaultOptions())
		if outcome.Err == nil {
			t.Errorf("%s: expected analyzer error when the directory is unavailable", n.Category())
			continue
		}
		if outcome.Err.Category != n.Category() {
			t.Errorf("%s: error category = %s", n.Category(), outcome.Err.Category)
		}
	}
}
