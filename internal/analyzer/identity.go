package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/domain/inventory"
)

// The identity analyzers evaluate directory objects rather than ARM
// resources. They share a DirectoryProvider; a fetch failure is reported as
// an analyzer error and handled by the caller like any other unavailable
// category.

// privilegedRoles are the role names whose assignment to a guest account is
// treated as critical.
var privilegedRoles = map[string]bool{
	"Owner":                     true,
	"Contributor":               true,
	"User Access Administrator": true,
}

// EnterpriseAppsAnalyzer flags enterprise applications (service principals)
// with expired credentials or no assigned owner.
type EnterpriseAppsAnalyzer struct {
	directory inventory.DirectoryProvider
}

func NewEnterpriseAppsAnalyzer(directory inventory.DirectoryProvider) *EnterpriseAppsAnalyzer {
	return &EnterpriseAppsAnalyzer{directory: directory}
}

func (a *EnterpriseAppsAnalyzer) Category() assessment.Category {
	return assessment.CategoryEnterpriseApps
}

func (a *EnterpriseAppsAnalyzer) Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts Options) (*assessment.CategoryResult, error) {
	snap, err := a.directory.FetchDirectory(ctx)
	if err != nil {
		return nil, NewError(a.Category(), err)
	}

	result := &assessment.CategoryResult{
		Category:       a.Category(),
		TotalResources: len(snap.ServicePrincipals),
		Metrics:        map[string]float64{},
	}
	if len(snap.ServicePrincipals) == 0 {
		return result, nil
	}

	now := time.Now()
	flagged := 0
	for _, sp := range snap.ServicePrincipals {
		clean := true
		if sp.CredentialExpires != nil && sp.CredentialExpires.Before(now) {
			clean = false
			result.Findings = append(result.Findings, assessment.Finding{
				Category:        a.Category(),
				ResourceID:      sp.ID,
				ResourceName:    sp.DisplayName,
				ResourceType:    "AzureAD/servicePrincipal",
				Severity:        assessment.SeverityHigh,
				Issue:           "Enterprise application has an expired credential",
				Recommendation:  "Rotate or remove the expired credential; disable the application if it is no longer used",
				EstimatedEffort: "low",
			})
		}
		if sp.OwnerCount == 0 {
			clean = false
			result.Findings = append(result.Findings, assessment.Finding{
				Category:        a.Category(),
				ResourceID:      sp.ID,
				ResourceName:    sp.DisplayName,
				ResourceType:    "AzureAD/servicePrincipal",
				Severity:        assessment.SeverityMedium,
				Issue:           "Enterprise application has no assigned owner",
				Recommendation:  "Assign at least one owner so the application has an accountable contact",
				EstimatedEffort: "low",
			})
		}
		if !clean {
			flagged++
		}
	}

	result.Score = ScoreOf(float64(len(snap.ServicePrincipals)-flagged) / float64(len(snap.ServicePrincipals)) * 100)
	result.Metrics["flagged_applications"] = float64(flagged)
	return result, nil
}

// StaleIdentitiesAnalyzer flags enabled accounts that have not signed in
// within the configured inactivity window.
type StaleIdentitiesAnalyzer struct {
	directory inventory.DirectoryProvider
}

func NewStaleIdentitiesAnalyzer(directory inventory.DirectoryProvider) *StaleIdentitiesAnalyzer {
	return &StaleIdentitiesAnalyzer{directory: directory}
}

func (a *StaleIdentitiesAnalyzer) Category() assessment.Category {
	return assessment.CategoryStaleIdentities
}

func (a *StaleIdentitiesAnalyzer) Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts Options) (*assessment.CategoryResult, error) {
	snap, err := a.directory.FetchDirectory(ctx)
	if err != nil {
		return nil, NewError(a.Category(), err)
	}

	result := &assessment.CategoryResult{
		Category:       a.Category(),
		TotalResources: len(snap.Users),
		Metrics:        map[string]float64{},
	}
	if len(snap.Users) == 0 {
		return result, nil
	}

	cutoff := time.Now().AddDate(0, 0, -opts.Config.StaleIdentityDays)
	stale := 0
	for _, u := range snap.Users {
		if !u.AccountEnabled {
			continue
		}
		if u.LastSignInAt != nil && u.LastSignInAt.After(cutoff) {
			continue
		}
		stale++
		severity := assessment.SeverityMedium
		if u.IsGuest {
			severity = assessment.SeverityHigh
		}
		result.Findings = append(result.Findings, assessment.Finding{
			Category:        a.Category(),
			ResourceID:      u.ID,
			ResourceName:    u.UserPrincipal,
			ResourceType:    "AzureAD/user",
			Severity:        severity,
			Issue:           fmt.Sprintf("Account has not signed in within the last %d days", opts.Config.StaleIdentityDays),
			Recommendation:  "Disable or remove the account if it is no longer needed",
			EstimatedEffort: "low",
		})
	}

	result.Score = ScoreOf(float64(len(snap.Users)-stale) / float64(len(snap.Users)) * 100)
	result.Metrics["stale_accounts"] = float64(stale)
	return result, nil
}

// RBACAnalyzer checks role assignments for excessive subscription owners and
// guests holding privileged roles.
type RBACAnalyzer struct {
	directory inventory.DirectoryProvider
}

func NewRBACAnalyzer(directory inventory.DirectoryProvider) *RBACAnalyzer {
	return &RBACAnalyzer{directory: directory}
}

func (a *RBACAnalyzer) Category() assessment.Category {
	return assessment.CategoryRBAC
}

func (a *RBACAnalyzer) Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts Options) (*assessment.CategoryResult, error) {
	snap, err := a.directory.FetchDirectory(ctx)
	if err != nil {
		return nil, NewError(a.Category(), err)
	}

	result := &assessment.CategoryResult{
		Category:       a.Category(),
		TotalResources: len(snap.RoleAssignments),
		Metrics:        map[string]float64{},
	}
	if len(snap.RoleAssignments) == 0 {
		return result, nil
	}

	flagged := 0
	ownersByScope := map[string]int{}
	for _, ra := range snap.RoleAssignments {
		if ra.RoleName == "Owner" && strings.HasPrefix(ra.Scope, "/subscriptions/") && !strings.Contains(ra.Scope[len("/subscriptions/"):], "/") {
			ownersByScope[ra.Scope]++
		}
		if ra.IsGuest && privilegedRoles[ra.RoleName] {
			flagged++
			result.Findings = append(result.Findings, assessment.Finding{
				Category:        a.Category(),
				ResourceID:      ra.PrincipalID,
				ResourceName:    ra.PrincipalID,
				ResourceType:    "AzureAD/roleAssignment",
				Severity:        assessment.SeverityCritical,
				Issue:           fmt.Sprintf("Guest account holds the privileged role %q at scope %s", ra.RoleName, ra.Scope),
				Recommendation:  "Remove the privileged role from the guest account or convert it to a managed member account",
				EstimatedEffort: "medium",
			})
		}
	}

	for scope, owners := range ownersByScope {
		if owners > opts.Config.MaxSubscriptionOwners {
			flagged++
			result.Findings = append(result.Findings, assessment.Finding{
				Category:        a.Category(),
				ResourceID:      scope,
				ResourceName:    scope,
				ResourceType:    "Microsoft.Authorization/roleAssignments",
				Severity:        assessment.SeverityHigh,
				Issue:           fmt.Sprintf("Subscription has %d owner role assignments, above the limit of %d", owners, opts.Config.MaxSubscriptionOwners),
				Recommendation:  "Reduce standing owner assignments; use just-in-time elevation for administrative work",
				EstimatedEffort: "medium",
			})
		}
	}

	result.Score = ScoreOf(ClampScore(float64(len(snap.RoleAssignments)-flagged) / float64(len(snap.RoleAssignments)) * 100))
	result.Metrics["flagged_assignments"] = float64(flagged)
	return result, nil
}

// ConditionalAccessAnalyzer verifies the tenant enforces multi-factor
// authentication for all users and has no policies parked in report-only
// mode.
type ConditionalAccessAnalyzer struct {
	directory inventory.DirectoryProvider
}

func NewConditionalAccessAnalyzer(directory inventory.DirectoryProvider) *ConditionalAccessAnalyzer {
	return &ConditionalAccessAnalyzer{directory: directory}
}

func (a *ConditionalAccessAnalyzer) Category() assessment.Category {
	return assessment.CategoryConditionalAccess
}

func (a *ConditionalAccessAnalyzer) Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts Options) (*assessment.CategoryResult, error) {
	snap, err := a.directory.FetchDirectory(ctx)
	if err != nil {
		return nil, NewError(a.Category(), err)
	}

	result := &assessment.CategoryResult{
		Category:       a.Category(),
		TotalResources: len(snap.ConditionalAccessPolicies),
		Metrics:        map[string]float64{},
	}

	mfaForAll := false
	reportOnly := 0
	for _, p := range snap.ConditionalAccessPolicies {
		if p.State == "enabledForReportingButNotEnforced" {
			reportOnly++
			result.Findings = append(result.Findings, assessment.Finding{
				Category:        a.Category(),
				ResourceID:      p.ID,
				ResourceName:    p.DisplayName,
				ResourceType:    "AzureAD/conditionalAccessPolicy",
				Severity:        assessment.SeverityLow,
				Issue:           "Conditional access policy is in report-only mode and not enforced",
				Recommendation:  "Review the report-only results and enable the policy, or remove it",
				EstimatedEffort: "low",
			})
			continue
		}
		if p.State != "enabled" {
			continue
		}
		if p.UserScope == "all" {
			for _, g := range p.GrantControls {
				if strings.EqualFold(g, "mfa") {
					mfaForAll = true
				}
			}
		}
	}

	checks, passed := 2, 0
	if mfaForAll {
		passed++
	} else {
		result.Findings = append(result.Findings, assessment.Finding{
			Category:        a.Category(),
			ResourceID:      snap.TenantID,
			ResourceName:    snap.TenantID,
			ResourceType:    "AzureAD/tenant",
			Severity:        assessment.SeverityCritical,
			Issue:           "No enabled conditional access policy requires multi-factor authentication for all users",
			Recommendation:  "Create a conditional access policy that requires MFA for every user",
			EstimatedEffort: "medium",
		})
	}
	if reportOnly == 0 {
		passed++
	}

	result.Score = ScoreOf(float64(passed) / float64(checks) * 100)
	result.Metrics["report_only_policies"] = float64(reportOnly)
	return result, nil
}
