package analyzer

import (
	"testing"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
)

func TestSortFindings(t *testing.T) {
	findings := []assessment.Finding{
		{Category: assessment.CategoryTagCoverage, Severity: assessment.SeverityLow, Issue: "a"},
		{Category: assessment.CategoryNamingConvention, Severity: assessment.SeverityCritical, Issue: "b"},
		{Category: assessment.CategoryCost, Severity: assessment.SeverityHigh, Issue: "c"},
		{Category: assessment.CategoryNamingConvention, Severity: assessment.SeverityHigh, Issue: "d"},
		{Category: assessment.CategoryCost, Severity: assessment.SeverityHigh, Issue: "e"},
	}

	SortFindings(findings)

	// Critical first, then the highs sorted by category (cost before
	// naming_convention) with analyzer order preserved within a category.
	wantOrder := []string{"b", "c", "e", "d", "a"}
	for i, issue := range wantOrder {
		if findings[i].Issue != issue {
			t.Fatalf("position %d = %q, want %q (got order %v)", i, findings[i].Issue, issue, issues(findings))
		}
	}
}

func issues(findings []assessment.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Issue
	}
	return out
}

func TestNormalizeFindings(t *testing.T) {
	results := map[assessment.Category]*assessment.CategoryResult{
		assessment.CategoryNamingConvention: {
			Category: assessment.CategoryNamingConvention,
			Findings: []assessment.Finding{
				{Category: assessment.CategoryNamingConvention, Severity: assessment.SeverityMedium, Issue: "naming issue"},
			},
		},
		assessment.CategoryTagCoverage: {
			Category: assessment.CategoryTagCoverage,
			Findings: []assessment.Finding{
				{Category: assessment.CategoryTagCoverage, Severity: assessment.SeverityHigh, Issue: "tag issue"},
			},
		},
	}

	out := NormalizeFindings("assessment-1", results)

	if len(out) != 2 {
		t.Fatalf("NormalizeFindings() = %d findings, want 2", len(out))
	}
	if out[0].Severity != assessment.SeverityHigh {
		t.Errorf("first finding severity = %s, want high", out[0].Severity)
	}
	for _, f := range out {
		if f.ID == "" {
			t.Error("finding ID not assigned")
		}
		if f.AssessmentID != "assessment-1" {
			t.Errorf("finding assessment ID = %q, want assessment-1", f.AssessmentID)
		}
		if f.Status != assessment.FindingStatusNew {
			t.Errorf("finding status = %q, want new", f.Status)
		}
		if f.CreatedAt.IsZero() {
			t.Error("finding CreatedAt not set")
		}
	}
}

func TestBuildRecommendations(t *testing.T) {
	findings := []assessment.Finding{
		{Category: assessment.CategoryTagCoverage, Severity: assessment.SeverityMedium, Issue: "missing tags", Recommendation: "apply tags", ResourceID: "r1"},
		{Category: assessment.CategoryTagCoverage, Severity: assessment.SeverityHigh, Issue: "missing tags", Recommendation: "apply tags", ResourceID: "r2"},
		{Category: assessment.CategoryNamingConvention, Severity: assessment.SeverityLow, Issue: "bad name", Recommendation: "rename", ResourceID: "r3"},
	}

	recs := BuildRecommendations(findings)

	if len(recs) != 2 {
		t.Fatalf("BuildRecommendations() = %d, want 2", len(recs))
	}

	// Grouped recommendation takes the worst observed severity and sorts first.
	first := recs[0]
	if first.Title != "missing tags" {
		t.Fatalf("first recommendation = %q, want the grouped tag recommendation", first.Title)
	}
	if first.Priority != assessment.SeverityHigh {
		t.Errorf("priority = %s, want high (worst severity wins)", first.Priority)
	}
	if len(first.AffectedResources) != 2 {
		t.Errorf("affected resources = %d, want 2", len(first.AffectedResources))
	}
	if first.ActionPlan == "" {
		t.Error("expected an action plan for a multi-resource recommendation")
	}

	second := recs[1]
	if second.Title != "bad name" {
		t.Errorf("second recommendation = %q, want \"bad name\"", second.Title)
	}
	if second.ActionPlan != "" {
		t.Error("single-resource recommendation should have no action plan")
	}
}
