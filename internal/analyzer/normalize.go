package analyzer

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
)

// SortFindings orders findings by severity (critical first) then category
// name, regardless of the order individual analyzers emitted them. The sort
// is stable so findings within one category keep their analyzer order.
func SortFindings(findings []assessment.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity.Rank() != findings[j].Severity.Rank() {
			return findings[i].Severity.Rank() < findings[j].Severity.Rank()
		}
		return findings[i].Category < findings[j].Category
	})
}

// NormalizeFindings flattens per-category findings into one list owned by the
// assessment: ids and the owning assessment id are assigned, the default
// workflow status is set, and the list is sorted deterministically.
func NormalizeFindings(assessmentID string, results map[assessment.Category]*assessment.CategoryResult) []assessment.Finding {
	var out []assessment.Finding
	now := time.Now().UTC()
	for _, res := range results {
		for _, f := range res.Findings {
			if f.ID == "" {
				f.ID = uuid.New().String()
			}
			f.AssessmentID = assessmentID
			if f.Status == "" {
				f.Status = assessment.FindingStatusNew
			}
			if f.CreatedAt.IsZero() {
				f.CreatedAt = now
			}
			out = append(out, f)
		}
	}
	SortFindings(out)
	return out
}

// BuildRecommendations derives aggregated recommendations from the flattened
// finding list: one recommendation per (category, issue) pair, with the
// affected resources collected and the priority taken from the worst
// severity observed.
func BuildRecommendations(findings []assessment.Finding) []assessment.Recommendation {
	type key struct {
		category assessment.Category
		issue    string
	}

	grouped := make(map[key]*assessment.Recommendation)
	var order []key
	for _, f := range findings {
		k := key{category: f.Category, issue: f.Issue}
		rec, ok := grouped[k]
		if !ok {
			rec = &assessment.Recommendation{
				Category:        f.Category,
				Title:           f.Issue,
				Description:     f.Recommendation,
				Priority:        f.Severity,
				EstimatedEffort: f.EstimatedEffort,
			}
			grouped[k] = rec
			order = append(order, k)
		}
		if f.Severity.Rank() < rec.Priority.Rank() {
			rec.Priority = f.Severity
		}
		if f.ResourceID != "" {
			rec.AffectedResources = append(rec.AffectedResources, f.ResourceID)
		}
	}

	out := make([]assessment.Recommendation, 0, len(order))
	for _, k := range order {
		rec := grouped[k]
		if len(rec.AffectedResources) > 1 {
			rec.ActionPlan = fmt.Sprintf("Remediate %d affected resources, highest severity first.", len(rec.AffectedResources))
		}
		out = append(out, *rec)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() < out[j].Priority.Rank()
		}
		return out[i].Category < out[j].Category
	})
	return out
}
