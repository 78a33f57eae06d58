package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/domain/inventory"
)

// TaggingAnalyzer scores tag coverage and tag quality. Coverage is the share
// of applicable resources carrying at least one tag; quality is how complete
// the required tag set is per resource. The category score is a weighted
// blend with coverage weighted above quality.
type TaggingAnalyzer struct{}

// NewTaggingAnalyzer creates the tagging analyzer.
func NewTaggingAnalyzer() *TaggingAnalyzer {
	return &TaggingAnalyzer{}
}

// Category returns the category this analyzer scores.
func (a *TaggingAnalyzer) Category() assessment.Category {
	return assessment.CategoryTagCoverage
}

// nonTaggableTypes are resource types that do not support tags and are
// excluded from the applicable set.
var nonTaggableTypes = map[string]bool{
	"microsoft.resources/deployments":          true,
	"microsoft.network/networkwatchers":        true,
	"microsoft.insights/alertrules":            true,
	"microsoft.classicstorage/storageaccounts": true,
}

// Analyze computes the blended tagging score. Score is nil when the
// inventory contains no taggable resources; nil is distinct from zero.
func (a *TaggingAnalyzer) Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts Options) (*assessment.CategoryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var applicable []inventory.AzureResource
	for _, r := range filterResources(inv, opts) {
		if !nonTaggableTypes[strings.ToLower(r.Type)] {
			applicable = append(applicable, r)
		}
	}

	result := &assessment.CategoryResult{
		Category:       a.Category(),
		TotalResources: len(applicable),
		Metrics:        map[string]float64{},
	}
	if len(applicable) == 0 {
		return result, nil
	}

	required := opts.Config.RequiredTagSet(opts.Request.RequiredTags)
	tagged := 0
	qualitySum := 0.0
	tagUsage := map[string]int{}

	for _, r := range applicable {
		if r.IsTagged() {
			tagged++
		}
		for k := range r.Tags {
			tagUsage[strings.ToLower(k)]++
		}

		if len(required) == 0 {
			qualitySum += 1.0
			continue
		}

		var missing []string
		for _, req := range required {
			if !r.HasTag(req) {
				missing = append(missing, req)
			}
		}
		qualitySum += float64(len(required)-len(missing)) / float64(len(required))

		if len(missing) > 0 {
			severity := assessment.SeverityMedium
			if len(missing)*2 > len(required) {
				severity = assessment.SeverityHigh
			}
			result.Findings = append(result.Findings, assessment.Finding{
				Category:        a.Category(),
				ResourceID:      r.ID,
				ResourceName:    r.Name,
				ResourceType:    r.Type,
				Severity:        severity,
				Issue:           fmt.Sprintf("Resource is missing required tags: %s", strings.Join(missing, ", ")),
				Recommendation:  "Apply the required governance tags so the resource can be attributed and managed",
				EstimatedEffort: "low",
			})
		}
	}

	coverage := float64(tagged) / float64(len(applicable)) * 100
	quality := qualitySum / float64(len(applicable)) * 100

	covW := opts.Config.TagCoverageWeight
	qualW := opts.Config.TagQualityWeight
	blended := (coverage*covW + quality*qualW) / (covW + qualW)
	result.Score = ScoreOf(ClampScore(blended))

	result.Metrics["coverage_percent"] = coverage
	result.Metrics["quality_percent"] = quality
	result.Metrics["tagged_resources"] = float64(tagged)
	for k, v := range tagUsage {
		result.Metrics["tag_usage."+k] = float64(v)
	}

	return result, nil
}
