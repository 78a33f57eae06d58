package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/domain/inventory"
)

// NamingAnalyzer scores how consistently resources follow a naming
// convention. For every resource the name is tokenized into a pattern
// (delimiter, ordered token classes, casing); the most frequent pattern per
// resource type becomes the dominant pattern, and a resource is compliant
// when its pattern matches the dominant one for its type.
type NamingAnalyzer struct{}

// NewNamingAnalyzer creates the naming convention analyzer.
func NewNamingAnalyzer() *NamingAnalyzer {
	return &NamingAnalyzer{}
}

// Category returns the category this analyzer scores.
func (a *NamingAnalyzer) Category() assessment.Category {
	return assessment.CategoryNamingConvention
}

var envTokens = map[string]bool{
	"dev": true, "development": true, "test": true, "tst": true, "qa": true,
	"stage": true, "staging": true, "stg": true, "uat": true, "prod": true,
	"production": true, "prd": true, "sandbox": true, "sbx": true,
}

var typePrefixes = map[string]bool{
	"vm": true, "vnet": true, "snet": true, "nsg": true, "pip": true,
	"nic": true, "st": true, "sa": true, "kv": true, "sql": true, "rg": true,
	"app": true, "func": true, "aks": true, "acr": true, "law": true,
	"rsv": true, "cosmos": true, "redis": true, "agw": true, "lb": true,
}

// namePattern is the tokenized shape of a resource name.
type namePattern struct {
	Delimiter  string
	TokenCount int
	Casing     string
	Classes    []string
}

// Key returns a comparable signature for grouping.
func (p namePattern) Key() string {
	return fmt.Sprintf("%s|%d|%s|%s", p.Delimiter, p.TokenCount, p.Casing, strings.Join(p.Classes, ","))
}

// tokenizeName extracts the naming pattern from a resource name. The
// delimiter is the most frequent of '-', '_' and '.'; tokens are classified
// as environment markers, resource-type prefixes, numbers, or plain words.
func tokenizeName(name string) namePattern {
	delim := dominantDelimiter(name)

	var tokens []string
	if delim == "" {
		tokens = []string{name}
	} else {
		tokens = strings.Split(name, delim)
	}

	classes := make([]string, 0, len(tokens))
	for _, t := range tokens {
		classes = append(classes, classifyToken(t))
	}

	return namePattern{
		Delimiter:  delim,
		TokenCount: len(tokens),
		Casing:     classifyCasing(name),
		Classes:    classes,
	}
}

func dominantDelimiter(name string) string {
	counts := map[string]int{}
	for _, r := range name {
		switch r {
		case '-', '_', '.':
			counts[string(r)]++
		}
	}
	best, bestCount := "", 0
	for _, d := range []string{"-", "_", "."} {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

func classifyToken(token string) string {
	lower := strings.ToLower(token)
	switch {
	case lower == "":
		return "empty"
	case envTokens[lower]:
		return "env"
	case typePrefixes[lower]:
		return "type"
	case isNumeric(lower):
		return "num"
	default:
		return "word"
	}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func classifyCasing(name string) string {
	hasUpper, hasLower := false, false
	for _, r := range name {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	switch {
	case hasUpper && hasLower:
		return "mixed"
	case hasUpper:
		return "upper"
	default:
		return "lower"
	}
}

// Analyze computes the naming consistency score. The base score is the share
// of resources matching their type's dominant pattern; auxiliary violations
// (invalid storage account casing, over-long names) deduct severity-weighted
// points on top. Plain pattern mismatches are already priced into the base
// ratio and carry no extra penalty.
func (a *NamingAnalyzer) Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts Options) (*assessment.CategoryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resources := filterResources(inv, opts)
	result := &assessment.CategoryResult{
		Category:       a.Category(),
		TotalResources: len(resources),
		Metrics:        map[string]float64{},
	}
	if len(resources) == 0 {
		return result, nil
	}

	// Group pattern signatures by resource type.
	type typeGroup struct {
		resources []inventory.AzureResource
		patterns  map[string]int
	}
	groups := make(map[string]*typeGroup)
	delimCounts := map[string]int{}
	envPrefixed, typePrefixed := 0, 0

	for _, r := range resources {
		t := strings.ToLower(r.Type)
		g, ok := groups[t]
		if !ok {
			g = &typeGroup{patterns: map[string]int{}}
			groups[t] = g
		}
		p := tokenizeName(r.Name)
		g.resources = append(g.resources, r)
		g.patterns[p.Key()]++
		if p.Delimiter != "" {
			delimCounts[p.Delimiter]++
		}
		if len(p.Classes) > 0 {
			if p.Classes[0] == "env" || p.Classes[len(p.Classes)-1] == "env" {
				envPrefixed++
			}
			if p.Classes[0] == "type" {
				typePrefixed++
			}
		}
	}

	compliant := 0
	consistentWeight := 0.0
	for _, g := range groups {
		dominant := dominantPattern(g.patterns)
		typeCompliant := 0
		for _, r := range g.resources {
			if tokenizeName(r.Name).Key() == dominant {
				typeCompliant++
				compliant++
				continue
			}
			result.Findings = append(result.Findings, assessment.Finding{
				Category:        a.Category(),
				ResourceID:      r.ID,
				ResourceName:    r.Name,
				ResourceType:    r.Type,
				Severity:        assessment.SeverityMedium,
				Issue:           "Resource name deviates from the dominant naming pattern for its type",
				Recommendation:  "Rename the resource to follow the naming pattern used by the majority of resources of this type",
				EstimatedEffort: "low",
			})
		}
		ratio := float64(typeCompliant) / float64(len(g.resources))
		if ratio >= opts.Config.NamingConsistencyThreshold {
			consistentWeight += float64(len(g.resources))
		}
	}

	// Auxiliary checks beyond pattern matching. These are the findings the
	// severity-weighted penalty applies to.
	penalty := 0.0
	for _, r := range resources {
		if strings.EqualFold(r.Type, "Microsoft.Storage/storageAccounts") && classifyCasing(r.Name) != "lower" {
			f := assessment.Finding{
				Category:        a.Category(),
				ResourceID:      r.ID,
				ResourceName:    r.Name,
				ResourceType:    r.Type,
				Severity:        assessment.SeverityHigh,
				Issue:           "Storage account name contains uppercase characters",
				Recommendation:  "Storage account names must be lowercase alphanumeric; recreate the account with a compliant name",
				EstimatedEffort: "medium",
			}
			result.Findings = append(result.Findings, f)
			penalty += opts.Config.PenaltyFor(f.Severity)
		}
		if len(r.Name) > 64 {
			f := assessment.Finding{
				Category:        a.Category(),
				ResourceID:      r.ID,
				ResourceName:    r.Name,
				ResourceType:    r.Type,
				Severity:        assessment.SeverityLow,
				Issue:           "Resource name exceeds 64 characters",
				Recommendation:  "Shorten the resource name to keep it readable and within service limits",
				EstimatedEffort: "low",
			}
			result.Findings = append(result.Findings, f)
			penalty += opts.Config.PenaltyFor(f.Severity)
		}
	}

	base := float64(compliant) / float64(len(resources)) * 100
	result.Score = ScoreOf(ClampScore(base - penalty))

	result.Metrics["consistency_percent"] = consistentWeight / float64(len(resources)) * 100
	result.Metrics["compliant_resources"] = float64(compliant)
	result.Metrics["env_prefix_percent"] = float64(envPrefixed) / float64(len(resources)) * 100
	result.Metrics["type_prefix_percent"] = float64(typePrefixed) / float64(len(resources)) * 100
	if d := topDelimiter(delimCounts); d != "" {
		result.Metrics["dominant_separator_usage"] = float64(delimCounts[d]) / float64(len(resources)) * 100
	}

	return result, nil
}

// dominantPattern picks the most frequent pattern key; ties break
// lexicographically so results are deterministic.
func dominantPattern(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best, bestCount := "", 0
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}

func topDelimiter(counts map[string]int) string {
	best, bestCount := "", 0
	for _, d := range []string{"-", "_", "."} {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}
