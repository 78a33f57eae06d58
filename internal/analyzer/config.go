package analyzer

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
)

// Config is the scoring configuration surface. The exact point deductions
// per severity and the per-category weights are deliberately configuration,
// not constants; DefaultConfig documents the chosen defaults.
type Config struct {
	// CategoryWeights weight each category's score in aggregates. A category
	// absent from the map gets weight 1.0 (equal weighting).
	CategoryWeights map[assessment.Category]float64 `yaml:"category_weights"`

	// SeverityPenalties are the points deducted from a category score per
	// finding of the given severity, beyond what the compliance ratio
	// already accounts for.
	SeverityPenalties map[assessment.Severity]float64 `yaml:"severity_penalties"`

	// NamingConsistencyThreshold is the pattern-compliant ratio a resource
	// type must exceed to count as consistent.
	NamingConsistencyThreshold float64 `yaml:"naming_consistency_threshold"`

	// TagCoverageWeight and TagQualityWeight blend the tagging score.
	// Coverage must outweigh quality.
	TagCoverageWeight float64 `yaml:"tag_coverage_weight"`
	TagQualityWeight  float64 `yaml:"tag_quality_weight"`

	// RequiredTags is the default required tag set for tag quality checks.
	RequiredTags []string `yaml:"required_tags"`

	// StaleIdentityDays is the sign-in inactivity window after which a user
	// counts as stale.
	StaleIdentityDays int `yaml:"stale_identity_days"`

	// MaxSubscriptionOwners is the owner-role assignment count above which
	// the RBAC analyzer flags a subscription.
	MaxSubscriptionOwners int `yaml:"max_subscription_owners"`
}

// DefaultConfig returns the documented default scoring configuration.
func DefaultConfig() *Config {
	return &Config{
		CategoryWeights: map[assessment.Category]float64{},
		SeverityPenalties: map[assessment.Severity]float64{
			assessment.SeverityCritical: 5,
			assessment.SeverityHigh:     3,
			assessment.SeverityMedium:   1,
			assessment.SeverityLow:      0.5,
		},
		NamingConsistencyThreshold: 0.8,
		TagCoverageWeight:          0.6,
		TagQualityWeight:           0.4,
		RequiredTags:               []string{"environment", "owner", "cost-center"},
		StaleIdentityDays:          90,
		MaxSubscriptionOwners:      3,
	}
}

// LoadConfig reads a YAML scoring configuration and overlays it on the
// defaults. An empty path returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read analyzer config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse analyzer config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configured weights for consistency.
func (c *Config) Validate() error {
	if c.TagCoverageWeight <= 0 || c.TagQualityWeight <= 0 {
		return fmt.Errorf("tag weights must be positive")
	}
	if c.TagCoverageWeight < c.TagQualityWeight {
		return fmt.Errorf("tag coverage weight must be greater than quality weight")
	}
	if c.NamingConsistencyThreshold <= 0 || c.NamingConsistencyThreshold > 1 {
		return fmt.Errorf("naming consistency threshold must be in (0,1]")
	}
	for sev, p := range c.SeverityPenalties {
		if p < 0 {
			return fmt.Errorf("severity penalty for %s must not be negative", sev)
		}
	}
	return nil
}

// WeightFor returns the aggregate weight of a category, defaulting to equal
// weighting when unconfigured.
func (c *Config) WeightFor(cat assessment.Category) float64 {
	if w, ok := c.CategoryWeights[cat]; ok && w > 0 {
		return w
	}
	return 1.0
}

// PenaltyFor returns the configured score deduction for a severity.
func (c *Config) PenaltyFor(sev assessment.Severity) float64 {
	return c.SeverityPenalties[sev]
}

// RequiredTagSet returns the request override when present, otherwise the
// configured default.
func (c *Config) RequiredTagSet(override []string) []string {
	if len(override) > 0 {
		return override
	}
	return c.RequiredTags
}
