package assessment

import (
	"time"
)

// Type selects which analyzer set an assessment runs.
type Type string

const (
	TypeNamingConvention   Type = "naming_convention"
	TypeTagging            Type = "tagging"
	TypeCost               Type = "cost"
	TypeSecurityPosture    Type = "security_posture"
	TypeIdentityAccess     Type = "identity_access"
	TypeBusinessContinuity Type = "business_continuity"
	TypeFull               Type = "full"
)

// IsValid checks if the assessment type is known.
func (t Type) IsValid() bool {
	switch t {
	case TypeNamingConvention, TypeTagging, TypeCost, TypeSecurityPosture,
		TypeIdentityAccess, TypeBusinessContinuity, TypeFull:
		return true
	default:
		return false
	}
}

// Status is the lifecycle state of an assessment. Transitions are strictly
// forward: Pending -> InProgress -> {Completed, Failed}.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// transition.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusFailed
	case StatusInProgress:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// Category is a governance concern independently scored by one analyzer.
type Category string

const (
	CategoryNamingConvention   Category = "naming_convention"
	CategoryTagCoverage        Category = "tag_coverage"
	CategoryTagQuality         Category = "tag_quality"
	CategoryCost               Category = "cost"
	CategoryDependency         Category = "dependency"
	CategorySecurity           Category = "security"
	CategoryNetworkSecurity    Category = "network_security"
	CategoryPrivateEndpoints   Category = "private_endpoints"
	CategoryEncryption         Category = "encryption"
	CategoryThreatProtection   Category = "threat_protection"
	CategoryIdentity           Category = "identity"
	CategoryEnterpriseApps     Category = "enterprise_apps"
	CategoryStaleIdentities    Category = "stale_identities"
	CategoryRBAC               Category = "rbac"
	CategoryConditionalAccess  Category = "conditional_access"
	CategoryBusinessContinuity Category = "business_continuity"
	CategoryBackupCoverage     Category = "backup_coverage"
	CategoryRecoveryConfig     Category = "recovery_config"
)

// Severity ranks a finding. Critical > High > Medium > Low.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank returns the sort rank of the severity, lower is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// FindingStatus is the human workflow state of a finding. The engine only
// ever writes StatusNew; the rest are set by later triage outside the engine.
type FindingStatus string

const (
	FindingStatusNew        FindingStatus = "new"
	FindingStatusInProgress FindingStatus = "in_progress"
	FindingStatusResolved   FindingStatus = "resolved"
	FindingStatusIgnored    FindingStatus = "ignored"
)

// Finding is one concrete, resource-scoped governance issue.
type Finding struct {
	ID              string        `json:"id"`
	AssessmentID    string        `json:"assessment_id"`
	Category        Category      `json:"category"`
	ResourceID      string        `json:"resource_id"`
	ResourceName    string        `json:"resource_name"`
	ResourceType    string        `json:"resource_type"`
	Severity        Severity      `json:"severity"`
	Issue           string        `json:"issue"`
	Recommendation  string        `json:"recommendation"`
	EstimatedEffort string        `json:"estimated_effort,omitempty"`
	Status          FindingStatus `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
}

// CategoryResult is the generic shape every analyzer produces. Score is nil
// when the category had no applicable resources; nil is distinct from zero
// and contributes no weight to aggregate scores.
type CategoryResult struct {
	Category       Category           `json:"category"`
	Score          *float64           `json:"score,omitempty"`
	TotalResources int                `json:"total_resources"`
	Findings       []Finding          `json:"findings,omitempty"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
}

// Recommendation is an aggregated remediation suggestion derived from
// findings; it is never independently authored.
type Recommendation struct {
	Category          Category `json:"category"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Priority          Severity `json:"priority"`
	EstimatedEffort   string   `json:"estimated_effort,omitempty"`
	AffectedResources []string `json:"affected_resources,omitempty"`
	ActionPlan        string   `json:"action_plan,omitempty"`
}

// Request describes one assessment to run.
type Request struct {
	EnvironmentID   string   `json:"environment_id" validate:"required"`
	CustomerID      string   `json:"customer_id" validate:"required"`
	SubscriptionIDs []string `json:"subscription_ids" validate:"required,min=1"`
	Type            Type     `json:"type" validate:"required"`
	Options         Options  `json:"options"`
}

// Options carries per-request analyzer tuning.
type Options struct {
	// EnabledCategories restricts the analyzer set resolved from Type.
	// Empty means every category the type implies.
	EnabledCategories []Category `json:"enabled_categories,omitempty"`
	// IncludeResourceTypes / ExcludeResourceTypes filter the inventory the
	// analyzers see. Exclude wins over include.
	IncludeResourceTypes []string `json:"include_resource_types,omitempty"`
	ExcludeResourceTypes []string `json:"exclude_resource_types,omitempty"`
	// RequiredTags overrides the configured required tag set for tagging
	// quality checks.
	RequiredTags []string `json:"required_tags,omitempty"`
}

// CategoryEnabled reports whether a category is enabled by the request
// options. An empty enabled set means everything is enabled.
func (o Options) CategoryEnabled(c Category) bool {
	if len(o.EnabledCategories) == 0 {
		return true
	}
	for _, e := range o.EnabledCategories {
		if e == c {
			return true
		}
	}
	return false
}

// Assessment is one governance evaluation run with its own lifecycle and
// overall score.
type Assessment struct {
	ID                    string                       `json:"id"`
	CustomerID            string                       `json:"customer_id"`
	EnvironmentID         string                       `json:"environment_id"`
	Type                  Type                         `json:"type"`
	Status                Status                       `json:"status"`
	SubscriptionIDs       []string                     `json:"subscription_ids"`
	Options               Options                      `json:"options,omitempty"`
	OverallScore          *float64                     `json:"overall_score,omitempty"`
	StartedAt             *time.Time                   `json:"started_at,omitempty"`
	CompletedAt           *time.Time                   `json:"completed_at,omitempty"`
	ErrorMessage          string                       `json:"error_message,omitempty"`
	CategoryResults       map[Category]*CategoryResult `json:"category_results,omitempty"`
	Findings              []Finding                    `json:"findings,omitempty"`
	Recommendations       []Recommendation             `json:"recommendations,omitempty"`
	ResourcesAnalyzed     int                          `json:"resources_analyzed"`
	IssuesFound           int                          `json:"issues_found"`
	UnavailableCategories []Category                   `json:"unavailable_categories,omitempty"`
	CreatedAt             time.Time                    `json:"created_at"`
}
