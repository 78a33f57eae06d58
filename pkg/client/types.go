package client

import "time"

// Assessment represents a governance assessment run
type Assessment struct {
	ID                    string           `json:"id"`
	CustomerID            string           `json:"customerId"`
	EnvironmentID         string           `json:"environmentId"`
	Type                  string           `json:"type"`
	Status                string           `json:"status"`
	SubscriptionIDs       []string         `json:"subscriptionIds"`
	OverallScore          *float64         `json:"overallScore,omitempty"`
	StartedAt             *time.Time       `json:"startedAt,omitempty"`
	CompletedAt           *time.Time       `json:"completedAt,omitempty"`
	ErrorMessage          string           `json:"errorMessage,omitempty"`
	CategoryResults       []CategoryResult `json:"categoryResults,omitempty"`
	Recommendations       []Recommendation `json:"recommendations,omitempty"`
	ResourcesAnalyzed     int              `json:"resourcesAnalyzed"`
	IssuesFound           int              `json:"issuesFound"`
	UnavailableCategories []string         `json:"unavailableCategories,omitempty"`
	CreatedAt             time.Time        `json:"createdAt"`
}

// CategoryResult represents one category score
type CategoryResult struct {
	Category       string             `json:"category"`
	Score          *float64           `json:"score"`
	TotalResources int                `json:"totalResources"`
	FindingCount   int                `json:"findingCount"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
}

// Finding represents one resource-scoped governance issue
type Finding struct {
	ID              string    `json:"id"`
	AssessmentID    string    `json:"assessmentId"`
	Category        string    `json:"category"`
	ResourceID      string    `json:"resourceId"`
	ResourceName    string    `json:"resourceName"`
	ResourceType    string    `json:"resourceType"`
	Severity        string    `json:"severity"`
	Issue           string    `json:"issue"`
	Recommendation  string    `json:"recommendation"`
	EstimatedEffort string    `json:"estimatedEffort,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Recommendation represents an aggregated remediation suggestion
type Recommendation struct {
	Category          string   `json:"category"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Priority          string   `json:"priority"`
	EstimatedEffort   string   `json:"estimatedEffort,omitempty"`
	AffectedResources []string `json:"affectedResources,omitempty"`
	ActionPlan        string   `json:"actionPlan,omitempty"`
}

// StartAssessmentRequest is the payload for starting an assessment
type StartAssessmentRequest struct {
	EnvironmentID        string   `json:"environmentId"`
	CustomerID           string   `json:"customerId"`
	SubscriptionIDs      []string `json:"subscriptionIds"`
	Type                 string   `json:"type"`
	EnabledCategories    []string `json:"enabledCategories,omitempty"`
	IncludeResourceTypes []string `json:"includeResourceTypes,omitempty"`
	ExcludeResourceTypes []string `json:"excludeResourceTypes,omitempty"`
	RequiredTags         []string `json:"requiredTags,omitempty"`
}

// StartAssessmentResponse is the acceptance response
type StartAssessmentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}
