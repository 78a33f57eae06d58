package dto

import (
	"sort"
	"time"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
)

// StartAssessmentRequest represents an assessment creation request
type StartAssessmentRequest struct {
	EnvironmentID   string   `json:"environmentId" validate:"required"`
	CustomerID      string   `json:"customerId" validate:"required"`
	SubscriptionIDs []string `json:"subscriptionIds" validate:"required,min=1"`
	Type            string   `json:"type" validate:"required"`

	EnabledCategories    []string `json:"enabledCategories,omitempty"`
	IncludeResourceTypes []string `json:"includeResourceTypes,omitempty"`
	ExcludeResourceTypes []string `json:"excludeResourceTypes,omitempty"`
	RequiredTags         []string `json:"requiredTags,omitempty"`
}

// ToRequest converts the DTO into the domain request.
func (r *StartAssessmentRequest) ToRequest() *assessment.Request {
	req := &assessment.Request{
		EnvironmentID:   r.EnvironmentID,
		CustomerID:      r.CustomerID,
		SubscriptionIDs: r.SubscriptionIDs,
		Type:            assessment.Type(r.Type),
		Options: assessment.Options{
			IncludeResourceTypes: r.IncludeResourceTypes,
			ExcludeResourceTypes: r.ExcludeResourceTypes,
			RequiredTags:         r.RequiredTags,
		},
	}
	for _, c := range r.EnabledCategories {
		req.Options.EnabledCategories = append(req.Options.EnabledCategories, assessment.Category(c))
	}
	return req
}

// StartAssessmentResponse returns the accepted assessment ID
type StartAssessmentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CategoryResultDTO represents one category score in API responses
type CategoryResultDTO struct {
	Category       string             `json:"category"`
	Score          *float64           `json:"score"`
	TotalResources int                `json:"totalResources"`
	FindingCount   int                `json:"findingCount"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
}

// AssessmentDTO represents an assessment in API responses
// Uses camelCase for frontend compatibility
type AssessmentDTO struct {
	ID                    string              `json:"id"`
	CustomerID            string              `json:"customerId"`
	EnvironmentID         string              `json:"environmentId"`
	Type                  string              `json:"type"`
	Status                string              `json:"status"`
	SubscriptionIDs       []string            `json:"subscriptionIds"`
	OverallScore          *float64            `json:"overallScore,omitempty"`
	StartedAt             *time.Time          `json:"startedAt,omitempty"`
	CompletedAt           *time.Time          `json:"completedAt,omitempty"`
	ErrorMessage          string              `json:"errorMessage,omitempty"`
	CategoryResults       []CategoryResultDTO `json:"categoryResults,omitempty"`
	Recommendations       []RecommendationDTO `json:"recommendations,omitempty"`
	ResourcesAnalyzed     int                 `json:"resourcesAnalyzed"`
	IssuesFound           int                 `json:"issuesFound"`
	UnavailableCategories []string            `json:"unavailableCategories,omitempty"`
	CreatedAt             time.Time           `json:"createdAt"`
}

// FindingDTO represents a finding in API responses
type FindingDTO struct {
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

// RecommendationDTO represents an aggregated recommendation
type RecommendationDTO struct {
	Category          string   `json:"category"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Priority          string   `json:"priority"`
	EstimatedEffort   string   `json:"estimatedEffort,omitempty"`
	AffectedResources []string `json:"affectedResources,omitempty"`
	ActionPlan        string   `json:"actionPlan,omitempty"`
}

// FromAssessment maps the domain assessment onto the API shape.
func FromAssessment(a *assessment.Assessment) *AssessmentDTO {
	dto := &AssessmentDTO{
		ID:                a.ID,
		CustomerID:        a.CustomerID,
		EnvironmentID:     a.EnvironmentID,
		Type:              string(a.Type),
		Status:            string(a.Status),
		SubscriptionIDs:   a.SubscriptionIDs,
		OverallScore:      a.OverallScore,
		StartedAt:         a.StartedAt,
		CompletedAt:       a.CompletedAt,
		ErrorMessage:      a.ErrorMessage,
		ResourcesAnalyzed: a.ResourcesAnalyzed,
		IssuesFound:       a.IssuesFound,
		CreatedAt:         a.CreatedAt,
	}
	for _, c := range a.UnavailableCategories {
		dto.UnavailableCategories = append(dto.UnavailableCategories, string(c))
	}
	for _, res := range a.CategoryResults {
		dto.CategoryResults = append(dto.CategoryResults, CategoryResultDTO{
			Category:       string(res.Category),
			Score:          res.Score,
			TotalResources: res.TotalResources,
			FindingCount:   len(res.Findings),
			Metrics:        res.Metrics,
		})
	}
	sort.Slice(dto.CategoryResults, func(i, j int) bool {
		return dto.CategoryResults[i].Category < dto.CategoryResults[j].Category
	})
	sort.Strings(dto.UnavailableCategories)
	for _, rec := range a.Recommendations {
		dto.Recommendations = append(dto.Recommendations, RecommendationDTO{
			Category:          string(rec.Category),
			Title:             rec.Title,
			Description:       rec.Description,
			Priority:          string(rec.Priority),
			EstimatedEffort:   rec.EstimatedEffort,
			AffectedResources: rec.AffectedResources,
			ActionPlan:        rec.ActionPlan,
		})
	}
	return dto
}

// FromFinding maps a domain finding onto the API shape.
func FromFinding(f assessment.Finding) FindingDTO {
	return FindingDTO{
		ID:              f.ID,
		AssessmentID:    f.AssessmentID,
		Category:        string(f.Category),
		ResourceID:      f.ResourceID,
		ResourceName:    f.ResourceName,
		ResourceType:    f.ResourceType,
		Severity:        string(f.Severity),
		Issue:           f.Issue,
		Recommendation:  f.Recommendation,
		EstimatedEffort: f.EstimatedEffort,
		Status:          string(f.Status),
		CreatedAt:       f.CreatedAt,
	}
}
