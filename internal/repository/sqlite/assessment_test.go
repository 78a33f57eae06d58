package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	apperrors "github.com/azgovernor/azgovernor/internal/pkg/errors"
	"github.com/azgovernor/azgovernor/internal/repository/sqlite"
	"github.com/azgovernor/azgovernor/internal/testutil"
	"github.com/google/uuid"
)

func newAssessment() *assessment.Assessment {
	return &assessment.Assessment{
		ID:              uuid.NewString(),
		CustomerID:      "acme",
		EnvironmentID:   "env-prod",
		Type:            assessment.TypeFull,
		Status:          assessment.StatusPending,
		SubscriptionIDs: []string{"sub-1", "sub-2"},
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}
}

func TestAssessmentRepository_CreateGetRoundTrip(t *testing.T) {
	repo := sqlite.NewAssessmentRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	a := newAssessment()
	if err := repo.CreateAssessment(ctx, a); err != nil {
		t.Fatalf("CreateAssessment() error = %v", err)
	}

	got, err := repo.GetAssessment(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAssessment() error = %v", err)
	}
	if got.CustomerID != a.CustomerID || got.EnvironmentID != a.EnvironmentID {
		t.Errorf("round trip lost identity fields: %+v", got)
	}
	if got.Type != assessment.TypeFull || got.Status != assessment.StatusPending {
		t.Errorf("Type/Status = %s/%s, want full/pending", got.Type, got.Status)
	}
	if len(got.SubscriptionIDs) != 2 || got.SubscriptionIDs[1] != "sub-2" {
		t.Errorf("SubscriptionIDs = %v, want [sub-1 sub-2]", got.SubscriptionIDs)
	}
	if got.OverallScore != nil || got.StartedAt != nil || got.CompletedAt != nil {
		t.Error("fresh assessment has non-nil score or timestamps")
	}
}

func TestAssessmentRepository_GetAssessment_NotFound(t *testing.T) {
	repo := sqlite.NewAssessmentRepository(testutil.NewTestDB(t))

	_, err := repo.GetAssessment(context.Background(), "missing")
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.ErrCodeNotFound {
		t.Errorf("GetAssessment() error = %v, want not found", err)
	}
}

func TestAssessmentRepository_UpdateAssessmentStatus(t *testing.T) {
	repo := sqlite.NewAssessmentRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	a := newAssessment()
	if err := repo.CreateAssessment(ctx, a); err != nil {
		t.Fatalf("CreateAssessment() error = %v", err)
	}

	if err := repo.UpdateAssessmentStatus(ctx, a.ID, assessment.StatusPending, assessment.StatusInProgress); err != nil {
		t.Fatalf("UpdateAssessmentStatus() error = %v", err)
	}

	got, err := repo.GetAssessment(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAssessment() error = %v", err)
	}
	if got.Status != assessment.StatusInProgress {
		t.Errorf("Status = %s, want in_progress", got.Status)
	}
	if got.StartedAt == nil {
		t.Error("StartedAt not set on the pending to in_progress transition")
	}

	// A second claim with a stale expectation loses the race.
	err = repo.UpdateAssessmentStatus(ctx, a.ID, assessment.StatusPending, assessment.StatusInProgress)
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.ErrCodeConflict {
		t.Errorf("stale transition error = %v, want conflict", err)
	}
}

func TestAssessmentRepository_UpdateAssessmentResult(t *testing.T) {
	repo := sqlite.NewAssessmentRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	a := newAssessment()
	if err := repo.CreateAssessment(ctx, a); err != nil {
		t.Fatalf("CreateAssessment() error = %v", err)
	}

	score := 82.5
	now := time.Now().UTC().Truncate(time.Second)
	a.Status = assessment.StatusCompleted
	a.OverallScore = &score
	a.StartedAt = &now
	a.ResourcesAnalyzed = 42
	a.IssuesFound = 3
	a.CategoryResults = map[assessment.Category]*assessment.CategoryResult{
		assessment.CategoryNamingConvention: {Category: assessment.CategoryNamingConvention, Score: &score, TotalResources: 42},
	}
	a.UnavailableCategories = []assessment.Category{assessment.CategoryIdentity}
	a.Recommendations = []assessment.Recommendation{
		{Category: assessment.CategoryNamingConvention, Title: "Standardize resource names", Priority: assessment.SeverityMedium},
	}

	if err := repo.UpdateAssessmentResult(ctx, a, now); err != nil {
		t.Fatalf("UpdateAssessmentResult() error = %v", err)
	}

	got, err := repo.GetAssessment(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAssessment() error = %v", err)
	}
	if got.Status != assessment.StatusCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}
	if got.OverallScore == nil || *got.OverallScore != score {
		t.Errorf("OverallScore = %v, want %v", got.OverallScore, score)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, now)
	}
	if cr, ok := got.CategoryResults[assessment.CategoryNamingConvention]; !ok || cr.TotalResources != 42 {
		t.Errorf("CategoryResults = %+v, want naming with 42 resources", got.CategoryResults)
	}
	if len(got.UnavailableCategories) != 1 || got.UnavailableCategories[0] != assessment.CategoryIdentity {
		t.Errorf("UnavailableCategories = %v, want [identity]", got.UnavailableCategories)
	}
	if len(got.Recommendations) != 1 {
		t.Errorf("Recommendations = %d, want 1", len(got.Recommendations))
	}

	// Unknown id maps to not found.
	a.ID = "missing"
	err = repo.UpdateAssessmentResult(ctx, a, now)
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != apperrors.ErrCodeNotFound {
		t.Errorf("UpdateAssessmentResult(missing) error = %v, want not found", err)
	}
}

func TestAssessmentRepository_FindingsSeverityOrder(t *testing.T) {
	repo := sqlite.NewAssessmentRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	a := newAssessment()
	if err := repo.CreateAssessment(ctx, a); err != nil {
		t.Fatalf("CreateAssessment() error = %v", err)
	}

	now := time.Now().UTC()
	mk := func(severity assessment.Severity, name string) assessment.Finding {
		return assessment.Finding{
			ID:           uuid.NewString(),
			AssessmentID: a.ID,
			Category:     assessment.CategoryNamingConvention,
			ResourceID:   "/subscriptions/sub-1/r/" + name,
			ResourceName: name,
			ResourceType: "Microsoft.Compute/virtualMachines",
			Severity:     severity,
			Issue:        "issue",
			Status:       assessment.FindingStatusNew,
			CreatedAt:    now,
		}
	}

	findings := []assessment.Finding{
		mk(assessment.SeverityLow, "low-1"),
		mk(assessment.SeverityCritical, "crit-1"),
		mk(assessment.SeverityMedium, "med-1"),
		mk(assessment.SeverityHigh, "high-1"),
	}
	if err := repo.CreateFindings(ctx, findings); err != nil {
		t.Fatalf("CreateFindings() error = %v", err)
	}

	got, err := repo.GetFindingsByAssessment(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetFindingsByAssessment() error = %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("findings = %d, want 4", len(got))
	}
	wantOrder := []string{"crit-1", "high-1", "med-1", "low-1"}
	for i, name := range wantOrder {
		if got[i].ResourceName != name {
			t.Errorf("findings[%d] = %s, want %s", i, got[i].ResourceName, name)
		}
	}
}

func TestAssessmentRepository_CreateFindings_Empty(t *testing.T) {
	repo := sqlite.NewAssessmentRepository(testutil.NewTestDB(t))
	if err := repo.CreateFindings(context.Background(), nil); err != nil {
		t.Errorf("CreateFindings(nil) error = %v, want nil", err)
	}
}

func TestAssessmentRepository_GetPendingAssessments(t *testing.T) {
	repo := sqlite.NewAssessmentRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	pending := newAssessment()
	if err := repo.CreateAssessment(ctx, pending); err != nil {
		t.Fatalf("CreateAssessment() error = %v", err)
	}

	claimed := newAssessment()
	if err := repo.CreateAssessment(ctx, claimed); err != nil {
		t.Fatalf("CreateAssessment() error = %v", err)
	}
	if err := repo.UpdateAssessmentStatus(ctx, claimed.ID, assessment.StatusPending, assessment.StatusInProgress); err != nil {
		t.Fatalf("UpdateAssessmentStatus() error = %v", err)
	}

	got, err := repo.GetPendingAssessments(ctx)
	if err != nil {
		t.Fatalf("GetPendingAssessments() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != pending.ID {
		t.Errorf("pending = %v, want only %s", got, pending.ID)
	}
	if len(got[0].SubscriptionIDs) != 2 {
		t.Errorf("SubscriptionIDs = %v, want the stored pair", got[0].SubscriptionIDs)
	}
}

func TestAssessmentRepository_RequestOptionsRoundTrip(t *testing.T) {
	repo := sqlite.NewAssessmentRepository(testutil.NewTestDB(t))
	ctx := context.Background()

	a := newAssessment()
	a.Options = assessment.Options{
		EnabledCategories:    []assessment.Category{assessment.CategoryNamingConvention, assessment.CategoryCost},
		IncludeResourceTypes: []string{"Microsoft.Compute/virtualMachines"},
		ExcludeResourceTypes: []string{"Microsoft.Network/networkWatchers"},
		RequiredTags:         []string{"owner", "cost-center"},
	}
	if err := repo.CreateAssessment(ctx, a); err != nil {
		t.Fatalf("CreateAssessment() error = %v", err)
	}

	got, err := repo.GetAssessment(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAssessment() error = %v", err)
	}
	if len(got.Options.EnabledCategories) != 2 || got.Options.EnabledCategories[1] != assessment.CategoryCost {
		t.Errorf("EnabledCategories = %v, want [naming_convention cost]", got.Options.EnabledCategories)
	}
	if len(got.Options.IncludeResourceTypes) != 1 || len(got.Options.ExcludeResourceTypes) != 1 {
		t.Errorf("resource type filters lost: %+v", got.Options)
	}
	if len(got.Options.RequiredTags) != 2 || got.Options.RequiredTags[0] != "owner" {
		t.Errorf("RequiredTags = %v, want [owner cost-center]", got.Options.RequiredTags)
	}

	// The pending listing carries the same options, so resubmitted runs keep
	// their filters.
	pending, err := repo.GetPendingAssessments(ctx)
	if err != nil {
		t.Fatalf("GetPendingAssessments() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	if len(pending[0].Options.RequiredTags) != 2 || len(pending[0].Options.EnabledCategories) != 2 {
		t.Errorf("pending options = %+v, want the stored options", pending[0].Options)
	}
}
