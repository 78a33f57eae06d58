package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/azgovernor/azgovernor/internal/config"
	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/pkg/logger"
	"github.com/azgovernor/azgovernor/internal/testutil"
)

// stubService records submissions; reads are delegated to the mock repository.
type stubService struct {
	repo     *testutil.MockAssessmentRepository
	started  []*assessment.Request
	startErr error
	pendErr  error
}

func (s *stubService) StartAssessment(ctx context.Context, req *assessment.Request) (string, error) {
	if s.startErr != nil {
		return "", s.startErr
	}
	s.started = append(s.started, req)
	return fmt.Sprintf("resubmitted-%d", len(s.started)), nil
}

func (s *stubService) GetAssessment(ctx context.Context, id string) (*assessment.Assessment, error) {
	return s.repo.GetAssessment(ctx, id)
}

func (s *stubService) GetPendingAssessments(ctx context.Context) ([]*assessment.Assessment, error) {
	if s.pendErr != nil {
		return nil, s.pendErr
	}
	return s.repo.GetPendingAssessments(ctx)
}

func (s *stubService) CancelAssessment(ctx context.Context, id string) error { return nil }

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Format: "json"})
}

func seedPending(repo *testutil.MockAssessmentRepository, id string, age time.Duration) {
	repo.Assessments[id] = &assessment.Assessment{
		ID:              id,
		CustomerID:      "acme",
		EnvironmentID:   "env-prod",
		Type:            assessment.TypeFull,
		Status:          assessment.StatusPending,
		SubscriptionIDs: []string{"sub-1"},
		CreatedAt:       time.Now().UTC().Add(-age),
	}
}

func TestSweeper_ResubmitsStrandedAssessments(t *testing.T) {
	repo := testutil.NewMockAssessmentRepository()
	seedPending(repo, "stale-1", 10*time.Minute)
	seedPending(repo, "fresh-1", time.Second)
	repo.Assessments["stale-1"].Options = assessment.Options{
		EnabledCategories: []assessment.Category{assessment.CategoryNamingConvention},
		RequiredTags:      []string{"owner"},
	}

	svc := &stubService{repo: repo}
	s := NewSweeper(svc, repo, config.WorkerConfig{SweepInterval: time.Minute}, config.AzureConfig{}, testLogger())

	s.sweep(context.Background())

	if len(svc.started) != 1 {
		t.Fatalf("resubmitted = %d, want 1", len(svc.started))
	}
	req := svc.started[0]
	if req.CustomerID != "acme" || req.EnvironmentID != "env-prod" || req.Type != assessment.TypeFull {
		t.Errorf("resubmitted request = %+v, want the stranded row's identity", req)
	}
	if len(req.SubscriptionIDs) != 1 || req.SubscriptionIDs[0] != "sub-1" {
		t.Errorf("SubscriptionIDs = %v, want [sub-1]", req.SubscriptionIDs)
	}
	if len(req.Options.EnabledCategories) != 1 || req.Options.EnabledCategories[0] != assessment.CategoryNamingConvention {
		t.Errorf("Options.EnabledCategories = %v, want the stranded row's categories", req.Options.EnabledCategories)
	}
	if len(req.Options.RequiredTags) != 1 || req.Options.RequiredTags[0] != "owner" {
		t.Errorf("Options.RequiredTags = %v, want [owner]", req.Options.RequiredTags)
	}

	if got := repo.Stored("stale-1"); got.Status != assessment.StatusFailed {
		t.Errorf("stale-1 status = %s, want failed", got.Status)
	}
	if got := repo.Stored("fresh-1"); got.Status != assessment.StatusPending {
		t.Errorf("fresh-1 status = %s, want pending left alone", got.Status)
	}
}

func TestSweeper_LostClaimRace(t *testing.T) {
	repo := testutil.NewMockAssessmentRepository()
	seedPending(repo, "stale-1", 10*time.Minute)
	repo.UpdateStatusError = errors.New("assessment stale-1 is not pending")

	svc := &stubService{repo: repo}
	s := NewSweeper(svc, repo, config.WorkerConfig{SweepInterval: time.Minute}, config.AzureConfig{}, testLogger())

	s.sweep(context.Background())

	if len(svc.started) != 0 {
		t.Errorf("resubmitted = %d, want 0 after losing the claim", len(svc.started))
	}
}

func TestSweeper_ListFailure(t *testing.T) {
	repo := testutil.NewMockAssessmentRepository()
	svc := &stubService{repo: repo, pendErr: errors.New("db locked")}
	s := NewSweeper(svc, repo, config.WorkerConfig{SweepInterval: time.Minute}, config.AzureConfig{}, testLogger())

	// Must not panic or submit anything.
	s.sweep(context.Background())
	if len(svc.started) != 0 {
		t.Errorf("resubmitted = %d, want 0", len(svc.started))
	}
}

func TestSweeper_RunScheduled(t *testing.T) {
	repo := testutil.NewMockAssessmentRepository()
	svc := &stubService{repo: repo}
	cfg := config.WorkerConfig{ScheduleSpec: "0 2 * * *", ScheduleType: "full"}
	azure := config.AzureConfig{CustomerID: "acme", SubscriptionIDs: []string{"sub-1"}}
	s := NewSweeper(svc, repo, cfg, azure, testLogger())

	s.runScheduled(context.Background())

	if len(svc.started) != 1 {
		t.Fatalf("scheduled submissions = %d, want 1", len(svc.started))
	}
	req := svc.started[0]
	if req.Type != assessment.TypeFull || req.CustomerID != "acme" || req.EnvironmentID != "scheduled" {
		t.Errorf("scheduled request = %+v", req)
	}
}

func TestSweeper_StartStop(t *testing.T) {
	repo := testutil.NewMockAssessmentRepository()
	svc := &stubService{repo: repo}
	cfg := config.WorkerConfig{SweepInterval: time.Hour, ScheduleSpec: "@daily", ScheduleType: "full"}
	s := NewSweeper(svc, repo, cfg, config.AzureConfig{}, testLogger())

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()
}

func TestSweeper_StartBadSpec(t *testing.T) {
	repo := testutil.NewMockAssessmentRepository()
	svc := &stubService{repo: repo}
	cfg := config.WorkerConfig{ScheduleSpec: "not a cron spec"}
	s := NewSweeper(svc, repo, cfg, config.AzureConfig{}, testLogger())

	if err := s.Start(context.Background()); err == nil {
		t.Error("Start() error = nil, want cron parse error")
	}
}
