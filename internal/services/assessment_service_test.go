package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/azgovernor/azgovernor/internal/analyzer"
	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/domain/inventory"
	"github.com/azgovernor/azgovernor/internal/pkg/logger"
	"github.com/azgovernor/azgovernor/internal/testutil"
)

func newTestService(repo *testutil.MockAssessmentRepository, inv *testutil.MockInventoryProvider, dir *testutil.MockDirectoryProvider) *AssessmentService {
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	registry := analyzer.NewRegistry(dir, 0)
	return NewAssessmentService(repo, inv, registry, analyzer.DefaultConfig(), DefaultEngineConfig(), log)
}

func validRequest(t assessment.Type) *assessment.Request {
	return &assessment.Request{
		EnvironmentID:   "env-prod",
		CustomerID:      "acme",
		SubscriptionIDs: []string{"sub-1"},
		Type:            t,
	}
}

// waitForTerminal polls the repository until the assessment reaches a
// terminal status.
func waitForTerminal(t *testing.T, repo *testutil.MockAssessmentRepository, id string) *assessment.Assessment {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if a := repo.Stored(id); a != nil && a.Status.IsTerminal() {
			return a
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("assessment %s never reached a terminal status", id)
	return nil
}

func TestAssessmentService_StartAssessment_Completes(t *testing.T) {
	repo := testutil.NewMockAssessmentRepository()
	inv := &testutil.MockInventoryProvider{
		Inventory: testutil.Inventory(
			testutil.Resource("vm-web-01", "Microsoft.Compute/virtualMachines"),
			testutil.Resource("vm-web-02", "Microsoft.Compute/virtualMachines"),
			testutil.Resource("WebServer", "Microsoft.Compute/virtualMachines"),
		),
	}
	svc := newTestService(repo, inv, &testutil.MockDirectoryProvider{})

	id, err := svc.StartAssessment(context.Background(), validRequest(assessment.TypeNamingConvention))
	if err != nil {
		t.Fatalf("StartAssessment() error = %v", err)
	}
	if id == "" {
		t.Fatal("StartAssessment() returned empty id")
	}

	a := waitForTerminal(t, repo, id)
	if a.Status != assessment.StatusCompleted {
		t.Fatalf("status = %s, want completed (error: %s)", a.Status, a.ErrorMessage)
	}
	if a.OverallScore == nil {
		t.Fatal("overall score is nil, want a value")
	}
	if a.ResourcesAnalyzed != 3 {
		t.Errorf("ResourcesAnalyzed = %d, want 3", a.ResourcesAnalyzed)
	}
	if a.StartedAt == nil || a.CompletedAt == nil {
		t.Error("StartedAt/CompletedAt not recorded")
	}
	if len(a.CategoryResults) != 1 {
		t.Errorf("CategoryResults = %d, want 1", len(a.CategoryResults))
	}

	// The deviant name produced findings and they were persisted.
	findings, err := repo.GetFindingsByAssessment(context.Background(), id)
	if err != nil {
		t.Fatalf("GetFindingsByAssessment() error = %v", err)
	}
	if len(findings) == 0 {
		t.Error("no findings persisted, want at least one")
	}
}

func TestAssessmentService_StartAssessment_Validation(t *testing.T) {
	svc := newTestService(testutil.NewMockAssessmentRepository(), &testutil.MockInventoryProvider{}, &testutil.MockDirectoryProvider{})

	tests := []struct {
		name string
		req  *assessment.Request
	}{
		{
			name: "missing subscriptions",
			req: &assessment.Request{
				EnvironmentID: "env", CustomerID: "acme", Type: assessment.TypeFull,
			},
		},
		{
			name: "missing customer",
			req: &assessment.Request{
				EnvironmentID: "env", SubscriptionIDs: []string{"sub-1"}, Type: assessment.TypeFull,
			},
		},
		{
			name: "unknown type",
			req: &assessment.Request{
				EnvironmentID: "env", CustomerID: "acme", SubscriptionIDs: []string{"sub-1"}, Type: "bogus",
			},
		},
		{
			name: "no overlapping categories",
			req: &assessment.Request{
				EnvironmentID: "env", CustomerID: "acme", SubscriptionIDs: []string{"sub-1"},
				Type:    assessment.TypeNamingConvention,
				Options: assessment.Options{EnabledCategories: []assessment.Category{assessment.CategoryRBAC}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.StartAssessment(context.Background(), tt.req); err == nil {
				t.Error("StartAssessment() error = nil, want validation error")
			}
		})
	}
}

func TestAssessmentService_InventoryFailure(t *testing.T) {
	repo := testutil.NewMockAssessmentRepository()
	inv := &testutil.MockInventoryProvider{FetchError: errors.New("arm throttled")}
	svc := newTestService(repo, inv, &testutil.MockDirectoryProvider{})

	id, err := svc.StartAssessment(context.Background(), validRequest(assessment.TypeFull))
	if err != nil {
		t.Fatalf("StartAssessment() error = %v", err)
	}

	a := waitForTerminal(t, repo, id)
	if a.Status != assessment.StatusFailed {
		t.Fatalf("status = %s, want failed", a.Status)
	}
	if !strings.Contains(a.ErrorMessage, "inventory collection failed") {
		t.Errorf("error message = %q, want inventory failure reason", a.ErrorMessage)
	}
	if len(a.CategoryResults) != 0 {
		t.Errorf("CategoryResults = %d, want 0 when the inventory never arrived", len(a.CategoryResults))
	}
}

func TestAssessmentService_PartialAnalyzerFailure(t *testing.T) {
	repo := testutil.NewMockAssessmentRepository()
	inv := &testutil.MockInventoryProvider{
		Inventory: testutil.Inventory(
			testutil.Resource("vm-web-01", "Microsoft.Compute/virtualMachines"),
		),
	}
	// Directory down: the identity composite fails, everything else runs.
	dir := &testutil.MockDirectoryProvider{FetchError: errors.New("graph unavailable")}
	svc := newTestService(repo, inv, dir)

	id, err := svc.StartAssessment(context.Background(), validRequest(assessment.TypeFull))
	if err != nil {
		t.Fatalf("StartAssessment() error = %v", err)
	}

	a := waitForTerminal(t, repo, id)
	if a.Status != assessment.StatusCompleted {
		t.Fatalf("status = %s, want completed despite the identity failure (error: %s)", a.Status, a.ErrorMessage)
	}

	found := false
	for _, c := range a.UnavailableCategories {
		if c == assessment.CategoryIdentity {
			found = true
		}
	}
	if !found {
		t.Errorf("UnavailableCategories = %v, want identity listed", a.UnavailableCategories)
	}
	if _, ok := a.CategoryResults[assessment.CategoryIdentity]; ok {
		t.Error("identity present in CategoryResults despite failing")
	}
	if a.OverallScore == nil {
		t.Error("overall score is nil, want a score from the surviving categories")
	}
}

func TestAssessmentService_AllAnalyzersFail(t *testing.T) {
	repo := testutil.NewMockAssessmentRepository()
	inv := &testutil.MockInventoryProvider{Inventory: testutil.Inventory()}
	dir := &testutil.MockDirectoryProvider{FetchError: errors.New("graph unavailable")}
	svc := newTestService(repo, inv, dir)

	id, err := svc.StartAssessment(context.Background(), validRequest(assessment.TypeIdentityAccess))
	if err != nil {
		t.Fatalf("StartAssessment() error = %v", err)
	}

	a := waitForTerminal(t, repo, id)
	if a.Status != assessment.StatusFailed {
		t.Fatalf("status = %s, want failed when every analyzer fails", a.Status)
	}
	if !strings.Contains(a.ErrorMessage, "analyzers failed") {
		t.Errorf("error message = %q, want all-analyzers-failed reason", a.ErrorMessage)
	}
}

func TestAssessmentService_GetAssessment_LiveSnapshot(t *testing.T) {
	repo := testutil.NewMockAssessmentRepository()
	inv := &testutil.MockInventoryProvider{Delay: 10 * time.Second}
	svc := newTestService(repo, inv, &testutil.MockDirectoryProvider{})

	id, err := svc.StartAssessment(context.Background(), validRequest(assessment.TypeNamingConvention))
	if err != nil {
		t.Fatalf("StartAssessment() error = %v", err)
	}
	defer svc.CancelAssessment(context.Background(), id)

	// While the run blocks in inventory collection the live snapshot is
	// served, not the stored row.
	deadline := time.Now().Add(2 * time.Second)
	for {
		a, err := svc.GetAssessment(context.Background(), id)
		if err != nil {
			t.Fatalf("GetAssessment() error = %v", err)
		}
		if a.Status == assessment.StatusInProgress {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("status = %s, never reached in_progress", a.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAssessmentService_Cancel(t *testing.T) {
	repo := testutil.NewMockAssessmentRepository()
	inv := &testutil.MockInventoryProvider{Delay: 10 * time.Second}
	svc := newTestService(repo, inv, &testutil.MockDirectoryProvider{})

	id, err := svc.StartAssessment(context.Background(), validRequest(assessment.TypeNamingConvention))
	if err != nil {
		t.Fatalf("StartAssessment() error = %v", err)
	}

	if err := svc.CancelAssessment(context.Background(), id); err != nil {
		t.Fatalf("CancelAssessment() error = %v", err)
	}

	a := waitForTerminal(t, repo, id)
	if a.Status != assessment.StatusFailed {
		t.Fatalf("status = %s, want failed after cancel", a.Status)
	}
	if a.ErrorMessage != "assessment canceled" {
		t.Errorf("error message = %q, want the cancellation reason preserved", a.ErrorMessage)
	}
}

func TestAssessmentService_CancelTerminal(t *testing.T) {
	repo := testutil.NewMockAssessmentRepository()
	inv := &testutil.MockInventoryProvider{Inventory: testutil.Inventory(
		testutil.Resource("vm-web-01", "Microsoft.Compute/virtualMachines"),
	)}
	svc := newTestService(repo, inv, &testutil.MockDirectoryProvider{})

	id, err := svc.StartAssessment(context.Background(), validRequest(assessment.TypeNamingConvention))
	if err != nil {
		t.Fatalf("StartAssessment() error = %v", err)
	}
	waitForTerminal(t, repo, id)

	// The run may still be unwinding; retry until the in-memory state is gone.
	deadline := time.Now().Add(2 * time.Second)
	for {
		err = svc.CancelAssessment(context.Background(), id)
		if err != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("CancelAssessment() error = nil, want conflict for a terminal assessment")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAssessmentService_StatusRaceLost(t *testing.T) {
	repo := testutil.NewMockAssessmentRepository()
	inv := &testutil.MockInventoryProvider{Inventory: testutil.Inventory()}
	svc := newTestService(repo, inv, &testutil.MockDirectoryProvider{})

	// Simulate another runner claiming every assessment first.
	repo.UpdateStatusError = errors.New("assessment is in_progress, expected pending")

	id, err := svc.StartAssessment(context.Background(), validRequest(assessment.TypeNamingConvention))
	if err != nil {
		t.Fatalf("StartAssessment() error = %v", err)
	}

	// The losing runner stands down without touching the stored row.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, running := func() (struct{}, bool) {
			svc.mu.Lock()
			defer svc.mu.Unlock()
			_, ok := svc.running[id]
			return struct{}{}, ok
		}(); !running {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if a := repo.Stored(id); a.Status != assessment.StatusPending {
		t.Errorf("status = %s, want pending left untouched by the losing runner", a.Status)
	}
}

// completedWriteRepo rejects the terminal Completed write while accepting
// every other update, forcing the run onto the failure path after its
// results were computed.
type completedWriteRepo struct {
	*testutil.MockAssessmentRepository
}

func (r *completedWriteRepo) UpdateAssessmentResult(ctx context.Context, a *assessment.Assessment, completedAt time.Time) error {
	if a.Status == assessment.StatusCompleted {
		return errors.New("disk full")
	}
	return r.MockAssessmentRepository.UpdateAssessmentResult(ctx, a, completedAt)
}

func TestAssessmentService_ResultWriteFailureKeepsPartialResults(t *testing.T) {
	inner := testutil.NewMockAssessmentRepository()
	repo := &completedWriteRepo{MockAssessmentRepository: inner}
	inv := &testutil.MockInventoryProvider{Inventory: testutil.Inventory(
		testutil.Resource("vm-web-01", "Microsoft.Compute/virtualMachines"),
		testutil.Resource("vm-web-02", "Microsoft.Compute/virtualMachines"),
	)}
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	registry := analyzer.NewRegistry(&testutil.MockDirectoryProvider{}, 0)
	svc := NewAssessmentService(repo, inv, registry, analyzer.DefaultConfig(), DefaultEngineConfig(), log)

	id, err := svc.StartAssessment(context.Background(), validRequest(assessment.TypeNamingConvention))
	if err != nil {
		t.Fatalf("StartAssessment() error = %v", err)
	}

	a := waitForTerminal(t, inner, id)
	if a.Status != assessment.StatusFailed {
		t.Fatalf("status = %s, want failed after the result write was rejected", a.Status)
	}
	if !strings.Contains(a.ErrorMessage, "persisting results failed") {
		t.Errorf("error message = %q, want the persistence failure reason", a.ErrorMessage)
	}

	// The failed record still carries what the run computed.
	cr, ok := a.CategoryResults[assessment.CategoryNamingConvention]
	if !ok {
		t.Fatalf("CategoryResults = %v, want the computed naming result kept", a.CategoryResults)
	}
	if cr.Score == nil {
		t.Error("naming result lost its score on the failure path")
	}
	if a.OverallScore == nil {
		t.Error("overall score dropped on the failure path")
	}
	if a.ResourcesAnalyzed != 2 {
		t.Errorf("ResourcesAnalyzed = %d, want 2", a.ResourcesAnalyzed)
	}
}

// gateNode is a controllable analyzer: it blocks on release when set.
type gateNode struct {
	category assessment.Category
	score    float64
	fail     bool
	release  chan struct{}
}

func (g *gateNode) Category() assessment.Category { return g.category }

func (g *gateNode) Analyze(ctx context.Context, inv *inventory.ResourceInventory, opts analyzer.Options) (*assessment.CategoryResult, error) {
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.fail {
		return nil, errors.New("sub-check dependency unavailable")
	}
	score := g.score
	return &assessment.CategoryResult{Category: g.category, Score: &score}, nil
}

func TestRunNodes_PublishesResultsAsTheyArrive(t *testing.T) {
	svc := newTestService(testutil.NewMockAssessmentRepository(), &testutil.MockInventoryProvider{}, &testutil.MockDirectoryProvider{})
	state := &runState{
		cancel:   func() {},
		snapshot: &assessment.Assessment{ID: "a-1", Status: assessment.StatusInProgress},
	}

	release := make(chan struct{})
	nodes := []analyzer.Node{
		&gateNode{category: assessment.CategoryNamingConvention, score: 90},
		&gateNode{category: assessment.CategoryCost, fail: true},
		&gateNode{category: assessment.CategoryTagCoverage, score: 70, release: release},
	}

	done := make(chan []analyzer.Outcome, 1)
	go func() {
		done <- svc.runNodes(context.Background(), state, nodes, testutil.Inventory(), analyzer.Options{Config: analyzer.DefaultConfig()})
	}()

	// The naming result and the cost failure surface while tag coverage is
	// still blocked.
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := state.view()
		_, haveNaming := snap.CategoryResults[assessment.CategoryNamingConvention]
		if haveNaming && len(snap.UnavailableCategories) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("partial results never published: %+v", snap)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := state.view().CategoryResults[assessment.CategoryTagCoverage]; ok {
		t.Fatal("tag coverage published before its analyzer finished")
	}

	close(release)
	outcomes := <-done
	if len(outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(outcomes))
	}
	snap := state.view()
	if _, ok := snap.CategoryResults[assessment.CategoryTagCoverage]; !ok {
		t.Error("tag coverage result missing from the snapshot after the join")
	}
	if len(snap.UnavailableCategories) != 1 || snap.UnavailableCategories[0] != assessment.CategoryCost {
		t.Errorf("UnavailableCategories = %v, want [cost]", snap.UnavailableCategories)
	}
}
