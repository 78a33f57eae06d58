package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/azgovernor/azgovernor/internal/analyzer"
	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/domain/inventory"
	apperrors "github.com/azgovernor/azgovernor/internal/pkg/errors"
	"github.com/azgovernor/azgovernor/internal/pkg/logger"
	"github.com/azgovernor/azgovernor/internal/pkg/metrics"
	"github.com/azgovernor/azgovernor/internal/pkg/validator"
)

// EngineConfig bounds the concurrent execution of one assessment run.
type EngineConfig struct {
	// MaxConcurrentAnalyzers caps how many top-level analyzers run at once.
	MaxConcurrentAnalyzers int
	// CategoryTimeout bounds each top-level analyzer; zero disables the bound.
	CategoryTimeout time.Duration
}

// DefaultEngineConfig returns the default execution bounds.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxConcurrentAnalyzers: 4,
		CategoryTimeout:        2 * time.Minute,
	}
}

// runState tracks one in-flight assessment: its cancel handle and a live
// snapshot served to GetAssessment while the run is still writing results.
type runState struct {
	cancel   context.CancelFunc
	mu       sync.Mutex
	snapshot *assessment.Assessment
}

func (r *runState) update(fn func(a *assessment.Assessment)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.snapshot)
}

func (r *runState) view() *assessment.Assessment {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.snapshot
	return &cp
}

// AssessmentService implements assessment.Service. StartAssessment accepts
// synchronously and executes the analyzer pipeline on a background goroutine;
// the repository sees the run at creation, start, and completion only.
type AssessmentService struct {
	repo        assessment.Repository
	provider    inventory.Provider
	registry    *analyzer.Registry
	analyzerCfg *analyzer.Config
	engineCfg   EngineConfig
	logger      *logger.Logger

	mu      sync.Mutex
	running map[string]*runState
}

// NewAssessmentService creates the assessment orchestrator.
func NewAssessmentService(
	repo assessment.Repository,
	provider inventory.Provider,
	registry *analyzer.Registry,
	analyzerCfg *analyzer.Config,
	engineCfg EngineConfig,
	log *logger.Logger,
) *AssessmentService {
	if engineCfg.MaxConcurrentAnalyzers <= 0 {
		engineCfg.MaxConcurrentAnalyzers = DefaultEngineConfig().MaxConcurrentAnalyzers
	}
	return &AssessmentService{
		repo:        repo,
		provider:    provider,
		registry:    registry,
		analyzerCfg: analyzerCfg,
		engineCfg:   engineCfg,
		logger:      log,
		running:     map[string]*runState{},
	}
}

// StartAssessment validates the request, persists a pending assessment, and
// launches the run asynchronously. The returned ID can be polled immediately.
func (s *AssessmentService) StartAssessment(ctx context.Context, req *assessment.Request) (string, error) {
	if verrs := validator.Validate(req); len(verrs) > 0 {
		return "", apperrors.ValidationError("invalid assessment request", verrs)
	}
	if !req.Type.IsValid() {
		return "", apperrors.ValidationError(fmt.Sprintf("unknown assessment type %q", req.Type), nil)
	}

	// Resolve up front so an impossible category selection fails the request
	// instead of producing an assessment that can never complete.
	nodes, err := s.registry.Resolve(req.Type, req.Options)
	if err != nil {
		return "", apperrors.ValidationError(err.Error(), nil)
	}

	a := &assessment.Assessment{
		ID:              uuid.New().String(),
		CustomerID:      req.CustomerID,
		EnvironmentID:   req.EnvironmentID,
		Type:            req.Type,
		Status:          assessment.StatusPending,
		SubscriptionIDs: req.SubscriptionIDs,
		Options:         req.Options,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.repo.CreateAssessment(ctx, a); err != nil {
		s.logger.ErrorWithErr(err, "Failed to create assessment")
		return "", apperrors.PersistenceError("create assessment", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	state := &runState{cancel: cancel, snapshot: a}
	s.mu.Lock()
	s.running[a.ID] = state
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"assessment_id": a.ID,
		"customer_id":   a.CustomerID,
		"type":          a.Type,
		"subscriptions": len(a.SubscriptionIDs),
	}).Info("Assessment accepted")
	metrics.RecordAssessmentStarted(string(a.Type))

	go s.execute(runCtx, a.ID, req, nodes, state)

	return a.ID, nil
}

// execute drives one assessment run end to end. It owns the status machine:
// every exit path lands the assessment in Completed or Failed.
func (s *AssessmentService) execute(ctx context.Context, id string, req *assessment.Request, nodes []analyzer.Node, state *runState) {
	defer func() {
		state.cancel()
		s.mu.Lock()
		delete(s.running, id)
		s.mu.Unlock()
	}()

	started := time.Now().UTC()
	if err := s.repo.UpdateAssessmentStatus(ctx, id, assessment.StatusPending, assessment.StatusInProgress); err != nil {
		// A concurrent runner won the race for this assessment; stand down.
		s.logger.WithFields(map[string]interface{}{
			"assessment_id": id,
		}).WithError(err).Warn("Assessment already claimed, skipping run")
		return
	}
	state.update(func(a *assessment.Assessment) {
		a.Status = assessment.StatusInProgress
		a.StartedAt = &started
	})

	inv, err := s.provider.FetchInventory(ctx, req.SubscriptionIDs)
	if err != nil {
		s.logger.ErrorWithErr(err, "Inventory collection failed")
		s.fail(id, state, started, fmt.Sprintf("inventory collection failed: %v", err))
		return
	}
	state.update(func(a *assessment.Assessment) { a.ResourcesAnalyzed = inv.Len() })

	opts := analyzer.Options{Request: req.Options, Config: s.analyzerCfg}
	outcomes := s.runNodes(ctx, state, nodes, inv, opts)

	results := map[assessment.Category]*assessment.CategoryResult{}
	var unavailable []assessment.Category
	var entries []analyzer.WeightedScore

	for _, o := range outcomes {
		if o.Err != nil {
			unavailable = append(unavailable, o.Category)
			metrics.RecordCategoryUnavailable(string(o.Category))
			s.logger.WithFields(map[string]interface{}{
				"assessment_id": id,
				"category":      o.Category,
			}).WithError(o.Err).Warn("Category unavailable")
			continue
		}
		results[o.Category] = o.Result
		entries = append(entries, analyzer.WeightedScore{
			Score:  o.Result.Score,
			Weight: s.analyzerCfg.WeightFor(o.Category),
		})
		if o.Result.Score != nil {
			metrics.RecordCategoryScore(string(o.Category), *o.Result.Score)
		}
	}

	if len(results) == 0 {
		s.fail(id, state, started, fmt.Sprintf("all %d analyzers failed", len(nodes)))
		return
	}

	findings := analyzer.NormalizeFindings(id, results)
	completed := time.Now().UTC()

	final := &assessment.Assessment{
		ID:                    id,
		CustomerID:            req.CustomerID,
		EnvironmentID:         req.EnvironmentID,
		Type:                  req.Type,
		Status:                assessment.StatusCompleted,
		SubscriptionIDs:       req.SubscriptionIDs,
		Options:               req.Options,
		OverallScore:          analyzer.Aggregate(entries),
		StartedAt:             &started,
		CompletedAt:           &completed,
		CategoryResults:       results,
		Findings:              findings,
		Recommendations:       analyzer.BuildRecommendations(findings),
		ResourcesAnalyzed:     inv.Len(),
		IssuesFound:           len(findings),
		UnavailableCategories: unavailable,
	}

	// Merge the computed results into the snapshot before attempting the
	// terminal write. A failed assessment still carries whatever category
	// results the run produced.
	state.update(func(a *assessment.Assessment) {
		a.OverallScore = final.OverallScore
		a.CategoryResults = final.CategoryResults
		a.Recommendations = final.Recommendations
		a.UnavailableCategories = final.UnavailableCategories
		a.ResourcesAnalyzed = final.ResourcesAnalyzed
		a.IssuesFound = final.IssuesFound
	})

	if err := s.repo.UpdateAssessmentResult(ctx, final, completed); err != nil {
		s.logger.ErrorWithErr(err, "Failed to persist assessment result")
		s.fail(id, state, started, fmt.Sprintf("persisting results failed: %v", err))
		return
	}
	if len(findings) > 0 {
		if err := s.repo.CreateFindings(ctx, findings); err != nil {
			s.logger.ErrorWithErr(err, "Failed to persist findings")
			s.fail(id, state, started, fmt.Sprintf("persisting findings failed: %v", err))
			return
		}
	}

	state.update(func(a *assessment.Assessment) { *a = *final })
	metrics.RecordAssessmentCompleted(string(req.Type), string(assessment.StatusCompleted), completed.Sub(started))

	s.logger.WithFields(map[string]interface{}{
		"assessment_id":          id,
		"resources_analyzed":     final.ResourcesAnalyzed,
		"issues_found":           final.IssuesFound,
		"unavailable_categories": len(unavailable),
		"duration":               completed.Sub(started).String(),
	}).Info("Assessment completed")
}

// runNodes executes the top-level analyzers under a bounded worker pool and
// joins every outcome before returning. Each outcome is published into the
// live snapshot as it arrives, so polling clients see partial progress and a
// later fatal error still leaves the computed results on the record.
func (s *AssessmentService) runNodes(ctx context.Context, state *runState, nodes []analyzer.Node, inv *inventory.ResourceInventory, opts analyzer.Options) []analyzer.Outcome {
	sem := make(chan struct{}, s.engineCfg.MaxConcurrentAnalyzers)
	out := make(chan analyzer.Outcome, len(nodes))

	var wg sync.WaitGroup
	for _, n := range nodes {
		wg.Add(1)
		go func(n analyzer.Node) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			nodeCtx := ctx
			var cancel context.CancelFunc
			if s.engineCfg.CategoryTimeout > 0 {
				nodeCtx, cancel = context.WithTimeout(ctx, s.engineCfg.CategoryTimeout)
				defer cancel()
			}
			o := analyzer.Run(nodeCtx, n, inv, opts)
			publishOutcome(state, o)
			out <- o
		}(n)
	}
	wg.Wait()
	close(out)

	outcomes := make([]analyzer.Outcome, 0, len(nodes))
	for o := range out {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// publishOutcome merges one analyzer outcome into the live snapshot. The
// category map and unavailable slice are replaced, not mutated, so snapshot
// copies handed out by view() stay safe to read concurrently.
func publishOutcome(state *runState, o analyzer.Outcome) {
	state.update(func(a *assessment.Assessment) {
		if o.Err != nil {
			unavailable := make([]assessment.Category, 0, len(a.UnavailableCategories)+1)
			unavailable = append(unavailable, a.UnavailableCategories...)
			a.UnavailableCategories = append(unavailable, o.Category)
			return
		}
		merged := make(map[assessment.Category]*assessment.CategoryResult, len(a.CategoryResults)+1)
		for k, v := range a.CategoryResults {
			merged[k] = v
		}
		merged[o.Category] = o.Result
		a.CategoryResults = merged
	})
}

// fail lands the assessment in the Failed state from either Pending or
// InProgress and records the reason.
func (s *AssessmentService) fail(id string, state *runState, started time.Time, reason string) {
	completed := time.Now().UTC()
	state.update(func(a *assessment.Assessment) {
		a.Status = assessment.StatusFailed
		// A cancellation reason set earlier wins over the generic failure.
		if a.ErrorMessage == "" {
			a.ErrorMessage = reason
		}
		a.CompletedAt = &completed
	})

	// Best effort with a fresh context so cancellation does not block the
	// terminal status write.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.repo.UpdateAssessmentResult(ctx, state.view(), completed); err != nil {
		s.logger.ErrorWithErr(err, "Failed to record assessment failure")
	}
	metrics.RecordAssessmentCompleted(string(state.view().Type), string(assessment.StatusFailed), completed.Sub(started))
}

// GetAssessment returns the stored assessment, or the live in-memory snapshot
// when the run is still in flight so callers see partial progress.
func (s *AssessmentService) GetAssessment(ctx context.Context, id string) (*assessment.Assessment, error) {
	s.mu.Lock()
	state, ok := s.running[id]
	s.mu.Unlock()
	if ok {
		return state.view(), nil
	}

	a, err := s.repo.GetAssessment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperrors.NotFound("assessment")
	}
	return a, nil
}

// GetPendingAssessments lists assessments awaiting execution.
func (s *AssessmentService) GetPendingAssessments(ctx context.Context) ([]*assessment.Assessment, error) {
	return s.repo.GetPendingAssessments(ctx)
}

// CancelAssessment cancels an in-flight run. The run lands in Failed with a
// cancellation reason; terminal assessments cannot be canceled.
func (s *AssessmentService) CancelAssessment(ctx context.Context, id string) error {
	s.mu.Lock()
	state, ok := s.running[id]
	s.mu.Unlock()
	if !ok {
		a, err := s.repo.GetAssessment(ctx, id)
		if err != nil {
			return err
		}
		if a == nil {
			return apperrors.NotFound("assessment")
		}
		return apperrors.Conflict(fmt.Sprintf("assessment is %s and cannot be canceled", a.Status))
	}

	state.update(func(a *assessment.Assessment) {
		if a.ErrorMessage == "" {
			a.ErrorMessage = "assessment canceled"
		}
	})
	state.cancel()

	s.logger.WithFields(map[string]interface{}{
		"assessment_id": id,
	}).Info("Assessment canceled")
	return nil
}
