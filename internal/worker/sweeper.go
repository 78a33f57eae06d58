package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/azgovernor/azgovernor/internal/config"
	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/pkg/logger"
)

// Sweeper recovers assessments left in pending after a crash or restart and
// optionally submits scheduled assessments on a cron spec.
type Sweeper struct {
	service  assessment.Service
	repo     assessment.Repository
	cfg      config.WorkerConfig
	azure    config.AzureConfig
	logger   *logger.Logger
	cron     *cron.Cron
	stopping chan struct{}
}

// NewSweeper creates the background worker. Start must be called to run it.
func NewSweeper(svc assessment.Service, repo assessment.Repository, cfg config.WorkerConfig, azure config.AzureConfig, log *logger.Logger) *Sweeper {
	return &Sweeper{
		service:  svc,
		repo:     repo,
		cfg:      cfg,
		azure:    azure,
		logger:   log,
		stopping: make(chan struct{}),
	}
}

// Start launches the sweep loop and, when a schedule spec is configured, the
// cron scheduler. It returns immediately.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.cfg.ScheduleSpec != "" {
		s.cron = cron.New()
		_, err := s.cron.AddFunc(s.cfg.ScheduleSpec, func() {
			s.runScheduled(ctx)
		})
		if err != nil {
			return err
		}
		s.cron.Start()
		s.logger.WithFields(map[string]interface{}{
			"spec": s.cfg.ScheduleSpec,
			"type": s.cfg.ScheduleType,
		}).Info("Scheduled assessments enabled")
	}

	go s.sweepLoop(ctx)
	return nil
}

// Stop halts the sweep loop and waits for any scheduled job in flight.
func (s *Sweeper) Stop() {
	close(s.stopping)
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Sweeper) sweepLoop(ctx context.Context) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopping:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep resubmits assessments stranded in pending. A pending row normally
// transitions to in_progress within milliseconds of creation, so one older
// than the sweep interval means the process died before its runner started.
// The stranded row is marked failed and a fresh run takes its place.
func (s *Sweeper) sweep(ctx context.Context) {
	pending, err := s.service.GetPendingAssessments(ctx)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to list pending assessments")
		return
	}

	cutoff := time.Now().UTC().Add(-s.staleAfter())
	for _, a := range pending {
		if a.CreatedAt.After(cutoff) {
			continue
		}

		if err := s.repo.UpdateAssessmentStatus(ctx, a.ID, assessment.StatusPending, assessment.StatusFailed); err != nil {
			// Lost the race: a runner picked it up after all.
			s.logger.WithFields(map[string]interface{}{
				"assessment_id": a.ID,
			}).WithError(err).Warn("Stranded assessment no longer pending")
			continue
		}

		req := &assessment.Request{
			EnvironmentID:   a.EnvironmentID,
			CustomerID:      a.CustomerID,
			SubscriptionIDs: a.SubscriptionIDs,
			Type:            a.Type,
			Options:         a.Options,
		}
		id, err := s.service.StartAssessment(ctx, req)
		if err != nil {
			s.logger.WithFields(map[string]interface{}{
				"stranded_id": a.ID,
			}).WithError(err).Error("Failed to resubmit stranded assessment")
			continue
		}
		s.logger.WithFields(map[string]interface{}{
			"stranded_id": a.ID,
			"new_id":      id,
		}).Info("Resubmitted stranded assessment")
	}
}

func (s *Sweeper) staleAfter() time.Duration {
	if s.cfg.SweepInterval > 0 {
		return s.cfg.SweepInterval
	}
	return time.Minute
}

func (s *Sweeper) runScheduled(ctx context.Context) {
	req := &assessment.Request{
		EnvironmentID:   "scheduled",
		CustomerID:      s.azure.CustomerID,
		SubscriptionIDs: s.azure.SubscriptionIDs,
		Type:            assessment.Type(s.cfg.ScheduleType),
	}
	id, err := s.service.StartAssessment(ctx, req)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to start scheduled assessment")
		return
	}
	s.logger.WithFields(map[string]interface{}{
		"assessment_id": id,
		"type":          s.cfg.ScheduleType,
	}).Info("Scheduled assessment started")
}
