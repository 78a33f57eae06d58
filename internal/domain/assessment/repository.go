package assessment

import (
	"context"
	"time"
)

// Repository is the persistence gateway for assessments. The engine calls it
// at well-defined points (creation, start, final completion) and never
// assumes transactional coupling across two calls.
type Repository interface {
	CreateAssessment(ctx context.Context, a *Assessment) error
	GetAssessment(ctx context.Context, id string) (*Assessment, error)

	// UpdateAssessmentStatus moves an assessment from expectedCurrent to next.
	// It must fail (or report no rows) when the stored status differs from
	// expectedCurrent, so concurrent duplicate runs lose the race safely.
	UpdateAssessmentStatus(ctx context.Context, id string, expectedCurrent, next Status) error

	// UpdateAssessmentResult writes the aggregate fields of a finished run.
	UpdateAssessmentResult(ctx context.Context, a *Assessment, completedAt time.Time) error

	CreateFindings(ctx context.Context, findings []Finding) error

	// GetFindingsByAssessment returns findings ordered by severity then
	// category for determinism.
	GetFindingsByAssessment(ctx context.Context, assessmentID string) ([]Finding, error)

	// GetPendingAssessments lists assessments stuck in Pending, for
	// recovery/sweep use by an external scheduler.
	GetPendingAssessments(ctx context.Context) ([]*Assessment, error)
}
