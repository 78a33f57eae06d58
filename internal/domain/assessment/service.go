package assessment

import (
	"context"
)

// Service is the assessment orchestration surface exposed to the API layer.
// StartAssessment accepts synchronously and completes asynchronously; callers
// poll GetAssessment for progress.
type Service interface {
	StartAssessment(ctx context.Context, req *Request) (string, error)
	GetAssessment(ctx context.Context, id string) (*Assessment, error)
	GetPendingAssessments(ctx context.Context) ([]*Assessment, error)
	CancelAssessment(ctx context.Context, id string) error
}
