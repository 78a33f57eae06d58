package client

import (
	"context"
	"fmt"
	"time"
)

// AssessmentService provides access to the assessment API
type AssessmentService struct {
	client *Client
}

// Start submits a new assessment and returns its ID
func (s *AssessmentService) Start(ctx context.Context, req *StartAssessmentRequest) (*StartAssessmentResponse, error) {
	var resp StartAssessmentResponse
	if err := s.client.doRequest(ctx, "POST", "/api/v1/assessments", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Get retrieves one assessment by ID
func (s *AssessmentService) Get(ctx context.Context, id string) (*Assessment, error) {
	var a Assessment
	if err := s.client.doRequest(ctx, "GET", "/api/v1/assessments/"+id, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Findings retrieves the findings of an assessment ordered by severity
func (s *AssessmentService) Findings(ctx context.Context, id string) ([]Finding, error) {
	var findings []Finding
	if err := s.client.doRequest(ctx, "GET", "/api/v1/assessments/"+id+"/findings", nil, &findings); err != nil {
		return nil, err
	}
	return findings, nil
}

// Pending lists assessments awaiting execution
func (s *AssessmentService) Pending(ctx context.Context) ([]Assessment, error) {
	var pending []Assessment
	if err := s.client.doRequest(ctx, "GET", "/api/v1/assessments/pending", nil, &pending); err != nil {
		return nil, err
	}
	return pending, nil
}

// Cancel cancels an in-flight assessment
func (s *AssessmentService) Cancel(ctx context.Context, id string) error {
	return s.client.doRequest(ctx, "POST", "/api/v1/assessments/"+id+"/cancel", nil, nil)
}

// Wait polls until the assessment reaches a terminal state or the context is
// canceled.
func (s *AssessmentService) Wait(ctx context.Context, id string, interval time.Duration) (*Assessment, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if a.Status == "completed" || a.Status == "failed" {
			return a, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for assessment %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}
