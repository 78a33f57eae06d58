package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/azgovernor/azgovernor/internal/domain/assessment"
	"github.com/azgovernor/azgovernor/internal/domain/inventory"
)

// MockAssessmentRepository is a map-backed implementation of
// assessment.Repository. Error fields inject failures per operation.
type MockAssessmentRepository struct {
	mu          sync.Mutex
	Assessments map[string]*assessment.Assessment
	Findings    map[string][]assessment.Finding

	CreateError         error
	GetError            error
	UpdateStatusError   error
	UpdateResultError   error
	CreateFindingsError error
}

func NewMockAssessmentRepository() *MockAssessmentRepository {
	return &MockAssessmentRepository{
		Assessments: make(map[string]*assessment.Assessment),
		Findings:    make(map[string][]assessment.Finding),
	}
}

func (m *MockAssessmentRepository) CreateAssessment(ctx context.Context, a *assessment.Assessment) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.Assessments[a.ID] = &cp
	return nil
}

func (m *MockAssessmentRepository) GetAssessment(ctx context.Context, id string) (*assessment.Assessment, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Assessments[id]
	if !ok {
		return nil, fmt.Errorf("assessment not found")
	}
	cp := *a
	return &cp, nil
}

func (m *MockAssessmentRepository) UpdateAssessmentStatus(ctx context.Context, id string, expectedCurrent, next assessment.Status) error {
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Assessments[id]
	if !ok {
		return fmt.Errorf("assessment not found")
	}
	if a.Status != expectedCurrent {
		return fmt.Errorf("assessment is %s, expected %s", a.Status, expectedCurrent)
	}
	a.Status = next
	if next == assessment.StatusInProgress {
		now := time.Now().UTC()
		a.StartedAt = &now
	}
	return nil
}

func (m *MockAssessmentRepository) UpdateAssessmentResult(ctx context.Context, a *assessment.Assessment, completedAt time.Time) error {
	if m.UpdateResultError != nil {
		return m.UpdateResultError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	cp.CompletedAt = &completedAt
	m.Assessments[a.ID] = &cp
	return nil
}

func (m *MockAssessmentRepository) CreateFindings(ctx context.Context, findings []assessment.Finding) error {
	if m.CreateFindingsError != nil {
		return m.CreateFindingsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range findings {
		m.Findings[f.AssessmentID] = append(m.Findings[f.AssessmentID], f)
	}
	return nil
}

func (m *MockAssessmentRepository) GetFindingsByAssessment(ctx context.Context, assessmentID string) ([]assessment.Finding, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]assessment.Finding(nil), m.Findings[assessmentID]...), nil
}

func (m *MockAssessmentRepository) GetPendingAssessments(ctx context.Context) ([]*assessment.Assessment, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*assessment.Assessment
	for _, a := range m.Assessments {
		if a.Status == assessment.StatusPending {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Stored returns a copy of the stored assessment, for assertions.
func (m *MockAssessmentRepository) Stored(id string) *assessment.Assessment {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Assessments[id]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

// MockInventoryProvider returns a fixed inventory or a fixed error.
type MockInventoryProvider struct {
	Inventory  *inventory.ResourceInventory
	FetchError error
	// Delay holds FetchInventory until the context is done when set, to
	// exercise cancellation paths.
	Delay time.Duration
}

func (m *MockInventoryProvider) FetchInventory(ctx context.Context, subscriptionIDs []string) (*inventory.ResourceInventory, error) {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if m.FetchError != nil {
		return nil, m.FetchError
	}
	if m.Inventory != nil {
		return m.Inventory, nil
	}
	return &inventory.ResourceInventory{
		SubscriptionIDs: subscriptionIDs,
		CollectedAt:     time.Now().UTC(),
	}, nil
}

// MockDirectoryProvider returns a fixed directory snapshot or error.
type MockDirectoryProvider struct {
	Snapshot   *inventory.DirectorySnapshot
	FetchError error
}

func (m *MockDirectoryProvider) FetchDirectory(ctx context.Context) (*inventory.DirectorySnapshot, error) {
	if m.FetchError != nil {
		return nil, m.FetchError
	}
	if m.Snapshot != nil {
		return m.Snapshot, nil
	}
	return &inventory.DirectorySnapshot{CollectedAt: time.Now().UTC()}, nil
}
