package workflow

import (
	"context"
	"sync"
	"time"

	"quorum/internal/approval/models"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

// InMemoryWorkflowStore keeps workflows in memory with the same
// compare-and-swap semantics the postgres store enforces: UpdateStatus
// commits only when the caller's version matches the stored one.
type InMemoryWorkflowStore struct {
	mu        sync.RWMutex
	workflows map[id.WorkflowID]*models.Workflow
}

func New() *InMemoryWorkflowStore {
	return &InMemoryWorkflowStore{
		workflows: make(map[id.WorkflowID]*models.Workflow),
	}
}

func (s *InMemoryWorkflowStore) Get(_ context.Context, workflowID id.WorkflowID) (*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workflow, exists := s.workflows[workflowID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	copied := *workflow
	return &copied, nil
}

func (s *InMemoryWorkflowStore) Create(_ context.Context, workflow *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.workflows[workflow.ID]; exists {
		return sentinel.ErrInvalidState
	}
	copied := *workflow
	s.workflows[workflow.ID] = &copied
	return nil
}

func (s *InMemoryWorkflowStore) UpdateStatus(_ context.Context, workflow *models.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.workflows[workflow.ID]
	if !exists {
		return sentinel.ErrNotFound
	}
	if stored.Version != workflow.Version {
		return sentinel.ErrVersionMismatch
	}

	workflow.Version++
	copied := *workflow
	s.workflows[workflow.ID] = &copied
	return nil
}

func (s *InMemoryWorkflowStore) ListPendingByTemplate(_ context.Context, templateID id.TemplateID) ([]*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Workflow
	for _, workflow := range s.workflows {
		if workflow.TemplateID == templateID && workflow.Status == models.StatusPending {
			copied := *workflow
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *InMemoryWorkflowStore) ListDuePending(_ context.Context, now time.Time) ([]*models.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Workflow
	for _, workflow := range s.workflows {
		if workflow.Status == models.StatusPending && workflow.IsExpiredAt(now) {
			copied := *workflow
			out = append(out, &copied)
		}
	}
	return out, nil
}
