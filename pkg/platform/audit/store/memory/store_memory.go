// Package memory provides an in-memory audit sink for tests and local runs.
package memory

import (
	"context"
	"sync"

	"quorum/pkg/platform/audit"
	id "quorum/pkg/domain"
)

// InMemoryStore keeps audit events in a slice. Not for production use.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Write appends an event.
func (s *InMemoryStore) Write(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns all recorded events in emission order.
func (s *InMemoryStore) List(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out, nil
}

// ListByWorkflow returns events for one workflow in emission order.
func (s *InMemoryStore) ListByWorkflow(_ context.Context, workflowID id.WorkflowID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.WorkflowID == workflowID {
			out = append(out, e)
		}
	}
	return out, nil
}
