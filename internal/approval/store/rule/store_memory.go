package rule

import (
	"context"
	"sync"

	"quorum/internal/approval/models"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

// InMemoryRuleStore keeps rule trees in memory, keyed by template. Trees are
// stored in their encoded form so reads decode a private copy, matching the
// postgres store's behaviour.
type InMemoryRuleStore struct {
	mu    sync.RWMutex
	rules map[id.TemplateID][]byte
}

func New() *InMemoryRuleStore {
	return &InMemoryRuleStore{
		rules: make(map[id.TemplateID][]byte),
	}
}

func (s *InMemoryRuleStore) GetByTemplate(_ context.Context, templateID id.TemplateID) (*models.ApprovalRule, error) {
	s.mu.RLock()
	raw, exists := s.rules[templateID]
	s.mu.RUnlock()

	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return models.ParseRule(raw)
}

func (s *InMemoryRuleStore) Save(_ context.Context, templateID id.TemplateID, rule *models.ApprovalRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	raw, err := rule.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[templateID] = raw
	return nil
}
