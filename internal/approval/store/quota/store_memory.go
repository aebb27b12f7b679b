package quota

import (
	"context"
	"sync"

	"quorum/internal/approval/models"
	"quorum/pkg/platform/sentinel"
)

// InMemoryQuotaStore keeps quota rows in memory with version-guarded limit
// updates.
type InMemoryQuotaStore struct {
	mu     sync.RWMutex
	quotas map[models.QuotaID]*models.Quota
}

func New() *InMemoryQuotaStore {
	return &InMemoryQuotaStore{
		quotas: make(map[models.QuotaID]*models.Quota),
	}
}

// Seed installs a quota row at version 1, replacing any existing row.
// Intended for wiring and tests; production rows come from storage.
func (s *InMemoryQuotaStore) Seed(quotaID models.QuotaID, limit int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotas[quotaID] = &models.Quota{ID: quotaID, Limit: limit, Version: 1}
}

func (s *InMemoryQuotaStore) Get(_ context.Context, quotaID models.QuotaID) (*models.Quota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quota, exists := s.quotas[quotaID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	copied := *quota
	return &copied, nil
}

func (s *InMemoryQuotaStore) UpdateLimit(_ context.Context, quota *models.Quota) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.quotas[quota.ID]
	if !exists {
		return sentinel.ErrNotFound
	}
	if stored.Version != quota.Version {
		return sentinel.ErrVersionMismatch
	}

	quota.Version++
	copied := *quota
	s.quotas[quota.ID] = &copied
	return nil
}

// InMemoryUsageReader serves usage counts from a fixed map. Production usage
// comes from counting rows in storage; this implementation backs unit tests
// and local runs.
type InMemoryUsageReader struct {
	mu    sync.RWMutex
	usage map[usageKey]int64
}

type usageKey struct {
	quotaID  models.QuotaID
	targetID string
}

func NewUsageReader() *InMemoryUsageReader {
	return &InMemoryUsageReader{
		usage: make(map[usageKey]int64),
	}
}

// SetUsage pins the usage count for a quota/target pair.
func (r *InMemoryUsageReader) SetUsage(quotaID models.QuotaID, targetID string, count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usage[usageKey{quotaID, targetID}] = count
}

func (r *InMemoryUsageReader) CountUsage(_ context.Context, quotaID models.QuotaID, targetID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.usage[usageKey{quotaID, targetID}], nil
}
