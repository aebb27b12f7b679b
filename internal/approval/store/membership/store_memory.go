package membership

import (
	"context"
	"sync"

	"quorum/internal/approval/models"
	id "quorum/pkg/domain"
)

// InMemoryMembershipStore holds group membership as normalized voter keys.
// Snapshot returns entries only for groups that exist, so callers can use a
// missing entry to detect a dangling group reference.
type InMemoryMembershipStore struct {
	mu     sync.RWMutex
	groups map[id.GroupID]map[string]bool
}

func New() *InMemoryMembershipStore {
	return &InMemoryMembershipStore{
		groups: make(map[id.GroupID]map[string]bool),
	}
}

// PutGroup replaces the member set of a group. An empty member list still
// creates the group.
func (s *InMemoryMembershipStore) PutGroup(groupID id.GroupID, voterKeys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := make(map[string]bool, len(voterKeys))
	for _, key := range voterKeys {
		members[key] = true
	}
	s.groups[groupID] = members
}

// RemoveGroup deletes a group entirely.
func (s *InMemoryMembershipStore) RemoveGroup(groupID id.GroupID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, groupID)
}

func (s *InMemoryMembershipStore) Snapshot(_ context.Context, groupIDs []id.GroupID) (models.MembershipSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(models.MembershipSnapshot, len(groupIDs))
	for _, groupID := range groupIDs {
		members, exists := s.groups[groupID]
		if !exists {
			continue
		}
		copied := make(map[string]bool, len(members))
		for key := range members {
			copied[key] = true
		}
		snapshot[groupID] = copied
	}
	return snapshot, nil
}
