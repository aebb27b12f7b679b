package vote

import (
	"context"
	"sync"

	"quorum/internal/approval/models"
	id "quorum/pkg/domain"
)

// InMemoryVoteStore keeps the append-only vote history in memory. Votes are
// copied on the way in and out so callers can never mutate recorded history.
type InMemoryVoteStore struct {
	mu    sync.RWMutex
	votes map[id.WorkflowID][]*models.Vote
}

func New() *InMemoryVoteStore {
	return &InMemoryVoteStore{
		votes: make(map[id.WorkflowID][]*models.Vote),
	}
}

func (s *InMemoryVoteStore) Append(_ context.Context, vote *models.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *vote
	stored.VotedForGroups = append([]id.GroupID(nil), vote.VotedForGroups...)
	s.votes[vote.WorkflowID] = append(s.votes[vote.WorkflowID], &stored)
	return nil
}

func (s *InMemoryVoteStore) ListByWorkflow(_ context.Context, workflowID id.WorkflowID) ([]*models.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.votes[workflowID]
	out := make([]*models.Vote, 0, len(history))
	for _, vote := range history {
		copied := *vote
		copied.VotedForGroups = append([]id.GroupID(nil), vote.VotedForGroups...)
		out = append(out, &copied)
	}
	return out, nil
}
