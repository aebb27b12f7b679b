package vote

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"quorum/internal/approval/models"
	id "quorum/pkg/domain"
)

// PostgresVoteStore persists votes in PostgreSQL. The table is append-only;
// consolidation happens at read time in the engine, never in SQL.
type PostgresVoteStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresVoteStore {
	return &PostgresVoteStore{db: db}
}

func (s *PostgresVoteStore) Append(ctx context.Context, vote *models.Vote) error {
	groups, err := json.Marshal(vote.VotedForGroups)
	if err != nil {
		return fmt.Errorf("encode voted_for_groups: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO votes (id, workflow_id, voter_type, voter_id, vote_type, voted_for_groups, reason, cast_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(vote.ID),
		uuid.UUID(vote.WorkflowID),
		string(vote.Voter.EntityType),
		vote.Voter.EntityID,
		string(vote.Type),
		groups,
		vote.Reason,
		vote.CastAt,
	)
	if err != nil {
		return fmt.Errorf("append vote: %w", err)
	}
	return nil
}

func (s *PostgresVoteStore) ListByWorkflow(ctx context.Context, workflowID id.WorkflowID) ([]*models.Vote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow_id, voter_type, voter_id, vote_type, voted_for_groups, reason, cast_at
		FROM votes
		WHERE workflow_id = $1`,
		uuid.UUID(workflowID),
	)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var votes []*models.Vote
	for rows.Next() {
		vote, err := scanVote(rows)
		if err != nil {
			return nil, err
		}
		votes = append(votes, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	return votes, nil
}

func scanVote(rows *sql.Rows) (*models.Vote, error) {
	var (
		vote      models.Vote
		voteID    uuid.UUID
		wfID      uuid.UUID
		voterType string
		voterID   uuid.UUID
		voteType  string
		groupsRaw []byte
	)
	if err := rows.Scan(&voteID, &wfID, &voterType, &voterID, &voteType, &groupsRaw, &vote.Reason, &vote.CastAt); err != nil {
		return nil, fmt.Errorf("scan vote: %w", err)
	}

	vote.ID = id.VoteID(voteID)
	vote.WorkflowID = id.WorkflowID(wfID)
	vote.Voter = id.VoterRef{EntityType: id.EntityType(voterType), EntityID: voterID}
	vote.Type = models.VoteType(voteType)
	if err := json.Unmarshal(groupsRaw, &vote.VotedForGroups); err != nil {
		return nil, fmt.Errorf("decode voted_for_groups: %w", err)
	}
	return &vote, nil
}
