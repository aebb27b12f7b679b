package models

import (
	"time"

	"github.com/google/uuid"

	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// VoteType is the action a voter takes against a workflow.
type VoteType string

const (
	VoteTypeApprove  VoteType = "APPROVE"
	VoteTypeVeto     VoteType = "VETO"
	VoteTypeWithdraw VoteType = "WITHDRAW"
)

var validVoteTypes = map[VoteType]bool{
	VoteTypeApprove:  true,
	VoteTypeVeto:     true,
	VoteTypeWithdraw: true,
}

// IsValid checks if the vote type is one of the supported values.
func (t VoteType) IsValid() bool {
	return validVoteTypes[t]
}

func (t VoteType) String() string {
	return string(t)
}

// MaxReasonLength bounds the free-text reason attached to a vote.
const MaxReasonLength = 1024

// Vote is an append-only audit event: once created it is never mutated or
// deleted. Consolidation is a read-time projection over the full history.
//
// Invariants:
//   - ID, WorkflowID are valid non-nil UUIDs
//   - Voter is a valid VoterRef
//   - VotedForGroups is present and non-empty only when Type is APPROVE
//   - Reason is at most MaxReasonLength characters
type Vote struct {
	ID             id.VoteID     `json:"id"`
	WorkflowID     id.WorkflowID `json:"workflow_id"`
	Voter          id.VoterRef   `json:"voter"`
	Type           VoteType      `json:"type"`
	VotedForGroups []id.GroupID  `json:"voted_for_groups,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	CastAt         time.Time     `json:"cast_at"`
}

// NewVoteInput is the raw, untrusted input for constructing a Vote. Exactly
// one of UserID/AgentID identifies the voter.
type NewVoteInput struct {
	WorkflowID     string
	UserID         string
	AgentID        string
	Type           VoteType
	VotedForGroups []string
	Reason         string
}

// NewVote validates raw input and constructs a fully-populated Vote with a
// fresh id and the supplied timestamp. Pure computation, no I/O; group
// existence is the caller's concern (it requires a repository read).
//
// Validation order is fixed so the first failure is deterministic:
//  1. workflow id               -> invalid_workflow_id
//  2. voter entity presence     -> missing_voter_entity / conflicting_voter_entities
//  3. voter id / type           -> invalid_voter_id / invalid_voter_type
//  4. reason length             -> reason_too_long
//  5. APPROVE group list        -> voted_for_groups_required / invalid_group_id
func NewVote(input NewVoteInput, now time.Time) (*Vote, error) {
	workflowID, err := id.ParseWorkflowID(input.WorkflowID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid_workflow_id")
	}

	voter, err := resolveVoter(input.UserID, input.AgentID)
	if err != nil {
		return nil, err
	}

	if !input.Type.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid_vote_type")
	}

	if len(input.Reason) > MaxReasonLength {
		return nil, dErrors.New(dErrors.CodeValidation, "reason_too_long")
	}

	groups, err := resolveVotedForGroups(input.Type, input.VotedForGroups)
	if err != nil {
		return nil, err
	}

	return &Vote{
		ID:             id.NewVoteID(),
		WorkflowID:     workflowID,
		Voter:          voter,
		Type:           input.Type,
		VotedForGroups: groups,
		Reason:         input.Reason,
		CastAt:         now,
	}, nil
}

// resolveVoter enforces that exactly one voter entity is supplied and that it
// parses as a valid reference.
func resolveVoter(userID, agentID string) (id.VoterRef, error) {
	switch {
	case userID == "" && agentID == "":
		return id.VoterRef{}, dErrors.New(dErrors.CodeValidation, "missing_voter_entity")
	case userID != "" && agentID != "":
		return id.VoterRef{}, dErrors.New(dErrors.CodeValidation, "conflicting_voter_entities")
	case userID != "":
		ref, err := id.NewVoterRef(string(id.EntityTypeUser), userID)
		if err != nil {
			return id.VoterRef{}, dErrors.New(dErrors.CodeValidation, "invalid_voter_id")
		}
		return ref, nil
	default:
		ref, err := id.NewVoterRef(string(id.EntityTypeAgent), agentID)
		if err != nil {
			return id.VoterRef{}, dErrors.New(dErrors.CodeValidation, "invalid_voter_id")
		}
		return ref, nil
	}
}

// resolveVotedForGroups enforces the APPROVE-only group list invariant.
func resolveVotedForGroups(voteType VoteType, raw []string) ([]id.GroupID, error) {
	if voteType != VoteTypeApprove {
		if len(raw) > 0 {
			return nil, dErrors.New(dErrors.CodeValidation, "voted_for_groups_must_be_empty")
		}
		return nil, nil
	}

	if len(raw) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "voted_for_groups_required")
	}

	// Ordered set: preserve first-seen order, drop duplicates.
	seen := make(map[id.GroupID]bool, len(raw))
	groups := make([]id.GroupID, 0, len(raw))
	for _, g := range raw {
		groupID, err := id.ParseGroupID(g)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeValidation, "invalid_group_id")
		}
		if seen[groupID] {
			continue
		}
		seen[groupID] = true
		groups = append(groups, groupID)
	}
	return groups, nil
}

// Validate re-runs the construction checks on an already-built Vote. Called
// whenever a Vote crosses a trust boundary (e.g. loaded from storage); a
// failure here signals data inconsistency, not caller error.
func (v *Vote) Validate() error {
	if v.ID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "invalid_vote_id")
	}
	if v.WorkflowID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "invalid_workflow_id")
	}
	if err := v.Voter.Validate(); err != nil {
		return err
	}
	if !v.Type.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid_vote_type")
	}
	if len(v.Reason) > MaxReasonLength {
		return dErrors.New(dErrors.CodeValidation, "reason_too_long")
	}
	if v.Type == VoteTypeApprove {
		if len(v.VotedForGroups) == 0 {
			return dErrors.New(dErrors.CodeValidation, "voted_for_groups_required")
		}
		for _, g := range v.VotedForGroups {
			if g.IsNil() {
				return dErrors.New(dErrors.CodeValidation, "invalid_group_id")
			}
		}
	} else if len(v.VotedForGroups) > 0 {
		return dErrors.New(dErrors.CodeValidation, "voted_for_groups_must_be_empty")
	}
	return nil
}

// ApprovesGroup reports whether this vote endorses the given group.
func (v *Vote) ApprovesGroup(groupID id.GroupID) bool {
	if v.Type != VoteTypeApprove {
		return false
	}
	for _, g := range v.VotedForGroups {
		if uuid.UUID(g) == uuid.UUID(groupID) {
			return true
		}
	}
	return false
}
