// Package engine holds the pure decision logic of the approval core:
// consolidating a vote history into effective votes, and evaluating a rule
// tree against them. Nothing here performs I/O or reads ambient state; every
// function is a deterministic projection of its inputs.
package engine

import (
	"sort"
	"strings"

	"quorum/internal/approval/models"
)

// Consolidate reduces a workflow's full vote history to the effective votes:
// at most one per normalized voter key, holding only APPROVE or VETO types,
// ordered most recently decided first.
//
// Votes are ordered by CastAt descending; equal timestamps are broken by vote
// id descending (lexicographic UUID string). The tie-break is an explicit
// contract, not an artifact of sort stability: the input set is loaded from
// storage with no defined order, and which vote counts as "most recent"
// decides authorization outcomes.
//
// A voter's most recent WITHDRAW consumes their key without emitting anything,
// so an older approve or veto from the same voter is correctly superseded.
//
// Consolidating an already-consolidated sequence returns it unchanged.
func Consolidate(votes []*models.Vote) []*models.Vote {
	if len(votes) == 0 {
		return nil
	}

	ordered := make([]*models.Vote, len(votes))
	copy(ordered, votes)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CastAt.Equal(ordered[j].CastAt) {
			return ordered[i].CastAt.After(ordered[j].CastAt)
		}
		return strings.Compare(ordered[i].ID.String(), ordered[j].ID.String()) > 0
	})

	seen := make(map[string]bool, len(ordered))
	effective := make([]*models.Vote, 0, len(ordered))
	for _, vote := range ordered {
		key := vote.Voter.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		if vote.Type == models.VoteTypeWithdraw {
			continue
		}
		effective = append(effective, vote)
	}

	if len(effective) == 0 {
		return nil
	}
	return effective
}

// HasVeto reports whether any effective vote is a VETO.
func HasVeto(votes []*models.Vote) bool {
	for _, vote := range votes {
		if vote.Type == models.VoteTypeVeto {
			return true
		}
	}
	return false
}
