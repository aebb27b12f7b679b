package engine

import (
	"quorum/internal/approval/models"
)

// Evaluate runs a rule tree against consolidated votes and a membership
// snapshot and returns the workflow decision.
//
// A single VETO among the consolidated votes rejects the workflow outright,
// before the tree is consulted: a veto is an absolute block.
//
// Otherwise the root is evaluated recursively; a satisfied root approves the
// workflow, an unsatisfied root leaves it pending (more votes may arrive
// before expiry). Rule shape and depth were validated at construction time
// (models.ApprovalRule.Validate), so evaluation carries no depth counter.
func Evaluate(rule *models.ApprovalRule, consolidated []*models.Vote, membership models.MembershipSnapshot) models.Decision {
	if HasVeto(consolidated) {
		return models.DecisionRejected
	}
	if satisfied(rule, consolidated, membership) {
		return models.DecisionApproved
	}
	return models.DecisionPending
}

func satisfied(rule *models.ApprovalRule, votes []*models.Vote, membership models.MembershipSnapshot) bool {
	if rule == nil {
		return false
	}

	switch rule.Type {
	case models.RuleTypeGroup:
		return groupSatisfied(rule, votes, membership)

	case models.RuleTypeAnd:
		for _, child := range rule.Rules {
			if !satisfied(child, votes, membership) {
				return false
			}
		}
		return true

	case models.RuleTypeOr:
		for _, child := range rule.Rules {
			if satisfied(child, votes, membership) {
				return true
			}
		}
		return false

	default:
		return false
	}
}

// groupSatisfied counts APPROVE votes that name the rule's group and whose
// voter is a member of that group in the snapshot. An approval "for" a group
// the voter does not belong to never counts; that would be a spoofed
// endorsement.
func groupSatisfied(rule *models.ApprovalRule, votes []*models.Vote, membership models.MembershipSnapshot) bool {
	count := 0
	for _, vote := range votes {
		if !vote.ApprovesGroup(rule.GroupID) {
			continue
		}
		if !membership.IsMember(rule.GroupID, vote.Voter.Key()) {
			continue
		}
		count++
		if count >= rule.MinCount {
			return true
		}
	}
	return false
}
