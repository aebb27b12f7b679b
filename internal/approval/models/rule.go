package models

import (
	"encoding/json"

	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// RuleType tags the variants of the approval rule tree.
type RuleType string

const (
	RuleTypeGroup RuleType = "GROUP"
	RuleTypeAnd   RuleType = "AND"
	RuleTypeOr    RuleType = "OR"
)

// MaxRuleDepth bounds rule tree nesting. Enforced at construction time so a
// persisted rule can always be evaluated without a depth check, and so
// adversarial payloads are rejected before they reach storage.
const MaxRuleDepth = 10

// ApprovalRule is a recursive tagged variant rather than an interface
// hierarchy: evaluation stays one pure recursive function and the JSON codec
// stays decoupled from evaluation.
//
// Exactly one shape is populated per Type:
//   - GROUP: GroupID + MinCount
//   - AND/OR: Rules (non-empty, ordered)
type ApprovalRule struct {
	Type     RuleType        `json:"type"`
	GroupID  id.GroupID      `json:"group_id,omitempty"`
	MinCount int             `json:"min_count,omitempty"`
	Rules    []*ApprovalRule `json:"rules,omitempty"`
}

// ParseRule decodes and validates a rule tree from its serialized form.
//
// Errors: malformed_content for undecodable input; otherwise the specific
// shape error from Validate.
func ParseRule(raw []byte) (*ApprovalRule, error) {
	var rule ApprovalRule
	if err := json.Unmarshal(raw, &rule); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "malformed_content")
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return &rule, nil
}

// Encode serializes the rule tree for storage.
func (r *ApprovalRule) Encode() ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode rule")
	}
	return raw, nil
}

// Validate checks the structural invariants of the whole tree:
//   - every node has a known type
//   - GROUP leaves have a non-nil group id and a positive min count
//   - AND/OR nodes have at least one child
//   - nesting depth does not exceed MaxRuleDepth
//
// MinCount is deliberately not compared against current group size: group
// membership can change after the rule is authored.
func (r *ApprovalRule) Validate() error {
	return r.validate(1)
}

func (r *ApprovalRule) validate(depth int) error {
	if r == nil {
		return dErrors.New(dErrors.CodeValidation, "malformed_content")
	}
	if depth > MaxRuleDepth {
		return dErrors.New(dErrors.CodeValidation, "max_rule_nesting_exceeded")
	}

	switch r.Type {
	case RuleTypeGroup:
		if len(r.Rules) > 0 {
			return dErrors.New(dErrors.CodeValidation, "malformed_content")
		}
		if r.GroupID.IsNil() {
			return dErrors.New(dErrors.CodeValidation, "group_rule_invalid_group_id")
		}
		if r.MinCount <= 0 {
			return dErrors.New(dErrors.CodeValidation, "group_rule_invalid_min_count")
		}
		return nil

	case RuleTypeAnd:
		if len(r.Rules) == 0 {
			return dErrors.New(dErrors.CodeValidation, "and_rule_must_have_rules")
		}
		return r.validateChildren(depth)

	case RuleTypeOr:
		if len(r.Rules) == 0 {
			return dErrors.New(dErrors.CodeValidation, "or_rule_must_have_rules")
		}
		return r.validateChildren(depth)

	default:
		return dErrors.New(dErrors.CodeValidation, "invalid_rule_type")
	}
}

func (r *ApprovalRule) validateChildren(depth int) error {
	for _, child := range r.Rules {
		if err := child.validate(depth + 1); err != nil {
			return err
		}
	}
	return nil
}

// Depth returns the nesting depth of the tree (a single leaf is depth 1).
func (r *ApprovalRule) Depth() int {
	if r == nil {
		return 0
	}
	max := 0
	for _, child := range r.Rules {
		if d := child.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// GroupIDs returns the distinct group ids referenced anywhere in the tree,
// in first-seen order. Used to scope the membership snapshot an evaluation
// needs.
func (r *ApprovalRule) GroupIDs() []id.GroupID {
	seen := make(map[id.GroupID]bool)
	var out []id.GroupID
	r.collectGroupIDs(seen, &out)
	return out
}

func (r *ApprovalRule) collectGroupIDs(seen map[id.GroupID]bool, out *[]id.GroupID) {
	if r == nil {
		return
	}
	if r.Type == RuleTypeGroup && !seen[r.GroupID] {
		seen[r.GroupID] = true
		*out = append(*out, r.GroupID)
	}
	for _, child := range r.Rules {
		child.collectGroupIDs(seen, out)
	}
}

// GroupRule constructs a GROUP leaf.
func GroupRule(groupID id.GroupID, minCount int) *ApprovalRule {
	return &ApprovalRule{Type: RuleTypeGroup, GroupID: groupID, MinCount: minCount}
}

// AndRule constructs an AND node over the given children.
func AndRule(rules ...*ApprovalRule) *ApprovalRule {
	return &ApprovalRule{Type: RuleTypeAnd, Rules: rules}
}

// OrRule constructs an OR node over the given children.
func OrRule(rules ...*ApprovalRule) *ApprovalRule {
	return &ApprovalRule{Type: RuleTypeOr, Rules: rules}
}
