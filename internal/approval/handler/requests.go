package handler

import (
	"strings"

	"quorum/internal/approval/models"
	dErrors "quorum/pkg/domain-errors"
)

// CastVoteRequest is the HTTP request body for POST /workflows/{workflowID}/votes.
// Exactly one of user_id and agent_id identifies the voter.
type CastVoteRequest struct {
	UserID         string   `json:"user_id"`
	AgentID        string   `json:"agent_id"`
	Type           string   `json:"type"`
	VotedForGroups []string `json:"voted_for_groups"`
	Reason         string   `json:"reason"`
}

// Validate checks request shape only. Domain validation (voter identity,
// group ids, reason length) happens in the vote factory so the rules live in
// one place.
func (r *CastVoteRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request_body_required")
	}
	r.Type = strings.TrimSpace(r.Type)
	if r.Type == "" {
		return dErrors.New(dErrors.CodeValidation, "vote_type_required")
	}
	return nil
}

// Input maps the request onto the domain vote input for a workflow.
func (r *CastVoteRequest) Input(workflowID string) models.NewVoteInput {
	return models.NewVoteInput{
		WorkflowID:     workflowID,
		UserID:         strings.TrimSpace(r.UserID),
		AgentID:        strings.TrimSpace(r.AgentID),
		Type:           models.VoteType(r.Type),
		VotedForGroups: r.VotedForGroups,
		Reason:         r.Reason,
	}
}

// CheckQuotaRequest is the HTTP request body for POST /quotas/check.
type CheckQuotaRequest struct {
	Scope    string `json:"scope"`
	Metric   string `json:"metric"`
	TargetID string `json:"target_id"`

	parsedID models.QuotaID
}

func (r *CheckQuotaRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request_body_required")
	}
	r.parsedID = models.QuotaID{
		Scope:  models.QuotaScope(strings.TrimSpace(r.Scope)),
		Metric: models.QuotaMetric(strings.TrimSpace(r.Metric)),
	}
	return r.parsedID.Validate()
}

// QuotaID returns the validated quota identifier.
func (r *CheckQuotaRequest) QuotaID() models.QuotaID {
	return r.parsedID
}

// UpdateQuotaLimitRequest is the HTTP request body for PUT /quotas/limit.
// Version is the optimistic-concurrency token read alongside the current
// limit.
type UpdateQuotaLimitRequest struct {
	Scope   string `json:"scope"`
	Metric  string `json:"metric"`
	Limit   int64  `json:"limit"`
	Version int64  `json:"version"`

	parsedID models.QuotaID
}

func (r *UpdateQuotaLimitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request_body_required")
	}
	r.parsedID = models.QuotaID{
		Scope:  models.QuotaScope(strings.TrimSpace(r.Scope)),
		Metric: models.QuotaMetric(strings.TrimSpace(r.Metric)),
	}
	if err := r.parsedID.Validate(); err != nil {
		return err
	}
	if r.Version < 1 {
		return dErrors.New(dErrors.CodeValidation, "version_required")
	}
	return nil
}

// QuotaID returns the validated quota identifier.
func (r *UpdateQuotaLimitRequest) QuotaID() models.QuotaID {
	return r.parsedID
}
