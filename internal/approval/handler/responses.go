package handler

import (
	"time"

	workflowsvc "quorum/internal/approval/service/workflow"
	"quorum/internal/approval/models"
)

// WorkflowResponse is the HTTP projection of a workflow.
type WorkflowResponse struct {
	ID          string    `json:"id"`
	TemplateID  string    `json:"template_id"`
	SpaceID     string    `json:"space_id"`
	InitiatorID string    `json:"initiator_id"`
	Status      string    `json:"status"`
	ExpiresAt   time.Time `json:"expires_at"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func fromWorkflow(workflow *models.Workflow) WorkflowResponse {
	return WorkflowResponse{
		ID:          workflow.ID.String(),
		TemplateID:  workflow.TemplateID.String(),
		SpaceID:     workflow.SpaceID.String(),
		InitiatorID: workflow.InitiatorID.String(),
		Status:      string(workflow.Status),
		ExpiresAt:   workflow.ExpiresAt,
		Version:     workflow.Version,
		CreatedAt:   workflow.CreatedAt,
		UpdatedAt:   workflow.UpdatedAt,
	}
}

// VoteResponse is the HTTP projection of a recorded vote.
type VoteResponse struct {
	ID             string    `json:"id"`
	WorkflowID     string    `json:"workflow_id"`
	Voter          string    `json:"voter"`
	Type           string    `json:"type"`
	VotedForGroups []string  `json:"voted_for_groups,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	CastAt         time.Time `json:"cast_at"`
}

func fromVote(vote *models.Vote) VoteResponse {
	groups := make([]string, 0, len(vote.VotedForGroups))
	for _, groupID := range vote.VotedForGroups {
		groups = append(groups, groupID.String())
	}
	return VoteResponse{
		ID:             vote.ID.String(),
		WorkflowID:     vote.WorkflowID.String(),
		Voter:          vote.Voter.Key(),
		Type:           vote.Type.String(),
		VotedForGroups: groups,
		Reason:         vote.Reason,
		CastAt:         vote.CastAt,
	}
}

// CastVoteResponse is the HTTP response for POST /workflows/{workflowID}/votes.
type CastVoteResponse struct {
	Vote     VoteResponse     `json:"vote"`
	Workflow WorkflowResponse `json:"workflow"`
	Decision string           `json:"decision"`
}

func fromCastVoteResult(result *workflowsvc.CastVoteResult) CastVoteResponse {
	return CastVoteResponse{
		Vote:     fromVote(result.Vote),
		Workflow: fromWorkflow(result.Workflow),
		Decision: string(result.Decision),
	}
}

// WorkflowViewResponse is the HTTP response for GET /workflows/{workflowID}.
type WorkflowViewResponse struct {
	Workflow     WorkflowResponse `json:"workflow"`
	Consolidated []VoteResponse   `json:"consolidated_votes"`
	Decision     string           `json:"decision"`
}

func fromWorkflowView(view *workflowsvc.WorkflowView) WorkflowViewResponse {
	votes := make([]VoteResponse, 0, len(view.Consolidated))
	for _, vote := range view.Consolidated {
		votes = append(votes, fromVote(vote))
	}
	return WorkflowViewResponse{
		Workflow:     fromWorkflow(view.Workflow),
		Consolidated: votes,
		Decision:     string(view.Decision),
	}
}

// CancelPendingResponse is the HTTP response for template cancellation.
type CancelPendingResponse struct {
	Cancelled int `json:"cancelled"`
}

// ExpireDueResponse is the HTTP response for the expiry sweep.
type ExpireDueResponse struct {
	Expired int `json:"expired"`
}

// CheckQuotaResponse is the HTTP response for POST /quotas/check.
type CheckQuotaResponse struct {
	Allowed bool `json:"allowed"`
}

// QuotaResponse is the HTTP projection of a quota row.
type QuotaResponse struct {
	Scope   string `json:"scope"`
	Metric  string `json:"metric"`
	Limit   int64  `json:"limit"`
	Version int64  `json:"version"`
}

func fromQuota(quota *models.Quota) QuotaResponse {
	return QuotaResponse{
		Scope:   string(quota.ID.Scope),
		Metric:  string(quota.ID.Metric),
		Limit:   quota.Limit,
		Version: quota.Version,
	}
}
