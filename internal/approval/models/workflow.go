package models

import (
	"time"

	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// WorkflowStatus is the lifecycle state of an approval workflow.
type WorkflowStatus string

const (
	// StatusPending is the only non-terminal state.
	StatusPending   WorkflowStatus = "PENDING"
	StatusApproved  WorkflowStatus = "APPROVED"
	StatusRejected  WorkflowStatus = "REJECTED"
	StatusWithdrawn WorkflowStatus = "WITHDRAWN"
	StatusExpired   WorkflowStatus = "EXPIRED"
)

// IsTerminal reports whether no further transition is possible.
func (s WorkflowStatus) IsTerminal() bool {
	return s != StatusPending
}

// Decision is the outcome of evaluating a workflow's rule tree against its
// consolidated votes.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionPending  Decision = "PENDING"
	DecisionRejected Decision = "REJECTED"
)

// Workflow is the aggregate whose status the state machine owns. All fields
// except Status, Version and UpdatedAt are set at creation and never change.
//
// Invariants:
//   - Status transitions only out of PENDING (all other states are terminal)
//   - Version increments on every committed status change; writers must
//     present the version they last read (optimistic concurrency)
//   - a PENDING workflow whose ExpiresAt has passed accepts no decision other
//     than EXPIRED
type Workflow struct {
	ID          id.WorkflowID  `json:"id"`
	TemplateID  id.TemplateID  `json:"template_id"`
	SpaceID     id.SpaceID     `json:"space_id"`
	InitiatorID id.UserID      `json:"initiator_id"`
	Status      WorkflowStatus `json:"status"`
	ExpiresAt   time.Time      `json:"expires_at"`
	Version     int64          `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewWorkflow constructs a PENDING workflow.
func NewWorkflow(workflowID id.WorkflowID, templateID id.TemplateID, spaceID id.SpaceID, initiator id.UserID, expiresAt, now time.Time) (*Workflow, error) {
	if workflowID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid_workflow_id")
	}
	if !expiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "workflow_already_expired")
	}
	return &Workflow{
		ID:          workflowID,
		TemplateID:  templateID,
		SpaceID:     spaceID,
		InitiatorID: initiator,
		Status:      StatusPending,
		ExpiresAt:   expiresAt,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsExpiredAt reports whether the expiry deadline has passed. Expiry is
// checked lazily on every decision path rather than by a background sweeper.
func (w *Workflow) IsExpiredAt(now time.Time) bool {
	return !now.Before(w.ExpiresAt)
}

// CanTransition checks whether a status change is allowed right now.
// Returns a TerminalStateError (CodeInvariantViolation) when the workflow has
// already reached a terminal state.
func (w *Workflow) CanTransition() error {
	if w.Status.IsTerminal() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "workflow_in_terminal_state")
	}
	return nil
}

// ApplyDecision transitions the status according to an evaluator decision.
// Returns true when the status actually changed (DecisionPending is a no-op).
// Call CanTransition first; this mutates unconditionally.
func (w *Workflow) ApplyDecision(decision Decision, now time.Time) bool {
	switch decision {
	case DecisionApproved:
		w.Status = StatusApproved
	case DecisionRejected:
		w.Status = StatusRejected
	default:
		return false
	}
	w.UpdatedAt = now
	return true
}

// ApplyWithdrawal transitions a non-terminal workflow to WITHDRAWN.
func (w *Workflow) ApplyWithdrawal(now time.Time) {
	w.Status = StatusWithdrawn
	w.UpdatedAt = now
}

// ApplyExpiry transitions a non-terminal workflow to EXPIRED.
func (w *Workflow) ApplyExpiry(now time.Time) {
	w.Status = StatusExpired
	w.UpdatedAt = now
}

// Withdraw validates and applies withdrawal in one call. Only the workflow's
// initiator has standing; the caller supplies the authenticated actor.
func (w *Workflow) Withdraw(actor id.UserID, now time.Time) error {
	if actor != w.InitiatorID {
		return dErrors.New(dErrors.CodeForbidden, "only_initiator_can_withdraw")
	}
	if err := w.CanTransition(); err != nil {
		return err
	}
	w.ApplyWithdrawal(now)
	return nil
}
