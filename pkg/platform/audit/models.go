// Package audit defines the audit event model and the names of the events the
// approval engine emits. Events are append-only facts; sinks decide retention
// and routing.
package audit

import (
	"time"

	id "quorum/pkg/domain"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp  time.Time     `json:"timestamp"`
	Action     string        `json:"action"`
	WorkflowID id.WorkflowID `json:"workflow_id,omitempty"`
	// ActorKey is the normalized voter key ("user:<id>" / "agent:<id>") of
	// whoever performed the action, when known.
	ActorKey string `json:"actor_key,omitempty"`
	// Decision carries the evaluation outcome for decision events.
	Decision string `json:"decision,omitempty"`
	// Reason carries the caller-supplied free text, if any.
	Reason string `json:"reason,omitempty"`
	// RequestID is the correlation id from the HTTP request context.
	RequestID string `json:"request_id,omitempty"`
}

// AuditEvent names the actions this system records.
type AuditEvent string

const (
	// Vote events
	EventVoteCast AuditEvent = "vote_cast"

	// Workflow events
	EventWorkflowApproved  AuditEvent = "workflow_approved"
	EventWorkflowRejected  AuditEvent = "workflow_rejected"
	EventWorkflowWithdrawn AuditEvent = "workflow_withdrawn"
	EventWorkflowExpired   AuditEvent = "workflow_expired"
	EventWorkflowCancelled AuditEvent = "workflow_cancelled"

	// Quota events
	EventQuotaLimitUpdated AuditEvent = "quota_limit_updated"
	EventQuotaExceeded     AuditEvent = "quota_exceeded"
)
