// Package ports defines shared interfaces for the approval module.
// Interfaces are placed here when consumed by multiple services to avoid
// duplication.
package ports

import (
	"context"
	"log/slog"
	"time"

	"quorum/internal/approval/models"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/audit"
	"quorum/pkg/requestcontext"
)

// AuditPublisher emits audit events for decision-relevant operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// VoteStore persists the append-only vote history. Votes are never updated
// or deleted.
type VoteStore interface {
	// Append durably records a new vote.
	Append(ctx context.Context, vote *models.Vote) error

	// ListByWorkflow returns the complete vote history for a workflow, in no
	// defined order.
	ListByWorkflow(ctx context.Context, workflowID id.WorkflowID) ([]*models.Vote, error)
}

// WorkflowStore persists workflows. Status writes are version-guarded: the
// store compares the stored version with the one on the passed aggregate and
// returns sentinel.ErrVersionMismatch when another writer committed first.
type WorkflowStore interface {
	// Get returns the workflow or sentinel.ErrNotFound.
	Get(ctx context.Context, workflowID id.WorkflowID) (*models.Workflow, error)

	// Create persists a new workflow at version 1.
	Create(ctx context.Context, workflow *models.Workflow) error

	// UpdateStatus commits a status transition if and only if the stored
	// version equals workflow.Version. On success the stored and in-memory
	// versions are incremented. On a lost race it returns
	// sentinel.ErrVersionMismatch and the aggregate is left unchanged.
	UpdateStatus(ctx context.Context, workflow *models.Workflow) error

	// ListPendingByTemplate returns all PENDING workflows for a template.
	ListPendingByTemplate(ctx context.Context, templateID id.TemplateID) ([]*models.Workflow, error)

	// ListDuePending returns PENDING workflows whose expiry deadline has
	// passed as of the given time.
	ListDuePending(ctx context.Context, now time.Time) ([]*models.Workflow, error)
}

// RuleStore persists approval rule trees per template. Rules are validated
// before Save; a rule read back is trusted to be shape-valid.
type RuleStore interface {
	// GetByTemplate returns the rule tree or sentinel.ErrNotFound.
	GetByTemplate(ctx context.Context, templateID id.TemplateID) (*models.ApprovalRule, error)

	// Save persists the rule tree for a template, replacing any previous one.
	Save(ctx context.Context, templateID id.TemplateID, rule *models.ApprovalRule) error
}

// MembershipReader supplies point-in-time group membership snapshots. The
// snapshot contains an entry for every requested group that exists; a missing
// entry means the group does not exist.
type MembershipReader interface {
	Snapshot(ctx context.Context, groupIDs []id.GroupID) (models.MembershipSnapshot, error)
}

// QuotaStore persists quota rows. Limit writes are version-guarded like
// workflow status writes.
type QuotaStore interface {
	// Get returns the quota row or sentinel.ErrNotFound.
	Get(ctx context.Context, quotaID models.QuotaID) (*models.Quota, error)

	// UpdateLimit commits a limit change if and only if the stored version
	// equals quota.Version, incrementing both on success. Returns
	// sentinel.ErrVersionMismatch on a lost race.
	UpdateLimit(ctx context.Context, quota *models.Quota) error
}

// UsageReader computes current usage for a quota metric. For scoped metrics
// the target id selects the space/user/group being counted.
type UsageReader interface {
	CountUsage(ctx context.Context, quotaID models.QuotaID, targetID string) (int64, error)
}

// LogAudit is a shared helper for logging audit events across approval
// services. It logs to both the structured logger and the audit publisher if
// available.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.Event, attrs ...any) {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}

	args := append(attrs, "event", event.Action, "log_type", "audit")
	if event.RequestID != "" {
		args = append(args, "request_id", event.RequestID)
	}
	if logger != nil {
		logger.InfoContext(ctx, event.Action, args...)
	}

	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event.Action, "error", err)
	}
}
