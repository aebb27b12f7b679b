// Package quota guards bounded resource creation: it compares current usage
// against a stored limit and gates limit changes behind the same version
// token discipline workflow transitions use.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"quorum/internal/approval/models"
	"quorum/internal/approval/ports"
	dErrors "quorum/pkg/domain-errors"
	"quorum/pkg/platform/audit"
	"quorum/pkg/platform/sentinel"
)

// Type aliases for shared interfaces.
type (
	Store          = ports.QuotaStore
	UsageReader    = ports.UsageReader
	AuditPublisher = ports.AuditPublisher
)

type Service struct {
	store          Store
	usage          UsageReader
	auditPublisher AuditPublisher
	logger         *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func New(store Store, usage UsageReader, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("quota store is required")
	}
	if usage == nil {
		return nil, fmt.Errorf("usage reader is required")
	}

	svc := &Service{
		store: store,
		usage: usage,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check reports whether one more unit of the metric fits under the stored
// limit. For scoped metrics the target id selects the space/user/group being
// counted.
//
// Known limitation, preserved deliberately: the check and the subsequent
// resource creation are not one atomic unit. Two concurrent creations can
// both observe "under limit" and both succeed, exceeding the nominal cap by
// a small margin unless the underlying storage enforces its own constraint.
func (s *Service) Check(ctx context.Context, quotaID models.QuotaID, targetID string) (bool, error) {
	if err := quotaID.Validate(); err != nil {
		return false, err
	}
	if quotaID.Scope.IsScoped() && targetID == "" {
		return false, dErrors.New(dErrors.CodeBadRequest, "target_required_for_scoped_quota")
	}
	if !quotaID.Scope.IsScoped() && targetID != "" {
		return false, dErrors.New(dErrors.CodeBadRequest, "target_not_allowed_for_global_quota")
	}

	quota, err := s.store.Get(ctx, quotaID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, dErrors.New(dErrors.CodeNotFound, "quota_not_found")
		}
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load quota")
	}

	usage, err := s.usage.CountUsage(ctx, quotaID, targetID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count quota usage")
	}

	allowed := quota.Allows(usage)
	if !allowed {
		ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
			Action: string(audit.EventQuotaExceeded),
		}, "scope", quotaID.Scope, "metric", quotaID.Metric,
			"target_id", targetID, "usage", usage, "limit", quota.Limit)
	}
	return allowed, nil
}

// UpdateLimit changes a quota's limit under the version guard. The caller
// must present the version it last read; a mismatch means another update
// committed first and surfaces as concurrency_error.
func (s *Service) UpdateLimit(ctx context.Context, quotaID models.QuotaID, limit int64, version int64) (*models.Quota, error) {
	if err := quotaID.Validate(); err != nil {
		return nil, err
	}

	quota := &models.Quota{ID: quotaID, Limit: limit, Version: version}
	if err := s.store.UpdateLimit(ctx, quota); err != nil {
		if errors.Is(err, sentinel.ErrVersionMismatch) {
			return nil, dErrors.New(dErrors.CodeConflict, "concurrency_error")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "quota_not_found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update quota limit")
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action: string(audit.EventQuotaLimitUpdated),
	}, "scope", quotaID.Scope, "metric", quotaID.Metric,
		"limit", limit, "version", quota.Version)

	return quota, nil
}
