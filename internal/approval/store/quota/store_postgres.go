package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quorum/internal/approval/models"
	"quorum/pkg/platform/sentinel"
)

// PostgresQuotaStore persists quota limits in PostgreSQL. Limit writes carry
// the same version guard as workflow status writes.
type PostgresQuotaStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresQuotaStore {
	return &PostgresQuotaStore{db: db}
}

func (s *PostgresQuotaStore) Get(ctx context.Context, quotaID models.QuotaID) (*models.Quota, error) {
	quota := models.Quota{ID: quotaID}
	err := s.db.QueryRowContext(ctx,
		"SELECT limit_value, version FROM quotas WHERE scope = $1 AND metric = $2",
		string(quotaID.Scope),
		string(quotaID.Metric),
	).Scan(&quota.Limit, &quota.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quota: %w", err)
	}
	return &quota, nil
}

func (s *PostgresQuotaStore) UpdateLimit(ctx context.Context, quota *models.Quota) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE quotas
		SET limit_value = $1, version = version + 1
		WHERE scope = $2 AND metric = $3 AND version = $4`,
		quota.Limit,
		string(quota.ID.Scope),
		string(quota.ID.Metric),
		quota.Version,
	)
	if err != nil {
		return fmt.Errorf("update quota limit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update quota limit: %w", err)
	}
	if affected == 0 {
		var exists bool
		err := s.db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM quotas WHERE scope = $1 AND metric = $2)",
			string(quota.ID.Scope),
			string(quota.ID.Metric),
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("update quota limit: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrVersionMismatch
	}

	quota.Version++
	return nil
}

// PostgresUsageReader reads usage counts maintained by the owning CRUD
// services out of the quota_usage table. A missing row counts as zero.
type PostgresUsageReader struct {
	db *sql.DB
}

func NewPostgresUsageReader(db *sql.DB) *PostgresUsageReader {
	return &PostgresUsageReader{db: db}
}

func (r *PostgresUsageReader) CountUsage(ctx context.Context, quotaID models.QuotaID, targetID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT count FROM quota_usage WHERE scope = $1 AND metric = $2 AND target_id = $3",
		string(quotaID.Scope),
		string(quotaID.Metric),
		targetID,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count quota usage: %w", err)
	}
	return count, nil
}
