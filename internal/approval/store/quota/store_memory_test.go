package quota

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"quorum/internal/approval/models"
	"quorum/pkg/platform/sentinel"
)

func TestQuotaStore_Get(t *testing.T) {
	ctx := context.Background()
	quotaID := models.QuotaID{Scope: models.ScopeGroup, Metric: models.MetricMaxEntitiesPerGroup}

	t.Run("returns seeded quota at version 1", func(t *testing.T) {
		store := New()
		store.Seed(quotaID, 25)

		quota, err := store.Get(ctx, quotaID)
		require.NoError(t, err)
		require.Equal(t, int64(25), quota.Limit)
		require.Equal(t, int64(1), quota.Version)
	})

	t.Run("returns ErrNotFound for unconfigured quota", func(t *testing.T) {
		store := New()
		_, err := store.Get(ctx, quotaID)
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestQuotaStore_UpdateLimit(t *testing.T) {
	ctx := context.Background()
	quotaID := models.QuotaID{Scope: models.ScopeSpace, Metric: models.MetricMaxGroupsPerSpace}

	t.Run("commits matching version and increments it", func(t *testing.T) {
		store := New()
		store.Seed(quotaID, 10)

		quota, err := store.Get(ctx, quotaID)
		require.NoError(t, err)

		quota.Limit = 20
		require.NoError(t, store.UpdateLimit(ctx, quota))
		require.Equal(t, int64(2), quota.Version)

		stored, err := store.Get(ctx, quotaID)
		require.NoError(t, err)
		require.Equal(t, int64(20), stored.Limit)
		require.Equal(t, int64(2), stored.Version)
	})

	t.Run("rejects stale version", func(t *testing.T) {
		store := New()
		store.Seed(quotaID, 10)

		first, err := store.Get(ctx, quotaID)
		require.NoError(t, err)
		second, err := store.Get(ctx, quotaID)
		require.NoError(t, err)

		first.Limit = 20
		require.NoError(t, store.UpdateLimit(ctx, first))

		second.Limit = 30
		require.ErrorIs(t, store.UpdateLimit(ctx, second), sentinel.ErrVersionMismatch)

		stored, err := store.Get(ctx, quotaID)
		require.NoError(t, err)
		require.Equal(t, int64(20), stored.Limit)
	})

	t.Run("returns ErrNotFound for unconfigured quota", func(t *testing.T) {
		store := New()
		quota := &models.Quota{ID: quotaID, Limit: 5, Version: 1}
		require.ErrorIs(t, store.UpdateLimit(ctx, quota), sentinel.ErrNotFound)
	})
}

func TestUsageReader(t *testing.T) {
	ctx := context.Background()
	quotaID := models.QuotaID{Scope: models.ScopeUser, Metric: models.MetricMaxTemplatesPerSpace}

	reader := NewUsageReader()
	reader.SetUsage(quotaID, "user-a", 7)

	count, err := reader.CountUsage(ctx, quotaID, "user-a")
	require.NoError(t, err)
	require.Equal(t, int64(7), count)

	count, err = reader.CountUsage(ctx, quotaID, "user-b")
	require.NoError(t, err)
	require.Zero(t, count)
}
