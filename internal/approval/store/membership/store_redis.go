package membership

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"quorum/internal/approval/models"
	"quorum/internal/approval/ports"
	id "quorum/pkg/domain"
)

const (
	groupKeyPrefix  = "membership:group:"
	defaultCacheTTL = 30 * time.Second
)

// cachedGroup is the Redis payload for one group. Exists is stored explicitly
// so a cached "no such group" is distinguishable from a cache miss.
type cachedGroup struct {
	Exists  bool     `json:"exists"`
	Members []string `json:"members"`
}

// RedisMembershipCache is a read-through cache in front of a MembershipReader.
// Snapshots are cached per group with a short TTL; because evaluation already
// tolerates membership changing between votes, short staleness here changes
// nothing observable.
type RedisMembershipCache struct {
	client   *redis.Client
	upstream ports.MembershipReader
	ttl      time.Duration
	logger   *slog.Logger
}

// RedisCacheOption configures a RedisMembershipCache.
type RedisCacheOption func(*RedisMembershipCache)

// WithCacheTTL overrides the per-group cache TTL.
func WithCacheTTL(ttl time.Duration) RedisCacheOption {
	return func(c *RedisMembershipCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithCacheLogger sets the logger used for cache degradation warnings.
func WithCacheLogger(logger *slog.Logger) RedisCacheOption {
	return func(c *RedisMembershipCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRedisCache wraps upstream with a Redis read-through cache.
func NewRedisCache(client *redis.Client, upstream ports.MembershipReader, opts ...RedisCacheOption) *RedisMembershipCache {
	cache := &RedisMembershipCache{
		client:   client,
		upstream: upstream,
		ttl:      defaultCacheTTL,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cache)
		}
	}
	return cache
}

// Snapshot serves each requested group from cache when possible and falls
// back to the upstream reader for the rest. Redis failures degrade to the
// upstream read rather than failing the request.
func (c *RedisMembershipCache) Snapshot(ctx context.Context, groupIDs []id.GroupID) (models.MembershipSnapshot, error) {
	snapshot := make(models.MembershipSnapshot, len(groupIDs))

	var misses []id.GroupID
	for _, groupID := range groupIDs {
		cached, ok := c.lookup(ctx, groupID)
		if !ok {
			misses = append(misses, groupID)
			continue
		}
		if !cached.Exists {
			continue
		}
		members := make(map[string]bool, len(cached.Members))
		for _, key := range cached.Members {
			members[key] = true
		}
		snapshot[groupID] = members
	}

	if len(misses) == 0 {
		return snapshot, nil
	}

	fresh, err := c.upstream.Snapshot(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, groupID := range misses {
		members, exists := fresh[groupID]
		if exists {
			snapshot[groupID] = members
		}
		c.store(ctx, groupID, members, exists)
	}
	return snapshot, nil
}

func (c *RedisMembershipCache) lookup(ctx context.Context, groupID id.GroupID) (cachedGroup, bool) {
	raw, err := c.client.Get(ctx, groupKeyPrefix+groupID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return cachedGroup{}, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "membership cache read failed", "group_id", groupID, "error", err)
		return cachedGroup{}, false
	}

	var cached cachedGroup
	if err := json.Unmarshal(raw, &cached); err != nil {
		c.logger.WarnContext(ctx, "membership cache entry corrupt", "group_id", groupID, "error", err)
		return cachedGroup{}, false
	}
	return cached, true
}

func (c *RedisMembershipCache) store(ctx context.Context, groupID id.GroupID, members map[string]bool, exists bool) {
	cached := cachedGroup{Exists: exists}
	for key := range members {
		cached.Members = append(cached.Members, key)
	}

	raw, err := json.Marshal(cached)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, groupKeyPrefix+groupID.String(), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "membership cache write failed", "group_id", groupID, "error", err)
	}
}

// Invalidate drops the cached entry for a group. Called after membership
// writes so the next snapshot re-reads the source of truth.
func (c *RedisMembershipCache) Invalidate(ctx context.Context, groupID id.GroupID) error {
	return c.client.Del(ctx, groupKeyPrefix+groupID.String()).Err()
}
