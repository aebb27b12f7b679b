//go:build integration

package membership_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"quorum/internal/approval/store/membership"
	id "quorum/pkg/domain"
	"quorum/pkg/testutil/containers"
)

type RedisMembershipCacheSuite struct {
	suite.Suite
	redis    *containers.RedisContainer
	upstream *membership.InMemoryMembershipStore
	cache    *membership.RedisMembershipCache
}

func TestRedisMembershipCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisMembershipCacheSuite))
}

func (s *RedisMembershipCacheSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
}

func (s *RedisMembershipCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.upstream = membership.New()
	s.cache = membership.NewRedisCache(s.redis.Client, s.upstream,
		membership.WithCacheTTL(time.Minute))
}

func (s *RedisMembershipCacheSuite) voterKey() string {
	return id.VoterRef{EntityType: id.EntityTypeUser, EntityID: uuid.New()}.Key()
}

func (s *RedisMembershipCacheSuite) TestReadThrough() {
	ctx := context.Background()
	groupID := id.GroupID(uuid.New())
	member := s.voterKey()
	s.upstream.PutGroup(groupID, member)

	// First read goes upstream and fills the cache.
	snapshot, err := s.cache.Snapshot(ctx, []id.GroupID{groupID})
	s.Require().NoError(err)
	s.True(snapshot.IsMember(groupID, member))

	// Upstream changes are invisible until the entry expires or is
	// invalidated.
	s.upstream.RemoveGroup(groupID)
	cached, err := s.cache.Snapshot(ctx, []id.GroupID{groupID})
	s.Require().NoError(err)
	s.True(cached.IsMember(groupID, member))
}

func (s *RedisMembershipCacheSuite) TestCachesGroupAbsence() {
	ctx := context.Background()
	groupID := id.GroupID(uuid.New())

	snapshot, err := s.cache.Snapshot(ctx, []id.GroupID{groupID})
	s.Require().NoError(err)
	s.False(snapshot.HasGroup(groupID))

	// The group appearing upstream is not seen while the negative entry
	// lives.
	s.upstream.PutGroup(groupID, s.voterKey())
	cached, err := s.cache.Snapshot(ctx, []id.GroupID{groupID})
	s.Require().NoError(err)
	s.False(cached.HasGroup(groupID))
}

func (s *RedisMembershipCacheSuite) TestInvalidate() {
	ctx := context.Background()
	groupID := id.GroupID(uuid.New())
	member := s.voterKey()
	s.upstream.PutGroup(groupID, member)

	_, err := s.cache.Snapshot(ctx, []id.GroupID{groupID})
	s.Require().NoError(err)

	replacement := s.voterKey()
	s.upstream.PutGroup(groupID, replacement)
	s.Require().NoError(s.cache.Invalidate(ctx, groupID))

	snapshot, err := s.cache.Snapshot(ctx, []id.GroupID{groupID})
	s.Require().NoError(err)
	s.False(snapshot.IsMember(groupID, member))
	s.True(snapshot.IsMember(groupID, replacement))
}

func (s *RedisMembershipCacheSuite) TestMixedHitAndMiss() {
	ctx := context.Background()
	cachedGroup := id.GroupID(uuid.New())
	freshGroup := id.GroupID(uuid.New())
	cachedMember := s.voterKey()
	freshMember := s.voterKey()

	s.upstream.PutGroup(cachedGroup, cachedMember)
	_, err := s.cache.Snapshot(ctx, []id.GroupID{cachedGroup})
	s.Require().NoError(err)

	s.upstream.PutGroup(freshGroup, freshMember)
	snapshot, err := s.cache.Snapshot(ctx, []id.GroupID{cachedGroup, freshGroup})
	s.Require().NoError(err)
	s.True(snapshot.IsMember(cachedGroup, cachedMember))
	s.True(snapshot.IsMember(freshGroup, freshMember))
}
