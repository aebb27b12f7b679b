//go:build integration

package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"quorum/internal/approval/models"
	"quorum/internal/approval/store/workflow"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/testutil/containers"
)

type PostgresWorkflowStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *workflow.PostgresWorkflowStore
}

func TestPostgresWorkflowStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresWorkflowStoreSuite))
}

func (s *PostgresWorkflowStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = workflow.NewPostgres(s.postgres.DB)
}

func (s *PostgresWorkflowStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "votes", "workflows"))
}

func (s *PostgresWorkflowStoreSuite) newPending(expiresIn time.Duration) *models.Workflow {
	now := time.Now().UTC().Truncate(time.Microsecond)
	wf, err := models.NewWorkflow(
		id.NewWorkflowID(),
		id.TemplateID(uuid.New()),
		id.SpaceID(uuid.New()),
		id.UserID(uuid.New()),
		now.Add(expiresIn),
		now,
	)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), wf))
	return wf
}

func (s *PostgresWorkflowStoreSuite) TestCreateAndGet() {
	ctx := context.Background()
	created := s.newPending(time.Hour)

	found, err := s.store.Get(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(created.ID, found.ID)
	s.Equal(created.TemplateID, found.TemplateID)
	s.Equal(models.StatusPending, found.Status)
	s.Equal(int64(1), found.Version)
	s.True(created.ExpiresAt.Equal(found.ExpiresAt))

	_, err = s.store.Get(ctx, id.NewWorkflowID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresWorkflowStoreSuite) TestUpdateStatusVersionGuard() {
	ctx := context.Background()
	created := s.newPending(time.Hour)

	winner, err := s.store.Get(ctx, created.ID)
	s.Require().NoError(err)
	loser, err := s.store.Get(ctx, created.ID)
	s.Require().NoError(err)

	winner.ApplyDecision(models.DecisionApproved, time.Now().UTC())
	s.Require().NoError(s.store.UpdateStatus(ctx, winner))
	s.Equal(int64(2), winner.Version)

	loser.ApplyDecision(models.DecisionRejected, time.Now().UTC())
	s.Require().ErrorIs(s.store.UpdateStatus(ctx, loser), sentinel.ErrVersionMismatch)

	stored, err := s.store.Get(ctx, created.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, stored.Status)
	s.Equal(int64(2), stored.Version)
}

func (s *PostgresWorkflowStoreSuite) TestUpdateStatusUnknownWorkflow() {
	ctx := context.Background()
	wf, err := models.NewWorkflow(
		id.NewWorkflowID(),
		id.TemplateID(uuid.New()),
		id.SpaceID(uuid.New()),
		id.UserID(uuid.New()),
		time.Now().Add(time.Hour),
		time.Now(),
	)
	s.Require().NoError(err)
	s.Require().ErrorIs(s.store.UpdateStatus(ctx, wf), sentinel.ErrNotFound)
}

func (s *PostgresWorkflowStoreSuite) TestListPendingByTemplate() {
	ctx := context.Background()
	first := s.newPending(time.Hour)

	approved := s.newPending(time.Hour)
	approved.ApplyDecision(models.DecisionApproved, time.Now().UTC())
	s.Require().NoError(s.store.UpdateStatus(ctx, approved))

	pending, err := s.store.ListPendingByTemplate(ctx, first.TemplateID)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(first.ID, pending[0].ID)
}

func (s *PostgresWorkflowStoreSuite) TestListDuePending() {
	ctx := context.Background()
	overdue := s.newPending(time.Minute)
	s.newPending(time.Hour)

	due, err := s.store.ListDuePending(ctx, overdue.ExpiresAt)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(overdue.ID, due[0].ID)
}
