package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"quorum/internal/approval/models"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

type WorkflowStoreSuite struct {
	suite.Suite
	store *InMemoryWorkflowStore
	now   time.Time
}

func (s *WorkflowStoreSuite) SetupTest() {
	s.store = New()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestWorkflowStoreSuite(t *testing.T) {
	suite.Run(t, new(WorkflowStoreSuite))
}

func (s *WorkflowStoreSuite) newPending(templateID id.TemplateID) *models.Workflow {
	workflow, err := models.NewWorkflow(
		id.NewWorkflowID(),
		templateID,
		id.SpaceID(uuid.New()),
		id.UserID(uuid.New()),
		s.now.Add(time.Hour),
		s.now,
	)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), workflow))
	return workflow
}

func (s *WorkflowStoreSuite) TestGet() {
	s.Run("returns stored workflow", func() {
		workflow := s.newPending(id.TemplateID(uuid.New()))

		found, err := s.store.Get(context.Background(), workflow.ID)
		s.Require().NoError(err)
		s.Equal(workflow, found)
	})

	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.Get(context.Background(), id.NewWorkflowID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned workflow is a private copy", func() {
		workflow := s.newPending(id.TemplateID(uuid.New()))

		found, err := s.store.Get(context.Background(), workflow.ID)
		s.Require().NoError(err)
		found.Status = models.StatusApproved

		again, err := s.store.Get(context.Background(), workflow.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, again.Status)
	})
}

func (s *WorkflowStoreSuite) TestUpdateStatus() {
	ctx := context.Background()

	s.Run("commits when version matches and increments it", func() {
		workflow := s.newPending(id.TemplateID(uuid.New()))
		workflow.ApplyDecision(models.DecisionApproved, s.now.Add(time.Minute))

		s.Require().NoError(s.store.UpdateStatus(ctx, workflow))
		s.Equal(int64(2), workflow.Version)

		stored, err := s.store.Get(ctx, workflow.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, stored.Status)
		s.Equal(int64(2), stored.Version)
	})

	s.Run("rejects stale version with ErrVersionMismatch", func() {
		workflow := s.newPending(id.TemplateID(uuid.New()))

		stale, err := s.store.Get(ctx, workflow.ID)
		s.Require().NoError(err)

		workflow.ApplyDecision(models.DecisionApproved, s.now.Add(time.Minute))
		s.Require().NoError(s.store.UpdateStatus(ctx, workflow))

		stale.ApplyDecision(models.DecisionRejected, s.now.Add(time.Minute))
		err = s.store.UpdateStatus(ctx, stale)
		s.Require().ErrorIs(err, sentinel.ErrVersionMismatch)

		stored, err := s.store.Get(ctx, workflow.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, stored.Status)
	})

	s.Run("returns ErrNotFound for unknown workflow", func() {
		workflow, err := models.NewWorkflow(
			id.NewWorkflowID(),
			id.TemplateID(uuid.New()),
			id.SpaceID(uuid.New()),
			id.UserID(uuid.New()),
			s.now.Add(time.Hour),
			s.now,
		)
		s.Require().NoError(err)
		s.Require().ErrorIs(s.store.UpdateStatus(ctx, workflow), sentinel.ErrNotFound)
	})

	s.Run("exactly one of many concurrent writers wins", func() {
		workflow := s.newPending(id.TemplateID(uuid.New()))

		// Every writer reads the same version before any of them commits,
		// so exactly one CAS can win.
		const writers = 8
		attempts := make([]*models.Workflow, writers)
		for i := range attempts {
			attempt, err := s.store.Get(ctx, workflow.ID)
			s.Require().NoError(err)

			decision := models.DecisionApproved
			if i%2 == 1 {
				decision = models.DecisionRejected
			}
			attempt.ApplyDecision(decision, s.now.Add(time.Minute))
			attempts[i] = attempt
		}

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			conflicts int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.store.UpdateStatus(ctx, attempts[i])
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				default:
					s.ErrorIs(err, sentinel.ErrVersionMismatch)
					conflicts++
				}
			}(i)
		}
		wg.Wait()

		s.Equal(1, succeeded)
		s.Equal(writers-1, conflicts)

		stored, err := s.store.Get(ctx, workflow.ID)
		s.Require().NoError(err)
		s.True(stored.Status.IsTerminal())
		s.Equal(int64(2), stored.Version)
	})
}

func (s *WorkflowStoreSuite) TestListPendingByTemplate() {
	ctx := context.Background()
	templateID := id.TemplateID(uuid.New())

	first := s.newPending(templateID)
	second := s.newPending(templateID)
	s.newPending(id.TemplateID(uuid.New())) // other template

	decided := s.newPending(templateID)
	decided.ApplyDecision(models.DecisionApproved, s.now)
	s.Require().NoError(s.store.UpdateStatus(ctx, decided))

	pending, err := s.store.ListPendingByTemplate(ctx, templateID)
	s.Require().NoError(err)
	s.Len(pending, 2)

	ids := map[id.WorkflowID]bool{}
	for _, workflow := range pending {
		ids[workflow.ID] = true
	}
	s.True(ids[first.ID])
	s.True(ids[second.ID])
}

func (s *WorkflowStoreSuite) TestListDuePending() {
	ctx := context.Background()

	due, err := models.NewWorkflow(
		id.NewWorkflowID(),
		id.TemplateID(uuid.New()),
		id.SpaceID(uuid.New()),
		id.UserID(uuid.New()),
		s.now.Add(time.Minute),
		s.now,
	)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, due))
	fresh := s.newPending(id.TemplateID(uuid.New())) // expires an hour out

	results, err := s.store.ListDuePending(ctx, due.ExpiresAt)
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal(due.ID, results[0].ID)
	s.NotEqual(fresh.ID, results[0].ID)

	none, err := s.store.ListDuePending(ctx, s.now)
	s.Require().NoError(err)
	s.Empty(none)
}
