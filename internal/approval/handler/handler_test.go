package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"quorum/internal/approval/models"
	quotasvc "quorum/internal/approval/service/quota"
	workflowsvc "quorum/internal/approval/service/workflow"
	membershipstore "quorum/internal/approval/store/membership"
	quotastore "quorum/internal/approval/store/quota"
	rulestore "quorum/internal/approval/store/rule"
	votestore "quorum/internal/approval/store/vote"
	workflowstore "quorum/internal/approval/store/workflow"
	id "quorum/pkg/domain"
	"quorum/pkg/requestcontext"
)

type HandlerSuite struct {
	suite.Suite
	router http.Handler

	workflows  *workflowstore.InMemoryWorkflowStore
	membership *membershipstore.InMemoryMembershipStore
	rules      *rulestore.InMemoryRuleStore
	quotaStore *quotastore.InMemoryQuotaStore
	usage      *quotastore.InMemoryUsageReader

	actor      id.UserID
	templateID id.TemplateID
	groupID    id.GroupID
	voterID    uuid.UUID
}

func (s *HandlerSuite) SetupTest() {
	votes := votestore.New()
	s.workflows = workflowstore.New()
	s.rules = rulestore.New()
	s.membership = membershipstore.New()
	s.quotaStore = quotastore.New()
	s.usage = quotastore.NewUsageReader()

	wfSvc, err := workflowsvc.New(votes, s.workflows, s.rules, s.membership)
	s.Require().NoError(err)
	qSvc, err := quotasvc.New(s.quotaStore, s.usage)
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := New(wfSvc, qSvc, logger)

	s.actor = id.UserID(uuid.New())
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithActor(req.Context(), s.actor)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	handler.Register(r)
	s.router = r

	s.templateID = id.TemplateID(uuid.New())
	s.groupID = id.GroupID(uuid.New())
	s.voterID = uuid.New()

	voterKey := id.VoterRef{EntityType: id.EntityTypeUser, EntityID: s.voterID}.Key()
	s.membership.PutGroup(s.groupID, voterKey)
	s.Require().NoError(s.rules.Save(context.Background(), s.templateID, models.GroupRule(s.groupID, 1)))
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) newPendingWorkflow(initiator id.UserID) *models.Workflow {
	now := time.Now()
	workflow, err := models.NewWorkflow(
		id.NewWorkflowID(),
		s.templateID,
		id.SpaceID(uuid.New()),
		initiator,
		now.Add(time.Hour),
		now,
	)
	s.Require().NoError(err)
	s.Require().NoError(s.workflows.Create(context.Background(), workflow))
	return workflow
}

func (s *HandlerSuite) do(method, path string, payload any) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		s.Require().NoError(err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestCastVote() {
	s.Run("approving vote decides the workflow", func() {
		workflow := s.newPendingWorkflow(id.UserID(uuid.New()))

		rec := s.do(http.MethodPost, "/workflows/"+workflow.ID.String()+"/votes", CastVoteRequest{
			UserID:         s.voterID.String(),
			Type:           string(models.VoteTypeApprove),
			VotedForGroups: []string{s.groupID.String()},
		})
		s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

		var resp CastVoteResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(string(models.DecisionApproved), resp.Decision)
		s.Equal(string(models.StatusApproved), resp.Workflow.Status)
		s.Equal("user:"+s.voterID.String(), resp.Vote.Voter)
	})

	s.Run("rejects invalid JSON", func() {
		workflow := s.newPendingWorkflow(id.UserID(uuid.New()))

		req := httptest.NewRequest(http.MethodPost,
			"/workflows/"+workflow.ID.String()+"/votes",
			bytes.NewReader([]byte("not json")))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("missing vote type is a validation error", func() {
		workflow := s.newPendingWorkflow(id.UserID(uuid.New()))

		rec := s.do(http.MethodPost, "/workflows/"+workflow.ID.String()+"/votes", CastVoteRequest{
			UserID: s.voterID.String(),
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown workflow maps to 404", func() {
		rec := s.do(http.MethodPost, "/workflows/"+uuid.NewString()+"/votes", CastVoteRequest{
			UserID:         s.voterID.String(),
			Type:           string(models.VoteTypeApprove),
			VotedForGroups: []string{s.groupID.String()},
		})
		s.Equal(http.StatusNotFound, rec.Code)

		var body map[string]string
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
		s.Equal("workflow_not_found", body["error_description"])
	})

	s.Run("vote on decided workflow maps to 409", func() {
		workflow := s.newPendingWorkflow(id.UserID(uuid.New()))
		input := CastVoteRequest{
			UserID:         s.voterID.String(),
			Type:           string(models.VoteTypeApprove),
			VotedForGroups: []string{s.groupID.String()},
		}

		first := s.do(http.MethodPost, "/workflows/"+workflow.ID.String()+"/votes", input)
		s.Require().Equal(http.StatusCreated, first.Code)

		second := s.do(http.MethodPost, "/workflows/"+workflow.ID.String()+"/votes", input)
		s.Equal(http.StatusConflict, second.Code)
	})
}

func (s *HandlerSuite) TestWithdraw() {
	s.Run("initiator withdraws", func() {
		workflow := s.newPendingWorkflow(s.actor)

		rec := s.do(http.MethodPost, "/workflows/"+workflow.ID.String()+"/withdraw", nil)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		var resp WorkflowResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal(string(models.StatusWithdrawn), resp.Status)
	})

	s.Run("non-initiator maps to 403", func() {
		workflow := s.newPendingWorkflow(id.UserID(uuid.New()))

		rec := s.do(http.MethodPost, "/workflows/"+workflow.ID.String()+"/withdraw", nil)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("malformed workflow id maps to 400", func() {
		rec := s.do(http.MethodPost, "/workflows/not-a-uuid/withdraw", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestGetWorkflow() {
	workflow := s.newPendingWorkflow(id.UserID(uuid.New()))

	rec := s.do(http.MethodGet, "/workflows/"+workflow.ID.String(), nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp WorkflowViewResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(workflow.ID.String(), resp.Workflow.ID)
	s.Equal(string(models.DecisionPending), resp.Decision)
	s.Empty(resp.Consolidated)
}

func (s *HandlerSuite) TestCancelPending() {
	s.newPendingWorkflow(id.UserID(uuid.New()))
	s.newPendingWorkflow(id.UserID(uuid.New()))

	rec := s.do(http.MethodPost, "/templates/"+s.templateID.String()+"/cancel-pending", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp CancelPendingResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal(2, resp.Cancelled)
}

func (s *HandlerSuite) TestExpireDue() {
	rec := s.do(http.MethodPost, "/workflows/expire-due", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp ExpireDueResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Zero(resp.Expired)
}

func (s *HandlerSuite) TestQuotaEndpoints() {
	quotaID := models.QuotaID{Scope: models.ScopeGroup, Metric: models.MetricMaxEntitiesPerGroup}
	target := uuid.NewString()

	s.Run("check reports allowed and denied", func() {
		s.quotaStore.Seed(quotaID, 1)
		s.usage.SetUsage(quotaID, target, 1)

		rec := s.do(http.MethodPost, "/quotas/check", CheckQuotaRequest{
			Scope:    string(quotaID.Scope),
			Metric:   string(quotaID.Metric),
			TargetID: target,
		})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		var resp CheckQuotaResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.False(resp.Allowed)
	})

	s.Run("limit raise flips a denied check", func() {
		s.quotaStore.Seed(quotaID, 1)
		s.usage.SetUsage(quotaID, target, 1)

		rec := s.do(http.MethodPut, "/quotas/limit", UpdateQuotaLimitRequest{
			Scope:   string(quotaID.Scope),
			Metric:  string(quotaID.Metric),
			Limit:   2,
			Version: 1,
		})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

		var updated QuotaResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&updated))
		s.Equal(int64(2), updated.Limit)
		s.Equal(int64(2), updated.Version)

		check := s.do(http.MethodPost, "/quotas/check", CheckQuotaRequest{
			Scope:    string(quotaID.Scope),
			Metric:   string(quotaID.Metric),
			TargetID: target,
		})
		s.Require().Equal(http.StatusOK, check.Code)

		var resp CheckQuotaResponse
		s.Require().NoError(json.NewDecoder(check.Body).Decode(&resp))
		s.True(resp.Allowed)
	})

	s.Run("stale version maps to 409", func() {
		s.quotaStore.Seed(quotaID, 5)

		rec := s.do(http.MethodPut, "/quotas/limit", UpdateQuotaLimitRequest{
			Scope:   string(quotaID.Scope),
			Metric:  string(quotaID.Metric),
			Limit:   10,
			Version: 99,
		})
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("invalid scope maps to 400", func() {
		rec := s.do(http.MethodPost, "/quotas/check", CheckQuotaRequest{
			Scope:  "REGION",
			Metric: string(quotaID.Metric),
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}
