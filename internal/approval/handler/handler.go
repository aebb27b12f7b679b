// Package handler exposes the approval module over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quorum/internal/approval/models"
	workflowsvc "quorum/internal/approval/service/workflow"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	"quorum/pkg/platform/httputil"
	"quorum/pkg/requestcontext"
)

// WorkflowService defines the workflow operations the handler depends on.
type WorkflowService interface {
	CastVote(ctx context.Context, input models.NewVoteInput) (*workflowsvc.CastVoteResult, error)
	Withdraw(ctx context.Context, workflowID id.WorkflowID, actor id.UserID) (*models.Workflow, error)
	GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflowsvc.WorkflowView, error)
	CancelPendingForTemplate(ctx context.Context, templateID id.TemplateID) (int, error)
	ExpireDue(ctx context.Context) (int, error)
}

// QuotaService defines the quota operations the handler depends on.
type QuotaService interface {
	Check(ctx context.Context, quotaID models.QuotaID, targetID string) (bool, error)
	UpdateLimit(ctx context.Context, quotaID models.QuotaID, limit int64, version int64) (*models.Quota, error)
}

// Handler wires approval endpoints to the workflow and quota services.
type Handler struct {
	workflows WorkflowService
	quotas    QuotaService
	logger    *slog.Logger
}

// New constructs an approval handler with its dependencies.
func New(workflows WorkflowService, quotas QuotaService, logger *slog.Logger) *Handler {
	return &Handler{
		workflows: workflows,
		quotas:    quotas,
		logger:    logger,
	}
}

// Register mounts approval endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/workflows/{workflowID}/votes", h.HandleCastVote)
	r.Post("/workflows/{workflowID}/withdraw", h.HandleWithdraw)
	r.Get("/workflows/{workflowID}", h.HandleGetWorkflow)
	r.Post("/workflows/expire-due", h.HandleExpireDue)
	r.Post("/templates/{templateID}/cancel-pending", h.HandleCancelPending)
	r.Post("/quotas/check", h.HandleCheckQuota)
	r.Put("/quotas/limit", h.HandleUpdateQuotaLimit)
}

// HandleCastVote handles POST /workflows/{workflowID}/votes.
func (h *Handler) HandleCastVote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CastVoteRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.workflows.CastVote(ctx, req.Input(chi.URLParam(r, "workflowID")))
	if err != nil {
		h.logger.WarnContext(ctx, "cast vote failed",
			"request_id", requestID,
			"workflow_id", chi.URLParam(r, "workflowID"),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "vote cast",
		"request_id", requestID,
		"workflow_id", result.Workflow.ID,
		"vote_type", result.Vote.Type,
		"decision", result.Decision,
	)
	httputil.WriteJSON(w, http.StatusCreated, fromCastVoteResult(result))
}

// HandleWithdraw handles POST /workflows/{workflowID}/withdraw. The actor is
// the authenticated user; only the workflow's initiator may withdraw.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actor := requestcontext.Actor(ctx)
	if actor.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication_required"))
		return
	}

	workflowID, err := id.ParseWorkflowID(chi.URLParam(r, "workflowID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid_workflow_id"))
		return
	}

	workflow, err := h.workflows.Withdraw(ctx, workflowID, actor)
	if err != nil {
		h.logger.WarnContext(ctx, "withdraw failed",
			"request_id", requestID,
			"workflow_id", workflowID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromWorkflow(workflow))
}

// HandleGetWorkflow handles GET /workflows/{workflowID}.
func (h *Handler) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	workflowID, err := id.ParseWorkflowID(chi.URLParam(r, "workflowID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid_workflow_id"))
		return
	}

	view, err := h.workflows.GetWorkflow(ctx, workflowID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromWorkflowView(view))
}

// HandleExpireDue handles POST /workflows/expire-due, the maintenance sweep
// that transitions overdue pending workflows to EXPIRED.
func (h *Handler) HandleExpireDue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	expired, err := h.workflows.ExpireDue(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "expiry sweep failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ExpireDueResponse{Expired: expired})
}

// HandleCancelPending handles POST /templates/{templateID}/cancel-pending,
// invoked when a template is deprecated.
func (h *Handler) HandleCancelPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	templateID, err := id.ParseTemplateID(chi.URLParam(r, "templateID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid_template_id"))
		return
	}

	cancelled, err := h.workflows.CancelPendingForTemplate(ctx, templateID)
	if err != nil {
		h.logger.ErrorContext(ctx, "bulk cancellation failed",
			"request_id", requestID,
			"template_id", templateID,
			"cancelled", cancelled,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CancelPendingResponse{Cancelled: cancelled})
}

// HandleCheckQuota handles POST /quotas/check.
func (h *Handler) HandleCheckQuota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CheckQuotaRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	allowed, err := h.quotas.Check(ctx, req.QuotaID(), req.TargetID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CheckQuotaResponse{Allowed: allowed})
}

// HandleUpdateQuotaLimit handles PUT /quotas/limit.
func (h *Handler) HandleUpdateQuotaLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[UpdateQuotaLimitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	quota, err := h.quotas.UpdateLimit(ctx, req.QuotaID(), req.Limit, req.Version)
	if err != nil {
		h.logger.WarnContext(ctx, "quota limit update failed",
			"request_id", requestID,
			"scope", req.Scope,
			"metric", req.Metric,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromQuota(quota))
}
