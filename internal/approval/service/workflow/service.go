// Package workflow orchestrates the cast-vote pipeline and owns workflow
// status transitions: validate -> persist -> reload -> consolidate ->
// evaluate -> version-guarded status update.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"quorum/internal/approval/engine"
	"quorum/internal/approval/metrics"
	"quorum/internal/approval/models"
	"quorum/internal/approval/ports"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
	"quorum/pkg/platform/audit"
	"quorum/pkg/platform/sentinel"
	"quorum/pkg/requestcontext"
)

// Type aliases for shared interfaces.
type (
	VoteStore        = ports.VoteStore
	WorkflowStore    = ports.WorkflowStore
	RuleStore        = ports.RuleStore
	MembershipReader = ports.MembershipReader
	AuditPublisher   = ports.AuditPublisher
)

const (
	// defaultTransitionAttempts bounds the read-evaluate-write retry of a
	// single vote-triggered transition.
	defaultTransitionAttempts = 3

	// defaultCancelAttempts bounds the per-workflow retry during bulk
	// cancellation.
	defaultCancelAttempts = 5

	// cancelConcurrency bounds parallel workers during bulk cancellation.
	cancelConcurrency = 4
)

type Service struct {
	votes      VoteStore
	workflows  WorkflowStore
	rules      RuleStore
	membership MembershipReader

	auditPublisher AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer

	transitionAttempts int
	cancelAttempts     int
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTransitionAttempts overrides the bounded retry for version-guarded
// status writes.
func WithTransitionAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.transitionAttempts = n
		}
	}
}

// WithCancelAttempts overrides the per-workflow retry bound for bulk
// cancellation.
func WithCancelAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.cancelAttempts = n
		}
	}
}

func New(votes VoteStore, workflows WorkflowStore, rules RuleStore, membership MembershipReader, opts ...Option) (*Service, error) {
	if votes == nil {
		return nil, fmt.Errorf("vote store is required")
	}
	if workflows == nil {
		return nil, fmt.Errorf("workflow store is required")
	}
	if rules == nil {
		return nil, fmt.Errorf("rule store is required")
	}
	if membership == nil {
		return nil, fmt.Errorf("membership reader is required")
	}

	svc := &Service{
		votes:              votes,
		workflows:          workflows,
		rules:              rules,
		membership:         membership,
		tracer:             otel.Tracer("quorum/approval"),
		transitionAttempts: defaultTransitionAttempts,
		cancelAttempts:     defaultCancelAttempts,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CastVoteResult reports the durable outcome of one cast vote.
type CastVoteResult struct {
	Vote     *models.Vote
	Workflow *models.Workflow
	Decision models.Decision
}

// CastVote runs the full pipeline for one vote. The vote is durably recorded
// before any status transition is attempted; a lost transition race does not
// un-record the vote (the retry re-reads and re-evaluates over the same
// history).
func (s *Service) CastVote(ctx context.Context, input models.NewVoteInput) (*CastVoteResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "approval.cast_vote")
	defer span.End()
	now := requestcontext.Now(ctx)

	vote, err := models.NewVote(input, now)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("workflow.id", vote.WorkflowID.String()),
		attribute.String("vote.type", vote.Type.String()),
	)

	workflow, err := s.loadOpenWorkflow(ctx, vote.WorkflowID, now)
	if err != nil {
		return nil, err
	}

	if err := s.checkVotedForGroupsExist(ctx, vote); err != nil {
		return nil, err
	}

	if err := s.votes.Append(ctx, vote); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record vote")
	}
	if s.metrics != nil {
		s.metrics.IncrementVoteCast(vote.Type.String())
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:     string(audit.EventVoteCast),
		WorkflowID: vote.WorkflowID,
		ActorKey:   vote.Voter.Key(),
		Reason:     vote.Reason,
	}, "vote_id", vote.ID, "vote_type", vote.Type)

	workflow, decision, err := s.decideAndTransition(ctx, workflow, now)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveCastVote(start)
	}
	return &CastVoteResult{Vote: vote, Workflow: workflow, Decision: decision}, nil
}

// loadOpenWorkflow fetches the workflow and enforces that it still accepts
// votes, lazily expiring it when the deadline has passed.
func (s *Service) loadOpenWorkflow(ctx context.Context, workflowID id.WorkflowID, now time.Time) (*models.Workflow, error) {
	workflow, err := s.workflows.Get(ctx, workflowID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "workflow_not_found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load workflow")
	}

	if workflow.Status == models.StatusPending && workflow.IsExpiredAt(now) {
		if expired, err := s.expireOne(ctx, workflow, now); err == nil {
			workflow = expired
		}
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "workflow_expired")
	}
	if err := workflow.CanTransition(); err != nil {
		return nil, err
	}
	return workflow, nil
}

// checkVotedForGroupsExist verifies every endorsed group exists. The snapshot
// contains entries only for groups that exist.
func (s *Service) checkVotedForGroupsExist(ctx context.Context, vote *models.Vote) error {
	if len(vote.VotedForGroups) == 0 {
		return nil
	}
	snapshot, err := s.membership.Snapshot(ctx, vote.VotedForGroups)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group membership")
	}
	for _, groupID := range vote.VotedForGroups {
		if !snapshot.HasGroup(groupID) {
			return dErrors.New(dErrors.CodeNotFound, "group_not_found")
		}
	}
	return nil
}

// decideAndTransition reloads the vote history, evaluates the rule tree and
// commits the resulting transition under the version guard, retrying a
// bounded number of times when a concurrent writer gets there first.
func (s *Service) decideAndTransition(ctx context.Context, workflow *models.Workflow, now time.Time) (*models.Workflow, models.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "approval.evaluate")
	defer span.End()

	for attempt := 1; attempt <= s.transitionAttempts; attempt++ {
		decision, err := s.evaluate(ctx, workflow)
		if err != nil {
			return nil, "", err
		}
		span.SetAttributes(attribute.String("decision", string(decision)))

		if !workflow.Status.IsTerminal() && workflow.ApplyDecision(decision, now) {
			err = s.workflows.UpdateStatus(ctx, workflow)
			if err == nil {
				s.recordDecision(ctx, workflow, decision)
				return workflow, decision, nil
			}
			if !errors.Is(err, sentinel.ErrVersionMismatch) {
				return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to update workflow status")
			}
			if s.metrics != nil {
				s.metrics.IncrementConflict()
			}

			// Lost the race: re-read and re-evaluate against fresh state.
			workflow, err = s.workflows.Get(ctx, workflow.ID)
			if err != nil {
				return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload workflow")
			}
			if workflow.Status.IsTerminal() {
				// Another request already decided this workflow.
				return workflow, decision, nil
			}
			continue
		}
		return workflow, decision, nil
	}

	return nil, "", dErrors.New(dErrors.CodeConflict, "concurrency_error")
}

// evaluate is one pure consolidate+evaluate pass over current state.
func (s *Service) evaluate(ctx context.Context, workflow *models.Workflow) (models.Decision, error) {
	start := time.Now()

	history, err := s.votes.ListByWorkflow(ctx, workflow.ID)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load votes")
	}
	for _, vote := range history {
		// Trust boundary: a stored vote that fails write-time checks is data
		// inconsistency, not caller error.
		if err := vote.Validate(); err != nil {
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "stored vote failed validation",
					"vote_id", vote.ID, "workflow_id", workflow.ID, "error", err)
			}
			return "", dErrors.New(dErrors.CodeInternal, "internal_error")
		}
	}

	rule, err := s.rules.GetByTemplate(ctx, workflow.TemplateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "approval_rule_not_found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load approval rule")
	}

	snapshot, err := s.membership.Snapshot(ctx, rule.GroupIDs())
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group membership")
	}

	consolidated := engine.Consolidate(history)
	decision := engine.Evaluate(rule, consolidated, snapshot)

	if s.metrics != nil {
		s.metrics.ObserveEvaluation(start)
	}
	return decision, nil
}

func (s *Service) recordDecision(ctx context.Context, workflow *models.Workflow, decision models.Decision) {
	if s.metrics != nil {
		s.metrics.IncrementDecided(string(workflow.Status))
	}
	action := audit.EventWorkflowApproved
	if decision == models.DecisionRejected {
		action = audit.EventWorkflowRejected
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:     string(action),
		WorkflowID: workflow.ID,
		Decision:   string(decision),
	}, "workflow_id", workflow.ID, "status", workflow.Status)
}

// Withdraw transitions a non-terminal workflow to WITHDRAWN on behalf of its
// initiator, under the same version guard as vote-triggered transitions.
func (s *Service) Withdraw(ctx context.Context, workflowID id.WorkflowID, actor id.UserID) (*models.Workflow, error) {
	now := requestcontext.Now(ctx)

	for attempt := 1; attempt <= s.transitionAttempts; attempt++ {
		workflow, err := s.workflows.Get(ctx, workflowID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "workflow_not_found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load workflow")
		}

		if workflow.Status == models.StatusPending && workflow.IsExpiredAt(now) {
			if expired, expErr := s.expireOne(ctx, workflow, now); expErr == nil {
				workflow = expired
			}
			return nil, dErrors.New(dErrors.CodeInvariantViolation, "workflow_expired")
		}

		if err := workflow.Withdraw(actor, now); err != nil {
			return nil, err
		}

		err = s.workflows.UpdateStatus(ctx, workflow)
		if err == nil {
			if s.metrics != nil {
				s.metrics.IncrementDecided(string(models.StatusWithdrawn))
			}
			ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
				Action:     string(audit.EventWorkflowWithdrawn),
				WorkflowID: workflow.ID,
				ActorKey:   id.VoterRef{EntityType: id.EntityTypeUser, EntityID: uuid.UUID(actor)}.Key(),
			})
			return workflow, nil
		}
		if !errors.Is(err, sentinel.ErrVersionMismatch) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update workflow status")
		}
		if s.metrics != nil {
			s.metrics.IncrementConflict()
		}
	}

	return nil, dErrors.New(dErrors.CodeConflict, "concurrency_error")
}

// ExpireDue transitions every PENDING workflow whose deadline has passed to
// EXPIRED. Lost races are tolerated: whoever committed first has either
// expired the workflow already or decided it just before the deadline.
// Returns the number of workflows this call expired.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := requestcontext.Now(ctx)

	due, err := s.workflows.ListDuePending(ctx, now)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list due workflows")
	}

	expired := 0
	for _, workflow := range due {
		if _, err := s.expireOne(ctx, workflow, now); err != nil {
			if errors.Is(err, sentinel.ErrVersionMismatch) {
				continue
			}
			return expired, dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire workflow")
		}
		expired++
	}
	return expired, nil
}

func (s *Service) expireOne(ctx context.Context, workflow *models.Workflow, now time.Time) (*models.Workflow, error) {
	if err := workflow.CanTransition(); err != nil {
		return nil, err
	}
	workflow.ApplyExpiry(now)
	if err := s.workflows.UpdateStatus(ctx, workflow); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementDecided(string(models.StatusExpired))
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		Action:     string(audit.EventWorkflowExpired),
		WorkflowID: workflow.ID,
	})
	return workflow, nil
}

// CancelPendingForTemplate withdraws every PENDING workflow of a deprecated
// template. Each workflow runs its own bounded read-check-write retry;
// exhausting the bound on any workflow fails the batch with
// max_attempts_reach_for_cancelling_workflows rather than looping forever.
// Returns the number of workflows cancelled by this call.
func (s *Service) CancelPendingForTemplate(ctx context.Context, templateID id.TemplateID) (int, error) {
	now := requestcontext.Now(ctx)

	pending, err := s.workflows.ListPendingByTemplate(ctx, templateID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending workflows")
	}

	var cancelled atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cancelConcurrency)

	for _, workflow := range pending {
		g.Go(func() error {
			ok, err := s.cancelOne(ctx, workflow.ID, now)
			if err != nil {
				return err
			}
			if ok {
				cancelled.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(cancelled.Load()), err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "cancelled pending workflows",
			"template_id", templateID, "count", cancelled.Load())
	}
	return int(cancelled.Load()), nil
}

// cancelOne retries the read-check-write cycle for a single workflow.
// Reports false when the workflow reached a terminal state through another
// writer, which is not a failure of the batch.
func (s *Service) cancelOne(ctx context.Context, workflowID id.WorkflowID, now time.Time) (bool, error) {
	for attempt := 1; attempt <= s.cancelAttempts; attempt++ {
		workflow, err := s.workflows.Get(ctx, workflowID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return false, nil
			}
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load workflow")
		}
		if workflow.Status.IsTerminal() {
			return false, nil
		}

		workflow.ApplyWithdrawal(now)
		err = s.workflows.UpdateStatus(ctx, workflow)
		if err == nil {
			ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
				Action:     string(audit.EventWorkflowCancelled),
				WorkflowID: workflow.ID,
			})
			return true, nil
		}
		if !errors.Is(err, sentinel.ErrVersionMismatch) {
			return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update workflow status")
		}
		if s.metrics != nil {
			s.metrics.IncrementConflict()
		}
	}
	return false, dErrors.New(dErrors.CodeConflict, "max_attempts_reach_for_cancelling_workflows")
}

// WorkflowView is the read-side projection of a workflow: its current state
// plus the consolidated effective votes and what the evaluator would decide
// right now.
type WorkflowView struct {
	Workflow     *models.Workflow
	Consolidated []*models.Vote
	Decision     models.Decision
}

// GetWorkflow loads a workflow together with its consolidated votes and the
// current evaluator decision. Read-only; no transition is attempted.
func (s *Service) GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*WorkflowView, error) {
	workflow, err := s.workflows.Get(ctx, workflowID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "workflow_not_found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load workflow")
	}

	history, err := s.votes.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load votes")
	}

	rule, err := s.rules.GetByTemplate(ctx, workflow.TemplateID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "approval_rule_not_found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load approval rule")
	}

	snapshot, err := s.membership.Snapshot(ctx, rule.GroupIDs())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load group membership")
	}

	consolidated := engine.Consolidate(history)
	return &WorkflowView{
		Workflow:     workflow,
		Consolidated: consolidated,
		Decision:     engine.Evaluate(rule, consolidated, snapshot),
	}, nil
}
