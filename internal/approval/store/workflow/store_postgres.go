package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quorum/internal/approval/models"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

const workflowColumns = "id, template_id, space_id, initiator_id, status, expires_at, version, created_at, updated_at"

// PostgresWorkflowStore persists workflows in PostgreSQL. Status writes are
// version-guarded: the UPDATE matches on (id, version) so a lost race
// surfaces as zero affected rows rather than a silent overwrite.
type PostgresWorkflowStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresWorkflowStore {
	return &PostgresWorkflowStore{db: db}
}

func (s *PostgresWorkflowStore) Get(ctx context.Context, workflowID id.WorkflowID) (*models.Workflow, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+workflowColumns+" FROM workflows WHERE id = $1",
		uuid.UUID(workflowID),
	)
	workflow, err := scanWorkflow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	return workflow, nil
}

func (s *PostgresWorkflowStore) Create(ctx context.Context, workflow *models.Workflow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, template_id, space_id, initiator_id, status, expires_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(workflow.ID),
		uuid.UUID(workflow.TemplateID),
		uuid.UUID(workflow.SpaceID),
		uuid.UUID(workflow.InitiatorID),
		string(workflow.Status),
		workflow.ExpiresAt,
		workflow.Version,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create workflow: %w", err)
	}
	return nil
}

func (s *PostgresWorkflowStore) UpdateStatus(ctx context.Context, workflow *models.Workflow) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE workflows
		SET status = $1, updated_at = $2, version = version + 1
		WHERE id = $3 AND version = $4`,
		string(workflow.Status),
		workflow.UpdatedAt,
		uuid.UUID(workflow.ID),
		workflow.Version,
	)
	if err != nil {
		return fmt.Errorf("update workflow status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update workflow status: %w", err)
	}
	if affected == 0 {
		// Distinguish a lost race from a missing row.
		var exists bool
		err := s.db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM workflows WHERE id = $1)",
			uuid.UUID(workflow.ID),
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("update workflow status: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrVersionMismatch
	}

	workflow.Version++
	return nil
}

func (s *PostgresWorkflowStore) ListPendingByTemplate(ctx context.Context, templateID id.TemplateID) ([]*models.Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+workflowColumns+" FROM workflows WHERE template_id = $1 AND status = $2",
		uuid.UUID(templateID),
		string(models.StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("list pending workflows: %w", err)
	}
	defer rows.Close()
	return collectWorkflows(rows)
}

func (s *PostgresWorkflowStore) ListDuePending(ctx context.Context, now time.Time) ([]*models.Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+workflowColumns+" FROM workflows WHERE status = $1 AND expires_at <= $2",
		string(models.StatusPending),
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("list due workflows: %w", err)
	}
	defer rows.Close()
	return collectWorkflows(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow    models.Workflow
		workflowID  uuid.UUID
		templateID  uuid.UUID
		spaceID     uuid.UUID
		initiatorID uuid.UUID
		status      string
	)
	err := row.Scan(
		&workflowID,
		&templateID,
		&spaceID,
		&initiatorID,
		&status,
		&workflow.ExpiresAt,
		&workflow.Version,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.ID = id.WorkflowID(workflowID)
	workflow.TemplateID = id.TemplateID(templateID)
	workflow.SpaceID = id.SpaceID(spaceID)
	workflow.InitiatorID = id.UserID(initiatorID)
	workflow.Status = models.WorkflowStatus(status)
	return &workflow, nil
}

func collectWorkflows(rows *sql.Rows) ([]*models.Workflow, error) {
	var out []*models.Workflow
	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		out = append(out, workflow)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan workflows: %w", err)
	}
	return out, nil
}
