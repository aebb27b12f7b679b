package rule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"quorum/internal/approval/models"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/sentinel"
)

// PostgresRuleStore persists approval rule trees as JSONB, one row per
// template.
type PostgresRuleStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresRuleStore {
	return &PostgresRuleStore{db: db}
}

func (s *PostgresRuleStore) GetByTemplate(ctx context.Context, templateID id.TemplateID) (*models.ApprovalRule, error) {
	var content []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT content FROM approval_rules WHERE template_id = $1",
		uuid.UUID(templateID),
	).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get approval rule: %w", err)
	}

	rule, err := models.ParseRule(content)
	if err != nil {
		return nil, fmt.Errorf("decode stored approval rule: %w", err)
	}
	return rule, nil
}

func (s *PostgresRuleStore) Save(ctx context.Context, templateID id.TemplateID, rule *models.ApprovalRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	content, err := rule.Encode()
	if err != nil {
		return fmt.Errorf("encode approval rule: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO approval_rules (template_id, content, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (template_id) DO UPDATE SET content = EXCLUDED.content, updated_at = now()`,
		uuid.UUID(templateID),
		content,
	)
	if err != nil {
		return fmt.Errorf("save approval rule: %w", err)
	}
	return nil
}
