package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"quorum/internal/approval/models"
	id "quorum/pkg/domain"
)

// PostgresMembershipReader builds membership snapshots from the groups and
// group_members tables. Group existence and members are read in one pass per
// group so the snapshot distinguishes empty groups from missing ones.
type PostgresMembershipReader struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresMembershipReader {
	return &PostgresMembershipReader{db: db}
}

func (r *PostgresMembershipReader) Snapshot(ctx context.Context, groupIDs []id.GroupID) (models.MembershipSnapshot, error) {
	snapshot := make(models.MembershipSnapshot, len(groupIDs))
	for _, groupID := range groupIDs {
		members, err := r.readGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		if members == nil {
			continue
		}
		snapshot[groupID] = members
	}
	return snapshot, nil
}

// readGroup returns nil when the group does not exist, and a possibly empty
// member set when it does.
func (r *PostgresMembershipReader) readGroup(ctx context.Context, groupID id.GroupID) (map[string]bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)",
		uuid.UUID(groupID),
	).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check group %s: %w", groupID, err)
	}
	if !exists {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT entity_type, entity_id FROM group_members WHERE group_id = $1",
		uuid.UUID(groupID),
	)
	if err != nil {
		return nil, fmt.Errorf("list members of group %s: %w", groupID, err)
	}
	defer rows.Close()

	members := make(map[string]bool)
	for rows.Next() {
		var (
			entityType string
			entityID   uuid.UUID
		)
		if err := rows.Scan(&entityType, &entityID); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		ref := id.VoterRef{EntityType: id.EntityType(entityType), EntityID: entityID}
		members[ref.Key()] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list members of group %s: %w", groupID, err)
	}
	return members, nil
}
