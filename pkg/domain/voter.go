package domain

import (
	"fmt"

	"github.com/google/uuid"

	dErrors "quorum/pkg/domain-errors"
)

// EntityType distinguishes the two kinds of voting principals. Users and
// agents draw ids from the same UUID space, so the type is part of a voter's
// identity everywhere votes are deduplicated or counted.
type EntityType string

const (
	EntityTypeUser  EntityType = "user"
	EntityTypeAgent EntityType = "agent"
)

var validEntityTypes = map[EntityType]bool{
	EntityTypeUser:  true,
	EntityTypeAgent: true,
}

// ParseEntityType constructs an EntityType from external input.
//
// Errors: returns CodeInvalidInput with reason "invalid_voter_type" when the
// value is empty or unsupported.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid_voter_type")
	}
	return t, nil
}

// IsValid checks if the entity type is one of the supported values.
func (t EntityType) IsValid() bool {
	return validEntityTypes[t]
}

func (t EntityType) String() string {
	return string(t)
}

// VoterRef identifies a voting principal.
//
// Invariants:
//   - EntityID is a valid, non-nil UUID
//   - EntityType is user or agent
type VoterRef struct {
	EntityType EntityType `json:"entity_type"`
	EntityID   uuid.UUID  `json:"entity_id"`
}

// NewVoterRef constructs a validated VoterRef from external input.
//
// Errors (first failure wins):
//   - CodeInvalidInput "invalid_voter_id" for a missing or malformed id
//   - CodeInvalidInput "invalid_voter_type" for an unsupported entity type
func NewVoterRef(entityType, entityID string) (VoterRef, error) {
	id, err := parseUUID(entityID)
	if err != nil {
		return VoterRef{}, dErrors.New(dErrors.CodeInvalidInput, "invalid_voter_id")
	}
	t, err := ParseEntityType(entityType)
	if err != nil {
		return VoterRef{}, err
	}
	return VoterRef{EntityType: t, EntityID: id}, nil
}

// Key returns the normalized voter key "<entityType>:<entityId>".
// The type prefix guarantees a user and an agent sharing a raw id are never
// conflated during consolidation or quorum counting.
func (v VoterRef) Key() string {
	return fmt.Sprintf("%s:%s", v.EntityType, v.EntityID)
}

// Validate re-runs the construction checks. Used when a VoterRef crosses a
// trust boundary (e.g. loaded from storage).
func (v VoterRef) Validate() error {
	if v.EntityID == uuid.Nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid_voter_id")
	}
	if !v.EntityType.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid_voter_type")
	}
	return nil
}
