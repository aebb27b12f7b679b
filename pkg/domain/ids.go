// Package domain defines typed identifiers and voter identity values shared
// across modules.
//
// IDs are distinct types over uuid.UUID so the compiler rejects cross-type
// assignment (a GroupID can never be passed where a WorkflowID is expected).
// Construct them via the Parse* functions at trust boundaries; direct casting
// bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "quorum/pkg/domain-errors"
)

// Typed identifiers for the approval domain.
type (
	WorkflowID uuid.UUID
	TemplateID uuid.UUID
	GroupID    uuid.UUID
	VoteID     uuid.UUID
	UserID     uuid.UUID
	SpaceID    uuid.UUID
)

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

// ParseWorkflowID constructs a WorkflowID from external input.
func ParseWorkflowID(s string) (WorkflowID, error) {
	u, err := parseUUID(s)
	return WorkflowID(u), err
}

// ParseTemplateID constructs a TemplateID from external input.
func ParseTemplateID(s string) (TemplateID, error) {
	u, err := parseUUID(s)
	return TemplateID(u), err
}

// ParseGroupID constructs a GroupID from external input.
func ParseGroupID(s string) (GroupID, error) {
	u, err := parseUUID(s)
	return GroupID(u), err
}

// ParseVoteID constructs a VoteID from external input.
func ParseVoteID(s string) (VoteID, error) {
	u, err := parseUUID(s)
	return VoteID(u), err
}

// ParseUserID constructs a UserID from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	return UserID(u), err
}

// ParseSpaceID constructs a SpaceID from external input.
func ParseSpaceID(s string) (SpaceID, error) {
	u, err := parseUUID(s)
	return SpaceID(u), err
}

func (id WorkflowID) String() string { return uuid.UUID(id).String() }
func (id TemplateID) String() string { return uuid.UUID(id).String() }
func (id GroupID) String() string    { return uuid.UUID(id).String() }
func (id VoteID) String() string     { return uuid.UUID(id).String() }
func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id SpaceID) String() string    { return uuid.UUID(id).String() }

func (id WorkflowID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TemplateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id GroupID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id VoteID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id SpaceID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewWorkflowID generates a fresh random WorkflowID.
func NewWorkflowID() WorkflowID { return WorkflowID(uuid.New()) }

// NewVoteID generates a fresh random VoteID.
func NewVoteID() VoteID { return VoteID(uuid.New()) }

// Text marshalling keeps the canonical UUID string form on the wire and in
// JSON documents. Defined types do not inherit uuid.UUID's methods, so these
// are spelled out per type.

func (id WorkflowID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id TemplateID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id GroupID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id VoteID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id SpaceID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }

func unmarshalUUIDText(b []byte) (uuid.UUID, error) {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	return u, nil
}

func (id *WorkflowID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUIDText(b)
	*id = WorkflowID(u)
	return err
}

func (id *TemplateID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUIDText(b)
	*id = TemplateID(u)
	return err
}

func (id *GroupID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUIDText(b)
	*id = GroupID(u)
	return err
}

func (id *VoteID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUIDText(b)
	*id = VoteID(u)
	return err
}

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUIDText(b)
	*id = UserID(u)
	return err
}

func (id *SpaceID) UnmarshalText(b []byte) error {
	u, err := unmarshalUUIDText(b)
	*id = SpaceID(u)
	return err
}
