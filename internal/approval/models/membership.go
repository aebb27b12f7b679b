package models

import (
	id "quorum/pkg/domain"
)

// MembershipSnapshot is a point-in-time read of group membership, keyed by
// group id with members as normalized voter keys. The evaluator treats it as
// immutable input; it is never written back.
type MembershipSnapshot map[id.GroupID]map[string]bool

// IsMember reports whether the normalized voter key belongs to the group in
// this snapshot.
func (m MembershipSnapshot) IsMember(groupID id.GroupID, voterKey string) bool {
	members, ok := m[groupID]
	if !ok {
		return false
	}
	return members[voterKey]
}

// HasGroup reports whether the snapshot knows the group at all. Used to
// distinguish "empty group" from "no such group".
func (m MembershipSnapshot) HasGroup(groupID id.GroupID) bool {
	_, ok := m[groupID]
	return ok
}
