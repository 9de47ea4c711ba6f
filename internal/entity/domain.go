package entity

import (
	"errors"

	"github.com/google/uuid"
)

// Kind tags used by the core itself. Everything else is caller-defined.
const (
	KindUser = "user"
	KindRole = "role"
)

var (
	// ErrNotFound indicates no entity, attribute, link or permission matches.
	ErrNotFound = errors.New("entity: not found")
	// ErrDuplicate indicates a (kind, name) pair is already taken.
	ErrDuplicate = errors.New("entity: duplicate kind/name")
)

// Entity is a node in the graph. (Kind, Name) is a secondary lookup key;
// Name is unique within a Kind, not globally.
type Entity struct {
	UUID uuid.UUID
	Kind string
	Name string
}

// Attribute is a key/value fact owned by exactly one entity. Keys may
// repeat on the same entity (multi-valued).
type Attribute struct {
	UUID       uuid.UUID
	EntityUUID uuid.UUID
	Key        string
	Value      string
}

// Link is a directed edge between two entities. A link from a user to a
// role denotes role membership.
type Link struct {
	UUID     uuid.UUID
	FromUUID uuid.UUID
	ToUUID   uuid.UUID
}

// Permission grants the named capability on EntityUUID to the role entity
// RoleUUID.
type Permission struct {
	UUID       uuid.UUID
	RoleUUID   uuid.UUID
	EntityUUID uuid.UUID
	Name       string
}
