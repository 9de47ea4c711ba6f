package entity

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence port for the entity graph. It is implemented by
// the PostgreSQL Repository and by MemStore (dev/test backend). All methods
// operate by identifier and provide per-call atomicity; DeleteEntity is the
// only cascading operation.
type Store interface {
	GetEntity(ctx context.Context, id uuid.UUID) (Entity, error)
	GetEntityByName(ctx context.Context, kind, name string) (Entity, error)
	ListEntitiesByKind(ctx context.Context, kind string) ([]Entity, error)
	ListEntities(ctx context.Context) ([]Entity, error)
	CreateEntity(ctx context.Context, kind, name string) (Entity, error)
	RenameEntity(ctx context.Context, id uuid.UUID, name string) (Entity, error)
	DeleteEntity(ctx context.Context, id uuid.UUID) error

	Attributes(ctx context.Context, entityID uuid.UUID) ([]Attribute, error)
	AttributesByKey(ctx context.Context, entityID uuid.UUID, key string) ([]Attribute, error)
	AddAttribute(ctx context.Context, entityID uuid.UUID, key, value string) (Attribute, error)
	DeleteAttributes(ctx context.Context, entityID uuid.UUID, key string) error

	LinksFrom(ctx context.Context, entityID uuid.UUID) ([]Link, error)
	LinksTo(ctx context.Context, entityID uuid.UUID) ([]Link, error)
	AddLink(ctx context.Context, from, to uuid.UUID) (Link, error)
	DeleteLink(ctx context.Context, from, to uuid.UUID) error

	Permissions(ctx context.Context, entityID uuid.UUID) ([]Permission, error)
	AddPermission(ctx context.Context, entityID, roleID uuid.UUID, name string) (Permission, error)
	DeletePermission(ctx context.Context, entityID, roleID uuid.UUID, name string) error
}
