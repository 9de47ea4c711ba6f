package access

import (
	"context"

	"github.com/google/uuid"

	"github.com/arkivo/arkivo/internal/entity"
)

// Checked accessors: every read of an entity's attributes, links or
// permissions goes through here so a caller only ever observes records on
// entities it holds read capability for.

// Attributes returns the entity's attributes if the caller can read it.
func (e *Evaluator) Attributes(ctx context.Context, rc *RequestContext, entityID uuid.UUID) ([]entity.Attribute, error) {
	if err := e.EnsureCan(ctx, rc, entityID, CapabilityRead); err != nil {
		return nil, err
	}
	return e.store.Attributes(ctx, entityID)
}

// AttributesByKey returns the entity's attributes with the given key if the
// caller can read it.
func (e *Evaluator) AttributesByKey(ctx context.Context, rc *RequestContext, entityID uuid.UUID, key string) ([]entity.Attribute, error) {
	if err := e.EnsureCan(ctx, rc, entityID, CapabilityRead); err != nil {
		return nil, err
	}
	return e.store.AttributesByKey(ctx, entityID, key)
}

// LinksFrom returns the entity's outgoing links if the caller can read it.
func (e *Evaluator) LinksFrom(ctx context.Context, rc *RequestContext, entityID uuid.UUID) ([]entity.Link, error) {
	if err := e.EnsureCan(ctx, rc, entityID, CapabilityRead); err != nil {
		return nil, err
	}
	return e.store.LinksFrom(ctx, entityID)
}

// LinksTo returns the entity's incoming links if the caller can read it.
func (e *Evaluator) LinksTo(ctx context.Context, rc *RequestContext, entityID uuid.UUID) ([]entity.Link, error) {
	if err := e.EnsureCan(ctx, rc, entityID, CapabilityRead); err != nil {
		return nil, err
	}
	return e.store.LinksTo(ctx, entityID)
}

// Permissions returns the grants on the entity if the caller can read it.
func (e *Evaluator) Permissions(ctx context.Context, rc *RequestContext, entityID uuid.UUID) ([]entity.Permission, error) {
	if err := e.EnsureCan(ctx, rc, entityID, CapabilityRead); err != nil {
		return nil, err
	}
	return e.store.Permissions(ctx, entityID)
}
