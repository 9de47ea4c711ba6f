// Package mutate validates preconditions for every write to the entity
// graph before delegating to the store.
package mutate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/arkivo/arkivo/internal/access"
	"github.com/arkivo/arkivo/internal/audit"
	"github.com/arkivo/arkivo/internal/entity"
)

// ErrNotRoleMember indicates an attempt to create an entity under a role
// the creator is not linked to. Such an entity would be unreachable by its
// own creator, so the creation is refused up front.
var ErrNotRoleMember = errors.New("mutate: caller is not a member of the owner role")

// Recorder receives one audit event per successful mutation.
type Recorder interface {
	Record(ctx context.Context, ev audit.Event)
}

// Service is the mutation gateway.
type Service struct {
	store    entity.Store
	eval     *access.Evaluator
	recorder Recorder
	logger   *slog.Logger
}

// NewService builds the gateway. recorder may be nil.
func NewService(store entity.Store, eval *access.Evaluator, recorder Recorder, logger *slog.Logger) *Service {
	return &Service{store: store, eval: eval, recorder: recorder, logger: logger}
}

// ownerCapabilities are granted to the owner role at creation so the
// creating user can reach and manage what it created.
var ownerCapabilities = []string{
	access.CapabilityRead,
	access.CapabilityWrite,
	access.CapabilityLink,
	access.CapabilityGrant,
}

// CreateEntity creates an entity owned by ownerRole. The caller must be a
// member of ownerRole; the owner role receives the full capability set on
// the new entity.
func (s *Service) CreateEntity(ctx context.Context, rc *access.RequestContext, kind, name string, ownerRole uuid.UUID) (entity.Entity, error) {
	if _, err := s.store.GetEntity(ctx, ownerRole); err != nil {
		return entity.Entity{}, err
	}
	member, err := s.eval.IsMember(ctx, rc, ownerRole)
	if err != nil {
		return entity.Entity{}, err
	}
	if !member {
		return entity.Entity{}, ErrNotRoleMember
	}
	created, err := s.store.CreateEntity(ctx, kind, name)
	if err != nil {
		return entity.Entity{}, err
	}
	for _, capability := range ownerCapabilities {
		if _, err := s.store.AddPermission(ctx, created.UUID, ownerRole, capability); err != nil {
			// Roll the entity back rather than leaving it half-owned.
			if delErr := s.store.DeleteEntity(ctx, created.UUID); delErr != nil {
				s.logger.Error("rollback created entity", slog.Any("error", delErr))
			}
			return entity.Entity{}, fmt.Errorf("mutate: grant owner capability: %w", err)
		}
	}
	s.record(ctx, rc, "entity.create", created.UUID, map[string]string{"kind": kind, "name": name})
	return created, nil
}

// UpdateEntity renames an entity. Requires write capability.
func (s *Service) UpdateEntity(ctx context.Context, rc *access.RequestContext, id uuid.UUID, name string) (entity.Entity, error) {
	if _, err := s.store.GetEntity(ctx, id); err != nil {
		return entity.Entity{}, err
	}
	if err := s.eval.EnsureCan(ctx, rc, id, access.CapabilityWrite); err != nil {
		return entity.Entity{}, err
	}
	updated, err := s.store.RenameEntity(ctx, id, name)
	if err != nil {
		return entity.Entity{}, err
	}
	s.record(ctx, rc, "entity.rename", id, map[string]string{"name": name})
	return updated, nil
}

// DeleteEntity removes an entity and cascades to its attributes, links in
// both directions and permissions. Requires write capability.
func (s *Service) DeleteEntity(ctx context.Context, rc *access.RequestContext, id uuid.UUID) error {
	if _, err := s.store.GetEntity(ctx, id); err != nil {
		return err
	}
	if err := s.eval.EnsureCan(ctx, rc, id, access.CapabilityWrite); err != nil {
		return err
	}
	if err := s.store.DeleteEntity(ctx, id); err != nil {
		return err
	}
	s.record(ctx, rc, "entity.delete", id, nil)
	return nil
}

// AddAttribute attaches a key/value pair. Requires write capability on the
// owning entity.
func (s *Service) AddAttribute(ctx context.Context, rc *access.RequestContext, entityID uuid.UUID, key, value string) (entity.Attribute, error) {
	if _, err := s.store.GetEntity(ctx, entityID); err != nil {
		return entity.Attribute{}, err
	}
	if err := s.eval.EnsureCan(ctx, rc, entityID, access.CapabilityWrite); err != nil {
		return entity.Attribute{}, err
	}
	attr, err := s.store.AddAttribute(ctx, entityID, key, value)
	if err != nil {
		return entity.Attribute{}, err
	}
	s.record(ctx, rc, "attribute.add", entityID, map[string]string{"key": key})
	return attr, nil
}

// DeleteAttributes removes every attribute with the key. Idempotent:
// deleting an absent key succeeds. Requires write capability.
func (s *Service) DeleteAttributes(ctx context.Context, rc *access.RequestContext, entityID uuid.UUID, key string) error {
	if _, err := s.store.GetEntity(ctx, entityID); err != nil {
		return err
	}
	if err := s.eval.EnsureCan(ctx, rc, entityID, access.CapabilityWrite); err != nil {
		return err
	}
	if err := s.store.DeleteAttributes(ctx, entityID, key); err != nil {
		return err
	}
	s.record(ctx, rc, "attribute.delete", entityID, map[string]string{"key": key})
	return nil
}

// AddLink creates a directed edge. Policy: write capability on the source,
// link capability on the target, so neither side can be wired up without
// consent on both.
func (s *Service) AddLink(ctx context.Context, rc *access.RequestContext, from, to uuid.UUID) (entity.Link, error) {
	if err := s.checkLinkEndpoints(ctx, rc, from, to); err != nil {
		return entity.Link{}, err
	}
	link, err := s.store.AddLink(ctx, from, to)
	if err != nil {
		return entity.Link{}, err
	}
	s.record(ctx, rc, "link.add", from, map[string]string{"to": to.String()})
	return link, nil
}

// DeleteLink removes the edge, under the same capability policy as AddLink.
func (s *Service) DeleteLink(ctx context.Context, rc *access.RequestContext, from, to uuid.UUID) error {
	if err := s.checkLinkEndpoints(ctx, rc, from, to); err != nil {
		return err
	}
	if err := s.store.DeleteLink(ctx, from, to); err != nil {
		return err
	}
	s.record(ctx, rc, "link.delete", from, map[string]string{"to": to.String()})
	return nil
}

func (s *Service) checkLinkEndpoints(ctx context.Context, rc *access.RequestContext, from, to uuid.UUID) error {
	if _, err := s.store.GetEntity(ctx, from); err != nil {
		return err
	}
	if _, err := s.store.GetEntity(ctx, to); err != nil {
		return err
	}
	if err := s.eval.EnsureCan(ctx, rc, from, access.CapabilityWrite); err != nil {
		return err
	}
	return s.eval.EnsureCan(ctx, rc, to, access.CapabilityLink)
}

// AddPermission grants a capability on an entity to a role. Mutating the
// access-control graph requires grant capability, distinct from write.
func (s *Service) AddPermission(ctx context.Context, rc *access.RequestContext, entityID, roleID uuid.UUID, name string) (entity.Permission, error) {
	if _, err := s.store.GetEntity(ctx, entityID); err != nil {
		return entity.Permission{}, err
	}
	if _, err := s.store.GetEntity(ctx, roleID); err != nil {
		return entity.Permission{}, err
	}
	if err := s.eval.EnsureCan(ctx, rc, entityID, access.CapabilityGrant); err != nil {
		return entity.Permission{}, err
	}
	perm, err := s.store.AddPermission(ctx, entityID, roleID, name)
	if err != nil {
		return entity.Permission{}, err
	}
	s.record(ctx, rc, "permission.add", entityID, map[string]string{"role": roleID.String(), "name": name})
	return perm, nil
}

// DeletePermission revokes matching grants. Requires grant capability.
func (s *Service) DeletePermission(ctx context.Context, rc *access.RequestContext, entityID, roleID uuid.UUID, name string) error {
	if _, err := s.store.GetEntity(ctx, entityID); err != nil {
		return err
	}
	if err := s.eval.EnsureCan(ctx, rc, entityID, access.CapabilityGrant); err != nil {
		return err
	}
	if err := s.store.DeletePermission(ctx, entityID, roleID, name); err != nil {
		return err
	}
	s.record(ctx, rc, "permission.delete", entityID, map[string]string{"role": roleID.String(), "name": name})
	return nil
}

func (s *Service) record(ctx context.Context, rc *access.RequestContext, action string, subject uuid.UUID, detail map[string]string) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, audit.Event{Actor: rc.User.UUID, Action: action, Subject: subject, Detail: detail})
}
