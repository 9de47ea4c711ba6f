package entity

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store used by the dev backend and by tests.
// Enumeration follows insertion order. Safe for concurrent use.
type MemStore struct {
	mu          sync.RWMutex
	entities    []Entity
	attributes  []Attribute
	links       []Link
	permissions []Permission
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) GetEntity(_ context.Context, id uuid.UUID) (Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entities {
		if e.UUID == id {
			return e, nil
		}
	}
	return Entity{}, ErrNotFound
}

func (s *MemStore) GetEntityByName(_ context.Context, kind, name string) (Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entities {
		if e.Kind == kind && e.Name == name {
			return e, nil
		}
	}
	return Entity{}, ErrNotFound
}

func (s *MemStore) ListEntitiesByKind(_ context.Context, kind string) ([]Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entity
	for _, e := range s.entities {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemStore) ListEntities(_ context.Context) ([]Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entity, len(s.entities))
	copy(out, s.entities)
	return out, nil
}

func (s *MemStore) CreateEntity(_ context.Context, kind, name string) (Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entities {
		if e.Kind == kind && e.Name == name {
			return Entity{}, ErrDuplicate
		}
	}
	e := Entity{UUID: uuid.New(), Kind: kind, Name: name}
	s.entities = append(s.entities, e)
	return e, nil
}

func (s *MemStore) RenameEntity(_ context.Context, id uuid.UUID, name string) (Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entities {
		if e.UUID != id {
			continue
		}
		for _, other := range s.entities {
			if other.UUID != id && other.Kind == e.Kind && other.Name == name {
				return Entity{}, ErrDuplicate
			}
		}
		s.entities[i].Name = name
		return s.entities[i], nil
	}
	return Entity{}, ErrNotFound
}

func (s *MemStore) DeleteEntity(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, e := range s.entities {
		if e.UUID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}
	s.entities = append(s.entities[:idx], s.entities[idx+1:]...)

	attrs := s.attributes[:0]
	for _, a := range s.attributes {
		if a.EntityUUID != id {
			attrs = append(attrs, a)
		}
	}
	s.attributes = attrs

	links := s.links[:0]
	for _, l := range s.links {
		if l.FromUUID != id && l.ToUUID != id {
			links = append(links, l)
		}
	}
	s.links = links

	perms := s.permissions[:0]
	for _, p := range s.permissions {
		if p.EntityUUID != id && p.RoleUUID != id {
			perms = append(perms, p)
		}
	}
	s.permissions = perms
	return nil
}

func (s *MemStore) Attributes(_ context.Context, entityID uuid.UUID) ([]Attribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Attribute
	for _, a := range s.attributes {
		if a.EntityUUID == entityID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemStore) AttributesByKey(_ context.Context, entityID uuid.UUID, key string) ([]Attribute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Attribute
	for _, a := range s.attributes {
		if a.EntityUUID == entityID && a.Key == key {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemStore) AddAttribute(_ context.Context, entityID uuid.UUID, key, value string) (Attribute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.entityExists(entityID) {
		return Attribute{}, ErrNotFound
	}
	a := Attribute{UUID: uuid.New(), EntityUUID: entityID, Key: key, Value: value}
	s.attributes = append(s.attributes, a)
	return a, nil
}

func (s *MemStore) DeleteAttributes(_ context.Context, entityID uuid.UUID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attrs := s.attributes[:0]
	for _, a := range s.attributes {
		if a.EntityUUID != entityID || a.Key != key {
			attrs = append(attrs, a)
		}
	}
	s.attributes = attrs
	return nil
}

func (s *MemStore) LinksFrom(_ context.Context, entityID uuid.UUID) ([]Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Link
	for _, l := range s.links {
		if l.FromUUID == entityID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *MemStore) LinksTo(_ context.Context, entityID uuid.UUID) ([]Link, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Link
	for _, l := range s.links {
		if l.ToUUID == entityID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *MemStore) AddLink(_ context.Context, from, to uuid.UUID) (Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.entityExists(from) || !s.entityExists(to) {
		return Link{}, ErrNotFound
	}
	l := Link{UUID: uuid.New(), FromUUID: from, ToUUID: to}
	s.links = append(s.links, l)
	return l, nil
}

func (s *MemStore) DeleteLink(_ context.Context, from, to uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	links := s.links[:0]
	for _, l := range s.links {
		if l.FromUUID != from || l.ToUUID != to {
			links = append(links, l)
		}
	}
	s.links = links
	return nil
}

func (s *MemStore) Permissions(_ context.Context, entityID uuid.UUID) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Permission
	for _, p := range s.permissions {
		if p.EntityUUID == entityID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemStore) AddPermission(_ context.Context, entityID, roleID uuid.UUID, name string) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.entityExists(entityID) || !s.entityExists(roleID) {
		return Permission{}, ErrNotFound
	}
	p := Permission{UUID: uuid.New(), RoleUUID: roleID, EntityUUID: entityID, Name: name}
	s.permissions = append(s.permissions, p)
	return p, nil
}

func (s *MemStore) DeletePermission(_ context.Context, entityID, roleID uuid.UUID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	perms := s.permissions[:0]
	for _, p := range s.permissions {
		if p.EntityUUID != entityID || p.RoleUUID != roleID || p.Name != name {
			perms = append(perms, p)
		}
	}
	s.permissions = perms
	return nil
}

func (s *MemStore) entityExists(id uuid.UUID) bool {
	for _, e := range s.entities {
		if e.UUID == id {
			return true
		}
	}
	return false
}
