package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arkivo/arkivo/internal/platform/db"
)

// mapConstraintError translates postgres constraint violations into the
// package sentinels: unique violations on (kind, name) become ErrDuplicate,
// foreign-key violations mean a referenced entity is gone.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicate
		case "23503":
			return ErrNotFound
		}
	}
	return err
}

// Repository provides PostgreSQL backed persistence for the entity graph.
type Repository struct {
	pool  *pgxpool.Pool
	names *NameCache
}

// NewRepository constructs a repository. The name cache is optional.
func NewRepository(pool *pgxpool.Pool, names *NameCache) *Repository {
	return &Repository{pool: pool, names: names}
}

// InitSchema creates the tables if they do not exist.
func (r *Repository) InitSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS entities (
	uuid UUID PRIMARY KEY,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	UNIQUE (kind, name)
);
CREATE TABLE IF NOT EXISTS attributes (
	uuid UUID PRIMARY KEY,
	entity_uuid UUID NOT NULL REFERENCES entities(uuid),
	key TEXT NOT NULL,
	value TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attributes_entity ON attributes(entity_uuid);
CREATE TABLE IF NOT EXISTS links (
	uuid UUID PRIMARY KEY,
	from_uuid UUID NOT NULL REFERENCES entities(uuid),
	to_uuid UUID NOT NULL REFERENCES entities(uuid)
);
CREATE INDEX IF NOT EXISTS idx_links_from ON links(from_uuid);
CREATE INDEX IF NOT EXISTS idx_links_to ON links(to_uuid);
CREATE TABLE IF NOT EXISTS permissions (
	uuid UUID PRIMARY KEY,
	role_uuid UUID NOT NULL REFERENCES entities(uuid),
	entity_uuid UUID NOT NULL REFERENCES entities(uuid),
	name TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_permissions_entity ON permissions(entity_uuid);
CREATE TABLE IF NOT EXISTS audit_events (
	id BIGSERIAL PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	actor_uuid UUID NOT NULL,
	action TEXT NOT NULL,
	subject_uuid UUID NOT NULL,
	detail JSONB NOT NULL DEFAULT '{}'::jsonb
);`
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("entity: init schema: %w", err)
	}
	return nil
}

// GetEntity fetches an entity by identifier.
func (r *Repository) GetEntity(ctx context.Context, id uuid.UUID) (Entity, error) {
	var e Entity
	err := r.pool.QueryRow(ctx, `SELECT uuid, kind, name FROM entities WHERE uuid = $1`, id).
		Scan(&e.UUID, &e.Kind, &e.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entity{}, ErrNotFound
		}
		return Entity{}, err
	}
	return e, nil
}

// GetEntityByName fetches an entity by the (kind, name) secondary key,
// consulting the redis name cache when configured.
func (r *Repository) GetEntityByName(ctx context.Context, kind, name string) (Entity, error) {
	if id, ok := r.names.Get(ctx, kind, name); ok {
		e, err := r.GetEntity(ctx, id)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Entity{}, err
		}
		// Stale cache entry, fall through to the table.
	}
	var e Entity
	err := r.pool.QueryRow(ctx, `SELECT uuid, kind, name FROM entities WHERE kind = $1 AND name = $2`, kind, name).
		Scan(&e.UUID, &e.Kind, &e.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entity{}, ErrNotFound
		}
		return Entity{}, err
	}
	r.names.Put(ctx, kind, name, e.UUID)
	return e, nil
}

// ListEntitiesByKind returns all entities of a kind.
func (r *Repository) ListEntitiesByKind(ctx context.Context, kind string) ([]Entity, error) {
	return r.listEntities(ctx, `SELECT uuid, kind, name FROM entities WHERE kind = $1 ORDER BY uuid`, kind)
}

// ListEntities returns every entity. This is the unindexed full-scan path;
// acceptable for a bounded administrative dataset only.
func (r *Repository) ListEntities(ctx context.Context) ([]Entity, error) {
	return r.listEntities(ctx, `SELECT uuid, kind, name FROM entities ORDER BY uuid`)
}

func (r *Repository) listEntities(ctx context.Context, query string, args ...any) ([]Entity, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entities []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.UUID, &e.Kind, &e.Name); err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entities, nil
}

// CreateEntity inserts a new entity with a fresh identifier.
func (r *Repository) CreateEntity(ctx context.Context, kind, name string) (Entity, error) {
	e := Entity{UUID: uuid.New(), Kind: kind, Name: name}
	_, err := r.pool.Exec(ctx, `INSERT INTO entities (uuid, kind, name) VALUES ($1, $2, $3)`, e.UUID, e.Kind, e.Name)
	if err != nil {
		return Entity{}, mapConstraintError(err)
	}
	r.names.Put(ctx, kind, name, e.UUID)
	return e, nil
}

// RenameEntity changes the only mutable entity field.
func (r *Repository) RenameEntity(ctx context.Context, id uuid.UUID, name string) (Entity, error) {
	prev, err := r.GetEntity(ctx, id)
	if err != nil {
		return Entity{}, err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE entities SET name = $2 WHERE uuid = $1`, id, name)
	if err != nil {
		return Entity{}, mapConstraintError(err)
	}
	if tag.RowsAffected() == 0 {
		return Entity{}, ErrNotFound
	}
	r.names.Drop(ctx, prev.Kind, prev.Name)
	r.names.Put(ctx, prev.Kind, name, id)
	return Entity{UUID: id, Kind: prev.Kind, Name: name}, nil
}

// DeleteEntity removes the entity together with its attributes, links in
// both directions and permissions (including grants where the entity is the
// role) in one transaction.
func (r *Repository) DeleteEntity(ctx context.Context, id uuid.UUID) error {
	prev, err := r.GetEntity(ctx, id)
	if err != nil {
		return err
	}
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM attributes WHERE entity_uuid = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM links WHERE from_uuid = $1 OR to_uuid = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM permissions WHERE entity_uuid = $1 OR role_uuid = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM entities WHERE uuid = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.names.Drop(ctx, prev.Kind, prev.Name)
	return nil
}

// Attributes returns all attributes of an entity.
func (r *Repository) Attributes(ctx context.Context, entityID uuid.UUID) ([]Attribute, error) {
	return r.listAttributes(ctx, `SELECT uuid, entity_uuid, key, value FROM attributes WHERE entity_uuid = $1 ORDER BY uuid`, entityID)
}

// AttributesByKey returns the attributes of an entity sharing a key.
func (r *Repository) AttributesByKey(ctx context.Context, entityID uuid.UUID, key string) ([]Attribute, error) {
	return r.listAttributes(ctx, `SELECT uuid, entity_uuid, key, value FROM attributes WHERE entity_uuid = $1 AND key = $2 ORDER BY uuid`, entityID, key)
}

func (r *Repository) listAttributes(ctx context.Context, query string, args ...any) ([]Attribute, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var attrs []Attribute
	for rows.Next() {
		var a Attribute
		if err := rows.Scan(&a.UUID, &a.EntityUUID, &a.Key, &a.Value); err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attrs, nil
}

// AddAttribute attaches a key/value attribute to an entity.
func (r *Repository) AddAttribute(ctx context.Context, entityID uuid.UUID, key, value string) (Attribute, error) {
	a := Attribute{UUID: uuid.New(), EntityUUID: entityID, Key: key, Value: value}
	_, err := r.pool.Exec(ctx, `INSERT INTO attributes (uuid, entity_uuid, key, value) VALUES ($1, $2, $3, $4)`,
		a.UUID, a.EntityUUID, a.Key, a.Value)
	if err != nil {
		return Attribute{}, mapConstraintError(err)
	}
	return a, nil
}

// DeleteAttributes removes every attribute of the entity with the given
// key. Deleting an absent key is not an error.
func (r *Repository) DeleteAttributes(ctx context.Context, entityID uuid.UUID, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM attributes WHERE entity_uuid = $1 AND key = $2`, entityID, key)
	return err
}

// LinksFrom returns the outgoing links of an entity.
func (r *Repository) LinksFrom(ctx context.Context, entityID uuid.UUID) ([]Link, error) {
	return r.listLinks(ctx, `SELECT uuid, from_uuid, to_uuid FROM links WHERE from_uuid = $1 ORDER BY uuid`, entityID)
}

// LinksTo returns the incoming links of an entity.
func (r *Repository) LinksTo(ctx context.Context, entityID uuid.UUID) ([]Link, error) {
	return r.listLinks(ctx, `SELECT uuid, from_uuid, to_uuid FROM links WHERE to_uuid = $1 ORDER BY uuid`, entityID)
}

func (r *Repository) listLinks(ctx context.Context, query string, args ...any) ([]Link, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.UUID, &l.FromUUID, &l.ToUUID); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

// AddLink creates a directed edge. Both endpoints must exist.
func (r *Repository) AddLink(ctx context.Context, from, to uuid.UUID) (Link, error) {
	l := Link{UUID: uuid.New(), FromUUID: from, ToUUID: to}
	_, err := r.pool.Exec(ctx, `INSERT INTO links (uuid, from_uuid, to_uuid) VALUES ($1, $2, $3)`, l.UUID, l.FromUUID, l.ToUUID)
	if err != nil {
		return Link{}, mapConstraintError(err)
	}
	return l, nil
}

// DeleteLink removes every edge between the two endpoints in that direction.
func (r *Repository) DeleteLink(ctx context.Context, from, to uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM links WHERE from_uuid = $1 AND to_uuid = $2`, from, to)
	return err
}

// Permissions returns the permissions granted on an entity.
func (r *Repository) Permissions(ctx context.Context, entityID uuid.UUID) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT uuid, role_uuid, entity_uuid, name FROM permissions WHERE entity_uuid = $1 ORDER BY uuid`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.UUID, &p.RoleUUID, &p.EntityUUID, &p.Name); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// AddPermission grants the named capability on an entity to a role.
func (r *Repository) AddPermission(ctx context.Context, entityID, roleID uuid.UUID, name string) (Permission, error) {
	p := Permission{UUID: uuid.New(), RoleUUID: roleID, EntityUUID: entityID, Name: name}
	_, err := r.pool.Exec(ctx, `INSERT INTO permissions (uuid, role_uuid, entity_uuid, name) VALUES ($1, $2, $3, $4)`,
		p.UUID, p.RoleUUID, p.EntityUUID, p.Name)
	if err != nil {
		return Permission{}, mapConstraintError(err)
	}
	return p, nil
}

// DeletePermission revokes every matching grant.
func (r *Repository) DeletePermission(ctx context.Context, entityID, roleID uuid.UUID, name string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE entity_uuid = $1 AND role_uuid = $2 AND name = $3`,
		entityID, roleID, name)
	return err
}
