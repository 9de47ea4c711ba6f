// Package query composes ad-hoc multi-criterion searches over the entity
// graph and evaluates them per candidate under the caller's permissions.
package query

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/arkivo/arkivo/internal/access"
	"github.com/arkivo/arkivo/internal/entity"
)

// ErrInvalidArgument indicates malformed or contradictory criteria, such as
// a search predicate naming an attribute identifier.
var ErrInvalidArgument = errors.New("query: invalid argument")

// Criteria describes one search request. UUID and (Kind, Name) are point
// lookups that short-circuit the general search; a Name without a Kind
// narrows the enumeration to entities bearing that exact name. The
// criterion slices each contribute one independent predicate and a
// candidate must satisfy all of them.
type Criteria struct {
	UUID uuid.UUID
	Kind string
	Name string

	Attributes  []AttributeCriterion
	LinksFrom   []LinkFromCriterion
	LinksTo     []LinkToCriterion
	Permissions []PermissionCriterion
}

// AttributeCriterion matches entities by attribute. Key alone is an
// existence check; Key and Value together are an equality check. UUID is
// rejected: an attribute identifier already names its entity, so a
// predicate on it is meaningless.
type AttributeCriterion struct {
	UUID  uuid.UUID
	Key   string
	Value string
}

// LinkFromCriterion matches entities with an outgoing link to To.
type LinkFromCriterion struct {
	To uuid.UUID
}

// LinkToCriterion matches entities with an incoming link from From.
type LinkToCriterion struct {
	From uuid.UUID
}

// PermissionCriterion matches entities by grants on them. Every non-zero
// field becomes its own predicate: naming both Role and Name matches "any
// grant by that role" and "any grant with that name" independently, which
// may be different records.
type PermissionCriterion struct {
	UUID   uuid.UUID
	Role   uuid.UUID
	Entity uuid.UUID
	Name   string
}

type predicateKind int

const (
	attributeEquals predicateKind = iota
	attributeKeyExists
	hasLinkTo
	hasLinkFrom
	permissionByUUID
	permissionByRole
	permissionByTarget
	permissionByName
)

// predicate is one tagged filter. matches reads the candidate through the
// checked accessors, so a permission denial surfaces as
// access.ErrPermissionDenied and hides the candidate.
type predicate struct {
	kind  predicateKind
	key   string
	value string
	id    uuid.UUID
}

func (p predicate) matches(ctx context.Context, eval *access.Evaluator, rc *access.RequestContext, candidate entity.Entity) (bool, error) {
	switch p.kind {
	case attributeEquals:
		attrs, err := eval.AttributesByKey(ctx, rc, candidate.UUID, p.key)
		if err != nil {
			return false, err
		}
		for _, a := range attrs {
			if a.Value == p.value {
				return true, nil
			}
		}
		return false, nil
	case attributeKeyExists:
		attrs, err := eval.AttributesByKey(ctx, rc, candidate.UUID, p.key)
		if err != nil {
			return false, err
		}
		return len(attrs) > 0, nil
	case hasLinkTo:
		links, err := eval.LinksFrom(ctx, rc, candidate.UUID)
		if err != nil {
			return false, err
		}
		for _, l := range links {
			if l.ToUUID == p.id {
				return true, nil
			}
		}
		return false, nil
	case hasLinkFrom:
		links, err := eval.LinksTo(ctx, rc, candidate.UUID)
		if err != nil {
			return false, err
		}
		for _, l := range links {
			if l.FromUUID == p.id {
				return true, nil
			}
		}
		return false, nil
	case permissionByUUID, permissionByRole, permissionByTarget, permissionByName:
		perms, err := eval.Permissions(ctx, rc, candidate.UUID)
		if err != nil {
			return false, err
		}
		for _, perm := range perms {
			switch p.kind {
			case permissionByUUID:
				if perm.UUID == p.id {
					return true, nil
				}
			case permissionByRole:
				if perm.RoleUUID == p.id {
					return true, nil
				}
			case permissionByTarget:
				if perm.EntityUUID == p.id {
					return true, nil
				}
			case permissionByName:
				if perm.Name == p.value {
					return true, nil
				}
			}
		}
		return false, nil
	}
	return false, nil
}

// compile turns the criteria into an independent predicate list.
func compile(c Criteria) ([]predicate, error) {
	var preds []predicate
	for _, a := range c.Attributes {
		if a.UUID != uuid.Nil {
			return nil, ErrInvalidArgument
		}
		switch {
		case a.Key != "" && a.Value != "":
			preds = append(preds, predicate{kind: attributeEquals, key: a.Key, value: a.Value})
		case a.Key != "":
			preds = append(preds, predicate{kind: attributeKeyExists, key: a.Key})
		}
	}
	for _, l := range c.LinksFrom {
		preds = append(preds, predicate{kind: hasLinkTo, id: l.To})
	}
	for _, l := range c.LinksTo {
		preds = append(preds, predicate{kind: hasLinkFrom, id: l.From})
	}
	for _, p := range c.Permissions {
		if p.UUID != uuid.Nil {
			preds = append(preds, predicate{kind: permissionByUUID, id: p.UUID})
		}
		if p.Role != uuid.Nil {
			preds = append(preds, predicate{kind: permissionByRole, id: p.Role})
		}
		if p.Entity != uuid.Nil {
			preds = append(preds, predicate{kind: permissionByTarget, id: p.Entity})
		}
		if p.Name != "" {
			preds = append(preds, predicate{kind: permissionByName, value: p.Name})
		}
	}
	return preds, nil
}
