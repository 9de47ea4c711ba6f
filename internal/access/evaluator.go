// Package access decides, per entity and per capability, whether the
// authenticated caller may proceed. Absence of an explicit grant is denial;
// there is no superuser bypass.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/arkivo/arkivo/internal/entity"
)

// Capability names checked by the evaluator.
const (
	CapabilityRead  = "read"
	CapabilityWrite = "write"
	CapabilityLink  = "link"
	CapabilityGrant = "grant"
)

// ErrPermissionDenied indicates the caller lacks a required capability on a
// specifically addressed entity. The search path swallows it per candidate;
// direct accessors surface it.
var ErrPermissionDenied = errors.New("access: permission denied")

// Evaluator walks the role/permission graph. It is stateless and cheap;
// per-call memoization lives in the RequestContext.
type Evaluator struct {
	store entity.Store
}

// NewEvaluator constructs an evaluator over the given store.
func NewEvaluator(store entity.Store) *Evaluator {
	return &Evaluator{store: store}
}

// Roles returns the roles the caller is a member of: the targets of the
// user's outgoing links. Membership is direct only, no role-of-role
// resolution. The result is memoized in the request context.
func (e *Evaluator) Roles(ctx context.Context, rc *RequestContext) ([]uuid.UUID, error) {
	if rc.rolesLoaded {
		return rc.roles, nil
	}
	links, err := e.store.LinksFrom(ctx, rc.User.UUID)
	if err != nil {
		return nil, fmt.Errorf("access: enumerate roles: %w", err)
	}
	roles := make([]uuid.UUID, 0, len(links))
	for _, l := range links {
		roles = append(roles, l.ToUUID)
	}
	rc.roles = roles
	rc.rolesLoaded = true
	return roles, nil
}

// IsMember reports whether the caller is linked to the given role.
func (e *Evaluator) IsMember(ctx context.Context, rc *RequestContext, role uuid.UUID) (bool, error) {
	roles, err := e.Roles(ctx, rc)
	if err != nil {
		return false, err
	}
	for _, r := range roles {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

// CanAccess reports whether any of the caller's roles holds a permission
// with the given capability name on the target entity. A missing grant is a
// normal false, never an error.
func (e *Evaluator) CanAccess(ctx context.Context, rc *RequestContext, target uuid.UUID, capability string) (bool, error) {
	key := decisionKey{entity: target, capability: capability}
	if allowed, ok := rc.decisions[key]; ok {
		return allowed, nil
	}
	roles, err := e.Roles(ctx, rc)
	if err != nil {
		return false, err
	}
	perms, err := e.store.Permissions(ctx, target)
	if err != nil {
		return false, fmt.Errorf("access: load permissions: %w", err)
	}
	allowed := false
	for _, p := range perms {
		if p.Name != capability {
			continue
		}
		for _, r := range roles {
			if p.RoleUUID == r {
				allowed = true
				break
			}
		}
		if allowed {
			break
		}
	}
	rc.decisions[key] = allowed
	return allowed, nil
}

// EnsureCan is CanAccess with denial promoted to ErrPermissionDenied.
func (e *Evaluator) EnsureCan(ctx context.Context, rc *RequestContext, target uuid.UUID, capability string) error {
	allowed, err := e.CanAccess(ctx, rc, target, capability)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrPermissionDenied
	}
	return nil
}
