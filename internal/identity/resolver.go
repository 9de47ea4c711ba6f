// Package identity derives the authenticated caller from the transport
// credential. The transport is mutual TLS; the client certificate's common
// name must match a stored user entity.
package identity

import (
	"context"
	"errors"

	"github.com/arkivo/arkivo/internal/access"
	"github.com/arkivo/arkivo/internal/entity"
)

var (
	// ErrUnauthenticated indicates the call carried no client credential.
	ErrUnauthenticated = errors.New("identity: no client credential")
	// ErrIdentityNotFound indicates the credential maps to no known user.
	ErrIdentityNotFound = errors.New("identity: unknown caller")
)

// Resolver looks up caller identities. Resolution is a read-only lookup,
// performed once per call; the resulting request context is discarded when
// the call ends.
type Resolver struct {
	store entity.Store
}

// NewResolver constructs a resolver over the given store.
func NewResolver(store entity.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve maps a certificate common name to a request context.
func (r *Resolver) Resolve(ctx context.Context, commonName string) (*access.RequestContext, error) {
	if commonName == "" {
		return nil, ErrUnauthenticated
	}
	user, err := r.store.GetEntityByName(ctx, entity.KindUser, commonName)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return access.NewRequestContext(user), nil
}
