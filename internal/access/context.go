package access

import (
	"context"

	"github.com/google/uuid"

	"github.com/arkivo/arkivo/internal/entity"
)

// RequestContext carries the authenticated caller for the duration of one
// call, together with transient evaluation state. It is created once per
// request, handed down explicitly, and never shared between requests.
type RequestContext struct {
	User entity.Entity

	roles       []uuid.UUID
	rolesLoaded bool
	decisions   map[decisionKey]bool
}

type decisionKey struct {
	entity     uuid.UUID
	capability string
}

// NewRequestContext wraps the caller entity.
func NewRequestContext(user entity.Entity) *RequestContext {
	return &RequestContext{User: user, decisions: make(map[decisionKey]bool)}
}

type requestContextKey struct{}

// WithRequestContext stores the request context in ctx.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// FromContext extracts the request context, or nil.
func FromContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}
