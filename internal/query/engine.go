package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/arkivo/arkivo/internal/access"
	"github.com/arkivo/arkivo/internal/entity"
)

// View is the representation of an entity as visible to one caller. It is
// assembled through the checked accessors, so it never carries records the
// caller cannot read.
type View struct {
	Entity      entity.Entity
	Attributes  []entity.Attribute
	LinksFrom   []entity.Link
	LinksTo     []entity.Link
	Permissions []entity.Permission
}

// Metrics is the observability hook for the search path.
type Metrics interface {
	CandidateHidden()
}

// Engine answers point lookups and filtered searches.
type Engine struct {
	store   entity.Store
	eval    *access.Evaluator
	metrics Metrics
}

// NewEngine constructs an engine. metrics may be nil.
func NewEngine(store entity.Store, eval *access.Evaluator, metrics Metrics) *Engine {
	return &Engine{store: store, eval: eval, metrics: metrics}
}

// Get resolves exactly one entity. A UUID is an existence-only point lookup;
// (kind, name) goes through the secondary index. Criteria carrying neither
// are rejected. The returned view is permission-checked: a caller without
// read capability gets access.ErrPermissionDenied, distinguishing
// "unauthorized" from "no data".
func (e *Engine) Get(ctx context.Context, rc *access.RequestContext, c Criteria) (View, error) {
	var (
		ent entity.Entity
		err error
	)
	switch {
	case c.UUID != uuid.Nil:
		ent, err = e.store.GetEntity(ctx, c.UUID)
	case c.Kind != "" && c.Name != "":
		ent, err = e.store.GetEntityByName(ctx, c.Kind, c.Name)
	default:
		return View{}, ErrInvalidArgument
	}
	if err != nil {
		return View{}, err
	}
	return e.view(ctx, rc, ent)
}

// Search streams every entity matching the criteria that the caller can
// read, in the store's natural enumeration order. Candidates the caller
// cannot read are silently hidden, never reported as errors: a search does
// not reveal the existence of entities the caller cannot see and does not
// fail wholesale because one candidate is unreadable. yield is called once
// per match; a yield error aborts the enumeration.
func (e *Engine) Search(ctx context.Context, rc *access.RequestContext, c Criteria, yield func(View) error) error {
	// A criteria naming a single entity behaves as the point lookup, with
	// denials swallowed to match the rest of the search path.
	if c.UUID != uuid.Nil || (c.Kind != "" && c.Name != "") {
		v, err := e.Get(ctx, rc, c)
		if err != nil {
			if errors.Is(err, access.ErrPermissionDenied) || errors.Is(err, entity.ErrNotFound) {
				if e.metrics != nil {
					e.metrics.CandidateHidden()
				}
				return nil
			}
			return err
		}
		return yield(v)
	}

	preds, err := compile(c)
	if err != nil {
		return err
	}

	var candidates []entity.Entity
	if c.Kind != "" {
		candidates, err = e.store.ListEntitiesByKind(ctx, c.Kind)
	} else {
		// Full scan. Expensive and unindexed; tolerable for a bounded
		// administrative dataset.
		candidates, err = e.store.ListEntities(ctx)
	}
	if err != nil {
		return fmt.Errorf("query: candidates: %w", err)
	}

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		// A bare name without a kind cannot use the secondary index, so it
		// filters the enumeration instead.
		if c.Name != "" && candidate.Name != c.Name {
			continue
		}
		v, ok, err := e.evaluate(ctx, rc, preds, candidate)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := yield(v); err != nil {
			return err
		}
	}
	return nil
}

// evaluate runs the predicate list and builds the view. It reports ok=false
// both for a failed predicate and for a permission denial anywhere in the
// candidate's evaluation.
func (e *Engine) evaluate(ctx context.Context, rc *access.RequestContext, preds []predicate, candidate entity.Entity) (View, bool, error) {
	allowed, err := e.eval.CanAccess(ctx, rc, candidate.UUID, access.CapabilityRead)
	if err != nil {
		return View{}, false, err
	}
	if !allowed {
		if e.metrics != nil {
			e.metrics.CandidateHidden()
		}
		return View{}, false, nil
	}
	for _, p := range preds {
		match, err := p.matches(ctx, e.eval, rc, candidate)
		if err != nil {
			if errors.Is(err, access.ErrPermissionDenied) {
				if e.metrics != nil {
					e.metrics.CandidateHidden()
				}
				return View{}, false, nil
			}
			return View{}, false, err
		}
		if !match {
			return View{}, false, nil
		}
	}
	v, err := e.view(ctx, rc, candidate)
	if err != nil {
		if errors.Is(err, access.ErrPermissionDenied) {
			if e.metrics != nil {
				e.metrics.CandidateHidden()
			}
			return View{}, false, nil
		}
		return View{}, false, err
	}
	return v, true, nil
}

// view assembles the caller-visible representation.
func (e *Engine) view(ctx context.Context, rc *access.RequestContext, ent entity.Entity) (View, error) {
	attrs, err := e.eval.Attributes(ctx, rc, ent.UUID)
	if err != nil {
		return View{}, err
	}
	from, err := e.eval.LinksFrom(ctx, rc, ent.UUID)
	if err != nil {
		return View{}, err
	}
	to, err := e.eval.LinksTo(ctx, rc, ent.UUID)
	if err != nil {
		return View{}, err
	}
	perms, err := e.eval.Permissions(ctx, rc, ent.UUID)
	if err != nil {
		return View{}, err
	}
	return View{Entity: ent, Attributes: attrs, LinksFrom: from, LinksTo: to, Permissions: perms}, nil
}
