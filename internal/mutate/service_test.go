package mutate

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkivo/arkivo/internal/access"
	"github.com/arkivo/arkivo/internal/audit"
	"github.com/arkivo/arkivo/internal/entity"
)

type recordedEvents struct {
	events []audit.Event
}

func (r *recordedEvents) Record(_ context.Context, ev audit.Event) {
	r.events = append(r.events, ev)
}

type harness struct {
	store    *entity.MemStore
	eval     *access.Evaluator
	svc      *Service
	recorder *recordedEvents
	user     entity.Entity
	role     entity.Entity
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store := entity.NewMemStore()
	user, err := store.CreateEntity(ctx, entity.KindUser, "alice")
	require.NoError(t, err)
	role, err := store.CreateEntity(ctx, entity.KindRole, "editors")
	require.NoError(t, err)
	_, err = store.AddLink(ctx, user.UUID, role.UUID)
	require.NoError(t, err)
	recorder := &recordedEvents{}
	eval := access.NewEvaluator(store)
	return &harness{
		store:    store,
		eval:     eval,
		svc:      NewService(store, eval, recorder, slog.Default()),
		recorder: recorder,
		user:     user,
		role:     role,
	}
}

func (h *harness) rc() *access.RequestContext {
	return access.NewRequestContext(h.user)
}

func TestCreateEntityGrantsOwnerCapabilities(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	created, err := h.svc.CreateEntity(ctx, h.rc(), "document", "doc1", h.role.UUID)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.UUID)

	perms, err := h.store.Permissions(ctx, created.UUID)
	require.NoError(t, err)
	granted := make(map[string]bool)
	for _, p := range perms {
		require.Equal(t, h.role.UUID, p.RoleUUID)
		granted[p.Name] = true
	}
	for _, capability := range []string{access.CapabilityRead, access.CapabilityWrite, access.CapabilityLink, access.CapabilityGrant} {
		assert.True(t, granted[capability], "missing %s grant", capability)
	}

	// The creator can immediately reach the new entity.
	allowed, err := h.eval.CanAccess(ctx, h.rc(), created.UUID, access.CapabilityWrite)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCreateEntityRefusesForeignOwnerRole(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	foreign, err := h.store.CreateEntity(ctx, entity.KindRole, "strangers")
	require.NoError(t, err)

	before, err := h.store.ListEntities(ctx)
	require.NoError(t, err)

	_, err = h.svc.CreateEntity(ctx, h.rc(), "document", "doc1", foreign.UUID)
	assert.ErrorIs(t, err, ErrNotRoleMember)

	after, err := h.store.ListEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(before), len(after), "failed creation must not persist an entity")
	assert.Empty(t, h.recorder.events)
}

func TestCreateEntityUnknownOwnerRole(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CreateEntity(context.Background(), h.rc(), "document", "doc1", uuid.New())
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestUpdateEntityRequiresWrite(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	doc, err := h.svc.CreateEntity(ctx, h.rc(), "document", "doc1", h.role.UUID)
	require.NoError(t, err)

	renamed, err := h.svc.UpdateEntity(ctx, h.rc(), doc.UUID, "doc2")
	require.NoError(t, err)
	assert.Equal(t, "doc2", renamed.Name)
	assert.Equal(t, doc.UUID, renamed.UUID, "identifier is immutable")

	// An entity created outside the gateway has no grants at all.
	bare, err := h.store.CreateEntity(ctx, "document", "bare")
	require.NoError(t, err)
	_, err = h.svc.UpdateEntity(ctx, h.rc(), bare.UUID, "nope")
	assert.ErrorIs(t, err, access.ErrPermissionDenied)
}

func TestDeleteEntityCascades(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	doc, err := h.svc.CreateEntity(ctx, h.rc(), "document", "doc1", h.role.UUID)
	require.NoError(t, err)
	peer, err := h.svc.CreateEntity(ctx, h.rc(), "document", "peer", h.role.UUID)
	require.NoError(t, err)

	_, err = h.svc.AddAttribute(ctx, h.rc(), doc.UUID, "status", "draft")
	require.NoError(t, err)
	_, err = h.svc.AddLink(ctx, h.rc(), doc.UUID, peer.UUID)
	require.NoError(t, err)
	_, err = h.svc.AddLink(ctx, h.rc(), peer.UUID, doc.UUID)
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteEntity(ctx, h.rc(), doc.UUID))

	_, err = h.store.GetEntity(ctx, doc.UUID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
	attrs, err := h.store.Attributes(ctx, doc.UUID)
	require.NoError(t, err)
	assert.Empty(t, attrs)
	out, err := h.store.LinksFrom(ctx, peer.UUID)
	require.NoError(t, err)
	assert.Empty(t, out, "links into the deleted entity are gone")
	in, err := h.store.LinksTo(ctx, peer.UUID)
	require.NoError(t, err)
	assert.Empty(t, in, "links out of the deleted entity are gone")
	perms, err := h.store.Permissions(ctx, doc.UUID)
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestDeleteAttributesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	doc, err := h.svc.CreateEntity(ctx, h.rc(), "document", "doc1", h.role.UUID)
	require.NoError(t, err)
	_, err = h.svc.AddAttribute(ctx, h.rc(), doc.UUID, "tag", "a")
	require.NoError(t, err)
	_, err = h.svc.AddAttribute(ctx, h.rc(), doc.UUID, "tag", "b")
	require.NoError(t, err)

	require.NoError(t, h.svc.DeleteAttributes(ctx, h.rc(), doc.UUID, "tag"))
	attrs, err := h.store.AttributesByKey(ctx, doc.UUID, "tag")
	require.NoError(t, err)
	require.Empty(t, attrs)

	// Second delete of the same key succeeds with nothing left behind.
	require.NoError(t, h.svc.DeleteAttributes(ctx, h.rc(), doc.UUID, "tag"))
}

func TestAddLinkPolicy(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	from, err := h.svc.CreateEntity(ctx, h.rc(), "document", "from", h.role.UUID)
	require.NoError(t, err)

	// Target managed by someone else: no link capability for the caller.
	locked, err := h.store.CreateEntity(ctx, "document", "locked")
	require.NoError(t, err)
	_, err = h.svc.AddLink(ctx, h.rc(), from.UUID, locked.UUID)
	assert.ErrorIs(t, err, access.ErrPermissionDenied)

	// Granting link on the target is enough; write stays on the source.
	_, err = h.store.AddPermission(ctx, locked.UUID, h.role.UUID, access.CapabilityLink)
	require.NoError(t, err)
	link, err := h.svc.AddLink(ctx, h.rc(), from.UUID, locked.UUID)
	require.NoError(t, err)
	assert.Equal(t, from.UUID, link.FromUUID)
	assert.Equal(t, locked.UUID, link.ToUUID)

	// Same policy on delete.
	require.NoError(t, h.svc.DeleteLink(ctx, h.rc(), from.UUID, locked.UUID))

	// Missing endpoint is NotFound, not a silent success.
	_, err = h.svc.AddLink(ctx, h.rc(), from.UUID, uuid.New())
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestPermissionMutationsRequireGrantCapability(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	// write alone is not enough to touch the access-control graph.
	doc, err := h.store.CreateEntity(ctx, "document", "doc1")
	require.NoError(t, err)
	_, err = h.store.AddPermission(ctx, doc.UUID, h.role.UUID, access.CapabilityWrite)
	require.NoError(t, err)

	_, err = h.svc.AddPermission(ctx, h.rc(), doc.UUID, h.role.UUID, access.CapabilityRead)
	assert.ErrorIs(t, err, access.ErrPermissionDenied)

	_, err = h.store.AddPermission(ctx, doc.UUID, h.role.UUID, access.CapabilityGrant)
	require.NoError(t, err)
	perm, err := h.svc.AddPermission(ctx, h.rc(), doc.UUID, h.role.UUID, access.CapabilityRead)
	require.NoError(t, err)
	assert.Equal(t, access.CapabilityRead, perm.Name)

	require.NoError(t, h.svc.DeletePermission(ctx, h.rc(), doc.UUID, h.role.UUID, access.CapabilityRead))
	perms, err := h.store.Permissions(ctx, doc.UUID)
	require.NoError(t, err)
	for _, p := range perms {
		assert.NotEqual(t, access.CapabilityRead, p.Name)
	}
}

func TestMutationsEmitAuditEvents(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	doc, err := h.svc.CreateEntity(ctx, h.rc(), "document", "doc1", h.role.UUID)
	require.NoError(t, err)
	_, err = h.svc.AddAttribute(ctx, h.rc(), doc.UUID, "status", "draft")
	require.NoError(t, err)
	require.NoError(t, h.svc.DeleteEntity(ctx, h.rc(), doc.UUID))

	require.Len(t, h.recorder.events, 3)
	assert.Equal(t, "entity.create", h.recorder.events[0].Action)
	assert.Equal(t, "attribute.add", h.recorder.events[1].Action)
	assert.Equal(t, "entity.delete", h.recorder.events[2].Action)
	for _, ev := range h.recorder.events {
		assert.Equal(t, h.user.UUID, ev.Actor)
	}
}
