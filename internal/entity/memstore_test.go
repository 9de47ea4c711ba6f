package entity

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	doc, err := s.CreateEntity(ctx, "document", "doc1")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, doc.UUID)

	got, err := s.GetEntity(ctx, doc.UUID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	got, err = s.GetEntityByName(ctx, "document", "doc1")
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	_, err = s.GetEntity(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetEntityByName(ctx, "document", "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreDuplicateName(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	_, err := s.CreateEntity(ctx, "document", "doc1")
	require.NoError(t, err)

	_, err = s.CreateEntity(ctx, "document", "doc1")
	assert.ErrorIs(t, err, ErrDuplicate)

	// Same name under a different kind is a distinct key.
	_, err = s.CreateEntity(ctx, "folder", "doc1")
	assert.NoError(t, err)
}

func TestMemStoreRename(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	doc, err := s.CreateEntity(ctx, "document", "doc1")
	require.NoError(t, err)
	_, err = s.CreateEntity(ctx, "document", "doc2")
	require.NoError(t, err)

	_, err = s.RenameEntity(ctx, doc.UUID, "doc2")
	assert.ErrorIs(t, err, ErrDuplicate)

	renamed, err := s.RenameEntity(ctx, doc.UUID, "doc3")
	require.NoError(t, err)
	assert.Equal(t, "doc3", renamed.Name)

	_, err = s.GetEntityByName(ctx, "document", "doc1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.RenameEntity(ctx, uuid.New(), "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreListOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	names := []string{"a", "b", "c"}
	for _, n := range names {
		_, err := s.CreateEntity(ctx, "document", n)
		require.NoError(t, err)
	}
	_, err := s.CreateEntity(ctx, "folder", "f")
	require.NoError(t, err)

	docs, err := s.ListEntitiesByKind(ctx, "document")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for i, n := range names {
		assert.Equal(t, n, docs[i].Name)
	}

	all, err := s.ListEntities(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestMemStoreDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	doc, err := s.CreateEntity(ctx, "document", "doc")
	require.NoError(t, err)
	other, err := s.CreateEntity(ctx, "document", "other")
	require.NoError(t, err)
	role, err := s.CreateEntity(ctx, KindRole, "readers")
	require.NoError(t, err)

	_, err = s.AddAttribute(ctx, doc.UUID, "status", "draft")
	require.NoError(t, err)
	_, err = s.AddLink(ctx, doc.UUID, other.UUID)
	require.NoError(t, err)
	_, err = s.AddLink(ctx, other.UUID, doc.UUID)
	require.NoError(t, err)
	_, err = s.AddPermission(ctx, doc.UUID, role.UUID, "read")
	require.NoError(t, err)

	require.NoError(t, s.DeleteEntity(ctx, doc.UUID))

	attrs, err := s.Attributes(ctx, doc.UUID)
	require.NoError(t, err)
	assert.Empty(t, attrs)

	out, err := s.LinksFrom(ctx, other.UUID)
	require.NoError(t, err)
	assert.Empty(t, out, "links into the deleted entity are gone")
	in, err := s.LinksTo(ctx, other.UUID)
	require.NoError(t, err)
	assert.Empty(t, in, "links out of the deleted entity are gone")

	perms, err := s.Permissions(ctx, doc.UUID)
	require.NoError(t, err)
	assert.Empty(t, perms)

	assert.ErrorIs(t, s.DeleteEntity(ctx, doc.UUID), ErrNotFound)
}

func TestMemStoreDeleteRoleDropsGrants(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	doc, err := s.CreateEntity(ctx, "document", "doc")
	require.NoError(t, err)
	role, err := s.CreateEntity(ctx, KindRole, "readers")
	require.NoError(t, err)
	_, err = s.AddPermission(ctx, doc.UUID, role.UUID, "read")
	require.NoError(t, err)

	require.NoError(t, s.DeleteEntity(ctx, role.UUID))

	perms, err := s.Permissions(ctx, doc.UUID)
	require.NoError(t, err)
	assert.Empty(t, perms, "grants held by a deleted role must not linger")
}

func TestMemStoreMultiValuedAttributes(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	doc, err := s.CreateEntity(ctx, "document", "doc")
	require.NoError(t, err)

	_, err = s.AddAttribute(ctx, doc.UUID, "tag", "a")
	require.NoError(t, err)
	_, err = s.AddAttribute(ctx, doc.UUID, "tag", "b")
	require.NoError(t, err)
	_, err = s.AddAttribute(ctx, doc.UUID, "status", "draft")
	require.NoError(t, err)

	tags, err := s.AttributesByKey(ctx, doc.UUID, "tag")
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "a", tags[0].Value)
	assert.Equal(t, "b", tags[1].Value)

	require.NoError(t, s.DeleteAttributes(ctx, doc.UUID, "tag"))
	require.NoError(t, s.DeleteAttributes(ctx, doc.UUID, "tag"), "repeat delete is a no-op")

	left, err := s.Attributes(ctx, doc.UUID)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "status", left[0].Key)
}

func TestMemStoreAttributeRequiresEntity(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	_, err := s.AddAttribute(ctx, uuid.New(), "k", "v")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.AddLink(ctx, uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.AddPermission(ctx, uuid.New(), uuid.New(), "read")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreDeleteLinkAndPermission(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	a, err := s.CreateEntity(ctx, "document", "a")
	require.NoError(t, err)
	b, err := s.CreateEntity(ctx, "document", "b")
	require.NoError(t, err)
	role, err := s.CreateEntity(ctx, KindRole, "r")
	require.NoError(t, err)

	_, err = s.AddLink(ctx, a.UUID, b.UUID)
	require.NoError(t, err)
	require.NoError(t, s.DeleteLink(ctx, a.UUID, b.UUID))
	out, err := s.LinksFrom(ctx, a.UUID)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = s.AddPermission(ctx, a.UUID, role.UUID, "read")
	require.NoError(t, err)
	_, err = s.AddPermission(ctx, a.UUID, role.UUID, "write")
	require.NoError(t, err)
	require.NoError(t, s.DeletePermission(ctx, a.UUID, role.UUID, "read"))
	perms, err := s.Permissions(ctx, a.UUID)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "write", perms[0].Name)
}
