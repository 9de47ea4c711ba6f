package identity

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkivo/arkivo/internal/access"
	"github.com/arkivo/arkivo/internal/entity"
)

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := entity.NewMemStore()
	user, err := store.CreateEntity(ctx, entity.KindUser, "alice")
	require.NoError(t, err)
	// A non-user entity with the same name must not authenticate.
	_, err = store.CreateEntity(ctx, "document", "bob")
	require.NoError(t, err)

	resolver := NewResolver(store)

	rc, err := resolver.Resolve(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.UUID, rc.User.UUID)

	_, err = resolver.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = resolver.Resolve(ctx, "bob")
	assert.ErrorIs(t, err, ErrIdentityNotFound)
}

func clientRequest(commonName string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/entities/whatever", nil)
	if commonName != "" {
		req.TLS = &tls.ConnectionState{
			PeerCertificates: []*x509.Certificate{
				{Subject: pkix.Name{CommonName: commonName}},
			},
		}
	}
	return req
}

func TestMiddleware(t *testing.T) {
	ctx := context.Background()
	store := entity.NewMemStore()
	user, err := store.CreateEntity(ctx, entity.KindUser, "alice")
	require.NoError(t, err)

	var seen *access.RequestContext
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = access.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(NewResolver(store), slog.Default())(next)

	t.Run("resolved caller reaches the handler", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, clientRequest("alice"))
		require.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, seen)
		assert.Equal(t, user.UUID, seen.User.UUID)
	})

	t.Run("no client certificate", func(t *testing.T) {
		seen = nil
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, clientRequest(""))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, seen)
	})

	t.Run("unknown common name", func(t *testing.T) {
		seen = nil
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, clientRequest("mallory"))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Nil(t, seen)
	})
}
