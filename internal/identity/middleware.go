package identity

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/arkivo/arkivo/internal/access"
	"github.com/arkivo/arkivo/internal/platform/httpx"
)

// Middleware resolves the caller once per request and stores the request
// context for downstream handlers. Requests without a verified client
// certificate never reach the core.
func Middleware(resolver *Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			commonName := ""
			if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
				commonName = r.TLS.PeerCertificates[0].Subject.CommonName
			}
			rc, err := resolver.Resolve(r.Context(), commonName)
			if err != nil {
				switch {
				case errors.Is(err, ErrUnauthenticated):
					httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "client certificate required")
				case errors.Is(err, ErrIdentityNotFound):
					logger.Warn("unknown caller", slog.String("common_name", commonName))
					httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "no user entity for credential")
				default:
					logger.Error("resolve identity", slog.Any("error", err))
					httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				}
				return
			}
			ctx := access.WithRequestContext(r.Context(), rc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
