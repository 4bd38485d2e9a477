package capability

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Middleware authenticates bearer tokens and places the actor in context.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireActor rejects requests without a valid API token.
func (m Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required")
			return
		}

		actor, err := m.Service.Authenticate(r.Context(), token)
		if err != nil {
			if m.Logger != nil && err != ErrInvalidToken {
				m.Logger.Error("authenticate token", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid api token")
			return
		}

		ctx := shared.ContextWithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
