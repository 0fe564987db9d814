package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sokoplace/sokoplace-backend/api/responses"
	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
	"github.com/sokoplace/sokoplace-backend/pkg/logger"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

var knownRoles = map[string]struct{}{
	"buyer":    {},
	"vendor":   {},
	"marketer": {},
	"admin":    {},
}

// ActorContext reads the identity headers the auth gateway stamps on every
// proxied request and injects them into the request context. Requests that
// reach the API without them are rejected.
func ActorContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawID := strings.TrimSpace(r.Header.Get(headerUserID))
			if rawID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
				return
			}
			userID, err := uuid.Parse(rawID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity malformed"))
				return
			}

			role := strings.ToLower(strings.TrimSpace(r.Header.Get(headerUserRole)))
			if _, ok := knownRoles[role]; !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user role missing or unknown"))
				return
			}

			ctx := WithUserID(r.Context(), userID.String())
			ctx = WithRole(ctx, role)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorID returns the authenticated actor as a parsed UUID.
func ActorID(r *http.Request) (uuid.UUID, error) {
	raw := UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity malformed")
	}
	return id, nil
}
