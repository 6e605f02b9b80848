package handler

import (
	"context"
	"net/http"

	"github.com/tees-eng/purchasing-service/internal/apperrors"
	"github.com/tees-eng/purchasing-service/internal/service"
)

type contextKey string

const principalKey contextKey = "principal"

// PrincipalFromContext returns the authenticated principal stored by
// the middleware. ok is false on unauthenticated requests.
func PrincipalFromContext(ctx context.Context) (service.Principal, bool) {
	p, ok := ctx.Value(principalKey).(service.Principal)
	return p, ok
}

// WithPrincipal resolves the acting user from the X-User-ID header
// against the directory and stores the resulting principal in the
// request context. Authentication itself (credential verification)
// happens upstream; this middleware only resolves and gates on the
// directory entry, rejecting unknown or deactivated users.
func (h *HTTPHandler) WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			h.writeError(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "missing X-User-ID header"))
			return
		}

		user, err := h.directory.GetUser(r.Context(), userID)
		if err != nil {
			if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
				err = apperrors.New(apperrors.ErrCodeUnauthorized, "unknown user")
			}
			h.writeError(w, r, err)
			return
		}
		if !user.Active {
			h.writeError(w, r, apperrors.New(apperrors.ErrCodeUnauthorized, "user is deactivated"))
			return
		}

		principal := service.Principal{UserID: user.ID, Role: user.Role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, principal)))
	})
}
