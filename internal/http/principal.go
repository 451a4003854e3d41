package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openscale/jobforge/config"
	"github.com/openscale/jobforge/internal/domain/auth"
)

// principalKey is an unexported context key type for the request principal.
type principalKey struct{}

// WithPrincipal returns a middleware that parses the caller identity from
// forwarded headers into an auth.Principal on the request context. The
// upstream proxy owns authentication; requests without the user header carry
// an anonymous principal and are rejected by per-job access checks.
func WithPrincipal(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := auth.Principal{
				Subject: strings.TrimSpace(r.Header.Get(cfg.UserHeader)),
				Roles:   parseRoles(r.Header.Get(cfg.RolesHeader)),
			}
			ctx := context.WithValue(r.Context(), principalKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext returns the request principal, or an anonymous one if
// the middleware did not run.
func PrincipalFromContext(ctx context.Context) auth.Principal {
	if p, ok := ctx.Value(principalKey{}).(auth.Principal); ok {
		return p
	}
	return auth.Principal{}
}

// RequireOperator returns a middleware that rejects non-operator callers.
// Used for the processor control surface.
func RequireOperator() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal.Anonymous() {
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})
				return
			}
			if !principal.IsOperator() {
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("operator role required"),
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// parseRoles splits a comma-separated roles header into domain roles.
func parseRoles(header string) []auth.Role {
	if strings.TrimSpace(header) == "" {
		return nil
	}

	parts := strings.Split(header, ",")
	roles := make([]auth.Role, 0, len(parts))
	for _, part := range parts {
		role := strings.ToLower(strings.TrimSpace(part))
		if role == "" {
			continue
		}
		roles = append(roles, auth.Role(role))
	}
	if len(roles) == 0 {
		return nil
	}
	return roles
}
