package config

import "strings"

// AuthConfig controls how request principals are read from forwarded
// headers. Authentication itself is owned by the fronting proxy; the
// application only trusts the identity headers it injects.
type AuthConfig struct {
	// UserHeader carries the authenticated subject.
	UserHeader string `env:"AUTH_USER_HEADER" envDefault:"X-Forwarded-User"`

	// RolesHeader carries a comma-delimited role list.
	RolesHeader string `env:"AUTH_ROLES_HEADER" envDefault:"X-Forwarded-Roles"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	a.UserHeader = strings.TrimSpace(a.UserHeader)
	if a.UserHeader == "" {
		a.UserHeader = "X-Forwarded-User"
	}
	a.RolesHeader = strings.TrimSpace(a.RolesHeader)
	if a.RolesHeader == "" {
		a.RolesHeader = "X-Forwarded-Roles"
	}
}
