package auth

// Package auth contains domain-level types for request principals.
// It is pure and free of framework/adapter concerns. How a principal is
// authenticated is owned by the upstream proxy; this package only models
// the identity the engine needs for per-job access decisions.

// Role represents an application's authorization role.
// Keep string form for easy transport in headers.
type Role string

const (
	RoleOperator Role = "operator"
	RoleUser     Role = "user"
)

// Principal is the caller identity attached to every API request.
type Principal struct {
	Subject string `json:"subject"`
	Roles   []Role `json:"roles"`
}

// Anonymous reports whether no identity was supplied.
func (p Principal) Anonymous() bool { return p.Subject == "" }

// IsOperator returns true if the principal carries the operator role.
func (p Principal) IsOperator() bool {
	for _, r := range p.Roles {
		if r == RoleOperator {
			return true
		}
	}
	return false
}

// CanAccessJob implements the owner-or-operator rule used by every per-job
// operation.
func (p Principal) CanAccessJob(ownerID string) bool {
	if p.IsOperator() {
		return true
	}
	return !p.Anonymous() && p.Subject == ownerID
}
