package entity

// Role is an enumerated authorization role. Dispatching on raw strings is
// deliberately avoided; use the capability predicates instead.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a stored value onto a known role, defaulting to customer.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleCustomer
}

func (r Role) String() string { return string(r) }

// HasAdminCapability reports whether the user may access admin-gated resources.
func HasAdminCapability(u *User) bool {
	return u != nil && u.Role == RoleAdmin
}
