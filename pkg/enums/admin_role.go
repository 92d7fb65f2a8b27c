package enums

import "fmt"

// AdminRole scopes what a back-office token may do.
type AdminRole string

const (
	AdminRoleReviewer AdminRole = "reviewer"
	AdminRoleAdmin    AdminRole = "admin"
)

var validAdminRoles = []AdminRole{
	AdminRoleReviewer,
	AdminRoleAdmin,
}

// String implements fmt.Stringer.
func (v AdminRole) String() string {
	return string(v)
}

// IsValid reports whether the value is known.
func (v AdminRole) IsValid() bool {
	for _, candidate := range validAdminRoles {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseAdminRole converts raw input into an AdminRole.
func ParseAdminRole(value string) (AdminRole, error) {
	for _, candidate := range validAdminRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid admin role %q", value)
}
