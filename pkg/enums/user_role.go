package enums

// UserRole is the role carried by an authenticated principal.
type UserRole string

const (
	UserRoleUser    UserRole = "user"
	UserRolePartner UserRole = "partner"
	UserRoleAdmin   UserRole = "admin"
)

var validUserRoles = values[UserRole]{
	UserRoleUser,
	UserRolePartner,
	UserRoleAdmin,
}

// String implements fmt.Stringer.
func (u UserRole) String() string {
	return string(u)
}

// IsValid reports whether the value is a known UserRole.
func (u UserRole) IsValid() bool {
	return validUserRoles.has(u)
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	return validUserRoles.parse("user role", value)
}
