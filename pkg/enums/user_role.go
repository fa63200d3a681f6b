package enums

// UserRole is a row in user_roles; admin unlocks the back office.
type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleEditor UserRole = "editor"
	UserRoleUser   UserRole = "user"
)

var userRoles = newSet("user role", UserRoleAdmin, UserRoleEditor, UserRoleUser)

func (r UserRole) String() string { return string(r) }

func (r UserRole) IsValid() bool { return userRoles.has(r) }

func ParseUserRole(value string) (UserRole, error) { return userRoles.parse(value) }
