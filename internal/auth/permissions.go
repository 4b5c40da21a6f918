package auth

// Permission represents a named capability.
type Permission string

// Permission constants.
const (
	PermSequenceRead    Permission = "sequence:read"
	PermSequenceControl Permission = "sequence:control"
	PermSequenceManage  Permission = "sequence:manage"
	PermAuditRead       Permission = "audit:read"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermSequenceRead,
	},
	RoleOperator: {
		PermSequenceRead,
		PermSequenceControl,
	},
	RoleAdmin: {
		PermSequenceRead,
		PermSequenceControl,
		PermSequenceManage,
		PermAuditRead,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
