package auth

// Permission tokens. system:admin satisfies every check; branches:manage_all
// grants cross-branch reach without the full admin override.
const (
	PermMembersRead   = "members:read"
	PermMembersWrite  = "members:write"
	PermStaffRead     = "staff:read"
	PermStaffWrite    = "staff:write"
	PermPackagesRead  = "packages:read"
	PermPackagesWrite = "packages:write"
	PermBranchesRead  = "branches:read"
	PermBranchesWrite = "branches:write"
	PermRenewalsRead  = "renewals:read"
	PermRenewalsWrite = "renewals:write"
	PermReportsRead   = "reports:read"

	PermManageAllBranches = "branches:manage_all"
	PermSystemAdmin       = "system:admin"
)

// Built-in roles.
const (
	RoleSystemAdmin = "system_admin"
	RoleOwner       = "owner"
	RoleManager     = "manager"
	RoleAssociate   = "associate"
	RoleMember      = "member"
)

// defaultRoleTable is the static role catalog for the gym admin system.
// Platform users with no profile row fall back to RoleMember.
var defaultRoleTable = map[string][]string{
	RoleSystemAdmin: {PermSystemAdmin},
	RoleOwner: {
		PermManageAllBranches,
		PermMembersRead, PermMembersWrite,
		PermStaffRead, PermStaffWrite,
		PermPackagesRead, PermPackagesWrite,
		PermBranchesRead, PermBranchesWrite,
		PermRenewalsRead, PermRenewalsWrite,
		PermReportsRead,
	},
	RoleManager: {
		PermMembersRead, PermMembersWrite,
		PermStaffRead,
		PermPackagesRead,
		PermRenewalsRead, PermRenewalsWrite,
		PermReportsRead,
	},
	RoleAssociate: {
		PermMembersRead, PermMembersWrite,
		PermRenewalsRead, PermRenewalsWrite,
	},
	RoleMember: {},
}

// Set is an effective permission set. Membership checks honour the
// system:admin override.
type Set map[string]struct{}

// Has reports whether required is satisfied, either directly or through the
// system:admin override.
func (s Set) Has(required string) bool {
	if _, ok := s[PermSystemAdmin]; ok {
		return true
	}
	_, ok := s[required]
	return ok
}

// HasAny reports whether any of the required permissions is satisfied.
func (s Set) HasAny(required ...string) bool {
	for _, perm := range required {
		if s.Has(perm) {
			return true
		}
	}
	return false
}

// Registry is the immutable role -> permission mapping. It is built once at
// startup, shared by reference, and exposes no mutation path, so concurrent
// reads need no locking.
type Registry struct {
	order map[string][]string
	sets  map[string]Set
}

// NewRegistry builds the registry from the built-in role table.
func NewRegistry() *Registry {
	return NewRegistryWith(defaultRoleTable)
}

// NewRegistryWith builds a registry from an explicit table. The input is
// copied; later mutation of the argument has no effect.
func NewRegistryWith(table map[string][]string) *Registry {
	r := &Registry{
		order: make(map[string][]string, len(table)),
		sets:  make(map[string]Set, len(table)),
	}
	for role, perms := range table {
		ordered := make([]string, 0, len(perms))
		set := make(Set, len(perms))
		for _, perm := range perms {
			if _, dup := set[perm]; dup {
				continue
			}
			set[perm] = struct{}{}
			ordered = append(ordered, perm)
		}
		r.order[role] = ordered
		r.sets[role] = set
	}
	return r
}

// PermissionsFor resolves a role to its permission set. Unknown roles get an
// empty set: the registry fails closed, never open.
func (r *Registry) PermissionsFor(role string) Set {
	if set, ok := r.sets[role]; ok {
		return set
	}
	return Set{}
}

// List returns the role's permissions in registration order, for diagnostics
// and the role listing endpoints of the admin layer.
func (r *Registry) List(role string) []string {
	perms := r.order[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// Has is shorthand for PermissionsFor(role).Has(required).
func (r *Registry) Has(role, required string) bool {
	return r.PermissionsFor(role).Has(required)
}

// HasAny is shorthand for PermissionsFor(role).HasAny(required...).
func (r *Registry) HasAny(role string, required ...string) bool {
	return r.PermissionsFor(role).HasAny(required...)
}
