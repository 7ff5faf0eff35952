package auth

// CheckBranchAccess decides whether the principal may act on targetBranch.
// It runs on every branch-parameterized operation, independent of the base
// permission check: a principal may hold members:write in general and still
// be scoped away from a specific branch.
//
// Rules, in order:
//  1. system:admin or branches:manage_all allow unconditionally.
//  2. Branch-session principals are allowed only on their own branch. The
//     branch comes from the session record, never from request input.
//  3. Platform principals carry no branch. Cross-branch reach for them is
//     the explicit branches:manage_all permission, not an absence-of-data
//     pass, so anything else is denied.
func CheckBranchAccess(reg *Registry, p Principal, targetBranch string) error {
	perms := reg.PermissionsFor(p.Role)
	if perms.Has(PermManageAllBranches) {
		return nil
	}
	if p.SessionKind == SessionKindBranchSession {
		if p.BranchID == targetBranch {
			return nil
		}
	}
	return &BranchAccessError{Assigned: p.BranchID, Requested: targetBranch}
}
