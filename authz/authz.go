// Package authz holds the pure role-based decision rules for membership and
// project mutations. Nothing here touches storage; callers resolve accounts
// first and apply the mutation only when the check passes.
package authz

import "github.com/CODEGENANDTEAM/SCRUM-manager/domain"

// Session is the authenticated identity for one signed-in user. It is created
// at sign-in, passed explicitly into every mutation entry point, and carries
// no ambient state.
type Session struct {
	UID   string
	Email string
}

// Actor is a session paired with the acting user's global role.
type Actor struct {
	Session
	GlobalRole string
}

// IsSuperAdmin reports whether the actor holds the unrestricted global role.
func (a Actor) IsSuperAdmin() bool { return a.GlobalRole == domain.GlobalRoleSuperAdmin }

// Member describes the target of a membership mutation.
type Member struct {
	UID         string
	GlobalRole  string
	ProjectRole domain.Role
}

// CanManageMembers reports whether the actor may add or remove members on the
// project: project owner or admin, or a global super-admin.
func CanManageMembers(actor Actor, project *domain.Project) bool {
	if actor.IsSuperAdmin() {
		return true
	}
	switch project.TeamRoles[actor.UID] {
	case domain.RoleOwner, domain.RoleAdmin:
		return true
	}
	return false
}

// CheckAddMember decides whether actor may add the account resolved from the
// supplied e-mail. target is nil when no account matched.
func CheckAddMember(actor Actor, project *domain.Project, target *domain.User) error {
	if !CanManageMembers(actor, project) {
		return domain.ErrPermissionDenied
	}
	if target == nil {
		return domain.ErrNotFound
	}
	if project.HasMember(target.UID) {
		return domain.ErrDuplicateMember
	}
	return nil
}

// CheckRemoveMember decides whether actor may remove target from the project.
// Target protections are checked before the actor's own permission, so even a
// super-admin cannot remove the sole owner without an ownership transfer.
func CheckRemoveMember(actor Actor, project *domain.Project, target Member) error {
	if target.GlobalRole == domain.GlobalRoleSuperAdmin {
		return domain.ErrProtected
	}
	if target.ProjectRole == domain.RoleOwner {
		return domain.ErrOwnershipTransferRequired
	}
	if target.UID == actor.UID {
		return domain.ErrSelfRemoval
	}
	if !CanManageMembers(actor, project) {
		return domain.ErrPermissionDenied
	}
	return nil
}

// CheckDeleteProject decides whether actor may delete the project: owner
// only, unless the actor is a global super-admin.
func CheckDeleteProject(actor Actor, project *domain.Project) error {
	if actor.IsSuperAdmin() {
		return nil
	}
	if project.TeamRoles[actor.UID] == domain.RoleOwner {
		return nil
	}
	return domain.ErrPermissionDenied
}

// CheckEditProject decides whether actor may change project fields or create
// sprints and tasks under it: any member, or a global super-admin.
func CheckEditProject(actor Actor, project *domain.Project) error {
	if actor.IsSuperAdmin() {
		return nil
	}
	if project.HasMember(actor.UID) {
		return nil
	}
	return domain.ErrPermissionDenied
}
