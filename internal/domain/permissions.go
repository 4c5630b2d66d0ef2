package domain

import (
	"fmt"
	"strings"
)

// Permission is a bitset of workplace capabilities. Named roles below are
// fixed unions of capabilities; a member's entry in a team roster is an
// arbitrary Permission value, usually one of the roles.
type Permission uint32

const (
	PermCommentVacancy Permission = 1 << iota
	PermManageVacancyNotes
	PermCreateVacancy
	PermDeleteVacancy
	PermModifyVacancy
	PermInvite
	PermKickMember
	PermModifyMemberPermissions
	PermPromoteToManager
	PermDemoteFromManager
	PermKickManager
	PermModifyManagerPermissions
	PermPromoteToDirector
	PermDemoteFromDirector
	PermModifyDirectorPermissions
	PermKickDirector
	PermModifyTeamProperties

	PermAll Permission = 1<<17 - 1
)

// Composite roles. Observer and RoleNone are the same empty set; the
// distinction is purely presentational.
const (
	RoleNone        Permission = 0
	RoleObserver    Permission = RoleNone
	RoleCommentator Permission = PermCommentVacancy
	RoleEditor      Permission = RoleCommentator | PermCreateVacancy | PermDeleteVacancy |
		PermModifyVacancy | PermManageVacancyNotes
	RoleManager Permission = RoleEditor | PermInvite | PermKickMember | PermModifyMemberPermissions
	// A Director holds everything except the capabilities that would let a
	// peer Director demote, reconfigure or kick them.
	RoleDirector Permission = PermAll &^ (PermDemoteFromDirector | PermModifyDirectorPermissions | PermKickDirector)
)

// Has reports whether p contains every capability in flags.
func (p Permission) Has(flags Permission) bool { return p&flags == flags }

// CanChangeRole reports whether a caller may assign newRole to a subject.
// Director-capable callers may assign any role to non-Directors; Manager
// callers may assign roles up to Editor to members below Manager. Assigning
// Manager or Director always requires Director capability. Unrecognized
// role values resolve to false.
func CanChangeRole(caller, subject, newRole Permission) bool {
	canDirect := caller.Has(RoleDirector) && !subject.Has(RoleDirector)
	canManage := canDirect || (caller.Has(RoleManager) && !subject.Has(RoleManager))
	switch newRole {
	case RoleDirector, RoleManager:
		return canDirect
	case RoleEditor, RoleCommentator, RoleObserver:
		return canManage
	default:
		return false
	}
}

// CanKick reports whether a caller may remove a subject from the roster.
// KickDirector removes anyone; KickManager anyone below Director; KickMember
// anyone below Manager.
func CanKick(caller, subject Permission) bool {
	return caller.Has(PermKickDirector) ||
		(caller.Has(PermKickManager) && !subject.Has(RoleDirector)) ||
		(caller.Has(PermKickMember) && !subject.Has(RoleManager))
}

var roleNames = []struct {
	Name string
	Role Permission
}{
	{"director", RoleDirector},
	{"manager", RoleManager},
	{"editor", RoleEditor},
	{"commentator", RoleCommentator},
	{"observer", RoleObserver},
}

// RoleName returns the highest named role fully contained in p, for display.
func RoleName(p Permission) string {
	for _, r := range roleNames {
		if r.Role != RoleObserver && p.Has(r.Role) {
			return r.Name
		}
	}
	return "observer"
}

// ParseRole maps a role name to its Permission set. "none" is accepted as an
// alias for observer.
func ParseRole(name string) (Permission, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "none", "observer", "":
		return RoleObserver, nil
	case "commentator":
		return RoleCommentator, nil
	case "editor":
		return RoleEditor, nil
	case "manager":
		return RoleManager, nil
	case "director":
		return RoleDirector, nil
	default:
		return RoleNone, fmt.Errorf("unknown role %q", name)
	}
}
