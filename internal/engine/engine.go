// Package engine implements the workplace rules: customer registry, team
// lifecycle and vacancy lifecycle. Authorization is the bitset model from
// package domain; mutual exclusion is advisory per-key locking, never held
// across more than one entity kind at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hrflow/internal/config"
	"hrflow/internal/domain"
	"hrflow/internal/events"
	"hrflow/internal/keylock"
	"hrflow/internal/store"
)

// Engine wires the stores, limits and lock tables behind the workplace
// operations. All exported methods are safe for concurrent use.
type Engine struct {
	Customers store.Store[string, domain.CustomerInfo]
	Teams     store.Store[int64, domain.Team]
	Vacancies store.Store[int64, domain.Vacancy]

	Limits     config.Limits
	InviteRole domain.Permission
	Events     *events.Writer
	Now        func() time.Time

	customerLocks keylock.Locker[string]
	teamLocks     keylock.Locker[int64]
	vacancyLocks  keylock.Locker[int64]
}

// New builds an engine over the given stores using cfg for limits and the
// invited-member default role.
func New(customers store.Store[string, domain.CustomerInfo],
	teams store.Store[int64, domain.Team],
	vacancies store.Store[int64, domain.Vacancy],
	cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Engine{
		Customers:  customers,
		Teams:      teams,
		Vacancies:  vacancies,
		Limits:     cfg.Limits,
		InviteRole: cfg.InviteRole(),
		Now:        time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// RegisterCustomer creates the workplace record for a new username. The
// username must already be formatted and validated by the caller.
func (e *Engine) RegisterCustomer(ctx context.Context, username string) error {
	if username == "" {
		return contractError("RegisterCustomer: empty username")
	}
	unlock := e.customerLocks.Acquire(username)
	defer unlock.Release()

	info := domain.CustomerInfo{
		Username:        username,
		AccountState:    domain.AccountActive,
		JoinedTeamNames: map[int64]string{},
	}
	err := e.Customers.InsertWithKey(ctx, username, info)
	switch {
	case err == nil:
		e.Events.Append(ctx, "customer.registered", "customer", username, username, nil)
		return nil
	case errors.Is(err, store.ErrDuplicateKey):
		return ErrUsernameTaken
	default:
		return serverError("RegisterCustomer", err)
	}
}

// GetCustomerInfo returns the caller's own workplace record.
func (e *Engine) GetCustomerInfo(ctx context.Context, username string) (domain.CustomerInfo, error) {
	if username == "" {
		return domain.CustomerInfo{}, contractError("GetCustomerInfo: empty username")
	}
	info, err := e.Customers.Get(ctx, username)
	switch {
	case err == nil:
		return info, nil
	case errors.Is(err, store.ErrNotFound):
		return domain.CustomerInfo{}, ErrUserNotFound
	default:
		return domain.CustomerInfo{}, serverError("GetCustomerInfo", err)
	}
}

// MarkForDeletion flips the account to on_deletion. The account stops being
// eligible for team creation and invitations but existing memberships stay.
func (e *Engine) MarkForDeletion(ctx context.Context, username string) error {
	if username == "" {
		return contractError("MarkForDeletion: empty username")
	}
	unlock := e.customerLocks.Acquire(username)
	defer unlock.Release()

	info, err := e.Customers.Get(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	} else if err != nil {
		return serverError("MarkForDeletion", err)
	}
	if info.AccountState == domain.AccountOnDeletion {
		return nil
	}
	info.AccountState = domain.AccountOnDeletion
	if err := e.Customers.Update(ctx, username, info); err != nil {
		return serverError("MarkForDeletion", err)
	}
	e.Events.Append(ctx, "customer.deletion_requested", "customer", username, username, nil)
	return nil
}

// CreateTeam creates a team with the caller as its sole Director and returns
// the new team id. The caller must be an active account below its join limit.
//
// The team insert and the caller's joined-teams update are two writes with no
// shared transaction. If the second write fails the team exists without a
// back-reference; the audit log carries enough to reconcile.
func (e *Engine) CreateTeam(ctx context.Context, caller string, props domain.TeamProperties) (int64, error) {
	if caller == "" {
		return 0, contractError("CreateTeam: empty caller")
	}
	if err := domain.ValidateTeamProperties(props); err != nil {
		return 0, err
	}
	unlock := e.customerLocks.Acquire(caller)
	defer unlock.Release()

	info, err := e.Customers.Get(ctx, caller)
	if errors.Is(err, store.ErrNotFound) {
		return 0, ErrUserNotFound
	} else if err != nil {
		return 0, serverError("CreateTeam", err)
	}
	if info.AccountState != domain.AccountActive {
		return 0, ErrUserNotFound
	}
	if info.JoinedCount() >= e.Limits.TeamJoinLimit {
		return 0, ErrJoinLimitExceeded
	}

	team := domain.Team{
		Properties:  props,
		Permissions: map[string]domain.Permission{caller: domain.RoleDirector},
	}
	id, err := e.Teams.Insert(ctx, team)
	if err != nil {
		return 0, serverError("CreateTeam", err)
	}

	if info.JoinedTeamNames == nil {
		info.JoinedTeamNames = map[int64]string{}
	}
	info.JoinedTeamNames[id] = props.Name
	if err := e.Customers.Update(ctx, caller, info); err != nil {
		return 0, serverError("CreateTeam", err)
	}
	e.Events.Append(ctx, "team.created", "team", fmt.Sprint(id), caller, events.EventPayload{"name": props.Name})
	return id, nil
}

// GetTeam returns the team if the caller is on its roster. Missing teams and
// non-membership are indistinguishable to the caller.
func (e *Engine) GetTeam(ctx context.Context, caller string, teamID int64) (domain.Team, error) {
	if caller == "" {
		return domain.Team{}, contractError("GetTeam: empty caller")
	}
	team, err := e.Teams.Get(ctx, teamID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Team{}, ErrResourceNotFound
	} else if err != nil {
		return domain.Team{}, serverError("GetTeam", err)
	}
	if !team.HasMember(caller) {
		return domain.Team{}, ErrResourceNotFound
	}
	return team, nil
}

// Invite adds subject to the team roster with the configured default role.
// The roster write happens under the team lock; the subject's joined-teams
// cache is updated afterwards under the subject's own lock.
func (e *Engine) Invite(ctx context.Context, caller string, teamID int64, subject string) error {
	if caller == "" || subject == "" {
		return contractError("Invite: empty caller or subject")
	}

	info, err := e.Customers.Get(ctx, subject)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	} else if err != nil {
		return serverError("Invite", err)
	}
	if info.AccountState != domain.AccountActive {
		return ErrUserNotFound
	}

	unlockTeam := e.teamLocks.Acquire(teamID)
	defer unlockTeam.Release()

	team, err := e.Teams.Get(ctx, teamID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrResourceNotFound
	} else if err != nil {
		return serverError("Invite", err)
	}
	if !team.HasMember(caller) {
		return ErrResourceNotFound
	}
	if !team.Permissions[caller].Has(domain.PermInvite) {
		return ErrNoPermission
	}
	if team.HasMember(subject) {
		return ErrUserAlreadyJoined
	}
	if info.JoinedCount() >= e.Limits.TeamJoinLimit {
		return ErrJoinLimitExceeded
	}
	if len(team.Permissions) >= e.Limits.TeamMaxSize {
		return ErrTeamSizeLimitExceeded
	}

	team.Permissions[subject] = e.InviteRole
	if err := e.Teams.Update(ctx, teamID, team); err != nil {
		return serverError("Invite", err)
	}
	name := team.Properties.Name
	unlockTeam.Release()

	unlockSubject := e.customerLocks.Acquire(subject)
	defer unlockSubject.Release()
	// Re-read under the subject's lock: the record may have moved since the
	// eligibility check above.
	info, err = e.Customers.Get(ctx, subject)
	if err != nil {
		// Roster already holds the subject; the joined-teams cache heals on
		// the next successful write.
		e.Events.Append(ctx, "member.invited", "team", fmt.Sprint(teamID), caller,
			events.EventPayload{"subject": subject, "cache_synced": false})
		return nil
	}
	if info.JoinedTeamNames == nil {
		info.JoinedTeamNames = map[int64]string{}
	}
	info.JoinedTeamNames[teamID] = name
	if err := e.Customers.Update(ctx, subject, info); err != nil {
		return serverError("Invite", err)
	}
	e.Events.Append(ctx, "member.invited", "team", fmt.Sprint(teamID), caller,
		events.EventPayload{"subject": subject})
	return nil
}

// Kick removes subject from the roster. The caller needs the kick capability
// matching the subject's rank.
func (e *Engine) Kick(ctx context.Context, caller string, teamID int64, subject string) error {
	if caller == "" || subject == "" {
		return contractError("Kick: empty caller or subject")
	}
	if caller == subject {
		return contractError("Kick: caller cannot kick themselves, use Leave")
	}
	unlockTeam := e.teamLocks.Acquire(teamID)
	defer unlockTeam.Release()

	team, err := e.Teams.Get(ctx, teamID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrResourceNotFound
	} else if err != nil {
		return serverError("Kick", err)
	}
	if !team.HasMember(caller) {
		return ErrResourceNotFound
	}
	if !team.HasMember(subject) {
		return ErrUserNotFound
	}
	if !domain.CanKick(team.Permissions[caller], team.Permissions[subject]) {
		return ErrNoPermission
	}

	delete(team.Permissions, subject)
	if err := e.Teams.Update(ctx, teamID, team); err != nil {
		return serverError("Kick", err)
	}
	unlockTeam.Release()

	e.forgetTeam(ctx, subject, teamID)
	e.Events.Append(ctx, "member.kicked", "team", fmt.Sprint(teamID), caller,
		events.EventPayload{"subject": subject})
	return nil
}

// Leave removes the caller from the team. A sole member deletes the team and
// cascades its vacancies. Otherwise, if no Director remains after departure,
// every Manager is promoted to Director; if there are no Managers either,
// every remaining member is.
func (e *Engine) Leave(ctx context.Context, caller string, teamID int64) error {
	if caller == "" {
		return contractError("Leave: empty caller")
	}
	unlockTeam := e.teamLocks.Acquire(teamID)
	defer unlockTeam.Release()

	team, err := e.Teams.Get(ctx, teamID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrResourceNotFound
	} else if err != nil {
		return serverError("Leave", err)
	}
	if !team.HasMember(caller) {
		return ErrResourceNotFound
	}

	deleted := false
	if len(team.Permissions) == 1 {
		if err := e.deleteTeamVacancies(ctx, teamID); err != nil {
			return serverError("Leave", err)
		}
		if err := e.Teams.Delete(ctx, teamID); err != nil {
			return serverError("Leave", err)
		}
		deleted = true
	} else {
		delete(team.Permissions, caller)
		promoteSuccessors(team.Permissions)
		if err := e.Teams.Update(ctx, teamID, team); err != nil {
			return serverError("Leave", err)
		}
	}
	unlockTeam.Release()

	e.forgetTeam(ctx, caller, teamID)
	e.Events.Append(ctx, "member.left", "team", fmt.Sprint(teamID), caller,
		events.EventPayload{"team_deleted": deleted})
	return nil
}

// promoteSuccessors restores leadership after a departure. If any Director
// remains the roster is untouched. Otherwise all Managers become Directors,
// or, with no Managers either, everyone does.
func promoteSuccessors(roster map[string]domain.Permission) {
	hasDirector, hasManager := false, false
	for _, p := range roster {
		if p.Has(domain.RoleDirector) {
			hasDirector = true
		}
		if p.Has(domain.RoleManager) {
			hasManager = true
		}
	}
	if hasDirector {
		return
	}
	for name, p := range roster {
		if !hasManager || p.Has(domain.RoleManager) {
			roster[name] = p | domain.RoleDirector
		}
	}
}

func (e *Engine) deleteTeamVacancies(ctx context.Context, teamID int64) error {
	vacancies, err := e.Vacancies.Select(ctx, func(v domain.Vacancy) bool {
		return v.OwnerTeamID == teamID
	})
	if err != nil {
		return err
	}
	for _, v := range vacancies {
		if err := e.Vacancies.Delete(ctx, v.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	return nil
}

// forgetTeam drops teamID from a customer's joined-teams cache. Best-effort:
// the roster is the source of truth and a stale cache entry only affects the
// join-limit count until the next successful sync.
func (e *Engine) forgetTeam(ctx context.Context, username string, teamID int64) {
	unlock := e.customerLocks.Acquire(username)
	defer unlock.Release()

	info, err := e.Customers.Get(ctx, username)
	if err != nil {
		return
	}
	if _, ok := info.JoinedTeamNames[teamID]; !ok {
		return
	}
	delete(info.JoinedTeamNames, teamID)
	_ = e.Customers.Update(ctx, username, info)
}

// ModifyRole assigns a named role's capability set to subject. Authorization
// follows the caller/subject rank rules in domain.CanChangeRole.
func (e *Engine) ModifyRole(ctx context.Context, caller string, teamID int64, subject string, newRole domain.Permission) error {
	if caller == "" || subject == "" {
		return contractError("ModifyRole: empty caller or subject")
	}
	unlockTeam := e.teamLocks.Acquire(teamID)
	defer unlockTeam.Release()

	team, err := e.Teams.Get(ctx, teamID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrResourceNotFound
	} else if err != nil {
		return serverError("ModifyRole", err)
	}
	if !team.HasMember(caller) {
		return ErrResourceNotFound
	}
	if !team.HasMember(subject) {
		return ErrUserNotFound
	}
	if !domain.CanChangeRole(team.Permissions[caller], team.Permissions[subject], newRole) {
		return ErrNoPermission
	}
	if team.Permissions[subject] == newRole {
		return nil
	}
	team.Permissions[subject] = newRole
	if err := e.Teams.Update(ctx, teamID, team); err != nil {
		return serverError("ModifyRole", err)
	}
	e.Events.Append(ctx, "member.role_changed", "team", fmt.Sprint(teamID), caller,
		events.EventPayload{"subject": subject, "role": domain.RoleName(newRole)})
	return nil
}

// ModifyTeamProperties updates the team's properties. A rename fans out to
// every member's joined-teams cache after the team lock is released; each
// cache write runs under that member's own lock and failures are tolerated.
func (e *Engine) ModifyTeamProperties(ctx context.Context, caller string, teamID int64, props domain.TeamProperties) error {
	if caller == "" {
		return contractError("ModifyTeamProperties: empty caller")
	}
	if err := domain.ValidateTeamProperties(props); err != nil {
		return err
	}
	unlockTeam := e.teamLocks.Acquire(teamID)
	defer unlockTeam.Release()

	team, err := e.Teams.Get(ctx, teamID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrResourceNotFound
	} else if err != nil {
		return serverError("ModifyTeamProperties", err)
	}
	if !team.HasMember(caller) {
		return ErrResourceNotFound
	}
	if !team.Permissions[caller].Has(domain.PermModifyTeamProperties) {
		return ErrNoPermission
	}
	if team.Properties == props {
		return nil
	}

	oldName := team.Properties.Name
	team.Properties = props
	if err := e.Teams.Update(ctx, teamID, team); err != nil {
		return serverError("ModifyTeamProperties", err)
	}
	members := make([]string, 0, len(team.Permissions))
	for name := range team.Permissions {
		members = append(members, name)
	}
	unlockTeam.Release()

	if oldName != props.Name {
		for _, member := range members {
			e.renameCachedTeam(ctx, member, teamID, props.Name)
		}
		e.Events.Append(ctx, "team.renamed", "team", fmt.Sprint(teamID), caller,
			events.EventPayload{"from": oldName, "to": props.Name})
	}
	return nil
}

func (e *Engine) renameCachedTeam(ctx context.Context, username string, teamID int64, name string) {
	unlock := e.customerLocks.Acquire(username)
	defer unlock.Release()

	info, err := e.Customers.Get(ctx, username)
	if err != nil {
		return
	}
	if _, ok := info.JoinedTeamNames[teamID]; !ok {
		return
	}
	info.JoinedTeamNames[teamID] = name
	_ = e.Customers.Update(ctx, username, info)
}
