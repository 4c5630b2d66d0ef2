package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hrflow/internal/config"
	"hrflow/internal/domain"
	"hrflow/internal/store"
)

type testStores struct {
	customers *store.Memory[string, domain.CustomerInfo]
	teams     *store.Memory[int64, domain.Team]
	vacancies *store.Memory[int64, domain.Vacancy]
}

func newTestEngine(t *testing.T) (*Engine, testStores) {
	t.Helper()
	s := testStores{
		customers: store.NewMemory[string, domain.CustomerInfo](),
		teams:     store.NewMemoryAutoInc(func(tm *domain.Team, id int64) { tm.ID = id }),
		vacancies: store.NewMemoryAutoInc(func(v *domain.Vacancy, id int64) { v.ID = id }),
	}
	e := New(s.customers, s.teams, s.vacancies, config.Default())
	e.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return e, s
}

func mustRegister(t *testing.T, e *Engine, usernames ...string) {
	t.Helper()
	for _, u := range usernames {
		if err := e.RegisterCustomer(context.Background(), u); err != nil {
			t.Fatalf("register %s: %v", u, err)
		}
	}
}

func mustCreateTeam(t *testing.T, e *Engine, caller, name string) int64 {
	t.Helper()
	id, err := e.CreateTeam(context.Background(), caller, domain.TeamProperties{Name: name})
	if err != nil {
		t.Fatalf("create team %q: %v", name, err)
	}
	return id
}

func mustInvite(t *testing.T, e *Engine, caller string, teamID int64, subject string) {
	t.Helper()
	if err := e.Invite(context.Background(), caller, teamID, subject); err != nil {
		t.Fatalf("invite %s: %v", subject, err)
	}
}

func mustSetRole(t *testing.T, e *Engine, caller string, teamID int64, subject string, role domain.Permission) {
	t.Helper()
	if err := e.ModifyRole(context.Background(), caller, teamID, subject, role); err != nil {
		t.Fatalf("set role for %s: %v", subject, err)
	}
}

func TestRegisterCustomer(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	mustRegister(t, e, "alice1")
	if err := e.RegisterCustomer(ctx, "alice1"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate register: got %v, want ErrUsernameTaken", err)
	}

	info, err := e.GetCustomerInfo(ctx, "alice1")
	if err != nil {
		t.Fatalf("get customer info: %v", err)
	}
	if info.AccountState != domain.AccountActive || info.JoinedCount() != 0 {
		t.Fatalf("unexpected fresh account: %+v", info)
	}

	if _, err := e.GetCustomerInfo(ctx, "nobody1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown customer: got %v, want ErrUserNotFound", err)
	}
}

func TestCreateTeamRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustRegister(t, e, "alice1")

	id := mustCreateTeam(t, e, "alice1", "Platform Hiring")

	team, err := e.GetTeam(ctx, "alice1", id)
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	if team.ID != id || team.Properties.Name != "Platform Hiring" {
		t.Fatalf("unexpected team: %+v", team)
	}
	if team.Permissions["alice1"] != domain.RoleDirector {
		t.Fatalf("creator role = %v, want RoleDirector", team.Permissions["alice1"])
	}

	info, err := e.GetCustomerInfo(ctx, "alice1")
	if err != nil {
		t.Fatalf("get customer info: %v", err)
	}
	if info.JoinedTeamNames[id] != "Platform Hiring" {
		t.Fatalf("joined-teams cache = %v", info.JoinedTeamNames)
	}
}

func TestCreateTeamRejections(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	e.Limits.TeamJoinLimit = 2
	mustRegister(t, e, "alice1", "victor")

	mustCreateTeam(t, e, "alice1", "One")
	mustCreateTeam(t, e, "alice1", "Two")
	if _, err := e.CreateTeam(ctx, "alice1", domain.TeamProperties{Name: "Three"}); !errors.Is(err, ErrJoinLimitExceeded) {
		t.Fatalf("over join limit: got %v, want ErrJoinLimitExceeded", err)
	}

	if err := e.MarkForDeletion(ctx, "victor"); err != nil {
		t.Fatalf("mark for deletion: %v", err)
	}
	if _, err := e.CreateTeam(ctx, "victor", domain.TeamProperties{Name: "Ghost"}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("on-deletion create: got %v, want ErrUserNotFound", err)
	}

	if _, err := e.CreateTeam(ctx, "alice1", domain.TeamProperties{Name: "X"}); err == nil {
		t.Fatal("one-character team name accepted")
	}
}

func TestGetTeamHidesExistence(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustRegister(t, e, "alice1", "mallory")
	id := mustCreateTeam(t, e, "alice1", "Hiring")

	if _, err := e.GetTeam(ctx, "mallory", id); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("non-member get: got %v, want ErrResourceNotFound", err)
	}
	if _, err := e.GetTeam(ctx, "alice1", id+100); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("missing team get: got %v, want ErrResourceNotFound", err)
	}
}

func TestInvite(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustRegister(t, e, "alice1", "bobby1", "carol1")
	id := mustCreateTeam(t, e, "alice1", "Hiring")

	mustInvite(t, e, "alice1", id, "bobby1")

	team, err := e.GetTeam(ctx, "bobby1", id)
	if err != nil {
		t.Fatalf("invited member get team: %v", err)
	}
	if team.Permissions["bobby1"] != domain.RoleObserver {
		t.Fatalf("invited role = %v, want RoleObserver", team.Permissions["bobby1"])
	}
	info, _ := e.GetCustomerInfo(ctx, "bobby1")
	if info.JoinedTeamNames[id] != "Hiring" {
		t.Fatalf("subject cache = %v", info.JoinedTeamNames)
	}

	if err := e.Invite(ctx, "alice1", id, "bobby1"); !errors.Is(err, ErrUserAlreadyJoined) {
		t.Fatalf("re-invite: got %v, want ErrUserAlreadyJoined", err)
	}
	if err := e.Invite(ctx, "alice1", id, "nobody1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("invite unknown: got %v, want ErrUserNotFound", err)
	}
	// Observers cannot invite.
	if err := e.Invite(ctx, "bobby1", id, "carol1"); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("observer invite: got %v, want ErrNoPermission", err)
	}
	// Outsiders see no team at all.
	if err := e.Invite(ctx, "carol1", id, "bobby1"); !errors.Is(err, ErrResourceNotFound) {
		t.Fatalf("outsider invite: got %v, want ErrResourceNotFound", err)
	}
}

func TestInviteLimits(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	e.Limits.TeamMaxSize = 2
	mustRegister(t, e, "alice1", "bobby1", "carol1")
	id := mustCreateTeam(t, e, "alice1", "Hiring")

	mustInvite(t, e, "alice1", id, "bobby1")
	if err := e.Invite(ctx, "alice1", id, "carol1"); !errors.Is(err, ErrTeamSizeLimitExceeded) {
		t.Fatalf("over team size: got %v, want ErrTeamSizeLimitExceeded", err)
	}

	e.Limits.TeamMaxSize = 20
	e.Limits.TeamJoinLimit = 1
	mustCreateTeam(t, e, "carol1", "Carols")
	if err := e.Invite(ctx, "alice1", id, "carol1"); !errors.Is(err, ErrJoinLimitExceeded) {
		t.Fatalf("over join limit: got %v, want ErrJoinLimitExceeded", err)
	}
}

func TestInviteOnDeletionSubject(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustRegister(t, e, "alice1", "victor")
	id := mustCreateTeam(t, e, "alice1", "Hiring")

	if err := e.MarkForDeletion(ctx, "victor"); err != nil {
		t.Fatalf("mark for deletion: %v", err)
	}
	if err := e.Invite(ctx, "alice1", id, "victor"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("invite on-deletion: got %v, want ErrUserNotFound", err)
	}
}

func TestConcurrentInvite(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustRegister(t, e, "alice1", "bobby1", "carol1")
	id := mustCreateTeam(t, e, "alice1", "Hiring")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, subject := range []string{"bobby1", "carol1"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = e.Invite(ctx, "alice1", id, subject)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("concurrent invite %d: %v", i, err)
		}
	}
	team, err := e.GetTeam(ctx, "alice1", id)
	if err != nil {
		t.Fatalf("get team: %v", err)
	}
	if len(team.Permissions) != 3 {
		t.Fatalf("roster size = %d, want 3", len(team.Permissions))
	}
}

func TestKick(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	mustRegister(t, e, "alice1", "bobby1", "carol1")
	id := mustCreateTeam(t, e, "alice1", "Hiring")
	mustInvite(t, e, "alice1", id, "bobby1")
	mustInvite(t, e, "alice1", id, "carol1")
	mustSetRole(t, e, "alice1", id, "bobby1", domain.RoleManager)

	// A Manager cannot kick the Director.
	if err := e.Kick(ctx, "bobby1", id, "alice1"); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("manager kicks director: got %v, want ErrNoPermission", err)
	}
	// An Observer cannot kick anyone.
	if err := e.Kick(ctx, "carol1", id, "bobby1"); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("observer kicks: got %v, want ErrNoPermission", err)
	}

	if err := e.Kick(ctx, "bobby1", id, "carol1"); err != nil {
		t.Fatalf("manager kicks observer: %v", err)
	}
	team, _ := e.GetTeam(ctx, "alice1", id)
	if team.HasMember("carol1") {
		t.Fatal("kicked member still on roster")
	}
	info, _ := e.GetCustomerInfo(ctx, "carol1")
	if _, ok := info.JoinedTeamNames[id]; ok {
		t.Fatalf("kicked member cache not cleared: %v", info.JoinedTeamNames)
	}

	if err := e.Kick(ctx, "alice1", id, "carol1"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("kick non-member: got %v, want ErrUserNotFound", err)
	}
}

func TestLeaveSuccession(t *testing.T) {
	t.Run("managers inherit", func(t *testing.T) {
		e, _ := newTestEngine(t)
		ctx := context.Background()
		mustRegister(t, e, "alice1", "bobby1", "carol1")
		id := mustCreateTeam(t, e, "alice1", "Hiring")
		mustInvite(t, e, "alice1", id, "bobby1")
		mustInvite(t, e, "alice1", id, "carol1")
		mustSetRole(t, e, "alice1", id, "bobby1", domain.RoleManager)

		if err := e.Leave(ctx, "alice1", id); err != nil {
			t.Fatalf("leave: %v", err)
		}
		team, err := e.GetTeam(ctx, "bobby1", id)
		if err != nil {
			t.Fatalf("get team: %v", err)
		}
		if !team.Permissions["bobby1"].Has(domain.RoleDirector) {
			t.Fatalf("manager not promoted: %v", team.Permissions["bobby1"])
		}
		if team.Permissions["carol1"].Has(domain.RoleDirector) {
			t.Fatalf("observer promoted alongside manager: %v", team.Permissions["carol1"])
		}
	})

	t.Run("everyone inherits without managers", func(t *testing.T) {
		e, _ := newTestEngine(t)
		ctx := context.Background()
		mustRegister(t, e, "alice1", "bobby1", "carol1")
		id := mustCreateTeam(t, e, "alice1", "Hiring")
		mustInvite(t, e, "alice1", id, "bobby1")
		mustInvite(t, e, "alice1", id, "carol1")

		if err := e.Leave(ctx, "alice1", id); err != nil {
			t.Fatalf("leave: %v", err)
		}
		team, err := e.GetTeam(ctx, "bobby1", id)
		if err != nil {
			t.Fatalf("get team: %v", err)
		}
		for _, member := range []string{"bobby1", "carol1"} {
			if !team.Permissions[member].Has(domain.RoleDirector) {
				t.Fatalf("%s not promoted: %v", member, team.Permissions[member])
			}
		}
	})

	t.Run("surviving director blocks promotion", func(t *testing.T) {
		e, _ := newTestEngine(t)
		ctx := context.Background()
		mustRegister(t, e, "alice1", "bobby1", "carol1")
		id := mustCreateTeam(t, e, "alice1", "Hiring")
		mustInvite(t, e, "alice1", id, "bobby1")
		mustInvite(t, e, "alice1", id, "carol1")
		mustSetRole(t, e, "alice1", id, "bobby1", domain.RoleDirector)

		if err := e.Leave(ctx, "alice1", id); err != nil {
			t.Fatalf("leave: %v", err)
		}
		team, _ := e.GetTeam(ctx, "bobby1", id)
		if team.Permissions["carol1"].Has(domain.RoleDirector) {
			t.Fatalf("observer promoted despite surviving director: %v", team.Permissions["carol1"])
		}
	})
}

func TestLeaveSoleMemberDeletesTeam(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	mustRegister(t, e, "alice1")
	id := mustCreateTeam(t, e, "alice1", "Hiring")
	if _, err := e.CreateVacancy(ctx, "alice1", id, domain.VacancyProperties{Title: "Backend"}); err != nil {
		t.Fatalf("create vacancy: %v", err)
	}
	if _, err := e.CreateVacancy(ctx, "alice1", id, domain.VacancyProperties{Title: "Frontend"}); err != nil {
		t.Fatalf("create vacancy: %v", err)
	}

	if err := e.Leave(ctx, "alice1", id); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, err := s.teams.Get(ctx, id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("team still stored: %v", err)
	}
	left, err := s.vacancies.Select(ctx, nil)
	if err != nil {
		t.Fatalf("select vacancies: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("%d vacancies survived team deletion", len(left))
	}
	info, _ := e.GetCustomerInfo(ctx, "alice1")
	if info.JoinedCount() != 0 {
		t.Fatalf("leaver cache not cleared: %v", info.JoinedTeamNames)
	}
}

func TestModifyRole(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	mustRegister(t, e, "alice1", "bobby1", "carol1")
	id := mustCreateTeam(t, e, "alice1", "Hiring")
	mustInvite(t, e, "alice1", id, "bobby1")
	mustInvite(t, e, "alice1", id, "carol1")
	mustSetRole(t, e, "alice1", id, "bobby1", domain.RoleManager)

	// Managers may hand out roles up to Editor, not Manager.
	if err := e.ModifyRole(ctx, "bobby1", id, "carol1", domain.RoleManager); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("manager promotes to manager: got %v, want ErrNoPermission", err)
	}
	mustSetRole(t, e, "bobby1", id, "carol1", domain.RoleEditor)

	// Nobody outranks a Director.
	if err := e.ModifyRole(ctx, "bobby1", id, "alice1", domain.RoleObserver); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("manager demotes director: got %v, want ErrNoPermission", err)
	}

	if err := e.ModifyRole(ctx, "alice1", id, "nobody1", domain.RoleEditor); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("role for non-member: got %v, want ErrUserNotFound", err)
	}

	// Assigning the role a member already has writes nothing.
	before := s.teams.Writes()
	mustSetRole(t, e, "alice1", id, "carol1", domain.RoleEditor)
	if got := s.teams.Writes(); got != before {
		t.Fatalf("same-role assignment wrote: %d -> %d", before, got)
	}
}

func TestRenameFansOutToMemberCaches(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	mustRegister(t, e, "alice1", "bobby1")
	id := mustCreateTeam(t, e, "alice1", "Old Name")
	mustInvite(t, e, "alice1", id, "bobby1")

	if err := e.ModifyTeamProperties(ctx, "alice1", id, domain.TeamProperties{Name: "New Name"}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	for _, member := range []string{"alice1", "bobby1"} {
		info, err := e.GetCustomerInfo(ctx, member)
		if err != nil {
			t.Fatalf("get %s: %v", member, err)
		}
		if info.JoinedTeamNames[id] != "New Name" {
			t.Fatalf("%s cache = %v", member, info.JoinedTeamNames)
		}
	}

	// Unchanged properties are a no-op.
	before := s.teams.Writes()
	if err := e.ModifyTeamProperties(ctx, "alice1", id, domain.TeamProperties{Name: "New Name"}); err != nil {
		t.Fatalf("idempotent rename: %v", err)
	}
	if got := s.teams.Writes(); got != before {
		t.Fatalf("no-op rename wrote: %d -> %d", before, got)
	}

	// Members without the capability are rejected.
	if err := e.ModifyTeamProperties(ctx, "bobby1", id, domain.TeamProperties{Name: "Bobby's"}); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("observer rename: got %v, want ErrNoPermission", err)
	}
}

func TestStorageFailuresSurfaceAsServerError(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()
	mustRegister(t, e, "alice1", "bobby1")
	id := mustCreateTeam(t, e, "alice1", "Hiring")

	s.teams.Hook = func(op string) error {
		if op == "update" {
			return errors.New("disk on fire")
		}
		return nil
	}
	err := e.Invite(ctx, "alice1", id, "bobby1")
	var se ServerError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, want ServerError", err)
	}
}

func TestEmptyCallerIsContractError(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	var ce ContractError
	if _, err := e.GetTeam(ctx, "", 1); !errors.As(err, &ce) {
		t.Fatalf("got %v, want ContractError", err)
	}
	if err := e.Invite(ctx, "alice1", 1, ""); !errors.As(err, &ce) {
		t.Fatalf("got %v, want ContractError", err)
	}
	if err := e.Kick(ctx, "alice1", 1, "alice1"); !errors.As(err, &ce) {
		t.Fatalf("self-kick: got %v, want ContractError", err)
	}
}
