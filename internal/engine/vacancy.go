package engine

import (
	"context"
	"errors"
	"fmt"

	"hrflow/internal/domain"
	"hrflow/internal/events"
	"hrflow/internal/store"
)

// CreateVacancy opens a vacancy owned by the team and returns its id. The
// team's counter is incremented first, under the team lock; if the vacancy
// insert then fails the counter is decremented back.
func (e *Engine) CreateVacancy(ctx context.Context, caller string, teamID int64, props domain.VacancyProperties) (int64, error) {
	if caller == "" {
		return 0, contractError("CreateVacancy: empty caller")
	}
	if err := domain.ValidateVacancyProperties(props); err != nil {
		return 0, err
	}
	if props.State == "" {
		props.State = domain.VacancyActive
	}
	unlockTeam := e.teamLocks.Acquire(teamID)
	defer unlockTeam.Release()

	team, err := e.Teams.Get(ctx, teamID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, ErrResourceNotFound
	} else if err != nil {
		return 0, serverError("CreateVacancy", err)
	}
	if !team.HasMember(caller) {
		return 0, ErrResourceNotFound
	}
	if !team.Permissions[caller].Has(domain.PermCreateVacancy) {
		return 0, ErrNoPermission
	}
	if team.VacancyCount >= e.Limits.VacanciesMaxCount {
		return 0, ErrVacancyCountLimitExceeded
	}

	team.VacancyCount++
	if err := e.Teams.Update(ctx, teamID, team); err != nil {
		return 0, serverError("CreateVacancy", err)
	}

	vacancy := domain.Vacancy{
		OwnerTeamID: teamID,
		Properties:  props,
		CreatedAt:   e.now(),
	}
	id, err := e.Vacancies.Insert(ctx, vacancy)
	if err != nil {
		// Roll the counter back while the team lock is still held.
		team.VacancyCount--
		if rbErr := e.Teams.Update(ctx, teamID, team); rbErr != nil {
			return 0, serverError("CreateVacancy", fmt.Errorf("insert failed (%v), counter rollback failed: %w", err, rbErr))
		}
		return 0, serverError("CreateVacancy", err)
	}
	e.Events.Append(ctx, "vacancy.created", "vacancy", fmt.Sprint(id), caller,
		events.EventPayload{"team_id": teamID, "title": props.Title})
	return id, nil
}

// GetVacancy returns the vacancy if the caller belongs to its owning team.
func (e *Engine) GetVacancy(ctx context.Context, caller string, vacancyID int64) (domain.Vacancy, error) {
	vacancy, _, err := e.authorizeVacancy(ctx, caller, vacancyID, 0)
	return vacancy, err
}

// GetVacancies lists the team's vacancies. Membership is the only
// requirement.
func (e *Engine) GetVacancies(ctx context.Context, caller string, teamID int64) ([]domain.Vacancy, error) {
	if _, err := e.GetTeam(ctx, caller, teamID); err != nil {
		return nil, err
	}
	vacancies, err := e.Vacancies.Select(ctx, func(v domain.Vacancy) bool {
		return v.OwnerTeamID == teamID
	})
	if err != nil {
		return nil, serverError("GetVacancies", err)
	}
	return vacancies, nil
}

// DeleteVacancy removes the vacancy and then decrements the owning team's
// counter. The vacancy lock and the team lock are never held together: the
// vacancy is deleted under its own lock, released, and only then is the team
// locked for the decrement.
func (e *Engine) DeleteVacancy(ctx context.Context, caller string, vacancyID int64) error {
	unlockVacancy := e.vacancyLocks.Acquire(vacancyID)
	defer unlockVacancy.Release()

	vacancy, _, err := e.authorizeVacancy(ctx, caller, vacancyID, domain.PermDeleteVacancy)
	if err != nil {
		return err
	}
	if err := e.Vacancies.Delete(ctx, vacancyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrResourceNotFound
		}
		return serverError("DeleteVacancy", err)
	}
	unlockVacancy.Release()

	unlockTeam := e.teamLocks.Acquire(vacancy.OwnerTeamID)
	defer unlockTeam.Release()
	team, err := e.Teams.Get(ctx, vacancy.OwnerTeamID)
	if err != nil {
		// Vacancy is gone but the counter stays high. Surface the failure:
		// the team now over-counts until reconciled.
		return serverError("DeleteVacancy", err)
	}
	if team.VacancyCount > 0 {
		team.VacancyCount--
	}
	if err := e.Teams.Update(ctx, vacancy.OwnerTeamID, team); err != nil {
		return serverError("DeleteVacancy", err)
	}
	e.Events.Append(ctx, "vacancy.deleted", "vacancy", fmt.Sprint(vacancyID), caller,
		events.EventPayload{"team_id": vacancy.OwnerTeamID})
	return nil
}

// ModifyVacancyProperties replaces the vacancy's properties. Identical
// properties are a no-op that performs no write.
func (e *Engine) ModifyVacancyProperties(ctx context.Context, caller string, vacancyID int64, props domain.VacancyProperties) error {
	if err := domain.ValidateVacancyProperties(props); err != nil {
		return err
	}
	if props.State == "" {
		props.State = domain.VacancyActive
	}
	unlockVacancy := e.vacancyLocks.Acquire(vacancyID)
	defer unlockVacancy.Release()

	vacancy, _, err := e.authorizeVacancy(ctx, caller, vacancyID, domain.PermModifyVacancy)
	if err != nil {
		return err
	}
	if vacancy.Properties.Equal(props) {
		return nil
	}
	vacancy.Properties = props
	if err := e.Vacancies.Update(ctx, vacancyID, vacancy); err != nil {
		return serverError("ModifyVacancyProperties", err)
	}
	e.Events.Append(ctx, "vacancy.updated", "vacancy", fmt.Sprint(vacancyID), caller, nil)
	return nil
}

// ModifyVacancyNote writes or overwrites the caller's own note on the
// vacancy. Notes are keyed by author; each member has at most one.
func (e *Engine) ModifyVacancyNote(ctx context.Context, caller string, vacancyID int64, text string) error {
	if len(text) > domain.VacancyNoteMaxLen {
		return fmt.Errorf("vacancy note exceeds %d characters", domain.VacancyNoteMaxLen)
	}
	unlockVacancy := e.vacancyLocks.Acquire(vacancyID)
	defer unlockVacancy.Release()

	vacancy, _, err := e.authorizeVacancy(ctx, caller, vacancyID, domain.PermCommentVacancy)
	if err != nil {
		return err
	}
	if vacancy.Notes == nil {
		vacancy.Notes = map[string]domain.VacancyNote{}
	}
	now := e.now()
	vacancy.Notes[caller] = domain.VacancyNote{Text: text, ChangedAt: now}
	vacancy.NotesChangedAt = now
	if err := e.Vacancies.Update(ctx, vacancyID, vacancy); err != nil {
		return serverError("ModifyVacancyNote", err)
	}
	return nil
}

// DeleteVacancyNote removes the note authored by owner. Deleting your own
// note needs comment capability; deleting someone else's needs note
// moderation.
func (e *Engine) DeleteVacancyNote(ctx context.Context, caller string, vacancyID int64, owner string) error {
	if owner == "" {
		return contractError("DeleteVacancyNote: empty note owner")
	}
	required := domain.PermManageVacancyNotes
	if caller == owner {
		required = domain.PermCommentVacancy
	}
	unlockVacancy := e.vacancyLocks.Acquire(vacancyID)
	defer unlockVacancy.Release()

	vacancy, _, err := e.authorizeVacancy(ctx, caller, vacancyID, required)
	if err != nil {
		return err
	}
	if _, ok := vacancy.Notes[owner]; !ok {
		return ErrUserNotFound
	}
	delete(vacancy.Notes, owner)
	if err := e.Vacancies.Update(ctx, vacancyID, vacancy); err != nil {
		return serverError("DeleteVacancyNote", err)
	}
	return nil
}

// authorizeVacancy loads the vacancy and checks the caller against the
// owning team: roster membership always, plus the required capability when
// one is given. The team read is unlocked; vacancy-level mutual exclusion is
// the caller's concern.
func (e *Engine) authorizeVacancy(ctx context.Context, caller string, vacancyID int64, required domain.Permission) (domain.Vacancy, domain.Team, error) {
	if caller == "" {
		return domain.Vacancy{}, domain.Team{}, contractError("vacancy op: empty caller")
	}
	vacancy, err := e.Vacancies.Get(ctx, vacancyID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Vacancy{}, domain.Team{}, ErrResourceNotFound
	} else if err != nil {
		return domain.Vacancy{}, domain.Team{}, serverError("GetVacancy", err)
	}
	team, err := e.GetTeam(ctx, caller, vacancy.OwnerTeamID)
	if err != nil {
		return domain.Vacancy{}, domain.Team{}, err
	}
	if required != 0 && !team.Permissions[caller].Has(required) {
		return domain.Vacancy{}, domain.Team{}, ErrNoPermission
	}
	return vacancy, team, nil
}
