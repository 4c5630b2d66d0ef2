package server

import (
	"sort"
	"time"

	"hrflow/internal/domain"
)

type DevLoginRequest struct {
	Username string `json:"username" example:"alice1"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	Username string `json:"username"`
	Source   string `json:"source"`
}

type CustomerResponse struct {
	Username     string               `json:"username"`
	AccountState string               `json:"account_state"`
	JoinedTeams  []JoinedTeamResponse `json:"joined_teams"`
}

type JoinedTeamResponse struct {
	TeamID int64  `json:"team_id"`
	Name   string `json:"name"`
}

type CreateTeamRequest struct {
	Name string `json:"name" example:"Platform Hiring"`
}

type TeamResponse struct {
	ID           int64                `json:"id"`
	Name         string               `json:"name"`
	Members      []TeamMemberResponse `json:"members"`
	VacancyCount int                  `json:"vacancy_count"`
}

type TeamMemberResponse struct {
	Username    string `json:"username"`
	Role        string `json:"role"`
	Permissions uint32 `json:"permissions"`
}

type InviteRequest struct {
	Username string `json:"username" example:"bobby1"`
}

type SetRoleRequest struct {
	Role string `json:"role" example:"manager" enum:"observer,commentator,editor,manager,director"`
}

type VacancyPropertiesRequest struct {
	Title       string   `json:"title" example:"Backend Engineer"`
	Description string   `json:"description,omitempty"`
	State       string   `json:"state,omitempty" enum:"active,closed,cancelled"`
	Tags        []string `json:"tags,omitempty"`
}

type VacancyResponse struct {
	ID             int64                 `json:"id"`
	OwnerTeamID    int64                 `json:"owner_team_id"`
	Title          string                `json:"title"`
	Description    string                `json:"description,omitempty"`
	State          string                `json:"state"`
	Tags           []string              `json:"tags"`
	Notes          []VacancyNoteResponse `json:"notes"`
	CreatedAt      time.Time             `json:"created_at"`
	NotesChangedAt *time.Time            `json:"notes_changed_at,omitempty"`
}

type VacancyNoteResponse struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	ChangedAt time.Time `json:"changed_at"`
}

type NoteRequest struct {
	Text string `json:"text" example:"strong pipeline, keep open"`
}

func customerResponse(info domain.CustomerInfo) CustomerResponse {
	joined := make([]JoinedTeamResponse, 0, len(info.JoinedTeamNames))
	for id, name := range info.JoinedTeamNames {
		joined = append(joined, JoinedTeamResponse{TeamID: id, Name: name})
	}
	sort.Slice(joined, func(i, j int) bool { return joined[i].TeamID < joined[j].TeamID })
	return CustomerResponse{
		Username:     info.Username,
		AccountState: string(info.AccountState),
		JoinedTeams:  joined,
	}
}

func teamResponse(team domain.Team) TeamResponse {
	members := make([]TeamMemberResponse, 0, len(team.Permissions))
	for username, perms := range team.Permissions {
		members = append(members, TeamMemberResponse{
			Username:    username,
			Role:        domain.RoleName(perms),
			Permissions: uint32(perms),
		})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Username < members[j].Username })
	return TeamResponse{
		ID:           team.ID,
		Name:         team.Properties.Name,
		Members:      members,
		VacancyCount: team.VacancyCount,
	}
}

func vacancyProperties(req VacancyPropertiesRequest) domain.VacancyProperties {
	return domain.VacancyProperties{
		Title:       req.Title,
		Description: req.Description,
		State:       domain.VacancyState(req.State),
		Tags:        req.Tags,
	}
}

func vacancyResponse(v domain.Vacancy) VacancyResponse {
	notes := make([]VacancyNoteResponse, 0, len(v.Notes))
	for author, note := range v.Notes {
		notes = append(notes, VacancyNoteResponse{Author: author, Text: note.Text, ChangedAt: note.ChangedAt})
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].Author < notes[j].Author })
	resp := VacancyResponse{
		ID:          v.ID,
		OwnerTeamID: v.OwnerTeamID,
		Title:       v.Properties.Title,
		Description: v.Properties.Description,
		State:       string(v.Properties.State),
		Tags:        nonNilSlice(v.Properties.Tags),
		Notes:       notes,
		CreatedAt:   v.CreatedAt,
	}
	if !v.NotesChangedAt.IsZero() {
		t := v.NotesChangedAt
		resp.NotesChangedAt = &t
	}
	return resp
}

func mapVacancies(items []domain.Vacancy) []VacancyResponse {
	out := make([]VacancyResponse, 0, len(items))
	for _, v := range items {
		out = append(out, vacancyResponse(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
