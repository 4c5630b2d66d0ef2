package domain

import "time"

// AccountState tracks the customer account lifecycle. An account marked for
// deletion is invisible to team operations: it cannot create teams and
// cannot be invited.
type AccountState string

const (
	AccountActive     AccountState = "active"
	AccountOnDeletion AccountState = "on_deletion"
)

// CustomerInfo is the per-customer workplace record. JoinedTeamNames is a
// denormalized cache of team id -> team name, kept in sync with team rosters
// best-effort by the engine.
type CustomerInfo struct {
	Username        string           `json:"username"`
	AccountState    AccountState     `json:"account_state" enum:"active,on_deletion"`
	JoinedTeamNames map[int64]string `json:"joined_team_names"`
}

// JoinedCount returns how many teams the customer currently belongs to.
func (c CustomerInfo) JoinedCount() int { return len(c.JoinedTeamNames) }

type TeamProperties struct {
	Name string `json:"name"`
}

// Team owns its roster (username -> Permission) and the vacancy counter.
// Membership is defined by key presence in Permissions; a persisted team
// always has at least one member.
type Team struct {
	ID           int64                 `json:"id"`
	Properties   TeamProperties        `json:"properties"`
	Permissions  map[string]Permission `json:"permissions"`
	VacancyCount int                   `json:"vacancy_count"`
}

func (t Team) HasMember(username string) bool {
	_, ok := t.Permissions[username]
	return ok
}

type VacancyState string

const (
	VacancyActive    VacancyState = "active"
	VacancyClosed    VacancyState = "closed"
	VacancyCancelled VacancyState = "cancelled"
)

type VacancyProperties struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	State       VacancyState `json:"state" enum:"active,closed,cancelled"`
	Tags        []string     `json:"tags,omitempty"`
}

// Equal reports whether two property sets are identical. The engine uses it
// to skip persisting unchanged updates.
func (p VacancyProperties) Equal(other VacancyProperties) bool {
	if p.Title != other.Title || p.Description != other.Description || p.State != other.State {
		return false
	}
	if len(p.Tags) != len(other.Tags) {
		return false
	}
	for i := range p.Tags {
		if p.Tags[i] != other.Tags[i] {
			return false
		}
	}
	return true
}

// VacancyNote is a member's note on a vacancy, keyed by the authoring
// username.
type VacancyNote struct {
	Text      string    `json:"text"`
	ChangedAt time.Time `json:"changed_at" format:"date-time"`
}

type Vacancy struct {
	ID             int64                  `json:"id"`
	OwnerTeamID    int64                  `json:"owner_team_id"`
	Properties     VacancyProperties      `json:"properties"`
	Notes          map[string]VacancyNote `json:"notes,omitempty"`
	CreatedAt      time.Time              `json:"created_at" format:"date-time"`
	NotesChangedAt time.Time              `json:"notes_changed_at,omitempty" format:"date-time"`
}
