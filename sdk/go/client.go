package hrflowsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal hrflow HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	// Username is sent as X-Username when no token is set. Only works
	// against servers started with the legacy header enabled.
	Username   string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Customer represents an account and its joined-team summary.
type Customer struct {
	Username     string       `json:"username"`
	AccountState string       `json:"account_state"`
	JoinedTeams  []JoinedTeam `json:"joined_teams"`
}

type JoinedTeam struct {
	TeamID int64  `json:"team_id"`
	Name   string `json:"name"`
}

// Team represents a team and its roster.
type Team struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Members      []TeamMember `json:"members"`
	VacancyCount int          `json:"vacancy_count"`
}

type TeamMember struct {
	Username    string `json:"username"`
	Role        string `json:"role"`
	Permissions uint32 `json:"permissions"`
}

// VacancyProperties is the caller-supplied portion of a vacancy.
type VacancyProperties struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	State       string   `json:"state,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Vacancy represents a job opening with its per-member notes.
type Vacancy struct {
	ID             int64         `json:"id"`
	OwnerTeamID    int64         `json:"owner_team_id"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	State          string        `json:"state"`
	Tags           []string      `json:"tags"`
	Notes          []VacancyNote `json:"notes"`
	CreatedAt      time.Time     `json:"created_at"`
	NotesChangedAt *time.Time    `json:"notes_changed_at,omitempty"`
}

type VacancyNote struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	ChangedAt time.Time `json:"changed_at"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	Actor      string         `json:"actor"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login mints a development token for username and stores it on the client.
func (c *Client) Login(ctx context.Context, username string) error {
	var resp struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "v0/auth/dev/login", map[string]any{"username": username}, &resp)
	if err != nil {
		return err
	}
	c.BearerToken = resp.Token
	return nil
}

// Register creates the account for the authenticated principal.
func (c *Client) Register(ctx context.Context) (Customer, error) {
	var resp Customer
	err := c.do(ctx, http.MethodPost, "v0/customers", nil, &resp)
	return resp, err
}

// Me returns the authenticated customer's record.
func (c *Client) Me(ctx context.Context) (Customer, error) {
	var resp Customer
	err := c.do(ctx, http.MethodGet, "v0/me", nil, &resp)
	return resp, err
}

// DeleteMe marks the authenticated account for deletion.
func (c *Client) DeleteMe(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "v0/me", nil, nil)
}

// CreateTeam creates a team with the caller as Director.
func (c *Client) CreateTeam(ctx context.Context, name string) (Team, error) {
	var resp Team
	err := c.do(ctx, http.MethodPost, "v0/teams", map[string]any{"name": name}, &resp)
	return resp, err
}

// GetTeam fetches a team the caller belongs to.
func (c *Client) GetTeam(ctx context.Context, teamID int64) (Team, error) {
	var resp Team
	err := c.do(ctx, http.MethodGet, teamPath(teamID, ""), nil, &resp)
	return resp, err
}

// RenameTeam replaces the team name.
func (c *Client) RenameTeam(ctx context.Context, teamID int64, name string) (Team, error) {
	var resp Team
	err := c.do(ctx, http.MethodPatch, teamPath(teamID, ""), map[string]any{"name": name}, &resp)
	return resp, err
}

// Invite adds username to the team with the default role.
func (c *Client) Invite(ctx context.Context, teamID int64, username string) error {
	return c.do(ctx, http.MethodPost, teamPath(teamID, "members"), map[string]any{"username": username}, nil)
}

// Kick removes username from the team.
func (c *Client) Kick(ctx context.Context, teamID int64, username string) error {
	return c.do(ctx, http.MethodDelete, teamPath(teamID, "members/"+url.PathEscape(username)), nil, nil)
}

// Leave removes the caller from the team. A sole member deletes the team.
func (c *Client) Leave(ctx context.Context, teamID int64) error {
	return c.do(ctx, http.MethodPost, teamPath(teamID, "leave"), nil, nil)
}

// SetRole assigns a role to a member.
func (c *Client) SetRole(ctx context.Context, teamID int64, username, role string) (Team, error) {
	var resp Team
	endpoint := teamPath(teamID, "members/"+url.PathEscape(username)+"/role")
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"role": role}, &resp)
	return resp, err
}

// CreateVacancy opens a vacancy for the team.
func (c *Client) CreateVacancy(ctx context.Context, teamID int64, props VacancyProperties) (Vacancy, error) {
	var resp Vacancy
	err := c.do(ctx, http.MethodPost, teamPath(teamID, "vacancies"), props, &resp)
	return resp, err
}

// Vacancies lists the team's vacancies.
func (c *Client) Vacancies(ctx context.Context, teamID int64) ([]Vacancy, error) {
	var resp []Vacancy
	err := c.do(ctx, http.MethodGet, teamPath(teamID, "vacancies"), nil, &resp)
	return resp, err
}

// GetVacancy fetches one vacancy.
func (c *Client) GetVacancy(ctx context.Context, id int64) (Vacancy, error) {
	var resp Vacancy
	err := c.do(ctx, http.MethodGet, vacancyPath(id, ""), nil, &resp)
	return resp, err
}

// UpdateVacancy replaces the vacancy's properties.
func (c *Client) UpdateVacancy(ctx context.Context, id int64, props VacancyProperties) (Vacancy, error) {
	var resp Vacancy
	err := c.do(ctx, http.MethodPatch, vacancyPath(id, ""), props, &resp)
	return resp, err
}

// DeleteVacancy removes a vacancy and frees its quota slot.
func (c *Client) DeleteVacancy(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, vacancyPath(id, ""), nil, nil)
}

// SetNote writes or overwrites the caller's note on a vacancy.
func (c *Client) SetNote(ctx context.Context, id int64, text string) error {
	return c.do(ctx, http.MethodPut, vacancyPath(id, "notes/me"), map[string]any{"text": text}, nil)
}

// DeleteNote removes owner's note from a vacancy.
func (c *Client) DeleteNote(ctx context.Context, id int64, owner string) error {
	return c.do(ctx, http.MethodDelete, vacancyPath(id, "notes/"+url.PathEscape(owner)), nil, nil)
}

// Events returns recent audit events, optionally filtered by type.
func (c *Client) Events(ctx context.Context, limit int, evtType string) ([]Event, error) {
	endpoint := "v0/events"
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if evtType != "" {
		q.Set("type", evtType)
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.Username != "":
		req.Header.Set("X-Username", c.Username)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func teamPath(teamID int64, p string) string {
	base := fmt.Sprintf("v0/teams/%d", teamID)
	if p == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(p, "/")
}

func vacancyPath(id int64, p string) string {
	base := fmt.Sprintf("v0/vacancies/%d", id)
	if p == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(p, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
