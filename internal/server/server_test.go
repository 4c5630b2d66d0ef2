package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"hrflow/internal/config"
	"hrflow/internal/domain"
	"hrflow/internal/engine"
	"hrflow/internal/store"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	customers := store.NewMemory[string, domain.CustomerInfo]()
	teams := store.NewMemoryAutoInc(func(tm *domain.Team, id int64) { tm.ID = id })
	vacancies := store.NewMemoryAutoInc(func(v *domain.Vacancy, id int64) { v.ID = id })
	e := engine.New(customers, teams, vacancies, config.Default())

	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:             "test-secret",
			AllowLegacyUserHeader: true,
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asUser(username string) map[string]string {
	return map[string]string{"X-Username": username}
}

func register(t *testing.T, srv *testServer, username string) {
	t.Helper()
	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/customers", nil, asUser(username))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register %s status %d: %s", username, res.StatusCode, string(body))
	}
}

func TestHealthIsOpen(t *testing.T) {
	srv := newTestServer(t)
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv := newTestServer(t)
	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", res.StatusCode, string(body))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("code = %q, want unauthorized", envelope.Error.Code)
	}
}

func TestDevLoginAndJWTAuth(t *testing.T) {
	srv := newTestServer(t)
	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"username": "alice1",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login status %d: %s", res.StatusCode, string(body))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(body, &login); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	headers := map[string]string{"Authorization": "Bearer " + login.Token}

	res, body = doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/customers", nil, headers)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d: %s", res.StatusCode, string(body))
	}
	res, body = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, headers)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(body))
	}
	var me CustomerResponse
	if err := json.Unmarshal(body, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.Username != "alice1" || me.AccountState != "active" {
		t.Fatalf("unexpected me: %+v", me)
	}

	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status %d", res.StatusCode)
	}
}

func TestTeamLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "alice1")
	register(t, srv, "bobby1")

	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/teams", map[string]any{
		"name": "  Platform   Hiring ",
	}, asUser("alice1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create team status %d: %s", res.StatusCode, string(body))
	}
	var team TeamResponse
	if err := json.Unmarshal(body, &team); err != nil {
		t.Fatalf("unmarshal team: %v", err)
	}
	if team.Name != "Platform Hiring" {
		t.Fatalf("team name = %q, want collapsed whitespace", team.Name)
	}
	if len(team.Members) != 1 || team.Members[0].Role != "director" {
		t.Fatalf("unexpected roster: %+v", team.Members)
	}
	teamURL := srv.URL + "/v0/teams/" + jsonNumber(team.ID)

	// Outsiders get 404, not 403.
	res, body = doJSON(t, srv.Client(), http.MethodGet, teamURL, nil, asUser("bobby1"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("outsider get status %d: %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, srv.Client(), http.MethodPost, teamURL+"/members", map[string]any{
		"username": "bobby1",
	}, asUser("alice1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("invite status %d: %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, srv.Client(), http.MethodPut, teamURL+"/members/bobby1/role", map[string]any{
		"role": "manager",
	}, asUser("alice1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set role status %d: %s", res.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &team); err != nil {
		t.Fatalf("unmarshal team: %v", err)
	}
	for _, m := range team.Members {
		if m.Username == "bobby1" && m.Role != "manager" {
			t.Fatalf("bobby1 role = %q", m.Role)
		}
	}

	// A manager cannot rename without the team-properties capability.
	res, body = doJSON(t, srv.Client(), http.MethodPatch, teamURL, map[string]any{
		"name": "Bobby Land",
	}, asUser("bobby1"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("manager rename status %d: %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, srv.Client(), http.MethodPost, teamURL+"/leave", nil, asUser("alice1"))
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("leave status %d: %s", res.StatusCode, string(body))
	}
	// bobby1 inherits Director and can now rename.
	res, body = doJSON(t, srv.Client(), http.MethodPatch, teamURL, map[string]any{
		"name": "Bobby Land",
	}, asUser("bobby1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("promoted rename status %d: %s", res.StatusCode, string(body))
	}
}

func TestVacancyFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "alice1")
	register(t, srv, "bobby1")

	res, body := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/teams", map[string]any{
		"name": "Hiring",
	}, asUser("alice1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create team status %d: %s", res.StatusCode, string(body))
	}
	var team TeamResponse
	_ = json.Unmarshal(body, &team)
	teamURL := srv.URL + "/v0/teams/" + jsonNumber(team.ID)

	doJSON(t, srv.Client(), http.MethodPost, teamURL+"/members", map[string]any{"username": "bobby1"}, asUser("alice1"))
	doJSON(t, srv.Client(), http.MethodPut, teamURL+"/members/bobby1/role", map[string]any{"role": "commentator"}, asUser("alice1"))

	res, body = doJSON(t, srv.Client(), http.MethodPost, teamURL+"/vacancies", map[string]any{
		"title": "Backend Engineer",
		"tags":  []string{"go", "sqlite"},
	}, asUser("alice1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create vacancy status %d: %s", res.StatusCode, string(body))
	}
	var vacancy VacancyResponse
	if err := json.Unmarshal(body, &vacancy); err != nil {
		t.Fatalf("unmarshal vacancy: %v", err)
	}
	if vacancy.State != "active" {
		t.Fatalf("vacancy state = %q, want active", vacancy.State)
	}
	vacancyURL := srv.URL + "/v0/vacancies/" + jsonNumber(vacancy.ID)

	// Commentators can note but not edit.
	res, body = doJSON(t, srv.Client(), http.MethodPut, vacancyURL+"/notes/me", map[string]any{
		"text": "promising",
	}, asUser("bobby1"))
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("note status %d: %s", res.StatusCode, string(body))
	}
	res, body = doJSON(t, srv.Client(), http.MethodPatch, vacancyURL, map[string]any{
		"title": "Renamed",
	}, asUser("bobby1"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("commentator edit status %d: %s", res.StatusCode, string(body))
	}

	res, body = doJSON(t, srv.Client(), http.MethodGet, vacancyURL, nil, asUser("alice1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get vacancy status %d: %s", res.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, &vacancy); err != nil {
		t.Fatalf("unmarshal vacancy: %v", err)
	}
	if len(vacancy.Notes) != 1 || vacancy.Notes[0].Author != "bobby1" {
		t.Fatalf("notes = %+v", vacancy.Notes)
	}

	res, body = doJSON(t, srv.Client(), http.MethodDelete, vacancyURL, nil, asUser("alice1"))
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete vacancy status %d: %s", res.StatusCode, string(body))
	}
	res, body = doJSON(t, srv.Client(), http.MethodGet, teamURL, nil, asUser("alice1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get team status %d: %s", res.StatusCode, string(body))
	}
	_ = json.Unmarshal(body, &team)
	if team.VacancyCount != 0 {
		t.Fatalf("vacancy count after delete = %d", team.VacancyCount)
	}
}

func jsonNumber(id int64) string {
	data, _ := json.Marshal(id)
	return string(data)
}
