// Package server exposes the workplace engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"hrflow/internal/domain"
	"hrflow/internal/engine"
	"hrflow/internal/events"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	Events   *events.Writer
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"no_permission"`
	Message string         `json:"message" example:"no permission"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the hrflow API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("server: engine required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("hrflow API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerDevAuth(group, cfg.Auth)
	registerCustomers(group, cfg.Engine)
	registerTeams(group, cfg.Engine)
	registerVacancies(group, cfg.Engine)
	registerEvents(group, cfg.Events)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, engine.ErrResourceNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, engine.ErrUserNotFound):
		return newAPIError(http.StatusNotFound, "user_not_found", err.Error(), nil)
	case errors.Is(err, engine.ErrNoPermission):
		return newAPIError(http.StatusForbidden, "no_permission", err.Error(), nil)
	case errors.Is(err, engine.ErrUserAlreadyJoined):
		return newAPIError(http.StatusConflict, "already_joined", err.Error(), nil)
	case errors.Is(err, engine.ErrUsernameTaken):
		return newAPIError(http.StatusConflict, "username_taken", err.Error(), nil)
	case errors.Is(err, engine.ErrJoinLimitExceeded),
		errors.Is(err, engine.ErrTeamSizeLimitExceeded),
		errors.Is(err, engine.ErrVacancyCountLimitExceeded):
		return newAPIError(http.StatusUnprocessableEntity, "limit_exceeded", err.Error(), nil)
	}
	var se engine.ServerError
	if errors.As(err, &se) {
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
	var ce engine.ContractError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
	// Remaining engine errors are property validation failures.
	return newAPIError(http.StatusUnprocessableEntity, "validation_failed", err.Error(), nil)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	open := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "auth/dev/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>hrflow API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		username := domain.FormatUsername(input.Body.Username)
		if !domain.UsernameIsValid(username) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "username must be 6-20 lowercase letters or digits", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, username)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func registerCustomers(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-customer",
		Method:        http.MethodPost,
		Path:          "/customers",
		Summary:       "Register the authenticated user as a workplace customer",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body CustomerResponse `json:"body"`
	}, error) {
		username, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if !domain.UsernameIsValid(username) {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "username must be 6-20 lowercase letters or digits", nil)
		}
		if err := e.RegisterCustomer(ctx, username); err != nil {
			return nil, handleError(err)
		}
		info, err := e.GetCustomerInfo(ctx, username)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CustomerResponse `json:"body"`
		}{Body: customerResponse(info)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current customer record",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body CustomerResponse `json:"body"`
	}, error) {
		username, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		info, err := e.GetCustomerInfo(ctx, username)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CustomerResponse `json:"body"`
		}{Body: customerResponse(info)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-me",
		Method:        http.MethodDelete,
		Path:          "/me",
		Summary:       "Mark the current account for deletion",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		username, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.MarkForDeletion(ctx, username); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerTeams(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-team",
		Method:        http.MethodPost,
		Path:          "/teams",
		Summary:       "Create team",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateTeamRequest `json:"body"`
	}) (*struct {
		Body TeamResponse `json:"body"`
	}, error) {
		username, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		props := domain.TeamProperties{Name: domain.FormatTeamName(input.Body.Name)}
		id, err := e.CreateTeam(ctx, username, props)
		if err != nil {
			return nil, handleError(err)
		}
		team, err := e.GetTeam(ctx, username, id)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TeamResponse `json:"body"`
		}{Body: teamResponse(team)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-team",
		Method:      http.MethodGet,
		Path:        "/teams/{team_id}",
		Summary:     "Get team",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TeamID int64 `path:"team_id"`
	}) (*struct {
		Body TeamResponse `json:"body"`
	}, error) {
		username, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		team, err := e.GetTeam(ctx, username, input.TeamID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TeamResponse `json:"body"`
		}{Body: teamResponse(team)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-team",
		Method:      http.MethodPatch,
		Path:        "/teams/{team_id}",
		Summary:     "Update team properties",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		TeamID int64             `path:"team_id"`
		Body   CreateTeamRequest `json:"body"`
	}) (*struct {
		Body TeamResponse `json:"body"`
	}, error) {
		username, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		props := domain.TeamProperties{Name: domain.FormatTeamName(input.Body.Name)}
		if err := e.ModifyTeamProperties(ctx, username, input.TeamID, props); err != nil {
			return nil, handleError(err)
		}
		team, err := e.GetTeam(ctx, username, input.TeamID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TeamResponse `json:"body"`
		}{Body: teamResponse(team)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "invite-member",
		Method:        http.MethodPost,
		Path:          "/teams/{team_id}/members",
		Summary:       "Invite a customer to the team",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		TeamID int64         `path:"team_id"`
		Body   InviteRequest `json:"body"`
	}) (*struct{}, error) {
		username, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		subject := domain.FormatUsername(input.Body.Username)
		if err := e.Invite(ctx, username, input.TeamID, subject); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "kick-member",
		Method:        http.MethodDelete,
		Path:          "/teams/{team_id}/members/{username}",
		Summary:       "Remove a member from the team",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TeamID   int64  `path:"team_id"`
		Username string `path:"username"`
	}) (*struct{}, error) {
		caller, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		subject := domain.FormatUsername(input.Username)
		if subject == caller {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "use leave to remove yourself", nil)
		}
		if err := e.Kick(ctx, caller, input.TeamID, subject); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "leave-team",
		Method:        http.MethodPost,
		Path:          "/teams/{team_id}/leave",
		Summary:       "Leave the team",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TeamID int64 `path:"team_id"`
	}) (*struct{}, error) {
		username, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.Leave(ctx, username, input.TeamID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-member-role",
		Method:      http.MethodPut,
		Path:        "/teams/{team_id}/members/{username}/role",
		Summary:     "Set a member's role",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		TeamID   int64          `path:"team_id"`
		Username string         `path:"username"`
		Body     SetRoleRequest `json:"body"`
	}) (*struct {
		Body TeamResponse `json:"body"`
	}, error) {
		caller, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		role, err := domain.ParseRole(input.Body.Role)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		subject := domain.FormatUsername(input.Username)
		if err := e.ModifyRole(ctx, caller, input.TeamID, subject, role); err != nil {
			return nil, handleError(err)
		}
		team, err := e.GetTeam(ctx, caller, input.TeamID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TeamResponse `json:"body"`
		}{Body: teamResponse(team)}, nil
	})
}

func registerVacancies(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-vacancy",
		Method:        http.MethodPost,
		Path:          "/teams/{team_id}/vacancies",
		Summary:       "Open a vacancy",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		TeamID int64                    `path:"team_id"`
		Body   VacancyPropertiesRequest `json:"body"`
	}) (*struct {
		Body VacancyResponse `json:"body"`
	}, error) {
		username, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		id, err := e.CreateVacancy(ctx, username, input.TeamID, vacancyProperties(input.Body))
		if err != nil {
			return nil, handleError(err)
		}
		v, err := e.GetVacancy(ctx, username, id)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VacancyResponse `json:"body"`
		}{Body: vacancyResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-vacancies",
		Method:      http.MethodGet,
		Path:        "/teams/{team_id}/vacancies",
		Summary:     "List the team's vacancies",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TeamID int64 `path:"team_id"`
	}) (*struct {
		Body []VacancyResponse `json:"body"`
	}, error) {
		username, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.GetVacancies(ctx, username, input.TeamID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []VacancyResponse `json:"body"`
		}{Body: mapVacancies(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-vacancy",
		Method:      http.MethodGet,
		Path:        "/vacancies/{id}",
		Summary:     "Get vacancy",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body VacancyResponse `json:"body"`
	}, error) {
		username, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, err := e.GetVacancy(ctx, username, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VacancyResponse `json:"body"`
		}{Body: vacancyResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-vacancy",
		Method:      http.MethodPatch,
		Path:        "/vacancies/{id}",
		Summary:     "Update vacancy properties",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64                    `path:"id"`
		Body VacancyPropertiesRequest `json:"body"`
	}) (*struct {
		Body VacancyResponse `json:"body"`
	}, error) {
		username, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.ModifyVacancyProperties(ctx, username, input.ID, vacancyProperties(input.Body)); err != nil {
			return nil, handleError(err)
		}
		v, err := e.GetVacancy(ctx, username, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body VacancyResponse `json:"body"`
		}{Body: vacancyResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-vacancy",
		Method:        http.MethodDelete,
		Path:          "/vacancies/{id}",
		Summary:       "Delete vacancy",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct{}, error) {
		username, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteVacancy(ctx, username, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "put-vacancy-note",
		Method:        http.MethodPut,
		Path:          "/vacancies/{id}/notes/me",
		Summary:       "Write or overwrite your note on a vacancy",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64       `path:"id"`
		Body NoteRequest `json:"body"`
	}) (*struct{}, error) {
		username, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.ModifyVacancyNote(ctx, username, input.ID, input.Body.Text); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-vacancy-note",
		Method:        http.MethodDelete,
		Path:          "/vacancies/{id}/notes/{owner}",
		Summary:       "Delete a note; your own needs comment rights, others' need moderation rights",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID    int64  `path:"id"`
		Owner string `path:"owner"`
	}) (*struct{}, error) {
		username, authErr := usernameFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		owner := domain.FormatUsername(input.Owner)
		if err := e.DeleteVacancyNote(ctx, username, input.ID, owner); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEvents(api huma.API, w *events.Writer) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Recent audit events",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Limit int    `query:"limit" default:"20"`
		Type  string `query:"type"`
	}) (*struct {
		Body []events.Event `json:"body"`
	}, error) {
		if _, authErr := usernameFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := w.Latest(ctx, input.Limit, input.Type)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		if items == nil {
			items = []events.Event{}
		}
		return &struct {
			Body []events.Event `json:"body"`
		}{Body: items}, nil
	})
}
