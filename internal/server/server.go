package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"actionboard/internal/board"
	"actionboard/internal/domain"
	"actionboard/internal/engine"
	"actionboard/internal/engine/auth"
	"actionboard/internal/intent"
	"actionboard/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"bad_request"`
	Message string         `json:"message" example:"title is required"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"field\":\"title\"}"`
}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the actionboard API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	huma.DefaultArrayNullable = false
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
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(logger))
	router.Use(newAuthMiddleware(basePath, cfg.Auth, logger))
	hcfg := huma.DefaultConfig("Actionboard API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	h := handlers{engine: cfg.Engine, logger: logger}
	registerDocs(router, basePath)
	registerHealth(group)
	registerReference(group, h)
	registerActions(group, h)
	registerMutations(group, h)
	registerViews(group, h)
	registerEvents(group, h)
	registerPartners(group, h)
	registerPeople(group, h)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
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
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"section": fe.Section, "required_role": fe.Required})
	}
	var field intent.FieldError
	if errors.As(err, &field) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": field.Field})
	}
	if errors.Is(err, intent.ErrUnknownIntent) {
		return newAPIError(http.StatusBadRequest, "unknown_intent", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, engine.ErrConflict) {
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "unknown") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
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

type handlers struct {
	engine engine.Engine
	logger *zap.Logger
}

// person resolves the request principal. ok is false for anonymous requests.
func (h handlers) person(ctx context.Context) (domain.Person, bool, error) {
	p, ok := principalFromContext(ctx)
	if !ok {
		return domain.Person{}, false, nil
	}
	person, err := h.engine.Repo.GetPerson(ctx, p.PersonID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Person{}, false, auth.UnknownPerson(p.PersonID)
	}
	if err != nil {
		return domain.Person{}, false, err
	}
	return person, true, nil
}

// visible returns the partner filter for the request, nil meaning unrestricted.
func (h handlers) visible(ctx context.Context) (map[string]bool, error) {
	person, ok, err := h.person(ctx)
	if err != nil || !ok {
		return nil, err
	}
	partners, err := h.engine.Repo.ListPartners(ctx, true)
	if err != nil {
		return nil, err
	}
	return auth.VisiblePartners(person, partners), nil
}

// canMutate reports ErrNotFound when m reads or writes an action under a
// partner the caller cannot see.
func (h handlers) canMutate(ctx context.Context, m intent.Mutation) error {
	visible, err := h.visible(ctx)
	if err != nil || visible == nil {
		return err
	}
	var partners []string
	existing := ""
	switch m := m.(type) {
	case intent.Create:
		partners = append(partners, m.Action.Partner)
	case intent.Update:
		existing = m.ID
		if m.Patch.Partner != nil {
			partners = append(partners, *m.Patch.Partner)
		}
	case intent.Delete:
		existing = m.ID
	case intent.Duplicate:
		existing = m.SourceID
	}
	if existing != "" {
		a, err := h.engine.Repo.GetAction(ctx, existing)
		if err != nil {
			return err
		}
		partners = append(partners, a.Partner)
	}
	for _, p := range partners {
		if !visible[p] {
			return repo.ErrNotFound
		}
	}
	return nil
}

func (h handlers) requireAdmin(ctx context.Context) error {
	person, ok, err := h.person(ctx)
	if err != nil || !ok {
		return err
	}
	return auth.RequireAdmin(person)
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
			if oas.Components != nil && oas.Components.Schemas != nil {
				oas.Components.Schemas.Schema(reflect.TypeOf(apiError{}), true, "")
			}
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
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
	healthPath := path.Join("/", basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
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
    <title>Actionboard API Docs</title>
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
      Authenticate with Authorization: Bearer &lt;token&gt;; the token subject is your person id.
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

func registerReference(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "get-reference",
		Method:      http.MethodGet,
		Path:        "/reference",
		Summary:     "Lookup tables, partners and people",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Reference `json:"body"`
	}, error) {
		ref, err := h.engine.Repo.LoadReference(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		visible, err := h.visible(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if visible != nil {
			partners := ref.Partners[:0:0]
			for _, p := range ref.Partners {
				if visible[p.Slug] {
					partners = append(partners, p)
				}
			}
			ref.Partners = partners
		}
		return &struct {
			Body domain.Reference `json:"body"`
		}{Body: ref}, nil
	})
}

func parseFilter(in ActionFilterRequest, loc *time.Location) (repo.ActionFilter, error) {
	f := repo.ActionFilter{
		Responsible: in.Responsible,
		Partner:     in.Partner,
		Category:    in.Category,
		State:       in.State,
		Archived:    in.Archived,
	}
	if in.From != "" {
		t, err := intent.ParseDate(in.From, loc)
		if err != nil {
			return f, newAPIError(http.StatusBadRequest, "bad_request", "invalid from", map[string]any{"from": in.From})
		}
		f.From = &t
	}
	if in.To != "" {
		t, err := intent.ParseDate(in.To, loc)
		if err != nil {
			return f, newAPIError(http.StatusBadRequest, "bad_request", "invalid to", map[string]any{"to": in.To})
		}
		f.To = &t
	}
	return f, nil
}

func registerActions(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-actions",
		Method:      http.MethodGet,
		Path:        "/actions",
		Summary:     "Server snapshot of actions",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		From        string `query:"from"`
		To          string `query:"to"`
		Responsible string `query:"responsible"`
		Partner     string `query:"partner"`
		Category    string `query:"category"`
		State       string `query:"state"`
		Archived    string `query:"archived" enum:"true,false"`
	}) (*struct {
		Body ActionList `json:"body"`
	}, error) {
		req := ActionFilterRequest{
			From: input.From, To: input.To, Responsible: input.Responsible,
			Partner: input.Partner, Category: input.Category, State: input.State,
		}
		if input.Archived != "" {
			b, err := strconv.ParseBool(input.Archived)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid archived", nil)
			}
			req.Archived = &b
		}
		filter, err := parseFilter(req, h.engine.Config.Location())
		if err != nil {
			return nil, handleError(err)
		}
		items, err := h.engine.Repo.ListActions(ctx, filter)
		if err != nil {
			return nil, handleError(err)
		}
		visible, err := h.visible(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if visible != nil {
			items = auth.FilterPartners(items, visible)
		}
		return &struct {
			Body ActionList `json:"body"`
		}{Body: ActionList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-action",
		Method:      http.MethodGet,
		Path:        "/actions/{id}",
		Summary:     "Get action",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Action `json:"body"`
	}, error) {
		a, err := h.engine.Repo.GetAction(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		visible, err := h.visible(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if visible != nil && !visible[a.Partner] {
			return nil, handleError(repo.ErrNotFound)
		}
		return &struct {
			Body domain.Action `json:"body"`
		}{Body: a}, nil
	})
}

func registerMutations(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "submit-mutation",
		Method:      http.MethodPost,
		Path:        "/mutations",
		Summary:     "Apply an intent-tagged mutation",
		Description: "The body is a flat key/value form. The intent field selects create, update, delete or duplicate.",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body map[string]string `json:"body"`
	}) (*struct {
		Body MutationResponse `json:"body"`
	}, error) {
		if _, _, err := h.person(ctx); err != nil {
			return nil, handleError(err)
		}
		m, err := intent.ParseInLocation(input.Body, h.engine.Config.Location())
		if err != nil {
			return nil, handleError(err)
		}
		if err := h.canMutate(ctx, m); err != nil {
			return nil, handleError(err)
		}
		a, err := h.engine.Apply(ctx, m, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MutationResponse `json:"body"`
		}{Body: MutationResponse{Intent: string(m.Intent()), Key: intent.Key(m), Action: a}}, nil
	})
}

func registerViews(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "build-view",
		Method:      http.MethodPost,
		Path:        "/views/{view}",
		Summary:     "Reconcile the snapshot with pending state and build a view",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		View string      `path:"view" enum:"dashboard,month,week,day,kanban,categories,partners,feed"`
		Body ViewRequest `json:"body"`
	}) (*struct {
		Body engine.View `json:"body"`
	}, error) {
		kind, err := engine.ParseViewKind(input.View)
		if err != nil {
			return nil, handleError(err)
		}
		loc := h.engine.Config.Location()
		req := engine.ViewRequest{View: kind, Deletions: input.Body.Deletions, Desc: input.Body.Desc}
		if input.Body.Filter != nil {
			if req.Filter, err = parseFilter(*input.Body.Filter, loc); err != nil {
				return nil, handleError(err)
			}
		}
		for i, form := range input.Body.Pending {
			m, err := intent.ParseInLocation(form, loc)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"pending_index": i})
			}
			req.Pending = append(req.Pending, m)
		}
		if input.Body.Now != nil {
			req.Now = *input.Body.Now
		}
		if input.Body.Anchor != "" {
			if req.Anchor, err = intent.ParseDate(input.Body.Anchor, loc); err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid anchor", map[string]any{"anchor": input.Body.Anchor})
			}
		}
		if req.Sort, err = board.ParseSortKey(input.Body.Sort); err != nil {
			return nil, handleError(err)
		}
		if p, ok := principalFromContext(ctx); ok {
			req.PersonID = p.PersonID
		}
		v, err := h.engine.View(ctx, req)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.View `json:"body"`
		}{Body: v}, nil
	})
}

func registerEvents(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"action,partner,person,reference"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if err := h.requireAdmin(ctx); err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := h.engine.Repo.LatestEvents(ctx, limit+1, repo.EventFilter{
			Type: input.Type, EntityKind: input.EntityKind, EntityID: input.EntityID, Cursor: cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerPartners(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "upsert-partner",
		Method:      http.MethodPut,
		Path:        "/partners/{slug}",
		Summary:     "Create or replace a partner",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Slug string         `path:"slug"`
		Body PartnerRequest `json:"body"`
	}) (*struct {
		Body domain.Partner `json:"body"`
	}, error) {
		if err := h.requireAdmin(ctx); err != nil {
			return nil, handleError(err)
		}
		p, err := h.engine.UpsertPartner(ctx, domain.Partner{
			Slug:       input.Slug,
			Title:      input.Body.Title,
			Short:      input.Body.Short,
			Background: input.Body.Background,
			Foreground: input.Body.Foreground,
			Users:      input.Body.Users,
			Archived:   input.Body.Archived,
			SortOrder:  input.Body.SortOrder,
		}, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Partner `json:"body"`
		}{Body: p}, nil
	})
}

func registerPeople(api huma.API, h handlers) {
	huma.Register(api, huma.Operation{
		OperationID: "upsert-person",
		Method:      http.MethodPut,
		Path:        "/people/{id}",
		Summary:     "Create or replace a person",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ID   string        `path:"id"`
		Body PersonRequest `json:"body"`
	}) (*struct {
		Body domain.Person `json:"body"`
	}, error) {
		if err := h.requireAdmin(ctx); err != nil {
			return nil, handleError(err)
		}
		p, err := h.engine.UpsertPerson(ctx, domain.Person{
			ID:       input.ID,
			Name:     input.Body.Name,
			Short:    input.Body.Short,
			Initials: input.Body.Initials,
			Image:    input.Body.Image,
			Admin:    input.Body.Admin,
			Role:     input.Body.Role,
		}, actorID(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Person `json:"body"`
		}{Body: p}, nil
	})
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
