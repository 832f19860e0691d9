package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/actionmesh/gateway/internal/actions"
	"github.com/actionmesh/gateway/internal/actions/local"
	"github.com/actionmesh/gateway/internal/config"
	"github.com/actionmesh/gateway/internal/domain"
	"github.com/actionmesh/gateway/internal/route"
)

// capturingRecorder collects the finalize-stage records.
type capturingRecorder struct {
	mu   sync.Mutex
	recs []domain.RequestRecord
}

func (c *capturingRecorder) Record(_ context.Context, rec domain.RequestRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, rec)
	return nil
}

func (c *capturingRecorder) last(t *testing.T) domain.RequestRecord {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.recs) == 0 {
		t.Fatal("no request record emitted")
	}
	return c.recs[len(c.recs)-1]
}

func buildTable(t *testing.T, cfgs ...config.RouteConfig) *route.Table {
	t.Helper()
	table, err := route.Build(cfgs)
	if err != nil {
		t.Fatalf("route.Build() error = %v", err)
	}
	return table
}

func newHandler(t *testing.T, rt *local.Runtime, cfgs ...config.RouteConfig) (*Handler, *capturingRecorder) {
	t.Helper()
	rec := &capturingRecorder{}
	h := New(Config{
		Table:    buildTable(t, cfgs...),
		Runtime:  rt,
		Recorder: rec,
	})
	return h, rec
}

func TestDispatch_PlainAction(t *testing.T) {
	// Scenario: path /users/1 under a catch-all route, no aliases, no
	// whitelist, GET. The action name is the normalized path and the
	// params are the query string alone.
	rt := local.New()
	var gotParams map[string]any
	rt.Register(actions.ActionRef{Name: "users.1"}, func(_ context.Context, _ *domain.RequestContext, params map[string]any) (any, error) {
		gotParams = params
		return map[string]any{"id": 1}, nil
	})

	h, recs := newHandler(t, rt, config.RouteConfig{Path: "/"})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/1?full=true", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if gotParams["full"] != "true" {
		t.Errorf("params = %v, want query parameters only", gotParams)
	}
	if rec := recs.last(t); rec.Action != "users.1" || rec.Status != http.StatusOK {
		t.Errorf("record = %+v, want action users.1 with status 200", rec)
	}
}

func TestDispatch_AliasWithJSONBody(t *testing.T) {
	// Scenario: POST /admin/users with alias "POST users" and a JSON
	// body resolves to users.create with the body as params.
	rt := local.New()
	var gotParams map[string]any
	rt.Register(actions.ActionRef{Name: "users.create"}, func(_ context.Context, _ *domain.RequestContext, params map[string]any) (any, error) {
		gotParams = params
		return map[string]any{"created": true}, nil
	})

	h, _ := newHandler(t, rt, config.RouteConfig{
		Path:        "/admin",
		Aliases:     map[string]string{"POST users": "users.create"},
		BodyParsers: []string{"json"},
	})

	req := httptest.NewRequest(http.MethodPost, "/admin/users", strings.NewReader(`{"name":"a"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if gotParams["name"] != "a" {
		t.Errorf("params = %v, want body fields", gotParams)
	}
}

func TestDispatch_WhitelistDenied(t *testing.T) {
	// Scenario: whitelist ["posts.*"] and action comments.list is
	// disallowed with a 404 naming the action.
	rt := local.New()
	rt.Register(actions.ActionRef{Name: "comments.list"}, func(_ context.Context, _ *domain.RequestContext, _ map[string]any) (any, error) {
		t.Fatal("non-whitelisted action must not be invoked")
		return nil, nil
	})

	h, recs := newHandler(t, rt, config.RouteConfig{Path: "/api", Whitelist: []string{"posts.*"}})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/comments/list", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	data, _ := body["data"].(map[string]any)
	if data["action"] != "comments.list" {
		t.Errorf("error data = %v, want the denied action name", body["data"])
	}
	if rec := recs.last(t); rec.ErrorName != domain.ErrNameServiceNotFound {
		t.Errorf("record error = %q, want %q", rec.ErrorName, domain.ErrNameServiceNotFound)
	}
}

func TestDispatch_StructuredResult(t *testing.T) {
	// Scenario: a structured result with no declared response type is
	// served as application/json.
	rt := local.New()
	rt.Register(actions.ActionRef{Name: "status"}, func(_ context.Context, _ *domain.RequestContext, _ map[string]any) (any, error) {
		return map[string]any{"ok": true}, nil
	})

	h, _ := newHandler(t, rt, config.RouteConfig{Path: "/"})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if w.Body.String() != `{"ok":true}` {
		t.Errorf("body = %q, want %q", w.Body.String(), `{"ok":true}`)
	}
}

func TestDispatch_AuthorizationDenied(t *testing.T) {
	// Scenario: route requires authorization, no apikey anywhere, the
	// authorization action yields no identity: 403 Forbidden.
	rt := local.New()
	rt.Register(actions.ActionRef{Name: DefaultAuthAction}, func(_ context.Context, _ *domain.RequestContext, params map[string]any) (any, error) {
		if params["apiKey"] == "secret" {
			return map[string]any{"id": "u1"}, nil
		}
		return nil, nil
	})
	rt.Register(actions.ActionRef{Name: "posts.list"}, func(_ context.Context, rc *domain.RequestContext, _ map[string]any) (any, error) {
		return map[string]any{"user": rc.Meta["user"]}, nil
	})

	h, _ := newHandler(t, rt, config.RouteConfig{Path: "/", Authorization: true})

	t.Run("denied without key", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts/list", nil))

		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, want 403 (%s)", w.Code, w.Body.String())
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("error body is not JSON: %v", err)
		}
		if body["name"] != domain.ErrNameForbidden {
			t.Errorf("name = %v, want %q", body["name"], domain.ErrNameForbidden)
		}
	})

	t.Run("query param key accepted", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts/list?apikey=secret", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), `"id":"u1"`) {
			t.Errorf("body = %q, want the resolved identity on meta", w.Body.String())
		}
	})

	t.Run("header key accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/posts/list", nil)
		req.Header.Set("apikey", "secret")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
		}
	})
}

func TestDispatch_ParamMerge_BodyWins(t *testing.T) {
	rt := local.New()
	var gotParams map[string]any
	rt.Register(actions.ActionRef{Name: "things.create"}, func(_ context.Context, _ *domain.RequestContext, params map[string]any) (any, error) {
		gotParams = params
		return nil, nil
	})

	h, _ := newHandler(t, rt, config.RouteConfig{Path: "/", BodyParsers: []string{"json"}})

	req := httptest.NewRequest(http.MethodPost, "/things/create?a=query&b=query", strings.NewReader(`{"b":"body"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if gotParams["a"] != "query" {
		t.Errorf("a = %v, want the query value", gotParams["a"])
	}
	if gotParams["b"] != "body" {
		t.Errorf("b = %v, want the body value to win", gotParams["b"])
	}
}

func TestDispatch_InvalidBody(t *testing.T) {
	rt := local.New()
	rt.Register(actions.ActionRef{Name: "things.create"}, func(_ context.Context, _ *domain.RequestContext, _ map[string]any) (any, error) {
		t.Fatal("action must not be invoked after a body-parse failure")
		return nil, nil
	})

	h, _ := newHandler(t, rt, config.RouteConfig{Path: "/", BodyParsers: []string{"json"}})

	req := httptest.NewRequest(http.MethodPost, "/things/create", strings.NewReader(`{"broken`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (%s)", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), domain.ErrNameInvalidRequestBody) {
		t.Errorf("body = %q, want an InvalidRequestBody error", w.Body.String())
	}
}

func TestDispatch_UnknownAction(t *testing.T) {
	h, _ := newHandler(t, local.New(), config.RouteConfig{Path: "/"})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope/nothing", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), domain.ErrNameServiceNotFound) {
		t.Errorf("body = %q, want a ServiceNotFound error", w.Body.String())
	}
}

func TestDispatch_NoRouteNoAssets(t *testing.T) {
	h, recs := newHandler(t, local.New(), config.RouteConfig{Path: "/api"})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/elsewhere", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if rec := recs.last(t); rec.ErrorName != domain.ErrNameNotFound {
		t.Errorf("record error = %q, want %q", rec.ErrorName, domain.ErrNameNotFound)
	}
}

func TestDispatch_AssetsFallback(t *testing.T) {
	assets := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("static"))
	})
	h := New(Config{
		Table:   buildTable(t, config.RouteConfig{Path: "/api"}),
		Runtime: local.New(),
		Assets:  assets,
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/index.html", nil))

	if w.Code != http.StatusOK || w.Body.String() != "static" {
		t.Errorf("response = %d %q, want the asset handler's output", w.Code, w.Body.String())
	}
}

func TestDispatch_TrailingSlashStripped(t *testing.T) {
	rt := local.New()
	invoked := false
	rt.Register(actions.ActionRef{Name: "users.list"}, func(_ context.Context, _ *domain.RequestContext, _ map[string]any) (any, error) {
		invoked = true
		return nil, nil
	})

	h, _ := newHandler(t, rt, config.RouteConfig{Path: "/"})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/list/", nil))

	if !invoked {
		t.Fatalf("action not invoked; status = %d (%s)", w.Code, w.Body.String())
	}
}

func TestDispatch_EmptyPathMatchesRoot(t *testing.T) {
	// A request to exactly the global prefix arrives here with an empty
	// path once the server strips the prefix; it must match the root
	// route rather than fall through to the transport 404.
	h, _ := newHandler(t, local.New(), config.RouteConfig{Path: "/"})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.URL.Path = ""
	h.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var ge domain.GatewayError
	if err := json.Unmarshal(w.Body.Bytes(), &ge); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if ge.Name != domain.ErrNameServiceNotFound {
		t.Errorf("error name = %q, want %q (root route matched, empty action unknown)", ge.Name, domain.ErrNameServiceNotFound)
	}
}

func TestDispatch_RequestIDPropagation(t *testing.T) {
	rt := local.New()
	local.RegisterBuiltins(rt)

	h, recs := newHandler(t, rt, config.RouteConfig{Path: "/"})

	req := httptest.NewRequest(http.MethodGet, "/gateway/echo", nil)
	req = req.WithContext(domain.ContextWithRequestID(req.Context(), "fixed-id"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Request-Id"); got != "fixed-id" {
		t.Errorf("Request-Id = %q, want the middleware-assigned id", got)
	}
	if rec := recs.last(t); rec.RequestID != "fixed-id" {
		t.Errorf("record id = %q, want %q", rec.RequestID, "fixed-id")
	}
}

func TestDispatch_Validator(t *testing.T) {
	rt := local.New()
	schema := map[string]any{"name": "string"}
	rt.Register(actions.ActionRef{Name: "users.create", Params: schema}, func(_ context.Context, _ *domain.RequestContext, _ map[string]any) (any, error) {
		return nil, nil
	})

	var gotSchema any
	validator := validatorFunc(func(params map[string]any, s any) error {
		gotSchema = s
		if _, ok := params["name"]; !ok {
			return domain.ErrValidation("name is required", nil)
		}
		return nil
	})

	h := New(Config{
		Table:     buildTable(t, config.RouteConfig{Path: "/"}),
		Runtime:   rt,
		Validator: validator,
	})

	t.Run("failure surfaces as ValidationError", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/create", nil))

		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d, want 422 (%s)", w.Code, w.Body.String())
		}
		if gotSchema == nil {
			t.Error("validator did not receive the declared schema")
		}
	})

	t.Run("success proceeds to invocation", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/create?name=a", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
		}
	})
}

// validatorFunc adapts a function to actions.Validator.
type validatorFunc func(params map[string]any, schema any) error

func (f validatorFunc) Validate(params map[string]any, schema any) error {
	return f(params, schema)
}

func TestDispatch_SwapTable(t *testing.T) {
	rt := local.New()
	rt.Register(actions.ActionRef{Name: "v2.ping"}, func(_ context.Context, _ *domain.RequestContext, _ map[string]any) (any, error) {
		return "pong", nil
	})

	h, _ := newHandler(t, rt, config.RouteConfig{Path: "/v1"})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v2/v2/ping", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status before swap = %d, want 404", w.Code)
	}

	h.SwapTable(buildTable(t, config.RouteConfig{Path: "/v2"}))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v2/v2/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status after swap = %d, want 200 (%s)", w.Code, w.Body.String())
	}
}
