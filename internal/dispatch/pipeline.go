package dispatch

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/actionmesh/gateway/internal/actions"
	"github.com/actionmesh/gateway/internal/domain"
	"github.com/actionmesh/gateway/internal/route"
)

// DefaultAuthAction is invoked for routes requiring authorization when
// no action name is configured.
const DefaultAuthAction = "auth.resolveUser"

// Recorder receives one RequestRecord per finished request. A nil
// recorder disables the request log.
type Recorder interface {
	Record(ctx context.Context, rec domain.RequestRecord) error
}

// Config wires a Handler. Table and Runtime are required; everything
// else is optional.
type Config struct {
	Table      *route.Table
	Runtime    actions.Runtime
	Validator  actions.Validator
	AuthAction string
	Assets     http.Handler
	Logger     *slog.Logger
	Recorder   Recorder
}

// Handler is the dispatch pipeline as an http.Handler. The route table
// is held behind an atomic pointer so a config reload can swap in a
// freshly built table without touching in-flight requests.
type Handler struct {
	table      atomic.Pointer[route.Table]
	runtime    actions.Runtime
	validator  actions.Validator
	authAction string
	assets     http.Handler
	logger     *slog.Logger
	recorder   Recorder
}

// New creates a dispatch handler.
func New(cfg Config) *Handler {
	h := &Handler{
		runtime:    cfg.Runtime,
		validator:  cfg.Validator,
		authAction: cfg.AuthAction,
		assets:     cfg.Assets,
		logger:     cfg.Logger,
		recorder:   cfg.Recorder,
	}
	if h.authAction == "" {
		h.authAction = DefaultAuthAction
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	h.table.Store(cfg.Table)
	return h
}

// SwapTable replaces the route table. Requests already past the path
// match keep the table they matched against.
func (h *Handler) SwapTable(t *route.Table) {
	h.table.Store(t)
}

// ServeHTTP runs the pipeline for one request. Exactly one response is
// written per request: the encoded result or a mapped error, never both.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	rt, candidate, ok := h.table.Load().Match(trimTrailingSlash(r.URL.Path))
	if !ok {
		if h.assets != nil {
			h.assets.ServeHTTP(w, r)
			return
		}
		// No request context exists yet, so the error carries no
		// Request-Id of its own.
		err := domain.ErrNotFound(r.URL.Path)
		status := WriteError(w, "", err)
		h.finalize(r, nil, "", status, err, start)
		return
	}

	rc, ref, result, err := h.run(r, rt, candidate)

	var status int
	if err == nil {
		status, err = WriteResult(w, requestID(rc), declaredType(ref), result)
	}
	if err != nil {
		status = WriteError(w, requestID(rc), err)
	}

	h.finalize(r, rc, candidate, status, err, start)
}

// run executes stages 2 through 9 and returns at the first failure.
func (h *Handler) run(r *http.Request, rt *route.Route, candidate string) (*domain.RequestContext, *actions.ActionRef, any, error) {
	ctx := r.Context()

	// Alias resolution cannot fail; an unmapped name passes through.
	action := rt.ResolveAlias(candidate, r.Method)

	if !rt.Allows(action) {
		return nil, nil, nil, domain.ErrServiceNotFound(action)
	}

	body, err := rt.Parsers.Run(r)
	if err != nil {
		return nil, nil, nil, err
	}

	// Body fields overlay query parameters; body wins on collision.
	params := queryParams(r)
	for k, v := range body {
		params[k] = v
	}

	ref, err := h.runtime.Resolve(ctx, action)
	if err != nil {
		return nil, nil, nil, err
	}
	if ref == nil {
		return nil, nil, nil, domain.ErrServiceNotFound(action)
	}
	if ref.Params != nil && h.validator != nil {
		if err := h.validator.Validate(params, ref.Params); err != nil {
			if _, ok := err.(*domain.GatewayError); ok {
				return nil, nil, nil, err
			}
			return nil, nil, nil, domain.ErrValidation(err.Error(), nil)
		}
	}

	rc := domain.NewRequestContext(domain.RequestIDFromContext(ctx), action, params)

	if rt.RequiresAuthorization {
		if err := h.authorize(ctx, r, rc); err != nil {
			return rc, ref, nil, err
		}
	}

	result, err := h.runtime.Invoke(ctx, action, rc, params)
	if err != nil {
		return rc, ref, nil, err
	}
	return rc, ref, result, nil
}

// authorize resolves an identity from the request's API key and attaches
// it to the context meta. No identity means Forbidden.
func (h *Handler) authorize(ctx context.Context, r *http.Request, rc *domain.RequestContext) error {
	key := r.URL.Query().Get("apikey")
	if key == "" {
		key = r.Header.Get("apikey")
	}
	identity, err := h.runtime.Invoke(ctx, h.authAction, rc, map[string]any{"apiKey": key})
	if err != nil {
		return err
	}
	if identity == nil {
		return domain.ErrForbidden("access denied")
	}
	rc.Meta["user"] = identity
	return nil
}

// finalize records timestamps and emits the request-log entry. It runs
// on every exit path.
func (h *Handler) finalize(r *http.Request, rc *domain.RequestContext, candidate string, status int, err error, start time.Time) {
	rec := domain.RequestRecord{
		Method:    r.Method,
		Path:      r.URL.Path,
		Action:    candidate,
		Status:    status,
		StartedAt: start,
		Duration:  time.Since(start),
	}
	if rc != nil {
		rc.Finish()
		rec.RequestID = rc.RequestID
		rec.Action = rc.ActionName
		rec.StartedAt = rc.StartedAt
		rec.Duration = rc.Duration()
	} else {
		rec.RequestID = domain.RequestIDFromContext(r.Context())
	}
	if err != nil {
		rec.ErrorName = domain.FromError(err).Name
		h.logger.Warn("request failed",
			slog.String("request_id", rec.RequestID),
			slog.String("action", rec.Action),
			slog.String("error", err.Error()),
			slog.Int("status", status))
	}
	if h.recorder != nil {
		if rerr := h.recorder.Record(r.Context(), rec); rerr != nil {
			h.logger.Error("failed to record request", slog.String("error", rerr.Error()))
		}
	}
}

// queryParams decodes the query string into the initial parameter map.
// Repeated keys become string slices.
func queryParams(r *http.Request) map[string]any {
	values := r.URL.Query()
	params := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			params[k] = vs[0]
		} else {
			params[k] = vs
		}
	}
	return params
}

// trimTrailingSlash strips a single trailing slash, keeping "/" intact.
// An empty path (a request to exactly the global prefix, after the
// prefix is stripped) counts as "/".
func trimTrailingSlash(p string) string {
	if p == "" {
		return "/"
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		return p[:len(p)-1]
	}
	return p
}

func requestID(rc *domain.RequestContext) string {
	if rc == nil {
		return ""
	}
	return rc.RequestID
}

func declaredType(ref *actions.ActionRef) string {
	if ref == nil {
		return ""
	}
	return ref.ResponseType
}
