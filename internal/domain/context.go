package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RequestContext carries the transient state of one in-flight request.
// It is created fresh per request, owned exclusively by that request's
// pipeline execution, and never reused.
type RequestContext struct {
	RequestID  string
	ActionName string
	Params     map[string]any
	Meta       map[string]any
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRequestContext creates a context for one invocation. An empty
// requestID gets a freshly generated one.
func NewRequestContext(requestID, action string, params map[string]any) *RequestContext {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	if params == nil {
		params = make(map[string]any)
	}
	return &RequestContext{
		RequestID:  requestID,
		ActionName: action,
		Params:     params,
		Meta:       make(map[string]any),
		StartedAt:  time.Now(),
	}
}

// Finish records the completion time. Safe to call once per request.
func (rc *RequestContext) Finish() {
	rc.FinishedAt = time.Now()
}

// Duration returns the elapsed pipeline time. Zero until Finish is called.
func (rc *RequestContext) Duration() time.Duration {
	if rc.FinishedAt.IsZero() {
		return 0
	}
	return rc.FinishedAt.Sub(rc.StartedAt)
}

type requestIDKey struct{}

// ContextWithRequestID stores a request id on a context.Context so the
// pipeline can reuse the id assigned by the transport middleware.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext retrieves the request id, or "" when unset.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
