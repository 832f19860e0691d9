// Package actions defines the ports through which the gateway talks to
// the action-invocation runtime and the optional parameter validator.
package actions

import (
	"context"

	"github.com/actionmesh/gateway/internal/domain"
)

// ActionRef describes a remotely invocable action as published by the
// runtime. The gateway never interprets the schema itself; it only hands
// it to the configured Validator.
type ActionRef struct {
	// Name is the dotted action identifier, e.g. "users.create".
	Name string

	// Params is the optional parameter schema, opaque to the gateway.
	Params any

	// ResponseType is the declared response content type, if any.
	ResponseType string
}

// Runtime is the action-invocation runtime the gateway dispatches into.
// Implementations own service discovery, transport and retries; the
// gateway only resolves and invokes.
type Runtime interface {
	// Resolve looks up an action by its final (post-alias) name.
	// A (nil, nil) return means the action is unknown.
	Resolve(ctx context.Context, name string) (*ActionRef, error)

	// Invoke calls the named action with the request context and merged
	// parameters. The result value is shaped by the action, not the
	// gateway; the response encoder classifies it afterwards.
	Invoke(ctx context.Context, name string, rc *domain.RequestContext, params map[string]any) (any, error)
}

// Validator checks merged request parameters against an action's
// declared schema. Wired only when configured; absence skips validation.
type Validator interface {
	Validate(params map[string]any, schema any) error
}
