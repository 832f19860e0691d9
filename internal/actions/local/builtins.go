package local

import (
	"context"

	"github.com/actionmesh/gateway/internal/actions"
	"github.com/actionmesh/gateway/internal/domain"
)

// EchoAction is the virtual action that makes the gateway addressable
// through the same action surface it serves.
const EchoAction = "gateway.echo"

// RegisterBuiltins registers the gateway's built-in actions.
func RegisterBuiltins(r *Runtime) {
	r.Register(actions.ActionRef{Name: EchoAction}, echo)
}

// echo reflects the merged request parameters back to the caller.
func echo(_ context.Context, rc *domain.RequestContext, params map[string]any) (any, error) {
	return map[string]any{
		"action":    EchoAction,
		"requestId": rc.RequestID,
		"params":    params,
	}, nil
}
