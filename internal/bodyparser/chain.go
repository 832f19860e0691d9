package bodyparser

import (
	"io"
	"net/http"

	"github.com/actionmesh/gateway/internal/domain"
)

// Chain is the ordered decoder list of one route. The body is read once
// and every parser sees the same bytes; parser i+1 never runs before
// parser i has completed.
type Chain struct {
	parsers []Parser
}

// NewChain builds a chain from configured parser names, failing fast on
// an unrecognized name.
func NewChain(names []string) (*Chain, error) {
	parsers := make([]Parser, 0, len(names))
	for _, name := range names {
		p, err := New(name)
		if err != nil {
			return nil, err
		}
		parsers = append(parsers, p)
	}
	return &Chain{parsers: parsers}, nil
}

// Empty reports whether the chain has no decoders configured.
func (c *Chain) Empty() bool { return c == nil || len(c.parsers) == 0 }

// Run decodes the request body for POST, PUT and PATCH requests. For any
// other method, or with no decoders configured, it is a no-op. The first
// failing decoder aborts the chain with an InvalidRequestBody error
// carrying the raw payload; later decoders do not run.
func (c *Chain) Run(r *http.Request) (map[string]any, error) {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return nil, nil
	}
	if c.Empty() || r.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, domain.ErrInvalidRequestBody("failed to read request body: "+err.Error(), nil)
	}

	contentType := r.Header.Get("Content-Type")
	var fields map[string]any
	for _, p := range c.parsers {
		decoded, err := p.Parse(contentType, body)
		if err != nil {
			return nil, domain.ErrInvalidRequestBody(err.Error(), body)
		}
		if decoded == nil {
			continue
		}
		if fields == nil {
			fields = make(map[string]any, len(decoded))
		}
		for k, v := range decoded {
			fields[k] = v
		}
	}
	return fields, nil
}
