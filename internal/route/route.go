// Package route builds the immutable route table and resolves incoming
// paths against it.
package route

import (
	"fmt"
	"strings"

	"github.com/actionmesh/gateway/internal/bodyparser"
	"github.com/actionmesh/gateway/internal/config"
)

// Route is one configured entry of the table, immutable after Build.
type Route struct {
	// PathPrefix is normalized to carry no trailing slash. Defaults
	// to "/".
	PathPrefix string

	RequiresAuthorization bool

	// Whitelist is nil when the route declares no restriction.
	Whitelist []Mask

	// Aliases maps "<METHOD> <name>" or bare "<name>" keys to target
	// action names. Lookup is exact-key only.
	Aliases map[string]string

	// Parsers is the ordered body-decoder chain for this route.
	Parsers *bodyparser.Chain
}

// Table is the ordered route list. Matching is first-match by
// declaration order: a broad route declared before a specific one
// shadows it, so operators must order most-specific first.
type Table struct {
	routes []Route
}

// Build compiles the configured routes into a table. It fails fast on
// an unknown body-parser name or an uncompilable whitelist mask, so
// misconfiguration is a startup error rather than a per-request one.
func Build(cfgs []config.RouteConfig) (*Table, error) {
	routes := make([]Route, 0, len(cfgs))
	for i, rc := range cfgs {
		r := Route{
			PathPrefix:            normalizePrefix(rc.Path),
			RequiresAuthorization: rc.Authorization,
			Aliases:               rc.Aliases,
		}

		if rc.Whitelist != nil {
			masks := make([]Mask, 0, len(rc.Whitelist))
			for _, pattern := range rc.Whitelist {
				m, err := compileMask(pattern)
				if err != nil {
					return nil, fmt.Errorf("route %d (%s): %w", i, r.PathPrefix, err)
				}
				masks = append(masks, m)
			}
			r.Whitelist = masks
		}

		chain, err := bodyparser.NewChain(rc.BodyParsers)
		if err != nil {
			return nil, fmt.Errorf("route %d (%s): %w", i, r.PathPrefix, err)
		}
		r.Parsers = chain

		routes = append(routes, r)
	}
	return &Table{routes: routes}, nil
}

// Len returns the number of routes in the table.
func (t *Table) Len() int { return len(t.routes) }

// Match scans the table in declared order and returns the first route
// whose prefix is a literal prefix of path, together with the candidate
// action name derived from the remainder.
func (t *Table) Match(path string) (*Route, string, bool) {
	for i := range t.routes {
		r := &t.routes[i]
		if strings.HasPrefix(path, r.PathPrefix) {
			rest := strings.TrimPrefix(path, r.PathPrefix)
			return r, ActionName(rest), true
		}
	}
	return nil, "", false
}

// normalizePrefix ensures a leading slash and strips any trailing one.
// The empty prefix becomes "/".
func normalizePrefix(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = p[:len(p)-1]
	}
	return p
}
