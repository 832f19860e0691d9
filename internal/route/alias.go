package route

import (
	"net/http"
	"strings"
)

// ResolveAlias rewrites an externally exposed action name to its
// configured target. Lookup order: exact key "<METHOD> <name>", then
// bare "<name>", then the name unchanged. Keys are exact strings; there
// is no prefix or substring matching. An empty method defaults to GET.
func (r *Route) ResolveAlias(name, method string) string {
	if len(r.Aliases) == 0 {
		return name
	}
	if method == "" {
		method = http.MethodGet
	}
	if target, ok := r.Aliases[strings.ToUpper(method)+" "+name]; ok {
		return target
	}
	if target, ok := r.Aliases[name]; ok {
		return target
	}
	return name
}
