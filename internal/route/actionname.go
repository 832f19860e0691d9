package route

import "strings"

// ActionName converts the path remainder after a matched route prefix
// into a dotted action identifier: a single leading "/" is dropped,
// exactly one "~" becomes "$" and every "/" becomes ".". The "~"
// placeholder is how internal "$"-prefixed action segments are exposed
// in URLs, e.g. "users/~node/health" names "users.$node.health".
func ActionName(rest string) string {
	rest = strings.TrimPrefix(rest, "/")
	rest = strings.Replace(rest, "~", "$", 1)
	return strings.ReplaceAll(rest, "/", ".")
}
