package route

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Mask is one compiled whitelist entry: either a glob pattern matched
// case-sensitively against the action name or a regular expression.
// Configuration strings delimited by slashes, e.g. "/^users\.\d+$/",
// compile as regular expressions; everything else is a glob.
//
// Glob masks are segment-aware: the mask and the action name are split
// on "." and must have the same number of segments, with wildcards
// confined to their own segment. "posts.*" therefore admits
// "posts.list" but not "posts.comments.remove", and a bare "*" admits
// only undotted names.
type Mask struct {
	pattern  string
	segments []string
	re       *regexp.Regexp
}

func compileMask(s string) (Mask, error) {
	if len(s) > 1 && strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/") {
		re, err := regexp.Compile(s[1 : len(s)-1])
		if err != nil {
			return Mask{}, fmt.Errorf("whitelist mask %q: %w", s, err)
		}
		return Mask{pattern: s, re: re}, nil
	}
	// Validate every glob segment up front so a bad pattern fails at
	// build time.
	segments := strings.Split(s, ".")
	for _, seg := range segments {
		if _, err := path.Match(seg, ""); err != nil {
			return Mask{}, fmt.Errorf("whitelist mask %q: %w", s, err)
		}
	}
	return Mask{pattern: s, segments: segments}, nil
}

// Match evaluates the mask against an action name.
func (m Mask) Match(name string) bool {
	if m.re != nil {
		return m.re.MatchString(name)
	}
	parts := strings.Split(name, ".")
	if len(parts) != len(m.segments) {
		return false
	}
	for i, seg := range m.segments {
		ok, err := path.Match(seg, parts[i])
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// Allows reports whether the action name passes the route's whitelist.
// A route with no whitelist allows everything; otherwise any single
// matching mask suffices. Mask order never changes the outcome, only
// how early the scan stops.
func (r *Route) Allows(name string) bool {
	if r.Whitelist == nil {
		return true
	}
	for _, m := range r.Whitelist {
		if m.Match(name) {
			return true
		}
	}
	return false
}
