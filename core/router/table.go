// Package router compiles path templates into matchable patterns and
// resolves (method, path) pairs to registered routes with deterministic
// tie-breaking: routes with more literal segments win over more generic
// parameterized routes, independent of registration order.
package router

import (
	"sort"
	"strings"

	"github.com/thinhttp/thin-server/core/http"
)

// segment is one compiled template segment: a literal string, or a
// named parameter marker that matches any single path segment.
type segment struct {
	literal string
	param   string // non-empty for ":name" segments
}

// Pattern is a compiled route template. Compiled once at registration
// time, immutable afterward.
type Pattern struct {
	segments []segment
	literals int
}

// Compile splits a template on '/', treating ':'-prefixed segments as
// named parameters and everything else as literals. There is no
// wildcard/catch-all segment type.
func Compile(template string) *Pattern {
	p := &Pattern{}

	rest := strings.TrimPrefix(template, "/")
	for {
		var seg string
		var more bool
		seg, rest, more = cutSegment(rest)

		if strings.HasPrefix(seg, ":") && len(seg) > 1 {
			p.segments = append(p.segments, segment{param: seg[1:]})
		} else {
			p.segments = append(p.segments, segment{literal: seg})
			p.literals++
		}

		if !more {
			return p
		}
	}
}

// Literals returns the literal-segment count used for match priority.
func (p *Pattern) Literals() int { return p.literals }

// Match splits path the same way the template was split and compares
// segment by segment. Parameter segments always match and bind their
// value through bind. Nothing is bound unless the whole path matches,
// so bound parameters cover exactly the named segments of the matched
// pattern.
func (p *Pattern) Match(path string, bind func(key, value string)) bool {
	var bound [4]struct{ key, value string }
	var overflow []struct{ key, value string }
	nbound := 0

	rest := strings.TrimPrefix(path, "/")
	for i, s := range p.segments {
		var seg string
		var more bool
		seg, rest, more = cutSegment(rest)

		if s.param != "" {
			if nbound < len(bound) {
				bound[nbound].key = s.param
				bound[nbound].value = seg
			} else {
				overflow = append(overflow, struct{ key, value string }{s.param, seg})
			}
			nbound++
		} else if seg != s.literal {
			return false
		}

		if more != (i < len(p.segments)-1) {
			return false
		}
	}

	if bind != nil {
		for i := 0; i < nbound && i < len(bound); i++ {
			bind(bound[i].key, bound[i].value)
		}
		for _, kv := range overflow {
			bind(kv.key, kv.value)
		}
	}
	return true
}

// cutSegment returns the text before the first '/', the remainder, and
// whether a separator was found.
func cutSegment(s string) (seg, rest string, more bool) {
	if i := strings.IndexByte(s, '/'); i != -1 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}

// Route binds a method and compiled pattern to an ordered handler
// chain. The table never mutates an existing route, only appends and
// re-sorts.
type Route struct {
	Method   string
	Template string
	Pattern  *Pattern
	Chain    []http.HandlerFunc
	Tag      string
}

// Table is the route table: a linear, stably ordered scan list. It is
// build-once/read-many; after startup it requires no locking.
type Table struct {
	routes []*Route
}

// NewTable returns an empty route table.
func NewTable() *Table {
	return &Table{}
}

// Add compiles template, appends the route, and re-sorts the table by
// descending literal-segment count. The sort is stable, so registration
// order breaks ties.
func (t *Table) Add(method, template string, chain []http.HandlerFunc, tag string) *Route {
	r := &Route{
		Method:   strings.ToUpper(method),
		Template: template,
		Pattern:  Compile(template),
		Chain:    chain,
		Tag:      tag,
	}
	t.routes = append(t.routes, r)

	sort.SliceStable(t.routes, func(i, j int) bool {
		return t.routes[i].Pattern.literals > t.routes[j].Pattern.literals
	})
	return r
}

// Find scans routes in table order, filtering by method
// (case-insensitive) and returning the first structural match. A miss
// is a nil route, never an error.
func (t *Table) Find(method, path string, bind func(key, value string)) *Route {
	for _, r := range t.routes {
		if !strings.EqualFold(r.Method, method) {
			continue
		}
		if r.Pattern.Match(path, bind) {
			return r
		}
	}
	return nil
}

// Routes returns the table in scan order.
func (t *Table) Routes() []*Route {
	return t.routes
}

// Len reports the number of registered routes.
func (t *Table) Len() int {
	return len(t.routes)
}
