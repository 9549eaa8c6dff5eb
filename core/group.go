package core

import (
	"strings"

	"github.com/thinhttp/thin-server/core/http"
)

// RouterGroup builds absolute routes under a shared path prefix with an
// inherited middleware list. A group holds an explicit reference to its
// engine, supplied at construction and never rewritten; once routes are
// registered the group has no runtime existence.
type RouterGroup struct {
	engine   *Engine
	prefix   string
	handlers []http.HandlerFunc
	tag      string
}

// Use appends middleware inherited by every route registered through
// this group (and through nested groups) afterwards.
func (g *RouterGroup) Use(mw ...http.HandlerFunc) *RouterGroup {
	g.handlers = append(g.handlers, mw...)
	return g
}

// Tag sets the classification tag applied to routes registered through
// this group.
func (g *RouterGroup) Tag(tag string) *RouterGroup {
	g.tag = tag
	return g
}

// Group nests a child group. The child inherits this group's prefix,
// middleware (outermost first), and tag.
func (g *RouterGroup) Group(prefix string, mw ...http.HandlerFunc) *RouterGroup {
	child := &RouterGroup{
		engine: g.engine,
		prefix: joinPath(g.prefix, prefix),
		tag:    g.tag,
	}
	child.handlers = append(child.handlers, g.handlers...)
	child.handlers = append(child.handlers, mw...)
	return child
}

// Handle registers a route relative to the group prefix. The chain is
// the group's inherited middleware followed by the given handlers, the
// last of which is terminal.
func (g *RouterGroup) Handle(method, template string, handlers ...http.HandlerFunc) {
	chain := make([]http.HandlerFunc, 0, len(g.handlers)+len(handlers))
	chain = append(chain, g.handlers...)
	chain = append(chain, handlers...)
	g.engine.handle(method, joinPath(g.prefix, template), g.tag, chain)
}

// GET registers a GET route under the group prefix.
func (g *RouterGroup) GET(template string, handlers ...http.HandlerFunc) {
	g.Handle("GET", template, handlers...)
}

// POST registers a POST route under the group prefix.
func (g *RouterGroup) POST(template string, handlers ...http.HandlerFunc) {
	g.Handle("POST", template, handlers...)
}

// PUT registers a PUT route under the group prefix.
func (g *RouterGroup) PUT(template string, handlers ...http.HandlerFunc) {
	g.Handle("PUT", template, handlers...)
}

// DELETE registers a DELETE route under the group prefix.
func (g *RouterGroup) DELETE(template string, handlers ...http.HandlerFunc) {
	g.Handle("DELETE", template, handlers...)
}

// PATCH registers a PATCH route under the group prefix.
func (g *RouterGroup) PATCH(template string, handlers ...http.HandlerFunc) {
	g.Handle("PATCH", template, handlers...)
}

// joinPath joins two template fragments with exactly one '/' between
// them.
func joinPath(prefix, template string) string {
	p := strings.TrimSuffix(prefix, "/")
	t := strings.TrimPrefix(template, "/")
	if t == "" {
		if p == "" {
			return "/"
		}
		return p
	}
	return p + "/" + t
}
