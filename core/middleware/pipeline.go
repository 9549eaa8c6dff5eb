// Package middleware implements the linear dispatch pipeline and a set
// of common middleware built on it.
package middleware

import (
	"github.com/thinhttp/thin-server/core/http"
)

// Run executes an ordered handler chain against ctx. The abort flag is
// checked before each handler; once set, the remaining handlers are
// skipped entirely.
func Run(ctx *http.Context, handlers []http.HandlerFunc) {
	for _, h := range handlers {
		if ctx.IsAborted() {
			return
		}
		h(ctx)
	}
}

// Pipeline accumulates an ordered middleware list for later execution.
type Pipeline struct {
	handlers []http.HandlerFunc
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		handlers: make([]http.HandlerFunc, 0, 16),
	}
}

// Use appends handlers to the pipeline.
func (p *Pipeline) Use(handlers ...http.HandlerFunc) *Pipeline {
	p.handlers = append(p.handlers, handlers...)
	return p
}

// Handlers returns the accumulated handler list in registration order.
func (p *Pipeline) Handlers() []http.HandlerFunc {
	return p.handlers
}

// Execute runs the pipeline followed by a terminal handler, honoring
// the abort flag throughout.
func (p *Pipeline) Execute(ctx *http.Context, final http.HandlerFunc) {
	Run(ctx, p.handlers)
	if !ctx.IsAborted() {
		final(ctx)
	}
}
