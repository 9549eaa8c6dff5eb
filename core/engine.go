// Package core implements the listener/engine: it accepts transport
// connections, spawns per-connection work, and owns the route table and
// global middleware.
package core

import (
	"context"
	"errors"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"golang.org/x/net/netutil"
	"golang.org/x/sys/unix"

	"github.com/thinhttp/thin-server/core/http"
	"github.com/thinhttp/thin-server/core/middleware"
	"github.com/thinhttp/thin-server/core/observability"
	"github.com/thinhttp/thin-server/core/router"
)

// ErrServerClosed is returned by Start after Stop has been called.
var ErrServerClosed = errors.New("thinserver: server closed")

// Defaults for the connection lifecycle.
const (
	DefaultReadTimeout        = 30 * time.Second
	DefaultMaxRequestsPerConn = 100
)

// unmatchedRoute is the metrics label for requests that resolve to no
// route, keeping label cardinality bounded.
const unmatchedRoute = "unmatched"

// Engine accepts connections and dispatches requests. The route table
// and global middleware are read-only once Start has been called; after
// that point the engine shares no mutable state between connections.
type Engine struct {
	table      *router.Table
	middleware []http.HandlerFunc
	notFound   http.HandlerFunc

	logger  observability.Logger
	metrics *observability.Metrics

	readTimeout        time.Duration
	maxHeaderBytes     int
	maxBodyBytes       int
	maxRequestsPerConn int
	maxConns           int

	mu     sync.Mutex
	ln     net.Listener
	conns  map[*serverConn]struct{}
	doneCh chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger observability.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithReadTimeout sets the per-read idle timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(e *Engine) { e.readTimeout = d }
}

// WithMaxHeaderBytes bounds the header-block scan window.
func WithMaxHeaderBytes(n int) Option {
	return func(e *Engine) { e.maxHeaderBytes = n }
}

// WithMaxBodyBytes bounds the declared request body size.
func WithMaxBodyBytes(n int) Option {
	return func(e *Engine) { e.maxBodyBytes = n }
}

// WithMaxRequestsPerConn caps keep-alive reuse of one connection.
func WithMaxRequestsPerConn(n int) Option {
	return func(e *Engine) { e.maxRequestsPerConn = n }
}

// WithMaxConns caps concurrently accepted connections; zero means
// unlimited.
func WithMaxConns(n int) Option {
	return func(e *Engine) { e.maxConns = n }
}

// WithNotFound replaces the default 404 handler.
func WithNotFound(h http.HandlerFunc) Option {
	return func(e *Engine) { e.notFound = h }
}

// NewEngine creates an engine with default lifecycle settings.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		table:              router.NewTable(),
		logger:             observability.NopLogger(),
		readTimeout:        DefaultReadTimeout,
		maxHeaderBytes:     http.DefaultMaxHeaderBytes,
		maxBodyBytes:       http.DefaultMaxBodyBytes,
		maxRequestsPerConn: DefaultMaxRequestsPerConn,
		conns:              make(map[*serverConn]struct{}),
		doneCh:             make(chan struct{}),
	}
	e.notFound = func(ctx *http.Context) {
		ctx.Error(404, "not found")
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.metrics == nil {
		e.metrics = observability.NewMetrics("")
	}
	return e
}

// Use appends engine-level middleware, executed before any group or
// route middleware. Must not be called after Start.
func (e *Engine) Use(mw ...http.HandlerFunc) {
	e.middleware = append(e.middleware, mw...)
}

// Handle registers a route. The last handler is the terminal handler;
// any preceding ones are route-level middleware.
func (e *Engine) Handle(method, template string, handlers ...http.HandlerFunc) {
	e.handle(method, template, "", handlers)
}

func (e *Engine) handle(method, template, tag string, handlers []http.HandlerFunc) {
	if len(handlers) == 0 {
		panic("thinserver: route registered without a handler")
	}
	if len(template) == 0 || template[0] != '/' {
		panic("thinserver: route template must begin with '/'")
	}
	e.table.Add(method, template, handlers, tag)
}

// GET registers a GET route.
func (e *Engine) GET(template string, handlers ...http.HandlerFunc) {
	e.Handle("GET", template, handlers...)
}

// POST registers a POST route.
func (e *Engine) POST(template string, handlers ...http.HandlerFunc) {
	e.Handle("POST", template, handlers...)
}

// PUT registers a PUT route.
func (e *Engine) PUT(template string, handlers ...http.HandlerFunc) {
	e.Handle("PUT", template, handlers...)
}

// DELETE registers a DELETE route.
func (e *Engine) DELETE(template string, handlers ...http.HandlerFunc) {
	e.Handle("DELETE", template, handlers...)
}

// PATCH registers a PATCH route.
func (e *Engine) PATCH(template string, handlers ...http.HandlerFunc) {
	e.Handle("PATCH", template, handlers...)
}

// HEAD registers a HEAD route.
func (e *Engine) HEAD(template string, handlers ...http.HandlerFunc) {
	e.Handle("HEAD", template, handlers...)
}

// OPTIONS registers an OPTIONS route.
func (e *Engine) OPTIONS(template string, handlers ...http.HandlerFunc) {
	e.Handle("OPTIONS", template, handlers...)
}

// Group creates a router group rooted at prefix. The group holds an
// explicit reference to this engine and exists only at registration
// time.
func (e *Engine) Group(prefix string, mw ...http.HandlerFunc) *RouterGroup {
	return &RouterGroup{
		engine:   e,
		prefix:   prefix,
		handlers: mw,
	}
}

// Routes returns the route table in scan order.
func (e *Engine) Routes() []*router.Route {
	return e.table.Routes()
}

// Addr returns the bound listener address, or nil before Start.
func (e *Engine) Addr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ln == nil {
		return nil
	}
	return e.ln.Addr()
}

// Metrics returns the engine's metrics sink.
func (e *Engine) Metrics() *observability.Metrics {
	return e.metrics
}

// Start binds addr and serves until Stop is called. A bind failure is
// fatal and returned immediately; transient accept errors are logged
// and the loop continues.
func (e *Engine) Start(addr string) error {
	if e.shuttingDown() {
		return ErrServerClosed
	}

	lc := net.ListenConfig{Control: reuseAddr}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	if e.maxConns > 0 {
		ln = netutil.LimitListener(ln, e.maxConns)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	e.ln = ln
	e.mu.Unlock()

	e.logger.Info("server listening",
		observability.String("addr", ln.Addr().String()),
	)

	for {
		rwc, err := ln.Accept()
		if err != nil {
			if e.shuttingDown() {
				return ErrServerClosed
			}
			e.logger.Warn("accept error", observability.Err(err))
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if tc, ok := rwc.(*net.TCPConn); ok {
			tc.SetNoDelay(true)
			tc.SetKeepAlive(true)
		}

		e.metrics.ConnOpened()
		sc := newServerConn(e, rwc)
		e.trackConn(sc)
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			sc.serve()
		}()
	}
}

// Stop signals shutdown, unblocks the accept call, and releases the
// listening socket. In-flight connections get until ctx expires before
// forced termination.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.doneCh)
		if e.ln != nil {
			e.ln.Close()
		}
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("server stopped")
		return nil
	case <-ctx.Done():
		e.mu.Lock()
		for sc := range e.conns {
			sc.rwc.Close()
		}
		e.mu.Unlock()
		<-done
		e.logger.Warn("server stopped after forced connection close")
		return ctx.Err()
	}
}

func (e *Engine) shuttingDown() bool {
	select {
	case <-e.doneCh:
		return true
	default:
		return false
	}
}

func (e *Engine) trackConn(sc *serverConn) {
	e.mu.Lock()
	e.conns[sc] = struct{}{}
	e.mu.Unlock()
}

func (e *Engine) removeConn(sc *serverConn) {
	e.mu.Lock()
	delete(e.conns, sc)
	e.mu.Unlock()
}

// serveRequest resolves the route and runs the dispatch pipeline
// against a fresh context, then flushes the response and releases
// request-scoped resources.
func (e *Engine) serveRequest(w io.Writer, remote string, req *http.Request) {
	ctx := http.AcquireContext(w, req)
	ctx.SetRemoteAddr(remote)

	routeLabel := unmatchedRoute
	route := e.table.Find(req.Method, req.Path, ctx.SetParam)
	if route == nil {
		e.notFound(ctx)
	} else {
		routeLabel = route.Template
		e.dispatch(ctx, route)
	}

	if err := ctx.Flush(); err != nil {
		e.logger.Debug("response write error",
			observability.String("remote", remote),
			observability.Err(err),
		)
	}

	ctx.RunCloseHooks()
	e.metrics.ObserveRequest(req.Method, routeLabel, ctx.Response().StatusCode)
	http.ReleaseContext(ctx)
}

// dispatch is the per-request fault boundary: an unhandled panic from
// any handler becomes a 500 with a generic payload and is counted, but
// never re-raised to the client.
func (e *Engine) dispatch(ctx *http.Context, route *router.Route) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.ObserveHandlerFault()
			e.logger.Error("handler panic",
				observability.String("method", route.Method),
				observability.String("route", route.Template),
				observability.Any("error", r),
				observability.String("stack", string(debug.Stack())),
			)
			ctx.Abort()
			ctx.Error(500, "internal server error")
		}
	}()

	middleware.Run(ctx, e.middleware)
	if !ctx.IsAborted() {
		middleware.Run(ctx, route.Chain)
	}
}

// reuseAddr sets SO_REUSEADDR on the listening socket so restarts do
// not trip over sockets in TIME_WAIT.
func reuseAddr(network, address string, c syscall.RawConn) error {
	var ctrlErr error
	err := c.Control(func(fd uintptr) {
		ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return ctrlErr
}
