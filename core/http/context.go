package http

import (
	"encoding/json"
	"io"
	"sync"

	"google.golang.org/protobuf/proto"
)

// HandlerFunc is the signature shared by middleware and terminal
// handlers. A handler signals "stop the chain" by calling Abort, never
// by a return value.
type HandlerFunc func(*Context)

// Context is the per-request aggregate threaded through a handler
// chain. It owns the request, a mutable response builder, extracted
// route parameters, and a scratch store for cross-handler data. A
// context is exclusively owned by the single chain executing it.
type Context struct {
	request  *Request
	response *Response
	w        io.Writer

	// Fixed-size parameter storage with map overflow; most routes
	// carry at most a handful of named segments.
	paramKeys   [4]string
	paramValues [4]string
	paramCount  int
	paramOver   map[string]string

	store      map[string]any
	closeHooks []func()
	remoteAddr string

	aborted  bool
	written  bool
	writeErr error

	buf []byte
}

var contextPool = sync.Pool{
	New: func() any {
		return &Context{
			response: NewResponse(),
			buf:      make([]byte, 0, 4096),
		}
	},
}

// AcquireContext returns a pooled context bound to a request and the
// transport writer its response goes to.
func AcquireContext(w io.Writer, req *Request) *Context {
	c := contextPool.Get().(*Context)
	c.request = req
	c.w = w
	return c
}

// ReleaseContext resets the context and returns it to the pool. Close
// hooks must already have run.
func ReleaseContext(c *Context) {
	c.request = nil
	c.w = nil
	c.response.Reset()
	c.paramCount = 0
	for k := range c.paramOver {
		delete(c.paramOver, k)
	}
	for k := range c.store {
		delete(c.store, k)
	}
	c.closeHooks = c.closeHooks[:0]
	c.remoteAddr = ""
	c.aborted = false
	c.written = false
	c.writeErr = nil
	c.buf = c.buf[:0]
	contextPool.Put(c)
}

// Request returns the parsed request.
func (c *Context) Request() *Request { return c.request }

// RemoteAddr returns the peer address of the transport connection.
func (c *Context) RemoteAddr() string { return c.remoteAddr }

// SetRemoteAddr records the peer address; called by the connection
// manager before dispatch.
func (c *Context) SetRemoteAddr(addr string) { c.remoteAddr = addr }

// Response returns the mutable response builder. Mutations after the
// first write-out have no effect on the wire.
func (c *Context) Response() *Response { return c.response }

// Method returns the request method.
func (c *Context) Method() string { return c.request.Method }

// Path returns the decoded request path.
func (c *Context) Path() string { return c.request.Path }

// Body returns the request body.
func (c *Context) Body() []byte { return c.request.Body }

// Header returns a request header value, matching case-insensitively.
func (c *Context) Header(key string) string { return c.request.Header(key) }

// Query returns a query parameter value.
func (c *Context) Query(key string) string {
	if c.request.Query == nil {
		return ""
	}
	return c.request.Query[key]
}

// SetParam binds a route parameter.
func (c *Context) SetParam(key, value string) {
	if c.paramCount < len(c.paramKeys) {
		c.paramKeys[c.paramCount] = key
		c.paramValues[c.paramCount] = value
		c.paramCount++
		return
	}
	if c.paramOver == nil {
		c.paramOver = make(map[string]string)
	}
	c.paramOver[key] = value
}

// Param returns a bound route parameter, or "" when absent.
func (c *Context) Param(key string) string {
	for i := 0; i < c.paramCount; i++ {
		if c.paramKeys[i] == key {
			return c.paramValues[i]
		}
	}
	if c.paramOver != nil {
		return c.paramOver[key]
	}
	return ""
}

// ParamCount reports the number of bound route parameters.
func (c *Context) ParamCount() int {
	return c.paramCount + len(c.paramOver)
}

// Set stores a scratch value for downstream handlers and collaborators.
func (c *Context) Set(key string, value any) {
	if c.store == nil {
		c.store = make(map[string]any)
	}
	c.store[key] = value
}

// Get returns a scratch value.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.store[key]
	return v, ok
}

// Abort halts execution of the remaining handlers in the chain.
func (c *Context) Abort() { c.aborted = true }

// IsAborted reports whether the chain has been aborted.
func (c *Context) IsAborted() bool { return c.aborted }

// AbortWithStatus aborts the chain and sends an empty response with the
// given status code.
func (c *Context) AbortWithStatus(code int) {
	c.Abort()
	c.send(code, "", nil)
}

// Written reports whether the response has been sent.
func (c *Context) Written() bool { return c.written }

// OnClose registers a hook invoked once dispatch completes, before the
// connection moves to the next request. Used by request-scoped resource
// owners to release their state.
func (c *Context) OnClose(fn func()) {
	c.closeHooks = append(c.closeHooks, fn)
}

// Status sets the response status code without sending anything.
func (c *Context) Status(code int) {
	c.response.StatusCode = code
}

// SetHeader sets a response header.
func (c *Context) SetHeader(key, value string) {
	c.response.SetHeader(key, value)
}

// Bind unmarshals the JSON request body into v.
func (c *Context) Bind(v any) error {
	return json.Unmarshal(c.request.Body, v)
}

// String sends a text/plain response.
func (c *Context) String(code int, s string) {
	c.send(code, "text/plain; charset=utf-8", []byte(s))
}

// Bytes sends an application/octet-stream response.
func (c *Context) Bytes(code int, data []byte) {
	c.send(code, "application/octet-stream", data)
}

// Data sends a response with an explicit content type.
func (c *Context) Data(code int, contentType string, data []byte) {
	c.send(code, contentType, data)
}

// JSON marshals v and sends an application/json response.
func (c *Context) JSON(code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.send(500, "text/plain; charset=utf-8", []byte("json marshal error"))
		return
	}
	c.send(code, "application/json", data)
}

// ProtoBuf marshals msg and sends an application/x-protobuf response.
func (c *Context) ProtoBuf(code int, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err != nil {
		c.send(500, "text/plain; charset=utf-8", []byte("protobuf marshal error"))
		return
	}
	c.send(code, "application/x-protobuf", data)
}

// Error sends a JSON error payload.
func (c *Context) Error(code int, message string) {
	c.JSON(code, map[string]any{
		"code":    code,
		"message": message,
	})
}

// NoContent sends a 204 with an empty body.
func (c *Context) NoContent() {
	c.send(204, "", nil)
}

// send populates the response builder and writes it out immediately. A
// second send on the same context is a silent no-op: the first write
// wins.
func (c *Context) send(code int, contentType string, body []byte) {
	if c.written {
		return
	}
	c.response.StatusCode = code
	if contentType != "" {
		c.response.SetHeader("Content-Type", contentType)
	}
	c.response.Body = append(c.response.Body[:0], body...)
	c.writeOut()
}

// Flush writes the response builder to the transport if no handler sent
// one already. It reports the first transport write error observed on
// this context.
func (c *Context) Flush() error {
	if !c.written {
		c.writeOut()
	}
	return c.writeErr
}

func (c *Context) writeOut() {
	c.written = true
	c.buf = SerializeResponse(c.buf[:0], c.response)
	if _, err := c.w.Write(c.buf); err != nil && c.writeErr == nil {
		c.writeErr = err
	}
}

// RunCloseHooks invokes registered close hooks in reverse registration
// order, once.
func (c *Context) RunCloseHooks() {
	for i := len(c.closeHooks) - 1; i >= 0; i-- {
		c.closeHooks[i]()
	}
	c.closeHooks = c.closeHooks[:0]
}
