package http

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) (*Context, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	req := &Request{Method: "GET", Path: "/", Proto: "HTTP/1.1"}
	ctx := AcquireContext(&buf, req)
	t.Cleanup(func() { ReleaseContext(ctx) })
	return ctx, &buf
}

func TestContextSingleResponseWrite(t *testing.T) {
	t.Parallel()

	ctx, buf := newTestContext(t)

	ctx.String(200, "first")
	ctx.String(500, "second")

	out := buf.String()
	assert.Contains(t, out, "first")
	assert.NotContains(t, out, "second")
	assert.Equal(t, 1, strings.Count(out, "HTTP/1.1"))
	assert.True(t, ctx.Written())
}

func TestContextAbort(t *testing.T) {
	t.Parallel()

	ctx, _ := newTestContext(t)

	assert.False(t, ctx.IsAborted())
	ctx.Abort()
	assert.True(t, ctx.IsAborted())
}

func TestContextAbortWithStatus(t *testing.T) {
	t.Parallel()

	ctx, buf := newTestContext(t)

	ctx.AbortWithStatus(401)

	assert.True(t, ctx.IsAborted())
	assert.True(t, strings.HasPrefix(buf.String(), "HTTP/1.1 401 Unauthorized\r\n"))
}

func TestContextScratchStore(t *testing.T) {
	t.Parallel()

	ctx, _ := newTestContext(t)

	_, ok := ctx.Get("missing")
	assert.False(t, ok)

	ctx.Set("user", "alice")
	v, ok := ctx.Get("user")
	require.True(t, ok)
	assert.Equal(t, "alice", v)
}

func TestContextParams(t *testing.T) {
	t.Parallel()

	ctx, _ := newTestContext(t)

	// More than the fixed-array capacity to exercise overflow.
	keys := []string{"a", "b", "c", "d", "e", "f"}
	for i, k := range keys {
		ctx.SetParam(k, strings.Repeat("v", i+1))
	}

	assert.Equal(t, len(keys), ctx.ParamCount())
	for i, k := range keys {
		assert.Equal(t, strings.Repeat("v", i+1), ctx.Param(k))
	}
	assert.Equal(t, "", ctx.Param("missing"))
}

func TestContextFlushDefaults(t *testing.T) {
	t.Parallel()

	ctx, buf := newTestContext(t)

	// No handler sent anything; Flush writes the builder as-is.
	ctx.Status(201)
	ctx.SetHeader("X-Custom", "yes")
	require.NoError(t, ctx.Flush())

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 201 Created\r\n"))
	assert.Contains(t, out, "X-Custom: yes\r\n")

	// A second flush is a no-op.
	require.NoError(t, ctx.Flush())
	assert.Equal(t, 1, strings.Count(buf.String(), "HTTP/1.1"))
}

func TestContextJSON(t *testing.T) {
	t.Parallel()

	ctx, buf := newTestContext(t)

	ctx.JSON(200, map[string]string{"key": "value"})

	out := buf.String()
	assert.Contains(t, out, "Content-Type: application/json\r\n")
	assert.Contains(t, out, `{"key":"value"}`)
}

func TestContextBind(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	req := &Request{Method: "POST", Path: "/", Proto: "HTTP/1.1", Body: []byte(`{"name":"bob"}`)}
	ctx := AcquireContext(&buf, req)
	defer ReleaseContext(ctx)

	var body struct {
		Name string `json:"name"`
	}
	require.NoError(t, ctx.Bind(&body))
	assert.Equal(t, "bob", body.Name)
}

func TestContextCloseHooks(t *testing.T) {
	t.Parallel()

	ctx, _ := newTestContext(t)

	var order []int
	ctx.OnClose(func() { order = append(order, 1) })
	ctx.OnClose(func() { order = append(order, 2) })

	ctx.RunCloseHooks()

	// Reverse registration order, like deferred cleanup.
	assert.Equal(t, []int{2, 1}, order)

	// Hooks run once.
	ctx.RunCloseHooks()
	assert.Len(t, order, 2)
}
