package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinhttp/thin-server/core/http"
)

func noop(_ *http.Context) {}

func chain() []http.HandlerFunc {
	return []http.HandlerFunc{noop}
}

func TestTableLiteralPriority(t *testing.T) {
	t.Parallel()

	// The literal route must win regardless of registration order.
	orders := []struct {
		name      string
		templates []string
	}{
		{"param first", []string{"/users/:id", "/users/me"}},
		{"literal first", []string{"/users/me", "/users/:id"}},
	}

	for _, tt := range orders {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			table := NewTable()
			for _, tmpl := range tt.templates {
				table.Add("GET", tmpl, chain(), "")
			}

			params := map[string]string{}
			bind := func(k, v string) { params[k] = v }

			r := table.Find("GET", "/users/me", bind)
			require.NotNil(t, r)
			assert.Equal(t, "/users/me", r.Template)
			assert.Empty(t, params, "literal match must bind no parameters")

			r = table.Find("GET", "/users/42", bind)
			require.NotNil(t, r)
			assert.Equal(t, "/users/:id", r.Template)
			assert.Equal(t, map[string]string{"id": "42"}, params)
		})
	}
}

func TestTableMethodFilter(t *testing.T) {
	t.Parallel()

	table := NewTable()
	table.Add("POST", "/things", chain(), "")

	assert.Nil(t, table.Find("GET", "/things", nil))

	// Method matching is case-insensitive.
	assert.NotNil(t, table.Find("post", "/things", nil))
	assert.NotNil(t, table.Find("POST", "/things", nil))
}

func TestTableNoMatch(t *testing.T) {
	t.Parallel()

	table := NewTable()
	table.Add("GET", "/a/b", chain(), "")

	tests := []string{
		"/a",
		"/a/b/c",
		"/a/B",
		"/x/y",
		"/",
	}
	for _, path := range tests {
		assert.Nil(t, table.Find("GET", path, nil), "path %s", path)
	}
}

func TestTableRootRoute(t *testing.T) {
	t.Parallel()

	table := NewTable()
	table.Add("GET", "/", chain(), "")

	assert.NotNil(t, table.Find("GET", "/", nil))
	assert.Nil(t, table.Find("GET", "/a", nil))
}

func TestTableFailedMatchBindsNothing(t *testing.T) {
	t.Parallel()

	table := NewTable()
	table.Add("GET", "/users/:id/posts", chain(), "")

	params := map[string]string{}
	r := table.Find("GET", "/users/42/comments", func(k, v string) { params[k] = v })

	assert.Nil(t, r)
	assert.Empty(t, params)
}

func TestTableMultipleParams(t *testing.T) {
	t.Parallel()

	table := NewTable()
	table.Add("GET", "/orgs/:org/repos/:repo", chain(), "")

	params := map[string]string{}
	r := table.Find("GET", "/orgs/acme/repos/widget", func(k, v string) { params[k] = v })

	require.NotNil(t, r)
	assert.Equal(t, map[string]string{"org": "acme", "repo": "widget"}, params)
}

func TestTableStableOrderAmongEqualLiterals(t *testing.T) {
	t.Parallel()

	// Equal literal counts: registration order breaks the tie, so the
	// first registered route wins.
	table := NewTable()
	table.Add("GET", "/a/:x", chain(), "first")
	table.Add("GET", "/a/:y", chain(), "second")

	r := table.Find("GET", "/a/1", nil)
	require.NotNil(t, r)
	assert.Equal(t, "first", r.Tag)
}

func TestCompileLiteralCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		template string
		literals int
	}{
		{"/", 1},
		{"/users", 1},
		{"/users/:id", 1},
		{"/users/me", 2},
		{"/a/:b/c/:d", 2},
	}

	for _, tt := range tests {
		p := Compile(tt.template)
		assert.Equal(t, tt.literals, p.Literals(), "template %s", tt.template)
	}
}

func TestTableTagPropagation(t *testing.T) {
	t.Parallel()

	table := NewTable()
	table.Add("GET", "/tagged", chain(), "admin")

	r := table.Find("GET", "/tagged", nil)
	require.NotNil(t, r)
	assert.Equal(t, "admin", r.Tag)
}

func BenchmarkTableFind(b *testing.B) {
	table := NewTable()
	table.Add("GET", "/users/me", chain(), "")
	table.Add("GET", "/users/:id", chain(), "")
	table.Add("GET", "/orgs/:org/repos/:repo", chain(), "")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		table.Find("GET", "/orgs/acme/repos/widget", nil)
	}
}
