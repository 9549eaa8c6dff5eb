package middleware

import (
	"github.com/google/uuid"

	"github.com/thinhttp/thin-server/core/http"
)

// RequestIDHeader is the header carrying the per-request ID.
const RequestIDHeader = "X-Request-ID"

// RequestIDKey is the scratch-store key the request ID is stashed
// under for downstream handlers.
const RequestIDKey = "request_id"

// RequestID returns a middleware that tags each request with a unique
// ID, reusing the client-supplied one when present.
func RequestID() http.HandlerFunc {
	return RequestIDWithGenerator(func() string {
		return uuid.New().String()
	})
}

// RequestIDWithGenerator returns a RequestID middleware using a custom
// ID generator.
func RequestIDWithGenerator(generator func() string) http.HandlerFunc {
	return func(ctx *http.Context) {
		id := ctx.Header(RequestIDHeader)
		if id == "" {
			id = generator()
		}
		ctx.Set(RequestIDKey, id)
		ctx.SetHeader(RequestIDHeader, id)
	}
}
