package middleware

import (
	"time"

	"github.com/thinhttp/thin-server/core/http"
	"github.com/thinhttp/thin-server/core/observability"
)

// AccessLog returns a middleware that logs one structured line per
// request once dispatch completes, including the final status code.
func AccessLog(logger observability.Logger) http.HandlerFunc {
	return func(ctx *http.Context) {
		start := time.Now()
		method := ctx.Method()
		path := ctx.Path()
		remote := ctx.RemoteAddr()

		ctx.OnClose(func() {
			fields := []observability.Field{
				observability.String("method", method),
				observability.String("path", path),
				observability.String("remote", remote),
				observability.Int("status", ctx.Response().StatusCode),
				observability.Duration("duration", time.Since(start)),
			}
			if id, ok := ctx.Get(RequestIDKey); ok {
				if s, ok := id.(string); ok {
					fields = append(fields, observability.String("request_id", s))
				}
			}
			logger.Info("request", fields...)
		})
	}
}
