package middleware

import (
	"strings"

	"github.com/thinhttp/thin-server/core/http"
)

// CORSConfig controls the CORS middleware.
type CORSConfig struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
}

// DefaultCORSConfig allows every origin with the common method set.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}
}

// CORS returns a middleware that sets CORS response headers and
// short-circuits preflight requests with a 204.
func CORS(cfg CORSConfig) http.HandlerFunc {
	origins := strings.Join(cfg.AllowOrigins, ", ")
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")

	return func(ctx *http.Context) {
		ctx.SetHeader("Access-Control-Allow-Origin", origins)
		ctx.SetHeader("Access-Control-Allow-Methods", methods)
		ctx.SetHeader("Access-Control-Allow-Headers", headers)

		if ctx.Method() == "OPTIONS" {
			ctx.Abort()
			ctx.NoContent()
		}
	}
}
