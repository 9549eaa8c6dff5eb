/*
Package thinserver provides a lightweight raw-socket HTTP/1.1 server
framework for Go: a wire codec, a keep-alive connection manager, a
prefix/parameter route table, and a linear middleware pipeline feeding
per-request handlers.

Quick Start

Basic usage example:

	package main

	import (
	    "github.com/thinhttp/thin-server/app"
	    "github.com/thinhttp/thin-server/config"
	    "github.com/thinhttp/thin-server/core/http"
	)

	func main() {
	    cfg := config.Default()
	    application, err := app.New(cfg)
	    if err != nil {
	        panic(err)
	    }

	    engine := application.Engine()
	    engine.GET("/hello", func(ctx *http.Context) {
	        ctx.String(200, "Hello, World!")
	    })
	    engine.GET("/users/:id", func(ctx *http.Context) {
	        ctx.JSON(200, map[string]string{"id": ctx.Param("id")})
	    })

	    application.Run()
	}

Routing

Route templates are split on '/'. A segment beginning with ':' binds
the request's segment value under that name; all other segments match
literally and case-sensitively. When several templates could match one
path, the one with more literal segments wins regardless of
registration order, so "/users/me" beats "/users/:id".

Middleware

A handler chain is the concatenation of engine middleware, group
middleware from outermost to innermost, route middleware, and the
terminal handler. Handlers share one Context per request; calling
Abort on it skips every handler that has not run yet. A response is
written at most once per request; the first send wins and later sends
are silent no-ops.

Modules

  - app: application lifecycle and graceful shutdown
  - config: YAML/dotenv configuration with hot reload
  - core: engine, accept loop, connection manager, router groups
  - core/http: wire codec, request/response, per-request context
  - core/router: route table with literal-count priority matching
  - core/middleware: dispatch pipeline and common middleware
  - core/pools: pooled buffered readers and writers
  - core/observability: structured logging and Prometheus metrics
*/
package thinserver
