package http

import (
	"strings"
	"sync"
)

// Request is a parsed HTTP/1.1 request. It is immutable after parsing,
// except for the body which is attached once the declared Content-Length
// bytes have been read from the transport.
type Request struct {
	Method    string
	Path      string // percent-decoded path, query stripped
	RawTarget string // original request target, untouched
	Proto     string

	// headers are stored under canonical keys; lookups are
	// case-insensitive and the last duplicate wins.
	headers map[string]string

	Query map[string]string

	ContentLength int
	Body          []byte
}

var requestPool = sync.Pool{
	New: func() any {
		return &Request{
			Body: make([]byte, 0, 1024),
		}
	},
}

// AcquireRequest returns a pooled request ready for parsing.
func AcquireRequest() *Request {
	return requestPool.Get().(*Request)
}

// ReleaseRequest resets the request and returns it to the pool.
func ReleaseRequest(req *Request) {
	req.Reset()
	requestPool.Put(req)
}

// Reset clears the request for reuse without freeing its maps and slices.
func (r *Request) Reset() {
	r.Method = ""
	r.Path = ""
	r.RawTarget = ""
	r.Proto = ""
	r.ContentLength = 0

	for k := range r.headers {
		delete(r.headers, k)
	}
	for k := range r.Query {
		delete(r.Query, k)
	}

	r.Body = r.Body[:0]
}

// SetHeader stores a header value. Duplicate keys overwrite (last wins).
func (r *Request) SetHeader(key, value string) {
	if r.headers == nil {
		r.headers = make(map[string]string, 8)
	}
	r.headers[canonicalKey(key)] = value
}

// Header returns the value for key, matching case-insensitively.
func (r *Request) Header(key string) string {
	if r.headers == nil {
		return ""
	}
	return r.headers[canonicalKey(key)]
}

// HeaderCount reports the number of distinct header keys.
func (r *Request) HeaderCount() int {
	return len(r.headers)
}

// KeepAlive reports whether the connection should stay open after this
// request. HTTP/1.0 closes unless keep-alive is explicit; HTTP/1.1 stays
// open unless the client asked to close.
func (r *Request) KeepAlive() bool {
	conn := strings.ToLower(r.Header("Connection"))
	if r.Proto == "HTTP/1.0" {
		return conn == "keep-alive"
	}
	return conn != "close"
}

// canonicalKey normalizes a header key to Canonical-Mime-Form. Keys that
// are already canonical are returned without allocation.
func canonicalKey(key string) string {
	upper := true
	for i := 0; i < len(key); i++ {
		c := key[i]
		if upper && 'a' <= c && c <= 'z' {
			return slowCanonicalKey(key)
		}
		if !upper && 'A' <= c && c <= 'Z' {
			return slowCanonicalKey(key)
		}
		upper = c == '-'
	}
	return key
}

func slowCanonicalKey(key string) string {
	b := []byte(key)
	upper := true
	for i, c := range b {
		if upper && 'a' <= c && c <= 'z' {
			b[i] = c - ('a' - 'A')
		} else if !upper && 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
		upper = c == '-'
	}
	return string(b)
}
