package http

// Response is an incrementally built HTTP response. Handlers mutate it
// until the first write-out; after that it is frozen and further
// mutation attempts are ignored by the owning Context.
type Response struct {
	StatusCode int
	headers    map[string]string
	Body       []byte
}

// NewResponse returns an empty response defaulting to 200 OK.
func NewResponse() *Response {
	return &Response{StatusCode: 200}
}

// Reset clears the response for reuse.
func (r *Response) Reset() {
	r.StatusCode = 200
	for k := range r.headers {
		delete(r.headers, k)
	}
	r.Body = r.Body[:0]
}

// SetHeader stores a header value under its canonical key.
func (r *Response) SetHeader(key, value string) {
	if r.headers == nil {
		r.headers = make(map[string]string, 8)
	}
	r.headers[canonicalKey(key)] = value
}

// Header returns the value for key, matching case-insensitively.
func (r *Response) Header(key string) string {
	if r.headers == nil {
		return ""
	}
	return r.headers[canonicalKey(key)]
}

// SerializeResponse appends the wire form of resp to buf and returns the
// extended slice: status line with a fixed reason-phrase table, headers,
// a synthesized Content-Length when the caller did not set one, a blank
// line, then the body.
func SerializeResponse(buf []byte, resp *Response) []byte {
	buf = append(buf, "HTTP/1.1 "...)
	buf = appendInt(buf, resp.StatusCode)
	buf = append(buf, ' ')
	buf = append(buf, StatusText(resp.StatusCode)...)
	buf = append(buf, '\r', '\n')

	hasLength := false
	for k, v := range resp.headers {
		if k == "Content-Length" {
			hasLength = true
		}
		buf = append(buf, k...)
		buf = append(buf, ':', ' ')
		buf = append(buf, v...)
		buf = append(buf, '\r', '\n')
	}

	if !hasLength {
		buf = append(buf, "Content-Length: "...)
		buf = appendInt(buf, len(resp.Body))
		buf = append(buf, '\r', '\n')
	}

	buf = append(buf, '\r', '\n')
	buf = append(buf, resp.Body...)
	return buf
}

// StatusText returns the reason phrase for the given status code.
// Unknown codes map to a generic phrase.
func StatusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 204:
		return "No Content"
	case 301:
		return "Moved Permanently"
	case 302:
		return "Found"
	case 304:
		return "Not Modified"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 413:
		return "Payload Too Large"
	case 500:
		return "Internal Server Error"
	case 502:
		return "Bad Gateway"
	case 503:
		return "Service Unavailable"
	default:
		return "Unknown"
	}
}

// appendInt appends the decimal form of i to b.
func appendInt(b []byte, i int) []byte {
	if i == 0 {
		return append(b, '0')
	}
	if i < 0 {
		b = append(b, '-')
		i = -i
	}

	var digits [20]byte
	n := 0
	for i > 0 {
		digits[n] = byte('0' + i%10)
		i /= 10
		n++
	}
	for n > 0 {
		n--
		b = append(b, digits[n])
	}
	return b
}
