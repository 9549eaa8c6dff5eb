package http

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// DefaultMaxHeaderBytes bounds the scan window for the header block. A
// client that never sends the blank-line terminator cannot grow memory
// past this limit.
const DefaultMaxHeaderBytes = 64 << 10

// DefaultMaxBodyBytes bounds the declared request body size. The body
// buffer is sized from the client-supplied Content-Length, so without a
// cap a single request line could demand arbitrary memory.
const DefaultMaxBodyBytes = 4 << 20

var (
	// ErrMalformedRequest reports an unparsable request line or header.
	ErrMalformedRequest = errors.New("malformed HTTP request")

	// ErrHeaderTooLarge reports a header block exceeding the scan window.
	ErrHeaderTooLarge = errors.New("header block exceeds scan window")

	// ErrBodyTooLarge reports a declared Content-Length exceeding the
	// body size limit.
	ErrBodyTooLarge = errors.New("request body exceeds size limit")

	// ErrBodyTruncated reports end-of-stream before Content-Length bytes
	// arrived.
	ErrBodyTruncated = errors.New("request body truncated")
)

// ParseRequest parses a complete in-memory request: header block, then
// up to Content-Length body bytes from the remainder of data. The header
// terminator must appear within maxHeader bytes (DefaultMaxHeaderBytes
// when maxHeader <= 0).
func ParseRequest(data []byte, maxHeader int) (*Request, error) {
	if maxHeader <= 0 {
		maxHeader = DefaultMaxHeaderBytes
	}

	headerEnd, bodyStart := findHeaderEnd(data)
	if headerEnd == -1 {
		if len(data) >= maxHeader {
			return nil, ErrHeaderTooLarge
		}
		return nil, ErrMalformedRequest
	}
	if headerEnd > maxHeader {
		return nil, ErrHeaderTooLarge
	}

	req := AcquireRequest()
	if err := parseHeaderBlock(req, data[:headerEnd]); err != nil {
		ReleaseRequest(req)
		return nil, err
	}

	if req.ContentLength > 0 {
		body := data[bodyStart:]
		if len(body) > req.ContentLength {
			body = body[:req.ContentLength]
		}
		req.Body = append(req.Body[:0], body...)
	}

	return req, nil
}

// ReadRequest reads one request from br: header lines within a bounded
// window, then exactly Content-Length body bytes. Bytes already buffered
// past the header terminator are consumed before br reads more from the
// transport. A declared length above maxBody (DefaultMaxBodyBytes when
// maxBody <= 0) is rejected before any body allocation. Premature
// end-of-stream while the body is outstanding is a protocol error
// (ErrBodyTruncated), not a short body.
func ReadRequest(br *bufio.Reader, maxHeader, maxBody int) (*Request, error) {
	if maxHeader <= 0 {
		maxHeader = DefaultMaxHeaderBytes
	}
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	req := AcquireRequest()

	scanned := 0
	first := true
	for {
		line, err := readLine(br, maxHeader-scanned)
		if err != nil {
			ReleaseRequest(req)
			if first && err == io.EOF {
				return nil, io.EOF
			}
			return nil, err
		}
		scanned += len(line) + 2

		if len(line) == 0 {
			if first {
				// Tolerate a stray CRLF before the request line.
				continue
			}
			break
		}

		if first {
			if err := parseRequestLine(req, line); err != nil {
				ReleaseRequest(req)
				return nil, err
			}
			first = false
			continue
		}

		parseHeaderLine(req, line)
	}

	if first {
		ReleaseRequest(req)
		return nil, ErrMalformedRequest
	}

	length, err := contentLength(req)
	if err != nil {
		ReleaseRequest(req)
		return nil, err
	}
	if length > maxBody {
		ReleaseRequest(req)
		return nil, ErrBodyTooLarge
	}

	req.ContentLength = length
	if req.ContentLength > 0 {
		if cap(req.Body) < req.ContentLength {
			req.Body = make([]byte, req.ContentLength)
		} else {
			req.Body = req.Body[:req.ContentLength]
		}
		if _, err := io.ReadFull(br, req.Body); err != nil {
			ReleaseRequest(req)
			return nil, ErrBodyTruncated
		}
	}

	return req, nil
}

// readLine reads a single CRLF- or LF-terminated line, stripping the
// terminator. It fails with ErrHeaderTooLarge once limit is exhausted.
func readLine(br *bufio.Reader, limit int) ([]byte, error) {
	if limit <= 0 {
		return nil, ErrHeaderTooLarge
	}

	var line []byte
	for {
		frag, err := br.ReadSlice('\n')
		line = append(line, frag...)
		if len(line) > limit {
			return nil, ErrHeaderTooLarge
		}
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF && len(line) == 0 {
			return nil, io.EOF
		}
		return nil, err
	}

	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, nil
}

func findHeaderEnd(data []byte) (headerEnd, bodyStart int) {
	if i := bytes.Index(data, []byte("\r\n\r\n")); i != -1 {
		return i, i + 4
	}
	if i := bytes.Index(data, []byte("\n\n")); i != -1 {
		return i, i + 2
	}
	return -1, -1
}

func parseHeaderBlock(req *Request, block []byte) error {
	lineEnd := bytes.IndexByte(block, '\n')
	var rest []byte
	if lineEnd == -1 {
		rest = nil
		lineEnd = len(block)
	} else {
		rest = block[lineEnd+1:]
	}

	line := trimCR(block[:lineEnd])
	if err := parseRequestLine(req, line); err != nil {
		return err
	}

	for len(rest) > 0 {
		lineEnd = bytes.IndexByte(rest, '\n')
		if lineEnd == -1 {
			parseHeaderLine(req, trimCR(rest))
			break
		}
		parseHeaderLine(req, trimCR(rest[:lineEnd]))
		rest = rest[lineEnd+1:]
	}

	length, err := contentLength(req)
	if err != nil {
		return err
	}
	req.ContentLength = length
	return nil
}

// parseRequestLine parses "METHOD SP target SP version". Fewer than
// three tokens is malformed.
func parseRequestLine(req *Request, line []byte) error {
	s := string(line)

	method, rest, ok := strings.Cut(s, " ")
	if !ok {
		return ErrMalformedRequest
	}
	target, proto, ok := strings.Cut(rest, " ")
	if !ok || method == "" || target == "" || proto == "" {
		return ErrMalformedRequest
	}

	req.Method = method
	req.RawTarget = target
	req.Proto = proto

	path := target
	if qi := strings.IndexByte(target, '?'); qi != -1 {
		path = target[:qi]
		parseQuery(req, target[qi+1:])
	}

	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}
	req.Path = path
	return nil
}

// parseHeaderLine splits at the first colon; lines without one are
// ignored rather than rejected.
func parseHeaderLine(req *Request, line []byte) {
	colon := bytes.IndexByte(line, ':')
	if colon <= 0 {
		return
	}
	key := string(bytes.TrimSpace(line[:colon]))
	value := string(bytes.TrimSpace(line[colon+1:]))
	if key != "" {
		req.SetHeader(key, value)
	}
}

// parseQuery splits pairs on '&' and '=' with percent-decoding. A pair
// that fails to decode keeps its raw form.
func parseQuery(req *Request, raw string) {
	if req.Query == nil {
		req.Query = make(map[string]string, 4)
	}

	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}

		key, value, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		req.Query[key] = value
	}
}

// contentLength reads the declared body length. A Content-Length that
// is present but non-numeric or negative is malformed, not absent.
func contentLength(req *Request) (int, error) {
	v := req.Header("Content-Length")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, ErrMalformedRequest
	}
	return n, nil
}

func trimCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}
