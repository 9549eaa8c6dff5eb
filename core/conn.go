package core

import (
	"bufio"
	"errors"
	"io"
	"net"
	"time"

	"github.com/thinhttp/thin-server/core/http"
	"github.com/thinhttp/thin-server/core/observability"
	"github.com/thinhttp/thin-server/core/pools"
)

// Connection states. Transitions are strictly sequential: the next read
// does not begin until the current response has been fully written.
const (
	stateReading = iota
	stateDispatching
	stateWriting
	stateClosing
)

// serverConn owns one accepted transport stream and drives its
// read-decode-dispatch-encode-write cycle.
type serverConn struct {
	engine *Engine
	rwc    net.Conn
	br     *bufio.Reader
	bw     *bufio.Writer

	state    int
	requests int
}

func newServerConn(e *Engine, rwc net.Conn) *serverConn {
	return &serverConn{
		engine: e,
		rwc:    rwc,
		br:     pools.AcquireReader(rwc),
		bw:     pools.AcquireWriter(rwc),
	}
}

// serve runs the per-connection state machine until the peer goes away,
// a timeout or shutdown fires, or the keep-alive budget is spent. Any
// panic below the dispatch boundary is caught here so one bad
// connection cannot affect others.
func (c *serverConn) serve() {
	e := c.engine

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("connection panic",
				observability.String("remote", c.remoteAddr()),
				observability.Any("error", r),
			)
		}
		c.close()
	}()

	// Link the process-wide shutdown signal into any pending read.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-e.doneCh:
			c.rwc.SetReadDeadline(time.Now())
		case <-watchDone:
		}
	}()

	for {
		c.state = stateReading
		c.rwc.SetReadDeadline(time.Now().Add(e.readTimeout))

		// Shutdown may have fired while the deadline was being armed;
		// the watcher's forced deadline must not be overwritten.
		if e.shuttingDown() {
			return
		}

		req, err := http.ReadRequest(c.br, e.maxHeaderBytes, e.maxBodyBytes)
		if err != nil {
			c.handleReadError(err)
			return
		}

		c.requests++
		c.state = stateDispatching
		e.serveRequest(c.bw, c.remoteAddr(), req)

		c.state = stateWriting
		if err := c.bw.Flush(); err != nil {
			http.ReleaseRequest(req)
			return
		}

		keep := req.KeepAlive() && c.requests < e.maxRequestsPerConn && !e.shuttingDown()
		http.ReleaseRequest(req)
		if !keep {
			return
		}
	}
}

// handleReadError decides how a failed read ends the connection. Peer
// close, timeouts and shutdown are silent; protocol faults get a 400
// before close where feasible.
func (c *serverConn) handleReadError(err error) {
	e := c.engine

	switch {
	case err == io.EOF:
		// Peer closed between requests.
	case isTimeout(err):
		// Idle timeout or shutdown cancellation.
	case errors.Is(err, http.ErrMalformedRequest),
		errors.Is(err, http.ErrHeaderTooLarge):
		e.metrics.ObserveMalformedRequest()
		e.logger.Debug("malformed request",
			observability.String("remote", c.remoteAddr()),
			observability.Err(err),
		)
		c.writeRefusal(400)
	case errors.Is(err, http.ErrBodyTooLarge):
		e.metrics.ObserveMalformedRequest()
		e.logger.Debug("oversized request body",
			observability.String("remote", c.remoteAddr()),
			observability.Err(err),
		)
		c.writeRefusal(413)
	case errors.Is(err, http.ErrBodyTruncated):
		// Declared-length body ended early; the stream is broken, so
		// no response can be framed reliably.
		e.metrics.ObserveMalformedRequest()
	default:
		e.logger.Debug("read error",
			observability.String("remote", c.remoteAddr()),
			observability.Err(err),
		)
	}
}

func (c *serverConn) writeRefusal(code int) {
	resp := http.NewResponse()
	resp.StatusCode = code
	c.bw.Write(http.SerializeResponse(nil, resp))
	c.bw.Flush()
}

// close transitions to Closing: best-effort shutdown then close,
// swallowing secondary errors.
func (c *serverConn) close() {
	c.state = stateClosing
	if tc, ok := c.rwc.(*net.TCPConn); ok {
		tc.CloseWrite()
	}
	c.rwc.Close()

	pools.ReleaseReader(c.br)
	pools.ReleaseWriter(c.bw)
	c.engine.metrics.ConnClosed()
	c.engine.removeConn(c)
}

func (c *serverConn) remoteAddr() string {
	if addr := c.rwc.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
