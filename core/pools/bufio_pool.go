// Package pools provides shared object pools for per-connection
// buffered I/O.
package pools

import (
	"bufio"
	"io"
	"sync"
)

// Buffer sizes chosen for typical HTTP header and response workloads.
const (
	readerSize = 8 << 10
	writerSize = 4 << 10
)

var readerPool = sync.Pool{
	New: func() any {
		return bufio.NewReaderSize(nil, readerSize)
	},
}

var writerPool = sync.Pool{
	New: func() any {
		return bufio.NewWriterSize(nil, writerSize)
	},
}

// AcquireReader returns a pooled buffered reader bound to r.
func AcquireReader(r io.Reader) *bufio.Reader {
	br := readerPool.Get().(*bufio.Reader)
	br.Reset(r)
	return br
}

// ReleaseReader detaches and pools the reader.
func ReleaseReader(br *bufio.Reader) {
	br.Reset(nil)
	readerPool.Put(br)
}

// AcquireWriter returns a pooled buffered writer bound to w.
func AcquireWriter(w io.Writer) *bufio.Writer {
	bw := writerPool.Get().(*bufio.Writer)
	bw.Reset(w)
	return bw
}

// ReleaseWriter detaches and pools the writer. Pending bytes are
// dropped; callers flush before releasing.
func ReleaseWriter(bw *bufio.Writer) {
	bw.Reset(nil)
	writerPool.Put(bw)
}
