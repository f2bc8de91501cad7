// Package progress reports progress of long-running downloads on a single rewritable terminal line.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// Reader reports the number of bytes read from an underlying reader to a Rewritable.
type Reader struct {
	io.Reader        // Reader to read from
	Bytes     int64  // total number of bytes read (so far)
	Total     int64  // expected total number of bytes, <= 0 if unknown
	Prefix    string // prefix of the progress line

	Progress *Rewritable // where to write progress to, may be nil
}

func (cr *Reader) Read(bytes []byte) (int, error) {
	count, err := cr.Reader.Read(bytes)
	cr.Bytes += int64(count)
	cr.Progress.Write(cr.String())
	return count, err
}

// String returns a human-readable description of the current progress.
func (cr *Reader) String() string {
	prefix := cr.Prefix
	if prefix == "" {
		prefix = "Read"
	} else {
		prefix += ":"
	}

	if cr.Total <= 0 {
		return fmt.Sprintf("%s %s", prefix, humanize.Bytes(uint64(cr.Bytes)))
	}
	return fmt.Sprintf("%s %s / %s", prefix, humanize.Bytes(uint64(cr.Bytes)), humanize.Bytes(uint64(cr.Total)))
}

// DefaultFlushInterval is a reasonable default flush interval
const DefaultFlushInterval = time.Second / 30

// Rewritable represents a single line of output that is rewritten on every flush.
//
// A nil Rewritable, or one with a nil Writer, discards all output.
// Rewritable is safe for concurrent use.
type Rewritable struct {
	Writer io.Writer

	FlushInterval time.Duration // minimum time between flushes of the progress

	m              sync.Mutex
	lastFlush      time.Time // last time we flushed
	longestContent int       // longest content ever flushed
	content        string    // current content
}

// Write sets the content of the line, and flushes it if the flush interval has elapsed.
func (rw *Rewritable) Write(value string) {
	if rw == nil || rw.Writer == nil {
		return
	}

	rw.m.Lock()
	defer rw.m.Unlock()

	rw.content = value
	rw.flush(false)
}

// Flush writes the current content to the underlying writer.
// Unless force is set, flushing only happens if the flush interval has elapsed.
func (rw *Rewritable) Flush(force bool) {
	if rw == nil || rw.Writer == nil {
		return
	}

	rw.m.Lock()
	defer rw.m.Unlock()

	rw.flush(force)
}

func (rw *Rewritable) flush(force bool) {
	if !(force || time.Since(rw.lastFlush) > rw.FlushInterval) {
		return
	}

	// determine the longest string we ever flushed to the output
	if len(rw.content) >= rw.longestContent {
		rw.longestContent = len(rw.content)
	}

	// add a blanking space behind the content
	blank := strings.Repeat(" ", rw.longestContent-len(rw.content))
	fmt.Fprintf(rw.Writer, "\r%s%s", rw.content, blank)

	rw.lastFlush = time.Now()
}

// Close blanks the line and resets the cursor to its start.
func (rw *Rewritable) Close() {
	if rw == nil || rw.Writer == nil {
		return
	}

	rw.m.Lock()
	defer rw.m.Unlock()

	if rw.longestContent == 0 {
		return
	}

	rw.content = ""
	rw.flush(true)
	rw.Writer.Write([]byte("\r"))
	rw.longestContent = 0
}
