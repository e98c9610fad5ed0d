package uart

import (
	"bufio"
	"io"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-arqlink/link"
)

// idleDelay parks a freshly created timer until it is registered.
const idleDelay = time.Duration(1<<63 - 1)

// PostFunc hands a timer callback to the goroutine that owns the session.
// It reports false if the callback was dropped because the owner stopped.
type PostFunc func(fn func()) bool

// Transport is a link.Transport over a byte stream.
//
// Writes are buffered and reach the stream on Flush, so a frame goes out in
// one write. Timer callbacks never run on the timer goroutine: they are
// handed to post, which queues them for the goroutine that feeds the
// session.
type Transport struct {
	w     *bufio.Writer
	start time.Time
	post  PostFunc

	timers     *xsync.MapOf[link.TimerHandle, *time.Timer]
	nextHandle atomic.Uint64
}

var _ link.Transport = (*Transport)(nil)

// NewTransport creates a Transport writing to w. bufSize is the write
// buffer size; a frame larger than it is written in several pieces.
func NewTransport(w io.Writer, bufSize int, post PostFunc) *Transport {
	return &Transport{
		w:      bufio.NewWriterSize(w, bufSize),
		start:  time.Now(),
		post:   post,
		timers: xsync.NewMapOf[link.TimerHandle, *time.Timer](),
	}
}

// Write buffers p.
func (t *Transport) Write(p []byte) error {
	_, err := t.w.Write(p)
	return err
}

// Flush writes the buffered bytes to the stream.
func (t *Transport) Flush() error {
	return t.w.Flush()
}

// Now returns the milliseconds elapsed since the transport was created.
func (t *Transport) Now() uint32 {
	return uint32(time.Since(t.start) / time.Millisecond)
}

// AddTimer posts fn to the session goroutine after delay.
func (t *Transport) AddTimer(delay time.Duration, fn func()) link.TimerHandle {
	h := link.TimerHandle(t.nextHandle.Add(1))

	tm := time.AfterFunc(idleDelay, func() {
		if _, ok := t.timers.LoadAndDelete(h); ok {
			t.post(fn)
		}
	})
	t.timers.Store(h, tm)
	tm.Reset(delay)

	return h
}

// CancelTimer stops the timer h if it has not fired yet.
func (t *Transport) CancelTimer(h link.TimerHandle) {
	if tm, ok := t.timers.LoadAndDelete(h); ok {
		tm.Stop()
	}
}

// ActiveTimers returns the number of timers that have not fired or been
// canceled.
func (t *Transport) ActiveTimers() int {
	return t.timers.Size()
}

// StopTimers cancels every pending timer.
func (t *Transport) StopTimers() {
	t.timers.Range(func(h link.TimerHandle, tm *time.Timer) bool {
		tm.Stop()
		t.timers.Delete(h)

		return true
	})
}
