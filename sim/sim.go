// Package sim provides a deterministic link.Transport for tests and
// simulations.
//
// Time only moves when Advance is called. Timers fire synchronously from
// Advance, in deadline order, with the clock set to each timer's own
// deadline. Every flushed frame is captured and, when a peer is attached,
// queued for delivery by Deliver or Wire.Pump.
package sim

import (
	"errors"
	"sort"
	"time"

	"github.com/armon/circbuf"

	"github.com/arloliu/go-arqlink/link"
)

// DefaultTapSize is the default capacity of the wire tap in bytes.
const DefaultTapSize = 4096

// ErrNoPeer is returned by Deliver when no peer is attached.
var ErrNoPeer = errors.New("sim: no peer attached")

// FrameFilter inspects a flushed frame on its way to the peer.
// It returns the bytes to deliver, or nil to drop the frame.
type FrameFilter func(frame []byte) []byte

// Option configures a Transport.
type Option func(*Transport)

// WithStartTime sets the initial clock value in milliseconds.
func WithStartTime(ms uint32) Option {
	return func(t *Transport) { t.clock = uint64(ms) }
}

// WithTapSize sets the capacity of the wire tap.
func WithTapSize(n int64) Option {
	return func(t *Transport) { t.tapSize = n }
}

type timer struct {
	handle   link.TimerHandle
	deadline uint64
	fn       func()
}

// Transport is a simulated byte link with a manual millisecond clock.
// It is not safe for concurrent use.
type Transport struct {
	clock      uint64
	nextHandle link.TimerHandle
	timers     []*timer

	pending []byte
	frames  [][]byte
	outbox  [][]byte
	tap     *circbuf.Buffer
	tapSize int64

	peer     func([]byte) error
	filter   FrameFilter
	writeErr error
}

var _ link.Transport = (*Transport)(nil)

// New creates a Transport with the clock at 0 ms.
func New(opts ...Option) *Transport {
	t := &Transport{tapSize: DefaultTapSize}
	for _, opt := range opts {
		opt(t)
	}

	tap, err := circbuf.NewBuffer(t.tapSize)
	if err != nil {
		tap, _ = circbuf.NewBuffer(DefaultTapSize)
	}
	t.tap = tap

	return t
}

// Write appends p to the frame being assembled.
func (t *Transport) Write(p []byte) error {
	if t.writeErr != nil {
		return t.writeErr
	}
	t.pending = append(t.pending, p...)
	_, _ = t.tap.Write(p)

	return nil
}

// Flush closes the frame being assembled. It is captured in Frames and, when
// a peer is attached, queued for delivery.
func (t *Transport) Flush() error {
	if t.writeErr != nil {
		return t.writeErr
	}
	if len(t.pending) == 0 {
		return nil
	}

	frame := make([]byte, len(t.pending))
	copy(frame, t.pending)
	t.pending = t.pending[:0]

	t.frames = append(t.frames, frame)
	if t.peer != nil {
		t.outbox = append(t.outbox, frame)
	}

	return nil
}

// Now returns the simulated clock in milliseconds.
func (t *Transport) Now() uint32 {
	return uint32(t.clock)
}

// AddTimer schedules fn to run once Advance reaches now+delay.
// Sub-millisecond delays are rounded up.
func (t *Transport) AddTimer(delay time.Duration, fn func()) link.TimerHandle {
	if delay < 0 {
		delay = 0
	}
	ms := uint64((delay + time.Millisecond - 1) / time.Millisecond)

	t.nextHandle++
	t.timers = append(t.timers, &timer{
		handle:   t.nextHandle,
		deadline: t.clock + ms,
		fn:       fn,
	})

	return t.nextHandle
}

// CancelTimer removes the timer h. Unknown handles are ignored.
func (t *Transport) CancelTimer(h link.TimerHandle) {
	for i, tm := range t.timers {
		if tm.handle == h {
			t.timers = append(t.timers[:i], t.timers[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d, firing every timer that comes due.
// Timers scheduled by a firing callback also fire if they are due before
// the new time.
func (t *Transport) Advance(d time.Duration) {
	target := t.clock + uint64(d/time.Millisecond)

	for {
		tm := t.nextDue(target)
		if tm == nil {
			break
		}
		t.clock = tm.deadline
		t.CancelTimer(tm.handle)
		tm.fn()
	}

	t.clock = target
}

// nextDue returns the earliest timer due at or before target. Timers with
// the same deadline fire in registration order.
func (t *Transport) nextDue(target uint64) *timer {
	var next *timer
	for _, tm := range t.timers {
		if tm.deadline > target {
			continue
		}
		if next == nil || tm.deadline < next.deadline ||
			(tm.deadline == next.deadline && tm.handle < next.handle) {
			next = tm
		}
	}

	return next
}

// Pending returns the deadlines of the armed timers in firing order.
func (t *Transport) Pending() []uint32 {
	sorted := make([]*timer, len(t.timers))
	copy(sorted, t.timers)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].deadline != sorted[j].deadline {
			return sorted[i].deadline < sorted[j].deadline
		}
		return sorted[i].handle < sorted[j].handle
	})

	deadlines := make([]uint32, len(sorted))
	for i, tm := range sorted {
		deadlines[i] = uint32(tm.deadline)
	}

	return deadlines
}

// Frames returns the flushed frames captured so far.
func (t *Transport) Frames() [][]byte {
	return t.frames
}

// TakeFrames returns the captured frames and clears the capture.
func (t *Transport) TakeFrames() [][]byte {
	frames := t.frames
	t.frames = nil

	return frames
}

// Unflushed returns the bytes written since the last Flush.
func (t *Transport) Unflushed() []byte {
	return t.pending
}

// Tail returns the most recent bytes written, up to the tap capacity.
func (t *Transport) Tail() []byte {
	return t.tap.Bytes()
}

// TotalWritten returns the number of bytes ever written.
func (t *Transport) TotalWritten() int64 {
	return t.tap.TotalWritten()
}

// SetWriteError makes Write and Flush fail with err. A nil err restores
// normal operation.
func (t *Transport) SetWriteError(err error) {
	t.writeErr = err
}

// SetPeer attaches the receive side of the peer, typically a session's
// FeedBytes.
func (t *Transport) SetPeer(feed func([]byte) error) {
	t.peer = feed
}

// SetFilter installs a filter applied to frames on their way to the peer.
func (t *Transport) SetFilter(f FrameFilter) {
	t.filter = f
}

// InFlight returns the number of frames queued for the peer.
func (t *Transport) InFlight() int {
	return len(t.outbox)
}

// Deliver feeds every queued frame to the peer, in order, and returns how
// many were handed over. Frames flushed while delivering stay queued.
func (t *Transport) Deliver() (int, error) {
	if t.peer == nil {
		return 0, ErrNoPeer
	}

	batch := t.outbox
	t.outbox = nil

	delivered := 0
	for i, frame := range batch {
		if t.filter != nil {
			frame = t.filter(frame)
		}
		if frame == nil {
			continue
		}
		if err := t.peer(frame); err != nil {
			t.outbox = append(batch[i+1:], t.outbox...)
			return delivered, err
		}
		delivered++
	}

	return delivered, nil
}
