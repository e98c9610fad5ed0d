package link

import "time"

// TimerHandle identifies a timer scheduled with Transport.AddTimer.
// The zero value means "no timer".
type TimerHandle uint64

// Transport is the byte link and clock a Session runs on.
//
// Write and Flush may block per the implementation's own contract; all other
// methods must return immediately. Timer callbacks must not run concurrently
// with other Session entry points: implementations either fire them from the
// goroutine that feeds the session, or post them into that goroutine's event
// queue.
type Transport interface {
	// Write emits raw bytes. No flow-control signal is returned; an error
	// means the bytes may not have reached the wire.
	Write(p []byte) error
	// Flush makes the bytes written since the last Flush atomic on the wire.
	Flush() error
	// Now returns a monotonic clock in milliseconds. It may wrap.
	Now() uint32
	// AddTimer schedules fn to run once after delay.
	AddTimer(delay time.Duration, fn func()) TimerHandle
	// CancelTimer cancels a timer on a best-effort basis; fn may still run.
	CancelTimer(h TimerHandle)
}

// DataHandler receives the payload of each validated inbound data frame,
// exactly once and strictly in sequence order. It is called synchronously
// from FeedByte/FeedBytes. payload is only valid for the duration of the call.
type DataHandler func(payload []byte)
