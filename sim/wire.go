package sim

import (
	"errors"
	"time"
)

// maxPumpRounds bounds Pump so a misbehaving pair cannot spin forever.
const maxPumpRounds = 10000

// ErrLivelock is returned by Pump when frames keep flowing without end.
var ErrLivelock = errors.New("sim: frames still in flight after too many rounds")

// Feeder is the receive side of a session.
type Feeder interface {
	FeedBytes(p []byte) error
}

// Wire joins two transports into a lossless full-duplex link with a shared
// clock. Loss and corruption are injected with Transport.SetFilter.
type Wire struct {
	A, B *Transport
}

// Connect wires a to the peer fb and b to the peer fa: frames flushed on a
// are fed to fb, frames flushed on b are fed to fa.
func Connect(a *Transport, fa Feeder, b *Transport, fb Feeder) *Wire {
	a.SetPeer(fb.FeedBytes)
	b.SetPeer(fa.FeedBytes)

	return &Wire{A: a, B: b}
}

// Pump delivers queued frames in both directions until none are in flight.
func (w *Wire) Pump() error {
	for i := 0; i < maxPumpRounds; i++ {
		if w.A.InFlight() == 0 && w.B.InFlight() == 0 {
			return nil
		}
		if _, err := w.A.Deliver(); err != nil {
			return err
		}
		if _, err := w.B.Deliver(); err != nil {
			return err
		}
	}

	return ErrLivelock
}

// Advance moves both clocks forward by d in one millisecond steps, firing
// due timers on A then B and pumping frames after every step.
func (w *Wire) Advance(d time.Duration) error {
	w.A.Advance(0)
	w.B.Advance(0)
	if err := w.Pump(); err != nil {
		return err
	}

	steps := int(d / time.Millisecond)
	for i := 0; i < steps; i++ {
		w.A.Advance(time.Millisecond)
		w.B.Advance(time.Millisecond)
		if err := w.Pump(); err != nil {
			return err
		}
	}

	return nil
}

// Now returns the shared clock.
func (w *Wire) Now() uint32 {
	return w.A.Now()
}
