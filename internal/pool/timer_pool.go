// Package pool keeps reusable timers and byte buffers for the serial runtime.
package pool

import (
	"sync"
	"time"
)

var timerPool sync.Pool

// GetTimer returns a timer for the given duration d from the pool.
//
// Return back the timer to the pool with PutTimer.
func GetTimer(d time.Duration) *time.Timer {
	if v := timerPool.Get(); v != nil {
		t, _ := v.(*time.Timer)
		if t.Reset(d) {
			// Timer was active, drain the channel to prevent potential leaks
			select {
			case <-t.C:
			default:
			}
		}

		return t
	}

	return time.NewTimer(d)
}

// PutTimer returns timer to the pool.
//
// t cannot be accessed after returning to the pool.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		// Drain t.C if it wasn't obtained by the caller yet.
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

// WaitTimeout waits until ch yields a value or is closed, d elapses, or done
// is closed, using a pooled timer. It reports false only on timeout or done;
// a closed ch counts as a completed wait and yields the zero value.
func WaitTimeout[T any](ch <-chan T, done <-chan struct{}, d time.Duration) (T, bool) {
	t := GetTimer(d)
	defer PutTimer(t)

	var zero T
	select {
	case v := <-ch:
		return v, true
	case <-t.C:
		return zero, false
	case <-done:
		return zero, false
	}
}
