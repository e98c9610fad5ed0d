package uart

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanPost runs posted callbacks on the test goroutine via a channel.
func chanPost(ch chan func()) PostFunc {
	return func(fn func()) bool {
		ch <- fn
		return true
	}
}

func TestTransport_WriteFlush(t *testing.T) {
	var out bytes.Buffer
	tr := NewTransport(&out, 64, chanPost(make(chan func(), 1)))

	require.NoError(t, tr.Write([]byte{0x7E, 0x80}))
	require.NoError(t, tr.Write([]byte{0x41}))
	assert.Zero(t, out.Len(), "nothing reaches the stream before Flush")

	require.NoError(t, tr.Flush())
	assert.Equal(t, []byte{0x7E, 0x80, 0x41}, out.Bytes())
}

func TestTransport_Now(t *testing.T) {
	tr := NewTransport(&bytes.Buffer{}, 64, chanPost(make(chan func(), 1)))

	first := tr.Now()
	time.Sleep(15 * time.Millisecond)
	assert.GreaterOrEqual(t, tr.Now()-first, uint32(10))
}

func TestTransport_Timers(t *testing.T) {
	assert := assert.New(t)

	posted := make(chan func(), 4)
	tr := NewTransport(&bytes.Buffer{}, 64, chanPost(posted))

	fired := make(chan string, 4)
	tr.AddTimer(10*time.Millisecond, func() { fired <- "kept" })
	h := tr.AddTimer(10*time.Millisecond, func() { fired <- "canceled" })
	assert.Equal(2, tr.ActiveTimers())

	tr.CancelTimer(h)
	tr.CancelTimer(h)
	assert.Equal(1, tr.ActiveTimers())

	select {
	case fn := <-posted:
		fn()
	case <-time.After(time.Second):
		t.Fatal("timer was not posted")
	}
	assert.Equal("kept", <-fired)
	assert.Equal(0, tr.ActiveTimers())

	select {
	case <-posted:
		t.Fatal("canceled timer was posted")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestTransport_ZeroDelayTimer(t *testing.T) {
	posted := make(chan func(), 1)
	tr := NewTransport(&bytes.Buffer{}, 64, chanPost(posted))

	tr.AddTimer(0, func() {})

	select {
	case <-posted:
	case <-time.After(time.Second):
		t.Fatal("zero delay timer was not posted")
	}
}

func TestTransport_StopTimers(t *testing.T) {
	posted := make(chan func(), 4)
	tr := NewTransport(&bytes.Buffer{}, 64, chanPost(posted))

	for i := 0; i < 3; i++ {
		tr.AddTimer(20*time.Millisecond, func() {})
	}
	tr.StopTimers()
	assert.Equal(t, 0, tr.ActiveTimers())

	select {
	case <-posted:
		t.Fatal("stopped timer was posted")
	case <-time.After(50 * time.Millisecond):
	}
}
