package uart

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-arqlink/link"
	"github.com/arloliu/go-arqlink/logger"
)

// newTestConfig creates a Config with a silent logger and short timeouts.
func newTestConfig(t *testing.T, opts ...Option) *Config {
	t.Helper()

	defaults := []Option{
		WithLogger(logger.NewSlogWriter(io.Discard, logger.DebugLevel, false)),
		WithSendTimeout(time.Second),
		WithCloseTimeout(time.Second),
		WithLinkOptions(link.WithAckDelay(20 * time.Millisecond)),
	}

	cfg, err := NewConfig("", append(defaults, opts...)...)
	require.NoError(t, err)

	return cfg
}

// collector gathers delivered payloads without blocking the event loop.
type collector struct {
	ch chan []byte
}

func newCollector() *collector {
	return &collector{ch: make(chan []byte, 1024)}
}

func (c *collector) handle(p []byte) {
	c.ch <- append([]byte(nil), p...)
}

// next waits for the next payload.
func (c *collector) next(t *testing.T) []byte {
	t.Helper()

	select {
	case p := <-c.ch:
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for payload")
		return nil
	}
}

// newTestLink starts a Link on one end of net.Pipe and returns the other end.
func newTestLink(t *testing.T, cfg *Config) (*Link, *collector, net.Conn) {
	t.Helper()

	local, remote := net.Pipe()
	c := newCollector()

	l, err := NewLink(context.Background(), local, cfg, c.handle)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = l.Close()
		_ = remote.Close()
	})

	return l, c, remote
}

// newLinkPair connects two Links back to back.
func newLinkPair(t *testing.T, cfgA, cfgB *Config) (a, b *Link, ca, cb *collector) {
	t.Helper()

	connA, connB := net.Pipe()
	ca, cb = newCollector(), newCollector()

	var err error
	a, err = NewLink(context.Background(), connA, cfgA, ca.handle)
	require.NoError(t, err)
	b, err = NewLink(context.Background(), connB, cfgB, cb.handle)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})

	return a, b, ca, cb
}

// lossyConn drops the writes for which drop returns true.
type lossyConn struct {
	net.Conn

	mu     sync.Mutex
	writes int
	drop   func(n int, p []byte) bool
}

func (c *lossyConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	c.writes++
	n := c.writes
	c.mu.Unlock()

	if c.drop(n, p) {
		return len(p), nil
	}

	return c.Conn.Write(p)
}

// readFrame reads one complete wire frame from r.
func readFrame(t *testing.T, r io.Reader) []byte {
	t.Helper()

	var (
		frame []byte
		b     [1]byte
	)
	for {
		_, err := r.Read(b[:])
		require.NoError(t, err)

		if len(frame) == 0 && b[0] != link.FrameByte {
			continue
		}
		frame = append(frame, b[0])
		if len(frame) > 1 && b[0] == link.FrameByte {
			return frame
		}
	}
}

// decodeFrame unstuffs a wire frame and checks its CRC.
func decodeFrame(t *testing.T, wire []byte) (link.Control, []byte) {
	t.Helper()

	body, ok := link.Unescape(wire[1 : len(wire)-1])
	require.True(t, ok)
	require.GreaterOrEqual(t, len(body), 3)
	require.True(t, link.Checksum(body).Valid())

	return link.Control(body[0]), body[1 : len(body)-2]
}
