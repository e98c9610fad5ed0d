package link_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-arqlink/link"
	"github.com/arloliu/go-arqlink/logger"
	"github.com/arloliu/go-arqlink/sim"
)

// testAckDelay is the retransmit interval used by session tests.
const testAckDelay = 20 * time.Millisecond

// harness is a session on a simulated transport. The test plays the peer by
// feeding frames and inspecting what the session flushed.
type harness struct {
	t         *testing.T
	tr        *sim.Transport
	sess      *link.Session
	delivered []string
}

// newHarness creates a session with a 20ms ack delay and a quiet mock logger.
func newHarness(t *testing.T, opts ...link.Option) *harness {
	t.Helper()

	defaults := []link.Option{
		link.WithAckDelay(testAckDelay),
		link.WithLogger(logger.NewQuietMockLogger()),
	}

	cfg, err := link.NewConfig(append(defaults, opts...)...)
	require.NoError(t, err)

	h := &harness{t: t, tr: sim.New()}
	h.sess, err = link.NewSession(cfg, h.tr, func(p []byte) {
		h.delivered = append(h.delivered, string(p))
	})
	require.NoError(t, err)

	return h
}

// feed runs wire bytes through the session's receive path.
func (h *harness) feed(wire []byte) {
	h.t.Helper()
	require.NoError(h.t, h.sess.FeedBytes(wire))
}

// send transmits payload as one data frame.
func (h *harness) send(payload string) {
	h.t.Helper()
	require.NoError(h.t, h.sess.Send([]byte(payload)))
}

// advance moves the simulated clock, firing due timers.
func (h *harness) advance(d time.Duration) {
	h.tr.Advance(d)
}

// takeFrames decodes every frame flushed since the last call.
func (h *harness) takeFrames() []decodedFrame {
	h.t.Helper()

	wire := h.tr.TakeFrames()
	frames := make([]decodedFrame, 0, len(wire))
	for _, w := range wire {
		frames = append(frames, decodeFrame(h.t, w))
	}

	return frames
}

type decodedFrame struct {
	ctrl    link.Control
	payload []byte
	wire    []byte
}

// decodeFrame checks delimiters, stuffing and CRC of one flushed frame.
func decodeFrame(t *testing.T, wire []byte) decodedFrame {
	t.Helper()

	require.GreaterOrEqual(t, len(wire), 5, "frame too short: % X", wire)
	require.Equal(t, link.FrameByte, wire[0])
	require.Equal(t, link.FrameByte, wire[len(wire)-1])

	body, ok := link.Unescape(wire[1 : len(wire)-1])
	require.True(t, ok, "bad stuffing: % X", wire)
	require.GreaterOrEqual(t, len(body), 3)
	require.True(t, link.Checksum(body).Valid(), "bad crc: % X", wire)

	return decodedFrame{
		ctrl:    link.Control(body[0]),
		payload: body[1 : len(body)-2],
		wire:    wire,
	}
}

// dataFrame builds a data frame from the peer.
func dataFrame(ack, seq link.Seq, payload string) []byte {
	return link.EncodeFrame(link.DataControl(ack, seq), []byte(payload))
}

// ackFrame builds an ack-only frame from the peer.
func ackFrame(ack link.Seq) []byte {
	return link.EncodeFrame(link.AckControl(ack, 0), nil)
}
