package link

import (
	"sync"
	"time"

	"github.com/arloliu/go-arqlink/logger"
)

// frameState is the receive-side framing state.
type frameState int

const (
	stateOutsideFrame   frameState = iota // waiting for a delimiter
	stateInFrame                          // accumulating frame bytes
	stateInFrameEscaped                   // previous byte was EscapeByte
	stateDiscarding                       // dropping an overlong frame until the next delimiter
)

// slotStatus is the life-cycle state of a TX slot.
type slotStatus int

const (
	slotNone      slotStatus = iota // free
	slotPreparing                   // between StartPacket and FinishPacket
	slotSent                        // on the wire, waiting for an ack
)

// txSlot keeps one outbound packet for retransmission.
type txSlot struct {
	buf      []byte // capacity MaxPayloadSize, allocated once
	length   int
	status   slotStatus
	sendTime uint32 // ms, Transport.Now at last transmission
}

// Session is one end of a reliable link over a Transport.
//
// A Session has two kinds of entry points: the receive path (FeedByte,
// FeedBytes) and the send path (StartPacket, Append, AppendBuf, FinishPacket,
// Send), plus the retransmit timer callback it schedules on the Transport.
// The TX slot table is guarded by a mutex that is never held across a
// Transport call. Frame emission itself is not locked: callers must not run
// two entry points at the same time. Transports meet this by firing timer
// callbacks from the goroutine that feeds the session (see package uart and
// package sim).
type Session struct {
	cfg    *Config
	tr     Transport
	onData DataHandler
	logger logger.Logger

	windowSize int
	slotMask   Seq
	ackDelayMs uint32

	// slotMu guards everything down to the receive state.
	slotMu    sync.Mutex
	slots     []txSlot
	preparing *txSlot
	txSeq     Seq
	ackSeq    Seq // peer's cumulative ack: the next sequence it expects from us
	rxSeq     Seq // next sequence we expect from the peer

	ackTimer   TimerHandle
	timerArmed bool
	timerGen   uint64 // bumped on every arm/disarm; older callbacks are stale

	ackDeferred     bool // an ack was requested while a packet was being built
	retxDeferred    bool // a retransmit was due while a packet was being built
	retxDeferredSeq Seq

	// Send-path scratch state.
	txCRC       CRC
	txScratch   []byte
	retxScratch []byte
	ackScratch  []byte

	// Receive state, touched only by the feed path.
	frameState frameState
	rxCRC      CRC
	rxBuf      []byte
	reorder    [SeqModulus][]byte
	faulted    bool

	metrics Metrics
}

// NewSession creates a session on the given transport.
//
// onData receives inbound payloads; it may be nil for a send-only link.
func NewSession(cfg *Config, tr Transport, onData DataHandler) (*Session, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if tr == nil {
		return nil, ErrNilTransport
	}

	maxFrame := 1 + cfg.maxPayloadSize + 2

	s := &Session{
		cfg:         cfg,
		tr:          tr,
		onData:      onData,
		logger:      cfg.logger,
		windowSize:  cfg.windowSize,
		slotMask:    Seq(cfg.windowSize - 1),
		ackDelayMs:  uint32(cfg.ackDelay / time.Millisecond),
		slots:       make([]txSlot, cfg.windowSize),
		txScratch:   make([]byte, 0, 2*cfg.maxPayloadSize+8),
		retxScratch: make([]byte, 0, 2*maxFrame+2),
		ackScratch:  make([]byte, 0, 8),
		rxBuf:       make([]byte, 0, maxFrame),
		frameState:  stateOutsideFrame,
	}

	for i := range s.slots {
		s.slots[i].buf = make([]byte, cfg.maxPayloadSize)
	}

	return s, nil
}

// Config returns the session configuration.
func (s *Session) Config() *Config { return s.cfg }

// Metrics returns the session counters.
func (s *Session) Metrics() *Metrics { return &s.metrics }

// Faulted reports whether the session stopped accepting input after an
// unframed byte under UnframedFatal.
func (s *Session) Faulted() bool { return s.faulted }

// slotFor returns the arena slot of seq. Callers hold slotMu.
func (s *Session) slotFor(seq Seq) *txSlot {
	return &s.slots[seq&s.slotMask]
}

// outstandingLocked returns the number of packets sent but not yet acked.
func (s *Session) outstandingLocked() int {
	return s.ackSeq.Distance(s.txSeq)
}

// --- Transport helpers ---

func (s *Session) write(p []byte) {
	if err := s.tr.Write(p); err != nil {
		s.metrics.incWriteErrors()
		s.logger.Debug("link: transport write failed", "error", err)
	}
}

func (s *Session) flush() {
	if err := s.tr.Flush(); err != nil {
		s.metrics.incWriteErrors()
		s.logger.Debug("link: transport flush failed", "error", err)
	}
}

// emit writes a complete frame and flushes it.
func (s *Session) emit(frame []byte) {
	s.write(frame)
	s.flush()
}

// --- Retransmit timer bookkeeping ---

// armLocked invalidates the current timer and reserves a new generation.
// It returns the handle to cancel (may be zero) and the new generation.
func (s *Session) armLocked() (TimerHandle, uint64) {
	prev := s.ackTimer
	s.ackTimer = 0
	s.timerGen++
	s.timerArmed = true

	return prev, s.timerGen
}

// disarmLocked invalidates the current timer and leaves none armed.
func (s *Session) disarmLocked() TimerHandle {
	prev := s.ackTimer
	s.ackTimer = 0
	s.timerGen++
	s.timerArmed = false

	return prev
}

// scheduleTimer registers the retransmit check for generation gen.
// Must be called without slotMu held.
func (s *Session) scheduleTimer(gen uint64, delay time.Duration) {
	h := s.tr.AddTimer(delay, func() { s.checkTimeouts(gen) })

	s.slotMu.Lock()
	current := s.timerGen == gen
	if current {
		s.ackTimer = h
	}
	s.slotMu.Unlock()

	if !current {
		s.tr.CancelTimer(h)
	}
}

// elapsedMs returns now-then on the wrapping millisecond clock.
func elapsedMs(now, then uint32) uint32 {
	return now - then
}
