package uart

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-arqlink/internal/pool"
	"github.com/arloliu/go-arqlink/internal/queue"
	"github.com/arloliu/go-arqlink/internal/task"
	"github.com/arloliu/go-arqlink/link"
	"github.com/arloliu/go-arqlink/logger"
)

var (
	ErrLinkClosed  = errors.New("uart: link closed")
	ErrSendTimeout = errors.New("uart: send timeout")
	ErrNilStream   = errors.New("uart: stream is nil")
)

// eventQueueFactor sizes the event channel relative to the send queue, so
// reads and timer firings are not starved by a burst of sends.
const eventQueueFactor = 4

type eventKind int

const (
	evRecv eventKind = iota
	evTimer
	evSend
)

type event struct {
	kind eventKind
	buf  *pool.Buffer // evRecv
	fn   func()       // evTimer
	req  *sendRequest // evSend
}

// Send request states. Exactly one side moves a request out of reqPending:
// the event loop when it writes the frame, or the sender when it gives up.
const (
	reqPending int32 = iota
	reqSending
	reqCanceled
)

// sendRequest is one frame worth of payload waiting for a window slot.
type sendRequest struct {
	payload  []byte
	sentChan chan error
	state    atomic.Int32
}

// Link runs a link.Session over a serial stream.
//
// One event-loop goroutine owns the session. Received bytes, retransmit
// timer firings and Send requests are all posted to it, so the session never
// sees two callers at once. A second goroutine reads the stream.
//
// The DataHandler runs on the event loop; it must not call Send.
type Link struct {
	cfg    *Config
	logger logger.Logger
	rw     io.ReadWriteCloser

	tr   *Transport
	sess *link.Session

	taskMgr *task.Manager
	events  chan event
	backlog queue.Queue[*sendRequest]

	closed    atomic.Bool
	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
}

// NewLink starts a link over rw. The link owns rw and closes it on Close.
//
// onData receives every inbound payload in order, on the event loop. The
// payload is only valid for the duration of the call.
func NewLink(ctx context.Context, rw io.ReadWriteCloser, cfg *Config, onData link.DataHandler) (*Link, error) {
	if rw == nil {
		return nil, ErrNilStream
	}
	if cfg == nil {
		return nil, link.ErrConfigNil
	}

	sessCfg, err := cfg.sessionConfig()
	if err != nil {
		return nil, err
	}

	l := &Link{
		cfg:     cfg,
		logger:  cfg.logger.With("port", cfg.portName),
		rw:      rw,
		taskMgr: task.NewManager(ctx, cfg.logger),
		events:  make(chan event, cfg.sendQueueSize*eventQueueFactor),
		backlog: queue.NewSliceQueue[*sendRequest](cfg.sendQueueSize),
		done:    make(chan struct{}),
	}

	// room for one worst-case stuffed frame
	l.tr = NewTransport(rw, 2*(sessCfg.MaxPayloadSize()+3)+2, l.postTimer)

	l.sess, err = link.NewSession(sessCfg, l.tr, onData)
	if err != nil {
		return nil, err
	}

	if err := task.StartConsumer(l.taskMgr, "event-loop", l.events, l.handleEvent, l.stopLoop); err != nil {
		return nil, err
	}

	if err := l.taskMgr.StartReceiver("reader", cfg.readBufferSize, l.readTask, nil); err != nil {
		l.taskMgr.Stop()
		return nil, err
	}

	if cfg.statsInterval > 0 {
		if _, err := l.taskMgr.StartInterval("stats", l.logStats, cfg.statsInterval, false); err != nil {
			l.taskMgr.Stop()
			return nil, err
		}
	}

	l.logger.Info("uart: link started",
		"window", sessCfg.WindowSize(),
		"ackDelay", sessCfg.AckDelay(),
		"maxPayload", sessCfg.MaxPayloadSize())

	return l, nil
}

// Metrics returns the counters of the underlying session.
func (l *Link) Metrics() *link.Metrics {
	return l.sess.Metrics()
}

// Config returns the link configuration.
func (l *Link) Config() *Config {
	return l.cfg
}

// Send transmits p reliably, split into frames of at most MaxPayloadSize
// bytes. It returns once every frame has been written to the stream, not
// when it has been acknowledged.
//
// Send fails with ErrSendTimeout when a frame cannot get a window slot
// within the send timeout; frames already written stay on the link.
func (l *Link) Send(p []byte) error {
	_, err := l.send(p)

	return err
}

// Write implements io.Writer on top of Send. On error, n counts the payload
// bytes of the frames that were written before the failure.
func (l *Link) Write(p []byte) (int, error) {
	return l.send(p)
}

// send writes p frame by frame and returns the number of payload bytes
// handed to the session.
func (l *Link) send(p []byte) (int, error) {
	maxPayload := l.sess.Config().MaxPayloadSize()

	sent := 0
	for sent < len(p) {
		n := min(len(p)-sent, maxPayload)
		if err := l.sendFrame(p[sent : sent+n]); err != nil {
			return sent, err
		}
		sent += n
	}

	return sent, nil
}

// sendFrame queues one frame and waits until it is written.
func (l *Link) sendFrame(payload []byte) error {
	if l.closed.Load() {
		return ErrLinkClosed
	}

	req := &sendRequest{
		payload:  append([]byte(nil), payload...),
		sentChan: make(chan error, 1),
	}

	timer := pool.GetTimer(l.cfg.sendTimeout)
	defer pool.PutTimer(timer)

	select {
	case <-l.done:
		return ErrLinkClosed
	case <-timer.C:
		return ErrSendTimeout
	case l.events <- event{kind: evSend, req: req}:
	}

	select {
	case <-l.done:
		return req.abandon(ErrLinkClosed)
	case <-timer.C:
		return req.abandon(ErrSendTimeout)
	case err := <-req.sentChan:
		return err
	}
}

// abandon withdraws a request that is still queued and returns err. When the
// event loop has already claimed it, the frame is on its way and abandon
// returns the loop's result instead.
func (r *sendRequest) abandon(err error) error {
	if r.state.CompareAndSwap(reqPending, reqCanceled) {
		return err
	}

	return <-r.sentChan
}

// postTimer queues a timer callback for the event loop.
func (l *Link) postTimer(fn func()) bool {
	select {
	case <-l.done:
		return false
	case l.events <- event{kind: evTimer, fn: fn}:
		return true
	}
}

// readTask reads one chunk from the stream and posts it to the event loop.
func (l *Link) readTask(buf []byte) bool {
	n, err := l.rw.Read(buf)
	if n > 0 {
		select {
		case <-l.done:
			return false
		case l.events <- event{kind: evRecv, buf: pool.GetBuffer(buf[:n])}:
		}
	}

	if err != nil {
		if !l.closed.Load() {
			if errors.Is(err, io.EOF) {
				l.logger.Info("uart: stream closed by peer")
			} else {
				l.logger.Error("uart: read failed", "error", err)
			}
		}

		return false
	}

	return true
}

// handleEvent runs on the event loop.
func (l *Link) handleEvent(ev event) bool {
	switch ev.kind {
	case evRecv:
		err := l.sess.FeedBytes(ev.buf.B)
		pool.PutBuffer(ev.buf)
		if err != nil {
			l.logger.Error("uart: receive path faulted", "error", err)
			return false
		}

	case evTimer:
		ev.fn()

	case evSend:
		l.backlog.Enqueue(ev.req)
	}

	l.drainBacklog()

	return true
}

// drainBacklog sends queued requests while the window has room.
func (l *Link) drainBacklog() {
	for !l.backlog.IsEmpty() && l.sess.FramesAvailable() > 0 {
		req, _ := l.backlog.Dequeue()
		if !req.state.CompareAndSwap(reqPending, reqSending) {
			continue
		}

		req.sentChan <- l.sess.Send(req.payload)
	}
}

// stopLoop runs when the event loop exits: the link stops accepting work
// and every waiting sender is released.
func (l *Link) stopLoop() {
	l.markDone()

	if n := l.backlog.Length(); n > 0 {
		l.logger.Debug("uart: releasing queued senders", "count", n)
	}

	for {
		req, ok := l.backlog.Dequeue()
		if !ok {
			return
		}
		req.sentChan <- ErrLinkClosed
	}
}

// markDone marks the link closed and wakes everything waiting on it.
func (l *Link) markDone() {
	l.doneOnce.Do(func() {
		l.closed.Store(true)
		close(l.done)
	})
}

func (l *Link) logStats() bool {
	m := l.sess.Metrics()
	l.logger.Info("uart: link stats",
		"framesSent", m.FramesSent.Load(),
		"framesRecv", m.FramesRecv.Load(),
		"retransmits", m.Retransmits.Load(),
		"delivered", m.DataDelivered.Load(),
		"crcErrors", m.CRCErrors.Load(),
		"outOfOrder", m.OutOfOrder.Load())

	return true
}

// Close stops the link and closes the stream.
//
// Frames not yet acknowledged are abandoned. Close waits up to the close
// timeout for the reader and event loop to stop.
func (l *Link) Close() error {
	l.closeOnce.Do(func() {
		l.markDone()

		l.logger.Debug("uart: start to close link")

		l.taskMgr.Stop()
		l.tr.StopTimers()

		if err := l.rw.Close(); err != nil {
			l.logger.Debug("uart: close stream", "error", err)
		}

		stopped := make(chan struct{})
		go func() {
			l.taskMgr.Wait()
			close(stopped)
		}()

		if _, ok := pool.WaitTimeout(stopped, nil, l.cfg.closeTimeout); !ok {
			l.logger.Error("uart: close link timeout", "timeout", l.cfg.closeTimeout)
			l.closeErr = errors.New("uart: close link timeout")

			return
		}

		l.logger.Info("uart: link closed")
	})

	return l.closeErr
}

// Drain blocks until every frame sent so far has been acknowledged, ctx is
// done, or the link is closed.
func (l *Link) Drain(ctx context.Context) error {
	window := l.sess.Config().WindowSize()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		idle := make(chan bool, 1)
		probe := event{kind: evTimer, fn: func() {
			idle <- l.backlog.IsEmpty() && l.sess.FramesAvailable() == window
		}}

		select {
		case l.events <- probe:
		case <-l.done:
			return ErrLinkClosed
		case <-ctx.Done():
			return ctx.Err()
		}

		select {
		case ok := <-idle:
			if ok {
				return nil
			}
		case <-l.done:
			return ErrLinkClosed
		case <-ctx.Done():
			return ctx.Err()
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
