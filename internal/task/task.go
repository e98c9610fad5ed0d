// Package task runs and supervises the goroutines behind a serial link.
package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-arqlink/logger"
)

// Func is an interval task body.
// It returns true to keep running, or false to stop the goroutine.
type Func func() bool

// RecvFunc is a receive task body. buf is a read buffer owned by the task
// goroutine and reused on every call.
type RecvFunc func(buf []byte) bool

// CancelFunc is called when a goroutine managed by the Manager exits or is
// canceled.
type CancelFunc func()

// Manager manages the lifecycle of the goroutines of one link.
//
// All goroutines share a context derived from the parent context. Stop
// cancels it; Wait blocks until every goroutine has returned and then
// prepares a fresh context so the Manager can be reused.
//
//	mgr := task.NewManager(ctx, logger)
//	_ = mgr.StartReceiver("reader", 256, func(buf []byte) bool {
//	    n, err := port.Read(buf)
//	    // ... post buf[:n] to the event loop ...
//	    return err == nil
//	}, nil)
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	pctx    context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  logger.Logger
	count   atomic.Int32
	tickers sync.Map     // map[string]*time.Ticker
	mu      sync.RWMutex // protect ctx and cancel
	taskMu  sync.RWMutex // protect task creation during Wait()
}

// NewManager creates a new Manager with ctx as the parent context.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by the running tasks.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// StartReceiver starts a receive goroutine with a read buffer of bufSize
// bytes. cancelFn, if not nil, is called when the goroutine exits.
func (mgr *Manager) StartReceiver(name string, bufSize int, fn RecvFunc, cancelFn CancelFunc) error {
	mgr.logger.Debug("start receiver task", "name", name, "buf_size", bufSize)

	if bufSize <= 0 {
		return fmt.Errorf("invalid receive buffer size: %d", bufSize)
	}

	starter, err := mgr.newStarter(name)
	if err != nil {
		return err
	}

	starter.startTask(func() {
		if cancelFn != nil {
			defer cancelFn()
		}

		buf := make([]byte, bufSize)
		mgr.runTaskLoop(name, func() bool {
			return fn(buf)
		})
	})

	return starter.waitForStart()
}

// StartConsumer starts a goroutine that calls fn for every value received
// from ch. It stops when fn returns false, ch is closed, or the manager is
// stopped. cancelFn, if not nil, is called when the goroutine exits.
func StartConsumer[T any](mgr *Manager, name string, ch <-chan T, fn func(T) bool, cancelFn CancelFunc) error {
	mgr.logger.Debug("start consumer task", "name", name)

	if ch == nil {
		return fmt.Errorf("input channel is nil")
	}

	starter, err := mgr.newStarter(name)
	if err != nil {
		return err
	}

	starter.startTask(func() {
		if cancelFn != nil {
			defer cancelFn()
		}

		ctx := mgr.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-ch:
				if !ok {
					mgr.logger.Debug("input channel closed", "name", name)
					return
				}
				if !mgr.callWithRecoverBool(name, func() bool { return fn(v) }) {
					return
				}
			}
		}
	})

	return starter.waitForStart()
}

// StartInterval starts a goroutine that runs fn every interval.
// If runNow is true, fn is executed once before the interval starts.
func (mgr *Manager) StartInterval(name string, fn Func, interval time.Duration, runNow bool) (*time.Ticker, error) {
	mgr.logger.Debug("start interval task", "name", name, "interval", interval, "runNow", runNow)

	if interval <= 0 {
		return nil, fmt.Errorf("invalid interval: %v", interval)
	}

	ticker := time.NewTicker(interval)

	if _, loaded := mgr.tickers.LoadOrStore(name, ticker); loaded {
		ticker.Stop()
		return nil, fmt.Errorf("interval task %s already exists", name)
	}

	cleanup := func() {
		ticker.Stop()
		mgr.tickers.Delete(name)
	}

	if runNow {
		if !mgr.callWithRecoverBool(name, fn) {
			cleanup()
			mgr.logger.Debug("interval task terminated by runNow", "name", name)

			return ticker, nil
		}
	}

	starter, err := mgr.newStarter(name)
	if err != nil {
		cleanup()
		return nil, err
	}

	starter.startTask(func() {
		defer cleanup()

		ctx := mgr.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !mgr.callWithRecoverBool(name, fn) {
					return
				}
			}
		}
	})

	if err := starter.waitForStart(); err != nil {
		cleanup()
		return nil, err
	}

	return ticker, nil
}

// callWithRecoverBool calls fn with panic protection. A panic stops the task.
func (mgr *Manager) callWithRecoverBool(name string, fn func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			ok = false
		}
	}()

	return fn()
}

// Stop signals all running goroutines.
func (mgr *Manager) Stop() {
	mgr.tickers.Range(func(_, value any) bool {
		if ticker, ok := value.(*time.Ticker); ok {
			ticker.Stop()
		}

		return true
	})

	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait waits for all goroutines to terminate.
func (mgr *Manager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	// recreate context so the manager can be started again
	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// TaskCount returns the number of currently running goroutines.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

// starter encapsulates common startup logic
type starter struct {
	mgr     *Manager
	name    string
	started chan error
}

func (mgr *Manager) newStarter(name string) (*starter, error) {
	ctx := mgr.Context()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("task manager already stopped")
	default:
	}

	return &starter{
		mgr:     mgr,
		name:    name,
		started: make(chan error, 1),
	}, nil
}

// startTask runs the common startup sequence for all tasks
func (s *starter) startTask(body func()) {
	s.mgr.taskMu.RLock()
	defer s.mgr.taskMu.RUnlock()

	s.mgr.wg.Add(1)

	go func() {
		defer s.mgr.wg.Done()

		s.mgr.count.Add(1)
		s.started <- nil

		defer func() {
			s.mgr.count.Add(-1)
			s.mgr.logger.Debug("task terminated", "name", s.name, "task_count", s.mgr.TaskCount())
		}()

		body()
	}()
}

// waitForStart waits for the task to start with timeout
func (s *starter) waitForStart() error {
	ctx := s.mgr.Context()

	select {
	case err := <-s.started:
		if err != nil {
			return fmt.Errorf("failed to start %s: %w", s.name, err)
		}

		return nil

	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for %s to start", s.name)

	case <-ctx.Done():
		return fmt.Errorf("context cancelled while starting %s", s.name)
	}
}

// runTaskLoop runs fn in a loop until it returns false or the context is
// canceled.
func (mgr *Manager) runTaskLoop(name string, fn func() bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task loop", "name", name, "panic", r)
		}
	}()

	for {
		ctx := mgr.Context()
		select {
		case <-ctx.Done():
			return
		default:
			if !fn() {
				return
			}
		}
	}
}
