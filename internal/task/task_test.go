package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-arqlink/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestManager_ReceiverLoop(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	mgr := NewManager(context.Background(), logger.NewQuietMockLogger())

	var runs atomic.Int32
	err := mgr.StartReceiver("counter", 8, func([]byte) bool {
		return runs.Add(1) < 5
	}, nil)
	require.NoError(err)

	mgr.Wait()
	assert.Equal(int32(5), runs.Load())
	assert.Equal(0, mgr.TaskCount())
}

func TestManager_StopCancelsTasks(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	mgr := NewManager(context.Background(), logger.NewQuietMockLogger())

	err := mgr.StartReceiver("spinner", 8, func([]byte) bool {
		time.Sleep(time.Millisecond)
		return true
	}, nil)
	require.NoError(err)
	assert.Eventually(func() bool { return mgr.TaskCount() == 1 }, time.Second, time.Millisecond)

	mgr.Stop()
	mgr.Wait()
	assert.Equal(0, mgr.TaskCount())

	// the manager is reusable after Wait
	done := make(chan struct{})
	require.NoError(mgr.StartReceiver("again", 8, func([]byte) bool {
		close(done)
		return false
	}, nil))
	<-done
	mgr.Wait()
}

func TestManager_StartAfterStop(t *testing.T) {
	mgr := NewManager(context.Background(), logger.NewQuietMockLogger())
	mgr.Stop()

	err := mgr.StartReceiver("late", 8, func([]byte) bool { return false }, nil)
	assert.Error(t, err)
}

func TestManager_StartReceiver(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	mgr := NewManager(context.Background(), logger.NewQuietMockLogger())

	var (
		size     atomic.Int32
		canceled atomic.Bool
	)
	err := mgr.StartReceiver("reader", 64, func(buf []byte) bool {
		size.Store(int32(len(buf)))
		return false
	}, func() {
		canceled.Store(true)
	})
	require.NoError(err)

	mgr.Wait()
	assert.Equal(int32(64), size.Load())
	assert.True(canceled.Load())

	assert.Error(mgr.StartReceiver("bad", 0, func([]byte) bool { return false }, nil))
}

func TestStartConsumer(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	mgr := NewManager(context.Background(), logger.NewQuietMockLogger())
	ch := make(chan int, 4)

	var sum atomic.Int32
	err := StartConsumer(mgr, "consumer", ch, func(v int) bool {
		sum.Add(int32(v))
		return true
	}, nil)
	require.NoError(err)

	ch <- 1
	ch <- 2
	ch <- 3
	close(ch)

	mgr.Wait()
	assert.Equal(int32(6), sum.Load())

	var nilCh chan int
	assert.Error(StartConsumer(mgr, "nil", nilCh, func(int) bool { return true }, nil))
}

func TestStartConsumer_PanicStopsTask(t *testing.T) {
	l := logger.NewQuietMockLogger()
	mgr := NewManager(context.Background(), l)
	ch := make(chan int, 1)

	err := StartConsumer(mgr, "panicky", ch, func(int) bool {
		panic("boom")
	}, nil)
	require.NoError(t, err)

	ch <- 1
	mgr.Wait()

	l.AssertCalled(t, "Error", "panic in task", mock.Anything)
}

func TestManager_StartInterval(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	mgr := NewManager(context.Background(), logger.NewQuietMockLogger())

	var ticks atomic.Int32
	ticker, err := mgr.StartInterval("tick", func() bool {
		return ticks.Add(1) < 3
	}, 50*time.Millisecond, true)
	require.NoError(err)
	require.NotNil(ticker)

	_, err = mgr.StartInterval("tick", func() bool { return true }, time.Millisecond, false)
	assert.Error(err, "duplicate interval name")

	mgr.Wait()
	assert.Equal(int32(3), ticks.Load())

	_, err = mgr.StartInterval("zero", func() bool { return true }, 0, false)
	assert.Error(err)
}
