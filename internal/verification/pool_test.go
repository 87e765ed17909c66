package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceguard/pkg/logger"
)

type recordingHandler struct {
	mu       sync.Mutex
	ran      []Job
	rejected map[string]string
	block    chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{rejected: map[string]string{}}
}

func (h *recordingHandler) Run(ctx context.Context, j Job) {
	if h.block != nil {
		<-h.block
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ran = append(h.ran, j)
}

func (h *recordingHandler) Reject(ctx context.Context, j Job, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rejected[j.ParticipantID] = reason
}

func (h *recordingHandler) ranCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ran)
}

func TestPool_StopDrainsQueuedJobs(t *testing.T) {
	h := newRecordingHandler()
	p := NewPool(PoolConfig{Workers: 1, QueueSize: 8}, h, logger.Discard(), nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Enqueue(Job{CallID: int64(i)}))
	}
	p.Start(context.Background())
	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, 5, h.ranCount())

	assert.ErrorIs(t, p.Enqueue(Job{}), ErrPoolStopped)
	require.NoError(t, p.Stop(context.Background()))
}

func TestPool_FullQueueFailsFast(t *testing.T) {
	h := newRecordingHandler()
	p := NewPool(PoolConfig{Workers: 1, QueueSize: 1}, h, logger.Discard(), nil)

	require.NoError(t, p.Enqueue(Job{}))
	start := time.Now()
	assert.ErrorIs(t, p.Enqueue(Job{}), ErrQueueFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPool_UnbufferedConfigAcceptsJobsRightAfterStart(t *testing.T) {
	h := newRecordingHandler()
	p := NewPool(PoolConfig{Workers: 2, QueueSize: 0}, h, logger.Discard(), nil)
	p.Start(context.Background())

	// Workers may not be parked on the queue yet; the slots must still take the jobs.
	require.NoError(t, p.Enqueue(Job{CallID: 1}))
	require.NoError(t, p.Enqueue(Job{CallID: 2}))

	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, 2, h.ranCount())
}

type stubLimiter struct {
	mu       sync.Mutex
	grant    bool
	err      error
	acquired int
	released int
}

func (l *stubLimiter) Acquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.grant {
		l.acquired++
	}
	return l.grant, nil
}

func (l *stubLimiter) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released++
	return nil
}

func TestPool_LimiterDeniedRejectsWithCapacity(t *testing.T) {
	h := newRecordingHandler()
	lim := &stubLimiter{grant: false}
	p := NewPool(PoolConfig{Workers: 1, QueueSize: 1, Limiter: lim, CapacityWait: 80 * time.Millisecond}, h, logger.Discard(), nil)
	p.Start(context.Background())

	require.NoError(t, p.Enqueue(Job{ParticipantID: "a"}))
	require.NoError(t, p.Stop(context.Background()))

	assert.Equal(t, ReasonCapacity, h.rejected["a"])
	assert.Zero(t, h.ranCount())
}

func TestPool_LimiterSlotIsReleased(t *testing.T) {
	h := newRecordingHandler()
	lim := &stubLimiter{grant: true}
	p := NewPool(PoolConfig{Workers: 2, QueueSize: 4, Limiter: lim}, h, logger.Discard(), nil)
	p.Start(context.Background())

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Enqueue(Job{}))
	}
	require.NoError(t, p.Stop(context.Background()))

	assert.Equal(t, 3, h.ranCount())
	assert.Equal(t, 3, lim.acquired)
	assert.Equal(t, 3, lim.released)
}

func TestPool_LimiterErrorRunsWithoutSlot(t *testing.T) {
	h := newRecordingHandler()
	lim := &stubLimiter{err: errors.New("redis down")}
	p := NewPool(PoolConfig{Workers: 1, QueueSize: 1, Limiter: lim}, h, logger.Discard(), nil)
	p.Start(context.Background())

	require.NoError(t, p.Enqueue(Job{}))
	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, 1, h.ranCount())
	assert.Zero(t, lim.released)
}

func TestPool_StopHonoursContext(t *testing.T) {
	h := newRecordingHandler()
	h.block = make(chan struct{})
	p := NewPool(PoolConfig{Workers: 1, QueueSize: 1}, h, logger.Discard(), nil)
	p.Start(context.Background())
	require.NoError(t, p.Enqueue(Job{}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	go func() {
		time.Sleep(150 * time.Millisecond)
		close(h.block)
	}()
	assert.ErrorIs(t, p.Stop(ctx), context.DeadlineExceeded)
}
