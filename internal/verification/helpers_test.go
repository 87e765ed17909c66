package verification

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"voiceguard/internal/calls"
	"voiceguard/internal/directory"
	"voiceguard/internal/inference"
	"voiceguard/internal/speaker"
	"voiceguard/internal/spool"
	"voiceguard/pkg/logger"
)

// scriptedDetector returns a fixed prediction per waveform.
type scriptedDetector struct {
	mu    sync.Mutex
	byWav map[string]inference.Prediction
	gate  chan struct{}
	calls int
}

func (d *scriptedDetector) Predict(ctx context.Context, audio []byte) (inference.Prediction, error) {
	d.mu.Lock()
	d.calls++
	p, ok := d.byWav[string(audio)]
	gate := d.gate
	d.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return inference.Prediction{}, ctx.Err()
		}
	}
	if !ok {
		return inference.Prediction{}, context.DeadlineExceeded
	}
	return p, nil
}

// scriptedExtractor returns a fixed embedding per waveform.
type scriptedExtractor map[string][]float32

func (e scriptedExtractor) Extract(ctx context.Context, audio []byte) ([]float32, error) {
	v, ok := e[string(audio)]
	if !ok {
		return nil, inference.ErrModelUnavailable
	}
	return v, nil
}

type harness struct {
	coord    *Coordinator
	pool     *Pool
	registry *calls.Registry
	dir      *directory.Service
	ledger   *MemoryLedger
	spoolDir string
	detector *scriptedDetector
	metrics  *Metrics
}

// slowSpool delays Park to stand in for a sluggish object store.
type slowSpool struct {
	AudioSpool
	delay time.Duration
}

func (s slowSpool) Park(ctx context.Context, participantID string, audio []byte) (spool.Ticket, error) {
	time.Sleep(s.delay)
	return s.AudioSpool.Park(ctx, participantID, audio)
}

type harnessConfig struct {
	deadline  time.Duration
	poll      time.Duration
	workers   int
	queue     int
	noStart   bool
	noNotify  bool
	detector  *scriptedDetector
	extractor scriptedExtractor
	wrapSpool func(AudioSpool) AudioSpool
}

func newHarness(t *testing.T, hc harnessConfig) *harness {
	t.Helper()
	ctx := context.Background()
	log := logger.Discard()

	if hc.deadline == 0 {
		hc.deadline = 2 * time.Second
	}
	if hc.poll == 0 {
		hc.poll = 20 * time.Millisecond
	}
	if hc.workers == 0 {
		hc.workers = 2
	}
	if hc.queue == 0 {
		hc.queue = 8
	}
	if hc.detector == nil {
		hc.detector = &scriptedDetector{byWav: map[string]inference.Prediction{
			"voice-7003": {Score: 0.2, Label: inference.LabelSpoof},
			"voice-7004": {Score: 0.9, Label: inference.LabelGenuine},
		}}
	}
	if hc.extractor == nil {
		hc.extractor = scriptedExtractor{
			"voice-7003": {1, 0, 0},
			"voice-7004": {0, 1, 0},
		}
	}

	dir := directory.NewService(directory.NewMemoryRepo())
	for _, ident := range []directory.Identity{
		{ID: "u7003", Name: "Alice", Phone: "7003"},
		{ID: "u7004", Name: "Bob", Phone: "7004"},
		{ID: "u7005", Name: "Carol", Phone: "7005"},
	} {
		_, err := dir.Provision(ctx, ident)
		require.NoError(t, err)
	}

	embeddings := speaker.NewMemoryStore(3)
	require.NoError(t, embeddings.Upsert(ctx, speaker.Embedding{IdentityID: "u7003", Vector: []float32{1, 0, 0}}))
	require.NoError(t, embeddings.Upsert(ctx, speaker.Embedding{IdentityID: "u7004", Vector: []float32{0, 1, 0}}))

	spoolDir := t.TempDir()
	store, err := spool.NewLocal(spoolDir)
	require.NoError(t, err)

	registry := calls.NewRegistry(calls.NewMemoryRepo(), log)
	ledger := NewMemoryLedger()
	metrics := NewMetrics(prometheus.NewRegistry())

	var notifier Notifier = NewMemoryNotifier()
	if hc.noNotify {
		notifier = nil
	}

	var audio AudioSpool = spool.New(store)
	if hc.wrapSpool != nil {
		audio = hc.wrapSpool(audio)
	}

	analyzer := NewAnalyzer(hc.detector, hc.extractor, speaker.NewIdentifier(embeddings), dir, 0.7, log, metrics)
	coord := NewCoordinator(
		CoordinatorConfig{Deadline: hc.deadline, PollInterval: hc.poll},
		registry, dir, audio, ledger, notifier, analyzer, log, metrics,
	)
	pool := NewPool(PoolConfig{Workers: hc.workers, QueueSize: hc.queue}, coord, log, metrics)
	coord.AttachPool(pool)
	if !hc.noStart {
		pool.Start(ctx)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Stop(stopCtx)
	})

	return &harness{
		coord:    coord,
		pool:     pool,
		registry: registry,
		dir:      dir,
		ledger:   ledger,
		spoolDir: spoolDir,
		detector: hc.detector,
		metrics:  metrics,
	}
}

func (h *harness) startCall(t *testing.T, caller, callee string) calls.Call {
	t.Helper()
	c, _, err := h.registry.RecordStatus(context.Background(), calls.StatusEvent{Caller: caller, Callee: callee, Status: calls.StatusCalling})
	require.NoError(t, err)
	return c
}

func (h *harness) spoolEmpty() bool {
	entries, err := os.ReadDir(h.spoolDir)
	return err == nil && len(entries) == 0
}
