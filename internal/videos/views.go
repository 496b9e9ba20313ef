package videos

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xyzen/backend/internal/events"
	"github.com/xyzen/backend/internal/gateway"
	"github.com/xyzen/backend/internal/metrics"
)

// CounterStore increments video counters.
type CounterStore interface {
	IncrementVideoCounter(ctx context.Context, videoID string, field gateway.CounterField, delta int64) (int64, error)
}

// ViewRecorderConfig controls the concurrency characteristics of the recorder.
type ViewRecorderConfig struct {
	QueueSize int
	Workers   int
	// Timeout bounds a single counter update.
	Timeout time.Duration
}

// ViewRecorder asynchronously increments view counters so playback never
// waits on the backend.
type ViewRecorder struct {
	store     CounterStore
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	timeout   time.Duration

	mu     sync.RWMutex
	closed bool
	jobs   chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewViewRecorder starts a worker pool that records views through store.
func NewViewRecorder(store CounterStore, publisher events.Publisher, m *metrics.Metrics, cfg ViewRecorderConfig, logger *slog.Logger) *ViewRecorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	rec := &ViewRecorder{
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		timeout:   cfg.Timeout,
		jobs:      make(chan string, cfg.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	rec.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go rec.worker()
	}

	return rec
}

// Enqueue schedules a view for videoID. It never blocks; false means the view
// was dropped because the queue is full or the recorder has shut down.
func (r *ViewRecorder) Enqueue(videoID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed || videoID == "" {
		return false
	}

	select {
	case r.jobs <- videoID:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting views and waits for queued ones to be written.
func (r *ViewRecorder) Shutdown(ctx context.Context) error {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.jobs)
		r.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		r.cancel()
		return ctx.Err()
	case <-done:
		r.cancel()
		return nil
	}
}

func (r *ViewRecorder) worker() {
	defer r.wg.Done()

	for videoID := range r.jobs {
		r.record(videoID)
	}
}

func (r *ViewRecorder) record(videoID string) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	count, err := r.store.IncrementVideoCounter(ctx, videoID, gateway.CounterViews, 1)
	r.metrics.ViewRecorded(err)
	if err != nil {
		r.logger.Error("record view failed", "videoId", videoID, "error", err)
		return
	}

	event := events.Event{
		ID:         uuid.NewString(),
		Type:       events.TypeViewRecorded,
		VideoID:    videoID,
		Count:      count,
		OccurredAt: time.Now().UTC(),
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn("publish view event", "videoId", videoID, "error", err)
	}
}
