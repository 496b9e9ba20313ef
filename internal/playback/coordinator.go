package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xyzen/backend/internal/logging"
)

// DefaultWindow is the number of neighbours on each side of the focused item
// whose resources are retained.
const DefaultWindow = 1

// ErrClosed is returned by Focus after Close.
var ErrClosed = errors.New("playback coordinator closed")

// Target is the item a navigation focused.
type Target struct {
	Generation uint64
	Index      int
	VideoID    string
	MediaURL   string
}

// Options configures a Coordinator.
type Options struct {
	// Window overrides DefaultWindow when positive.
	Window   int
	Observer Observer
	Logger   *slog.Logger
}

type item struct {
	index    int
	videoID  string
	mediaURL string
	state    State
	player   Player
}

// Coordinator owns the playback resources of one feed session. Engine calls
// that change which item is playing happen under its lock, so pausing the
// previous item always completes before the next one starts.
type Coordinator struct {
	engine   Engine
	window   int
	observer Observer
	logger   *slog.Logger

	mu         sync.Mutex
	items      map[int]*item
	generation uint64
	current    int
	paused     bool
	closed     bool
}

// NewCoordinator returns a Coordinator driving engine.
func NewCoordinator(engine Engine, opts Options) *Coordinator {
	window := opts.Window
	if window <= 0 {
		window = DefaultWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		engine:   engine,
		window:   window,
		observer: opts.Observer,
		logger:   logger,
		items:    make(map[int]*item),
		current:  -1,
	}
}

// Focus makes target the visible item. Targets older than the latest focused
// generation are ignored. The returned error reports an engine failure for
// target, whose resource has then been released.
func (c *Coordinator) Focus(ctx context.Context, target Target) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if target.Generation < c.generation {
		c.mu.Unlock()
		return nil
	}
	c.generation = target.Generation
	c.current = target.Index

	c.pauseOthersLocked(ctx, target.Index)
	c.trimLocked()

	it, ok := c.items[target.Index]
	if ok && it.videoID != target.VideoID {
		c.releaseLocked(it, nil)
		ok = false
	}
	if !ok {
		it = &item{index: target.Index, videoID: target.VideoID, mediaURL: target.MediaURL, state: StateIdle}
		c.items[target.Index] = it
	}

	switch it.state {
	case StateIdle:
		c.transitionLocked(it, StatePreparing, nil)
		c.mu.Unlock()
		return c.prepare(ctx, it)
	case StateReady, StatePaused:
		defer c.mu.Unlock()
		if c.paused {
			return nil
		}
		return c.playLocked(ctx, it)
	default:
		// Preparing items are started by their preparer; playing items need
		// nothing.
		c.mu.Unlock()
		return nil
	}
}

func (c *Coordinator) prepare(ctx context.Context, it *item) error {
	player, err := c.engine.Prepare(ctx, it.mediaURL)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		if it.state == StateReleased {
			return nil
		}
		c.releaseLocked(it, err)
		return fmt.Errorf("prepare %s: %w", it.videoID, err)
	}

	if it.state == StateReleased {
		// Scrolled out of the window or closed while preparing.
		if relErr := player.Release(); relErr != nil {
			logging.FromContext(ctx).Warn("release stale player", "videoId", it.videoID, "error", relErr)
		}
		return nil
	}

	it.player = player
	c.transitionLocked(it, StateReady, nil)

	if c.paused || c.current != it.index || c.items[it.index] != it {
		return nil
	}
	return c.playLocked(ctx, it)
}

// playLocked starts it after pausing anything else that is playing.
func (c *Coordinator) playLocked(ctx context.Context, it *item) error {
	c.pauseOthersLocked(ctx, it.index)
	if err := it.player.Play(ctx); err != nil {
		c.releaseLocked(it, err)
		return fmt.Errorf("play %s: %w", it.videoID, err)
	}
	c.transitionLocked(it, StatePlaying, nil)
	return nil
}

func (c *Coordinator) pauseOthersLocked(ctx context.Context, keep int) {
	for index, other := range c.items {
		if index == keep || other.state != StatePlaying {
			continue
		}
		c.pauseLocked(ctx, other)
	}
}

func (c *Coordinator) pauseLocked(ctx context.Context, it *item) {
	if err := it.player.Pause(ctx); err != nil {
		logging.FromContext(ctx).Warn("pause failed, releasing player", "videoId", it.videoID, "error", err)
		c.releaseLocked(it, err)
		return
	}
	c.transitionLocked(it, StatePaused, nil)
}

// trimLocked releases every item outside the window around the current index.
func (c *Coordinator) trimLocked() {
	for index, it := range c.items {
		if distance(index, c.current) > c.window {
			c.releaseLocked(it, nil)
		}
	}
}

func (c *Coordinator) releaseLocked(it *item, cause error) {
	if it.player != nil {
		if err := it.player.Release(); err != nil {
			c.logger.Warn("release player", "videoId", it.videoID, "error", err)
		}
		it.player = nil
	}
	c.transitionLocked(it, StateReleased, cause)
	if c.items[it.index] == it {
		delete(c.items, it.index)
	}
}

func (c *Coordinator) transitionLocked(it *item, to State, cause error) {
	from := it.state
	it.state = to
	if c.observer != nil {
		c.observer(Transition{Index: it.index, VideoID: it.videoID, From: from, To: to, Err: cause})
	}
}

// Pause pauses the playing item and keeps everything paused until Resume.
func (c *Coordinator) Pause(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
	c.pauseOthersLocked(ctx, -1)
}

// Resume lifts a global pause and restarts the focused item if it is ready.
func (c *Coordinator) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.paused = false
	it, ok := c.items[c.current]
	if !ok || (it.state != StateReady && it.state != StatePaused) {
		return nil
	}
	return c.playLocked(ctx, it)
}

// Reset releases every resource but keeps the coordinator usable, for when
// the queue behind the indexes is replaced.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseAllLocked()
	c.current = -1
}

// Close releases every resource. Later calls are no-ops.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.releaseAllLocked()
}

func (c *Coordinator) releaseAllLocked() {
	for _, it := range c.items {
		c.releaseLocked(it, nil)
	}
}

// State reports the state of the item at index. Items never focused or
// already released report ok == false.
func (c *Coordinator) State(index int) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[index]
	if !ok {
		return StateIdle, false
	}
	return it.state, true
}

// Playing returns the index of the playing item, if any.
func (c *Coordinator) Playing() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for index, it := range c.items {
		if it.state == StatePlaying {
			return index, true
		}
	}
	return 0, false
}

// Retained returns how many items currently hold a resource slot.
func (c *Coordinator) Retained() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
