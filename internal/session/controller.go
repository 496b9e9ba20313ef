// Package session owns a single feed session: the loaded queue, the playback
// resources for it and the per-item social state shown to the viewer.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/xyzen/backend/internal/apperr"
	"github.com/xyzen/backend/internal/feed"
	"github.com/xyzen/backend/internal/metrics"
	"github.com/xyzen/backend/internal/models"
	"github.com/xyzen/backend/internal/playback"
	"github.com/xyzen/backend/internal/social"
)

// ErrDisposed is returned by operations on a disposed controller.
var ErrDisposed = errors.New("feed session disposed")

// ProfileResolver resolves creator profiles.
type ProfileResolver interface {
	Resolve(ctx context.Context, userID string) (models.User, error)
	Reset()
}

// LikeService reads and toggles like state.
type LikeService interface {
	IsLiked(ctx context.Context, videoID, userID string) (bool, error)
	ToggleLike(ctx context.Context, videoID, userID string) (social.Toggle, error)
}

// ViewRecorder counts a view. Enqueue must not block.
type ViewRecorder interface {
	Enqueue(videoID string) bool
}

// Config lists the collaborators of a Controller.
type Config struct {
	Feed     *feed.Session
	Profiles ProfileResolver
	Likes    LikeService
	Engine   playback.Engine
	Views    ViewRecorder
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// ViewerID is the signed-in user, empty for anonymous viewers.
	ViewerID string
	// Limit is the number of videos loaded by Start. Zero selects
	// feed.DefaultLimit.
	Limit int
	// Window is the playback retention window.
	Window int
}

// Controller drives one feed session. All methods are safe for concurrent use.
type Controller struct {
	feed     *feed.Session
	profiles ProfileResolver
	likes    LikeService
	playback *playback.Coordinator
	views    ViewRecorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	viewerID string
	limit    int

	base   context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	snap        Snapshot
	subs        map[int]chan Snapshot
	nextSub     int
	focusCancel context.CancelFunc
	likeTokens  map[string]uint64
	disposed    bool

	viewMu sync.Mutex
	viewed map[string]struct{}
}

// New builds a Controller. Nothing is loaded until Start.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = feed.DefaultLimit
	}
	engine := cfg.Engine
	if engine == nil {
		engine = playback.HeadlessEngine{Logger: logger}
	}

	base, cancel := context.WithCancel(context.Background())
	c := &Controller{
		feed:       cfg.Feed,
		profiles:   cfg.Profiles,
		likes:      cfg.Likes,
		views:      cfg.Views,
		metrics:    cfg.Metrics,
		logger:     logger.With("viewerId", cfg.ViewerID),
		viewerID:   cfg.ViewerID,
		limit:      limit,
		base:       base,
		cancel:     cancel,
		snap:       Snapshot{Status: StatusIdle},
		subs:       make(map[int]chan Snapshot),
		likeTokens: make(map[string]uint64),
		viewed:     make(map[string]struct{}),
	}
	c.playback = playback.NewCoordinator(engine, playback.Options{
		Window:   cfg.Window,
		Observer: c.observePlayback,
		Logger:   logger,
	})
	return c
}

// Start loads the feed and focuses the first item. Calling Start again
// reloads the feed.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.update(func(s *Snapshot) { s.Status = StatusLoading; s.Err = nil }); err != nil {
		return err
	}

	videos, err := c.feed.Load(ctx, c.limit)
	if err != nil {
		c.logger.Warn("feed load failed", "error", err)
		_ = c.update(func(s *Snapshot) { s.Status = StatusFailed; s.Err = err })
		return err
	}

	c.playback.Reset()

	items := make([]Item, len(videos))
	for i, video := range videos {
		items[i] = Item{Video: video}
	}
	if err := c.update(func(s *Snapshot) {
		s.Status = StatusReady
		s.Items = items
		s.Index = 0
		s.Generation = c.feed.Generation()
	}); err != nil {
		return err
	}

	pos, ok := c.feed.Current()
	if !ok {
		return nil
	}
	return c.focus(ctx, pos)
}

// Next focuses the following video.
func (c *Controller) Next(ctx context.Context) error {
	pos, ok := c.feed.Next()
	if !ok {
		return apperr.Validation("no next video")
	}
	return c.focus(ctx, pos)
}

// Previous focuses the preceding video.
func (c *Controller) Previous(ctx context.Context) error {
	pos, ok := c.feed.Previous()
	if !ok {
		return apperr.Validation("no previous video")
	}
	return c.focus(ctx, pos)
}

// Seek focuses the video at index.
func (c *Controller) Seek(ctx context.Context, index int) error {
	pos, err := c.feed.Seek(index)
	if err != nil {
		return err
	}
	return c.focus(ctx, pos)
}

// focus publishes the new position, cancels work scoped to the previous one,
// then moves playback and starts loading the focused item's social state.
func (c *Controller) focus(ctx context.Context, pos feed.Position) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if pos.Generation < c.snap.Generation {
		c.mu.Unlock()
		return nil
	}
	if c.focusCancel != nil {
		c.focusCancel()
	}
	focusCtx, cancel := context.WithCancel(c.base)
	c.focusCancel = cancel
	next := c.snap
	next.Index = pos.Index
	next.Generation = pos.Generation
	c.publishLocked(next)
	c.mu.Unlock()

	go c.loadItemState(focusCtx, pos)

	err := c.playback.Focus(ctx, playback.Target{
		Generation: pos.Generation,
		Index:      pos.Index,
		VideoID:    pos.Video.ID,
		MediaURL:   pos.Video.MediaURL,
	})
	if err != nil {
		c.logger.Warn("playback failed", "videoId", pos.Video.ID, "error", err)
		return apperr.Network(err, "start playback")
	}
	return nil
}

// loadItemState resolves the creator and like state of the focused item. The
// results are dropped if the viewer has moved on.
func (c *Controller) loadItemState(ctx context.Context, pos feed.Position) {
	videoID := pos.Video.ID

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if c.profiles == nil || pos.Video.OwnerID == "" {
			return
		}
		creator, err := c.profiles.Resolve(ctx, pos.Video.OwnerID)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Debug("creator lookup failed", "videoId", videoID, "ownerId", pos.Video.OwnerID, "error", err)
			}
			return
		}
		c.applyIfCurrent(pos.Generation, videoID, func(it *Item) { it.Creator = &creator })
	}()

	go func() {
		defer wg.Done()
		if c.likes == nil || c.viewerID == "" {
			return
		}
		c.mu.Lock()
		token := c.likeTokens[videoID]
		c.mu.Unlock()

		liked, err := c.likes.IsLiked(ctx, videoID, c.viewerID)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Debug("like state lookup failed", "videoId", videoID, "error", err)
			}
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.likeTokens[videoID] != token {
			// A toggle started after the read; its result wins.
			return
		}
		c.applyIfCurrentLocked(pos.Generation, videoID, func(it *Item) {
			it.Liked = liked
			it.LikeKnown = true
		})
	}()

	wg.Wait()
}

func (c *Controller) applyIfCurrent(generation uint64, videoID string, update func(*Item)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyIfCurrentLocked(generation, videoID, update)
}

func (c *Controller) applyIfCurrentLocked(generation uint64, videoID string, update func(*Item)) {
	if c.disposed || c.snap.Generation != generation {
		return
	}
	if next, ok := c.snap.withItem(videoID, update); ok {
		c.publishLocked(next)
	}
}

// ToggleLike flips the like state of the focused video. The change is shown
// immediately and rolled back if the backend rejects it.
func (c *Controller) ToggleLike(ctx context.Context) (social.Toggle, error) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return social.Toggle{}, ErrDisposed
	}
	if c.viewerID == "" {
		c.mu.Unlock()
		return social.Toggle{}, apperr.New(apperr.KindUnauthenticated, "sign in to like videos")
	}
	current, ok := c.snap.Current()
	if !ok {
		c.mu.Unlock()
		return social.Toggle{}, apperr.Validation("no video in focus")
	}

	videoID := current.Video.ID
	previous := current
	token := c.likeTokens[videoID] + 1
	c.likeTokens[videoID] = token

	optimistic, _ := c.snap.withItem(videoID, func(it *Item) {
		it.Liked = !previous.Liked
		if it.Liked {
			it.Video.LikeCount++
		} else if it.Video.LikeCount > 0 {
			it.Video.LikeCount--
		}
		it.LikePending = true
	})
	c.publishLocked(optimistic)
	c.mu.Unlock()

	result, err := c.likes.ToggleLike(ctx, videoID, c.viewerID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || c.likeTokens[videoID] != token {
		// A newer toggle owns the displayed state.
		return result, err
	}

	settled, found := c.snap.withItem(videoID, func(it *Item) {
		it.LikePending = false
		if err != nil {
			it.Liked = previous.Liked
			it.LikeKnown = previous.LikeKnown
			it.Video.LikeCount = previous.Video.LikeCount
			return
		}
		it.Liked = result.Liked
		it.LikeKnown = true
		it.Video.LikeCount = result.Count
	})
	if found {
		c.publishLocked(settled)
		if err == nil {
			if item, ok := settledItem(settled, videoID); ok {
				c.feed.Replace(item.Video)
			}
		}
	}

	if err != nil {
		c.logger.Info("like toggle rolled back", "videoId", videoID, "error", err)
		return social.Toggle{}, err
	}
	return result, nil
}

func settledItem(s Snapshot, videoID string) (Item, bool) {
	i := s.indexOf(videoID)
	if i < 0 {
		return Item{}, false
	}
	return s.Items[i], true
}

// Pause pauses playback until Resume.
func (c *Controller) Pause(ctx context.Context) {
	c.playback.Pause(ctx)
	_ = c.update(func(s *Snapshot) { s.Paused = true })
}

// Resume restarts playback of the focused video.
func (c *Controller) Resume(ctx context.Context) error {
	if err := c.update(func(s *Snapshot) { s.Paused = false }); err != nil {
		return err
	}
	if err := c.playback.Resume(ctx); err != nil {
		return apperr.Network(err, "resume playback")
	}
	return nil
}

// Snapshot returns the latest state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Subscribe returns a channel that receives the current snapshot and every
// later one. Slow readers only see the newest value. The returned function
// ends the subscription.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Snapshot, 1)
	ch <- c.snap
	if c.disposed {
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Dispose cancels in-flight work, releases all playback resources and closes
// every subscription. It is safe to call more than once.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	next := c.snap
	next.Status = StatusDisposed
	c.publishLocked(next)
	c.disposed = true
	c.cancel()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	c.playback.Close()
	if c.profiles != nil {
		c.profiles.Reset()
	}
}

// PlaybackState reports the playback state of the item at index.
func (c *Controller) PlaybackState(index int) (playback.State, bool) {
	return c.playback.State(index)
}

func (c *Controller) update(mutate func(*Snapshot)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	next := c.snap
	mutate(&next)
	c.publishLocked(next)
	return nil
}

// publishLocked installs next as the current snapshot and hands it to every
// subscriber, replacing any value they have not read yet.
func (c *Controller) publishLocked(next Snapshot) {
	next.Version = c.snap.Version + 1
	c.snap = next
	for _, ch := range c.subs {
		select {
		case ch <- next:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- next
		}
	}
}

func (c *Controller) observePlayback(tr playback.Transition) {
	c.metrics.PlaybackTransition(tr.From.String(), tr.To.String())
	if tr.To != playback.StatePlaying || c.views == nil {
		return
	}

	c.viewMu.Lock()
	_, seen := c.viewed[tr.VideoID]
	if !seen {
		c.viewed[tr.VideoID] = struct{}{}
	}
	c.viewMu.Unlock()

	if !seen && !c.views.Enqueue(tr.VideoID) {
		c.logger.Warn("view dropped", "videoId", tr.VideoID)
	}
}
