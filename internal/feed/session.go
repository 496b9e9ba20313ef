package feed

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/xyzen/backend/internal/apperr"
	"github.com/xyzen/backend/internal/models"
)

// Position identifies the focused item after a navigation. Generation grows
// with every successful load or move, so work started for an older position
// can tell it is stale.
type Position struct {
	Index      int
	Generation uint64
	Video      models.Video
}

// Session holds a loaded queue and the cursor into it.
type Session struct {
	src  Source
	opts Options

	mu         sync.RWMutex
	videos     []models.Video
	current    int
	generation uint64
}

// NewSession creates an empty session reading from src.
func NewSession(src Source, opts Options) *Session {
	return &Session{src: src, opts: opts}
}

// Load replaces the queue and moves the cursor to the first item. On failure
// the previous queue is kept.
func (s *Session) Load(ctx context.Context, limit int) ([]models.Video, error) {
	videos, err := Load(ctx, s.src, limit, s.opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.videos = videos
	s.current = 0
	s.generation++
	s.mu.Unlock()

	return slices.Clone(videos), nil
}

// Len returns the queue length.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.videos)
}

// Videos returns a copy of the queue.
func (s *Session) Videos() []models.Video {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.videos)
}

// Generation returns the current navigation generation.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Current returns the focused position. ok is false when the queue is empty.
func (s *Session) Current() (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.videos) == 0 {
		return Position{}, false
	}
	return s.positionLocked(), true
}

// Next moves to the following item. ok is false at the end of the queue, in
// which case the cursor does not move.
func (s *Session) Next() (Position, bool) {
	return s.step(1)
}

// Previous moves to the preceding item. ok is false at the start of the queue.
func (s *Session) Previous() (Position, bool) {
	return s.step(-1)
}

func (s *Session) step(delta int) (Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.current + delta
	if len(s.videos) == 0 || target < 0 || target >= len(s.videos) {
		return Position{}, false
	}
	s.current = target
	s.generation++
	return s.positionLocked(), true
}

// Seek focuses the item at index.
func (s *Session) Seek(index int) (Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.videos) {
		return Position{}, apperr.Validation(fmt.Sprintf("index %d out of range [0,%d)", index, len(s.videos)))
	}
	s.current = index
	s.generation++
	return s.positionLocked(), nil
}

// At returns the video at index.
func (s *Session) At(index int) (models.Video, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.videos) {
		return models.Video{}, false
	}
	return s.videos[index], true
}

// Replace swaps the stored copy of a video, typically after its counters
// changed. Unknown ids are ignored.
func (s *Session) Replace(video models.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.videos {
		if s.videos[i].ID == video.ID {
			s.videos[i] = video
			return
		}
	}
}

func (s *Session) positionLocked() Position {
	return Position{Index: s.current, Generation: s.generation, Video: s.videos[s.current]}
}
