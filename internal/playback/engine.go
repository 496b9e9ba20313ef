package playback

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

// Engine prepares media for playback.
type Engine interface {
	Prepare(ctx context.Context, mediaURL string) (Player, error)
}

// Player controls one prepared media source. Implementations must not call
// back into the Coordinator.
type Player interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Release() error
}

// ErrEmptyMediaURL is returned when an item has no media to prepare.
var ErrEmptyMediaURL = errors.New("media url is empty")

// HeadlessEngine accepts any media URL and logs what a real decoder would do.
// It backs the browse command and server-side session walks.
type HeadlessEngine struct {
	Logger *slog.Logger
}

// Prepare implements Engine.
func (e HeadlessEngine) Prepare(ctx context.Context, mediaURL string) (Player, error) {
	if strings.TrimSpace(mediaURL) == "" {
		return nil, ErrEmptyMediaURL
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("media prepared", "mediaUrl", mediaURL)
	return &headlessPlayer{url: mediaURL, logger: logger}, nil
}

type headlessPlayer struct {
	url    string
	logger *slog.Logger

	mu       sync.Mutex
	released bool
}

var errPlayerReleased = errors.New("player released")

func (p *headlessPlayer) Play(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return errPlayerReleased
	}
	p.logger.Debug("media playing", "mediaUrl", p.url)
	return nil
}

func (p *headlessPlayer) Pause(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return errPlayerReleased
	}
	p.logger.Debug("media paused", "mediaUrl", p.url)
	return nil
}

func (p *headlessPlayer) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil
	}
	p.released = true
	p.logger.Debug("media released", "mediaUrl", p.url)
	return nil
}
