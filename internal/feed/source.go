// Package feed assembles playback queues and tracks the viewer's position.
package feed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/xyzen/backend/internal/apperr"
	"github.com/xyzen/backend/internal/gateway"
	"github.com/xyzen/backend/internal/models"
)

// Mode selects how a feed is assembled.
type Mode string

const (
	// ModeRandom samples the visible set uniformly without replacement.
	ModeRandom Mode = "random"
	// ModeRecent lists videos newest first.
	ModeRecent Mode = "recent"
)

// DefaultLimit is used when a caller does not specify a limit.
const DefaultLimit = 20

// ParseMode maps a user supplied string to a Mode. An empty string selects
// ModeRandom.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeRandom:
		return ModeRandom, nil
	case ModeRecent:
		return ModeRecent, nil
	default:
		return "", apperr.Validation(fmt.Sprintf("unknown feed mode %q", raw))
	}
}

// Source runs ordered range queries over videos.
type Source interface {
	ListVideos(ctx context.Context, query gateway.VideoQuery) ([]models.Video, error)
}

// Options configures feed assembly.
type Options struct {
	Mode Mode
	// OwnerID restricts the feed to a single creator.
	OwnerID string
	// Rand drives the random permutation. Nil uses a randomly seeded source.
	Rand *rand.Rand
}

// Load assembles up to limit videos from src. The result never contains the
// same id twice.
func Load(ctx context.Context, src Source, limit int, opts Options) ([]models.Video, error) {
	if limit < 0 {
		return nil, apperr.Validation("limit must not be negative")
	}
	if limit == 0 {
		return []models.Video{}, nil
	}

	switch opts.Mode {
	case "", ModeRandom:
		return loadRandom(ctx, src, limit, opts)
	case ModeRecent:
		return loadRecent(ctx, src, limit, opts)
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown feed mode %q", opts.Mode))
	}
}

func loadRecent(ctx context.Context, src Source, limit int, opts Options) ([]models.Video, error) {
	videos, err := src.ListVideos(ctx, gateway.VideoQuery{OwnerID: opts.OwnerID, Limit: limit})
	if err != nil {
		return nil, apperr.Network(err, "load recent videos")
	}
	videos = distinct(videos)
	if len(videos) > limit {
		videos = videos[:limit]
	}
	return videos, nil
}

func loadRandom(ctx context.Context, src Source, limit int, opts Options) ([]models.Video, error) {
	videos, err := src.ListVideos(ctx, gateway.VideoQuery{OwnerID: opts.OwnerID})
	if err != nil {
		return nil, apperr.Network(err, "load videos")
	}
	videos = distinct(videos)

	r := opts.Rand
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	r.Shuffle(len(videos), func(i, j int) {
		videos[i], videos[j] = videos[j], videos[i]
	})

	if len(videos) > limit {
		videos = videos[:limit]
	}
	return videos, nil
}

// distinct drops repeated ids, keeping the first occurrence.
func distinct(videos []models.Video) []models.Video {
	seen := make(map[string]struct{}, len(videos))
	out := make([]models.Video, 0, len(videos))
	for _, video := range videos {
		if _, ok := seen[video.ID]; ok {
			continue
		}
		seen[video.ID] = struct{}{}
		out = append(out, video)
	}
	return out
}
