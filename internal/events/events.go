// Package events publishes domain events (likes, views, uploads) to a message
// broker for downstream consumers.
package events

import (
	"context"
	"time"
)

const (
	TypeLikeToggled   = "like.toggled"
	TypeViewRecorded  = "view.recorded"
	TypeVideoUploaded = "video.uploaded"
)

// Event is the envelope written to the broker.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	VideoID    string    `json:"videoId"`
	UserID     string    `json:"userId,omitempty"`
	Liked      *bool     `json:"liked,omitempty"`
	Count      int64     `json:"count"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Noop discards every event.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, Event) error { return nil }
