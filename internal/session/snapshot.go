package session

import "github.com/xyzen/backend/internal/models"

// Status is the load state of a feed session.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusLoading  Status = "loading"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
	StatusDisposed Status = "disposed"
)

// Item is the observable state of one feed entry.
type Item struct {
	Video models.Video `json:"video"`
	// Creator is nil until the profile has been resolved. It is shared between
	// snapshots and must be treated as read-only.
	Creator   *models.User `json:"creator,omitempty"`
	Liked     bool         `json:"liked"`
	LikeKnown bool         `json:"likeKnown"`
	// LikePending is set while a toggle is in flight and Liked/LikeCount hold
	// the optimistic values.
	LikePending bool `json:"likePending"`
}

// Snapshot is an immutable view of a session. Every change produces a new
// Snapshot with a higher Version.
type Snapshot struct {
	Version    uint64 `json:"version"`
	Status     Status `json:"status"`
	Err        error  `json:"-"`
	Index      int    `json:"index"`
	Generation uint64 `json:"generation"`
	Paused     bool   `json:"paused"`
	Items      []Item `json:"items"`
}

// Current returns the focused item.
func (s Snapshot) Current() (Item, bool) {
	if s.Index < 0 || s.Index >= len(s.Items) {
		return Item{}, false
	}
	return s.Items[s.Index], true
}

func (s Snapshot) indexOf(videoID string) int {
	for i := range s.Items {
		if s.Items[i].Video.ID == videoID {
			return i
		}
	}
	return -1
}

// withItem returns a copy of s where the item for videoID has been passed
// through update. The Items slice is copied so earlier snapshots are unchanged.
func (s Snapshot) withItem(videoID string, update func(*Item)) (Snapshot, bool) {
	i := s.indexOf(videoID)
	if i < 0 {
		return s, false
	}
	items := make([]Item, len(s.Items))
	copy(items, s.Items)
	update(&items[i])
	s.Items = items
	return s, true
}
