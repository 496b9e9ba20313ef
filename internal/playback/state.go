// Package playback coordinates playback resources for the items of a feed so
// that at most one of them is ever playing.
package playback

// State is the lifecycle position of one item's playback resource.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StateReady
	StatePlaying
	StatePaused
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Transition describes a state change of one item.
type Transition struct {
	Index   int
	VideoID string
	From    State
	To      State
	// Err is set when the transition was forced by an engine failure.
	Err error
}

// Observer receives every transition. It runs while the coordinator holds its
// lock and must not call back into the coordinator.
type Observer func(Transition)
