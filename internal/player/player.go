package player

import (
	"context"
	"time"
)

// Flavor selects the readiness protocol a backend needs before seeks
// and play commands take effect.
type Flavor int

const (
	// FlavorEmbed is a widget-style player: commands are asynchronous,
	// state is only observable by polling, and the player takes a
	// moment to spin up after loading a track.
	FlavorEmbed Flavor = iota

	// FlavorDirect is a media-element-style player: it signals
	// readiness itself once enough of the track is buffered.
	FlavorDirect
)

func (f Flavor) String() string {
	switch f {
	case FlavorEmbed:
		return "embed"
	case FlavorDirect:
		return "direct"
	}
	return "unknown"
}

// State is a point-in-time snapshot of a backend.
type State struct {
	URL      string
	Position float64
	Duration float64
	Playing  bool
	Loaded   bool
}

// EventKind enumerates backend notifications.
type EventKind int

const (
	// EventEnded fires once when the loaded track plays past its
	// duration.
	EventEnded EventKind = iota
)

// Event is a notification pushed by a backend, carrying the URL it
// concerns so stale notifications from a superseded track are easy to
// discard.
type Event struct {
	Kind EventKind
	URL  string
}

// Backend is the playback surface the adapter drives. Implementations
// are not required to be synchronous: a Load or Seek returning nil only
// means the command was accepted. Events delivers notifications such as
// end-of-track; a nil channel means the backend never notifies.
type Backend interface {
	Load(ctx context.Context, url string) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, position float64) error
	State(ctx context.Context) (State, error)
	Events() <-chan Event
	Close() error
}

const (
	// directReadyTimeout bounds how long a direct backend may take to
	// report a track playable.
	directReadyTimeout = 10 * time.Second

	// embedPollInterval is how often the adapter polls an embed
	// backend while waiting for it to settle.
	embedPollInterval = 200 * time.Millisecond

	// embedStablePolls is how many consecutive loaded polls the embed
	// flavor needs before it is trusted.
	embedStablePolls = 3
)

// defaultTrackDuration is the simulated length of a track, in seconds.
// Neither backend can read real media metadata, so every track gets the
// same fixed runtime.
const defaultTrackDuration = 180.0
