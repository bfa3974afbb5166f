package player

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// directBackend models a media element playing a URL straight off the
// network. Loading probes the source; once the probe succeeds the track
// is playable and commands apply immediately.
type directBackend struct {
	client *http.Client
	events chan Event

	mu       sync.Mutex
	url      string
	position float64
	duration float64
	playing  bool
	loaded   bool
	ended    bool
	lastTick time.Time
}

func NewDirectBackend() Backend {
	return &directBackend{
		client:   &http.Client{Timeout: directReadyTimeout},
		events:   make(chan Event, 8),
		duration: defaultTrackDuration,
	}
}

func (b *directBackend) Load(ctx context.Context, url string) error {
	b.mu.Lock()
	b.url = url
	b.position = 0
	b.playing = false
	b.loaded = false
	b.ended = false
	b.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	// Only the headers matter, ask for a single byte
	req.Header.Set("Range", "bytes=0-0")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("source returned %s", resp.Status)
	}

	b.mu.Lock()
	b.loaded = true
	b.lastTick = time.Now()
	b.mu.Unlock()

	return nil
}

func (b *directBackend) Play(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advanceLocked(time.Now())
	b.playing = true
	return nil
}

func (b *directBackend) Pause(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advanceLocked(time.Now())
	b.playing = false
	return nil
}

func (b *directBackend) Seek(ctx context.Context, position float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.position = position
	if position < b.duration {
		b.ended = false
	}
	b.lastTick = time.Now()
	return nil
}

func (b *directBackend) State(ctx context.Context) (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advanceLocked(time.Now())

	return State{
		URL:      b.url,
		Position: b.position,
		Duration: b.duration,
		Playing:  b.playing,
		Loaded:   b.loaded,
	}, nil
}

func (b *directBackend) Events() <-chan Event {
	return b.events
}

// advanceLocked moves the clock-driven position forward, pinning it at
// the track's end and announcing the end exactly once.
func (b *directBackend) advanceLocked(now time.Time) {
	if b.playing && !b.lastTick.IsZero() {
		b.position += now.Sub(b.lastTick).Seconds()
	}
	b.lastTick = now

	if b.duration > 0 && b.position >= b.duration {
		b.position = b.duration
		if b.playing {
			b.playing = false
			if !b.ended {
				b.ended = true
				select {
				case b.events <- Event{Kind: EventEnded, URL: b.url}:
				default:
				}
			}
		}
	}
}

func (b *directBackend) Close() error {
	return nil
}
