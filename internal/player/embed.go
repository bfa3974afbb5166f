package player

import (
	"context"
	"sync"
	"time"

	"github.com/hilthontt/tunesync/internal/domain"
)

// embedBackend models a widget player. Commands are queued and applied
// by a worker with a small latency, and a freshly loaded track needs a
// spin-up period before the reported state can be trusted.
type embedBackend struct {
	cmds   chan embedCommand
	done   chan struct{}
	events chan Event

	mu       sync.Mutex
	url      string
	position float64
	duration float64
	playing  bool
	ended    bool
	loadedAt time.Time
	lastTick time.Time

	spinUp  time.Duration
	latency time.Duration
}

type embedCommandKind int

const (
	embedLoad embedCommandKind = iota
	embedPlay
	embedPause
	embedSeek
)

type embedCommand struct {
	kind     embedCommandKind
	url      string
	position float64
}

func NewEmbedBackend() Backend {
	b := &embedBackend{
		cmds:     make(chan embedCommand, 32),
		done:     make(chan struct{}),
		events:   make(chan Event, 8),
		duration: defaultTrackDuration,
		spinUp:   750 * time.Millisecond,
		latency:  30 * time.Millisecond,
	}
	go b.run()

	return b
}

func (b *embedBackend) run() {
	for {
		select {
		case cmd := <-b.cmds:
			// Widget commands land asynchronously
			time.Sleep(b.latency)
			b.apply(cmd)
		case <-b.done:
			return
		}
	}
}

func (b *embedBackend) apply(cmd embedCommand) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advanceLocked(time.Now())

	switch cmd.kind {
	case embedLoad:
		b.url = cmd.url
		b.position = 0
		b.playing = false
		b.ended = false
		b.loadedAt = time.Now()
	case embedPlay:
		b.playing = true
	case embedPause:
		b.playing = false
	case embedSeek:
		b.position = cmd.position
		if cmd.position < b.duration {
			b.ended = false
		}
	}
}

// advanceLocked moves the clock-driven position forward, pinning it at
// the track's end and announcing the end exactly once.
func (b *embedBackend) advanceLocked(now time.Time) {
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

func (b *embedBackend) enqueue(ctx context.Context, cmd embedCommand) error {
	select {
	case b.cmds <- cmd:
		return nil
	case <-b.done:
		return domain.ErrPlayerNotReady
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *embedBackend) Load(ctx context.Context, url string) error {
	return b.enqueue(ctx, embedCommand{kind: embedLoad, url: url})
}

func (b *embedBackend) Play(ctx context.Context) error {
	return b.enqueue(ctx, embedCommand{kind: embedPlay})
}

func (b *embedBackend) Pause(ctx context.Context) error {
	return b.enqueue(ctx, embedCommand{kind: embedPause})
}

func (b *embedBackend) Seek(ctx context.Context, position float64) error {
	return b.enqueue(ctx, embedCommand{kind: embedSeek, position: position})
}

func (b *embedBackend) State(ctx context.Context) (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.advanceLocked(time.Now())

	return State{
		URL:      b.url,
		Position: b.position,
		Duration: b.duration,
		Playing:  b.playing,
		Loaded:   b.url != "" && time.Since(b.loadedAt) >= b.spinUp,
	}, nil
}

func (b *embedBackend) Events() <-chan Event {
	return b.events
}

func (b *embedBackend) Close() error {
	close(b.done)
	return nil
}
