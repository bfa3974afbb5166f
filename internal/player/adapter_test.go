package player

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilthontt/tunesync/internal/domain"
)

// fakeBackend records every command and reports whatever readiness the
// test configures.
type fakeBackend struct {
	mu       sync.Mutex
	calls    []string
	url      string
	loaded   bool
	duration float64
	seeks    []float64
	slowURLs map[string]bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{loaded: true, slowURLs: map[string]bool{}}
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	cpy := make([]string, len(f.calls))
	copy(cpy, f.calls)
	return cpy
}

func (f *fakeBackend) Load(ctx context.Context, url string) error {
	f.mu.Lock()
	slow := f.slowURLs[url]
	f.mu.Unlock()

	if slow {
		<-ctx.Done()
		return ctx.Err()
	}

	f.mu.Lock()
	f.url = url
	f.mu.Unlock()
	f.record("load:" + url)
	return nil
}

func (f *fakeBackend) Play(ctx context.Context) error {
	f.record("play")
	return nil
}

func (f *fakeBackend) Pause(ctx context.Context) error {
	f.record("pause")
	return nil
}

func (f *fakeBackend) Seek(ctx context.Context, position float64) error {
	f.mu.Lock()
	f.seeks = append(f.seeks, position)
	f.mu.Unlock()
	f.record("seek")
	return nil
}

func (f *fakeBackend) State(ctx context.Context) (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{URL: f.url, Duration: f.duration, Loaded: f.loaded}, nil
}

func (f *fakeBackend) Events() <-chan Event {
	return nil
}

func (f *fakeBackend) lastSeek() (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seeks) == 0 {
		return 0, false
	}
	return f.seeks[len(f.seeks)-1], true
}

func (f *fakeBackend) Close() error {
	f.record("close")
	return nil
}

func waitForCalls(t *testing.T, f *fakeBackend, want []string) {
	t.Helper()
	require.Eventually(t, func() bool {
		got := f.recorded()
		if len(got) != len(want) {
			return false
		}
		for i := range want {
			if got[i] != want[i] {
				return false
			}
		}
		return true
	}, 3*time.Second, 20*time.Millisecond, "want %v, got %v", want, f.recorded())
}

func TestAdapter_DirectTrackSwitch(t *testing.T) {
	backend := newFakeBackend()
	adapter := NewAdapter(backend, FlavorDirect, nil)

	adapter.Sync(domain.Track{Name: "song", URL: "https://cdn/song.mp3"}, 12, true)

	waitForCalls(t, backend, []string{"load:https://cdn/song.mp3", "seek", "play"})
}

func TestAdapter_DirectPauseTarget(t *testing.T) {
	backend := newFakeBackend()
	adapter := NewAdapter(backend, FlavorDirect, nil)

	adapter.Sync(domain.Track{Name: "song", URL: "https://cdn/song.mp3"}, 30, false)

	waitForCalls(t, backend, []string{"load:https://cdn/song.mp3", "seek", "pause"})
}

func TestAdapter_EmbedNudgesAfterSeek(t *testing.T) {
	backend := newFakeBackend()
	adapter := NewAdapter(backend, FlavorEmbed, nil)

	adapter.Sync(domain.Track{Name: "song", URL: "https://cdn/song.mp3"}, 12, false)

	// The embed flavor pumps play+pause after every seek so the widget
	// actually honors the new position, then lands on the target.
	waitForCalls(t, backend, []string{"load:https://cdn/song.mp3", "seek", "play", "pause", "pause"})
}

func TestAdapter_ResyncSkipsLoad(t *testing.T) {
	backend := newFakeBackend()
	adapter := NewAdapter(backend, FlavorDirect, nil)

	adapter.Sync(domain.Track{Name: "song", URL: "https://cdn/song.mp3"}, 0, true)
	waitForCalls(t, backend, []string{"load:https://cdn/song.mp3", "seek", "play"})

	// Same track again, only position changed
	adapter.Sync(domain.Track{Name: "song", URL: "https://cdn/song.mp3"}, 50, true)
	waitForCalls(t, backend, []string{"load:https://cdn/song.mp3", "seek", "play", "seek", "play"})
}

func TestAdapter_NewerTargetSupersedes(t *testing.T) {
	backend := newFakeBackend()
	backend.slowURLs["https://cdn/slow.mp3"] = true
	adapter := NewAdapter(backend, FlavorDirect, nil)

	adapter.Sync(domain.Track{Name: "slow", URL: "https://cdn/slow.mp3"}, 0, true)
	adapter.Sync(domain.Track{Name: "fast", URL: "https://cdn/fast.mp3"}, 0, true)

	// The stalled load is cancelled; only the newer target completes.
	waitForCalls(t, backend, []string{"load:https://cdn/fast.mp3", "seek", "play"})
}

func TestAdapter_StopPauses(t *testing.T) {
	backend := newFakeBackend()
	adapter := NewAdapter(backend, FlavorDirect, nil)

	adapter.Sync(domain.Track{Name: "song", URL: "https://cdn/song.mp3"}, 0, true)
	waitForCalls(t, backend, []string{"load:https://cdn/song.mp3", "seek", "play"})

	adapter.Stop()
	waitForCalls(t, backend, []string{"load:https://cdn/song.mp3", "seek", "play", "pause"})
}

func TestAdapter_ClampsNegativePosition(t *testing.T) {
	backend := newFakeBackend()
	adapter := NewAdapter(backend, FlavorDirect, nil)

	adapter.Sync(domain.Track{Name: "song", URL: "https://cdn/song.mp3"}, -12, false)
	waitForCalls(t, backend, []string{"load:https://cdn/song.mp3", "seek", "pause"})

	pos, ok := backend.lastSeek()
	require.True(t, ok)
	assert.Equal(t, 0.0, pos)
}

func TestAdapter_ClampsPositionToDuration(t *testing.T) {
	backend := newFakeBackend()
	backend.duration = 100
	adapter := NewAdapter(backend, FlavorDirect, nil)

	adapter.Sync(domain.Track{Name: "song", URL: "https://cdn/song.mp3"}, 5000, true)
	waitForCalls(t, backend, []string{"load:https://cdn/song.mp3", "seek", "play"})

	pos, ok := backend.lastSeek()
	require.True(t, ok)
	assert.Equal(t, 100.0, pos)
}

func TestDirectBackend_EmitsEndedOnce(t *testing.T) {
	b := &directBackend{
		events:   make(chan Event, 4),
		duration: 0.02,
	}
	b.mu.Lock()
	b.url = "https://cdn/short.mp3"
	b.loaded = true
	b.mu.Unlock()

	ctx := context.Background()
	require.NoError(t, b.Play(ctx))

	// The simulated clock runs past the duration on the next state read.
	require.Eventually(t, func() bool {
		st, err := b.State(ctx)
		return err == nil && !st.Playing && st.Position == b.duration
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case ev := <-b.Events():
		assert.Equal(t, EventEnded, ev.Kind)
		assert.Equal(t, "https://cdn/short.mp3", ev.URL)
	default:
		t.Fatal("no ended notification")
	}

	// Still stopped, still only the one notification
	_, err := b.State(ctx)
	require.NoError(t, err)
	assert.Empty(t, b.Events())
}

func TestDirectBackend_SeekBackRearms(t *testing.T) {
	b := &directBackend{
		events:   make(chan Event, 4),
		duration: 0.02,
	}
	b.mu.Lock()
	b.url = "https://cdn/short.mp3"
	b.loaded = true
	b.mu.Unlock()

	ctx := context.Background()
	require.NoError(t, b.Play(ctx))
	require.Eventually(t, func() bool {
		st, err := b.State(ctx)
		return err == nil && !st.Playing
	}, 2*time.Second, 10*time.Millisecond)
	<-b.Events()

	// Rewinding and replaying ends the track a second time.
	require.NoError(t, b.Seek(ctx, 0))
	require.NoError(t, b.Play(ctx))
	require.Eventually(t, func() bool {
		select {
		case ev := <-b.Events():
			return ev.Kind == EventEnded
		default:
			_, _ = b.State(ctx)
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDirectBackend_ReadyDeadline(t *testing.T) {
	backend := newFakeBackend()
	backend.loaded = false
	adapter := NewAdapter(backend, FlavorDirect, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := adapter.awaitReady(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
