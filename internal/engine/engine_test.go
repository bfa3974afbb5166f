package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilthontt/tunesync/internal/domain"
	"github.com/hilthontt/tunesync/internal/player"
	"github.com/hilthontt/tunesync/internal/playlist"
	"github.com/hilthontt/tunesync/internal/transport"
)

type stubBackend struct {
	mu     sync.Mutex
	url    string
	events chan player.Event
}

func newStubBackend() *stubBackend {
	return &stubBackend{events: make(chan player.Event, 4)}
}

func (s *stubBackend) Load(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = url
	return nil
}

func (s *stubBackend) Play(ctx context.Context) error  { return nil }
func (s *stubBackend) Pause(ctx context.Context) error { return nil }
func (s *stubBackend) Seek(ctx context.Context, position float64) error {
	return nil
}

func (s *stubBackend) State(ctx context.Context) (player.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return player.State{URL: s.url, Loaded: true}, nil
}

func (s *stubBackend) Events() <-chan player.Event { return s.events }

func (s *stubBackend) Close() error { return nil }

type stubSongs struct {
	mu     sync.Mutex
	tracks []domain.Track
	err    error
}

func (s *stubSongs) ListSongs(ctx context.Context, roomID string) ([]domain.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	cpy := make([]domain.Track, len(s.tracks))
	copy(cpy, s.tracks)
	return cpy, nil
}

// testRoom is a single-connection room server: everything the client
// sends lands on received, push delivers events to the client.
type testRoom struct {
	url      string
	received chan *domain.Event

	mu   sync.Mutex
	conn *websocket.Conn
}

func newTestRoom(t *testing.T) *testRoom {
	t.Helper()

	room := &testRoom{received: make(chan *domain.Event, 32)}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		room.mu.Lock()
		room.conn = conn
		room.mu.Unlock()

		for {
			var ev domain.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			room.received <- &ev
		}
	}))
	t.Cleanup(srv.Close)

	room.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return room
}

func (r *testRoom) push(t *testing.T, ev *domain.Event) {
	t.Helper()
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.conn != nil
	}, 2*time.Second, 10*time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	require.NoError(t, r.conn.WriteJSON(ev))
}

func (r *testRoom) next(t *testing.T) *domain.Event {
	t.Helper()
	select {
	case ev := <-r.received:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("server received nothing")
		return nil
	}
}

func startEngine(t *testing.T, room *testRoom, songs SongSource, opts Options) (*Engine, *stubBackend, chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	channel, err := transport.Dial(ctx, room.url, transport.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { channel.Close() })

	backend := newStubBackend()
	adapter := player.NewAdapter(backend, player.FlavorDirect, nil)
	t.Cleanup(func() { adapter.Close() })

	eng := NewEngine(channel, adapter, playlist.NewQueue(), songs, opts)

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	return eng, backend, done
}

func TestEngine_BroadcastSteersPlayer(t *testing.T) {
	room := newTestRoom(t)
	songs := &stubSongs{tracks: []domain.Track{
		{Name: "first", URL: "https://cdn/first.mp3"},
		{Name: "second", URL: "https://cdn/second.mp3"},
	}}

	eng, _, _ := startEngine(t, room, songs, Options{RoomID: "lounge", User: "alice"})

	track := domain.Track{Name: "second", URL: "https://cdn/second.mp3"}
	room.push(t, domain.NewPlaybackEvent("lounge", track, 30, true, ""))

	require.Eventually(t, func() bool {
		s := eng.State()
		return s.Playback.CurrentTrack.URL == track.URL && s.Playback.IsPlaying
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 30.0, eng.State().Playback.Position)
}

func TestEngine_LocalPlayBroadcasts(t *testing.T) {
	room := newTestRoom(t)
	songs := &stubSongs{tracks: []domain.Track{
		{Name: "first", URL: "https://cdn/first.mp3"},
	}}

	eng, _, _ := startEngine(t, room, songs, Options{RoomID: "lounge", User: "alice"})

	// Wait for the queue priming before poking controls
	require.Eventually(t, func() bool {
		return eng.State().SongCount == 1
	}, 2*time.Second, 20*time.Millisecond)

	eng.Do(Command{Kind: CmdPlay})

	ev := room.next(t)
	assert.Equal(t, domain.ActionPlayback, ev.Action)
	assert.Equal(t, "https://cdn/first.mp3", ev.SongURL)
	assert.True(t, ev.IsPlaying)
}

func TestEngine_ControlDebounce(t *testing.T) {
	room := newTestRoom(t)
	songs := &stubSongs{tracks: []domain.Track{
		{Name: "first", URL: "https://cdn/first.mp3"},
		{Name: "second", URL: "https://cdn/second.mp3"},
	}}

	eng, _, _ := startEngine(t, room, songs, Options{RoomID: "lounge", User: "alice"})

	require.Eventually(t, func() bool {
		return eng.State().SongCount == 2
	}, 2*time.Second, 20*time.Millisecond)

	eng.Do(Command{Kind: CmdNext})
	eng.Do(Command{Kind: CmdNext})
	eng.Do(Command{Kind: CmdNext})

	// Only the first mash gets through the debounce window
	room.next(t)
	select {
	case ev := <-room.received:
		t.Fatalf("debounced command leaked: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestEngine_RemovalSentinelStopsRun(t *testing.T) {
	room := newTestRoom(t)
	songs := &stubSongs{}
	sessionFile := filepath.Join(t.TempDir(), "session.json")

	eng, _, done := startEngine(t, room, songs, Options{
		RoomID: "lounge", User: "alice", SessionFile: sessionFile,
	})

	require.Eventually(t, func() bool {
		_, ok := LoadSession(sessionFile)
		return ok
	}, 2*time.Second, 20*time.Millisecond)

	room.push(t, domain.NewRemoveEvent("lounge", "alice", domain.NotifyRemoved))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not stop after removal")
	}

	assert.Equal(t, TerminalRemoved, eng.State().Terminal)

	// The cached session must not point at a room we were thrown out of.
	_, ok := LoadSession(sessionFile)
	assert.False(t, ok)
}

func TestEngine_ExpiresOnLocalClock(t *testing.T) {
	room := newTestRoom(t)
	songs := &stubSongs{}
	sessionFile := filepath.Join(t.TempDir(), "session.json")

	// The room's lifetime already ran out; no server message arrives at
	// the deadline, the client's own clock must end the run.
	eng, _, done := startEngine(t, room, songs, Options{
		RoomID:      "lounge",
		User:        "alice",
		CreatedAt:   time.Now().Add(-2 * domain.RoomTTL),
		SessionFile: sessionFile,
	})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not expire")
	}

	assert.Equal(t, TerminalExpired, eng.State().Terminal)

	_, ok := LoadSession(sessionFile)
	assert.False(t, ok)
}

func TestEngine_RemoteShuffleReachesQueue(t *testing.T) {
	room := newTestRoom(t)
	songs := &stubSongs{tracks: []domain.Track{
		{Name: "first", URL: "https://cdn/first.mp3"},
		{Name: "second", URL: "https://cdn/second.mp3"},
	}}

	eng, _, _ := startEngine(t, room, songs, Options{RoomID: "lounge", User: "alice"})

	require.Eventually(t, func() bool {
		return eng.State().SongCount == 2
	}, 2*time.Second, 20*time.Millisecond)

	room.push(t, domain.NewShuffleEvent("lounge", true, "bob turned shuffle on"))

	// The flag must land in the queue, not just the replicated state,
	// or this member advances tracks differently from everyone else.
	require.Eventually(t, func() bool {
		return eng.State().Playback.IsShuffle && eng.queue.Shuffle()
	}, 2*time.Second, 20*time.Millisecond)

	room.push(t, domain.NewRepeatEvent("lounge", true, "bob turned repeat on"))

	require.Eventually(t, func() bool {
		return eng.queue.Repeat() && !eng.queue.Shuffle()
	}, 2*time.Second, 20*time.Millisecond)
}

func TestEngine_TrackEndAdvances(t *testing.T) {
	room := newTestRoom(t)
	songs := &stubSongs{tracks: []domain.Track{
		{Name: "first", URL: "https://cdn/first.mp3"},
		{Name: "second", URL: "https://cdn/second.mp3"},
	}}

	eng, backend, _ := startEngine(t, room, songs, Options{RoomID: "lounge", User: "alice"})

	first := domain.Track{Name: "first", URL: "https://cdn/first.mp3"}
	room.push(t, domain.NewPlaybackEvent("lounge", first, 0, true, ""))

	require.Eventually(t, func() bool {
		return eng.State().Playback.CurrentTrack.URL == first.URL
	}, 2*time.Second, 20*time.Millisecond)

	backend.events <- player.Event{Kind: player.EventEnded, URL: first.URL}

	ev := room.next(t)
	assert.Equal(t, domain.ActionPlayback, ev.Action)
	assert.Equal(t, "https://cdn/second.mp3", ev.SongURL)
	assert.Equal(t, 0.0, ev.CurrentTime)
	assert.True(t, ev.IsPlaying)
}

func TestEngine_TrackEndWithRepeatStaysQuiet(t *testing.T) {
	room := newTestRoom(t)
	songs := &stubSongs{tracks: []domain.Track{
		{Name: "first", URL: "https://cdn/first.mp3"},
		{Name: "second", URL: "https://cdn/second.mp3"},
	}}

	eng, backend, _ := startEngine(t, room, songs, Options{RoomID: "lounge", User: "alice"})

	room.push(t, domain.NewRepeatEvent("lounge", true, ""))

	first := domain.Track{Name: "first", URL: "https://cdn/first.mp3"}
	room.push(t, domain.NewPlaybackEvent("lounge", first, 170, true, ""))

	require.Eventually(t, func() bool {
		s := eng.State()
		return s.Playback.IsRepeat && s.Playback.CurrentTrack.URL == first.URL
	}, 2*time.Second, 20*time.Millisecond)

	backend.events <- player.Event{Kind: player.EventEnded, URL: first.URL}

	// Repeat restarts the same track locally; the replicated triple did
	// not change, so nothing goes over the wire.
	require.Eventually(t, func() bool {
		s := eng.State()
		return s.Playback.CurrentTrack.URL == first.URL && s.Playback.Position == 0
	}, 2*time.Second, 20*time.Millisecond)

	select {
	case ev := <-room.received:
		t.Fatalf("unexpected broadcast: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestEngine_StaleEndedEventIgnored(t *testing.T) {
	room := newTestRoom(t)
	songs := &stubSongs{tracks: []domain.Track{
		{Name: "first", URL: "https://cdn/first.mp3"},
		{Name: "second", URL: "https://cdn/second.mp3"},
	}}

	eng, backend, _ := startEngine(t, room, songs, Options{RoomID: "lounge", User: "alice"})

	second := domain.Track{Name: "second", URL: "https://cdn/second.mp3"}
	room.push(t, domain.NewPlaybackEvent("lounge", second, 0, true, ""))

	require.Eventually(t, func() bool {
		return eng.State().Playback.CurrentTrack.URL == second.URL
	}, 2*time.Second, 20*time.Millisecond)

	// An end notification for a track we already switched away from
	backend.events <- player.Event{Kind: player.EventEnded, URL: "https://cdn/first.mp3"}

	select {
	case ev := <-room.received:
		t.Fatalf("stale end advanced playback: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestEngine_SongsEditTriggersRefetch(t *testing.T) {
	room := newTestRoom(t)
	songs := &stubSongs{tracks: []domain.Track{
		{Name: "first", URL: "https://cdn/first.mp3"},
	}}

	eng, _, _ := startEngine(t, room, songs, Options{RoomID: "lounge", User: "alice"})

	require.Eventually(t, func() bool {
		return eng.State().SongCount == 1
	}, 2*time.Second, 20*time.Millisecond)

	songs.mu.Lock()
	songs.tracks = append(songs.tracks, domain.Track{Name: "second", URL: "https://cdn/second.mp3"})
	songs.mu.Unlock()

	room.push(t, domain.NewSongsEditEvent("lounge", 2, "bob added second"))

	require.Eventually(t, func() bool {
		return eng.State().SongCount == 2
	}, 2*time.Second, 20*time.Millisecond)
}
