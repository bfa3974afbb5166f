package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hilthontt/tunesync/internal/domain"
	"github.com/hilthontt/tunesync/internal/infrastructure/logging"
	"github.com/hilthontt/tunesync/internal/player"
	"github.com/hilthontt/tunesync/internal/playlist"
	"github.com/hilthontt/tunesync/internal/transport"
)

// controlDebounce is the minimum gap between accepted local controls.
// Faster input is dropped so a button-mashing member cannot flood the
// room channel.
const controlDebounce = 1000 * time.Millisecond

// SongSource fetches the authoritative song queue for a room.
type SongSource interface {
	ListSongs(ctx context.Context, roomID string) ([]domain.Track, error)
}

// CommandKind enumerates local member controls.
type CommandKind int

const (
	CmdPlay CommandKind = iota
	CmdPause
	CmdSeek
	CmdNext
	CmdPrev
	CmdSelect
	CmdToggleShuffle
	CmdToggleRepeat
	CmdTrackEnded
)

// Command is a local control fed into the engine's serial loop.
type Command struct {
	Kind     CommandKind
	Position float64
	URL      string
}

// Options configures a playback engine for one joined member.
type Options struct {
	RoomID      string
	User        string
	Admin       bool
	CreatedAt   time.Time
	SessionFile string
	Logger      logging.Logger
}

// Engine runs the client side of a room: it folds broadcast events into
// the replicated playback state, steers the local player, and turns
// member controls into broadcasts. All state changes happen on one
// goroutine; there is no locking inside the loop itself.
type Engine struct {
	queue   *playlist.Queue
	adapter *player.Adapter
	channel *transport.Channel
	songs   SongSource
	logger  logging.Logger

	sessionFile string
	createdAt   time.Time

	commands chan Command
	notices  chan string

	mu    sync.Mutex
	state State

	lastControl time.Time
}

func NewEngine(channel *transport.Channel, adapter *player.Adapter, queue *playlist.Queue, songs SongSource, opts Options) *Engine {
	return &Engine{
		queue:       queue,
		adapter:     adapter,
		channel:     channel,
		songs:       songs,
		logger:      opts.Logger,
		sessionFile: opts.SessionFile,
		createdAt:   opts.CreatedAt,
		commands:    make(chan Command, 16),
		notices:     make(chan string, 32),
		state: State{
			RoomID: opts.RoomID,
			User:   opts.User,
			Admin:  opts.Admin,
		},
	}
}

// Do enqueues a local control. It never blocks; when the loop is behind
// the command is dropped.
func (e *Engine) Do(cmd Command) {
	select {
	case e.commands <- cmd:
	default:
	}
}

// Notifications delivers room announcements for display.
func (e *Engine) Notifications() <-chan string {
	return e.notices
}

// State returns a snapshot of the replicated state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Run drives the serial event loop until the context is cancelled or
// the engine reaches a terminal state.
func (e *Engine) Run(ctx context.Context) error {
	if err := SaveSession(e.sessionFile, Session{
		RoomID:  e.state.RoomID,
		User:    e.state.User,
		SavedAt: time.Now(),
	}); err != nil {
		e.warn(logging.General, "session cache write failed", err)
	}

	// Prime the queue so next/prev work before the first songsedit.
	e.refetchQueue(ctx)

	// Every client expires the room on its own clock; the server sends
	// no message at the deadline.
	var expiry <-chan time.Time
	if !e.createdAt.IsZero() {
		timer := time.NewTimer(time.Until(e.createdAt.Add(domain.RoomTTL)))
		defer timer.Stop()
		expiry = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			e.adapter.Stop()
			return ctx.Err()

		case ev, ok := <-e.channel.Events():
			if !ok {
				e.adapter.Stop()
				return transport.ErrNotConnected
			}
			e.handleEvent(ctx, ev)

		case status := <-e.channel.StatusChanges():
			if done := e.handleStatus(ctx, status); done {
				return nil
			}

		case pe := <-e.adapter.Events():
			e.handlePlayerEvent(pe)

		case <-expiry:
			e.expire()
			return nil

		case cmd := <-e.commands:
			e.handleCommand(ctx, cmd)
		}

		if e.State().Terminal != TerminalNone {
			return nil
		}
	}
}

func (e *Engine) handleEvent(ctx context.Context, ev *domain.Event) {
	next, effects := Apply(e.State(), ev)
	e.setState(next)
	e.runEffects(ctx, effects)
}

// handlePlayerEvent reacts to backend notifications. An end-of-track
// for a superseded URL is stale and dropped.
func (e *Engine) handlePlayerEvent(pe player.Event) {
	if pe.Kind != player.EventEnded {
		return
	}
	s := e.State()
	if s.Terminal != TerminalNone || pe.URL != s.Playback.CurrentTrack.URL {
		return
	}
	e.trackEnded()
}

// expire shuts the engine down when the room's lifetime runs out.
func (e *Engine) expire() {
	s := e.State()
	s.Terminal = TerminalExpired
	e.setState(s)
	e.adapter.Stop()
	ClearSession(e.sessionFile)
	e.notify("the room has expired")
}

func (e *Engine) handleStatus(ctx context.Context, status transport.Status) bool {
	switch status {
	case transport.StatusReconnecting:
		e.notify("connection lost, reconnecting")
	case transport.StatusConnected:
		// Queue edits broadcast during the outage are gone for good,
		// resync from the authoritative list.
		e.refetchQueue(ctx)
	case transport.StatusGivenUp:
		s := e.State()
		s.Terminal = TerminalGivenUp
		e.setState(s)
		e.adapter.Stop()
		e.notify("connection lost for good")
		return true
	}
	return false
}

func (e *Engine) handleCommand(ctx context.Context, cmd Command) {
	if e.State().Terminal != TerminalNone {
		return
	}

	// Track end is the player's doing, not the member's
	if cmd.Kind != CmdTrackEnded {
		if time.Since(e.lastControl) < controlDebounce {
			return
		}
		e.lastControl = time.Now()
	}

	switch cmd.Kind {
	case CmdPlay:
		e.controlPlayback(ctx, true)
	case CmdPause:
		e.controlPlayback(ctx, false)
	case CmdSeek:
		pos := cmd.Position
		s := e.State()
		e.controlPlaybackAt(s.Playback.CurrentTrack, pos, s.Playback.IsPlaying)
	case CmdNext:
		if t, ok := e.queue.Next(); ok {
			e.switchTo(t)
		}
	case CmdPrev:
		if t, ok := e.queue.Prev(); ok {
			e.switchTo(t)
		}
	case CmdSelect:
		if e.queue.SelectByURL(cmd.URL) {
			if t, ok := e.queue.Current(); ok {
				e.switchTo(t)
			}
		}
	case CmdToggleShuffle:
		s := e.State()
		on := !s.Playback.IsShuffle
		s.Playback.SetShuffle(on)
		e.setState(s)
		e.queue.SetShuffle(on)
		e.send(domain.NewShuffleEvent(s.RoomID, on, shuffleNotice(s.User, on)))
	case CmdToggleRepeat:
		s := e.State()
		on := !s.Playback.IsRepeat
		s.Playback.SetRepeat(on)
		e.setState(s)
		e.queue.SetRepeat(on)
		e.send(domain.NewRepeatEvent(s.RoomID, on, repeatNotice(s.User, on)))
	case CmdTrackEnded:
		e.trackEnded()
	}
}

// controlPlayback broadcasts a play or pause at the player's live
// position.
func (e *Engine) controlPlayback(ctx context.Context, playing bool) {
	s := e.State()
	track := s.Playback.CurrentTrack
	if track.Zero() {
		t, ok := e.queue.Current()
		if !ok {
			return
		}
		track = t
	}

	pos := s.Playback.Position
	if st, err := e.adapter.State(ctx); err == nil && st.URL == track.URL {
		pos = st.Position
	}

	e.controlPlaybackAt(track, pos, playing)
}

func (e *Engine) controlPlaybackAt(track domain.Track, position float64, playing bool) {
	if track.Zero() {
		return
	}

	s := e.State()
	s.Playback.CurrentTrack = track
	s.Playback.Position = position
	s.Playback.IsPlaying = playing
	e.setState(s)

	e.adapter.Sync(track, position, playing)
	e.send(domain.NewPlaybackEvent(s.RoomID, track, position, playing, ""))
}

// switchTo broadcasts a track switch starting from zero.
func (e *Engine) switchTo(track domain.Track) {
	if track.Zero() {
		return
	}
	e.controlPlaybackAt(track, 0, true)
}

// trackEnded advances playback when a song runs out. Repeat restarts the
// same track locally without a broadcast; the replicated triple did not
// change, so the room has nothing to learn.
func (e *Engine) trackEnded() {
	s := e.State()

	if s.Playback.IsRepeat {
		track := s.Playback.CurrentTrack
		if track.Zero() {
			return
		}
		s.Playback.Position = 0
		e.setState(s)
		e.adapter.Sync(track, 0, true)
		return
	}

	if t, ok := e.queue.Next(); ok {
		e.switchTo(t)
	}
}

func (e *Engine) runEffects(ctx context.Context, effects []Effect) {
	for _, ef := range effects {
		switch ef := ef.(type) {
		case SyncPlayback:
			e.queue.SelectByURL(ef.Track.URL)
			e.adapter.Sync(ef.Track, ef.Position, ef.Playing)

		case SyncPolicy:
			e.queue.SetShuffle(ef.Shuffle)
			e.queue.SetRepeat(ef.Repeat)

		case RefetchQueue:
			e.refetchQueue(ctx)

		case AdvanceTrack:
			e.queue.Remove(ef.RemovedURL)
			next, ok := e.queue.Current()
			if !ok {
				e.adapter.Stop()
				break
			}
			// Deterministic local advance; every member lands on the
			// same successor without a broadcast storm.
			s := e.State()
			s.Playback.CurrentTrack = next
			s.Playback.Position = 0
			e.setState(s)
			e.adapter.Sync(next, 0, s.Playback.IsPlaying)

		case BroadcastState:
			s := e.State()
			track := s.Playback.CurrentTrack
			if track.Zero() {
				break
			}
			pos := s.Playback.Position
			if st, err := e.adapter.State(ctx); err == nil && st.URL == track.URL {
				pos = st.Position
			}
			e.send(domain.NewPlaybackEvent(s.RoomID, track, pos, s.Playback.IsPlaying, ""))

		case StopPlayback:
			e.adapter.Stop()
			if ef.Reason == TerminalRemoved {
				ClearSession(e.sessionFile)
				e.notify("you were removed from the room")
			}

		case Notify:
			e.notify(ef.Message)
		}
	}
}

func (e *Engine) refetchQueue(ctx context.Context) {
	s := e.State()

	tracks, err := e.songs.ListSongs(ctx, s.RoomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomExpired) || errors.Is(err, domain.ErrRoomNotFound) {
			s.Terminal = TerminalExpired
			e.setState(s)
			e.adapter.Stop()
			ClearSession(e.sessionFile)
			e.notify("the room no longer exists")
			return
		}
		e.warn(logging.Catalog, "song refetch failed", err)
		return
	}

	e.queue.SetTracks(tracks)
	s = e.State()
	s.SongCount = len(tracks)
	e.setState(s)
}

func (e *Engine) send(ev *domain.Event) {
	if err := e.channel.Send(ev); err != nil {
		e.warn(logging.Transport, "broadcast failed", err)
	}
}

func (e *Engine) notify(msg string) {
	select {
	case e.notices <- msg:
	default:
	}
}

func (e *Engine) warn(cat logging.Category, msg string, err error) {
	if e.logger == nil {
		return
	}
	extra := map[logging.ExtraKey]any{
		logging.RoomID: e.State().RoomID,
	}
	if err != nil {
		extra[logging.ErrorMessage] = err.Error()
	}
	e.logger.Warn(cat, logging.Broadcast, msg, extra)
}

func shuffleNotice(user string, on bool) string {
	if on {
		return fmt.Sprintf("%s turned shuffle on", user)
	}
	return fmt.Sprintf("%s turned shuffle off", user)
}

func repeatNotice(user string, on bool) string {
	if on {
		return fmt.Sprintf("%s turned repeat on", user)
	}
	return fmt.Sprintf("%s turned repeat off", user)
}
