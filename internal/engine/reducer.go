package engine

import (
	"github.com/hilthontt/tunesync/internal/domain"
)

// Terminal marks states the engine never leaves.
type Terminal int

const (
	TerminalNone Terminal = iota
	TerminalRemoved
	TerminalExpired
	TerminalGivenUp
)

func (t Terminal) String() string {
	switch t {
	case TerminalNone:
		return "none"
	case TerminalRemoved:
		return "removed"
	case TerminalExpired:
		return "expired"
	case TerminalGivenUp:
		return "given up"
	}
	return "unknown"
}

// State is everything the reducer needs to interpret the next event.
type State struct {
	RoomID    string
	User      string
	Admin     bool
	Playback  domain.PlaybackState
	SongCount int
	Terminal  Terminal
}

// Effect is a side effect the event loop must carry out after a
// reduction. The reducer itself stays pure.
type Effect interface{ isEffect() }

// SyncPlayback steers the local player to the broadcast state.
type SyncPlayback struct {
	Track    domain.Track
	Position float64
	Playing  bool
	Switch   bool
}

// RefetchQueue means the local song list disagrees with the room's.
type RefetchQueue struct {
	Count int
}

// BroadcastState asks the admin to rebroadcast the full playback state
// so a newcomer converges without waiting for organic traffic.
type BroadcastState struct{}

// SyncPolicy pushes the replicated shuffle and repeat flags into the
// local queue so every member advances tracks the same way.
type SyncPolicy struct {
	Shuffle bool
	Repeat  bool
}

// AdvanceTrack means the current track is gone and playback must move
// to whatever the queue selects next.
type AdvanceTrack struct {
	RemovedURL string
}

// StopPlayback halts the player for good.
type StopPlayback struct {
	Reason Terminal
}

// Notify surfaces a human-readable room announcement.
type Notify struct {
	Message string
}

func (SyncPlayback) isEffect()   {}
func (SyncPolicy) isEffect()     {}
func (AdvanceTrack) isEffect()   {}
func (RefetchQueue) isEffect()   {}
func (BroadcastState) isEffect() {}
func (StopPlayback) isEffect()   {}
func (Notify) isEffect()         {}

// Apply folds one room event into the state. Events from any member,
// echoes of our own included, pass through here; idempotence comes from
// the triple comparison, not from knowing who sent what.
func Apply(s State, ev *domain.Event) (State, []Effect) {
	if s.Terminal != TerminalNone {
		return s, nil
	}

	var effects []Effect

	switch ev.Action {
	case domain.ActionPlayback:
		// A broadcast matching what we're already doing is an echo.
		if s.Playback.SameTriple(ev.SongURL, ev.CurrentTime, ev.IsPlaying) {
			break
		}

		switching := ev.SongURL != s.Playback.CurrentTrack.URL

		s.Playback.CurrentTrack = domain.Track{Name: ev.SongName, URL: ev.SongURL}
		s.Playback.Position = ev.CurrentTime
		s.Playback.IsPlaying = ev.IsPlaying

		effects = append(effects, SyncPlayback{
			Track:    s.Playback.CurrentTrack,
			Position: ev.CurrentTime,
			Playing:  ev.IsPlaying,
			Switch:   switching,
		})

	case domain.ActionPlayControl:
		if ev.IsShuffle != nil {
			s.Playback.SetShuffle(*ev.IsShuffle)
		}
		if ev.IsRepeat != nil {
			s.Playback.SetRepeat(*ev.IsRepeat)
		}
		if ev.IsShuffle != nil || ev.IsRepeat != nil {
			effects = append(effects, SyncPolicy{
				Shuffle: s.Playback.IsShuffle,
				Repeat:  s.Playback.IsRepeat,
			})
		}

	case domain.ActionSongsEdit:
		if ev.Count != nil && *ev.Count != s.SongCount {
			s.SongCount = *ev.Count
			effects = append(effects, RefetchQueue{Count: *ev.Count})
		}
		if ev.IsRemove && ev.SongURL != "" && ev.SongURL == s.Playback.CurrentTrack.URL {
			effects = append(effects, AdvanceTrack{RemovedURL: ev.SongURL})
		}

	case domain.ActionMembersEdit:
		if ev.IsRemove && ev.User == s.User && ev.Notify == domain.NotifyRemoved {
			s.Terminal = TerminalRemoved
			effects = append(effects, StopPlayback{Reason: TerminalRemoved})
			return s, effects
		}

		// The admin answers every join with a full-state rebroadcast.
		if s.Admin && ev.User != s.User && !ev.IsRemove && ev.Notify == domain.JoinNotify(ev.User) {
			effects = append(effects, BroadcastState{})
		}

	default:
		// Unknown actions are ignored, never fatal
		return s, nil
	}

	if ev.Notify != "" && ev.Notify != domain.NotifyRemoved {
		effects = append(effects, Notify{Message: ev.Notify})
	}

	return s, effects
}
