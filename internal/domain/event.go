package domain

// Actions carried in the wire event's action field. Unknown actions are
// ignored, never fatal.
const (
	ActionPlayback    = "playback"
	ActionSongsEdit   = "songsedit"
	ActionMembersEdit = "membersedit"
	ActionPlayControl = "playcontrol"
)

// NotifyRemoved is the reserved notify message that tells the addressed
// member it has been removed from the room.
const NotifyRemoved = "sorryyouareremoved"

// Event is the one bit-exact wire contract of the core: the JSON object
// broadcast over the room channel. Optional fields are pointers so a
// toggle of one flag leaves the other untouched.
type Event struct {
	Action      string  `json:"action"`
	RoomID      string  `json:"roomId"`
	SongName    string  `json:"songName,omitempty"`
	SongURL     string  `json:"songUrl,omitempty"`
	CurrentTime float64 `json:"currentTime,omitempty"`
	IsPlaying   bool    `json:"isPlaying,omitempty"`
	IsRepeat    *bool   `json:"isRepeat,omitempty"`
	IsShuffle   *bool   `json:"isShuffle,omitempty"`
	Count       *int    `json:"count,omitempty"`
	IsRemove    bool    `json:"isRemove,omitempty"`
	User        string  `json:"user,omitempty"`
	Notify      string  `json:"notifyMessage,omitempty"`
}

// NewPlaybackEvent builds the full-state broadcast for a track switch,
// seek, play or pause.
func NewPlaybackEvent(roomID string, track Track, position float64, playing bool, notify string) *Event {
	return &Event{
		Action:      ActionPlayback,
		RoomID:      roomID,
		SongName:    track.Name,
		SongURL:     track.URL,
		CurrentTime: position,
		IsPlaying:   playing,
		Notify:      notify,
	}
}

// NewSongsEditEvent announces that the room's song count changed.
func NewSongsEditEvent(roomID string, count int, notify string) *Event {
	return &Event{
		Action: ActionSongsEdit,
		RoomID: roomID,
		Count:  &count,
		Notify: notify,
	}
}

// NewSongRemovedEvent announces a track leaving the queue. Receivers
// currently playing the removed URL stop and advance.
func NewSongRemovedEvent(roomID, url string, count int, notify string) *Event {
	return &Event{
		Action:   ActionSongsEdit,
		RoomID:   roomID,
		SongURL:  url,
		Count:    &count,
		IsRemove: true,
		Notify:   notify,
	}
}

// JoinNotify is the announcement a join event carries. Receivers match
// it verbatim to tell joins apart from other member edits.
func JoinNotify(user string) string {
	return user + " joined the room"
}

// NewJoinEvent announces a member joining.
func NewJoinEvent(roomID, user string) *Event {
	return &Event{
		Action: ActionMembersEdit,
		RoomID: roomID,
		User:   user,
		Notify: JoinNotify(user),
	}
}

// NewLeaveEvent announces a member leaving of its own accord.
func NewLeaveEvent(roomID, user string) *Event {
	return &Event{
		Action: ActionMembersEdit,
		RoomID: roomID,
		User:   user,
		Notify: user + " left the room",
	}
}

// NewRemoveEvent announces a member's removal. The removed member's own
// client receives the sentinel and must transition to its terminal state.
func NewRemoveEvent(roomID, user, notify string) *Event {
	return &Event{
		Action:   ActionMembersEdit,
		RoomID:   roomID,
		IsRemove: true,
		User:     user,
		Notify:   notify,
	}
}

// NewShuffleEvent broadcasts a shuffle toggle.
func NewShuffleEvent(roomID string, on bool, notify string) *Event {
	return &Event{
		Action:    ActionPlayControl,
		RoomID:    roomID,
		IsShuffle: &on,
		Notify:    notify,
	}
}

// NewRepeatEvent broadcasts a repeat toggle.
func NewRepeatEvent(roomID string, on bool, notify string) *Event {
	return &Event{
		Action:   ActionPlayControl,
		RoomID:   roomID,
		IsRepeat: &on,
		Notify:   notify,
	}
}
