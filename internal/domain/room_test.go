package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid short name", input: "alice", wantErr: false},
		{name: "nine characters is the max", input: "abcdefghi", wantErr: false},
		{name: "empty rejected", input: "", wantErr: true},
		{name: "embedded space rejected", input: "al ice", wantErr: true},
		{name: "ten characters rejected", input: "abcdefghij", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRoom_AddMember(t *testing.T) {
	t.Run("first member becomes admin", func(t *testing.T) {
		room := &Room{ID: "lounge", CreatedAt: time.Now()}

		require.NoError(t, room.AddMember("alice"))
		require.NoError(t, room.AddMember("bob"))

		assert.Equal(t, "alice", room.Admin())
		assert.True(t, room.HasMember("bob"))
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		room := &Room{ID: "lounge", Members: []string{"alice"}}

		err := room.AddMember("alice")
		assert.ErrorIs(t, err, ErrNameTaken)
	})

	t.Run("capacity enforced", func(t *testing.T) {
		room := &Room{ID: "lounge"}
		names := []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7", "m8", "m9", "m10"}
		for _, n := range names {
			require.NoError(t, room.AddMember(n))
		}

		err := room.AddMember("m11")
		assert.ErrorIs(t, err, ErrRoomFull)
		assert.Len(t, room.Members, MaxMembers)
	})

	t.Run("invalid name rejected", func(t *testing.T) {
		room := &Room{ID: "lounge"}

		err := room.AddMember("way too long name")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestRoom_RemoveMember(t *testing.T) {
	t.Run("removing the admin promotes the next oldest", func(t *testing.T) {
		room := &Room{ID: "lounge", Members: []string{"alice", "bob", "carol"}}

		require.NoError(t, room.RemoveMember("alice"))

		assert.Equal(t, "bob", room.Admin())
		assert.Equal(t, []string{"bob", "carol"}, room.Members)
	})

	t.Run("absent member is an error", func(t *testing.T) {
		room := &Room{ID: "lounge", Members: []string{"alice"}}

		err := room.RemoveMember("mallory")
		assert.ErrorIs(t, err, ErrMemberNotFound)
	})

	t.Run("empty room has no admin", func(t *testing.T) {
		room := &Room{ID: "lounge", Members: []string{"alice"}}

		require.NoError(t, room.RemoveMember("alice"))
		assert.Equal(t, "", room.Admin())
	})
}

func TestRoom_Expiry(t *testing.T) {
	created := time.Now()
	room := &Room{ID: "lounge", CreatedAt: created}

	assert.False(t, room.Expired(created.Add(RoomTTL-time.Second)))
	assert.True(t, room.Expired(created.Add(RoomTTL)))
	assert.True(t, room.Expired(created.Add(RoomTTL+time.Minute)))
}

func TestRoom_ShuffleRepeatExclusive(t *testing.T) {
	room := &Room{ID: "lounge"}

	room.SetShuffle(true)
	assert.True(t, room.IsShuffle)
	assert.False(t, room.IsRepeat)

	room.SetRepeat(true)
	assert.False(t, room.IsShuffle)
	assert.True(t, room.IsRepeat)

	room.SetRepeat(false)
	assert.False(t, room.IsRepeat)
	assert.False(t, room.IsShuffle)
}

func TestPlaybackState_SameTriple(t *testing.T) {
	state := PlaybackState{
		CurrentTrack: Track{Name: "song", URL: "https://cdn/song.mp3"},
		Position:     42.5,
		IsPlaying:    true,
	}

	assert.True(t, state.SameTriple("https://cdn/song.mp3", 42.5, true))
	assert.False(t, state.SameTriple("https://cdn/song.mp3", 42.5, false))
	assert.False(t, state.SameTriple("https://cdn/song.mp3", 43.0, true))
	assert.False(t, state.SameTriple("https://cdn/other.mp3", 42.5, true))
}
