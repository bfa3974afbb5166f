package domain

import (
	"context"
	"time"

	"github.com/hilthontt/tunesync/internal/infrastructure/validate"
)

const (
	// MaxMembers is the hard cap on concurrent members per room.
	MaxMembers = 10

	// MaxSongs is the hard cap on queued songs per room.
	MaxSongs = 20

	// RoomTTL is the fixed room lifetime, measured from creation. Every
	// client computes expiry locally from CreatedAt; nothing pushes it.
	RoomTTL = time.Hour

	// MaxNameLength bounds both member names and room ids (exclusive:
	// a 10-character name is rejected).
	MaxNameLength = 10
)

// ValidateName checks a member name or room id against the admission
// rules: non-empty, no embedded spaces, shorter than MaxNameLength.
func ValidateName(name string) error {
	return validate.Compose(
		validate.Required(),
		validate.NoSpaces(),
		validate.MaxLength(MaxNameLength-1),
	)(name)
}

// Room is a bounded-lifetime group of members sharing one playback state
// and song queue. The first member in Members is the admin.
type Room struct {
	ID        string    `json:"roomId"`
	CreatedAt time.Time `json:"createdAt"`
	Members   []string  `json:"members"`
	IsShuffle bool      `json:"isShuffle"`
	IsRepeat  bool      `json:"isRepeat"`
}

// ExpiresAt is the instant the room logically ceases to exist.
func (r *Room) ExpiresAt() time.Time {
	return r.CreatedAt.Add(RoomTTL)
}

// Expired reports whether the room is past its TTL at the given instant.
func (r *Room) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt())
}

// Admin returns the admin's member name, or "" for an empty room.
func (r *Room) Admin() string {
	if len(r.Members) == 0 {
		return ""
	}
	return r.Members[0]
}

// HasMember reports membership by exact, case-sensitive name match.
func (r *Room) HasMember(name string) bool {
	for _, m := range r.Members {
		if m == name {
			return true
		}
	}
	return false
}

// AddMember admits a member, enforcing capacity and name uniqueness.
func (r *Room) AddMember(name string) error {
	if err := ValidateName(name); err != nil {
		return ErrInvalidInput
	}
	if len(r.Members) >= MaxMembers {
		return ErrRoomFull
	}
	if r.HasMember(name) {
		return ErrNameTaken
	}
	r.Members = append(r.Members, name)
	return nil
}

// RemoveMember drops a member, preserving join order. Removing the admin
// promotes the next-oldest member.
func (r *Room) RemoveMember(name string) error {
	for i, m := range r.Members {
		if m == name {
			r.Members = append(r.Members[:i], r.Members[i+1:]...)
			return nil
		}
	}
	return ErrMemberNotFound
}

// SetShuffle turns shuffle on or off. Turning it on clears repeat, the
// two modes are mutually exclusive.
func (r *Room) SetShuffle(on bool) {
	r.IsShuffle = on
	if on {
		r.IsRepeat = false
	}
}

// SetRepeat turns repeat on or off. Turning it on clears shuffle.
func (r *Room) SetRepeat(on bool) {
	r.IsRepeat = on
	if on {
		r.IsShuffle = false
	}
}

// RoomMeta is the room's last-known persisted state, fetched once by a
// joining client before the admin's resync broadcast arrives.
type RoomMeta struct {
	RoomID    string `json:"roomId"`
	CreatedAt int64  `json:"createdAt"`
	SongCount int    `json:"roomSongs"`
	IsRepeat  bool   `json:"isRepeat"`
	IsShuffle bool   `json:"isShuffle"`
}

// RoomRepository is the membership directory the core consumes.
type RoomRepository interface {
	Create(ctx context.Context, room *Room) error
	GetByID(ctx context.Context, id string) (*Room, error)
	Update(ctx context.Context, room *Room) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
}

// SongRepository is the song catalog store the core consumes.
type SongRepository interface {
	// List returns the room's tracks ordered by insertion time ascending.
	List(ctx context.Context, roomID string) ([]Track, error)
	// Add appends a track, returning ErrDuplicateTrack on URL collision
	// and ErrQuotaExceeded past MaxSongs.
	Add(ctx context.Context, roomID string, track Track) error
	// Remove deletes by URL; removing an absent URL is not an error.
	Remove(ctx context.Context, roomID string, url string) error
	Count(ctx context.Context, roomID string) (int, error)
	// DropRoom clears a room's whole queue when the room itself goes
	// away, so a later room under the same id starts empty.
	DropRoom(ctx context.Context, roomID string) error
}
