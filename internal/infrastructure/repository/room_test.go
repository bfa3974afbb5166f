package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilthontt/tunesync/internal/domain"
)

func TestRoomRepository_CreateAndGet(t *testing.T) {
	repo := NewRoomRepository(10)
	ctx := context.Background()

	room := &domain.Room{ID: "lounge", CreatedAt: time.Now(), Members: []string{"alice"}}
	require.NoError(t, repo.Create(ctx, room))

	got, err := repo.GetByID(ctx, "lounge")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Admin())

	exists, err := repo.Exists(ctx, "lounge")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRoomRepository_DuplicateCreate(t *testing.T) {
	repo := NewRoomRepository(10)
	ctx := context.Background()

	room := &domain.Room{ID: "lounge", CreatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, room))

	err := repo.Create(ctx, &domain.Room{ID: "lounge", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrRoomAlreadyExists)
}

func TestRoomRepository_Capacity(t *testing.T) {
	repo := NewRoomRepository(2)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Room{ID: "r1", CreatedAt: time.Now()}))
	require.NoError(t, repo.Create(ctx, &domain.Room{ID: "r2", CreatedAt: time.Now()}))

	err := repo.Create(ctx, &domain.Room{ID: "r3", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestRoomRepository_ExpiredRoomIsGone(t *testing.T) {
	repo := NewRoomRepository(10)
	ctx := context.Background()

	stale := &domain.Room{ID: "old", CreatedAt: time.Now().Add(-domain.RoomTTL - time.Minute)}
	require.NoError(t, repo.Create(ctx, &domain.Room{ID: "fresh", CreatedAt: time.Now()}))

	// Insert the stale room directly via Create; it is already expired
	// so the next touch reaps it.
	_ = repo.Create(ctx, stale)

	_, err := repo.GetByID(ctx, "old")
	assert.Error(t, err)

	exists, err := repo.Exists(ctx, "old")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRoomRepository_GetExpired(t *testing.T) {
	repo := NewRoomRepository(10)
	ctx := context.Background()

	room := &domain.Room{ID: "lounge", CreatedAt: time.Now().Add(-domain.RoomTTL + 50*time.Millisecond)}
	require.NoError(t, repo.Create(ctx, room))

	time.Sleep(60 * time.Millisecond)

	_, err := repo.GetByID(ctx, "lounge")
	assert.ErrorIs(t, err, domain.ErrRoomExpired)

	// Once reaped the room is plain not-found
	_, err = repo.GetByID(ctx, "lounge")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRoomRepository_Update(t *testing.T) {
	repo := NewRoomRepository(10)
	ctx := context.Background()

	room := &domain.Room{ID: "lounge", CreatedAt: time.Now(), Members: []string{"alice"}}
	require.NoError(t, repo.Create(ctx, room))

	room.Members = append(room.Members, "bob")
	require.NoError(t, repo.Update(ctx, room))

	got, err := repo.GetByID(ctx, "lounge")
	require.NoError(t, err)
	assert.Len(t, got.Members, 2)
}

func TestRoomRepository_UpdateMissing(t *testing.T) {
	repo := NewRoomRepository(10)
	ctx := context.Background()

	err := repo.Update(ctx, &domain.Room{ID: "ghost", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRoomRepository_DeleteIdempotent(t *testing.T) {
	repo := NewRoomRepository(10)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Room{ID: "lounge", CreatedAt: time.Now()}))
	require.NoError(t, repo.Delete(ctx, "lounge"))
	require.NoError(t, repo.Delete(ctx, "lounge"))

	exists, err := repo.Exists(ctx, "lounge")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRoomRepository_GetReturnsCopy(t *testing.T) {
	repo := NewRoomRepository(10)
	ctx := context.Background()

	room := &domain.Room{ID: "lounge", CreatedAt: time.Now(), Members: []string{"alice"}}
	require.NoError(t, repo.Create(ctx, room))

	// Mutating a fetched room must not leak into the store; only Update
	// publishes changes.
	got, err := repo.GetByID(ctx, "lounge")
	require.NoError(t, err)
	require.NoError(t, got.AddMember("bob"))
	got.SetShuffle(true)

	fresh, err := repo.GetByID(ctx, "lounge")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, fresh.Members)
	assert.False(t, fresh.IsShuffle)
}

func TestRoomRepository_StoreUnaffectedByCallerMutation(t *testing.T) {
	repo := NewRoomRepository(10)
	ctx := context.Background()

	room := &domain.Room{ID: "lounge", CreatedAt: time.Now(), Members: []string{"alice"}}
	require.NoError(t, repo.Create(ctx, room))

	// The caller keeps mutating its own struct after Create and Update;
	// neither may alias the stored room.
	room.Members = append(room.Members, "bob")
	require.NoError(t, repo.Update(ctx, room))
	room.Members[0] = "mallory"

	got, err := repo.GetByID(ctx, "lounge")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, got.Members)
}

func TestRoomDeletionDropsSongQueue(t *testing.T) {
	rooms := NewRoomRepository(10)
	songs := NewSongRepository()
	BindSongCleanup(rooms, songs)
	ctx := context.Background()

	require.NoError(t, rooms.Create(ctx, &domain.Room{ID: "r1", CreatedAt: time.Now(), Members: []string{"alice"}}))
	require.NoError(t, songs.Add(ctx, "r1", domain.Track{Name: "a", URL: "https://cdn/a.mp3"}))

	require.NoError(t, rooms.Delete(ctx, "r1"))

	// A later room under the same id must start with an empty queue.
	require.NoError(t, rooms.Create(ctx, &domain.Room{ID: "r1", CreatedAt: time.Now(), Members: []string{"bob"}}))

	tracks, err := songs.List(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, tracks)
}

func TestRoomExpiryDropsSongQueue(t *testing.T) {
	rooms := NewRoomRepository(10)
	songs := NewSongRepository()
	BindSongCleanup(rooms, songs)
	ctx := context.Background()

	stale := &domain.Room{ID: "old", CreatedAt: time.Now().Add(-domain.RoomTTL - time.Minute)}
	require.NoError(t, rooms.Create(ctx, stale))
	require.NoError(t, songs.Add(ctx, "old", domain.Track{Name: "a", URL: "https://cdn/a.mp3"}))

	_, err := rooms.GetByID(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrRoomExpired)

	count, err := songs.Count(ctx, "old")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSongRepository_AddListRemove(t *testing.T) {
	repo := NewSongRepository()
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, "lounge", domain.Track{Name: "a", URL: "https://cdn/a.mp3", Adder: "alice"}))
	require.NoError(t, repo.Add(ctx, "lounge", domain.Track{Name: "b", URL: "https://cdn/b.mp3", Adder: "bob"}))

	tracks, err := repo.List(ctx, "lounge")
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	assert.Equal(t, "a", tracks[0].Name)
	assert.NotZero(t, tracks[0].InsertedAt)

	require.NoError(t, repo.Remove(ctx, "lounge", "https://cdn/a.mp3"))

	count, err := repo.Count(ctx, "lounge")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSongRepository_Duplicate(t *testing.T) {
	repo := NewSongRepository()
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, "lounge", domain.Track{Name: "a", URL: "https://cdn/a.mp3"}))

	err := repo.Add(ctx, "lounge", domain.Track{Name: "other name", URL: "https://cdn/a.mp3"})
	assert.ErrorIs(t, err, domain.ErrDuplicateTrack)
}

func TestSongRepository_Quota(t *testing.T) {
	repo := NewSongRepository()
	ctx := context.Background()

	for i := 0; i < domain.MaxSongs; i++ {
		url := fmt.Sprintf("https://cdn/song%d.mp3", i)
		require.NoError(t, repo.Add(ctx, "lounge", domain.Track{Name: "s", URL: url}))
	}

	err := repo.Add(ctx, "lounge", domain.Track{Name: "extra", URL: "https://cdn/extra.mp3"})
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
}

func TestSongRepository_RemoveAbsent(t *testing.T) {
	repo := NewSongRepository()
	ctx := context.Background()

	assert.NoError(t, repo.Remove(ctx, "lounge", "https://cdn/ghost.mp3"))
}

func TestSongRepository_ListEmptyRoom(t *testing.T) {
	repo := NewSongRepository()

	tracks, err := repo.List(context.Background(), "lounge")
	require.NoError(t, err)
	assert.Empty(t, tracks)
}
