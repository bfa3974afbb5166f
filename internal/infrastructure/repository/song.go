package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hilthontt/tunesync/internal/domain"
)

// songRepository keeps each room's queue in insertion order.
type songRepository struct {
	songs map[string][]domain.Track // roomID -> []Track
	mu    *sync.RWMutex
}

func NewSongRepository() domain.SongRepository {
	return &songRepository{
		songs: make(map[string][]domain.Track),
		mu:    &sync.RWMutex{},
	}
}

func (r *songRepository) List(ctx context.Context, roomID string) ([]domain.Track, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	tracks, exists := r.songs[roomID]
	if !exists || len(tracks) == 0 {
		return []domain.Track{}, nil
	}

	// Return a copy to prevent external mutation
	cpy := make([]domain.Track, len(tracks))
	copy(cpy, tracks)

	return cpy, nil
}

func (r *songRepository) Add(ctx context.Context, roomID string, track domain.Track) error {
	if roomID == "" || track.URL == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tracks := r.songs[roomID]

	if len(tracks) >= domain.MaxSongs {
		return domain.ErrQuotaExceeded
	}

	for _, t := range tracks {
		if t.URL == track.URL {
			return domain.ErrDuplicateTrack
		}
	}

	if track.InsertedAt == 0 {
		track.InsertedAt = time.Now().UnixMilli()
	}

	r.songs[roomID] = append(tracks, track)

	return nil
}

func (r *songRepository) Remove(ctx context.Context, roomID string, url string) error {
	if roomID == "" || url == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tracks, exists := r.songs[roomID]
	if !exists {
		return nil // idempotent: already gone
	}

	for i, t := range tracks {
		if t.URL == url {
			r.songs[roomID] = append(tracks[:i], tracks[i+1:]...)
			return nil
		}
	}

	return nil
}

func (r *songRepository) Count(ctx context.Context, roomID string) (int, error) {
	if roomID == "" {
		return 0, domain.ErrInvalidInput
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.songs[roomID]), nil
}

// DropRoom clears a room's queue outright, used when the room itself
// goes away.
func (r *songRepository) DropRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.songs, roomID)

	return nil
}
