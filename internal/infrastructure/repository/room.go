package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hilthontt/tunesync/internal/domain"
	"github.com/hilthontt/tunesync/internal/infrastructure/metrics"
)

type roomRepository struct {
	rooms    map[string]*domain.Room // ID -> Room
	capacity uint
	mu       *sync.RWMutex

	// onEvict runs (under the lock) for every room that leaves the map,
	// whether deleted or expired.
	onEvict func(id string)
}

func NewRoomRepository(capacity uint) domain.RoomRepository {
	if capacity == 0 {
		capacity = 100
	}

	return &roomRepository{
		rooms:    make(map[string]*domain.Room),
		capacity: capacity,
		mu:       &sync.RWMutex{},
	}
}

// cloneRoom copies a room so callers can mutate the result without
// racing other goroutines reading the stored one.
func cloneRoom(room *domain.Room) *domain.Room {
	cp := *room
	cp.Members = append([]string(nil), room.Members...)
	return &cp
}

// evictExpired drops every room past its TTL. Expiry is lazy: nothing
// runs on a timer, rooms are reaped when the map is next touched.
func (r *roomRepository) evictExpired() {
	now := time.Now()
	for id, room := range r.rooms {
		if room.Expired(now) {
			r.dropLocked(id)
			metrics.RoomsExpired.Inc()
		}
	}
}

func (r *roomRepository) dropLocked(id string) {
	delete(r.rooms, id)
	if r.onEvict != nil {
		r.onEvict(id)
	}
}

func (r *roomRepository) Create(ctx context.Context, room *domain.Room) error {
	if room == nil || room.ID == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Clean up expired rooms first
	r.evictExpired()

	if _, exists := r.rooms[room.ID]; exists {
		return domain.ErrRoomAlreadyExists
	}

	if uint(len(r.rooms)) >= r.capacity {
		return domain.ErrQuotaExceeded
	}

	r.rooms[room.ID] = cloneRoom(room)

	return nil
}

func (r *roomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[id]
	if !exists {
		return nil, domain.ErrRoomNotFound
	}

	if room.Expired(time.Now()) {
		r.dropLocked(id)
		metrics.RoomsExpired.Inc()
		return nil, domain.ErrRoomExpired
	}

	// Callers mutate the result and Update it back; hand out a copy so
	// the stored room never changes under a concurrent reader.
	return cloneRoom(room), nil
}

func (r *roomRepository) Update(ctx context.Context, room *domain.Room) error {
	if room == nil || room.ID == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.rooms[room.ID]
	if !exists {
		return domain.ErrRoomNotFound
	}

	if existing.Expired(time.Now()) {
		r.dropLocked(room.ID)
		metrics.RoomsExpired.Inc()
		return domain.ErrRoomExpired
	}

	r.evictExpired()

	r.rooms[room.ID] = cloneRoom(room)

	return nil
}

// Delete removes a room by id (idempotent).
func (r *roomRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.dropLocked(id)

	return nil
}

// BindSongCleanup makes the room store drop a room's song queue
// whenever the room itself is deleted or expires, so a later room under
// the same id never inherits stale tracks. Redis handles this through
// key TTLs and needs no binding.
func BindSongCleanup(rooms domain.RoomRepository, songs domain.SongRepository) {
	mem, ok := rooms.(*roomRepository)
	if !ok {
		return
	}

	mem.mu.Lock()
	mem.onEvict = func(id string) {
		_ = songs.DropRoom(context.Background(), id)
	}
	mem.mu.Unlock()
}

// StartSweeper reaps expired rooms on an interval until ctx is done.
// Only the in-memory store needs it; redis expires keys on its own.
func StartSweeper(ctx context.Context, repo domain.RoomRepository, every time.Duration) {
	mem, ok := repo.(*roomRepository)
	if !ok {
		return
	}

	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mem.mu.Lock()
				mem.evictExpired()
				mem.mu.Unlock()
			}
		}
	}()
}

func (r *roomRepository) Exists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, domain.ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[id]
	if !exists {
		return false, nil
	}

	if room.Expired(time.Now()) {
		r.dropLocked(id)
		metrics.RoomsExpired.Inc()
		return false, nil
	}

	return true, nil
}
