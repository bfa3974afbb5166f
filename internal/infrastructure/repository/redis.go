package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hilthontt/tunesync/internal/domain"
	"github.com/hilthontt/tunesync/internal/infrastructure/metrics"
)

const (
	roomKeyPrefix = "room:"
	songKeyPrefix = "songs:"
)

// redisRoomRepository shares rooms across server instances. Room TTL
// maps directly onto Redis key expiry, so reaping is free.
type redisRoomRepository struct {
	client *redis.Client
}

func NewRedisRoomRepository(addr string, db int) domain.RoomRepository {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &redisRoomRepository{client: client}
}

func roomTTL(room *domain.Room) time.Duration {
	return time.Until(room.ExpiresAt())
}

func (r *redisRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if room == nil || room.ID == "" {
		return domain.ErrInvalidInput
	}

	data, err := json.Marshal(room)
	if err != nil {
		return err
	}

	ttl := roomTTL(room)
	if ttl <= 0 {
		return domain.ErrRoomExpired
	}

	ok, err := r.client.SetNX(ctx, roomKeyPrefix+room.ID, data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrRoomAlreadyExists
	}

	return nil
}

func (r *redisRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	if id == "" {
		return nil, domain.ErrInvalidInput
	}

	data, err := r.client.Get(ctx, roomKeyPrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}

	var room domain.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, err
	}

	if room.Expired(time.Now()) {
		_ = r.client.Del(ctx, roomKeyPrefix+id, songKeyPrefix+id).Err()
		metrics.RoomsExpired.Inc()
		return nil, domain.ErrRoomExpired
	}

	return &room, nil
}

func (r *redisRoomRepository) Update(ctx context.Context, room *domain.Room) error {
	if room == nil || room.ID == "" {
		return domain.ErrInvalidInput
	}

	ttl := roomTTL(room)
	if ttl <= 0 {
		return domain.ErrRoomExpired
	}

	data, err := json.Marshal(room)
	if err != nil {
		return err
	}

	ok, err := r.client.Exists(ctx, roomKeyPrefix+room.ID).Result()
	if err != nil {
		return err
	}
	if ok == 0 {
		return domain.ErrRoomNotFound
	}

	return r.client.Set(ctx, roomKeyPrefix+room.ID, data, ttl).Err()
}

func (r *redisRoomRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrInvalidInput
	}

	return r.client.Del(ctx, roomKeyPrefix+id, songKeyPrefix+id).Err()
}

func (r *redisRoomRepository) Exists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, domain.ErrInvalidInput
	}

	n, err := r.client.Exists(ctx, roomKeyPrefix+id).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// redisSongRepository mirrors the in-memory song store onto a shared
// Redis instance. The whole queue is one JSON blob, queues are tiny
// (MaxSongs caps them) so read-modify-write is fine.
type redisSongRepository struct {
	client *redis.Client
}

func NewRedisSongRepository(addr string, db int) domain.SongRepository {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &redisSongRepository{client: client}
}

func (r *redisSongRepository) load(ctx context.Context, roomID string) ([]domain.Track, error) {
	data, err := r.client.Get(ctx, songKeyPrefix+roomID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return []domain.Track{}, nil
		}
		return nil, err
	}

	var tracks []domain.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, err
	}

	return tracks, nil
}

func (r *redisSongRepository) store(ctx context.Context, roomID string, tracks []domain.Track) error {
	data, err := json.Marshal(tracks)
	if err != nil {
		return err
	}

	return r.client.Set(ctx, songKeyPrefix+roomID, data, domain.RoomTTL).Err()
}

func (r *redisSongRepository) List(ctx context.Context, roomID string) ([]domain.Track, error) {
	if roomID == "" {
		return nil, domain.ErrInvalidInput
	}

	return r.load(ctx, roomID)
}

func (r *redisSongRepository) Add(ctx context.Context, roomID string, track domain.Track) error {
	if roomID == "" || track.URL == "" {
		return domain.ErrInvalidInput
	}

	tracks, err := r.load(ctx, roomID)
	if err != nil {
		return err
	}

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

	return r.store(ctx, roomID, append(tracks, track))
}

func (r *redisSongRepository) Remove(ctx context.Context, roomID string, url string) error {
	if roomID == "" || url == "" {
		return domain.ErrInvalidInput
	}

	tracks, err := r.load(ctx, roomID)
	if err != nil {
		return err
	}

	for i, t := range tracks {
		if t.URL == url {
			return r.store(ctx, roomID, append(tracks[:i], tracks[i+1:]...))
		}
	}

	return nil
}

func (r *redisSongRepository) Count(ctx context.Context, roomID string) (int, error) {
	if roomID == "" {
		return 0, domain.ErrInvalidInput
	}

	tracks, err := r.load(ctx, roomID)
	if err != nil {
		return 0, err
	}

	return len(tracks), nil
}

func (r *redisSongRepository) DropRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return domain.ErrInvalidInput
	}

	return r.client.Del(ctx, songKeyPrefix+roomID).Err()
}
