package domain

import (
	"context"
	"time"
)

// EventAuditLog is one relayed event captured for offline inspection.
type EventAuditLog struct {
	RoomID    string    `bson:"room_id" json:"roomId"`
	Action    string    `bson:"action" json:"action"`
	User      string    `bson:"user,omitempty" json:"user,omitempty"`
	Payload   []byte    `bson:"payload" json:"payload"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

type EventAuditRepository interface {
	Log(ctx context.Context, log *EventAuditLog) error
	GetByRoomID(ctx context.Context, roomID string, limit int) ([]EventAuditLog, error)
	GetByAction(ctx context.Context, action string, from time.Time, to time.Time) ([]EventAuditLog, error)
	DeleteOlderThan(ctx context.Context, before time.Time) error
	EnsureIndexes(ctx context.Context) error
}
