package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hilthontt/tunesync/internal/domain"
	"github.com/hilthontt/tunesync/internal/persistence/db"
)

type eventAuditLogRepository struct {
	db *mongo.Database
}

func NewEventAuditLogRepository(database *mongo.Database) domain.EventAuditRepository {
	return &eventAuditLogRepository{
		db: database,
	}
}

func (r *eventAuditLogRepository) Log(ctx context.Context, log *domain.EventAuditLog) error {
	collection := r.db.Collection(db.EventAuditLogsCollection)

	_, err := collection.InsertOne(ctx, log)
	return err
}

func (r *eventAuditLogRepository) GetByRoomID(ctx context.Context, roomID string, limit int) ([]domain.EventAuditLog, error) {
	collection := r.db.Collection(db.EventAuditLogsCollection)

	filter := bson.M{"room_id": roomID}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []domain.EventAuditLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}

func (r *eventAuditLogRepository) GetByAction(ctx context.Context, action string, from time.Time, to time.Time) ([]domain.EventAuditLog, error) {
	collection := r.db.Collection(db.EventAuditLogsCollection)

	filter := bson.M{
		"action": action,
		"timestamp": bson.M{
			"$gte": from,
			"$lte": to,
		},
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []domain.EventAuditLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}

func (r *eventAuditLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) error {
	collection := r.db.Collection(db.EventAuditLogsCollection)

	filter := bson.M{
		"timestamp": bson.M{
			"$lt": before,
		},
	}

	_, err := collection.DeleteMany(ctx, filter)
	return err
}

func (r *eventAuditLogRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(db.EventAuditLogsCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "room_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "action", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(604800), // 7 days TTL
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
