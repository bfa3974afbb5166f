package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/hilthontt/tunesync/internal/domain"
	"github.com/hilthontt/tunesync/internal/infrastructure/contracts"
	"github.com/hilthontt/tunesync/internal/infrastructure/messaging"
)

type auditConsumer struct {
	rabbitmq *messaging.RabbitMQ
	audit    domain.EventAuditRepository
}

func NewAuditConsumer(rabbitmq *messaging.RabbitMQ, audit domain.EventAuditRepository) *auditConsumer {
	return &auditConsumer{
		rabbitmq: rabbitmq,
		audit:    audit,
	}
}

func (c *auditConsumer) Listen() error {
	bindings := []string{
		contracts.EventPlayback,
		contracts.EventSongsEdit,
		contracts.EventMembersEdit,
		contracts.EventPlayControl,
	}
	if err := c.rabbitmq.DeclareAndBindQueue(messaging.EventsQueue, bindings, messaging.SyncExchange); err != nil {
		return err
	}

	return c.rabbitmq.ConsumeMessages(messaging.EventsQueue, func(ctx context.Context, msg amqp091.Delivery) error {
		var message contracts.AmqpMessage
		if err := json.Unmarshal(msg.Body, &message); err != nil {
			log.Printf("Failed to unmarshal message: %v", err)
			return err
		}

		var payload messaging.AuditEventData
		if err := json.Unmarshal(message.Data, &payload); err != nil {
			log.Printf("Failed to unmarshal message: %v", err)
			return err
		}

		entry := &domain.EventAuditLog{
			RoomID:    payload.Event.RoomID,
			Action:    payload.Event.Action,
			User:      payload.Event.User,
			Payload:   message.Data,
			Timestamp: time.Now().UTC(),
		}

		return c.audit.Log(ctx, entry)
	})
}
