package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hilthontt/tunesync/internal/domain"
	"github.com/hilthontt/tunesync/internal/infrastructure/contracts"
	"github.com/hilthontt/tunesync/internal/infrastructure/messaging"
)

// AuditPublisher forwards relayed events onto the audit queue. Publish
// never blocks the hub loop: events go through a buffered channel and a
// single writer goroutine, and are dropped when the buffer is full.
type AuditPublisher struct {
	rabbitmq *messaging.RabbitMQ
	pending  chan *domain.Event
	done     chan struct{}
}

func NewAuditPublisher(rabbitmq *messaging.RabbitMQ) *AuditPublisher {
	p := &AuditPublisher{
		rabbitmq: rabbitmq,
		pending:  make(chan *domain.Event, 256),
		done:     make(chan struct{}),
	}
	go p.drain()

	return p
}

func (p *AuditPublisher) Publish(event *domain.Event) {
	select {
	case p.pending <- event:
	default:
		// Audit is best-effort, never back-pressure playback
	}
}

func (p *AuditPublisher) Close() {
	close(p.done)
}

func (p *AuditPublisher) drain() {
	for {
		select {
		case event := <-p.pending:
			if err := p.publish(event); err != nil {
				log.Printf("audit publish error: %v", err)
			}
		case <-p.done:
			return
		}
	}
}

func (p *AuditPublisher) publish(event *domain.Event) error {
	payload := messaging.AuditEventData{
		Event: *event,
	}

	eventJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.rabbitmq.PublishMessage(context.Background(), routingKeyFor(event.Action), contracts.AmqpMessage{
		RoomID: event.RoomID,
		Data:   eventJSON,
	})
}

func routingKeyFor(action string) string {
	switch action {
	case domain.ActionPlayback:
		return contracts.EventPlayback
	case domain.ActionSongsEdit:
		return contracts.EventSongsEdit
	case domain.ActionMembersEdit:
		return contracts.EventMembersEdit
	case domain.ActionPlayControl:
		return contracts.EventPlayControl
	}
	return "event.unknown"
}
