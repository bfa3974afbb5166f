package messaging

import "github.com/hilthontt/tunesync/internal/domain"

const (
	EventsQueue     = "room-events"
	DeadLetterQueue = "dead_letter_queue"
)

type AuditEventData struct {
	Event domain.Event `json:"event"`
}
