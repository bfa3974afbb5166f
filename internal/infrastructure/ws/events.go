package ws

import "github.com/hilthontt/tunesync/internal/domain"

// Publisher receives every event that passes through the hub, typically
// to feed the audit pipeline. Implementations must not block.
type Publisher interface {
	Publish(event *domain.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(*domain.Event) {}

// NoopPublisher is used when the audit pipeline is disabled.
var NoopPublisher Publisher = noopPublisher{}
