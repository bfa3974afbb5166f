package ws

import (
	"context"
	"log"

	"github.com/hilthontt/tunesync/internal/domain"
	"github.com/hilthontt/tunesync/internal/infrastructure/metrics"
)

type Core struct {
	roomMgr        *RoomManager
	register       chan *Client
	unregister     chan *Client
	broadcast      chan *domain.Event
	roomRepository domain.RoomRepository
	publisher      Publisher
}

func NewCore(roomRepository domain.RoomRepository, publisher Publisher) *Core {
	if publisher == nil {
		publisher = NoopPublisher
	}

	return &Core{
		roomMgr:        NewRoomManager(),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		broadcast:      make(chan *domain.Event, 256),
		roomRepository: roomRepository,
		publisher:      publisher,
	}
}

func (c *Core) Run() {
	for {
		select {
		case cl := <-c.register:
			c.roomMgr.AddClient(cl)
			metrics.ConnectedClients.Inc()

			// Announce the join so the room admin rebroadcasts the
			// current playback state to catch the newcomer up.
			join := domain.NewJoinEvent(cl.RoomID, cl.Username)
			if err := c.roomMgr.BroadcastToRoom(join); err != nil {
				log.Printf("join broadcast error: %v", err)
			}
			c.publisher.Publish(join)

		case cl := <-c.unregister:
			c.roomMgr.RemoveClient(cl)
			metrics.ConnectedClients.Dec()
			c.dropMember(cl)

		case event := <-c.broadcast:
			c.applySideEffects(event)

			if err := c.roomMgr.BroadcastToRoom(event); err != nil {
				log.Printf("broadcast error: %v", err)
			}
			c.publisher.Publish(event)
			metrics.EventsRelayed.WithLabelValues(event.Action).Inc()
		}
	}
}

// applySideEffects persists the room-level flags carried by control
// events so that late joiners fetching room metadata see them.
func (c *Core) applySideEffects(event *domain.Event) {
	if event.Action != domain.ActionPlayControl {
		return
	}
	if event.IsShuffle == nil && event.IsRepeat == nil {
		return
	}

	ctx := context.Background()

	room, err := c.roomRepository.GetByID(ctx, event.RoomID)
	if err != nil {
		return
	}

	if event.IsShuffle != nil {
		room.SetShuffle(*event.IsShuffle)
	}
	if event.IsRepeat != nil {
		room.SetRepeat(*event.IsRepeat)
	}

	if err := c.roomRepository.Update(ctx, room); err != nil {
		log.Printf("room %s flag update error: %v", event.RoomID, err)
	}
}

// dropMember removes a disconnected member from the room roster and
// tells the remaining members. The last member leaving deletes the room.
func (c *Core) dropMember(cl *Client) {
	ctx := context.Background()

	room, err := c.roomRepository.GetByID(ctx, cl.RoomID)
	if err != nil {
		return
	}

	if err := room.RemoveMember(cl.Username); err != nil {
		return
	}

	if len(room.Members) == 0 {
		if err := c.roomRepository.Delete(ctx, cl.RoomID); err != nil {
			log.Printf("room %s delete error: %v", cl.RoomID, err)
		}
		return
	}

	if err := c.roomRepository.Update(ctx, room); err != nil {
		log.Printf("room %s update error: %v", cl.RoomID, err)
	}

	leave := domain.NewLeaveEvent(cl.RoomID, cl.Username)
	if err := c.roomMgr.BroadcastToRoom(leave); err != nil {
		log.Printf("leave broadcast error: %v", err)
	}
	c.publisher.Publish(leave)
}

func (c *Core) Register() chan<- *Client {
	return c.register
}

func (c *Core) Unregister() chan<- *Client {
	return c.unregister
}

func (c *Core) Broadcast() chan<- *domain.Event {
	return c.broadcast
}
