package ws

import (
	"errors"
	"sync"

	"github.com/hilthontt/tunesync/internal/domain"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrClientNotFound = errors.New("client not found")
)

type WSRoom struct {
	ID      string             `json:"id"`
	Clients map[string]*Client `json:"clients"`
}

type RoomManager struct {
	rooms map[string]*WSRoom // roomID → WSRoom
	mu    sync.RWMutex
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]*WSRoom),
	}
}

func (rm *RoomManager) AddClient(cl *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	room, ok := rm.rooms[cl.RoomID]
	if !ok {
		room = &WSRoom{
			ID:      cl.RoomID,
			Clients: make(map[string]*Client),
		}
		rm.rooms[cl.RoomID] = room
	}

	if _, exists := room.Clients[cl.ID]; !exists {
		room.Clients[cl.ID] = cl
	}
}

func (rm *RoomManager) RemoveClient(cl *Client) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if room, ok := rm.rooms[cl.RoomID]; ok {
		if _, ok := room.Clients[cl.ID]; ok {
			delete(room.Clients, cl.ID)
			close(cl.Message)

			if len(room.Clients) == 0 {
				delete(rm.rooms, cl.RoomID)
			}
		}
	}
}

func (rm *RoomManager) GetRoom(roomID string) (*WSRoom, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	r, ok := rm.rooms[roomID]
	return r, ok
}

func (rm *RoomManager) ClientCount(roomID string) int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	if r, ok := rm.rooms[roomID]; ok {
		return len(r.Clients)
	}
	return 0
}

// BroadcastToRoom fans an event out to every connected client in the
// room, the sender included. Receivers suppress their own echoes.
func (rm *RoomManager) BroadcastToRoom(event *domain.Event) error {
	rm.mu.RLock()
	room, ok := rm.rooms[event.RoomID]
	rm.mu.RUnlock()
	if !ok {
		return ErrRoomNotFound
	}

	for _, cl := range room.Clients {
		select {
		case cl.Message <- event:
		default:
			// Client is too slow – drop the event, convergence relies
			// on later events superseding missed ones
		}
	}
	return nil
}
