package ws

import (
	"encoding/json"
	"log"

	"github.com/gorilla/websocket"

	"github.com/hilthontt/tunesync/internal/domain"
)

type Client struct {
	conn     *connWrapper
	Message  chan *domain.Event
	ID       string `json:"id"`
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

func NewClient(conn *websocket.Conn, id, roomID, username string) *Client {
	return &Client{
		conn:     newConnWrapper(conn),
		Message:  make(chan *domain.Event, 64), // buffered to avoid dead-locks on slow clients
		ID:       id,
		RoomID:   roomID,
		Username: username,
	}
}

func (c *Client) ReadMessage(core *Core) {
	defer func() {
		core.Unregister() <- c
		_ = c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws read error (client %s): %v", c.ID, err)
			}
			break
		}

		var event domain.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			log.Printf("ws malformed event (client %s): %v", c.ID, err)
			continue
		}

		// Events are always scoped to the sender's room
		event.RoomID = c.RoomID
		if event.User == "" {
			event.User = c.Username
		}

		core.Broadcast() <- &event
	}
}

func (c *Client) WriteMessage() {
	defer func() {
		_ = c.conn.Close()
	}()

	for event := range c.Message {
		if err := c.conn.WriteJSON(event); err != nil {
			log.Printf("ws write error (client %s): %v", c.ID, err)
			break
		}
	}
}
