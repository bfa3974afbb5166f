package contracts

// AmqpMessage is the message structure for AMQP.
type AmqpMessage struct {
	RoomID string `json:"roomId"`
	Data   []byte `json:"data"`
}

// Routing keys - using consistent event/command patterns
const (
	EventPlayback    = "event.playback"
	EventSongsEdit   = "event.songsedit"
	EventMembersEdit = "event.membersedit"
	EventPlayControl = "event.playcontrol"
	EventRoomCreated = "room.created"
	EventRoomDeleted = "room.deleted"
)
