package core

import "fmt"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRoomMessage notifies room members about a chat message.
	EventRoomMessage EventKind = iota
	// EventUserJoined notifies room members that a user joined.
	EventUserJoined
	// EventUserLeft notifies room members that a user left.
	EventUserLeft
	// EventRoomCreated confirms a create-and-join to the issuing client.
	EventRoomCreated
	// EventRoomJoined confirms a join to the issuing client.
	EventRoomJoined
	// EventRoomLeft confirms a leave to the issuing client.
	EventRoomLeft
	// EventRoomList carries the room directory to the issuing client.
	EventRoomList
	// EventAdminReport carries an occupancy snapshot to the issuing client.
	EventAdminReport
	// EventError notifies a client about a domain error.
	EventError
)

// RoomInfo is one room directory entry.
type RoomInfo struct {
	Name    string
	Members int
}

// AdminReport is a point-in-time snapshot of server occupancy.
type AdminReport struct {
	Users []string
	Rooms []RoomInfo
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Room    string
	User    string
	Message Message
	Rooms   []RoomInfo
	Report  *AdminReport
	Error   *CoreError
}

// ChatLine renders the canonical wire text of a room broadcast. It is
// what every member sees and what the broadcast log records. ok is false
// for events that are not room broadcasts.
func (e *Event) ChatLine() (line string, ok bool) {
	switch e.Kind {
	case EventRoomMessage:
		return fmt.Sprintf("[%s] %s: %s", e.Message.Room, e.Message.From, e.Message.Text), true
	case EventUserJoined:
		return e.User + " joined the room.", true
	case EventUserLeft:
		return e.User + " left the room.", true
	default:
		return "", false
	}
}
