package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSendRoomMessage delivers a chat message to the client's current room.
	CommandSendRoomMessage CommandKind = iota
	// CommandCreateRoom creates the room when missing and joins it.
	CommandCreateRoom
	// CommandJoinRoom joins an already existing room.
	CommandJoinRoom
	// CommandLeaveRoom leaves the client's current room.
	CommandLeaveRoom
	// CommandListRooms requests the room directory.
	CommandListRooms
	// CommandAdminReport requests a snapshot of users and room occupancy.
	CommandAdminReport
)

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind
	Room string
	Text string
}
