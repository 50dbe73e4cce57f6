package tcp

import (
	"fmt"
	"strings"

	"github.com/vovakirdan/linechat-server/internal/core"
)

var helpLines = []string{
	"Available Commands:",
	"/create <room_name>  - Create and join a room",
	"/join <room_name>    - Join an existing room",
	"/leave               - Leave the current room",
	"/list                - List all active rooms",
	"/admin               - View active users & rooms",
	"/quit                - Disconnect from chat",
	"/help                - Show this help message",
}

// renderEvent converts a core event into the wire lines for one client.
func renderEvent(event *core.Event) []string {
	switch event.Kind {
	case core.EventRoomMessage, core.EventUserJoined, core.EventUserLeft:
		if line, ok := event.ChatLine(); ok {
			return []string{line}
		}
		return nil
	case core.EventRoomCreated:
		return []string{"Created and joined room: " + event.Room}
	case core.EventRoomJoined:
		return []string{"Joined room: " + event.Room}
	case core.EventRoomLeft:
		return []string{"Left room: " + event.Room}
	case core.EventRoomList:
		return []string{renderRoomList(event.Rooms)}
	case core.EventAdminReport:
		return renderAdminReport(event.Report)
	case core.EventError:
		if event.Error == nil {
			return nil
		}
		return []string{event.Error.Message}
	default:
		return nil
	}
}

func renderRoomList(rooms []core.RoomInfo) string {
	if len(rooms) == 0 {
		return "No active rooms."
	}
	names := make([]string, 0, len(rooms))
	for _, info := range rooms {
		names = append(names, info.Name)
	}
	return "Available rooms: " + strings.Join(names, ", ")
}

func renderAdminReport(report *core.AdminReport) []string {
	if report == nil {
		return nil
	}
	lines := []string{
		"[ADMIN PANEL]",
		"Users: " + strings.Join(report.Users, ", "),
		"Rooms:",
	}
	for _, info := range report.Rooms {
		lines = append(lines, fmt.Sprintf("%s: %d user(s)", info.Name, info.Members))
	}
	return lines
}
