package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// BroadcastLog records the canonical text of every room broadcast plus
// connect/disconnect markers for the lifetime of one server run.
type BroadcastLog interface {
	Append(line string) error
}

type registration struct {
	client *Client
	reply  chan error
}

type clientCommand struct {
	client *Client
	cmd    *Command
}

// Hub owns the room table, the live client set, and the username index.
// All state is mutated on the Run goroutine only; sessions reach it
// through channels.
type Hub struct {
	log     *zerolog.Logger
	chatlog BroadcastLog

	register   chan registration
	unregister chan *Client
	commands   chan clientCommand
	done       chan struct{}

	rooms   map[string]*Room
	clients map[*Client]struct{}
	names   map[string]*Client
}

// NewHub constructs a hub. Both logger and chatlog may be nil.
func NewHub(logger *zerolog.Logger, chatlog BroadcastLog) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		log:        logger,
		chatlog:    chatlog,
		register:   make(chan registration),
		unregister: make(chan *Client),
		commands:   make(chan clientCommand),
		done:       make(chan struct{}),
		rooms:      make(map[string]*Room),
		clients:    make(map[*Client]struct{}),
		names:      make(map[string]*Client),
	}
}

// Done is closed when the hub stops processing.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// RegisterClient admits a client into the live set and starts relaying
// its commands. It fails with ErrNameTaken while another live client
// holds the same username.
func (h *Hub) RegisterClient(c *Client) error {
	reply := make(chan error, 1)
	select {
	case h.register <- registration{client: c, reply: reply}:
	case <-h.done:
		return ErrHubClosed
	}
	select {
	case err := <-reply:
		return err
	case <-h.done:
		return ErrHubClosed
	}
}

// UnregisterClient removes a client, vacating its room with a leave
// notice. Safe to call for a client that was never admitted.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Run processes registrations and commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case reg := <-h.register:
			reg.reply <- h.handleRegister(reg.client)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case cc := <-h.commands:
			h.handleCommand(cc.client, cc.cmd)
		case <-ctx.Done():
			return
		}
	}
}

// forward relays one client's commands into the hub loop.
func (h *Hub) forward(c *Client) {
	for {
		select {
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			select {
			case h.commands <- clientCommand{client: c, cmd: cmd}:
			case <-h.done:
				return
			}
		case <-h.done:
			return
		}
	}
}

func (h *Hub) handleRegister(c *Client) error {
	if _, taken := h.names[c.Name]; taken {
		return ErrNameTaken
	}

	h.clients[c] = struct{}{}
	h.names[c.Name] = c
	go h.forward(c)

	h.log.Info().
		Str("client_id", c.ID).
		Str("user", c.Name).
		Int64("user_id", c.UserID).
		Msg("client registered")
	h.appendLog(c.Name + " connected.")
	return nil
}

func (h *Hub) handleUnregister(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	h.leaveCurrentRoom(c)
	delete(h.clients, c)
	delete(h.names, c.Name)
	close(c.Events)

	h.log.Info().Str("client_id", c.ID).Str("user", c.Name).Msg("client unregistered")
	h.appendLog(c.Name + " disconnected.")
}

func (h *Hub) handleCommand(c *Client, cmd *Command) {
	if _, ok := h.clients[c]; !ok {
		// Raced with unregistration; the sender is already gone.
		return
	}

	switch cmd.Kind {
	case CommandCreateRoom:
		h.handleCreate(c, cmd.Room)
	case CommandJoinRoom:
		h.handleJoin(c, cmd.Room)
	case CommandLeaveRoom:
		h.handleLeave(c)
	case CommandListRooms:
		h.handleList(c)
	case CommandAdminReport:
		h.handleAdmin(c)
	case CommandSendRoomMessage:
		h.handleMessage(c, cmd.Text)
	}
}

func (h *Hub) handleCreate(c *Client, name string) {
	room, ok := h.rooms[name]
	if !ok {
		room = NewRoom(name)
		h.rooms[name] = room
		h.log.Info().Str("room", name).Str("user", c.Name).Msg("room created")
	}
	h.moveTo(c, room)
	h.reply(c, &Event{Kind: EventRoomCreated, Room: name})
}

func (h *Hub) handleJoin(c *Client, name string) {
	room, ok := h.rooms[name]
	if !ok {
		h.reply(c, &Event{
			Kind:  EventError,
			Room:  name,
			Error: coreError(ErrCodeRoomNotFound, fmt.Sprintf("Room '%s' does not exist. Use /create to create it.", name)),
		})
		return
	}
	h.moveTo(c, room)
	h.reply(c, &Event{Kind: EventRoomJoined, Room: name})
}

func (h *Hub) handleLeave(c *Client) {
	name, ok := h.leaveCurrentRoom(c)
	if !ok {
		h.reply(c, &Event{
			Kind:  EventError,
			Error: coreError(ErrCodeNotInRoom, "You're not in any room."),
		})
		return
	}
	h.reply(c, &Event{Kind: EventRoomLeft, Room: name})
}

func (h *Hub) handleList(c *Client) {
	infos := make([]RoomInfo, 0, len(h.rooms))
	for name, room := range h.rooms {
		infos = append(infos, RoomInfo{Name: name, Members: room.Len()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	h.reply(c, &Event{Kind: EventRoomList, Rooms: infos})
}

func (h *Hub) handleAdmin(c *Client) {
	report := &AdminReport{
		Users: make([]string, 0, len(h.clients)),
		Rooms: make([]RoomInfo, 0, len(h.rooms)),
	}
	for client := range h.clients {
		report.Users = append(report.Users, client.Name)
	}
	sort.Strings(report.Users)
	for name, room := range h.rooms {
		report.Rooms = append(report.Rooms, RoomInfo{Name: name, Members: room.Len()})
	}
	sort.Slice(report.Rooms, func(i, j int) bool { return report.Rooms[i].Name < report.Rooms[j].Name })
	h.reply(c, &Event{Kind: EventAdminReport, Report: report})
}

func (h *Hub) handleMessage(c *Client, text string) {
	if c.room == "" {
		h.reply(c, &Event{
			Kind:  EventError,
			Error: coreError(ErrCodeNotInRoom, "Join a room first using /join <room_name>."),
		})
		return
	}

	room := h.rooms[c.room]
	event := &Event{
		Kind: EventRoomMessage,
		Room: c.room,
		User: c.Name,
		Message: Message{
			Room:      c.room,
			From:      c.Name,
			Text:      text,
			CreatedAt: time.Now(),
		},
	}
	h.broadcast(room, event, c)
}

// moveTo switches c into room. Joining replaces any prior membership:
// the previous room is vacated and notified first.
func (h *Hub) moveTo(c *Client, room *Room) {
	if c.room == room.Name {
		return
	}
	h.leaveCurrentRoom(c)
	room.AddClient(c)
	c.room = room.Name
	h.broadcast(room, &Event{Kind: EventUserJoined, Room: room.Name, User: c.Name}, c)
}

// leaveCurrentRoom vacates c's room, notifies the remaining members, and
// garbage-collects the room when it empties.
func (h *Hub) leaveCurrentRoom(c *Client) (string, bool) {
	name := c.room
	if name == "" {
		return "", false
	}
	c.room = ""

	room, ok := h.rooms[name]
	if !ok {
		return name, true
	}
	room.RemoveClient(c)
	h.broadcast(room, &Event{Kind: EventUserLeft, Room: name, User: c.Name}, nil)
	if room.Empty() {
		delete(h.rooms, name)
		h.log.Info().Str("room", name).Msg("empty room removed")
	}
	return name, true
}

// broadcast fans an event out to room members and records its canonical
// text in the run log.
func (h *Hub) broadcast(room *Room, event *Event, exclude *Client) {
	room.Broadcast(event, exclude)
	if line, ok := event.ChatLine(); ok {
		h.appendLog(line)
	}
}

// reply delivers an event to a single client, dropping on backpressure.
func (h *Hub) reply(c *Client, event *Event) {
	select {
	case c.Events <- event:
	default:
	}
}

func (h *Hub) appendLog(line string) {
	if h.chatlog == nil {
		return
	}
	if err := h.chatlog.Append(line); err != nil {
		h.log.Warn().Err(err).Msg("append broadcast log")
	}
}
