package core

// Room groups clients subscribed to the same channel. It is owned by the
// hub goroutine and carries no locking of its own.
type Room struct {
	Name    string
	clients map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom(name string) *Room {
	return &Room{
		Name:    name,
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Broadcast sends an event to all clients in the room except exclude.
// Delivery to one slow or dead member never blocks the rest.
func (r *Room) Broadcast(event *Event, exclude *Client) {
	for client := range r.clients {
		if client == exclude {
			continue
		}
		select {
		case client.Events <- event:
		default:
			// Drop if slow consumer.
		}
	}
}

// Len returns the member count.
func (r *Room) Len() int {
	return len(r.clients)
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}
