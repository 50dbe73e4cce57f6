package core

// Client is a connected chat participant as seen by the core layer.
type Client struct {
	ID     string
	Name   string
	UserID int64

	Commands chan *Command
	Events   chan *Event

	// room is the client's current room name, empty when roomless.
	// Owned by the hub goroutine.
	room string
}

// NewClient constructs a client with initialized channels.
func NewClient(id, name string, userID int64) *Client {
	if name == "" {
		name = id
	}
	return &Client{
		ID:       id,
		Name:     name,
		UserID:   userID,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 8),
	}
}
