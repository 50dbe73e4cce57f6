package core

import (
	"context"
	"testing"
	"time"
)

func startHub(t *testing.T) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(nil, nil)
	go hub.Run(ctx)
	return hub
}

func mustRegister(t *testing.T, hub *Hub, id, name string) *Client {
	t.Helper()

	c := NewClient(id, name, 0)
	if err := hub.RegisterClient(c); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return c
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func noEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	time.Sleep(50 * time.Millisecond)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event: %+v", ev)
			}
		default:
			return
		}
	}
}
