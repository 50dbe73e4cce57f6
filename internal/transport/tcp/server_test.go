package tcp

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/identity"
)

func TestServerAcceptsAndShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := core.NewHub(nil, nil)
	go hub.Run(ctx)

	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"

	nop := zerolog.Nop()
	srv := NewServer(hub, identity.NewMemory(), cfg, &nop)

	served := make(chan error, 1)
	go func() {
		served <- srv.ListenAndServe(ctx)
	}()

	var addr net.Addr
	require.Eventually(t, func() bool {
		addr = srv.Addr()
		return addr != nil
	}, 2*time.Second, 10*time.Millisecond)

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	reader := bufio.NewReader(conn)
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))

	buf := make([]byte, len(usernamePrompt))
	_, err = io.ReadFull(reader, buf)
	require.NoError(t, err)
	require.Equal(t, usernamePrompt, string(buf))

	_, err = conn.Write([]byte("alice\n"))
	require.NoError(t, err)

	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "Welcome alice! Use /create or /join <room_name> to start chatting.\n", line)

	// Cancellation closes the listener and the live connection.
	cancel()

	select {
	case err := <-served:
		if err != nil {
			require.ErrorIs(t, err, context.Canceled)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}
