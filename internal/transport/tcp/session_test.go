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

	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/identity"
)

type testEnv struct {
	hub *core.Hub
	ids identity.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := core.NewHub(nil, nil)
	go hub.Run(ctx)

	return &testEnv{hub: hub, ids: identity.NewMemory()}
}

// testClient is the far end of a session running over net.Pipe.
type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func (env *testEnv) connect(t *testing.T, maxLineBytes int) *testClient {
	t.Helper()

	clientSide, serverSide := net.Pipe()
	t.Cleanup(func() { clientSide.Close() })

	nop := zerolog.Nop()
	sess := newSession(serverSide, env.hub, env.ids, maxLineBytes, 0, &nop)
	go sess.run(context.Background())

	return &testClient{t: t, conn: clientSide, reader: bufio.NewReader(clientSide)}
}

// connectAs drives the full handshake and consumes the welcome banner.
func (env *testEnv) connectAs(t *testing.T, username string) *testClient {
	t.Helper()

	tc := env.connect(t, 0)
	tc.expectPrompt()
	tc.sendLine(username)
	tc.expectLine("Welcome " + username + "! Use /create or /join <room_name> to start chatting.")
	tc.expectLine("Type /help to see available commands.")
	return tc
}

func (tc *testClient) sendLine(line string) {
	tc.t.Helper()

	require.NoError(tc.t, tc.conn.SetWriteDeadline(time.Now().Add(2*time.Second)))
	_, err := tc.conn.Write([]byte(line + "\n"))
	require.NoError(tc.t, err)
}

func (tc *testClient) expectPrompt() {
	tc.t.Helper()

	require.NoError(tc.t, tc.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, len(usernamePrompt))
	_, err := io.ReadFull(tc.reader, buf)
	require.NoError(tc.t, err)
	require.Equal(tc.t, usernamePrompt, string(buf))
}

func (tc *testClient) expectLine(want string) {
	tc.t.Helper()

	require.NoError(tc.t, tc.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := tc.reader.ReadString('\n')
	require.NoError(tc.t, err)
	require.Equal(tc.t, want+"\n", line)
}

func (tc *testClient) expectEOF() {
	tc.t.Helper()

	require.NoError(tc.t, tc.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := tc.reader.ReadByte()
	require.ErrorIs(tc.t, err, io.EOF)
}

func TestSessionLobbyScenario(t *testing.T) {
	env := newTestEnv(t)

	alice := env.connectAs(t, "alice")
	alice.sendLine("/create lobby")
	alice.expectLine("Created and joined room: lobby")

	bob := env.connectAs(t, "bob")
	bob.sendLine("/join lobby")
	bob.expectLine("Joined room: lobby")
	alice.expectLine("bob joined the room.")

	bob.sendLine("hello")
	alice.expectLine("[lobby] bob: hello")

	alice.sendLine("/leave")
	alice.expectLine("Left room: lobby")
	bob.expectLine("alice left the room.")

	alice.sendLine("/join nope")
	alice.expectLine("Room 'nope' does not exist. Use /create to create it.")

	// The failed join must not change the room set.
	alice.sendLine("/list")
	alice.expectLine("Available rooms: lobby")
}

func TestSessionChatWithoutRoom(t *testing.T) {
	env := newTestEnv(t)

	alice := env.connectAs(t, "alice")
	alice.sendLine("hello nobody")
	alice.expectLine("Join a room first using /join <room_name>.")
}

func TestSessionUsageAndUnknownCommand(t *testing.T) {
	env := newTestEnv(t)

	alice := env.connectAs(t, "alice")

	alice.sendLine("/create")
	alice.expectLine("Usage: /create <room_name>")

	alice.sendLine("/join")
	alice.expectLine("Usage: /join <room_name>")

	alice.sendLine("/dance")
	alice.expectLine("Unknown command. Type /help for available options.")

	// Session still works after bad input.
	alice.sendLine("/list")
	alice.expectLine("No active rooms.")
}

func TestSessionHelp(t *testing.T) {
	env := newTestEnv(t)

	alice := env.connectAs(t, "alice")
	alice.sendLine("/help")
	for _, line := range helpLines {
		alice.expectLine(line)
	}
}

func TestSessionAdminReport(t *testing.T) {
	env := newTestEnv(t)

	alice := env.connectAs(t, "alice")
	alice.sendLine("/create lobby")
	alice.expectLine("Created and joined room: lobby")

	bob := env.connectAs(t, "bob")
	bob.sendLine("/join lobby")
	bob.expectLine("Joined room: lobby")
	alice.expectLine("bob joined the room.")

	bob.sendLine("/admin")
	bob.expectLine("[ADMIN PANEL]")
	bob.expectLine("Users: alice, bob")
	bob.expectLine("Rooms:")
	bob.expectLine("lobby: 2 user(s)")
}

func TestSessionQuitNotifiesRoom(t *testing.T) {
	env := newTestEnv(t)

	alice := env.connectAs(t, "alice")
	alice.sendLine("/create lobby")
	alice.expectLine("Created and joined room: lobby")

	bob := env.connectAs(t, "bob")
	bob.sendLine("/join lobby")
	bob.expectLine("Joined room: lobby")
	alice.expectLine("bob joined the room.")

	alice.sendLine("/quit")
	alice.expectLine("Goodbye!")
	alice.expectEOF()

	bob.expectLine("alice left the room.")
}

func TestSessionDuplicateUsernameReprompts(t *testing.T) {
	env := newTestEnv(t)

	env.connectAs(t, "alice")

	second := env.connect(t, 0)
	second.expectPrompt()
	second.sendLine("alice")
	second.expectLine("Username 'alice' is already connected. Pick another.")
	second.expectPrompt()
	second.sendLine("alice2")
	second.expectLine("Welcome alice2! Use /create or /join <room_name> to start chatting.")
	second.expectLine("Type /help to see available commands.")
}

func TestSessionRejectsOversizedLine(t *testing.T) {
	env := newTestEnv(t)

	alice := env.connect(t, 32)
	alice.expectPrompt()
	alice.sendLine("alice")
	alice.expectLine("Welcome alice! Use /create or /join <room_name> to start chatting.")
	alice.expectLine("Type /help to see available commands.")

	long := make([]byte, 100)
	for i := range long {
		long[i] = 'x'
	}
	alice.sendLine(string(long))
	alice.expectLine("Message too long.")

	// The oversized line must not corrupt the next one.
	alice.sendLine("/list")
	alice.expectLine("No active rooms.")
}

func TestSessionDisconnectFreesUsername(t *testing.T) {
	env := newTestEnv(t)

	alice := env.connectAs(t, "alice")
	require.NoError(t, alice.conn.Close())

	// The name becomes claimable again once the hub processes the
	// disconnect.
	require.Eventually(t, func() bool {
		c := core.NewClient("probe", "alice", 0)
		if err := env.hub.RegisterClient(c); err != nil {
			return false
		}
		env.hub.UnregisterClient(c)
		return true
	}, 2*time.Second, 20*time.Millisecond)
}
