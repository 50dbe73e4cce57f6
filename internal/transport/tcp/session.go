package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/core"
	"github.com/vovakirdan/linechat-server/internal/identity"
	"github.com/vovakirdan/linechat-server/internal/proto"
)

const usernamePrompt = "Enter your username: "

// session drives one connection through its lifecycle: prompt for a
// username, admit the client into the hub, then relay lines in and
// events out until the peer disconnects or quits.
type session struct {
	conn        net.Conn
	reader      *proto.LineReader
	hub         *core.Hub
	identity    identity.Store
	idleTimeout time.Duration
	log         *zerolog.Logger

	client *core.Client

	writeMu sync.Mutex
	cleanup sync.Once
}

func newSession(conn net.Conn, hub *core.Hub, ids identity.Store, maxLineBytes int, idleTimeout time.Duration, logger *zerolog.Logger) *session {
	return &session{
		conn:        conn,
		reader:      proto.NewLineReader(conn, maxLineBytes),
		hub:         hub,
		identity:    ids,
		idleTimeout: idleTimeout,
		log:         logger,
	}
}

func (s *session) run(ctx context.Context) {
	defer s.teardown()

	if err := s.identify(ctx); err != nil {
		if !isDisconnect(err) {
			s.log.Warn().Err(err).Str("remote", s.conn.RemoteAddr().String()).Msg("identify failed")
		}
		return
	}

	s.startEventPump()

	if err := s.readLoop(); err != nil && !isDisconnect(err) {
		s.log.Warn().Err(err).Str("user", s.client.Name).Msg("session read error")
	}
}

// identify prompts for a username and admits the client into the hub.
// It loops until an unclaimed non-empty name arrives or the connection
// drops. The identity record is looked up (or created) before admission.
func (s *session) identify(ctx context.Context) error {
	for {
		if err := s.writeString(usernamePrompt); err != nil {
			return err
		}

		line, err := s.readLine()
		if err != nil {
			if errors.Is(err, proto.ErrLineTooLong) {
				if werr := s.writeLine("Username too long."); werr != nil {
					return werr
				}
				continue
			}
			return err
		}

		username := strings.TrimSpace(line)
		if username == "" {
			continue
		}

		userID, err := s.identity.LookupOrCreate(ctx, username)
		if err != nil {
			// Identity storage trouble never blocks admission.
			s.log.Warn().Err(err).Str("user", username).Msg("identity lookup failed")
		}

		client := core.NewClient(uuid.NewString(), username, userID)
		if err := s.hub.RegisterClient(client); err != nil {
			if errors.Is(err, core.ErrNameTaken) {
				if werr := s.writeLine(fmt.Sprintf("Username '%s' is already connected. Pick another.", username)); werr != nil {
					return werr
				}
				continue
			}
			return err
		}
		s.client = client

		if err := s.writeLine(fmt.Sprintf("Welcome %s! Use /create or /join <room_name> to start chatting.", username)); err != nil {
			return err
		}
		return s.writeLine("Type /help to see available commands.")
	}
}

func (s *session) readLoop() error {
	for {
		line, err := s.readLine()
		if err != nil {
			if errors.Is(err, proto.ErrLineTooLong) {
				if werr := s.writeLine("Message too long."); werr != nil {
					return werr
				}
				continue
			}
			return err
		}

		quit, err := s.dispatch(line)
		if err != nil || quit {
			return err
		}
	}
}

// dispatch classifies one inbound line and acts on it. It returns
// quit=true when the session should end cleanly.
func (s *session) dispatch(line string) (quit bool, err error) {
	if !proto.IsCommand(line) {
		text := strings.TrimSpace(line)
		if text == "" {
			return false, nil
		}
		return !s.send(&core.Command{Kind: core.CommandSendRoomMessage, Text: text}), nil
	}

	verb, args := proto.SplitCommand(line)
	switch verb {
	case "/create":
		if len(args) < 1 {
			return false, s.writeLine("Usage: /create <room_name>")
		}
		return !s.send(&core.Command{Kind: core.CommandCreateRoom, Room: args[0]}), nil
	case "/join":
		if len(args) < 1 {
			return false, s.writeLine("Usage: /join <room_name>")
		}
		return !s.send(&core.Command{Kind: core.CommandJoinRoom, Room: args[0]}), nil
	case "/leave":
		return !s.send(&core.Command{Kind: core.CommandLeaveRoom}), nil
	case "/list":
		return !s.send(&core.Command{Kind: core.CommandListRooms}), nil
	case "/admin":
		return !s.send(&core.Command{Kind: core.CommandAdminReport}), nil
	case "/help":
		return false, s.writeLines(helpLines)
	case "/quit":
		return true, s.writeLine("Goodbye!")
	default:
		return false, s.writeLine("Unknown command. Type /help for available options.")
	}
}

// send hands a command to the hub. It reports false when the hub has
// stopped, which ends the session.
func (s *session) send(cmd *core.Command) bool {
	select {
	case s.client.Commands <- cmd:
		return true
	case <-s.hub.Done():
		return false
	}
}

// startEventPump relays hub events onto the wire. A write failure means
// the peer is gone: closing the connection wakes the read loop, which
// performs the actual teardown.
func (s *session) startEventPump() {
	go func() {
		for {
			select {
			case event, ok := <-s.client.Events:
				if !ok {
					return
				}
				for _, line := range renderEvent(event) {
					if err := s.writeLine(line); err != nil {
						_ = s.conn.Close()
						return
					}
				}
			case <-s.hub.Done():
				return
			}
		}
	}()
}

func (s *session) readLine() (string, error) {
	if s.idleTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.idleTimeout))
	}
	return s.reader.ReadLine()
}

func (s *session) writeLine(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return proto.WriteLine(s.conn, line)
}

func (s *session) writeLines(lines []string) error {
	for _, line := range lines {
		if err := s.writeLine(line); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) writeString(text string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return proto.WriteString(s.conn, text)
}

// teardown runs exactly once regardless of which path failed first. The
// hub unregistration broadcasts the leave notice when the client was in
// a room. Commands is closed here and only here: every send happens on
// the read-loop goroutine, which is done by the time teardown runs.
func (s *session) teardown() {
	s.cleanup.Do(func() {
		if s.client != nil {
			close(s.client.Commands)
			s.hub.UnregisterClient(s.client)
		}
		_ = s.conn.Close()
		s.log.Info().Str("remote", s.conn.RemoteAddr().String()).Msg("connection closed")
	})
}

func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, io.ErrClosedPipe)
}
