package proto

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// DefaultMaxLineBytes bounds a single protocol line when no limit is configured.
const DefaultMaxLineBytes = 1024

// CommandMarker prefixes lines that carry a command instead of chat text.
const CommandMarker = "/"

// ErrLineTooLong reports a line exceeding the configured maximum. The
// offending line is discarded in full; the reader stays aligned on the
// next one.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// LineReader splits a byte stream into newline-terminated protocol lines.
// One call to ReadLine yields exactly one message regardless of how the
// bytes arrived on the wire.
type LineReader struct {
	r   *bufio.Reader
	max int
}

// NewLineReader wraps r with a line framer capped at max bytes per line.
func NewLineReader(r io.Reader, max int) *LineReader {
	if max <= 0 {
		max = DefaultMaxLineBytes
	}
	return &LineReader{
		r:   bufio.NewReaderSize(r, max),
		max: max,
	}
}

// ReadLine returns the next complete line without its terminator. A bare
// "\r\n" terminator is tolerated. A stream that ends without a final
// newline yields its tail as a last line before io.EOF.
func (lr *LineReader) ReadLine() (string, error) {
	line, err := lr.r.ReadSlice('\n')
	if err == nil {
		return trimEOL(string(line)), nil
	}
	if errors.Is(err, bufio.ErrBufferFull) {
		if derr := lr.discardLine(); derr != nil {
			return "", derr
		}
		return "", ErrLineTooLong
	}
	if errors.Is(err, io.EOF) && len(line) > 0 {
		return trimEOL(string(line)), nil
	}
	return "", err
}

// discardLine consumes input through the next newline so an oversized
// message cannot bleed into the one that follows.
func (lr *LineReader) discardLine() error {
	for {
		_, err := lr.r.ReadSlice('\n')
		if err == nil {
			return nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

// WriteLine frames s with the protocol terminator and writes it out.
func WriteLine(w io.Writer, s string) error {
	_, err := io.WriteString(w, s+"\n")
	return err
}

// WriteString writes raw text with no terminator. Used for prompts that
// expect the reply on the same visual line.
func WriteString(w io.Writer, s string) error {
	_, err := io.WriteString(w, s)
	return err
}

// IsCommand reports whether line carries a command rather than chat text.
func IsCommand(line string) bool {
	return strings.HasPrefix(line, CommandMarker)
}

// SplitCommand breaks a command line into its verb and arguments.
func SplitCommand(line string) (verb string, args []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
