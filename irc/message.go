package irc

import (
	"fmt"
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
)

// Message represents an IRC message
type Message struct {
	Prefix  string
	Command string
	Params  []string
}

// ParseMessage parses a single line received from a client. It returns nil
// for blank lines and for lines that carry a prefix but no command.
func ParseMessage(line string) *Message {
	line = strings.TrimRight(line, "\r\n")
	line = strings.TrimLeft(line, " ")
	if line == "" {
		return nil
	}

	msg := &Message{
		Params: make([]string, 0),
	}

	if line[0] == ':' {
		parts := strings.SplitN(line[1:], " ", 2)
		if len(parts) < 2 {
			return nil
		}
		msg.Prefix = parts[0]
		line = strings.TrimLeft(parts[1], " ")
		if line == "" {
			return nil
		}
	}

	parts := strings.SplitN(line, " ", 2)
	msg.Command = parts[0]
	if len(parts) < 2 {
		return msg
	}

	rest := parts[1]
	for {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			break
		}
		if rest[0] == ':' {
			msg.Params = append(msg.Params, rest[1:])
			break
		}
		param, remainder, found := strings.Cut(rest, " ")
		msg.Params = append(msg.Params, param)
		if !found {
			break
		}
		rest = remainder
	}

	return msg
}

// Param returns the i'th parameter or "" when absent.
func (m *Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Line serializes the message, including the trailing CRLF.
func (m *Message) Line() (string, error) {
	msg := ircmsg.MakeMessage(nil, m.Prefix, m.Command, m.Params...)
	line, err := msg.Line()
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", m.Command, err)
	}
	return line, nil
}

// String returns the line without its terminator, or a best-effort
// rendering when the message cannot be encoded.
func (m *Message) String() string {
	line, err := m.Line()
	if err != nil {
		return strings.TrimSpace(m.Prefix + " " + m.Command + " " + strings.Join(m.Params, " "))
	}
	return strings.TrimRight(line, "\r\n")
}

// FormatHostmask formats a hostmask
func FormatHostmask(nick, user, host string) string {
	return fmt.Sprintf("%s!%s@%s", nick, user, host)
}
