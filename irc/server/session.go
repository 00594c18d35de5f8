package server

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/presbrey/ircd/irc"
)

// State is the lifecycle stage of a client session.
type State int

const (
	// StateRegistering is the initial state; no nickname has been assigned.
	StateRegistering State = iota
	// StateRegistered follows the first successful NICK.
	StateRegistered
	// StateDisconnected is terminal.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Session is the server-side view of one connected client.
type Session struct {
	ID       string
	Conn     Conn
	Nickname string
	Username string
	Realname string
	Hostname string

	state      State
	seq        uint64
	lastActive time.Time
	closing    bool
	quitReason string
	log        *slog.Logger
}

func newSession(conn Conn, seq uint64, now time.Time, logger *slog.Logger) *Session {
	id := uuid.NewString()
	host := "unknown"
	if addr := conn.RemoteAddr(); addr != nil {
		host = hostOf(addr.String())
	}
	return &Session{
		ID:         id,
		Conn:       conn,
		Hostname:   host,
		state:      StateRegistering,
		seq:        seq,
		lastActive: now,
		log:        logger.With("session", id, "remote", host),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Registered reports whether the session has completed registration and is
// still connected.
func (s *Session) Registered() bool {
	return s.state == StateRegistered
}

// Live reports whether the session has not been disconnected.
func (s *Session) Live() bool {
	return s.state != StateDisconnected
}

// Seq is the session's position in registration order.
func (s *Session) Seq() uint64 {
	return s.seq
}

// Name returns the nickname, or "*" before one is assigned.
func (s *Session) Name() string {
	if s.Nickname == "" {
		return "*"
	}
	return s.Nickname
}

// Prefix returns the nick!user@host source used on relayed messages.
func (s *Session) Prefix() string {
	user := s.Username
	if user == "" {
		user = "~" + s.Name()
	}
	return irc.FormatHostmask(s.Name(), user, s.Hostname)
}

// assignNickname moves the session through the registration state machine.
// It reports whether this assignment completed registration.
func (s *Session) assignNickname(nick string) (welcomed bool) {
	s.Nickname = nick
	if s.state == StateRegistering {
		s.state = StateRegistered
		return true
	}
	return false
}

// disconnect closes the connection exactly once.
func (s *Session) disconnect() bool {
	if s.state == StateDisconnected {
		return false
	}
	s.state = StateDisconnected
	if err := s.Conn.Close(); err != nil {
		s.log.Debug("close", "error", err)
	}
	return true
}
