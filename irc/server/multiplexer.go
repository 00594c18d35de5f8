package server

import (
	"context"
	"errors"
	"time"

	"github.com/presbrey/ircd/irc"
)

// Run drives the event loop until ctx is done or the transport fails. On
// return every connection has been closed exactly once and every channel
// released. Cancellation is a clean shutdown and returns nil.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.log.Info("listening", "addr", s.transport.Addr(), "name", s.config.Server.Name)
	defer s.release()

	for {
		if err := s.step(ctx); err != nil {
			if ctx.Err() != nil {
				s.log.Info("shutting down")
				return nil
			}
			s.log.Error("event loop stopped", "error", err)
			return err
		}
	}
}

// step runs one iteration: wait for readiness, accept, then drain ready
// clients in registration order.
func (s *Server) step(ctx context.Context) error {
	ready, err := s.pollReadiness(ctx)
	if err != nil {
		return err
	}
	start := time.Now()

	if ready.Listener {
		s.acceptPending()
	}
	for _, sess := range s.readySessions(ready.Conns) {
		s.drainClient(sess)
	}
	s.evictIdle()
	s.reap()
	if s.dirty {
		s.publish()
	}

	s.metrics.Cycle.Observe(time.Since(start).Seconds())
	return nil
}

// pollReadiness waits for work. A wake-up with nothing ready is an empty
// iteration, not an error.
func (s *Server) pollReadiness(ctx context.Context) (Readiness, error) {
	if err := ctx.Err(); err != nil {
		return Readiness{}, err
	}
	ready, err := s.transport.Poll(ctx, s.pollTimeout())
	if errors.Is(err, ErrInterrupted) {
		return Readiness{}, nil
	}
	return ready, err
}

func (s *Server) pollTimeout() time.Duration {
	idle := s.config.Server.IdleTimeout.Duration
	if idle <= 0 {
		return 0
	}
	return idle / 2
}

// acceptPending admits exactly one pending connection.
func (s *Server) acceptPending() {
	conn, err := s.transport.Accept()
	if errors.Is(err, ErrNoPending) {
		return
	}
	if err != nil {
		s.log.Warn("accept failed", "error", err)
		return
	}

	if limit := s.config.Server.MaxConnections; limit > 0 && len(s.sessions) >= limit {
		s.metrics.Rejected.Inc()
		s.log.Info("rejecting connection", "remote", conn.RemoteAddr(), "error", errServerFull)
		msg := &irc.Message{Command: "ERROR", Params: []string{"Closing Link: " + hostOf(conn.RemoteAddr().String()) + " (Server full)"}}
		if line, err := msg.Line(); err == nil {
			conn.Write([]byte(line))
		}
		conn.Close()
		return
	}

	s.seq++
	sess := newSession(conn, s.seq, s.now(), s.log)
	s.sessions[conn.ID()] = sess
	s.metrics.Accepted.Inc()
	s.metrics.Sessions.Set(float64(len(s.sessions)))
	s.dirty = true
	sess.log.Info("connected")
}

// readySessions maps ready endpoints to live sessions, ordered by
// registration sequence.
func (s *Server) readySessions(ids []ConnID) []*Session {
	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if sess, ok := s.sessions[id]; ok {
			out = append(out, sess)
		}
	}
	sortSessions(out)
	return out
}

// drainClient dispatches every complete line a session has sent. A closed
// or failed connection ends the session after its final lines.
func (s *Server) drainClient(sess *Session) {
	lines, err := sess.Conn.ReadLines()
	for _, line := range lines {
		if !sess.Live() || sess.closing {
			break
		}
		s.dispatch(sess, line)
	}
	if err != nil && sess.Live() && !sess.closing {
		sess.log.Info("connection lost", "error", err)
		s.doom(sess, "Connection closed")
	}
}

// doom schedules sess for disconnection at the end of the iteration.
func (s *Server) doom(sess *Session, reason string) {
	if sess.closing || !sess.Live() {
		return
	}
	sess.closing = true
	sess.quitReason = reason
	s.doomed = append(s.doomed, sess)
}

func (s *Server) reap() {
	for len(s.doomed) > 0 {
		doomed := s.doomed
		s.doomed = nil
		for _, sess := range doomed {
			s.disconnect(sess, sess.quitReason)
		}
	}
}

// disconnect removes sess from the server and every channel. Calling it
// again for the same session has no effect.
func (s *Server) disconnect(sess *Session, reason string) {
	if !sess.Live() {
		return
	}

	if sess.Registered() {
		s.broadcastTo(s.peers(sess), sess.Prefix(), "QUIT", reason)
	}
	for _, ch := range s.channels {
		if ch.RemoveMember(sess) {
			s.releaseChannel(ch)
		}
	}

	if s.nicks[sess.Nickname] == sess {
		delete(s.nicks, sess.Nickname)
	}
	delete(s.sessions, sess.Conn.ID())
	sess.disconnect()

	s.metrics.Sessions.Set(float64(len(s.sessions)))
	s.dirty = true
	sess.log.Info("disconnected", "reason", reason)
}

// evictIdle disconnects sessions that have been silent longer than the
// configured idle timeout.
func (s *Server) evictIdle() {
	idle := s.config.Server.IdleTimeout.Duration
	if idle <= 0 {
		return
	}
	now := s.now()
	var stale []*Session
	for _, sess := range s.sessions {
		if !sess.closing && now.Sub(sess.lastActive) > idle {
			stale = append(stale, sess)
		}
	}
	sortSessions(stale)
	for _, sess := range stale {
		s.closeLink(sess, "Idle timeout")
		s.doom(sess, "Idle timeout")
	}
}

// release closes every session and the transport, and drops all channels.
func (s *Server) release() {
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	sortSessions(sessions)
	for _, sess := range sessions {
		sess.disconnect()
	}
	clear(s.sessions)
	clear(s.nicks)
	clear(s.channels)
	s.doomed = nil

	if err := s.transport.Close(); err != nil {
		s.log.Debug("transport close", "error", err)
	}
	s.metrics.Sessions.Set(0)
	s.metrics.Channels.Set(0)
	s.publish()
}
