package server

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/lrstanley/girc"
	"github.com/presbrey/ircd/irc/audit"
	"github.com/presbrey/ircd/irc/config"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id       ConnID
	addr     net.Addr
	inbox    []string
	err      error
	out      []string
	writeErr error
	closes   int
}

func (c *fakeConn) ID() ConnID           { return c.id }
func (c *fakeConn) RemoteAddr() net.Addr { return c.addr }

func (c *fakeConn) ReadLines() ([]string, error) {
	lines := c.inbox
	c.inbox = nil
	return lines, c.err
}

func (c *fakeConn) Write(line []byte) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.out = append(c.out, strings.TrimRight(string(line), "\r\n"))
	return nil
}

func (c *fakeConn) Close() error {
	c.closes++
	return nil
}

// take returns everything written since the previous call, parsed.
func (c *fakeConn) take() []*girc.Event {
	events := make([]*girc.Event, 0, len(c.out))
	for _, line := range c.out {
		events = append(events, girc.ParseEvent(line))
	}
	c.out = nil
	return events
}

func (c *fakeConn) ready() bool {
	return len(c.inbox) > 0 || c.err != nil
}

// fakeTransport reports readiness from the fake connections' inboxes.
// Scripted errors are returned by Poll before anything else.
type fakeTransport struct {
	pending []*fakeConn
	live    []*fakeConn
	errs    []error
	onPoll  func()
	polls   int
	closes  int
}

func (t *fakeTransport) Accept() (Conn, error) {
	if len(t.pending) == 0 {
		return nil, ErrNoPending
	}
	c := t.pending[0]
	t.pending = t.pending[1:]
	t.live = append(t.live, c)
	return c, nil
}

func (t *fakeTransport) Poll(ctx context.Context, timeout time.Duration) (Readiness, error) {
	t.polls++
	if t.onPoll != nil {
		t.onPoll()
	}
	if err := ctx.Err(); err != nil {
		return Readiness{}, err
	}
	if len(t.errs) > 0 {
		err := t.errs[0]
		t.errs = t.errs[1:]
		return Readiness{}, err
	}
	// newest first, so the server has to impose its own order
	r := Readiness{Listener: len(t.pending) > 0}
	for i := len(t.live) - 1; i >= 0; i-- {
		if c := t.live[i]; c.ready() {
			r.Conns = append(r.Conns, c.id)
		}
	}
	return r, nil
}

func (t *fakeTransport) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 6667}
}

func (t *fakeTransport) Close() error {
	t.closes++
	return nil
}

type recordingAuditor struct {
	events []audit.Event
}

func (a *recordingAuditor) Record(e audit.Event) {
	a.events = append(a.events, e)
}

type harness struct {
	t         *testing.T
	srv       *Server
	transport *fakeTransport
	auditor   *recordingAuditor
	clock     time.Time
	nextID    ConnID
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Name = "irc.test"
	cfg.Server.Network = "TestNet"
	cfg.Server.Port = 0
	return cfg
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	h := &harness{
		t:         t,
		transport: &fakeTransport{},
		auditor:   &recordingAuditor{},
		clock:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	srv, err := NewServer(cfg,
		WithTransport(h.transport),
		WithAuditor(h.auditor),
		WithClock(func() time.Time { return h.clock }),
	)
	require.NoError(t, err)
	h.srv = srv
	return h
}

// step runs one loop iteration.
func (h *harness) step() {
	h.t.Helper()
	require.NoError(h.t, h.srv.step(context.Background()))
}

// dial queues a new connection and lets the server accept it.
func (h *harness) dial() *fakeConn {
	h.t.Helper()
	h.nextID++
	c := &fakeConn{
		id:   h.nextID,
		addr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000 + int(h.nextID)},
	}
	h.transport.pending = append(h.transport.pending, c)
	h.step()
	return c
}

// client connects and registers nick, discarding the welcome burst.
func (h *harness) client(nick string) *fakeConn {
	h.t.Helper()
	c := h.dial()
	h.send(c, "NICK "+nick)
	require.True(h.t, h.session(c).Registered(), "%s should be registered", nick)
	c.take()
	return c
}

// send delivers lines from c and runs one iteration.
func (h *harness) send(c *fakeConn, lines ...string) {
	h.t.Helper()
	c.inbox = append(c.inbox, lines...)
	h.step()
}

func (h *harness) session(c *fakeConn) *Session {
	return h.srv.sessions[c.id]
}

// expect asserts that c received exactly one message and returns it.
func (h *harness) expect(c *fakeConn, command string) *girc.Event {
	h.t.Helper()
	events := c.take()
	require.Len(h.t, events, 1, "expected a single %s", command)
	require.Equal(h.t, command, events[0].Command)
	return events[0]
}

// commands lists the verbs or numerics c received, consuming them.
func commands(c *fakeConn) []string {
	var out []string
	for _, e := range c.take() {
		out = append(out, e.Command)
	}
	return out
}
