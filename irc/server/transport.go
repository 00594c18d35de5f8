package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// ConnID identifies a client endpoint. IDs are never reused.
type ConnID uint64

var (
	// ErrNoPending is returned by Accept when no connection is waiting.
	ErrNoPending = errors.New("no pending connection")
	// ErrInterrupted is returned by Poll when it was woken without any
	// endpoint being ready. Callers treat it as an empty iteration.
	ErrInterrupted = errors.New("poll interrupted")
	// ErrTransportClosed is returned once the transport has been closed.
	ErrTransportClosed = errors.New("transport closed")

	errLineTooLong = errors.New("line exceeds maximum length")
)

// MaxLineBytes bounds a single inbound line, terminator included.
const MaxLineBytes = 4096 + 512

// Conn is one client endpoint as seen by the event loop.
type Conn interface {
	ID() ConnID
	RemoteAddr() net.Addr
	// ReadLines returns the complete lines received since the previous
	// call. Once the peer is gone it also returns io.EOF or the read
	// error; the lines returned alongside are still valid.
	ReadLines() ([]string, error)
	Write(line []byte) error
	Close() error
}

// Readiness lists the endpoints with pending work.
type Readiness struct {
	Listener bool
	Conns    []ConnID
}

// Empty reports whether nothing is ready.
func (r Readiness) Empty() bool {
	return !r.Listener && len(r.Conns) == 0
}

// Transport is the readiness source for the event loop.
type Transport interface {
	// Accept returns exactly one pending connection.
	Accept() (Conn, error)
	// Poll blocks until at least one endpoint is ready, the timeout
	// expires (empty Readiness), or ctx is done. A timeout <= 0 waits
	// without limit.
	Poll(ctx context.Context, timeout time.Duration) (Readiness, error)
	Addr() net.Addr
	Close() error
}

// TCPTransport accepts TCP connections and frames their input into lines.
// Its goroutines only collect input and signal readiness; they never touch
// server state.
type TCPTransport struct {
	ln           net.Listener
	log          *slog.Logger
	writeTimeout time.Duration

	wake chan struct{}

	mu            sync.Mutex
	closed        bool
	fatal         error
	pending       []net.Conn
	listenerReady bool
	ready         map[ConnID]struct{}
	conns         map[ConnID]*tcpConn
	nextID        ConnID
	wg            sync.WaitGroup
}

// ListenTCP starts listening on addr.
func ListenTCP(addr string, writeTimeout time.Duration, logger *slog.Logger) (*TCPTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewTCPTransport(ln, writeTimeout, logger), nil
}

// NewTCPTransport wraps an existing listener.
func NewTCPTransport(ln net.Listener, writeTimeout time.Duration, logger *slog.Logger) *TCPTransport {
	t := &TCPTransport{
		ln:           ln,
		log:          logger,
		writeTimeout: writeTimeout,
		wake:         make(chan struct{}, 1),
		ready:        make(map[ConnID]struct{}),
		conns:        make(map[ConnID]*tcpConn),
	}
	t.wg.Add(1)
	go t.acceptLoop()
	return t
}

func (t *TCPTransport) Addr() net.Addr {
	return t.ln.Addr()
}

func (t *TCPTransport) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *TCPTransport) acceptLoop() {
	defer t.wg.Done()
	var delay time.Duration
	for {
		conn, err := t.ln.Accept()
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if closed {
				return
			}
			if errors.Is(err, net.ErrClosed) {
				t.mu.Lock()
				t.fatal = err
				t.mu.Unlock()
				t.signal()
				return
			}
			delay = backoff(delay)
			t.log.Warn("accept failed, retrying", "error", err, "delay", delay)
			time.Sleep(delay)
			continue
		}
		delay = 0

		t.mu.Lock()
		if t.closed {
			t.mu.Unlock()
			conn.Close()
			return
		}
		t.pending = append(t.pending, conn)
		t.listenerReady = true
		t.mu.Unlock()
		t.signal()
	}
}

func backoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	if d *= 2; d > time.Second {
		d = time.Second
	}
	return d
}

// Accept hands out the oldest pending connection and starts its reader.
func (t *TCPTransport) Accept() (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrTransportClosed
	}
	if len(t.pending) == 0 {
		return nil, ErrNoPending
	}
	raw := t.pending[0]
	t.pending = t.pending[1:]
	if len(t.pending) > 0 {
		t.listenerReady = true
	}

	t.nextID++
	c := &tcpConn{id: t.nextID, conn: raw, transport: t}
	t.conns[c.id] = c
	t.wg.Add(1)
	go c.readLoop()
	return c, nil
}

// Poll implements Transport.
func (t *TCPTransport) Poll(ctx context.Context, timeout time.Duration) (Readiness, error) {
	if r, ok, err := t.collect(); ok {
		return r, err
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-ctx.Done():
		return Readiness{}, ctx.Err()
	case <-expired:
		return Readiness{}, nil
	case <-t.wake:
	}

	if r, ok, err := t.collect(); ok {
		return r, err
	}
	return Readiness{}, ErrInterrupted
}

// collect drains every readiness flag raised so far without blocking.
func (t *TCPTransport) collect() (Readiness, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return Readiness{}, true, ErrTransportClosed
	}
	if t.fatal != nil {
		return Readiness{}, true, t.fatal
	}
	if !t.listenerReady && len(t.ready) == 0 {
		return Readiness{}, false, nil
	}
	r := Readiness{Listener: t.listenerReady}
	for id := range t.ready {
		r.Conns = append(r.Conns, id)
	}
	t.listenerReady = false
	clear(t.ready)
	return r, true, nil
}

func (t *TCPTransport) markReady(id ConnID) {
	t.mu.Lock()
	if _, ok := t.conns[id]; ok {
		t.ready[id] = struct{}{}
	}
	t.mu.Unlock()
	t.signal()
}

func (t *TCPTransport) forget(id ConnID) {
	t.mu.Lock()
	delete(t.conns, id)
	delete(t.ready, id)
	t.mu.Unlock()
}

// Close stops accepting, closes pending and live connections, and waits for
// the transport goroutines to exit.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	pending := t.pending
	t.pending = nil
	conns := make([]*tcpConn, 0, len(t.conns))
	for _, c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	err := t.ln.Close()
	for _, c := range pending {
		c.Close()
	}
	for _, c := range conns {
		c.Close()
	}
	t.wg.Wait()
	return err
}

type tcpConn struct {
	id        ConnID
	conn      net.Conn
	transport *TCPTransport

	mu     sync.Mutex
	inbox  []string
	err    error
	closer sync.Once
}

func (c *tcpConn) ID() ConnID           { return c.id }
func (c *tcpConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *tcpConn) readLoop() {
	defer c.transport.wg.Done()
	reader := bufio.NewReaderSize(c.conn, MaxLineBytes)
	for {
		line, isPrefix, err := reader.ReadLine()
		if err == nil && isPrefix {
			err = errLineTooLong
		}
		c.mu.Lock()
		if err != nil {
			c.err = err
		} else {
			c.inbox = append(c.inbox, string(line))
		}
		c.mu.Unlock()
		c.transport.markReady(c.id)
		if err != nil {
			return
		}
	}
}

func (c *tcpConn) ReadLines() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := c.inbox
	c.inbox = nil
	if c.err != nil && errors.Is(c.err, net.ErrClosed) {
		return lines, io.EOF
	}
	return lines, c.err
}

func (c *tcpConn) Write(line []byte) error {
	if c.transport.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.transport.writeTimeout))
	}
	_, err := c.conn.Write(line)
	return err
}

func (c *tcpConn) Close() error {
	var err error
	c.closer.Do(func() {
		err = c.conn.Close()
		c.transport.forget(c.id)
	})
	return err
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
