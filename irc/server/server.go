package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/presbrey/ircd/hooks"
	"github.com/presbrey/ircd/irc/audit"
	"github.com/presbrey/ircd/irc/config"
	"github.com/prometheus/client_golang/prometheus"
)

// Version is reported in the welcome burst.
const Version = "presbrey-ircd-1.0"

// Auditor receives moderation events. Record must not block.
type Auditor interface {
	Record(event audit.Event)
}

// Server owns every session and channel. All registry state is read and
// written only by the goroutine running Run.
type Server struct {
	config    *config.Config
	log       *slog.Logger
	transport Transport
	metrics   *Metrics
	auditor   Auditor
	commands  *hooks.Registry[*Command]
	now       func() time.Time
	startTime time.Time

	sessions map[ConnID]*Session
	nicks    map[string]*Session
	channels map[string]*Channel
	seq      uint64
	doomed   []*Session
	dirty    bool

	snapshot atomic.Pointer[Snapshot]
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.log = logger }
}

// WithTransport supplies the readiness source instead of a TCP listener.
func WithTransport(t Transport) Option {
	return func(s *Server) { s.transport = t }
}

// WithMetrics sets the collectors the server updates.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithAuditor enables the moderation audit trail.
func WithAuditor(a Auditor) Option {
	return func(s *Server) { s.auditor = a }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a new IRC server
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	srv := &Server{
		config:   cfg,
		log:      slog.New(slog.DiscardHandler),
		commands: hooks.NewRegistry[*Command](),
		now:      time.Now,
		sessions: make(map[ConnID]*Session),
		nicks:    make(map[string]*Session),
		channels: make(map[string]*Channel),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.metrics == nil {
		srv.metrics = NewMetrics(prometheus.NewRegistry())
	}
	srv.startTime = srv.now()

	srv.registerDefaultHooks()
	srv.publish()

	return srv, nil
}

// Listen opens the TCP listener unless a transport was supplied.
func (s *Server) Listen() error {
	if s.transport != nil {
		return nil
	}
	t, err := ListenTCP(s.config.GetListenAddress(), s.config.Server.WriteTimeout.Duration, s.log)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.GetListenAddress(), err)
	}
	s.transport = t
	return nil
}

// Addr returns the listening address once Listen has succeeded.
func (s *Server) Addr() net.Addr {
	if s.transport == nil {
		return nil
	}
	return s.transport.Addr()
}

// GetConfig returns the configuration the server was built with.
func (s *Server) GetConfig() *config.Config {
	return s.config
}

// RegisterHook adds a command handler. Handlers for the same verb run in
// priority order; the first error ends the chain.
func (s *Server) RegisterHook(verb string, hook hooks.Hook[*Command], priority int64) {
	s.commands.RegisterWithPriority(verb, hook, priority)
}

// GetClient finds a live session by exact nickname.
func (s *Server) GetClient(nickname string) *Session {
	return s.nicks[nickname]
}

// GetChannel finds a channel by exact name.
func (s *Server) GetChannel(name string) *Channel {
	return s.channels[name]
}

func (s *Server) createChannel(name string, creator *Session) *Channel {
	ch := NewChannel(name, s.now())
	ch.AddMember(creator)
	ch.GrantOperator(creator)
	s.channels[name] = ch
	s.metrics.Channels.Set(float64(len(s.channels)))
	s.log.Debug("channel created", "channel", name, "by", creator.Nickname)
	return ch
}

// releaseChannel destroys ch once it has no members, unless empty channels
// are configured to persist.
func (s *Server) releaseChannel(ch *Channel) {
	if !ch.Empty() || s.config.Server.RetainEmptyChannels {
		return
	}
	if s.channels[ch.Name()] == ch {
		delete(s.channels, ch.Name())
		s.metrics.Channels.Set(float64(len(s.channels)))
		s.log.Debug("channel destroyed", "channel", ch.Name())
	}
}

// peers returns every other session sharing at least one channel with
// sess, each once, in registration order.
func (s *Server) peers(sess *Session) []*Session {
	seen := make(map[*Session]struct{})
	var out []*Session
	for _, ch := range s.channels {
		if !ch.IsMember(sess) {
			continue
		}
		for member := range ch.members {
			if member == sess {
				continue
			}
			if _, ok := seen[member]; !ok {
				seen[member] = struct{}{}
				out = append(out, member)
			}
		}
	}
	sortSessions(out)
	return out
}

func (s *Server) audit(action string, ch *Channel, actor *Session, target, detail string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(audit.Event{
		At:      s.now(),
		Channel: ch.Name(),
		Actor:   actor.Nickname,
		Action:  action,
		Target:  target,
		Detail:  detail,
	})
}

var errServerFull = errors.New("server full")
