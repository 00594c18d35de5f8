package server

import (
	"errors"

	"github.com/presbrey/ircd/irc"
)

// Command is the context handed to command hooks.
type Command struct {
	Server  *Server
	Session *Session
	Message *irc.Message
}

// Param returns the i'th message parameter or "".
func (c *Command) Param(i int) string {
	return c.Message.Param(i)
}

// registerDefaultHooks installs the command table. Verbs that need a
// completed registration get a guard hook that runs first.
func (s *Server) registerDefaultHooks() {
	open := map[string]func(*Command) error{
		"NICK": handleNick,
		"USER": handleUser,
		"PING": handlePing,
		"PONG": handlePong,
		"QUIT": handleQuit,
	}
	gated := map[string]func(*Command) error{
		"JOIN":    handleJoin,
		"PART":    handlePart,
		"MODE":    handleMode,
		"TOPIC":   handleTopic,
		"KICK":    handleKick,
		"INVITE":  handleInvite,
		"NAMES":   handleNames,
		"PRIVMSG": handlePrivmsg,
		"NOTICE":  handleNotice,
	}

	for verb, handler := range open {
		s.RegisterHook(verb, handler, 0)
	}
	for verb, handler := range gated {
		s.RegisterHook(verb, requireRegistered, -10)
		s.RegisterHook(verb, handler, 0)
	}
}

func requireRegistered(cmd *Command) error {
	if !cmd.Session.Registered() {
		return numeric(irc.ERR_NOTREGISTERED)
	}
	return nil
}

// dispatch routes one inbound line. Every failed command produces exactly
// one numeric reply.
func (s *Server) dispatch(sess *Session, line string) {
	msg := irc.ParseMessage(line)
	if msg == nil {
		return
	}
	sess.lastActive = s.now()
	sess.log.Debug("<=", "line", line)

	found, err := s.commands.Run(msg.Command, &Command{Server: s, Session: sess, Message: msg})
	if !found {
		s.reply(sess, irc.ERR_UNKNOWNCOMMAND, msg.Command)
		return
	}
	s.metrics.Commands.WithLabelValues(msg.Command).Inc()
	if err == nil {
		return
	}
	var ne *NumericError
	if !errors.As(err, &ne) {
		sess.log.Error("command failed", "command", msg.Command, "error", err)
		s.reply(sess, irc.ERR_UNKNOWNERROR, msg.Command)
		return
	}
	s.fail(sess, err)
}

// fail reports a handler error to the session.
func (s *Server) fail(sess *Session, err error) {
	var ne *NumericError
	if errors.As(err, &ne) {
		s.reply(sess, ne.Code, ne.Params...)
		return
	}
	sess.log.Error("command failed", "error", err)
}

// channelError translates a channel operation failure into its numeric.
func (s *Server) channelError(verb, channel, nick string, err error) error {
	var (
		unknown *UnknownModeError
		invalid *InvalidModeParamError
		target  *ModeTargetError
	)
	switch {
	case errors.As(err, &unknown):
		return numeric(irc.ERR_UNKNOWNMODE, string(unknown.Mode))
	case errors.As(err, &invalid):
		return numeric(irc.ERR_INVALIDMODEPARAM, channel, string(invalid.Mode), invalid.Param)
	case errors.As(err, &target):
		if errors.Is(target.Err, ErrNoSuchNick) {
			return numeric(irc.ERR_NOSUCHNICK, target.Nick)
		}
		return numeric(irc.ERR_USERNOTINCHANNEL, target.Nick, channel)
	case errors.Is(err, ErrNeedMoreParams):
		return numeric(irc.ERR_NEEDMOREPARAMS, verb)
	case errors.Is(err, ErrNotOnChannel):
		return numeric(irc.ERR_NOTONCHANNEL, channel)
	case errors.Is(err, ErrNotOperator):
		return numeric(irc.ERR_CHANOPRIVSNEEDED, channel)
	case errors.Is(err, ErrAlreadyOnChannel):
		return numeric(irc.ERR_USERONCHANNEL, nick, channel)
	case errors.Is(err, ErrNoSuchNick):
		if s.nicks[nick] != nil {
			return numeric(irc.ERR_USERNOTINCHANNEL, nick, channel)
		}
		return numeric(irc.ERR_NOSUCHNICK, nick)
	case errors.Is(err, ErrBadChannelKey):
		return numeric(irc.ERR_BADCHANNELKEY, channel)
	case errors.Is(err, ErrChannelIsFull):
		return numeric(irc.ERR_CHANNELISFULL, channel)
	case errors.Is(err, ErrInviteOnly):
		return numeric(irc.ERR_INVITEONLYCHAN, channel)
	}
	return err
}
