package server

import (
	"fmt"

	"github.com/presbrey/ircd/irc"
)

func handleNick(cmd *Command) error {
	s, sess := cmd.Server, cmd.Session

	nick := cmd.Param(0)
	if nick == "" {
		return numeric(irc.ERR_NONICKNAMEGIVEN)
	}
	if !irc.IsNickname(nick) {
		return numeric(irc.ERR_ERRONEUSNICKNAME, nick)
	}
	if holder := s.nicks[nick]; holder != nil {
		if holder == sess {
			return nil
		}
		return numeric(irc.ERR_NICKNAMEINUSE, nick)
	}

	oldPrefix := sess.Prefix()
	if sess.Nickname != "" {
		delete(s.nicks, sess.Nickname)
	}
	s.nicks[nick] = sess
	s.dirty = true

	if sess.assignNickname(nick) {
		sess.log.Info("registered", "nick", nick)
		s.welcome(sess)
		return nil
	}

	recipients := append([]*Session{sess}, s.peers(sess)...)
	s.broadcastTo(recipients, oldPrefix, "NICK", nick)
	return nil
}

func (s *Server) welcome(sess *Session) {
	cfg := s.config.Server
	s.reply(sess, irc.RPL_WELCOME, fmt.Sprintf("Welcome to the %s Network, %s", cfg.Network, sess.Prefix()))
	s.reply(sess, irc.RPL_YOURHOST, fmt.Sprintf("Your host is %s, running version %s", cfg.Name, Version))
	s.reply(sess, irc.RPL_CREATED, fmt.Sprintf("This server was created %s", s.startTime.Format("Mon Jan 2 2006 at 15:04:05 MST")))
}

func handleUser(cmd *Command) error {
	sess := cmd.Session
	if len(cmd.Message.Params) < 4 || cmd.Param(0) == "" {
		return numeric(irc.ERR_NEEDMOREPARAMS, "USER")
	}
	if sess.Username != "" {
		return numeric(irc.ERR_ALREADYREGISTRED)
	}
	sess.Username = cmd.Param(0)
	sess.Realname = cmd.Param(3)
	cmd.Server.dirty = true
	return nil
}

func handlePing(cmd *Command) error {
	if cmd.Param(0) == "" {
		return numeric(irc.ERR_NEEDMOREPARAMS, "PING")
	}
	name := cmd.Server.config.Server.Name
	cmd.Server.notice(cmd.Session, "PONG", name, cmd.Param(0))
	return nil
}

func handlePong(cmd *Command) error {
	return nil
}

func handleQuit(cmd *Command) error {
	reason := cmd.Param(0)
	if reason == "" {
		reason = "Client Quit"
	}
	cmd.Server.closeLink(cmd.Session, reason)
	cmd.Server.doom(cmd.Session, "Quit: "+reason)
	return nil
}

func handlePrivmsg(cmd *Command) error {
	return deliver(cmd, "PRIVMSG", true)
}

func handleNotice(cmd *Command) error {
	return deliver(cmd, "NOTICE", false)
}

// deliver relays a PRIVMSG or NOTICE. NOTICE never produces error replies.
func deliver(cmd *Command, verb string, replyErrors bool) error {
	s, sess := cmd.Server, cmd.Session
	fail := func(err *NumericError) {
		if replyErrors {
			s.fail(sess, err)
		}
	}

	targets := irc.SplitList(cmd.Param(0))
	if len(targets) == 0 {
		fail(numeric(irc.ERR_NORECIPIENT))
		return nil
	}
	text := cmd.Param(1)
	if len(cmd.Message.Params) < 2 || text == "" {
		fail(numeric(irc.ERR_NOTEXTTOSEND))
		return nil
	}

	for _, target := range targets {
		if irc.IsChannelTarget(target) {
			ch := s.channels[target]
			if ch == nil {
				fail(numeric(irc.ERR_NOSUCHCHANNEL, target))
				continue
			}
			if !ch.IsMember(sess) {
				fail(numeric(irc.ERR_CANNOTSENDTOCHAN, target))
				continue
			}
			for _, member := range ch.Members() {
				if member != sess {
					s.relay(sess, member, verb, target, text)
				}
			}
			continue
		}

		to := s.nicks[target]
		if to == nil {
			fail(numeric(irc.ERR_NOSUCHNICK, target))
			continue
		}
		s.relay(sess, to, verb, target, text)
	}
	return nil
}
