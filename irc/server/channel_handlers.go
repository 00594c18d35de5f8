package server

import (
	"strings"

	"github.com/presbrey/ircd/irc"
)

func handleJoin(cmd *Command) error {
	s, sess := cmd.Server, cmd.Session
	if cmd.Param(0) == "" {
		return numeric(irc.ERR_NEEDMOREPARAMS, "JOIN")
	}

	names := irc.SplitList(cmd.Param(0))
	var keys []string
	if cmd.Param(1) != "" {
		keys = strings.Split(cmd.Param(1), ",")
	}
	for i, name := range names {
		key := ""
		if i < len(keys) {
			key = keys[i]
		}
		if err := s.join(sess, name, key); err != nil {
			s.fail(sess, err)
		}
	}
	return nil
}

func (s *Server) join(sess *Session, name, key string) error {
	if !irc.IsChannelName(name) {
		return numeric(irc.ERR_NOSUCHCHANNEL, name)
	}

	ch := s.channels[name]
	if ch == nil {
		ch = s.createChannel(name, sess)
	} else {
		if ch.IsMember(sess) {
			return nil
		}
		if err := ch.EvaluateJoinGate(sess, key); err != nil {
			return s.channelError("JOIN", name, sess.Nickname, err)
		}
		ch.AddMember(sess)
	}
	s.dirty = true

	s.broadcast(ch, sess, "JOIN", name)
	if topic := ch.Topic(); topic != "" {
		s.reply(sess, irc.RPL_TOPIC, name, topic)
	}
	s.names(sess, ch)
	return nil
}

func handlePart(cmd *Command) error {
	s, sess := cmd.Server, cmd.Session
	if cmd.Param(0) == "" {
		return numeric(irc.ERR_NEEDMOREPARAMS, "PART")
	}
	reason := cmd.Param(1)

	for _, name := range irc.SplitList(cmd.Param(0)) {
		ch := s.channels[name]
		if ch == nil {
			s.fail(sess, numeric(irc.ERR_NOSUCHCHANNEL, name))
			continue
		}
		if !ch.IsMember(sess) {
			s.fail(sess, numeric(irc.ERR_NOTONCHANNEL, name))
			continue
		}
		params := []string{name}
		if reason != "" {
			params = append(params, reason)
		}
		s.broadcast(ch, sess, "PART", params...)
		ch.RemoveMember(sess)
		s.releaseChannel(ch)
		s.dirty = true
	}
	return nil
}

func handleMode(cmd *Command) error {
	s, sess := cmd.Server, cmd.Session
	target := cmd.Param(0)
	if target == "" {
		return numeric(irc.ERR_NEEDMOREPARAMS, "MODE")
	}
	// user modes are not modeled
	if !irc.IsChannelTarget(target) {
		return nil
	}
	ch := s.channels[target]
	if ch == nil {
		return numeric(irc.ERR_NOSUCHCHANNEL, target)
	}

	req := ParseModeRequest(strings.Join(cmd.Message.Params[1:], " "))
	if req.IsQuery() {
		s.sendModes(sess, ch)
		s.reply(sess, irc.RPL_CREATIONTIME, ch.Name(), ch.CreationTime())
		return nil
	}

	if !ch.IsOperator(sess) {
		return numeric(irc.ERR_CHANOPRIVSNEEDED, ch.Name())
	}
	changes, err := ValidateModes(ch, req, s.GetClient)
	if err != nil {
		return s.channelError("MODE", ch.Name(), sess.Nickname, err)
	}

	applied := ApplyModes(ch, changes)
	if len(applied) > 0 {
		modes, params := RenderChanges(applied)
		s.broadcast(ch, sess, "MODE", append([]string{ch.Name(), modes}, params...)...)
		s.audit("MODE", ch, sess, "", strings.TrimSpace(modes+" "+strings.Join(params, " ")))
		s.dirty = true
	}
	s.sendModes(sess, ch)
	return nil
}

func (s *Server) sendModes(sess *Session, ch *Channel) {
	flags, params := ch.Modes()
	s.reply(sess, irc.RPL_CHANNELMODEIS, append([]string{ch.Name(), flags}, params...)...)
}

func handleTopic(cmd *Command) error {
	s, sess := cmd.Server, cmd.Session
	name := cmd.Param(0)
	if name == "" {
		return numeric(irc.ERR_NEEDMOREPARAMS, "TOPIC")
	}
	ch := s.channels[name]
	if ch == nil {
		return numeric(irc.ERR_NOSUCHCHANNEL, name)
	}

	if len(cmd.Message.Params) < 2 {
		if ch.Topic() == "" {
			s.reply(sess, irc.RPL_NOTOPIC, name)
		} else {
			s.reply(sess, irc.RPL_TOPIC, name, ch.Topic())
		}
		return nil
	}

	text := cmd.Param(1)
	if err := ch.SetTopic(sess, text); err != nil {
		return s.channelError("TOPIC", name, sess.Nickname, err)
	}
	s.broadcast(ch, sess, "TOPIC", name, text)
	s.audit("TOPIC", ch, sess, "", text)
	s.dirty = true
	return nil
}

func handleKick(cmd *Command) error {
	s, sess := cmd.Server, cmd.Session
	if len(cmd.Message.Params) < 2 || cmd.Param(1) == "" {
		return numeric(irc.ERR_NEEDMOREPARAMS, "KICK")
	}
	name, nick := cmd.Param(0), cmd.Param(1)
	ch := s.channels[name]
	if ch == nil {
		return numeric(irc.ERR_NOSUCHCHANNEL, name)
	}
	comment := cmd.Param(2)
	if comment == "" {
		comment = sess.Nickname
	}

	recipients := ch.Members()
	target, err := ch.Kick(sess, nick)
	if err != nil {
		return s.channelError("KICK", name, nick, err)
	}
	s.broadcastTo(recipients, sess.Prefix(), "KICK", name, target.Nickname, comment)
	s.audit("KICK", ch, sess, target.Nickname, comment)
	s.releaseChannel(ch)
	s.dirty = true
	return nil
}

func handleInvite(cmd *Command) error {
	s, sess := cmd.Server, cmd.Session
	if len(cmd.Message.Params) < 2 || cmd.Param(0) == "" {
		return numeric(irc.ERR_NEEDMOREPARAMS, "INVITE")
	}
	nick, name := cmd.Param(0), cmd.Param(1)
	ch := s.channels[name]
	if ch == nil {
		return numeric(irc.ERR_NOSUCHCHANNEL, name)
	}
	target := s.nicks[nick]
	if target == nil {
		return numeric(irc.ERR_NOSUCHNICK, nick)
	}

	if err := ch.Invite(sess, target); err != nil {
		return s.channelError("INVITE", name, nick, err)
	}
	s.reply(sess, irc.RPL_INVITING, nick, name)
	s.relay(sess, target, "INVITE", nick, name)
	s.audit("INVITE", ch, sess, nick, "")
	return nil
}

func handleNames(cmd *Command) error {
	s, sess := cmd.Server, cmd.Session
	for _, name := range irc.SplitList(cmd.Param(0)) {
		if ch := s.channels[name]; ch != nil {
			s.names(sess, ch)
			continue
		}
		s.reply(sess, irc.RPL_ENDOFNAMES, name)
	}
	return nil
}

func (s *Server) names(sess *Session, ch *Channel) {
	members := ch.Members()
	nicks := make([]string, 0, len(members))
	for _, member := range members {
		if ch.IsOperator(member) {
			nicks = append(nicks, "@"+member.Nickname)
		} else {
			nicks = append(nicks, member.Nickname)
		}
	}
	s.reply(sess, irc.RPL_NAMREPLY, "=", ch.Name(), strings.Join(nicks, " "))
	s.reply(sess, irc.RPL_ENDOFNAMES, ch.Name())
}
