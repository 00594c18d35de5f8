package server

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/presbrey/ircd/irc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain discards pending output on every connection.
func drain(conns ...*fakeConn) {
	for _, c := range conns {
		c.take()
	}
}

func TestRegistration(t *testing.T) {
	h := newHarness(t, nil)
	c := h.dial()

	assert.Equal(t, StateRegistering, h.session(c).State())
	h.send(c, "NICK alice")

	events := c.take()
	require.Len(t, events, 3)
	assert.Equal(t, irc.RPL_WELCOME, events[0].Command)
	assert.Equal(t, irc.RPL_YOURHOST, events[1].Command)
	assert.Equal(t, irc.RPL_CREATED, events[2].Command)
	assert.Equal(t, "alice", events[0].Params[0])
	assert.Contains(t, events[0].Last(), "TestNet")
	assert.Equal(t, "irc.test", events[0].Source.Name)

	sess := h.session(c)
	assert.Equal(t, StateRegistered, sess.State())
	assert.Same(t, sess, h.srv.GetClient("alice"))

	// the welcome is sent only once
	h.send(c, "NICK alicia")
	nick := h.expect(c, "NICK")
	assert.Equal(t, "alice", nick.Source.Name)
	assert.Equal(t, "alicia", nick.Last())
	assert.Nil(t, h.srv.GetClient("alice"))
	assert.Same(t, sess, h.srv.GetClient("alicia"))

	h.send(c, "NICK alicia")
	assert.Empty(t, c.take(), "renaming to the current nick is silent")
}

func TestNickErrors(t *testing.T) {
	h := newHarness(t, nil)
	h.client("alice")
	c := h.dial()

	h.send(c, "NICK")
	h.expect(c, irc.ERR_NONICKNAMEGIVEN)

	h.send(c, "NICK 9lives")
	e := h.expect(c, irc.ERR_ERRONEUSNICKNAME)
	assert.Equal(t, []string{"*", "9lives"}, e.Params[:2])

	h.send(c, "NICK alice")
	h.expect(c, irc.ERR_NICKNAMEINUSE)
	assert.Equal(t, StateRegistering, h.session(c).State())

	h.send(c, "NICK Alice")
	assert.Equal(t, []string{irc.RPL_WELCOME, irc.RPL_YOURHOST, irc.RPL_CREATED}, commands(c),
		"nicknames are case-sensitive")
}

func TestNickChangeNotifiesPeers(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob, carol := h.client("alice"), h.client("bob"), h.client("carol")
	h.send(alice, "JOIN #a,#b")
	h.send(bob, "JOIN #a,#b")
	drain(alice, bob, carol)

	h.send(alice, "NICK alicia")
	h.expect(alice, "NICK")
	e := h.expect(bob, "NICK")
	assert.Equal(t, "alicia", e.Last())
	assert.Empty(t, carol.take())
}

func TestUnregisteredCommands(t *testing.T) {
	h := newHarness(t, nil)
	c := h.dial()

	for _, line := range []string{"JOIN #test", "PRIVMSG bob :hi", "MODE #test", "KICK #test bob"} {
		h.send(c, line)
		h.expect(c, irc.ERR_NOTREGISTERED)
	}

	h.send(c, "PING token")
	pong := h.expect(c, "PONG")
	assert.Equal(t, []string{"irc.test", "token"}, pong.Params)
}

func TestUnknownCommand(t *testing.T) {
	h := newHarness(t, nil)
	c := h.dial()

	h.send(c, "FROB x")
	e := h.expect(c, irc.ERR_UNKNOWNCOMMAND)
	assert.Equal(t, "FROB", e.Params[1])

	h.send(c, "NICK alice")
	c.take()

	h.send(c, "FROB x")
	h.expect(c, irc.ERR_UNKNOWNCOMMAND)

	// verbs are matched exactly
	h.send(c, "join #test")
	h.expect(c, irc.ERR_UNKNOWNCOMMAND)
	assert.Nil(t, h.srv.GetChannel("#test"))
}

func TestUser(t *testing.T) {
	h := newHarness(t, nil)
	c := h.dial()

	h.send(c, "USER only")
	h.expect(c, irc.ERR_NEEDMOREPARAMS)

	h.send(c, "USER al 0 * :Alice Liddell")
	assert.Empty(t, c.take())
	sess := h.session(c)
	assert.Equal(t, "al", sess.Username)
	assert.Equal(t, "Alice Liddell", sess.Realname)

	h.send(c, "USER al 0 * :Again")
	h.expect(c, irc.ERR_ALREADYREGISTRED)

	h.send(c, "NICK alice")
	welcome := c.take()[0]
	assert.Contains(t, welcome.Last(), "alice!al@127.0.0.1")
}

func TestJoinCreatesChannel(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob := h.client("alice"), h.client("bob")

	h.send(alice, "JOIN #test")
	events := alice.take()
	require.Len(t, events, 3)
	assert.Equal(t, "JOIN", events[0].Command)
	assert.Equal(t, "alice", events[0].Source.Name)
	assert.Equal(t, irc.RPL_NAMREPLY, events[1].Command)
	assert.Equal(t, "@alice", events[1].Last())
	assert.Equal(t, irc.RPL_ENDOFNAMES, events[2].Command)

	ch := h.srv.GetChannel("#test")
	require.NotNil(t, ch)
	assert.True(t, ch.IsOperator(h.session(alice)), "creator becomes operator")

	h.send(bob, "JOIN #test")
	e := h.expect(alice, "JOIN")
	assert.Equal(t, "bob", e.Source.Name)
	assert.Equal(t, []string{"JOIN", irc.RPL_NAMREPLY, irc.RPL_ENDOFNAMES}, commands(bob))
	assert.False(t, ch.IsOperator(h.session(bob)))

	// joining again is a no-op
	h.send(bob, "JOIN #test")
	assert.Empty(t, alice.take())
	assert.Empty(t, bob.take())
}

func TestJoinErrors(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.client("alice")

	h.send(alice, "JOIN")
	h.expect(alice, irc.ERR_NEEDMOREPARAMS)

	h.send(alice, "JOIN nochannel")
	h.expect(alice, irc.ERR_NOSUCHCHANNEL)

	h.send(alice, "JOIN #ok,bad,#fine")
	assert.Equal(t, []string{
		"JOIN", irc.RPL_NAMREPLY, irc.RPL_ENDOFNAMES,
		irc.ERR_NOSUCHCHANNEL,
		"JOIN", irc.RPL_NAMREPLY, irc.RPL_ENDOFNAMES,
	}, commands(alice))
}

func TestJoinGatePrecedence(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob := h.client("alice"), h.client("bob")
	h.send(alice, "JOIN #gate")
	h.send(alice, "MODE #gate +ikl secret 1")
	drain(alice)

	h.send(bob, "JOIN #gate wrong")
	h.expect(bob, irc.ERR_BADCHANNELKEY)

	h.send(bob, "JOIN #gate secret")
	h.expect(bob, irc.ERR_CHANNELISFULL)

	h.send(alice, "MODE #gate +l 5")
	drain(alice)
	h.send(bob, "JOIN #gate secret")
	h.expect(bob, irc.ERR_INVITEONLYCHAN)

	h.send(alice, "INVITE bob #gate")
	assert.Equal(t, []string{irc.RPL_INVITING}, commands(alice))
	invite := h.expect(bob, "INVITE")
	assert.Equal(t, "alice", invite.Source.Name)

	h.send(bob, "JOIN #gate,#other secret")
	assert.True(t, h.srv.GetChannel("#gate").IsMember(h.session(bob)))
	assert.True(t, h.srv.GetChannel("#other").IsMember(h.session(bob)))
}

func TestModeQuery(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob := h.client("alice"), h.client("bob")
	h.send(alice, "JOIN #test")
	h.send(alice, "MODE #test +tl 5")
	drain(alice)

	h.send(bob, "MODE #test")
	events := bob.take()
	require.Len(t, events, 2)
	assert.Equal(t, irc.RPL_CHANNELMODEIS, events[0].Command)
	assert.Equal(t, []string{"bob", "#test", "+lt", "5"}, events[0].Params)
	assert.Equal(t, irc.RPL_CREATIONTIME, events[1].Command)
	assert.Equal(t, h.srv.GetChannel("#test").CreationTime(), events[1].Params[2])

	h.send(bob, "MODE #nowhere")
	h.expect(bob, irc.ERR_NOSUCHCHANNEL)

	h.send(bob, "MODE bob +i")
	assert.Empty(t, bob.take(), "user modes are ignored")
}

func TestModeChanges(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob := h.client("alice"), h.client("bob")
	h.send(alice, "JOIN #test")
	h.send(bob, "JOIN #test")
	drain(alice, bob)
	ch := h.srv.GetChannel("#test")

	h.send(bob, "MODE #test +t")
	h.expect(bob, irc.ERR_CHANOPRIVSNEEDED)
	assert.False(t, ch.TopicRestricted())

	h.send(alice, "MODE #test +k+l secret 2")
	mode := h.expect(bob, "MODE")
	assert.Equal(t, []string{"#test", "+kl", "secret", "2"}, mode.Params)
	assert.Equal(t, []string{"MODE", irc.RPL_CHANNELMODEIS}, commands(alice))

	h.send(alice, "MODE #test +o bob")
	mode = h.expect(bob, "MODE")
	assert.Equal(t, []string{"#test", "+o", "bob"}, mode.Params)
	drain(alice)
	assert.True(t, ch.IsOperator(h.session(bob)))

	// nothing changed, nothing broadcast
	h.send(alice, "MODE #test +k secret")
	assert.Empty(t, bob.take())
	assert.Equal(t, []string{irc.RPL_CHANNELMODEIS}, commands(alice))

	h.audit(t, "MODE", "+kl secret 2", "+o bob")
}

func TestModeErrorsLeaveChannelUntouched(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob := h.client("alice"), h.client("bob")
	carol := h.client("carol")
	h.send(alice, "JOIN #test")
	h.send(bob, "JOIN #test")
	drain(alice, bob)
	ch := h.srv.GetChannel("#test")

	tests := []struct {
		line string
		code string
	}{
		{"MODE #test +tx", irc.ERR_UNKNOWNMODE},
		{"MODE #test +tk", irc.ERR_NEEDMOREPARAMS},
		{"MODE #test +tl lots", irc.ERR_INVALIDMODEPARAM},
		{"MODE #test +tk a,b", irc.ERR_INVALIDMODEPARAM},
		{"MODE #test +to ghost", irc.ERR_NOSUCHNICK},
		{"MODE #test +to carol", irc.ERR_USERNOTINCHANNEL},
	}
	for _, tt := range tests {
		h.send(alice, tt.line)
		h.expect(alice, tt.code)
		assert.False(t, ch.TopicRestricted(), tt.line)
		assert.Empty(t, bob.take(), tt.line)
	}
	assert.Empty(t, carol.take())
}

func TestTopic(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob, carol := h.client("alice"), h.client("bob"), h.client("carol")
	h.send(alice, "JOIN #test")
	h.send(bob, "JOIN #test")
	drain(alice, bob)

	h.send(bob, "TOPIC #test")
	h.expect(bob, irc.RPL_NOTOPIC)

	h.send(bob, "TOPIC #test :hello there")
	topic := h.expect(alice, "TOPIC")
	assert.Equal(t, "hello there", topic.Last())
	h.expect(bob, "TOPIC")

	h.send(alice, "MODE #test +t")
	drain(alice, bob)
	h.send(bob, "TOPIC #test :mine now")
	h.expect(bob, irc.ERR_CHANOPRIVSNEEDED)

	h.send(carol, "TOPIC #test :outsider")
	h.expect(carol, irc.ERR_NOTONCHANNEL)

	h.send(carol, "TOPIC #test")
	e := h.expect(carol, irc.RPL_TOPIC)
	assert.Equal(t, "hello there", e.Last())

	h.send(carol, "TOPIC #missing")
	h.expect(carol, irc.ERR_NOSUCHCHANNEL)

	h.send(carol, "JOIN #test")
	assert.Equal(t, []string{"JOIN", irc.RPL_TOPIC, irc.RPL_NAMREPLY, irc.RPL_ENDOFNAMES}, commands(carol))
}

func TestKick(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob, carol := h.client("alice"), h.client("bob"), h.client("carol")
	h.send(alice, "JOIN #test")
	h.send(bob, "JOIN #test")
	drain(alice, bob)

	h.send(bob, "KICK #test alice")
	h.expect(bob, irc.ERR_CHANOPRIVSNEEDED)

	h.send(carol, "KICK #test bob")
	h.expect(carol, irc.ERR_NOTONCHANNEL)

	h.send(alice, "KICK #test ghost")
	h.expect(alice, irc.ERR_NOSUCHNICK)

	h.send(alice, "KICK #test carol")
	h.expect(alice, irc.ERR_USERNOTINCHANNEL)

	h.send(alice, "KICK #missing bob")
	h.expect(alice, irc.ERR_NOSUCHCHANNEL)

	h.send(alice, "KICK #test")
	h.expect(alice, irc.ERR_NEEDMOREPARAMS)

	h.send(alice, "KICK #test bob :behave")
	kick := h.expect(bob, "KICK")
	assert.Equal(t, []string{"#test", "bob", "behave"}, kick.Params)
	h.expect(alice, "KICK")
	assert.False(t, h.srv.GetChannel("#test").IsMember(h.session(bob)))

	h.audit(t, "KICK", "behave")
}

func TestInvite(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob, carol := h.client("alice"), h.client("bob"), h.client("carol")
	h.send(alice, "JOIN #test")
	h.send(bob, "JOIN #test")
	drain(alice, bob)

	h.send(alice, "INVITE carol #missing")
	h.expect(alice, irc.ERR_NOSUCHCHANNEL)

	h.send(alice, "INVITE ghost #test")
	h.expect(alice, irc.ERR_NOSUCHNICK)

	h.send(alice, "INVITE bob #test")
	h.expect(alice, irc.ERR_USERONCHANNEL)

	h.send(bob, "INVITE carol #test")
	h.expect(bob, irc.ERR_CHANOPRIVSNEEDED)

	h.send(carol, "INVITE carol #test")
	h.expect(carol, irc.ERR_NOTONCHANNEL)

	h.send(alice, "INVITE carol #test")
	h.expect(alice, irc.RPL_INVITING)
	h.expect(carol, "INVITE")
	assert.True(t, h.srv.GetChannel("#test").IsInvited(h.session(carol)))
}

func TestPartAndEmptyChannels(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob := h.client("alice"), h.client("bob")
	h.send(alice, "JOIN #test")
	h.send(bob, "JOIN #test")
	drain(alice, bob)

	h.send(bob, "PART #test :later")
	part := h.expect(alice, "PART")
	assert.Equal(t, []string{"#test", "later"}, part.Params)
	h.expect(bob, "PART")

	h.send(bob, "PART #test")
	h.expect(bob, irc.ERR_NOTONCHANNEL)
	h.send(bob, "PART #missing")
	h.expect(bob, irc.ERR_NOSUCHCHANNEL)

	h.send(alice, "PART #test")
	assert.Nil(t, h.srv.GetChannel("#test"), "empty channels are destroyed")
}

func TestRetainEmptyChannels(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RetainEmptyChannels = true
	h := newHarness(t, cfg)
	alice := h.client("alice")

	h.send(alice, "JOIN #keep")
	h.send(alice, "MODE #keep +t")
	h.send(alice, "PART #keep")
	ch := h.srv.GetChannel("#keep")
	require.NotNil(t, ch)
	assert.True(t, ch.Empty())
	assert.True(t, ch.TopicRestricted())
	assert.Empty(t, ch.Operators())
}

func TestMessaging(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob, carol := h.client("alice"), h.client("bob"), h.client("carol")
	h.send(alice, "JOIN #test")
	h.send(bob, "JOIN #test")
	drain(alice, bob)

	h.send(alice, "PRIVMSG #test :hello channel")
	msg := h.expect(bob, "PRIVMSG")
	assert.Equal(t, []string{"#test", "hello channel"}, msg.Params)
	assert.Empty(t, alice.take(), "senders do not get their own message")
	assert.Empty(t, carol.take())

	h.send(carol, "PRIVMSG alice,bob :psst")
	h.expect(alice, "PRIVMSG")
	h.expect(bob, "PRIVMSG")

	h.send(carol, "PRIVMSG #test :let me in")
	h.expect(carol, irc.ERR_CANNOTSENDTOCHAN)
	h.send(carol, "PRIVMSG ghost :hello")
	h.expect(carol, irc.ERR_NOSUCHNICK)
	h.send(carol, "PRIVMSG #void :hello")
	h.expect(carol, irc.ERR_NOSUCHCHANNEL)
	h.send(carol, "PRIVMSG")
	h.expect(carol, irc.ERR_NORECIPIENT)
	h.send(carol, "PRIVMSG alice")
	h.expect(carol, irc.ERR_NOTEXTTOSEND)

	h.send(carol, "NOTICE ghost :hello")
	h.send(carol, "NOTICE #test :hello")
	assert.Empty(t, carol.take(), "NOTICE never replies with errors")

	h.send(carol, "NOTICE bob :direct")
	h.expect(bob, "NOTICE")
}

func TestFailuresReplyOnce(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob := h.client("alice"), h.client("bob")
	h.send(alice, "JOIN #test")
	h.send(alice, "MODE #test +k key")
	drain(alice)

	for _, line := range []string{
		"JOIN #test badkey",
		"MODE #test +i",
		"KICK #test alice",
		"TOPIC #test :x",
		"INVITE alice #test",
		"MODE #test +q",
		"NICK alice",
		"FROB",
	} {
		h.send(bob, line)
		events := bob.take()
		require.Len(t, events, 1, line)
		assert.True(t, irc.IsError(events[0].Command), line)
	}
}

func TestQuit(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob := h.client("alice"), h.client("bob")
	h.send(alice, "JOIN #test")
	h.send(bob, "JOIN #test")
	drain(alice, bob)

	h.send(bob, "QUIT :see you", "PRIVMSG #test :ignored")
	errLine := h.expect(bob, "ERROR")
	assert.Contains(t, errLine.Last(), "see you")
	assert.Equal(t, 1, bob.closes)

	quit := h.expect(alice, "QUIT")
	assert.Equal(t, "bob", quit.Source.Name)
	assert.Equal(t, "Quit: see you", quit.Last())

	assert.Nil(t, h.srv.GetClient("bob"))
	assert.False(t, h.srv.GetChannel("#test").IsMember(h.session(bob)))
	assert.Len(t, h.srv.sessions, 1)
}

func TestConnectionLossCleansUp(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob := h.client("alice"), h.client("bob")
	h.send(alice, "JOIN #test")
	h.send(bob, "JOIN #test,#solo")
	h.send(alice, "MODE #test +o bob")
	drain(alice, bob)
	sess := h.session(bob)

	bob.inbox = []string{"PRIVMSG #test :last words"}
	bob.err = io.EOF
	h.step()

	events := alice.take()
	require.Len(t, events, 2)
	assert.Equal(t, "PRIVMSG", events[0].Command, "lines before the error are still handled")
	assert.Equal(t, "QUIT", events[1].Command)

	assert.Equal(t, StateDisconnected, sess.State())
	assert.Equal(t, 1, bob.closes)
	assert.False(t, h.srv.GetChannel("#test").IsOperator(sess))
	assert.Nil(t, h.srv.GetChannel("#solo"))

	// an invitation alone does not survive the session either
	carol := h.client("carol")
	h.send(alice, "INVITE carol #test")
	drain(alice, carol)
	invited := h.session(carol)
	require.True(t, h.srv.GetChannel("#test").IsInvited(invited))

	carol.err = io.EOF
	h.step()
	assert.Equal(t, StateDisconnected, invited.State())
	assert.False(t, h.srv.GetChannel("#test").IsInvited(invited))
	assert.Empty(t, alice.take(), "carol shared no channel with alice")

	for line, code := range map[string]string{
		"KICK #test bob":     irc.ERR_NOSUCHNICK,
		"INVITE bob #test":   irc.ERR_NOSUCHNICK,
		"MODE #test +o bob":  irc.ERR_NOSUCHNICK,
		"PRIVMSG bob :gone?": irc.ERR_NOSUCHNICK,
	} {
		h.send(alice, line)
		h.expect(alice, code)
	}

	// the nickname is free again
	h.client("bob")
	h.step()
	assert.Equal(t, 1, bob.closes)
}

func TestWriteFailureDisconnects(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob := h.client("alice"), h.client("bob")
	h.send(alice, "JOIN #test")
	h.send(bob, "JOIN #test")
	drain(alice, bob)

	bob.writeErr = errors.New("broken pipe")
	h.send(alice, "PRIVMSG #test :anyone?")

	quit := h.expect(alice, "QUIT")
	assert.Equal(t, "Write error", quit.Last())
	assert.Nil(t, h.srv.GetClient("bob"))
	assert.Equal(t, 1, bob.closes)
}

func TestMaxConnections(t *testing.T) {
	cfg := testConfig()
	cfg.Server.MaxConnections = 1
	h := newHarness(t, cfg)
	h.client("alice")

	c := h.dial()
	assert.Nil(t, h.session(c))
	require.Len(t, c.out, 1)
	assert.Contains(t, c.out[0], "Server full")
	assert.Equal(t, 1, c.closes)
	assert.Len(t, h.srv.sessions, 1)
}

func TestIdleEviction(t *testing.T) {
	cfg := testConfig()
	cfg.Server.IdleTimeout.Duration = time.Minute
	h := newHarness(t, cfg)
	alice, bob := h.client("alice"), h.client("bob")
	assert.Equal(t, 30*time.Second, h.srv.pollTimeout())

	h.clock = h.clock.Add(45 * time.Second)
	h.send(alice, "PING keepalive")
	drain(alice)

	h.clock = h.clock.Add(30 * time.Second)
	h.step()

	errLine := h.expect(bob, "ERROR")
	assert.Contains(t, errLine.Last(), "Idle timeout")
	assert.Equal(t, 1, bob.closes)
	assert.Nil(t, h.srv.GetClient("bob"))
	assert.NotNil(t, h.srv.GetClient("alice"))
}

func TestCustomHook(t *testing.T) {
	h := newHarness(t, nil)
	c := h.client("alice")

	var seen []string
	h.srv.RegisterHook("JOIN", func(cmd *Command) error {
		seen = append(seen, cmd.Param(0))
		return nil
	}, -5)
	h.srv.RegisterHook("VERSION", func(cmd *Command) error {
		cmd.Server.notice(cmd.Session, "NOTICE", cmd.Session.Nickname, Version)
		return nil
	}, 0)

	h.send(c, "JOIN #hooked")
	assert.Equal(t, []string{"#hooked"}, seen)
	assert.NotNil(t, h.srv.GetChannel("#hooked"))
	drain(c)

	h.send(c, "VERSION")
	e := h.expect(c, "NOTICE")
	assert.Equal(t, Version, e.Last())
}

func TestHandlerPanicRepliesOnce(t *testing.T) {
	h := newHarness(t, nil)
	alice, bob := h.client("alice"), h.client("bob")
	h.srv.RegisterHook("TOPIC", func(cmd *Command) error {
		panic("boom")
	}, -5)

	h.send(alice, "TOPIC #test :x")
	e := h.expect(alice, irc.ERR_UNKNOWNERROR)
	assert.Equal(t, []string{"alice", "TOPIC", "Internal error"}, e.Params)

	// the loop and the session carry on
	h.send(alice, "PRIVMSG bob :still here")
	h.expect(bob, "PRIVMSG")
	assert.True(t, h.session(alice).Registered())
}

func (h *harness) audit(t *testing.T, action string, details ...string) {
	t.Helper()
	var got []string
	for _, e := range h.auditor.events {
		if e.Action == action {
			got = append(got, e.Detail)
			assert.Equal(t, "alice", e.Actor)
			assert.Equal(t, h.clock, e.At)
		}
	}
	assert.Equal(t, details, got)
}
