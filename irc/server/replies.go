package server

import (
	"fmt"
	"sort"

	"github.com/presbrey/ircd/irc"
)

var replyText = map[string]string{
	irc.ERR_UNKNOWNERROR:     "Internal error",
	irc.ERR_NOSUCHNICK:       "No such nick/channel",
	irc.ERR_NOSUCHCHANNEL:    "No such channel",
	irc.ERR_CANNOTSENDTOCHAN: "Cannot send to channel",
	irc.ERR_NORECIPIENT:      "No recipient given",
	irc.ERR_NOTEXTTOSEND:     "No text to send",
	irc.ERR_UNKNOWNCOMMAND:   "Unknown command",
	irc.ERR_NONICKNAMEGIVEN:  "No nickname given",
	irc.ERR_ERRONEUSNICKNAME: "Erroneous nickname",
	irc.ERR_NICKNAMEINUSE:    "Nickname is already in use",
	irc.ERR_USERNOTINCHANNEL: "They aren't on that channel",
	irc.ERR_NOTONCHANNEL:     "You're not on that channel",
	irc.ERR_USERONCHANNEL:    "is already on channel",
	irc.ERR_NOTREGISTERED:    "You have not registered",
	irc.ERR_NEEDMOREPARAMS:   "Not enough parameters",
	irc.ERR_ALREADYREGISTRED: "You may not reregister",
	irc.ERR_CHANNELISFULL:    "Cannot join channel (+l)",
	irc.ERR_UNKNOWNMODE:      "is unknown mode char to me",
	irc.ERR_INVITEONLYCHAN:   "Cannot join channel (+i)",
	irc.ERR_BADCHANNELKEY:    "Cannot join channel (+k)",
	irc.ERR_CHANOPRIVSNEEDED: "You're not channel operator",
	irc.ERR_INVALIDMODEPARAM: "Invalid mode parameter",
	irc.RPL_NOTOPIC:          "No topic is set",
	irc.RPL_ENDOFNAMES:       "End of /NAMES list",
}

// NumericError is a failed command's reply. Params exclude the leading
// nickname and the trailing text, which are filled in when it is sent.
type NumericError struct {
	Code   string
	Params []string
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("%s %v", e.Code, e.Params)
}

func numeric(code string, params ...string) *NumericError {
	return &NumericError{Code: code, Params: params}
}

// send writes one message to sess. A failed write marks the session for
// removal at the end of the loop iteration.
func (s *Server) send(sess *Session, msg *irc.Message) {
	if !sess.Live() {
		return
	}
	line, err := msg.Line()
	if err != nil {
		sess.log.Warn("dropping unencodable message", "command", msg.Command, "error", err)
		return
	}
	sess.log.Debug("=>", "line", msg)
	if err := sess.Conn.Write([]byte(line)); err != nil {
		sess.log.Info("write failed", "error", err)
		s.doom(sess, "Write error")
	}
}

// reply sends a numeric from the server, addressed to sess. Codes with a
// standard text get it appended as the trailing parameter.
func (s *Server) reply(sess *Session, code string, params ...string) {
	full := make([]string, 0, len(params)+2)
	full = append(full, sess.Name())
	full = append(full, params...)
	if text, ok := replyText[code]; ok {
		full = append(full, text)
	}
	s.send(sess, &irc.Message{Prefix: s.config.Server.Name, Command: code, Params: full})
	if irc.IsError(code) {
		s.metrics.Errors.WithLabelValues(code).Inc()
	}
}

// notice sends a server message without a numeric.
func (s *Server) notice(sess *Session, command string, params ...string) {
	s.send(sess, &irc.Message{Prefix: s.config.Server.Name, Command: command, Params: params})
}

// relay delivers a message originating from one session to another.
func (s *Server) relay(from, to *Session, command string, params ...string) {
	s.send(to, &irc.Message{Prefix: from.Prefix(), Command: command, Params: params})
}

// broadcast delivers a message from a session to every member of ch,
// including the sender when it is a member.
func (s *Server) broadcast(ch *Channel, from *Session, command string, params ...string) {
	s.broadcastTo(ch.Members(), from.Prefix(), command, params...)
}

func (s *Server) broadcastTo(recipients []*Session, prefix, command string, params ...string) {
	msg := &irc.Message{Prefix: prefix, Command: command, Params: params}
	for _, member := range recipients {
		s.send(member, msg)
	}
}

// closeLink sends the final ERROR line before a server-initiated disconnect.
func (s *Server) closeLink(sess *Session, reason string) {
	s.send(sess, &irc.Message{Command: "ERROR", Params: []string{fmt.Sprintf("Closing Link: %s (%s)", sess.Hostname, reason)}})
}

func sortSessions(list []*Session) {
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })
}

func sortChannels(list []*Channel) {
	sort.Slice(list, func(i, j int) bool { return list[i].name < list[j].name })
}
