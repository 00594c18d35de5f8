package irc

// Numeric replies sent by the server.
const (
	RPL_WELCOME  = "001"
	RPL_YOURHOST = "002"
	RPL_CREATED  = "003"

	RPL_CHANNELMODEIS = "324"
	RPL_CREATIONTIME  = "329"
	RPL_NOTOPIC       = "331"
	RPL_TOPIC         = "332"
	RPL_INVITING      = "341"
	RPL_NAMREPLY      = "353"
	RPL_ENDOFNAMES    = "366"
)

// Numeric errors sent by the server.
const (
	ERR_UNKNOWNERROR     = "400"
	ERR_NOSUCHNICK       = "401"
	ERR_NOSUCHCHANNEL    = "403"
	ERR_CANNOTSENDTOCHAN = "404"
	ERR_NORECIPIENT      = "411"
	ERR_NOTEXTTOSEND     = "412"
	ERR_UNKNOWNCOMMAND   = "421"
	ERR_NONICKNAMEGIVEN  = "431"
	ERR_ERRONEUSNICKNAME = "432"
	ERR_NICKNAMEINUSE    = "433"
	ERR_USERNOTINCHANNEL = "441"
	ERR_NOTONCHANNEL     = "442"
	ERR_USERONCHANNEL    = "443"
	ERR_NOTREGISTERED    = "451"
	ERR_NEEDMOREPARAMS   = "461"
	ERR_ALREADYREGISTRED = "462"
	ERR_CHANNELISFULL    = "471"
	ERR_UNKNOWNMODE      = "472"
	ERR_INVITEONLYCHAN   = "473"
	ERR_BADCHANNELKEY    = "475"
	ERR_CHANOPRIVSNEEDED = "482"
	ERR_INVALIDMODEPARAM = "696"
)

// IsError reports whether a numeric is in the error range.
func IsError(code string) bool {
	return len(code) == 3 && (code[0] == '4' || code[0] == '5' || code == ERR_INVALIDMODEPARAM)
}
