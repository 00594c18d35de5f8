package irc

import (
	"strings"

	"github.com/lrstanley/girc"
)

// ChannelSigil prefixes every channel name the server manages.
const ChannelSigil = '#'

// IsChannelName reports whether name can name a channel on this server.
func IsChannelName(name string) bool {
	return len(name) > 1 && name[0] == ChannelSigil && girc.IsValidChannel(name)
}

// IsChannelTarget reports whether a command target refers to a channel at
// all, valid or not. Targets without the sigil address users.
func IsChannelTarget(target string) bool {
	return strings.HasPrefix(target, string(ChannelSigil))
}

// IsNickname reports whether nick is an acceptable nickname.
func IsNickname(nick string) bool {
	return girc.IsValidNick(nick)
}

// SplitList splits a comma separated parameter such as "#a,#b", dropping
// empty elements.
func SplitList(param string) []string {
	var out []string
	for _, item := range strings.Split(param, ",") {
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
