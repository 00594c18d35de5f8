/*
Package irc holds the wire-level pieces of the chat server: message
decoding and encoding, the numeric reply identifiers, and the naming
rules for nicknames and channels.

# Messages

Inbound lines are decoded with ParseMessage. Unlike most IRC parsers the
command verb keeps its original case; the dispatcher matches verbs
case-sensitively, so "join" is an unknown command while "JOIN" is not.

Outbound messages are serialized with Message.Line, which terminates the
line with CRLF and rejects parameters that cannot be represented on the
wire.

# Names

Channel names must start with the '#' sigil and satisfy the usual IRC
channel grammar. Nicknames follow RFC 2812 rules. Comparisons everywhere
in the server are exact and case-sensitive.
*/
package irc
