package server

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Conditions reported by channel operations.
var (
	ErrNotOnChannel     = errors.New("not on channel")
	ErrNotOperator      = errors.New("not a channel operator")
	ErrNoSuchNick       = errors.New("no such nick")
	ErrAlreadyOnChannel = errors.New("already on channel")
	ErrBadChannelKey    = errors.New("bad channel key")
	ErrChannelIsFull    = errors.New("channel is full")
	ErrInviteOnly       = errors.New("invite only channel")
)

// Channel is a named group of sessions with its own modes and topic.
//
// Operators and invitations are always subsets of the membership the
// session had when they were granted; removing a member clears both.
type Channel struct {
	name    string
	created time.Time

	members   map[*Session]struct{}
	operators map[*Session]struct{}
	invited   map[*Session]struct{}

	topic           string
	inviteOnly      bool
	topicRestricted bool
	key             string
	limit           int
	hasLimit        bool
}

// NewChannel creates an empty channel.
func NewChannel(name string, created time.Time) *Channel {
	return &Channel{
		name:      name,
		created:   created,
		members:   make(map[*Session]struct{}),
		operators: make(map[*Session]struct{}),
		invited:   make(map[*Session]struct{}),
	}
}

func (c *Channel) Name() string          { return c.name }
func (c *Channel) Topic() string         { return c.topic }
func (c *Channel) Created() time.Time    { return c.created }
func (c *Channel) InviteOnly() bool      { return c.inviteOnly }
func (c *Channel) TopicRestricted() bool { return c.topicRestricted }
func (c *Channel) Key() (string, bool)   { return c.key, c.key != "" }
func (c *Channel) Limit() (int, bool)    { return c.limit, c.hasLimit }
func (c *Channel) Len() int              { return len(c.members) }
func (c *Channel) Empty() bool           { return len(c.members) == 0 }
func (c *Channel) CreationTime() string  { return strconv.FormatInt(c.created.Unix(), 10) }

// IsMember reports whether s belongs to the channel.
func (c *Channel) IsMember(s *Session) bool {
	_, ok := c.members[s]
	return ok
}

// IsOperator reports whether s holds operator status.
func (c *Channel) IsOperator(s *Session) bool {
	_, ok := c.operators[s]
	return ok
}

// IsInvited reports whether s is on the invitation list.
func (c *Channel) IsInvited(s *Session) bool {
	_, ok := c.invited[s]
	return ok
}

// Members returns the members in registration order.
func (c *Channel) Members() []*Session {
	out := make([]*Session, 0, len(c.members))
	for s := range c.members {
		out = append(out, s)
	}
	sortSessions(out)
	return out
}

// Operators returns the operators in registration order.
func (c *Channel) Operators() []*Session {
	out := make([]*Session, 0, len(c.operators))
	for s := range c.operators {
		out = append(out, s)
	}
	sortSessions(out)
	return out
}

// MemberByNick finds a member by exact nickname.
func (c *Channel) MemberByNick(nick string) *Session {
	for s := range c.members {
		if s.Nickname == nick {
			return s
		}
	}
	return nil
}

// AddMember adds s to the channel. Adding an existing member is a no-op.
func (c *Channel) AddMember(s *Session) {
	c.members[s] = struct{}{}
}

// RemoveMember removes s from the membership, operator and invitation sets.
// It reports whether s was a member.
func (c *Channel) RemoveMember(s *Session) bool {
	_, ok := c.members[s]
	delete(c.members, s)
	delete(c.operators, s)
	delete(c.invited, s)
	return ok
}

// GrantOperator gives s operator status. Granting is idempotent; a
// non-member cannot be granted.
func (c *Channel) GrantOperator(s *Session) error {
	if !c.IsMember(s) {
		return ErrNotOnChannel
	}
	c.operators[s] = struct{}{}
	return nil
}

// RevokeOperator removes operator status from s. Revoking is idempotent.
func (c *Channel) RevokeOperator(s *Session) {
	delete(c.operators, s)
}

// CheckOperator verifies that s may change channel state.
func (c *Channel) CheckOperator(s *Session) error {
	if !c.IsMember(s) {
		return ErrNotOnChannel
	}
	if !c.IsOperator(s) {
		return ErrNotOperator
	}
	return nil
}

// EvaluateJoinGate decides whether s may join with the supplied key. The
// key is checked first, then the limit, then the invitation list.
func (c *Channel) EvaluateJoinGate(s *Session, key string) error {
	if c.key != "" && key != c.key {
		return ErrBadChannelKey
	}
	if c.hasLimit && len(c.members) >= c.limit {
		return ErrChannelIsFull
	}
	if c.inviteOnly && !c.IsInvited(s) {
		return ErrInviteOnly
	}
	return nil
}

// SetTopic replaces the topic. When the channel is topic-restricted only
// operators may do so. Empty text clears the topic.
func (c *Channel) SetTopic(s *Session, text string) error {
	if !c.IsMember(s) {
		return ErrNotOnChannel
	}
	if c.topicRestricted && !c.IsOperator(s) {
		return ErrNotOperator
	}
	c.topic = text
	return nil
}

// Kick removes the member named nick on behalf of s and returns it.
func (c *Channel) Kick(s *Session, nick string) (*Session, error) {
	if err := c.CheckOperator(s); err != nil {
		return nil, err
	}
	target := c.MemberByNick(nick)
	if target == nil {
		return nil, ErrNoSuchNick
	}
	c.RemoveMember(target)
	return target, nil
}

// Invite adds target to the invitation list on behalf of s.
func (c *Channel) Invite(s, target *Session) error {
	if err := c.CheckOperator(s); err != nil {
		return err
	}
	if c.IsMember(target) {
		return ErrAlreadyOnChannel
	}
	c.invited[target] = struct{}{}
	return nil
}

// Modes returns the active flags in the fixed order i, k, l, t and the
// parameters of k and l in the same order.
func (c *Channel) Modes() (flags string, params []string) {
	var sb strings.Builder
	sb.WriteByte('+')
	if c.inviteOnly {
		sb.WriteByte('i')
	}
	if c.key != "" {
		sb.WriteByte('k')
		params = append(params, c.key)
	}
	if c.hasLimit {
		sb.WriteByte('l')
		params = append(params, strconv.Itoa(c.limit))
	}
	if c.topicRestricted {
		sb.WriteByte('t')
	}
	return sb.String(), params
}

// RenderModeString returns the modes as a single string such as
// "+ikl secret 10". A channel with no modes renders as "+".
func (c *Channel) RenderModeString() string {
	flags, params := c.Modes()
	if len(params) == 0 {
		return flags
	}
	return flags + " " + strings.Join(params, " ")
}
