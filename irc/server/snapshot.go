package server

import "time"

// Snapshot is a read-only copy of server state, published by the event
// loop for other goroutines.
type Snapshot struct {
	Taken      time.Time     `json:"taken"`
	Started    time.Time     `json:"started"`
	Sessions   int           `json:"sessions"`
	Registered int           `json:"registered"`
	Channels   []ChannelInfo `json:"channels"`
}

// ChannelInfo describes one channel in a Snapshot. The key is never
// included.
type ChannelInfo struct {
	Name      string    `json:"name"`
	Topic     string    `json:"topic"`
	Modes     string    `json:"modes"`
	Limit     int       `json:"limit,omitempty"`
	Members   []string  `json:"members"`
	Operators []string  `json:"operators"`
	Created   time.Time `json:"created"`
}

// Channel finds a channel by name.
func (s *Snapshot) Channel(name string) (ChannelInfo, bool) {
	for _, ch := range s.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return ChannelInfo{}, false
}

// Snapshot returns the latest published state. Safe for concurrent use.
func (s *Server) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

func (s *Server) publish() {
	snap := &Snapshot{
		Taken:    s.now(),
		Started:  s.startTime,
		Sessions: len(s.sessions),
		Channels: make([]ChannelInfo, 0, len(s.channels)),
	}
	for _, sess := range s.sessions {
		if sess.Registered() {
			snap.Registered++
		}
	}

	channels := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		channels = append(channels, ch)
	}
	sortChannels(channels)
	for _, ch := range channels {
		flags, _ := ch.Modes()
		limit, _ := ch.Limit()
		info := ChannelInfo{
			Name:      ch.Name(),
			Topic:     ch.Topic(),
			Modes:     flags,
			Limit:     limit,
			Members:   nickList(ch.Members()),
			Operators: nickList(ch.Operators()),
			Created:   ch.Created(),
		}
		snap.Channels = append(snap.Channels, info)
	}

	s.snapshot.Store(snap)
	s.dirty = false
}

func nickList(sessions []*Session) []string {
	out := make([]string, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Nickname)
	}
	return out
}
