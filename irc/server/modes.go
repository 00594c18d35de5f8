package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNeedMoreParams reports a missing or blank parameter.
var ErrNeedMoreParams = errors.New("not enough parameters")

// UnknownModeError names the first character outside the mode alphabet.
type UnknownModeError struct {
	Mode byte
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown mode %q", e.Mode)
}

// InvalidModeParamError reports a parameter that does not fit its flag.
type InvalidModeParamError struct {
	Mode  byte
	Param string
}

func (e *InvalidModeParamError) Error() string {
	return fmt.Sprintf("invalid parameter %q for mode %q", e.Param, e.Mode)
}

// ModeTargetError reports an operator grant or revoke naming a session that
// does not exist (ErrNoSuchNick) or is not a member (ErrNotOnChannel).
type ModeTargetError struct {
	Nick string
	Err  error
}

func (e *ModeTargetError) Error() string {
	return fmt.Sprintf("mode target %s: %v", e.Nick, e.Err)
}

func (e *ModeTargetError) Unwrap() error { return e.Err }

// ModeRequest is the argument of a channel MODE command: a mode string and
// the parameters that follow it.
type ModeRequest struct {
	Modes  string
	Params []string
}

// ParseModeRequest tokenizes the raw argument on whitespace. The first token
// is the mode string; the rest form the parameter stream.
func ParseModeRequest(raw string) ModeRequest {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ModeRequest{}
	}
	return ModeRequest{Modes: fields[0], Params: fields[1:]}
}

// IsQuery reports whether the request only asks for the current modes.
func (r ModeRequest) IsQuery() bool {
	return r.Modes == ""
}

// ModeChange is one validated flag transition.
type ModeChange struct {
	Add    bool
	Mode   byte
	Param  string
	target *Session
}

type modeStep struct {
	add        bool
	mode       byte
	takesParam bool
}

// planModes checks every character of the mode string against the
// alphabet and determines which flags consume a parameter. The sign is
// sticky and defaults to '+'.
func planModes(modes string) ([]modeStep, error) {
	steps := make([]modeStep, 0, len(modes))
	add := true
	for i := 0; i < len(modes); i++ {
		switch ch := modes[i]; ch {
		case '+':
			add = true
		case '-':
			add = false
		case 'i', 't':
			steps = append(steps, modeStep{add: add, mode: ch})
		case 'k', 'l':
			steps = append(steps, modeStep{add: add, mode: ch, takesParam: add})
		case 'o':
			steps = append(steps, modeStep{add: add, mode: ch, takesParam: true})
		default:
			return nil, &UnknownModeError{Mode: ch}
		}
	}
	return steps, nil
}

// ValidateModes pairs parameters positionally with the flags that take one
// and validates each pairing against the channel. Nothing is changed; on
// success the returned changes can be committed with ApplyModes.
func ValidateModes(ch *Channel, req ModeRequest, lookup func(nick string) *Session) ([]ModeChange, error) {
	steps, err := planModes(req.Modes)
	if err != nil {
		return nil, err
	}

	changes := make([]ModeChange, 0, len(steps))
	next := 0
	for _, step := range steps {
		change := ModeChange{Add: step.add, Mode: step.mode}
		if step.takesParam {
			if next >= len(req.Params) || strings.TrimSpace(req.Params[next]) == "" {
				return nil, ErrNeedMoreParams
			}
			param := req.Params[next]
			next++

			switch step.mode {
			case 'k':
				// JOIN splits its key list on commas
				if strings.Contains(param, ",") {
					return nil, &InvalidModeParamError{Mode: 'k', Param: param}
				}
			case 'l':
				if !isDigits(param) {
					return nil, &InvalidModeParamError{Mode: 'l', Param: param}
				}
				if _, err := strconv.Atoi(param); err != nil {
					return nil, &InvalidModeParamError{Mode: 'l', Param: param}
				}
			case 'o':
				target := lookup(param)
				if target == nil {
					return nil, &ModeTargetError{Nick: param, Err: ErrNoSuchNick}
				}
				if !ch.IsMember(target) {
					return nil, &ModeTargetError{Nick: param, Err: ErrNotOnChannel}
				}
				change.target = target
			}
			change.Param = param
		}
		changes = append(changes, change)
	}
	return changes, nil
}

// ApplyModes commits validated changes in order and returns the ones that
// altered channel state.
func ApplyModes(ch *Channel, changes []ModeChange) []ModeChange {
	applied := make([]ModeChange, 0, len(changes))
	for _, change := range changes {
		if applyMode(ch, change) {
			applied = append(applied, change)
		}
	}
	return applied
}

func applyMode(ch *Channel, change ModeChange) bool {
	switch change.Mode {
	case 'i':
		if ch.inviteOnly == change.Add {
			return false
		}
		ch.inviteOnly = change.Add
	case 't':
		if ch.topicRestricted == change.Add {
			return false
		}
		ch.topicRestricted = change.Add
	case 'k':
		if change.Add {
			if ch.key == change.Param {
				return false
			}
			ch.key = change.Param
		} else {
			if ch.key == "" {
				return false
			}
			ch.key = ""
		}
	case 'l':
		if change.Add {
			n, _ := strconv.Atoi(change.Param)
			if ch.hasLimit && ch.limit == n {
				return false
			}
			ch.limit, ch.hasLimit = n, true
		} else {
			if !ch.hasLimit {
				return false
			}
			ch.limit, ch.hasLimit = 0, false
		}
	case 'o':
		if change.Add {
			if ch.IsOperator(change.target) {
				return false
			}
			return ch.GrantOperator(change.target) == nil
		}
		if !ch.IsOperator(change.target) {
			return false
		}
		ch.RevokeOperator(change.target)
	default:
		return false
	}
	return true
}

// RenderChanges formats applied changes as a compact mode string with its
// parameters, e.g. "+kl-o" and ["secret", "10", "bob"].
func RenderChanges(changes []ModeChange) (string, []string) {
	var sb strings.Builder
	var params []string
	sign := byte(0)
	for _, change := range changes {
		want := byte('-')
		if change.Add {
			want = '+'
		}
		if want != sign {
			sb.WriteByte(want)
			sign = want
		}
		sb.WriteByte(change.Mode)
		if change.Param != "" && (change.Add || change.Mode == 'o') {
			params = append(params, change.Param)
		}
	}
	return sb.String(), params
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
