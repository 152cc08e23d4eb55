package ranging

import (
	"strconv"

	"github.com/srg/uwbctl/internal/uwb"
	"github.com/srg/uwbctl/pkg/config"
)

// ChannelHint is an optional channel/preamble pair supplied by a caller or
// by configuration.
type ChannelHint struct {
	Channel  int
	Preamble int
	Valid    bool
}

// Hint returns a set hint. Values are taken as given; the platform rejects
// pairs it cannot use.
func Hint(channel, preamble int) ChannelHint {
	return ChannelHint{Channel: channel, Preamble: preamble, Valid: true}
}

// FallbackHint turns the configured controlee fallback into a hint. It is
// unset unless both values are configured.
func FallbackHint(c config.ControleeConfig) ChannelHint {
	if !c.Configured() {
		return ChannelHint{}
	}
	return Hint(c.Channel, c.Preamble)
}

func (h ChannelHint) channel() uwb.ComplexChannel {
	return uwb.ComplexChannel{Channel: h.Channel, Preamble: h.Preamble}
}

// Negotiate decides the channel for the next ranging attempt.
//
// A controller always uses the channel its scope was assigned; the hint
// only describes what the peer is expected to use and is ignored. A
// controlee uses the hint verbatim, then the configured fallback, and fails
// with ChannelUnspecified when it has neither.
func Negotiate(role uwb.Role, scope *uwb.Scope, hint, fallback ChannelHint) (uwb.ComplexChannel, error) {
	if err := scope.Validate(role); err != nil {
		return uwb.ComplexChannel{}, err
	}

	switch role {
	case uwb.RoleController:
		return scope.Controller.Channel, nil
	case uwb.RoleControlee:
		if hint.Valid {
			return hint.channel(), nil
		}
		if fallback.Valid {
			return fallback.channel(), nil
		}
		return uwb.ComplexChannel{}, &uwb.Error{
			Kind: uwb.ChannelUnspecified,
			Msg:  "controlee needs a channel and preamble from the caller or from controlee.channel/controlee.preamble",
		}
	default:
		return uwb.ComplexChannel{}, &uwb.Error{Kind: uwb.InvalidRole, Msg: role.String()}
	}
}

// Negotiator writes negotiated session parameters into a MeasurementState.
type Negotiator struct {
	state *MeasurementState
}

// NewNegotiator creates a Negotiator publishing to state.
func NewNegotiator(state *MeasurementState) *Negotiator {
	return &Negotiator{state: state}
}

// Seed publishes the scope's local address and ch. A nil ch publishes
// StatusUnset for channel and preamble; a controlee without a fallback has
// no channel until ranging starts.
func (n *Negotiator) Seed(scope *uwb.Scope, ch *uwb.ComplexChannel) {
	channel, preamble := StatusUnset, StatusUnset
	if ch != nil {
		channel = strconv.Itoa(ch.Channel)
		preamble = strconv.Itoa(ch.Preamble)
	}
	n.state.setSession(scope.LocalAddress.String(), channel, preamble)
}
