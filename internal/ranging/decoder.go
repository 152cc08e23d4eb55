package ranging

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/uwbctl/internal/uwb"
)

// Update is what a single feed event changed.
type Update struct {
	Kind uwb.EventKind
	Peer uwb.Address
	// Distance and Azimuth are the published samples, nil when absent.
	Distance *float32
	Azimuth  *float32
}

// Decoder classifies feed events and publishes their samples.
type Decoder struct {
	state  *MeasurementState
	logger *logrus.Logger
}

// NewDecoder creates a decoder publishing to state.
func NewDecoder(state *MeasurementState, logger *logrus.Logger) *Decoder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Decoder{state: state, logger: logger}
}

// Handle applies ev to the state.
//
// Distance and azimuth are published independently; an event carrying only
// one of them leaves the other untouched. Elevation is accepted and ignored.
// A peer-disconnected event clears Connected. Unknown kinds return
// UnrecognizedEvent and leave the state alone.
func (d *Decoder) Handle(ev uwb.Event) (Update, error) {
	u := Update{Kind: ev.Kind, Peer: ev.Peer}

	switch ev.Kind {
	case uwb.EventPosition:
		if p := ev.Position; p != nil {
			if p.Distance != nil {
				v := p.Distance.Value
				d.state.Distance.Store(v)
				u.Distance = &v
			}
			if p.Azimuth != nil {
				v := p.Azimuth.Value
				d.state.Azimuth.Store(v)
				u.Azimuth = &v
			}
		}
		d.state.Connected.Store(true)
		d.logger.WithField("peer", ev.Peer).Debugf("Decoded %s", ev)
		return u, nil

	case uwb.EventPeerDisconnected:
		d.state.Connected.Store(false)
		return u, nil

	default:
		return u, &uwb.Error{Kind: uwb.UnrecognizedEvent, Msg: ev.String()}
	}
}
