// Package eventlog records what a ranging session did: role changes,
// acquisitions, subscriptions, failures and optionally every decoded sample.
// Events are CBOR encoded with integer keys so long captures stay small and
// can be replayed with ReadAll.
package eventlog

import "time"

// Kind classifies a recorded event.
type Kind uint8

const (
	KindRoleSet Kind = iota + 1
	KindRoleFailed
	KindRangingStarted
	KindRangingStopped
	KindRangingFailed
	KindNotReady
	KindMeasurement
	KindPeerDisconnected
	KindUnrecognized
	KindStreamError
	KindInvariant
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRoleSet:
		return "ROLE_SET"
	case KindRoleFailed:
		return "ROLE_FAILED"
	case KindRangingStarted:
		return "RANGING_STARTED"
	case KindRangingStopped:
		return "RANGING_STOPPED"
	case KindRangingFailed:
		return "RANGING_FAILED"
	case KindNotReady:
		return "NOT_READY"
	case KindMeasurement:
		return "MEASUREMENT"
	case KindPeerDisconnected:
		return "PEER_DISCONNECTED"
	case KindUnrecognized:
		return "UNRECOGNIZED"
	case KindStreamError:
		return "STREAM_ERROR"
	case KindInvariant:
		return "INVARIANT"
	default:
		return "UNKNOWN"
	}
}

// MarshalYAML renders the kind by name.
func (k Kind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// Event is one recorded session fact. Optional fields are omitted when empty.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint" yaml:"timestamp"`
	// RunID ties together every event written by one manager instance.
	RunID string `cbor:"2,keyasint" yaml:"run_id"`
	Kind  Kind   `cbor:"3,keyasint" yaml:"kind"`
	Op    string `cbor:"4,keyasint,omitempty" yaml:"op,omitempty"`
	Role  string `cbor:"5,keyasint,omitempty" yaml:"role,omitempty"`

	SubscriptionID string `cbor:"6,keyasint,omitempty" yaml:"subscription,omitempty"`
	Generation     uint64 `cbor:"7,keyasint,omitempty" yaml:"generation,omitempty"`

	Address   string `cbor:"8,keyasint,omitempty" yaml:"address,omitempty"`
	Peer      string `cbor:"9,keyasint,omitempty" yaml:"peer,omitempty"`
	Channel   int    `cbor:"10,keyasint,omitempty" yaml:"channel,omitempty"`
	Preamble  int    `cbor:"11,keyasint,omitempty" yaml:"preamble,omitempty"`
	SessionID int32  `cbor:"12,keyasint,omitempty" yaml:"session_id,omitempty"`

	Distance *float32 `cbor:"13,keyasint,omitempty" yaml:"distance,omitempty"`
	Azimuth  *float32 `cbor:"14,keyasint,omitempty" yaml:"azimuth,omitempty"`

	Error string `cbor:"15,keyasint,omitempty" yaml:"error,omitempty"`
}
