package uwb

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// ConfigID selects the platform ranging configuration.
type ConfigID int

// ConfigMulticastDSTWR is one-to-many double-sided two-way ranging. It is
// what the manager requests even though only one peer is ever attached.
const ConfigMulticastDSTWR ConfigID = 2

// UpdateRate is the measurement rate policy requested from the platform.
// The platform picks the rate; nothing else is requested.
type UpdateRate int

const UpdateRateAutomatic UpdateRate = 0

func (u UpdateRate) String() string {
	if u == UpdateRateAutomatic {
		return "automatic"
	}
	return "unknown"
}

// SessionKeySize is the length of the static STS key placeholder.
const SessionKeySize = 8

// PeerDevice identifies the device being ranged against.
type PeerDevice struct {
	Address Address
}

// RangingParameters is what the manager submits to open a measurement feed.
// A new value is built for every start; values are never mutated after
// being handed to the radio.
type RangingParameters struct {
	ConfigID  ConfigID
	SessionID int32
	// SessionKey is an all-zero static key. Link security is out of scope;
	// both sides use the same placeholder so the platform accepts the request.
	SessionKey []byte
	Channel    ComplexChannel
	Peers      []PeerDevice
	UpdateRate UpdateRate
}

// sessionDomainKey separates session-id hashing from any other use of BLAKE3
// on address bytes. ASCII "uwbctl.session.id", zero padded to 32 bytes.
var sessionDomainKey = [32]byte{
	'u', 'w', 'b', 'c', 't', 'l', '.', 's', 'e', 's', 's', 'i', 'o', 'n', '.', 'i',
	'd', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// DeriveSessionID maps a local address onto a positive session identifier.
// The same address always yields the same id.
func DeriveSessionID(local Address) int32 {
	h, err := blake3.NewKeyed(sessionDomainKey[:])
	if err != nil {
		// only fails for keys that are not 32 bytes
		panic("uwb: invalid session domain key: " + err.Error())
	}
	_, _ = h.Write(local[:])

	var sum [32]byte
	h.Sum(sum[:0])

	id := int32(binary.BigEndian.Uint32(sum[:4]) & 0x7fffffff)
	if id == 0 {
		id = 1
	}
	return id
}
