package uwb

import "fmt"

// EventKind discriminates measurement feed events.
type EventKind int

const (
	// EventOther is any result kind the decoder does not understand.
	EventOther EventKind = iota
	// EventPosition carries a (possibly partial) position sample.
	EventPosition
	// EventPeerDisconnected reports that the peer stopped responding.
	EventPeerDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventPosition:
		return "position"
	case EventPeerDisconnected:
		return "peer_disconnected"
	default:
		return "other"
	}
}

// Measurement is one decoded value with the platform's confidence figure.
type Measurement struct {
	Value      float32
	Confidence int
}

// Position is a ranging sample. Any field may be nil; partial updates are
// normal.
type Position struct {
	Distance  *Measurement
	Azimuth   *Measurement
	Elevation *Measurement
	// ElapsedNs is the platform timestamp of the sample.
	ElapsedNs int64
}

// Event is a single item delivered on a measurement feed.
type Event struct {
	Kind     EventKind
	Peer     Address
	Position *Position
	// Raw names the platform result type for EventOther.
	Raw string
}

func (e Event) String() string {
	switch e.Kind {
	case EventPosition:
		return fmt.Sprintf("position(peer=%s%s)", e.Peer, e.Position.describe())
	case EventPeerDisconnected:
		return fmt.Sprintf("peer_disconnected(peer=%s)", e.Peer)
	default:
		return fmt.Sprintf("other(%s)", e.Raw)
	}
}

func (p *Position) describe() string {
	if p == nil {
		return ""
	}
	s := ""
	if p.Distance != nil {
		s += fmt.Sprintf(" distance=%.2f", p.Distance.Value)
	}
	if p.Azimuth != nil {
		s += fmt.Sprintf(" azimuth=%.1f", p.Azimuth.Value)
	}
	if p.Elevation != nil {
		s += fmt.Sprintf(" elevation=%.1f", p.Elevation.Value)
	}
	return s
}

// PositionEvent builds a position event. Pass nil for an absent sample.
func PositionEvent(peer Address, distance, azimuth, elevation *float32) Event {
	pos := &Position{}
	if distance != nil {
		pos.Distance = &Measurement{Value: *distance}
	}
	if azimuth != nil {
		pos.Azimuth = &Measurement{Value: *azimuth}
	}
	if elevation != nil {
		pos.Elevation = &Measurement{Value: *elevation}
	}
	return Event{Kind: EventPosition, Peer: peer, Position: pos}
}

// PeerDisconnectedEvent builds a peer-disconnected event.
func PeerDisconnectedEvent(peer Address) Event {
	return Event{Kind: EventPeerDisconnected, Peer: peer}
}

// OtherEvent builds an event of a kind the decoder does not recognize.
func OtherEvent(raw string) Event {
	return Event{Kind: EventOther, Raw: raw}
}

// F32 is a small helper for building optional samples in PositionEvent calls.
func F32(v float32) *float32 {
	return &v
}
