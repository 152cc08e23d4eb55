package uwb

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Role is the local participant's function in a two-party ranging session.
type Role int

const (
	RoleController Role = iota
	RoleControlee
)

func (r Role) String() string {
	switch r {
	case RoleController:
		return "Controller"
	case RoleControlee:
		return "Controlee"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Valid reports whether r is one of the two defined roles.
func (r Role) Valid() bool {
	return r == RoleController || r == RoleControlee
}

// ParseRole converts a user-supplied role name into a Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "controller", "ctrl", "initiator":
		return RoleController, nil
	case "controlee", "ctle", "responder":
		return RoleControlee, nil
	default:
		return 0, &Error{Kind: InvalidRole, Msg: fmt.Sprintf("%q (use controller or controlee)", s)}
	}
}

// Address is a 16-bit UWB short address as carried on the wire.
type Address [2]byte

// AddressFromShort encodes a short address in network byte order.
func AddressFromShort(v uint16) Address {
	var a Address
	binary.BigEndian.PutUint16(a[:], v)
	return a
}

// Short decodes the address the way the platform displays it: a signed
// big-endian 16-bit integer.
func (a Address) Short() int16 {
	return int16(binary.BigEndian.Uint16(a[:]))
}

// Uint16 returns the unsigned short address.
func (a Address) Uint16() uint16 {
	return binary.BigEndian.Uint16(a[:])
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	return []byte{a[0], a[1]}
}

func (a Address) String() string {
	return strconv.Itoa(int(a.Short()))
}

// ComplexChannel is the channel + preamble index pair used by a ranging exchange.
type ComplexChannel struct {
	Channel  int `json:"channel" yaml:"channel"`
	Preamble int `json:"preamble" yaml:"preamble"`
}

func (c ComplexChannel) String() string {
	return fmt.Sprintf("ch%d/p%d", c.Channel, c.Preamble)
}

// Capabilities are the ranging features a controlee's radio reports.
type Capabilities struct {
	Distance  bool `json:"distance" yaml:"distance"`
	Azimuth   bool `json:"azimuth" yaml:"azimuth"`
	Elevation bool `json:"elevation" yaml:"elevation"`
}

// ControllerScope is the controller-only part of a session scope. The
// controller's radio assigns the channel the session will use.
type ControllerScope struct {
	Channel ComplexChannel
}

// ControleeScope is the controlee-only part of a session scope.
type ControleeScope struct {
	Capabilities Capabilities
}

// Scope is an acquired hardware ranging session. It is a tagged variant:
// exactly one of Controller or Controlee is set, matching Role. The variant
// is decided once, at acquisition time.
type Scope struct {
	Role         Role
	LocalAddress Address
	// Handle is the platform's opaque session reference.
	Handle any

	Controller *ControllerScope
	Controlee  *ControleeScope
}

// NewControllerScope builds a controller scope.
func NewControllerScope(local Address, ch ComplexChannel, handle any) *Scope {
	return &Scope{
		Role:         RoleController,
		LocalAddress: local,
		Handle:       handle,
		Controller:   &ControllerScope{Channel: ch},
	}
}

// NewControleeScope builds a controlee scope.
func NewControleeScope(local Address, caps Capabilities, handle any) *Scope {
	return &Scope{
		Role:         RoleControlee,
		LocalAddress: local,
		Handle:       handle,
		Controlee:    &ControleeScope{Capabilities: caps},
	}
}

// Validate checks that the scope carries the variant for want.
// A mismatch is a logic error on the platform side and is reported as
// RoleScopeMismatch.
func (s *Scope) Validate(want Role) error {
	if s == nil {
		return &Error{Kind: RoleScopeMismatch, Msg: "nil scope"}
	}
	ok := false
	switch want {
	case RoleController:
		ok = s.Role == RoleController && s.Controller != nil && s.Controlee == nil
	case RoleControlee:
		ok = s.Role == RoleControlee && s.Controlee != nil && s.Controller == nil
	}
	if !ok {
		return &Error{
			Kind: RoleScopeMismatch,
			Msg:  fmt.Sprintf("want %s scope, got %s", want, s.describe()),
		}
	}
	return nil
}

func (s *Scope) describe() string {
	switch {
	case s.Controller != nil && s.Controlee != nil:
		return s.Role.String() + " scope with both variants"
	case s.Controller != nil:
		return s.Role.String() + " scope with controller variant"
	case s.Controlee != nil:
		return s.Role.String() + " scope with controlee variant"
	default:
		return s.Role.String() + " scope with no variant"
	}
}
