package uwb

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "controller", want: RoleController},
		{in: " Controller ", want: RoleController},
		{in: "controlee", want: RoleControlee},
		{in: "RESPONDER", want: RoleControlee},
		{in: "peer", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRole)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRole_String(t *testing.T) {
	assert.Equal(t, "Controller", RoleController.String())
	assert.Equal(t, "Controlee", RoleControlee.String())
	assert.Equal(t, "Role(7)", Role(7).String())
	assert.False(t, Role(7).Valid())
}

func TestUpdateRate_String(t *testing.T) {
	assert.Equal(t, "automatic", UpdateRateAutomatic.String())
	assert.Equal(t, "unknown", UpdateRate(3).String())
}

func TestAddress(t *testing.T) {
	a := AddressFromShort(1234)
	assert.Equal(t, Address{0x04, 0xd2}, a)
	assert.Equal(t, int16(1234), a.Short())
	assert.Equal(t, uint16(1234), a.Uint16())
	assert.Equal(t, "1234", a.String())
	assert.Equal(t, []byte{0x04, 0xd2}, a.Bytes())

	// high bit set decodes as a negative short, matching the platform display
	neg := AddressFromShort(0xfffe)
	assert.Equal(t, int16(-2), neg.Short())
	assert.Equal(t, "-2", neg.String())
}

func TestDeriveSessionID(t *testing.T) {
	a := AddressFromShort(0x1234)
	b := AddressFromShort(0x1235)

	idA := DeriveSessionID(a)
	assert.Equal(t, idA, DeriveSessionID(a), "session id MUST be deterministic")
	assert.Positive(t, idA)
	assert.NotEqual(t, idA, DeriveSessionID(b))

	for i := uint16(0); i < 512; i++ {
		assert.Positive(t, DeriveSessionID(AddressFromShort(i)))
	}
}

func TestScope_Validate(t *testing.T) {
	local := AddressFromShort(7)
	ctrl := NewControllerScope(local, ComplexChannel{Channel: 9, Preamble: 11}, nil)
	ctle := NewControleeScope(local, Capabilities{Distance: true}, nil)

	assert.NoError(t, ctrl.Validate(RoleController))
	assert.NoError(t, ctle.Validate(RoleControlee))

	assert.ErrorIs(t, ctrl.Validate(RoleControlee), ErrRoleScopeMismatch)
	assert.ErrorIs(t, ctle.Validate(RoleController), ErrRoleScopeMismatch)

	var nilScope *Scope
	assert.ErrorIs(t, nilScope.Validate(RoleController), ErrRoleScopeMismatch)

	mislabelled := &Scope{Role: RoleController, Controlee: &ControleeScope{}}
	err := mislabelled.Validate(RoleController)
	assert.ErrorIs(t, err, ErrRoleScopeMismatch)
	assert.Contains(t, err.Error(), "controlee variant")
}

func TestError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("radio busy")
	err := Wrap(ScopeAcquisitionFailed, "SetRole", cause)

	assert.ErrorIs(t, err, ErrScopeAcquisitionFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrStreamError)
	assert.Equal(t, "SetRole: scope_acquisition_failed: radio busy", err.Error())

	kind, ok := KindOf(fmt.Errorf("outer: %w", err))
	assert.True(t, ok)
	assert.Equal(t, ScopeAcquisitionFailed, kind)

	assert.Nil(t, Wrap(StreamError, "op", nil))

	var nilErr *Error
	assert.Equal(t, "<nil>", nilErr.Error())
}

func TestNormalizeError(t *testing.T) {
	assert.Nil(t, NormalizeError(nil))

	err := NormalizeError(errors.New("UWB disabled by user"))
	assert.ErrorIs(t, err, ErrPlatformUnavailable)
	assert.Contains(t, err.Error(), "UWB disabled by user")

	other := errors.New("something else")
	assert.Equal(t, other, NormalizeError(other))
}

func TestEventString(t *testing.T) {
	peer := AddressFromShort(1234)
	ev := PositionEvent(peer, F32(1.5), nil, F32(3))
	assert.Equal(t, "position(peer=1234 distance=1.50 elevation=3.0)", ev.String())
	assert.Equal(t, "peer_disconnected(peer=1234)", PeerDisconnectedEvent(peer).String())
	assert.Equal(t, "other(RangingResultFoo)", OtherEvent("RangingResultFoo").String())
}

type stubRadio struct {
	called string
}

func (s *stubRadio) AcquireControllerScope(context.Context) (*Scope, error) {
	s.called = "controller"
	return NewControllerScope(Address{}, ComplexChannel{}, nil), nil
}

func (s *stubRadio) AcquireControleeScope(context.Context) (*Scope, error) {
	s.called = "controlee"
	return NewControleeScope(Address{}, Capabilities{}, nil), nil
}

func (s *stubRadio) OpenFeed(context.Context, *Scope, RangingParameters) (Subscription, error) {
	return nil, errors.New("not implemented")
}

func TestAcquireScope_Dispatch(t *testing.T) {
	r := &stubRadio{}

	_, err := AcquireScope(context.Background(), r, RoleControlee)
	require.NoError(t, err)
	assert.Equal(t, "controlee", r.called)

	_, err = AcquireScope(context.Background(), r, RoleController)
	require.NoError(t, err)
	assert.Equal(t, "controller", r.called)

	_, err = AcquireScope(context.Background(), r, Role(9))
	assert.ErrorIs(t, err, ErrInvalidRole)
}
