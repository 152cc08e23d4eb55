package ranging

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/srg/uwbctl/internal/uwb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDecoder() (*Decoder, *MeasurementState) {
	state := NewMeasurementState()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewDecoder(state, logger), state
}

func TestDecoder_PartialUpdates(t *testing.T) {
	d, state := newTestDecoder()
	peer := uwb.AddressFromShort(1234)

	_, err := d.Handle(uwb.PositionEvent(peer, uwb.F32(1.5), uwb.F32(30), nil))
	require.NoError(t, err)

	u, err := d.Handle(uwb.PositionEvent(peer, uwb.F32(2.0), nil, nil))
	require.NoError(t, err)
	assert.Nil(t, u.Azimuth)
	assert.Equal(t, float32(2.0), state.Distance.Load())
	assert.Equal(t, float32(30), state.Azimuth.Load(), "distance-only update MUST leave azimuth unchanged")

	u, err = d.Handle(uwb.PositionEvent(peer, nil, uwb.F32(-15), nil))
	require.NoError(t, err)
	assert.Nil(t, u.Distance)
	assert.Equal(t, float32(2.0), state.Distance.Load(), "azimuth-only update MUST leave distance unchanged")
	assert.Equal(t, float32(-15), state.Azimuth.Load())
	assert.True(t, state.Connected.Load())
}

func TestDecoder_ElevationIgnored(t *testing.T) {
	d, state := newTestDecoder()

	u, err := d.Handle(uwb.PositionEvent(uwb.AddressFromShort(1), nil, nil, uwb.F32(12)))
	require.NoError(t, err)
	assert.Nil(t, u.Distance)
	assert.Nil(t, u.Azimuth)
	assert.Zero(t, state.Distance.Load())
	assert.Zero(t, state.Azimuth.Load())
}

func TestDecoder_EmptyPosition(t *testing.T) {
	d, state := newTestDecoder()

	_, err := d.Handle(uwb.Event{Kind: uwb.EventPosition})
	require.NoError(t, err)
	assert.True(t, state.Connected.Load())
}

func TestDecoder_PeerDisconnected(t *testing.T) {
	d, state := newTestDecoder()
	peer := uwb.AddressFromShort(1234)
	state.Distance.Store(3)

	_, err := d.Handle(uwb.PositionEvent(peer, uwb.F32(1), nil, nil))
	require.NoError(t, err)
	require.True(t, state.Connected.Load())

	u, err := d.Handle(uwb.PeerDisconnectedEvent(peer))
	require.NoError(t, err)
	assert.Equal(t, uwb.EventPeerDisconnected, u.Kind)
	assert.Equal(t, peer, u.Peer)
	assert.False(t, state.Connected.Load())
	assert.Equal(t, float32(1), state.Distance.Load(), "disconnect MUST NOT clear the last sample")
}

func TestDecoder_Unrecognized(t *testing.T) {
	d, state := newTestDecoder()
	before := state.Snapshot()

	_, err := d.Handle(uwb.OtherEvent("RangingResultFailure"))
	require.Error(t, err)
	assert.ErrorIs(t, err, uwb.ErrUnrecognizedEvent)
	assert.Contains(t, err.Error(), "RangingResultFailure")
	assert.Equal(t, before, state.Snapshot())
}
