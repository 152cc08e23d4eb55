package ranging

import "github.com/srg/uwbctl/internal/uwb"

// BuildParameters assembles a fresh ranging request for one peer.
func BuildParameters(local uwb.Address, ch uwb.ComplexChannel, peer uwb.Address) uwb.RangingParameters {
	return uwb.RangingParameters{
		ConfigID:   uwb.ConfigMulticastDSTWR,
		SessionID:  uwb.DeriveSessionID(local),
		SessionKey: make([]byte, uwb.SessionKeySize),
		Channel:    ch,
		Peers:      []uwb.PeerDevice{{Address: peer}},
		UpdateRate: uwb.UpdateRateAutomatic,
	}
}
