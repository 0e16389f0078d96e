package peer

import (
	"github.com/pion/webrtc/v4"

	"github.com/junsooki/streamlink/internal/media"
)

// Stats flattens the pion stats report into transport totals.
func (c *Connection) Stats() (media.Stats, error) {
	if c.closed.Load() {
		return media.Stats{}, media.ErrConnectionClosed
	}
	return flattenStats(c.pc.GetStats()), nil
}

func flattenStats(report webrtc.StatsReport) media.Stats {
	var out media.Stats
	for _, s := range report {
		switch st := s.(type) {
		case webrtc.TransportStats:
			out.BytesSent += st.BytesSent
			out.BytesReceived += st.BytesReceived
		case webrtc.OutboundRTPStreamStats:
			out.PacketsSent += uint64(st.PacketsSent)
		case webrtc.InboundRTPStreamStats:
			out.PacketsReceived += uint64(st.PacketsReceived)
			out.PacketsLost += int64(st.PacketsLost)
		case webrtc.ICECandidatePairStats:
			if st.Nominated {
				out.RoundTripTime = st.CurrentRoundTripTime
			}
		case webrtc.AudioReceiverStats:
			out.AudioLevel = st.AudioLevel
		}
	}
	return out
}
