package transport

import (
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/streamlink/internal/media"
)

// DataChannelLabel is the label the media server expects.
const DataChannelLabel = "WebRTCData"

// DataChannelTransport carries application messages over the WebRTCData
// channel. The channel is either created locally (publisher) or attached
// when the remote side opens it (player).
type DataChannelTransport struct {
	mu        sync.RWMutex
	dc        *webrtc.DataChannel
	onMessage func(data []byte, binary bool)
}

// NewDataChannelTransport wraps dc, which may be nil until SetChannel.
func NewDataChannelTransport(dc *webrtc.DataChannel) *DataChannelTransport {
	t := &DataChannelTransport{}
	if dc != nil {
		t.SetChannel(dc)
	}
	return t
}

// SetChannel sets or replaces the channel (used when receiving negotiated channels).
func (t *DataChannelTransport) SetChannel(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.dc = dc
	t.mu.Unlock()

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.mu.RLock()
		cb := t.onMessage
		t.mu.RUnlock()
		if cb != nil {
			cb(msg.Data, !msg.IsString)
		}
	})
}

func (t *DataChannelTransport) Send(data []byte, binary bool) error {
	t.mu.RLock()
	dc := t.dc
	t.mu.RUnlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return media.ErrDataChannelClosed
	}
	if binary {
		return dc.Send(data)
	}
	return dc.SendText(string(data))
}

func (t *DataChannelTransport) OnMessage(cb func(data []byte, binary bool)) {
	t.mu.Lock()
	t.onMessage = cb
	t.mu.Unlock()
}

// Close closes the underlying channel if there is one.
func (t *DataChannelTransport) Close() error {
	t.mu.Lock()
	dc := t.dc
	t.dc = nil
	t.mu.Unlock()
	if dc == nil {
		return nil
	}
	return dc.Close()
}
