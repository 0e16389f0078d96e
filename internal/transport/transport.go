package transport

// DataSender sends application messages to the remote peer.
type DataSender interface {
	Send(data []byte, binary bool) error
}

// DataReceiver receives application messages from the remote peer.
type DataReceiver interface {
	OnMessage(callback func(data []byte, binary bool))
}

var (
	_ DataSender   = (*DataChannelTransport)(nil)
	_ DataReceiver = (*DataChannelTransport)(nil)
)
