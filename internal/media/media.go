// Package media defines the contract between the session orchestrator and
// the media engine that performs offer/answer, ICE and media transport.
//
// The orchestrator never inspects codecs, bitrates or capture details; it
// forwards opaque SDP and candidate payloads and receives connectivity
// and track notifications through Events.
package media

import (
	"errors"
	"fmt"
)

var (
	// ErrDataChannelClosed is returned by SendData when the channel is not open.
	ErrDataChannelClosed = errors.New("data channel is not open")
	// ErrConnectionClosed is returned by operations on a closed connection.
	ErrConnectionClosed = errors.New("media connection closed")
)

// ConnectivityState mirrors the engine's per-session connectivity signal.
type ConnectivityState int

const (
	StateNew ConnectivityState = iota
	StateConnected
	StateDisconnected
	StateFailed
	StateClosed
)

func (s ConnectivityState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// SDPType is the type of a session description.
type SDPType string

const (
	SDPOffer  SDPType = "offer"
	SDPAnswer SDPType = "answer"
)

// Candidate is an ICE candidate as carried by takeCandidate.
type Candidate struct {
	Candidate string
	// SDPMid is sent on the wire as "id".
	SDPMid string
	// SDPMLineIndex is sent on the wire as "label".
	SDPMLineIndex int
}

// Track describes a remote media track.
type Track struct {
	ID       string
	StreamID string
	Kind     string
}

// Stats is a flattened view of a connection's transport statistics.
type Stats struct {
	BytesSent       uint64
	BytesReceived   uint64
	PacketsSent     uint64
	PacketsReceived uint64
	PacketsLost     int64
	RoundTripTime   float64
	AudioLevel      float64
}

// Description is a local session description produced by the engine.
type Description struct {
	Type SDPType
	SDP  string
}

// Events is implemented by the orchestrator. Engines may invoke it from
// any goroutine; implementations must only enqueue work.
type Events interface {
	// LocalDescription is called when an offer or answer is ready to be
	// sent through signaling.
	LocalDescription(streamID string, desc Description)
	// LocalCandidate is called for every gathered ICE candidate.
	LocalCandidate(streamID string, c Candidate)
	ConnectivityChanged(streamID string, state ConnectivityState)
	TrackAdded(streamID string, track Track)
	TrackRemoved(streamID string, track Track)
	DataReceived(streamID string, data []byte, binary bool)
	// Error reports an asynchronous engine failure for a session.
	Error(streamID string, op string, err error)
}

// Role tells the engine which direction media flows.
type Role int

const (
	RoleSend Role = iota
	RoleReceive
	RoleSendReceive
)

// Engine creates per-session media connections.
type Engine interface {
	Open(streamID string, role Role, events Events) (Connection, error)
}

// Connection is the media handle for one session. The orchestrator holds
// it to drive negotiation and to tear it down.
type Connection interface {
	CreateOffer() error
	SetRemoteDescription(typ SDPType, sdp string) error
	// CreateAnswer produces an answer after an accepted remote offer.
	CreateAnswer() error
	AddCandidate(c Candidate) error
	SendData(data []byte, binary bool) error
	Stats() (Stats, error)
	// Close releases engine resources. It may block.
	Close()
}
