package orchestrator

import (
	"github.com/junsooki/streamlink/internal/media"
	"github.com/junsooki/streamlink/internal/signaling"
)

// Handler callbacks for application notifications. Every callback runs on
// the orchestrator goroutine: it may call intent methods such as Publish,
// which only enqueue, but must not call Sessions or Close.
type Handler struct {
	OnConnected    func()
	OnDisconnected func(reason error)

	OnPublishStarted  func(streamID string)
	OnPublishFinished func(streamID string)
	OnPlayStarted     func(streamID string)
	OnPlayFinished    func(streamID string)
	OnJoined          func(streamID string)
	// OnJoinedRoom reports the stream id the server assigned for publishing
	// into the room, with the initial roster.
	OnJoinedRoom      func(roomID, streamID string, streams []string)
	OnStreamsJoined   func(roomID string, streams []string)
	OnStreamsLeft     func(roomID string, streams []string)
	OnBroadcastObject func(streamID string, object map[string]any)

	// OnNotification receives every server notification, including the
	// ones that also have a dedicated callback above.
	OnNotification func(streamID, definition string, payload map[string]any)

	OnTrackList         func(streamID string, tracks []string)
	OnStreamInformation func(streamID string, info []signaling.StreamInfo)

	OnConnectivityChanged func(streamID string, state media.ConnectivityState)
	OnTrackAdded          func(streamID string, track media.Track)
	OnTrackRemoved        func(streamID string, track media.Track)

	// OnEvent receives data channel messages carrying eventType and streamId.
	OnEvent func(streamID, eventType string, payload map[string]any)
	OnData  func(streamID string, data []byte, binary bool)
	OnStats func(streamID string, stats media.Stats)

	OnError func(streamID string, err error)
}
