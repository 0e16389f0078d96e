package orchestrator

import (
	"encoding/json"
	"fmt"

	"github.com/junsooki/streamlink/internal/signaling"
)

// Data channel event types for local media state.
const (
	EventMicMuted     = "MIC_MUTED"
	EventMicUnmuted   = "MIC_UNMUTED"
	EventCamTurnedOff = "CAM_TURNED_OFF"
	EventCamTurnedOn  = "CAM_TURNED_ON"
)

// SendCommand sends an arbitrary control message about streamID. Messages
// issued while disconnected go out in order once connected.
func (o *Orchestrator) SendCommand(command, streamID string, extra map[string]any) error {
	return o.enqueue(func() {
		o.send(&signaling.Control{Command: command, StreamID: streamID, Extra: extra})
	})
}

// GetStreamInfo asks for the renditions of streamID; the answer arrives
// through OnStreamInformation.
func (o *Orchestrator) GetStreamInfo(streamID string) error {
	return o.SendCommand(signaling.CommandGetStreamInfo, streamID, nil)
}

// ForceStreamQuality pins playback of streamID to a rendition height. An
// empty trackID applies to the stream itself.
func (o *Orchestrator) ForceStreamQuality(streamID, trackID string, height int) error {
	extra := map[string]any{"streamHeight": height}
	if trackID != "" {
		extra["trackId"] = trackID
	}
	return o.SendCommand(signaling.CommandForceStreamQuality, streamID, extra)
}

// EnableTrack toggles delivery of trackID within the main track streamID.
func (o *Orchestrator) EnableTrack(streamID, trackID string, enabled bool) error {
	return o.SendCommand(signaling.CommandEnableTrack, streamID, map[string]any{"trackId": trackID, "enabled": enabled})
}

func (o *Orchestrator) EnableVideoTrack(streamID, trackID string, enabled bool) error {
	return o.SendCommand(signaling.CommandEnableVideoTrack, streamID, map[string]any{"trackId": trackID, "enabled": enabled})
}

func (o *Orchestrator) EnableAudioTrack(streamID, trackID string, enabled bool) error {
	return o.SendCommand(signaling.CommandEnableAudioTrack, streamID, map[string]any{"trackId": trackID, "enabled": enabled})
}

// GetTrackList asks for the tracks of the main track streamID.
func (o *Orchestrator) GetTrackList(streamID, token string) error {
	var extra map[string]any
	if token != "" {
		extra = map[string]any{"token": token}
	}
	return o.SendCommand(signaling.CommandGetTrackList, streamID, extra)
}

func (o *Orchestrator) GetBroadcastObject(streamID string) error {
	return o.SendCommand(signaling.CommandGetBroadcastObject, streamID, nil)
}

// AssignVideoTrack binds a server-side video slot to a track of streamID.
func (o *Orchestrator) AssignVideoTrack(streamID, videoTrackID string, enabled bool) error {
	return o.SendCommand(signaling.CommandAssignVideoTrack, streamID, map[string]any{"videoTrackId": videoTrackID, "enabled": enabled})
}

func (o *Orchestrator) GetVideoTrackAssignments(streamID string) error {
	return o.SendCommand(signaling.CommandGetVideoTrackAssignments, streamID, nil)
}

// UpdateMetaData pushes the current media state and user info to the
// server for the publishing stream.
func (o *Orchestrator) UpdateMetaData() error {
	return o.enqueue(o.updateMetaData)
}

func (o *Orchestrator) updateMetaData() {
	id := o.registry.PublisherID()
	if id == "" {
		return
	}
	o.send(&signaling.Control{
		Command:  signaling.CommandUpdateStreamMetaData,
		StreamID: id,
		Extra:    map[string]any{"metaData": o.metaData()},
	})
}

// SendData writes to the data channel of streamID, or of the primary
// session when streamID is empty.
func (o *Orchestrator) SendData(streamID string, data []byte, binary bool) error {
	return o.enqueue(func() { o.sendData(o.registry.DefaultID(streamID), data, binary) })
}

func (o *Orchestrator) sendData(id string, data []byte, binary bool) {
	s, ok := o.registry.Get(id)
	if !ok {
		o.reportError(id, fmt.Errorf("send data to %q: %w", id, ErrNoSession))
		return
	}
	if s.Media == nil {
		o.reportError(id, &MediaError{StreamID: id, Op: "sendData", Err: ErrNoMedia})
		return
	}
	if err := s.Media.SendData(data, binary); err != nil {
		o.reportError(id, &MediaError{StreamID: id, Op: "sendData", Err: err})
	}
}

// SendNotification broadcasts an event over the publishing stream's data
// channel. Receivers see it through OnEvent.
func (o *Orchestrator) SendNotification(eventType string, extra map[string]any) error {
	return o.enqueue(func() { o.sendNotification(eventType, extra) })
}

func (o *Orchestrator) sendNotification(eventType string, extra map[string]any) {
	id := o.registry.PublisherID()
	if id == "" {
		o.log.Debug().Str("event", eventType).Msg("no publishing session for notification")
		return
	}
	payload := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		payload[k] = v
	}
	payload["eventType"] = eventType
	payload["streamId"] = id

	data, err := json.Marshal(payload)
	if err != nil {
		o.reportError(id, fmt.Errorf("encode notification: %w", err))
		return
	}
	// room-only sessions have no data channel to carry it
	if s, ok := o.registry.Get(id); !ok || s.Media == nil {
		return
	}
	o.sendData(id, data, false)
}

// SetMicMuted records the microphone state and tells peers and the server.
func (o *Orchestrator) SetMicMuted(muted bool) error {
	return o.enqueue(func() {
		o.micMuted = muted
		event := EventMicUnmuted
		if muted {
			event = EventMicMuted
		}
		o.sendNotification(event, nil)
		o.updateMetaData()
	})
}

// SetCameraOff records the camera state and tells peers and the server.
func (o *Orchestrator) SetCameraOff(off bool) error {
	return o.enqueue(func() {
		o.cameraOff = off
		event := EventCamTurnedOn
		if off {
			event = EventCamTurnedOff
		}
		o.sendNotification(event, nil)
		o.updateMetaData()
	})
}
