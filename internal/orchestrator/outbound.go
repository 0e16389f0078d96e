package orchestrator

import (
	"encoding/json"

	"github.com/gammazero/deque"

	"github.com/junsooki/streamlink/internal/session"
	"github.com/junsooki/streamlink/internal/signaling"
)

// send writes msg now if signaling is up. Otherwise msg is queued and a
// connection attempt is started; the queue is flushed on connect.
func (o *Orchestrator) send(msg signaling.Outbound) {
	if !o.connected {
		o.pending.PushBack(msg)
		o.metrics.Queued()
		o.log.Debug().
			Str("command", msg.Verb()).
			Str("stream_id", msg.Stream()).
			Int("pending", o.pending.Len()).
			Msg("queued until connected")
		o.conn.Connect()
		return
	}
	o.write(msg)
}

// sendIfConnected is used for messages that are pointless on a new
// connection, such as leave and stop.
func (o *Orchestrator) sendIfConnected(msg signaling.Outbound) {
	if o.connected {
		o.write(msg)
	}
}

func (o *Orchestrator) write(msg signaling.Outbound) {
	data, err := signaling.Encode(msg)
	if err != nil {
		o.log.Error().Err(err).Str("command", msg.Verb()).Msg("encode failed")
		return
	}
	if err := o.conn.Send(data); err != nil {
		// the read loop reports the disconnect
		o.log.Warn().Err(err).Str("command", msg.Verb()).Str("stream_id", msg.Stream()).Msg("send failed")
		return
	}
	o.metrics.Sent()
	o.log.Debug().Str("command", msg.Verb()).Str("stream_id", msg.Stream()).Msg("sent")

	if h, ok := msg.(*signaling.Handshake); ok && (h.Command == signaling.CommandPublish || h.Command == signaling.CommandPlay) {
		o.scheduleHandshakeCheck()
	}
}

func (o *Orchestrator) flush() {
	for o.pending.Len() > 0 && o.connected {
		o.write(o.pending.PopFront())
	}
}

// purgePending drops queued messages about streamID.
func (o *Orchestrator) purgePending(streamID string) {
	var kept deque.Deque[signaling.Outbound]
	for o.pending.Len() > 0 {
		msg := o.pending.PopFront()
		if msg.Stream() != streamID {
			kept.PushBack(msg)
		}
	}
	o.pending = kept
}

// scheduleHandshakeCheck arms the sweeper a while after a publish or play
// handshake, so a session the server never answered gets retried.
func (o *Orchestrator) scheduleHandshakeCheck() {
	o.clock.AfterFunc(o.opts.HandshakeCheckDelay, func() {
		o.enqueueWait(o.sweeper.Arm)
	})
}

func (o *Orchestrator) handshake(s *session.Session) *signaling.Handshake {
	h := &signaling.Handshake{
		Command:    s.Role.Verb(),
		StreamID:   s.ID,
		Token:      s.Token,
		Video:      o.opts.Video,
		Audio:      o.opts.Audio,
		MainTrack:  s.RoomID,
		MetaData:   o.metaData(),
		StreamName: s.ID,
	}
	if o.opts.User.Name != "" {
		h.StreamName = o.opts.User.Name
	}
	if s.Role == session.RolePlay && o.opts.DisableTrackID != "" {
		h.TrackList = []string{signaling.DisabledTrackPrefix + o.opts.DisableTrackID}
	}
	return h
}

type streamMetaData struct {
	MicMuted       bool   `json:"isMicMuted"`
	CameraOff      bool   `json:"isCameraOff"`
	UserID         int    `json:"userId,omitempty"`
	Username       string `json:"username,omitempty"`
	Role           string `json:"role,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// metaData is the JSON string the server stores alongside the stream.
func (o *Orchestrator) metaData() string {
	data, err := json.Marshal(streamMetaData{
		MicMuted:       o.micMuted || !o.opts.Audio,
		CameraOff:      o.cameraOff || !o.opts.Video,
		UserID:         o.opts.User.ID,
		Username:       o.opts.User.Name,
		Role:           o.opts.User.Role,
		ProfilePicture: o.opts.User.ProfilePicture,
	})
	if err != nil {
		return ""
	}
	return string(data)
}
