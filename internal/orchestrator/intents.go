package orchestrator

import (
	"github.com/junsooki/streamlink/internal/session"
	"github.com/junsooki/streamlink/internal/signaling"
)

// Publish starts sending local media on streamID. roomID, when set, binds
// the stream to a conference room as a track of its main track. Calling it
// again for a known stream re-sends the handshake without a second session.
func (o *Orchestrator) Publish(streamID, token, roomID string) error {
	return o.enqueue(func() { o.publish(streamID, token, roomID) })
}

// Play starts receiving streamID.
func (o *Orchestrator) Play(streamID, token string) error {
	return o.enqueue(func() { o.play(streamID, token) })
}

// Join starts a peer-to-peer exchange on streamID.
func (o *Orchestrator) Join(streamID string) error {
	return o.enqueue(func() { o.join(streamID) })
}

// JoinRoom joins a multitrack conference room. An empty streamID lets the
// server assign one, reported through OnJoinedRoom.
func (o *Orchestrator) JoinRoom(roomID, streamID string) error {
	return o.enqueue(func() { o.joinRoom(roomID, streamID) })
}

// Leave ends a peer-to-peer session.
func (o *Orchestrator) Leave(streamID string) error {
	return o.enqueue(func() {
		id := o.registry.DefaultID(streamID)
		o.end(id, signaling.CommandLeave)
	})
}

// Stop ends a publish or play session. An empty streamID means the primary
// session.
func (o *Orchestrator) Stop(streamID string) error {
	return o.enqueue(func() {
		id := o.registry.DefaultID(streamID)
		s, ok := o.registry.Get(id)
		switch {
		case ok && s.Role == session.RoleP2PJoin:
			o.end(id, signaling.CommandLeave)
		case ok && s.Role == session.RoleConference:
			o.leaveFromRoom(s.RoomID)
		default:
			o.end(id, signaling.CommandStop)
		}
	})
}

// LeaveFromRoom leaves roomID and ends every session bound to it.
func (o *Orchestrator) LeaveFromRoom(roomID string) error {
	return o.enqueue(func() { o.leaveFromRoom(roomID) })
}

func (o *Orchestrator) publish(id, token, roomID string) {
	s, _ := o.registry.Upsert(id, session.RolePublish, token, roomID)
	o.ensureMedia(s)
	o.send(o.handshake(s))
}

func (o *Orchestrator) play(id, token string) {
	s, _ := o.registry.Upsert(id, session.RolePlay, token, "")
	o.ensureMedia(s)
	o.send(o.handshake(s))
}

func (o *Orchestrator) join(id string) {
	s, _ := o.registry.Upsert(id, session.RoleP2PJoin, "", "")
	o.ensureMedia(s)
	o.send(o.handshake(s))
}

func (o *Orchestrator) joinRoom(roomID, id string) {
	s, _ := o.registry.Upsert(id, session.RoleConference, "", roomID)
	o.send(&signaling.JoinRoom{
		Command:  signaling.CommandJoinRoom,
		RoomID:   s.RoomID,
		Mode:     signaling.RoomModeMultitrack,
		StreamID: s.ID,
	})
}

// end removes the session and tells the server, if it can hear us.
func (o *Orchestrator) end(id, verb string) {
	o.purgePending(id)
	o.stats.unregister(id)
	if _, ok := o.removeSession(id); !ok {
		o.log.Debug().Str("stream_id", id).Str("command", verb).Msg("no local session")
	}
	o.sendIfConnected(&signaling.Leave{Command: verb, StreamID: id})
}

func (o *Orchestrator) leaveFromRoom(roomID string) {
	publisherID := ""
	members := o.registry.ByRoom(roomID)
	for _, s := range members {
		if s.Role == session.RoleConference || s.Role == session.RolePublish {
			publisherID = s.ID
			break
		}
	}
	// a player of the main track is keyed by the room id itself
	if s, ok := o.registry.Get(roomID); ok && s.RoomID != roomID {
		members = append(members, s)
	}

	for _, s := range members {
		o.purgePending(s.ID)
		o.stats.unregister(s.ID)
		o.removeSession(s.ID)
	}
	o.sendIfConnected(&signaling.LeaveRoom{
		Command:  signaling.CommandLeaveFromRoom,
		RoomID:   roomID,
		StreamID: publisherID,
	})
}
