package orchestrator

import (
	"github.com/junsooki/streamlink/internal/media"
	"github.com/junsooki/streamlink/internal/session"
	"github.com/junsooki/streamlink/internal/signaling"
)

func (o *Orchestrator) dispatch(msg signaling.Inbound) {
	switch m := msg.(type) {
	case *signaling.Start:
		s, ok := o.mediaSession(m.StreamID, m.Verb())
		if !ok {
			return
		}
		if err := s.Media.CreateOffer(); err != nil {
			o.reportError(s.ID, &MediaError{StreamID: s.ID, Op: "createOffer", Err: err})
		}

	case *signaling.Stop:
		o.log.Info().Str("stream_id", m.StreamID).Msg("server stopped stream")
		o.stats.unregister(m.StreamID)
		o.removeSession(m.StreamID)

	case *signaling.TakeConfiguration:
		o.takeConfiguration(m)

	case *signaling.TakeCandidate:
		s, ok := o.mediaSession(m.StreamID, m.Verb())
		if !ok {
			return
		}
		err := s.Media.AddCandidate(media.Candidate{Candidate: m.Candidate, SDPMid: m.ID, SDPMLineIndex: m.Label})
		if err != nil {
			o.reportError(s.ID, &MediaError{StreamID: s.ID, Op: "addCandidate", Err: err})
		}

	case *signaling.TrackList:
		if o.handler.OnTrackList != nil {
			o.handler.OnTrackList(m.StreamID, m.Tracks)
		}

	case *signaling.StreamInformation:
		if o.handler.OnStreamInformation != nil {
			o.handler.OnStreamInformation(m.StreamID, m.Info)
		}

	case *signaling.Notification:
		o.notification(m)

	case *signaling.RoomInformation:
		o.roomInformation(m.Room, m.Streams)

	case *signaling.Pong:

	case *signaling.ErrorMessage:
		o.reportError(m.StreamID, signaling.ParseServerError(m.Definition, m.StreamID))

	case *signaling.Unknown:
		o.log.Debug().Str("command", m.Command).Str("stream_id", m.StreamID).Msg("ignoring unknown command")
	}
}

// mediaSession looks up a session that must have a media connection.
func (o *Orchestrator) mediaSession(id, command string) (*session.Session, bool) {
	s, ok := o.registry.Get(id)
	if !ok {
		o.log.Warn().Str("stream_id", id).Str("command", command).Msg("no session for message")
		return nil, false
	}
	if s.Media == nil {
		o.log.Warn().Str("stream_id", id).Str("command", command).Msg("session has no media connection")
		return nil, false
	}
	return s, true
}

func (o *Orchestrator) takeConfiguration(m *signaling.TakeConfiguration) {
	s, ok := o.mediaSession(m.StreamID, m.Verb())
	if !ok {
		return
	}
	typ := media.SDPType(m.Type)
	if err := s.Media.SetRemoteDescription(typ, m.SDP); err != nil {
		o.reportError(s.ID, &MediaError{StreamID: s.ID, Op: "setRemoteDescription", Err: err})
		return
	}
	if typ != media.SDPOffer {
		return
	}
	if err := s.Media.CreateAnswer(); err != nil {
		o.reportError(s.ID, &MediaError{StreamID: s.ID, Op: "createAnswer", Err: err})
	}
}

func (o *Orchestrator) notification(m *signaling.Notification) {
	switch m.Definition {
	case signaling.DefinitionJoined:
		if o.handler.OnJoined != nil {
			o.handler.OnJoined(m.StreamID)
		}
	case signaling.DefinitionPlayStarted:
		if o.handler.OnPlayStarted != nil {
			o.handler.OnPlayStarted(m.StreamID)
		}
	case signaling.DefinitionPlayFinished:
		o.stats.unregister(m.StreamID)
		for _, s := range o.registry.ByRoom(m.StreamID) {
			o.registry.ClearRoster(s.ID)
		}
		o.registry.ClearRoster(m.StreamID)
		if o.handler.OnPlayFinished != nil {
			o.handler.OnPlayFinished(m.StreamID)
		}
	case signaling.DefinitionPublishStarted:
		if o.handler.OnPublishStarted != nil {
			o.handler.OnPublishStarted(m.StreamID)
		}
	case signaling.DefinitionPublishFinished:
		o.stats.unregister(m.StreamID)
		if o.handler.OnPublishFinished != nil {
			o.handler.OnPublishFinished(m.StreamID)
		}
	case signaling.DefinitionJoinedRoom:
		o.joinedRoom(m)
	case signaling.DefinitionBroadcastObject:
		if o.handler.OnBroadcastObject != nil {
			o.handler.OnBroadcastObject(m.StreamID, m.Broadcast)
		}
	}

	if o.handler.OnNotification != nil {
		o.handler.OnNotification(m.StreamID, m.Definition, m.Raw)
	}
}

// joinedRoom binds the server-assigned stream id to the pending conference
// session and seeds its roster.
func (o *Orchestrator) joinedRoom(m *signaling.Notification) {
	s, ok := o.conferenceSession(m.Room)
	if !ok {
		o.log.Warn().Str("stream_id", m.StreamID).Str("room", m.Room).Msg("joinedRoom without a conference session")
		return
	}
	if s.ID != m.StreamID {
		_, displaced, _ := o.registry.Rekey(s.ID, m.StreamID)
		if displaced != nil {
			o.log.Warn().Str("stream_id", m.StreamID).Str("role", displaced.Role.String()).Msg("assigned id replaced a session")
			o.teardownMedia(displaced)
		}
	}
	if s.Media == nil {
		o.registry.SetConnectivity(s.ID, media.StateConnected)
	}
	o.registry.ReplaceRoster(s.ID, m.Streams)

	if o.handler.OnJoinedRoom != nil {
		o.handler.OnJoinedRoom(s.RoomID, s.ID, m.Streams)
	}
	if len(m.Streams) > 0 && o.handler.OnStreamsJoined != nil {
		o.handler.OnStreamsJoined(s.RoomID, m.Streams)
	}
	o.sweeper.Arm()
}

// conferenceSession prefers a session of the named room, then the oldest
// conference session.
func (o *Orchestrator) conferenceSession(roomID string) (*session.Session, bool) {
	for _, s := range o.registry.ByRoom(roomID) {
		if s.Role == session.RoleConference {
			return s, true
		}
	}
	return o.registry.Primary(session.RoleConference)
}

var rosterPrecedence = []session.Role{session.RoleConference, session.RolePublish, session.RolePlay, session.RoleP2PJoin}

// rosterSession is the session holding the roster of roomID.
func (o *Orchestrator) rosterSession(roomID string) (*session.Session, bool) {
	if roomID == "" {
		if s, ok := o.registry.Primary(session.RoleConference); ok {
			return s, true
		}
		for _, s := range o.registry.AllByRole(session.RolePublish) {
			if s.RoomID != "" {
				return s, true
			}
		}
		return nil, false
	}

	members := o.registry.ByRoom(roomID)
	for _, role := range rosterPrecedence {
		for _, s := range members {
			if s.Role == role {
				return s, true
			}
		}
	}
	// listen-only clients play the main track, keyed by the room id
	return o.registry.Get(roomID)
}

func (o *Orchestrator) roomInformation(roomID string, streams []string) {
	s, ok := o.rosterSession(roomID)
	if !ok {
		o.log.Warn().Str("room", roomID).Msg("roomInformation for unknown room")
		return
	}
	joined, left, _ := o.registry.ReplaceRoster(s.ID, streams)
	room := roomID
	if room == "" {
		room = s.RoomID
	}
	if len(joined) > 0 && o.handler.OnStreamsJoined != nil {
		o.handler.OnStreamsJoined(room, joined)
	}
	if len(left) > 0 && o.handler.OnStreamsLeft != nil {
		o.handler.OnStreamsLeft(room, left)
	}
}
