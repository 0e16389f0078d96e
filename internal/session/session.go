// Package session holds the authoritative state of every media session
// multiplexed over one signaling connection.
package session

import (
	"github.com/junsooki/streamlink/internal/media"
	"github.com/junsooki/streamlink/internal/signaling"
)

// Role is the kind of media exchange a session performs.
type Role int

const (
	RolePublish Role = iota
	RolePlay
	RoleP2PJoin
	RoleConference
)

// Roles lists every role in sweep order.
var Roles = []Role{RolePublish, RolePlay, RoleP2PJoin, RoleConference}

func (r Role) String() string {
	switch r {
	case RolePublish:
		return "publish"
	case RolePlay:
		return "play"
	case RoleP2PJoin:
		return "join"
	case RoleConference:
		return "conference"
	default:
		return "unknown"
	}
}

// Verb is the handshake command for the role.
func (r Role) Verb() string {
	switch r {
	case RolePublish:
		return signaling.CommandPublish
	case RolePlay:
		return signaling.CommandPlay
	case RoleP2PJoin:
		return signaling.CommandJoin
	default:
		return signaling.CommandJoinRoom
	}
}

// LeaveVerb is the command that ends a session of this role.
func (r Role) LeaveVerb() string {
	switch r {
	case RoleP2PJoin:
		return signaling.CommandLeave
	case RoleConference:
		return signaling.CommandLeaveFromRoom
	default:
		return signaling.CommandStop
	}
}

// MediaRole is the direction the media engine should negotiate.
func (r Role) MediaRole() media.Role {
	switch r {
	case RolePlay:
		return media.RoleReceive
	case RoleP2PJoin:
		return media.RoleSendReceive
	default:
		return media.RoleSend
	}
}

// Terminal reports whether state means the session needs recovery. New
// counts only for play and publish: such a session never truly connected.
func (r Role) Terminal(state media.ConnectivityState) bool {
	switch state {
	case media.StateClosed, media.StateDisconnected, media.StateFailed:
		return true
	case media.StateNew:
		return r == RolePublish || r == RolePlay
	default:
		return false
	}
}

// Session is one logical media exchange identified by a stream id.
type Session struct {
	ID    string
	Role  Role
	Token string
	// RoomID is the conference room, which doubles as the main track id.
	RoomID string
	State  media.ConnectivityState
	// Media is owned by the media engine; the registry never calls it.
	Media media.Connection

	wasConnected bool
	roster       map[string]struct{}
}

// Roster returns the peer stream ids currently known in the session's room.
func (s *Session) Roster() []string {
	out := make([]string, 0, len(s.roster))
	for id := range s.roster {
		out = append(out, id)
	}
	return out
}

// InRoster reports whether id is in the room roster.
func (s *Session) InRoster(id string) bool {
	_, ok := s.roster[id]
	return ok
}
