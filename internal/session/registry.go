package session

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/junsooki/streamlink/internal/media"
)

// Armer is notified when a session enters a state that may need recovery.
type Armer interface {
	Arm()
}

// Role precedence for lookups that need "the" session of this client.
var (
	// PublisherRoles finds the session local media is sent on.
	PublisherRoles = []Role{RolePublish, RoleConference, RoleP2PJoin}
	// DefaultRoles finds the session an id-less call refers to.
	DefaultRoles = []Role{RolePublish, RolePlay, RoleP2PJoin, RoleConference}
)

// Registry maps stream ids to sessions. It is not safe for concurrent use;
// the orchestrator mutates it only from its serialized queue.
type Registry struct {
	sessions map[string]*Session
	order    map[string]uint64
	seq      uint64
	armer    Armer
	log      zerolog.Logger
}

func NewRegistry(armer Armer, logger zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		order:    make(map[string]uint64),
		armer:    armer,
		log:      logger.With().Str("module", "session.registry").Logger(),
	}
}

// Upsert returns the session for id, creating it if needed. An existing
// session is updated in place: role always, token and room only when given.
func (r *Registry) Upsert(id string, role Role, token, roomID string) (*Session, bool) {
	if s, ok := r.sessions[id]; ok {
		if s.Role != role {
			r.log.Info().Str("stream_id", id).Str("from", s.Role.String()).Str("to", role.String()).Msg("role changed")
		}
		s.Role = role
		if token != "" {
			s.Token = token
		}
		if roomID != "" {
			s.RoomID = roomID
		}
		return s, false
	}

	s := &Session{
		ID:     id,
		Role:   role,
		Token:  token,
		RoomID: roomID,
		State:  media.StateNew,
	}
	r.seq++
	r.sessions[id] = s
	r.order[id] = r.seq
	r.log.Info().Str("stream_id", id).Str("role", role.String()).Msg("created session")
	return s, true
}

func (r *Registry) Get(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Remove deletes the session and hands it back so the caller can tear
// down its media connection.
func (r *Registry) Remove(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	delete(r.sessions, id)
	delete(r.order, id)
	r.log.Info().Str("stream_id", id).Str("role", s.Role.String()).Msg("removed session")
	return s, true
}

// Clear removes every session and returns them in creation order.
func (r *Registry) Clear() []*Session {
	all := r.All()
	r.sessions = make(map[string]*Session)
	r.order = make(map[string]uint64)
	return all
}

// Rekey moves the session stored under oldID to newID. A session already
// stored under newID is replaced and returned as displaced.
func (r *Registry) Rekey(oldID, newID string) (s, displaced *Session, ok bool) {
	s, ok = r.sessions[oldID]
	if !ok {
		return nil, nil, false
	}
	if oldID == newID {
		return s, nil, true
	}
	if other, exists := r.sessions[newID]; exists {
		displaced = other
	}
	seq := r.order[oldID]
	delete(r.sessions, oldID)
	delete(r.order, oldID)
	s.ID = newID
	r.sessions[newID] = s
	r.order[newID] = seq
	r.log.Info().Str("stream_id", newID).Str("previous_id", oldID).Msg("rebound session id")
	return s, displaced, true
}

// SetConnectivity records the engine-reported state. Entering Disconnected,
// Failed or Closed, or falling back to New after having been Connected,
// arms the sweeper. It returns false for unknown ids.
func (r *Registry) SetConnectivity(id string, state media.ConnectivityState) bool {
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	prev := s.State
	s.State = state
	if state == media.StateConnected {
		s.wasConnected = true
	}
	r.log.Debug().Str("stream_id", id).Str("from", prev.String()).Str("to", state.String()).Msg("connectivity changed")

	terminal := state == media.StateDisconnected || state == media.StateFailed || state == media.StateClosed ||
		(state == media.StateNew && s.wasConnected)
	if terminal && r.armer != nil {
		r.armer.Arm()
	}
	return true
}

// ResetConnectivity puts the session back to New, as if it had never
// connected, without arming the sweeper.
func (r *Registry) ResetConnectivity(id string) bool {
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.State = media.StateNew
	s.wasConnected = false
	return true
}

// AllByRole returns sessions of role in creation order.
func (r *Registry) AllByRole(role Role) []*Session {
	var out []*Session
	for _, s := range r.sessions {
		if s.Role == role {
			out = append(out, s)
		}
	}
	r.sortByOrder(out)
	return out
}

// All returns every session in creation order.
func (r *Registry) All() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.sortByOrder(out)
	return out
}

// ByRoom returns the sessions bound to roomID in creation order.
func (r *Registry) ByRoom(roomID string) []*Session {
	var out []*Session
	for _, s := range r.sessions {
		if s.RoomID == roomID && roomID != "" {
			out = append(out, s)
		}
	}
	r.sortByOrder(out)
	return out
}

// Primary returns the oldest session of the first role in precedence that
// has one.
func (r *Registry) Primary(precedence ...Role) (*Session, bool) {
	for _, role := range precedence {
		if all := r.AllByRole(role); len(all) > 0 {
			return all[0], true
		}
	}
	return nil, false
}

// PublisherID is the stream local media is published on, or "".
func (r *Registry) PublisherID() string {
	if s, ok := r.Primary(PublisherRoles...); ok {
		return s.ID
	}
	return ""
}

// DefaultID resolves an empty stream id the way id-less calls expect.
func (r *Registry) DefaultID(id string) string {
	if id != "" {
		return id
	}
	if s, ok := r.Primary(DefaultRoles...); ok {
		return s.ID
	}
	return ""
}

// ReplaceRoster stores next as the session's roster and returns the diff
// against the previous snapshot.
func (r *Registry) ReplaceRoster(id string, next []string) (joined, left []string, ok bool) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil, false
	}
	joined, left = Diff(s.Roster(), next)
	s.roster = toSet(next)
	return joined, left, true
}

// ClearRoster empties the session's roster.
func (r *Registry) ClearRoster(id string) {
	if s, ok := r.sessions[id]; ok {
		s.roster = nil
	}
}

func (r *Registry) Len() int {
	return len(r.sessions)
}

// CountByRole returns the number of sessions per role.
func (r *Registry) CountByRole() map[Role]int {
	counts := make(map[Role]int, len(Roles))
	for _, role := range Roles {
		counts[role] = 0
	}
	for _, s := range r.sessions {
		counts[s.Role]++
	}
	return counts
}

func (r *Registry) sortByOrder(out []*Session) {
	sort.Slice(out, func(i, j int) bool {
		return r.order[out[i].ID] < r.order[out[j].ID]
	})
}
