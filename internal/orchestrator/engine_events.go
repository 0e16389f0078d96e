package orchestrator

import (
	"encoding/json"

	"github.com/junsooki/streamlink/internal/media"
	"github.com/junsooki/streamlink/internal/session"
	"github.com/junsooki/streamlink/internal/signaling"
)

// sessionEvents receives engine callbacks for one session. It is bound to
// the session value, not its id, so late events from a torn down or
// replaced connection are discarded. The session id is read on the queue
// because a room join may rebind it.
type sessionEvents struct {
	o *Orchestrator
	s *session.Session
}

var _ media.Events = (*sessionEvents)(nil)

// run executes op on the queue if the bound session is still live.
func (e *sessionEvents) run(op func(s *session.Session)) {
	e.o.enqueue(func() {
		cur, ok := e.o.registry.Get(e.s.ID)
		if !ok || cur != e.s {
			e.o.log.Debug().Str("stream_id", e.s.ID).Msg("dropping event for stale session")
			return
		}
		op(cur)
	})
}

func (e *sessionEvents) LocalDescription(_ string, desc media.Description) {
	e.run(func(s *session.Session) {
		e.o.send(&signaling.Configuration{
			Command:  signaling.CommandTakeConfiguration,
			StreamID: s.ID,
			Type:     string(desc.Type),
			SDP:      desc.SDP,
			Token:    s.Token,
		})
	})
}

func (e *sessionEvents) LocalCandidate(_ string, c media.Candidate) {
	e.run(func(s *session.Session) {
		e.o.send(&signaling.CandidateMessage{
			Command:   signaling.CommandTakeCandidate,
			Type:      "candidate",
			StreamID:  s.ID,
			Candidate: c.Candidate,
			Label:     c.SDPMLineIndex,
			ID:        c.SDPMid,
		})
	})
}

func (e *sessionEvents) ConnectivityChanged(_ string, state media.ConnectivityState) {
	e.run(func(s *session.Session) {
		e.o.registry.SetConnectivity(s.ID, state)
		if h := e.o.handler.OnConnectivityChanged; h != nil {
			h(s.ID, state)
		}
	})
}

func (e *sessionEvents) TrackAdded(_ string, track media.Track) {
	e.run(func(s *session.Session) {
		if h := e.o.handler.OnTrackAdded; h != nil {
			h(s.ID, track)
		}
	})
}

func (e *sessionEvents) TrackRemoved(_ string, track media.Track) {
	e.run(func(s *session.Session) {
		if h := e.o.handler.OnTrackRemoved; h != nil {
			h(s.ID, track)
		}
	})
}

func (e *sessionEvents) DataReceived(_ string, data []byte, binary bool) {
	e.run(func(s *session.Session) {
		if !binary {
			if eventType, streamID, payload, ok := parseEvent(data); ok {
				if h := e.o.handler.OnEvent; h != nil {
					h(streamID, eventType, payload)
				}
				return
			}
		}
		if h := e.o.handler.OnData; h != nil {
			h(s.ID, data, binary)
		}
	})
}

func (e *sessionEvents) Error(_ string, op string, err error) {
	e.run(func(s *session.Session) {
		e.o.reportError(s.ID, &MediaError{StreamID: s.ID, Op: op, Err: err})
	})
}

// parseEvent recognizes {"eventType": ..., "streamId": ...} text messages.
func parseEvent(data []byte) (eventType, streamID string, payload map[string]any, ok bool) {
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", "", nil, false
	}
	eventType, _ = payload["eventType"].(string)
	streamID, _ = payload["streamId"].(string)
	if eventType == "" || streamID == "" {
		return "", "", nil, false
	}
	return eventType, streamID, payload, true
}
