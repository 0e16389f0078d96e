package orchestrator

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/junsooki/streamlink/internal/session"
)

// sweeper coalesces recovery requests. The first Arm schedules one sweep
// after delay; further arms before it runs are absorbed.
type sweeper struct {
	o         *Orchestrator
	delay     time.Duration
	scheduled bool
	timer     *clock.Timer
}

func newSweeper(o *Orchestrator, delay time.Duration) *sweeper {
	return &sweeper{o: o, delay: delay}
}

// Arm must be called on the orchestrator goroutine.
func (s *sweeper) Arm() {
	if s.scheduled || s.o.closed {
		return
	}
	s.scheduled = true
	s.o.log.Debug().Dur("delay", s.delay).Msg("sweep armed")
	s.timer = s.o.clock.AfterFunc(s.delay, func() {
		// a dropped sweep would leave scheduled set and absorb every later Arm
		s.o.enqueueWait(s.o.sweep)
	})
}

func (s *sweeper) stop() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.scheduled = false
}

// sweep recovers every session whose state is terminal for its role by
// tearing it down and re-issuing the intent that created it.
func (o *Orchestrator) sweep() {
	// cleared first so failures during recovery can schedule the next sweep
	o.sweeper.scheduled = false
	o.metrics.Swept()

	recovered := 0
	for _, role := range session.Roles {
		for _, s := range o.registry.AllByRole(role) {
			if !role.Terminal(s.State) {
				continue
			}
			o.recoverSession(s)
			recovered++
		}
	}
	o.log.Info().Int("recovered", recovered).Int("sessions", o.registry.Len()).Msg("sweep finished")
}

func (o *Orchestrator) recoverSession(s *session.Session) {
	o.log.Info().
		Str("stream_id", s.ID).
		Str("role", s.Role.String()).
		Str("state", s.State.String()).
		Msg("recovering session")

	roster := s.Roster()
	o.removeSession(s.ID)
	o.metrics.Recovered(s.Role.String())

	switch s.Role {
	case session.RolePublish:
		o.publish(s.ID, s.Token, s.RoomID)
	case session.RolePlay:
		o.play(s.ID, s.Token)
	case session.RoleP2PJoin:
		o.join(s.ID)
	case session.RoleConference:
		o.joinRoom(s.RoomID, s.ID)
	}

	// keep the roster so the next roomInformation only reports real changes
	if len(roster) > 0 {
		o.registry.ReplaceRoster(s.ID, roster)
	}
}
