// Package orchestrator multiplexes publish, play, peer-to-peer and
// conference sessions over one signaling connection.
//
// All state lives on a single goroutine fed by an ops queue. Public methods,
// signaling callbacks, media engine events and timers only enqueue closures,
// so no session state is ever touched concurrently. A nil error from a
// public method means the call was accepted, not that it completed; a full
// queue yields ErrQueueFull and a closed orchestrator ErrClosed.
package orchestrator

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gammazero/deque"
	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"

	"github.com/junsooki/streamlink/internal/media"
	"github.com/junsooki/streamlink/internal/metrics"
	"github.com/junsooki/streamlink/internal/session"
	"github.com/junsooki/streamlink/internal/signaling"
)

const (
	DefaultSweepDelay          = 3 * time.Second
	DefaultHandshakeCheckDelay = 5 * time.Second
	DefaultPingInterval        = 10 * time.Second
	DefaultQueueSize           = 256
	DefaultTeardownWorkers     = 2
)

// User describes the local participant in stream metadata.
type User struct {
	ID             int
	Name           string
	Role           string
	ProfilePicture string
}

type Options struct {
	Video       bool
	Audio       bool
	DataChannel bool
	User        User
	// DisableTrackID is sent as "!id" in play handshakes so the server
	// does not deliver that track of the main track.
	DisableTrackID string

	SweepDelay          time.Duration
	HandshakeCheckDelay time.Duration
	// PingInterval of zero or less disables keepalive pings.
	PingInterval    time.Duration
	QueueSize       int
	TeardownWorkers int

	Clock   clock.Clock
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

func (o *Options) applyDefaults() {
	if o.SweepDelay <= 0 {
		o.SweepDelay = DefaultSweepDelay
	}
	if o.HandshakeCheckDelay <= 0 {
		o.HandshakeCheckDelay = DefaultHandshakeCheckDelay
	}
	if o.QueueSize <= 0 {
		o.QueueSize = DefaultQueueSize
	}
	if o.TeardownWorkers <= 0 {
		o.TeardownWorkers = DefaultTeardownWorkers
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
}

// SessionInfo is a snapshot of one session.
type SessionInfo struct {
	ID     string
	Role   session.Role
	RoomID string
	State  media.ConnectivityState
	Roster []string
}

type Orchestrator struct {
	conn    signaling.Conn
	engine  media.Engine
	handler Handler
	opts    Options
	log     zerolog.Logger
	clock   clock.Clock
	metrics *metrics.Metrics

	queue    *opsQueue
	teardown *workerpool.WorkerPool

	closeOnce sync.Once

	// owned by the queue goroutine
	registry  *session.Registry
	pending   deque.Deque[signaling.Outbound]
	connected bool
	closed    bool
	sweeper   *sweeper
	keepalive *ticker
	stats     *statsPoller
	micMuted  bool
	cameraOff bool
}

// New wires the orchestrator to conn and engine. The signaling connection
// is opened lazily by the first outbound message.
func New(conn signaling.Conn, engine media.Engine, handler Handler, opts Options) *Orchestrator {
	opts.applyDefaults()
	log := opts.Logger.With().Str("module", "orchestrator").Logger()

	o := &Orchestrator{
		conn:     conn,
		engine:   engine,
		handler:  handler,
		opts:     opts,
		log:      log,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		queue:    newOpsQueue(log, opts.QueueSize),
		teardown: workerpool.New(opts.TeardownWorkers),
	}
	o.sweeper = newSweeper(o, opts.SweepDelay)
	o.registry = session.NewRegistry(o.sweeper, opts.Logger)
	o.stats = newStatsPoller(o)
	o.queue.start()

	// connection events wait for room so connected stays in step with the socket
	conn.SetListener(signaling.Listener{
		OnConnected: func() {
			o.enqueueWait(o.handleConnected)
		},
		OnMessage: func(data []byte) {
			o.enqueueWait(func() { o.handleMessage(data) })
		},
		OnDisconnected: func(reason error) {
			o.enqueueWait(func() { o.handleDisconnected(reason) })
		},
	})
	return o
}

// enqueue schedules op on the orchestrator goroutine without blocking. Ops
// are skipped once the orchestrator is closed.
func (o *Orchestrator) enqueue(op func()) error {
	return o.queue.enqueue(o.wrap(op))
}

// enqueueWait is enqueue for timer and connection goroutines, whose ops
// must not be lost. It blocks while the queue is full.
func (o *Orchestrator) enqueueWait(op func()) error {
	return o.queue.enqueueWait(o.wrap(op))
}

func (o *Orchestrator) wrap(op func()) func() {
	return func() {
		if o.closed {
			return
		}
		op()
		o.refreshGauges()
	}
}

// do runs op on the orchestrator goroutine and waits for it. It returns
// false once the queue is stopped.
func (o *Orchestrator) do(op func()) bool {
	done := make(chan struct{})
	if err := o.queue.enqueueWait(func() {
		defer close(done)
		op()
	}); err != nil {
		return false
	}
	<-done
	return true
}

// Sessions returns a snapshot of every session in creation order.
func (o *Orchestrator) Sessions() []SessionInfo {
	var out []SessionInfo
	o.do(func() {
		for _, s := range o.registry.All() {
			out = append(out, SessionInfo{
				ID:     s.ID,
				Role:   s.Role,
				RoomID: s.RoomID,
				State:  s.State,
				Roster: s.Roster(),
			})
		}
	})
	return out
}

// Connected reports whether the signaling connection is up.
func (o *Orchestrator) Connected() bool {
	var connected bool
	o.do(func() { connected = o.connected })
	return connected
}

// Close tears down every session and the signaling connection. Later calls
// are no-ops.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.do(func() {
			o.closed = true
			o.sweeper.stop()
			o.stopKeepalive()
			o.stats.stop()
			for _, s := range o.registry.Clear() {
				o.teardownMedia(s)
			}
			o.pending.Clear()
			o.connected = false
			o.refreshGauges()
		})
		o.conn.Close()
		o.queue.stop()
		o.teardown.StopWait()
		o.log.Info().Msg("closed")
	})
}

func (o *Orchestrator) handleConnected() {
	o.connected = true
	o.log.Info().Int("pending", o.pending.Len()).Msg("signaling connected")
	o.flush()
	o.startKeepalive()
	if o.handler.OnConnected != nil {
		o.handler.OnConnected()
	}
}

func (o *Orchestrator) handleDisconnected(reason error) {
	o.connected = false
	dropped := o.pending.Len()
	o.pending.Clear()
	o.stopKeepalive()
	o.log.Warn().Err(reason).Int("dropped", dropped).Msg("signaling disconnected")

	if o.handler.OnDisconnected != nil {
		o.handler.OnDisconnected(reason)
	}

	// sessions without media only live on the server side of the socket
	for _, s := range o.registry.All() {
		if s.Media == nil {
			o.registry.SetConnectivity(s.ID, media.StateDisconnected)
		}
	}
	o.sweeper.Arm()
}

func (o *Orchestrator) handleMessage(data []byte) {
	msg, err := signaling.Decode(data)
	if err != nil {
		o.metrics.Malformed()
		o.log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping malformed message")
		return
	}
	o.metrics.Received(msg.Verb())
	o.dispatch(msg)
}

// ensureMedia opens the engine connection for s unless it has one. Room-only
// conference sessions carry no media.
func (o *Orchestrator) ensureMedia(s *session.Session) bool {
	if s.Media != nil {
		return true
	}
	if s.Role == session.RoleConference {
		return false
	}
	conn, err := o.engine.Open(s.ID, s.Role.MediaRole(), &sessionEvents{o: o, s: s})
	if err != nil {
		o.reportError(s.ID, &MediaError{StreamID: s.ID, Op: "open", Err: err})
		return false
	}
	s.Media = conn
	// a session upgraded from room-only membership must not inherit its state
	o.registry.ResetConnectivity(s.ID)
	return true
}

// teardownMedia detaches the connection and closes it off the queue, since
// engine Close may block.
func (o *Orchestrator) teardownMedia(s *session.Session) {
	if s == nil || s.Media == nil {
		return
	}
	conn := s.Media
	id := s.ID
	s.Media = nil
	o.teardown.Submit(func() {
		conn.Close()
		o.log.Debug().Str("stream_id", id).Msg("media closed")
	})
}

func (o *Orchestrator) removeSession(id string) (*session.Session, bool) {
	s, ok := o.registry.Remove(id)
	if ok {
		o.teardownMedia(s)
	}
	return s, ok
}

func (o *Orchestrator) reportError(streamID string, err error) {
	o.log.Error().Err(err).Str("stream_id", streamID).Msg("session error")
	if o.handler.OnError != nil {
		o.handler.OnError(streamID, err)
	}
}

func (o *Orchestrator) refreshGauges() {
	if o.metrics == nil {
		return
	}
	for role, n := range o.registry.CountByRole() {
		o.metrics.SetSessions(role.String(), n)
	}
}
