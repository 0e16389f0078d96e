package orchestrator

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/junsooki/streamlink/internal/media"
	"github.com/junsooki/streamlink/internal/metrics"
	"github.com/junsooki/streamlink/internal/signaling"
)

type fakeConn struct {
	mu       sync.Mutex
	listener signaling.Listener
	up       bool
	connects int
	closed   bool
	sent     [][]byte
}

func (c *fakeConn) SetListener(l signaling.Listener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

func (c *fakeConn) Connect() {
	c.mu.Lock()
	c.connects++
	c.mu.Unlock()
}

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.up {
		return signaling.ErrNotConnected
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.up = false
	c.mu.Unlock()
}

func (c *fakeConn) connect() {
	c.mu.Lock()
	c.up = true
	l := c.listener
	c.mu.Unlock()
	l.OnConnected()
}

func (c *fakeConn) drop(err error) {
	c.mu.Lock()
	c.up = false
	l := c.listener
	c.mu.Unlock()
	l.OnDisconnected(err)
}

func (c *fakeConn) deliver(msg string) {
	c.mu.Lock()
	l := c.listener
	c.mu.Unlock()
	l.OnMessage([]byte(msg))
}

func (c *fakeConn) connectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

func (c *fakeConn) messages(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.sent))
	for _, data := range c.sent {
		var m map[string]any
		require.NoError(t, json.Unmarshal(data, &m))
		out = append(out, m)
	}
	return out
}

// commands renders sent messages as "command streamId".
func (c *fakeConn) commands(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, m := range c.messages(t) {
		id, _ := m["streamId"].(string)
		out = append(out, fmt.Sprintf("%s %s", m["command"], id))
	}
	return out
}

type fakeMedia struct {
	id     string
	role   media.Role
	events media.Events

	mu           sync.Mutex
	offers       int
	answers      int
	remote       []media.SDPType
	candidates   []media.Candidate
	data         [][]byte
	closed       bool
	setRemoteErr error
	stats        media.Stats
}

func (m *fakeMedia) CreateOffer() error {
	m.mu.Lock()
	m.offers++
	m.mu.Unlock()
	m.events.LocalDescription(m.id, media.Description{Type: media.SDPOffer, SDP: "offer-sdp"})
	return nil
}

func (m *fakeMedia) SetRemoteDescription(typ media.SDPType, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setRemoteErr != nil {
		return m.setRemoteErr
	}
	m.remote = append(m.remote, typ)
	return nil
}

func (m *fakeMedia) CreateAnswer() error {
	m.mu.Lock()
	m.answers++
	m.mu.Unlock()
	m.events.LocalDescription(m.id, media.Description{Type: media.SDPAnswer, SDP: "answer-sdp"})
	return nil
}

func (m *fakeMedia) AddCandidate(c media.Candidate) error {
	m.mu.Lock()
	m.candidates = append(m.candidates, c)
	m.mu.Unlock()
	return nil
}

func (m *fakeMedia) SendData(data []byte, _ bool) error {
	m.mu.Lock()
	m.data = append(m.data, data)
	m.mu.Unlock()
	return nil
}

func (m *fakeMedia) Stats() (media.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats, nil
}

func (m *fakeMedia) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *fakeMedia) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type fakeEngine struct {
	mu     sync.Mutex
	opened []*fakeMedia
}

func (e *fakeEngine) Open(id string, role media.Role, events media.Events) (media.Connection, error) {
	m := &fakeMedia{id: id, role: role, events: events}
	e.mu.Lock()
	e.opened = append(e.opened, m)
	e.mu.Unlock()
	return m, nil
}

func (e *fakeEngine) openedFor(id string) []*fakeMedia {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*fakeMedia
	for _, m := range e.opened {
		if m.id == id {
			out = append(out, m)
		}
	}
	return out
}

func (e *fakeEngine) last(t *testing.T, id string) *fakeMedia {
	t.Helper()
	all := e.openedFor(id)
	require.NotEmpty(t, all, "no media opened for %s", id)
	return all[len(all)-1]
}

// recorder captures handler callbacks as readable strings.
type recorder struct {
	mu     sync.Mutex
	calls  []string
	errs   []error
	stats  int
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder) statsCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *recorder) handler() Handler {
	return Handler{
		OnConnected:       func() { r.add("connected") },
		OnDisconnected:    func(err error) { r.add("disconnected") },
		OnPublishStarted:  func(id string) { r.add("publishStarted %s", id) },
		OnPublishFinished: func(id string) { r.add("publishFinished %s", id) },
		OnPlayStarted:     func(id string) { r.add("playStarted %s", id) },
		OnPlayFinished:    func(id string) { r.add("playFinished %s", id) },
		OnJoined:          func(id string) { r.add("joined %s", id) },
		OnJoinedRoom: func(room, id string, streams []string) {
			r.add("joinedRoom %s %s %v", room, id, streams)
		},
		OnStreamsJoined: func(room string, streams []string) { r.add("streamsJoined %s %v", room, streams) },
		OnStreamsLeft:   func(room string, streams []string) { r.add("streamsLeft %s %v", room, streams) },
		OnBroadcastObject: func(id string, obj map[string]any) {
			r.add("broadcastObject %s %v", id, obj["name"])
		},
		OnNotification: func(id, definition string, _ map[string]any) {
			r.add("notification %s %s", definition, id)
		},
		OnTrackList: func(id string, tracks []string) { r.add("trackList %s %v", id, tracks) },
		OnStreamInformation: func(id string, info []signaling.StreamInfo) {
			r.add("streamInformation %s %d", id, len(info))
		},
		OnConnectivityChanged: func(id string, state media.ConnectivityState) {
			r.add("connectivity %s %s", id, state)
		},
		OnTrackAdded: func(id string, t media.Track) { r.add("trackAdded %s %s", id, t.ID) },
		OnEvent: func(id, eventType string, _ map[string]any) {
			r.mu.Lock()
			r.events = append(r.events, eventType+" "+id)
			r.mu.Unlock()
		},
		OnData: func(id string, data []byte, binary bool) { r.add("data %s %s %t", id, data, binary) },
		OnStats: func(string, media.Stats) {
			r.mu.Lock()
			r.stats++
			r.mu.Unlock()
		},
		OnError: func(id string, err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

type harness struct {
	t       *testing.T
	o       *Orchestrator
	conn    *fakeConn
	engine  *fakeEngine
	clock   *clock.Mock
	metrics *metrics.Metrics
	rec     *recorder
}

func newHarness(t *testing.T, opts ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		conn:    &fakeConn{},
		engine:  &fakeEngine{},
		clock:   clock.NewMock(),
		metrics: metrics.New(prometheus.NewRegistry()),
		rec:     &recorder{},
	}
	o := Options{
		Video:       true,
		Audio:       true,
		DataChannel: true,
		Clock:       h.clock,
		Logger:      zerolog.Nop(),
		Metrics:     h.metrics,
	}
	for _, fn := range opts {
		fn(&o)
	}
	h.o = New(h.conn, h.engine, h.rec.handler(), o)
	t.Cleanup(h.o.Close)
	return h
}

// sync waits until everything enqueued so far has run.
func (h *harness) sync() {
	require.True(h.t, h.o.do(func() {}))
}

func (h *harness) armed() bool {
	var armed bool
	h.o.do(func() { armed = h.o.sweeper.scheduled })
	return armed
}

func (h *harness) session(id string) (SessionInfo, bool) {
	for _, s := range h.o.Sessions() {
		if s.ID == id {
			return s, true
		}
	}
	return SessionInfo{}, false
}

func (h *harness) connected() {
	h.conn.connect()
	h.sync()
}

// advance moves the mock clock and gives timer goroutines a moment to
// enqueue their work.
func (h *harness) advance(d time.Duration) {
	h.clock.Add(d)
	time.Sleep(5 * time.Millisecond)
	h.sync()
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}
