package orchestrator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/junsooki/streamlink/internal/media"
	"github.com/junsooki/streamlink/internal/session"
	"github.com/junsooki/streamlink/internal/signaling"
)

func TestPublishWhileDisconnected(t *testing.T) {
	h := newHarness(t)

	h.o.Publish("s1", "tok", "")
	h.sync()
	require.Equal(t, 1, h.conn.connectCount())
	require.Empty(t, h.conn.messages(t))

	h.connected()
	msgs := h.conn.messages(t)
	require.Len(t, msgs, 1)
	require.Equal(t, "publish", msgs[0]["command"])
	require.Equal(t, "s1", msgs[0]["streamId"])
	require.Equal(t, "tok", msgs[0]["token"])
	require.Equal(t, true, msgs[0]["video"])
	require.Equal(t, true, msgs[0]["audio"])
	require.JSONEq(t, `{"isMicMuted":false,"isCameraOff":false}`, msgs[0]["metaData"].(string))

	opened := h.engine.openedFor("s1")
	require.Len(t, opened, 1)
	require.Equal(t, media.RoleSend, opened[0].role)
	require.Contains(t, h.rec.snapshot(), "connected")
}

func TestUpsertIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.connected()

	h.o.Publish("s1", "tok", "")
	h.o.Publish("s1", "", "")
	h.sync()

	require.Len(t, h.o.Sessions(), 1)
	require.Len(t, h.engine.openedFor("s1"), 1)
	require.Equal(t, []string{"publish s1", "publish s1"}, h.conn.commands(t))
	// token kept from the first call
	require.Equal(t, "tok", h.conn.messages(t)[1]["token"])
}

func TestFlushInIssueOrderExactlyOnce(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.DisableTrackID = "t9" })

	h.o.Publish("s1", "", "")
	h.o.Play("s2", "")
	h.o.GetStreamInfo("s2")
	h.o.EnableTrack("room1", "t1", false)
	h.sync()
	require.Empty(t, h.conn.messages(t))

	h.connected()
	want := []string{"publish s1", "play s2", "getStreamInfo s2", "enableTrack room1"}
	require.Equal(t, want, h.conn.commands(t))
	require.Equal(t, []any{"!t9"}, h.conn.messages(t)[1]["trackList"])

	// a second connected event has nothing left to flush
	h.connected()
	require.Equal(t, want, h.conn.commands(t))
	require.Equal(t, float64(4), testutil.ToFloat64(h.metrics.MessagesQueued))
	require.Equal(t, float64(4), testutil.ToFloat64(h.metrics.MessagesSent))
}

func TestDisconnectDropsPendingAndRecovers(t *testing.T) {
	h := newHarness(t)

	h.o.Publish("s1", "", "")
	h.sync()
	h.conn.drop(errors.New("refused"))
	h.sync()
	require.Contains(t, h.rec.snapshot(), "disconnected")
	require.True(t, h.armed())

	h.connected()
	require.Empty(t, h.conn.messages(t), "stale intents are not replayed")

	// the session never connected, so the sweep re-issues it
	h.advance(DefaultSweepDelay)
	eventually(t, func() bool { return len(h.conn.commands(t)) == 1 }, "publish re-issued")
	require.Equal(t, []string{"publish s1"}, h.conn.commands(t))
	require.Len(t, h.engine.openedFor("s1"), 2)
}

func TestSweepDebouncesTransitions(t *testing.T) {
	h := newHarness(t)
	h.connected()

	h.o.Play("a", "")
	h.o.Play("b", "")
	h.sync()
	ma, mb := h.engine.last(t, "a"), h.engine.last(t, "b")
	ma.events.ConnectivityChanged("a", media.StateConnected)
	mb.events.ConnectivityChanged("b", media.StateConnected)
	h.sync()
	require.False(t, h.armed())

	ma.events.ConnectivityChanged("a", media.StateDisconnected)
	h.sync()
	require.True(t, h.armed())

	h.advance(100 * time.Millisecond)
	mb.events.ConnectivityChanged("b", media.StateDisconnected)
	h.sync()
	require.Zero(t, testutil.ToFloat64(h.metrics.Sweeps))

	h.advance(DefaultSweepDelay - 100*time.Millisecond)
	eventually(t, func() bool { return testutil.ToFloat64(h.metrics.Sweeps) == 1 }, "one sweep")
	h.sync()

	require.Len(t, h.engine.openedFor("a"), 2)
	require.Len(t, h.engine.openedFor("b"), 2)
	require.Equal(t, float64(2), testutil.ToFloat64(h.metrics.Recoveries.WithLabelValues("play")))
	require.Equal(t, []string{"play a", "play b", "play a", "play b"}, h.conn.commands(t))
	eventually(t, func() bool { return ma.isClosed() && mb.isClosed() }, "old media torn down")

	// late events from the torn down connection are ignored
	ma.events.ConnectivityChanged("a", media.StateFailed)
	h.sync()
	require.False(t, h.armed())
	require.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Sweeps))
}

func TestSweepSkipsHealthySessions(t *testing.T) {
	h := newHarness(t)
	h.connected()

	h.o.Publish("pub", "", "")
	h.o.Join("p2p")
	h.o.Play("bad", "")
	h.sync()
	h.engine.last(t, "pub").events.ConnectivityChanged("pub", media.StateConnected)
	h.engine.last(t, "bad").events.ConnectivityChanged("bad", media.StateFailed)
	h.sync()

	h.advance(DefaultSweepDelay)
	eventually(t, func() bool { return len(h.engine.openedFor("bad")) == 2 }, "failed play recovered")
	require.Len(t, h.engine.openedFor("pub"), 1)
	// a peer-to-peer session still in New is left alone
	require.Len(t, h.engine.openedFor("p2p"), 1)
	require.Equal(t, media.RoleSendReceive, h.engine.last(t, "p2p").role)
}

func TestHandshakeCheckRetriesUnansweredPublish(t *testing.T) {
	h := newHarness(t)
	h.connected()

	h.o.Publish("s1", "", "")
	h.sync()
	require.False(t, h.armed())

	h.advance(DefaultHandshakeCheckDelay)
	eventually(t, h.armed, "handshake check arms the sweep")

	h.advance(DefaultSweepDelay)
	eventually(t, func() bool { return len(h.conn.commands(t)) == 2 }, "publish re-sent")
	require.Equal(t, []string{"publish s1", "publish s1"}, h.conn.commands(t))
}

func TestStopCancelsRecovery(t *testing.T) {
	h := newHarness(t)
	h.connected()

	h.o.Play("a", "")
	h.sync()
	m := h.engine.last(t, "a")
	m.events.ConnectivityChanged("a", media.StateFailed)
	h.sync()
	require.True(t, h.armed())

	h.o.Stop("a")
	h.sync()
	require.Equal(t, []string{"play a", "stop a"}, h.conn.commands(t))
	eventually(t, m.isClosed, "media closed")

	h.advance(DefaultSweepDelay)
	eventually(t, func() bool { return testutil.ToFloat64(h.metrics.Sweeps) == 1 }, "sweep ran")
	h.sync()
	require.Len(t, h.engine.openedFor("a"), 1)
	require.Empty(t, h.o.Sessions())
}

func TestStopWhileDisconnectedPurgesPending(t *testing.T) {
	h := newHarness(t)
	h.o.Publish("s1", "", "")
	h.o.Play("s2", "")
	h.o.Stop("s1")
	h.sync()

	h.connected()
	require.Equal(t, []string{"play s2"}, h.conn.commands(t))
}

func TestLeaveAndStopVerbs(t *testing.T) {
	h := newHarness(t)
	h.connected()

	h.o.Join("p1")
	h.o.Publish("s1", "", "")
	h.sync()

	// stop on a peer-to-peer session sends leave
	h.o.Stop("p1")
	h.o.Leave("s1")
	h.sync()
	require.Equal(t, []string{"join p1", "publish s1", "leave p1", "leave s1"}, h.conn.commands(t))
	require.Empty(t, h.o.Sessions())
}

func TestStopDefaultsToPrimarySession(t *testing.T) {
	h := newHarness(t)
	h.connected()
	h.o.Play("p1", "")
	h.o.Publish("s1", "", "")
	h.o.Stop("")
	h.sync()
	require.Equal(t, "stop s1", h.conn.commands(t)[2])
	_, ok := h.session("p1")
	require.True(t, ok)
}

func TestStartCreatesOffer(t *testing.T) {
	h := newHarness(t)
	h.connected()
	h.o.Publish("s1", "tok", "")
	h.sync()

	h.conn.deliver(`{"command":"start","streamId":"s1"}`)
	h.sync()
	h.sync()

	m := h.engine.last(t, "s1")
	require.Equal(t, 1, m.offers)
	msgs := h.conn.messages(t)
	require.Len(t, msgs, 2)
	require.Equal(t, map[string]any{
		"command":  "takeConfiguration",
		"streamId": "s1",
		"type":     "offer",
		"sdp":      "offer-sdp",
		"token":    "tok",
	}, msgs[1])
}

func TestTakeConfigurationOfferIsAnswered(t *testing.T) {
	h := newHarness(t)
	h.connected()
	h.o.Play("s1", "")
	h.sync()

	h.conn.deliver(`{"command":"takeConfiguration","streamId":"s1","type":"offer","sdp":"v=0"}`)
	h.sync()
	h.sync()

	m := h.engine.last(t, "s1")
	require.Equal(t, []media.SDPType{media.SDPOffer}, m.remote)
	require.Equal(t, 1, m.answers)
	last := h.conn.messages(t)[1]
	require.Equal(t, "takeConfiguration", last["command"])
	require.Equal(t, "answer", last["type"])
	require.Equal(t, "answer-sdp", last["sdp"])
	require.NotContains(t, last, "token")

	// an answer is applied without creating another
	h.conn.deliver(`{"command":"takeConfiguration","streamId":"s1","type":"answer","sdp":"v=0"}`)
	h.sync()
	require.Equal(t, 1, m.answers)
	require.Len(t, m.remote, 2)
}

func TestCandidates(t *testing.T) {
	h := newHarness(t)
	h.connected()
	h.o.Play("s1", "")
	h.sync()
	m := h.engine.last(t, "s1")

	h.conn.deliver(`{"command":"takeCandidate","streamId":"s1","candidate":"cand-1","label":1,"id":"audio"}`)
	h.sync()
	require.Equal(t, []media.Candidate{{Candidate: "cand-1", SDPMid: "audio", SDPMLineIndex: 1}}, m.candidates)

	m.events.LocalCandidate("s1", media.Candidate{Candidate: "local-1", SDPMid: "0", SDPMLineIndex: 0})
	h.sync()
	require.Equal(t, map[string]any{
		"command":   "takeCandidate",
		"type":      "candidate",
		"streamId":  "s1",
		"candidate": "local-1",
		"label":     float64(0),
		"id":        "0",
	}, h.conn.messages(t)[1])
}

func TestMediaErrorReported(t *testing.T) {
	h := newHarness(t)
	h.connected()
	h.o.Play("s1", "")
	h.sync()
	boom := errors.New("bad sdp")
	m := h.engine.last(t, "s1")
	m.mu.Lock()
	m.setRemoteErr = boom
	m.mu.Unlock()

	h.conn.deliver(`{"command":"takeConfiguration","streamId":"s1","type":"offer","sdp":"v=0"}`)
	h.sync()

	errs := h.rec.errors()
	require.Len(t, errs, 1)
	var me *MediaError
	require.ErrorAs(t, errs[0], &me)
	require.Equal(t, "setRemoteDescription", me.Op)
	require.Equal(t, "s1", me.StreamID)
	require.ErrorIs(t, errs[0], boom)
	require.Zero(t, m.answers)
}

func TestServerErrorMapped(t *testing.T) {
	h := newHarness(t)
	h.conn.deliver(`{"command":"error","definition":"unauthorized_access","streamId":"s1"}`)
	h.conn.deliver(`{"command":"error","definition":"custom:room full"}`)
	h.sync()

	errs := h.rec.errors()
	require.Len(t, errs, 2)
	require.ErrorIs(t, errs[0], &signaling.ServerError{Code: signaling.CodeUnauthorizedAccess})
	var se *signaling.ServerError
	require.ErrorAs(t, errs[1], &se)
	require.Equal(t, signaling.CodeCustom, se.Code)
	require.Equal(t, "room full", se.Text)
}

func TestMalformedMessagesDropped(t *testing.T) {
	h := newHarness(t)
	h.conn.deliver(`garbage`)
	h.conn.deliver(`{"command":"start"}`)
	h.conn.deliver(`{"command":"notification","definition":"play_started","streamId":"s1"}`)
	h.sync()

	require.Equal(t, float64(2), testutil.ToFloat64(h.metrics.MessagesMalformed))
	require.Empty(t, h.rec.errors())
	require.Contains(t, h.rec.snapshot(), "playStarted s1")
}

func TestMessagesForUnknownSessionsIgnored(t *testing.T) {
	h := newHarness(t)
	h.conn.deliver(`{"command":"start","streamId":"nope"}`)
	h.conn.deliver(`{"command":"takeCandidate","streamId":"nope","candidate":"c","label":0,"id":"0"}`)
	h.conn.deliver(`{"command":"roomInformation","room":"r9","streams":["a"]}`)
	h.conn.deliver(`{"command":"somethingNew","streamId":"s1"}`)
	h.sync()
	require.Empty(t, h.rec.errors())
	require.Empty(t, h.engine.opened)
}

func TestNotifications(t *testing.T) {
	h := newHarness(t)
	for _, msg := range []string{
		`{"command":"notification","definition":"publish_started","streamId":"s1"}`,
		`{"command":"notification","definition":"publish_finished","streamId":"s1"}`,
		`{"command":"notification","definition":"play_started","streamId":"s2"}`,
		`{"command":"notification","definition":"play_finished","streamId":"s2"}`,
		`{"command":"notification","definition":"joined","streamId":"p1"}`,
		`{"command":"notification","definition":"broadcastObject","streamId":"s1","broadcast":"{\"name\":\"live\"}"}`,
		`{"command":"notification","definition":"resolutionChangeInfo","streamId":"s2","streamHeight":360}`,
		`{"command":"trackList","streamId":"room1","trackList":["a","b"]}`,
		`{"command":"streamInformation","streamId":"s2","streamInfo":[{"streamHeight":720},{"streamHeight":360}]}`,
	} {
		h.conn.deliver(msg)
	}
	h.sync()

	calls := h.rec.snapshot()
	for _, want := range []string{
		"publishStarted s1",
		"publishFinished s1",
		"playStarted s2",
		"playFinished s2",
		"joined p1",
		"broadcastObject s1 live",
		"notification resolutionChangeInfo s2",
		"trackList room1 [a b]",
		"streamInformation s2 2",
	} {
		require.Contains(t, calls, want)
	}
	n := 0
	for _, c := range calls {
		if strings.HasPrefix(c, "notification ") {
			n++
		}
	}
	require.Equal(t, 7, n)
}

func TestConferenceRoomLifecycle(t *testing.T) {
	h := newHarness(t)
	h.connected()

	h.o.JoinRoom("room1", "")
	h.sync()
	msgs := h.conn.messages(t)
	require.Equal(t, map[string]any{
		"command":  "joinRoom",
		"roomId":   "room1",
		"mode":     "multitrack",
		"streamId": "",
	}, msgs[0])
	require.Empty(t, h.engine.opened, "room membership has no media")

	h.conn.deliver(`{"command":"notification","definition":"joinedRoom","streamId":"srv1","room":"room1","streams":["a"]}`)
	h.sync()
	require.Contains(t, h.rec.snapshot(), "joinedRoom room1 srv1 [a]")
	require.Contains(t, h.rec.snapshot(), "streamsJoined room1 [a]")

	s, ok := h.session("srv1")
	require.True(t, ok)
	require.Equal(t, session.RoleConference, s.Role)
	require.Equal(t, "room1", s.RoomID)
	require.Equal(t, []string{"a"}, s.Roster)
	_, ok = h.session("")
	require.False(t, ok)

	h.conn.deliver(`{"command":"roomInformation","room":"room1","streams":["a","b"]}`)
	h.sync()
	calls := h.rec.snapshot()
	require.Equal(t, "streamsJoined room1 [b]", calls[len(calls)-1])
	for _, c := range calls {
		require.NotContains(t, c, "streamsLeft")
	}

	h.conn.deliver(`{"command":"roomInformation","room":"room1","streams":["b"]}`)
	h.sync()
	calls = h.rec.snapshot()
	require.Equal(t, "streamsLeft room1 [a]", calls[len(calls)-1])

	// an unchanged snapshot fires nothing
	h.conn.deliver(`{"command":"roomInformation","room":"room1","streams":["b"]}`)
	h.sync()
	require.Len(t, h.rec.snapshot(), len(calls))

	// publishing into the room upgrades the same session
	h.o.Publish("srv1", "tok", "room1")
	h.sync()
	require.Len(t, h.o.Sessions(), 1)
	s, _ = h.session("srv1")
	require.Equal(t, session.RolePublish, s.Role)
	require.Equal(t, []string{"b"}, s.Roster)
	last := h.conn.messages(t)[1]
	require.Equal(t, "publish", last["command"])
	require.Equal(t, "room1", last["mainTrack"])

	h.o.LeaveFromRoom("room1")
	h.sync()
	last = h.conn.messages(t)[2]
	require.Equal(t, map[string]any{"command": "leaveFromRoom", "roomId": "room1", "streamId": "srv1"}, last)
	require.Empty(t, h.o.Sessions())
	eventually(t, h.engine.last(t, "srv1").isClosed, "publisher media closed")
}

func TestConferencePublishStartsFresh(t *testing.T) {
	h := newHarness(t)
	h.connected()

	h.o.JoinRoom("room1", "")
	h.sync()
	h.conn.deliver(`{"command":"notification","definition":"joinedRoom","streamId":"srv1","room":"room1","streams":[]}`)
	h.sync()

	// the post-join sweep leaves the connected membership alone
	h.advance(DefaultSweepDelay)
	eventually(t, func() bool { return testutil.ToFloat64(h.metrics.Sweeps) == 1 }, "post-join sweep")
	h.sync()

	h.o.Publish("srv1", "", "room1")
	h.sync()
	s, _ := h.session("srv1")
	require.Equal(t, media.StateNew, s.State)

	// the publisher never connects, so the handshake check gets it retried
	h.advance(DefaultHandshakeCheckDelay)
	eventually(t, h.armed, "handshake check arms the sweep")
	h.advance(DefaultSweepDelay)
	eventually(t, func() bool { return len(h.engine.openedFor("srv1")) == 2 }, "publish recovered")
	h.sync()
	require.Equal(t, []string{"joinRoom ", "publish srv1", "publish srv1"}, h.conn.commands(t))
}

func TestRoomInformationForListenOnlyPlayer(t *testing.T) {
	h := newHarness(t)
	h.connected()
	h.o.Play("room1", "")
	h.sync()

	h.conn.deliver(`{"command":"roomInformation","room":"room1","streams":["a"]}`)
	h.sync()
	require.Contains(t, h.rec.snapshot(), "streamsJoined room1 [a]")

	h.conn.deliver(`{"command":"notification","definition":"play_finished","streamId":"room1"}`)
	h.sync()
	s, _ := h.session("room1")
	require.Empty(t, s.Roster)
}

func TestSocketDropRecoversRoomMembership(t *testing.T) {
	h := newHarness(t)
	h.connected()
	h.o.JoinRoom("room1", "")
	h.sync()
	h.conn.deliver(`{"command":"notification","definition":"joinedRoom","streamId":"srv1","room":"room1","streams":["a"]}`)
	h.sync()

	h.conn.drop(errors.New("eof"))
	h.sync()
	s, _ := h.session("srv1")
	require.Equal(t, media.StateDisconnected, s.State)

	h.advance(DefaultSweepDelay)
	eventually(t, func() bool {
		s, ok := h.session("srv1")
		return ok && s.State == media.StateNew
	}, "room session re-issued")
	require.GreaterOrEqual(t, h.conn.connectCount(), 1)

	h.connected()
	cmds := h.conn.commands(t)
	require.Equal(t, "joinRoom srv1", cmds[len(cmds)-1])

	// roster survives so the next snapshot only reports real changes
	h.conn.deliver(`{"command":"roomInformation","room":"room1","streams":["a"]}`)
	h.sync()
	n := 0
	for _, c := range h.rec.snapshot() {
		if c == "streamsJoined room1 [a]" {
			n++
		}
	}
	require.Equal(t, 1, n)
}

func TestDataChannelEvents(t *testing.T) {
	h := newHarness(t)
	h.connected()
	h.o.Publish("s1", "", "")
	h.sync()
	m := h.engine.last(t, "s1")

	m.events.DataReceived("s1", []byte(`{"eventType":"CAM_TURNED_OFF","streamId":"peer1"}`), false)
	m.events.DataReceived("s1", []byte(`hello`), false)
	m.events.DataReceived("s1", []byte(`{"eventType":"X","streamId":"p"}`), true)
	h.sync()

	h.rec.mu.Lock()
	events := append([]string(nil), h.rec.events...)
	h.rec.mu.Unlock()
	require.Equal(t, []string{"CAM_TURNED_OFF peer1"}, events)
	calls := h.rec.snapshot()
	require.Contains(t, calls, "data s1 hello false")
	require.Contains(t, calls, `data s1 {"eventType":"X","streamId":"p"} true`)
}

func TestSetMicMuted(t *testing.T) {
	h := newHarness(t)
	h.connected()
	h.o.Publish("s1", "", "")
	h.sync()

	h.o.SetMicMuted(true)
	h.o.SetCameraOff(true)
	h.sync()

	m := h.engine.last(t, "s1")
	require.Len(t, m.data, 2)
	require.JSONEq(t, `{"eventType":"MIC_MUTED","streamId":"s1"}`, string(m.data[0]))
	require.JSONEq(t, `{"eventType":"CAM_TURNED_OFF","streamId":"s1"}`, string(m.data[1]))

	msgs := h.conn.messages(t)
	require.Equal(t, "updateStreamMetaData", msgs[2]["command"])
	require.JSONEq(t, `{"isMicMuted":true,"isCameraOff":true}`, msgs[2]["metaData"].(string))
}

func TestSendDataErrors(t *testing.T) {
	h := newHarness(t)
	h.o.SendData("nope", []byte("x"), false)
	h.o.JoinRoom("room1", "r1")
	h.o.SendData("r1", []byte("x"), false)
	h.sync()

	errs := h.rec.errors()
	require.Len(t, errs, 2)
	require.ErrorIs(t, errs[0], ErrNoSession)
	require.ErrorIs(t, errs[1], ErrNoMedia)
}

func TestUserMetaData(t *testing.T) {
	h := newHarness(t, func(o *Options) {
		o.Audio = false
		o.User = User{ID: 7, Name: "alice", Role: "host"}
	})
	h.connected()
	h.o.Publish("s1", "", "")
	h.sync()

	msg := h.conn.messages(t)[0]
	require.Equal(t, "alice", msg["streamName"])
	require.Equal(t, false, msg["audio"])
	require.JSONEq(t, `{"isMicMuted":true,"isCameraOff":false,"userId":7,"username":"alice","role":"host"}`, msg["metaData"].(string))
}

func TestStatsListener(t *testing.T) {
	h := newHarness(t)
	h.connected()
	h.o.Publish("s1", "", "")
	h.o.RegisterStatsListener("s1", time.Second)
	h.sync()

	h.advance(time.Second)
	eventually(t, func() bool { return h.rec.statsCount() >= 1 }, "stats reported")

	h.o.UnregisterStatsListener("s1")
	h.sync()
	n := h.rec.statsCount()
	h.advance(2 * time.Second)
	require.Equal(t, n, h.rec.statsCount())
}

func TestKeepalive(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.PingInterval = DefaultPingInterval })
	h.connected()

	h.advance(DefaultPingInterval)
	eventually(t, func() bool { return len(h.conn.commands(t)) == 1 }, "ping sent")
	require.Equal(t, []string{"ping "}, h.conn.commands(t))

	h.conn.drop(errors.New("eof"))
	h.sync()
	h.advance(DefaultPingInterval)
	require.Len(t, h.conn.commands(t), 1)
}

func TestClose(t *testing.T) {
	h := newHarness(t)
	h.connected()
	h.o.Publish("s1", "", "")
	h.sync()
	m := h.engine.last(t, "s1")

	h.o.Close()
	require.True(t, m.isClosed())
	h.conn.mu.Lock()
	require.True(t, h.conn.closed)
	h.conn.mu.Unlock()

	connects := h.conn.connectCount()
	require.ErrorIs(t, h.o.Publish("s2", "", ""), ErrClosed)
	require.Nil(t, h.o.Sessions())
	require.False(t, h.o.Connected())
	require.Equal(t, connects, h.conn.connectCount())
	h.o.Close()
}

func TestSessionGauge(t *testing.T) {
	h := newHarness(t)
	h.o.Publish("s1", "", "")
	h.o.Play("s2", "")
	h.o.Play("s3", "")
	h.sync()
	require.Equal(t, float64(1), testutil.ToFloat64(h.metrics.Sessions.WithLabelValues("publish")))
	require.Equal(t, float64(2), testutil.ToFloat64(h.metrics.Sessions.WithLabelValues("play")))
}

func TestSweepSurvivesFullQueue(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.QueueSize = 3 })
	h.connected()
	h.o.Play("a", "")
	h.sync()
	h.engine.last(t, "a").events.ConnectivityChanged("a", media.StateFailed)
	h.sync()
	require.True(t, h.armed())

	started, release := make(chan struct{}), make(chan struct{})
	require.NoError(t, h.o.enqueue(func() {
		close(started)
		<-release
	}))
	<-started
	for h.o.enqueue(func() {}) == nil {
	}
	require.ErrorIs(t, h.o.Play("b", ""), ErrQueueFull)

	// the sweep timer fires while the queue has no room
	h.clock.Add(DefaultSweepDelay)
	time.Sleep(10 * time.Millisecond)
	close(release)

	eventually(t, func() bool { return testutil.ToFloat64(h.metrics.Sweeps) == 1 }, "sweep not lost")
	h.sync()
	require.Len(t, h.engine.openedFor("a"), 2)
	require.False(t, h.armed())

	// later failures still schedule a sweep
	h.engine.last(t, "a").events.ConnectivityChanged("a", media.StateFailed)
	h.sync()
	require.True(t, h.armed())
	h.advance(DefaultSweepDelay)
	eventually(t, func() bool { return len(h.engine.openedFor("a")) == 3 }, "recovered again")
	_, ok := h.session("b")
	require.False(t, ok)
}
