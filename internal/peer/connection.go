package peer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/junsooki/streamlink/internal/media"
	"github.com/junsooki/streamlink/internal/transport"
)

// Connection is the pion-backed media connection of one session.
type Connection struct {
	streamID string
	pc       *webrtc.PeerConnection
	events   media.Events
	log      zerolog.Logger

	transport *transport.DataChannelTransport
	video     *webrtc.TrackLocalStaticSample
	audio     *webrtc.TrackLocalStaticSample

	mu sync.Mutex
	// remote candidates that arrived before the remote description
	pendingCandidates []webrtc.ICECandidateInit

	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

var _ media.Connection = (*Connection)(nil)

func newConnection(streamID string, pc *webrtc.PeerConnection, events media.Events, logger zerolog.Logger) *Connection {
	c := &Connection{
		streamID:  streamID,
		pc:        pc,
		events:    events,
		log:       logger.With().Str("stream_id", streamID).Logger(),
		transport: transport.NewDataChannelTransport(nil),
		done:      make(chan struct{}),
	}
	c.transport.OnMessage(func(data []byte, binary bool) {
		if !c.closed.Load() {
			c.events.DataReceived(c.streamID, data, binary)
		}
	})

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil || c.closed.Load() {
			return
		}
		init := cand.ToJSON()
		out := media.Candidate{Candidate: init.Candidate}
		if init.SDPMid != nil {
			out.SDPMid = *init.SDPMid
		}
		if init.SDPMLineIndex != nil {
			out.SDPMLineIndex = int(*init.SDPMLineIndex)
		}
		c.events.LocalCandidate(c.streamID, out)
	})

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.log.Info().Str("ice_state", s.String()).Msg("ICE state")
		state, ok := connectivity(s)
		if !ok || c.closed.Load() {
			return
		}
		c.events.ConnectivityChanged(c.streamID, state)
	})

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		track := media.Track{ID: remote.ID(), StreamID: remote.StreamID(), Kind: remote.Kind().String()}
		c.log.Info().Str("kind", track.Kind).Str("track_id", track.ID).Msg("remote track")
		c.events.TrackAdded(c.streamID, track)
		go c.drain(remote, track)
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != transport.DataChannelLabel {
			c.log.Debug().Str("label", dc.Label()).Msg("ignoring data channel")
			return
		}
		dc.OnOpen(func() {
			c.log.Debug().Msg("data channel open")
		})
		c.transport.SetChannel(dc)
	})

	return c
}

// connectivity maps ICE states onto the session connectivity signal.
// Checking is transient and not reported.
func connectivity(s webrtc.ICEConnectionState) (media.ConnectivityState, bool) {
	switch s {
	case webrtc.ICEConnectionStateNew:
		return media.StateNew, true
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		return media.StateConnected, true
	case webrtc.ICEConnectionStateDisconnected:
		return media.StateDisconnected, true
	case webrtc.ICEConnectionStateFailed:
		return media.StateFailed, true
	case webrtc.ICEConnectionStateClosed:
		return media.StateClosed, true
	default:
		return 0, false
	}
}

// drain consumes RTP so the receiver keeps flowing, and reports the track
// gone when it ends.
func (c *Connection) drain(remote *webrtc.TrackRemote, track media.Track) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := remote.Read(buf); err != nil {
			if !c.closed.Load() {
				c.events.TrackRemoved(c.streamID, track)
			}
			return
		}
	}
}

func (c *Connection) addLocalTracks(video, audio bool) error {
	if video {
		track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", c.streamID)
		if err != nil {
			return fmt.Errorf("video track: %w", err)
		}
		if err := c.addTrack(track); err != nil {
			return err
		}
		c.video = track
	}
	if audio {
		track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", c.streamID)
		if err != nil {
			return fmt.Errorf("audio track: %w", err)
		}
		if err := c.addTrack(track); err != nil {
			return err
		}
		c.audio = track
	}
	return nil
}

func (c *Connection) addTrack(track webrtc.TrackLocal) error {
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add %s track: %w", track.Kind(), err)
	}
	// RTCP must be read for interceptors to work
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

func (c *Connection) createDataChannel() error {
	ordered := true
	dc, err := c.pc.CreateDataChannel(transport.DataChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return fmt.Errorf("create data channel: %w", err)
	}
	c.transport.SetChannel(dc)
	return nil
}

// VideoTrack is the local video track samples are written to, or nil.
func (c *Connection) VideoTrack() *webrtc.TrackLocalStaticSample {
	return c.video
}

// AudioTrack is the local audio track samples are written to, or nil.
func (c *Connection) AudioTrack() *webrtc.TrackLocalStaticSample {
	return c.audio
}

// Done is closed when the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// CreateOffer sets a local offer and hands it to the orchestrator.
func (c *Connection) CreateOffer() error {
	if c.closed.Load() {
		return media.ErrConnectionClosed
	}
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	c.events.LocalDescription(c.streamID, media.Description{Type: media.SDPOffer, SDP: offer.SDP})
	return nil
}

func (c *Connection) SetRemoteDescription(typ media.SDPType, sdp string) error {
	if c.closed.Load() {
		return media.ErrConnectionClosed
	}
	desc := webrtc.SessionDescription{Type: webrtc.NewSDPType(string(typ)), SDP: sdp}
	if desc.Type == webrtc.SDPTypeUnknown {
		return fmt.Errorf("unsupported sdp type %q", typ)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	pending := c.pendingCandidates
	c.pendingCandidates = nil

	var errs []error
	for _, cand := range pending {
		if err := c.pc.AddICECandidate(cand); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CreateAnswer answers the accepted remote offer.
func (c *Connection) CreateAnswer() error {
	if c.closed.Load() {
		return media.ErrConnectionClosed
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return err
	}
	c.events.LocalDescription(c.streamID, media.Description{Type: media.SDPAnswer, SDP: answer.SDP})
	return nil
}

// AddCandidate adds a remote ICE candidate, buffering it until the remote
// description is known.
func (c *Connection) AddCandidate(cand media.Candidate) error {
	if c.closed.Load() {
		return media.ErrConnectionClosed
	}
	mid := cand.SDPMid
	index := uint16(cand.SDPMLineIndex)
	init := webrtc.ICECandidateInit{Candidate: cand.Candidate, SDPMid: &mid, SDPMLineIndex: &index}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pc.RemoteDescription() == nil {
		c.pendingCandidates = append(c.pendingCandidates, init)
		return nil
	}
	return c.pc.AddICECandidate(init)
}

func (c *Connection) SendData(data []byte, binary bool) error {
	if c.closed.Load() {
		return media.ErrConnectionClosed
	}
	return c.transport.Send(data, binary)
}

// Close shuts down the peer connection.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		_ = c.transport.Close()
		if err := c.pc.Close(); err != nil {
			c.log.Error().Err(err).Msg("close error")
			return
		}
		c.log.Info().Msg("closed")
	})
}
