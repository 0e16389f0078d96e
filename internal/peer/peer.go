// Package peer implements the media engine on top of pion/webrtc.
package peer

import (
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/junsooki/streamlink/internal/media"
)

// DefaultICEServers is the default ICE server configuration.
var DefaultICEServers = []string{"stun:stun.l.google.com:19302"}

type Config struct {
	ICEServers  []string
	Video       bool
	Audio       bool
	DataChannel bool
	// OnOpen is called for every sending connection once its local tracks
	// exist, so a capturer can start writing samples.
	OnOpen func(streamID string, c *Connection)
}

// Engine opens one pion PeerConnection per session.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

var _ media.Engine = (*Engine)(nil)

func NewEngine(cfg Config, logger zerolog.Logger) *Engine {
	if len(cfg.ICEServers) == 0 {
		cfg.ICEServers = DefaultICEServers
	}
	return &Engine{
		cfg: cfg,
		log: logger.With().Str("module", "peer").Logger(),
	}
}

// NewPeerConnection creates a configured PeerConnection.
func (e *Engine) NewPeerConnection() (*webrtc.PeerConnection, error) {
	return webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: e.cfg.ICEServers}},
	})
}

// Open creates the connection for streamID. Publishing roles get local
// audio and video tracks and the WebRTCData channel up front; receiving
// roles accept whatever the remote offer carries.
func (e *Engine) Open(streamID string, role media.Role, events media.Events) (media.Connection, error) {
	pc, err := e.NewPeerConnection()
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	c := newConnection(streamID, pc, events, e.log)
	if role != media.RoleReceive {
		if err := c.addLocalTracks(e.cfg.Video, e.cfg.Audio); err != nil {
			_ = pc.Close()
			return nil, err
		}
		if e.cfg.DataChannel {
			if err := c.createDataChannel(); err != nil {
				_ = pc.Close()
				return nil, err
			}
		}
		if e.cfg.OnOpen != nil {
			e.cfg.OnOpen(streamID, c)
		}
	}
	return c, nil
}
