// Package app wires configuration, signaling, the pion engine and the
// orchestrator into a runnable client.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/junsooki/streamlink/internal/config"
	"github.com/junsooki/streamlink/internal/media"
	"github.com/junsooki/streamlink/internal/metrics"
	"github.com/junsooki/streamlink/internal/orchestrator"
	"github.com/junsooki/streamlink/internal/peer"
	"github.com/junsooki/streamlink/internal/signaling"
)

// Run starts the session described by cfg and blocks until ctx is done.
func Run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", cfg.Metrics.Addr).Msg("metrics server")
			}
		}()
		defer srv.Close()
		log.Info().Str("addr", cfg.Metrics.Addr).Msg("serving metrics")
	}

	client := signaling.NewClient(cfg.Signaling.URL, signaling.ClientOptions{
		DialTimeout:  cfg.Signaling.DialTimeout,
		WriteTimeout: cfg.Signaling.WriteTimeout,
		Logger:       log,
	})
	engine := peer.NewEngine(peer.Config{
		ICEServers:  cfg.Media.STUN,
		Video:       cfg.Media.Video,
		Audio:       cfg.Media.Audio,
		DataChannel: cfg.Media.DataChannel,
		OnOpen:      feedTracks(cfg.Media, log),
	}, log)

	s := cfg.Stream
	handler := Handler(log)
	var orch *orchestrator.Orchestrator
	if s.Mode == config.ModeConference {
		// publish into the room under the id the server assigned
		logJoined := handler.OnJoinedRoom
		handler.OnJoinedRoom = func(room, id string, streams []string) {
			logJoined(room, id, streams)
			orch.Publish(id, s.Token, room)
		}
	}

	orch = orchestrator.New(client, engine, handler, orchestrator.Options{
		Video:       cfg.Media.Video,
		Audio:       cfg.Media.Audio,
		DataChannel: cfg.Media.DataChannel,
		User: orchestrator.User{
			ID:             cfg.User.ID,
			Name:           cfg.User.Name,
			Role:           cfg.User.Role,
			ProfilePicture: cfg.User.ProfilePicture,
		},
		DisableTrackID:      cfg.Media.DisableTrack,
		SweepDelay:          cfg.Session.SweepDelay,
		HandshakeCheckDelay: cfg.Session.HandshakeCheckDelay,
		PingInterval:        cfg.Signaling.PingInterval,
		QueueSize:           cfg.Session.QueueSize,
		TeardownWorkers:     cfg.Session.TeardownWorkers,
		Logger:              log,
		Metrics:             m,
	})
	defer orch.Close()

	switch s.Mode {
	case config.ModePublish:
		orch.Publish(s.ID, s.Token, s.Room)
	case config.ModePlay:
		orch.Play(s.ID, s.Token)
	case config.ModeJoin:
		orch.Join(s.ID)
	case config.ModeConference:
		orch.JoinRoom(s.Room, s.ID)
	}
	if cfg.Stats.Interval > 0 {
		orch.RegisterStatsListener(s.ID, cfg.Stats.Interval)
	}

	log.Info().Str("mode", s.Mode).Str("stream_id", s.ID).Str("room", s.Room).Msg("started")
	<-ctx.Done()
	log.Info().Msg("shutting down")

	if s.Mode == config.ModeConference {
		orch.LeaveFromRoom(s.Room)
	} else {
		orch.Stop(s.ID)
	}
	return nil
}

// feedTracks starts writers for the local tracks of every sending
// connection. They stop when the connection closes.
func feedTracks(cfg config.MediaConfig, log zerolog.Logger) func(string, *peer.Connection) {
	return func(streamID string, c *peer.Connection) {
		sources := []struct {
			track *webrtc.TrackLocalStaticSample
			path  string
		}{
			{c.VideoTrack(), cfg.VideoFile},
			{c.AudioTrack(), cfg.AudioFile},
		}
		for _, src := range sources {
			if src.track == nil {
				continue
			}
			if err := peer.NewTrackWriter(src.track, src.path, c.Done(), log).Start(); err != nil {
				log.Error().Err(err).Str("stream_id", streamID).Msg("track writer")
			}
		}
	}
}

// Handler logs every orchestrator notification.
func Handler(log zerolog.Logger) orchestrator.Handler {
	return orchestrator.Handler{
		OnConnected: func() {
			log.Info().Msg("signaling connected")
		},
		OnDisconnected: func(reason error) {
			log.Warn().Err(reason).Msg("signaling disconnected")
		},
		OnPublishStarted: func(id string) {
			log.Info().Str("stream_id", id).Msg("publish started")
		},
		OnPublishFinished: func(id string) {
			log.Info().Str("stream_id", id).Msg("publish finished")
		},
		OnPlayStarted: func(id string) {
			log.Info().Str("stream_id", id).Msg("play started")
		},
		OnPlayFinished: func(id string) {
			log.Info().Str("stream_id", id).Msg("play finished")
		},
		OnJoined: func(id string) {
			log.Info().Str("stream_id", id).Msg("joined")
		},
		OnJoinedRoom: func(room, id string, streams []string) {
			log.Info().Str("room", room).Str("stream_id", id).Strs("streams", streams).Msg("joined room")
		},
		OnStreamsJoined: func(room string, streams []string) {
			log.Info().Str("room", room).Strs("streams", streams).Msg("streams joined")
		},
		OnStreamsLeft: func(room string, streams []string) {
			log.Info().Str("room", room).Strs("streams", streams).Msg("streams left")
		},
		OnBroadcastObject: func(id string, obj map[string]any) {
			log.Info().Str("stream_id", id).Interface("broadcast", obj).Msg("broadcast object")
		},
		OnNotification: func(id, definition string, _ map[string]any) {
			log.Debug().Str("stream_id", id).Str("definition", definition).Msg("notification")
		},
		OnTrackList: func(id string, tracks []string) {
			log.Info().Str("stream_id", id).Strs("tracks", tracks).Msg("track list")
		},
		OnStreamInformation: func(id string, info []signaling.StreamInfo) {
			log.Info().Str("stream_id", id).Int("renditions", len(info)).Msg("stream information")
		},
		OnConnectivityChanged: func(id string, state media.ConnectivityState) {
			log.Info().Str("stream_id", id).Str("state", state.String()).Msg("connectivity")
		},
		OnTrackAdded: func(id string, t media.Track) {
			log.Info().Str("stream_id", id).Str("track_id", t.ID).Str("kind", t.Kind).Msg("track added")
		},
		OnTrackRemoved: func(id string, t media.Track) {
			log.Info().Str("stream_id", id).Str("track_id", t.ID).Str("kind", t.Kind).Msg("track removed")
		},
		OnEvent: func(id, eventType string, _ map[string]any) {
			log.Info().Str("stream_id", id).Str("event", eventType).Msg("data channel event")
		},
		OnData: func(id string, data []byte, binary bool) {
			log.Debug().Str("stream_id", id).Int("bytes", len(data)).Bool("binary", binary).Msg("data")
		},
		OnStats: func(id string, st media.Stats) {
			log.Info().
				Str("stream_id", id).
				Uint64("bytes_sent", st.BytesSent).
				Uint64("bytes_received", st.BytesReceived).
				Int64("packets_lost", st.PacketsLost).
				Float64("rtt", st.RoundTripTime).
				Msg("stats")
		},
		OnError: func(id string, err error) {
			log.Error().Err(err).Str("stream_id", id).Msg("session error")
		},
	}
}
