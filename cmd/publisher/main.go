// Command publisher sends local media to the media server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/junsooki/streamlink/internal/app"
	"github.com/junsooki/streamlink/internal/config"
	"github.com/junsooki/streamlink/internal/logger"
)

func main() {
	cfg, err := config.Load("publisher", os.Args[1:], config.ModePublish)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	l := logger.Init(cfg.Log)

	l.Info().
		Str("signaling", cfg.Signaling.URL).
		Str("mode", cfg.Stream.Mode).
		Str("stream_id", cfg.Stream.ID).
		Msg("streamlink publisher starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, cfg, l); err != nil {
		l.Fatal().Err(err).Msg("run")
	}
}
