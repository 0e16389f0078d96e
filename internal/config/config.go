package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/junsooki/streamlink/internal/logger"
)

// Stream modes accepted by stream.mode.
const (
	ModePublish    = "publish"
	ModePlay       = "play"
	ModeJoin       = "join"
	ModeConference = "conference"
)

// Config holds all runtime configuration.
type Config struct {
	Signaling SignalingConfig `mapstructure:"signaling"`
	Session   SessionConfig   `mapstructure:"session"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Media     MediaConfig     `mapstructure:"media"`
	User      UserConfig      `mapstructure:"user"`
	Stats     StatsConfig     `mapstructure:"stats"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       logger.Config   `mapstructure:"log"`
}

type SignalingConfig struct {
	URL          string        `mapstructure:"url"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

type SessionConfig struct {
	SweepDelay          time.Duration `mapstructure:"sweep_delay"`
	HandshakeCheckDelay time.Duration `mapstructure:"handshake_check_delay"`
	QueueSize           int           `mapstructure:"queue_size"`
	TeardownWorkers     int           `mapstructure:"teardown_workers"`
}

type StreamConfig struct {
	ID    string `mapstructure:"id"`
	Token string `mapstructure:"token"`
	Room  string `mapstructure:"room"`
	Mode  string `mapstructure:"mode"`
}

type MediaConfig struct {
	Video       bool     `mapstructure:"video"`
	Audio       bool     `mapstructure:"audio"`
	DataChannel bool     `mapstructure:"data_channel"`
	STUN        []string `mapstructure:"stun"`
	// DisableTrack is excluded from subscription when playing a main track.
	DisableTrack string `mapstructure:"disable_track"`
	// VideoFile (IVF) and AudioFile (OGG) feed the published tracks. Empty
	// means placeholder samples.
	VideoFile string `mapstructure:"video_file"`
	AudioFile string `mapstructure:"audio_file"`
}

type UserConfig struct {
	ID             int    `mapstructure:"id"`
	Name           string `mapstructure:"name"`
	Role           string `mapstructure:"role"`
	ProfilePicture string `mapstructure:"profile_picture"`
}

type StatsConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

const envPrefix = "STREAMLINK"

func setDefaults(v *viper.Viper, mode string) {
	v.SetDefault("signaling.url", "ws://localhost:5080/WebRTCAppEE/websocket")
	v.SetDefault("signaling.dial_timeout", 5*time.Second)
	v.SetDefault("signaling.write_timeout", 5*time.Second)
	v.SetDefault("signaling.ping_interval", 10*time.Second)
	v.SetDefault("session.sweep_delay", 3*time.Second)
	v.SetDefault("session.handshake_check_delay", 5*time.Second)
	v.SetDefault("session.queue_size", 256)
	v.SetDefault("session.teardown_workers", 2)
	v.SetDefault("stream.mode", mode)
	v.SetDefault("media.video", true)
	v.SetDefault("media.audio", true)
	v.SetDefault("media.data_channel", true)
	v.SetDefault("media.stun", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("media.disable_track", "")
	v.SetDefault("media.video_file", "")
	v.SetDefault("media.audio_file", "")
	v.SetDefault("user.id", 0)
	v.SetDefault("user.name", "")
	v.SetDefault("user.role", "")
	v.SetDefault("user.profile_picture", "")
	v.SetDefault("stats.interval", time.Duration(0))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Flags registers the command-line flags that override file and
// environment values.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "Path to a YAML config file")
	fs.String("signaling", "", "Signaling server WebSocket URL")
	fs.String("id", "", "Stream ID (auto-generated if empty)")
	fs.String("token", "", "Stream token")
	fs.String("room", "", "Conference room ID")
	fs.String("mode", "", "Stream mode: publish, play, join or conference")
	fs.String("video-file", "", "IVF file to publish as video")
	fs.String("audio-file", "", "OGG file to publish as audio")
	fs.String("log-level", "", "Log level")
	fs.String("metrics-addr", "", "Address to serve Prometheus metrics on")
	return fs
}

var flagKeys = map[string]string{
	"signaling":    "signaling.url",
	"id":           "stream.id",
	"token":        "stream.token",
	"room":         "stream.room",
	"mode":         "stream.mode",
	"video-file":   "media.video_file",
	"audio-file":   "media.audio_file",
	"log-level":    "log.level",
	"metrics-addr": "metrics.addr",
}

// Load parses args and merges flags, environment, config file and
// defaults, in that order of precedence. defaultMode is used when no
// stream.mode is configured.
func Load(name string, args []string, defaultMode string) (*Config, error) {
	fs := Flags(name)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, defaultMode)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	path, _ := fs.GetString("config")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	switch c.Stream.Mode {
	case ModePublish, ModePlay, ModeJoin, ModeConference:
	default:
		return fmt.Errorf("invalid stream mode %q", c.Stream.Mode)
	}
	if c.Stream.Mode == ModeConference && c.Stream.Room == "" {
		return errors.New("conference mode requires stream.room")
	}
	// the server assigns ids on room join
	if c.Stream.ID == "" && c.Stream.Mode != ModeConference {
		c.Stream.ID = fmt.Sprintf("%s-%s", c.Stream.Mode, randomID())
	}
	return nil
}

func randomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
