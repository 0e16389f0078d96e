package peer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog"
)

const (
	nullSampleInterval = 20 * time.Millisecond
	oggSampleRate      = 48000
)

var (
	// opus comfort silence
	opusSilenceFrame = []byte{0xf8, 0xff, 0xfe}
	nullVideoSample  = []byte{0x0, 0xff, 0xff, 0xff, 0xff}
)

// TrackWriter paces samples into a local track until its connection
// closes. With no file it writes placeholder samples so the stream is
// never empty.
type TrackWriter struct {
	track *webrtc.TrackLocalStaticSample
	path  string
	done  <-chan struct{}
	log   zerolog.Logger
}

func NewTrackWriter(track *webrtc.TrackLocalStaticSample, path string, done <-chan struct{}, logger zerolog.Logger) *TrackWriter {
	return &TrackWriter{
		track: track,
		path:  path,
		done:  done,
		log:   logger.With().Str("module", "peer.writer").Str("track_id", track.ID()).Logger(),
	}
}

// Start opens the file, if any, and writes in the background.
func (w *TrackWriter) Start() error {
	mime := w.track.Codec().MimeType
	if w.path == "" {
		go w.writeNull(mime)
		return nil
	}

	file, err := os.Open(w.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.path, err)
	}
	switch {
	case strings.EqualFold(mime, webrtc.MimeTypeOpus):
		ogg, _, err := oggreader.NewWith(file)
		if err != nil {
			_ = file.Close()
			return fmt.Errorf("read ogg %s: %w", w.path, err)
		}
		go w.writeOgg(file, ogg)
	case strings.EqualFold(mime, webrtc.MimeTypeVP8):
		ivf, header, err := ivfreader.NewWith(file)
		if err != nil {
			_ = file.Close()
			return fmt.Errorf("read ivf %s: %w", w.path, err)
		}
		go w.writeIVF(file, ivf, header)
	default:
		_ = file.Close()
		return fmt.Errorf("no file reader for %s", mime)
	}
	w.log.Debug().Str("path", w.path).Str("mime", mime).Msg("writing track from file")
	return nil
}

func (w *TrackWriter) writeNull(mime string) {
	sample := pionmedia.Sample{Data: nullVideoSample, Duration: nullSampleInterval}
	if strings.EqualFold(mime, webrtc.MimeTypeOpus) {
		sample.Data = opusSilenceFrame
	}
	t := time.NewTicker(nullSampleInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := w.track.WriteSample(sample); err != nil {
				w.log.Debug().Err(err).Msg("write sample")
			}
		case <-w.done:
			return
		}
	}
}

func (w *TrackWriter) writeOgg(file io.Closer, ogg *oggreader.OggReader) {
	defer file.Close()
	var lastGranule uint64
	for {
		page, header, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			w.log.Info().Msg("audio file finished")
			return
		}
		if err != nil {
			w.log.Error().Err(err).Msg("parse ogg page")
			return
		}
		// the granule delta is the page's sample count
		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		duration := time.Duration(samples) * time.Second / oggSampleRate

		if err := w.track.WriteSample(pionmedia.Sample{Data: page, Duration: duration}); err != nil {
			w.log.Error().Err(err).Msg("write sample")
			return
		}
		if !w.sleep(duration) {
			return
		}
	}
}

func (w *TrackWriter) writeIVF(file io.Closer, ivf *ivfreader.IVFReader, header *ivfreader.IVFFileHeader) {
	defer file.Close()
	interval := time.Second
	if header.TimebaseDenominator > 0 {
		interval = time.Duration(header.TimebaseNumerator) * time.Second / time.Duration(header.TimebaseDenominator)
	}
	for {
		frame, _, err := ivf.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			w.log.Info().Msg("video file finished")
			return
		}
		if err != nil {
			w.log.Error().Err(err).Msg("parse ivf frame")
			return
		}
		if !w.sleep(interval) {
			return
		}
		if err := w.track.WriteSample(pionmedia.Sample{Data: frame, Duration: interval}); err != nil {
			w.log.Error().Err(err).Msg("write sample")
			return
		}
	}
}

// sleep waits d and reports false if the connection closed meanwhile.
func (w *TrackWriter) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-w.done:
		return false
	}
}
