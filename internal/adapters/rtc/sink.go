package rtc

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Glimpse/internal/core"
)

type outState int32

const (
	outOk outState = iota
	outDelete
)

type rtpWriter interface {
	WriteRTP(*rtp.Packet) error
	Close() error
}

// trackOut is one destination of a remote track.
type trackOut struct {
	w     rtpWriter
	state atomic.Int32 // Zero by default (outOk)
}

func (o *trackOut) getState() outState { return outState(o.state.Load()) }
func (o *trackOut) markDelete()        { o.state.Store(int32(outDelete)) }

var _ core.TrackSink = (*Sink)(nil)

// Sink drains every remote track. With RecordDir set it records opus to .ogg
// and VP8 to .ivf; other codecs are only counted.
type Sink struct {
	RecordDir string

	packets atomic.Int64
	bytes   atomic.Int64
}

// Stats reports packets and payload bytes received across all tracks.
func (s *Sink) Stats() (packets, bytes int64) {
	return s.packets.Load(), s.bytes.Load()
}

func (s *Sink) HandleTrack(ctx context.Context, track *webrtc.TrackRemote) {
	logger := log.With().
		Str("module", "media").
		Str("track_id", track.ID()).
		Str("kind", track.Kind().String()).
		Logger()

	var outs []*trackOut
	if rec, err := s.recorder(track); err != nil {
		logger.Error().Err(err).Msg("recorder")
	} else if rec != nil {
		outs = append(outs, &trackOut{w: rec})
	}
	defer func() {
		for _, o := range outs {
			_ = o.w.Close()
		}
	}()

	s.loop(ctx, track, outs, &logger)
}

// loop reads RTP packets from the remote track and forwards them to all outs.
func (s *Sink) loop(ctx context.Context, track *webrtc.TrackRemote, outs []*trackOut, logger *zerolog.Logger) {
	logger.Info().Int("outs", len(outs)).Msg("sink loop started")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("sink ctx done")
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("sink read RTP stopped")
			return
		}
		s.packets.Add(1)
		s.bytes.Add(int64(len(pkt.Payload)))
		forward(pkt, outs, logger)
	}
}

func forward(pkt *rtp.Packet, outs []*trackOut, logger *zerolog.Logger) {
	for _, o := range outs {
		if o.getState() == outDelete {
			continue
		}
		if err := o.w.WriteRTP(pkt); err != nil {
			logger.Error().Err(err).Msg("sink write RTP error, marking out as delete")
			o.markDelete()
		}
	}
}

func (s *Sink) recorder(track *webrtc.TrackRemote) (rtpWriter, error) {
	if s.RecordDir == "" {
		return nil, nil
	}
	stamp := time.Now().UTC().Format("20060102T150405")
	mime := track.Codec().MimeType
	switch {
	case strings.EqualFold(mime, webrtc.MimeTypeOpus):
		name := filepath.Join(s.RecordDir, fmt.Sprintf("%s-%s.ogg", stamp, track.ID()))
		return oggwriter.New(name, 48000, 2)
	case strings.EqualFold(mime, webrtc.MimeTypeVP8):
		name := filepath.Join(s.RecordDir, fmt.Sprintf("%s-%s.ivf", stamp, track.ID()))
		return ivfwriter.New(name)
	default:
		return nil, nil
	}
}
