package rtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Glimpse/internal/core"
)

const (
	opusFrameDuration = 20 * time.Millisecond
	opusFrameSamples  = 960 // 20ms at 48kHz
)

// opusSilence is a single SILK frame that decodes to silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

var _ core.MediaSource = (*Source)(nil)

// Source produces the local tracks: an opus audio track fed with silence and,
// when VideoFile is set, a VP8 track replaying an IVF file in a loop.
type Source struct {
	StreamID  string
	VideoFile string
}

// Acquire starts the pumps; they run until Stop is called.
func (s *Source) Acquire(ctx context.Context) (core.LocalMedia, error) {
	streamID := s.StreamID
	if streamID == "" {
		streamID = "glimpse"
	}
	logger := log.With().Str("module", "media").Str("stream_id", streamID).Logger()

	audio, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", streamID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: audio track: %v", core.ErrMediaAcquisition, err)
	}

	var video *webrtc.TrackLocalStaticSample
	var file *os.File
	if s.VideoFile != "" {
		file, err = os.Open(s.VideoFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrMediaAcquisition, err)
		}
		video, err = webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
			"video", streamID,
		)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("%w: video track: %v", core.ErrMediaAcquisition, err)
		}
	}

	pumpCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	lm := &localMedia{cancel: cancel}
	lm.tracks = append(lm.tracks, audio)

	lm.wg.Add(1)
	go func() {
		defer lm.wg.Done()
		pumpSilence(pumpCtx, audio, &logger)
	}()

	if video != nil {
		lm.tracks = append(lm.tracks, video)
		lm.wg.Add(1)
		go func() {
			defer lm.wg.Done()
			defer file.Close()
			pumpIVF(pumpCtx, file, video, &logger)
		}()
	}

	logger.Info().Int("tracks", len(lm.tracks)).Msg("local media acquired")
	return lm, nil
}

type localMedia struct {
	tracks []webrtc.TrackLocal
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func (m *localMedia) Tracks() []webrtc.TrackLocal { return m.tracks }

func (m *localMedia) Stop() {
	m.once.Do(func() {
		m.cancel()
		m.wg.Wait()
	})
}

func pumpSilence(ctx context.Context, track *webrtc.TrackLocalStaticRTP, logger *zerolog.Logger) {
	ticker := time.NewTicker(opusFrameDuration)
	defer ticker.Stop()

	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version: 2,
			Marker:  true,
		},
		Payload: opusSilence,
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := track.WriteRTP(pkt); err != nil && !errors.Is(err, io.ErrClosedPipe) {
			logger.Error().Err(err).Msg("write silence")
			return
		}
		pkt.Marker = false
		pkt.SequenceNumber++
		pkt.Timestamp += opusFrameSamples
	}
}

func pumpIVF(ctx context.Context, file *os.File, track *webrtc.TrackLocalStaticSample, logger *zerolog.Logger) {
	for {
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			logger.Error().Err(err).Msg("rewind ivf")
			return
		}
		reader, header, err := ivfreader.NewWith(file)
		if err != nil {
			logger.Error().Err(err).Msg("open ivf")
			return
		}
		frameDuration := 33 * time.Millisecond
		if header.TimebaseDenominator != 0 {
			frameDuration = time.Duration(float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator) * float64(time.Second))
		}

		ticker := time.NewTicker(frameDuration)
		for {
			frame, _, err := reader.ParseNextFrame()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				ticker.Stop()
				logger.Error().Err(err).Msg("read ivf frame")
				return
			}
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
			}
			if err := track.WriteSample(media.Sample{Data: frame, Duration: frameDuration}); err != nil {
				ticker.Stop()
				logger.Error().Err(err).Msg("write video sample")
				return
			}
		}
		ticker.Stop()
	}
}
