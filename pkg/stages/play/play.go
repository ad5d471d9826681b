// Package play implements the playback stage: one decode session per
// selected stream, each driven on its own goroutine into a sink.
package play

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/decode"
	"github.com/user/mediaplay/pkg/pipeline"
	"github.com/user/mediaplay/pkg/ports"
	"github.com/user/mediaplay/pkg/source"
)

// DefaultQueueWarning is the number of parked packets above which the
// stage warns that a consumer is falling behind.
const DefaultQueueWarning = 512

// ErrNothingToPlay is returned when no selected stream could be opened.
var ErrNothingToPlay = errors.New("play: no stream could be opened")

// Option configures a Stage.
type Option func(*Stage)

// WithClock sets the clock used for pacing and timing.
func WithClock(c decode.Clock) Option {
	return func(s *Stage) { s.clock = c }
}

// WithQueueWarning sets the queue depth warning threshold. 0 disables it.
func WithQueueWarning(n int) Option {
	return func(s *Stage) { s.queueWarning = n }
}

// Stage decodes and paces the selected streams into sinks.
type Stage struct {
	registry     *decode.Registry
	clock        decode.Clock
	logger       ports.Logger
	queueWarning int
}

// NewStage creates a new play stage.
func NewStage(registry *decode.Registry, logger ports.Logger, opts ...Option) *Stage {
	s := &Stage{
		registry:     registry,
		clock:        decode.SystemClock{},
		logger:       logger.WithComponent("play"),
		queueWarning: DefaultQueueWarning,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute plays until every stream ends, a stream fails or ctx is done.
// A stream whose codec cannot be opened is reported in its StreamStats and
// the other stream still plays.
func (s *Stage) Execute(ctx context.Context, input pipeline.PlayInput) (pipeline.PlayResult, error) {
	result := pipeline.PlayResult{}
	start := s.clock.Now()
	src := input.Source

	opts := []decode.Option{
		decode.WithRegistry(s.registry),
		decode.WithClock(s.clock),
		decode.WithLogger(s.logger),
	}

	var video *decode.VideoSession
	if input.VideoStream >= 0 {
		result.Video = &pipeline.StreamStats{Index: input.VideoStream}
		vs, err := decode.NewVideo(src, input.VideoStream, input.PixelFormat,
			append(opts, decode.WithSize(input.Width, input.Height))...)
		if err != nil {
			result.Video.Err = err
			s.logger.Warn("Cannot play video stream %d: %s", input.VideoStream, err.Error())
		} else {
			video = vs
			defer vs.Destroy()
		}
	}

	var audio *decode.AudioSession
	if input.AudioStream >= 0 {
		result.Audio = &pipeline.StreamStats{Index: input.AudioStream}
		as, err := decode.NewAudio(src, input.AudioStream, input.SampleFormat,
			append(opts, decode.WithSampleRate(input.SampleRate), decode.WithChannels(input.Channels))...)
		if err != nil {
			result.Audio.Err = err
			s.logger.Warn("Cannot play audio stream %d: %s", input.AudioStream, err.Error())
		} else {
			audio = as
			defer as.Destroy()
		}
	}

	if video == nil && audio == nil {
		return result, ErrNothingToPlay
	}

	var warned atomic.Bool
	g, gctx := errgroup.WithContext(ctx)
	if video != nil {
		s.logger.Info("Playing video stream %d (%s, %dx%d %s)", video.Index(), video.Stream().Codec,
			video.Width(), video.Height(), video.PixelFormat())
		g.Go(func() error {
			return s.drive(gctx, src, video.Session, input.MaxFrames, &warned, func(f *av.Frame) error {
				if input.VideoSink == nil {
					return nil
				}
				return input.VideoSink.WriteVideo(f)
			})
		})
	}
	if audio != nil {
		s.logger.Info("Playing audio stream %d (%s)", audio.Index(), audio.Stream().Codec)
		g.Go(func() error {
			return s.drive(gctx, src, audio.Session, input.MaxFrames, &warned, func(f *av.Frame) error {
				if input.AudioSink == nil {
					return nil
				}
				return input.AudioSink.WriteAudio(f)
			})
		})
	}
	err := g.Wait()

	if video != nil {
		fillStats(result.Video, video.Session)
	}
	if audio != nil {
		fillStats(result.Audio, audio.Session)
	}
	result.Routing = src.Stats()
	result.Duration = s.clock.Now().Sub(start)
	return result, err
}

// drive pulls frames from sess into write until the stream ends, max frames
// were written or ctx is done. The stream is disabled on return so the
// sibling consumer stops parking its packets.
func (s *Stage) drive(ctx context.Context, src *source.Source, sess *decode.Session, max int, warned *atomic.Bool, write func(*av.Frame) error) error {
	defer src.DisableStream(sess.Index())

	for n := 0; max <= 0 || n < max; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := sess.NextFrame()
		if errors.Is(err, decode.ErrEndOfStream) {
			s.logger.Debug("Stream %d ended after %d frames", sess.Index(), n)
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream %d: %w", sess.Index(), err)
		}
		if err := write(frame); err != nil {
			return fmt.Errorf("stream %d: write frame: %w", sess.Index(), err)
		}
		s.checkQueues(src, warned)
	}
	return nil
}

// checkQueues warns once when parked packets exceed the threshold.
func (s *Stage) checkQueues(src *source.Source, warned *atomic.Bool) {
	if s.queueWarning <= 0 || warned.Load() {
		return
	}
	if pending := src.Stats().Pending(); pending > s.queueWarning && warned.CompareAndSwap(false, true) {
		s.logger.Warn("Packet queues hold %d packets; a consumer is falling behind", pending)
	}
}

func fillStats(st *pipeline.StreamStats, sess *decode.Session) {
	ds := sess.Stats()
	st.Codec = sess.Stream().Codec
	st.Backend = sess.Backend()
	st.Packets = ds.Packets
	st.Frames = ds.Frames
	st.SendErrors = ds.SendErrors
	st.Late = ds.Late
	st.MaxLate = ds.MaxLate
}
