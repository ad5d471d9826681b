// Package probe implements the stage that opens a source and selects the
// streams to play.
package probe

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/pipeline"
	"github.com/user/mediaplay/pkg/ports"
	"github.com/user/mediaplay/pkg/source"
)

// ErrStreamSelection is returned when a configured stream index does not
// exist or has the wrong media type.
var ErrStreamSelection = errors.New("probe: invalid stream selection")

// Stage opens sources through a container registry.
type Stage struct {
	registry *source.Registry
	logger   ports.Logger
}

// NewStage creates a new probe stage.
func NewStage(registry *source.Registry, logger ports.Logger) *Stage {
	return &Stage{
		registry: registry,
		logger:   logger.WithComponent("probe"),
	}
}

// Execute opens the locator and resolves the video and audio selections.
func (s *Stage) Execute(ctx context.Context, input pipeline.ProbeInput) (pipeline.ProbeResult, error) {
	result := pipeline.ProbeResult{VideoStream: -1, AudioStream: -1}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	src, err := source.Open(input.Locator,
		source.WithRegistry(s.registry),
		source.WithLogger(s.logger),
		source.WithProbePackets(input.ProbePackets),
	)
	if err != nil {
		return result, err
	}

	video, err := selectStream(src, av.MediaTypeVideo, input.VideoStream)
	if err != nil {
		src.Close()
		return result, err
	}
	audio, err := selectStream(src, av.MediaTypeAudio, input.AudioStream)
	if err != nil {
		src.Close()
		return result, err
	}

	result.Source = src
	result.Format = src.Format()
	result.Streams = src.Streams()
	result.VideoStream = video
	result.AudioStream = audio
	s.logger.Debug("Selected video stream %d and audio stream %d", video, audio)
	return result, nil
}

func selectStream(src *source.Source, t av.MediaType, want int) (int, error) {
	switch want {
	case pipeline.StreamOff:
		return -1, nil
	case pipeline.StreamAuto:
		return BestStream(src.Streams(), t), nil
	}
	st, ok := src.Stream(want)
	if !ok {
		return -1, fmt.Errorf("%w: no stream %d", ErrStreamSelection, want)
	}
	if st.Type != t {
		return -1, fmt.Errorf("%w: stream %d is %s, want %s", ErrStreamSelection, want, st.Type, t)
	}
	return want, nil
}

// BestStream picks the stream of type t with a known codec and the most
// pixels (video) or channels and sample rate (audio). The first stream wins
// ties. It returns -1 when there is no stream of that type.
func BestStream(streams []av.StreamInfo, t av.MediaType) int {
	best, bestScore := -1, int64(-1)
	for _, st := range streams {
		if st.Type != t {
			continue
		}
		var score int64
		if st.Codec != av.CodecUnknown {
			score = 1
			switch t {
			case av.MediaTypeVideo:
				score += int64(st.Width) * int64(st.Height)
			case av.MediaTypeAudio:
				score += int64(st.Channels) * int64(st.SampleRate)
			}
		}
		if score > bestScore {
			best, bestScore = st.Index, score
		}
	}
	return best
}
