// Package relay implements the push stage: compressed packets are read in
// container order, paced against the pacing stream's timestamps and
// remultiplexed to an output target without decoding.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/mediaplay/pkg/decode"
	"github.com/user/mediaplay/pkg/pipeline"
	"github.com/user/mediaplay/pkg/ports"
	"github.com/user/mediaplay/pkg/source"
)

// ErrNoMuxer is returned when no muxer accepts the target.
var ErrNoMuxer = errors.New("relay: no muxer for target")

// Option configures a Stage.
type Option func(*Stage)

// WithClock sets the clock used for pacing.
func WithClock(c decode.Clock) Option {
	return func(s *Stage) { s.clock = c }
}

// Stage relays packets to the first muxer that accepts the target.
type Stage struct {
	muxers []ports.Muxer
	clock  decode.Clock
	logger ports.Logger
}

// NewStage creates a new relay stage.
func NewStage(muxers []ports.Muxer, logger ports.Logger, opts ...Option) *Stage {
	s := &Stage{
		muxers: muxers,
		clock:  decode.SystemClock{},
		logger: logger.WithComponent("relay"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute relays until the source ends, MaxPackets were written or ctx is
// done.
func (s *Stage) Execute(ctx context.Context, input pipeline.RelayInput) (pipeline.RelayResult, error) {
	result := pipeline.RelayResult{}

	var muxer ports.Muxer
	for _, m := range s.muxers {
		if m.Accepts(input.Target) {
			muxer = m
			break
		}
	}
	if muxer == nil {
		return result, fmt.Errorf("%w: %s", ErrNoMuxer, input.Target)
	}
	result.Muxer = muxer.Name()

	src := input.Source
	out, err := muxer.Create(ctx, input.Target, src.Streams())
	if err != nil {
		return result, fmt.Errorf("create output: %w", err)
	}
	s.logger.Info("Relaying %s to %s (%s)", src.Locator(), input.Target, muxer.Name())

	pace, hasPace := src.Stream(input.PaceStream)
	var start time.Time
	for input.MaxPackets <= 0 || result.Packets < int64(input.MaxPackets) {
		if err := ctx.Err(); err != nil {
			out.Close()
			return result, err
		}
		pkt, err := src.ReadPacket()
		if errors.Is(err, source.ErrEndOfStream) {
			break
		}
		if err != nil {
			out.Close()
			return result, fmt.Errorf("read packet: %w", err)
		}
		if start.IsZero() {
			start = s.clock.Now()
		}

		if hasPace && pkt.StreamIndex == pace.Index {
			if !pkt.HasPTS() || !pace.TimeBase.Valid() {
				s.clock.Sleep(decode.NominalInterval)
			} else if d := start.Add(pace.TimeBase.Duration(pkt.PTS)).Sub(s.clock.Now()); d > 0 {
				s.clock.Sleep(d)
			}
		}

		if !out.Supports(pkt.StreamIndex) {
			result.Skipped++
			continue
		}
		if err := out.WritePacket(pkt); err != nil {
			out.Close()
			return result, fmt.Errorf("write packet: %w", err)
		}
		result.Packets++
		result.Bytes += int64(len(pkt.Data))
	}

	if err := out.Close(); err != nil {
		return result, fmt.Errorf("close output: %w", err)
	}
	if !start.IsZero() {
		result.Duration = s.clock.Now().Sub(start)
	}
	s.logger.Debug("Relayed %d packets (%d bytes), skipped %d", result.Packets, result.Bytes, result.Skipped)
	return result, nil
}
