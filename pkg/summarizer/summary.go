// Package summarizer provides summary generation for playback and relay
// runs.
package summarizer

import (
	"fmt"
	"time"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/orchestrator"
	"github.com/user/mediaplay/pkg/pipeline"
)

// Summary contains all data collected during one run.
type Summary struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string
	Command     string

	// Source information
	Source  SourceInfo
	Streams []StreamInfo

	// Playback results, one row per played stream
	Playback []PlaybackInfo
	Routing  *RoutingInfo

	// Relay results
	Relay *RelayInfo

	// Files written
	Outputs []string
}

// SourceInfo describes the opened source.
type SourceInfo struct {
	Locator string
	Format  string
}

// StreamInfo is one row of the stream table.
type StreamInfo struct {
	Index  int
	Type   string
	Codec  string
	Detail string // dimensions or sample layout
}

// PlaybackInfo contains the statistics of one played stream.
type PlaybackInfo struct {
	Kind    string // "video" or "audio"
	Index   int
	Codec   string
	Backend string
	Packets int64
	Frames  int64
	Late    int64
	MaxLate time.Duration
	Error   string
}

// RoutingInfo contains packet router counters.
type RoutingInfo struct {
	Read      int64
	Returned  int64
	Discarded int64
	Duration  time.Duration
}

// RelayInfo contains relay statistics.
type RelayInfo struct {
	Target   string
	Muxer    string
	Packets  int64
	Bytes    int64
	Skipped  int64
	Duration time.Duration
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithRun sets the run identity.
func (b *Builder) WithRun(id, command string) *Builder {
	b.summary.RunID = id
	b.summary.Command = command
	return b
}

// WithSource sets source information and the stream table.
func (b *Builder) WithSource(locator, format string, streams []av.StreamInfo) *Builder {
	b.summary.Source = SourceInfo{Locator: locator, Format: format}
	b.summary.Streams = b.summary.Streams[:0]
	for _, st := range streams {
		b.summary.Streams = append(b.summary.Streams, StreamInfo{
			Index:  st.Index,
			Type:   st.Type.String(),
			Codec:  string(st.Codec),
			Detail: streamDetail(st),
		})
	}
	return b
}

// WithPlay sets playback statistics.
func (b *Builder) WithPlay(result *pipeline.PlayResult) *Builder {
	if result == nil {
		return b
	}
	b.summary.Playback = nil
	if result.Video != nil {
		b.summary.Playback = append(b.summary.Playback, playbackRow("video", result.Video))
	}
	if result.Audio != nil {
		b.summary.Playback = append(b.summary.Playback, playbackRow("audio", result.Audio))
	}
	b.summary.Routing = &RoutingInfo{
		Read:      result.Routing.Read,
		Returned:  result.Routing.Returned,
		Discarded: result.Routing.Discarded,
		Duration:  result.Duration,
	}
	return b
}

// WithRelay sets relay statistics.
func (b *Builder) WithRelay(target string, result *pipeline.RelayResult) *Builder {
	if result == nil {
		return b
	}
	b.summary.Relay = &RelayInfo{
		Target:   target,
		Muxer:    result.Muxer,
		Packets:  result.Packets,
		Bytes:    result.Bytes,
		Skipped:  result.Skipped,
		Duration: result.Duration,
	}
	return b
}

// WithOutputs appends written files.
func (b *Builder) WithOutputs(paths ...string) *Builder {
	b.summary.Outputs = append(b.summary.Outputs, paths...)
	return b
}

// WithResult fills everything an orchestrator run reports.
func (b *Builder) WithResult(command string, config orchestrator.Config, result orchestrator.RunResult) *Builder {
	b.WithRun(result.RunID, command).
		WithSource(config.Locator, result.Format, result.Streams).
		WithPlay(result.Play).
		WithRelay(config.Target, result.Relay).
		WithOutputs(result.Snapshots...)
	if config.PCMPath != "" && result.PCMSamples > 0 {
		b.WithOutputs(config.PCMPath)
	}
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}

func playbackRow(kind string, st *pipeline.StreamStats) PlaybackInfo {
	row := PlaybackInfo{
		Kind:    kind,
		Index:   st.Index,
		Codec:   string(st.Codec),
		Backend: st.Backend,
		Packets: st.Packets,
		Frames:  st.Frames,
		Late:    st.Late,
		MaxLate: st.MaxLate,
	}
	if st.Err != nil {
		row.Error = st.Err.Error()
	}
	return row
}

func streamDetail(st av.StreamInfo) string {
	switch st.Type {
	case av.MediaTypeVideo:
		return fmt.Sprintf("%dx%d", st.Width, st.Height)
	case av.MediaTypeAudio:
		return fmt.Sprintf("%d Hz, %d ch", st.SampleRate, st.Channels)
	}
	return ""
}
