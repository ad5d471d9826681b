// Package filesink writes decoded frames to files: periodic video snapshots
// and a WAV file for audio.
package filesink

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/user/mediaplay/pkg/av"
	"github.com/user/mediaplay/pkg/ports"
)

// SnapshotOptions configures a SnapshotSink.
type SnapshotOptions struct {
	// Every keeps one frame out of Every. Values below 1 keep every frame.
	Every int
	// MaxWidth scales snapshots down to this width. 0 keeps the native size.
	MaxWidth int
	Format   ports.ImageFormat
	Quality  int
	// Label is drawn as the first overlay line when set.
	Label string
}

// SnapshotSink renders every Nth video frame to an image file named
// <stream>_<pts><ext> under its directory.
type SnapshotSink struct {
	dir      string
	fs       ports.FileSystem
	renderer ports.FrameRenderer
	opts     SnapshotOptions

	seen    int
	written []string
}

// NewSnapshot creates a snapshot sink writing under dir.
func NewSnapshot(dir string, fs ports.FileSystem, renderer ports.FrameRenderer, opts SnapshotOptions) (*SnapshotSink, error) {
	if err := fs.MkdirAll(dir); err != nil {
		return nil, fmt.Errorf("filesink: create %s: %w", dir, err)
	}
	if opts.Every < 1 {
		opts.Every = 1
	}
	if opts.Quality <= 0 {
		opts.Quality = 85
	}
	return &SnapshotSink{dir: dir, fs: fs, renderer: renderer, opts: opts}, nil
}

// WriteVideo saves the frame if it falls on the snapshot interval.
func (s *SnapshotSink) WriteVideo(frame *av.Frame) error {
	n := s.seen
	s.seen++
	if n%s.opts.Every != 0 {
		return nil
	}

	img, err := s.renderer.Render(frame, s.opts.MaxWidth, ports.Overlay{Lines: s.overlay(frame, n)})
	if err != nil {
		return fmt.Errorf("filesink: render frame %d: %w", n, err)
	}
	data, err := s.renderer.EncodeImage(img, s.opts.Format, s.opts.Quality)
	if err != nil {
		return fmt.Errorf("filesink: encode frame %d: %w", n, err)
	}
	path := filepath.Join(s.dir, snapshotName(frame, n, s.opts.Format))
	if err := s.fs.WriteFile(path, data); err != nil {
		return err
	}
	s.written = append(s.written, path)
	return nil
}

// Files returns the paths written so far.
func (s *SnapshotSink) Files() []string {
	return s.written
}

func (s *SnapshotSink) Close() error {
	return nil
}

func (s *SnapshotSink) overlay(frame *av.Frame, n int) []string {
	var lines []string
	if s.opts.Label != "" {
		lines = append(lines, s.opts.Label)
	}
	lines = append(lines, fmt.Sprintf("#%d stream %d", n, frame.StreamIndex))
	if frame.HasPTS() {
		lines = append(lines, fmt.Sprintf("pts %d (%s)", frame.PTS, formatTimestamp(frame.TimeBase.Duration(frame.PTS))))
	} else {
		lines = append(lines, "pts none")
	}
	return lines
}

// snapshotName uses the pts when present and the frame number otherwise.
func snapshotName(frame *av.Frame, n int, format ports.ImageFormat) string {
	if frame.HasPTS() {
		return fmt.Sprintf("%d_%010d%s", frame.StreamIndex, frame.PTS, format.Ext())
	}
	return fmt.Sprintf("%d_n%06d%s", frame.StreamIndex, n, format.Ext())
}

// formatTimestamp renders d as HH:MM:SS.mmm.
func formatTimestamp(d time.Duration) string {
	neg := d < 0
	if neg {
		d = -d
	}
	ms := d.Milliseconds()
	s := fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
	if neg {
		return "-" + s
	}
	return s
}

var _ ports.VideoSink = (*SnapshotSink)(nil)
