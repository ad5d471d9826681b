// Package main provides the CLI entry point for mediaplay.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/mediaplay/pkg/adapters/ggrenderer"
	"github.com/user/mediaplay/pkg/adapters/logger"
	"github.com/user/mediaplay/pkg/adapters/mp4container"
	"github.com/user/mediaplay/pkg/adapters/osfilesystem"
	"github.com/user/mediaplay/pkg/adapters/smartdecoder"
	"github.com/user/mediaplay/pkg/adapters/tscontainer"
	"github.com/user/mediaplay/pkg/config"
	"github.com/user/mediaplay/pkg/orchestrator"
	"github.com/user/mediaplay/pkg/pipeline"
	"github.com/user/mediaplay/pkg/ports"
	"github.com/user/mediaplay/pkg/source"
	"github.com/user/mediaplay/pkg/stages/play"
	"github.com/user/mediaplay/pkg/stages/probe"
	"github.com/user/mediaplay/pkg/stages/relay"
	"github.com/user/mediaplay/pkg/summarizer"
)

var version = "dev"

// Backends compiled in through build tags register here.
var (
	extraOpeners []func(log ports.Logger) ports.ContainerOpener
	extraMuxers  []func(log ports.Logger) ports.Muxer
)

// exitInterrupted is the conventional status for a run stopped by SIGINT.
const exitInterrupted = 130

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(exitInterrupted)
		}
		fmt.Fprintln(os.Stderr, l10n.F("Error: %s", err.Error()))
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "mediaplay",
		Usage:   l10n.T("Play, inspect and relay audio/video streams"),
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: l10n.T("YAML configuration file"), Category: l10n.T("Configuration")},
			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Usage: l10n.T("Log level (debug, info, warn, error)"), Category: l10n.T("Logging")},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Usage: l10n.T("Suppress all log output"), Category: l10n.T("Logging")},
			&cli.StringFlag{Name: "ffmpeg-path", Usage: l10n.T("Path to the ffmpeg executable"), Category: l10n.T("Decoder")},
			&cli.StringFlag{Name: "decoder", Usage: l10n.T("Preferred decoder backend (libavcodec, ffmpeg, libaom, jpeg, pcm)"), Category: l10n.T("Decoder")},
		},
		Commands: []*cli.Command{
			probeCommand(),
			playCommand(),
			pushCommand(),
			versionCommand(),
		},
	}
}

func probePacketsFlag() cli.Flag {
	return &cli.IntFlag{Name: "probe-packets", Usage: l10n.T("Packets read while probing stream parameters"), Category: l10n.T("Input")}
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     l10n.T("Show the streams of a media source"),
		ArgsUsage: "<locator>",
		Flags:     []cli.Flag{probePacketsFlag()},
		Action: func(c *cli.Context) error {
			return run(c, func(ctx context.Context, orch *orchestrator.Orchestrator, cfg config.Config, log ports.Logger) error {
				_, err := orch.Probe(ctx, cfg.ToOrchestratorConfig(), os.Stdout)
				return err
			})
		},
	}
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     l10n.T("Decode a media source in real time into snapshots and PCM"),
		ArgsUsage: "<locator>",
		Flags: []cli.Flag{
			probePacketsFlag(),
			&cli.IntFlag{Name: "max-frames", Usage: l10n.T("Stop each stream after this many frames (0 = play to the end)"), Category: l10n.T("Input")},

			&cli.IntFlag{Name: "video-stream", Usage: l10n.T("Video stream index (default: best stream)"), Category: l10n.T("Video")},
			&cli.BoolFlag{Name: "no-video", Usage: l10n.T("Do not play video"), Category: l10n.T("Video")},
			&cli.StringFlag{Name: "pixel-format", Usage: l10n.T("Output pixel format (yuv420p, nv12, rgba, bgra, gray)"), Category: l10n.T("Video")},
			&cli.IntFlag{Name: "width", Usage: l10n.T("Output video width"), Category: l10n.T("Video")},
			&cli.IntFlag{Name: "height", Usage: l10n.T("Output video height"), Category: l10n.T("Video")},

			&cli.IntFlag{Name: "audio-stream", Usage: l10n.T("Audio stream index (default: best stream)"), Category: l10n.T("Audio")},
			&cli.BoolFlag{Name: "no-audio", Usage: l10n.T("Do not play audio"), Category: l10n.T("Audio")},
			&cli.StringFlag{Name: "sample-format", Usage: l10n.T("Output sample format (u8, s16, s32, flt, dbl and planar variants)"), Category: l10n.T("Audio")},
			&cli.IntFlag{Name: "sample-rate", Usage: l10n.T("Output sample rate in Hz"), Category: l10n.T("Audio")},
			&cli.IntFlag{Name: "channels", Usage: l10n.T("Output channel count"), Category: l10n.T("Audio")},

			&cli.StringFlag{Name: "snapshot-dir", Aliases: []string{"o"}, Usage: l10n.T("Directory for video snapshots"), Category: l10n.T("Output")},
			&cli.IntFlag{Name: "every", Usage: l10n.T("Save one snapshot every N frames"), Category: l10n.T("Output")},
			&cli.IntFlag{Name: "snapshot-width", Usage: l10n.T("Maximum snapshot width"), Category: l10n.T("Output")},
			&cli.StringFlag{Name: "image-format", Usage: l10n.T("Snapshot image format (jpg, png)"), Category: l10n.T("Output")},
			&cli.IntFlag{Name: "quality", Usage: l10n.T("JPEG quality (1-100)"), Category: l10n.T("Output")},
			&cli.StringFlag{Name: "pcm", Usage: l10n.T("Write decoded audio to this WAV file"), Category: l10n.T("Output")},
			summaryFlag(),
		},
		Action: func(c *cli.Context) error {
			return run(c, func(ctx context.Context, orch *orchestrator.Orchestrator, cfg config.Config, log ports.Logger) error {
				oc := cfg.ToOrchestratorConfig()
				result, err := orch.Play(ctx, oc)
				if err != nil {
					return err
				}
				if len(result.Snapshots) > 0 {
					log.Info("Output saved to %s", filepath.Dir(result.Snapshots[0]))
				}
				writeSummary(c, "play", oc, result, log)
				return nil
			})
		},
	}
}

func pushCommand() *cli.Command {
	return &cli.Command{
		Name:      "push",
		Usage:     l10n.T("Relay a media source to a file or network target without decoding"),
		ArgsUsage: "<locator> <target>",
		Flags: []cli.Flag{
			probePacketsFlag(),
			&cli.IntFlag{Name: "video-stream", Usage: l10n.T("Video stream that paces the relay (default: best stream)"), Category: l10n.T("Video")},
			&cli.IntFlag{Name: "max-packets", Usage: l10n.T("Stop after this many packets (0 = relay to the end)"), Category: l10n.T("Output")},
			summaryFlag(),
		},
		Action: func(c *cli.Context) error {
			return run(c, func(ctx context.Context, orch *orchestrator.Orchestrator, cfg config.Config, log ports.Logger) error {
				if cfg.Relay.Target == "" {
					return errors.New(l10n.T("target argument is required"))
				}
				oc := cfg.ToOrchestratorConfig()
				// every stream is relayed; only the pacing video stream is selected
				oc.AudioStream = pipeline.StreamOff
				result, err := orch.Push(ctx, oc)
				if err != nil {
					return err
				}
				writeSummary(c, "push", oc, result, log)
				return nil
			})
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: l10n.T("Show version information"),
		Action: func(c *cli.Context) error {
			fmt.Println(l10n.F("mediaplay (Go) version %s", version))
			for _, cand := range smartdecoder.Candidates(smartdecoder.Options{}) {
				status := l10n.T("available")
				if cand.Available != nil && !cand.Available() {
					status = l10n.T("not available")
				}
				fmt.Println(l10n.F("  decoder %s: %s", string(cand.Backend), status))
			}
			return nil
		},
	}
}

func summaryFlag() cli.Flag {
	return &cli.StringFlag{Name: "summary", Usage: l10n.T("Output execution summary to file (Markdown format)"), Category: l10n.T("Output")}
}

// writeSummary writes the --summary report. A failure is only logged.
func writeSummary(c *cli.Context, command string, oc orchestrator.Config, result orchestrator.RunResult, log ports.Logger) {
	path := c.String("summary")
	if path == "" {
		return
	}
	summary := summarizer.NewBuilder().WithResult(command, oc, result).Build()
	w := summarizer.NewWriter(summarizer.NewMarkdownFormatter(), osfilesystem.New())
	if err := w.Write(path, summary); err != nil {
		log.Warn("Failed to write summary: %s", err.Error())
		return
	}
	log.Info("Summary saved to %s", path)
}

type action func(ctx context.Context, orch *orchestrator.Orchestrator, cfg config.Config, log ports.Logger) error

// run loads the configuration, wires the adapters and calls fn with a
// context that SIGINT and SIGTERM cancel.
func run(c *cli.Context, fn action) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	var log ports.Logger
	if c.Bool("quiet") {
		log = logger.NewNoop()
	} else {
		log = logger.NewConsole(cfg.LogLevel())
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Warn("Interrupted, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	orch, err := newOrchestrator(cfg, log)
	if err != nil {
		return err
	}
	return fn(ctx, orch, cfg, log)
}

// loadConfig reads --config, applies the command-line overrides and
// validates the result.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	var o config.Config
	o.Input.Locator = c.Args().Get(0)
	o.Input.ProbePackets = c.Int("probe-packets")
	o.Input.MaxFrames = c.Int("max-frames")
	o.Relay.Target = c.Args().Get(1)
	o.Relay.MaxPackets = c.Int("max-packets")

	if c.IsSet("video-stream") {
		i := c.Int("video-stream")
		o.Video.Stream = &i
	}
	if c.Bool("no-video") {
		off := false
		o.Video.Enabled = &off
	}
	o.Video.PixelFormat = c.String("pixel-format")
	o.Video.Width = c.Int("width")
	o.Video.Height = c.Int("height")

	if c.IsSet("audio-stream") {
		i := c.Int("audio-stream")
		o.Audio.Stream = &i
	}
	if c.Bool("no-audio") {
		off := false
		o.Audio.Enabled = &off
	}
	o.Audio.SampleFormat = c.String("sample-format")
	o.Audio.SampleRate = c.Int("sample-rate")
	o.Audio.Channels = c.Int("channels")

	o.Decoder.FFmpegPath = c.String("ffmpeg-path")
	o.Decoder.Prefer = c.String("decoder")

	o.Output.SnapshotDir = c.String("snapshot-dir")
	o.Output.Every = c.Int("every")
	o.Output.SnapshotWidth = c.Int("snapshot-width")
	o.Output.ImageFormat = c.String("image-format")
	o.Output.Quality = c.Int("quality")
	o.Output.PCMPath = c.String("pcm")

	o.Logging.Level = c.String("log-level")

	cfg = cfg.Merge(o)
	if cfg.Input.Locator == "" {
		return cfg, errors.New(l10n.T("locator argument is required"))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newOrchestrator wires the container, codec and muxer backends compiled
// into this binary.
func newOrchestrator(cfg config.Config, log ports.Logger) (*orchestrator.Orchestrator, error) {
	fs := osfilesystem.New()

	var openers []ports.ContainerOpener
	for _, fn := range extraOpeners {
		openers = append(openers, fn(log))
	}
	openers = append(openers, mp4container.New(), tscontainer.New())
	sources := source.NewRegistry(openers...)

	decOpts := smartdecoder.Options{
		FFmpegPath: cfg.Decoder.FFmpegPath,
		Prefer:     smartdecoder.Backend(cfg.Decoder.Prefer),
		Threads:    cfg.Decoder.Threads,
		Logger:     log,
	}
	decoders, err := smartdecoder.NewRegistry(smartdecoder.Candidates(decOpts), decOpts)
	if err != nil {
		return nil, err
	}

	var muxers []ports.Muxer
	for _, fn := range extraMuxers {
		muxers = append(muxers, fn(log))
	}
	muxers = append(muxers, tscontainer.NewMuxer(fs))

	return orchestrator.New(
		probe.NewStage(sources, log),
		play.NewStage(decoders, log),
		relay.NewStage(muxers, log),
		fs,
		ggrenderer.New(),
		log,
	), nil
}
