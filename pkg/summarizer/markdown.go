package summarizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/ideamans/go-l10n"
)

// MarkdownFormatter renders a Summary as a Markdown report.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a new MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format implements the Formatter interface.
func (f *MarkdownFormatter) Format(s *Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", l10n.T("Run Summary"))
	fmt.Fprintf(&b, "- %s: %s\n", l10n.T("Generated"), s.GeneratedAt.Format(time.RFC3339))
	if s.Command != "" {
		fmt.Fprintf(&b, "- %s: %s\n", l10n.T("Command"), s.Command)
	}
	if s.RunID != "" {
		fmt.Fprintf(&b, "- %s: `%s`\n", l10n.T("Run ID"), s.RunID)
	}
	fmt.Fprintf(&b, "- %s: %s (%s)\n", l10n.T("Source"), s.Source.Locator, orNone(s.Source.Format))

	if len(s.Streams) > 0 {
		fmt.Fprintf(&b, "\n## %s\n\n", l10n.T("Streams"))
		fmt.Fprintf(&b, "| # | %s | %s | %s |\n", l10n.T("Type"), l10n.T("Codec"), l10n.T("Details"))
		b.WriteString("|---|---|---|---|\n")
		for _, st := range s.Streams {
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", st.Index, st.Type, orNone(st.Codec), st.Detail)
		}
	}

	if len(s.Playback) > 0 {
		fmt.Fprintf(&b, "\n## %s\n\n", l10n.T("Playback"))
		fmt.Fprintf(&b, "| %s | # | %s | %s | %s | %s | %s | %s |\n",
			l10n.T("Stream"), l10n.T("Codec"), l10n.T("Backend"),
			l10n.T("Packets"), l10n.T("Frames"), l10n.T("Late"), l10n.T("Max Lateness"))
		b.WriteString("|---|---|---|---|---|---|---|---|\n")
		for _, p := range s.Playback {
			if p.Error != "" {
				fmt.Fprintf(&b, "| %s | %d | %s | %s | - | - | - | - |\n",
					p.Kind, p.Index, orNone(p.Codec), l10n.F("Failed: %s", p.Error))
				continue
			}
			fmt.Fprintf(&b, "| %s | %d | %s | %s | %d | %d | %d | %s |\n",
				p.Kind, p.Index, orNone(p.Codec), orNone(p.Backend), p.Packets, p.Frames, p.Late, formatDuration(p.MaxLate))
		}
	}

	if r := s.Routing; r != nil {
		fmt.Fprintf(&b, "\n## %s\n\n", l10n.T("Packet Routing"))
		fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", l10n.T("Item"), l10n.T("Value"))
		fmt.Fprintf(&b, "| %s | %d |\n", l10n.T("Packets Read"), r.Read)
		fmt.Fprintf(&b, "| %s | %d |\n", l10n.T("Packets Delivered"), r.Returned)
		fmt.Fprintf(&b, "| %s | %d |\n", l10n.T("Packets Discarded"), r.Discarded)
		fmt.Fprintf(&b, "| %s | %s |\n", l10n.T("Wall Time"), formatDuration(r.Duration))
	}

	if r := s.Relay; r != nil {
		fmt.Fprintf(&b, "\n## %s\n\n", l10n.T("Relay"))
		fmt.Fprintf(&b, "| %s | %s |\n|---|---|\n", l10n.T("Item"), l10n.T("Value"))
		fmt.Fprintf(&b, "| %s | %s |\n", l10n.T("Target"), r.Target)
		fmt.Fprintf(&b, "| %s | %s |\n", l10n.T("Muxer"), orNone(r.Muxer))
		fmt.Fprintf(&b, "| %s | %d |\n", l10n.T("Packets"), r.Packets)
		fmt.Fprintf(&b, "| %s | %s |\n", l10n.T("Bytes"), formatBytes(r.Bytes))
		fmt.Fprintf(&b, "| %s | %d |\n", l10n.T("Skipped"), r.Skipped)
		fmt.Fprintf(&b, "| %s | %s |\n", l10n.T("Wall Time"), formatDuration(r.Duration))
	}

	if len(s.Outputs) > 0 {
		fmt.Fprintf(&b, "\n## %s\n\n", l10n.T("Outputs"))
		for _, p := range s.Outputs {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	fmt.Fprintf(&b, "\n---\n%s mediaplay\n", l10n.T("Generated by"))
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return l10n.T("None")
	}
	return s
}

// formatDuration rounds to milliseconds.
func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

func formatBytes(n int64) string {
	switch {
	case n >= 1024*1024:
		return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
	case n >= 1024:
		return fmt.Sprintf("%.2f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
