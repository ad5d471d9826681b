package source

import (
	"fmt"
	"io"

	"github.com/user/mediaplay/pkg/av"
)

// Dump writes a human-readable stream table.
func (s *Source) Dump(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Input %s, from '%s':\n", s.format, s.locator); err != nil {
		return err
	}
	for _, st := range s.streams {
		line := fmt.Sprintf("  Stream #%d: %s: %s", st.Index, st.Type, codecName(st.Codec))
		switch st.Type {
		case av.MediaTypeVideo:
			line += fmt.Sprintf(", %dx%d", st.Width, st.Height)
			if st.PixelFormat != av.PixelFormatNone {
				line += ", " + st.PixelFormat.String()
			}
		case av.MediaTypeAudio:
			line += fmt.Sprintf(", %d Hz, %d channels", st.SampleRate, st.Channels)
			if st.SampleFormat != av.SampleFormatNone {
				line += ", " + st.SampleFormat.String()
			}
		}
		line += fmt.Sprintf(", tb %s", st.TimeBase)
		if st.Duration > 0 && st.TimeBase.Valid() {
			line += fmt.Sprintf(", duration %s", st.TimeBase.Duration(st.Duration))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func codecName(id av.CodecID) string {
	if id == av.CodecUnknown {
		return "unknown"
	}
	return string(id)
}
