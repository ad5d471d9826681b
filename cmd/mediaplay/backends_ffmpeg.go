//go:build ffmpeg

package main

import (
	"github.com/user/mediaplay/pkg/adapters/avformat"
	"github.com/user/mediaplay/pkg/ports"
)

func init() {
	extraOpeners = append(extraOpeners, func(ports.Logger) ports.ContainerOpener {
		return avformat.New()
	})
	extraMuxers = append(extraMuxers, func(log ports.Logger) ports.Muxer {
		return avformat.NewMuxer(log)
	})
}
