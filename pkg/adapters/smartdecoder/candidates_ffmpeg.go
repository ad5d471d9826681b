//go:build ffmpeg

package smartdecoder

import "github.com/user/mediaplay/pkg/adapters/avcodec"

func init() {
	optionalCandidates = append(optionalCandidates, func(opts Options) Candidate {
		return Candidate{Backend: BackendLibav, Factory: avcodec.New(opts.Threads)}
	})
}
