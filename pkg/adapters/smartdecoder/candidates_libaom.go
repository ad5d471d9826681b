//go:build libaom

package smartdecoder

import "github.com/user/mediaplay/pkg/adapters/av1decoder"

func init() {
	optionalCandidates = append(optionalCandidates, func(Options) Candidate {
		return Candidate{Backend: BackendLibaom, Factory: av1decoder.New()}
	})
}
