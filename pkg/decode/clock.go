package decode

import "time"

// NominalInterval is the frame spacing used for frames without a
// presentation timestamp.
const NominalInterval = 32 * time.Millisecond

// Clock abstracts wall-clock time so pacing can be tested.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the real clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

var _ Clock = SystemClock{}
