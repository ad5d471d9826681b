package nullsink

import (
	"testing"

	"github.com/user/mediaplay/pkg/av"
)

func TestSink_Counts(t *testing.T) {
	s := New()
	frame := &av.Frame{}
	for i := 0; i < 3; i++ {
		if err := s.WriteVideo(frame); err != nil {
			t.Fatalf("WriteVideo failed: %v", err)
		}
	}
	if err := s.WriteAudio(frame); err != nil {
		t.Fatalf("WriteAudio failed: %v", err)
	}
	if video, audio := s.Counts(); video != 3 || audio != 1 {
		t.Errorf("Counts = %d, %d; want 3, 1", video, audio)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
