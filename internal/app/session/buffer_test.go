package session

import (
	"errors"
	"slices"
	"testing"

	"github.com/pion/webrtc/v4"
)

func TestCandidateBufferFlush(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		reject  string
		applied []string
		errs    int
	}{
		{name: "empty"},
		{name: "arrival order", in: []string{"a", "b", "c"}, applied: []string{"a", "b", "c"}},
		{name: "failure does not stop the rest", in: []string{"a", "b", "c"}, reject: "b", applied: []string{"a", "c"}, errs: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b candidateBuffer
			for _, c := range tt.in {
				b.push(webrtc.ICECandidateInit{Candidate: c})
			}
			if b.len() != len(tt.in) {
				t.Fatalf("len = %d", b.len())
			}

			var applied []string
			errs := b.flush(func(c webrtc.ICECandidateInit) error {
				if c.Candidate == tt.reject {
					return errors.New("rejected")
				}
				applied = append(applied, c.Candidate)
				return nil
			})
			if !slices.Equal(applied, tt.applied) {
				t.Fatalf("applied = %v, want %v", applied, tt.applied)
			}
			if len(errs) != tt.errs {
				t.Fatalf("errs = %v", errs)
			}
			if b.len() != 0 {
				t.Fatalf("buffer not cleared: %d", b.len())
			}
		})
	}
}

func TestCandidateBufferSecondFlushIsEmpty(t *testing.T) {
	var b candidateBuffer
	b.push(webrtc.ICECandidateInit{Candidate: "a"})
	calls := 0
	count := func(webrtc.ICECandidateInit) error { calls++; return nil }
	b.flush(count)
	b.flush(count)
	if calls != 1 {
		t.Fatalf("applied %d times", calls)
	}
}
