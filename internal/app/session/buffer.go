package session

import "github.com/pion/webrtc/v4"

// candidateBuffer holds remote candidates that arrived before any remote
// descriptor was applied. It is only touched from the session loop.
type candidateBuffer struct {
	items []webrtc.ICECandidateInit
}

func (b *candidateBuffer) push(c webrtc.ICECandidateInit) {
	b.items = append(b.items, c)
}

func (b *candidateBuffer) len() int { return len(b.items) }

// flush empties the buffer first, then applies every candidate in arrival
// order. A failing candidate does not stop the rest.
func (b *candidateBuffer) flush(apply func(webrtc.ICECandidateInit) error) []error {
	items := b.items
	b.items = nil
	var errs []error
	for _, c := range items {
		if err := apply(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (b *candidateBuffer) reset() { b.items = nil }
