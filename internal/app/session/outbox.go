package session

import (
	"context"
	"sync/atomic"
)

type job func(ctx context.Context)

// outbox runs outbound REST calls one at a time, in the order they were
// queued, off the session loop.
type outbox struct {
	jobs *queue[job]
	busy *atomic.Int64
}

func newOutbox(busy *atomic.Int64) *outbox {
	return &outbox{jobs: newQueue[job](), busy: busy}
}

func (o *outbox) push(j job) {
	o.busy.Add(1)
	o.jobs.push(j)
}

// run executes jobs until ctx is done; whatever is still queued then is dropped.
func (o *outbox) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			o.busy.Add(-int64(len(o.jobs.drain())))
			return
		case <-o.jobs.ready():
			for _, j := range o.jobs.drain() {
				if ctx.Err() != nil {
					o.busy.Add(-1)
					continue
				}
				j(ctx)
				o.busy.Add(-1)
			}
		}
	}
}
