package session

import (
	"sync"

	"github.com/dkeye/Glimpse/internal/core"
	"github.com/dkeye/Glimpse/internal/domain"
)

// Snapshot is a read-only copy of the observable session state.
type Snapshot struct {
	Identity domain.Identity   `json:"identity"`
	Channel  core.ChannelState `json:"channel"`
	Peer     core.PeerState    `json:"peer"`

	// Request is set only while Peer is PeerAwaitingApproval.
	Request *domain.JoinRequest `json:"request,omitempty"`

	// Outstanding is the id returned by our own join, if any.
	Outstanding domain.RequestID `json:"outstanding,omitempty"`
	Version     uint64           `json:"version"`
}

// StateStore has a single writer (the session loop) and any number of readers.
type StateStore struct {
	mu   sync.RWMutex
	snap Snapshot
	subs map[int]chan Snapshot
	next int
}

func newStateStore(id domain.Identity) *StateStore {
	return &StateStore{
		snap: Snapshot{Identity: id, Channel: core.ChannelDisconnected, Peer: core.PeerWaiting},
		subs: make(map[int]chan Snapshot),
	}
}

func (st *StateStore) Get() Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.snap
}

// update applies fn and publishes the result when anything changed.
func (st *StateStore) update(fn func(*Snapshot)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	next := st.snap
	fn(&next)
	if sameState(st.snap, next) {
		return
	}
	next.Version = st.snap.Version + 1
	st.snap = next
	for _, ch := range st.subs {
		offer(ch, next)
	}
}

// Subscribe delivers the current snapshot and every later change. A slow
// reader loses intermediate snapshots, never the latest one.
func (st *StateStore) Subscribe(buf int) (<-chan Snapshot, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan Snapshot, buf)
	st.mu.Lock()
	id := st.next
	st.next++
	st.subs[id] = ch
	ch <- st.snap
	st.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			st.mu.Lock()
			delete(st.subs, id)
			st.mu.Unlock()
			close(ch)
		})
	}
}

func offer(ch chan Snapshot, s Snapshot) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func sameState(a, b Snapshot) bool {
	if a.Channel != b.Channel || a.Peer != b.Peer || a.Outstanding != b.Outstanding {
		return false
	}
	if (a.Request == nil) != (b.Request == nil) {
		return false
	}
	return a.Request == nil || *a.Request == *b.Request
}
