package http

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/Glimpse/internal/app/session"
	"github.com/dkeye/Glimpse/internal/config"
	"github.com/dkeye/Glimpse/internal/core"
)

type fakeController struct {
	mu     sync.Mutex
	snap   session.Snapshot
	err    error
	calls  []string
	closed bool
	subs   chan session.Snapshot
}

func (f *fakeController) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) Subscribe(int) (<-chan session.Snapshot, func()) {
	return f.subs, func() {}
}

func (f *fakeController) do(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.err
}

func (f *fakeController) Approve(context.Context) error { return f.do("approve") }
func (f *fakeController) Deny(context.Context) error    { return f.do("deny") }
func (f *fakeController) EndRoom(context.Context) error { return f.do("end") }

func (f *fakeController) Close() {
	f.mu.Lock()
	f.closed = true
	f.snap.Peer = core.PeerDisconnected
	f.mu.Unlock()
}

func newRouter(t *testing.T, ctrl Controller) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return SetupRouter(context.Background(), &config.Config{Mode: "test"}, ctrl)
}

func TestSnapshotEndpoint(t *testing.T) {
	ctrl := &fakeController{snap: session.Snapshot{Peer: core.PeerAwaitingApproval, Channel: core.ChannelConnected}}
	r := newRouter(t, ctrl)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["peer"] != "awaiting_approval" || body["channel"] != "connected" {
		t.Fatalf("body = %v", body)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Fatal("request id header missing")
	}
}

func TestActionEndpoints(t *testing.T) {
	tests := []struct {
		path   string
		err    error
		status int
		call   string
	}{
		{"/api/join/approve", nil, http.StatusOK, "approve"},
		{"/api/join/deny", nil, http.StatusOK, "deny"},
		{"/api/room/end", nil, http.StatusOK, "end"},
		{"/api/join/approve", core.ErrNoPendingRequest, http.StatusConflict, "approve"},
		{"/api/join/deny", core.ErrSessionClosed, http.StatusGone, "deny"},
		{"/api/room/end", context.DeadlineExceeded, http.StatusBadGateway, "end"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ctrl := &fakeController{err: tt.err}
			r := newRouter(t, ctrl)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			req.Header.Set(requestIDHeader, "req-1")
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if len(ctrl.calls) != 1 || ctrl.calls[0] != tt.call {
				t.Fatalf("calls = %v", ctrl.calls)
			}
			if got := w.Header().Get(requestIDHeader); got != "req-1" {
				t.Fatalf("request id = %q", got)
			}
		})
	}
}

func TestCloseEndpoint(t *testing.T) {
	ctrl := &fakeController{}
	r := newRouter(t, ctrl)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/session/close", nil))
	if w.Code != http.StatusAccepted || !ctrl.closed {
		t.Fatalf("status = %d closed = %v", w.Code, ctrl.closed)
	}
	if !strings.Contains(w.Body.String(), `"peer":"disconnected"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestEventsStream(t *testing.T) {
	ctrl := &fakeController{subs: make(chan session.Snapshot, 2)}
	ctrl.subs <- session.Snapshot{Peer: core.PeerConnecting}
	srv := httptest.NewServer(newRouter(t, ctrl))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/session/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	sc := bufio.NewScanner(resp.Body)
	var event, data string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		}
		if data != "" {
			break
		}
	}
	if event != "state" || !strings.Contains(data, `"peer":"connecting"`) {
		t.Fatalf("event = %q data = %q", event, data)
	}
}
