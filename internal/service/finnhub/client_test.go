package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// wsServer accepts websocket clients and keeps each accepted conn so a
// test can push frames to the most recent one.
type wsServer struct {
	*httptest.Server
	mu    sync.Mutex
	conns []*websocket.Conn
}

func newWSServer(t *testing.T) *wsServer {
	s := &wsServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *wsServer) wsURL() string { return "ws" + strings.TrimPrefix(s.URL, "http") }

func (s *wsServer) send(t *testing.T, payload string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		var conn *websocket.Conn
		if n := len(s.conns); n > 0 {
			conn = s.conns[n-1]
		}
		s.mu.Unlock()
		if conn != nil {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				t.Fatalf("server write: %v", err)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no client connected")
}

func TestStreamDeliversTrades(t *testing.T) {
	srv := newWSServer(t)
	c := New("key", srv.wsURL(), []string{"AAPL"}, 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
	if err := c.Subscribe(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !c.IsConnected() {
		t.Fatalf("not connected after Connect")
	}

	ticks, errs := c.Read(ctx)
	srv.send(t, `{"type":"trade","data":[{"s":"AAPL","p":187.5,"v":100,"t":1718000000000}]}`)

	select {
	case tk := <-ticks:
		if tk.Ticker != "AAPL" || tk.Price != 187.5 || tk.Volume != 100 {
			t.Fatalf("tick = %+v", tk)
		}
		if tk.Timestamp != 1718000000 {
			t.Fatalf("timestamp = %d, want unix seconds", tk.Timestamp)
		}
	case err := <-errs:
		t.Fatalf("stream error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("no tick delivered")
	}
}

func TestReconnectWhilePingLoopRuns(t *testing.T) {
	srv := newWSServer(t)
	c := New("key", srv.wsURL(), []string{"AAPL"}, time.Millisecond, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	// starts the ping goroutine hammering the connection
	c.Read(ctx)

	for i := 0; i < 5; i++ {
		if err := c.Reconnect(ctx); err != nil {
			t.Fatalf("reconnect %d: %v", i, err)
		}
	}
	if !c.IsConnected() {
		t.Fatalf("expected connected after reconnects")
	}
}
