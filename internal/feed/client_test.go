package feed

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"bookwatch/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestBackoffSchedule(t *testing.T) {
	// The spec'd sequence: 1000, 2000, 4000, 8000, 16000 ms, capped at 30000.
	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
	}
	for retry, w := range want {
		if got := backoffFor(retry, DefaultBackoffBase, DefaultBackoffCap); got != w {
			t.Fatalf("retry %d got %v want %v", retry, got, w)
		}
	}
	if got := backoffFor(5, DefaultBackoffBase, DefaultBackoffCap); got != DefaultBackoffCap {
		t.Fatalf("retry 5 got %v want cap %v", got, DefaultBackoffCap)
	}
	if got := backoffFor(50, DefaultBackoffBase, DefaultBackoffCap); got != DefaultBackoffCap {
		t.Fatalf("large retry got %v want cap %v", got, DefaultBackoffCap)
	}
}

func TestStreamURL(t *testing.T) {
	c := New(Config{BaseURL: "wss://stream.example.com:9443", Symbol: "BTCUSDT"}, testLogger())
	got := c.streamURL()
	want := "wss://stream.example.com:9443/stream?streams=btcusdt@depth20@100ms/btcusdt@aggTrade"
	if got != want {
		t.Fatalf("url got %s want %s", got, want)
	}
}

// closingServer upgrades each connection and closes it immediately,
// forcing the client through its reconnect path.
func closingServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func collectStatuses(c *Client, until domain.Status, timeout time.Duration) []domain.Status {
	var got []domain.Status
	deadline := time.After(timeout)
	for {
		select {
		case s := <-c.Status():
			got = append(got, s)
			if s == until {
				return got
			}
		case <-deadline:
			return got
		}
	}
}

// failAfterFirstServer upgrades the first connection and closes it
// immediately, then refuses every later upgrade. The retry counter resets
// on each successful open, so only consecutive dial failures can drain the
// budget.
func failAfterFirstServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	var accepted atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if accepted.Swap(true) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestReconnectUntilRetriesExhausted(t *testing.T) {
	srv := failAfterFirstServer(t)

	c := New(Config{
		BaseURL:     wsURL(srv),
		Symbol:      "BTCUSDT",
		MaxRetries:  2,
		BackoffBase: 5 * time.Millisecond,
		BackoffCap:  50 * time.Millisecond,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	got := collectStatuses(c, domain.StatusError, 5*time.Second)
	if len(got) == 0 || got[len(got)-1] != domain.StatusError {
		t.Fatalf("expected terminal error status, got %v", got)
	}
	if got[0] != domain.StatusConnecting {
		t.Fatalf("first status got %v want connecting", got[0])
	}

	var connects, reconnects int
	for _, s := range got {
		switch s {
		case domain.StatusConnected:
			connects++
		case domain.StatusConnecting:
			reconnects++
		}
	}
	// One successful open, then the initial reconnect plus two budgeted
	// retries, each a consecutive failure.
	if connects != 1 {
		t.Fatalf("connected transitions got %d want 1 (%v)", connects, got)
	}
	if reconnects != 3 {
		t.Fatalf("connecting transitions got %d want 3 (%v)", reconnects, got)
	}
}

func TestStatusBufferKeepsNewestTransition(t *testing.T) {
	c := New(Config{BaseURL: "wss://stream.example.com", Symbol: "BTCUSDT"}, testLogger())

	// Overrun the buffer with no consumer, then emit the terminal status.
	for i := 0; i < statusBufferSize+4; i++ {
		c.emitStatus(domain.StatusConnecting)
	}
	c.emitStatus(domain.StatusError)

	var last domain.Status
	for {
		select {
		case s := <-c.Status():
			last = s
		default:
			if last != domain.StatusError {
				t.Fatalf("newest transition lost, last drained %v", last)
			}
			return
		}
	}
}

func TestConnectIdempotent(t *testing.T) {
	upgrader := websocket.Upgrader{}
	hold := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		<-hold
		_ = conn.Close()
	}))
	defer srv.Close()
	defer close(hold)

	c := New(Config{BaseURL: wsURL(srv), Symbol: "BTCUSDT", BackoffBase: time.Millisecond}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("second connect must be a no-op, got %v", err)
	}

	got := collectStatuses(c, domain.StatusConnected, 5*time.Second)
	if got[len(got)-1] != domain.StatusConnected {
		t.Fatalf("never connected: %v", got)
	}

	// Exactly one connecting transition despite two Connect calls.
	var connecting int
	for _, s := range got {
		if s == domain.StatusConnecting {
			connecting++
		}
	}
	if connecting != 1 {
		t.Fatalf("connecting transitions got %d want 1 (%v)", connecting, got)
	}

	c.Disconnect()
	if err := c.Connect(ctx); err != domain.ErrFeedClosed {
		t.Fatalf("connect after disconnect got %v want ErrFeedClosed", err)
	}
}

func TestDisconnectCancelsPendingRetry(t *testing.T) {
	srv := closingServer(t)

	c := New(Config{
		BaseURL:     wsURL(srv),
		Symbol:      "BTCUSDT",
		MaxRetries:  5,
		BackoffBase: 300 * time.Millisecond,
		BackoffCap:  time.Second,
	}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// Wait for the reconnect to be scheduled: connecting, connected, connecting.
	var seen []domain.Status
	deadline := time.After(5 * time.Second)
	for {
		var s domain.Status
		select {
		case s = <-c.Status():
		case <-deadline:
			t.Fatalf("no reconnect scheduled, statuses: %v", seen)
		}
		seen = append(seen, s)
		if len(seen) >= 3 && s == domain.StatusConnecting {
			break
		}
	}

	// Disconnect while the backoff timer is pending.
	c.Disconnect()

	if s := <-c.Status(); s != domain.StatusDisconnected {
		t.Fatalf("status after disconnect got %v want disconnected", s)
	}

	// No further transitions: the pending retry was cancelled.
	select {
	case s := <-c.Status():
		t.Fatalf("unexpected status after disconnect: %v", s)
	case <-time.After(700 * time.Millisecond):
	}
}

func TestDeliversEvents(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		frames := []string{
			`{"lastUpdateId":1,"bids":[["100","2"],["99","1"]],"asks":[["101","2"]]}`,
			`this frame is garbage and must be dropped`,
			`{"e":"aggTrade","p":"101","q":"5","T":1700000000000,"m":false}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Keep the connection open long enough for the client to drain.
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: wsURL(srv), Symbol: "BTCUSDT"}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Disconnect()

	var depth, trades int
	deadline := time.After(5 * time.Second)
	for depth == 0 || trades == 0 {
		select {
		case ev := <-c.Events():
			if ev.Depth != nil {
				depth++
				if len(ev.Depth.Bids) != 2 {
					t.Fatalf("depth bids got %d want 2", len(ev.Depth.Bids))
				}
			}
			if ev.Trade != nil {
				trades++
				if ev.Trade.Taker != domain.TakerBuy {
					t.Fatalf("taker got %s want buy", ev.Trade.Taker)
				}
			}
		case <-deadline:
			t.Fatalf("events not delivered: depth=%d trades=%d", depth, trades)
		}
	}
}
