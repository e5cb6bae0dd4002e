package alerts

import (
	"fmt"
	"testing"
	"time"

	"bookwatch/internal/domain"
)

func alert(id string) domain.WhaleAlert {
	return domain.WhaleAlert{ID: id, Symbol: "BTCUSDT", Price: 100, Quantity: 10}
}

func newTestSurface(cfg Config) (*Surface, *time.Time) {
	s := New(cfg)
	now := time.UnixMilli(1_000_000)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestPushDedup(t *testing.T) {
	s, _ := newTestSurface(DefaultConfig())

	if !s.Push(alert("a")) {
		t.Fatal("first push rejected")
	}
	if s.Push(alert("a")) {
		t.Fatal("duplicate ID accepted")
	}
	if got := len(s.Visible()); got != 1 {
		t.Fatalf("visible got %d want 1", got)
	}
}

func TestVisibleCapAndOrder(t *testing.T) {
	s, _ := newTestSurface(Config{Visible: 3, Retained: 10, TTL: time.Minute})

	for i := 0; i < 5; i++ {
		s.Push(alert(fmt.Sprintf("a%d", i)))
	}

	vis := s.Visible()
	if len(vis) != 3 {
		t.Fatalf("visible got %d want 3", len(vis))
	}
	// Newest first.
	for i, want := range []string{"a4", "a3", "a2"} {
		if vis[i].ID != want {
			t.Fatalf("index %d got %s want %s", i, vis[i].ID, want)
		}
	}
}

func TestRetainedBoundAllowsReemission(t *testing.T) {
	s, _ := newTestSurface(Config{Visible: 3, Retained: 4, TTL: time.Minute})

	for i := 0; i < 5; i++ {
		s.Push(alert(fmt.Sprintf("a%d", i)))
	}
	// a0 has aged out of retention, so its ID may be accepted again.
	if !s.Push(alert("a0")) {
		t.Fatal("ID evicted from retention should be accepted")
	}
	// a4 is still retained.
	if s.Push(alert("a4")) {
		t.Fatal("retained ID must stay deduplicated")
	}
}

func TestAutoExpire(t *testing.T) {
	s, now := newTestSurface(Config{Visible: 3, Retained: 10, TTL: 5 * time.Second})

	s.Push(alert("a"))
	if len(s.Visible()) != 1 {
		t.Fatal("alert should be visible")
	}

	*now = now.Add(6 * time.Second)
	if len(s.Visible()) != 0 {
		t.Fatal("alert should have expired")
	}
}

func TestDismiss(t *testing.T) {
	s, _ := newTestSurface(DefaultConfig())

	s.Push(alert("a"))
	s.Push(alert("b"))
	s.Dismiss("a")

	vis := s.Visible()
	if len(vis) != 1 || vis[0].ID != "b" {
		t.Fatalf("visible after dismiss: %+v", vis)
	}

	// Dismissed IDs remain deduplicated while retained.
	if s.Push(alert("a")) {
		t.Fatal("dismissed but retained ID accepted")
	}
}

func TestZeroConfigDefaults(t *testing.T) {
	s := New(Config{})
	if s.cfg.Visible != DefaultVisible || s.cfg.Retained != DefaultRetained || s.cfg.TTL != DefaultTTL {
		t.Fatalf("defaults not applied: %+v", s.cfg)
	}
}
