// Package alerts turns a stream of whale alert emissions into a
// presentable, deduplicated, time-bounded list. It knows nothing about
// detection thresholds; it is a pure presentation buffer.
package alerts

import (
	"sync"
	"time"

	"bookwatch/internal/domain"
)

const (
	// DefaultVisible is how many alerts are shown concurrently.
	DefaultVisible = 3

	// DefaultRetained bounds the dedup memory.
	DefaultRetained = 10

	// DefaultTTL is how long an accepted alert stays visible without
	// further events.
	DefaultTTL = 5 * time.Second
)

// Config tunes the surface's presentation bounds.
type Config struct {
	Visible  int
	Retained int
	TTL      time.Duration
}

// DefaultConfig returns the standard presentation bounds.
func DefaultConfig() Config {
	return Config{Visible: DefaultVisible, Retained: DefaultRetained, TTL: DefaultTTL}
}

type entry struct {
	alert     domain.WhaleAlert
	expiresAt time.Time
	dismissed bool
}

// Surface holds the deduplicated, auto-expiring alert list. Expiry is
// evaluated lazily against the injected clock, so no timer goroutines are
// needed and tests control time directly.
type Surface struct {
	mu      sync.Mutex
	cfg     Config
	entries []entry // newest first
	now     func() time.Time
}

// New creates a Surface with the given bounds. Zero fields fall back to
// the defaults.
func New(cfg Config) *Surface {
	if cfg.Visible <= 0 {
		cfg.Visible = DefaultVisible
	}
	if cfg.Retained <= 0 {
		cfg.Retained = DefaultRetained
	}
	if cfg.Retained < cfg.Visible {
		cfg.Retained = cfg.Visible
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Surface{cfg: cfg, now: time.Now}
}

// Push accepts an alert unless one with the same ID is already retained.
// Accepted alerts are prepended and expire after the configured TTL.
// It reports whether the alert was accepted.
func (s *Surface) Push(alert domain.WhaleAlert) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.alert.ID == alert.ID {
			return false
		}
	}

	e := entry{alert: alert, expiresAt: s.now().Add(s.cfg.TTL)}
	s.entries = append([]entry{e}, s.entries...)
	if len(s.entries) > s.cfg.Retained {
		s.entries = s.entries[:s.cfg.Retained]
	}
	return true
}

// Dismiss removes the alert with the given ID from the visible list
// immediately. The ID stays in dedup memory until it ages out of
// retention.
func (s *Surface) Dismiss(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.entries {
		if s.entries[i].alert.ID == id {
			s.entries[i].dismissed = true
			return
		}
	}
}

// Visible returns the currently presentable alerts, newest first, capped
// at the visible bound. Expired and dismissed alerts are excluded.
func (s *Surface) Visible() []domain.WhaleAlert {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]domain.WhaleAlert, 0, s.cfg.Visible)
	for _, e := range s.entries {
		if e.dismissed || now.After(e.expiresAt) {
			continue
		}
		out = append(out, e.alert)
		if len(out) == s.cfg.Visible {
			break
		}
	}
	return out
}
