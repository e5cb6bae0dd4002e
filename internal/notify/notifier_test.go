package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"bookwatch/internal/domain"
)

type fakeSender struct {
	name   string
	err    error
	titles []string
}

func (f *fakeSender) Send(ctx context.Context, title, message string) error {
	if f.err != nil {
		return f.err
	}
	f.titles = append(f.titles, title)
	return nil
}

func (f *fakeSender) Name() string { return f.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestNotifyFiltersEvents(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, []string{EventWhale}, testLogger())

	if err := n.Notify(context.Background(), EventStatus, "status", "ignored"); err != nil {
		t.Fatalf("filtered notify: %v", err)
	}
	if err := n.Notify(context.Background(), EventWhale, "whale", "delivered"); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(s.titles) != 1 || s.titles[0] != "whale" {
		t.Fatalf("delivered titles: %v", s.titles)
	}
}

func TestNotifyEmptyFilterAllowsAll(t *testing.T) {
	s := &fakeSender{name: "fake"}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	if err := n.Notify(context.Background(), EventStatus, "status", "m"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(s.titles) != 1 {
		t.Fatalf("delivered titles: %v", s.titles)
	}
}

func TestDispatchContinuesPastFailedSender(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("boom")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("expected combined error naming the failed sender, got %v", err)
	}
	if len(good.titles) != 1 {
		t.Fatal("healthy sender skipped after failure")
	}
}

func TestFormatWhale(t *testing.T) {
	title, message := FormatWhale(domain.WhaleAlert{
		ID:       "whale:BTCUSDT:1700000000000:101.00000000",
		Time:     1700000000000,
		Price:    101,
		Quantity: 5.5,
		Side:     domain.TakerSell,
		Symbol:   "BTCUSDT",
	})
	if !strings.Contains(title, "sell") || !strings.Contains(title, "BTCUSDT") {
		t.Fatalf("title: %s", title)
	}
	if !strings.Contains(message, "5.5") || !strings.Contains(message, "101") {
		t.Fatalf("message: %s", message)
	}
}
