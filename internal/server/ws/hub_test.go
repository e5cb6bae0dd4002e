package ws

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"bookwatch/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// fakeBus is an in-process SignalBus. publish blocks until at least one
// matching subscription exists, so tests need no sleeps to order subscribe
// before publish.
type fakeBus struct {
	mu   sync.Mutex
	subs map[string][]chan domain.BusMessage
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: make(map[string][]chan domain.BusMessage)}
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	b.publish(channel, payload)
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan domain.BusMessage, error) {
	ch := make(chan domain.BusMessage, 16)
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], ch)
	b.mu.Unlock()
	return ch, nil
}

func (b *fakeBus) publish(channel string, payload []byte) {
	for {
		b.mu.Lock()
		delivered := false
		for pattern, chans := range b.subs {
			if patternMatches(pattern, channel) {
				for _, ch := range chans {
					ch <- domain.BusMessage{Channel: channel, Payload: payload}
				}
				delivered = true
			}
		}
		b.mu.Unlock()
		if delivered {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func patternMatches(pattern, channel string) bool {
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(channel, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == channel
}

func TestBroadcastCarriesConcreteChannel(t *testing.T) {
	bus := newFakeBus()
	h := NewHub(bus, testLogger(), Config{Symbols: []string{"BTCUSDT"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.subscribeToChannel(ctx, "bookwatch:report:*")

	bus.publish("bookwatch:report:BTCUSDT", []byte(`{"symbol":"BTCUSDT"}`))

	select {
	case msg := <-h.broadcast:
		if msg.channel != "bookwatch:report:BTCUSDT" {
			t.Fatalf("broadcast tagged %q want the concrete publish channel", msg.channel)
		}
		// A client narrowed to one symbol must match the broadcast.
		c := &client{subs: map[string]bool{"bookwatch:report:BTCUSDT": true}}
		if !c.isSubscribed(msg.channel) {
			t.Fatal("narrowed client does not match the broadcast channel")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no broadcast forwarded from the bus")
	}
}

func TestHandleSubscriptionNarrowsToOneSymbol(t *testing.T) {
	c := &client{subs: make(map[string]bool)}
	for _, ch := range defaultChannels {
		c.subs[ch] = true
	}

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: defaultChannels})
	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{"bookwatch:report:BTCUSDT"}})

	if !c.isSubscribed("bookwatch:report:BTCUSDT") {
		t.Fatal("subscribed symbol channel does not match")
	}
	if c.isSubscribed("bookwatch:report:ETHUSDT") {
		t.Fatal("unsubscribed symbol channel still matches")
	}
	if c.isSubscribed("bookwatch:alerts:BTCUSDT") {
		t.Fatal("unsubscribed alert channel still matches")
	}
}

func TestWildcardSubscriptionMatchesAllSymbols(t *testing.T) {
	c := &client{subs: map[string]bool{"bookwatch:report:*": true}}

	if !c.isSubscribed("bookwatch:report:BTCUSDT") {
		t.Fatal("wildcard does not match symbol channel")
	}
	if c.isSubscribed("bookwatch:alerts:BTCUSDT") {
		t.Fatal("wildcard matches a different prefix")
	}
}
