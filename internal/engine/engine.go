// Package engine owns the per-symbol subscription lifecycle: it drains
// feed events into the book on a single processing loop, samples the book
// on the scheduler's tick, runs the analytics pass, and routes alert-class
// output to the alert surface, the signal bus, and the notifier hook.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"bookwatch/internal/alerts"
	"bookwatch/internal/analytics"
	"bookwatch/internal/book"
	"bookwatch/internal/domain"
	"bookwatch/internal/feed"
	"bookwatch/internal/sched"
)

// DefaultTapeCapacity bounds the per-symbol trade tape.
const DefaultTapeCapacity = 500

// Source is the transport a subscription consumes. Satisfied by
// *feed.Client; tests substitute a fake.
type Source interface {
	Connect(ctx context.Context) error
	Disconnect()
	Events() <-chan feed.Event
	Status() <-chan domain.Status
}

// Config holds the engine-level knobs shared by all subscriptions.
type Config struct {
	Feed            feed.Config // BaseURL and transport tuning; Symbol is set per subscription
	TickInterval    time.Duration
	TapeCapacity    int
	FlowWindow      time.Duration
	ImbalanceLevels int
	Walls           analytics.WallConfig
	Iceberg         analytics.IcebergConfig
	Alerts          alerts.Config

	// WhaleThresholds maps symbol to the absolute quantity that flags a
	// whale trade. A missing symbol disables whale detection for it.
	WhaleThresholds map[string]float64
}

func (c *Config) applyDefaults() {
	if c.TickInterval <= 0 {
		c.TickInterval = sched.DefaultInterval
	}
	if c.TapeCapacity <= 0 {
		c.TapeCapacity = DefaultTapeCapacity
	}
	if c.FlowWindow <= 0 {
		c.FlowWindow = analytics.DefaultFlowWindow
	}
	if c.ImbalanceLevels <= 0 {
		c.ImbalanceLevels = analytics.DefaultImbalanceLevels
	}
	if c.Walls.Multiplier <= 0 {
		c.Walls = analytics.DefaultWallConfig()
	}
	if c.Iceberg.Window <= 0 {
		c.Iceberg = analytics.DefaultIcebergConfig()
	}
}

// Report is the output of one analytics pass over a book snapshot.
type Report struct {
	ID        string                 `json:"id"`
	Symbol    string                 `json:"symbol"`
	Tick      int64                  `json:"tick"`
	Time      time.Time              `json:"time"`
	BestBid   float64                `json:"best_bid"`
	BestAsk   float64                `json:"best_ask"`
	LastPrice float64                `json:"last_price"`
	Imbalance float64                `json:"imbalance"`
	Flow      domain.NetFlowSample   `json:"flow"`
	Walls     []domain.LiquidityWall `json:"walls"`
	Iceberg   bool                   `json:"iceberg"`
}

// Deps are the optional collaborators a subscription publishes into. Any
// of them may be nil.
type Deps struct {
	Bus      domain.SignalBus
	Cache    domain.BookCache
	OnAlert  func(domain.WhaleAlert)
	OnReport func(Report)
	OnStatus func(symbol string, status domain.Status)

	// NewSource overrides the transport factory; defaults to feed.New.
	NewSource func(symbol string) Source
}

// Engine creates and tracks subscriptions. One live subscription per
// symbol: subscribing a symbol again tears the old one down first, with a
// fully fresh book.
type Engine struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]*Subscription
}

// New creates an Engine.
func New(cfg Config, deps Deps, logger *slog.Logger) *Engine {
	cfg.applyDefaults()
	e := &Engine{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With(slog.String("component", "engine")),
		subs:   make(map[string]*Subscription),
	}
	if e.deps.NewSource == nil {
		e.deps.NewSource = func(symbol string) Source {
			fc := cfg.Feed
			fc.Symbol = symbol
			return feed.New(fc, logger)
		}
	}
	return e
}

// Subscribe opens a subscription for symbol. An existing subscription for
// the same symbol is closed first; its book is discarded, never patched
// onto the new symbol state.
func (e *Engine) Subscribe(ctx context.Context, symbol string) (*Subscription, error) {
	e.mu.Lock()
	// Close is called outside the lock, so a concurrent Subscribe for the
	// same symbol may have slotted a new subscription in the meantime;
	// re-check until the slot is free so no subscription is ever
	// overwritten without being closed.
	for {
		old, ok := e.subs[symbol]
		if !ok {
			break
		}
		delete(e.subs, symbol)
		e.mu.Unlock()
		old.Close()
		e.mu.Lock()
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		id:      uuid.NewString(),
		symbol:  symbol,
		cfg:     e.cfg,
		deps:    e.deps,
		logger:  e.logger.With(slog.String("symbol", symbol)),
		book:    book.New(symbol, e.cfg.TapeCapacity),
		ticker:  sched.New(e.cfg.TickInterval),
		surface: alerts.New(e.cfg.Alerts),
		src:     e.deps.NewSource(symbol),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.status.Store(domain.StatusConnecting)
	e.subs[symbol] = s
	e.mu.Unlock()

	if err := s.src.Connect(runCtx); err != nil {
		cancel()
		e.mu.Lock()
		if e.subs[symbol] == s {
			delete(e.subs, symbol)
		}
		e.mu.Unlock()
		return nil, fmt.Errorf("engine: subscribe %s: %w", symbol, err)
	}

	s.ticker.OnTick(s.analyticsPass)
	go s.ticker.Run(runCtx)
	go s.run(runCtx)

	s.logger.InfoContext(ctx, "subscription opened", slog.String("id", s.id))
	return s, nil
}

// Close tears down every live subscription.
func (e *Engine) Close() {
	e.mu.Lock()
	subs := make([]*Subscription, 0, len(e.subs))
	for _, s := range e.subs {
		subs = append(subs, s)
	}
	e.subs = make(map[string]*Subscription)
	e.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}

// Subscription is one symbol's live pipeline.
type Subscription struct {
	id      string
	symbol  string
	cfg     Config
	deps    Deps
	logger  *slog.Logger
	book    *book.Book
	ticker  *sched.Ticker
	surface *alerts.Surface
	src     Source

	status      atomic.Value // domain.Status
	lastWhaleMs atomic.Int64

	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// Book returns the live book handle. Readers get point queries and
// snapshots without copying the book per rendered frame.
func (s *Subscription) Book() *book.Book { return s.book }

// Surface returns the alert presentation buffer.
func (s *Subscription) Surface() *alerts.Surface { return s.surface }

// TickCount is the cheap dependency signal for reactive consumers: it
// increments once per scheduler tick.
func (s *Subscription) TickCount() int64 { return s.ticker.Count() }

// Status returns the most recent connection status.
func (s *Subscription) Status() domain.Status {
	return s.status.Load().(domain.Status)
}

// Close is safe at any time, including mid-backoff (the pending retry is
// cancelled) and mid-message (the in-flight event finishes applying, then
// the loop exits).
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.src.Disconnect()
		s.ticker.Stop()
		s.cancel()
		<-s.done
		s.logger.Info("subscription closed", slog.String("id", s.id))
	})
}

// run is the single writer of the book: feed events are applied in arrival
// order with no reordering buffer. Out-of-order delivery simply leaves the
// book at the latest applied state, the accepted lossy property of a
// partial-depth feed.
func (s *Subscription) run(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.src.Events():
			if ev.Depth != nil {
				s.book.ApplyDepth(domain.SideBid, ev.Depth.Bids)
				s.book.ApplyDepth(domain.SideAsk, ev.Depth.Asks)
			}
			if ev.Trade != nil {
				s.book.ApplyTrade(*ev.Trade)
			}
		case st := <-s.src.Status():
			s.status.Store(st)
			s.logger.InfoContext(ctx, "feed status", slog.String("status", string(st)))
			if s.deps.OnStatus != nil {
				s.deps.OnStatus(s.symbol, st)
			}
			if st == domain.StatusError {
				// Terminal: the retry budget is spent. Recovery is an
				// explicit new Subscribe by the caller, which also resyncs
				// the book from scratch.
				s.publishStatus(ctx, st)
			}
		}
	}
}

// analyticsPass samples the live book and derives the streaming signals.
// It runs on the scheduler tick, never on the per-message write path.
func (s *Subscription) analyticsPass() {
	ctx := context.Background()
	snap := s.book.Snapshot()

	if snap.Crossed() {
		// Tolerated: lossy partial-depth feeds cross transiently. Logged
		// for observability, still computed on.
		s.logger.Debug("crossed book",
			slog.Float64("best_bid", snap.BestBid),
			slog.Float64("best_ask", snap.BestAsk))
	}

	report := Report{
		ID:        uuid.NewString(),
		Symbol:    s.symbol,
		Tick:      s.ticker.Count(),
		Time:      snap.Time,
		BestBid:   snap.BestBid,
		BestAsk:   snap.BestAsk,
		LastPrice: snap.LastPrice,
		Imbalance: analytics.Imbalance(snap.Bids, snap.Asks, s.cfg.ImbalanceLevels),
		Flow:      analytics.NetFlow(snap.Trades, snap.Time, s.cfg.FlowWindow),
		Walls:     analytics.DetectLiquidityWalls(snap.Bids, snap.Asks, s.cfg.Walls),
		Iceberg:   analytics.DetectIceberg(snap.Trades, snap.Time, s.cfg.Iceberg),
	}

	threshold := s.cfg.WhaleThresholds[s.symbol]
	whales := analytics.DetectWhales(snap.Trades, threshold, s.lastWhaleMs.Load(), s.symbol)
	for _, alert := range whales {
		if alert.Time > s.lastWhaleMs.Load() {
			s.lastWhaleMs.Store(alert.Time)
		}
		if !s.surface.Push(alert) {
			continue
		}
		s.logger.InfoContext(ctx, "whale trade detected",
			slog.Float64("price", alert.Price),
			slog.Float64("quantity", alert.Quantity),
			slog.String("side", string(alert.Side)))
		if s.deps.OnAlert != nil {
			s.deps.OnAlert(alert)
		}
		s.publishJSON(ctx, "bookwatch:alerts:"+s.symbol, alert)
	}

	if s.deps.OnReport != nil {
		s.deps.OnReport(report)
	}
	s.publishJSON(ctx, "bookwatch:report:"+s.symbol, report)

	if s.deps.Cache != nil {
		if err := s.deps.Cache.SetSnapshot(ctx, snap); err != nil {
			s.logger.WarnContext(ctx, "snapshot cache write failed",
				slog.String("error", err.Error()))
		}
	}
}

func (s *Subscription) publishJSON(ctx context.Context, channel string, v any) {
	if s.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		s.logger.WarnContext(ctx, "marshal for bus failed", slog.String("error", err.Error()))
		return
	}
	if err := s.deps.Bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "bus publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()))
	}
}

func (s *Subscription) publishStatus(ctx context.Context, st domain.Status) {
	s.publishJSON(ctx, "bookwatch:status:"+s.symbol, map[string]string{
		"symbol": s.symbol,
		"status": string(st),
	})
}
