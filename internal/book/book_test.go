package book

import (
	"fmt"
	"testing"

	"bookwatch/internal/domain"
)

func lvl(p, q float64) domain.PriceLevel {
	return domain.PriceLevel{Price: p, Quantity: q}
}

func TestApplyDepthUpsert(t *testing.T) {
	b := New("BTCUSDT", 10)

	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{lvl(100, 2), lvl(99, 1)})
	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{lvl(100, 5)})

	snap := b.Snapshot()
	if got := snap.Bids[100]; got != 5 {
		t.Fatalf("bid 100 quantity got %v want 5", got)
	}
	if got := snap.Bids[99]; got != 1 {
		t.Fatalf("bid 99 quantity got %v want 1", got)
	}
}

func TestApplyDepthZeroRemoves(t *testing.T) {
	b := New("BTCUSDT", 10)

	b.ApplyDepth(domain.SideAsk, []domain.PriceLevel{lvl(101, 2), lvl(102, 1)})
	b.ApplyDepth(domain.SideAsk, []domain.PriceLevel{lvl(101, 0)})

	snap := b.Snapshot()
	if _, ok := snap.Asks[101]; ok {
		t.Fatal("level 101 should have been removed")
	}
	if b.BestAsk() != 102 {
		t.Fatalf("best ask got %v want 102", b.BestAsk())
	}
}

func TestRemoveAbsentLevelIsNoop(t *testing.T) {
	b := New("BTCUSDT", 10)
	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{lvl(100, 2)})

	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{lvl(95, 0)})

	snap := b.Snapshot()
	if len(snap.Bids) != 1 || snap.Bids[100] != 2 {
		t.Fatalf("map changed by removing absent level: %v", snap.Bids)
	}
	if b.BestBid() != 100 {
		t.Fatalf("best bid got %v want 100", b.BestBid())
	}
}

func TestBestPriceInvariant(t *testing.T) {
	b := New("ETHUSDT", 10)

	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{lvl(100, 2), lvl(99, 1), lvl(101.5, 3)})
	b.ApplyDepth(domain.SideAsk, []domain.PriceLevel{lvl(103, 2), lvl(102, 1), lvl(104, 3)})
	if b.BestBid() != 101.5 {
		t.Fatalf("best bid got %v want 101.5", b.BestBid())
	}
	if b.BestAsk() != 102 {
		t.Fatalf("best ask got %v want 102", b.BestAsk())
	}

	// Removing the best level must fall back to the next best.
	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{lvl(101.5, 0)})
	b.ApplyDepth(domain.SideAsk, []domain.PriceLevel{lvl(102, 0)})
	if b.BestBid() != 100 {
		t.Fatalf("best bid after removal got %v want 100", b.BestBid())
	}
	if b.BestAsk() != 103 {
		t.Fatalf("best ask after removal got %v want 103", b.BestAsk())
	}
}

func TestEmptySideSentinel(t *testing.T) {
	b := New("BTCUSDT", 10)
	if b.BestBid() != 0 || b.BestAsk() != 0 {
		t.Fatal("empty book must report 0 sentinels")
	}

	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{lvl(100, 2)})
	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{lvl(100, 0)})
	if b.BestBid() != 0 {
		t.Fatalf("best bid after emptying side got %v want 0", b.BestBid())
	}
}

func TestApplyTradeSetsLastPrice(t *testing.T) {
	b := New("BTCUSDT", 10)
	b.ApplyTrade(domain.Trade{Price: 101, Quantity: 5, Time: 1000, Taker: domain.TakerBuy})

	if b.LastPrice() != 101 {
		t.Fatalf("last price got %v want 101", b.LastPrice())
	}
	snap := b.Snapshot()
	if len(snap.Trades) != 1 || snap.Trades[0].Taker != domain.TakerBuy {
		t.Fatalf("trade tape snapshot wrong: %+v", snap.Trades)
	}
}

func TestReset(t *testing.T) {
	b := New("BTCUSDT", 10)
	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{lvl(100, 2)})
	b.ApplyDepth(domain.SideAsk, []domain.PriceLevel{lvl(101, 2)})
	b.ApplyTrade(domain.Trade{Price: 100.5, Quantity: 1, Time: 1})

	b.Reset()

	snap := b.Snapshot()
	if len(snap.Bids) != 0 || len(snap.Asks) != 0 || len(snap.Trades) != 0 {
		t.Fatalf("reset left state behind: %+v", snap)
	}
	if snap.BestBid != 0 || snap.BestAsk != 0 || snap.LastPrice != 0 {
		t.Fatal("reset must restore 0 sentinels")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	b := New("BTCUSDT", 10)
	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{lvl(100, 2)})

	snap := b.Snapshot()
	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{lvl(100, 9)})

	if snap.Bids[100] != 2 {
		t.Fatalf("snapshot mutated by later write: %v", snap.Bids[100])
	}
}

func TestUpsertSequenceProperty(t *testing.T) {
	// The post-state for each price equals the last non-zero quantity seen,
	// and prices last seen at 0 are absent.
	b := New("BTCUSDT", 10)
	seq := []domain.PriceLevel{
		lvl(100, 1), lvl(101, 2), lvl(100, 3), lvl(102, 4),
		lvl(101, 0), lvl(102, 5), lvl(103, 6), lvl(103, 0),
	}
	for _, l := range seq {
		b.ApplyDepth(domain.SideBid, []domain.PriceLevel{l})
	}

	want := map[float64]float64{100: 3, 102: 5}
	snap := b.Snapshot()
	if len(snap.Bids) != len(want) {
		t.Fatalf("bid map got %v want %v", snap.Bids, want)
	}
	for p, q := range want {
		if snap.Bids[p] != q {
			t.Fatalf("price %v got %v want %v", p, snap.Bids[p], q)
		}
	}
	if b.BestBid() != 102 {
		t.Fatalf("best bid got %v want 102", b.BestBid())
	}
}

func TestConcurrentSnapshotDuringWrites(t *testing.T) {
	b := New("BTCUSDT", 100)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			b.ApplyDepth(domain.SideBid, []domain.PriceLevel{lvl(100+float64(i%20), float64(i))})
			b.ApplyTrade(domain.Trade{Price: 100, Quantity: 1, Time: int64(i)})
		}
	}()

	for i := 0; i < 200; i++ {
		snap := b.Snapshot()
		// A torn read would show a bid above the recorded best.
		for p := range snap.Bids {
			if p > snap.BestBid {
				t.Fatalf("snapshot bid %v above best bid %v", p, snap.BestBid)
			}
		}
	}
	<-done
}

func ExampleBook_Snapshot() {
	b := New("BTCUSDT", 10)
	b.ApplyDepth(domain.SideBid, []domain.PriceLevel{{Price: 100, Quantity: 2}})
	b.ApplyDepth(domain.SideAsk, []domain.PriceLevel{{Price: 101, Quantity: 3}})

	snap := b.Snapshot()
	fmt.Println(snap.BestBid, snap.BestAsk)
	// Output: 100 101
}
