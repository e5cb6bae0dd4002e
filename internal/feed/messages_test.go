package feed

import (
	"testing"

	"bookwatch/internal/domain"
)

func TestParseDepthMessage(t *testing.T) {
	raw := []byte(`{"lastUpdateId":160,"bids":[["100.50","2.000"],["99.00","0.000"]],"asks":[["101.00","1.500"]]}`)

	ev, ok := parseEvent(raw)
	if !ok || ev.Depth == nil {
		t.Fatalf("parse failed: ok=%v ev=%+v", ok, ev)
	}
	if len(ev.Depth.Bids) != 2 {
		t.Fatalf("bids got %d want 2", len(ev.Depth.Bids))
	}
	// Zero quantity survives parsing as a removal tombstone.
	if ev.Depth.Bids[1].Price != 99 || ev.Depth.Bids[1].Quantity != 0 {
		t.Fatalf("tombstone level wrong: %+v", ev.Depth.Bids[1])
	}
	if len(ev.Depth.Asks) != 1 || ev.Depth.Asks[0].Price != 101 {
		t.Fatalf("asks wrong: %+v", ev.Depth.Asks)
	}
}

func TestParseTradeMessage(t *testing.T) {
	raw := []byte(`{"e":"aggTrade","p":"101.00","q":"5.000","T":1700000000000,"m":false}`)

	ev, ok := parseEvent(raw)
	if !ok || ev.Trade == nil {
		t.Fatalf("parse failed: ok=%v ev=%+v", ok, ev)
	}
	tr := ev.Trade
	if tr.Price != 101 || tr.Quantity != 5 || tr.Time != 1700000000000 {
		t.Fatalf("trade fields wrong: %+v", tr)
	}
	// Buyer not the maker means the taker bought.
	if tr.Taker != domain.TakerBuy {
		t.Fatalf("taker side got %s want buy", tr.Taker)
	}

	raw = []byte(`{"e":"aggTrade","p":"101.00","q":"5.000","T":1700000000000,"m":true}`)
	ev, _ = parseEvent(raw)
	if ev.Trade.Taker != domain.TakerSell {
		t.Fatalf("maker-buy trade must be taker sell, got %s", ev.Trade.Taker)
	}
}

func TestParseCombinedStreamEnvelope(t *testing.T) {
	raw := []byte(`{"stream":"btcusdt@depth20@100ms","data":{"lastUpdateId":1,"bids":[["100","2"]],"asks":[]}}`)

	ev, ok := parseEvent(raw)
	if !ok || ev.Depth == nil || len(ev.Depth.Bids) != 1 {
		t.Fatalf("envelope not unwrapped: ok=%v ev=%+v", ok, ev)
	}
}

func TestParseMalformedFramesDropped(t *testing.T) {
	cases := []string{
		`not json at all`,
		`{"result":null,"id":1}`, // subscription ack
		`{"e":"aggTrade","p":"abc","q":"1","T":1,"m":false}`,
		`{"e":"aggTrade","p":"100","q":"-1","T":1,"m":false}`,
		`{"e":"unknownEvent"}`,
		`{}`,
		`{"lastUpdateId":5,"bids":[["garbage"]],"asks":[]}`,
	}
	for _, c := range cases {
		if _, ok := parseEvent([]byte(c)); ok {
			t.Fatalf("frame should have been dropped: %s", c)
		}
	}
}

func TestLevelsFromStringsSkipsBadPairs(t *testing.T) {
	levels := levelsFromStrings([][]string{
		{"100.5", "2"},
		{"bad", "2"},
		{"100"},
		{"101", "x"},
		{"-5", "1"},
	})
	if len(levels) != 1 || levels[0].Price != 100.5 {
		t.Fatalf("got %+v", levels)
	}
}
