package book

import "bookwatch/internal/domain"

// TradeTape is a fixed-capacity ring buffer of trades. Appends are O(1);
// once full, the oldest entry is overwritten.
type TradeTape struct {
	buf   []domain.Trade
	head  int // index of the oldest entry
	count int
}

// NewTradeTape creates a tape holding at most capacity trades. A capacity
// below 1 is treated as 1.
func NewTradeTape(capacity int) *TradeTape {
	if capacity < 1 {
		capacity = 1
	}
	return &TradeTape{buf: make([]domain.Trade, capacity)}
}

// Append adds a trade, evicting the oldest entry when the tape is full.
func (t *TradeTape) Append(tr domain.Trade) {
	if t.count < len(t.buf) {
		t.buf[(t.head+t.count)%len(t.buf)] = tr
		t.count++
		return
	}
	t.buf[t.head] = tr
	t.head = (t.head + 1) % len(t.buf)
}

// Len returns the number of trades currently held.
func (t *TradeTape) Len() int { return t.count }

// Cap returns the tape capacity.
func (t *TradeTape) Cap() int { return len(t.buf) }

// All returns the held trades oldest first. The slice is a copy.
func (t *TradeTape) All() []domain.Trade {
	out := make([]domain.Trade, t.count)
	for i := 0; i < t.count; i++ {
		out[i] = t.buf[(t.head+i)%len(t.buf)]
	}
	return out
}

// Reset discards all held trades without reallocating.
func (t *TradeTape) Reset() {
	t.head = 0
	t.count = 0
}
