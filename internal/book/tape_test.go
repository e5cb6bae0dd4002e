package book

import (
	"testing"

	"bookwatch/internal/domain"
)

func TestTapeBound(t *testing.T) {
	const capacity = 5
	tape := NewTradeTape(capacity)

	for i := 0; i < capacity+3; i++ {
		tape.Append(domain.Trade{Price: float64(i), Time: int64(i)})
	}

	if tape.Len() != capacity {
		t.Fatalf("len got %d want %d", tape.Len(), capacity)
	}

	all := tape.All()
	// The capacity most recent entries, oldest first: 3..7.
	for i, tr := range all {
		want := int64(i + 3)
		if tr.Time != want {
			t.Fatalf("index %d time got %d want %d", i, tr.Time, want)
		}
	}
}

func TestTapeUnderCapacity(t *testing.T) {
	tape := NewTradeTape(10)
	tape.Append(domain.Trade{Time: 1})
	tape.Append(domain.Trade{Time: 2})

	all := tape.All()
	if len(all) != 2 || all[0].Time != 1 || all[1].Time != 2 {
		t.Fatalf("got %+v", all)
	}
}

func TestTapeReset(t *testing.T) {
	tape := NewTradeTape(3)
	for i := 0; i < 5; i++ {
		tape.Append(domain.Trade{Time: int64(i)})
	}
	tape.Reset()

	if tape.Len() != 0 || len(tape.All()) != 0 {
		t.Fatal("reset did not clear the tape")
	}

	tape.Append(domain.Trade{Time: 9})
	if all := tape.All(); len(all) != 1 || all[0].Time != 9 {
		t.Fatalf("append after reset got %+v", all)
	}
}

func TestTapeMinimumCapacity(t *testing.T) {
	tape := NewTradeTape(0)
	tape.Append(domain.Trade{Time: 1})
	tape.Append(domain.Trade{Time: 2})

	if tape.Cap() != 1 || tape.Len() != 1 || tape.All()[0].Time != 2 {
		t.Fatalf("cap %d len %d all %+v", tape.Cap(), tape.Len(), tape.All())
	}
}

func BenchmarkTapeAppend(b *testing.B) {
	tape := NewTradeTape(500)
	tr := domain.Trade{Price: 100, Quantity: 1}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tr.Time = int64(i)
		tape.Append(tr)
	}
}
