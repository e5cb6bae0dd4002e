package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerFiresAndCounts(t *testing.T) {
	tk := New(5 * time.Millisecond)

	var calls atomic.Int64
	tk.OnTick(func() { calls.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tk.Run(ctx)

	deadline := time.After(2 * time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d ticks before deadline", calls.Load())
		case <-time.After(time.Millisecond):
		}
	}

	if tk.Count() < 3 {
		t.Fatalf("count got %d want >= 3", tk.Count())
	}
}

func TestTickerStop(t *testing.T) {
	tk := New(time.Millisecond)

	done := make(chan struct{})
	go func() {
		tk.Run(context.Background())
		close(done)
	}()

	tk.Stop()
	tk.Stop() // idempotent

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	n := tk.Count()
	time.Sleep(10 * time.Millisecond)
	if tk.Count() != n {
		t.Fatal("ticks fired after Stop")
	}
}

func TestTickerContextCancel(t *testing.T) {
	tk := New(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		tk.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}

func TestTickerDefaultInterval(t *testing.T) {
	tk := New(0)
	if tk.interval != DefaultInterval {
		t.Fatalf("interval got %v want %v", tk.interval, DefaultInterval)
	}
}
