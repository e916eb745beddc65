package sim

import (
	"testing"
	"time"

	"dartagnan/server/logging"
)

func TestLoopSubmitsOneTickPerQuantum(t *testing.T) {
	var ticks []Command
	now := time.Unix(1000, 0)
	l := NewLoop(logging.ClockFunc(func() time.Time { return now }), func(cmd Command) {
		ticks = append(ticks, cmd)
	})

	if got := l.Advance(now); got != 0 {
		t.Fatalf("first advance should only arm the clock, submitted %d", got)
	}
	if got := l.Advance(now.Add(TickQuantum)); got != 1 {
		t.Fatalf("expected 1 tick after one quantum, got %d", got)
	}
	if got := l.Advance(now.Add(TickQuantum + 550*time.Millisecond)); got != 5 {
		t.Fatalf("expected 5 catch-up ticks after 550ms, got %d", got)
	}
	if l.Ticks() != 6 {
		t.Fatalf("expected 6 total ticks, got %d", l.Ticks())
	}
	for _, cmd := range ticks {
		if cmd.Type != CommandTick || cmd.Tick == nil {
			t.Fatalf("expected Tick command with payload, got %+v", cmd)
		}
		if cmd.Tick.Delta != TickQuantum.Seconds() {
			t.Fatalf("expected fixed delta %v, got %v", TickQuantum.Seconds(), cmd.Tick.Delta)
		}
	}
}

func TestLoopAccumulatesSubQuantumRemainder(t *testing.T) {
	submitted := 0
	now := time.Unix(0, 0)
	l := NewLoop(logging.SystemClock{}, func(Command) { submitted++ })

	l.Advance(now)
	// 70ms + 70ms crosses one quantum boundary, not two.
	l.Advance(now.Add(70 * time.Millisecond))
	l.Advance(now.Add(140 * time.Millisecond))
	if submitted != 1 {
		t.Fatalf("expected 1 tick from accumulated remainder, got %d", submitted)
	}
}

func TestLoopIgnoresClockGoingBackwards(t *testing.T) {
	submitted := 0
	now := time.Unix(500, 0)
	l := NewLoop(logging.SystemClock{}, func(Command) { submitted++ })

	l.Advance(now)
	l.Advance(now.Add(-time.Second))
	if submitted != 0 {
		t.Fatalf("expected no ticks on backwards clock, got %d", submitted)
	}
}
