package sim

import (
	"time"

	"dartagnan/server/logging"
)

// Loop converts wall-clock time into fixed-quantum Tick commands. It
// accumulates elapsed time and submits one Tick per full quantum, looping
// to catch up after scheduling jitter, so the simulation rate stays
// independent of queue latency.
type Loop struct {
	clock       logging.Clock
	submit      func(Command)
	quantum     time.Duration
	accumulator time.Duration
	last        time.Time
	started     bool
	ticks       uint64
}

func NewLoop(clock logging.Clock, submit func(Command)) *Loop {
	if clock == nil {
		clock = logging.SystemClock{}
	}
	return &Loop{
		clock:   clock,
		submit:  submit,
		quantum: TickQuantum,
	}
}

// Ticks reports how many Tick commands have been submitted.
func (l *Loop) Ticks() uint64 {
	if l == nil {
		return 0
	}
	return l.ticks
}

// Advance folds the time since the previous call into the accumulator and
// submits one Tick per full quantum. Returns the number submitted.
func (l *Loop) Advance(now time.Time) int {
	if l == nil {
		return 0
	}
	if !l.started {
		l.started = true
		l.last = now
		return 0
	}
	elapsed := now.Sub(l.last)
	l.last = now
	if elapsed < 0 {
		return 0
	}
	l.accumulator += elapsed

	submitted := 0
	delta := l.quantum.Seconds()
	for l.accumulator >= l.quantum {
		l.accumulator -= l.quantum
		l.ticks++
		if l.submit != nil {
			l.submit(Command{
				Type:     CommandTick,
				IssuedAt: now,
				Tick:     &TickCommand{Delta: delta},
			})
		}
		submitted++
	}
	return submitted
}

// Run drives the accumulator off a wall-clock ticker until stop closes.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	ticker := time.NewTicker(l.quantum / 2)
	defer ticker.Stop()

	l.Advance(l.clock.Now())
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.Advance(l.clock.Now())
		}
	}
}
