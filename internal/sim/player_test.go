package sim

import (
	"testing"

	"pgregory.net/rapid"
)

func TestEffectiveAccuracyClamps(t *testing.T) {
	p := &Player{Accuracy: 98, steadyStacks: 4}
	if got := p.EffectiveAccuracy(); got != MaxAccuracy {
		t.Fatalf("expected clamp at %d, got %d", MaxAccuracy, got)
	}
	p = &Player{Accuracy: 5, shockPenalty: shockPenalty}
	if got := p.EffectiveAccuracy(); got != MinAccuracy {
		t.Fatalf("expected clamp at %d, got %d", MinAccuracy, got)
	}
}

func TestDerivedStatsAtAccuracyExtremes(t *testing.T) {
	sniper := &Player{Accuracy: MaxAccuracy}
	sprayer := &Player{Accuracy: MinAccuracy}

	if sniper.derivedRange() != MinRange {
		t.Fatalf("expected max accuracy range %v, got %v", MinRange, sniper.derivedRange())
	}
	if sprayer.derivedRange() != MaxRange {
		t.Fatalf("expected min accuracy range %v, got %v", MaxRange, sprayer.derivedRange())
	}
	if sniper.derivedReload() != MaxReloadSec {
		t.Fatalf("expected max accuracy reload %v, got %v", MaxReloadSec, sniper.derivedReload())
	}
	if sprayer.derivedReload() != MinReloadSec {
		t.Fatalf("expected min accuracy reload %v, got %v", MinReloadSec, sprayer.derivedReload())
	}
}

func TestDerivedStatProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := &Player{
			Accuracy: rapid.IntRange(MinAccuracy, MaxAccuracy).Draw(rt, "accuracy"),
			Balance:  rapid.IntRange(0, 5000).Draw(rt, "balance"),
			Fury:     rapid.Bool().Draw(rt, "fury"),
		}
		for i := rapid.IntRange(0, 3).Draw(rt, "boots"); i > 0; i-- {
			p.Items = append(p.Items, ItemBoots)
		}

		speed := p.derivedSpeed()
		if speed < MinSpeed || speed > MaxSpeed {
			rt.Fatalf("speed %v outside [%v, %v]", speed, MinSpeed, MaxSpeed)
		}

		reload := p.derivedReload()
		if reload < MinReloadSec || reload > MaxReloadSec {
			rt.Fatalf("reload %v outside [%v, %v]", reload, MinReloadSec, MaxReloadSec)
		}

		rng := p.derivedRange()
		if rng < MinRange || rng > MaxRange {
			rt.Fatalf("range %v outside [%v, %v]", rng, MinRange, MaxRange)
		}

		// Monotonicity: more accuracy never buys more range or a faster
		// reload.
		if p.Accuracy < MaxAccuracy {
			better := &Player{Accuracy: p.Accuracy + 1, Balance: p.Balance, Items: p.Items}
			if better.derivedRange() > p.derivedRange() {
				rt.Fatalf("range grew with accuracy: %v -> %v", p.derivedRange(), better.derivedRange())
			}
			if better.derivedReload() < p.derivedReload() {
				rt.Fatalf("reload shrank with accuracy: %v -> %v", p.derivedReload(), better.derivedReload())
			}
		}
	})
}

func TestWealthDragSlowsRichPlayers(t *testing.T) {
	poor := &Player{Balance: 0}
	rich := &Player{Balance: 500}
	if rich.derivedSpeed() >= poor.derivedSpeed() {
		t.Fatalf("expected wealth drag: rich %v, poor %v", rich.derivedSpeed(), poor.derivedSpeed())
	}
}

func TestFuryTracksDeductionPressure(t *testing.T) {
	p := &Player{Alive: true, Balance: 100, NextDeduction: 40}
	p.recomputeFury()
	if p.Fury {
		t.Fatalf("expected no fury with comfortable balance")
	}

	p.NextDeduction = 100
	p.recomputeFury()
	if !p.Fury {
		t.Fatalf("expected fury when the next deduction wipes the balance")
	}

	p.Balance = 0
	p.recomputeFury()
	if p.Fury {
		t.Fatalf("expected no fury once bankrupt")
	}
}

func TestFurySpeedBoost(t *testing.T) {
	calm := &Player{Balance: 50}
	furious := &Player{Balance: 50, Fury: true}
	if furious.derivedSpeed() <= calm.derivedSpeed() {
		t.Fatalf("expected fury boost: %v vs %v", furious.derivedSpeed(), calm.derivedSpeed())
	}
}

func TestBankruptIffBalanceNonPositive(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		balance := rapid.IntRange(-50, 50).Draw(rt, "balance")
		p := &Player{Balance: balance}
		if p.Bankrupt() != (balance <= 0) {
			rt.Fatalf("bankrupt mismatch for balance %d", balance)
		}
	})
}

func TestSnapshotMarksBots(t *testing.T) {
	w, _ := newTestWorld(t)
	bot := w.newBot(1)
	snap := bot.snapshot()
	if !snap.Bot {
		t.Fatalf("expected snapshot to flag bot")
	}
	if snap.Name == "" || snap.Balance != StartingBalance {
		t.Fatalf("unexpected bot snapshot %+v", snap)
	}
}
