package sim

import (
	"math"

	"dartagnan/server/internal/proto"
	"dartagnan/server/logging"
)

// handleShoot resolves one shot. In Waiting the roll still happens for
// idle fun but nothing changes hands; in Round a hit kills.
func (w *World) handleShoot(actorID int, shoot *ShootCommand) {
	if shoot == nil {
		return
	}
	if w.state != StateRound && w.state != StateWaiting {
		return
	}
	shooter, ok := w.players[actorID]
	if !ok || !shooter.Alive {
		return
	}
	target, ok := w.players[shoot.TargetID]
	if !ok || !target.Alive || target.ID == shooter.ID {
		return
	}

	if !shooter.reloadReady() {
		// A loaded pistol lets the shot off without waiting.
		items, held := removeItem(shooter.Items, ItemExtraShot)
		if !held {
			w.logf("player %d shot while reloading, ignored", actorID)
			return
		}
		shooter.Items = items
		w.broadcast(proto.ItemsUpdate{ID: shooter.ID, Items: append([]string(nil), shooter.Items...)})
	} else {
		shooter.startReload()
		w.broadcast(proto.ReloadUpdate{ID: shooter.ID, Total: shooter.ReloadTotal, Remaining: shooter.ReloadRemaining})
	}

	if shooter.Mining {
		shooter.Mining = false
		w.broadcast(proto.MiningState{ID: shooter.ID, Active: false})
	}

	w.broadcast(proto.Targeting{ShooterID: shooter.ID, TargetID: target.ID})

	hit := w.rng.Float64() < float64(shooter.EffectiveAccuracy())/100.0
	if w.state == StateWaiting {
		// Lobby fun-shooting: the roll is cosmetic.
		w.broadcast(proto.ShootResult{ShooterID: shooter.ID, TargetID: target.ID, Hit: hit})
		return
	}

	if !hit {
		w.resolveMiss(shooter, target)
		return
	}
	w.resolveHit(shooter, target)
}

func (w *World) resolveMiss(shooter, target *Player) {
	w.broadcast(proto.ShootResult{ShooterID: shooter.ID, TargetID: target.ID, Hit: false})
	if !hasItem(shooter.Items, ItemShock) {
		return
	}
	target.shockPenalty = shockPenalty
	target.shockRemain = shockDurationSec
	w.broadcast(proto.AccuracyUpdate{ID: target.ID, Accuracy: target.EffectiveAccuracy()})
	w.pushDerivedStats(target)
}

func (w *World) resolveHit(shooter, target *Player) {
	// A cuirass absorbs exactly one hit, then breaks.
	if items, held := removeItem(target.Items, ItemArmor); held {
		target.Items = items
		w.broadcast(proto.ShootResult{ShooterID: shooter.ID, TargetID: target.ID, Hit: true, Guarded: true})
		w.broadcast(proto.ItemsUpdate{ID: target.ID, Items: append([]string(nil), target.Items...)})
		return
	}

	if hasItem(shooter.Items, ItemRobbery) {
		w.stealShopItem(shooter, target)
	}

	loot := int(math.Round(LootShare * float64(target.Balance)))
	if loot < BaseBet {
		loot = BaseBet
	}
	if loot > target.Balance {
		loot = target.Balance
	}
	vanish := BaseBet
	if hasItem(shooter.Items, ItemGreed) && shooter.Fury {
		vanish *= 2
	}
	if vanish > target.Balance-loot {
		vanish = target.Balance - loot
	}

	target.Balance -= loot + vanish
	shooter.Balance += loot
	target.Alive = false
	if target.Mining {
		target.Mining = false
		w.broadcast(proto.MiningState{ID: target.ID, Active: false})
	}
	if target.Bankrupt() && target.BankruptAt < 0 {
		target.BankruptAt = w.elapsed
	}

	w.broadcast(proto.ShootResult{ShooterID: shooter.ID, TargetID: target.ID, Hit: true, Loot: loot})
	w.pushBalance(shooter)
	w.pushBalance(target)
	shooter.recomputeFury()
	target.recomputeFury()
	w.pushDerivedStats(shooter)
	w.pushDerivedStats(target)

	w.publish(logging.Event{
		Type:     "player_killed",
		Actor:    playerRef(shooter),
		Targets:  []logging.EntityRef{playerRef(target)},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  map[string]any{"loot": loot, "vanish": vanish},
	})
	w.checkRoundAndGameEnd()
}

// stealShopItem moves one random shop-tagged item from target to shooter.
func (w *World) stealShopItem(shooter, target *Player) {
	candidates := make([]int, 0, len(target.Items))
	for i, held := range target.Items {
		if def, ok := ItemByID(held); ok && def.ShopItem {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return
	}
	idx := candidates[w.rng.Intn(len(candidates))]
	stolen := target.Items[idx]
	target.Items = append(target.Items[:idx:idx], target.Items[idx+1:]...)
	shooter.Items = append(shooter.Items, stolen)
	w.broadcast(proto.ItemsUpdate{ID: target.ID, Items: append([]string(nil), target.Items...)})
	w.broadcast(proto.ItemsUpdate{ID: shooter.ID, Items: append([]string(nil), shooter.Items...)})
	w.pushDerivedStats(shooter)
	w.pushDerivedStats(target)
}
