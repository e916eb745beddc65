package sim

import (
	"dartagnan/server/internal/proto"
	"dartagnan/server/logging"
)

// tickTaxation debits every living player once per betting period. Debits
// accrue into the shared prize pool; running dry bankrupts the player.
func (w *World) tickTaxation(dt float64) {
	w.bettingTimer += dt
	if w.bettingTimer < BettingPeriodSec {
		return
	}
	w.bettingTimer -= BettingPeriodSec

	collected := 0
	for _, p := range w.orderedPlayers() {
		if !p.Alive {
			continue
		}
		amount := p.NextDeduction
		if amount > p.Balance {
			amount = p.Balance
		}
		p.Balance -= amount
		collected += amount
		if p.Bankrupt() {
			p.Alive = false
			p.Mining = false
			if p.BankruptAt < 0 {
				p.BankruptAt = w.elapsed
			}
			w.systemChat(p.Name + " went bankrupt")
		}
		w.pushBalance(p)
	}
	w.prizePool += collected

	w.collections++
	if w.collections%DeductionDoubleEvery == 0 {
		w.taxBase *= 2
	}
	for _, p := range w.orderedPlayers() {
		next := w.taxBase
		if hasItem(p.Items, ItemVIP) {
			next /= 2
		}
		p.NextDeduction = next
		p.recomputeFury()
		w.pushDerivedStats(p)
	}

	w.broadcast(proto.PrizePoolUpdate{Total: w.prizePool})
	w.publish(logging.Event{
		Type:     "taxation",
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryEconomy,
		Payload:  map[string]any{"collected": collected, "pool": w.prizePool},
	})
	w.checkRoundAndGameEnd()
}

// tickMining counts active digs down and pays out on completion. The dig
// restarts automatically while the toggle stays on.
func (w *World) tickMining(dt float64) {
	for _, p := range w.orderedPlayers() {
		if !p.Mining || !p.Alive {
			continue
		}
		p.MiningRemain -= dt
		if p.MiningRemain > 0 {
			continue
		}
		p.MiningRemain += MiningDurationSec
		reward := w.rollMiningReward()
		if hasItem(p.Items, ItemLuckyPick) {
			reward *= 2
		}
		p.Balance += reward
		p.recomputeFury()
		w.pushBalance(p)
		w.pushDerivedStats(p)
		w.publish(logging.Event{
			Type:     "mining_payout",
			Actor:    playerRef(p),
			Severity: logging.SeverityDebug,
			Category: logging.CategoryEconomy,
			Payload:  map[string]any{"reward": reward},
		})
	}
}

// rollMiningReward draws from a geometrically-weighted tier ladder biased
// toward the low end: tier k pays BaseBet<<k with weight MiningDecay^k.
func (w *World) rollMiningReward() int {
	const tiers = 6
	total := 0.0
	weight := 1.0
	weights := make([]float64, tiers)
	for k := 0; k < tiers; k++ {
		weights[k] = weight
		total += weight
		weight *= MiningDecay
	}
	draw := w.rng.Float64() * total
	for k := 0; k < tiers; k++ {
		if draw < weights[k] {
			return BaseBet << k
		}
		draw -= weights[k]
	}
	return BaseBet << (tiers - 1)
}
