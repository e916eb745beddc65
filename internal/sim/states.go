package sim

import (
	"dartagnan/server/internal/proto"
	"dartagnan/server/logging"
)

// advance is the Tick handler: it accumulates game time and fans out to
// the per-state update routine.
func (w *World) advance(dt float64) {
	if dt <= 0 {
		return
	}
	w.tick++
	w.elapsed += dt

	switch w.state {
	case StateWaiting:
		w.tickWaiting(dt)
	case StateInitialRoulette:
		w.tickInitialRoulette(dt)
	case StateRound:
		w.tickRound(dt)
	case StateShop:
		w.tickShop(dt)
	}
}

func (w *World) setState(state GameState) {
	if w.state == state {
		return
	}
	w.state = state
	w.broadcast(proto.StateChanged{State: string(state)})
	w.publish(logging.Event{
		Type:     "state_changed",
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  map[string]any{"state": state, "round": w.round},
	})
	if w.deps.Reporter != nil {
		w.deps.Reporter.StateChanged(string(state), w.humanCount())
	}
}

// tickWaiting keeps the lobby lively (positions flow through Move
// commands, fun-shooting through Shoot) and counts down the empty-room
// timeout when no human is connected.
func (w *World) tickWaiting(dt float64) {
	w.tickReloads(dt)
	if w.humanCount() == 0 {
		w.emptyTimer += dt
		if w.emptyTimer >= EmptyRoomTimeoutSec {
			w.logf("room empty for %.0fs, shutting down", w.emptyTimer)
			if w.deps.OnIdleShutdown != nil {
				w.deps.OnIdleShutdown()
			}
			w.emptyTimer = 0
		}
		return
	}
	w.emptyTimer = 0
}

// enterInitialRoulette fills the roster to capacity with bots, deals each
// participant their per-game accuracy pool, and starts the reveal timer.
func (w *World) enterInitialRoulette() {
	for slot := 1; len(w.players) < MaxPlayers; slot++ {
		w.newBot(slot)
	}
	w.round = 0
	w.elapsed = 0
	w.prizePool = 0
	w.taxBase = BaseBet
	w.collections = 0
	w.rouletteTimer = 0

	for _, p := range w.orderedPlayers() {
		w.dealRoulette(p)
		p.RouletteAcked = false
		w.sendTo(p.ID, proto.InitialRoulette{
			Pool:     append([]int(nil), p.RoulettePool...),
			Assigned: p.AssignedAccuracy,
			Duration: InitialRouletteTimeoutSec,
		})
	}
	w.setState(StateInitialRoulette)
}

func (w *World) allRouletteAcked() bool {
	for _, p := range w.players {
		if !p.Bankrupt() && !p.RouletteAcked {
			return false
		}
	}
	return true
}

func (w *World) tickInitialRoulette(dt float64) {
	w.tickBots(dt)
	w.rouletteTimer += dt
	if w.rouletteTimer >= InitialRouletteTimeoutSec {
		w.enterRound()
	}
}

// enterRound revives solvent players, respawns everyone, applies the
// assigned accuracy and begins combat.
func (w *World) enterRound() {
	w.round++
	w.bettingTimer = 0
	w.driftTimer = 0
	for i, p := range w.orderedPlayers() {
		p.Alive = !p.Bankrupt()
		p.Mining = false
		p.setAccuracy(p.AssignedAccuracy)
		p.accuracyState = 0
		p.steadyStacks = 0
		p.shockPenalty = 0
		p.shockRemain = 0
		spawn := w.grid.spawnPoint(i)
		p.X, p.Y = spawn.X, spawn.Y
		p.startReload()
		p.recomputeFury()
		w.pushDerivedStats(p)
	}
	w.setState(StateRound)
	w.broadcast(proto.RoundStart{Round: w.round, Players: w.roster()})
}

func (w *World) tickRound(dt float64) {
	w.tickReloads(dt)
	w.tickAccuracyDrift(dt)
	w.tickShock(dt)
	w.tickMining(dt)
	w.tickTaxation(dt)
	w.tickBots(dt)
	w.checkRoundAndGameEnd()
}

func (w *World) tickReloads(dt float64) {
	for _, p := range w.players {
		if p.ReloadRemaining > 0 {
			p.ReloadRemaining -= dt
			if p.ReloadRemaining < 0 {
				p.ReloadRemaining = 0
			}
		}
	}
}

// tickAccuracyDrift applies the aiming stance once per second: steadying
// builds the stack, relaxing spends it.
func (w *World) tickAccuracyDrift(dt float64) {
	w.driftTimer += dt
	if w.driftTimer < 1.0 {
		return
	}
	w.driftTimer -= 1.0
	for _, p := range w.orderedPlayers() {
		if !p.Alive || p.accuracyState == 0 {
			continue
		}
		before := p.EffectiveAccuracy()
		p.steadyStacks = clampInt(p.steadyStacks+p.accuracyState, 0, 4)
		if after := p.EffectiveAccuracy(); after != before {
			w.broadcast(proto.AccuracyUpdate{ID: p.ID, Accuracy: after})
			w.pushDerivedStats(p)
		}
	}
}

func (w *World) tickShock(dt float64) {
	for _, p := range w.orderedPlayers() {
		if p.shockRemain <= 0 {
			continue
		}
		p.shockRemain -= dt
		if p.shockRemain <= 0 {
			p.shockRemain = 0
			p.shockPenalty = 0
			w.broadcast(proto.AccuracyUpdate{ID: p.ID, Accuracy: p.EffectiveAccuracy()})
			w.pushDerivedStats(p)
		}
	}
}

// checkRoundAndGameEnd ends the round when at most one player is left
// standing, and the game when at most one is left solvent.
func (w *World) checkRoundAndGameEnd() {
	if w.state != StateRound {
		return
	}
	alive := 0
	for _, p := range w.players {
		if p.Alive {
			alive++
		}
	}
	if alive > 1 {
		return
	}
	w.endRound()
}

func (w *World) endRound() {
	survivors := make([]*Player, 0, len(w.players))
	for _, p := range w.orderedPlayers() {
		if p.Alive {
			survivors = append(survivors, p)
		}
	}

	// Even split of the pot; integer division drops the remainder.
	share := 0
	if len(survivors) > 0 && w.prizePool > 0 {
		share = w.prizePool / len(survivors)
	}
	winnerIDs := make([]int, 0, len(survivors))
	for _, p := range survivors {
		winnerIDs = append(winnerIDs, p.ID)
		if share > 0 {
			p.Balance += share
			w.pushBalance(p)
		}
	}
	w.prizePool = 0
	w.broadcast(proto.RoundWinner{WinnerIDs: winnerIDs, Share: share})
	w.broadcast(proto.PrizePoolUpdate{Total: 0})

	for _, p := range w.orderedPlayers() {
		if stripped, changed := stripRoundTemporary(p.Items); changed {
			p.Items = stripped
			w.broadcast(proto.ItemsUpdate{ID: p.ID, Items: append([]string(nil), p.Items...)})
			w.pushDerivedStats(p)
		}
		if p.Alive && hasItem(p.Items, ItemInterest) {
			interest := p.Balance / 10
			if interest > 0 {
				p.Balance += interest
				w.pushBalance(p)
			}
		}
		p.Mining = false
	}

	solvent := 0
	for _, p := range w.players {
		if !p.Bankrupt() {
			solvent++
		}
	}
	if solvent <= 1 || w.round >= MaxRounds {
		w.endGame()
		return
	}
	w.enterShop()
}

// enterShop deals every player a fresh offer; the browse window shrinks as
// rounds progress, floored at the minimum.
func (w *World) enterShop() {
	duration := ShopBaseDurationSec - ShopDurationStepSec*float64(w.round-1)
	if duration < ShopMinDurationSec {
		duration = ShopMinDurationSec
	}
	w.shopTimer = duration
	for _, p := range w.orderedPlayers() {
		w.dealShopOffer(p)
		w.sendTo(p.ID, proto.ShopStart{
			Offer:         append([]proto.ShopSlot(nil), p.ShopOffer...),
			RoulettePrice: w.shopRoulettePrice(),
			Duration:      duration,
			Bankrupt:      p.Bankrupt(),
		})
	}
	w.setState(StateShop)
}

func (w *World) tickShop(dt float64) {
	w.tickBots(dt)
	w.shopTimer -= dt
	if w.shopTimer <= 0 {
		w.enterRound()
	}
}

func (w *World) endGame() {
	var winner *Player
	for _, p := range w.orderedPlayers() {
		if p.Bankrupt() {
			continue
		}
		if winner == nil || p.Balance > winner.Balance {
			winner = p
		}
	}
	if winner != nil {
		w.broadcast(proto.GameWinner{WinnerID: winner.ID})
		w.systemChat(winner.Name + " wins the game")
	}

	entries := w.rankedResults()
	w.broadcast(proto.RankedResults{Entries: entries})
	if w.deps.Reporter != nil {
		results := make([]GameResult, 0, len(entries))
		for _, entry := range entries {
			if p, ok := w.players[entry.ID]; ok && !p.IsBot() {
				results = append(results, GameResult{
					ExternalID: p.ExternalID,
					Rank:       entry.Rank,
					Reward:     entry.Reward,
				})
			}
		}
		w.deps.Reporter.Results(results)
	}
	w.publish(logging.Event{
		Type:     "game_over",
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryGameplay,
		Payload:  map[string]any{"rounds": w.round},
	})
	w.enterWaiting()
}

// enterWaiting re-initializes the world in place: per-game fields reset,
// bots purged, bankrupt-but-connected players restored to the starting
// balance.
func (w *World) enterWaiting() {
	// The state flips before the purge: removals re-run the end-of-round
	// check, which must already see Waiting.
	w.setState(StateWaiting)
	w.purgeBots()
	w.round = 0
	w.elapsed = 0
	w.prizePool = 0
	w.taxBase = BaseBet
	w.collections = 0
	w.bettingTimer = 0
	w.rouletteTimer = 0
	w.shopTimer = 0
	w.emptyTimer = 0
	w.driftTimer = 0

	for i, p := range w.orderedPlayers() {
		if p.Bankrupt() {
			p.Balance = StartingBalance
			p.BankruptAt = -1
		}
		p.Alive = true
		p.Mining = false
		p.NextDeduction = w.taxBase
		p.RoulettePool = nil
		p.AssignedAccuracy = 0
		p.RouletteAcked = false
		p.ShopOffer = nil
		p.ShopRoulettePool = nil
		p.shopRouletteUsed = false
		p.shopBought = false
		p.accuracyState = 0
		p.steadyStacks = 0
		p.shockPenalty = 0
		p.shockRemain = 0
		p.Items = nil
		spawn := w.grid.spawnPoint(i)
		p.X, p.Y = spawn.X, spawn.Y
		p.recomputeFury()
	}
	if w.hostID == 0 {
		w.reassignHost()
	}
	w.broadcast(proto.WaitingStart{Players: w.roster(), HostID: w.hostID, RoomName: w.roomName})
}

func (w *World) shopRoulettePrice() int {
	return ShopRouletteBasePrice + (w.round-1)*10
}
