package sim

import (
	"math"

	"dartagnan/server/internal/proto"
)

const (
	botDecisionDelaySec  = 0.6
	botChoiceDelaySec    = 1.0
	botReplanChance      = 0.1
	botMineChance        = 0.15
	botLowFundsThreshold = 3
)

// botDriver is the AI capability attached to bot players. It reads world
// state and answers server-initiated choice packets, but all mutations go
// through the same command queue a human client would use.
type botDriver struct {
	world *World
	id    int

	path      []cell
	pathIndex int

	decideTimer float64
	choiceTimer float64

	pendingRouletteAck bool
	pendingShop        bool
	shopOffer          []proto.ShopSlot
}

func newBotDriver(w *World, id int) *botDriver {
	return &botDriver{world: w, id: id}
}

// handleMessage is the bot's in-process delivery endpoint: the broadcast
// layer invokes it where it would write to a socket for a human.
func (b *botDriver) handleMessage(msg proto.Message) {
	switch m := msg.(type) {
	case proto.InitialRoulette:
		b.pendingRouletteAck = true
		b.choiceTimer = botChoiceDelaySec
	case proto.ShopStart:
		if !m.Bankrupt {
			b.pendingShop = true
			b.shopOffer = m.Offer
			b.choiceTimer = botChoiceDelaySec
		}
	}
}

func (b *botDriver) submit(cmd Command) {
	cmd.ActorID = b.id
	if b.world.deps.Submit != nil {
		b.world.deps.Submit(cmd)
	}
}

// tickBots runs every attached driver. Invoked from the tick handler, so
// drivers may read world state freely.
func (w *World) tickBots(dt float64) {
	for _, p := range w.orderedPlayers() {
		if p.driver != nil {
			p.driver.tick(p, dt)
		}
	}
}

func (b *botDriver) tick(p *Player, dt float64) {
	if b.choiceTimer > 0 {
		b.choiceTimer -= dt
	}
	if b.choiceTimer <= 0 {
		b.answerChoices()
	}
	if !p.Alive || b.world.state != StateRound && b.world.state != StateWaiting {
		return
	}

	b.decideTimer -= dt
	if b.decideTimer <= 0 {
		b.decideTimer = botDecisionDelaySec
		b.decide(p)
	}
	b.followPath(p, dt)
}

// answerChoices responds to roulette and shop packets the way a human
// client would: with commands.
func (b *botDriver) answerChoices() {
	if b.pendingRouletteAck && b.world.state == StateInitialRoulette {
		b.pendingRouletteAck = false
		b.submit(Command{Type: CommandRouletteDone})
	}
	if b.pendingShop && b.world.state == StateShop {
		b.pendingShop = false
		b.buyAffordable()
	}
}

// buyAffordable picks the cheapest slot the bot can pay for with room to
// spare for the next tax collection.
func (b *botDriver) buyAffordable() {
	p, ok := b.world.players[b.id]
	if !ok {
		return
	}
	bestSlot := -1
	bestPrice := 0
	for i, slot := range b.shopOffer {
		if p.Balance > slot.Price+p.NextDeduction*2 {
			if bestSlot < 0 || slot.Price < bestPrice {
				bestSlot = i
				bestPrice = slot.Price
			}
		}
	}
	if bestSlot >= 0 {
		b.submit(Command{Type: CommandBuyItem, Buy: &BuyItemCommand{Slot: bestSlot}})
	}
}

// decide implements the priority ladder: shoot, then mine, then roam.
func (b *botDriver) decide(p *Player) {
	if target := b.richestTargetInRange(p); target != nil && p.reloadReady() {
		if p.Mining {
			b.submit(Command{Type: CommandMining, Mining: &MiningCommand{Active: false}})
		}
		b.submit(Command{Type: CommandShoot, Shoot: &ShootCommand{TargetID: target.ID}})
		return
	}

	if b.world.state == StateRound && !p.Mining {
		lowFunds := p.Balance < p.NextDeduction*botLowFundsThreshold
		if lowFunds || b.world.rng.Float64() < botMineChance {
			b.submit(Command{Type: CommandMining, Mining: &MiningCommand{Active: true}})
			b.path = nil
			return
		}
	}
	if p.Mining {
		return
	}

	arrived := b.pathIndex >= len(b.path)
	if arrived || b.world.rng.Float64() < botReplanChance {
		b.plan(p)
	}
}

// richestTargetInRange scans living opponents inside weapon range with a
// clear line of sight and keeps the wealthiest.
func (b *botDriver) richestTargetInRange(p *Player) *Player {
	var best *Player
	for _, other := range b.world.orderedPlayers() {
		if other.ID == p.ID || !other.Alive {
			continue
		}
		if p.distanceTo(other) > p.derivedRange() {
			continue
		}
		if !b.world.grid.lineOfSight(p.pos(), other.pos()) {
			continue
		}
		if best == nil || other.Balance > best.Balance {
			best = other
		}
	}
	return best
}

// plan BFS-paths toward the richest living opponent, or a random waypoint
// when nobody is worth chasing.
func (b *botDriver) plan(p *Player) {
	grid := b.world.grid
	start, ok := grid.locate(p.X, p.Y)
	if !ok {
		return
	}

	var goal cell
	haveGoal := false
	var richest *Player
	for _, other := range b.world.orderedPlayers() {
		if other.ID == p.ID || !other.Alive {
			continue
		}
		if richest == nil || other.Balance > richest.Balance {
			richest = other
		}
	}
	if richest != nil && b.world.rng.Float64() < 0.7 {
		if c, ok := grid.locate(richest.X, richest.Y); ok {
			goal = c
			haveGoal = true
		}
	}
	if !haveGoal {
		if c, ok := grid.randomWalkableCell(b.world.rng.Intn); ok {
			goal = c
			haveGoal = true
		}
	}
	if !haveGoal {
		return
	}

	path, found := grid.findPath(start, goal)
	if !found {
		return
	}
	b.path = path
	b.pathIndex = 0
}

// followPath advances along the current path and reports the new
// transform via a Move command, exactly like a human client.
func (b *botDriver) followPath(p *Player, dt float64) {
	if b.pathIndex >= len(b.path) {
		return
	}
	waypoint := b.world.grid.worldPos(b.path[b.pathIndex])
	dx := waypoint.X - p.X
	dy := waypoint.Y - p.Y
	dist := math.Hypot(dx, dy)
	speed := p.derivedSpeed()
	step := speed * dt
	if dist <= step {
		b.pathIndex++
		step = dist
	}
	if dist == 0 {
		return
	}
	nx := p.X + dx/dist*step
	ny := p.Y + dy/dist*step
	b.submit(Command{Type: CommandMove, Move: &MoveCommand{
		X: nx, Y: ny, DirX: dx / dist, DirY: dy / dist, Speed: speed,
	}})
}
