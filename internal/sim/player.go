package sim

import (
	"math"

	"dartagnan/server/internal/proto"
)

// Player holds all per-participant mutable state. Bots are players with a
// driver attached; delivery dispatch checks the driver, never a type.
type Player struct {
	ID         int
	Name       string
	ExternalID string

	X, Y       float64
	DirX, DirY float64
	Speed      float64

	Accuracy      int
	accuracyState int // -1 relax, 0 hold, +1 steady
	steadyStacks  int
	shockPenalty  int
	shockRemain   float64

	Range           float64
	ReloadTotal     float64
	ReloadRemaining float64

	Balance       int
	NextDeduction int
	Fury          bool
	Alive         bool
	BankruptAt    float64 // game-elapsed seconds; -1 while solvent

	Items []string

	Mining       bool
	MiningRemain float64

	RoulettePool     []int
	AssignedAccuracy int
	RouletteAcked    bool

	ShopOffer        []proto.ShopSlot
	ShopRoulettePool []int
	shopRouletteUsed bool
	shopBought       bool

	driver *botDriver

	// closeSession terminates the owning transport; invoked when a
	// duplicate login evicts this entity.
	closeSession func()

	// last broadcast values; deltas below epsilon are not rebroadcast.
	sentRange  float64
	sentSpeed  float64
	sentReload float64
	sentFury   bool
}

// Spectator receives every broadcast but owns no game state.
type Spectator struct {
	ID         int
	Name       string
	ExternalID string
}

// IsBot reports whether an AI driver is attached.
func (p *Player) IsBot() bool {
	return p != nil && p.driver != nil
}

// Bankrupt is defined as balance <= 0 at every observation point.
func (p *Player) Bankrupt() bool {
	return p != nil && p.Balance <= 0
}

// EffectiveAccuracy folds the steady-aim stack and any shock penalty into
// the base accuracy, clamped to the legal interval.
func (p *Player) EffectiveAccuracy() int {
	acc := p.Accuracy + p.steadyStacks*steadyAimBonus - p.shockPenalty
	return clampInt(acc, MinAccuracy, MaxAccuracy)
}

// setAccuracy clamps and stores the base accuracy.
func (p *Player) setAccuracy(accuracy int) {
	p.Accuracy = clampInt(accuracy, MinAccuracy, MaxAccuracy)
}

// derivedRange is monotonically decreasing in effective accuracy, plus a
// flat bonus per spyglass.
func (p *Player) derivedRange() float64 {
	t := float64(p.EffectiveAccuracy()-MinAccuracy) / float64(MaxAccuracy-MinAccuracy)
	r := MaxRange - t*(MaxRange-MinRange)
	r += float64(countItem(p.Items, ItemScope)) * 25.0
	return r
}

// derivedReload is monotonically increasing in effective accuracy; each
// hair trigger shaves a fixed slice, floored at the minimum.
func (p *Player) derivedReload() float64 {
	t := float64(p.EffectiveAccuracy()-MinAccuracy) / float64(MaxAccuracy-MinAccuracy)
	reload := MinReloadSec + t*(MaxReloadSec-MinReloadSec)
	reload -= float64(countItem(p.Items, ItemTrigger)) * 0.3
	if reload < MinReloadSec {
		reload = MinReloadSec
	}
	return reload
}

// derivedSpeed folds boot stacks, wealth drag and the fury multiplier.
func (p *Player) derivedSpeed() float64 {
	speed := BaseSpeed
	speed += float64(countItem(p.Items, ItemBoots)) * 12.0
	speed -= float64(p.Balance/wealthDragStep) * 4.0
	if p.Fury {
		speed *= FurySpeedMultiplier
	}
	return clampFloat(speed, MinSpeed, MaxSpeed)
}

// recomputeFury re-evaluates the comeback flag: the next scheduled
// deduction would wipe the remaining balance.
func (p *Player) recomputeFury() {
	p.Fury = p.Alive && !p.Bankrupt() && p.NextDeduction >= p.Balance
}

// reloadReady reports whether the reload cycle has completed.
func (p *Player) reloadReady() bool {
	return p.ReloadRemaining <= 0
}

func (p *Player) startReload() {
	p.ReloadTotal = p.derivedReload()
	p.ReloadRemaining = p.ReloadTotal
}

func (p *Player) pos() vec2 {
	return vec2{X: p.X, Y: p.Y}
}

func (p *Player) distanceTo(other *Player) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

func (p *Player) snapshot() proto.PlayerSnapshot {
	items := append([]string(nil), p.Items...)
	return proto.PlayerSnapshot{
		ID:       p.ID,
		Name:     p.Name,
		X:        p.X,
		Y:        p.Y,
		Accuracy: p.EffectiveAccuracy(),
		Range:    p.derivedRange(),
		Speed:    p.derivedSpeed(),
		Balance:  p.Balance,
		Alive:    p.Alive,
		Bankrupt: p.Bankrupt(),
		Fury:     p.Fury,
		Items:    items,
		Bot:      p.IsBot(),
	}
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) < statEpsilon
}
