package sim

import "time"

// TickQuantum is the fixed simulation step. The loop submits one Tick
// command per elapsed quantum regardless of queue latency.
const TickQuantum = 100 * time.Millisecond

const (
	MaxPlayers      = 8
	StartingBalance = 200

	MinAccuracy = 1
	MaxAccuracy = 100

	// Range shrinks and reload grows as accuracy climbs.
	MinRange     = 150.0
	MaxRange     = 400.0
	MinReloadSec = 1.0
	MaxReloadSec = 4.0

	BaseSpeed           = 80.0
	MinSpeed            = 40.0
	MaxSpeed            = 160.0
	FurySpeedMultiplier = 1.5
	// Every wealthDragStep of balance slows a player by one unit.
	wealthDragStep = 100

	steadyAimBonus   = 5
	shockPenalty     = 15
	shockDurationSec = 6.0

	statEpsilon = 1e-6
)

const (
	BaseBet              = 10
	BettingPeriodSec     = 5.0
	DeductionDoubleEvery = 3
	LootShare            = 0.25

	MiningDurationSec = 8.0
	MiningDecay       = 0.5

	InitialRouletteTimeoutSec = 10.0
	RoulettePoolSize          = 8

	ShopSlots             = 3
	ShopBaseDurationSec   = 15.0
	ShopDurationStepSec   = 2.0
	ShopMinDurationSec    = 5.0
	ShopRouletteBasePrice = 30

	MaxRounds           = 10
	EmptyRoomTimeoutSec = 60.0

	LobbyRewardCap = 10000
)

// rankBonusTable pays a flat bonus per final rank; ranks beyond the table
// fall back to the last entry.
var rankBonusTable = map[int]int{
	1: 100,
	2: 60,
	3: 40,
	4: 20,
}

const rankBonusDefault = 10

func rankBonus(rank int) int {
	if bonus, ok := rankBonusTable[rank]; ok {
		return bonus
	}
	return rankBonusDefault
}
