package sim

import (
	"sort"

	"dartagnan/server/internal/proto"
)

// rankKey orders final standings: survivors (never bankrupted) first, then
// bankrupt players by ascending bankruptcy time.
type rankKey struct {
	survived   bool
	bankruptAt float64
}

func (k rankKey) betterThan(other rankKey) bool {
	if k.survived != other.survived {
		return k.survived
	}
	if k.survived {
		return false
	}
	return k.bankruptAt < other.bankruptAt
}

func (k rankKey) equals(other rankKey) bool {
	if k.survived != other.survived {
		return false
	}
	if k.survived {
		return true
	}
	return k.bankruptAt == other.bankruptAt
}

// assignRanks implements the skip-ahead tie rule: every member of a tie
// group gets rank = (players strictly better) + (size of the group), so a
// two-way tie for first yields two rank-2 entries and no rank 1.
func assignRanks(keys []rankKey) []int {
	n := len(keys)
	ranks := make([]int, n)
	for i := 0; i < n; i++ {
		better, tied := 0, 0
		for j := 0; j < n; j++ {
			if keys[j].betterThan(keys[i]) {
				better++
			} else if keys[j].equals(keys[i]) {
				tied++
			}
		}
		ranks[i] = better + tied
	}
	return ranks
}

// rankedResults computes the end-of-game standings and rewards. The
// reward is the remaining balance plus a rank bonus, capped by the lobby.
func (w *World) rankedResults() []proto.RankEntry {
	players := w.orderedPlayers()
	keys := make([]rankKey, len(players))
	for i, p := range players {
		keys[i] = rankKey{survived: p.BankruptAt < 0, bankruptAt: p.BankruptAt}
	}
	ranks := assignRanks(keys)

	entries := make([]proto.RankEntry, len(players))
	for i, p := range players {
		reward := p.Balance + rankBonus(ranks[i])
		if reward > LobbyRewardCap {
			reward = LobbyRewardCap
		}
		if reward < 0 {
			reward = 0
		}
		entries[i] = proto.RankEntry{ID: p.ID, Name: p.Name, Rank: ranks[i], Reward: reward}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
	return entries
}
