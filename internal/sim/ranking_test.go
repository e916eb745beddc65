package sim

import (
	"testing"

	"pgregory.net/rapid"
)

func keysFromBankruptTimes(times []float64) []rankKey {
	keys := make([]rankKey, len(times))
	for i, at := range times {
		keys[i] = rankKey{survived: at < 0, bankruptAt: at}
	}
	return keys
}

func TestAssignRanksSkipAheadTies(t *testing.T) {
	cases := []struct {
		name  string
		times []float64
		want  []int
	}{
		{
			name:  "survivor then tied pair then last",
			times: []float64{-1, 5, 5, 9},
			want:  []int{1, 3, 3, 4},
		},
		{
			name:  "two survivors tie for first",
			times: []float64{-1, -1, 3},
			want:  []int{2, 2, 3},
		},
		{
			name:  "all distinct",
			times: []float64{-1, 8, 2},
			want:  []int{1, 3, 2},
		},
		{
			name:  "everyone tied",
			times: []float64{4, 4, 4},
			want:  []int{3, 3, 3},
		},
		{
			name:  "single player",
			times: []float64{-1},
			want:  []int{1},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := assignRanks(keysFromBankruptTimes(tc.times))
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d ranks, got %d", len(tc.want), len(got))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("rank mismatch at %d: expected %v, got %v", i, tc.want, got)
				}
			}
		})
	}
}

func TestAssignRanksProperties(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 16).Draw(rt, "players")
		times := make([]float64, n)
		for i := range times {
			if rapid.Bool().Draw(rt, "survived") {
				times[i] = -1
			} else {
				times[i] = float64(rapid.IntRange(0, 60).Draw(rt, "bankruptAt"))
			}
		}
		keys := keysFromBankruptTimes(times)
		ranks := assignRanks(keys)

		for i := range ranks {
			if ranks[i] < 1 || ranks[i] > n {
				rt.Fatalf("rank %d out of bounds for %d players", ranks[i], n)
			}
		}
		for i := range keys {
			for j := range keys {
				if keys[i].betterThan(keys[j]) && ranks[i] >= ranks[j] {
					rt.Fatalf("strictly better player %d ranked %d, worse player %d ranked %d",
						i, ranks[i], j, ranks[j])
				}
				if keys[i].equals(keys[j]) && ranks[i] != ranks[j] {
					rt.Fatalf("tied players %d and %d got ranks %d and %d", i, j, ranks[i], ranks[j])
				}
			}
		}
		// Ranks of a tie group equal better-count plus group size.
		for i := range keys {
			better, tied := 0, 0
			for j := range keys {
				if keys[j].betterThan(keys[i]) {
					better++
				} else if keys[j].equals(keys[i]) {
					tied++
				}
			}
			if ranks[i] != better+tied {
				rt.Fatalf("player %d expected rank %d, got %d", i, better+tied, ranks[i])
			}
		}
	})
}

func TestRankedResultsCapsReward(t *testing.T) {
	w, _ := newTestWorld(t)
	rich := addTestPlayer(w, "croesus")
	rich.Balance = LobbyRewardCap * 2
	poor := addTestPlayer(w, "pauper")
	poor.Balance = 0
	poor.BankruptAt = 12

	entries := w.rankedResults()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Rank != 1 || entries[0].ID != rich.ID {
		t.Fatalf("expected survivor first, got %+v", entries[0])
	}
	if entries[0].Reward != LobbyRewardCap {
		t.Fatalf("expected reward capped at %d, got %d", LobbyRewardCap, entries[0].Reward)
	}
	if entries[1].Reward != rankBonus(2) {
		t.Fatalf("expected bankrupt reward %d, got %d", rankBonus(2), entries[1].Reward)
	}
}
