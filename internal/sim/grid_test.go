package sim

import (
	"math/rand"
	"testing"
)

func TestFindPathReachesGoal(t *testing.T) {
	g := NewDefaultGrid()
	start := cell{Col: 2, Row: 2}
	goal := cell{Col: 30, Row: 20}

	path, ok := g.findPath(start, goal)
	if !ok {
		t.Fatalf("expected a path across the open arena")
	}
	if len(path) == 0 || path[len(path)-1] != goal {
		t.Fatalf("expected path to end at %v, got %v", goal, path)
	}
	prev := start
	for _, step := range path {
		dc := step.Col - prev.Col
		dr := step.Row - prev.Row
		if dc*dc+dr*dr != 1 {
			t.Fatalf("non-adjacent step %v -> %v", prev, step)
		}
		if !g.isWalkable(step.Col, step.Row) {
			t.Fatalf("path crosses blocked cell %v", step)
		}
		prev = step
	}
}

func TestFindPathRejectsBlockedGoal(t *testing.T) {
	g := NewDefaultGrid()
	blocked := cell{Col: defaultWalls[0][0], Row: defaultWalls[0][1]}
	if _, ok := g.findPath(cell{Col: 2, Row: 2}, blocked); ok {
		t.Fatalf("expected no path into a wall cell")
	}
}

func TestFindPathSameCellIsEmpty(t *testing.T) {
	g := NewDefaultGrid()
	path, ok := g.findPath(cell{Col: 4, Row: 4}, cell{Col: 4, Row: 4})
	if !ok || len(path) != 0 {
		t.Fatalf("expected empty path to self, got %v ok=%v", path, ok)
	}
}

func TestLineOfSightBlockedByWalls(t *testing.T) {
	g := NewDefaultGrid()
	// The center cross sits around cells (19..20, 10..12).
	left := g.worldPos(cell{Col: 16, Row: 11})
	right := g.worldPos(cell{Col: 23, Row: 11})
	if g.lineOfSight(left, right) {
		t.Fatalf("expected the center wall to block sight")
	}

	a := g.worldPos(cell{Col: 2, Row: 2})
	b := g.worldPos(cell{Col: 6, Row: 2})
	if !g.lineOfSight(a, b) {
		t.Fatalf("expected clear sight along an open row")
	}
}

func TestSpawnPointsAreInsideTheArena(t *testing.T) {
	g := NewDefaultGrid()
	for i := 0; i < MaxPlayers*2; i++ {
		spawn := g.spawnPoint(i)
		if spawn.X < 0 || spawn.X > WorldWidth || spawn.Y < 0 || spawn.Y > WorldHeight {
			t.Fatalf("spawn %d outside arena: %+v", i, spawn)
		}
	}
}

func TestRandomWalkableCellAvoidsWalls(t *testing.T) {
	g := NewDefaultGrid()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		c, ok := g.randomWalkableCell(rng.Intn)
		if !ok {
			t.Fatalf("expected a walkable cell on a mostly-open map")
		}
		if !g.isWalkable(c.Col, c.Row) {
			t.Fatalf("random cell %v is blocked", c)
		}
	}
}
