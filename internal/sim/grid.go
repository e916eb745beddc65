package sim

import "math"

const (
	gridCellSize = 32.0
	WorldWidth   = 1280.0
	WorldHeight  = 736.0
	playerHalf   = 14.0
)

type vec2 struct {
	X, Y float64
}

type cell struct {
	Col, Row int
}

// Grid is the collision/spawn map. It is loaded once at startup and
// immutable afterwards; the simulation only ever reads it.
type Grid struct {
	cols, rows int
	cellSize   float64
	walkable   []bool
	spawns     []vec2
}

// defaultWalls lists blocked cells as (col,row) pairs: a few scattered
// cover blocks plus a center cross.
var defaultWalls = [][2]int{
	{10, 5}, {10, 6}, {10, 7}, {11, 5}, {11, 7},
	{29, 5}, {29, 6}, {29, 7}, {28, 5}, {28, 7},
	{10, 15}, {10, 16}, {10, 17}, {11, 17},
	{29, 15}, {29, 16}, {29, 17}, {28, 15},
	{19, 10}, {20, 10}, {19, 11}, {20, 11},
	{19, 12}, {20, 12},
	{5, 11}, {6, 11}, {33, 11}, {34, 11},
}

// NewDefaultGrid builds the fixed arena map.
func NewDefaultGrid() *Grid {
	cols := int(WorldWidth / gridCellSize)
	rows := int(WorldHeight / gridCellSize)
	g := &Grid{
		cols:     cols,
		rows:     rows,
		cellSize: gridCellSize,
		walkable: make([]bool, cols*rows),
	}
	for i := range g.walkable {
		g.walkable[i] = true
	}
	for _, wall := range defaultWalls {
		if g.inBounds(wall[0], wall[1]) {
			g.walkable[g.index(wall[0], wall[1])] = false
		}
	}
	// Spawn ring around the arena edge, two cells in from each border.
	for i := 0; i < MaxPlayers; i++ {
		angle := 2 * math.Pi * float64(i) / float64(MaxPlayers)
		cx := WorldWidth/2 + math.Cos(angle)*(WorldWidth/2-3*gridCellSize)
		cy := WorldHeight/2 + math.Sin(angle)*(WorldHeight/2-3*gridCellSize)
		g.spawns = append(g.spawns, vec2{X: cx, Y: cy})
	}
	return g
}

func (g *Grid) inBounds(col, row int) bool {
	return g != nil && col >= 0 && row >= 0 && col < g.cols && row < g.rows
}

func (g *Grid) index(col, row int) int {
	return row*g.cols + col
}

func (g *Grid) isWalkable(col, row int) bool {
	if !g.inBounds(col, row) {
		return false
	}
	return g.walkable[g.index(col, row)]
}

func (g *Grid) worldPos(c cell) vec2 {
	return vec2{
		X: (float64(c.Col) + 0.5) * g.cellSize,
		Y: (float64(c.Row) + 0.5) * g.cellSize,
	}
}

func (g *Grid) locate(x, y float64) (cell, bool) {
	if g == nil || g.cols == 0 || g.rows == 0 {
		return cell{}, false
	}
	col := int(clampFloat(x, 0, WorldWidth-1) / g.cellSize)
	row := int(clampFloat(y, 0, WorldHeight-1) / g.cellSize)
	if !g.inBounds(col, row) {
		return cell{}, false
	}
	return cell{Col: col, Row: row}, true
}

// spawnPoint returns a fixed spawn slot, wrapping past capacity.
func (g *Grid) spawnPoint(i int) vec2 {
	if g == nil || len(g.spawns) == 0 {
		return vec2{X: WorldWidth / 2, Y: WorldHeight / 2}
	}
	if i < 0 {
		i = -i
	}
	return g.spawns[i%len(g.spawns)]
}

var gridNeighborOffsets = [...][2]int{
	{0, -1}, {1, 0}, {0, 1}, {-1, 0},
}

// findPath runs breadth-first search over the grid and returns the cell
// path from start to goal, excluding the start cell.
func (g *Grid) findPath(start, goal cell) ([]cell, bool) {
	if g == nil || !g.isWalkable(goal.Col, goal.Row) || !g.inBounds(start.Col, start.Row) {
		return nil, false
	}
	if start == goal {
		return nil, true
	}
	parent := make(map[int]int)
	startIdx := g.index(start.Col, start.Row)
	goalIdx := g.index(goal.Col, goal.Row)
	parent[startIdx] = -1
	queue := []cell{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, delta := range gridNeighborOffsets {
			nc, nr := current.Col+delta[0], current.Row+delta[1]
			if !g.isWalkable(nc, nr) {
				continue
			}
			idx := g.index(nc, nr)
			if _, seen := parent[idx]; seen {
				continue
			}
			parent[idx] = g.index(current.Col, current.Row)
			if idx == goalIdx {
				return g.reconstruct(parent, goalIdx, startIdx), true
			}
			queue = append(queue, cell{Col: nc, Row: nr})
		}
	}
	return nil, false
}

func (g *Grid) reconstruct(parent map[int]int, goalIdx, startIdx int) []cell {
	path := make([]cell, 0)
	for idx := goalIdx; idx != startIdx; idx = parent[idx] {
		path = append(path, cell{Col: idx % g.cols, Row: idx / g.cols})
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// lineOfSight walks the segment between two points at sub-cell resolution
// and reports whether it crosses a blocked cell.
func (g *Grid) lineOfSight(from, to vec2) bool {
	if g == nil {
		return true
	}
	dist := math.Hypot(to.X-from.X, to.Y-from.Y)
	if dist == 0 {
		return true
	}
	steps := int(dist/(g.cellSize/2)) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := from.X + (to.X-from.X)*t
		y := from.Y + (to.Y-from.Y)*t
		c, ok := g.locate(x, y)
		if !ok || !g.walkable[g.index(c.Col, c.Row)] {
			return false
		}
	}
	return true
}

// randomWalkableCell picks a uniformly random open cell.
func (g *Grid) randomWalkableCell(random func(n int) int) (cell, bool) {
	if g == nil || random == nil {
		return cell{}, false
	}
	for attempt := 0; attempt < 64; attempt++ {
		col := random(g.cols)
		row := random(g.rows)
		if g.isWalkable(col, row) {
			return cell{Col: col, Row: row}, true
		}
	}
	return cell{}, false
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
