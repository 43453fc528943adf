package simulation

import (
	"math"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
)

// minCellSize keeps the grid from degenerating when all radii are tiny.
const minCellSize = 1.0

type gridKey struct {
	x, z int
}

// Grid is a uniform spatial hash over the horizontal plane. Heights are not
// hashed: a cell is a vertical column.
type Grid struct {
	cellSize float64
	cells    map[gridKey][]*Agent
}

// NewGrid returns an empty grid whose cells are at least cellSize wide.
func NewGrid(cellSize float64) *Grid {
	return &Grid{
		cellSize: math.Max(cellSize, minCellSize),
		cells:    make(map[gridKey][]*Agent),
	}
}

// CellSize returns the width of a cell.
func (g *Grid) CellSize() float64 { return g.cellSize }

// SetCellSize changes the cell width. The grid must be rebuilt afterwards.
func (g *Grid) SetCellSize(size float64) {
	size = math.Max(size, minCellSize)
	if size != g.cellSize {
		g.cellSize = size
		clear(g.cells)
	}
}

func (g *Grid) key(p geometry.Vector3) gridKey {
	return gridKey{
		x: int(math.Floor(p.X / g.cellSize)),
		z: int(math.Floor(p.Z / g.cellSize)),
	}
}

// Rebuild places every agent in its cell.
func (g *Grid) Rebuild(agents []*Agent) {
	// keep the backing arrays, only the lengths are reset
	for k := range g.cells {
		g.cells[k] = g.cells[k][:0]
	}
	for _, a := range agents {
		k := g.key(a.Pos)
		g.cells[k] = append(g.cells[k], a)
	}
}

// Nearby appends to buf the agents of the 3x3 block of cells around p. With a
// cell at least as wide as the largest perception radius, no agent within
// that radius of p is missed.
func (g *Grid) Nearby(p geometry.Vector3, buf []*Agent) []*Agent {
	c := g.key(p)
	for i := c.x - 1; i <= c.x+1; i++ {
		for j := c.z - 1; j <= c.z+1; j++ {
			buf = append(buf, g.cells[gridKey{x: i, z: j}]...)
		}
	}
	return buf
}

// Within appends to buf the agents closer than radius to p, scanning only the
// cells the radius overlaps.
func (g *Grid) Within(p geometry.Vector3, radius float64, buf []*Agent) []*Agent {
	radiusSq := radius * radius
	lo := g.key(p.Sub(geometry.Vector3{X: radius, Z: radius}))
	hi := g.key(p.Add(geometry.Vector3{X: radius, Z: radius}))
	for i := lo.x; i <= hi.x; i++ {
		for j := lo.z; j <= hi.z; j++ {
			for _, a := range g.cells[gridKey{x: i, z: j}] {
				if a.Pos.DistanceSquaredTo(p) < radiusSq {
					buf = append(buf, a)
				}
			}
		}
	}
	return buf
}
