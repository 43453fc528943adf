package simulation

import (
	"testing"

	"github.com/lao-tseu-is-alive/go-swarm-behaviors/pkg/geometry"
)

func contains(list []*Agent, id int) bool {
	for _, a := range list {
		if a.id == id {
			return true
		}
	}
	return false
}

func TestGrid_Rebuild(t *testing.T) {
	// cell size = 100
	g := NewGrid(100)

	agents := []*Agent{
		{id: 1, Pos: geometry.Vector3{X: 50, Z: 50}},         // cell 0,0
		{id: 2, Pos: geometry.Vector3{X: 150, Z: 50}},        // cell 1,0
		{id: 3, Pos: geometry.Vector3{X: 50, Y: 80, Z: 150}}, // cell 0,1, height is ignored
		{id: 4, Pos: geometry.Vector3{X: -50, Z: -50}},       // cell -1,-1
	}
	g.Rebuild(agents)

	tests := []struct {
		key gridKey
		id  int
	}{
		{gridKey{x: 0, z: 0}, 1},
		{gridKey{x: 1, z: 0}, 2},
		{gridKey{x: 0, z: 1}, 3},
		{gridKey{x: -1, z: -1}, 4},
	}
	for _, tt := range tests {
		if list := g.cells[tt.key]; !contains(list, tt.id) {
			t.Errorf("Expected %d in cell %v, got %v", tt.id, tt.key, list)
		}
	}
	if contains(g.cells[gridKey{}], 2) {
		t.Error("Did not expect 2 in cell 0,0")
	}

	// a second rebuild keeps cells but empties those nobody occupies anymore
	agents[0].Pos = geometry.Vector3{X: 250, Z: 250}
	g.Rebuild(agents)
	if n := len(g.cells[gridKey{}]); n != 0 {
		t.Errorf("cell 0,0 holds %d agents after the move", n)
	}
	if !contains(g.cells[gridKey{x: 2, z: 2}], 1) {
		t.Error("Expected 1 in cell 2,2 after the move")
	}
}

func TestGrid_Nearby(t *testing.T) {
	g := NewGrid(100)
	center := &Agent{id: 1, Pos: geometry.Vector3{X: 150, Z: 150}}  // 1,1
	neighbor := &Agent{id: 2, Pos: geometry.Vector3{X: 50, Z: 50}}  // 0,0
	farAway := &Agent{id: 3, Pos: geometry.Vector3{X: 350, Z: 350}} // 3,3
	g.Rebuild([]*Agent{center, neighbor, farAway})

	result := g.Nearby(geometry.Vector3{X: 150, Z: 150}, nil)
	if !contains(result, 1) {
		t.Error("Expected to find center agent")
	}
	if !contains(result, 2) {
		t.Error("Expected to find neighbor agent (in 0,0)")
	}
	if contains(result, 3) {
		t.Error("Should NOT find far agent (in 3,3)")
	}
}

func TestGrid_Within(t *testing.T) {
	g := NewGrid(10)
	agents := []*Agent{
		{id: 1, Pos: geometry.Vector3{X: 1}},
		{id: 2, Pos: geometry.Vector3{X: -4, Z: 2}},
		{id: 3, Pos: geometry.Vector3{X: 30}},
	}
	g.Rebuild(agents)

	got := g.Within(geometry.Vector3{}, 5, nil)
	if len(got) != 2 || !contains(got, 1) || !contains(got, 2) {
		t.Errorf("Within(origin, 5) = %v; want agents 1 and 2", got)
	}
}

func TestGrid_MinimumCellSize(t *testing.T) {
	g := NewGrid(0)
	if g.CellSize() != minCellSize {
		t.Errorf("CellSize() = %v; want %v", g.CellSize(), minCellSize)
	}
	g.SetCellSize(20)
	if g.CellSize() != 20 {
		t.Errorf("CellSize() = %v; want 20", g.CellSize())
	}
}

func BenchmarkGrid_Rebuild(b *testing.B) {
	g := NewGrid(10)
	agents := make([]*Agent, 1000)
	for i := range agents {
		agents[i] = &Agent{id: i, Pos: geometry.Vector3{X: float64(i % 100), Z: float64(i / 10)}}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Rebuild(agents)
	}
}

func BenchmarkGrid_Nearby(b *testing.B) {
	g := NewGrid(10)
	agents := make([]*Agent, 1000)
	for i := range agents {
		agents[i] = &Agent{id: i, Pos: geometry.Vector3{X: float64(i % 100), Z: float64(i / 10)}}
	}
	g.Rebuild(agents)
	var buf []*Agent

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf = g.Nearby(geometry.Vector3{X: 50, Z: 50}, buf[:0])
	}
}
