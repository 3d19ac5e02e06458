package navgraph

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
)

func square(t *testing.T, lanes [][2]VertexID) *Graph {
	t.Helper()
	g, err := New([]Vertex{
		{Pos: Point{0, 0}},
		{Pos: Point{1, 0}},
		{Pos: Point{0, 1}},
		{Pos: Point{1, 1}},
	}, lanes)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func equalPath(a, b []VertexID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParseLevels(t *testing.T) {
	doc := `{
	"levels": {
		"L1": {
			"vertices": [[0, 0, {"name": "dock", "is_charger": true}], [10, 0, {}], [10, 5]],
			"lanes": [[0, 1, {"speed_limit": 1}], [1, 2]]
		},
		"L2": {
			"vertices": [[99, 99]],
			"lanes": []
		}
	}
}`
	g, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if g.Len() != 3 {
		t.Fatalf("Len = %d, want 3 (first level)", g.Len())
	}
	v0, _ := g.Vertex(0)
	if v0.Name != "dock" || !v0.IsCharger {
		t.Errorf("vertex 0 = %+v, want charger named dock", v0)
	}
	v1, _ := g.Vertex(1)
	if v1.Name != "V1" || v1.IsCharger {
		t.Errorf("vertex 1 = %+v, want default name, not charger", v1)
	}
	if w, ok := g.LaneWeight(1, 0); !ok || w != 10 {
		t.Errorf("LaneWeight(1,0) = %v,%v, want 10,true", w, ok)
	}
	if got := g.ShortestPath(0, 2); !equalPath(got, []VertexID{0, 1, 2}) {
		t.Errorf("ShortestPath(0,2) = %v", got)
	}
}

func TestParseRootYAML(t *testing.T) {
	doc := `
vertices:
  - [0, 0]
  - [3, 4, {name: bay}]
lanes:
  - [0, 1]
`
	g, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("Len = %d, want 2", g.Len())
	}
	if w, _ := g.LaneWeight(0, 1); w != 5 {
		t.Errorf("weight = %v, want 5", w)
	}
	lanes := g.Lanes()
	if len(lanes) != 1 || lanes[0].From != 0 || lanes[0].To != 1 {
		t.Errorf("Lanes = %+v", lanes)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"garbage", "{not: [valid"},
		{"no vertices", `{"vertices": [], "lanes": []}`},
		{"lane out of range", `{"vertices": [[0,0],[1,0]], "lanes": [[0, 2]]}`},
		{"negative lane index", `{"vertices": [[0,0],[1,0]], "lanes": [[-1, 0]]}`},
		{"short vertex", `{"vertices": [[0]], "lanes": []}`},
		{"non-numeric coordinate", `{"vertices": [["a", 0]], "lanes": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, ErrInvalidGraph) {
				t.Fatalf("err = %v, want ErrInvalidGraph", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrInvalidGraph) {
		t.Fatalf("err = %v, want ErrInvalidGraph", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.yaml")
	if err := os.WriteFile(path, []byte("vertices: [[0, 0], [1, 1]]\nlanes: [[0, 1]]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	g, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := g.Neighbors(0); !equalPath(got, []VertexID{1}) {
		t.Errorf("Neighbors(0) = %v", got)
	}
}

func TestShortestPathDisconnected(t *testing.T) {
	g, err := New([]Vertex{
		{Pos: Point{0, 0}}, {Pos: Point{1, 0}},
		{Pos: Point{5, 5}}, {Pos: Point{6, 5}},
	}, [][2]VertexID{{0, 1}, {2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	got := g.ShortestPath(0, 3)
	if got == nil || len(got) != 0 {
		t.Fatalf("ShortestPath = %#v, want empty non-nil slice", got)
	}
	if _, err := g.FindPath(0, 3); !errors.Is(err, ErrNoPath) {
		t.Errorf("FindPath err = %v, want ErrNoPath", err)
	}
}

func TestShortestPathOutOfRange(t *testing.T) {
	g := square(t, [][2]VertexID{{0, 1}})
	if got := g.ShortestPath(0, 9); len(got) != 0 {
		t.Errorf("ShortestPath(0,9) = %v, want empty", got)
	}
	if _, err := g.FindPath(-1, 0); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("FindPath(-1,0) err = %v, want ErrOutOfRange", err)
	}
}

func TestShortestPathSameVertex(t *testing.T) {
	g := square(t, nil)
	if got := g.ShortestPath(2, 2); !equalPath(got, []VertexID{2}) {
		t.Errorf("ShortestPath(2,2) = %v, want [2]", got)
	}
}

func TestShortestPathTieBreakByDiscovery(t *testing.T) {
	// Both 0-1-3 and 0-2-3 cost 2; the neighbor discovered first wins.
	g := square(t, [][2]VertexID{{0, 1}, {0, 2}, {1, 3}, {2, 3}})
	if got := g.ShortestPath(0, 3); !equalPath(got, []VertexID{0, 1, 3}) {
		t.Errorf("path = %v, want [0 1 3]", got)
	}

	g = square(t, [][2]VertexID{{0, 2}, {0, 1}, {2, 3}, {1, 3}})
	if got := g.ShortestPath(0, 3); !equalPath(got, []VertexID{0, 2, 3}) {
		t.Errorf("path = %v, want [0 2 3]", got)
	}

	// Repeated queries are deterministic.
	first := g.ShortestPath(0, 3)
	for i := 0; i < 10; i++ {
		if got := g.ShortestPath(0, 3); !equalPath(got, first) {
			t.Fatalf("query %d = %v, want %v", i, got, first)
		}
	}
}

func TestParallelLaneLastWriteWins(t *testing.T) {
	g := square(t, [][2]VertexID{{0, 1}, {1, 0}, {0, 0}})
	if n := len(g.Lanes()); n != 1 {
		t.Fatalf("lanes = %d, want 1", n)
	}
	if l := g.Lanes()[0]; l.From != 1 || l.To != 0 {
		t.Errorf("lane = %+v, want last write 1->0", l)
	}
	if n := len(g.Neighbors(0)); n != 1 {
		t.Errorf("Neighbors(0) = %d entries, want 1", n)
	}
}

// bruteForce returns the minimum weight over every simple path from s to d.
func bruteForce(g *Graph, s, d VertexID) float64 {
	best := math.Inf(1)
	visited := make([]bool, g.Len())
	var walk func(u VertexID, cost float64)
	walk = func(u VertexID, cost float64) {
		if u == d {
			best = math.Min(best, cost)
			return
		}
		visited[u] = true
		for _, v := range g.Neighbors(u) {
			if !visited[v] {
				w, _ := g.LaneWeight(u, v)
				walk(v, cost+w)
			}
		}
		visited[u] = false
	}
	walk(s, 0)
	return best
}

func TestShortestPathOptimalRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 60; trial++ {
		n := 3 + rng.Intn(5)
		vertices := make([]Vertex, n)
		for i := range vertices {
			vertices[i] = Vertex{Pos: Point{X: rng.Float64() * 100, Y: rng.Float64() * 100}}
		}
		var lanes [][2]VertexID
		for a := 0; a < n; a++ {
			for b := a + 1; b < n; b++ {
				if rng.Float64() < 0.45 {
					lanes = append(lanes, [2]VertexID{VertexID(a), VertexID(b)})
				}
			}
		}
		g, err := New(vertices, lanes)
		if err != nil {
			t.Fatal(err)
		}

		for s := 0; s < n; s++ {
			for d := 0; d < n; d++ {
				src, dst := VertexID(s), VertexID(d)
				path := g.ShortestPath(src, dst)
				want := bruteForce(g, src, dst)

				if math.IsInf(want, 1) {
					if len(path) != 0 {
						t.Fatalf("trial %d: %d->%d path %v, want empty", trial, s, d, path)
					}
					continue
				}
				if len(path) == 0 || path[0] != src || path[len(path)-1] != dst {
					t.Fatalf("trial %d: %d->%d bad endpoints %v", trial, s, d, path)
				}
				seen := map[VertexID]bool{}
				for _, v := range path {
					if seen[v] {
						t.Fatalf("trial %d: path %v repeats %d", trial, path, v)
					}
					seen[v] = true
				}
				if got := g.PathLength(path); got > want+1e-9 {
					t.Fatalf("trial %d: %d->%d length %v, brute force %v", trial, s, d, got, want)
				}
			}
		}
	}
}
