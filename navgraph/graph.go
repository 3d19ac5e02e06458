// Package navgraph holds the navigation graph robots move over: vertices,
// undirected lanes weighted by Euclidean length, and shortest-path queries.
// A Graph is immutable once built.
package navgraph

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidGraph = errors.New("invalid navigation graph")
	ErrOutOfRange   = errors.New("vertex out of range")
	ErrNoPath       = errors.New("no path")
)

type VertexID int

// Point is a position in raw graph units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Dist(q Point) float64 { return math.Hypot(q.X-p.X, q.Y-p.Y) }

type Vertex struct {
	ID        VertexID `json:"id"`
	Name      string   `json:"name"`
	Pos       Point    `json:"pos"`
	IsCharger bool     `json:"is_charger"`
}

type Lane struct {
	From   VertexID `json:"from"`
	To     VertexID `json:"to"`
	Weight float64  `json:"weight"`
}

type edge struct {
	to     VertexID
	weight float64
}

type Graph struct {
	vertices []Vertex
	adj      [][]edge
	lanes    []Lane
	laneIdx  map[[2]VertexID]int
}

// New builds a graph. Vertex ids are assigned by position in vertices; a lane
// naming an index outside the list is rejected with ErrInvalidGraph.
func New(vertices []Vertex, lanes [][2]VertexID) (*Graph, error) {
	g := &Graph{
		vertices: make([]Vertex, len(vertices)),
		adj:      make([][]edge, len(vertices)),
		laneIdx:  make(map[[2]VertexID]int),
	}
	for i, v := range vertices {
		v.ID = VertexID(i)
		if v.Name == "" {
			v.Name = fmt.Sprintf("V%d", i)
		}
		g.vertices[i] = v
	}
	for i, l := range lanes {
		if !g.Contains(l[0]) || !g.Contains(l[1]) {
			return nil, fmt.Errorf("%w: lane %d references vertex %d-%d, graph has %d vertices",
				ErrInvalidGraph, i, l[0], l[1], len(vertices))
		}
		g.addLane(l[0], l[1])
	}
	return g, nil
}

// addLane inserts an undirected lane. A repeated pair overwrites the earlier one.
func (g *Graph) addLane(a, b VertexID) {
	if a == b {
		return
	}
	w := g.vertices[a].Pos.Dist(g.vertices[b].Pos)
	g.setEdge(a, b, w)
	g.setEdge(b, a, w)

	key := [2]VertexID{min(a, b), max(a, b)}
	if i, ok := g.laneIdx[key]; ok {
		g.lanes[i] = Lane{From: a, To: b, Weight: w}
		return
	}
	g.laneIdx[key] = len(g.lanes)
	g.lanes = append(g.lanes, Lane{From: a, To: b, Weight: w})
}

func (g *Graph) setEdge(from, to VertexID, w float64) {
	for i := range g.adj[from] {
		if g.adj[from][i].to == to {
			g.adj[from][i].weight = w
			return
		}
	}
	g.adj[from] = append(g.adj[from], edge{to: to, weight: w})
}

func (g *Graph) Len() int { return len(g.vertices) }

func (g *Graph) Contains(id VertexID) bool { return id >= 0 && int(id) < len(g.vertices) }

func (g *Graph) Vertex(id VertexID) (Vertex, bool) {
	if !g.Contains(id) {
		return Vertex{}, false
	}
	return g.vertices[id], true
}

// Position satisfies robot.Locator.
func (g *Graph) Position(id VertexID) (Point, bool) {
	if !g.Contains(id) {
		return Point{}, false
	}
	return g.vertices[id].Pos, true
}

// Vertices returns a copy of the vertex list in id order.
func (g *Graph) Vertices() []Vertex {
	out := make([]Vertex, len(g.vertices))
	copy(out, g.vertices)
	return out
}

// Lanes returns a copy of the lane list in insertion order.
func (g *Graph) Lanes() []Lane {
	out := make([]Lane, len(g.lanes))
	copy(out, g.lanes)
	return out
}

// Neighbors returns the vertices adjacent to id in lane insertion order.
func (g *Graph) Neighbors(id VertexID) []VertexID {
	if !g.Contains(id) {
		return nil
	}
	out := make([]VertexID, len(g.adj[id]))
	for i, e := range g.adj[id] {
		out[i] = e.to
	}
	return out
}

// LaneWeight returns the weight of the lane between a and b.
func (g *Graph) LaneWeight(a, b VertexID) (float64, bool) {
	if !g.Contains(a) {
		return 0, false
	}
	for _, e := range g.adj[a] {
		if e.to == b {
			return e.weight, true
		}
	}
	return 0, false
}

// PathLength sums lane weights along path. Consecutive vertices without a lane
// make the path invalid and return +Inf.
func (g *Graph) PathLength(path []VertexID) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		w, ok := g.LaneWeight(path[i-1], path[i])
		if !ok {
			return math.Inf(1)
		}
		total += w
	}
	return total
}
