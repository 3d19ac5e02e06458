package navgraph

import (
	"container/heap"
	"fmt"
	"math"
)

// ShortestPath returns the vertex sequence from start to dest inclusive, or an
// empty slice when dest is unreachable or either endpoint is out of range.
func (g *Graph) ShortestPath(start, dest VertexID) []VertexID {
	path, err := g.FindPath(start, dest)
	if err != nil {
		return []VertexID{}
	}
	return path
}

// FindPath runs A* with the straight-line distance to dest as heuristic. Lane
// weights are straight-line distances too, so the heuristic is consistent and
// the first time dest leaves the frontier its path is optimal. Frontier ties on
// f are broken by insertion order.
func (g *Graph) FindPath(start, dest VertexID) ([]VertexID, error) {
	if !g.Contains(start) || !g.Contains(dest) {
		return nil, fmt.Errorf("%w: %d -> %d (graph has %d vertices)", ErrOutOfRange, start, dest, len(g.vertices))
	}
	if start == dest {
		return []VertexID{start}, nil
	}

	goal := g.vertices[dest].Pos
	h := func(v VertexID) float64 { return g.vertices[v].Pos.Dist(goal) }

	n := len(g.vertices)
	dist := make([]float64, n)
	prev := make([]VertexID, n)
	closed := make([]bool, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		prev[i] = -1
	}
	dist[start] = 0

	pq := &frontier{}
	seq := 0
	heap.Push(pq, &item{node: start, g: 0, f: h(start), seq: seq})

	for pq.Len() > 0 {
		it := heap.Pop(pq).(*item)
		u := it.node
		if closed[u] || it.g > dist[u] {
			continue
		}
		if u == dest {
			return reconstruct(prev, dest), nil
		}
		closed[u] = true

		for _, e := range g.adj[u] {
			if closed[e.to] {
				continue
			}
			alt := dist[u] + e.weight
			if alt < dist[e.to] {
				dist[e.to] = alt
				prev[e.to] = u
				seq++
				heap.Push(pq, &item{node: e.to, g: alt, f: alt + h(e.to), seq: seq})
			}
		}
	}
	return nil, fmt.Errorf("%w: %d -> %d", ErrNoPath, start, dest)
}

func reconstruct(prev []VertexID, dest VertexID) []VertexID {
	var rev []VertexID
	for u := dest; u != -1; u = prev[u] {
		rev = append(rev, u)
	}
	path := make([]VertexID, len(rev))
	for i, v := range rev {
		path[len(rev)-1-i] = v
	}
	return path
}

type item struct {
	node VertexID
	g    float64
	f    float64
	seq  int
}

// frontier is the A* open set ordered by f, then insertion order.
type frontier []*item

func (pq frontier) Len() int { return len(pq) }
func (pq frontier) Less(i, j int) bool {
	if pq[i].f != pq[j].f {
		return pq[i].f < pq[j].f
	}
	return pq[i].seq < pq[j].seq
}
func (pq frontier) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *frontier) Push(x any)   { *pq = append(*pq, x.(*item)) }
func (pq *frontier) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	*pq = old[:n-1]
	return it
}
