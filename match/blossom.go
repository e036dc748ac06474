// Blossom algorithm for dense non-directed graphs
//
// Copyright (c) 2023, 2024  The go-cuteseal authors
//
// This file is part of go-cuteseal.
//
// go-cuteseal is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// go-cuteseal is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with go-cuteseal. If not, see
// <http://www.gnu.org/licenses/>

// Package match implements maximum-cardinality matching on dense
// undirected graphs via Edmonds' blossom contraction.  The swiss
// scheduler uses it to check whether a round is still pairable, i.e.
// whether a pairing exists where no two players meet again.
package match

// Vertex is a graph vertex id.
type Vertex = int

// Edge is an undirected edge with V0 < V1.
type Edge struct {
	V0, V1 Vertex
}

// MakeEdge normalises the vertex order.
func MakeEdge(v0, v1 Vertex) Edge {
	if v1 < v0 {
		v0, v1 = v1, v0
	}
	return Edge{V0: v0, V1: v1}
}

// DenseGraph is an adjacency bitmap over a fixed vertex count.
type DenseGraph struct {
	connections []bool
	vertices    int
}

func MakeDenseGraph(numVertices int) *DenseGraph {
	return &DenseGraph{
		connections: make([]bool, numVertices*numVertices),
		vertices:    numVertices,
	}
}

func (g *DenseGraph) Copy() *DenseGraph {
	c := &DenseGraph{
		connections: make([]bool, len(g.connections)),
		vertices:    g.vertices,
	}
	copy(c.connections, g.connections)
	return c
}

func (g *DenseGraph) ContainsEdge(v0, v1 Vertex) bool {
	if v1 < v0 {
		v0, v1 = v1, v0
	}
	return g.connections[v0*g.vertices+v1]
}

func (g *DenseGraph) InsertEdge(v0, v1 Vertex) {
	if v1 < v0 {
		v0, v1 = v1, v0
	}
	g.connections[v0*g.vertices+v1] = true
}

func (g *DenseGraph) RemoveEdge(v0, v1 Vertex) {
	if v1 < v0 {
		v0, v1 = v1, v0
	}
	g.connections[v0*g.vertices+v1] = false
}

func (g *DenseGraph) NumVertices() int {
	return g.vertices
}

func (g *DenseGraph) NumEdges() int {
	n := 0
	for i := 0; i < g.vertices; i++ {
		for j := i + 1; j < g.vertices; j++ {
			if g.connections[i*g.vertices+j] {
				n++
			}
		}
	}
	return n
}

// forestNode is a node of the alternating forest built during the
// augmenting-path search.  Parent is -1 for roots.
type forestNode struct {
	parent Vertex
	dist   int // distance to root, -1 when not in the forest
}

type matching map[Vertex]Vertex

func addExposedVerticesAsForestRoots(g *DenseGraph, m matching,
	forest []forestNode, queue *[]Vertex) {
	for v := 0; v < g.NumVertices(); v++ {
		if _, ok := m[v]; !ok {
			forest[v] = forestNode{parent: -1, dist: 0}
			*queue = append(*queue, v)
		}
	}
}

func removeMatchedEdges(unmarked *DenseGraph, m matching) {
	for v0, v1 := range m {
		if v0 < v1 {
			unmarked.RemoveEdge(v0, v1)
		}
	}
}

func forestRoot(forest []forestNode, x Vertex) Vertex {
	for forest[x].parent != -1 {
		x = forest[x].parent
	}
	return x
}

func closestSharedParent(forest []forestNode, x, y Vertex) Vertex {
	for x != y {
		if forest[x].dist >= forest[y].dist {
			x = forest[x].parent
		} else {
			y = forest[y].parent
		}
	}
	return x
}

// contract renames every node in blossomNodes to blossomID in both
// the graph and the matching.
func contract(g *DenseGraph, m matching, blossomNodes map[Vertex]bool, blossomID Vertex) {
	n := g.NumVertices()
	for v0 := 0; v0 < n; v0++ {
		in0 := blossomNodes[v0]
		for v1 := v0 + 1; v1 < n; v1++ {
			if !g.ContainsEdge(v0, v1) {
				continue
			}
			in1 := blossomNodes[v1]
			if in0 || in1 {
				g.RemoveEdge(v0, v1)
				if !in1 {
					g.InsertEdge(blossomID, v1)
				}
				if !in0 {
					g.InsertEdge(v0, blossomID)
				}
			}
		}
	}

	for v := range blossomNodes {
		if v == blossomID {
			continue // keep the root matches
		}
		if w, ok := m[v]; ok {
			delete(m, v)
			if m[w] == v {
				delete(m, w)
			}
		}
	}
}

// liftPath expands a path through the contracted graph back into the
// original graph, choosing the parity-correct traversal around the
// blossom so that endpoint connectivity is preserved.
func liftPath(contracted []Vertex, blossomID, v, w Vertex,
	g *DenseGraph, forest []forestNode) []Vertex {
	var lifted []Vertex

	for i, x := range contracted {
		if x != blossomID {
			lifted = append(lifted, x)
			continue
		}

		// Unroll the blossom: root first, then the stem through
		// v, then back through w.
		bDist := forest[blossomID].dist
		vDist := forest[v].dist
		wDist := forest[w].dist

		blossomPath := make([]Vertex, vDist+wDist-2*bDist+1)
		blossomPath[0] = blossomID

		d := vDist - bDist
		for y := v; y != blossomID; y = forest[y].parent {
			blossomPath[d] = y
			d--
		}
		d = vDist - bDist + 1
		for y := w; y != blossomID; y = forest[y].parent {
			blossomPath[d] = y
			d++
		}

		prev, next := Vertex(-1), Vertex(-1)
		if i > 0 {
			prev = contracted[i-1]
		}
		if i+1 < len(contracted) {
			next = contracted[i+1]
		}

		fromIndex, toIndex := len(blossomPath), len(blossomPath)
		maxPathLen := 0

		for k := 0; k < len(blossomPath); k++ {
			pathLen := 1 + k
			if k%2 != 0 {
				pathLen = 1 + len(blossomPath) - k
			}
			if pathLen <= maxPathLen {
				continue
			}

			switch {
			case prev != -1 && next != -1:
				if i%2 == 0 {
					// The root must connect to the previous vertex.
					if !g.ContainsEdge(prev, blossomPath[0]) ||
						!g.ContainsEdge(next, blossomPath[k]) {
						continue
					}
					fromIndex, toIndex = 0, k
				} else {
					if !g.ContainsEdge(prev, blossomPath[k]) ||
						!g.ContainsEdge(next, blossomPath[0]) {
						continue
					}
					fromIndex, toIndex = k, 0
				}
			case prev == -1:
				if !g.ContainsEdge(blossomPath[k], next) {
					continue
				}
				fromIndex, toIndex = 0, k
			default: // next == -1
				if !g.ContainsEdge(blossomPath[k], prev) {
					continue
				}
				fromIndex, toIndex = k, 0
			}
			maxPathLen = pathLen
		}

		// The root is always part of the extracted path.
		if fromIndex == 0 {
			lifted = append(lifted, blossomPath[0])
			if toIndex%2 == 0 {
				for j := 1; j <= toIndex; j++ {
					lifted = append(lifted, blossomPath[j])
				}
			} else {
				for j := len(blossomPath) - 1; j >= toIndex; j-- {
					lifted = append(lifted, blossomPath[j])
				}
			}
		} else {
			if fromIndex%2 == 0 {
				for j := fromIndex; j > 0; j-- {
					lifted = append(lifted, blossomPath[j])
				}
			} else {
				for j := fromIndex; j < len(blossomPath); j++ {
					lifted = append(lifted, blossomPath[j])
				}
			}
			lifted = append(lifted, blossomPath[0])
		}
	}

	return lifted
}

func findAugmentingPath(g *DenseGraph, m matching) []Vertex {
	forest := make([]forestNode, g.NumVertices())
	for i := range forest {
		forest[i] = forestNode{parent: -1, dist: -1}
	}
	var queue []Vertex // even-distance forest vertices
	unmarked := g.Copy()

	addExposedVerticesAsForestRoots(g, m, forest, &queue)
	removeMatchedEdges(unmarked, m)

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]

		for w := 0; w < g.NumVertices(); w++ {
			if !unmarked.ContainsEdge(v, w) {
				continue
			}

			if forest[w].dist < 0 {
				// w is matched and outside the forest: extend
				// the tree through its partner.
				x := m[w]
				forest[w] = forestNode{parent: v, dist: forest[v].dist + 1}
				forest[x] = forestNode{parent: w, dist: forest[v].dist + 2}
				queue = append(queue, x)
			} else if forest[w].dist%2 == 0 {
				if forestRoot(forest, v) != forestRoot(forest, w) {
					// Two trees touch on an even-even edge:
					// the root-to-root walk augments.
					p := make([]Vertex, forest[v].dist+1+forest[w].dist+1)
					x := v
					for i := 0; i <= forest[v].dist; i++ {
						p[forest[v].dist-i] = x
						x = forest[x].parent
					}
					x = w
					for i := 0; i <= forest[w].dist; i++ {
						p[forest[v].dist+1+i] = x
						x = forest[x].parent
					}
					return p
				}

				// Same tree: contract the odd cycle and recurse.
				parent := closestSharedParent(forest, v, w)
				blossomNodes := map[Vertex]bool{parent: true}
				for x := v; x != parent; x = forest[x].parent {
					blossomNodes[x] = true
				}
				for x := w; x != parent; x = forest[x].parent {
					blossomNodes[x] = true
				}

				cg := g.Copy()
				cm := make(matching, len(m))
				for k, val := range m {
					cm[k] = val
				}
				contract(cg, cm, blossomNodes, parent)

				path := findAugmentingPath(cg, cm)
				return liftPath(path, parent, v, w, g, forest)
			}

			unmarked.RemoveEdge(v, w)
		}
	}

	return nil
}

// FindMaximumMatching returns a maximum set of vertex-disjoint edges
// of the graph.
func FindMaximumMatching(g *DenseGraph) []Edge {
	m := make(matching)

	// Initial matching: add everything that can be added trivially.
	for i := 0; i < g.NumVertices(); i++ {
		if _, ok := m[i]; ok {
			continue
		}
		for j := i + 1; j < g.NumVertices(); j++ {
			if _, ok := m[j]; ok {
				continue
			}
			if g.ContainsEdge(i, j) {
				m[i] = j
				m[j] = i
				break
			}
		}
	}

	for {
		p := findAugmentingPath(g, m)
		if len(p) == 0 {
			break
		}

		// Flip matched and unmatched edges along the path.
		insert := true
		for i := 0; i < len(p)-1; i++ {
			if insert {
				m[p[i]] = p[i+1]
				m[p[i+1]] = p[i]
			}
			insert = !insert
		}
	}

	edges := make([]Edge, 0, g.NumVertices()/2)
	for v0, v1 := range m {
		if v0 < v1 {
			edges = append(edges, Edge{V0: v0, V1: v1})
		}
	}
	return edges
}
