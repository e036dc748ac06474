package match

import "testing"

func edgesDisjoint(t *testing.T, g *DenseGraph, m []Edge) {
	t.Helper()
	seen := make(map[Vertex]bool)
	for _, e := range m {
		if !g.ContainsEdge(e.V0, e.V1) {
			t.Errorf("matching edge (%d,%d) not in graph", e.V0, e.V1)
		}
		if seen[e.V0] || seen[e.V1] {
			t.Errorf("vertex reused by matching edge (%d,%d)", e.V0, e.V1)
		}
		seen[e.V0] = true
		seen[e.V1] = true
	}
}

// bruteMaximum computes the true maximum matching size by exhaustive
// search.  Only usable on small graphs.
func bruteMaximum(g *DenseGraph, used []bool, from int) int {
	best := 0
	for v0 := from; v0 < g.NumVertices(); v0++ {
		if used[v0] {
			continue
		}
		for v1 := v0 + 1; v1 < g.NumVertices(); v1++ {
			if used[v1] || !g.ContainsEdge(v0, v1) {
				continue
			}
			used[v0], used[v1] = true, true
			if n := 1 + bruteMaximum(g, used, v0+1); n > best {
				best = n
			}
			used[v0], used[v1] = false, false
		}
	}
	return best
}

func graphFromEdges(n int, edges [][2]int) *DenseGraph {
	g := MakeDenseGraph(n)
	for _, e := range edges {
		g.InsertEdge(e[0], e[1])
	}
	return g
}

func TestTwoFiveCycles(t *testing.T) {
	edges := [][2]int{
		{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 0},
		{5, 6}, {6, 7}, {7, 8}, {8, 9}, {9, 5},
	}
	g := graphFromEdges(10, edges)

	m := FindMaximumMatching(g)
	edgesDisjoint(t, g, m)
	if len(m) != 4 {
		t.Errorf("expected matching of size 4 on two 5-cycles, got %d", len(m))
	}

	// A bridge between the cycles makes them fully matchable.
	g.InsertEdge(1, 9)
	m = FindMaximumMatching(g)
	edgesDisjoint(t, g, m)
	if len(m) != 5 {
		t.Errorf("expected matching of size 5 on bridged cycles, got %d", len(m))
	}
}

func TestDisjointEdges(t *testing.T) {
	// k disjoint edges plus isolated vertices
	for _, k := range []int{1, 3, 5} {
		extra := 4
		g := MakeDenseGraph(2*k + extra)
		for i := 0; i < k; i++ {
			g.InsertEdge(2*i, 2*i+1)
		}

		m := FindMaximumMatching(g)
		edgesDisjoint(t, g, m)
		if len(m) != k {
			t.Errorf("k=%d: expected %d edges, got %d", k, k, len(m))
		}
	}
}

func TestAgainstBruteForce(t *testing.T) {
	for i, test := range []struct {
		vertices int
		edges    [][2]int
	}{
		{vertices: 2, edges: [][2]int{{0, 1}}},
		{vertices: 4, edges: [][2]int{{0, 1}, {1, 2}, {2, 3}}},
		// Triangle with a tail
		{vertices: 5, edges: [][2]int{{0, 1}, {1, 2}, {2, 0}, {2, 3}, {3, 4}}},
		// Two triangles joined by an edge (classic blossom case)
		{vertices: 6, edges: [][2]int{
			{0, 1}, {1, 2}, {2, 0},
			{3, 4}, {4, 5}, {5, 3},
			{2, 3},
		}},
		// Odd cycle of length 7
		{vertices: 7, edges: [][2]int{
			{0, 1}, {1, 2}, {2, 3}, {3, 4}, {4, 5}, {5, 6}, {6, 0},
		}},
		// Complete graph on 6 vertices
		{vertices: 6, edges: func() (e [][2]int) {
			for i := 0; i < 6; i++ {
				for j := i + 1; j < 6; j++ {
					e = append(e, [2]int{i, j})
				}
			}
			return
		}()},
		// Star: center cannot be matched twice
		{vertices: 6, edges: [][2]int{{0, 1}, {0, 2}, {0, 3}, {0, 4}, {0, 5}}},
	} {
		g := graphFromEdges(test.vertices, test.edges)
		m := FindMaximumMatching(g)
		edgesDisjoint(t, g, m)

		want := bruteMaximum(g, make([]bool, test.vertices), 0)
		if len(m) != want {
			t.Errorf("case %d: expected matching of size %d, got %d",
				i, want, len(m))
		}
	}
}

func TestEmptyGraph(t *testing.T) {
	g := MakeDenseGraph(5)
	if m := FindMaximumMatching(g); len(m) != 0 {
		t.Errorf("expected empty matching, got %v", m)
	}
}
