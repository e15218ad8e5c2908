package world

import "math/rand"

// GenerateWalls carves a wrapping maze. Cells are opened in random order: a cell
// with no open 4-neighbors starts a new area, a cell bordering exactly one area
// with more than openness open neighbors stays a wall, and any other cell opens
// and joins the areas it touches. Higher openness means fewer walls; 4 opens everything.
func GenerateWalls(rng *rand.Rand, w, h, openness int) []bool {
	n := w * h
	walls := make([]bool, n)
	areas := newDisjointSet(n)
	for i := range walls {
		walls[i] = true
	}

	for _, i := range rng.Perm(n) {
		x, y := i%w, i/w
		neighbors := [4]int{
			wrapIndex(x+1, y, w, h),
			wrapIndex(x-1, y, w, h),
			wrapIndex(x, y+1, w, h),
			wrapIndex(x, y-1, w, h),
		}

		var roots [4]int
		nr, open := 0, 0
		for _, j := range neighbors {
			if walls[j] {
				continue
			}
			open++
			r := areas.find(j)
			seen := false
			for _, s := range roots[:nr] {
				seen = seen || s == r
			}
			if !seen {
				roots[nr] = r
				nr++
			}
		}

		if nr == 1 && open > openness {
			continue
		}
		walls[i] = false
		for _, r := range roots[:nr] {
			areas.union(r, i)
		}
	}
	return walls
}

type disjointSet struct {
	parent []int
	rank   []uint8
}

func newDisjointSet(n int) *disjointSet {
	ds := &disjointSet{parent: make([]int, n), rank: make([]uint8, n)}
	for i := range ds.parent {
		ds.parent[i] = i
	}
	return ds
}

func (ds *disjointSet) find(i int) int {
	for ds.parent[i] != i {
		ds.parent[i] = ds.parent[ds.parent[i]]
		i = ds.parent[i]
	}
	return i
}

func (ds *disjointSet) union(a, b int) {
	a, b = ds.find(a), ds.find(b)
	if a == b {
		return
	}
	if ds.rank[a] < ds.rank[b] {
		a, b = b, a
	}
	ds.parent[b] = a
	if ds.rank[a] == ds.rank[b] {
		ds.rank[a]++
	}
}

func wrapIndex(x, y, w, h int) int {
	x %= w
	if x < 0 {
		x += w
	}
	y %= h
	if y < 0 {
		y += h
	}
	return y*w + x
}
