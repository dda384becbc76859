package flow

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// cellPoint is a cell centre carrying the id of the cell it came from.
// kdtree.New reorders its input, so the id travels with the point.
type cellPoint struct {
	r3.Vec
	id int
}

func (p cellPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(cellPoint)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

func (p cellPoint) Dims() int { return 3 }

// Distance returns the squared euclidean distance.
func (p cellPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(cellPoint)
	return r3.Norm2(r3.Sub(p.Vec, q.Vec))
}

type cellPoints []cellPoint

func (p cellPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p cellPoints) Len() int                              { return len(p) }
func (p cellPoints) Pivot(d kdtree.Dim) int                { return cellPlane{cellPoints: p, Dim: d}.Pivot() }
func (p cellPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

type cellPlane struct {
	kdtree.Dim
	cellPoints
}

func (p cellPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.cellPoints[i].X < p.cellPoints[j].X
	case 1:
		return p.cellPoints[i].Y < p.cellPoints[j].Y
	case 2:
		return p.cellPoints[i].Z < p.cellPoints[j].Z
	default:
		panic("illegal dimension")
	}
}
func (p cellPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p cellPlane) Slice(start, end int) kdtree.SortSlicer {
	p.cellPoints = p.cellPoints[start:end]
	return p
}
func (p cellPlane) Swap(i, j int) {
	p.cellPoints[i], p.cellPoints[j] = p.cellPoints[j], p.cellPoints[i]
}

// Neighbor is a cell found by an index query.
type Neighbor struct {
	ID       int
	Distance float64
}

// Index answers nearest-neighbour and range queries over cell centres.
// It is read-only after construction and safe for concurrent queries.
type Index struct {
	tree *kdtree.Tree
	n    int
}

// NewIndex builds an index over the given centres; entry i carries id i.
func NewIndex(centres []r3.Vec) (*Index, error) {
	pts := make(cellPoints, len(centres))
	for i, c := range centres {
		pts[i] = cellPoint{Vec: c, id: i}
	}
	tree := kdtree.New(pts, false)

	idx := &Index{tree: tree, n: len(centres)}
	if err := idx.verify(); err != nil {
		return nil, err
	}
	return idx, nil
}

// verify checks that every cell id in [0, n) is present exactly once.
func (idx *Index) verify() error {
	if idx.tree.Count != idx.n {
		return fmt.Errorf("%w: index holds %d entries, field has %d cells",
			ErrIndexMismatch, idx.tree.Count, idx.n)
	}
	seen := make([]bool, idx.n)
	var bad error
	idx.tree.Do(func(c kdtree.Comparable, _ *kdtree.Bounding, _ int) bool {
		id := c.(cellPoint).id
		if id < 0 || id >= idx.n || seen[id] {
			bad = fmt.Errorf("%w: unexpected cell id %d", ErrIndexMismatch, id)
			return true
		}
		seen[id] = true
		return false
	})
	return bad
}

// Len returns the number of indexed cells.
func (idx *Index) Len() int { return idx.n }

// Nearest returns the closest cell to q and its euclidean distance.
func (idx *Index) Nearest(q r3.Vec) Neighbor {
	c, d2 := idx.tree.Nearest(cellPoint{Vec: q})
	return Neighbor{ID: c.(cellPoint).id, Distance: math.Sqrt(d2)}
}

// NearestK returns up to k closest cells ordered by increasing distance.
func (idx *Index) NearestK(q r3.Vec, k int) []Neighbor {
	keep := kdtree.NewNKeeper(k)
	idx.tree.NearestSet(keep, cellPoint{Vec: q})
	return neighbors(keep.Heap)
}

// Within returns all cells whose centre lies within radius r of q.
func (idx *Index) Within(q r3.Vec, r float64) []Neighbor {
	keep := kdtree.NewDistKeeper(r * r)
	idx.tree.NearestSet(keep, cellPoint{Vec: q})
	return neighbors(keep.Heap)
}

func neighbors(h kdtree.Heap) []Neighbor {
	out := make([]Neighbor, 0, len(h))
	for _, c := range h {
		if c.Comparable == nil {
			continue
		}
		out = append(out, Neighbor{ID: c.Comparable.(cellPoint).id, Distance: math.Sqrt(c.Dist)})
	}
	return out
}
