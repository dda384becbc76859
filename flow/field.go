// Package flow holds precomputed CFD flow fields and samples them at
// arbitrary scene positions.
package flow

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Face is a boundary face of a mesh cell in the field's local frame.
// Normal is unit length and points into the mesh.
type Face struct {
	Position         r3.Vec
	Normal           r3.Vec
	DistanceToCentre float64
}

// SignedDistance returns the distance of p from the face plane, positive on
// the mesh side.
func (f Face) SignedDistance(p r3.Vec) float64 {
	return r3.Dot(f.Normal, r3.Sub(p, f.Position))
}

// VectorField is an immutable set of mesh cells, each with a centre and a
// flow vector in local coordinates. It may be shared by several managers.
type VectorField struct {
	centres    []r3.Vec
	flow       []r3.Vec
	atBoundary []bool
	faces      map[int][]Face
}

// NewVectorField validates and copies the given cell data. Every boundary
// cell needs at least one face.
func NewVectorField(centres, flow []r3.Vec, atBoundary []bool, faces map[int][]Face) (*VectorField, error) {
	n := len(centres)
	if n == 0 {
		return nil, fmt.Errorf("%w: no cells", ErrInvalidField)
	}
	if len(flow) != n || len(atBoundary) != n {
		return nil, fmt.Errorf("%w: %d centres, %d flow vectors, %d boundary flags",
			ErrInvalidField, n, len(flow), len(atBoundary))
	}

	vf := &VectorField{
		centres:    append([]r3.Vec(nil), centres...),
		flow:       append([]r3.Vec(nil), flow...),
		atBoundary: append([]bool(nil), atBoundary...),
		faces:      make(map[int][]Face),
	}
	for id, b := range atBoundary {
		if !b {
			continue
		}
		fs := faces[id]
		if len(fs) == 0 {
			return nil, fmt.Errorf("%w: boundary cell %d has no faces", ErrInvalidField, id)
		}
		for _, f := range fs {
			if !(f.DistanceToCentre > 0) || math.IsInf(f.DistanceToCentre, 0) {
				return nil, fmt.Errorf("%w: boundary cell %d has face with distance %v",
					ErrInvalidField, id, f.DistanceToCentre)
			}
		}
		vf.faces[id] = append([]Face(nil), fs...)
	}
	return vf, nil
}

// Len returns the number of cells.
func (vf *VectorField) Len() int { return len(vf.centres) }

// Centre returns the local centre of cell id.
func (vf *VectorField) Centre(id int) r3.Vec { return vf.centres[id] }

// Flow returns the local flow vector of cell id.
func (vf *VectorField) Flow(id int) r3.Vec { return vf.flow[id] }

// IsBoundary reports whether cell id touches a wall.
func (vf *VectorField) IsBoundary(id int) bool { return vf.atBoundary[id] }

// Faces returns the wall faces of cell id. Callers must not modify the result.
func (vf *VectorField) Faces(id int) []Face { return vf.faces[id] }

// Centres returns a copy of all local cell centres.
func (vf *VectorField) Centres() []r3.Vec { return append([]r3.Vec(nil), vf.centres...) }
