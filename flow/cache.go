package flow

import (
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
)

// cacheVersion is bumped whenever the on-disk layout changes.
const cacheVersion = 1

type cacheFile struct {
	Version    int
	Centres    []r3.Vec
	Flow       []r3.Vec
	AtBoundary []bool
	Faces      map[int][]Face
}

// SaveCache writes a vector field to path using encoding/gob.
func SaveCache(path string, vf *VectorField) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating vector field cache: %w", err)
	}
	enc := gob.NewEncoder(f)
	err = enc.Encode(cacheFile{
		Version:    cacheVersion,
		Centres:    vf.centres,
		Flow:       vf.flow,
		AtBoundary: vf.atBoundary,
		Faces:      vf.faces,
	})
	if err != nil {
		f.Close()
		return fmt.Errorf("encoding vector field cache: %w", err)
	}
	return f.Close()
}

// LoadCache reads a vector field written by SaveCache.
func LoadCache(path string) (*VectorField, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening vector field cache: %w", err)
	}
	defer f.Close()

	var c cacheFile
	if err := gob.NewDecoder(f).Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding vector field cache %s: %w", path, err)
	}
	if c.Version != cacheVersion {
		return nil, fmt.Errorf("vector field cache %s has version %d, want %d", path, c.Version, cacheVersion)
	}
	return NewVectorField(c.Centres, c.Flow, c.AtBoundary, c.Faces)
}
