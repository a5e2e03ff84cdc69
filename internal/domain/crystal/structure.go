package crystal

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/defectkit/pkg/errors"
)

// Site is one atom of a structure.
type Site struct {
	Species    string
	FracCoords r3.Vec
}

// Structure is an ordered list of sites under a periodic lattice.
// It is read-only after construction.
type Structure struct {
	Lattice *Lattice
	Sites   []Site
}

// NewStructure validates every species symbol and folds fractional
// coordinates into [0, 1).
func NewStructure(lattice *Lattice, sites []Site) (*Structure, error) {
	if lattice == nil {
		return nil, errors.New(errors.CodeInvalidLattice, "lattice is nil")
	}
	out := make([]Site, len(sites))
	for i, s := range sites {
		if !IsElementSymbol(s.Species) {
			return nil, errors.New(errors.CodeInvalidSpecies, "unknown species").
				WithDetailf("site=%d species=%q", i, s.Species)
		}
		out[i] = Site{Species: s.Species, FracCoords: WrapFrac(s.FracCoords)}
	}
	return &Structure{Lattice: lattice, Sites: out}, nil
}

// FromSites builds a structure from sites that were already validated, for
// example a subset of another structure. Coordinates are copied as given.
func FromSites(lattice *Lattice, sites []Site) *Structure {
	out := make([]Site, len(sites))
	copy(out, sites)
	return &Structure{Lattice: lattice, Sites: out}
}

// Len returns the number of sites.
func (s *Structure) Len() int { return len(s.Sites) }

// Site returns the i-th site.
func (s *Structure) Site(i int) Site { return s.Sites[i] }

// Composition counts the sites per species.
func (s *Structure) Composition() Composition {
	comp := Composition{}
	for _, site := range s.Sites {
		comp[site.Species]++
	}
	return comp
}
