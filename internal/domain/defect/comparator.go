// Package defect classifies the sites of a defective supercell against the
// perfect supercell and assembles defect energy records.
package defect

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/defectkit/internal/domain/crystal"
	"github.com/turtacn/defectkit/pkg/errors"
)

// Options configures a StructureComparator. Zero values fall back to the
// crystal package defaults.
type Options struct {
	// DistTol is the distance (Å) within which two atoms are the same site.
	DistTol float64
	// CutoffFactor scales the shortest bond length to the neighbor cutoff.
	CutoffFactor float64
}

// DefaultOptions returns the library defaults.
func DefaultOptions() Options {
	return Options{
		DistTol:      crystal.DefaultDistTol,
		CutoffFactor: crystal.DefaultCutoffDistanceFactor,
	}
}

func (o Options) withDefaults() Options {
	if o.DistTol <= 0 {
		o.DistTol = crystal.DefaultDistTol
	}
	if o.CutoffFactor <= 0 {
		o.CutoffFactor = crystal.DefaultCutoffDistanceFactor
	}
	return o
}

// StructureComparator maps the atoms of a defective structure onto those of
// the perfect structure. All projections are computed at construction and
// the comparator is read-only afterwards.
type StructureComparator struct {
	defect  *crystal.Structure
	perfect *crystal.Structure
	opts    Options

	pToD []crystal.Match
	dToP []crystal.Match

	removed   []int
	inserted  []int
	ambiguous int
}

// NewStructureComparator projects perfect onto defect and back. Structures
// without common species are valid input; every atom then ends up removed or
// inserted.
func NewStructureComparator(defect, perfect *crystal.Structure, opts Options) (*StructureComparator, error) {
	if defect == nil || perfect == nil {
		return nil, errors.InvalidParam("defect and perfect structures must not be nil")
	}
	if defect.Lattice == nil || perfect.Lattice == nil {
		return nil, errors.New(errors.CodeStructureMismatch, "structure has no lattice")
	}

	c := &StructureComparator{defect: defect, perfect: perfect, opts: opts.withDefaults()}
	c.pToD = c.project(perfect, defect, true)
	c.dToP = c.project(defect, perfect, true)
	c.removed = unmatched(c.pToD, c.dToP)
	c.inserted = unmatched(c.dToP, c.pToD)

	for _, m := range append(append([]crystal.Match{}, c.pToD...), c.dToP...) {
		if m.Status == crystal.MatchAmbiguous {
			c.ambiguous++
		}
	}
	return c, nil
}

// project finds, for every site of from, the unique site of to within the
// distance tolerance. With sameSpecies only sites of equal species qualify.
func (c *StructureComparator) project(from, to *crystal.Structure, sameSpecies bool) []crystal.Match {
	out := make([]crystal.Match, from.Len())
	for i, site := range from.Sites {
		species := ""
		if sameSpecies {
			species = site.Species
		}
		out[i] = crystal.NewDistances(to, site.FracCoords, c.opts.DistTol).AtomIdxAtCenter(species)
	}
	return out
}

// unmatched returns the indices whose forward match is absent or whose
// matched partner maps back to another index.
func unmatched(forward, backward []crystal.Match) []int {
	out := []int{}
	for i, m := range forward {
		if !m.Found() {
			out = append(out, i)
			continue
		}
		if back := backward[m.Index]; !back.Found() || back.Index != i {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

// PToD returns the perfect-to-defect projection.
func (c *StructureComparator) PToD() []crystal.Match {
	return append([]crystal.Match(nil), c.pToD...)
}

// DToP returns the defect-to-perfect projection.
func (c *StructureComparator) DToP() []crystal.Match {
	return append([]crystal.Match(nil), c.dToP...)
}

// RemovedIndices returns the perfect indices without a consistent partner.
func (c *StructureComparator) RemovedIndices() []int {
	return append([]int{}, c.removed...)
}

// InsertedIndices returns the defect indices without a consistent partner.
func (c *StructureComparator) InsertedIndices() []int {
	return append([]int{}, c.inserted...)
}

// AmbiguousCount returns how many lookups found more than one candidate.
func (c *StructureComparator) AmbiguousCount() int { return c.ambiguous }

// AtomMapping maps every non-inserted defect index to its perfect index.
func (c *StructureComparator) AtomMapping() map[int]int {
	inserted := make(map[int]struct{}, len(c.inserted))
	for _, d := range c.inserted {
		inserted[d] = struct{}{}
	}
	out := make(map[int]int, len(c.dToP))
	for d, m := range c.dToP {
		if _, ok := inserted[d]; ok || !m.Found() {
			continue
		}
		out[d] = m.Index
	}
	return out
}

// defectCoords returns the coordinates of removed sites (in the perfect
// structure) followed by those of inserted sites (in the defect structure).
func (c *StructureComparator) defectCoords() []r3.Vec {
	coords := make([]r3.Vec, 0, len(c.removed)+len(c.inserted))
	for _, p := range c.removed {
		coords = append(coords, c.perfect.Site(p).FracCoords)
	}
	for _, d := range c.inserted {
		coords = append(coords, c.defect.Site(d).FracCoords)
	}
	return coords
}

// DefectCenterCoord returns the periodic centroid of all removed and inserted
// sites, folded into [0, 1).
func (c *StructureComparator) DefectCenterCoord() (r3.Vec, error) {
	coords := c.defectCoords()
	if len(coords) == 0 {
		return r3.Vec{}, errors.New(errors.CodeNoDefectSite, "structures do not differ")
	}

	repr := coords[0]
	sum := repr
	for _, coord := range coords[1:] {
		_, image := c.perfect.Lattice.DistanceAndImage(repr, coord)
		sum = r3.Add(sum, r3.Add(coord, r3.Vec{X: float64(image[0]), Y: float64(image[1]), Z: float64(image[2])}))
	}
	return crystal.WrapFrac(r3.Scale(1/float64(len(coords)), sum)), nil
}

// NeighboringAtomIndices returns the defect-structure atoms in the
// coordination shell of any removed or inserted site. A non-positive
// cutoffFactor uses the comparator's configured factor.
func (c *StructureComparator) NeighboringAtomIndices(cutoffFactor float64) []int {
	if cutoffFactor <= 0 {
		cutoffFactor = c.opts.CutoffFactor
	}
	seen := map[int]struct{}{}
	for _, coord := range c.defectCoords() {
		shell := crystal.NewDistances(c.defect, coord, c.opts.DistTol).Coordination(false, cutoffFactor)
		for _, idx := range shell.NeighboringAtomIndices {
			seen[idx] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
