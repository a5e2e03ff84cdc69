package crystal

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// DefaultDistTol is the distance (Å) within which two atoms are regarded
	// as occupying the same site.
	DefaultDistTol = 1.0

	// DefaultCutoffDistanceFactor scales the shortest bond length to the
	// neighbor-shell cutoff.
	DefaultCutoffDistanceFactor = 1.7

	// OnSiteTolerance is the distance (Å) below which a site is regarded as
	// sitting on the query point itself.
	OnSiteTolerance = 1e-5
)

// MatchStatus classifies a nearest-site lookup.
type MatchStatus int

const (
	// MatchNone means no candidate lies within the tolerance.
	MatchNone MatchStatus = iota
	// MatchFound means exactly one candidate lies within the tolerance.
	MatchFound
	// MatchAmbiguous means more than one candidate lies within the tolerance.
	MatchAmbiguous
)

// String implements fmt.Stringer.
func (s MatchStatus) String() string {
	switch s {
	case MatchFound:
		return "found"
	case MatchAmbiguous:
		return "ambiguous"
	default:
		return "none"
	}
}

// Match is the outcome of a nearest-site lookup. Index is meaningful only when
// Status is MatchFound.
type Match struct {
	Index  int
	Status MatchStatus
}

// Found reports whether the lookup yielded a unique site.
func (m Match) Found() bool { return m.Status == MatchFound }

// Coordination is the neighbor shell around a query point.
type Coordination struct {
	// Distances lists neighbor distances per element, rounded to 0.01 Å.
	Distances map[string][]float64
	// Cutoff is the shell radius, rounded to 0.001 Å.
	Cutoff float64
	// NeighboringAtomIndices are the host indices inside the shell, sorted.
	NeighboringAtomIndices []int
}

// Distances indexes the periodic distances from one fractional point to
// every site of a host structure.
type Distances struct {
	host    *Structure
	center  r3.Vec
	distTol float64
	raw     []float64
}

// NewDistances computes the minimum-image distances from center to every
// site of host. A non-positive distTol falls back to DefaultDistTol.
func NewDistances(host *Structure, center r3.Vec, distTol float64) *Distances {
	if distTol <= 0 {
		distTol = DefaultDistTol
	}
	raw := make([]float64, host.Len())
	for i, site := range host.Sites {
		raw[i], _ = host.Lattice.DistanceAndImage(site.FracCoords, center)
	}
	return &Distances{host: host, center: center, distTol: distTol, raw: raw}
}

// DistTol returns the effective distance tolerance.
func (d *Distances) DistTol() float64 { return d.distTol }

// Distances returns the distance to every host site. Sites not of species
// (when species is non-empty) and, with removeSelf, sites on the query point
// are reported as +Inf.
func (d *Distances) Distances(removeSelf bool, species string) []float64 {
	out := make([]float64, len(d.raw))
	for i, dist := range d.raw {
		switch {
		case species != "" && d.host.Sites[i].Species != species:
			out[i] = math.Inf(1)
		case removeSelf && dist < OnSiteTolerance:
			out[i] = math.Inf(1)
		default:
			out[i] = dist
		}
	}
	return out
}

// AtomIdxAtCenter returns the unique site of species (any species when empty)
// within the distance tolerance of the query point.
func (d *Distances) AtomIdxAtCenter(species string) Match {
	idx, count := -1, 0
	for i, dist := range d.Distances(false, species) {
		if dist < d.distTol {
			count++
			if idx < 0 || dist < d.raw[idx] {
				idx = i
			}
		}
	}
	switch count {
	case 0:
		return Match{Index: -1, Status: MatchNone}
	case 1:
		return Match{Index: idx, Status: MatchFound}
	default:
		return Match{Index: -1, Status: MatchAmbiguous}
	}
}

// ShortestDistance returns the smallest distance to a host site that does not
// sit on the query point; +Inf for an empty host.
func (d *Distances) ShortestDistance() float64 {
	shortest := math.Inf(1)
	for _, dist := range d.Distances(true, "") {
		shortest = math.Min(shortest, dist)
	}
	return shortest
}

// Coordination returns the sites closer than cutoffFactor times the shortest
// distance. A non-positive cutoffFactor falls back to
// DefaultCutoffDistanceFactor.
func (d *Distances) Coordination(includeOnSite bool, cutoffFactor float64) Coordination {
	if cutoffFactor <= 0 {
		cutoffFactor = DefaultCutoffDistanceFactor
	}
	result := Coordination{Distances: map[string][]float64{}, NeighboringAtomIndices: []int{}}
	shortest := d.ShortestDistance()
	if math.IsInf(shortest, 1) {
		return result
	}
	cutoff := shortest * cutoffFactor
	for i, dist := range d.Distances(!includeOnSite, "") {
		if dist < cutoff {
			sp := d.host.Sites[i].Species
			result.Distances[sp] = append(result.Distances[sp], roundTo(dist, 2))
			result.NeighboringAtomIndices = append(result.NeighboringAtomIndices, i)
		}
	}
	result.Cutoff = roundTo(cutoff, 3)
	sort.Ints(result.NeighboringAtomIndices)
	return result
}

func roundTo(x float64, digits int) float64 {
	p := math.Pow10(digits)
	return math.Round(x*p) / p
}
