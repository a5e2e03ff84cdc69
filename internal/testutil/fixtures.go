package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/defectkit/internal/domain/chempot"
	"github.com/turtacn/defectkit/internal/domain/crystal"
)

// SupercellEdge is the edge length (Å) of the cubic fixture supercell.
const SupercellEdge = 10.0

// RockSaltSites returns the eight sites of the fixture supercell: a simple
// cubic 5 Å grid in a 10 Å cell with Mg at indices 0-3 and O at 4-7. Every
// atom has six neighbors at 5 Å, far outside the default 1 Å tolerance.
func RockSaltSites() []crystal.Site {
	return []crystal.Site{
		{Species: "Mg", FracCoords: r3.Vec{X: 0, Y: 0, Z: 0}},
		{Species: "Mg", FracCoords: r3.Vec{X: 0.5, Y: 0.5, Z: 0}},
		{Species: "Mg", FracCoords: r3.Vec{X: 0.5, Y: 0, Z: 0.5}},
		{Species: "Mg", FracCoords: r3.Vec{X: 0, Y: 0.5, Z: 0.5}},
		{Species: "O", FracCoords: r3.Vec{X: 0.5, Y: 0, Z: 0}},
		{Species: "O", FracCoords: r3.Vec{X: 0, Y: 0.5, Z: 0}},
		{Species: "O", FracCoords: r3.Vec{X: 0, Y: 0, Z: 0.5}},
		{Species: "O", FracCoords: r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}},
	}
}

// NewSupercell builds a structure in the fixture cell from sites.
func NewSupercell(tb testing.TB, sites []crystal.Site) *crystal.Structure {
	tb.Helper()
	lattice, err := crystal.Cubic(SupercellEdge)
	require.NoError(tb, err)
	s, err := crystal.NewStructure(lattice, sites)
	require.NoError(tb, err)
	return s
}

// RockSalt returns the perfect fixture supercell.
func RockSalt(tb testing.TB) *crystal.Structure {
	tb.Helper()
	return NewSupercell(tb, RockSaltSites())
}

// WithoutSite returns the fixture sites with index i removed.
func WithoutSite(i int) []crystal.Site {
	sites := RockSaltSites()
	return append(sites[:i], sites[i+1:]...)
}

// MgOEnergies returns composition energies of the Mg-O system plus a ZnO
// impurity phase. Standard energies are Mg -2, O -5 and Zn -1 eV/atom; the
// relative energies are MgO -3 and ZnO -2 eV/atom.
func MgOEnergies() chempot.CompositionEnergies {
	return chempot.CompositionEnergies{
		"Mg":  {Energy: -2.0, Source: "fixture"},
		"O2":  {Energy: -10.0, Source: "fixture"},
		"Zn":  {Energy: -1.0, Source: "fixture"},
		"MgO": {Energy: -13.0, Source: "fixture"},
		"ZnO": {Energy: -10.0, Source: "fixture"},
	}
}

// ReadFile returns the contents of path.
func ReadFile(tb testing.TB, path string) string {
	tb.Helper()
	b, err := os.ReadFile(path)
	require.NoError(tb, err)
	return string(b)
}
