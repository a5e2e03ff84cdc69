// Package crystal holds the crystal-structure data model used by the defect
// and chemical-potential analyses: lattices, sites, structures, compositions
// and the periodic neighbor index.
package crystal

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/defectkit/pkg/errors"
)

// minLatticeVolume rejects degenerate cells (Å^3).
const minLatticeVolume = 1e-8

// Lattice is a periodic cell spanned by three Cartesian basis vectors in Å.
type Lattice struct {
	a, b, c r3.Vec
}

// NewLattice builds a lattice from a row-major basis matrix; each row is one
// lattice vector.
func NewLattice(matrix [3][3]float64) (*Lattice, error) {
	l := &Lattice{
		a: r3.Vec{X: matrix[0][0], Y: matrix[0][1], Z: matrix[0][2]},
		b: r3.Vec{X: matrix[1][0], Y: matrix[1][1], Z: matrix[1][2]},
		c: r3.Vec{X: matrix[2][0], Y: matrix[2][1], Z: matrix[2][2]},
	}
	for _, row := range matrix {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.New(errors.CodeInvalidLattice, "lattice contains non-finite values")
			}
		}
	}
	if math.Abs(mat.Det(l.dense())) < minLatticeVolume {
		return nil, errors.New(errors.CodeInvalidLattice, "lattice matrix is singular").
			WithDetailf("volume=%g", l.Volume())
	}
	return l, nil
}

// Cubic returns a cubic lattice with edge length a.
func Cubic(a float64) (*Lattice, error) {
	return Orthorhombic(a, a, a)
}

// Orthorhombic returns an orthogonal lattice with edge lengths a, b and c.
func Orthorhombic(a, b, c float64) (*Lattice, error) {
	return NewLattice([3][3]float64{{a, 0, 0}, {0, b, 0}, {0, 0, c}})
}

// Matrix returns the basis as a row-major 3x3 array.
func (l *Lattice) Matrix() [3][3]float64 {
	return [3][3]float64{
		{l.a.X, l.a.Y, l.a.Z},
		{l.b.X, l.b.Y, l.b.Z},
		{l.c.X, l.c.Y, l.c.Z},
	}
}

func (l *Lattice) dense() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		l.a.X, l.a.Y, l.a.Z,
		l.b.X, l.b.Y, l.b.Z,
		l.c.X, l.c.Y, l.c.Z,
	})
}

// Volume returns the cell volume in Å^3.
func (l *Lattice) Volume() float64 {
	return math.Abs(r3.Dot(l.a, r3.Cross(l.b, l.c)))
}

// CartesianCoords converts fractional coordinates to Cartesian ones.
func (l *Lattice) CartesianCoords(frac r3.Vec) r3.Vec {
	return r3.Add(r3.Add(r3.Scale(frac.X, l.a), r3.Scale(frac.Y, l.b)), r3.Scale(frac.Z, l.c))
}

// DistanceAndImage returns the minimum-image distance between the fractional
// points f1 and f2 together with the lattice translation j for which f2+j is
// the periodic image of f2 closest to f1.
func (l *Lattice) DistanceAndImage(f1, f2 r3.Vec) (float64, [3]int) {
	folded := r3.Vec{X: foldHalf(f2.X - f1.X), Y: foldHalf(f2.Y - f1.Y), Z: foldHalf(f2.Z - f1.Z)}

	best := math.Inf(1)
	var bestDiff r3.Vec
	for i := -1; i <= 1; i++ {
		for j := -1; j <= 1; j++ {
			for k := -1; k <= 1; k++ {
				diff := r3.Add(folded, r3.Vec{X: float64(i), Y: float64(j), Z: float64(k)})
				if d := r3.Norm(l.CartesianCoords(diff)); d < best {
					best = d
					bestDiff = diff
				}
			}
		}
	}

	image := [3]int{
		int(math.Round(f1.X + bestDiff.X - f2.X)),
		int(math.Round(f1.Y + bestDiff.Y - f2.Y)),
		int(math.Round(f1.Z + bestDiff.Z - f2.Z)),
	}
	return best, image
}

// foldHalf maps x into [-0.5, 0.5).
func foldHalf(x float64) float64 {
	return x - math.Floor(x+0.5)
}

// wrapUnit maps x into [0, 1).
func wrapUnit(x float64) float64 {
	w := x - math.Floor(x)
	if w >= 1 {
		return 0
	}
	return w
}

// WrapFrac folds every component of frac into [0, 1).
func WrapFrac(frac r3.Vec) r3.Vec {
	return r3.Vec{X: wrapUnit(frac.X), Y: wrapUnit(frac.Y), Z: wrapUnit(frac.Z)}
}
