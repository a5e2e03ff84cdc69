package chempot

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/turtacn/defectkit/pkg/errors"
)

const (
	// maxVertexCond discards row subsets whose system is numerically singular.
	maxVertexCond = 1e10
	// feasibilityTol is scaled by the magnitude of each row and point.
	feasibilityTol = 1e-8
	// mergeTol merges vertices reached through different row subsets.
	mergeTol = 1e-7
	// simplexTol is handed to the LP solver.
	simplexTol = 1e-10
	// maxChebyshevRadius caps the LP so that unbounded regions stay solvable.
	maxChebyshevRadius = 1.0
)

// HalfspaceIntersection returns the vertices of the polytope
// {x : a·x + b <= 0 for every row [a..., b]}. interiorPoint must satisfy
// every row strictly. Vertices are sorted lexicographically.
func HalfspaceIntersection(halfspaces [][]float64, interiorPoint []float64) ([][]float64, error) {
	dim := len(interiorPoint)
	if dim == 0 || len(halfspaces) < dim+1 {
		return nil, errors.InvalidParam("need at least dim+1 half-spaces and a non-empty interior point").
			WithDetailf("dim=%d halfspaces=%d", dim, len(halfspaces))
	}
	for i, row := range halfspaces {
		if len(row) != dim+1 {
			return nil, errors.InvalidParam("half-space row has wrong length").
				WithDetailf("row=%d len=%d want=%d", i, len(row), dim+1)
		}
		if residual(row, interiorPoint) >= 0 {
			return nil, errors.New(errors.CodeGeometryInfeasible, "interior point is not strictly inside the half-spaces").
				WithDetailf("row=%d residual=%g", i, residual(row, interiorPoint))
		}
	}

	halfspaces = pruneRedundant(halfspaces, dim)

	radius, err := chebyshevRadius(halfspaces, dim)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeGeometryInfeasible, "interior point search failed")
	}
	if radius <= feasibilityTol {
		return nil, errors.New(errors.CodeGeometryInfeasible, "half-space intersection has no interior").
			WithDetailf("radius=%g", radius)
	}

	var vertices [][]float64
	a := mat.NewDense(dim, dim, nil)
	rhs := mat.NewVecDense(dim, nil)
	forEachCombination(len(halfspaces), dim, func(idx []int) {
		for r, k := range idx {
			a.SetRow(r, halfspaces[k][:dim])
			rhs.SetVec(r, -halfspaces[k][dim])
		}
		var lu mat.LU
		lu.Factorize(a)
		if lu.Cond() > maxVertexCond {
			return
		}
		var x mat.VecDense
		if err := lu.SolveVecTo(&x, false, rhs); err != nil {
			return
		}
		point := make([]float64, dim)
		for i := range point {
			point[i] = x.AtVec(i)
		}
		if !feasible(halfspaces, point) {
			return
		}
		for _, v := range vertices {
			if samePoint(v, point) {
				return
			}
		}
		vertices = append(vertices, point)
	})

	sort.Slice(vertices, func(i, j int) bool { return lexLess(vertices[i], vertices[j]) })
	return vertices, nil
}

// residual returns a·x + b.
func residual(row, x []float64) float64 {
	return floats.Dot(row[:len(x)], x) + row[len(x)]
}

func feasible(halfspaces [][]float64, x []float64) bool {
	scale := 1 + floats.Norm(x, math.Inf(1))
	for _, row := range halfspaces {
		if residual(row, x) > feasibilityTol*(scale+math.Abs(row[len(x)])) {
			return false
		}
	}
	return true
}

func samePoint(p, q []float64) bool {
	scale := 1 + math.Max(floats.Norm(p, math.Inf(1)), floats.Norm(q, math.Inf(1)))
	return floats.Distance(p, q, math.Inf(1)) <= mergeTol*scale
}

func lexLess(p, q []float64) bool {
	for i := range p {
		if p[i] != q[i] {
			return p[i] < q[i]
		}
	}
	return false
}

// forEachCombination calls fn with every k-subset of {0..n-1} in
// lexicographic order. The slice is reused between calls.
func forEachCombination(n, k int, fn func([]int)) {
	if k > n {
		return
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// pruneRedundant drops rows that no point of the polytope can make tight.
// Row i is strictly implied by the kept rows when
//
//	min Σ λ_j·(-b_j) s.t. Σ λ_j·a_j = a_i, λ >= 0
//
// stays below -b_i. Later tests only look at the rows kept so far. A row
// whose LP fails is kept. The interior must not be empty.
func pruneRedundant(halfspaces [][]float64, dim int) [][]float64 {
	kept := make([][]float64, 0, len(halfspaces))
	for _, row := range halfspaces {
		// A zero normal with a strictly feasible point is satisfied everywhere.
		if floats.Norm(row[:dim], math.Inf(1)) > 0 {
			kept = append(kept, row)
		}
	}
	for i := 0; i < len(kept); {
		if len(kept)-1 < dim {
			break
		}
		others := make([][]float64, 0, len(kept)-1)
		others = append(others, kept[:i]...)
		others = append(others, kept[i+1:]...)
		bound, err := impliedBound(others, kept[i][:dim], dim)
		limit := -kept[i][dim]
		if err == nil && bound < limit-feasibilityTol*(1+math.Abs(limit)) {
			kept = others
			continue
		}
		i++
	}
	return kept
}

// impliedBound returns the tightest bound the rows impose on normal·x,
// computed through the dual LP over non-negative row multipliers.
func impliedBound(rows [][]float64, normal []float64, dim int) (float64, error) {
	n := len(rows)
	a := mat.NewDense(dim, n, nil)
	c := make([]float64, n)
	for j, row := range rows {
		for k := 0; k < dim; k++ {
			a.Set(k, j, row[k])
		}
		c[j] = -row[dim]
	}
	b := make([]float64, dim)
	copy(b, normal)
	for k := range b {
		if b[k] < 0 {
			b[k] = -b[k]
			for j := 0; j < n; j++ {
				a.Set(k, j, -a.At(k, j))
			}
		}
	}
	optF, _, err := lp.Simplex(c, a, b, simplexTol, nil)
	if err != nil {
		return 0, err
	}
	return optF, nil
}

// chebyshevRadius solves max r s.t. a_i·x + |a_i| r <= -b_i, 0 <= r <= cap,
// with x free. The LP is brought into the standard form
// min c·z s.t. Az = b, z >= 0 by splitting x = xp - xn and adding one slack
// per inequality.
func chebyshevRadius(halfspaces [][]float64, dim int) (float64, error) {
	m := len(halfspaces) + 1
	rIdx := 2 * dim
	n := 2*dim + 1 + m

	a := mat.NewDense(m, n, nil)
	b := make([]float64, m)
	for i, row := range halfspaces {
		norm := floats.Norm(row[:dim], 2)
		for j := 0; j < dim; j++ {
			a.Set(i, j, row[j])
			a.Set(i, dim+j, -row[j])
		}
		a.Set(i, rIdx, norm)
		a.Set(i, rIdx+1+i, 1)
		b[i] = -row[dim]
	}
	capRow := m - 1
	a.Set(capRow, rIdx, 1)
	a.Set(capRow, rIdx+1+capRow, 1)
	b[capRow] = maxChebyshevRadius

	for i := range b {
		if b[i] < 0 {
			b[i] = -b[i]
			for j := 0; j < n; j++ {
				a.Set(i, j, -a.At(i, j))
			}
		}
	}

	c := make([]float64, n)
	c[rIdx] = -1

	optF, _, err := lp.Simplex(c, a, b, simplexTol, nil)
	if err != nil {
		return 0, err
	}
	return -optF, nil
}
