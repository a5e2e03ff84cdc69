package chempot

import (
	"math"
	"sort"
	"strings"

	"github.com/turtacn/defectkit/internal/domain/crystal"
	"github.com/turtacn/defectkit/pkg/errors"
)

// CPDOptions configures a ChemPotDiagMaker.
type CPDOptions struct {
	// FloorValue bounds every chemical potential from below.
	FloorValue float64
	// FloorScale multiplies the lowest real vertex coordinate to obtain the
	// value that replaces floor coordinates in the output.
	FloorScale float64
	// RoundDigits is the number of decimals kept in output coordinates.
	RoundDigits int
	// FaceTolerance is the residual below which a vertex lies on a compound
	// face.
	FaceTolerance float64
}

// DefaultCPDOptions returns the library defaults.
func DefaultCPDOptions() CPDOptions {
	return CPDOptions{
		FloorValue:    -1e5,
		FloorScale:    1.1,
		RoundDigits:   5,
		FaceTolerance: 1e-8,
	}
}

func (o CPDOptions) withDefaults() CPDOptions {
	d := DefaultCPDOptions()
	if o.FloorValue >= 0 {
		o.FloorValue = d.FloorValue
	}
	if o.FloorScale <= 0 {
		o.FloorScale = d.FloorScale
	}
	if o.RoundDigits <= 0 {
		o.RoundDigits = d.RoundDigits
	}
	if o.FaceTolerance <= 0 {
		o.FaceTolerance = d.FaceTolerance
	}
	return o
}

// ChemPotDiag is a chemical-potential diagram: the faces of every element
// and host compound, and optionally the stability vertices of a target.
type ChemPotDiag struct {
	VertexElements []string               `json:"vertex_elements" yaml:"vertex_elements"`
	Polygons       map[string][][]float64 `json:"polygons" yaml:"polygons"`
	Target         string                 `json:"target,omitempty" yaml:"target,omitempty"`
	TargetVertices map[string][]float64   `json:"target_vertices,omitempty" yaml:"target_vertices,omitempty"`
}

// Dim returns the number of vertex elements.
func (d *ChemPotDiag) Dim() int { return len(d.VertexElements) }

// MinValue returns the lowest coordinate of any polygon.
func (d *ChemPotDiag) MinValue() float64 {
	min := math.Inf(1)
	for _, poly := range d.Polygons {
		for _, v := range poly {
			for _, x := range v {
				min = math.Min(min, x)
			}
		}
	}
	return min
}

// CompCenters returns the centroid of every polygon.
func (d *ChemPotDiag) CompCenters() map[string][]float64 {
	out := make(map[string][]float64, len(d.Polygons))
	for label, poly := range d.Polygons {
		if len(poly) == 0 {
			continue
		}
		center := make([]float64, len(poly[0]))
		for _, v := range poly {
			for i, x := range v {
				center[i] += x
			}
		}
		for i := range center {
			center[i] /= float64(len(poly))
		}
		out[label] = center
	}
	return out
}

// AtomicFractions returns the atomic fraction of every vertex element in
// formula.
func (d *ChemPotDiag) AtomicFractions(formula string) ([]float64, error) {
	comp, err := crystal.ParseComposition(formula)
	if err != nil {
		return nil, err
	}
	return atomicFractions(comp, d.VertexElements), nil
}

func atomicFractions(comp crystal.Composition, elements []string) []float64 {
	out := make([]float64, len(elements))
	for i, el := range elements {
		out[i] = comp.AtomicFraction(el)
	}
	return out
}

// TargetVertex is one corner of the target's stability region.
type TargetVertex struct {
	ChemPot         map[string]float64 `json:"chem_pot" yaml:"chem_pot"`
	CompetingPhases []string           `json:"competing_phases" yaml:"competing_phases"`
	ImpurityPhases  []string           `json:"impurity_phases" yaml:"impurity_phases"`
}

// TargetVertices holds the labelled stability corners of a target compound.
type TargetVertices struct {
	Target   string                  `json:"target" yaml:"target"`
	Vertices map[string]TargetVertex `json:"vertices" yaml:"vertices"`
}

// ChemPots returns the chemical potentials per label.
func (t *TargetVertices) ChemPots() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(t.Vertices))
	for label, v := range t.Vertices {
		out[label] = v.ChemPot
	}
	return out
}

// Labels returns the vertex labels in label order (A … Z, AA, AB …).
func (t *TargetVertices) Labels() []string {
	out := make([]string, 0, len(t.Vertices))
	for label := range t.Vertices {
		out = append(out, label)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) < len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// VertexLabel returns the i-th vertex label: A … Z, AA … AZ, BA ….
func VertexLabel(i int) string {
	var sb []byte
	for n := i + 1; n > 0; n = (n - 1) / 26 {
		sb = append(sb, byte('A'+(n-1)%26))
	}
	for l, r := 0, len(sb)-1; l < r; l, r = l+1, r-1 {
		sb[l], sb[r] = sb[r], sb[l]
	}
	return string(sb)
}

// ChemPotDiagMaker builds a ChemPotDiag from relative energies.
type ChemPotDiagMaker struct {
	rel        RelativeEnergies
	host       []hostCompound
	elements   []string
	impurities []string
	target     string
	opts       CPDOptions
}

type hostCompound struct {
	formula   string
	energy    float64
	fractions []float64
}

// NewChemPotDiagMaker validates the inputs. target may be empty; otherwise it
// is canonicalised to its reduced formula and must be a compound of rel made
// of vertex elements only.
func NewChemPotDiagMaker(rel RelativeEnergies, elements []string, target string, opts CPDOptions) (*ChemPotDiagMaker, error) {
	if len(elements) == 0 {
		return nil, errors.InvalidParam("vertex elements must not be empty")
	}
	seen := map[string]struct{}{}
	for _, el := range elements {
		if !crystal.IsElementSymbol(el) {
			return nil, errors.New(errors.CodeInvalidSpecies, "unknown vertex element").WithDetailf("element=%s", el)
		}
		if _, dup := seen[el]; dup {
			return nil, errors.InvalidParam("duplicate vertex element").WithDetailf("element=%s", el)
		}
		seen[el] = struct{}{}
	}
	if err := rel.Validate(); err != nil {
		return nil, err
	}

	m := &ChemPotDiagMaker{
		rel:      rel,
		elements: append([]string(nil), elements...),
		opts:     opts.withDefaults(),
	}

	host := rel.HostCompositionEnergies(elements)
	for _, f := range host.Formulas() {
		comp, _ := composition(f)
		if comp.IsElement() {
			continue
		}
		m.host = append(m.host, hostCompound{formula: f, energy: host[f], fractions: atomicFractions(comp, elements)})
	}
	for _, el := range rel.AllElementSet() {
		if _, ok := seen[el]; !ok {
			m.impurities = append(m.impurities, el)
		}
	}

	if target != "" {
		canonical, err := m.resolveTarget(target)
		if err != nil {
			return nil, err
		}
		m.target = canonical
	}
	return m, nil
}

func (m *ChemPotDiagMaker) resolveTarget(target string) (string, error) {
	comp, err := crystal.ParseComposition(target)
	if err != nil {
		return "", err
	}
	reduced := comp.ReducedFormula()
	key := ""
	for _, f := range m.rel.Formulas() {
		if comp, ok := composition(f); ok && comp.ReducedFormula() == reduced {
			key = f
			break
		}
	}
	if key == "" {
		return "", errors.New(errors.CodeTargetNotFound, "target is not in relative energies").
			WithDetailf("target=%s", target)
	}
	if !isSubset(comp.ElementSet(), m.elements) {
		return "", errors.InvalidParam("target contains elements outside the vertex elements").
			WithDetailf("target=%s elements=%s", target, strings.Join(m.elements, ","))
	}
	return key, nil
}

// Target returns the canonical target formula, empty when none was given.
func (m *ChemPotDiagMaker) Target() string { return m.target }

// ImpurityElements returns the elements present in the relative energies
// but not among the vertex elements.
func (m *ChemPotDiagMaker) ImpurityElements() []string {
	return append([]string(nil), m.impurities...)
}

// halfspaces lists the rows [a..., b] with a·μ + b <= 0: one per host
// compound, then μ_e <= 0 and μ_e >= floor per element.
func (m *ChemPotDiagMaker) halfspaces() [][]float64 {
	dim := len(m.elements)
	rows := make([][]float64, 0, len(m.host)+2*dim)
	for _, h := range m.host {
		rows = append(rows, append(append([]float64{}, h.fractions...), -h.energy))
	}
	for i := 0; i < dim; i++ {
		upper := make([]float64, dim+1)
		lower := make([]float64, dim+1)
		upper[i] = 1
		lower[i] = -1
		lower[dim] = m.opts.FloorValue
		rows = append(rows, upper, lower)
	}
	return rows
}

func (m *ChemPotDiagMaker) round(x float64) float64 {
	p := math.Pow10(m.opts.RoundDigits)
	r := math.Round(x*p) / p
	if r == 0 {
		return 0 // drop the sign of -0
	}
	return r
}

func (m *ChemPotDiagMaker) onFace(v []float64, h hostCompound) bool {
	sum := 0.0
	for i, f := range h.fractions {
		sum += f * v[i]
	}
	return math.Abs(sum-h.energy) < m.opts.FaceTolerance
}

// Build intersects the half-spaces and extracts the element and compound
// faces, the target vertices and the impurity potentials at each of them.
func (m *ChemPotDiagMaker) Build() (*ChemPotDiag, *TargetVertices, error) {
	dim := len(m.elements)
	seed := make([]float64, dim)
	for i := range seed {
		seed[i] = m.opts.FloorValue + 1
	}
	raw, err := HalfspaceIntersection(m.halfspaces(), seed)
	if err != nil {
		return nil, nil, err
	}
	if len(raw) == 0 {
		return nil, nil, errors.New(errors.CodeEmptyDiagram, "half-space intersection produced no vertices")
	}

	floor := m.round(m.opts.FloorValue)
	minReal := math.Inf(1)
	rounded := make([][]float64, len(raw))
	for k, v := range raw {
		rounded[k] = make([]float64, dim)
		for i, x := range v {
			rounded[k][i] = m.round(x)
			if rounded[k][i] != floor {
				minReal = math.Min(minReal, rounded[k][i])
			}
		}
	}
	if minReal >= 0 {
		minReal = -1
	}
	minValue := m.round(m.opts.FloorScale * minReal)
	clipped := make([][]float64, len(raw))
	for k, v := range rounded {
		clipped[k] = make([]float64, dim)
		for i, x := range v {
			if x == floor {
				x = minValue
			}
			clipped[k][i] = x
		}
	}

	// faces[k] lists the labels of the faces containing vertex k: elements
	// first in vertex-element order, then compounds in sorted order.
	faces := make([][]string, len(raw))
	polygons := map[string][][]float64{}
	for i, el := range m.elements {
		for k := range raw {
			if rounded[k][i] == 0 {
				polygons[el] = append(polygons[el], clipped[k])
				faces[k] = append(faces[k], el)
			}
		}
	}
	for _, h := range m.host {
		for k, v := range raw {
			if m.onFace(v, h) {
				polygons[h.formula] = append(polygons[h.formula], clipped[k])
				faces[k] = append(faces[k], h.formula)
			}
		}
	}

	cpd := &ChemPotDiag{
		VertexElements: append([]string(nil), m.elements...),
		Polygons:       polygons,
		Target:         m.target,
	}
	if m.target == "" {
		return cpd, nil, nil
	}

	tv := &TargetVertices{Target: m.target, Vertices: map[string]TargetVertex{}}
	cpd.TargetVertices = map[string][]float64{}
	n := 0
	for k := range raw {
		if !contains(faces[k], m.target) {
			continue
		}
		label := VertexLabel(n)
		n++
		cpd.TargetVertices[label] = clipped[k]

		chemPot := make(map[string]float64, dim+len(m.impurities))
		for i, el := range m.elements {
			chemPot[el] = clipped[k][i]
		}
		host := make(map[string]float64, dim)
		for el, mu := range chemPot {
			host[el] = mu
		}
		competing := []string{}
		for _, f := range faces[k] {
			if f != m.target {
				competing = append(competing, f)
			}
		}
		impurityPhases := []string{}
		for _, imp := range m.impurities {
			mu, phase := m.rel.ImpurityChemPot(imp, host)
			chemPot[imp] = mu
			impurityPhases = append(impurityPhases, phase)
		}
		tv.Vertices[label] = TargetVertex{
			ChemPot:         chemPot,
			CompetingPhases: competing,
			ImpurityPhases:  impurityPhases,
		}
	}
	return cpd, tv, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
