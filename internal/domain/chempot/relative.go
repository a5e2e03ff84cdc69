package chempot

import (
	"github.com/turtacn/defectkit/internal/domain/crystal"
	"github.com/turtacn/defectkit/pkg/errors"
)

// composition parses a stored key. Keys that do not parse report false and
// are left out of every query.
func composition(formula string) (crystal.Composition, bool) {
	comp, err := crystal.ParseComposition(formula)
	if err != nil || len(comp.Elements()) == 0 {
		return crystal.Composition{}, false
	}
	return comp, true
}

func isSubset(set map[string]struct{}, of []string) bool {
	allowed := make(map[string]struct{}, len(of))
	for _, el := range of {
		allowed[el] = struct{}{}
	}
	for el := range set {
		if _, ok := allowed[el]; !ok {
			return false
		}
	}
	return true
}

// AllElementSet returns every element of every stored compound, sorted.
func (r RelativeEnergies) AllElementSet() []string {
	set := map[string]struct{}{}
	for f := range r {
		comp, ok := composition(f)
		if !ok {
			continue
		}
		for el := range comp.ElementSet() {
			set[el] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// HostCompositionEnergies returns the compounds made only of elements.
func (r RelativeEnergies) HostCompositionEnergies(elements []string) RelativeEnergies {
	out := RelativeEnergies{}
	for f, e := range r {
		if comp, ok := composition(f); ok && isSubset(comp.ElementSet(), elements) {
			out[f] = e
		}
	}
	return out
}

// CompEnergiesWithElement returns the compounds containing el.
func (r RelativeEnergies) CompEnergiesWithElement(el string) RelativeEnergies {
	out := RelativeEnergies{}
	for f, e := range r {
		comp, ok := composition(f)
		if !ok {
			continue
		}
		if _, has := comp.ElementSet()[el]; has {
			out[f] = e
		}
	}
	return out
}

// TargetElementChemPot solves energy = Σ x_e μ_e for the chemical potential of
// target, given the potentials of the other elements of comp.
func TargetElementChemPot(comp crystal.Composition, energyPerAtom float64, target string, others map[string]float64) (float64, error) {
	frac := comp.FractionalComposition()
	targetFrac := frac[target]
	if targetFrac <= 0 {
		return 0, errors.InvalidParam("target element not in composition").
			WithDetailf("composition=%s element=%s", comp.Formula(), target)
	}
	rest := 0.0
	for _, el := range comp.Elements() {
		if el == target {
			continue
		}
		mu, ok := others[el]
		if !ok {
			return 0, errors.InvalidParam("missing chemical potential").
				WithDetailf("composition=%s element=%s", comp.Formula(), el)
		}
		rest += frac[el] * mu
	}
	return (energyPerAtom - rest) / targetFrac, nil
}

// ImpurityChemPot returns the highest chemical potential of the impurity el
// that no compound containing it can undercut, together with the limiting
// phase. The elemental phase (μ = 0) is always a candidate and wins ties.
// Compounds that contain elements without a host potential are skipped.
func (r RelativeEnergies) ImpurityChemPot(el string, hostChemPot map[string]float64) (float64, string) {
	best, phase := 0.0, el
	candidates := r.CompEnergiesWithElement(el)
	for _, f := range candidates.Formulas() {
		comp, _ := composition(f)
		mu, err := TargetElementChemPot(comp, candidates[f], el, hostChemPot)
		if err != nil {
			continue
		}
		if mu < best {
			best, phase = mu, f
		}
	}
	return best, phase
}
