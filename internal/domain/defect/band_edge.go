package defect

import "math"

// EdgeState classifies the band-edge states of a defect calculation.
type EdgeState string

const (
	EdgeNoInGap      EdgeState = "no_in_gap"
	EdgeDonorPHS     EdgeState = "donor_phs"
	EdgeAcceptorPHS  EdgeState = "acceptor_phs"
	EdgeInGapState   EdgeState = "in_gap_state"
	EdgeStateUnknown EdgeState = "unknown"
)

// IsShallow reports whether the state is a perturbed host state.
func (s EdgeState) IsShallow() bool {
	return s == EdgeDonorPHS || s == EdgeAcceptorPHS
}

// EdgeCharacter describes the band edges of a defect calculation in one spin
// channel. VBM and CBM are nil when they could not be identified.
type EdgeCharacter struct {
	HOBBottomE  float64              `json:"hob_bottom_e" yaml:"hob_bottom_e"`
	LUBTopE     float64              `json:"lub_top_e" yaml:"lub_top_e"`
	HOBPRatio   float64              `json:"hob_p_ratio" yaml:"hob_p_ratio"`
	LUBPRatio   float64              `json:"lub_p_ratio" yaml:"lub_p_ratio"`
	VBM         *float64             `json:"vbm,omitempty" yaml:"vbm,omitempty"`
	CBM         *float64             `json:"cbm,omitempty" yaml:"cbm,omitempty"`
	VBMOrbitals map[string][]float64 `json:"vbm_orbitals" yaml:"vbm_orbitals"`
	CBMOrbitals map[string][]float64 `json:"cbm_orbitals" yaml:"cbm_orbitals"`
}

// PerfectEdgeCharacter describes the band edges of the perfect supercell.
type PerfectEdgeCharacter struct {
	VBM         float64              `json:"vbm" yaml:"vbm"`
	CBM         float64              `json:"cbm" yaml:"cbm"`
	VBMOrbitals map[string][]float64 `json:"vbm_orbitals" yaml:"vbm_orbitals"`
	CBMOrbitals map[string][]float64 `json:"cbm_orbitals" yaml:"cbm_orbitals"`
}

// BandEdgeCriteria are the thresholds of MakeBandEdgeState.
type BandEdgeCriteria struct {
	// LocalizedRatio is the participation ratio above which an orbital is
	// regarded as localized.
	LocalizedRatio float64
	// SimilarEnergyCriterion (eV) bounds band-edge energy differences.
	SimilarEnergyCriterion float64
	// SimilarOrbCriterion bounds the summed orbital-weight difference.
	SimilarOrbCriterion float64
}

// DefaultBandEdgeCriteria returns the library defaults.
func DefaultBandEdgeCriteria() BandEdgeCriteria {
	return BandEdgeCriteria{LocalizedRatio: 0.4, SimilarEnergyCriterion: 0.5, SimilarOrbCriterion: 0.2}
}

// MakeBandEdgeState compares the edges of a defect calculation with those of
// the perfect supercell. The checks are evaluated in order: no in-gap state,
// donor-type perturbed host state, acceptor-type perturbed host state,
// localized in-gap state, unknown.
func MakeBandEdgeState(target EdgeCharacter, ref PerfectEdgeCharacter, c BandEdgeCriteria) EdgeState {
	hobLocalized := target.HOBPRatio > c.LocalizedRatio
	lubLocalized := target.LUBPRatio > c.LocalizedRatio

	hobNearCBM := target.HOBBottomE > ref.CBM-c.SimilarEnergyCriterion
	lubNearVBM := target.LUBTopE < ref.VBM+c.SimilarEnergyCriterion

	similarVBME := target.VBM != nil && math.Abs(*target.VBM-ref.VBM) < c.SimilarEnergyCriterion
	similarCBME := target.CBM != nil && math.Abs(*target.CBM-ref.CBM) < c.SimilarEnergyCriterion

	similarVBMO := AreOrbitalsSimilar(target.VBMOrbitals, ref.VBMOrbitals, c.SimilarOrbCriterion)
	similarCBMO := AreOrbitalsSimilar(target.CBMOrbitals, ref.CBMOrbitals, c.SimilarOrbCriterion)

	switch {
	case !hobLocalized && !lubLocalized && similarVBME && similarCBME && similarVBMO && similarCBMO:
		return EdgeNoInGap
	case !hobLocalized && hobNearCBM:
		return EdgeDonorPHS
	case !lubLocalized && lubNearVBM:
		return EdgeAcceptorPHS
	case hobLocalized || lubLocalized:
		return EdgeInGapState
	default:
		return EdgeStateUnknown
	}
}

// AreOrbitalsSimilar sums |o1 - o2| over every element and orbital, padding
// the shorter list with zeros, and compares the sum with criterion.
func AreOrbitalsSimilar(o1, o2 map[string][]float64, criterion float64) bool {
	diff := 0.0
	seen := map[string]struct{}{}
	for _, m := range []map[string][]float64{o1, o2} {
		for el := range m {
			if _, ok := seen[el]; ok {
				continue
			}
			seen[el] = struct{}{}
			a, b := o1[el], o2[el]
			n := len(a)
			if len(b) > n {
				n = len(b)
			}
			for i := 0; i < n; i++ {
				diff += math.Abs(at(a, i) - at(b, i))
			}
		}
	}
	return diff < criterion
}

func at(s []float64, i int) float64 {
	if i < len(s) {
		return s[i]
	}
	return 0
}

// BandEdgeStates holds one EdgeState per spin channel.
type BandEdgeStates struct {
	States []EdgeState `json:"states" yaml:"states"`
}

// IsShallow reports whether any channel hosts a perturbed host state.
func (b *BandEdgeStates) IsShallow() bool {
	for _, s := range b.States {
		if s.IsShallow() {
			return true
		}
	}
	return false
}
