package defect

import (
	"sort"
	"strconv"

	"github.com/turtacn/defectkit/internal/domain/chempot"
	"github.com/turtacn/defectkit/internal/domain/crystal"
	"github.com/turtacn/defectkit/pkg/errors"
)

// CalcResults is the relaxed structure and total energy of one calculation.
type CalcResults struct {
	Structure *crystal.Structure
	Energy    float64
}

// DefectEntry names a defect and its charge state.
type DefectEntry struct {
	Name   string `json:"name" yaml:"name"`
	Charge int    `json:"charge" yaml:"charge"`
}

// FullName returns name_charge, e.g. "Va_O1_2".
func (e DefectEntry) FullName() string {
	return e.Name + "_" + strconv.Itoa(e.Charge)
}

// Correction supplies named energy corrections for a defect calculation.
type Correction interface {
	CorrectionDict() map[string]float64
}

// ManualCorrection is a single correction energy entered by hand.
type ManualCorrection struct {
	Description string
	Energy      float64
}

// CorrectionDict implements Correction.
func (m ManualCorrection) CorrectionDict() map[string]float64 {
	name := m.Description
	if name == "" {
		name = "manual"
	}
	return map[string]float64{name: m.Energy}
}

// DefectEnergy is the uncorrected formation energy at zero Fermi level and
// vanishing chemical potentials, plus its corrections.
type DefectEnergy struct {
	FormationEnergy   float64            `json:"formation_energy" yaml:"formation_energy"`
	EnergyCorrections map[string]float64 `json:"energy_corrections" yaml:"energy_corrections"`
	IsShallow         *bool              `json:"is_shallow,omitempty" yaml:"is_shallow,omitempty"`
}

// TotalCorrection sums all corrections.
func (e DefectEnergy) TotalCorrection() float64 {
	keys := make([]string, 0, len(e.EnergyCorrections))
	for k := range e.EnergyCorrections {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	total := 0.0
	for _, k := range keys {
		total += e.EnergyCorrections[k]
	}
	return total
}

// DefectEnergyInfo is the energy record of one defect in one charge state.
type DefectEnergyInfo struct {
	Name         string         `json:"name" yaml:"name"`
	Charge       int            `json:"charge" yaml:"charge"`
	AtomIO       map[string]int `json:"atom_io" yaml:"atom_io"`
	DefectEnergy DefectEnergy   `json:"defect_energy" yaml:"defect_energy"`
}

// FormationEnergy returns the corrected formation energy.
func (i *DefectEnergyInfo) FormationEnergy() float64 {
	return i.DefectEnergy.FormationEnergy + i.DefectEnergy.TotalCorrection()
}

// NumAtomDifferences returns, per element, how many atoms structure has more
// than ref. Elements with equal counts are omitted.
func NumAtomDifferences(structure, ref *crystal.Structure) map[string]int {
	target, reference := structure.Composition(), ref.Composition()
	out := map[string]int{}
	for el := range target {
		if n := int(target[el] - reference[el]); n != 0 {
			out[el] = n
		}
	}
	for el := range reference {
		if _, ok := target[el]; ok {
			continue
		}
		if n := -int(reference[el]); n != 0 {
			out[el] = n
		}
	}
	return out
}

// MakeDefectEnergyInfo computes E_defect - E_perfect - Σ n_e μ°_e. bandEdges
// may be nil when the band-edge states are unknown.
func MakeDefectEnergyInfo(entry DefectEntry, calc CalcResults, correction Correction,
	perfect CalcResults, std chempot.StandardEnergies, bandEdges *BandEdgeStates) (*DefectEnergyInfo, error) {
	if calc.Structure == nil || perfect.Structure == nil {
		return nil, errors.InvalidParam("calculation results must carry a structure")
	}
	atomIO := NumAtomDifferences(calc.Structure, perfect.Structure)

	elements := make([]string, 0, len(atomIO))
	for el := range atomIO {
		elements = append(elements, el)
	}
	sort.Strings(elements)

	formation := calc.Energy - perfect.Energy
	for _, el := range elements {
		mu, ok := std[el]
		if !ok {
			return nil, errors.New(errors.CodeNoElementEnergy, "no standard energy for exchanged element").
				WithDetailf("defect=%s element=%s", entry.Name, el)
		}
		formation -= mu * float64(atomIO[el])
	}

	corrections := map[string]float64{}
	if correction != nil {
		for k, v := range correction.CorrectionDict() {
			corrections[k] = v
		}
	}
	var shallow *bool
	if bandEdges != nil {
		s := bandEdges.IsShallow()
		shallow = &s
	}

	return &DefectEnergyInfo{
		Name:   entry.Name,
		Charge: entry.Charge,
		AtomIO: atomIO,
		DefectEnergy: DefectEnergy{
			FormationEnergy:   formation,
			EnergyCorrections: corrections,
			IsShallow:         shallow,
		},
	}, nil
}
