package yamlfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/defectkit/internal/domain/chempot"
	"github.com/turtacn/defectkit/internal/domain/defect"
	"github.com/turtacn/defectkit/internal/testutil"
	"github.com/turtacn/defectkit/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadCompositionEnergies(t *testing.T) {
	path := writeFile(t, "ce.yaml", `
Mg:
  energy: -2.0
  source: mp-153
O2:
  energy: -10.0
MgO:
  energy: -13.0
  source: mp-1265
`)
	ce, err := LoadCompositionEnergies(path)
	require.NoError(t, err)
	assert.Equal(t, chempot.CompositionEnergies{
		"Mg":  {Energy: -2, Source: "mp-153"},
		"O2":  {Energy: -10},
		"MgO": {Energy: -13, Source: "mp-1265"},
	}, ce)
}

func TestLoadCompositionEnergies_Errors(t *testing.T) {
	_, err := LoadCompositionEnergies(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	_, err = LoadCompositionEnergies(writeFile(t, "bad.yaml", "Mg: [1, 2"))
	assert.True(t, errors.IsCode(err, errors.CodeSerialization))

	_, err = LoadCompositionEnergies(writeFile(t, "formula.yaml", "Qq2:\n  energy: -1\n"))
	assert.True(t, errors.IsCode(err, errors.CodeInvalidSpecies))
}

func TestCompositionEnergies_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ce.yaml")
	require.NoError(t, SaveCompositionEnergies(path, testutil.MgOEnergies()))
	ce, err := LoadCompositionEnergies(path)
	require.NoError(t, err)
	assert.Equal(t, testutil.MgOEnergies(), ce)
}

func TestStdRelEnergies_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	std, rel, err := testutil.MgOEnergies().StdRelEnergies()
	require.NoError(t, err)

	require.NoError(t, SaveStandardEnergies(filepath.Join(dir, "std.yaml"), std))
	require.NoError(t, SaveRelativeEnergies(filepath.Join(dir, "rel.yaml"), rel))

	gotStd, err := LoadStandardEnergies(filepath.Join(dir, "std.yaml"))
	require.NoError(t, err)
	assert.Equal(t, std, gotStd)
	gotRel, err := LoadRelativeEnergies(filepath.Join(dir, "rel.yaml"))
	require.NoError(t, err)
	assert.Equal(t, rel, gotRel)

	data, err := os.ReadFile(filepath.Join(dir, "rel.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "MgO: -3\nZnO: -2\n", string(data))
}

func TestLoadStructure(t *testing.T) {
	path := writeFile(t, "s.yaml", `
lattice:
  - [10, 0, 0]
  - [0, 10, 0]
  - [0, 0, 10]
sites:
  - species: Mg
    frac_coords: [0, 0, 0]
  - species: O
    frac_coords: [0.5, 0, 1.25]
`)
	s, err := LoadStructure(path)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, "O", s.Site(1).Species)
	assert.InDelta(t, 0.25, s.Site(1).FracCoords.Z, 1e-12)
	assert.InDelta(t, 1000, s.Lattice.Volume(), 1e-9)
}

func TestLoadStructure_Invalid(t *testing.T) {
	_, err := LoadStructure(writeFile(t, "singular.yaml", "lattice: [[1,0,0],[2,0,0],[0,0,1]]\nsites: []\n"))
	assert.True(t, errors.IsCode(err, errors.CodeInvalidLattice))

	_, err = LoadStructure(writeFile(t, "species.yaml",
		"lattice: [[1,0,0],[0,1,0],[0,0,1]]\nsites:\n  - species: Qq\n    frac_coords: [0,0,0]\n"))
	assert.True(t, errors.IsCode(err, errors.CodeInvalidSpecies))

	_, err = LoadStructure(writeFile(t, "coords.yaml",
		"lattice: [[1,0,0],[0,1,0],[0,0,1]]\nsites:\n  - species: Mg\n    frac_coords: [0,0]\n"))
	assert.True(t, errors.IsCode(err, errors.CodeSerialization))
}

func TestStructure_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perfect.yaml")
	perfect := testutil.RockSalt(t)
	require.NoError(t, SaveStructure(path, perfect))

	got, err := LoadStructure(path)
	require.NoError(t, err)
	assert.Equal(t, perfect.Sites, got.Sites)
	assert.Equal(t, perfect.Lattice.Matrix(), got.Lattice.Matrix())

	assert.Error(t, SaveStructure(path, nil))
}

func TestChemPotDiag_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	m, err := chempot.NewChemPotDiagMaker(chempot.RelativeEnergies{"MgO": -3, "ZnO": -2},
		[]string{"Mg", "O"}, "MgO", chempot.DefaultCPDOptions())
	require.NoError(t, err)
	cpd, tv, err := m.Build()
	require.NoError(t, err)

	require.NoError(t, SaveChemPotDiag(filepath.Join(dir, "cpd.yaml"), cpd))
	require.NoError(t, SaveTargetVertices(filepath.Join(dir, "tv.yaml"), tv))

	gotCPD, err := LoadChemPotDiag(filepath.Join(dir, "cpd.yaml"))
	require.NoError(t, err)
	assert.Equal(t, cpd, gotCPD)

	gotTV, err := LoadTargetVertices(filepath.Join(dir, "tv.yaml"))
	require.NoError(t, err)
	assert.Equal(t, tv, gotTV)

	assert.Error(t, SaveChemPotDiag(filepath.Join(dir, "x.yaml"), nil))
	assert.Error(t, SaveTargetVertices(filepath.Join(dir, "x.yaml"), nil))
}

func TestLoadChemPotDiag_Empty(t *testing.T) {
	_, err := LoadChemPotDiag(writeFile(t, "empty.yaml", "vertex_elements: []\n"))
	assert.True(t, errors.IsCode(err, errors.CodeEmptyDiagram))
}

func TestLoadBandEdgeInput(t *testing.T) {
	path := writeFile(t, "edges.yaml", `
perfect:
  vbm: 0.0
  cbm: 4.0
  vbm_orbitals: {O: [0.0, 0.9]}
  cbm_orbitals: {Mg: [0.8]}
channels:
  - hob_bottom_e: 3.8
    lub_top_e: 4.5
    hob_p_ratio: 0.1
    lub_p_ratio: 0.1
    vbm: 0.05
  - hob_bottom_e: 1.0
    lub_top_e: 3.0
    hob_p_ratio: 0.9
    lub_p_ratio: 0.2
`)
	in, err := LoadBandEdgeInput(path)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, in.Perfect.CBM, 1e-12)
	assert.Equal(t, []float64{0.0, 0.9}, in.Perfect.VBMOrbitals["O"])
	require.Len(t, in.Channels, 2)
	require.NotNil(t, in.Channels[0].VBM)
	assert.InDelta(t, 0.05, *in.Channels[0].VBM, 1e-12)
	assert.Nil(t, in.Channels[0].CBM)
	assert.InDelta(t, 0.9, in.Channels[1].HOBPRatio, 1e-12)
}

func TestLoadBandEdgeInput_Invalid(t *testing.T) {
	_, err := LoadBandEdgeInput(writeFile(t, "none.yaml", "perfect: {vbm: 0, cbm: 4}\nchannels: []\n"))
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	_, err = LoadBandEdgeInput(writeFile(t, "gap.yaml", "perfect: {vbm: 4, cbm: 0}\nchannels: [{hob_bottom_e: 1}]\n"))
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestBandEdgeStates_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "states.yaml")
	states := &defect.BandEdgeStates{States: []defect.EdgeState{defect.EdgeDonorPHS, defect.EdgeInGapState}}
	require.NoError(t, SaveBandEdgeStates(path, states))

	got, err := LoadBandEdgeStates(path)
	require.NoError(t, err)
	assert.Equal(t, states, got)
	assert.True(t, got.IsShallow())

	_, err = LoadBandEdgeStates(writeFile(t, "bad.yaml", "states: [sideways]\n"))
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
	assert.Error(t, SaveBandEdgeStates(path, nil))
}

func TestDefectEnergyInfo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "energy.yaml")
	shallow := false
	info := &defect.DefectEnergyInfo{
		Name:   "Va_O1",
		Charge: 2,
		AtomIO: map[string]int{"O": -1},
		DefectEnergy: defect.DefectEnergy{
			FormationEnergy:   3.5,
			EnergyCorrections: map[string]float64{"manual": -0.25},
			IsShallow:         &shallow,
		},
	}
	require.NoError(t, SaveDefectEnergyInfo(path, info))

	got, err := LoadDefectEnergyInfo(path)
	require.NoError(t, err)
	assert.Equal(t, info, got)
	assert.InDelta(t, 3.25, got.FormationEnergy(), 1e-12)

	_, err = LoadDefectEnergyInfo(writeFile(t, "anon.yaml", "charge: 1\n"))
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
	assert.Error(t, SaveDefectEnergyInfo(path, nil))
}
