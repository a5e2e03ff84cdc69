package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/defectkit/internal/domain/chempot"
	"github.com/turtacn/defectkit/internal/domain/defect"
	"github.com/turtacn/defectkit/internal/infrastructure/storage/yamlfile"
	"github.com/turtacn/defectkit/pkg/errors"
)

const edgeInput = `
perfect:
  vbm: 0.0
  cbm: 4.0
channels:
  - hob_bottom_e: 3.8
    lub_top_e: 4.5
    hob_p_ratio: 0.1
    lub_p_ratio: 0.1
  - hob_bottom_e: 1.0
    lub_top_e: 3.0
    hob_p_ratio: 0.9
    lub_p_ratio: 0.2
`

func (h *harness) writeStd() string {
	h.t.Helper()
	p := h.path("std.yaml")
	require.NoError(h.t, yamlfile.SaveStandardEnergies(p, chempot.StandardEnergies{"Mg": -2, "O": -5}))
	return p
}

func (h *harness) energyArgs(extra ...string) []string {
	d, p := h.writeStructures()
	args := []string{"energy", "--defect", d, "--perfect", p,
		"--defect-energy=-33", "--perfect-energy=-40", "--std", h.writeStd(),
		"--name", "Va_O1", "--charge", "2"}
	return append(args, extra...)
}

func TestEnergy_Text(t *testing.T) {
	h := newHarness(t)
	out, err := h.run(h.energyArgs("--correction=0.5")...)
	require.NoError(t, err)

	// -33 - (-40) - (-1)(-5) = 2, plus 0.5 of correction.
	assert.Contains(t, out, "defect: Va_O1_2")
	assert.Contains(t, out, "formation energy: 2.5000 eV (uncorrected 2.0000, correction 0.5000)")
	assert.Contains(t, out, "O        -1")
	assert.Contains(t, out, "manual      0.5000")
	assert.NotContains(t, out, "shallow")
}

func TestEnergy_JSONAndSave(t *testing.T) {
	h := newHarness(t)
	save := h.path("energy.yaml")
	out, err := h.run(h.energyArgs("--output=json", "--save", save)...)
	require.NoError(t, err)

	var info defect.DefectEnergyInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "Va_O1", info.Name)
	assert.Equal(t, 2, info.Charge)
	assert.Equal(t, map[string]int{"O": -1}, info.AtomIO)
	assert.InDelta(t, 2.0, info.FormationEnergy(), 1e-9)
	assert.Empty(t, info.DefectEnergy.EnergyCorrections)

	saved, err := yamlfile.LoadDefectEnergyInfo(save)
	require.NoError(t, err)
	assert.Equal(t, info.AtomIO, saved.AtomIO)
	assert.InDelta(t, 2.0, saved.FormationEnergy(), 1e-9)
}

func TestEnergy_MissingStandardEnergy(t *testing.T) {
	h := newHarness(t)
	std := h.path("std_mg.yaml")
	require.NoError(t, yamlfile.SaveStandardEnergies(std, chempot.StandardEnergies{"Mg": -2}))

	args := h.energyArgs("--std", std)
	_, err := h.run(args...)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNoElementEnergy), err.Error())
}

func TestEnergy_RequiresName(t *testing.T) {
	h := newHarness(t)
	d, p := h.writeStructures()
	_, err := h.run("energy", "--defect", d, "--perfect", p,
		"--defect-energy=-33", "--perfect-energy=-40", "--std", h.writeStd())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestBandEdge_TextAndSave(t *testing.T) {
	h := newHarness(t)
	input := h.path("edges.yaml")
	require.NoError(t, writeFile(input, edgeInput))
	save := h.path("states.yaml")

	out, err := h.run("band-edge", "--input", input, "--save", save)
	require.NoError(t, err)
	assert.Contains(t, out, "0        donor_phs")
	assert.Contains(t, out, "1        in_gap_state")
	assert.Contains(t, out, "shallow: true")

	states, err := yamlfile.LoadBandEdgeStates(save)
	require.NoError(t, err)
	assert.Equal(t, []defect.EdgeState{defect.EdgeDonorPHS, defect.EdgeInGapState}, states.States)
}

func TestBandEdge_CriteriaOverride(t *testing.T) {
	h := newHarness(t)
	input := h.path("edges.yaml")
	require.NoError(t, writeFile(input, edgeInput))

	out, err := h.run("band-edge", "--input", input, "--localized-ratio", "0.95", "--output=json")
	require.NoError(t, err)

	var states defect.BandEdgeStates
	require.NoError(t, json.Unmarshal([]byte(out), &states))
	assert.Equal(t, []defect.EdgeState{defect.EdgeDonorPHS, defect.EdgeStateUnknown}, states.States)

	_, err = h.run("band-edge", "--input", input, "--localized-ratio", "1.5")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestEnergy_WithBandEdges(t *testing.T) {
	h := newHarness(t)
	input := h.path("edges.yaml")
	require.NoError(t, writeFile(input, edgeInput))
	states := h.path("states.yaml")
	_, err := h.run("band-edge", "--input", input, "--save", states)
	require.NoError(t, err)

	out, err := h.run(h.energyArgs("--band-edges", states)...)
	require.NoError(t, err)
	assert.Contains(t, out, "shallow: true")
}
