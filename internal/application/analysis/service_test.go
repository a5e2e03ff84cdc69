package analysis

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/defectkit/internal/domain/chempot"
	"github.com/turtacn/defectkit/internal/domain/defect"
	"github.com/turtacn/defectkit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/defectkit/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/defectkit/internal/testutil"
	"github.com/turtacn/defectkit/pkg/errors"
)

type fixture struct {
	svc       Service
	log       *testutil.MockLogger
	repo      *testutil.MemoryRepository
	collector prometheus.MetricsCollector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	metrics, collector, err := prometheus.NewDefaultAnalysisMetrics("test")
	require.NoError(t, err)
	log := testutil.NewMockLogger()
	repo := testutil.NewMemoryRepository(nil)
	return &fixture{
		svc:       NewService(DefaultServiceOptions(), repo, metrics, log),
		log:       log,
		repo:      repo,
		collector: collector,
	}
}

func (f *fixture) metricsText(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "m.prom")
	require.NoError(t, f.collector.WriteTextfile(path))
	return testutil.ReadFile(t, path)
}

func canceled() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestCompareStructures_Vacancy(t *testing.T) {
	f := newFixture(t)
	perfect := testutil.RockSalt(t)
	vacancy := testutil.NewSupercell(t, testutil.WithoutSite(7))

	report, err := f.svc.CompareStructures(context.Background(), vacancy, perfect)
	require.NoError(t, err)

	_, err = uuid.Parse(report.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Mg4O3", report.DefectFormula)
	assert.Equal(t, "Mg4O4", report.PerfectFormula)
	assert.Equal(t, []int{7}, report.RemovedIndices)
	assert.Empty(t, report.InsertedIndices)
	assert.True(t, report.HasDefect())
	assert.Equal(t, 1, report.Summary.Vacancies)
	assert.Equal(t, 7, report.Summary.Mapped)
	assert.InDeltaSlice(t, []float64{0.5, 0.5, 0.5}, report.DefectCenter, 1e-12)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, report.NeighboringAtoms)

	msg, ok := f.log.Find("info", "operation completed")
	require.True(t, ok)
	runID, _ := msg.Field(logging.FieldRunID)
	assert.Equal(t, report.ID, runID)
	op, _ := msg.Field(logging.FieldOperation)
	assert.Equal(t, "compare", op)

	assert.Contains(t, f.metricsText(t), `test_analysis_comparisons_total{outcome="defect"} 1`)
}

func TestCompareStructures_NoDiff(t *testing.T) {
	f := newFixture(t)
	perfect := testutil.RockSalt(t)

	report, err := f.svc.CompareStructures(context.Background(), perfect, perfect)
	require.NoError(t, err)
	assert.False(t, report.HasDefect())
	assert.Nil(t, report.DefectCenter)
	assert.Empty(t, report.NeighboringAtoms)
	assert.True(t, report.SiteDiff.IsNoDiff())
	assert.Contains(t, f.metricsText(t), `test_analysis_comparisons_total{outcome="no_diff"} 1`)
}

func TestCompareStructures_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CompareStructures(context.Background(), nil, testutil.RockSalt(t))
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
	assert.True(t, f.log.HasMessage("error", "structure comparison failed"))
	assert.Contains(t, f.metricsText(t), `test_analysis_comparisons_total{outcome="error"} 1`)

	_, err = f.svc.CompareStructures(canceled(), testutil.RockSalt(t), testutil.RockSalt(t))
	assert.True(t, errors.IsCode(err, errors.CodeCanceled))
}

func TestBuildChemPotDiag(t *testing.T) {
	f := newFixture(t)

	report, err := f.svc.BuildChemPotDiag(context.Background(), testutil.MgOEnergies(), []string{"Mg", "O"}, "MgO")
	require.NoError(t, err)

	assert.Equal(t, "MgO", report.Target)
	assert.Equal(t, []string{"Mg", "O"}, report.Elements)
	assert.Equal(t, chempot.StandardEnergies{"Mg": -2, "O": -5, "Zn": -1}, report.Standard)
	assert.Equal(t, chempot.RelativeEnergies{"MgO": -3, "ZnO": -2}, report.Relative)
	require.NotNil(t, report.TargetVertices)
	assert.Equal(t, []string{"A", "B"}, report.TargetVertices.Labels())
	assert.Equal(t, map[string]float64{"Mg": -6, "O": 0, "Zn": -4}, report.TargetVertices.Vertices["A"].ChemPot)

	out := f.metricsText(t)
	assert.Contains(t, out, `test_analysis_cpd_builds_total{status="success"} 1`)
	assert.Contains(t, out, `test_analysis_cpd_target_vertices{target="MgO"} 2`)
}

func TestBuildChemPotDiag_DerivesElements(t *testing.T) {
	f := newFixture(t)
	report, err := f.svc.BuildChemPotDiag(context.Background(), testutil.MgOEnergies(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Mg", "O", "Zn"}, report.Elements)
	assert.Nil(t, report.TargetVertices)
	assert.NotEmpty(t, report.Diagram.Polygons)
}

func TestBuildChemPotDiag_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BuildChemPotDiag(ctx, chempot.CompositionEnergies{}, []string{"Mg", "O"}, "")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	noOxygen := testutil.MgOEnergies()
	delete(noOxygen, "O2")
	_, err = f.svc.BuildChemPotDiag(ctx, noOxygen, []string{"Mg", "O"}, "MgO")
	assert.True(t, errors.IsCode(err, errors.CodeNoElementEnergy))

	_, err = f.svc.BuildChemPotDiag(ctx, testutil.MgOEnergies(), []string{"Mg", "O"}, "CaO")
	assert.True(t, errors.IsCode(err, errors.CodeTargetNotFound))

	_, err = f.svc.BuildChemPotDiag(canceled(), testutil.MgOEnergies(), nil, "")
	assert.True(t, errors.IsCode(err, errors.CodeCanceled))

	assert.Contains(t, f.metricsText(t), `test_analysis_cpd_builds_total{status="failure"} 3`)
}

func TestBuildChemPotDiagFromStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ImportEnergies(ctx, testutil.MgOEnergies()))
	listed, err := f.svc.ListEnergies(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.MgOEnergies(), listed)

	report, err := f.svc.BuildChemPotDiagFromStore(ctx, []string{"Mg", "O"}, "MgO")
	require.NoError(t, err)
	assert.Len(t, report.TargetVertices.Vertices, 2)

	out := f.metricsText(t)
	assert.Contains(t, out, `test_analysis_store_operations_total{operation="save_all",status="success"} 1`)
	assert.Contains(t, out, `test_analysis_store_operations_total{operation="find_all",status="success"} 2`)
}

func TestStoreOperations_NoRepository(t *testing.T) {
	svc := NewService(DefaultServiceOptions(), nil, nil, nil)
	ctx := context.Background()

	_, err := svc.BuildChemPotDiagFromStore(ctx, []string{"Mg", "O"}, "MgO")
	assert.True(t, errors.IsCode(err, errors.CodeStoreUnavailable))
	assert.True(t, errors.IsCode(svc.ImportEnergies(ctx, testutil.MgOEnergies()), errors.CodeStoreUnavailable))
}

func TestStoreOperations_RepositoryFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.Err = errors.New(errors.CodeStoreUnavailable, "disk gone")

	err := f.svc.ImportEnergies(context.Background(), testutil.MgOEnergies())
	assert.True(t, errors.IsCode(err, errors.CodeStoreUnavailable))
	assert.True(t, f.log.HasMessage("error", "composition energy import failed"))
	assert.Contains(t, f.metricsText(t), `test_analysis_store_operations_total{operation="save_all",status="failure"} 1`)
}

func TestAssembleDefectEnergy(t *testing.T) {
	f := newFixture(t)
	req := DefectEnergyRequest{
		Entry:      defect.DefectEntry{Name: "Va_O1", Charge: 2},
		Defect:     defect.CalcResults{Structure: testutil.NewSupercell(t, testutil.WithoutSite(7)), Energy: -100},
		Perfect:    defect.CalcResults{Structure: testutil.RockSalt(t), Energy: -110},
		Correction: defect.ManualCorrection{Energy: 0.3},
		Standard:   chempot.StandardEnergies{"Mg": -2, "O": -5},
	}

	info, err := f.svc.AssembleDefectEnergy(context.Background(), req)
	require.NoError(t, err)
	assert.InDelta(t, 5.3, info.FormationEnergy(), 1e-12)
	assert.Nil(t, info.DefectEnergy.IsShallow)

	req.Standard = chempot.StandardEnergies{"Mg": -2}
	_, err = f.svc.AssembleDefectEnergy(context.Background(), req)
	assert.True(t, errors.IsCode(err, errors.CodeNoElementEnergy))

	out := f.metricsText(t)
	assert.Contains(t, out, `test_analysis_energy_assemblies_total{status="success"} 1`)
	assert.Contains(t, out, `test_analysis_energy_assemblies_total{status="failure"} 1`)
}

func TestClassifyBandEdges(t *testing.T) {
	f := newFixture(t)
	vbm, cbm := 0.1, 4.9
	ref := defect.PerfectEdgeCharacter{VBM: 0, CBM: 5}
	targets := []defect.EdgeCharacter{
		{HOBBottomE: 0, LUBTopE: 5, HOBPRatio: 0.1, LUBPRatio: 0.1, VBM: &vbm, CBM: &cbm},
		{HOBBottomE: 4.8, LUBTopE: 5, HOBPRatio: 0.1, LUBPRatio: 0.1},
	}

	states, err := f.svc.ClassifyBandEdges(context.Background(), targets, ref)
	require.NoError(t, err)
	assert.Equal(t, []defect.EdgeState{defect.EdgeNoInGap, defect.EdgeDonorPHS}, states.States)
	assert.True(t, states.IsShallow())
	assert.Contains(t, f.metricsText(t), `test_analysis_band_edge_states_total{state="donor_phs"} 1`)

	_, err = f.svc.ClassifyBandEdges(context.Background(), nil, ref)
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}
