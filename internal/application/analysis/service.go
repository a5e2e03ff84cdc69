// Package analysis provides the application-level service that drives the
// structure comparator, the chemical potential diagram builder and the
// defect energy assembly. CLI commands talk to this package only.
package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/defectkit/internal/domain/chempot"
	"github.com/turtacn/defectkit/internal/domain/crystal"
	"github.com/turtacn/defectkit/internal/domain/defect"
	"github.com/turtacn/defectkit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/defectkit/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/defectkit/pkg/errors"
)

// Service defines the analysis operations.
type Service interface {
	CompareStructures(ctx context.Context, defectStr, perfect *crystal.Structure) (*ComparisonReport, error)
	BuildChemPotDiag(ctx context.Context, energies chempot.CompositionEnergies, elements []string, target string) (*CPDReport, error)
	BuildChemPotDiagFromStore(ctx context.Context, elements []string, target string) (*CPDReport, error)
	AssembleDefectEnergy(ctx context.Context, req DefectEnergyRequest) (*defect.DefectEnergyInfo, error)
	ClassifyBandEdges(ctx context.Context, targets []defect.EdgeCharacter, ref defect.PerfectEdgeCharacter) (*defect.BandEdgeStates, error)
	ImportEnergies(ctx context.Context, energies chempot.CompositionEnergies) error
	ListEnergies(ctx context.Context) (chempot.CompositionEnergies, error)
}

// ServiceOptions carries the tunables of every operation.
type ServiceOptions struct {
	Comparator defect.Options
	CPD        chempot.CPDOptions
	BandEdge   defect.BandEdgeCriteria
}

// DefaultServiceOptions returns the library defaults.
func DefaultServiceOptions() ServiceOptions {
	return ServiceOptions{
		Comparator: defect.DefaultOptions(),
		CPD:        chempot.DefaultCPDOptions(),
		BandEdge:   defect.DefaultBandEdgeCriteria(),
	}
}

// ComparisonReport is the outcome of CompareStructures.
type ComparisonReport struct {
	ID               string                 `json:"id" yaml:"id"`
	DefectFormula    string                 `json:"defect_formula" yaml:"defect_formula"`
	PerfectFormula   string                 `json:"perfect_formula" yaml:"perfect_formula"`
	RemovedIndices   []int                  `json:"removed_indices" yaml:"removed_indices"`
	InsertedIndices  []int                  `json:"inserted_indices" yaml:"inserted_indices"`
	AtomMapping      map[int]int            `json:"atom_mapping" yaml:"atom_mapping"`
	AmbiguousMatches int                    `json:"ambiguous_matches" yaml:"ambiguous_matches"`
	DefectCenter     []float64              `json:"defect_center,omitempty" yaml:"defect_center,omitempty,flow"`
	NeighboringAtoms []int                  `json:"neighboring_atoms" yaml:"neighboring_atoms,flow"`
	SiteDiff         *defect.SiteDiff       `json:"site_diff" yaml:"site_diff"`
	Summary          defect.SiteDiffSummary `json:"summary" yaml:"summary"`
}

// HasDefect reports whether any site was removed or inserted.
func (r *ComparisonReport) HasDefect() bool {
	return len(r.RemovedIndices) > 0 || len(r.InsertedIndices) > 0
}

// CPDReport is the outcome of BuildChemPotDiag.
type CPDReport struct {
	ID             string                   `json:"id" yaml:"id"`
	Elements       []string                 `json:"elements" yaml:"elements,flow"`
	Target         string                   `json:"target,omitempty" yaml:"target,omitempty"`
	Standard       chempot.StandardEnergies `json:"standard_energies" yaml:"standard_energies"`
	Relative       chempot.RelativeEnergies `json:"relative_energies" yaml:"relative_energies"`
	Diagram        *chempot.ChemPotDiag     `json:"diagram" yaml:"diagram"`
	TargetVertices *chempot.TargetVertices  `json:"target_vertices,omitempty" yaml:"target_vertices,omitempty"`
}

// DefectEnergyRequest bundles the inputs of AssembleDefectEnergy.
type DefectEnergyRequest struct {
	Entry      defect.DefectEntry
	Defect     defect.CalcResults
	Perfect    defect.CalcResults
	Correction defect.Correction
	Standard   chempot.StandardEnergies
	// BandEdges is optional.
	BandEdges *defect.BandEdgeStates
}

// serviceImpl implements the Service interface.
type serviceImpl struct {
	opts    ServiceOptions
	repo    chempot.Repository
	metrics *prometheus.AnalysisMetrics
	logger  logging.Logger
}

// NewService creates the analysis service. repo and metrics may be nil; a
// nil repo makes the store-backed operations fail with CodeStoreUnavailable.
func NewService(opts ServiceOptions, repo chempot.Repository, metrics *prometheus.AnalysisMetrics, logger logging.Logger) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		opts:    opts,
		repo:    repo,
		metrics: metrics,
		logger:  logger.Named("analysis"),
	}
}

// begin allocates a run ID and returns a logger tagged with it.
func (s *serviceImpl) begin(ctx context.Context) (string, logging.Logger) {
	id := uuid.NewString()
	return id, s.logger.WithContext(logging.WithRunID(ctx, id))
}

func (s *serviceImpl) CompareStructures(ctx context.Context, defectStr, perfect *crystal.Structure) (*ComparisonReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCanceled, "comparison canceled")
	}
	start := time.Now()
	id, log := s.begin(ctx)

	cmp, err := defect.NewStructureComparator(defectStr, perfect, s.opts.Comparator)
	if err != nil {
		s.metrics.RecordComparison(0, 0, 0, err)
		log.WithError(err).Error("structure comparison failed")
		return nil, err
	}

	diff := cmp.MakeSiteDiff()
	report := &ComparisonReport{
		ID:               id,
		DefectFormula:    defectStr.Composition().Formula(),
		PerfectFormula:   perfect.Composition().Formula(),
		RemovedIndices:   cmp.RemovedIndices(),
		InsertedIndices:  cmp.InsertedIndices(),
		AtomMapping:      cmp.AtomMapping(),
		AmbiguousMatches: cmp.AmbiguousCount(),
		SiteDiff:         diff,
		Summary:          diff.Summary(),
	}
	if report.HasDefect() {
		center, err := cmp.DefectCenterCoord()
		if err != nil {
			return nil, err
		}
		report.DefectCenter = []float64{center.X, center.Y, center.Z}
		report.NeighboringAtoms = cmp.NeighboringAtomIndices(0)
	}

	s.metrics.RecordComparison(len(report.RemovedIndices), len(report.InsertedIndices), report.AmbiguousMatches, nil)
	if report.AmbiguousMatches > 0 {
		log.Warn("ambiguous site matches treated as unmatched", logging.Int("ambiguous", report.AmbiguousMatches))
	}
	logging.LogOperationDuration(log, "compare", start,
		logging.Ints("removed", report.RemovedIndices),
		logging.Ints("inserted", report.InsertedIndices),
		logging.Int("vacancies", report.Summary.Vacancies),
		logging.Int("interstitials", report.Summary.Interstitials),
		logging.Int("substitutions", report.Summary.Substitutions),
	)
	return report, nil
}

func (s *serviceImpl) BuildChemPotDiag(ctx context.Context, energies chempot.CompositionEnergies, elements []string, target string) (*CPDReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCanceled, "diagram build canceled")
	}
	start := time.Now()
	id, log := s.begin(ctx)

	report, err := s.buildChemPotDiag(id, energies, elements, target)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCPDBuild(target, 0, duration, err)
		log.WithError(err).Error("chemical potential diagram build failed", logging.String("target", target))
		return nil, err
	}

	vertices := 0
	if report.TargetVertices != nil {
		vertices = len(report.TargetVertices.Vertices)
	}
	s.metrics.RecordCPDBuild(report.Target, vertices, duration, nil)
	logging.LogOperationDuration(log, "cpd", start,
		logging.Strings("elements", report.Elements),
		logging.String("target", report.Target),
		logging.Int("target_vertices", vertices),
		logging.Int("polygons", len(report.Diagram.Polygons)),
	)
	return report, nil
}

func (s *serviceImpl) buildChemPotDiag(id string, energies chempot.CompositionEnergies, elements []string, target string) (*CPDReport, error) {
	if len(energies) == 0 {
		return nil, errors.InvalidParam("composition energies are empty")
	}
	if len(elements) == 0 {
		var err error
		if elements, err = energies.Elements(); err != nil {
			return nil, err
		}
	}
	std, rel, err := energies.StdRelEnergies()
	if err != nil {
		return nil, err
	}
	maker, err := chempot.NewChemPotDiagMaker(rel, elements, target, s.opts.CPD)
	if err != nil {
		return nil, err
	}
	cpd, tv, err := maker.Build()
	if err != nil {
		return nil, err
	}
	return &CPDReport{
		ID:             id,
		Elements:       append([]string(nil), elements...),
		Target:         maker.Target(),
		Standard:       std,
		Relative:       rel,
		Diagram:        cpd,
		TargetVertices: tv,
	}, nil
}

func (s *serviceImpl) BuildChemPotDiagFromStore(ctx context.Context, elements []string, target string) (*CPDReport, error) {
	energies, err := s.ListEnergies(ctx)
	if err != nil {
		return nil, err
	}
	return s.BuildChemPotDiag(ctx, energies, elements, target)
}

func (s *serviceImpl) AssembleDefectEnergy(ctx context.Context, req DefectEnergyRequest) (*defect.DefectEnergyInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCanceled, "energy assembly canceled")
	}
	start := time.Now()
	_, log := s.begin(ctx)

	info, err := defect.MakeDefectEnergyInfo(req.Entry, req.Defect, req.Correction, req.Perfect, req.Standard, req.BandEdges)
	s.metrics.RecordEnergyAssembly(err)
	if err != nil {
		log.WithError(err).Error("defect energy assembly failed", logging.String("defect", req.Entry.FullName()))
		return nil, err
	}
	logging.LogOperationDuration(log, "energy", start,
		logging.String("defect", req.Entry.FullName()),
		logging.Float64("formation_energy", info.FormationEnergy()),
	)
	return info, nil
}

func (s *serviceImpl) ClassifyBandEdges(ctx context.Context, targets []defect.EdgeCharacter, ref defect.PerfectEdgeCharacter) (*defect.BandEdgeStates, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCanceled, "band edge classification canceled")
	}
	if len(targets) == 0 {
		return nil, errors.InvalidParam("at least one spin channel is required")
	}
	start := time.Now()
	_, log := s.begin(ctx)

	states := &defect.BandEdgeStates{States: make([]defect.EdgeState, len(targets))}
	names := make([]string, len(targets))
	for i, t := range targets {
		states.States[i] = defect.MakeBandEdgeState(t, ref, s.opts.BandEdge)
		names[i] = string(states.States[i])
		s.metrics.RecordBandEdgeState(names[i])
	}
	logging.LogOperationDuration(log, "band_edge", start,
		logging.Strings("states", names),
		logging.Bool("shallow", states.IsShallow()),
	)
	return states, nil
}

func (s *serviceImpl) ImportEnergies(ctx context.Context, energies chempot.CompositionEnergies) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.CodeCanceled, "import canceled")
	}
	if s.repo == nil {
		return errors.New(errors.CodeStoreUnavailable, "no composition store configured")
	}
	err := s.repo.SaveAll(ctx, energies)
	s.metrics.RecordStoreOperation("save_all", err)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("composition energy import failed")
		return err
	}
	s.logger.WithContext(ctx).Info("composition energies imported", logging.Int("count", len(energies)))
	return nil
}

func (s *serviceImpl) ListEnergies(ctx context.Context) (chempot.CompositionEnergies, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCanceled, "listing canceled")
	}
	if s.repo == nil {
		return nil, errors.New(errors.CodeStoreUnavailable, "no composition store configured")
	}
	energies, err := s.repo.FindAll(ctx)
	s.metrics.RecordStoreOperation("find_all", err)
	if err != nil {
		return nil, err
	}
	return energies, nil
}
