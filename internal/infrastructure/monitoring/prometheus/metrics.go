package prometheus

import (
	"time"

	apperrors "github.com/turtacn/defectkit/pkg/errors"
)

// Comparison outcomes.
const (
	OutcomeNoDiff = "no_diff"
	OutcomeDefect = "defect"
	OutcomeError  = "error"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// AnalysisMetrics holds all defectkit metrics.
type AnalysisMetrics struct {
	// Structure comparison
	ComparisonsTotal      CounterVec
	DefectSites           HistogramVec
	AmbiguousMatchesTotal CounterVec

	// Chemical potential diagram
	CPDBuildsTotal   CounterVec
	CPDBuildDuration HistogramVec
	CPDVertices      GaugeVec

	// Defect energies and band edges
	EnergyAssembliesTotal CounterVec
	BandEdgeStatesTotal   CounterVec

	// Composition store
	StoreOperationsTotal CounterVec
}

// Default Buckets
var (
	DefaultSiteCountBuckets   = []float64{0, 1, 2, 3, 5, 8, 13, 21}
	DefaultCPDDurationBuckets = []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5}
	defaultAnalysisSubsystem  = "analysis"
)

// NewAnalysisMetrics registers all metrics and returns the AnalysisMetrics struct.
func NewAnalysisMetrics(collector MetricsCollector) *AnalysisMetrics {
	m := &AnalysisMetrics{}

	m.ComparisonsTotal = collector.RegisterCounter("comparisons_total", "Structure comparisons by outcome.", "outcome")
	m.DefectSites = collector.RegisterHistogram("defect_sites", "Removed and inserted sites per comparison.", DefaultSiteCountBuckets, "kind")
	m.AmbiguousMatchesTotal = collector.RegisterCounter("ambiguous_matches_total", "Site lookups with more than one candidate.")

	m.CPDBuildsTotal = collector.RegisterCounter("cpd_builds_total", "Chemical potential diagram builds by status.", "status")
	m.CPDBuildDuration = collector.RegisterHistogram("cpd_build_duration_seconds", "Chemical potential diagram build duration.", DefaultCPDDurationBuckets)
	m.CPDVertices = collector.RegisterGauge("cpd_target_vertices", "Vertices of the target polygon in the last build.", "target")

	m.EnergyAssembliesTotal = collector.RegisterCounter("energy_assemblies_total", "Defect energy assemblies by status.", "status")
	m.BandEdgeStatesTotal = collector.RegisterCounter("band_edge_states_total", "Classified band-edge states.", "state")

	m.StoreOperationsTotal = collector.RegisterCounter("store_operations_total", "Composition store operations.", "operation", "status")

	return m
}

// NewDefaultAnalysisMetrics builds a collector for namespace and registers
// the analysis metrics in it.
func NewDefaultAnalysisMetrics(namespace string) (*AnalysisMetrics, MetricsCollector, error) {
	c, err := NewMetricsCollector(CollectorConfig{Namespace: namespace, Subsystem: defaultAnalysisSubsystem}, nil)
	if err != nil {
		return nil, nil, err
	}
	return NewAnalysisMetrics(c), c, nil
}

// Helpers

func status(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}

// RecordComparison records one structure comparison.
func (m *AnalysisMetrics) RecordComparison(removed, inserted, ambiguous int, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.ComparisonsTotal.WithLabelValues(OutcomeError).Inc()
		return
	case removed == 0 && inserted == 0:
		m.ComparisonsTotal.WithLabelValues(OutcomeNoDiff).Inc()
	default:
		m.ComparisonsTotal.WithLabelValues(OutcomeDefect).Inc()
	}
	m.DefectSites.WithLabelValues("removed").Observe(float64(removed))
	m.DefectSites.WithLabelValues("inserted").Observe(float64(inserted))
	if ambiguous > 0 {
		m.AmbiguousMatchesTotal.WithLabelValues().Add(float64(ambiguous))
	}
}

// RecordCPDBuild records one diagram build. target may be empty.
func (m *AnalysisMetrics) RecordCPDBuild(target string, vertices int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.CPDBuildsTotal.WithLabelValues(status(err)).Inc()
	m.CPDBuildDuration.WithLabelValues().Observe(duration.Seconds())
	if err == nil && target != "" {
		m.CPDVertices.WithLabelValues(target).Set(float64(vertices))
	}
}

// RecordEnergyAssembly records one defect energy assembly.
func (m *AnalysisMetrics) RecordEnergyAssembly(err error) {
	if m == nil {
		return
	}
	m.EnergyAssembliesTotal.WithLabelValues(status(err)).Inc()
}

// RecordBandEdgeState records one classified state.
func (m *AnalysisMetrics) RecordBandEdgeState(state string) {
	if m == nil {
		return
	}
	m.BandEdgeStatesTotal.WithLabelValues(state).Inc()
}

// RecordStoreOperation records a repository call. Not-found lookups count
// as successes.
func (m *AnalysisMetrics) RecordStoreOperation(operation string, err error) {
	if m == nil {
		return
	}
	if apperrors.IsNotFound(err) {
		err = nil
	}
	m.StoreOperationsTotal.WithLabelValues(operation, status(err)).Inc()
}
