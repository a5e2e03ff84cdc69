package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/turtacn/defectkit/internal/domain/chempot"
	"github.com/turtacn/defectkit/internal/domain/crystal"
	"github.com/turtacn/defectkit/internal/domain/defect"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
	DefaultLogOutput = "stderr"

	DefaultMetricsNamespace = "defectkit"

	DefaultStorePath        = "defectkit.db"
	DefaultStoreBusyTimeout = 5 * time.Second
)

// ApplyDefaults fills every zero-value field in cfg with the library default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Analysis ──────────────────────────────────────────────────────────────
	if cfg.Analysis.DistTol == 0 {
		cfg.Analysis.DistTol = crystal.DefaultDistTol
	}
	if cfg.Analysis.CutoffFactor == 0 {
		cfg.Analysis.CutoffFactor = crystal.DefaultCutoffDistanceFactor
	}

	// ── ChemPot ───────────────────────────────────────────────────────────────
	cpd := chempot.DefaultCPDOptions()
	if cfg.ChemPot.FloorValue == 0 {
		cfg.ChemPot.FloorValue = cpd.FloorValue
	}
	if cfg.ChemPot.FloorScale == 0 {
		cfg.ChemPot.FloorScale = cpd.FloorScale
	}
	if cfg.ChemPot.RoundDigits == 0 {
		cfg.ChemPot.RoundDigits = cpd.RoundDigits
	}
	if cfg.ChemPot.FaceTolerance == 0 {
		cfg.ChemPot.FaceTolerance = cpd.FaceTolerance
	}

	// ── BandEdge ──────────────────────────────────────────────────────────────
	be := defect.DefaultBandEdgeCriteria()
	if cfg.BandEdge.LocalizedRatio == 0 {
		cfg.BandEdge.LocalizedRatio = be.LocalizedRatio
	}
	if cfg.BandEdge.SimilarEnergyCriterion == 0 {
		cfg.BandEdge.SimilarEnergyCriterion = be.SimilarEnergyCriterion
	}
	if cfg.BandEdge.SimilarOrbCriterion == 0 {
		cfg.BandEdge.SimilarOrbCriterion = be.SimilarOrbCriterion
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = DefaultLogOutput
	}

	// ── Metrics ───────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	// ── Store ─────────────────────────────────────────────────────────────────
	if cfg.Store.Path == "" {
		cfg.Store.Path = DefaultStorePath
	}
	if cfg.Store.BusyTimeout == 0 {
		cfg.Store.BusyTimeout = DefaultStoreBusyTimeout
	}
}

// NewDefaultConfig returns a Config populated entirely with defaults.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// registerDefaults seeds v with every key so that DEFECTKIT_* variables are
// picked up by Unmarshal even when no config file mentions the key.
func registerDefaults(v *viper.Viper) {
	d := NewDefaultConfig()
	v.SetDefault("analysis.dist_tol", d.Analysis.DistTol)
	v.SetDefault("analysis.cutoff_factor", d.Analysis.CutoffFactor)
	v.SetDefault("chempot.floor_value", d.ChemPot.FloorValue)
	v.SetDefault("chempot.floor_scale", d.ChemPot.FloorScale)
	v.SetDefault("chempot.round_digits", d.ChemPot.RoundDigits)
	v.SetDefault("chempot.face_tolerance", d.ChemPot.FaceTolerance)
	v.SetDefault("band_edge.localized_ratio", d.BandEdge.LocalizedRatio)
	v.SetDefault("band_edge.similar_energy_criterion", d.BandEdge.SimilarEnergyCriterion)
	v.SetDefault("band_edge.similar_orb_criterion", d.BandEdge.SimilarOrbCriterion)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.output", d.Log.Output)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
	v.SetDefault("metrics.textfile_path", d.Metrics.TextfilePath)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.busy_timeout", d.Store.BusyTimeout)
}
