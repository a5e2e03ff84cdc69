// Package config defines all configuration structures for defectkit. No
// parsing logic lives here, only plain data types, validation and the
// conversions into domain option structs.
package config

import (
	"fmt"
	"time"

	"github.com/turtacn/defectkit/internal/domain/chempot"
	"github.com/turtacn/defectkit/internal/domain/defect"
	"github.com/turtacn/defectkit/internal/infrastructure/monitoring/logging"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// AnalysisConfig holds structure-comparison tunables.
type AnalysisConfig struct {
	DistTol      float64 `mapstructure:"dist_tol" yaml:"dist_tol"`
	CutoffFactor float64 `mapstructure:"cutoff_factor" yaml:"cutoff_factor"`
}

// ChemPotConfig holds chemical-potential-diagram tunables.
type ChemPotConfig struct {
	FloorValue    float64 `mapstructure:"floor_value" yaml:"floor_value"`
	FloorScale    float64 `mapstructure:"floor_scale" yaml:"floor_scale"`
	RoundDigits   int     `mapstructure:"round_digits" yaml:"round_digits"`
	FaceTolerance float64 `mapstructure:"face_tolerance" yaml:"face_tolerance"`
}

// BandEdgeConfig holds band-edge classification thresholds.
type BandEdgeConfig struct {
	LocalizedRatio         float64 `mapstructure:"localized_ratio" yaml:"localized_ratio"`
	SimilarEnergyCriterion float64 `mapstructure:"similar_energy_criterion" yaml:"similar_energy_criterion"`
	SimilarOrbCriterion    float64 `mapstructure:"similar_orb_criterion" yaml:"similar_orb_criterion"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format" yaml:"format"` // "json" | "console"
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig holds Prometheus export parameters.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	// TextfilePath, when set, receives a node-exporter textfile after each run.
	TextfilePath string `mapstructure:"textfile_path" yaml:"textfile_path"`
}

// StoreConfig holds SQLite composition-store parameters.
type StoreConfig struct {
	Path        string        `mapstructure:"path" yaml:"path"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout" yaml:"busy_timeout"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	ChemPot  ChemPotConfig  `mapstructure:"chempot" yaml:"chempot"`
	BandEdge BandEdgeConfig `mapstructure:"band_edge" yaml:"band_edge"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered.
func (c *Config) Validate() error {
	// Analysis
	if c.Analysis.DistTol <= 0 {
		return fmt.Errorf("config: analysis.dist_tol must be > 0, got %g", c.Analysis.DistTol)
	}
	if c.Analysis.CutoffFactor < 1 {
		return fmt.Errorf("config: analysis.cutoff_factor must be ≥ 1, got %g", c.Analysis.CutoffFactor)
	}

	// ChemPot
	if c.ChemPot.FloorValue >= 0 {
		return fmt.Errorf("config: chempot.floor_value must be < 0, got %g", c.ChemPot.FloorValue)
	}
	if c.ChemPot.FloorScale <= 1 {
		return fmt.Errorf("config: chempot.floor_scale must be > 1, got %g", c.ChemPot.FloorScale)
	}
	if c.ChemPot.RoundDigits < 1 || c.ChemPot.RoundDigits > 12 {
		return fmt.Errorf("config: chempot.round_digits %d is out of range [1, 12]", c.ChemPot.RoundDigits)
	}
	if c.ChemPot.FaceTolerance <= 0 {
		return fmt.Errorf("config: chempot.face_tolerance must be > 0, got %g", c.ChemPot.FaceTolerance)
	}

	// BandEdge
	if c.BandEdge.LocalizedRatio <= 0 || c.BandEdge.LocalizedRatio >= 1 {
		return fmt.Errorf("config: band_edge.localized_ratio must be in (0, 1), got %g", c.BandEdge.LocalizedRatio)
	}
	if c.BandEdge.SimilarEnergyCriterion <= 0 {
		return fmt.Errorf("config: band_edge.similar_energy_criterion must be > 0, got %g", c.BandEdge.SimilarEnergyCriterion)
	}
	if c.BandEdge.SimilarOrbCriterion <= 0 {
		return fmt.Errorf("config: band_edge.similar_orb_criterion must be > 0, got %g", c.BandEdge.SimilarOrbCriterion)
	}

	// Log
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}
	if c.Log.Output == "" {
		return fmt.Errorf("config: log.output is required")
	}

	// Metrics
	if c.Metrics.Namespace == "" {
		return fmt.Errorf("config: metrics.namespace is required")
	}

	// Store
	if c.Store.BusyTimeout < 0 {
		return fmt.Errorf("config: store.busy_timeout must be ≥ 0, got %s", c.Store.BusyTimeout)
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Conversions into domain options
// ─────────────────────────────────────────────────────────────────────────────

// AnalysisOptions returns the structure-comparator options.
func (c *Config) AnalysisOptions() defect.Options {
	return defect.Options{DistTol: c.Analysis.DistTol, CutoffFactor: c.Analysis.CutoffFactor}
}

// CPDOptions returns the chemical-potential-diagram options.
func (c *Config) CPDOptions() chempot.CPDOptions {
	return chempot.CPDOptions{
		FloorValue:    c.ChemPot.FloorValue,
		FloorScale:    c.ChemPot.FloorScale,
		RoundDigits:   c.ChemPot.RoundDigits,
		FaceTolerance: c.ChemPot.FaceTolerance,
	}
}

// BandEdgeCriteria returns the band-edge classification thresholds.
func (c *Config) BandEdgeCriteria() defect.BandEdgeCriteria {
	return defect.BandEdgeCriteria{
		LocalizedRatio:         c.BandEdge.LocalizedRatio,
		SimilarEnergyCriterion: c.BandEdge.SimilarEnergyCriterion,
		SimilarOrbCriterion:    c.BandEdge.SimilarOrbCriterion,
	}
}

// LoggingConfig returns the logger construction parameters.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:       c.Log.Level,
		Format:      c.Log.Format,
		OutputPaths: []string{c.Log.Output},
	}
}
