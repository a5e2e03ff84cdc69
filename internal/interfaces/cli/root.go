// Package cli implements the defectkit command tree.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/defectkit/internal/application/analysis"
	"github.com/turtacn/defectkit/internal/config"
	"github.com/turtacn/defectkit/internal/domain/chempot"
	"github.com/turtacn/defectkit/internal/domain/defect"
	"github.com/turtacn/defectkit/internal/infrastructure/database/sqlite"
	"github.com/turtacn/defectkit/internal/infrastructure/database/sqlite/repositories"
	"github.com/turtacn/defectkit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/defectkit/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/defectkit/internal/infrastructure/storage/yamlfile"
	"github.com/turtacn/defectkit/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Output formats accepted by --output.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath      string
	LogLevel        string
	OutputFormat    string
	MetricsTextfile string
	StorePath       string
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Config          *config.Config
	Logger          logging.Logger
	Metrics         *prometheus.AnalysisMetrics
	OutputFormat    string
	MetricsTextfile string

	collector prometheus.MetricsCollector
	conn      *sqlite.Connection
}

// NewRootCommand creates the root cobra command with all global flags and subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "defectkit",
		Short: "defectkit compares defect supercells and builds chemical potential diagrams",
		Long: "defectkit classifies point defects by comparing a defective supercell with\n" +
			"its perfect host, derives standard and relative energies from a composition\n" +
			"energy store, builds chemical potential diagrams with target vertices, and\n" +
			"assembles defect formation energies and band-edge states.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./defectkit.yaml if present)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config")
	pf.StringVarP(&opts.OutputFormat, "output", "o", OutputText, "output format (text, json, yaml)")
	pf.StringVar(&opts.MetricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file after the run")
	pf.StringVar(&opts.StorePath, "store", "", "SQLite composition store path; overrides the config")

	cmd.AddCommand(
		NewCompareCmd(),
		NewCPDCmd(),
		NewEnergiesCmd(),
		NewEnergyCmd(),
		NewBandEdgeCmd(),
		NewVersionCmd(),
	)
	return cmd
}

// persistentPreRun initializes config, logger, and metrics, then stores CLIContext.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	switch opts.OutputFormat {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return errors.InvalidParam("unsupported output format").WithDetail("output=" + opts.OutputFormat)
	}

	cfg, err := initConfig(opts)
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LoggingConfig())
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}
	logging.SetDefault(logger)

	metrics, collector, err := prometheus.NewDefaultAnalysisMetrics(cfg.Metrics.Namespace)
	if err != nil {
		return fmt.Errorf("metrics initialization failed: %w", err)
	}

	textfile := opts.MetricsTextfile
	if textfile == "" {
		textfile = cfg.Metrics.TextfilePath
	}

	cliCtx := &CLIContext{
		Config:          cfg,
		Logger:          logger,
		Metrics:         metrics,
		OutputFormat:    opts.OutputFormat,
		MetricsTextfile: textfile,
		collector:       collector,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads configuration with priority: flags > env > file > defaults.
func initConfig(opts *RootOptions) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = findConfigFile()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if opts.LogLevel != "" {
		if _, err := logging.ParseLevel(opts.LogLevel); err != nil {
			return nil, err
		}
		cfg.Log.Level = opts.LogLevel
	}
	if opts.StorePath != "" {
		cfg.Store.Path = opts.StorePath
	}
	return cfg, nil
}

// findConfigFile returns the first existing file of the default search
// paths, or an empty string.
func findConfigFile() string {
	searchPaths := []string{"./defectkit.yaml"}
	if homeDir, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(homeDir, ".defectkit", "config.yaml"))
	}
	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// GetCLIContext extracts CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.Internal("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.Internal("CLIContext not found in command context")
	}
	return cliCtx, nil
}

// Service builds the analysis service. The SQLite store is opened only when
// withStore is set and stays open until Finish.
func (c *CLIContext) Service(ctx context.Context, withStore bool, opts analysis.ServiceOptions) (analysis.Service, error) {
	if !withStore {
		return analysis.NewService(opts, nil, c.Metrics, c.Logger), nil
	}
	if c.conn == nil {
		conn, err := sqlite.Open(ctx, sqlite.Config{Path: c.Config.Store.Path, BusyTimeout: c.Config.Store.BusyTimeout}, c.Logger.Named("store"))
		if err != nil {
			return nil, err
		}
		c.conn = conn
	}
	repo := repositories.NewCompositionEnergyRepo(c.conn, c.Logger.Named("store"))
	return analysis.NewService(opts, repo, c.Metrics, c.Logger), nil
}

// ServiceOptions returns the service options from the loaded config.
func (c *CLIContext) ServiceOptions() analysis.ServiceOptions {
	return analysis.ServiceOptions{
		Comparator: c.Config.AnalysisOptions(),
		CPD:        c.Config.CPDOptions(),
		BandEdge:   c.Config.BandEdgeCriteria(),
	}
}

// Finish writes the metrics textfile, closes the store and flushes the logger.
func (c *CLIContext) Finish() error {
	var first error
	if c.MetricsTextfile != "" {
		if err := c.collector.WriteTextfile(c.MetricsTextfile); err != nil {
			first = err
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && first == nil {
			first = err
		}
		c.conn = nil
	}
	_ = c.Logger.Sync()
	return first
}

// runWithContext resolves the CLIContext, runs fn and always finishes the
// context afterwards.
func runWithContext(cmd *cobra.Command, fn func(*CLIContext) error) (err error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if ferr := cliCtx.Finish(); ferr != nil && err == nil {
			err = ferr
		}
	}()
	return fn(cliCtx)
}

// Execute is the main entry point for the CLI application.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// PrintResult outputs data in the format specified by CLIContext.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := OutputJSON
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = cliCtx.OutputFormat
	}

	switch strings.ToLower(format) {
	case OutputJSON:
		return printJSON(cmd, data)
	case OutputYAML:
		return printYAML(cmd, data)
	default:
		return printText(cmd, data)
	}
}

// printJSON outputs data as indented JSON to stdout.
func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printYAML(cmd *cobra.Command, data interface{}) error {
	out, err := yamlfile.Marshal(data)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

// printText renders the known result types as tables and falls back to
// fmt for the rest.
func printText(cmd *cobra.Command, data interface{}) error {
	w := cmd.OutOrStdout()
	switch v := data.(type) {
	case *analysis.ComparisonReport:
		return renderComparison(w, v)
	case *analysis.CPDReport:
		return renderCPD(w, v)
	case chempot.CompositionEnergies:
		return renderEnergies(w, v)
	case *stdRelResult:
		return renderStdRel(w, v)
	case *defect.DefectEnergyInfo:
		return renderDefectEnergy(w, v)
	case *defect.BandEdgeStates:
		return renderBandEdges(w, v)
	case BuildInfo:
		return renderBuildInfo(w, v)
	case string:
		fmt.Fprintln(cmd.OutOrStdout(), v)
	case fmt.Stringer:
		fmt.Fprintln(cmd.OutOrStdout(), v.String())
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%+v\n", v)
	}
	return nil
}

// PrintError writes a formatted error message to stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
}

// PrintSuccess writes a formatted success message to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintf(cmd.OutOrStdout(), "OK: %s\n", msg)
}

// FormatTable renders headers and rows as an aligned ASCII table.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}

	colWidths := make([]int, len(headers))
	for i, h := range headers {
		colWidths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(colWidths); i++ {
			if len(row[i]) > colWidths[i] {
				colWidths[i] = len(row[i])
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i := range headers {
			if i > 0 {
				sb.WriteString("  ")
			}
			val := ""
			if i < len(cells) {
				val = cells[i]
			}
			if i == len(headers)-1 {
				sb.WriteString(val)
			} else {
				sb.WriteString(padRight(val, colWidths[i]))
			}
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	sep := make([]string, len(colWidths))
	for i, w := range colWidths {
		sep[i] = strings.Repeat("-", w)
	}
	writeRow(sep)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

// padRight pads s with spaces to the given width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
