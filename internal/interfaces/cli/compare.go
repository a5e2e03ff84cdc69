package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/defectkit/internal/application/analysis"
	"github.com/turtacn/defectkit/internal/domain/defect"
	"github.com/turtacn/defectkit/internal/infrastructure/storage/yamlfile"
)

// NewCompareCmd returns the command comparing a defective supercell with the
// perfect one.
func NewCompareCmd() *cobra.Command {
	var (
		defectPath   string
		perfectPath  string
		distTol      float64
		cutoffFactor float64
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare a defect supercell with the perfect supercell",
		Long: "Match the atoms of a defective supercell to the perfect supercell and report\n" +
			"vacancies, interstitials and substitutions together with the defect center\n" +
			"and its neighboring atoms.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithContext(cmd, func(cliCtx *CLIContext) error {
				opts := cliCtx.ServiceOptions()
				if cmd.Flags().Changed("dist-tol") {
					opts.Comparator.DistTol = distTol
				}
				if cmd.Flags().Changed("cutoff-factor") {
					opts.Comparator.CutoffFactor = cutoffFactor
				}

				defectStr, err := yamlfile.LoadStructure(defectPath)
				if err != nil {
					return err
				}
				perfect, err := yamlfile.LoadStructure(perfectPath)
				if err != nil {
					return err
				}

				svc, err := cliCtx.Service(cmd.Context(), false, opts)
				if err != nil {
					return err
				}
				report, err := svc.CompareStructures(cmd.Context(), defectStr, perfect)
				if err != nil {
					return err
				}
				return PrintResult(cmd, report)
			})
		},
	}

	cmd.Flags().StringVar(&defectPath, "defect", "", "defect supercell YAML [REQUIRED]")
	cmd.Flags().StringVar(&perfectPath, "perfect", "", "perfect supercell YAML [REQUIRED]")
	cmd.Flags().Float64Var(&distTol, "dist-tol", 0, "site matching tolerance in Å (default from config)")
	cmd.Flags().Float64Var(&cutoffFactor, "cutoff-factor", 0, "neighbor cutoff factor (default from config)")
	_ = cmd.MarkFlagRequired("defect")
	_ = cmd.MarkFlagRequired("perfect")

	return cmd
}

// renderComparison writes a summary of r followed by a site table.
func renderComparison(w io.Writer, r *analysis.ComparisonReport) error {
	fmt.Fprintf(w, "defect:  %s\nperfect: %s\n", r.DefectFormula, r.PerfectFormula)
	fmt.Fprintf(w, "vacancies=%d interstitials=%d substitutions=%d mapped=%d\n",
		r.Summary.Vacancies, r.Summary.Interstitials, r.Summary.Substitutions, r.Summary.Mapped)
	if !r.HasDefect() {
		fmt.Fprintln(w, "no defect sites")
		return nil
	}
	if r.AmbiguousMatches > 0 {
		fmt.Fprintf(w, "ambiguous matches: %d\n", r.AmbiguousMatches)
	}
	fmt.Fprintf(w, "center: %s\nneighbors: %s\n\n", formatFloats(r.DefectCenter), formatInts(r.NeighboringAtoms))
	_, err := io.WriteString(w, FormatTable([]string{"KIND", "INDEX", "SPECIES", "FRAC_COORDS"}, siteRows(r.SiteDiff)))
	return err
}

func siteRows(d *defect.SiteDiff) [][]string {
	var rows [][]string
	add := func(kind string, sites map[int]defect.SiteInfo) {
		idx := make([]int, 0, len(sites))
		for i := range sites {
			idx = append(idx, i)
		}
		sort.Ints(idx)
		for _, i := range idx {
			s := sites[i]
			rows = append(rows, []string{kind, strconv.Itoa(i), s.Species,
				formatFloats([]float64{s.FracCoords.X, s.FracCoords.Y, s.FracCoords.Z})})
		}
	}
	add("vacancy", d.Removed)
	add("interstitial", d.Inserted)
	for _, k := range d.SubstitutionKeys() {
		removed, inserted := d.RemovedBySub[k[0]], d.InsertedBySub[k[1]]
		rows = append(rows, []string{"substitution", fmt.Sprintf("%d->%d", k[0], k[1]),
			removed.Species + "->" + inserted.Species,
			formatFloats([]float64{inserted.FracCoords.X, inserted.FracCoords.Y, inserted.FracCoords.Z})})
	}
	return rows
}

func formatFloats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.FormatFloat(x, 'f', 4, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
