package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/defectkit/internal/application/analysis"
	"github.com/turtacn/defectkit/internal/infrastructure/storage/yamlfile"
	"github.com/turtacn/defectkit/pkg/errors"
)

// NewCPDCmd returns the command building a chemical potential diagram.
func NewCPDCmd() *cobra.Command {
	var (
		energiesPath string
		fromStore    bool
		elements     []string
		target       string
		saveDiagram  string
		saveVertices string
	)

	cmd := &cobra.Command{
		Use:   "cpd",
		Short: "Build a chemical potential diagram",
		Long: "Derive standard and relative energies from composition energies, read from a\n" +
			"YAML file or from the composition store, and build the chemical potential\n" +
			"diagram. With --target the vertices of the target's stability region are\n" +
			"labelled and reported with their competing and impurity phases.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if energiesPath == "" && !fromStore {
				return errors.InvalidParam("one of --energies or --from-store is required")
			}
			return runWithContext(cmd, func(cliCtx *CLIContext) error {
				ctx := cmd.Context()
				svc, err := cliCtx.Service(ctx, fromStore, cliCtx.ServiceOptions())
				if err != nil {
					return err
				}

				var report *analysis.CPDReport
				if fromStore {
					report, err = svc.BuildChemPotDiagFromStore(ctx, elements, target)
				} else {
					energies, lerr := yamlfile.LoadCompositionEnergies(energiesPath)
					if lerr != nil {
						return lerr
					}
					report, err = svc.BuildChemPotDiag(ctx, energies, elements, target)
				}
				if err != nil {
					return err
				}

				if saveDiagram != "" {
					if err := yamlfile.SaveChemPotDiag(saveDiagram, report.Diagram); err != nil {
						return err
					}
				}
				if saveVertices != "" {
					if report.TargetVertices == nil {
						return errors.InvalidParam("--save-vertices requires --target")
					}
					if err := yamlfile.SaveTargetVertices(saveVertices, report.TargetVertices); err != nil {
						return err
					}
				}
				return PrintResult(cmd, report)
			})
		},
	}

	cmd.Flags().StringVar(&energiesPath, "energies", "", "composition energies YAML")
	cmd.Flags().BoolVar(&fromStore, "from-store", false, "read composition energies from the SQLite store")
	cmd.Flags().StringSliceVar(&elements, "elements", nil, "vertex elements, e.g. Mg,O (default: every element of the energies)")
	cmd.Flags().StringVar(&target, "target", "", "target compound, e.g. MgO")
	cmd.Flags().StringVar(&saveDiagram, "save-diagram", "", "write the diagram to this YAML file")
	cmd.Flags().StringVar(&saveVertices, "save-vertices", "", "write the target vertices to this YAML file")
	cmd.MarkFlagsMutuallyExclusive("energies", "from-store")

	return cmd
}

// renderCPD writes the target vertices, or the polygon list when no target
// was given.
func renderCPD(w io.Writer, r *analysis.CPDReport) error {
	fmt.Fprintf(w, "elements: %s\n", strings.Join(r.Elements, ", "))
	if r.TargetVertices == nil {
		formulas := make([]string, 0, len(r.Diagram.Polygons))
		for f := range r.Diagram.Polygons {
			formulas = append(formulas, f)
		}
		sort.Strings(formulas)
		rows := make([][]string, len(formulas))
		for i, f := range formulas {
			rows[i] = []string{f, strconv.Itoa(len(r.Diagram.Polygons[f]))}
		}
		_, err := io.WriteString(w, FormatTable([]string{"FORMULA", "VERTICES"}, rows))
		return err
	}

	fmt.Fprintf(w, "target: %s\n\n", r.Target)
	labels := r.TargetVertices.Labels()
	var els []string
	if len(labels) > 0 {
		for el := range r.TargetVertices.Vertices[labels[0]].ChemPot {
			els = append(els, el)
		}
		sort.Strings(els)
	}

	headers := []string{"LABEL"}
	for _, el := range els {
		headers = append(headers, "mu_"+el)
	}
	headers = append(headers, "COMPETING", "IMPURITY")

	rows := make([][]string, len(labels))
	for i, label := range labels {
		v := r.TargetVertices.Vertices[label]
		row := []string{label}
		for _, el := range els {
			row = append(row, strconv.FormatFloat(v.ChemPot[el], 'f', 4, 64))
		}
		row = append(row, strings.Join(v.CompetingPhases, ","), strings.Join(v.ImpurityPhases, ","))
		rows[i] = row
	}
	_, err := io.WriteString(w, FormatTable(headers, rows))
	return err
}
