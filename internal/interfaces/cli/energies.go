package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/defectkit/internal/domain/chempot"
	"github.com/turtacn/defectkit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/defectkit/internal/infrastructure/storage/yamlfile"
)

// NewEnergiesCmd returns the composition energy command group.
func NewEnergiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "energies",
		Short: "Manage composition energies",
		Long:  "Import composition energies into the SQLite store, list them, and derive standard and relative energies.",
	}

	cmd.AddCommand(newEnergiesImportCmd())
	cmd.AddCommand(newEnergiesListCmd())
	cmd.AddCommand(newEnergiesStdRelCmd())

	return cmd
}

func newEnergiesImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <energies.yaml>",
		Short: "Import composition energies into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithContext(cmd, func(cliCtx *CLIContext) error {
				energies, err := yamlfile.LoadCompositionEnergies(args[0])
				if err != nil {
					return err
				}
				svc, err := cliCtx.Service(cmd.Context(), true, cliCtx.ServiceOptions())
				if err != nil {
					return err
				}
				if err := svc.ImportEnergies(cmd.Context(), energies); err != nil {
					return err
				}
				PrintSuccess(cmd, fmt.Sprintf("imported %d compositions into %s", len(energies), cliCtx.Config.Store.Path))
				return nil
			})
		},
	}
}

func newEnergiesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the composition energies in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithContext(cmd, func(cliCtx *CLIContext) error {
				svc, err := cliCtx.Service(cmd.Context(), true, cliCtx.ServiceOptions())
				if err != nil {
					return err
				}
				energies, err := svc.ListEnergies(cmd.Context())
				if err != nil {
					return err
				}
				return PrintResult(cmd, energies)
			})
		},
	}
}

// stdRelResult is the output of energies std-rel.
type stdRelResult struct {
	Standard chempot.StandardEnergies `json:"standard_energies" yaml:"standard_energies"`
	Relative chempot.RelativeEnergies `json:"relative_energies" yaml:"relative_energies"`
}

func newEnergiesStdRelCmd() *cobra.Command {
	var (
		energiesPath string
		saveStd      string
		saveRel      string
	)

	cmd := &cobra.Command{
		Use:   "std-rel",
		Short: "Derive standard and relative energies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithContext(cmd, func(cliCtx *CLIContext) error {
				energies, err := yamlfile.LoadCompositionEnergies(energiesPath)
				if err != nil {
					return err
				}
				std, rel, err := energies.StdRelEnergies()
				if err != nil {
					return err
				}
				cliCtx.Logger.Debug("derived standard and relative energies",
					logging.Int("elements", len(std)), logging.Int("compounds", len(rel)))

				if saveStd != "" {
					if err := yamlfile.SaveStandardEnergies(saveStd, std); err != nil {
						return err
					}
				}
				if saveRel != "" {
					if err := yamlfile.SaveRelativeEnergies(saveRel, rel); err != nil {
						return err
					}
				}
				return PrintResult(cmd, &stdRelResult{Standard: std, Relative: rel})
			})
		},
	}

	cmd.Flags().StringVar(&energiesPath, "energies", "", "composition energies YAML [REQUIRED]")
	cmd.Flags().StringVar(&saveStd, "save-std", "", "write standard energies to this YAML file")
	cmd.Flags().StringVar(&saveRel, "save-rel", "", "write relative energies to this YAML file")
	_ = cmd.MarkFlagRequired("energies")

	return cmd
}

func renderEnergies(w io.Writer, energies chempot.CompositionEnergies) error {
	formulas := energies.Formulas()
	rows := make([][]string, len(formulas))
	for i, f := range formulas {
		e := energies[f]
		rows[i] = []string{f, strconv.FormatFloat(e.Energy, 'f', 6, 64), e.Source}
	}
	_, err := io.WriteString(w, FormatTable([]string{"FORMULA", "ENERGY", "SOURCE"}, rows))
	return err
}

func renderStdRel(w io.Writer, r *stdRelResult) error {
	var rows [][]string
	for _, el := range r.Standard.Elements() {
		rows = append(rows, []string{"standard", el, strconv.FormatFloat(r.Standard[el], 'f', 6, 64)})
	}
	for _, f := range r.Relative.Formulas() {
		rows = append(rows, []string{"relative", f, strconv.FormatFloat(r.Relative[f], 'f', 6, 64)})
	}
	_, err := io.WriteString(w, FormatTable([]string{"KIND", "FORMULA", "ENERGY_PER_ATOM"}, rows))
	return err
}
