package cli

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/defectkit/internal/application/analysis"
	"github.com/turtacn/defectkit/internal/domain/defect"
	"github.com/turtacn/defectkit/internal/infrastructure/storage/yamlfile"
	"github.com/turtacn/defectkit/pkg/errors"
)

// NewEnergyCmd returns the command assembling the formation energy record of
// one defect in one charge state.
func NewEnergyCmd() *cobra.Command {
	var (
		defectPath     string
		perfectPath    string
		defectEnergy   float64
		perfectEnergy  float64
		stdPath        string
		name           string
		charge         int
		correction     float64
		correctionName string
		bandEdgesPath  string
		savePath       string
	)

	cmd := &cobra.Command{
		Use:   "energy",
		Short: "Assemble the formation energy of a defect",
		Long: "Compute E_defect - E_perfect - Σ n_e μ°_e from the relaxed defect and perfect\n" +
			"supercells, their total energies and the standard elemental energies, and\n" +
			"attach an optional manual correction and band-edge states.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithContext(cmd, func(cliCtx *CLIContext) error {
				defectStr, err := yamlfile.LoadStructure(defectPath)
				if err != nil {
					return err
				}
				perfect, err := yamlfile.LoadStructure(perfectPath)
				if err != nil {
					return err
				}
				std, err := yamlfile.LoadStandardEnergies(stdPath)
				if err != nil {
					return err
				}

				req := analysis.DefectEnergyRequest{
					Entry:    defect.DefectEntry{Name: name, Charge: charge},
					Defect:   defect.CalcResults{Structure: defectStr, Energy: defectEnergy},
					Perfect:  defect.CalcResults{Structure: perfect, Energy: perfectEnergy},
					Standard: std,
				}
				if cmd.Flags().Changed("correction") {
					req.Correction = defect.ManualCorrection{Description: correctionName, Energy: correction}
				}
				if bandEdgesPath != "" {
					if req.BandEdges, err = yamlfile.LoadBandEdgeStates(bandEdgesPath); err != nil {
						return err
					}
				}

				svc, err := cliCtx.Service(cmd.Context(), false, cliCtx.ServiceOptions())
				if err != nil {
					return err
				}
				info, err := svc.AssembleDefectEnergy(cmd.Context(), req)
				if err != nil {
					return err
				}
				if savePath != "" {
					if err := yamlfile.SaveDefectEnergyInfo(savePath, info); err != nil {
						return err
					}
				}
				return PrintResult(cmd, info)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&defectPath, "defect", "", "relaxed defect supercell YAML [REQUIRED]")
	f.StringVar(&perfectPath, "perfect", "", "perfect supercell YAML [REQUIRED]")
	f.Float64Var(&defectEnergy, "defect-energy", 0, "total energy of the defect supercell in eV [REQUIRED]")
	f.Float64Var(&perfectEnergy, "perfect-energy", 0, "total energy of the perfect supercell in eV [REQUIRED]")
	f.StringVar(&stdPath, "std", "", "standard energies YAML {element: eV/atom} [REQUIRED]")
	f.StringVar(&name, "name", "", "defect name, e.g. Va_O1 [REQUIRED]")
	f.IntVar(&charge, "charge", 0, "charge state")
	f.Float64Var(&correction, "correction", 0, "manual energy correction in eV")
	f.StringVar(&correctionName, "correction-name", "manual", "label of the manual correction")
	f.StringVar(&bandEdgesPath, "band-edges", "", "band-edge states YAML written by band-edge --save")
	f.StringVar(&savePath, "save", "", "write the energy record YAML to this path")
	for _, req := range []string{"defect", "perfect", "defect-energy", "perfect-energy", "std", "name"} {
		_ = cmd.MarkFlagRequired(req)
	}

	return cmd
}

// renderDefectEnergy writes the formation energy and its ingredients.
func renderDefectEnergy(w io.Writer, info *defect.DefectEnergyInfo) error {
	e := info.DefectEnergy
	fmt.Fprintf(w, "defect: %s\n", defect.DefectEntry{Name: info.Name, Charge: info.Charge}.FullName())
	fmt.Fprintf(w, "formation energy: %.4f eV (uncorrected %.4f, correction %.4f)\n",
		info.FormationEnergy(), e.FormationEnergy, e.TotalCorrection())
	if e.IsShallow != nil {
		fmt.Fprintf(w, "shallow: %t\n", *e.IsShallow)
	}

	els := make([]string, 0, len(info.AtomIO))
	for el := range info.AtomIO {
		els = append(els, el)
	}
	sort.Strings(els)
	rows := make([][]string, 0, len(els))
	for _, el := range els {
		rows = append(rows, []string{el, strconv.Itoa(info.AtomIO[el])})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w)
		if _, err := io.WriteString(w, FormatTable([]string{"ELEMENT", "ADDED"}, rows)); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(e.EnergyCorrections))
	for k := range e.EnergyCorrections {
		names = append(names, k)
	}
	sort.Strings(names)
	rows = rows[:0]
	for _, k := range names {
		rows = append(rows, []string{k, strconv.FormatFloat(e.EnergyCorrections[k], 'f', 4, 64)})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w)
		if _, err := io.WriteString(w, FormatTable([]string{"CORRECTION", "ENERGY"}, rows)); err != nil {
			return err
		}
	}
	return nil
}

// NewBandEdgeCmd returns the command classifying the band-edge states of a
// defect calculation.
func NewBandEdgeCmd() *cobra.Command {
	var (
		inputPath      string
		savePath       string
		localizedRatio float64
		similarEnergy  float64
		similarOrb     float64
	)

	cmd := &cobra.Command{
		Use:   "band-edge",
		Short: "Classify the band-edge states of a defect calculation",
		Long: "Compare the edge characters of every spin channel of a defect calculation\n" +
			"with the perfect supercell and report no_in_gap, donor_phs, acceptor_phs,\n" +
			"in_gap_state or unknown per channel.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithContext(cmd, func(cliCtx *CLIContext) error {
				opts := cliCtx.ServiceOptions()
				if cmd.Flags().Changed("localized-ratio") {
					opts.BandEdge.LocalizedRatio = localizedRatio
				}
				if cmd.Flags().Changed("similar-energy") {
					opts.BandEdge.SimilarEnergyCriterion = similarEnergy
				}
				if cmd.Flags().Changed("similar-orb") {
					opts.BandEdge.SimilarOrbCriterion = similarOrb
				}
				if c := opts.BandEdge; c.LocalizedRatio <= 0 || c.LocalizedRatio >= 1 ||
					c.SimilarEnergyCriterion <= 0 || c.SimilarOrbCriterion <= 0 {
					return errors.InvalidParam("band edge criteria out of range").
						WithDetailf("localized_ratio=%g similar_energy=%g similar_orb=%g",
							c.LocalizedRatio, c.SimilarEnergyCriterion, c.SimilarOrbCriterion)
				}

				in, err := yamlfile.LoadBandEdgeInput(inputPath)
				if err != nil {
					return err
				}
				svc, err := cliCtx.Service(cmd.Context(), false, opts)
				if err != nil {
					return err
				}
				states, err := svc.ClassifyBandEdges(cmd.Context(), in.Channels, in.Perfect)
				if err != nil {
					return err
				}
				if savePath != "" {
					if err := yamlfile.SaveBandEdgeStates(savePath, states); err != nil {
						return err
					}
				}
				return PrintResult(cmd, states)
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&inputPath, "input", "", "edge characters YAML with perfect and channels [REQUIRED]")
	f.StringVar(&savePath, "save", "", "write the band-edge states YAML to this path")
	f.Float64Var(&localizedRatio, "localized-ratio", 0, "participation ratio above which an orbital is localized (default from config)")
	f.Float64Var(&similarEnergy, "similar-energy", 0, "band-edge energy criterion in eV (default from config)")
	f.Float64Var(&similarOrb, "similar-orb", 0, "orbital weight criterion (default from config)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func renderBandEdges(w io.Writer, states *defect.BandEdgeStates) error {
	rows := make([][]string, len(states.States))
	for i, s := range states.States {
		rows[i] = []string{strconv.Itoa(i), string(s)}
	}
	if _, err := io.WriteString(w, FormatTable([]string{"CHANNEL", "STATE"}, rows)); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "shallow: %t\n", states.IsShallow())
	return err
}
