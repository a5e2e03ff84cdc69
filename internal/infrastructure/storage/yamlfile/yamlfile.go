// Package yamlfile reads and writes the YAML documents exchanged with
// defectkit: composition energies, structures, diagrams, target vertices and
// the defect energy records.
package yamlfile

import (
	"bytes"
	stderrors "errors"
	"io/fs"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/defectkit/internal/domain/chempot"
	"github.com/turtacn/defectkit/internal/domain/crystal"
	"github.com/turtacn/defectkit/internal/domain/defect"
	"github.com/turtacn/defectkit/pkg/errors"
)

const filePerm = 0o644

func readYAML(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return errors.Wrap(err, errors.CodeNotFound, "file not found").WithDetail("path=" + path)
		}
		return errors.Wrap(err, errors.CodeInternal, "failed to read file").WithDetail("path=" + path)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, errors.CodeSerialization, "failed to parse yaml").WithDetail("path=" + path)
	}
	return nil
}

// Marshal encodes v with a two-space indent.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to encode yaml")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialization, "failed to encode yaml")
	}
	return buf.Bytes(), nil
}

func writeYAML(path string, v interface{}) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to write file").WithDetail("path=" + path)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Composition energies
// ─────────────────────────────────────────────────────────────────────────────

// LoadCompositionEnergies reads a {formula: {energy, source}} document. Every
// formula must parse.
func LoadCompositionEnergies(path string) (chempot.CompositionEnergies, error) {
	out := chempot.CompositionEnergies{}
	if err := readYAML(path, &out); err != nil {
		return nil, err
	}
	for _, f := range out.Formulas() {
		if _, err := crystal.ParseComposition(f); err != nil {
			return nil, errors.Wrap(err, errors.CodeUnknown, "invalid formula in energies file").WithDetail("path=" + path)
		}
	}
	return out, nil
}

// SaveCompositionEnergies writes energies to path.
func SaveCompositionEnergies(path string, energies chempot.CompositionEnergies) error {
	return writeYAML(path, energies)
}

// LoadStandardEnergies reads an {element: energy} document.
func LoadStandardEnergies(path string) (chempot.StandardEnergies, error) {
	out := chempot.StandardEnergies{}
	if err := readYAML(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveStandardEnergies writes standard energies to path.
func SaveStandardEnergies(path string, std chempot.StandardEnergies) error {
	return writeYAML(path, std)
}

// LoadRelativeEnergies reads a {formula: energy} document.
func LoadRelativeEnergies(path string) (chempot.RelativeEnergies, error) {
	out := chempot.RelativeEnergies{}
	if err := readYAML(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveRelativeEnergies writes relative energies to path.
func SaveRelativeEnergies(path string, rel chempot.RelativeEnergies) error {
	return writeYAML(path, rel)
}

// ─────────────────────────────────────────────────────────────────────────────
// Structures
// ─────────────────────────────────────────────────────────────────────────────

type structureDoc struct {
	Lattice [3][3]float64 `yaml:"lattice"`
	Sites   []siteDoc     `yaml:"sites"`
}

type siteDoc struct {
	Species    string     `yaml:"species"`
	FracCoords [3]float64 `yaml:"frac_coords,flow"`
}

// LoadStructure reads a structure document:
//
//	lattice: [[a1, a2, a3], [b1, b2, b3], [c1, c2, c3]]
//	sites:
//	  - species: Mg
//	    frac_coords: [0, 0, 0]
func LoadStructure(path string) (*crystal.Structure, error) {
	var doc structureDoc
	if err := readYAML(path, &doc); err != nil {
		return nil, err
	}
	lattice, err := crystal.NewLattice(doc.Lattice)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "invalid structure file").WithDetail("path=" + path)
	}
	sites := make([]crystal.Site, len(doc.Sites))
	for i, s := range doc.Sites {
		sites[i] = crystal.Site{
			Species:    s.Species,
			FracCoords: r3.Vec{X: s.FracCoords[0], Y: s.FracCoords[1], Z: s.FracCoords[2]},
		}
	}
	st, err := crystal.NewStructure(lattice, sites)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "invalid structure file").WithDetail("path=" + path)
	}
	return st, nil
}

// SaveStructure writes s in the LoadStructure format.
func SaveStructure(path string, s *crystal.Structure) error {
	if s == nil || s.Lattice == nil {
		return errors.InvalidParam("structure is nil")
	}
	doc := structureDoc{Lattice: s.Lattice.Matrix(), Sites: make([]siteDoc, len(s.Sites))}
	for i, site := range s.Sites {
		doc.Sites[i] = siteDoc{
			Species:    site.Species,
			FracCoords: [3]float64{site.FracCoords.X, site.FracCoords.Y, site.FracCoords.Z},
		}
	}
	return writeYAML(path, doc)
}

// ─────────────────────────────────────────────────────────────────────────────
// Diagrams
// ─────────────────────────────────────────────────────────────────────────────

// SaveChemPotDiag writes the diagram to path.
func SaveChemPotDiag(path string, d *chempot.ChemPotDiag) error {
	if d == nil {
		return errors.InvalidParam("diagram is nil")
	}
	return writeYAML(path, d)
}

// LoadChemPotDiag reads a diagram written by SaveChemPotDiag.
func LoadChemPotDiag(path string) (*chempot.ChemPotDiag, error) {
	d := &chempot.ChemPotDiag{}
	if err := readYAML(path, d); err != nil {
		return nil, err
	}
	if len(d.VertexElements) == 0 || len(d.Polygons) == 0 {
		return nil, errors.New(errors.CodeEmptyDiagram, "diagram file has no vertices").WithDetail("path=" + path)
	}
	return d, nil
}

// SaveTargetVertices writes the labelled target vertices to path.
func SaveTargetVertices(path string, tv *chempot.TargetVertices) error {
	if tv == nil {
		return errors.InvalidParam("target vertices are nil")
	}
	return writeYAML(path, tv)
}

// LoadTargetVertices reads target vertices written by SaveTargetVertices.
func LoadTargetVertices(path string) (*chempot.TargetVertices, error) {
	tv := &chempot.TargetVertices{}
	if err := readYAML(path, tv); err != nil {
		return nil, err
	}
	return tv, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Band edges and defect energies
// ─────────────────────────────────────────────────────────────────────────────

// BandEdgeInput pairs the edge characters of each spin channel of a defect
// calculation with those of the perfect supercell.
type BandEdgeInput struct {
	Perfect  defect.PerfectEdgeCharacter `yaml:"perfect"`
	Channels []defect.EdgeCharacter      `yaml:"channels"`
}

// LoadBandEdgeInput reads a document such as
//
//	perfect:
//	  vbm: 0.0
//	  cbm: 4.0
//	channels:
//	  - hob_bottom_e: 3.8
//	    lub_top_e: 4.5
//	    hob_p_ratio: 0.1
//	    lub_p_ratio: 0.1
func LoadBandEdgeInput(path string) (*BandEdgeInput, error) {
	in := &BandEdgeInput{}
	if err := readYAML(path, in); err != nil {
		return nil, err
	}
	if len(in.Channels) == 0 {
		return nil, errors.InvalidParam("band edge file has no spin channels").WithDetail("path=" + path)
	}
	if in.Perfect.CBM <= in.Perfect.VBM {
		return nil, errors.InvalidParam("perfect cbm must lie above vbm").
			WithDetailf("path=%s vbm=%g cbm=%g", path, in.Perfect.VBM, in.Perfect.CBM)
	}
	return in, nil
}

// SaveBandEdgeStates writes the per-channel states to path.
func SaveBandEdgeStates(path string, states *defect.BandEdgeStates) error {
	if states == nil {
		return errors.InvalidParam("band edge states are nil")
	}
	return writeYAML(path, states)
}

// LoadBandEdgeStates reads states written by SaveBandEdgeStates.
func LoadBandEdgeStates(path string) (*defect.BandEdgeStates, error) {
	states := &defect.BandEdgeStates{}
	if err := readYAML(path, states); err != nil {
		return nil, err
	}
	for _, s := range states.States {
		switch s {
		case defect.EdgeNoInGap, defect.EdgeDonorPHS, defect.EdgeAcceptorPHS, defect.EdgeInGapState, defect.EdgeStateUnknown:
		default:
			return nil, errors.InvalidParam("unknown band edge state").WithDetailf("path=%s state=%s", path, s)
		}
	}
	return states, nil
}

// SaveDefectEnergyInfo writes one defect energy record to path.
func SaveDefectEnergyInfo(path string, info *defect.DefectEnergyInfo) error {
	if info == nil {
		return errors.InvalidParam("defect energy info is nil")
	}
	return writeYAML(path, info)
}

// LoadDefectEnergyInfo reads a record written by SaveDefectEnergyInfo.
func LoadDefectEnergyInfo(path string) (*defect.DefectEnergyInfo, error) {
	info := &defect.DefectEnergyInfo{}
	if err := readYAML(path, info); err != nil {
		return nil, err
	}
	if info.Name == "" {
		return nil, errors.InvalidParam("defect energy file has no name").WithDetail("path=" + path)
	}
	return info, nil
}
