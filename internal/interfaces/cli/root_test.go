package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/defectkit/internal/infrastructure/storage/yamlfile"
	"github.com/turtacn/defectkit/internal/testutil"
	"github.com/turtacn/defectkit/pkg/errors"
)

// harness runs the command tree against a private store in a temp dir.
type harness struct {
	t   *testing.T
	dir string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{t: t, dir: t.TempDir()}
}

func (h *harness) path(name string) string {
	return filepath.Join(h.dir, name)
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--log-level=error", "--store="+h.path("store.db")))
	err := cmd.Execute()
	return out.String(), err
}

func (h *harness) writeStructures() (defectPath, perfectPath string) {
	h.t.Helper()
	defectPath, perfectPath = h.path("defect.yaml"), h.path("perfect.yaml")
	require.NoError(h.t, yamlfile.SaveStructure(perfectPath, testutil.RockSalt(h.t)))
	require.NoError(h.t, yamlfile.SaveStructure(defectPath, testutil.NewSupercell(h.t, testutil.WithoutSite(7))))
	return defectPath, perfectPath
}

func (h *harness) writeEnergies() string {
	h.t.Helper()
	p := h.path("energies.yaml")
	require.NoError(h.t, yamlfile.SaveCompositionEnergies(p, testutil.MgOEnergies()))
	return p
}

func TestNewRootCommand_Structure(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "defectkit", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"compare", "cpd", "energies", "energy", "band-edge", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}

	for _, flag := range []string{"config", "log-level", "output", "metrics-textfile", "store"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
	assert.Equal(t, OutputText, cmd.PersistentFlags().Lookup("output").DefValue)
}

func TestVersion_JSON(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("version", "--output=json")
	require.NoError(t, err)

	var info BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestVersion_Text(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "defectkit "+Version)
}

func TestRoot_InvalidOutputFormat(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("version", "--output=xml")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestRoot_InvalidLogLevel(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"version", "--log-level=loud"})
	assert.Error(t, cmd.Execute())
}

func TestRoot_ConfigFile(t *testing.T) {
	h := newHarness(t)
	cfgPath := h.path("defectkit.yaml")
	require.NoError(t, writeFile(cfgPath, "analysis:\n  dist_tol: -1\n"))

	_, err := h.run("version", "--config="+cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "analysis.dist_tol")
}

func TestFormatTable(t *testing.T) {
	out := FormatTable([]string{"A", "LONG"}, [][]string{{"xyz", "1"}, {"q"}})
	assert.Equal(t, "A    LONG\n---  ----\nxyz  1\nq    \n", out)
	assert.Empty(t, FormatTable(nil, nil))
}

func TestPrintError(t *testing.T) {
	cmd := NewRootCommand()
	var errOut bytes.Buffer
	cmd.SetErr(&errOut)
	PrintError(cmd, errors.InvalidParam("bad input"))
	assert.Contains(t, errOut.String(), "Error: [COMMON_002] bad input")

	errOut.Reset()
	PrintError(cmd, nil)
	assert.Empty(t, errOut.String())
}
