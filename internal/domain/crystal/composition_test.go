package crystal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/defectkit/pkg/errors"
)

func TestParseComposition(t *testing.T) {
	tests := []struct {
		formula string
		want    Composition
	}{
		{"MgO", Composition{"Mg": 1, "O": 1}},
		{"Mg2O2", Composition{"Mg": 2, "O": 2}},
		{"Ca(OH)2", Composition{"Ca": 1, "O": 2, "H": 2}},
		{"O2", Composition{"O": 2}},
		{"Li0.5CoO2", Composition{"Li": 0.5, "Co": 1, "O": 2}},
		{" Fe2 O3 ", Composition{"Fe": 2, "O": 3}},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			got, err := ParseComposition(tt.formula)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestParseComposition_Errors(t *testing.T) {
	tests := []struct {
		formula string
		code    errors.ErrorCode
	}{
		{"", errors.CodeInvalidFormula},
		{"Xx2", errors.CodeInvalidSpecies},
		{"Mg(O", errors.CodeInvalidFormula},
		{"MgO)", errors.CodeInvalidFormula},
		{"mgO", errors.CodeInvalidFormula},
		{"Mg0O", errors.CodeInvalidFormula},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			_, err := ParseComposition(tt.formula)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.code), err.Error())
		})
	}
}

func TestComposition_ReducedFormula(t *testing.T) {
	tests := map[string]string{
		"Mg2O2":     "MgO",
		"O2":        "O",
		"O":         "O",
		"OMg":       "MgO",
		"H4O2":      "H2O",
		"Fe4O6":     "Fe2O3",
		"Ca(OH)2":   "CaH2O2",
		"Li0.5CoO2": "LiCo2O4",
		"Mg0.5O0.5": "MgO",
		"Mg1.5O1.5": "MgO",
		"Fe0.4O0.6": "Fe2O3",
		"Mg0.0123O": "Mg0.0123O",
		"SrTiO3":    "SrTiO3",
		"ArF":       "FAr",
	}
	for formula, want := range tests {
		assert.Equal(t, want, MustParseComposition(formula).ReducedFormula(), formula)
	}
}

func TestComposition_Fractions(t *testing.T) {
	c := MustParseComposition("H2O")

	assert.Equal(t, []string{"H", "O"}, c.Elements())
	assert.Equal(t, 3.0, c.NumAtoms())
	assert.InDelta(t, 2.0/3.0, c.AtomicFraction("H"), 1e-12)
	assert.Equal(t, 0.0, c.AtomicFraction("Mg"))

	frac := c.FractionalComposition()
	assert.InDelta(t, 1.0, frac.NumAtoms(), 1e-12)
	assert.InDelta(t, 1.0/3.0, frac["O"], 1e-12)
}

func TestComposition_IsElementAndSet(t *testing.T) {
	assert.True(t, MustParseComposition("O2").IsElement())
	assert.False(t, MustParseComposition("MgO").IsElement())

	set := MustParseComposition("Mg2SiO4").ElementSet()
	assert.Len(t, set, 3)
	assert.Contains(t, set, "Si")
}

func TestComposition_Equal(t *testing.T) {
	assert.True(t, MustParseComposition("MgO").Equal(MustParseComposition("OMg")))
	assert.False(t, MustParseComposition("MgO").Equal(MustParseComposition("Mg2O2")))
	assert.False(t, MustParseComposition("MgO").Equal(MustParseComposition("Mg")))
}

func TestElectronegativity(t *testing.T) {
	assert.Equal(t, 3.44, Electronegativity("O"))
	assert.True(t, math.IsInf(Electronegativity("He"), 1))
	assert.True(t, math.IsInf(Electronegativity("Zz"), 1))
	assert.True(t, IsElementSymbol("Mg"))
	assert.False(t, IsElementSymbol("mg"))
	assert.Equal(t, 12, AtomicNumber("Mg"))
}
