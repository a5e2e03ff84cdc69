// Package chempot derives elemental and formation energies from per-
// composition total energies and builds chemical-potential diagrams.
package chempot

import (
	"math"
	"sort"

	"github.com/turtacn/defectkit/internal/domain/crystal"
	"github.com/turtacn/defectkit/pkg/errors"
)

// CompositionEnergy is the absolute total energy of one composition and the
// calculation it came from.
type CompositionEnergy struct {
	Energy float64 `json:"energy" yaml:"energy"`
	Source string  `json:"source,omitempty" yaml:"source,omitempty"`
}

// CompositionEnergies maps a formula, as given by the producer, to its
// energy. "O2" and "O4" are distinct keys that reduce to the same element.
type CompositionEnergies map[string]CompositionEnergy

// StandardEnergies maps an element symbol to its reference energy per atom.
type StandardEnergies map[string]float64

// RelativeEnergies maps a reduced formula to its formation energy per atom.
type RelativeEnergies map[string]float64

// Add stores e under formula, replacing any previous entry.
func (c CompositionEnergies) Add(formula string, e CompositionEnergy) {
	c[formula] = e
}

// Formulas returns the keys in sorted order.
func (c CompositionEnergies) Formulas() []string {
	out := make([]string, 0, len(c))
	for f := range c {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Elements returns every element appearing in any stored formula,
// alphabetically.
func (c CompositionEnergies) Elements() ([]string, error) {
	set := map[string]struct{}{}
	for _, f := range c.Formulas() {
		comp, err := crystal.ParseComposition(f)
		if err != nil {
			return nil, err
		}
		for _, el := range comp.Elements() {
			set[el] = struct{}{}
		}
	}
	return sortedKeys(set), nil
}

// StdRelEnergies derives the standard energy of every element and the
// relative energy of every compound in the store.
//
// The standard energy of an element is the lowest energy per atom among the
// compositions reducing to that element; a missing element is an error. The
// relative energy of a compound is its lowest energy per atom minus the
// fraction-weighted standard energies of its elements.
func (c CompositionEnergies) StdRelEnergies() (StandardEnergies, RelativeEnergies, error) {
	perAtom := map[string]float64{}
	comps := map[string]crystal.Composition{}
	for _, f := range c.Formulas() {
		comp, err := crystal.ParseComposition(f)
		if err != nil {
			return nil, nil, err
		}
		e := c[f].Energy / comp.NumAtoms()
		reduced := comp.ReducedFormula()
		if cur, ok := perAtom[reduced]; !ok || e < cur {
			perAtom[reduced] = e
		}
		comps[reduced] = comp.ReducedComposition()
	}

	elements, err := c.Elements()
	if err != nil {
		return nil, nil, err
	}
	std := StandardEnergies{}
	for _, el := range elements {
		e, ok := perAtom[el]
		if !ok {
			return nil, nil, errors.New(errors.CodeNoElementEnergy, "no elemental energy in composition energies").
				WithDetailf("element=%s", el)
		}
		std[el] = e
	}

	rel := RelativeEnergies{}
	for reduced, e := range perAtom {
		comp := comps[reduced]
		if comp.IsElement() {
			continue
		}
		offset := 0.0
		for _, el := range comp.Elements() {
			offset += comp.AtomicFraction(el) * std[el]
		}
		rel[reduced] = e - offset
	}
	return std, rel, nil
}

// Elements returns the element symbols in sorted order.
func (s StandardEnergies) Elements() []string {
	out := make([]string, 0, len(s))
	for el := range s {
		out = append(out, el)
	}
	sort.Strings(out)
	return out
}

// Formulas returns the keys in sorted order.
func (r RelativeEnergies) Formulas() []string {
	out := make([]string, 0, len(r))
	for f := range r {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Validate checks that every key parses as a formula and every energy is
// finite.
func (r RelativeEnergies) Validate() error {
	for _, f := range r.Formulas() {
		if _, err := crystal.ParseComposition(f); err != nil {
			return err
		}
		if math.IsNaN(r[f]) || math.IsInf(r[f], 0) {
			return errors.New(errors.CodeValidation, "relative energy is not finite").
				WithDetailf("formula=%s", f)
		}
	}
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
