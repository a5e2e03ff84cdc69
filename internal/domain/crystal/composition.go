package crystal

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/turtacn/defectkit/pkg/errors"
)

// amountTolerance is the tolerance used when comparing amounts and deciding
// whether an amount is integral.
const amountTolerance = 1e-8

// Composition maps an element symbol to its amount.
type Composition map[string]float64

// ParseComposition parses a chemical formula such as "MgO", "Mg2O2",
// "Ca(OH)2" or "O2". Whitespace is ignored.
func ParseComposition(formula string) (Composition, error) {
	src := strings.Join(strings.Fields(formula), "")
	if src == "" {
		return nil, errors.New(errors.CodeInvalidFormula, "empty formula")
	}
	p := &formulaParser{src: src}
	comp, err := p.parseGroup()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.src) {
		return nil, errors.New(errors.CodeInvalidFormula, "unbalanced parenthesis").
			WithDetailf("formula=%s position=%d", formula, p.pos)
	}
	for el, amt := range comp {
		if amt <= 0 {
			return nil, errors.New(errors.CodeInvalidFormula, "non-positive amount").
				WithDetailf("formula=%s element=%s", formula, el)
		}
	}
	return comp, nil
}

// MustParseComposition is ParseComposition that panics on error.
func MustParseComposition(formula string) Composition {
	c, err := ParseComposition(formula)
	if err != nil {
		panic(err)
	}
	return c
}

type formulaParser struct {
	src string
	pos int
}

func (p *formulaParser) parseGroup() (Composition, error) {
	comp := Composition{}
	for p.pos < len(p.src) {
		ch := rune(p.src[p.pos])
		switch {
		case ch == '(':
			p.pos++
			inner, err := p.parseGroup()
			if err != nil {
				return nil, err
			}
			if p.pos >= len(p.src) || p.src[p.pos] != ')' {
				return nil, errors.New(errors.CodeInvalidFormula, "missing closing parenthesis").
					WithDetailf("formula=%s", p.src)
			}
			p.pos++
			mult, err := p.parseAmount()
			if err != nil {
				return nil, err
			}
			for el, amt := range inner {
				comp[el] += amt * mult
			}
		case ch == ')':
			return comp, nil
		case unicode.IsUpper(ch):
			start := p.pos
			p.pos++
			for p.pos < len(p.src) && unicode.IsLower(rune(p.src[p.pos])) {
				p.pos++
			}
			symbol := p.src[start:p.pos]
			if !IsElementSymbol(symbol) {
				return nil, errors.New(errors.CodeInvalidSpecies, "unknown element symbol").
					WithDetailf("formula=%s symbol=%s", p.src, symbol)
			}
			amt, err := p.parseAmount()
			if err != nil {
				return nil, err
			}
			comp[symbol] += amt
		default:
			return nil, errors.New(errors.CodeInvalidFormula, "unexpected character").
				WithDetailf("formula=%s char=%q", p.src, ch)
		}
	}
	return comp, nil
}

// parseAmount reads an optional decimal number; a missing number means 1.
func (p *formulaParser) parseAmount() (float64, error) {
	start := p.pos
	for p.pos < len(p.src) && (unicode.IsDigit(rune(p.src[p.pos])) || p.src[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		return 1, nil
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInvalidFormula, "invalid amount").
			WithDetailf("formula=%s", p.src)
	}
	return v, nil
}

// Elements returns the element symbols with a positive amount, alphabetically.
func (c Composition) Elements() []string {
	out := make([]string, 0, len(c))
	for el, amt := range c {
		if amt > amountTolerance {
			out = append(out, el)
		}
	}
	sort.Strings(out)
	return out
}

// ElementSet returns the elements as a set.
func (c Composition) ElementSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c))
	for _, el := range c.Elements() {
		set[el] = struct{}{}
	}
	return set
}

// NumAtoms returns the total amount of atoms.
func (c Composition) NumAtoms() float64 {
	var n float64
	for _, amt := range c {
		n += amt
	}
	return n
}

// AtomicFraction returns the fraction of atoms that are el; zero when el is
// absent.
func (c Composition) AtomicFraction(el string) float64 {
	n := c.NumAtoms()
	if n == 0 {
		return 0
	}
	return c[el] / n
}

// FractionalComposition returns the composition normalised to one atom.
func (c Composition) FractionalComposition() Composition {
	n := c.NumAtoms()
	out := make(Composition, len(c))
	if n == 0 {
		return out
	}
	for el, amt := range c {
		out[el] = amt / n
	}
	return out
}

// IsElement reports whether the composition consists of a single element.
func (c Composition) IsElement() bool {
	return len(c.Elements()) == 1
}

// maxReductionDenominator bounds the search for a multiplier that makes
// fractional amounts integral.
const maxReductionDenominator = 100

// ReducedComposition scales the amounts to the smallest whole numbers with
// the same ratio, so "Mg2O2" and "Mg0.5O0.5" both reduce to MgO. A pure
// element reduces to one atom. Amounts that no multiplier up to
// maxReductionDenominator makes integral are left as is.
func (c Composition) ReducedComposition() Composition {
	out := make(Composition, len(c))
	if c.IsElement() {
		out[c.Elements()[0]] = 1
		return out
	}
	factor := c.reductionFactor()
	for _, el := range c.Elements() {
		v := c[el] / factor
		if r := math.Round(v); math.Abs(v-r) <= amountTolerance {
			v = r
		}
		out[el] = v
	}
	return out
}

// reductionFactor returns f such that every amount divided by f is the
// smallest integral ratio, or 1 when there is none.
func (c Composition) reductionFactor() float64 {
	els := c.Elements()
	for m := 1; m <= maxReductionDenominator; m++ {
		g := 0
		integral := true
		for _, el := range els {
			scaled := c[el] * float64(m)
			r := math.Round(scaled)
			if r < 1 || math.Abs(scaled-r) > amountTolerance*float64(m) {
				integral = false
				break
			}
			g = gcd(g, int(r))
		}
		if integral && g > 0 {
			return float64(g) / float64(m)
		}
	}
	return 1
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ReducedFormula returns the reduced formula with elements ordered by Pauling
// electronegativity (ties broken by symbol) and unit amounts omitted, e.g.
// "Mg2O2" -> "MgO", "O2" -> "O".
func (c Composition) ReducedFormula() string {
	return c.ReducedComposition().Formula()
}

// Formula renders the composition without reduction, in electronegativity
// order.
func (c Composition) Formula() string {
	els := c.Elements()
	sort.SliceStable(els, func(i, j int) bool {
		xi, xj := Electronegativity(els[i]), Electronegativity(els[j])
		if xi != xj {
			return xi < xj
		}
		return els[i] < els[j]
	})
	var sb strings.Builder
	for _, el := range els {
		sb.WriteString(el)
		sb.WriteString(formatAmount(c[el]))
	}
	return sb.String()
}

func formatAmount(amt float64) string {
	r := math.Round(amt)
	if math.Abs(amt-r) <= amountTolerance {
		if r == 1 {
			return ""
		}
		return strconv.Itoa(int(r))
	}
	return strconv.FormatFloat(amt, 'g', 6, 64)
}

// Equal reports whether both compositions hold the same amounts.
func (c Composition) Equal(other Composition) bool {
	for el, amt := range c {
		if math.Abs(amt-other[el]) > amountTolerance {
			return false
		}
	}
	for el, amt := range other {
		if math.Abs(amt-c[el]) > amountTolerance {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (c Composition) String() string {
	return c.Formula()
}
