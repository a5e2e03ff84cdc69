package defect

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/turtacn/defectkit/internal/domain/crystal"
)

// SiteInfo is the species and position of one removed or inserted site.
type SiteInfo struct {
	Species    string `json:"species" yaml:"species"`
	FracCoords r3.Vec `json:"frac_coords" yaml:"frac_coords"`
}

// SubstitutedPair is a removed site together with the inserted site that
// replaced it.
type SubstitutedPair struct {
	Removed  SiteInfo `json:"removed" yaml:"removed"`
	Inserted SiteInfo `json:"inserted" yaml:"inserted"`
}

// SiteDiff is the classified difference between a defective and a perfect
// structure. Every removed index is in exactly one of Removed and
// RemovedBySub; likewise for inserted indices.
type SiteDiff struct {
	Removed       map[int]SiteInfo `json:"removed" yaml:"removed"`
	Inserted      map[int]SiteInfo `json:"inserted" yaml:"inserted"`
	RemovedBySub  map[int]SiteInfo `json:"removed_by_sub" yaml:"removed_by_sub"`
	InsertedBySub map[int]SiteInfo `json:"inserted_by_sub" yaml:"inserted_by_sub"`
	// Substitutions maps a removed perfect index to the defect index that
	// took its place.
	Substitutions map[int]int `json:"substitutions" yaml:"substitutions"`
	// Mapping is the defect-to-perfect atom mapping of non-inserted atoms.
	Mapping map[int]int `json:"mapping" yaml:"mapping"`
}

// SiteDiffSummary counts the entries of a SiteDiff.
type SiteDiffSummary struct {
	Vacancies     int `json:"vacancies" yaml:"vacancies"`
	Interstitials int `json:"interstitials" yaml:"interstitials"`
	Substitutions int `json:"substitutions" yaml:"substitutions"`
	Mapped        int `json:"mapped" yaml:"mapped"`
}

// MakeSiteDiff separates substitutions from pure vacancies and interstitials.
// A removed site r and an inserted site i form a substitution only when each
// is the unique match of the other regardless of species.
func (c *StructureComparator) MakeSiteDiff() *SiteDiff {
	removedSites := make([]crystal.Site, len(c.removed))
	for k, p := range c.removed {
		removedSites[k] = c.perfect.Site(p)
	}
	insertedSites := make([]crystal.Site, len(c.inserted))
	for k, d := range c.inserted {
		insertedSites[k] = c.defect.Site(d)
	}

	removedStr := crystal.FromSites(c.perfect.Lattice, removedSites)
	insertedStr := crystal.FromSites(c.defect.Lattice, insertedSites)
	rToI := c.project(removedStr, insertedStr, false)
	iToR := c.project(insertedStr, removedStr, false)

	subs := map[int]int{}
	for r, m := range rToI {
		if !m.Found() {
			continue
		}
		if back := iToR[m.Index]; back.Found() && back.Index == r {
			subs[c.removed[r]] = c.inserted[m.Index]
		}
	}
	substituting := make(map[int]struct{}, len(subs))
	for _, d := range subs {
		substituting[d] = struct{}{}
	}

	diff := &SiteDiff{
		Removed:       map[int]SiteInfo{},
		Inserted:      map[int]SiteInfo{},
		RemovedBySub:  map[int]SiteInfo{},
		InsertedBySub: map[int]SiteInfo{},
		Substitutions: subs,
		Mapping:       c.AtomMapping(),
	}
	for k, p := range c.removed {
		info := SiteInfo{Species: removedSites[k].Species, FracCoords: removedSites[k].FracCoords}
		if _, ok := subs[p]; ok {
			diff.RemovedBySub[p] = info
		} else {
			diff.Removed[p] = info
		}
	}
	for k, d := range c.inserted {
		info := SiteInfo{Species: insertedSites[k].Species, FracCoords: insertedSites[k].FracCoords}
		if _, ok := substituting[d]; ok {
			diff.InsertedBySub[d] = info
		} else {
			diff.Inserted[d] = info
		}
	}
	return diff
}

// Substituted returns the substitution pairs keyed by (removed, inserted).
func (s *SiteDiff) Substituted() map[[2]int]SubstitutedPair {
	out := make(map[[2]int]SubstitutedPair, len(s.Substitutions))
	for r, i := range s.Substitutions {
		out[[2]int{r, i}] = SubstitutedPair{Removed: s.RemovedBySub[r], Inserted: s.InsertedBySub[i]}
	}
	return out
}

// IsNoDiff reports whether the structures are identical under the matching.
func (s *SiteDiff) IsNoDiff() bool {
	return len(s.Removed) == 0 && len(s.Inserted) == 0 &&
		len(s.RemovedBySub) == 0 && len(s.InsertedBySub) == 0
}

// Summary counts vacancies, interstitials, substitutions and mapped atoms.
func (s *SiteDiff) Summary() SiteDiffSummary {
	return SiteDiffSummary{
		Vacancies:     len(s.Removed),
		Interstitials: len(s.Inserted),
		Substitutions: len(s.Substitutions),
		Mapped:        len(s.Mapping),
	}
}

// SubstitutionKeys returns the substitution pairs sorted by removed index.
func (s *SiteDiff) SubstitutionKeys() [][2]int {
	out := make([][2]int, 0, len(s.Substitutions))
	for r, i := range s.Substitutions {
		out = append(out, [2]int{r, i})
	}
	sort.Slice(out, func(a, b int) bool { return out[a][0] < out[b][0] })
	return out
}
