// Package assoc groups discovered genomics files into primary+companion
// file groups using an ordered table of pre-compiled association rules.
package assoc

import (
	"strings"

	"github.com/seqscout/seqscout/internal/genomics"
)

// Engine matches files against the association rule table. Rules are
// compiled once at construction; an extension index narrows the rules
// checked per file so large result sets avoid an O(files x rules) scan.
// The index is a pure pre-filter: it never changes grouping outcomes
// versus checking every rule.
type Engine struct {
	rules []rule

	// extIndex maps a lowercase file-name suffix to the indices of the
	// rules that can start from a file with that suffix, in table order.
	extIndex map[string][]int

	// suffixes holds the index keys longest-first so the most specific
	// suffix wins when extracting a file's candidate set.
	suffixes []string
}

// NewEngine builds the engine with the default genomics rule table.
func NewEngine() *Engine {
	return newEngineWithRules(defaultRules())
}

func newEngineWithRules(rules []rule) *Engine {
	e := &Engine{
		rules:    rules,
		extIndex: make(map[string][]int),
	}
	for i, r := range rules {
		for _, t := range r.triggers {
			t = strings.ToLower(t)
			if _, ok := e.extIndex[t]; !ok {
				e.suffixes = append(e.suffixes, t)
			}
			e.extIndex[t] = append(e.extIndex[t], i)
		}
	}
	// Longest suffix first: ".bam.bai" must shadow ".bai".
	for i := 1; i < len(e.suffixes); i++ {
		for j := i; j > 0 && len(e.suffixes[j]) > len(e.suffixes[j-1]); j-- {
			e.suffixes[j], e.suffixes[j-1] = e.suffixes[j-1], e.suffixes[j]
		}
	}
	return e
}

// candidateRules returns the rule indices worth checking for the file.
// Files with no recognized suffix fall back to every rule.
func (e *Engine) candidateRules(f *genomics.GenomicsFile) ([]int, bool) {
	lower := strings.ToLower(f.Path)
	for _, s := range e.suffixes {
		if strings.HasSuffix(lower, s) {
			return e.extIndex[s], true
		}
	}
	all := make([]int, len(e.rules))
	for i := range e.rules {
		all[i] = i
	}
	return all, false
}

// FindAssociations groups the input files. The input must be
// deduplicated by path. Grouping is a pure function of the file set:
// shuffling the input yields the same multiset of groups. A companion
// file is claimed by at most one group; when several rules could claim
// the same primary the first rule in table order wins.
func (e *Engine) FindAssociations(files []*genomics.GenomicsFile) []*genomics.FileGroup {
	idx := newFileIndex(files)
	idx.consumed = make(map[string]bool, len(files))

	// Candidate sets are computed once per file.
	candidates := make([][]int, len(files))
	for i, f := range files {
		candidates[i], _ = e.candidateRules(f)
	}

	var groups []*genomics.FileGroup

	// Rule-major scan: within each rule, files are visited in input
	// order. Rule precedence, not input position, decides contested
	// members, which keeps the outcome order-invariant.
	for ri := range e.rules {
		r := &e.rules[ri]
		for fi, f := range files {
			if idx.consumed[f.Path] || !containsRule(candidates[fi], ri) {
				continue
			}
			m := r.build(f, idx)
			if m == nil {
				continue
			}
			idx.consumed[m.primary.Path] = true
			for _, a := range m.associated {
				idx.consumed[a.Path] = true
			}
			groups = append(groups, &genomics.FileGroup{
				PrimaryFile:     m.primary,
				AssociatedFiles: m.associated,
				GroupType:       r.groupType,
			})
		}
	}

	// Everything unclaimed becomes a singleton.
	for _, f := range files {
		if idx.consumed[f.Path] {
			continue
		}
		groups = append(groups, &genomics.FileGroup{
			PrimaryFile: f,
			GroupType:   genomics.GroupTypeSingleFile,
		})
	}

	return groups
}

// DetermineGroupType classifies a primary/associated pair presented
// directly, outside the main scan. A primary with no companions is a
// single file; a pair that exhausts every rule's pattern is an unknown
// association.
func (e *Engine) DetermineGroupType(primary *genomics.GenomicsFile, associated []*genomics.GenomicsFile) string {
	if primary == nil {
		return genomics.GroupTypeUnknown
	}
	if len(associated) == 0 {
		return genomics.GroupTypeSingleFile
	}
	for _, r := range e.rules {
		if r.pattern != nil && r.pattern.MatchString(primary.Path) {
			return r.groupType
		}
	}
	return genomics.GroupTypeUnknown
}

func containsRule(candidates []int, ri int) bool {
	for _, c := range candidates {
		if c == ri {
			return true
		}
	}
	return false
}
