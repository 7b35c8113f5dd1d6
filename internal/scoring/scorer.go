// Package scoring provides the default relevance scorer and ranker for
// file groups. Both sit behind interfaces in the search package so
// deployments can substitute their own formula.
package scoring

import (
	"fmt"
	"path"
	"strings"

	"github.com/seqscout/seqscout/internal/genomics"
)

// Score contributions. The exact values matter less than their order:
// file-name hits outrank path hits, which outrank tag hits.
const (
	nameMatchWeight  = 0.35
	pathMatchWeight  = 0.15
	tagMatchWeight   = 0.2
	typeMatchWeight  = 0.3
	associatedWeight = 0.05
	associatedCap    = 0.15
	baseRelevance    = 0.1
)

// Engine is the default term-matching scorer.
type Engine struct{}

// NewEngine returns the default scoring engine.
func NewEngine() *Engine {
	return &Engine{}
}

// CalculateScore scores a file group against the search terms and
// file-type filter. Each contribution is reported as a match reason.
func (e *Engine) CalculateScore(primary *genomics.GenomicsFile, terms []string, fileType genomics.FileType, associated []*genomics.GenomicsFile) (float64, []string) {
	if primary == nil {
		return 0, nil
	}

	score := baseRelevance
	var reasons []string

	name := strings.ToLower(path.Base(primary.Path))
	full := strings.ToLower(primary.Path)

	for _, term := range terms {
		t := strings.ToLower(strings.TrimSpace(term))
		if t == "" {
			continue
		}
		switch {
		case strings.Contains(name, t):
			score += nameMatchWeight
			reasons = append(reasons, fmt.Sprintf("file name matches %q", term))
		case strings.Contains(full, t):
			score += pathMatchWeight
			reasons = append(reasons, fmt.Sprintf("path matches %q", term))
		case tagsMatch(primary.Tags, t):
			score += tagMatchWeight
			reasons = append(reasons, fmt.Sprintf("tag matches %q", term))
		}
	}

	if fileType != "" && fileType != genomics.FileTypeUnknown && primary.FileType == fileType {
		score += typeMatchWeight
		reasons = append(reasons, fmt.Sprintf("file type is %s", fileType))
	}

	if n := len(associated); n > 0 {
		bonus := associatedWeight * float64(n)
		if bonus > associatedCap {
			bonus = associatedCap
		}
		score += bonus
		reasons = append(reasons, fmt.Sprintf("%d associated file(s)", n))
	}

	return score, reasons
}

func tagsMatch(tags map[string]string, term string) bool {
	for k, v := range tags {
		if strings.Contains(strings.ToLower(k), term) || strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}
