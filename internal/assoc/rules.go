package assoc

import (
	"regexp"
	"strings"

	"github.com/seqscout/seqscout/internal/genomics"
)

// Group type tags produced by the built-in rule table.
const (
	GroupTypeBAMIndex     = "bam_index"
	GroupTypeCRAMIndex    = "cram_index"
	GroupTypeFASTQPair    = "fastq_pair"
	GroupTypeReferenceSet = "reference_set"
	GroupTypeBWAIndexSet  = "bwa_index_set"
	GroupTypeVCFIndex     = "vcf_index"
	GroupTypeOmicsReadSet = "omics_readset"
)

// rule is one entry of the ordered association table. Earlier rules win
// when more than one could claim the same primary.
//
// pattern is the primary-path expression used by DetermineGroupType.
// triggers lists the file-name suffixes (lowercase) that can possibly
// start this rule; the extension index is built from them. build
// resolves the full group from any triggering member, or returns nil
// when the rule does not apply. build must be a pure function of the
// file set so grouping is order-invariant.
type rule struct {
	groupType string
	pattern   *regexp.Regexp
	triggers  []string
	build     func(f *genomics.GenomicsFile, files *fileIndex) *groupMatch
}

// groupMatch is an un-finalized group: the chosen primary plus every
// companion the rule found. All members are marked consumed together.
type groupMatch struct {
	primary    *genomics.GenomicsFile
	associated []*genomics.GenomicsFile
}

// fileIndex provides exact-path lookup over the deduplicated input set.
// Files already claimed by a group are invisible to further lookups, so
// a companion is used at most once.
type fileIndex struct {
	byPath   map[string]*genomics.GenomicsFile
	consumed map[string]bool
}

func newFileIndex(files []*genomics.GenomicsFile) *fileIndex {
	idx := &fileIndex{byPath: make(map[string]*genomics.GenomicsFile, len(files))}
	for _, f := range files {
		idx.byPath[f.Path] = f
	}
	return idx
}

func (idx *fileIndex) get(path string) (*genomics.GenomicsFile, bool) {
	if idx.consumed != nil && idx.consumed[path] {
		return nil, false
	}
	f, ok := idx.byPath[path]
	return f, ok
}

// collect returns the files present at the given paths, in path order.
func (idx *fileIndex) collect(paths ...string) []*genomics.GenomicsFile {
	var out []*genomics.GenomicsFile
	for _, p := range paths {
		if f, ok := idx.get(p); ok {
			out = append(out, f)
		}
	}
	return out
}

// trimSuffixFold removes suffix from s if it matches case-insensitively.
func trimSuffixFold(s, suffix string) (string, bool) {
	if len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix) {
		return s[:len(s)-len(suffix)], true
	}
	return s, false
}

// defaultRules builds the ordered rule table. Pattern compilation
// happens once at engine construction.
func defaultRules() []rule {
	return []rule{
		omicsReadSetRule(),
		bamIndexRule(),
		cramIndexRule(),
		fastqPairRule(),
		referenceSetRule(),
		bwaIndexSetRule(),
		vcfIndexRule(),
	}
}

// sidecarIndexRule pairs an alignment or variant file with its index by
// suffix convention: the index lives either at <path><indexSuffix> or at
// <base><altSuffix> where base is the path minus primaryExt.
func sidecarIndexRule(groupType, primaryExt, indexSuffix, altSuffix string, pattern *regexp.Regexp, triggers []string) rule {
	return rule{
		groupType: groupType,
		pattern:   pattern,
		triggers:  triggers,
		build: func(f *genomics.GenomicsFile, files *fileIndex) *groupMatch {
			base := primaryBase(f.Path, primaryExt, indexSuffix, altSuffix)
			if base == "" {
				return nil
			}
			primary, ok := files.get(base + primaryExt)
			if !ok {
				// Index without its data file; no group.
				return nil
			}
			associated := files.collect(base+primaryExt+indexSuffix, base+altSuffix)
			if len(associated) == 0 {
				return nil
			}
			return &groupMatch{primary: primary, associated: associated}
		},
	}
}

// primaryBase strips whichever of the three suffix shapes the path has
// and returns the shared base name, or "" when none applies.
func primaryBase(path, primaryExt, indexSuffix, altSuffix string) string {
	if base, ok := trimSuffixFold(path, primaryExt+indexSuffix); ok {
		return base
	}
	if base, ok := trimSuffixFold(path, primaryExt); ok {
		return base
	}
	if base, ok := trimSuffixFold(path, altSuffix); ok {
		return base
	}
	return ""
}

func bamIndexRule() rule {
	return sidecarIndexRule(
		GroupTypeBAMIndex,
		".bam", ".bai", ".bai",
		regexp.MustCompile(`(?i)\.bam$`),
		[]string{".bam", ".bai", ".bam.bai"},
	)
}

func cramIndexRule() rule {
	return sidecarIndexRule(
		GroupTypeCRAMIndex,
		".cram", ".crai", ".crai",
		regexp.MustCompile(`(?i)\.cram$`),
		[]string{".cram", ".crai", ".cram.crai"},
	)
}

// pairMarker matches paired-read naming: an optional separator followed
// by R1/R2 or 1/2 immediately before the fastq extension. Both
// underscore and dot separators are accepted.
var pairMarker = regexp.MustCompile(`(?i)^(.+?)([._])(R?)([12])(\.(?:fastq|fq)(?:\.gz)?)$`)

func fastqPairRule() rule {
	return rule{
		groupType: GroupTypeFASTQPair,
		pattern:   regexp.MustCompile(`(?i)[._]R?[12]\.(fastq|fq)(\.gz)?$`),
		triggers:  []string{".fastq", ".fastq.gz", ".fq", ".fq.gz"},
		build: func(f *genomics.GenomicsFile, files *fileIndex) *groupMatch {
			m := pairMarker.FindStringSubmatch(f.Path)
			if m == nil {
				return nil
			}
			stem, sep, prefix, num, ext := m[1], m[2], m[3], m[4], m[5]
			other := "2"
			if num == "2" {
				other = "1"
			}
			mate, ok := files.get(stem + sep + prefix + other + ext)
			if !ok {
				return nil
			}
			first, second := f, mate
			if num == "2" {
				first, second = mate, f
			}
			return &groupMatch{primary: first, associated: []*genomics.GenomicsFile{second}}
		},
	}
}

var fastaExts = []string{".fasta", ".fa", ".fna"}

// fastaBase returns the path minus its FASTA extension and the extension
// itself, or ok=false when the path is not a FASTA file.
func fastaBase(path string) (base, ext string, ok bool) {
	for _, e := range fastaExts {
		if b, found := trimSuffixFold(path, e); found {
			return b, path[len(b):], true
		}
	}
	return "", "", false
}

func referenceSetRule() rule {
	return rule{
		groupType: GroupTypeReferenceSet,
		pattern:   regexp.MustCompile(`(?i)\.(fasta|fa|fna)$`),
		triggers:  []string{".fasta", ".fa", ".fna", ".fai", ".dict"},
		build: func(f *genomics.GenomicsFile, files *fileIndex) *groupMatch {
			fastaPath := f.Path
			if trimmed, ok := trimSuffixFold(fastaPath, ".fai"); ok {
				fastaPath = trimmed
			} else if base, ok := trimSuffixFold(fastaPath, ".dict"); ok {
				// <name>.dict sits beside <name>.<fasta ext>.
				fastaPath = findFasta(base, files)
			}
			primary, ok := files.get(fastaPath)
			if !ok {
				return nil
			}
			base, _, isFasta := fastaBase(primary.Path)
			if !isFasta {
				return nil
			}
			associated := files.collect(primary.Path+".fai", base+".dict", primary.Path+".dict")
			if len(associated) == 0 {
				return nil
			}
			return &groupMatch{primary: primary, associated: associated}
		},
	}
}

// findFasta returns the first existing FASTA path with the given base
// name, or "" when none is present.
func findFasta(base string, files *fileIndex) string {
	for _, e := range fastaExts {
		if _, ok := files.get(base + e); ok {
			return base + e
		}
	}
	return ""
}

// bwaExts are the five BWA index companion extensions, in anchor
// preference order (.bwt first).
var bwaExts = []string{".bwt", ".pac", ".amb", ".ann", ".sa"}

func bwaIndexSetRule() rule {
	return rule{
		groupType: GroupTypeBWAIndexSet,
		pattern:   regexp.MustCompile(`(?i)\.(amb|ann|bwt|pac|sa)$`),
		triggers:  []string{".amb", ".ann", ".bwt", ".pac", ".sa", ".fasta", ".fa", ".fna"},
		build: func(f *genomics.GenomicsFile, files *fileIndex) *groupMatch {
			base := bwaCollectionBase(f.Path)
			if base == "" {
				return nil
			}

			// Gather every sibling sharing the base, both plain and
			// 64-bit marker variants.
			var members []*genomics.GenomicsFile
			seen := make(map[string]bool)
			for _, ext := range bwaExts {
				for _, p := range []string{base + ext, base + ".64" + ext} {
					if m, ok := files.get(p); ok && !seen[m.Path] {
						seen[m.Path] = true
						members = append(members, m)
					}
				}
			}
			if len(members) == 0 {
				return nil
			}

			// Prefer the sequence file itself as primary when present.
			primary, ok := files.get(base)
			if ok {
				if _, _, isFasta := fastaBase(base); !isFasta {
					ok = false
				}
			}
			if !ok {
				// Anchor on the first present member in bwaExts order.
				primary = members[0]
				members = members[1:]
				if len(members) == 0 {
					return nil
				}
			}
			return &groupMatch{primary: primary, associated: members}
		},
	}
}

// bwaCollectionBase normalizes a BWA collection member path to the
// shared base name: the BWA extension and any 64-bit marker are
// stripped. A plain FASTA path is its own base.
func bwaCollectionBase(path string) string {
	for _, ext := range bwaExts {
		if base, ok := trimSuffixFold(path, ext); ok {
			if b64, has64 := trimSuffixFold(base, ".64"); has64 {
				return b64
			}
			return base
		}
	}
	if _, _, ok := fastaBase(path); ok {
		return path
	}
	return ""
}

func vcfIndexRule() rule {
	return rule{
		groupType: GroupTypeVCFIndex,
		pattern:   regexp.MustCompile(`(?i)\.(vcf|vcf\.gz|gvcf|gvcf\.gz|g\.vcf|g\.vcf\.gz|bcf)$`),
		triggers: []string{
			".vcf", ".vcf.gz", ".gvcf", ".gvcf.gz", ".g.vcf", ".g.vcf.gz",
			".bcf", ".tbi", ".csi",
		},
		build: func(f *genomics.GenomicsFile, files *fileIndex) *groupMatch {
			variantPath := f.Path
			if base, ok := trimSuffixFold(variantPath, ".tbi"); ok {
				variantPath = base
			} else if base, ok := trimSuffixFold(variantPath, ".csi"); ok {
				variantPath = base
			}
			primary, ok := files.get(variantPath)
			if !ok {
				return nil
			}
			associated := files.collect(primary.Path+".tbi", primary.Path+".csi")
			if len(associated) == 0 {
				return nil
			}
			return &groupMatch{primary: primary, associated: associated}
		},
	}
}

// omicsPath matches the managed store's structured identifiers:
// omics://<store>/readset/<id>/<role> with role source1, source2 or
// index. Association substitutes the role segment rather than matching
// file-name patterns.
var omicsPath = regexp.MustCompile(`^omics://([^/]+)/readset/([^/]+)/(source1|source2|index)$`)

var omicsRoles = []string{"source1", "source2", "index"}

func omicsReadSetRule() rule {
	return rule{
		groupType: GroupTypeOmicsReadSet,
		pattern:   omicsPath,
		// No file-name extension; reached through the check-all fallback.
		triggers: nil,
		build: func(f *genomics.GenomicsFile, files *fileIndex) *groupMatch {
			if f.SourceSystem != genomics.SourceOmics {
				return nil
			}

			// A read set that embeds its index descriptor had the
			// companion synthesized upstream; pair with it directly
			// instead of role substitution.
			if idxPath, _, ok := f.IndexSidecar(); ok {
				idx, present := files.get(idxPath)
				if !present {
					return nil
				}
				return &groupMatch{primary: f, associated: []*genomics.GenomicsFile{idx}}
			}

			m := omicsPath.FindStringSubmatch(f.Path)
			if m == nil {
				return nil
			}
			prefix := "omics://" + m[1] + "/readset/" + m[2] + "/"

			var members []*genomics.GenomicsFile
			for _, role := range omicsRoles {
				member, ok := files.get(prefix + role)
				if !ok {
					continue
				}
				if _, _, hasSidecar := member.IndexSidecar(); hasSidecar {
					continue
				}
				members = append(members, member)
			}
			if len(members) < 2 {
				return nil
			}
			return &groupMatch{primary: members[0], associated: members[1:]}
		},
	}
}
