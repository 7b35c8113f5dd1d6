package assoc

import (
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqscout/seqscout/internal/genomics"
)

func file(path string) *genomics.GenomicsFile {
	return &genomics.GenomicsFile{
		Path:         path,
		FileType:     genomics.FileTypeFromPath(path),
		SourceSystem: "test",
	}
}

func omicsFile(path string, metadata map[string]string) *genomics.GenomicsFile {
	return &genomics.GenomicsFile{
		Path:         path,
		FileType:     genomics.FileTypeBAM,
		SourceSystem: genomics.SourceOmics,
		Metadata:     metadata,
	}
}

// groupFor returns the group whose primary has the given path.
func groupFor(t *testing.T, groups []*genomics.FileGroup, primaryPath string) *genomics.FileGroup {
	t.Helper()
	for _, g := range groups {
		if g.PrimaryFile.Path == primaryPath {
			return g
		}
	}
	t.Fatalf("no group with primary %s", primaryPath)
	return nil
}

func associatedPaths(g *genomics.FileGroup) []string {
	paths := make([]string, 0, len(g.AssociatedFiles))
	for _, f := range g.AssociatedFiles {
		paths = append(paths, f.Path)
	}
	sort.Strings(paths)
	return paths
}

func TestFindAssociations_BAMWithIndex(t *testing.T) {
	// Given: a BAM and its sidecar index
	engine := NewEngine()
	files := []*genomics.GenomicsFile{
		file("/data/sample.bam"),
		file("/data/sample.bam.bai"),
	}

	// When: associations are computed
	groups := engine.FindAssociations(files)

	// Then: one group, BAM primary, index as companion
	require.Len(t, groups, 1)
	assert.Equal(t, GroupTypeBAMIndex, groups[0].GroupType)
	assert.Equal(t, "/data/sample.bam", groups[0].PrimaryFile.Path)
	assert.Equal(t, []string{"/data/sample.bam.bai"}, associatedPaths(groups[0]))
}

func TestFindAssociations_BAMWithAlternateIndexName(t *testing.T) {
	// The index can also sit at <base>.bai instead of <base>.bam.bai.
	engine := NewEngine()
	groups := engine.FindAssociations([]*genomics.GenomicsFile{
		file("/data/sample.bai"),
		file("/data/sample.bam"),
	})

	require.Len(t, groups, 1)
	assert.Equal(t, GroupTypeBAMIndex, groups[0].GroupType)
	assert.Equal(t, "/data/sample.bam", groups[0].PrimaryFile.Path)
	assert.Equal(t, []string{"/data/sample.bai"}, associatedPaths(groups[0]))
}

func TestFindAssociations_IndexWithoutData_IsSingleton(t *testing.T) {
	engine := NewEngine()
	groups := engine.FindAssociations([]*genomics.GenomicsFile{
		file("/data/orphan.bam.bai"),
	})

	require.Len(t, groups, 1)
	assert.Equal(t, genomics.GroupTypeSingleFile, groups[0].GroupType)
	assert.Empty(t, groups[0].AssociatedFiles)
}

func TestFindAssociations_CRAMWithIndex(t *testing.T) {
	engine := NewEngine()
	groups := engine.FindAssociations([]*genomics.GenomicsFile{
		file("/data/sample.cram"),
		file("/data/sample.cram.crai"),
	})

	require.Len(t, groups, 1)
	assert.Equal(t, GroupTypeCRAMIndex, groups[0].GroupType)
	assert.Equal(t, "/data/sample.cram", groups[0].PrimaryFile.Path)
}

func TestFindAssociations_FASTQPair(t *testing.T) {
	engine := NewEngine()
	groups := engine.FindAssociations([]*genomics.GenomicsFile{
		file("/runs/sample_R2.fastq.gz"),
		file("/runs/sample_R1.fastq.gz"),
	})

	// R1 is the primary regardless of input order.
	require.Len(t, groups, 1)
	assert.Equal(t, GroupTypeFASTQPair, groups[0].GroupType)
	assert.Equal(t, "/runs/sample_R1.fastq.gz", groups[0].PrimaryFile.Path)
	assert.Equal(t, []string{"/runs/sample_R2.fastq.gz"}, associatedPaths(groups[0]))
}

func TestFindAssociations_FASTQPair_NumericNaming(t *testing.T) {
	engine := NewEngine()
	groups := engine.FindAssociations([]*genomics.GenomicsFile{
		file("/runs/lane3.1.fq"),
		file("/runs/lane3.2.fq"),
	})

	require.Len(t, groups, 1)
	assert.Equal(t, GroupTypeFASTQPair, groups[0].GroupType)
	assert.Equal(t, "/runs/lane3.1.fq", groups[0].PrimaryFile.Path)
}

func TestFindAssociations_UnpairedFASTQ_IsSingleton(t *testing.T) {
	engine := NewEngine()
	groups := engine.FindAssociations([]*genomics.GenomicsFile{
		file("/runs/sample_R1.fastq.gz"),
	})

	require.Len(t, groups, 1)
	assert.Equal(t, genomics.GroupTypeSingleFile, groups[0].GroupType)
}

func TestFindAssociations_ReferenceSet(t *testing.T) {
	engine := NewEngine()
	groups := engine.FindAssociations([]*genomics.GenomicsFile{
		file("/ref/hg38.fasta"),
		file("/ref/hg38.fasta.fai"),
		file("/ref/hg38.dict"),
	})

	require.Len(t, groups, 1)
	assert.Equal(t, GroupTypeReferenceSet, groups[0].GroupType)
	assert.Equal(t, "/ref/hg38.fasta", groups[0].PrimaryFile.Path)
	assert.Equal(t, []string{"/ref/hg38.dict", "/ref/hg38.fasta.fai"}, associatedPaths(groups[0]))
}

func TestFindAssociations_BWAIndexSet_FASTAPrimary(t *testing.T) {
	// Given: a FASTA plus its full BWA index collection
	engine := NewEngine()
	files := []*genomics.GenomicsFile{
		file("/ref/hg38.fasta"),
		file("/ref/hg38.fasta.amb"),
		file("/ref/hg38.fasta.ann"),
		file("/ref/hg38.fasta.bwt"),
		file("/ref/hg38.fasta.pac"),
		file("/ref/hg38.fasta.sa"),
	}

	groups := engine.FindAssociations(files)

	// Then: the FASTA anchors the set with all five companions
	require.Len(t, groups, 1)
	assert.Equal(t, GroupTypeBWAIndexSet, groups[0].GroupType)
	assert.Equal(t, "/ref/hg38.fasta", groups[0].PrimaryFile.Path)
	assert.Len(t, groups[0].AssociatedFiles, 5)
}

func TestFindAssociations_BWAIndexSet_WithoutFASTA(t *testing.T) {
	// The collection still groups when the sequence file is absent; the
	// first member in extension precedence anchors it.
	engine := NewEngine()
	groups := engine.FindAssociations([]*genomics.GenomicsFile{
		file("/ref/hg38.fasta.sa"),
		file("/ref/hg38.fasta.bwt"),
		file("/ref/hg38.fasta.pac"),
	})

	require.Len(t, groups, 1)
	assert.Equal(t, GroupTypeBWAIndexSet, groups[0].GroupType)
	assert.Equal(t, "/ref/hg38.fasta.bwt", groups[0].PrimaryFile.Path)
	assert.Len(t, groups[0].AssociatedFiles, 2)
}

func TestFindAssociations_ReferenceSetWinsOverBWA(t *testing.T) {
	// A FASTA with both a .fai and BWA companions: the reference rule is
	// earlier in the table, so it claims the FASTA; the BWA members then
	// group among themselves.
	engine := NewEngine()
	groups := engine.FindAssociations([]*genomics.GenomicsFile{
		file("/ref/hg38.fasta"),
		file("/ref/hg38.fasta.fai"),
		file("/ref/hg38.fasta.bwt"),
		file("/ref/hg38.fasta.pac"),
	})

	require.Len(t, groups, 2)
	ref := groupFor(t, groups, "/ref/hg38.fasta")
	assert.Equal(t, GroupTypeReferenceSet, ref.GroupType)
	assert.Equal(t, []string{"/ref/hg38.fasta.fai"}, associatedPaths(ref))

	bwa := groupFor(t, groups, "/ref/hg38.fasta.bwt")
	assert.Equal(t, GroupTypeBWAIndexSet, bwa.GroupType)
	assert.Equal(t, []string{"/ref/hg38.fasta.pac"}, associatedPaths(bwa))
}

func TestFindAssociations_VCFWithTabixIndex(t *testing.T) {
	engine := NewEngine()
	groups := engine.FindAssociations([]*genomics.GenomicsFile{
		file("/calls/cohort.vcf.gz"),
		file("/calls/cohort.vcf.gz.tbi"),
	})

	require.Len(t, groups, 1)
	assert.Equal(t, GroupTypeVCFIndex, groups[0].GroupType)
	assert.Equal(t, "/calls/cohort.vcf.gz", groups[0].PrimaryFile.Path)
	assert.Equal(t, []string{"/calls/cohort.vcf.gz.tbi"}, associatedPaths(groups[0]))
}

func TestFindAssociations_OmicsReadSet_RoleSubstitution(t *testing.T) {
	engine := NewEngine()
	groups := engine.FindAssociations([]*genomics.GenomicsFile{
		omicsFile("omics://store1/readset/rs42/index", nil),
		omicsFile("omics://store1/readset/rs42/source1", nil),
		omicsFile("omics://store1/readset/rs42/source2", nil),
	})

	require.Len(t, groups, 1)
	assert.Equal(t, GroupTypeOmicsReadSet, groups[0].GroupType)
	assert.Equal(t, "omics://store1/readset/rs42/source1", groups[0].PrimaryFile.Path)
	assert.Len(t, groups[0].AssociatedFiles, 2)
}

func TestFindAssociations_OmicsReadSet_EmbeddedSidecar(t *testing.T) {
	// A read set carrying its index descriptor pairs with the synthesized
	// sidecar entry by exact path, not by role substitution.
	engine := NewEngine()
	source := omicsFile("omics://store1/readset/rs7/source1", map[string]string{
		genomics.MetadataKeyIndexPath: "omics://store1/readset/rs7/index",
		genomics.MetadataKeyIndexType: "BAI",
	})
	sidecar := omicsFile("omics://store1/readset/rs7/index", nil)

	groups := engine.FindAssociations([]*genomics.GenomicsFile{source, sidecar})

	require.Len(t, groups, 1)
	assert.Equal(t, GroupTypeOmicsReadSet, groups[0].GroupType)
	assert.Equal(t, source.Path, groups[0].PrimaryFile.Path)
	assert.Equal(t, []string{sidecar.Path}, associatedPaths(groups[0]))
}

func TestFindAssociations_StandaloneFile_IsSingleton(t *testing.T) {
	engine := NewEngine()
	groups := engine.FindAssociations([]*genomics.GenomicsFile{
		file("/annot/regions.bed"),
	})

	require.Len(t, groups, 1)
	assert.Equal(t, genomics.GroupTypeSingleFile, groups[0].GroupType)
	assert.Equal(t, "/annot/regions.bed", groups[0].PrimaryFile.Path)
}

func TestFindAssociations_CompanionUsedOnce(t *testing.T) {
	// Two BAMs cannot both claim the same index file.
	engine := NewEngine()
	groups := engine.FindAssociations([]*genomics.GenomicsFile{
		file("/data/a.bam"),
		file("/data/a.bam.bai"),
		file("/data/b.bam"),
	})

	require.Len(t, groups, 2)
	a := groupFor(t, groups, "/data/a.bam")
	assert.Equal(t, GroupTypeBAMIndex, a.GroupType)
	b := groupFor(t, groups, "/data/b.bam")
	assert.Equal(t, genomics.GroupTypeSingleFile, b.GroupType)

	total := 0
	for _, g := range groups {
		total += 1 + len(g.AssociatedFiles)
	}
	assert.Equal(t, 3, total, "every input file appears exactly once")
}

func TestFindAssociations_OrderInvariant(t *testing.T) {
	// Given: a mixed file set covering several rules
	paths := []string{
		"/data/sample.bam",
		"/data/sample.bam.bai",
		"/runs/sample_R1.fastq.gz",
		"/runs/sample_R2.fastq.gz",
		"/ref/hg38.fasta",
		"/ref/hg38.fasta.fai",
		"/calls/cohort.vcf.gz",
		"/calls/cohort.vcf.gz.tbi",
		"/annot/regions.bed",
	}
	engine := NewEngine()

	fingerprint := func(groups []*genomics.FileGroup) string {
		lines := make([]string, 0, len(groups))
		for _, g := range groups {
			lines = append(lines, g.GroupType+"|"+g.PrimaryFile.Path+"|"+strings.Join(associatedPaths(g), ","))
		}
		sort.Strings(lines)
		return strings.Join(lines, "\n")
	}

	base := make([]*genomics.GenomicsFile, len(paths))
	for i, p := range paths {
		base[i] = file(p)
	}
	want := fingerprint(engine.FindAssociations(base))

	// When: the same set arrives in shuffled orders
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		shuffled := make([]*genomics.GenomicsFile, len(paths))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		// Then: grouping is identical
		assert.Equal(t, want, fingerprint(engine.FindAssociations(shuffled)), "iteration %d", i)
	}
}

func TestFindAssociations_PreFilterMatchesCheckAll(t *testing.T) {
	// Given: the same rule table with the extension index disabled, so
	// every file checks every rule
	indexed := NewEngine()
	checkAll := defaultRules()
	for i := range checkAll {
		checkAll[i].triggers = nil
	}
	exhaustive := newEngineWithRules(checkAll)

	files := []*genomics.GenomicsFile{
		file("/data/sample.bam"),
		file("/data/sample.bam.bai"),
		file("/runs/sample_R1.fastq.gz"),
		file("/runs/sample_R2.fastq.gz"),
		file("/ref/hg38.fasta"),
		file("/ref/hg38.fasta.bwt"),
		file("/ref/hg38.fasta.pac"),
		file("/calls/cohort.vcf.gz"),
		file("/calls/cohort.vcf.gz.tbi"),
		file("/annot/regions.bed"),
	}

	fingerprint := func(groups []*genomics.FileGroup) []string {
		lines := make([]string, 0, len(groups))
		for _, g := range groups {
			lines = append(lines, g.GroupType+"|"+g.PrimaryFile.Path+"|"+strings.Join(associatedPaths(g), ","))
		}
		sort.Strings(lines)
		return lines
	}

	// Then: grouping is identical with and without the pre-filter
	assert.Equal(t,
		fingerprint(exhaustive.FindAssociations(files)),
		fingerprint(indexed.FindAssociations(files)))
}

func TestCandidateRules_FallsBackToAllRules(t *testing.T) {
	engine := NewEngine()

	candidates, recognized := engine.candidateRules(file("/weird/object.unknownext"))

	assert.False(t, recognized)
	assert.Len(t, candidates, len(engine.rules))
}

func TestCandidateRules_LongestSuffixWins(t *testing.T) {
	engine := NewEngine()

	candidates, recognized := engine.candidateRules(file("/data/sample.bam.bai"))

	require.True(t, recognized)
	assert.Equal(t, engine.extIndex[".bam.bai"], candidates)
}

func TestDetermineGroupType(t *testing.T) {
	engine := NewEngine()
	bai := file("/data/sample.bam.bai")

	assert.Equal(t, genomics.GroupTypeUnknown, engine.DetermineGroupType(nil, nil))
	assert.Equal(t, genomics.GroupTypeSingleFile, engine.DetermineGroupType(file("/data/sample.bam"), nil))
	assert.Equal(t, GroupTypeBAMIndex,
		engine.DetermineGroupType(file("/data/sample.bam"), []*genomics.GenomicsFile{bai}))
	assert.Equal(t, genomics.GroupTypeUnknown,
		engine.DetermineGroupType(file("/data/notes.txt"), []*genomics.GenomicsFile{bai}))
}
