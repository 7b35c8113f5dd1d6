//go:build ignore

// Generates a synthetic genomics directory tree for exercising the
// filesystem backend by hand.
// Usage: go run scripts/generate-test-corpus.go -samples 50 -output testdata/corpus
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

var (
	numSamples = flag.Int("samples", 50, "Number of samples to generate")
	outputDir  = flag.String("output", "testdata/corpus", "Output directory")
	seed       = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var projects = []string{"melanoma", "glioma", "cohort-a", "cohort-b", "trio"}

// layouts are the companion-file shapes a sample can take. Each entry
// lists the suffixes written next to the sample name.
var layouts = [][]string{
	{".bam", ".bam.bai"},
	{".bam"},
	{".cram", ".cram.crai"},
	{"_R1.fastq.gz", "_R2.fastq.gz"},
	{"_R1.fastq.gz"},
	{".vcf.gz", ".vcf.gz.tbi"},
	{".g.vcf.gz"},
}

var referenceFiles = []string{
	".fasta", ".fasta.fai", ".dict",
	".fasta.amb", ".fasta.ann", ".fasta.bwt", ".fasta.pac", ".fasta.sa",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	for i := 0; i < *numSamples; i++ {
		project := projects[rng.Intn(len(projects))]
		layout := layouts[rng.Intn(len(layouts))]
		sample := fmt.Sprintf("sample_%04d", i)

		dir := filepath.Join(*outputDir, project)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fatal(err)
		}
		for _, suffix := range layout {
			if err := writeStub(filepath.Join(dir, sample+suffix), rng); err != nil {
				fatal(err)
			}
		}
	}

	refDir := filepath.Join(*outputDir, "reference")
	if err := os.MkdirAll(refDir, 0o755); err != nil {
		fatal(err)
	}
	for _, suffix := range referenceFiles {
		if err := writeStub(filepath.Join(refDir, "hg38"+suffix), rng); err != nil {
			fatal(err)
		}
	}

	fmt.Printf("Generated %d samples under %s\n", *numSamples, *outputDir)
}

// writeStub writes a small file of random size so listings show
// realistic, varied sizes.
func writeStub(path string, rng *rand.Rand) error {
	data := make([]byte, 64+rng.Intn(4096))
	rng.Read(data)
	return os.WriteFile(path, data, 0o644)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
