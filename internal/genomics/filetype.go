package genomics

import (
	"fmt"
	"strings"
)

// FileType identifies the format of a genomics file.
type FileType string

const (
	FileTypeBAM    FileType = "BAM"
	FileTypeBAI    FileType = "BAI"
	FileTypeCRAM   FileType = "CRAM"
	FileTypeCRAI   FileType = "CRAI"
	FileTypeFASTQ  FileType = "FASTQ"
	FileTypeFASTA  FileType = "FASTA"
	FileTypeFAI    FileType = "FAI"
	FileTypeDICT   FileType = "DICT"
	FileTypeVCF    FileType = "VCF"
	FileTypeGVCF   FileType = "GVCF"
	FileTypeBCF    FileType = "BCF"
	FileTypeTBI    FileType = "TBI"
	FileTypeCSI    FileType = "CSI"
	FileTypeBWAAMB FileType = "BWA_AMB"
	FileTypeBWAANN FileType = "BWA_ANN"
	FileTypeBWABWT FileType = "BWA_BWT"
	FileTypeBWAPAC FileType = "BWA_PAC"
	FileTypeBWASA  FileType = "BWA_SA"
	FileTypeBED    FileType = "BED"
	FileTypeGFF    FileType = "GFF"

	// FileTypeUnknown marks files whose format could not be classified.
	FileTypeUnknown FileType = "UNKNOWN"
)

// ErrUnknownFileType is returned when a file type string is not in the
// closed enum.
var ErrUnknownFileType = fmt.Errorf("unknown file type")

var fileTypes = map[string]FileType{
	"BAM":     FileTypeBAM,
	"BAI":     FileTypeBAI,
	"CRAM":    FileTypeCRAM,
	"CRAI":    FileTypeCRAI,
	"FASTQ":   FileTypeFASTQ,
	"FASTA":   FileTypeFASTA,
	"FAI":     FileTypeFAI,
	"DICT":    FileTypeDICT,
	"VCF":     FileTypeVCF,
	"GVCF":    FileTypeGVCF,
	"BCF":     FileTypeBCF,
	"TBI":     FileTypeTBI,
	"CSI":     FileTypeCSI,
	"BWA_AMB": FileTypeBWAAMB,
	"BWA_ANN": FileTypeBWAANN,
	"BWA_BWT": FileTypeBWABWT,
	"BWA_PAC": FileTypeBWAPAC,
	"BWA_SA":  FileTypeBWASA,
	"BED":     FileTypeBED,
	"GFF":     FileTypeGFF,
	"UNKNOWN": FileTypeUnknown,
}

// ParseFileType converts a string to a FileType.
// Matching is case-insensitive. Returns ErrUnknownFileType for strings
// outside the enum.
func ParseFileType(s string) (FileType, error) {
	ft, ok := fileTypes[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return FileTypeUnknown, fmt.Errorf("%w: %q", ErrUnknownFileType, s)
	}
	return ft, nil
}

// extensionTypes maps lowercase file-name suffixes to file types.
// Longer suffixes are listed so compressed variants classify correctly.
var extensionTypes = []struct {
	suffix string
	ft     FileType
}{
	{".fastq.gz", FileTypeFASTQ},
	{".fq.gz", FileTypeFASTQ},
	{".fastq", FileTypeFASTQ},
	{".fq", FileTypeFASTQ},
	{".fasta.gz", FileTypeFASTA},
	{".fa.gz", FileTypeFASTA},
	{".fasta", FileTypeFASTA},
	{".fna", FileTypeFASTA},
	{".fa", FileTypeFASTA},
	{".fai", FileTypeFAI},
	{".dict", FileTypeDICT},
	{".bam.bai", FileTypeBAI},
	{".bam", FileTypeBAM},
	{".bai", FileTypeBAI},
	{".cram.crai", FileTypeCRAI},
	{".cram", FileTypeCRAM},
	{".crai", FileTypeCRAI},
	{".g.vcf.gz", FileTypeGVCF},
	{".g.vcf", FileTypeGVCF},
	{".gvcf.gz", FileTypeGVCF},
	{".gvcf", FileTypeGVCF},
	{".vcf.gz", FileTypeVCF},
	{".vcf", FileTypeVCF},
	{".bcf", FileTypeBCF},
	{".tbi", FileTypeTBI},
	{".csi", FileTypeCSI},
	{".amb", FileTypeBWAAMB},
	{".ann", FileTypeBWAANN},
	{".bwt", FileTypeBWABWT},
	{".pac", FileTypeBWAPAC},
	{".sa", FileTypeBWASA},
	{".bed", FileTypeBED},
	{".gff3", FileTypeGFF},
	{".gff", FileTypeGFF},
	{".gtf", FileTypeGFF},
}

// FileTypeFromPath classifies a path by its file-name suffix.
// Returns FileTypeUnknown when no suffix matches.
func FileTypeFromPath(path string) FileType {
	lower := strings.ToLower(path)
	for _, e := range extensionTypes {
		if strings.HasSuffix(lower, e.suffix) {
			return e.ft
		}
	}
	return FileTypeUnknown
}
