// Package genomics defines the data model shared by the search
// orchestrator, the file association engine and the storage backends.
package genomics

import "time"

// Metadata keys under which a backend may embed index-sidecar
// information on a primary file instead of listing the index as its own
// object. The orchestrator synthesizes a standalone companion entry from
// these before association runs.
const (
	MetadataKeyIndexPath = "index_path"
	MetadataKeyIndexType = "index_type"
)

// SourceOmics is the source system identifier for the managed omics
// store whose objects use structured identifiers instead of file names.
const SourceOmics = "omics"

// GenomicsFile describes a single discovered file. Identity within a
// search is the Path; two files with equal paths are the same file.
type GenomicsFile struct {
	Path         string            `json:"path"`
	FileType     FileType          `json:"file_type"`
	SizeBytes    int64             `json:"size_bytes"`
	StorageClass string            `json:"storage_class,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	Tags         map[string]string `json:"tags,omitempty"`
	SourceSystem string            `json:"source_system"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// IndexSidecar returns the embedded index descriptor carried in the
// file's metadata, if any.
func (f *GenomicsFile) IndexSidecar() (path string, ft FileType, ok bool) {
	if f.Metadata == nil {
		return "", FileTypeUnknown, false
	}
	path, ok = f.Metadata[MetadataKeyIndexPath]
	if !ok || path == "" {
		return "", FileTypeUnknown, false
	}
	if s, present := f.Metadata[MetadataKeyIndexType]; present {
		if parsed, err := ParseFileType(s); err == nil {
			return path, parsed, true
		}
	}
	return path, FileTypeFromPath(path), true
}

// Group type tags assigned when no association rule applies.
const (
	GroupTypeSingleFile = "single_file"
	GroupTypeUnknown    = "unknown_association"
)

// FileGroup is a primary file plus its companions, treated as one
// search result. Groups are immutable once built and never merged.
type FileGroup struct {
	PrimaryFile     *GenomicsFile   `json:"primary_file"`
	AssociatedFiles []*GenomicsFile `json:"associated_files,omitempty"`
	GroupType       string          `json:"group_type"`
}

// GenomicsFileResult is a scored file group.
type GenomicsFileResult struct {
	PrimaryFile     *GenomicsFile   `json:"primary_file"`
	AssociatedFiles []*GenomicsFile `json:"associated_files,omitempty"`
	RelevanceScore  float64         `json:"relevance_score"`
	MatchReasons    []string        `json:"match_reasons,omitempty"`
}

// SearchRequest carries one search invocation's parameters.
type SearchRequest struct {
	// FileType restricts results to one format. Empty means no filter.
	FileType string `json:"file_type,omitempty"`

	// SearchTerms are the free-text query terms.
	SearchTerms []string `json:"search_terms"`

	// MaxResults bounds the page size. Must be positive and within the
	// configured limit.
	MaxResults int `json:"max_results"`

	// Offset is the number of ranked results to skip (simple mode only).
	Offset int `json:"offset,omitempty"`

	// IncludeAssociatedFiles selects whether companions are returned
	// with each result.
	IncludeAssociatedFiles bool `json:"include_associated_files,omitempty"`

	// ContinuationToken resumes a paginated search. Opaque; a corrupted
	// token degrades to a fresh first page.
	ContinuationToken string `json:"continuation_token,omitempty"`

	// PaginationBufferSize is the requested per-backend fetch size for
	// paginated searches. Zero selects the configured default.
	PaginationBufferSize int `json:"pagination_buffer_size,omitempty"`
}

// Query is the backend-facing slice of a SearchRequest.
type Query struct {
	FileType FileType
	Terms    []string
}

// BackendPageRequest configures one paginated backend call.
type BackendPageRequest struct {
	// BufferSize is the maximum number of files the backend should
	// return for this page.
	BufferSize int

	// ContinuationToken is this backend's slot of the decoded global
	// token. Empty starts from the beginning.
	ContinuationToken string
}

// BackendPage is one backend's contribution to a paginated search.
type BackendPage struct {
	Results               []*GenomicsFile
	HasMoreResults        bool
	NextContinuationToken string
	TotalScanned          int
}
