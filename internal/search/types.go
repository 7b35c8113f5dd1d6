// Package search implements the multi-backend search orchestrator: it
// fans out to every configured storage backend in parallel, merges and
// deduplicates the discovered files, groups companions, scores and
// ranks the groups, and serves both offset-based and continuation-token
// pagination over the ranked list.
package search

import (
	"context"
	"errors"

	"github.com/seqscout/seqscout/internal/genomics"
	"github.com/seqscout/seqscout/internal/response"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// ErrInvalidMaxResults is returned when max_results is non-positive or
// above the configured limit.
var ErrInvalidMaxResults = errors.New("invalid max_results")

// Backend is one storage/search subsystem the orchestrator queries.
// Implementations are not required to swallow their own failures; the
// orchestrator isolates a failing backend to an empty contribution.
type Backend interface {
	// Name identifies the backend; it is also its slot in the global
	// continuation token.
	Name() string

	// Search returns every matching file (simple, offset mode).
	Search(ctx context.Context, q genomics.Query) ([]*genomics.GenomicsFile, error)

	// SearchPaginated returns one buffer-sized page of matching files
	// together with continuation state and a scanned-object count.
	SearchPaginated(ctx context.Context, q genomics.Query, page genomics.BackendPageRequest) (*genomics.BackendPage, error)
}

// ScoringEngine scores a file group against the query.
type ScoringEngine interface {
	CalculateScore(primary *genomics.GenomicsFile, terms []string, fileType genomics.FileType, associated []*genomics.GenomicsFile) (score float64, matchReasons []string)
}

// ResultRanker orders scored results and reports ranking statistics.
type ResultRanker interface {
	// RankResults sorts descending by score with a deterministic
	// tie-break so pagination is stable.
	RankResults(results []*genomics.GenomicsFileResult) []*genomics.GenomicsFileResult

	// ApplyPagination slices the ranked list by offset and max results.
	ApplyPagination(ranked []*genomics.GenomicsFileResult, maxResults, offset int) []*genomics.GenomicsFileResult

	// RankingStatistics summarizes the ranked list.
	RankingStatistics(ranked []*genomics.GenomicsFileResult) map[string]any
}

// ResponseBuilder assembles the transport payload.
type ResponseBuilder interface {
	BuildSearchResponse(p response.Params) *response.SearchResponse
}

// AssociationEngine groups a deduplicated file list into file groups.
type AssociationEngine interface {
	FindAssociations(files []*genomics.GenomicsFile) []*genomics.FileGroup
}
