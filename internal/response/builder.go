// Package response assembles the transport payload returned by a
// search. It owns the wire shape; the orchestrator only fills in the
// pieces.
package response

import "github.com/seqscout/seqscout/internal/genomics"

// PaginationInfo describes the page of a search response.
type PaginationInfo struct {
	MaxResults            int    `json:"max_results"`
	Offset                int    `json:"offset,omitempty"`
	PageNumber            int    `json:"page_number,omitempty"`
	HasMoreResults        bool   `json:"has_more_results"`
	NextContinuationToken string `json:"next_continuation_token,omitempty"`
	TotalScanned          int    `json:"total_scanned,omitempty"`
	BufferSize            int    `json:"buffer_size,omitempty"`
}

// SearchResponse is the final search payload.
type SearchResponse struct {
	Results         []*genomics.GenomicsFileResult `json:"results"`
	TotalFound      int                            `json:"total_found"`
	DurationMs      int64                          `json:"duration_ms"`
	SystemsSearched []string                       `json:"systems_searched"`
	Statistics      map[string]any                 `json:"statistics,omitempty"`
	Pagination      *PaginationInfo                `json:"pagination,omitempty"`
}

// Params carries everything the builder needs for one response.
type Params struct {
	Results         []*genomics.GenomicsFileResult
	TotalFound      int
	DurationMs      int64
	SystemsSearched []string
	Statistics      map[string]any
	Pagination      *PaginationInfo
}

// Builder assembles search responses.
type Builder struct{}

// NewBuilder returns a response builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildSearchResponse assembles the final payload. Results are never
// nil in the output so the payload serializes as an empty list rather
// than null.
func (b *Builder) BuildSearchResponse(p Params) *SearchResponse {
	results := p.Results
	if results == nil {
		results = []*genomics.GenomicsFileResult{}
	}
	systems := p.SystemsSearched
	if systems == nil {
		systems = []string{}
	}
	return &SearchResponse{
		Results:         results,
		TotalFound:      p.TotalFound,
		DurationMs:      p.DurationMs,
		SystemsSearched: systems,
		Statistics:      p.Statistics,
		Pagination:      p.Pagination,
	}
}
