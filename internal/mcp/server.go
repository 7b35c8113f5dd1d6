// Package mcp exposes the search orchestrator to AI clients over the
// Model Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/seqscout/seqscout/internal/genomics"
	"github.com/seqscout/seqscout/internal/response"
	"github.com/seqscout/seqscout/internal/search"
	"github.com/seqscout/seqscout/pkg/version"
)

// Server is the MCP server for SeqScout.
type Server struct {
	mcp          *mcp.Server
	orchestrator *search.Orchestrator
	logger       *slog.Logger
}

// SearchInput defines the input schema for the search tools.
type SearchInput struct {
	SearchTerms            []string `json:"search_terms" jsonschema:"free-text terms to match against file paths and tags"`
	FileType               string   `json:"file_type,omitempty" jsonschema:"restrict results to one format, e.g. BAM, FASTQ, VCF"`
	MaxResults             int      `json:"max_results,omitempty" jsonschema:"maximum results per page, default 10"`
	Offset                 int      `json:"offset,omitempty" jsonschema:"number of ranked results to skip"`
	IncludeAssociatedFiles bool     `json:"include_associated_files,omitempty" jsonschema:"return companion files (indexes, pairs) with each result"`
}

// PaginatedSearchInput adds cursor fields to SearchInput.
type PaginatedSearchInput struct {
	SearchTerms            []string `json:"search_terms" jsonschema:"free-text terms to match against file paths and tags"`
	FileType               string   `json:"file_type,omitempty" jsonschema:"restrict results to one format, e.g. BAM, FASTQ, VCF"`
	MaxResults             int      `json:"max_results,omitempty" jsonschema:"maximum results per page, default 10"`
	IncludeAssociatedFiles bool     `json:"include_associated_files,omitempty" jsonschema:"return companion files (indexes, pairs) with each result"`
	ContinuationToken      string   `json:"continuation_token,omitempty" jsonschema:"opaque cursor from the previous page"`
	PaginationBufferSize   int      `json:"pagination_buffer_size,omitempty" jsonschema:"requested per-backend fetch size"`
}

// FileOutput is one file in a search result.
type FileOutput struct {
	Path         string `json:"path" jsonschema:"unique file path or identifier"`
	FileType     string `json:"file_type" jsonschema:"file format"`
	SizeBytes    int64  `json:"size_bytes,omitempty" jsonschema:"file size in bytes"`
	SourceSystem string `json:"source_system,omitempty" jsonschema:"backend that produced the file"`
}

// SearchResultOutput is one ranked file group.
type SearchResultOutput struct {
	Primary         FileOutput   `json:"primary" jsonschema:"the group's primary file"`
	AssociatedFiles []FileOutput `json:"associated_files,omitempty" jsonschema:"companion files discovered for the primary"`
	RelevanceScore  float64      `json:"relevance_score" jsonschema:"descending relevance score"`
	MatchReasons    []string     `json:"match_reasons,omitempty" jsonschema:"why this result matched"`
}

// SearchOutput defines the output schema for the search tools.
type SearchOutput struct {
	Results               []SearchResultOutput `json:"results" jsonschema:"ranked file groups"`
	TotalFound            int                  `json:"total_found" jsonschema:"total matching groups before slicing"`
	DurationMs            int64                `json:"duration_ms" jsonschema:"search duration in milliseconds"`
	SystemsSearched       []string             `json:"systems_searched" jsonschema:"backends queried"`
	HasMoreResults        bool                 `json:"has_more_results" jsonschema:"whether another page exists"`
	NextContinuationToken string               `json:"next_continuation_token,omitempty" jsonschema:"cursor for the next page"`
}

// NewServer creates the MCP server around an orchestrator.
func NewServer(orchestrator *search.Orchestrator) (*Server, error) {
	if orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	s := &Server{
		orchestrator: orchestrator,
		logger:       slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "SeqScout",
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Run serves MCP over the given transport until the context ends.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.mcp.Run(ctx, t)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_genomics_files",
		Description: "Search genomics files (reads, alignments, variants, references) across all configured storage backends. Groups companion files (e.g. a BAM with its BAI index) into single results, ranked by relevance.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_genomics_files_paginated",
		Description: "Cursor-paginated variant of search_genomics_files. Pass the previous response's continuation token to fetch the next page; ranking stays consistent across pages.",
	}, s.searchPaginatedHandler)

	s.logger.Debug("MCP tools registered", slog.Int("count", 2))
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	req := genomics.SearchRequest{
		FileType:               input.FileType,
		SearchTerms:            input.SearchTerms,
		MaxResults:             defaultMaxResults(input.MaxResults),
		Offset:                 input.Offset,
		IncludeAssociatedFiles: input.IncludeAssociatedFiles,
	}
	resp, err := s.orchestrator.Search(ctx, req)
	if err != nil {
		return nil, SearchOutput{}, mapError(err)
	}
	return nil, toOutput(resp), nil
}

func (s *Server) searchPaginatedHandler(ctx context.Context, _ *mcp.CallToolRequest, input PaginatedSearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	req := genomics.SearchRequest{
		FileType:               input.FileType,
		SearchTerms:            input.SearchTerms,
		MaxResults:             defaultMaxResults(input.MaxResults),
		IncludeAssociatedFiles: input.IncludeAssociatedFiles,
		ContinuationToken:      input.ContinuationToken,
		PaginationBufferSize:   input.PaginationBufferSize,
	}
	resp, err := s.orchestrator.SearchPaginated(ctx, req)
	if err != nil {
		return nil, SearchOutput{}, mapError(err)
	}
	return nil, toOutput(resp), nil
}

func defaultMaxResults(n int) int {
	if n <= 0 {
		return 10
	}
	return n
}

// mapError converts orchestrator errors to MCP tool errors. Only
// validation errors ever reach this point; everything else degrades
// inside the orchestrator.
func mapError(err error) error {
	if errors.Is(err, search.ErrInvalidMaxResults) || errors.Is(err, genomics.ErrUnknownFileType) {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return err
}

func toOutput(resp *response.SearchResponse) SearchOutput {
	out := SearchOutput{
		Results:         make([]SearchResultOutput, 0, len(resp.Results)),
		TotalFound:      resp.TotalFound,
		DurationMs:      resp.DurationMs,
		SystemsSearched: resp.SystemsSearched,
	}
	if resp.Pagination != nil {
		out.HasMoreResults = resp.Pagination.HasMoreResults
		out.NextContinuationToken = resp.Pagination.NextContinuationToken
	}
	for _, r := range resp.Results {
		ro := SearchResultOutput{
			Primary:        toFileOutput(r.PrimaryFile),
			RelevanceScore: r.RelevanceScore,
			MatchReasons:   r.MatchReasons,
		}
		for _, a := range r.AssociatedFiles {
			ro.AssociatedFiles = append(ro.AssociatedFiles, toFileOutput(a))
		}
		out.Results = append(out.Results, ro)
	}
	return out
}

func toFileOutput(f *genomics.GenomicsFile) FileOutput {
	if f == nil {
		return FileOutput{}
	}
	return FileOutput{
		Path:         f.Path,
		FileType:     string(f.FileType),
		SizeBytes:    f.SizeBytes,
		SourceSystem: f.SourceSystem,
	}
}
