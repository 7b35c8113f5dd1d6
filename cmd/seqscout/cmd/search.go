package cmd

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/seqscout/seqscout/internal/genomics"
)

func newSearchCmd() *cobra.Command {
	var (
		fileType   string
		maxResults int
		offset     int
		includeAll bool
		token      string
		paginated  bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "search [terms...]",
		Short: "Run a one-shot search and print the response as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, orch, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			req := genomics.SearchRequest{
				FileType:               fileType,
				SearchTerms:            args,
				MaxResults:             maxResults,
				Offset:                 offset,
				IncludeAssociatedFiles: includeAll,
				ContinuationToken:      token,
			}

			var result any
			if paginated || token != "" {
				result, err = orch.SearchPaginated(ctx, req)
			} else {
				result, err = orch.Search(ctx, req)
			}
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&fileType, "type", "", "File type filter (e.g. BAM, FASTQ, VCF)")
	cmd.Flags().IntVar(&maxResults, "max-results", 10, "Maximum results per page")
	cmd.Flags().IntVar(&offset, "offset", 0, "Result offset (offset pagination)")
	cmd.Flags().BoolVar(&includeAll, "associated", true, "Include associated companion files")
	cmd.Flags().StringVar(&token, "token", "", "Continuation token from a previous paginated page")
	cmd.Flags().BoolVar(&paginated, "paginated", false, "Use token-based pagination")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "Overall search timeout")
	return cmd
}
