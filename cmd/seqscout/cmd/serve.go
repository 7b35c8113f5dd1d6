package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	seqmcp "github.com/seqscout/seqscout/internal/mcp"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Starts the SeqScout MCP server on stdin/stdout. MCP clients can
then call the search_genomics_files and search_genomics_files_paginated
tools. Logs go to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, orch, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			srv, err := seqmcp.NewServer(orch)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			slog.Info("starting MCP server", slog.String("transport", "stdio"))
			return srv.Run(ctx, &mcp.StdioTransport{})
		},
	}
}
