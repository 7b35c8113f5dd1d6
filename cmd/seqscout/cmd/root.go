// Package cmd provides the CLI commands for SeqScout.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seqscout/seqscout/internal/backend"
	"github.com/seqscout/seqscout/internal/config"
	"github.com/seqscout/seqscout/internal/logging"
	"github.com/seqscout/seqscout/internal/response"
	"github.com/seqscout/seqscout/internal/scoring"
	"github.com/seqscout/seqscout/internal/search"
	"github.com/seqscout/seqscout/pkg/version"

	assocpkg "github.com/seqscout/seqscout/internal/assoc"
)

var configPath string

// NewRootCmd creates the root command for the seqscout CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seqscout",
		Short: "Genomics file search across heterogeneous storage backends",
		Long: `SeqScout locates genomics data files (reads, alignments, variant
calls, references and their companion files) across storage backends,
groups files that belong together, and returns ranked, paginated
results.

Run 'seqscout serve' to expose the search tools over MCP, or
'seqscout search' for one-shot queries.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("seqscout version {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (YAML)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// errNoBackends is reported when the configuration enables no backend
// at all. Serving an always-empty search index is almost always a
// misconfiguration worth surfacing at startup.
var errNoBackends = errors.New("no backends configured")

// buildOrchestrator assembles the search pipeline from configuration.
// The returned cleanup closes every backend.
func buildOrchestrator(cfg *config.Config) (*search.Orchestrator, func(), error) {
	var backends []search.Backend
	var closers []func() error

	if p := cfg.Backends.SQLite.Path; p != "" {
		b, err := backend.NewSQLiteBackend("sqlite", p)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite backend: %w", err)
		}
		backends = append(backends, b)
		closers = append(closers, b.Close)
	}
	if p := cfg.Backends.Bleve.Path; p != "" {
		b, err := backend.NewBleveBackend("bleve", p)
		if err != nil {
			return nil, nil, fmt.Errorf("bleve backend: %w", err)
		}
		backends = append(backends, b)
		closers = append(closers, b.Close)
	}
	for i, root := range cfg.Backends.Filesystem.Roots {
		name := "filesystem"
		if len(cfg.Backends.Filesystem.Roots) > 1 {
			name = fmt.Sprintf("filesystem-%d", i+1)
		}
		b, err := backend.NewFilesystemBackend(name, root, cfg.Backends.Filesystem.Watch)
		if err != nil {
			return nil, nil, fmt.Errorf("filesystem backend %s: %w", root, err)
		}
		backends = append(backends, b)
		closers = append(closers, b.Close)
	}
	if len(backends) == 0 {
		return nil, nil, errNoBackends
	}

	if size := cfg.Backends.ResultCacheSize; size > 0 {
		for i, b := range backends {
			backends[i] = backend.NewCachedBackend(b, size)
		}
	}

	cache := search.NewPaginationCache(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	orch, err := search.NewOrchestrator(
		backends,
		assocpkg.NewEngine(),
		scoring.NewEngine(),
		scoring.NewRanker(),
		response.NewBuilder(),
		cache,
		search.Config{
			MaxResultsLimit: cfg.Search.MaxResultsLimit,
			BackendTimeout:  cfg.Search.BackendTimeout,
			Buffer: search.BufferConfig{
				Default: cfg.Search.DefaultBufferSize,
				Min:     cfg.Search.MinBufferSize,
				Max:     cfg.Search.MaxBufferSize,
			},
			CleanupProbability: cfg.Cache.CleanupProbability,
		},
	)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	return orch, cleanup, nil
}

// setup loads config, configures logging and builds the orchestrator.
func setup() (*config.Config, *search.Orchestrator, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logging.Setup(os.Stderr, cfg.Logging.Level)

	orch, cleanup, err := buildOrchestrator(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, orch, cleanup, nil
}
