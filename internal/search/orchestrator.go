package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seqscout/seqscout/internal/genomics"
	"github.com/seqscout/seqscout/internal/response"
)

// Orchestrator defaults.
const (
	DefaultMaxResultsLimit    = 100
	DefaultBackendTimeout     = 30 * time.Second
	DefaultCleanupProbability = 0.1
)

// Config tunes the orchestrator.
type Config struct {
	// MaxResultsLimit is the validation upper bound for max_results.
	MaxResultsLimit int

	// BackendTimeout wraps each backend call independently.
	BackendTimeout time.Duration

	// Buffer bounds the adaptive per-backend fetch size.
	Buffer BufferConfig

	// CleanupProbability is the per-call chance of sweeping expired
	// pagination cache entries.
	CleanupProbability float64
}

// DefaultConfig returns the standard orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		MaxResultsLimit:    DefaultMaxResultsLimit,
		BackendTimeout:     DefaultBackendTimeout,
		Buffer:             DefaultBufferConfig(),
		CleanupProbability: DefaultCleanupProbability,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxResultsLimit <= 0 {
		c.MaxResultsLimit = DefaultMaxResultsLimit
	}
	if c.BackendTimeout <= 0 {
		c.BackendTimeout = DefaultBackendTimeout
	}
	c.Buffer = c.Buffer.withDefaults()
	if c.CleanupProbability <= 0 {
		c.CleanupProbability = DefaultCleanupProbability
	}
	return c
}

// Orchestrator coordinates a search across every configured backend.
type Orchestrator struct {
	backends []Backend
	assoc    AssociationEngine
	scorer   ScoringEngine
	ranker   ResultRanker
	builder  ResponseBuilder
	cache    *PaginationCache
	config   Config
	logger   *slog.Logger

	// Injected for deterministic tests.
	now       func() time.Time
	randFloat func() float64
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock injects the time source used for durations and cache
// stamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRandSource injects the random source that triggers probabilistic
// cache cleanup, so tests can force or suppress the sweep.
func WithRandSource(f func() float64) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.randFloat = f
		}
	}
}

// NewOrchestrator wires the search pipeline. The backend list may be
// empty (searches then return empty results); every other dependency is
// required.
func NewOrchestrator(
	backends []Backend,
	assoc AssociationEngine,
	scorer ScoringEngine,
	ranker ResultRanker,
	builder ResponseBuilder,
	cache *PaginationCache,
	cfg Config,
	opts ...Option,
) (*Orchestrator, error) {
	if assoc == nil {
		return nil, fmt.Errorf("%w: association engine is required", ErrNilDependency)
	}
	if scorer == nil {
		return nil, fmt.Errorf("%w: scoring engine is required", ErrNilDependency)
	}
	if ranker == nil {
		return nil, fmt.Errorf("%w: result ranker is required", ErrNilDependency)
	}
	if builder == nil {
		return nil, fmt.Errorf("%w: response builder is required", ErrNilDependency)
	}
	if cache == nil {
		return nil, fmt.Errorf("%w: pagination cache is required", ErrNilDependency)
	}
	o := &Orchestrator{
		backends:  backends,
		assoc:     assoc,
		scorer:    scorer,
		ranker:    ranker,
		builder:   builder,
		cache:     cache,
		config:    cfg.withDefaults(),
		logger:    slog.Default(),
		now:       time.Now,
		randFloat: rand.Float64,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// validate checks the request and resolves the file-type filter.
// Validation failures are the only caller-visible errors; they are
// raised before any backend is invoked.
func (o *Orchestrator) validate(req genomics.SearchRequest) (genomics.FileType, error) {
	if req.MaxResults <= 0 || req.MaxResults > o.config.MaxResultsLimit {
		return genomics.FileTypeUnknown, fmt.Errorf("%w: %d (must be 1..%d)",
			ErrInvalidMaxResults, req.MaxResults, o.config.MaxResultsLimit)
	}
	if req.FileType == "" {
		return "", nil
	}
	return genomics.ParseFileType(req.FileType)
}

// Search executes the simple, offset-based search mode.
func (o *Orchestrator) Search(ctx context.Context, req genomics.SearchRequest) (*response.SearchResponse, error) {
	start := o.now()

	fileType, err := o.validate(req)
	if err != nil {
		return nil, err
	}
	q := genomics.Query{FileType: fileType, Terms: req.SearchTerms}

	files, systems := o.fanOut(ctx, q)
	files = dedupeByPath(files)
	files = expandEmbeddedIndexes(files)

	ranked := o.scoreAndRank(o.assoc.FindAssociations(files), req, fileType)
	total := len(ranked)
	page := o.ranker.ApplyPagination(ranked, req.MaxResults, req.Offset)

	return o.builder.BuildSearchResponse(response.Params{
		Results:         page,
		TotalFound:      total,
		DurationMs:      o.now().Sub(start).Milliseconds(),
		SystemsSearched: systems,
		Statistics:      o.ranker.RankingStatistics(ranked),
		Pagination: &response.PaginationInfo{
			MaxResults:     req.MaxResults,
			Offset:         req.Offset,
			HasMoreResults: req.Offset+len(page) < total,
		},
	}), nil
}

// SearchPaginated executes the ranking-aware cursor mode.
func (o *Orchestrator) SearchPaginated(ctx context.Context, req genomics.SearchRequest) (*response.SearchResponse, error) {
	start := o.now()

	fileType, err := o.validate(req)
	if err != nil {
		return nil, err
	}
	q := genomics.Query{FileType: fileType, Terms: req.SearchTerms}

	token := o.decodeToken(req.ContinuationToken)
	searchKey := o.searchKey(req, fileType, token.PageNumber)

	cached, _ := o.cache.Get(searchKey)
	bufferSize := OptimizeBufferSize(
		o.config.Buffer,
		req.PaginationBufferSize,
		len(req.SearchTerms),
		fileType != "",
		req.IncludeAssociatedFiles,
		cached,
	)

	pages, systems := o.fanOutPaginated(ctx, q, bufferSize, token.BackendTokens)

	var files []*genomics.GenomicsFile
	nextTokens := make(map[string]string)
	backendHasMore := false
	totalScanned := 0
	overflows := 0
	for name, p := range pages {
		files = append(files, p.Results...)
		totalScanned += p.TotalScanned
		if p.HasMoreResults {
			backendHasMore = true
			if p.NextContinuationToken != "" {
				nextTokens[name] = p.NextContinuationToken
			}
			if len(p.Results) >= bufferSize {
				overflows++
			}
		}
	}
	fetched := len(files)

	files = dedupeByPath(files)
	files = expandEmbeddedIndexes(files)
	ranked := o.scoreAndRank(o.assoc.FindAssociations(files), req, fileType)

	// Monotone cursor: never re-surface results ranked above the
	// threshold already returned on earlier pages.
	if token.LastScoreThreshold != nil {
		ranked = filterByThreshold(ranked, *token.LastScoreThreshold)
	}

	total := len(ranked)
	page := ranked
	if len(page) > req.MaxResults {
		page = page[:req.MaxResults]
	}

	hasMore := total > req.MaxResults || backendHasMore

	var encodedToken string
	outThreshold := token.LastScoreThreshold
	if hasMore {
		if len(page) > 0 {
			last := page[len(page)-1].RelevanceScore
			outThreshold = &last
		}
		out := &GlobalContinuationToken{
			BackendTokens:      nextTokens,
			PageNumber:         token.PageNumber + 1,
			TotalResultsSeen:   token.TotalResultsSeen + len(page),
			LastScoreThreshold: outThreshold,
		}
		encodedToken, err = out.Encode()
		if err != nil {
			// Degrade: the page is still valid, the caller just cannot
			// continue past it.
			o.logger.Warn("continuation token encode failed",
				slog.String("error", err.Error()))
			encodedToken = ""
		}
	}

	o.writeCacheEntry(req, fileType, token.PageNumber+1, outThreshold, nextTokens, PaginationMetrics{
		ResultsFetched:  fetched,
		ObjectsScanned:  totalScanned,
		BufferOverflows: overflows,
		Duration:        o.now().Sub(start),
	})
	o.maybeCleanup()

	return o.builder.BuildSearchResponse(response.Params{
		Results:         page,
		TotalFound:      total,
		DurationMs:      o.now().Sub(start).Milliseconds(),
		SystemsSearched: systems,
		Statistics:      o.ranker.RankingStatistics(ranked),
		Pagination: &response.PaginationInfo{
			MaxResults:            req.MaxResults,
			PageNumber:            token.PageNumber,
			HasMoreResults:        hasMore,
			NextContinuationToken: encodedToken,
			TotalScanned:          totalScanned,
			BufferSize:            bufferSize,
		},
	}), nil
}

// decodeToken parses the request's continuation token. Decode failures
// degrade to a fresh first page, never to an error.
func (o *Orchestrator) decodeToken(s string) *GlobalContinuationToken {
	if s == "" {
		return &GlobalContinuationToken{}
	}
	t, err := DecodeContinuationToken(s)
	if err != nil {
		o.logger.Warn("invalid continuation token, starting fresh",
			slog.String("error", err.Error()))
		return &GlobalContinuationToken{}
	}
	return t
}

// fanOut queries every backend concurrently in simple mode. A backend
// that fails or times out contributes nothing; siblings are unaffected.
func (o *Orchestrator) fanOut(ctx context.Context, q genomics.Query) ([]*genomics.GenomicsFile, []string) {
	results := make([][]*genomics.GenomicsFile, len(o.backends))
	systems := make([]string, len(o.backends))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range o.backends {
		systems[i] = b.Name()
		g.Go(func() error {
			bctx, cancel := context.WithTimeout(gctx, o.config.BackendTimeout)
			defer cancel()

			files, err := b.Search(bctx, q)
			if err != nil {
				o.logger.Warn("backend search failed",
					slog.String("backend", b.Name()),
					slog.String("error", err.Error()))
				return nil
			}
			results[i] = files
			return nil
		})
	}
	// Workers never return errors; Wait only observes ctx cancellation.
	_ = g.Wait()

	var merged []*genomics.GenomicsFile
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged, systems
}

// fanOutPaginated queries every backend's paginated variant
// concurrently, passing each backend its own slot of the decoded
// token. Same isolation rules as fanOut.
func (o *Orchestrator) fanOutPaginated(ctx context.Context, q genomics.Query, bufferSize int, tokens map[string]string) (map[string]*genomics.BackendPage, []string) {
	pages := make([]*genomics.BackendPage, len(o.backends))
	systems := make([]string, len(o.backends))

	g, gctx := errgroup.WithContext(ctx)
	for i, b := range o.backends {
		systems[i] = b.Name()
		g.Go(func() error {
			bctx, cancel := context.WithTimeout(gctx, o.config.BackendTimeout)
			defer cancel()

			page, err := b.SearchPaginated(bctx, q, genomics.BackendPageRequest{
				BufferSize:        bufferSize,
				ContinuationToken: tokens[b.Name()],
			})
			if err != nil {
				o.logger.Warn("backend paginated search failed",
					slog.String("backend", b.Name()),
					slog.String("error", err.Error()))
				return nil
			}
			pages[i] = page
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]*genomics.BackendPage, len(o.backends))
	for i, p := range pages {
		if p != nil {
			out[systems[i]] = p
		}
	}
	return out, systems
}

// scoreAndRank scores every file group and ranks the results. The
// include-associated-files flag controls the response content only; the
// scorer always sees the full group.
func (o *Orchestrator) scoreAndRank(groups []*genomics.FileGroup, req genomics.SearchRequest, fileType genomics.FileType) []*genomics.GenomicsFileResult {
	results := make([]*genomics.GenomicsFileResult, 0, len(groups))
	for _, g := range groups {
		score, reasons := o.scorer.CalculateScore(g.PrimaryFile, req.SearchTerms, fileType, g.AssociatedFiles)
		r := &genomics.GenomicsFileResult{
			PrimaryFile:    g.PrimaryFile,
			RelevanceScore: score,
			MatchReasons:   reasons,
		}
		if req.IncludeAssociatedFiles {
			r.AssociatedFiles = g.AssociatedFiles
		}
		results = append(results, r)
	}
	return o.ranker.RankResults(results)
}

// searchKey hashes the ranking-relevant request fields plus the page
// number, so cached metrics only ever inform the same logical query.
func (o *Orchestrator) searchKey(req genomics.SearchRequest, fileType genomics.FileType, pageNumber int) string {
	terms := append([]string(nil), req.SearchTerms...)
	sort.Strings(terms)

	names := make([]string, len(o.backends))
	for i, b := range o.backends {
		names[i] = b.Name()
	}
	sort.Strings(names)

	parts := []string{
		string(fileType),
		strings.Join(terms, ","),
		strconv.FormatBool(req.IncludeAssociatedFiles),
		strconv.Itoa(req.PaginationBufferSize),
		strings.Join(names, ","),
		strconv.Itoa(pageNumber),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// writeCacheEntry stores pagination state for the next page. Cache
// problems never fail the search.
func (o *Orchestrator) writeCacheEntry(req genomics.SearchRequest, fileType genomics.FileType, nextPage int, threshold *float64, tokens map[string]string, metrics PaginationMetrics) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("pagination cache write failed",
				slog.Any("panic", r))
		}
	}()
	o.cache.Put(&CacheEntry{
		SearchKey:      o.searchKey(req, fileType, nextPage),
		PageNumber:     nextPage,
		ScoreThreshold: threshold,
		BackendTokens:  tokens,
		Metrics:        metrics,
	})
}

// maybeCleanup sweeps expired cache entries with a small fixed
// probability per call.
func (o *Orchestrator) maybeCleanup() {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("pagination cache cleanup failed",
				slog.Any("panic", r))
		}
	}()
	if o.randFloat() >= o.config.CleanupProbability {
		return
	}
	if removed := o.cache.Cleanup(); removed > 0 {
		o.logger.Debug("pagination cache cleanup",
			slog.Int("removed", removed))
	}
}

// dedupeByPath keeps the first occurrence of every path.
func dedupeByPath(files []*genomics.GenomicsFile) []*genomics.GenomicsFile {
	seen := make(map[string]bool, len(files))
	out := files[:0]
	for _, f := range files {
		if seen[f.Path] {
			continue
		}
		seen[f.Path] = true
		out = append(out, f)
	}
	return out
}

// expandEmbeddedIndexes synthesizes a standalone companion entry for
// every file carrying an index-sidecar descriptor, so the association
// engine sees both halves even when a backend lists only the primary.
func expandEmbeddedIndexes(files []*genomics.GenomicsFile) []*genomics.GenomicsFile {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f.Path] = true
	}
	out := files
	for _, f := range files {
		idxPath, idxType, ok := f.IndexSidecar()
		if !ok || present[idxPath] {
			continue
		}
		present[idxPath] = true
		out = append(out, &genomics.GenomicsFile{
			Path:         idxPath,
			FileType:     idxType,
			StorageClass: f.StorageClass,
			LastModified: f.LastModified,
			SourceSystem: f.SourceSystem,
		})
	}
	return out
}

// filterByThreshold keeps ranked results scoring at or below the
// incoming page threshold.
func filterByThreshold(ranked []*genomics.GenomicsFileResult, threshold float64) []*genomics.GenomicsFileResult {
	out := make([]*genomics.GenomicsFileResult, 0, len(ranked))
	for _, r := range ranked {
		if r.RelevanceScore <= threshold {
			out = append(out, r)
		}
	}
	return out
}
