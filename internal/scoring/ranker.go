package scoring

import (
	"sort"

	"github.com/seqscout/seqscout/internal/genomics"
)

// Ranker is the default result ranker.
type Ranker struct{}

// NewRanker returns the default ranker.
func NewRanker() *Ranker {
	return &Ranker{}
}

// RankResults sorts descending by relevance score. Ties break on the
// primary file path so pagination over equal scores stays stable.
func (r *Ranker) RankResults(results []*genomics.GenomicsFileResult) []*genomics.GenomicsFileResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RelevanceScore != results[j].RelevanceScore {
			return results[i].RelevanceScore > results[j].RelevanceScore
		}
		return results[i].PrimaryFile.Path < results[j].PrimaryFile.Path
	})
	return results
}

// ApplyPagination slices the ranked list by offset and max results.
func (r *Ranker) ApplyPagination(ranked []*genomics.GenomicsFileResult, maxResults, offset int) []*genomics.GenomicsFileResult {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ranked) {
		return []*genomics.GenomicsFileResult{}
	}
	end := offset + maxResults
	if maxResults <= 0 || end > len(ranked) {
		end = len(ranked)
	}
	return ranked[offset:end]
}

// RankingStatistics summarizes a ranked list: result count, score
// spread and the group-size distribution.
func (r *Ranker) RankingStatistics(ranked []*genomics.GenomicsFileResult) map[string]any {
	stats := map[string]any{
		"total_results": len(ranked),
	}
	if len(ranked) == 0 {
		return stats
	}

	sum := 0.0
	withAssociated := 0
	for _, res := range ranked {
		sum += res.RelevanceScore
		if len(res.AssociatedFiles) > 0 {
			withAssociated++
		}
	}
	stats["max_score"] = ranked[0].RelevanceScore
	stats["min_score"] = ranked[len(ranked)-1].RelevanceScore
	stats["mean_score"] = sum / float64(len(ranked))
	stats["results_with_associated_files"] = withAssociated
	return stats
}
