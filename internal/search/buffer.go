package search

import "math"

// Buffer sizing defaults and the fixed complexity multipliers applied
// on top of the requested size.
const (
	DefaultBufferSize = 100
	DefaultMinBuffer  = 50
	DefaultMaxBuffer  = 1000

	// perTermIncrease grows the buffer for each search term beyond the
	// first; more terms spread matches thinner across backends.
	perTermIncrease = 0.2

	// typeFilterMultiplier shrinks the buffer when a file-type filter
	// narrows the scan.
	typeFilterMultiplier = 0.8

	// associatedMultiplier grows the buffer when companion files must
	// be included, since grouping collapses several files into one
	// result.
	associatedMultiplier = 1.3

	// overflowMultiplier grows the buffer after the previous page
	// recorded buffer overflows.
	overflowMultiplier = 1.5

	// Efficiency feedback from the previous page of the same query.
	lowEfficiencyThreshold  = 0.1
	highEfficiencyThreshold = 0.5
	lowEfficiencyMultiplier  = 1.4
	highEfficiencyMultiplier = 0.8
)

// BufferConfig bounds the per-backend fetch size.
type BufferConfig struct {
	Default int
	Min     int
	Max     int
}

// DefaultBufferConfig returns the standard buffer bounds.
func DefaultBufferConfig() BufferConfig {
	return BufferConfig{Default: DefaultBufferSize, Min: DefaultMinBuffer, Max: DefaultMaxBuffer}
}

func (c BufferConfig) withDefaults() BufferConfig {
	if c.Default <= 0 {
		c.Default = DefaultBufferSize
	}
	if c.Min <= 0 {
		c.Min = DefaultMinBuffer
	}
	if c.Max <= 0 {
		c.Max = DefaultMaxBuffer
	}
	return c
}

// OptimizeBufferSize derives the per-backend fetch size for this page
// from the requested size, the query's complexity, and the previous
// page's recorded metrics for the same query.
func OptimizeBufferSize(cfg BufferConfig, requested, termCount int, hasTypeFilter, includeAssociated bool, prev *CacheEntry) int {
	cfg = cfg.withDefaults()

	size := float64(requested)
	if requested <= 0 {
		size = float64(cfg.Default)
	}

	if termCount > 1 {
		size *= 1 + perTermIncrease*float64(termCount-1)
	}
	if hasTypeFilter {
		size *= typeFilterMultiplier
	}
	if includeAssociated {
		size *= associatedMultiplier
	}

	if prev != nil {
		if prev.Metrics.BufferOverflows > 0 {
			size *= overflowMultiplier
		}
		switch eff := prev.Metrics.Efficiency(); {
		case eff < lowEfficiencyThreshold:
			size *= lowEfficiencyMultiplier
		case eff > highEfficiencyThreshold:
			size *= highEfficiencyMultiplier
		}
	}

	out := int(math.Round(size))
	if out < cfg.Min {
		out = cfg.Min
	}
	if out > cfg.Max {
		out = cfg.Max
	}
	return out
}
