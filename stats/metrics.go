package stats

import (
	"errors"
	"fmt"
	"strings"
)

// Metric names one counter of a CacheStats.
type Metric int

// Metrics that can be queried.
const (
	MetricHits Metric = iota
	MetricMisses
	MetricHitsAtReset
	MetricMissesAtReset
	MetricCompulsoryMisses
	MetricChildHits
	MetricChildHitsAtReset
	MetricInclusiveInvalidates
	MetricCoherenceInvalidates
	MetricPrefetchHits
	MetricPrefetchMisses
	MetricFlushes
	numMetrics
)

var metricNames = [numMetrics]string{
	"hits",
	"misses",
	"hits_at_reset",
	"misses_at_reset",
	"compulsory_misses",
	"child_hits",
	"child_hits_at_reset",
	"inclusive_invalidates",
	"coherence_invalidates",
	"prefetch_hits",
	"prefetch_misses",
	"flushes",
}

// ErrUnknownMetric is returned for a metric name or value out of range.
var ErrUnknownMetric = errors.New("unknown metric")

func (m Metric) String() string {
	if m < 0 || m >= numMetrics {
		return fmt.Sprintf("Metric(%d)", int(m))
	}

	return metricNames[m]
}

// ParseMetric converts a metric name such as "compulsory_misses".
func ParseMetric(name string) (Metric, error) {
	for i, n := range metricNames {
		if strings.EqualFold(n, name) {
			return Metric(i), nil
		}
	}

	return 0, fmt.Errorf("%q: %w", name, ErrUnknownMetric)
}

// Metric returns the current value of a counter.
func (s *CacheStats) Metric(m Metric) (uint64, error) {
	switch m {
	case MetricHits:
		return s.hits, nil
	case MetricMisses:
		return s.misses, nil
	case MetricHitsAtReset:
		return s.hitsAtReset, nil
	case MetricMissesAtReset:
		return s.missesAtReset, nil
	case MetricCompulsoryMisses:
		return s.compulsoryMisses, nil
	case MetricChildHits:
		return s.childHits, nil
	case MetricChildHitsAtReset:
		return s.childHitsAtReset, nil
	case MetricInclusiveInvalidates:
		return s.inclusiveInvalidates, nil
	case MetricCoherenceInvalidates:
		return s.coherenceInvalidates, nil
	case MetricPrefetchHits:
		return s.prefetchHits, nil
	case MetricPrefetchMisses:
		return s.prefetchMisses, nil
	case MetricFlushes:
		return s.flushes, nil
	default:
		return 0, fmt.Errorf("%v: %w", m, ErrUnknownMetric)
	}
}

// Hits returns the demand hits since the last reset.
func (s *CacheStats) Hits() uint64 { return s.hits }

// Misses returns the demand misses since the last reset.
func (s *CacheStats) Misses() uint64 { return s.misses }

// CompulsoryMisses returns the first-touch misses since the last reset.
func (s *CacheStats) CompulsoryMisses() uint64 { return s.compulsoryMisses }

// ChildHits returns the hits below this device since the last reset.
func (s *CacheStats) ChildHits() uint64 { return s.childHits }

// MissRate returns misses over demand accesses at this device, or 0 when
// there were none.
func (s *CacheStats) MissRate() float64 {
	total := s.hits + s.misses
	if total == 0 {
		return 0
	}

	return float64(s.misses) / float64(total)
}

// TotalMissRate also counts hits in the children as accesses.
func (s *CacheStats) TotalMissRate() float64 {
	total := s.hits + s.misses + s.childHits
	if total == 0 {
		return 0
	}

	return float64(s.misses) / float64(total)
}
