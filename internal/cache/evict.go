// internal/cache/evict.go
package cache

import (
	"context"
	"sort"
	"time"

	"schedule-designgen/internal/common/metrics"
)

const (
	ReasonExpired  = "expired"
	ReasonCapacity = "capacity"
)

type EvictionReport struct {
	Expired []string
	Trimmed []string
}

func (r EvictionReport) Total() int {
	return len(r.Expired) + len(r.Trimmed)
}

// Evict purges artifacts whose range started before today, then trims the oldest by range
// start (ties by last update) until at most max remain. Expired entries always go first.
func Evict(ctx context.Context, store Store, now time.Time, max int) (EvictionReport, error) {
	var report EvictionReport

	entries, err := store.List(ctx)
	if err != nil {
		return report, err
	}

	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	kept := make([]Meta, 0, len(entries))
	for _, e := range entries {
		if !e.RangeStart.IsZero() && e.RangeStart.Before(today) {
			if err := store.Delete(ctx, e.Key); err != nil {
				return report, err
			}
			report.Expired = append(report.Expired, e.Key)
			metrics.CacheEvictions.WithLabelValues(ReasonExpired).Inc()
			continue
		}
		kept = append(kept, e)
	}

	if max < 0 || len(kept) <= max {
		return report, nil
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if !a.RangeStart.Equal(b.RangeStart) {
			return a.RangeStart.Before(b.RangeStart)
		}
		if !a.LastUpdated.Equal(b.LastUpdated) {
			return a.LastUpdated.Before(b.LastUpdated)
		}
		return a.Key < b.Key
	})

	for _, e := range kept[:len(kept)-max] {
		if err := store.Delete(ctx, e.Key); err != nil {
			return report, err
		}
		report.Trimmed = append(report.Trimmed, e.Key)
		metrics.CacheEvictions.WithLabelValues(ReasonCapacity).Inc()
	}
	return report, nil
}
