// Package aggregate folds raw item events into per-option score totals.
package aggregate

import "github.com/tallyapp/tally-server/internal/domain"

// Aggregate reduces a stream of item events into net per-option totals.
// Add events increase an option's count and remove events decrease it;
// the fold itself never floors intermediate values, so interleaved adds
// and removes in any order produce the same result. Options whose net
// count ends at zero or below are dropped from the output, as are items
// referencing options the item type no longer defines.
//
// Results follow the option order of the item type, so callers get a
// stable display order for free.
func Aggregate(items []*domain.Item, itemType *domain.ItemType) []domain.AggregatedItem {
	if itemType == nil {
		return nil
	}

	counts := make(map[string]int, len(itemType.Options))
	for _, item := range items {
		if itemType.Option(item.OptionID) == nil {
			continue
		}
		if item.IsRemoved {
			counts[item.OptionID] -= item.Count
		} else {
			counts[item.OptionID] += item.Count
		}
	}

	result := make([]domain.AggregatedItem, 0, len(counts))
	for i := range itemType.Options {
		opt := &itemType.Options[i]
		count := counts[opt.ID]
		if count <= 0 {
			continue
		}
		result = append(result, domain.AggregatedItem{
			OptionID:    opt.ID,
			Option:      *opt,
			Count:       count,
			TotalPoints: count * opt.Points,
		})
	}
	return result
}

// TotalPoints sums the point totals of an aggregated result.
func TotalPoints(aggregated []domain.AggregatedItem) int {
	total := 0
	for _, a := range aggregated {
		total += a.TotalPoints
	}
	return total
}
