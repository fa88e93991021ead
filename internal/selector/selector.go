package selector

import (
	"math/rand"

	"github.com/irt-tools/cat-service/internal/irt"
	"github.com/irt-tools/cat-service/internal/models"
)

// Constraints are the optional filters applied before the information
// comparison. Zero values disable each filter.
type Constraints struct {
	// MaxPerCategory caps how many items of each category one session may
	// receive. Categories without an entry are unconstrained.
	MaxPerCategory map[string]int

	// MaxExposureRate excludes items whose administration rate across the
	// study already exceeds the cap. Requires Administrations and
	// TotalSessions to be populated.
	MaxExposureRate float64
	Administrations map[string]int
	TotalSessions   int
}

// MaxInfo picks the unadministered item with maximum Fisher information at
// theta. Ties go to the item earlier in bank order; iteration in bank order
// with a strict greater-than comparison gives that for free. The boolean is
// false when no eligible item remains.
func MaxInfo(theta float64, administered []string, items []models.Item, model irt.Model, c *Constraints) (*models.Item, bool) {
	var best *models.Item
	bestInfo := -1.0

	given := toSet(administered)
	categoryCounts := countCategories(administered, items)

	for i := range items {
		item := &items[i]
		if !eligible(item, given, categoryCounts, c) {
			continue
		}
		info := irt.Information(theta, item.Params(), model)
		if info > bestInfo {
			best = item
			bestInfo = info
		}
	}

	if best == nil {
		return nil, false
	}
	return best, true
}

// Random picks a uniformly random eligible item. The rng must be seeded from
// persisted session state so a resumed session repeats the same draws.
func Random(rng *rand.Rand, administered []string, items []models.Item, c *Constraints) (*models.Item, bool) {
	given := toSet(administered)
	categoryCounts := countCategories(administered, items)

	eligibleItems := make([]*models.Item, 0, len(items))
	for i := range items {
		item := &items[i]
		if eligible(item, given, categoryCounts, c) {
			eligibleItems = append(eligibleItems, item)
		}
	}

	if len(eligibleItems) == 0 {
		return nil, false
	}
	return eligibleItems[rng.Intn(len(eligibleItems))], true
}

func eligible(item *models.Item, given map[string]bool, categoryCounts map[string]int, c *Constraints) bool {
	if given[item.ExternalID] {
		return false
	}
	if c == nil {
		return true
	}

	if limit, ok := c.MaxPerCategory[item.Category]; ok && categoryCounts[item.Category] >= limit {
		return false
	}

	if c.MaxExposureRate > 0 && c.TotalSessions > 0 {
		rate := float64(c.Administrations[item.ExternalID]) / float64(c.TotalSessions)
		if rate > c.MaxExposureRate {
			return false
		}
	}

	return true
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func countCategories(administered []string, items []models.Item) map[string]int {
	byID := make(map[string]string, len(items))
	for i := range items {
		byID[items[i].ExternalID] = items[i].Category
	}

	counts := make(map[string]int)
	for _, id := range administered {
		if cat, ok := byID[id]; ok {
			counts[cat]++
		}
	}
	return counts
}
