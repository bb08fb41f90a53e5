package service

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tripradar/backend/internal/model"
	"github.com/tripradar/backend/pkg/geo"
)

// ClusterService groups scored deals by coarse grid cell for map display.
// Read-only: clustering has no side effects on any store.
type ClusterService struct {
	cellSizeDeg float64
}

// NewClusterService creates a clusterer with the given cell size in degrees.
// Non-positive sizes fall back to the geo default (~0.01 deg).
func NewClusterService(cellSizeDeg float64) *ClusterService {
	if cellSizeDeg <= 0 {
		cellSizeDeg = geo.DefaultCellSizeDeg
	}
	return &ClusterService{cellSizeDeg: cellSizeDeg}
}

// Cluster buckets deals by grid cell and emits a Cluster for every cell
// holding at least two deals. Singleton cells stay ungrouped so the map is
// not littered with one-item clusters; deals without coordinates are
// dropped. The cluster center is the grid anchor, not a true centroid.
// Output is ordered by cell key so identical input yields identical output.
func (s *ClusterService) Cluster(scored []model.ScoredDeal) []model.Cluster {
	cells := make(map[string][]model.ScoredDeal)
	for _, deal := range scored {
		if deal.Coordinates == nil {
			continue
		}
		key := geo.GridCell(deal.Coordinates.Lat, deal.Coordinates.Lng, s.cellSizeDeg)
		cells[key] = append(cells[key], deal)
	}

	keys := make([]string, 0, len(cells))
	for key, members := range cells {
		if len(members) >= 2 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	clusters := make([]model.Cluster, 0, len(keys))
	for _, key := range keys {
		clusters = append(clusters, s.buildCluster(key, cells[key]))
	}
	return clusters
}

func (s *ClusterService) buildCluster(key string, members []model.ScoredDeal) model.Cluster {
	anchorLat, anchorLng := geo.SnapToGrid(
		members[0].Coordinates.Lat, members[0].Coordinates.Lng, s.cellSizeDeg)

	totalSavings := decimal.Zero
	breakdown := make(map[model.DealCategory]int)
	ratingSum := 0.0
	ratedCount := 0
	allBudget, allPremium := true, true

	for _, m := range members {
		totalSavings = totalSavings.Add(m.Savings())
		breakdown[m.Category]++
		if m.Rating != nil {
			ratingSum += *m.Rating
			ratedCount++
		}
		if m.BudgetTier != model.TierBudget {
			allBudget = false
		}
		if m.BudgetTier != model.TierPremium {
			allPremium = false
		}
	}

	tier := model.ClusterTierMixed
	switch {
	case allBudget:
		tier = model.ClusterTierBudget
	case allPremium:
		tier = model.ClusterTierPremium
	}

	// Unrated deals are excluded from the average, not counted as zero.
	var avgRating *float64
	if ratedCount > 0 {
		avg := ratingSum / float64(ratedCount)
		avgRating = &avg
	}

	return model.Cluster{
		CellKey:           key,
		Center:            model.Coordinates{Lat: anchorLat, Lng: anchorLng},
		Deals:             members,
		TotalSavings:      totalSavings,
		AverageRating:     avgRating,
		CategoryBreakdown: breakdown,
		Tier:              tier,
	}
}
