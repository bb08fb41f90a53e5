// Package service provides the deal relevance, clustering, notification
// policy, and digest logic of the engine.
package service

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tripradar/backend/internal/config"
	"github.com/tripradar/backend/internal/model"
	"github.com/tripradar/backend/pkg/geo"
)

// neutralScore is the documented fallback when an input needed by a
// sub-score is absent. Missing geodata or budget data must not unfairly
// penalize a deal, so the fallback sits at the middle of the range, not zero.
const neutralScore = 50.0

// significanceThreshold is the sub-score level above which a reasoning
// clause is emitted.
const significanceThreshold = 70.0

// ScoringService computes composite relevance scores for deal/user pairs.
// Scoring is pure: identical inputs always produce identical output, so
// results are cacheable.
type ScoringService struct {
	weights config.ScoreWeights
	now     func() time.Time
}

// NewScoringService creates a scorer with the given sub-score weights.
// Zero-valued weights fall back to the defaults.
func NewScoringService(weights config.ScoreWeights) *ScoringService {
	sum := weights.Budget + weights.Category + weights.Location + weights.Time + weights.Preference
	if sum <= 0 {
		weights = config.DefaultScoreWeights()
	}
	return &ScoringService{weights: weights, now: time.Now}
}

// SetClock overrides the scorer's clock. Tests only.
func (s *ScoringService) SetClock(now func() time.Time) {
	s.now = now
}

// Score computes the five sub-scores and the weighted composite for one
// deal/user pair. All scores are clamped to [0,100].
func (s *ScoringService) Score(deal model.Deal, userCtx model.UserContext) model.ScoredDeal {
	now := s.now()

	scored := model.ScoredDeal{Deal: deal}
	scored.BudgetAlignment = clampScore(s.budgetAlignment(deal, userCtx))
	scored.CategoryFit = clampScore(s.categoryFit(deal, userCtx))
	scored.LocationRelevance = clampScore(s.locationRelevance(deal, userCtx))
	scored.TimeRelevance = clampScore(s.timeRelevance(deal, userCtx, now))
	scored.UserPreference = clampScore(s.userPreference(deal, userCtx))

	w := s.weights
	total := w.Budget + w.Category + w.Location + w.Time + w.Preference
	composite := (scored.BudgetAlignment*w.Budget +
		scored.CategoryFit*w.Category +
		scored.LocationRelevance*w.Location +
		scored.TimeRelevance*w.Time +
		scored.UserPreference*w.Preference) / total
	scored.RelevanceScore = clampScore(math.Round(composite*100) / 100)

	scored.Reasoning = s.reasoning(scored, userCtx)
	return scored
}

// ScoreAll scores a batch against one user context.
func (s *ScoringService) ScoreAll(deals []model.Deal, userCtx model.UserContext) []model.ScoredDeal {
	scored := make([]model.ScoredDeal, len(deals))
	for i, d := range deals {
		scored[i] = s.Score(d, userCtx)
	}
	return scored
}

// budgetAlignment rewards deals whose discounted price fits comfortably
// under the user's remaining budget for the category, and penalizes
// overshoot even after the discount.
func (s *ScoringService) budgetAlignment(deal model.Deal, userCtx model.UserContext) float64 {
	if userCtx.RemainingBudget == nil {
		return neutralScore
	}
	remaining, ok := userCtx.RemainingBudget[deal.Category]
	if !ok {
		return neutralScore
	}

	price := deal.DiscountedPrice.InexactFloat64()
	rem := remaining.InexactFloat64()

	if rem <= 0 {
		// Budget exhausted: only a free deal fits.
		if price == 0 {
			return neutralScore
		}
		return 0
	}
	if price == 0 {
		return 100
	}

	ratio := price / rem
	if ratio <= 1 {
		// 100 at free, 50 when the deal consumes the whole remainder.
		return 100 - 50*ratio
	}
	// Overshoot: hit zero when the price is double the remaining budget.
	return 50 - 50*(ratio-1)
}

// categoryFit rewards matches against the user's declared interests.
func (s *ScoringService) categoryFit(deal model.Deal, userCtx model.UserContext) float64 {
	if len(userCtx.Interests) == 0 {
		return neutralScore
	}
	if userCtx.InterestedIn(deal.Category) {
		return 95
	}
	return 25
}

// locationRelevance decays with great-circle distance to the user's active
// location. Deals or users without coordinates get the neutral default.
func (s *ScoringService) locationRelevance(deal model.Deal, userCtx model.UserContext) float64 {
	if deal.Coordinates == nil || userCtx.Location == nil {
		return neutralScore
	}
	distKm := geo.HaversineKm(
		userCtx.Location.Lat, userCtx.Location.Lng,
		deal.Coordinates.Lat, deal.Coordinates.Lng,
	)
	// 100 at the user's position, 50 at 2km, ~20 at 8km.
	return 100 / (1 + distKm/2)
}

// timeRelevance is highest when the deal expires inside the user's travel
// window; expiry before the trip or long after it scores low. Without a
// window the score follows plain urgency.
func (s *ScoringService) timeRelevance(deal model.Deal, userCtx model.UserContext, now time.Time) float64 {
	if !deal.ValidUntil.After(now) {
		return 0
	}

	if w := userCtx.TravelWindow; w != nil && !w.Start.IsZero() && !w.End.IsZero() {
		switch {
		case deal.ValidUntil.Before(w.Start):
			// Gone before the trip starts.
			return 15
		case !deal.ValidUntil.After(w.End):
			return 90
		case deal.ValidUntil.Before(w.End.Add(7 * 24 * time.Hour)):
			return 60
		default:
			return 30
		}
	}

	days := deal.ValidUntil.Sub(now).Hours() / 24
	switch {
	case days <= 1:
		return 95
	case days <= 3:
		return 85
	case days <= 7:
		return 70
	case days <= 14:
		return 55
	case days <= 30:
		return 40
	default:
		return 25
	}
}

// userPreference derives affinity from historical engagement with the
// deal's category and merchant. No history means the neutral default.
func (s *ScoringService) userPreference(deal model.Deal, userCtx model.UserContext) float64 {
	totalCategory := 0
	for _, n := range userCtx.CategoryEngagement {
		totalCategory += n
	}
	merchantHits := userCtx.MerchantEngagement[deal.MerchantID]

	if totalCategory == 0 && merchantHits == 0 {
		return neutralScore
	}

	score := 30.0
	if totalCategory > 0 {
		share := float64(userCtx.CategoryEngagement[deal.Category]) / float64(totalCategory)
		score += 50 * share
	}
	if merchantHits > 0 {
		score += math.Min(float64(merchantHits), 4) * 5
	}
	return score
}

// reasoning emits one clause per significant sub-score, ordered by weighted
// contribution descending. Consumed for UI transparency and notification
// text.
func (s *ScoringService) reasoning(scored model.ScoredDeal, userCtx model.UserContext) []string {
	type clause struct {
		contribution float64
		order        int
		text         string
	}

	w := s.weights
	candidates := []clause{
		{scored.BudgetAlignment * w.Budget, 0,
			fmt.Sprintf("fits your remaining %s budget", scored.Category)},
		{scored.CategoryFit * w.Category, 1,
			fmt.Sprintf("matches your interest in %s", scored.Category)},
		{scored.LocationRelevance * w.Location, 2,
			"close to your current location"},
		{scored.TimeRelevance * w.Time, 3,
			"available during your travel dates"},
		{scored.UserPreference * w.Preference, 4,
			"similar to deals you've engaged with before"},
	}
	subScores := []float64{
		scored.BudgetAlignment,
		scored.CategoryFit,
		scored.LocationRelevance,
		scored.TimeRelevance,
		scored.UserPreference,
	}

	significant := make([]clause, 0, len(candidates))
	for i, c := range candidates {
		if subScores[i] >= significanceThreshold {
			significant = append(significant, c)
		}
	}
	sort.SliceStable(significant, func(i, j int) bool {
		if significant[i].contribution != significant[j].contribution {
			return significant[i].contribution > significant[j].contribution
		}
		return significant[i].order < significant[j].order
	})

	reasons := make([]string, len(significant))
	for i, c := range significant {
		reasons[i] = c.text
	}
	return reasons
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
