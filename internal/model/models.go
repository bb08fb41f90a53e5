package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DealCategory string

const (
	CategoryDining         DealCategory = "dining"
	CategoryAccommodation  DealCategory = "accommodation"
	CategoryTransportation DealCategory = "transportation"
	CategoryActivities     DealCategory = "activities"
	CategoryShopping       DealCategory = "shopping"
)

// DealCategories lists every valid deal category.
var DealCategories = []DealCategory{
	CategoryDining,
	CategoryAccommodation,
	CategoryTransportation,
	CategoryActivities,
	CategoryShopping,
}

func (c DealCategory) Valid() bool {
	for _, v := range DealCategories {
		if c == v {
			return true
		}
	}
	return false
}

type BudgetTier string

const (
	TierBudget   BudgetTier = "budget"
	TierModerate BudgetTier = "moderate"
	TierPremium  BudgetTier = "premium"
)

// Coordinates is a WGS84 lat/lng pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Deal is a merchant-provided discounted offer. Deals arrive from external
// deal-discovery collaborators and are immutable for the duration of a
// scoring pass.
type Deal struct {
	ID                 string          `json:"id"`
	MerchantID         string          `json:"merchantId"`
	MerchantName       string          `json:"merchantName"`
	Category           DealCategory    `json:"category"`
	OriginalPrice      decimal.Decimal `json:"originalPrice"`
	DiscountedPrice    decimal.Decimal `json:"discountedPrice"`
	DiscountPercentage float64         `json:"discountPercentage"`
	Coordinates        *Coordinates    `json:"coordinates,omitempty"`
	ValidUntil         time.Time       `json:"validUntil"`
	Tags               []string        `json:"tags,omitempty"`
	BudgetTier         BudgetTier      `json:"budgetTier"`
	Rating             *float64        `json:"rating,omitempty"`
	ReviewCount        *int            `json:"reviewCount,omitempty"`
}

// Savings returns originalPrice - discountedPrice.
func (d *Deal) Savings() decimal.Decimal {
	return d.OriginalPrice.Sub(d.DiscountedPrice)
}

// DiscountPercent recomputes the discount from the price pair. A zero
// original price yields 0, never a division error.
func (d *Deal) DiscountPercent() float64 {
	if d.OriginalPrice.IsZero() {
		return 0
	}
	return d.Savings().Div(d.OriginalPrice).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// HasTag reports whether the deal carries the given tag (case-insensitive).
func (d *Deal) HasTag(tag string) bool {
	for _, t := range d.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// ScoredDeal is a Deal with its relevance breakdown for one user. All
// sub-scores and the composite are in [0,100]. Scoring is deterministic for
// identical inputs, so a ScoredDeal is safe to cache.
type ScoredDeal struct {
	Deal
	BudgetAlignment   float64  `json:"budgetAlignment"`
	CategoryFit       float64  `json:"categoryFit"`
	LocationRelevance float64  `json:"locationRelevance"`
	TimeRelevance     float64  `json:"timeRelevance"`
	UserPreference    float64  `json:"userPreference"`
	RelevanceScore    float64  `json:"relevanceScore"`
	Reasoning         []string `json:"reasoning"`
}

type ClusterTier string

const (
	ClusterTierBudget  ClusterTier = "budget"
	ClusterTierPremium ClusterTier = "premium"
	ClusterTierMixed   ClusterTier = "mixed"
)

// Cluster groups >=2 scored deals sharing a coarse grid cell for map display.
// Center is the grid anchor, not a true centroid.
type Cluster struct {
	CellKey           string               `json:"cellKey"`
	Center            Coordinates          `json:"center"`
	Deals             []ScoredDeal         `json:"deals"`
	TotalSavings      decimal.Decimal      `json:"totalSavings"`
	AverageRating     *float64             `json:"averageRating,omitempty"`
	CategoryBreakdown map[DealCategory]int `json:"categoryBreakdown"`
	Tier              ClusterTier          `json:"tier"`
}

// TravelWindow is the user's active trip date range.
type TravelWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// UserContext carries everything the scorer needs about one traveler.
// Sourced from the itinerary/budget subsystem.
type UserContext struct {
	UserID             uuid.UUID                        `json:"userId"`
	Location           *Coordinates                     `json:"location,omitempty"`
	TravelWindow       *TravelWindow                    `json:"travelWindow,omitempty"`
	Interests          []DealCategory                   `json:"interests,omitempty"`
	RemainingBudget    map[DealCategory]decimal.Decimal `json:"remainingBudget,omitempty"`
	CategoryEngagement map[DealCategory]int             `json:"categoryEngagement,omitempty"`
	MerchantEngagement map[string]int                   `json:"merchantEngagement,omitempty"`
}

// InterestedIn reports whether the category is among the user's declared
// interests.
func (u *UserContext) InterestedIn(c DealCategory) bool {
	for _, i := range u.Interests {
		if i == c {
			return true
		}
	}
	return false
}
