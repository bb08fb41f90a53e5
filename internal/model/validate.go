package model

import (
	"github.com/tripradar/backend/internal/apperror"
)

// Validate checks a deal record at the ingress boundary. Malformed records
// are rejected individually; optional fields (coordinates, rating) are not
// validation failures.
func (d *Deal) Validate() error {
	if d.ID == "" {
		return apperror.ValidationError("id", "deal id is required")
	}
	if d.MerchantID == "" {
		return apperror.ValidationError("merchantId", "merchant id is required")
	}
	if !d.Category.Valid() {
		return apperror.ValidationError("category", "unknown deal category")
	}
	if d.OriginalPrice.IsNegative() {
		return apperror.ValidationError("originalPrice", "price cannot be negative")
	}
	if d.DiscountedPrice.IsNegative() {
		return apperror.ValidationError("discountedPrice", "price cannot be negative")
	}
	if d.DiscountedPrice.GreaterThan(d.OriginalPrice) {
		return apperror.ValidationError("discountedPrice", "discounted price exceeds original price")
	}
	if d.ValidUntil.IsZero() {
		return apperror.ValidationError("validUntil", "expiry is required")
	}
	return nil
}
