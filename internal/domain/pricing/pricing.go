// Package pricing derives print and sticker prices and the revenue split
// between creator and platform. All functions are pure.
package pricing

import (
	"math"
)

// Pricing constants.
const (
	// comparableDiscount undercuts the comparable market price.
	comparableDiscount = 0.90
	premiumHandling    = 0.25
	premiumMarkup      = 1.7

	premiumCreatorShare  = 0.75
	standardCreatorShare = 0.60

	stickerCreatorShareOfCost = 0.25
	// minStickerMargin is the platform margin below which a sticker is not offered.
	minStickerMargin          = 0.10

	// defaultAspectRatio is assumed when an asset has no usable dimensions.
	defaultAspectRatio = 1.5
	aspectTolerance    = 0.08
)

// Breakdown is the unrounded price split for one product, in dollars.
type Breakdown struct {
	Key              string
	Label            string
	BaseCost         float64
	FinalPrice       float64
	TotalProfit      float64
	CreatorEarnings  float64
	PlatformEarnings float64
}

// PriceForSize prices a print. The bool is false when the size or tier is not offered.
func PriceForSize(size SizeID, tier Tier, premiumCreator bool) (Breakdown, bool) {
	spec, ok := sizeTable[size]
	if !ok {
		return Breakdown{}, false
	}
	c, ok := spec.tiers[tier]
	if !ok {
		return Breakdown{}, false
	}

	comp := c.comparable * comparableDiscount
	final := comp
	if tier == Premium {
		markup := (c.base + c.base*premiumHandling) * premiumMarkup
		final = math.Max(markup, comp)
	}

	profit := math.Max(0, final-c.base)
	share := standardCreatorShare
	if premiumCreator {
		share = premiumCreatorShare
	}
	creator := profit * share

	return Breakdown{
		Key:              spec.key,
		Label:            spec.label,
		BaseCost:         c.base,
		FinalPrice:       final,
		TotalProfit:      profit,
		CreatorEarnings:  creator,
		PlatformEarnings: profit - creator,
	}, true
}

// PriceForSticker prices a sticker. The bool is false for unknown stickers and
// for stickers whose platform margin falls under the floor.
func PriceForSticker(id StickerID) (Breakdown, bool) {
	spec, ok := stickerTable[id]
	if !ok {
		return Breakdown{}, false
	}
	c := spec.cost
	final := c.comparable * comparableDiscount
	creator := c.base * stickerCreatorShareOfCost
	platform := final - c.base - creator
	if platform < minStickerMargin {
		return Breakdown{}, false
	}
	return Breakdown{
		Key:              spec.key,
		Label:            spec.label,
		BaseCost:         c.base,
		FinalPrice:       final,
		TotalProfit:      creator + platform,
		CreatorEarnings:  creator,
		PlatformEarnings: platform,
	}, true
}

// BestFitSizes returns the print sizes whose proportions match the image
// within tolerance. Portrait images match the inverse ratio. A non-positive
// ratio falls back to 3:2.
func BestFitSizes(aspectRatio float64) []SizeID {
	if aspectRatio <= 0 || math.IsNaN(aspectRatio) || math.IsInf(aspectRatio, 0) {
		aspectRatio = defaultAspectRatio
	}
	landscape := aspectRatio >= 1
	var out []SizeID
	for _, id := range sizes {
		r := sizeTable[id].ratio
		if !landscape {
			r = 1 / r
		}
		if math.Abs(r-aspectRatio) < aspectTolerance {
			out = append(out, id)
		}
	}
	return out
}

// Cents converts a dollar amount to integer cents. Call it only when
// serializing a Breakdown.
func Cents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}
