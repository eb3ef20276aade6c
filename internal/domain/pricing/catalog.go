package pricing

import "github.com/okian/postflow/internal/domain/model"

// CatalogInput describes one sale-flagged asset.
type CatalogInput struct {
	Tier            Tier
	PremiumCreator  bool
	AspectRatio     float64
	IncludeStickers bool
}

// Catalog builds the serialized price list for an asset: a print entry for
// every best-fit size, followed by stickers when requested.
func Catalog(in CatalogInput) []model.PriceEntry {
	var out []model.PriceEntry
	for _, size := range BestFitSizes(in.AspectRatio) {
		if b, ok := PriceForSize(size, in.Tier, in.PremiumCreator); ok {
			out = append(out, entry(b, model.PricePrint))
		}
	}
	if in.IncludeStickers {
		for _, id := range Stickers() {
			if b, ok := PriceForSticker(id); ok {
				out = append(out, entry(b, model.PriceSticker))
			}
		}
	}
	return out
}

// entry is the serialization boundary: rounding to cents happens here.
// Platform cents are derived from the rounded totals so the parts add up.
func entry(b Breakdown, kind model.PriceKind) model.PriceEntry {
	creator := Cents(b.CreatorEarnings)
	return model.PriceEntry{
		SizeID:                b.Key,
		Label:                 b.Label,
		Kind:                  kind,
		PriceCents:            Cents(b.FinalPrice),
		CreatorEarningsCents:  creator,
		PlatformEarningsCents: Cents(b.TotalProfit) - creator,
	}
}
