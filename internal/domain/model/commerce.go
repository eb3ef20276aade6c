package model

import "time"

// PriceKind separates print sizes from sticker products.
type PriceKind string

const (
	PricePrint   PriceKind = "print"
	PriceSticker PriceKind = "sticker"
)

// PriceEntry is one purchasable variant. Amounts are stored in cents.
type PriceEntry struct {
	SizeID                string    `bson:"sizeId" json:"sizeId"`
	Label                 string    `bson:"label" json:"label"`
	Kind                  PriceKind `bson:"kind" json:"kind"`
	PriceCents            int64     `bson:"priceCents" json:"priceCents"`
	CreatorEarningsCents  int64     `bson:"creatorEarningsCents" json:"creatorEarningsCents"`
	PlatformEarningsCents int64     `bson:"platformEarningsCents" json:"platformEarningsCents"`
}

// CommerceItem is the shop listing derived from a sale-flagged asset.
// It is created closed (Available=false) and later toggled by its owner.
type CommerceItem struct {
	ID         string       `bson:"_id" json:"id"`
	PostID     string       `bson:"postId" json:"postId"`
	AssetIndex int          `bson:"assetIndex" json:"assetIndex"`
	AuthorID   string       `bson:"authorId" json:"authorId"`
	AuthorName string       `bson:"authorName" json:"authorName"`
	Title      string       `bson:"title" json:"title"`
	ImageURL   string       `bson:"imageUrl" json:"imageUrl"`
	Tier       string       `bson:"tier" json:"tier"`
	Prices     []PriceEntry `bson:"prices" json:"prices"`
	Available  bool         `bson:"available" json:"available"`
	Status     string       `bson:"status" json:"status"`
	CreatedAt  time.Time    `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time    `bson:"updatedAt" json:"updatedAt"`
}
