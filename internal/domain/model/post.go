// Package model contains domain models passed between layers and persisted by the store.
package model

import "time"

// PostStatus is the lifecycle state of a Post.
type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusPublished PostStatus = "published"
	// StatusPending marks a post written but not yet verified against the object store.
	// Pending posts are never served and are reconciled by the integrity sweep.
	StatusPending PostStatus = "pending"
)

// ParseStatus validates a caller-supplied status. Empty means published.
func ParseStatus(s string) (PostStatus, bool) {
	switch PostStatus(s) {
	case "", StatusPublished:
		return StatusPublished, true
	case StatusDraft:
		return StatusDraft, true
	default:
		return "", false
	}
}

// AssetKind distinguishes binary image assets from inline text slides.
type AssetKind string

const (
	AssetImage AssetKind = "image"
	AssetText  AssetKind = "text"
)

// ExifMetadata holds camera and exposure details. Every field is optional.
type ExifMetadata struct {
	Make         string `bson:"make,omitempty" json:"make,omitempty"`
	Model        string `bson:"model,omitempty" json:"model,omitempty"`
	Lens         string `bson:"lens,omitempty" json:"lens,omitempty"`
	FocalLength  string `bson:"focalLength,omitempty" json:"focalLength,omitempty"`
	Aperture     string `bson:"aperture,omitempty" json:"aperture,omitempty"`
	ISO          string `bson:"iso,omitempty" json:"iso,omitempty"`
	ShutterSpeed string `bson:"shutterSpeed,omitempty" json:"shutterSpeed,omitempty"`
	Date         string `bson:"date,omitempty" json:"date,omitempty"`
}

// IsZero reports whether no field is set.
func (e *ExifMetadata) IsZero() bool {
	return e == nil || *e == ExifMetadata{}
}

// Asset is one uploaded unit of a Post. It is immutable once its upload succeeded.
type Asset struct {
	Index       int           `bson:"index" json:"index"`
	Kind        AssetKind     `bson:"kind" json:"kind"`
	URL         string        `bson:"url,omitempty" json:"url,omitempty"`
	Path        string        `bson:"path,omitempty" json:"-"`
	Text        string        `bson:"text,omitempty" json:"text,omitempty"`
	Caption     string        `bson:"caption,omitempty" json:"caption,omitempty"`
	Width       int           `bson:"width,omitempty" json:"width,omitempty"`
	Height      int           `bson:"height,omitempty" json:"height,omitempty"`
	AspectRatio float64       `bson:"aspectRatio,omitempty" json:"aspectRatio,omitempty"`
	Exif        *ExifMetadata `bson:"exif,omitempty" json:"exif,omitempty"`
	Sellable    bool          `bson:"sellable" json:"sellable"`
	Tier        string        `bson:"tier,omitempty" json:"tier,omitempty"`
	Stickers    bool          `bson:"stickers,omitempty" json:"stickers,omitempty"`
}

// Post is the aggregate root of a publication.
type Post struct {
	ID             string     `bson:"_id" json:"id"`
	AuthorID       string     `bson:"authorId" json:"authorId"`
	AuthorName     string     `bson:"authorName" json:"authorName"`
	AuthorPhotoURL string     `bson:"authorPhotoUrl,omitempty" json:"authorPhotoUrl,omitempty"`
	Title          string     `bson:"title" json:"title"`
	Tags           []string   `bson:"tags" json:"tags"`
	Location       string     `bson:"location,omitempty" json:"location,omitempty"`
	Assets         []Asset    `bson:"assets" json:"assets"`
	Status         PostStatus `bson:"status" json:"status"`
	HasCommerce    bool       `bson:"hasCommerce" json:"hasCommerce"`
	SearchKeywords []string   `bson:"searchKeywords" json:"searchKeywords"`
	CollectionID   string     `bson:"collectionId,omitempty" json:"collectionId,omitempty"`
	CreatedAt      time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time  `bson:"updatedAt" json:"updatedAt"`
}

// AssetURLs returns the object-store urls of every binary asset, in order.
func (p *Post) AssetURLs() []string {
	urls := make([]string, 0, len(p.Assets))
	for _, a := range p.Assets {
		if a.URL != "" {
			urls = append(urls, a.URL)
		}
	}
	return urls
}

// Collection is an owner-curated ordered list of posts.
type Collection struct {
	ID        string    `bson:"_id" json:"id"`
	OwnerID   string    `bson:"ownerId" json:"ownerId"`
	Name      string    `bson:"name" json:"name"`
	PostIDs   []string  `bson:"postIds" json:"postIds"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}
