package model

import "time"

// Identity is the authenticated caller as established by the session token.
type Identity struct {
	UserID      string
	DisplayName string
	Email       string
	PhotoURL    string
	Premium     bool
}

// Profile is the stored user profile consulted for author display fields.
type Profile struct {
	UserID      string `bson:"_id" json:"userId"`
	DisplayName string `bson:"displayName" json:"displayName"`
	PhotoURL    string `bson:"photoUrl,omitempty" json:"photoUrl,omitempty"`
}

// PostPublishedEvent is emitted after a post survives verification.
type PostPublishedEvent struct {
	PostID    string     `json:"postId"`
	AuthorID  string     `json:"authorId"`
	Status    PostStatus `json:"status"`
	Title     string     `json:"title"`
	Tags      []string   `json:"tags"`
	Keywords  []string   `json:"keywords"`
	AssetURLs []string   `json:"assetUrls"`
	At        time.Time  `json:"at"`
}
