// Package storage defines persistence contracts for user-facing data that
// outlives the scrape cache.
package storage

import (
	"context"
	"time"
)

// Favorite links a user to a podcast they marked, with enough denormalized
// metadata to render the favorites list without re-scraping.
type Favorite struct {
	UserID    string    `json:"user_id"`
	IvooxID   string    `json:"ivoox_id"`
	Name      string    `json:"name"`
	URL       string    `json:"ivoox_url"`
	Thumbnail string    `json:"thumbnail_url"`
	CreatedAt time.Time `json:"created_at"`
}

// FavoriteStore persists favorites. Toggle adds the favorite when absent and
// removes it when present, reporting which of the two happened.
type FavoriteStore interface {
	Toggle(ctx context.Context, fav Favorite) (added bool, err error)
	List(ctx context.Context, userID string) ([]Favorite, error)
}
