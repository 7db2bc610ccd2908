// Package scraper defines core types shared across subsystems and the
// scraping engine that turns ivoox listing pages into typed records.
package scraper

import (
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Podcast is one search-result card. Identity is the site-assigned ID
// embedded in the listing URL.
type Podcast struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"ivoox_url"`
	Thumbnail string `json:"thumbnail"`
}

// Episode is one episode card from a podcast listing. Free-text fields
// (duration, likes, comments) are kept exactly as scraped.
type Episode struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Duration    string `json:"duration"`
	Thumbnail   string `json:"thumbnail"`
	Likes       string `json:"likes"`
	Comments    string `json:"comments"`
}

// AudioLink is a direct playback URL derived from an episode detail-page
// link. Nodes whose href carries no reference number are dropped during
// extraction, so MP3URL is always a real listen URL.
type AudioLink struct {
	Title     string `json:"title"`
	MP3URL    string `json:"mp3_url"`
	Thumbnail string `json:"thumbnail"`
}

// EpisodeList is the result of listing a podcast's episodes.
type EpisodeList struct {
	Name     string    `json:"name"`
	Episodes []Episode `json:"episodes"`
}

// Fetcher performs a single HTTP GET and returns the parsed document.
// Implementations hold a persistent session and must be closed when the
// owning work unit finishes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*goquery.Document, error)
	Close()
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
