package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/ivoox-scraper/internal/metrics"
)

// ErrInvalidPodcastID indicates the episode listing for an ID rendered no
// podcast title on its first page, which the site does for unknown IDs.
var ErrInvalidPodcastID = errors.New("invalid podcast id")

// Operation names used for logs and metrics labels.
const (
	OpSearch   = "search"
	OpEpisodes = "episodes"
	OpAudio    = "audio"
)

// Config holds the settings for a scrape session.
type Config struct {
	BaseURL string
}

// Engine composes the paginator with per-operation URL templates, extractors
// and stop conditions. It is stateless apart from the fetcher session it
// owns; Close releases that session.
type Engine struct {
	cfg    Config
	fetch  Fetcher
	logger *zap.Logger
}

// NewEngine builds an Engine around the given fetcher session.
func NewEngine(cfg Config, fetch Fetcher, logger *zap.Logger) *Engine {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Engine{cfg: cfg, fetch: fetch, logger: logger}
}

// SearchPodcasts scrapes search-result pages for the query. With page 0 all
// pages are walked until one yields no results; otherwise exactly the given
// page is fetched.
func (e *Engine) SearchPodcasts(ctx context.Context, query string, page int) ([]Podcast, error) {
	podcasts, err := paginate(ctx, e.fetch, OpSearch,
		func(p int) string { return searchPageURL(e.cfg.BaseURL, query, p) },
		func(doc *goquery.Document) []Podcast { return extractPodcasts(doc, e.logger) },
		StopWhenNoNodes, page, nil, e.logger,
	)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	metrics.ObserveRecords(OpSearch, len(podcasts))
	return podcasts, nil
}

// ListEpisodes scrapes the episode listing for a podcast ID. The podcast
// display name is taken from the first fetched page; when page 1 renders no
// title the ID is treated as invalid and the whole operation aborts.
func (e *Engine) ListEpisodes(ctx context.Context, podcastID string, page int) (EpisodeList, error) {
	var name string
	onPage := func(p int, doc *goquery.Document) error {
		if name != "" {
			return nil
		}
		name = extractPodcastName(doc)
		if name == "" && p == 1 {
			return fmt.Errorf("podcast %q: %w", podcastID, ErrInvalidPodcastID)
		}
		return nil
	}

	episodes, err := paginate(ctx, e.fetch, OpEpisodes,
		func(p int) string { return episodesPageURL(e.cfg.BaseURL, podcastID, p) },
		func(doc *goquery.Document) []Episode { return extractEpisodes(doc, e.logger) },
		StopWhenNoNextPage, page, onPage, e.logger,
	)
	if err != nil {
		return EpisodeList{}, err
	}
	metrics.ObserveRecords(OpEpisodes, len(episodes))
	return EpisodeList{Name: name, Episodes: episodes}, nil
}

// ExtractAudioLinks scrapes direct listen URLs from an episode listing URL.
// Any trailing `_<page>.html` suffix on the input is stripped before the
// listing is re-templated page by page.
func (e *Engine) ExtractAudioLinks(ctx context.Context, listingURL string, page int) ([]AudioLink, error) {
	normalized := NormalizeListingURL(listingURL)
	links, err := paginate(ctx, e.fetch, OpAudio,
		func(p int) string { return listingPageURL(normalized, p) },
		func(doc *goquery.Document) []AudioLink { return extractAudioLinks(doc, e.cfg.BaseURL, e.logger) },
		StopWhenNoNodes, page, nil, e.logger,
	)
	if err != nil {
		return nil, fmt.Errorf("audio links %q: %w", listingURL, err)
	}
	metrics.ObserveRecords(OpAudio, len(links))
	return links, nil
}

// Close releases the fetcher session owned by this engine.
func (e *Engine) Close() {
	e.fetch.Close()
}
