package scraper

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultBaseURL is the ivoox host all listing URLs are relative to.
const DefaultBaseURL = "http://www.ivoox.com"

var (
	podcastIDPattern  = regexp.MustCompile(`_sq_(.*?)_1\.html`)
	audioRefPattern   = regexp.MustCompile(`_rf_(\d+_\d+)\.html`)
	pageSuffixPattern = regexp.MustCompile(`_\d+\.html$`)
)

// ErrNoAudioReference indicates a detail-page URL without the _rf_ reference
// number, so no direct audio URL can be derived from it.
var ErrNoAudioReference = errors.New("no audio reference number in url")

// DeriveAudioURL turns an episode detail-page URL into the direct listen URL.
// The reference number in `..._rf_161629863_1.html` maps to
// `https://www.ivoox.com/listen_mn_161629863_1.mp3`.
func DeriveAudioURL(detailURL string) (string, error) {
	m := audioRefPattern.FindStringSubmatch(detailURL)
	if m == nil {
		return "", fmt.Errorf("derive audio url from %q: %w", detailURL, ErrNoAudioReference)
	}
	return fmt.Sprintf("https://www.ivoox.com/listen_mn_%s.mp3", m[1]), nil
}

// NormalizeListingURL strips a trailing `_<page>.html` suffix so the listing
// can be re-templated page by page.
func NormalizeListingURL(listingURL string) string {
	return pageSuffixPattern.ReplaceAllString(listingURL, "")
}

// podcastIDFromHref pulls the site-assigned podcast ID out of a search-result
// href. Bare `_sq_` placeholders and hrefs without the pattern are rejected.
func podcastIDFromHref(href string) (string, bool) {
	if !strings.Contains(href, "_sq_") || strings.HasPrefix(href, "_sq_") {
		return "", false
	}
	m := podcastIDPattern.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func searchPageURL(base, query string, page int) string {
	return fmt.Sprintf("%s/%s_sw_1_%d.html", base, query, page)
}

func episodesPageURL(base, podcastID string, page int) string {
	return fmt.Sprintf("%s/test_sq_%s_%d.html", base, podcastID, page)
}

func listingPageURL(normalized string, page int) string {
	return fmt.Sprintf("%s_%d.html", normalized, page)
}
