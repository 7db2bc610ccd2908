package jobs

import (
	"strings"
	"time"
)

// KeyFor derives the deterministic key grouping all logical requests that
// share one in-flight job and one cache slot. Search queries are normalized
// (lower-cased, whitespace collapsed to underscores) so casing and spacing
// variants land on the same key; listing requests key on their raw target.
func KeyFor(req Request) string {
	switch req.Kind {
	case KindSearch:
		return "search_view_" + normalizeQuery(req.Query)
	case KindEpisodes:
		return "episodes_view_" + req.PodcastID
	case KindAudio:
		return "audio_view_" + req.ListingURL
	default:
		return string(req.Kind)
	}
}

func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), "_")
}

// TTLPolicy assigns each job type a time-to-live class. Search results churn
// with every new query and get the long TTL; episode and audio listings for
// a known podcast change rarely and get the daily one. Pending bounds how
// long a registration can block re-scraping of its key when a worker dies.
type TTLPolicy struct {
	Search    time.Duration
	Listing   time.Duration
	Pending   time.Duration
	JobRecord time.Duration
}

// DefaultTTLPolicy mirrors the cache windows the service has always used.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		Search:    30 * 24 * time.Hour,
		Listing:   24 * time.Hour,
		Pending:   10 * time.Minute,
		JobRecord: time.Hour,
	}
}

// CacheTTL returns the cache TTL class for a request kind.
func (p TTLPolicy) CacheTTL(kind Kind) time.Duration {
	if kind == KindSearch {
		return p.Search
	}
	return p.Listing
}
