package scraper

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/ivoox-scraper/internal/metrics"
)

// StopStrategy decides when a multi-page traversal is done. The site gives
// different "last page" signals for different listings, so the caller tags
// the shared loop with the one that applies.
type StopStrategy int

const (
	// StopWhenNoNodes ends the traversal after a page yields zero records.
	// Used where the site exposes no explicit pagination marker.
	StopWhenNoNodes StopStrategy = iota
	// StopWhenNoNextPage ends the traversal when the pagination control no
	// longer points at a next page (or the page yields zero records).
	StopWhenNoNextPage
)

// pageFunc extracts the records of a single parsed page.
type pageFunc[T any] func(doc *goquery.Document) []T

// paginate drives fetch+extract over a numeric page sequence.
//
// If explicitPage is > 0 exactly that one page is fetched. Otherwise pages
// are walked from 1 upward until the stop strategy holds. A fetch failure
// terminates the traversal with whatever was accumulated; it is an error
// only when the very first page fails and nothing was collected.
//
// onPage, when non-nil, runs against every fetched document before
// extraction; an error from it aborts the traversal and is returned as-is.
func paginate[T any](
	ctx context.Context,
	fetch Fetcher,
	operation string,
	urlFor func(page int) string,
	extract pageFunc[T],
	stop StopStrategy,
	explicitPage int,
	onPage func(page int, doc *goquery.Document) error,
	logger *zap.Logger,
) ([]T, error) {
	page := 1
	if explicitPage > 0 {
		page = explicitPage
	}

	var out []T
	for {
		url := urlFor(page)
		doc, err := fetch.Fetch(ctx, url)
		if err != nil {
			metrics.ObservePage(operation, "error")
			if len(out) == 0 {
				return nil, fmt.Errorf("fetch page %d: %w", page, err)
			}
			// Partial results beat an all-or-nothing abort.
			logger.Warn("page fetch failed, returning accumulated records",
				zap.String("url", url), zap.Int("page", page), zap.Error(err))
			return out, nil
		}
		metrics.ObservePage(operation, "ok")

		if onPage != nil {
			if err := onPage(page, doc); err != nil {
				return out, err
			}
		}

		records := extract(doc)
		out = append(out, records...)
		logger.Debug("page extracted",
			zap.String("url", url), zap.Int("page", page), zap.Int("records", len(records)))

		if explicitPage > 0 {
			return out, nil
		}
		switch stop {
		case StopWhenNoNodes:
			if len(records) == 0 {
				return out, nil
			}
		case StopWhenNoNextPage:
			if len(records) == 0 || !hasNextPage(doc) {
				return out, nil
			}
		}
		page++
	}
}
