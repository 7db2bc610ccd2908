package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Structural signatures of the repeated result cards. The site renders one
// container div per search result / episode.
const (
	podcastNodeSelector = "div.front.modulo-view.modulo-type-programa"
	episodeNodeSelector = "div.front.modulo-view.modulo-type-episodio"

	audioLinkSelector  = "a[href*='mp3_rf_'].font-size-14.font-size-md-16"
	audioThumbSelector = "img[src*='img-static.ivoox.com'].img-hover.img-rounded"
)

// extractPodcasts returns one Podcast per well-formed result card. Cards
// whose href carries no parsable `_sq_<id>_1.html` reference are skipped,
// never aborting the rest of the page.
func extractPodcasts(doc *goquery.Document, logger *zap.Logger) []Podcast {
	var podcasts []Podcast
	doc.Find(podcastNodeSelector).Each(func(_ int, node *goquery.Selection) {
		link := node.Find("a").First()
		if link.Length() == 0 {
			logger.Debug("podcast node without link, skipping")
			return
		}
		href, _ := link.Attr("href")
		id, ok := podcastIDFromHref(href)
		if !ok {
			logger.Debug("podcast node with unparsable href, skipping", zap.String("href", href))
			return
		}
		thumb, _ := node.Find("img").First().Attr("src")
		podcasts = append(podcasts, Podcast{
			ID:        id,
			Name:      link.AttrOr("title", ""),
			URL:       href,
			Thumbnail: thumb,
		})
	})
	return podcasts
}

// extractEpisodes returns one Episode per well-formed episode card. A card
// missing any required sub-node is skipped.
func extractEpisodes(doc *goquery.Document, logger *zap.Logger) []Episode {
	var episodes []Episode
	doc.Find(episodeNodeSelector).Each(func(_ int, node *goquery.Selection) {
		titleWrapper := node.Find("p.title-wrapper.text-ellipsis-multiple").First()
		link := titleWrapper.Find("a").First()
		thumb := node.Find("div.header-modulo img").First()
		duration := node.Find("p.time").First()
		likes := node.Find("li.likes a").First()
		comments := node.Find("li.comments a").First()
		if link.Length() == 0 || thumb.Length() == 0 || duration.Length() == 0 ||
			likes.Length() == 0 || comments.Length() == 0 {
			logger.Debug("episode node missing required fields, skipping")
			return
		}
		episodes = append(episodes, Episode{
			Name:        link.AttrOr("title", ""),
			URL:         link.AttrOr("href", ""),
			Description: titleWrapper.Find("button").First().AttrOr("data-content", ""),
			Thumbnail:   thumb.AttrOr("src", ""),
			Duration:    strings.TrimSpace(duration.Text()),
			Likes:       strings.TrimSpace(likes.Text()),
			Comments:    strings.TrimSpace(comments.Text()),
		})
	})
	return episodes
}

// extractAudioLinks pairs episode links with their thumbnails by position and
// derives the direct listen URL for each. Links whose href carries no
// reference number are dropped rather than reported with a bogus URL.
func extractAudioLinks(doc *goquery.Document, baseURL string, logger *zap.Logger) []AudioLink {
	links := doc.Find(audioLinkSelector)
	thumbs := doc.Find(audioThumbSelector)

	var audio []AudioLink
	links.Each(func(i int, link *goquery.Selection) {
		href := link.AttrOr("href", "")
		mp3URL, err := DeriveAudioURL(baseURL + href)
		if err != nil {
			logger.Warn("dropping episode link without reference number",
				zap.String("href", href), zap.Error(err))
			return
		}
		title := link.AttrOr("title", "")
		if title == "" {
			title = strings.TrimSpace(link.Text())
		}
		var thumbSrc string
		if thumb := thumbs.Eq(i); thumb.Length() > 0 {
			thumbSrc = thumb.AttrOr("src", "")
		}
		audio = append(audio, AudioLink{
			Title:     title,
			MP3URL:    mp3URL,
			Thumbnail: thumbSrc,
		})
	})
	return audio
}

// extractPodcastName pulls the listing title rendered above the episode cards.
func extractPodcastName(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("#list_title_new").First().Text())
}

// hasNextPage reports whether the pagination control points past the current
// page. The last paginator link degrades to a bare "#" anchor on the final
// page.
func hasNextPage(doc *goquery.Document) bool {
	pages := doc.Find("a.page")
	if pages.Length() == 0 {
		return false
	}
	return pages.Last().AttrOr("href", "#") != "#"
}
