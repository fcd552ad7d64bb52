package feed

import (
	"fmt"
	"io"
	"time"

	"github.com/gorilla/feeds"
	"github.com/robertmeta/swipe-news/model"
)

// Export formats.
const (
	FormatAtom = "atom"
	FormatRSS  = "rss"
	FormatJSON = "json"
)

// Export writes articles as a syndication feed in the given format.
func Export(w io.Writer, format, title string, articles []model.Article) error {
	out := &feeds.Feed{
		Title:       title,
		Link:        &feeds.Link{Href: "https://swipe-news.local/liked"},
		Description: fmt.Sprintf("%d articles", len(articles)),
		Created:     time.Now(),
	}

	for _, a := range articles {
		item := &feeds.Item{
			Id:          a.ID,
			Title:       a.Title,
			Link:        &feeds.Link{Href: a.Link},
			Description: a.Description,
			Content:     a.Content,
			Created:     a.Date,
		}
		if len(a.Author) > 0 {
			item.Author = &feeds.Author{Name: a.Author[0].Name}
		}
		if a.Source.URL != "" {
			item.Source = &feeds.Link{Href: a.Source.URL}
		}
		out.Items = append(out.Items, item)
	}

	switch format {
	case FormatAtom, "":
		return out.WriteAtom(w)
	case FormatRSS:
		return out.WriteRss(w)
	case FormatJSON:
		return out.WriteJSON(w)
	}
	return fmt.Errorf("unknown export format: %q (expected atom, rss or json)", format)
}

// ContentType returns the media type for an export format.
func ContentType(format string) string {
	switch format {
	case FormatRSS:
		return "application/rss+xml"
	case FormatJSON:
		return "application/feed+json"
	}
	return "application/atom+xml"
}
