// Package opml imports and exports the swipe-news feed configuration as OPML.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/gosimple/slug"
	"github.com/robertmeta/swipe-news/model"
)

// OPML represents the root OPML structure.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains metadata about the OPML document.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outline elements (feeds).
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline represents a feed or category in OPML.
type Outline struct {
	Text        string    `xml:"text,attr,omitempty"`
	Title       string    `xml:"title,attr,omitempty"`
	Description string    `xml:"description,attr,omitempty"`
	Type        string    `xml:"type,attr,omitempty"`
	XMLUrl      string    `xml:"xmlUrl,attr,omitempty"`
	Category    string    `xml:"category,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// Parse reads an OPML file and extracts feeds. Feed ids are slugs of the
// outline title (or the feed host when untitled), made unique by suffix.
func Parse(r io.Reader) ([]model.Feed, error) {
	var opml OPML
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&opml); err != nil {
		return nil, fmt.Errorf("failed to parse OPML: %w", err)
	}

	feeds := extractFeeds(opml.Body.Outlines, "")

	used := make(map[string]int)
	for i := range feeds {
		feeds[i].ID = uniqueID(feedID(feeds[i]), used)
	}

	return feeds, nil
}

func feedID(f model.Feed) string {
	if id := slug.Make(f.Name); id != "" {
		return id
	}
	if u, err := url.Parse(f.RSSURL); err == nil && u.Host != "" {
		return slug.Make(u.Host)
	}
	return "feed"
}

func uniqueID(id string, used map[string]int) string {
	used[id]++
	if n := used[id]; n > 1 {
		return id + "-" + strconv.Itoa(n)
	}
	return id
}

// extractFeeds recursively extracts feeds from outlines.
// parentCategory is used for nested outlines that don't specify their own category.
func extractFeeds(outlines []Outline, parentCategory string) []model.Feed {
	var feeds []model.Feed

	for _, outline := range outlines {
		// If this outline has an xmlUrl, it's a feed
		if outline.XMLUrl != "" {
			feed := model.Feed{
				RSSURL:      outline.XMLUrl,
				Name:        outline.Title,
				Description: outline.Description,
			}

			// Use explicit category if provided, otherwise inherit from parent
			if outline.Category != "" {
				feed.Category = outline.Category
			} else if parentCategory != "" {
				feed.Category = parentCategory
			}

			// Fallback to text if title is empty
			if feed.Name == "" {
				feed.Name = outline.Text
			}

			feeds = append(feeds, feed)
		}

		// Recursively process nested outlines
		if len(outline.Outlines) > 0 {
			// Use outline text as category for children if they don't have one
			categoryForChildren := outline.Text
			if categoryForChildren == "" {
				categoryForChildren = parentCategory
			}

			childFeeds := extractFeeds(outline.Outlines, categoryForChildren)
			feeds = append(feeds, childFeeds...)
		}
	}

	return feeds
}

// Generate creates an OPML file from a list of feeds. Categories are
// written in name order.
func Generate(w io.Writer, feeds []model.Feed) error {
	// Group feeds by category
	categories := make(map[string][]model.Feed)
	var names []string
	var uncategorized []model.Feed

	for _, feed := range feeds {
		if feed.Category == "" {
			uncategorized = append(uncategorized, feed)
			continue
		}
		if _, ok := categories[feed.Category]; !ok {
			names = append(names, feed.Category)
		}
		categories[feed.Category] = append(categories[feed.Category], feed)
	}
	sort.Strings(names)

	opml := OPML{
		Version: "2.0",
		Head: Head{
			Title:       "swipe-news Feeds",
			DateCreated: time.Now().Format(time.RFC1123),
		},
		Body: Body{
			Outlines: []Outline{},
		},
	}

	for _, category := range names {
		categoryOutline := Outline{
			Text:     category,
			Title:    category,
			Outlines: []Outline{},
		}
		for _, feed := range categories[category] {
			categoryOutline.Outlines = append(categoryOutline.Outlines, feedOutline(feed))
		}
		opml.Body.Outlines = append(opml.Body.Outlines, categoryOutline)
	}

	// Uncategorized feeds go directly in the body
	for _, feed := range uncategorized {
		opml.Body.Outlines = append(opml.Body.Outlines, feedOutline(feed))
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")

	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}

	if err := encoder.Encode(opml); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}

	if _, err := w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write final newline: %w", err)
	}

	return nil
}

func feedOutline(feed model.Feed) Outline {
	return Outline{
		Type:        "rss",
		Text:        feed.Name,
		Title:       feed.Name,
		Description: feed.Description,
		XMLUrl:      feed.RSSURL,
		Category:    feed.Category,
	}
}
