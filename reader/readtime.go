package reader

import (
	"math"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/robertmeta/swipe-news/model"
)

const (
	// WordsPerMinute is the assumed reading speed.
	WordsPerMinute = 200
	// MinReadingTime is the floor for ReadingTime.
	MinReadingTime = 3 * time.Second
	// MinAutoPlayDelay is the floor for AutoPlayDelay.
	MinAutoPlayDelay = 5 * time.Second
)

// ReadingTime estimates how long the card text (title and description)
// takes to read, rounded up to whole seconds.
func ReadingTime(a model.Article) time.Duration {
	words := len(strings.Fields(a.Title + " " + PlainText(a.Description)))
	secs := math.Ceil(float64(words) / WordsPerMinute * 60)
	d := time.Duration(secs) * time.Second
	if d < MinReadingTime {
		return MinReadingTime
	}
	return d
}

// AutoPlayDelay is how long auto-play stays on an article.
func AutoPlayDelay(a model.Article) time.Duration {
	if d := ReadingTime(a); d > MinAutoPlayDelay {
		return d
	}
	return MinAutoPlayDelay
}

// PlainText strips markup from an HTML fragment.
func PlainText(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return html
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return doc.Text()
}
