package reader

import (
	"time"

	"github.com/robertmeta/swipe-news/model"
)

// Window lengths. A month is approximated as 30 days.
const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
)

// InWindow reports whether an article dated date is visible under f at now.
// day, week and month keep articles strictly newer than the cutoff; before
// keeps articles at or older than the month cutoff; all and demo keep
// everything. Undated articles only appear under all and demo.
func InWindow(f model.TimeFilter, date, now time.Time) bool {
	if date.IsZero() {
		return !f.Bounded()
	}
	switch f {
	case model.FilterDay:
		return date.After(now.Add(-Day))
	case model.FilterWeek:
		return date.After(now.Add(-Week))
	case model.FilterMonth:
		return date.After(now.Add(-Month))
	case model.FilterBefore:
		return !date.After(now.Add(-Month))
	}
	return true
}

// FilterByTime returns the articles visible under f, keeping their order.
func FilterByTime(articles []model.Article, f model.TimeFilter, now time.Time) []model.Article {
	out := []model.Article{}
	for _, a := range articles {
		if InWindow(f, a.Date, now) {
			out = append(out, a)
		}
	}
	return out
}

// Candidates returns the filters tried for requested, in order.
func Candidates(requested model.TimeFilter) []model.TimeFilter {
	out := []model.TimeFilter{requested}
	if !requested.Widens() {
		return out
	}
	for _, f := range model.FallbackOrder {
		if f != requested {
			out = append(out, f)
		}
	}
	return out
}
