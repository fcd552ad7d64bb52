package model

import "fmt"

// TimeFilter selects which date range of articles is visible.
type TimeFilter string

const (
	FilterDay    TimeFilter = "day"
	FilterWeek   TimeFilter = "week"
	FilterMonth  TimeFilter = "month"
	FilterBefore TimeFilter = "before"
	FilterAll    TimeFilter = "all"
	FilterDemo   TimeFilter = "demo"
)

// DefaultTimeFilter is used when nothing is persisted.
const DefaultTimeFilter = FilterDay

// FallbackOrder is the widening ladder tried when a filter is empty.
var FallbackOrder = []TimeFilter{FilterDay, FilterWeek, FilterMonth, FilterAll}

// Valid reports whether f is a known filter.
func (f TimeFilter) Valid() bool {
	switch f {
	case FilterDay, FilterWeek, FilterMonth, FilterBefore, FilterAll, FilterDemo:
		return true
	}
	return false
}

// Widens reports whether an empty result for f falls through the ladder.
// all is already unbounded; before and demo are exact.
func (f TimeFilter) Widens() bool {
	switch f {
	case FilterDay, FilterWeek, FilterMonth:
		return true
	}
	return false
}

// Bounded reports whether f limits articles by date.
func (f TimeFilter) Bounded() bool {
	return f != FilterAll && f != FilterDemo
}

// ParseTimeFilter parses a filter name.
func ParseTimeFilter(s string) (TimeFilter, error) {
	f := TimeFilter(s)
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q (expected day, week, month, before, all or demo)", ErrInvalidFilter, s)
	}
	return f, nil
}

// LoadingMessage is shown while articles for f are being resolved.
func (f TimeFilter) LoadingMessage() string {
	switch f {
	case FilterDay:
		return "Loading articles from the past 24 hours..."
	case FilterWeek:
		return "Loading articles from the past week..."
	case FilterMonth:
		return "Loading articles from the past month..."
	case FilterBefore:
		return "Loading older articles..."
	case FilterAll:
		return "Loading all articles..."
	case FilterDemo:
		return "Loading demo articles..."
	}
	return "Loading articles..."
}

// Description describes the window f shows.
func (f TimeFilter) Description() string {
	switch f {
	case FilterDay:
		return "Showing articles from the last 24 hours"
	case FilterWeek:
		return "Showing articles from the last 7 days"
	case FilterMonth:
		return "Showing articles from the last 30 days"
	case FilterBefore:
		return "Showing articles older than 30 days"
	case FilterAll:
		return "Showing all available articles"
	case FilterDemo:
		return "Demo mode: explore past articles"
	}
	return ""
}
