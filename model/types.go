// Package model defines the core data structures for swipe-news.
package model

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/araddon/dateparse"
)

// Author is a named article author with an optional profile link.
type Author struct {
	Name string `json:"name"`
	Link string `json:"link,omitempty"`
}

// Category is a named article category.
type Category struct {
	Name string `json:"name"`
}

// Source describes where an article was published.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Article is a single news item as served by a feed endpoint.
// Articles are never persisted; they are re-fetched on demand.
type Article struct {
	ID          string     `json:"id"`
	GUID        string     `json:"guid,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Content     string     `json:"content,omitempty"`
	Link        string     `json:"link"`
	Date        time.Time  `json:"date"`
	Author      []Author   `json:"author,omitempty"`
	Category    []Category `json:"category,omitempty"`
	Source      Source     `json:"source"`
}

// UnmarshalJSON accepts any reasonable date string. An unparseable date
// leaves Date zero so the article sorts last instead of failing the feed.
func (a *Article) UnmarshalJSON(data []byte) error {
	type alias Article
	aux := struct {
		*alias
		Date string `json:"date"`
	}{alias: (*alias)(a)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	a.Date = time.Time{}
	if aux.Date != "" {
		if t, err := dateparse.ParseAny(aux.Date); err == nil {
			a.Date = t
		}
	}
	return nil
}

// Feed is a user-selectable source of articles.
type Feed struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	RSSURL      string `json:"rssUrl"`
	Category    string `json:"category,omitempty"`
}

// Validate checks if the feed has required fields.
func (f *Feed) Validate() error {
	if f.ID == "" {
		return errors.New("feed id is required")
	}
	if f.RSSURL == "" {
		return errors.New("feed rssUrl is required")
	}
	return nil
}

// FeedConfig is the feed configuration document.
type FeedConfig struct {
	Feeds []Feed `json:"feeds"`
}

// Find returns the feed with the given id.
func (c *FeedConfig) Find(id string) (Feed, bool) {
	for _, f := range c.Feeds {
		if f.ID == id {
			return f, true
		}
	}
	return Feed{}, false
}

// SwipeAction is one ledger entry.
type SwipeAction struct {
	ItemID    string `json:"itemId"`
	Action    Action `json:"action"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
	FeedID    string `json:"feedId,omitempty"`
	FeedName  string `json:"feedName,omitempty"`
}

// Time returns the action timestamp as a time.Time in local time.
func (s *SwipeAction) Time() time.Time {
	return time.UnixMilli(s.Timestamp)
}

// Mark is the per-article user state that is not part of the ledger.
// Read is independent of the ledger: an unread article keeps its history.
type Mark struct {
	Read  bool `json:"read"`
	Saved bool `json:"saved"`
}

// IsZero reports whether the mark carries no state.
func (m Mark) IsZero() bool {
	return !m.Read && !m.Saved
}

// DailyStats summarises today's ledger entries.
type DailyStats struct {
	TodayRead       int  `json:"todayRead"`
	TodayLiked      int  `json:"todayLiked"`
	TodayBookmarked int  `json:"todayBookmarked"`
	TodayDismissed  int  `json:"todayDismissed"`
	DailyGoal       int  `json:"dailyGoal"`
	GoalReached     bool `json:"goalReached"`
}

// FeedCount is the number of ledger entries recorded against a feed.
type FeedCount struct {
	FeedName string `json:"feedName"`
	Count    int    `json:"count"`
}

// Stats combines today's progress with the most active feeds.
type Stats struct {
	DailyStats
	TopFeeds []FeedCount `json:"topFeeds"`
}

// DefaultDailyGoal is used until the user sets one.
const DefaultDailyGoal = 20
