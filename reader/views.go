package reader

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/robertmeta/swipe-news/model"
)

// All returns every fetched article, newest first.
func (s *Session) All() []model.Article { return slices.Clone(s.all) }

// Articles returns the articles visible under the active filter.
func (s *Session) Articles() []model.Article { return slices.Clone(s.visible) }

// Find returns the fetched article with id.
func (s *Session) Find(id string) (model.Article, error) {
	for _, a := range s.all {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Article{}, fmt.Errorf("article %q: %w", id, model.ErrNotFound)
}

// Unread returns the visible articles that are not read.
func (s *Session) Unread() []model.Article {
	return s.keep(s.visible, func(m model.Mark) bool { return !m.Read })
}

// Read returns every fetched article marked read.
func (s *Session) Read() []model.Article {
	return s.keep(s.all, func(m model.Mark) bool { return m.Read })
}

// SavedForLater returns saved articles that have not been read.
func (s *Session) SavedForLater() []model.Article {
	return s.keep(s.all, func(m model.Mark) bool { return m.Saved && !m.Read })
}

// Liked returns fetched articles whose latest action is a like.
func (s *Session) Liked() []model.Article {
	latest := make(map[string]model.Action, len(s.st.Ledger))
	for _, a := range s.st.Ledger {
		latest[a.ItemID] = a.Action
	}
	out := []model.Article{}
	for _, a := range s.all {
		if latest[a.ID] == model.ActionLike {
			out = append(out, a)
		}
	}
	return out
}

func (s *Session) keep(articles []model.Article, pred func(model.Mark) bool) []model.Article {
	out := []model.Article{}
	for _, a := range articles {
		if pred(s.st.Mark(a.ID)) {
			out = append(out, a)
		}
	}
	return out
}

// Ledger returns a copy of the action history, oldest first.
func (s *Session) Ledger() []model.SwipeAction { return slices.Clone(s.st.Ledger) }

// DailyGoal returns the daily goal.
func (s *Session) DailyGoal() int { return s.st.DailyGoal }

// DailyStats counts today's ledger entries. Today starts at local midnight.
func (s *Session) DailyStats() model.DailyStats {
	now := s.now()
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, 1)

	stats := model.DailyStats{DailyGoal: s.st.DailyGoal}
	for _, a := range s.st.Ledger {
		t := a.Time()
		if t.Before(start) || !t.Before(end) {
			continue
		}
		stats.TodayRead++
		switch a.Action {
		case model.ActionLike:
			stats.TodayLiked++
		case model.ActionBookmark:
			stats.TodayBookmarked++
		case model.ActionDismiss:
			stats.TodayDismissed++
		}
	}
	stats.GoalReached = stats.TodayRead >= stats.DailyGoal
	return stats
}

// DefaultTopFeeds is how many feeds Stats reports.
const DefaultTopFeeds = 3

// TopFeeds returns up to n feeds ranked by ledger entries, most first. Ties
// keep the order in which feeds first appear. Entries without a feed name
// are not counted.
func (s *Session) TopFeeds(n int) []model.FeedCount {
	counts := map[string]int{}
	var order []string
	for _, a := range s.st.Ledger {
		if a.FeedName == "" {
			continue
		}
		if _, ok := counts[a.FeedName]; !ok {
			order = append(order, a.FeedName)
		}
		counts[a.FeedName]++
	}

	out := make([]model.FeedCount, 0, len(order))
	for _, name := range order {
		out = append(out, model.FeedCount{FeedName: name, Count: counts[name]})
	}
	slices.SortStableFunc(out, func(a, b model.FeedCount) int {
		return cmp.Compare(b.Count, a.Count)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Stats returns today's progress and the top feeds.
func (s *Session) Stats() model.Stats {
	return model.Stats{
		DailyStats: s.DailyStats(),
		TopFeeds:   s.TopFeeds(DefaultTopFeeds),
	}
}

// Index returns the position in the visible list.
func (s *Session) Index() int { return s.index }

// SetIndex moves to position i, clamped to the visible list.
func (s *Session) SetIndex(i int) {
	switch {
	case i < 0 || len(s.visible) == 0:
		i = 0
	case i >= len(s.visible):
		i = len(s.visible) - 1
	}
	s.index = i
}

// Current returns the article to show: the first unread article at or after
// the index, else the first unread article. ok is false when everything
// visible has been read.
func (s *Session) Current() (model.Article, bool) {
	for i := s.index; i < len(s.visible); i++ {
		if !s.st.Mark(s.visible[i].ID).Read {
			return s.visible[i], true
		}
	}
	unread := s.Unread()
	if len(unread) == 0 {
		return model.Article{}, false
	}
	return unread[0], true
}
