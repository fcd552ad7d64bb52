// Package reader holds the article and feed state for one reading session:
// which articles are visible under the time filter, what the user did with
// them, and how far through the queue they are.
package reader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/robertmeta/swipe-news/feed"
	"github.com/robertmeta/swipe-news/model"
	"github.com/robertmeta/swipe-news/selection"
	"github.com/robertmeta/swipe-news/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultFallbackDelay separates attempts while widening an empty filter.
const DefaultFallbackDelay = 500 * time.Millisecond

// Source fetches the merged article list for a set of feeds.
type Source interface {
	FetchAll(ctx context.Context, feeds []model.Feed) (*feed.Batch, error)
}

// Status is the coarse state of a Session.
type Status string

const (
	StatusLoading  Status = "loading"
	StatusError    Status = "error"
	StatusReady    Status = "ready"
	StatusCaughtUp Status = "caught-up"
)

// Options configure a Session.
type Options struct {
	// FallbackDelay is the pause between filter attempts. Zero disables it.
	FallbackDelay time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now      func() time.Time
	Notifier Notifier
	Log      logrus.FieldLogger
}

// Resolution reports how a requested filter was satisfied.
type Resolution struct {
	Requested model.TimeFilter   `json:"requested"`
	Actual    model.TimeFilter   `json:"actual"`
	Tried     []model.TimeFilter `json:"tried"`
	Count     int                `json:"count"`
}

// Switched reports whether the filter was widened.
func (r Resolution) Switched() bool {
	return r.Count > 0 && r.Actual != r.Requested
}

// undoStep remembers what a ledger append changed so Undo can restore it.
type undoStep struct {
	pos      int
	itemID   string
	prevRead bool
	moved    bool
}

// Session is the state manager for one reader. It is not safe for
// concurrent use.
type Session struct {
	st    *store.State
	src   Source
	opts  Options
	log   logrus.FieldLogger
	now   func() time.Time
	notes Notifier

	all      []model.Article
	visible  []model.Article
	origins  map[string]string
	names    map[string]string
	statuses []feed.FeedStatus

	index          int
	loading        bool
	loadingMessage string
	err            error
	journal        []undoStep

	ctxID, ctxName string
}

// NewSession creates a Session over loaded state. src may be nil when
// articles are supplied with SetArticles.
func NewSession(st *store.State, src Source, opts Options) *Session {
	s := &Session{
		st:      st,
		src:     src,
		opts:    opts,
		log:     opts.Log,
		now:     opts.Now,
		notes:   opts.Notifier,
		origins: map[string]string{},
		names:   map[string]string{},
		ctxID:   selection.MultiFeedID,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.notes == nil {
		s.notes = LogNotifier{Log: s.log}
	}
	return s
}

// SetContext sets the feed context recorded on ledger entries for articles
// whose origin feed is unknown.
func (s *Session) SetContext(feedID, feedName string) {
	s.ctxID, s.ctxName = feedID, feedName
}

// UseSelection takes the feed context from sel.
func (s *Session) UseSelection(sel *selection.Selection) {
	s.SetContext(sel.Context())
}

// Refresh fetches feeds and resolves the current filter over the result.
// A batch where only some feeds failed still succeeds; the failures are in
// FeedStatuses.
func (s *Session) Refresh(ctx context.Context, feeds []model.Feed) (Resolution, error) {
	if err := s.Fetch(ctx, feeds); err != nil {
		return Resolution{}, err
	}
	s.loading = true
	defer func() { s.loading = false }()
	return s.apply(ctx, s.st.Filter, false)
}

// Fetch replaces the article list with a fresh fetch of feeds without
// resolving a filter. The visible list is empty until the next resolution.
func (s *Session) Fetch(ctx context.Context, feeds []model.Feed) error {
	if s.src == nil {
		return errors.New("session has no article source")
	}

	s.loading = true
	defer func() { s.loading = false }()
	s.loadingMessage = s.st.Filter.LoadingMessage()

	for _, f := range feeds {
		s.names[f.ID] = f.Name
	}

	batch, err := s.src.FetchAll(ctx, feeds)
	if batch != nil {
		s.statuses = batch.Statuses
	}
	if err != nil {
		s.err = err
		s.all, s.visible, s.index = nil, nil, 0
		s.notify(Notice{Title: "Failed to load articles", Description: err.Error(), Level: LevelError})
		return err
	}

	for _, st := range batch.Failed() {
		s.notify(Notice{Title: "Failed to load feed " + st.FeedID, Description: st.Error, Level: LevelError})
	}
	s.origins = batch.Origins
	if s.origins == nil {
		s.origins = map[string]string{}
	}
	s.setAll(batch.Articles)
	return nil
}

// SetArticles replaces the fetched article list and resolves the current
// filter over it.
func (s *Session) SetArticles(ctx context.Context, articles []model.Article) (Resolution, error) {
	s.origins = map[string]string{}
	s.setAll(articles)

	s.loading = true
	defer func() { s.loading = false }()
	return s.apply(ctx, s.st.Filter, false)
}

func (s *Session) setAll(articles []model.Article) {
	s.err = nil
	s.all = slices.Clone(articles)
	s.visible, s.index = nil, 0
	feed.SortByDate(s.all)
}

// ChangeFilter resolves f with fallback and persists the filter that won.
// The index is reset to zero. When resolution is cancelled the previous
// filter, list and index are kept.
func (s *Session) ChangeFilter(ctx context.Context, f model.TimeFilter) (Resolution, error) {
	if !f.Valid() {
		return Resolution{}, fmt.Errorf("%w: %q", model.ErrInvalidFilter, f)
	}

	s.loading = true
	defer func() { s.loading = false }()

	prev := s.st.Filter
	s.st.Filter = f
	res, err := s.apply(ctx, f, true)
	if err != nil {
		s.st.Filter = prev
		return res, err
	}
	_ = s.st.SaveFilter()
	return res, nil
}

// Resolve tries requested and, when it is empty and may widen, the rest of
// the fallback ladder. Attempts are paced by the fallback delay.
func (s *Session) Resolve(ctx context.Context, requested model.TimeFilter) (Resolution, []model.Article, error) {
	res := Resolution{Requested: requested, Actual: requested}
	pace := rate.NewLimiter(rate.Every(s.opts.FallbackDelay), 1)
	pace.Allow()

	now := s.now()
	for i, f := range Candidates(requested) {
		if i > 0 {
			if err := pace.Wait(ctx); err != nil {
				return res, nil, err
			}
		}
		s.loadingMessage = f.LoadingMessage()
		s.notify(Notice{Title: s.loadingMessage, Level: LevelProgress})
		res.Tried = append(res.Tried, f)

		if got := FilterByTime(s.all, f, now); len(got) > 0 {
			res.Actual = f
			res.Count = len(got)
			return res, got, nil
		}
	}
	return res, nil, nil
}

func (s *Session) apply(ctx context.Context, requested model.TimeFilter, explicit bool) (Resolution, error) {
	res, articles, err := s.Resolve(ctx, requested)
	if err != nil {
		return res, err
	}

	s.visible = articles
	s.index = 0

	switch {
	case res.Count == 0:
		s.notify(Notice{
			Title:       "No articles available",
			Description: "No articles found in any time period. Try checking back later.",
			Level:       LevelInfo,
		})
	case res.Switched():
		s.st.Filter = res.Actual
		_ = s.st.SaveFilter()
		s.notify(Notice{
			Title:       fmt.Sprintf("No articles found for %s", res.Requested),
			Description: fmt.Sprintf("Auto-switched to %s filter (%d articles found)", res.Actual, res.Count),
			Level:       LevelInfo,
		})
	case explicit:
		s.notify(Notice{
			Title:       fmt.Sprintf("Switched to %s view", res.Actual),
			Description: fmt.Sprintf("%s (%d articles)", res.Actual.Description(), res.Count),
			Level:       LevelInfo,
		})
	}

	s.log.WithFields(logrus.Fields{
		"requested": res.Requested,
		"actual":    res.Actual,
		"count":     res.Count,
	}).Debug("resolved time filter")
	return res, nil
}

func (s *Session) notify(n Notice) {
	s.notes.Notify(n)
}

// feedContext returns the feed recorded for an action on id.
func (s *Session) feedContext(id string) (string, string) {
	if origin, ok := s.origins[id]; ok {
		return origin, s.names[origin]
	}
	return s.ctxID, s.ctxName
}

// Filter returns the active time filter.
func (s *Session) Filter() model.TimeFilter { return s.st.Filter }

// Loading reports whether a refresh or filter change is in progress.
func (s *Session) Loading() bool { return s.loading }

// LoadingMessage returns the message for the latest resolution attempt.
func (s *Session) LoadingMessage() string { return s.loadingMessage }

// Err returns the error from the last refresh, if it failed.
func (s *Session) Err() error { return s.err }

// FeedStatuses returns the per-feed outcome of the last refresh.
func (s *Session) FeedStatuses() []feed.FeedStatus { return slices.Clone(s.statuses) }

// State returns the underlying persisted state.
func (s *Session) State() *store.State { return s.st }

// Status summarises the session.
func (s *Session) Status() Status {
	switch {
	case s.loading:
		return StatusLoading
	case s.err != nil:
		return StatusError
	case len(s.Unread()) == 0:
		return StatusCaughtUp
	}
	return StatusReady
}
