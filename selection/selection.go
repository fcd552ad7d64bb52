// Package selection resolves which feeds are active and mirrors the choice
// into a shareable query string.
package selection

import (
	"net/url"
	"strings"

	"github.com/robertmeta/swipe-news/model"
	"github.com/robertmeta/swipe-news/store"
)

const (
	// QueryParam is the query-string parameter carrying the selection.
	QueryParam = "feeds"
	// DefaultFeedID is selected when nothing else resolves.
	DefaultFeedID = "crypto-grants"
	// MultiFeedID and MultiFeedName label ledger entries made while several
	// feeds are selected.
	MultiFeedID   = "multi"
	MultiFeedName = "Multi-Feed"
)

// Source says where a resolved selection came from.
type Source string

const (
	SourceQuery     Source = "query"
	SourceStored    Source = "stored"
	SourceLegacy    Source = "legacy"
	SourceDefault   Source = "default"
	SourceFirstFeed Source = "first-feed"
	SourceNone      Source = "none"
)

// Encode returns the query string for ids, e.g. "feeds=a,b", without a
// leading "?". Commas are kept literal so the link stays readable. No ids
// yields "".
func Encode(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = url.QueryEscape(id)
	}
	return QueryParam + "=" + strings.Join(escaped, ",")
}

// Parse extracts feed ids from a raw query string. A leading "?" is
// allowed. Empty ids are dropped.
func Parse(rawQuery string) []string {
	values, err := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))
	if err != nil {
		return nil
	}
	var ids []string
	for _, v := range values[QueryParam] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Validate keeps the ids that name a configured feed, in order, without
// duplicates.
func Validate(ids []string, cfg *model.FeedConfig) []string {
	var valid []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		if _, ok := cfg.Find(id); ok {
			valid = append(valid, id)
			seen[id] = true
		}
	}
	return valid
}

// Resolve picks the active selection in priority order: query string,
// stored selection, legacy single-feed key, the default feed, then the
// first configured feed.
func Resolve(rawQuery string, st *store.State, cfg *model.FeedConfig) ([]string, Source) {
	if ids := Validate(Parse(rawQuery), cfg); len(ids) > 0 {
		return ids, SourceQuery
	}
	if ids := Validate(st.Selected, cfg); len(ids) > 0 {
		return ids, SourceStored
	}
	if st.LegacySelected != "" {
		if ids := Validate([]string{st.LegacySelected}, cfg); len(ids) > 0 {
			return ids, SourceLegacy
		}
	}
	if _, ok := cfg.Find(DefaultFeedID); ok {
		return []string{DefaultFeedID}, SourceDefault
	}
	if len(cfg.Feeds) > 0 {
		return []string{cfg.Feeds[0].ID}, SourceFirstFeed
	}
	return nil, SourceNone
}

// Selection is the active feed selection.
type Selection struct {
	cfg *model.FeedConfig
	st  *store.State
	ids []string
}

// New resolves the selection against cfg. See Resolve.
func New(rawQuery string, st *store.State, cfg *model.FeedConfig) (*Selection, Source) {
	ids, src := Resolve(rawQuery, st, cfg)
	return &Selection{cfg: cfg, st: st, ids: ids}, src
}

// IDs returns the selected feed ids.
func (s *Selection) IDs() []string {
	return append([]string(nil), s.ids...)
}

// Feeds returns the selected feeds in selection order.
func (s *Selection) Feeds() []model.Feed {
	var feeds []model.Feed
	for _, id := range s.ids {
		if f, ok := s.cfg.Find(id); ok {
			feeds = append(feeds, f)
		}
	}
	return feeds
}

// Change replaces the selection, persists it and returns the new query
// string. Unknown ids are dropped. An empty selection is allowed.
func (s *Selection) Change(ids []string) string {
	s.ids = Validate(ids, s.cfg)
	s.st.Selected = s.IDs()
	_ = s.st.SaveSelection()
	return s.Query()
}

// Query returns the query string for the current selection, without a
// leading "?".
func (s *Selection) Query() string {
	return Encode(s.ids)
}

// Link returns the shareable link suffix, e.g. "?feeds=a,b", or "" when
// nothing is selected.
func (s *Selection) Link() string {
	q := s.Query()
	if q == "" {
		return ""
	}
	return "?" + q
}

// Context returns the feed id and name recorded on ledger entries made
// under this selection.
func (s *Selection) Context() (id, name string) {
	switch len(s.ids) {
	case 0:
		return MultiFeedID, ""
	case 1:
		f, _ := s.cfg.Find(s.ids[0])
		return f.ID, f.Name
	}
	return s.ids[0], MultiFeedName
}
