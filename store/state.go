package store

import (
	"errors"
	"sort"
	"strconv"

	"github.com/robertmeta/swipe-news/model"
	"github.com/sirupsen/logrus"
)

// Persisted keys. Names match the browser client so exported storage can be
// imported as-is.
const (
	KeyReadItems        = "read_mode_read_items"
	KeySwipeActions     = "read_mode_swipe_actions"
	KeyTimeFilter       = "read_mode_time_filter"
	KeySavedForLater    = "read_mode_saved_for_later"
	KeyDailyGoal        = "read_mode_daily_goal"
	KeySelectedFeeds    = "selected_feeds"
	KeySelectedFeed     = "selected_feed"
	KeyOnboarding       = "onboarding_completed"
	KeyReadingFrequency = "reading_frequency"
	KeyAutoPlay         = "autoPlay"
	KeyAutoRead         = "autoRead"
	KeySelectedVoice    = "selectedVoice"
)

// Preferences are UI flags that are stored and returned but drive no logic.
type Preferences struct {
	OnboardingCompleted bool   `json:"onboardingCompleted"`
	ReadingFrequency    string `json:"readingFrequency,omitempty"`
	AutoPlay            bool   `json:"autoPlay"`
	AutoRead            bool   `json:"autoRead"`
	SelectedVoice       string `json:"selectedVoice,omitempty"`
}

// State is the in-memory copy of everything swipe-news persists. Load fills
// it from the Store; the Save methods write one key each. Writes are best
// effort: a failure is logged and returned, and the in-memory value stays
// authoritative. Callers that only need the write attempted may discard
// the returned error.
//
// State is not safe for concurrent use.
type State struct {
	kv  *Store
	log logrus.FieldLogger

	Ledger         []model.SwipeAction
	Marks          map[string]model.Mark
	Filter         model.TimeFilter
	DailyGoal      int
	Selected       []string
	LegacySelected string
	Prefs          Preferences
}

// NewState returns a State with defaults, backed by kv.
func NewState(kv *Store, log logrus.FieldLogger) *State {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &State{
		kv:        kv,
		log:       log,
		Marks:     make(map[string]model.Mark),
		Filter:    model.DefaultTimeFilter,
		DailyGoal: model.DefaultDailyGoal,
	}
}

// Open opens the database at path and loads the state from it.
func Open(path string, log logrus.FieldLogger) (*State, error) {
	kv, err := New(path)
	if err != nil {
		return nil, err
	}
	st := NewState(kv, log)
	if err := st.Load(); err != nil {
		kv.Close()
		return nil, err
	}
	return st, nil
}

// Close closes the underlying Store.
func (st *State) Close() error {
	return st.kv.Close()
}

// Load reads every key. Missing keys keep their defaults; malformed values
// are logged and replaced by defaults. Only database errors are returned.
func (st *State) Load() error {
	var ledger []model.SwipeAction
	if ok, err := st.loadJSON(KeySwipeActions, &ledger); err != nil {
		return err
	} else if !ok {
		ledger = nil
	}
	st.Ledger = nil
	for _, a := range ledger {
		if a.ItemID == "" || !a.Action.Valid() {
			st.log.WithField("item", a.ItemID).Warn("dropping malformed swipe action")
			continue
		}
		st.Ledger = append(st.Ledger, a)
	}

	var readIDs, savedIDs []string
	if ok, err := st.loadJSON(KeyReadItems, &readIDs); err != nil {
		return err
	} else if !ok {
		readIDs = nil
	}
	if ok, err := st.loadJSON(KeySavedForLater, &savedIDs); err != nil {
		return err
	} else if !ok {
		savedIDs = nil
	}
	st.Marks = make(map[string]model.Mark, len(readIDs)+len(savedIDs))
	for _, id := range readIDs {
		m := st.Marks[id]
		m.Read = true
		st.Marks[id] = m
	}
	for _, id := range savedIDs {
		m := st.Marks[id]
		m.Saved = true
		st.Marks[id] = m
	}

	raw, ok, err := st.loadRaw(KeyTimeFilter)
	if err != nil {
		return err
	}
	if ok {
		if f, perr := model.ParseTimeFilter(unquote(raw)); perr == nil {
			st.Filter = f
		} else {
			st.log.WithError(perr).Warn("ignoring stored time filter")
		}
	}

	raw, ok, err = st.loadRaw(KeyDailyGoal)
	if err != nil {
		return err
	}
	if ok {
		if n, perr := strconv.Atoi(unquote(raw)); perr == nil && n >= 1 {
			st.DailyGoal = n
		} else {
			st.log.WithField("value", raw).Warn("ignoring stored daily goal")
		}
	}

	var selected []string
	if ok, err := st.loadJSON(KeySelectedFeeds, &selected); err != nil {
		return err
	} else if !ok {
		selected = nil
	}
	st.Selected = selected
	raw, ok, err = st.loadRaw(KeySelectedFeed)
	if err != nil {
		return err
	}
	if ok {
		st.LegacySelected = unquote(raw)
	}

	return st.loadPrefs()
}

func (st *State) loadPrefs() error {
	flags := []struct {
		key string
		dst *bool
	}{
		{KeyOnboarding, &st.Prefs.OnboardingCompleted},
		{KeyAutoPlay, &st.Prefs.AutoPlay},
		{KeyAutoRead, &st.Prefs.AutoRead},
	}
	for _, f := range flags {
		raw, ok, err := st.loadRaw(f.key)
		if err != nil {
			return err
		}
		*f.dst = ok && unquote(raw) == "true"
	}

	strs := []struct {
		key string
		dst *string
	}{
		{KeyReadingFrequency, &st.Prefs.ReadingFrequency},
		{KeySelectedVoice, &st.Prefs.SelectedVoice},
	}
	for _, s := range strs {
		raw, ok, err := st.loadRaw(s.key)
		if err != nil {
			return err
		}
		if ok {
			*s.dst = unquote(raw)
		}
	}
	return nil
}

// loadJSON decodes key into v. It reports false when the key is missing or
// malformed; a malformed value is logged.
func (st *State) loadJSON(key string, v interface{}) (bool, error) {
	err := st.kv.GetJSON(key, v)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrKeyNotFound):
		return false, nil
	case errors.Is(err, ErrMalformed):
		st.log.WithError(err).WithField("key", key).Warn("ignoring malformed stored value")
		return false, nil
	default:
		return false, err
	}
}

func (st *State) loadRaw(key string) (string, bool, error) {
	raw, err := st.kv.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return raw, true, nil
}

// unquote accepts both raw strings and JSON-encoded strings.
func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// ReadIDs returns the ids marked read, sorted.
func (st *State) ReadIDs() []string {
	return st.markIDs(func(m model.Mark) bool { return m.Read })
}

// SavedIDs returns the ids saved for later, sorted.
func (st *State) SavedIDs() []string {
	return st.markIDs(func(m model.Mark) bool { return m.Saved })
}

func (st *State) markIDs(keep func(model.Mark) bool) []string {
	ids := []string{}
	for id, m := range st.Marks {
		if keep(m) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Mark returns the mark for id.
func (st *State) Mark(id string) model.Mark {
	return st.Marks[id]
}

// SetMark replaces the mark for id, dropping empty marks.
func (st *State) SetMark(id string, m model.Mark) {
	if m.IsZero() {
		delete(st.Marks, id)
		return
	}
	st.Marks[id] = m
}

// SaveLedger persists the swipe-action ledger.
func (st *State) SaveLedger() error {
	ledger := st.Ledger
	if ledger == nil {
		ledger = []model.SwipeAction{}
	}
	return st.logged(KeySwipeActions, st.kv.SetJSON(KeySwipeActions, ledger))
}

// SaveReadItems persists the read set.
func (st *State) SaveReadItems() error {
	return st.logged(KeyReadItems, st.kv.SetJSON(KeyReadItems, st.ReadIDs()))
}

// SaveSavedForLater persists the saved-for-later set.
func (st *State) SaveSavedForLater() error {
	return st.logged(KeySavedForLater, st.kv.SetJSON(KeySavedForLater, st.SavedIDs()))
}

// SaveFilter persists the time filter.
func (st *State) SaveFilter() error {
	return st.logged(KeyTimeFilter, st.kv.Set(KeyTimeFilter, string(st.Filter)))
}

// SaveDailyGoal persists the daily goal.
func (st *State) SaveDailyGoal() error {
	return st.logged(KeyDailyGoal, st.kv.Set(KeyDailyGoal, strconv.Itoa(st.DailyGoal)))
}

// SaveSelection persists the selected feed ids and the legacy single-feed key.
func (st *State) SaveSelection() error {
	selected := st.Selected
	if selected == nil {
		selected = []string{}
	}
	if err := st.logged(KeySelectedFeeds, st.kv.SetJSON(KeySelectedFeeds, selected)); err != nil {
		return err
	}
	if len(selected) == 0 {
		return nil
	}
	st.LegacySelected = selected[0]
	return st.logged(KeySelectedFeed, st.kv.Set(KeySelectedFeed, selected[0]))
}

// SavePrefs persists the preference flags.
func (st *State) SavePrefs() error {
	p := st.Prefs
	writes := []struct{ key, value string }{
		{KeyOnboarding, strconv.FormatBool(p.OnboardingCompleted)},
		{KeyAutoPlay, strconv.FormatBool(p.AutoPlay)},
		{KeyAutoRead, strconv.FormatBool(p.AutoRead)},
		{KeyReadingFrequency, p.ReadingFrequency},
		{KeySelectedVoice, p.SelectedVoice},
	}
	for _, w := range writes {
		if err := st.logged(w.key, st.kv.Set(w.key, w.value)); err != nil {
			return err
		}
	}
	return nil
}

func (st *State) logged(key string, err error) error {
	if err != nil {
		st.log.WithError(err).WithField("key", key).Warn("failed to persist state")
	}
	return err
}
