package store

import (
	"errors"
	"testing"

	"github.com/robertmeta/swipe-news/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	require.NotNil(t, s)
	defer s.Close()
}

func TestStore_SetAndGet(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get("missing")
	assert.True(t, errors.Is(err, ErrKeyNotFound))

	require.NoError(t, s.Set("k", "v1"))
	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v1", got)

	// Overwrite
	require.NoError(t, s.Set("k", "v2"))
	got, err = s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)

	require.NoError(t, s.Delete("k"))
	_, err = s.Get("k")
	assert.True(t, errors.Is(err, ErrKeyNotFound))

	// Deleting twice is fine
	assert.NoError(t, s.Delete("k"))
}

func TestStore_Keys(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("b", "1"))
	require.NoError(t, s.Set("a", "2"))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestStore_JSON(t *testing.T) {
	s, err := New(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetJSON("ids", []string{"x", "y"}))

	var ids []string
	require.NoError(t, s.GetJSON("ids", &ids))
	assert.Equal(t, []string{"x", "y"}, ids)

	require.NoError(t, s.Set("bad", "{not json"))
	err = s.GetJSON("bad", &ids)
	assert.True(t, errors.Is(err, ErrMalformed))
}

func newState(t *testing.T) (*Store, *State) {
	t.Helper()
	kv, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	st := NewState(kv, nil)
	require.NoError(t, st.Load())
	return kv, st
}

func TestState_Defaults(t *testing.T) {
	_, st := newState(t)

	assert.Empty(t, st.Ledger)
	assert.Empty(t, st.Marks)
	assert.Equal(t, model.FilterDay, st.Filter)
	assert.Equal(t, model.DefaultDailyGoal, st.DailyGoal)
	assert.Empty(t, st.Selected)
	assert.False(t, st.Prefs.OnboardingCompleted)
}

func TestState_SaveAndReload(t *testing.T) {
	kv, st := newState(t)

	st.Ledger = []model.SwipeAction{
		{ItemID: "a", Action: model.ActionLike, Timestamp: 1000, FeedID: "tech", FeedName: "Tech"},
		{ItemID: "b", Action: model.ActionBookmark, Timestamp: 2000},
	}
	st.SetMark("a", model.Mark{Read: true})
	st.SetMark("b", model.Mark{Read: true, Saved: true})
	st.SetMark("c", model.Mark{Saved: true})
	st.Filter = model.FilterWeek
	st.DailyGoal = 7
	st.Selected = []string{"tech", "world"}
	st.Prefs = Preferences{OnboardingCompleted: true, ReadingFrequency: "daily", AutoPlay: true, SelectedVoice: "v1"}

	require.NoError(t, st.SaveLedger())
	require.NoError(t, st.SaveReadItems())
	require.NoError(t, st.SaveSavedForLater())
	require.NoError(t, st.SaveFilter())
	require.NoError(t, st.SaveDailyGoal())
	require.NoError(t, st.SaveSelection())
	require.NoError(t, st.SavePrefs())

	reloaded := NewState(kv, nil)
	require.NoError(t, reloaded.Load())

	assert.Equal(t, st.Ledger, reloaded.Ledger)
	assert.Equal(t, []string{"a", "b"}, reloaded.ReadIDs())
	assert.Equal(t, []string{"b", "c"}, reloaded.SavedIDs())
	assert.Equal(t, model.FilterWeek, reloaded.Filter)
	assert.Equal(t, 7, reloaded.DailyGoal)
	assert.Equal(t, []string{"tech", "world"}, reloaded.Selected)
	assert.Equal(t, "tech", reloaded.LegacySelected)
	assert.Equal(t, st.Prefs, reloaded.Prefs)
}

func TestState_MalformedValuesFallBackToDefaults(t *testing.T) {
	kv, err := New(":memory:")
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set(KeySwipeActions, "[{broken"))
	require.NoError(t, kv.Set(KeyReadItems, `{"a":1}`))
	require.NoError(t, kv.Set(KeyTimeFilter, "fortnight"))
	require.NoError(t, kv.Set(KeyDailyGoal, "zero"))
	require.NoError(t, kv.Set(KeySelectedFeeds, "nope"))

	st := NewState(kv, nil)
	require.NoError(t, st.Load())

	assert.Empty(t, st.Ledger)
	assert.Empty(t, st.ReadIDs())
	assert.Equal(t, model.FilterDay, st.Filter)
	assert.Equal(t, model.DefaultDailyGoal, st.DailyGoal)
	assert.Empty(t, st.Selected)
}

func TestState_DropsInvalidLedgerEntries(t *testing.T) {
	kv, err := New(":memory:")
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set(KeySwipeActions,
		`[{"itemId":"a","action":"like","timestamp":1},{"itemId":"","action":"like","timestamp":2},{"itemId":"c","action":"love","timestamp":3}]`))

	st := NewState(kv, nil)
	require.NoError(t, st.Load())
	require.Len(t, st.Ledger, 1)
	assert.Equal(t, "a", st.Ledger[0].ItemID)
}

func TestState_AcceptsQuotedScalars(t *testing.T) {
	kv, err := New(":memory:")
	require.NoError(t, err)
	defer kv.Close()

	require.NoError(t, kv.Set(KeyTimeFilter, `"month"`))
	require.NoError(t, kv.Set(KeySelectedFeed, `"crypto-grants"`))

	st := NewState(kv, nil)
	require.NoError(t, st.Load())
	assert.Equal(t, model.FilterMonth, st.Filter)
	assert.Equal(t, "crypto-grants", st.LegacySelected)
}

func TestState_SetMarkDropsEmpty(t *testing.T) {
	_, st := newState(t)

	st.SetMark("a", model.Mark{Read: true})
	assert.True(t, st.Mark("a").Read)

	st.SetMark("a", model.Mark{})
	_, ok := st.Marks["a"]
	assert.False(t, ok)
}

func TestState_WriteFailureKeepsMemory(t *testing.T) {
	kv, st := newState(t)
	require.NoError(t, kv.Close())

	st.DailyGoal = 42
	err := st.SaveDailyGoal()
	assert.Error(t, err)
	assert.Equal(t, 42, st.DailyGoal)
}
