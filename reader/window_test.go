package reader

import (
	"testing"
	"time"

	"github.com/robertmeta/swipe-news/model"
	"github.com/stretchr/testify/assert"
)

func TestInWindow(t *testing.T) {
	tests := []struct {
		filter model.TimeFilter
		age    time.Duration
		want   bool
	}{
		{model.FilterDay, time.Hour, true},
		{model.FilterDay, Day, false},
		{model.FilterDay, Day - time.Millisecond, true},
		{model.FilterWeek, 6 * Day, true},
		{model.FilterWeek, Week, false},
		{model.FilterMonth, 29 * Day, true},
		{model.FilterMonth, Month, false},
		{model.FilterBefore, Month, true},
		{model.FilterBefore, 29 * Day, false},
		{model.FilterAll, 5 * 365 * Day, true},
		{model.FilterDemo, time.Hour, true},
		{model.FilterAll, -time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.filter)+"/"+tt.age.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, InWindow(tt.filter, now.Add(-tt.age), now))
		})
	}
}

func TestInWindow_Undated(t *testing.T) {
	for _, f := range []model.TimeFilter{model.FilterDay, model.FilterWeek, model.FilterMonth, model.FilterBefore} {
		assert.False(t, InWindow(f, time.Time{}, now), f)
	}
	assert.True(t, InWindow(model.FilterAll, time.Time{}, now))
	assert.True(t, InWindow(model.FilterDemo, time.Time{}, now))
}

func TestFilterByTime(t *testing.T) {
	got := FilterByTime(fixture(), model.FilterDay, now)
	assert.Equal(t, []string{"today-0", "today-1", "today-2", "today-3", "today-4"}, ids(got))

	assert.NotNil(t, FilterByTime(nil, model.FilterAll, now))
}

func TestCandidates(t *testing.T) {
	assert.Equal(t, []model.TimeFilter{model.FilterDay, model.FilterWeek, model.FilterMonth, model.FilterAll}, Candidates(model.FilterDay))
	assert.Equal(t, []model.TimeFilter{model.FilterWeek, model.FilterDay, model.FilterMonth, model.FilterAll}, Candidates(model.FilterWeek))
	assert.Equal(t, []model.TimeFilter{model.FilterBefore}, Candidates(model.FilterBefore))
	assert.Equal(t, []model.TimeFilter{model.FilterAll}, Candidates(model.FilterAll))
}
