package stats

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joona-t/lovespark-sponsor-skip/internal/models"
)

type nopLogger struct{}

func (nopLogger) Debugf(format string, v ...interface{}) {}
func (nopLogger) Infof(format string, v ...interface{})  {}
func (nopLogger) Warnf(format string, v ...interface{})  {}
func (nopLogger) Errorf(format string, v ...interface{}) {}

// memStore is an in-memory CounterStore tracking how many writes happened.
type memStore struct {
	counters models.Counters
	writes   int
	failRead bool
}

func (s *memStore) ReadCounters() (models.Counters, error) {
	if s.failRead {
		return models.Counters{}, errors.New("read failed")
	}
	c := s.counters
	per := make(map[models.Category]int64, len(c.PerCategory))
	for k, v := range c.PerCategory {
		per[k] = v
	}
	c.PerCategory = per
	return c, nil
}

func (s *memStore) WriteCounters(c models.Counters) error {
	s.counters = c
	s.writes++
	return nil
}

func newTestRecorder(t *testing.T, stored models.Counters) (*Recorder, *memStore) {
	t.Helper()
	store := &memStore{counters: stored}
	r := NewRecorder(store, nopLogger{})
	r.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	return r, store
}

func TestRecordSkip_Increments(t *testing.T) {
	r, store := newTestRecorder(t, models.ZeroCounters("2026-08-30"))

	require.NoError(t, r.RecordSkip(models.CategorySponsor, 30.0))
	require.NoError(t, r.RecordSkip(models.CategorySponsor, 12.4))

	c := store.counters
	assert.Equal(t, int64(2), c.SkippedTotal)
	assert.Equal(t, int64(2), c.SkippedToday)
	assert.Equal(t, int64(42), c.TimeSavedSeconds, "durations are rounded before summing")
	assert.Equal(t, int64(2), c.PerCategory[models.CategorySponsor])
	assert.LessOrEqual(t, c.SkippedToday, c.SkippedTotal)
}

func TestRecordSkip_UnrecognizedCategoryCountsTowardTotalsOnly(t *testing.T) {
	r, store := newTestRecorder(t, models.ZeroCounters("2026-08-30"))

	require.NoError(t, r.RecordSkip(models.Category("exclusive_access"), 10))

	c := store.counters
	assert.Equal(t, int64(1), c.SkippedTotal)
	assert.Equal(t, int64(1), c.SkippedToday)
	_, present := c.PerCategory["exclusive_access"]
	assert.False(t, present, "unknown categories stay out of the breakdown")
}

func TestRecordSkip_DailyRolloverBeforeIncrement(t *testing.T) {
	stored := models.ZeroCounters("2026-08-29") // yesterday
	stored.SkippedTotal = 10
	stored.SkippedToday = 7
	stored.TimeSavedSeconds = 300
	r, store := newTestRecorder(t, stored)

	require.NoError(t, r.RecordSkip(models.CategoryIntro, 5))

	c := store.counters
	assert.Equal(t, "2026-08-30", c.LastResetDate)
	assert.Equal(t, int64(1), c.SkippedToday, "yesterday's daily count must not leak into today")
	assert.Equal(t, int64(11), c.SkippedTotal, "rollover never touches the cumulative counter")
	assert.Equal(t, int64(305), c.TimeSavedSeconds)
}

func TestStats_RolloverOnReadHappensExactlyOnce(t *testing.T) {
	stored := models.ZeroCounters("2026-08-29")
	stored.SkippedTotal = 4
	stored.SkippedToday = 4
	r, store := newTestRecorder(t, stored)

	c, err := r.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.SkippedToday)
	assert.Equal(t, "2026-08-30", c.LastResetDate)
	assert.Equal(t, int64(4), c.SkippedTotal)
	assert.Equal(t, 1, store.writes, "the rolled snapshot is persisted")

	_, err = r.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, store.writes, "a second read on the same date must not write again")
}

func TestStats_NoRolloverOnSameDate(t *testing.T) {
	stored := models.ZeroCounters("2026-08-30")
	stored.SkippedToday = 3
	r, _ := newTestRecorder(t, stored)

	c, err := r.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.SkippedToday)
}

func TestReset(t *testing.T) {
	stored := models.ZeroCounters("2026-08-01")
	stored.SkippedTotal = 99
	stored.TimeSavedSeconds = 1234
	stored.PerCategory[models.CategorySponsor] = 50
	r, store := newTestRecorder(t, stored)

	require.NoError(t, r.Reset())

	c := store.counters
	assert.Equal(t, int64(0), c.SkippedTotal)
	assert.Equal(t, int64(0), c.TimeSavedSeconds)
	assert.Equal(t, int64(0), c.PerCategory[models.CategorySponsor])
	assert.Equal(t, "2026-08-30", c.LastResetDate)
}

func TestInit(t *testing.T) {
	t.Run("fresh store is seeded", func(t *testing.T) {
		r, store := newTestRecorder(t, models.ZeroCounters(""))
		require.NoError(t, r.Init())
		assert.Equal(t, "2026-08-30", store.counters.LastResetDate)
	})

	t.Run("stale date rolls over", func(t *testing.T) {
		stored := models.ZeroCounters("2026-08-29")
		stored.SkippedToday = 5
		stored.SkippedTotal = 5
		r, store := newTestRecorder(t, stored)
		require.NoError(t, r.Init())
		assert.Equal(t, int64(0), store.counters.SkippedToday)
		assert.Equal(t, int64(5), store.counters.SkippedTotal)
	})

	t.Run("current date is untouched", func(t *testing.T) {
		stored := models.ZeroCounters("2026-08-30")
		stored.SkippedToday = 5
		r, store := newTestRecorder(t, stored)
		require.NoError(t, r.Init())
		assert.Equal(t, 0, store.writes)
	})
}

func TestRecordSkip_ReadFailurePropagates(t *testing.T) {
	r, store := newTestRecorder(t, models.ZeroCounters("2026-08-30"))
	store.failRead = true
	assert.Error(t, r.RecordSkip(models.CategorySponsor, 10))
}
