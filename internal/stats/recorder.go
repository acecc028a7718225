package stats

import (
	"math"
	"time"

	"github.com/Joona-t/lovespark-sponsor-skip/internal/logger"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/models"
)

// CounterStore is the persistence seam the recorder writes through. Snapshots
// are read and written whole; the recorder performs the read-modify-write and
// relies on its caller (the serialized background dispatcher) for exclusion.
type CounterStore interface {
	ReadCounters() (models.Counters, error)
	WriteCounters(models.Counters) error
}

// Recorder durably records that skips occurred, maintaining cumulative and
// daily counters plus a per-category breakdown.
type Recorder struct {
	store  CounterStore
	logger logger.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store CounterStore, log logger.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// today renders the recorder's current calendar date as YYYY-MM-DD.
func (r *Recorder) today() string {
	return r.now().Format("2006-01-02")
}

// rollover zeroes the daily counter and stamps today when the stored date
// differs from the current one. It reports whether anything changed.
// Cumulative counters are never touched by a rollover.
func rollover(c *models.Counters, today string) bool {
	if c.LastResetDate == today {
		return false
	}
	c.SkippedToday = 0
	c.LastResetDate = today
	return true
}

// RecordSkip records one real skip of the given category and duration.
// The daily-rollover check runs before the increments are applied. The
// per-category counter moves only for recognized categories; unrecognized
// ones still count toward the totals.
func (r *Recorder) RecordSkip(category models.Category, durationSeconds float64) error {
	c, err := r.store.ReadCounters()
	if err != nil {
		return err
	}

	rollover(&c, r.today())

	c.SkippedTotal++
	c.SkippedToday++
	c.TimeSavedSeconds += int64(math.Round(durationSeconds))
	if category.IsKnown() {
		c.PerCategory[category]++
	} else {
		r.logger.Debugf("Skip for unrecognized category %q counted toward totals only", category)
	}

	if err := r.store.WriteCounters(c); err != nil {
		return err
	}
	r.logger.Infof("Recorded skip: category=%s duration=%.1fs total=%d today=%d",
		category, durationSeconds, c.SkippedTotal, c.SkippedToday)
	return nil
}

// Stats returns the current counter snapshot, applying (and persisting) the
// daily rollover if the calendar date has changed since the last access.
func (r *Recorder) Stats() (models.Counters, error) {
	c, err := r.store.ReadCounters()
	if err != nil {
		return models.Counters{}, err
	}
	if rollover(&c, r.today()) {
		if err := r.store.WriteCounters(c); err != nil {
			return models.Counters{}, err
		}
		r.logger.Infof("Daily counter rollover applied for %s", c.LastResetDate)
	}
	return c, nil
}

// Reset zeroes all counters and stamps today as the last reset date.
func (r *Recorder) Reset() error {
	if err := r.store.WriteCounters(models.ZeroCounters(r.today())); err != nil {
		return err
	}
	r.logger.Infof("Skip statistics reset")
	return nil
}

// Init makes sure a counter snapshot exists and is current: a fresh store is
// seeded with zeroes for today, an existing one gets the rollover check.
// Runs once at startup.
func (r *Recorder) Init() error {
	c, err := r.store.ReadCounters()
	if err != nil {
		return err
	}
	if c.LastResetDate == "" {
		return r.store.WriteCounters(models.ZeroCounters(r.today()))
	}
	if rollover(&c, r.today()) {
		return r.store.WriteCounters(c)
	}
	return nil
}
