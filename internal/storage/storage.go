package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Joona-t/lovespark-sponsor-skip/internal/models"
)

// Settings keys. These mirror the conceptual persisted-state keys of the
// application: an enabling flag, the category-enablement map and the list of
// channels excluded from skipping.
const (
	keyEnabled             = "isEnabled"
	keyCategories          = "categories"
	keyWhitelistedChannels = "whitelistedChannels"
)

// Store is the sqlite-backed persistent store for settings and skip counters.
// Counter reads and writes operate on full snapshots; callers are expected to
// serialize their read-modify-write cycles (the background dispatcher does).
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at the given path and ensures the
// schema exists. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.EnsureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ReadCounters returns the persisted counter snapshot. When nothing has been
// written yet it returns a zeroed snapshot with an empty LastResetDate; the
// recorder treats that as "stamp today".
func (s *Store) ReadCounters() (models.Counters, error) {
	if s == nil || s.db == nil {
		return models.Counters{}, fmt.Errorf("storage: missing database connection")
	}

	c := models.ZeroCounters("")
	row := s.db.QueryRow(`
		SELECT skipped_total, skipped_today, time_saved_seconds, last_reset_date
		FROM counters WHERE id = 1
	`)
	err := row.Scan(&c.SkippedTotal, &c.SkippedToday, &c.TimeSavedSeconds, &c.LastResetDate)
	if err == sql.ErrNoRows {
		return c, nil
	}
	if err != nil {
		return models.Counters{}, err
	}

	rows, err := s.db.Query(`SELECT category, skips FROM category_stats`)
	if err != nil {
		return models.Counters{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var cat string
		var skips int64
		if err := rows.Scan(&cat, &skips); err != nil {
			return models.Counters{}, err
		}
		c.PerCategory[models.Category(cat)] = skips
	}
	return c, rows.Err()
}

// WriteCounters persists the full counter snapshot in a single transaction,
// so no reader ever observes a partially updated counter set.
func (s *Store) WriteCounters(c models.Counters) (err error) {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage: missing database connection")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.Exec(`
		INSERT INTO counters (id, skipped_total, skipped_today, time_saved_seconds, last_reset_date)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			skipped_total=excluded.skipped_total,
			skipped_today=excluded.skipped_today,
			time_saved_seconds=excluded.time_saved_seconds,
			last_reset_date=excluded.last_reset_date
	`, c.SkippedTotal, c.SkippedToday, c.TimeSavedSeconds, c.LastResetDate)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO category_stats (category, skips) VALUES (?, ?)
		ON CONFLICT(category) DO UPDATE SET skips=excluded.skips
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for cat, skips := range c.PerCategory {
		if _, err = stmt.Exec(string(cat), skips); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// IsEnabled reports whether skipping is globally enabled. Absent means
// enabled: the application is on by default.
func (s *Store) IsEnabled() (bool, error) {
	var enabled bool
	found, err := s.getJSON(keyEnabled, &enabled)
	if err != nil {
		return false, err
	}
	if !found {
		return true, nil
	}
	return enabled, nil
}

// SetEnabled persists the global enabling flag.
func (s *Store) SetEnabled(enabled bool) error {
	return s.setJSON(keyEnabled, enabled)
}

// Categories returns the category-enablement map, falling back to the
// defaults when the user has never saved preferences.
func (s *Store) Categories() (map[models.Category]bool, error) {
	var cats map[models.Category]bool
	found, err := s.getJSON(keyCategories, &cats)
	if err != nil {
		return nil, err
	}
	if !found {
		return models.DefaultCategories(), nil
	}
	return cats, nil
}

// SetCategories persists the category-enablement map.
func (s *Store) SetCategories(cats map[models.Category]bool) error {
	return s.setJSON(keyCategories, cats)
}

// WhitelistedChannels returns the channel identifiers excluded from skipping.
// Declared as persisted state; the skip engine itself does not consume it.
func (s *Store) WhitelistedChannels() ([]string, error) {
	var channels []string
	found, err := s.getJSON(keyWhitelistedChannels, &channels)
	if err != nil {
		return nil, err
	}
	if !found {
		return []string{}, nil
	}
	return channels, nil
}

// SetWhitelistedChannels persists the excluded-channel list.
func (s *Store) SetWhitelistedChannels(channels []string) error {
	return s.setJSON(keyWhitelistedChannels, channels)
}

func (s *Store) getJSON(key string, dst interface{}) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("storage: missing database connection")
	}
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(value), dst); err != nil {
		return false, fmt.Errorf("corrupt setting %q: %w", key, err)
	}
	return true, nil
}

func (s *Store) setJSON(key string, v interface{}) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("storage: missing database connection")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value
	`, key, string(data))
	return err
}
