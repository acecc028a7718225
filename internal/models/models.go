package models

// Category classifies the content of a skippable segment.
type Category string

const (
	CategorySponsor       Category = "sponsor"
	CategorySelfPromo     Category = "selfpromo"
	CategoryInteraction   Category = "interaction"
	CategoryIntro         Category = "intro"
	CategoryOutro         Category = "outro"
	CategoryMusicOfftopic Category = "music_offtopic"
)

// KnownCategories lists every category this application tracks, in display order.
var KnownCategories = []Category{
	CategorySponsor,
	CategorySelfPromo,
	CategoryInteraction,
	CategoryIntro,
	CategoryOutro,
	CategoryMusicOfftopic,
}

// IsKnown reports whether c is one of the fixed category keys. Unknown
// categories still count toward totals but are excluded from the per-category
// breakdown.
func (c Category) IsKnown() bool {
	for _, k := range KnownCategories {
		if c == k {
			return true
		}
	}
	return false
}

// DefaultCategories returns the category enablement map used before the user
// has saved any preferences.
func DefaultCategories() map[Category]bool {
	return map[Category]bool{
		CategorySponsor:       true,
		CategorySelfPromo:     true,
		CategoryInteraction:   true,
		CategoryIntro:         false,
		CategoryOutro:         false,
		CategoryMusicOfftopic: false,
	}
}

// Segment is a time interval within a video that should be skipped.
// Immutable once received; Start < End always holds for segments accepted
// from the lookup service.
type Segment struct {
	Category Category `json:"category"`
	Start    float64  `json:"start"`
	End      float64  `json:"end"`
}

// Duration returns the length of the segment in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Counters is the persisted skip-statistics snapshot. It is read and written
// whole; the storage layer does not update individual fields in place.
type Counters struct {
	SkippedTotal     int64              `json:"skippedTotal"`
	SkippedToday     int64              `json:"skippedToday"`
	TimeSavedSeconds int64              `json:"timeSavedSeconds"`
	LastResetDate    string             `json:"lastResetDate"` // YYYY-MM-DD
	PerCategory      map[Category]int64 `json:"perCategory"`
}

// ZeroCounters returns a counter snapshot with every count at zero, every
// known category present in the breakdown, and the given date stamped as the
// last reset.
func ZeroCounters(date string) Counters {
	per := make(map[Category]int64, len(KnownCategories))
	for _, c := range KnownCategories {
		per[c] = 0
	}
	return Counters{LastResetDate: date, PerCategory: per}
}
