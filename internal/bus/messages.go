package bus

import "github.com/Joona-t/lovespark-sponsor-skip/internal/models"

// Action names one request type of the cross-context message protocol.
type Action string

const (
	ActionFetchSegments    Action = "fetchSegments"
	ActionSkipOccurred     Action = "skipOccurred"
	ActionGetStats         Action = "getStats"
	ActionSetEnabled       Action = "setEnabled"
	ActionUpdateCategories Action = "updateCategories"
	ActionResetStats       Action = "resetStats"
	ActionTabRemoved       Action = "tabRemoved"
)

// NoteEnabledChanged is broadcast to every foreground context when the global
// enabling flag flips.
const NoteEnabledChanged = "enabledChanged"

// FetchSegmentsRequest asks the background context for the skip segments of
// the active video in a tab.
type FetchSegmentsRequest struct {
	TabID   string `json:"tabId"`
	VideoID string `json:"videoId"`
}

// FetchSegmentsResponse carries the category-filtered segment list. Enabled
// reflects the global flag at the time the request was handled.
type FetchSegmentsResponse struct {
	Segments []models.Segment `json:"segments"`
	Enabled  bool             `json:"enabled"`
}

// SkipOccurredRequest notifies the background context that a skip fired.
// Senders do not wait for the acknowledgement.
type SkipOccurredRequest struct {
	Category models.Category `json:"category"`
	Duration float64         `json:"duration"`
}

// GetStatsRequest fetches the counter snapshot, optionally scoped with the
// per-tab session info for TabID.
type GetStatsRequest struct {
	TabID string `json:"tabId"`
}

// GetStatsResponse is the stats answer. TabSegmentCount and TabVideoID are
// nil when the tab is unknown to the background context.
type GetStatsResponse struct {
	Counters        models.Counters `json:"counters"`
	Enabled         bool            `json:"enabled"`
	TabSegmentCount *int            `json:"tabSegmentCount"`
	TabVideoID      *string         `json:"tabVideoId"`
}

// SetEnabledRequest flips the global enabling flag.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// UpdateCategoriesRequest replaces the category-enablement map. Handling it
// clears the segment cache synchronously.
type UpdateCategoriesRequest struct {
	Categories map[models.Category]bool `json:"categories"`
}

// TabRemovedRequest drops the per-tab session state for a closed tab.
type TabRemovedRequest struct {
	TabID string `json:"tabId"`
}

// Ack is the generic acknowledgement response.
type Ack struct {
	OK bool `json:"ok"`
}

// Notification is a fire-and-forget broadcast from the background context to
// all subscribed foreground contexts.
type Notification struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}
