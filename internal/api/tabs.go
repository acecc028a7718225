package api

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/Joona-t/lovespark-sponsor-skip/internal/bus"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/monitor"
)

// remoteTab adapts an out-of-process player to the monitor interfaces. The
// client reports its video identity and playback position over HTTP; seeks
// issued by the monitor are parked here and ride back on the next position
// report. One remoteTab serves as the tab's video source, player provider
// and player handle all at once.
type remoteTab struct {
	mu          sync.Mutex
	videoID     string
	position    float64
	reported    bool
	pendingSeek *float64
}

func (t *remoteTab) CurrentVideoID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.videoID
}

// AcquirePlayer succeeds once the client has reported a position at least
// once; before that the tab exists but has no playback timeline yet.
func (t *remoteTab) AcquirePlayer() (monitor.Player, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t, t.reported
}

func (t *remoteTab) Position() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

// Seek parks the jump target for the client and advances the local cursor so
// the monitor sees the post-jump position immediately.
func (t *remoteTab) Seek(position float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	target := position
	t.pendingSeek = &target
	t.position = position
}

func (t *remoteTab) setVideoID(videoID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.videoID = videoID
}

func (t *remoteTab) report(videoID string, position float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if videoID != "" {
		t.videoID = videoID
	}
	t.position = position
	t.reported = true
}

func (t *remoteTab) takeSeek() *float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	seek := t.pendingSeek
	t.pendingSeek = nil
	return seek
}

type attachTabRequest struct {
	VideoID string `json:"videoId"`
}

type positionReport struct {
	VideoID  string  `json:"videoId"`
	Position float64 `json:"position"`
}

type positionReply struct {
	SeekTo *float64 `json:"seekTo"`
}

// handleAttachTab registers a tab and starts its monitor. Re-attaching an
// existing tab just updates the reported video identity.
func (a *API) handleAttachTab(w http.ResponseWriter, r *http.Request) {
	tabID := chi.URLParam(r, "tabID")
	var req attachTabRequest
	if !a.decode(w, r, &req) {
		return
	}

	a.tabsMu.Lock()
	tab, found := a.tabs[tabID]
	if !found {
		tab = &remoteTab{videoID: req.VideoID}
		a.tabs[tabID] = tab
	}
	a.tabsMu.Unlock()

	if found {
		tab.setVideoID(req.VideoID)
		if m, ok := a.manager.Get(tabID); ok {
			m.CheckNavigation()
		}
	} else {
		a.manager.Attach(tabID, tab, tab)
	}
	a.writeJSON(w, http.StatusOK, bus.Ack{OK: true})
}

// handleDetachTab stops a tab's monitor and drops its session state.
// Detaching an unknown tab is a no-op.
func (a *API) handleDetachTab(w http.ResponseWriter, r *http.Request) {
	tabID := chi.URLParam(r, "tabID")

	a.tabsMu.Lock()
	_, found := a.tabs[tabID]
	delete(a.tabs, tabID)
	a.tabsMu.Unlock()

	if found {
		a.manager.Detach(tabID)
	}
	a.writeJSON(w, http.StatusOK, bus.Ack{OK: true})
}

// handleReportPosition ingests one playback-position report and answers with
// the pending seek target, if the skip engine issued one. The monitor is
// ticked synchronously so a skip decided by this very report rides back on
// its response instead of waiting for the next poll.
func (a *API) handleReportPosition(w http.ResponseWriter, r *http.Request) {
	tabID := chi.URLParam(r, "tabID")

	a.tabsMu.Lock()
	tab, found := a.tabs[tabID]
	a.tabsMu.Unlock()
	if !found {
		a.writeError(w, http.StatusNotFound, "unknown tab")
		return
	}

	var req positionReport
	if !a.decode(w, r, &req) {
		return
	}
	tab.report(req.VideoID, req.Position)

	if m, ok := a.manager.Get(tabID); ok {
		m.CheckNavigation()
		m.Tick(tab)
	}
	a.writeJSON(w, http.StatusOK, positionReply{SeekTo: tab.takeSeek()})
}
