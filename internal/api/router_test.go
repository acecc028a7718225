package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joona-t/lovespark-sponsor-skip/internal/api"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/bus"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/models"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/monitor"
)

type nopLogger struct{}

func (nopLogger) Debugf(format string, v ...interface{}) {}
func (nopLogger) Infof(format string, v ...interface{})  {}
func (nopLogger) Warnf(format string, v ...interface{})  {}
func (nopLogger) Errorf(format string, v ...interface{}) {}

// payloadLog records bus payloads from the dispatcher goroutine.
type payloadLog struct {
	ch chan interface{}
}

func newPayloadLog() *payloadLog {
	return &payloadLog{ch: make(chan interface{}, 64)}
}

func (l *payloadLog) record(payload interface{}) {
	l.ch <- payload
}

// next returns the oldest recorded payload, or nil when none arrives in time.
func (l *payloadLog) next(timeout time.Duration) interface{} {
	select {
	case p := <-l.ch:
		return p
	case <-time.After(timeout):
		return nil
	}
}

func (l *payloadLog) empty() bool {
	select {
	case p := <-l.ch:
		l.ch <- p
		return false
	default:
		return true
	}
}

// newTestRouter wires the router to a bus whose handlers echo what they saw,
// and to a monitor manager with test timing.
func newTestRouter(t *testing.T) (http.Handler, *payloadLog) {
	t.Helper()

	seen := newPayloadLog()
	b := bus.New(nopLogger{})
	b.Handle(bus.ActionFetchSegments, func(payload interface{}) (interface{}, error) {
		seen.record(payload)
		return bus.FetchSegmentsResponse{
			Enabled:  true,
			Segments: []models.Segment{{Category: models.CategorySponsor, Start: 10, End: 40}},
		}, nil
	})
	b.Handle(bus.ActionGetStats, func(payload interface{}) (interface{}, error) {
		seen.record(payload)
		return bus.GetStatsResponse{Enabled: true}, nil
	})
	for _, action := range []bus.Action{
		bus.ActionSkipOccurred, bus.ActionSetEnabled,
		bus.ActionUpdateCategories, bus.ActionResetStats, bus.ActionTabRemoved,
	} {
		b.Handle(action, func(payload interface{}) (interface{}, error) {
			seen.record(payload)
			return bus.Ack{OK: true}, nil
		})
	}
	b.Start()
	t.Cleanup(b.Stop)

	mgr := monitor.NewManager(b, nopLogger{}, monitor.Options{
		PollInterval:     5 * time.Millisecond,
		SkipEpsilon:      0.5,
		NavCheckInterval: 10 * time.Millisecond,
		AttachAttempts:   500,
		AttachInterval:   2 * time.Millisecond,
	})
	mgr.Start()
	t.Cleanup(mgr.Stop)

	return api.New(b, mgr, nopLogger{}), seen
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestRouter_FetchSegments(t *testing.T) {
	h, seen := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/api/v1/segments/fetch",
		`{"tabId":"tab1","videoId":"abc123XYZ9_"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"sponsor"`)

	req, ok := seen.next(time.Second).(bus.FetchSegmentsRequest)
	require.True(t, ok)
	assert.Equal(t, "tab1", req.TabID)
	assert.Equal(t, "abc123XYZ9_", req.VideoID)
}

func TestRouter_MalformedBody(t *testing.T) {
	h, seen := newTestRouter(t)

	for _, tc := range []struct{ method, target string }{
		{http.MethodPost, "/api/v1/segments/fetch"},
		{http.MethodPost, "/api/v1/skips"},
		{http.MethodPut, "/api/v1/enabled"},
		{http.MethodPut, "/api/v1/categories"},
		{http.MethodPut, "/api/v1/tabs/tab1"},
	} {
		w := do(t, h, tc.method, tc.target, `{not json`)
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.target)
		assert.Contains(t, w.Body.String(), "error")
	}
	assert.True(t, seen.empty(), "malformed requests must not reach the bus")
}

func TestRouter_CategoriesRequired(t *testing.T) {
	h, seen := newTestRouter(t)

	w := do(t, h, http.MethodPut, "/api/v1/categories", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "categories map is required")
	assert.True(t, seen.empty())
}

func TestRouter_StatsTabQuery(t *testing.T) {
	h, seen := newTestRouter(t)

	w := do(t, h, http.MethodGet, "/api/v1/stats?tab=tab7", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, bus.GetStatsRequest{TabID: "tab7"}, seen.next(time.Second))
}

func TestRouter_ResetStats(t *testing.T) {
	h, seen := newTestRouter(t)

	w := do(t, h, http.MethodDelete, "/api/v1/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, seen.next(time.Second))
}

func TestRouter_SetEnabled(t *testing.T) {
	h, seen := newTestRouter(t)

	w := do(t, h, http.MethodPut, "/api/v1/enabled", `{"enabled":false}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, bus.SetEnabledRequest{Enabled: false}, seen.next(time.Second))
}

func TestRouter_BusErrorMapsToBadGateway(t *testing.T) {
	b := bus.New(nopLogger{})
	b.Start()
	t.Cleanup(b.Stop)
	mgr := monitor.NewManager(b, nopLogger{}, monitor.DefaultOptions())
	h := api.New(b, mgr, nopLogger{})

	// No handler registered for getStats on this bus.
	w := do(t, h, http.MethodGet, "/api/v1/stats", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestRouter_Healthz(t *testing.T) {
	h, _ := newTestRouter(t)

	w := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func seekTo(t *testing.T, w *httptest.ResponseRecorder) *float64 {
	t.Helper()
	var reply struct {
		SeekTo *float64 `json:"seekTo"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reply))
	return reply.SeekTo
}

// Attach a tab, report positions, and collect the skip command on the report
// that lands inside the sponsor segment.
func TestRouter_TabPositionReportsDriveSkips(t *testing.T) {
	h, _ := newTestRouter(t)

	w := do(t, h, http.MethodPut, "/api/v1/tabs/tab1", `{"videoId":"abc123XYZ9_"}`)
	require.Equal(t, http.StatusOK, w.Code)

	// The monitor arms asynchronously; keep reporting until the skip engine
	// answers the in-segment position with a jump.
	var got *float64
	require.Eventually(t, func() bool {
		w := do(t, h, http.MethodPost, "/api/v1/tabs/tab1/position",
			`{"videoId":"abc123XYZ9_","position":39.6}`)
		require.Equal(t, http.StatusOK, w.Code)
		got = seekTo(t, w)
		return got != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 40.0, *got)

	// The segment is consumed; the same position no longer triggers.
	w = do(t, h, http.MethodPost, "/api/v1/tabs/tab1/position",
		`{"videoId":"abc123XYZ9_","position":39.6}`)
	assert.Nil(t, seekTo(t, w))
}

func TestRouter_PositionForUnknownTab(t *testing.T) {
	h, _ := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/api/v1/tabs/ghost/position", `{"position":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_DetachNotifiesBackground(t *testing.T) {
	h, seen := newTestRouter(t)

	w := do(t, h, http.MethodPut, "/api/v1/tabs/tab1", `{"videoId":"vid1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodDelete, "/api/v1/tabs/tab1", "")
	require.Equal(t, http.StatusOK, w.Code)

	require.Eventually(t, func() bool {
		p := seen.next(10 * time.Millisecond)
		req, ok := p.(bus.TabRemovedRequest)
		return ok && req.TabID == "tab1"
	}, time.Second, time.Millisecond, "detach must drop the background session state")

	// Detaching again is a harmless no-op.
	w = do(t, h, http.MethodDelete, "/api/v1/tabs/tab1", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
