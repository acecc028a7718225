package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/Joona-t/lovespark-sponsor-skip/internal/bus"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/logger"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/models"
)

// State is the explicit phase of a monitor session.
type State int

const (
	// StateIdle means no video is tracked or no segments are armed; no
	// polling hook is attached.
	StateIdle State = iota
	// StateFetching means a segment request is in flight (or the player
	// handle is still being acquired) for the recorded video identifier.
	StateFetching
	// StateArmed means segments are loaded and the position poll is active.
	StateArmed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateArmed:
		return "armed"
	default:
		return "unknown"
	}
}

// Player is the playback handle of the video-rendering element: a position
// cursor that can be read and jumped.
type Player interface {
	Position() float64
	Seek(position float64)
}

// PlayerProvider yields the player handle once the rendering element exists.
// It may report false for a while after a navigation; the monitor retries
// with a bounded attempt budget.
type PlayerProvider interface {
	AcquirePlayer() (Player, bool)
}

// VideoSource reports the identity of the currently active video, or "" when
// no video is active.
type VideoSource interface {
	CurrentVideoID() string
}

// Messenger is the monitor's view of the cross-context message bus.
type Messenger interface {
	FetchSegments(ctx context.Context, tabID, videoID string) (bus.FetchSegmentsResponse, error)
	SkipOccurred(category models.Category, duration float64)
}

// Options are the monitor's timing tunables.
type Options struct {
	// PollInterval is the playback-position polling cadence while armed.
	PollInterval time.Duration
	// SkipEpsilon is the buffer before a segment end inside which a tick no
	// longer triggers, preventing an immediate re-trigger at the boundary.
	SkipEpsilon float64
	// NavCheckInterval is the fallback cadence for video-change detection.
	NavCheckInterval time.Duration
	// AttachAttempts bounds the player-acquisition retries per fetch.
	AttachAttempts int
	// AttachInterval is the fixed delay between acquisition attempts.
	AttachInterval time.Duration
}

// DefaultOptions returns the standard monitor timing.
func DefaultOptions() Options {
	return Options{
		PollInterval:     250 * time.Millisecond,
		SkipEpsilon:      0.5,
		NavCheckInterval: 2 * time.Second,
		AttachAttempts:   20,
		AttachInterval:   500 * time.Millisecond,
	}
}

type activeSegment struct {
	models.Segment
	consumed bool
}

// Monitor attaches to one tab's playback timeline, requests segments for the
// active video over the bus, and fires skips when a segment boundary is
// crossed. Video changes mid-flight are tolerated: a response arriving for a
// superseded video identifier is discarded entirely.
type Monitor struct {
	tabID     string
	source    VideoSource
	provider  PlayerProvider
	messenger Messenger
	logger    logger.Logger
	opts      Options

	mutex          sync.Mutex
	state          State
	currentVideoID string
	segments       []activeSegment
	player         Player
	enabled        bool
	sessionCtx     context.Context
	sessionCancel  context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a monitor for one tab. Call Start to begin watching for video
// changes.
func New(tabID string, source VideoSource, provider PlayerProvider, messenger Messenger, log logger.Logger, opts Options) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		tabID:     tabID,
		source:    source,
		provider:  provider,
		messenger: messenger,
		logger:    log,
		opts:      opts,
		state:     StateIdle,
		enabled:   true,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins the fallback navigation-check loop and performs an immediate
// check. Navigation-completion signals should additionally be forwarded to
// CheckNavigation as they arrive.
func (m *Monitor) Start() {
	m.CheckNavigation()
	m.wg.Add(1)
	go m.navLoop()
}

// Stop terminates the monitor and all of its session goroutines.
func (m *Monitor) Stop() {
	m.cancel()
	m.wg.Wait()
}

// State returns the current session state.
func (m *Monitor) State() State {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.state
}

// VideoID returns the currently tracked video identifier.
func (m *Monitor) VideoID() string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.currentVideoID
}

func (m *Monitor) navLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.NavCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.CheckNavigation()
		}
	}
}

// CheckNavigation compares the source's video identity against the tracked
// one and starts a new session on a change. Same identifier or no video is
// ignored. Safe to call from any goroutine, at any frequency.
func (m *Monitor) CheckNavigation() {
	videoID := m.source.CurrentVideoID()

	m.mutex.Lock()
	if videoID == "" || videoID == m.currentVideoID {
		m.mutex.Unlock()
		return
	}

	m.resetSessionLocked()
	m.currentVideoID = videoID
	m.state = StateFetching
	sessionCtx := m.newSessionLocked()
	m.mutex.Unlock()

	m.logger.Debugf("Video change on tab %s: requesting segments for %s", m.tabID, videoID)
	m.wg.Add(1)
	go m.fetch(sessionCtx, videoID)
}

// SetEnabled reacts to a global enable/disable broadcast. Disabling ends the
// session immediately: segments are cleared, polling stops, and a fetch still
// in flight is orphaned so its late response cannot re-arm. Re-enabling
// forgets the tracked identifier and re-checks so the current video is
// fetched from scratch.
func (m *Monitor) SetEnabled(enabled bool) {
	m.mutex.Lock()
	m.enabled = enabled
	if !enabled {
		m.resetSessionLocked()
		m.mutex.Unlock()
		return
	}
	m.currentVideoID = ""
	m.mutex.Unlock()

	m.CheckNavigation()
}

// resetSessionLocked clears all per-video state and cancels the session's
// attach/poll goroutines. Callers hold m.mutex.
func (m *Monitor) resetSessionLocked() {
	m.segments = nil
	m.player = nil
	m.state = StateIdle
	if m.sessionCancel != nil {
		m.sessionCancel()
		m.sessionCtx, m.sessionCancel = nil, nil
	}
}

func (m *Monitor) newSessionLocked() context.Context {
	m.sessionCtx, m.sessionCancel = context.WithCancel(m.ctx)
	return m.sessionCtx
}

func (m *Monitor) fetch(ctx context.Context, videoID string) {
	defer m.wg.Done()

	resp, err := m.messenger.FetchSegments(ctx, m.tabID, videoID)
	if err != nil {
		// Background not reachable: fail silently, the next navigation (or
		// re-enable) retries.
		m.logger.Debugf("Segment fetch for %s failed on tab %s: %v", videoID, m.tabID, err)
		return
	}
	m.handleFetchResponse(ctx, videoID, resp)
}

// handleFetchResponse arms the session with the response, unless the response
// is stale. The staleness guard is mandatory and twofold: the video identity
// catches responses for an old video, and the session identity catches
// responses from an ended session for the same video (a disable/re-enable
// cycle brings the identifier back without making the old fetch current).
func (m *Monitor) handleFetchResponse(ctx context.Context, requestedID string, resp bus.FetchSegmentsResponse) {
	m.mutex.Lock()

	if ctx != m.sessionCtx || m.currentVideoID != requestedID {
		m.mutex.Unlock()
		m.logger.Debugf("Discarding stale segment response for %s on tab %s", requestedID, m.tabID)
		return
	}

	m.enabled = resp.Enabled
	if !resp.Enabled || len(resp.Segments) == 0 {
		m.state = StateIdle
		m.mutex.Unlock()
		return
	}

	m.segments = make([]activeSegment, len(resp.Segments))
	for i, seg := range resp.Segments {
		m.segments[i] = activeSegment{Segment: seg}
	}
	m.mutex.Unlock()

	m.logger.Infof("Armed %d segments for video %s on tab %s", len(resp.Segments), requestedID, m.tabID)
	m.wg.Add(1)
	go m.attachAndPoll(ctx)
}

// attachAndPoll acquires the player handle with a bounded retry budget, then
// runs the position poll until the session ends. If the player never appears
// it gives up silently: no skip capability for this session.
func (m *Monitor) attachAndPoll(ctx context.Context) {
	defer m.wg.Done()

	for attempt := 0; attempt < m.opts.AttachAttempts; attempt++ {
		if player, found := m.provider.AcquirePlayer(); found {
			m.mutex.Lock()
			if ctx.Err() != nil {
				m.mutex.Unlock()
				return
			}
			m.player = player
			m.state = StateArmed
			m.mutex.Unlock()

			m.pollLoop(ctx, player)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.opts.AttachInterval):
		}
	}

	m.logger.Warnf("Player never appeared on tab %s after %d attempts; no skipping this session",
		m.tabID, m.opts.AttachAttempts)
	m.mutex.Lock()
	if ctx.Err() == nil {
		m.state = StateIdle
	}
	m.mutex.Unlock()
}

func (m *Monitor) pollLoop(ctx context.Context, player Player) {
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx, player)
		}
	}
}

// Tick runs one pass of the skip engine against the current playback
// position. Segments are scanned in their received order; the first
// unconsumed one containing the position (with the epsilon buffer before its
// end) triggers a jump to its end, and at most one skip fires per tick.
// Overlapping segments beyond the first are passed over by the jump itself
// and wait for the next tick.
func (m *Monitor) Tick(player Player) {
	m.mutex.Lock()
	ctx := m.sessionCtx
	m.mutex.Unlock()
	m.tick(ctx, player)
}

// tick is Tick bound to one session. A tick already dequeued when the
// session ends could otherwise seek a superseded player against the next
// video's segments, so the session identity is re-checked under the mutex.
func (m *Monitor) tick(ctx context.Context, player Player) {
	m.mutex.Lock()
	if ctx == nil || ctx != m.sessionCtx || ctx.Err() != nil {
		m.mutex.Unlock()
		return
	}
	if !m.enabled || len(m.segments) == 0 {
		m.mutex.Unlock()
		return
	}

	position := player.Position()
	for i := range m.segments {
		seg := &m.segments[i]
		if seg.consumed {
			continue
		}
		if position >= seg.Start && position < seg.End-m.opts.SkipEpsilon {
			player.Seek(seg.End)
			seg.consumed = true
			skipped := seg.Segment
			m.mutex.Unlock()

			m.logger.Infof("Skipped %s segment [%.1f, %.1f] on tab %s",
				skipped.Category, skipped.Start, skipped.End, m.tabID)
			m.messenger.SkipOccurred(skipped.Category, skipped.Duration())
			return
		}
	}
	m.mutex.Unlock()
}
