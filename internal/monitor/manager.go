package monitor

import (
	"context"
	"fmt"
	"sync"

	"github.com/Joona-t/lovespark-sponsor-skip/internal/bus"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/logger"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/models"
)

// busMessenger adapts the message bus to the Messenger interface.
type busMessenger struct {
	b *bus.Bus
}

func (m busMessenger) FetchSegments(ctx context.Context, tabID, videoID string) (bus.FetchSegmentsResponse, error) {
	payload, err := m.b.Request(ctx, bus.ActionFetchSegments, bus.FetchSegmentsRequest{TabID: tabID, VideoID: videoID})
	if err != nil {
		return bus.FetchSegmentsResponse{}, err
	}
	resp, ok := payload.(bus.FetchSegmentsResponse)
	if !ok {
		return bus.FetchSegmentsResponse{}, fmt.Errorf("unexpected fetchSegments response %T", payload)
	}
	return resp, nil
}

func (m busMessenger) SkipOccurred(category models.Category, duration float64) {
	m.b.Notify(bus.ActionSkipOccurred, bus.SkipOccurredRequest{Category: category, Duration: duration})
}

// Manager owns all active playback monitors, one per tab, and fans bus
// broadcasts (enable/disable) out to them.
type Manager struct {
	bus    *bus.Bus
	logger logger.Logger
	opts   Options

	mutex    sync.Mutex
	monitors map[string]*Monitor

	unsubscribe func()
	done        chan struct{}
}

// NewManager creates a monitor manager over the given bus.
func NewManager(b *bus.Bus, log logger.Logger, opts Options) *Manager {
	return &Manager{
		bus:      b,
		logger:   log,
		opts:     opts,
		monitors: make(map[string]*Monitor),
	}
}

// Start subscribes to background broadcasts.
func (mgr *Manager) Start() {
	notes, cancel := mgr.bus.Subscribe()
	mgr.unsubscribe = cancel
	mgr.done = make(chan struct{})

	go func() {
		defer close(mgr.done)
		for note := range notes {
			if note.Name != bus.NoteEnabledChanged {
				continue
			}
			mgr.logger.Debugf("Forwarding enabledChanged(%t) to all monitors", note.Enabled)
			mgr.mutex.Lock()
			for _, m := range mgr.monitors {
				m.SetEnabled(note.Enabled)
			}
			mgr.mutex.Unlock()
		}
	}()
}

// Stop shuts down every monitor and the broadcast listener.
func (mgr *Manager) Stop() {
	if mgr.unsubscribe != nil {
		mgr.unsubscribe()
		<-mgr.done
	}

	mgr.mutex.Lock()
	defer mgr.mutex.Unlock()
	for tabID, m := range mgr.monitors {
		m.Stop()
		delete(mgr.monitors, tabID)
	}
}

// Attach creates and starts a monitor for a tab. Attaching a tab that already
// has a monitor replaces the old one.
func (mgr *Manager) Attach(tabID string, source VideoSource, provider PlayerProvider) *Monitor {
	m := New(tabID, source, provider, busMessenger{b: mgr.bus}, mgr.logger, mgr.opts)

	mgr.mutex.Lock()
	if old, found := mgr.monitors[tabID]; found {
		old.Stop()
	}
	mgr.monitors[tabID] = m
	mgr.mutex.Unlock()

	m.Start()
	mgr.logger.Infof("Monitor attached for tab %s", tabID)
	return m
}

// Detach stops a tab's monitor and tells the background context to drop its
// per-tab session state.
func (mgr *Manager) Detach(tabID string) {
	mgr.mutex.Lock()
	m, found := mgr.monitors[tabID]
	if found {
		delete(mgr.monitors, tabID)
	}
	mgr.mutex.Unlock()

	if !found {
		return
	}
	m.Stop()
	mgr.bus.Notify(bus.ActionTabRemoved, bus.TabRemovedRequest{TabID: tabID})
	mgr.logger.Infof("Monitor detached for tab %s", tabID)
}

// Get returns the monitor for a tab, if any.
func (mgr *Manager) Get(tabID string) (*Monitor, bool) {
	mgr.mutex.Lock()
	defer mgr.mutex.Unlock()
	m, found := mgr.monitors[tabID]
	return m, found
}
