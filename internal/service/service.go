package service

import (
	"fmt"

	"github.com/Joona-t/lovespark-sponsor-skip/internal/bus"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/logger"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/models"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/resolver"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/stats"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/storage"
)

// tabSession is the background context's view of one tab: which video it is
// on and how many segments were armed for it.
type tabSession struct {
	videoID string
	count   int
}

// Service is the background context. It owns the segment resolver, the skip
// recorder, the persistent store and the per-tab session map, and it reaches
// all of them exclusively from bus handlers, which the dispatcher serializes.
type Service struct {
	logger   logger.Logger
	store    *storage.Store
	resolver *resolver.Resolver
	recorder *stats.Recorder

	// tabs is confined to the dispatcher goroutine.
	tabs map[string]tabSession
}

// New creates the background service and registers its handlers on the bus.
func New(log logger.Logger, store *storage.Store, res *resolver.Resolver, rec *stats.Recorder, b *bus.Bus) *Service {
	s := &Service{
		logger:   log,
		store:    store,
		resolver: res,
		recorder: rec,
		tabs:     make(map[string]tabSession),
	}

	b.Handle(bus.ActionFetchSegments, s.handleFetchSegments)
	b.Handle(bus.ActionSkipOccurred, s.handleSkipOccurred)
	b.Handle(bus.ActionGetStats, s.handleGetStats)
	b.Handle(bus.ActionSetEnabled, s.setEnabledHandler(b))
	b.Handle(bus.ActionUpdateCategories, s.handleUpdateCategories)
	b.Handle(bus.ActionResetStats, s.handleResetStats)
	b.Handle(bus.ActionTabRemoved, s.handleTabRemoved)

	return s
}

// Init seeds missing persisted state with defaults and applies the daily
// rollover once. Runs at startup, before the bus starts dispatching.
func (s *Service) Init() error {
	if err := s.recorder.Init(); err != nil {
		return fmt.Errorf("failed to initialize counters: %w", err)
	}

	// Materialize setting defaults so later reads and external inspection see
	// concrete values rather than absence.
	enabled, err := s.store.IsEnabled()
	if err != nil {
		return err
	}
	if err := s.store.SetEnabled(enabled); err != nil {
		return err
	}

	cats, err := s.store.Categories()
	if err != nil {
		return err
	}
	if err := s.store.SetCategories(cats); err != nil {
		return err
	}

	channels, err := s.store.WhitelistedChannels()
	if err != nil {
		return err
	}
	return s.store.SetWhitelistedChannels(channels)
}

// enabledCategoryList flattens the enablement map into the fixed category
// order. Unknown keys in a stored map are ignored.
func enabledCategoryList(cats map[models.Category]bool) []models.Category {
	var list []models.Category
	for _, c := range models.KnownCategories {
		if cats[c] {
			list = append(list, c)
		}
	}
	return list
}

func (s *Service) handleFetchSegments(payload interface{}) (interface{}, error) {
	req, ok := payload.(bus.FetchSegmentsRequest)
	if !ok {
		return nil, fmt.Errorf("fetchSegments: unexpected payload %T", payload)
	}

	enabled, err := s.store.IsEnabled()
	if err != nil {
		return nil, err
	}

	if req.VideoID == "" || !enabled {
		if req.TabID != "" {
			s.tabs[req.TabID] = tabSession{videoID: req.VideoID}
		}
		return bus.FetchSegmentsResponse{Segments: []models.Segment{}, Enabled: enabled}, nil
	}

	cats, err := s.store.Categories()
	if err != nil {
		return nil, err
	}

	segments := s.resolver.Resolve(req.VideoID, enabledCategoryList(cats))

	// The cache holds the raw fetch; the enabled-category filter is applied
	// per request so a preference change takes effect without a refetch.
	filtered := make([]models.Segment, 0, len(segments))
	for _, seg := range segments {
		if cats[seg.Category] {
			filtered = append(filtered, seg)
		}
	}

	if req.TabID != "" {
		s.tabs[req.TabID] = tabSession{videoID: req.VideoID, count: len(filtered)}
	}
	return bus.FetchSegmentsResponse{Segments: filtered, Enabled: true}, nil
}

func (s *Service) handleSkipOccurred(payload interface{}) (interface{}, error) {
	req, ok := payload.(bus.SkipOccurredRequest)
	if !ok {
		return nil, fmt.Errorf("skipOccurred: unexpected payload %T", payload)
	}
	if err := s.recorder.RecordSkip(req.Category, req.Duration); err != nil {
		return nil, err
	}
	return bus.Ack{OK: true}, nil
}

func (s *Service) handleGetStats(payload interface{}) (interface{}, error) {
	req, ok := payload.(bus.GetStatsRequest)
	if !ok {
		return nil, fmt.Errorf("getStats: unexpected payload %T", payload)
	}

	counters, err := s.recorder.Stats()
	if err != nil {
		return nil, err
	}
	enabled, err := s.store.IsEnabled()
	if err != nil {
		return nil, err
	}

	resp := bus.GetStatsResponse{Counters: counters, Enabled: enabled}
	if tab, found := s.tabs[req.TabID]; req.TabID != "" && found {
		count := tab.count
		videoID := tab.videoID
		resp.TabSegmentCount = &count
		resp.TabVideoID = &videoID
	}
	return resp, nil
}

func (s *Service) setEnabledHandler(b *bus.Bus) bus.Handler {
	return func(payload interface{}) (interface{}, error) {
		req, ok := payload.(bus.SetEnabledRequest)
		if !ok {
			return nil, fmt.Errorf("setEnabled: unexpected payload %T", payload)
		}
		if err := s.store.SetEnabled(req.Enabled); err != nil {
			return nil, err
		}
		s.logger.Infof("Skipping globally %s", enabledWord(req.Enabled))
		b.Broadcast(bus.Notification{Name: bus.NoteEnabledChanged, Enabled: req.Enabled})
		return bus.Ack{OK: true}, nil
	}
}

func (s *Service) handleUpdateCategories(payload interface{}) (interface{}, error) {
	req, ok := payload.(bus.UpdateCategoriesRequest)
	if !ok {
		return nil, fmt.Errorf("updateCategories: unexpected payload %T", payload)
	}
	if err := s.store.SetCategories(req.Categories); err != nil {
		return nil, err
	}
	// Cached results may not reflect the new category set; the clear happens
	// before this handler returns, so the next resolve refetches.
	s.resolver.ClearCache()
	return bus.Ack{OK: true}, nil
}

func (s *Service) handleResetStats(payload interface{}) (interface{}, error) {
	if err := s.recorder.Reset(); err != nil {
		return nil, err
	}
	return bus.Ack{OK: true}, nil
}

func (s *Service) handleTabRemoved(payload interface{}) (interface{}, error) {
	req, ok := payload.(bus.TabRemovedRequest)
	if !ok {
		return nil, fmt.Errorf("tabRemoved: unexpected payload %T", payload)
	}
	delete(s.tabs, req.TabID)
	return bus.Ack{OK: true}, nil
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
