package resolver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Joona-t/lovespark-sponsor-skip/internal/logger"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/models"
)

// Resolver returns the skip segments for a video identifier, consulting a
// time-bounded local cache first and falling back to a privacy-preserving
// hashed remote lookup on a miss. It never fails: every error path degrades
// to an empty segment list so playback is never blocked.
type Resolver struct {
	client *Client
	cache  *Cache
	group  singleflight.Group
	logger logger.Logger
}

// New creates a resolver over the given lookup client with the given cache TTL.
func New(client *Client, ttl time.Duration, log logger.Logger) *Resolver {
	return &Resolver{
		client: client,
		cache:  NewCache(ttl),
		logger: log,
	}
}

// hashPrefix computes the k-anonymity lookup key for a video identifier: the
// first four hex characters of its SHA-256 digest. The remote service only
// ever sees this coarse prefix, never the exact identifier.
func hashPrefix(videoID string) string {
	sum := sha256.Sum256([]byte(videoID))
	return hex.EncodeToString(sum[:])[:4]
}

// Resolve returns the raw segment list for a video. Caching is
// category-agnostic, but an empty enabled-category set short-circuits to an
// empty result without touching cache or network: with nothing enabled there
// is nothing to fetch.
//
// Concurrent misses for the same video are collapsed into one network request.
func (r *Resolver) Resolve(videoID string, enabledCategories []models.Category) []models.Segment {
	if videoID == "" || len(enabledCategories) == 0 {
		return nil
	}

	if segments, found := r.cache.Get(videoID); found {
		r.logger.Debugf("Cache hit for video %s (%d segments)", videoID, len(segments))
		return segments
	}

	v, _, _ := r.group.Do(videoID, func() (interface{}, error) {
		// A waiter that lost the race may find the winner's result cached.
		if segments, found := r.cache.Get(videoID); found {
			return segments, nil
		}
		return r.fetch(videoID, enabledCategories), nil
	})
	segments, _ := v.([]models.Segment)
	return segments
}

// fetch performs the remote lookup and updates the cache. Soft failures are
// logged, reported as empty and deliberately not cached so the next call
// retries the network.
func (r *Resolver) fetch(videoID string, enabledCategories []models.Category) []models.Segment {
	results, err := r.client.Lookup(hashPrefix(videoID), enabledCategories)
	if errors.Is(err, ErrNoData) {
		r.logger.Debugf("No segments under hash prefix for video %s", videoID)
		r.cache.Set(videoID, nil)
		return nil
	}
	if err != nil {
		r.logger.Warnf("Segment lookup failed for video %s: %v", videoID, err)
		return nil
	}

	// The hashed endpoint may return multiple unrelated videos sharing the
	// prefix; only an exact identifier match counts.
	var segments []models.Segment
	for _, result := range results {
		if result.VideoID != videoID {
			continue
		}
		for _, s := range result.Segments {
			if s.Segment[0] >= s.Segment[1] {
				r.logger.Warnf("Dropping segment with invalid interval [%f, %f] for video %s",
					s.Segment[0], s.Segment[1], videoID)
				continue
			}
			segments = append(segments, models.Segment{
				Category: s.Category,
				Start:    s.Segment[0],
				End:      s.Segment[1],
			})
		}
		break
	}

	r.cache.Set(videoID, segments)
	r.logger.Infof("Resolved %d segments for video %s", len(segments), videoID)
	return segments
}

// ClearCache drops every cached entry. Called whenever the enabled-category
// configuration changes, since cached results may no longer reflect the
// categories the user cares about.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
	r.logger.Infof("Segment cache cleared")
}

// CacheLen reports the number of cache entries. Exposed for tests and stats.
func (r *Resolver) CacheLen() int {
	return r.cache.Len()
}
