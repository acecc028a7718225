package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/Joona-t/lovespark-sponsor-skip/internal/logger"
	"github.com/Joona-t/lovespark-sponsor-skip/internal/models"
)

// ErrNoData marks a 404 from the lookup service: the prefix has no segments
// at all. Callers cache that as a definitively-empty result rather than
// treating it as a failure.
var ErrNoData = errors.New("no data for hash prefix")

// lookupVideo is one candidate entry returned by the hashed lookup endpoint.
// The endpoint answers with every video whose identifier hash shares the
// requested prefix, so the caller must pick out the exact match itself.
type lookupVideo struct {
	VideoID  string          `json:"videoID"`
	Segments []lookupSegment `json:"segments"`
}

type lookupSegment struct {
	Category models.Category `json:"category"`
	Segment  [2]float64      `json:"segment"` // [startSeconds, endSeconds]
}

// Client talks to the remote segment lookup service.
//
// No request timeout is set deliberately: a hang blocks only the one
// resolution attempt it belongs to, never the polling engine, and superseded
// responses are neutralized by the monitor's staleness guard.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     logger.Logger
}

// NewClient creates a lookup client for the service at baseURL.
func NewClient(baseURL, userAgent string, log logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		userAgent:  userAgent,
		logger:     log,
	}
}

// Lookup fetches all candidate videos under the given hash prefix, scoped to
// the enabled categories. It returns ErrNoData for a 404 and an error for any
// other non-success status, transport failure or malformed body.
func (c *Client) Lookup(prefix string, categories []models.Category) ([]lookupVideo, error) {
	catsJSON, err := json.Marshal(categories)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize categories: %w", err)
	}

	lookupURL := fmt.Sprintf("%s/api/skipSegments/%s?categories=%s",
		c.baseURL, prefix, url.QueryEscape(string(catsJSON)))
	c.logger.Debugf("Looking up segments: %s", lookupURL)

	req, err := http.NewRequest("GET", lookupURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoData
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lookup service returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup response body: %w", err)
	}

	var results []lookupVideo
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lookup response: %w", err)
	}
	return results, nil
}
