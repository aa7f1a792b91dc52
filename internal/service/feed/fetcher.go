package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"creatorfeed/pkg/errors"
	"creatorfeed/pkg/logger"
)

// DefaultBaseURL is the public host serving channel feeds
const DefaultBaseURL = "https://www.youtube.com"

// maxFeedBytes caps a feed body; channel feeds hold 15 entries
const maxFeedBytes = 4 << 20

// Fetcher retrieves a channel's public Atom feed. It never retries; callers
// own the retry policy.
type Fetcher struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewFetcher creates a feed fetcher. A nil httpClient gets a 15s timeout client.
func NewFetcher(baseURL string, httpClient *http.Client, log *logger.Logger) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     log.Named("feed"),
	}
}

// FeedURL returns the feed address for channelID
func (f *Fetcher) FeedURL(channelID string) string {
	return f.baseURL + "/feeds/videos.xml?channel_id=" + url.QueryEscape(channelID)
}

// Fetch performs one GET of the channel feed and decodes it.
// Non-2xx responses and transport failures are fetch errors; a body that is
// not an Atom feed is a parse error.
func (f *Fetcher) Fetch(ctx context.Context, channelID string) (*Document, error) {
	if channelID == "" {
		return nil, errors.NewValidationError("channel id is required", nil)
	}

	feedURL := f.FeedURL(channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, errors.NewFetchError("failed to build feed request", 0, err)
	}
	req.Header.Set("Accept", "application/atom+xml, application/xml;q=0.9, */*;q=0.5")

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		f.logger.WithError(err).WithField("channel_id", channelID).Debug("Feed request failed")
		return nil, errors.NewFetchError("feed request failed", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, errors.NewFetchError(
			fmt.Sprintf("feed returned status %d", resp.StatusCode), resp.StatusCode, nil)
	}

	var doc Document
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&doc); err != nil {
		return nil, errors.NewParseError("feed is not a valid Atom document", err)
	}

	f.logger.WithFields(map[string]interface{}{
		"channel_id": channelID,
		"entries":    len(doc.Entries),
		"duration":   time.Since(start).String(),
	}).Debug("Fetched channel feed")

	return &doc, nil
}

// IsRetryable reports whether a fetch error is worth another attempt:
// transport failures, 429 and 5xx responses.
func IsRetryable(err error) bool {
	if !errors.IsType(err, errors.ErrorTypeFetch) {
		return false
	}
	switch status := errors.UpstreamStatus(err); {
	case status == 0:
		return true
	case status == http.StatusTooManyRequests:
		return true
	case status >= 500:
		return true
	}
	return false
}
