package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"creatorfeed/internal/domain"
	"creatorfeed/pkg/logger"
)

// SupabaseStore implements the creator and video repositories over the
// Supabase PostgREST API, for deployments without direct database access.
type SupabaseStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewSupabaseStore creates a store using a service role key
func NewSupabaseStore(baseURL, serviceRoleKey string, httpClient *http.Client, log *logger.Logger) *SupabaseStore {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &SupabaseStore{
		baseURL:    baseURL,
		apiKey:     serviceRoleKey,
		httpClient: httpClient,
		logger:     log.Named("supabase"),
	}
}

// videoRow and creatorRow follow the column names of the hosted Supabase
// schema, which differ from the API representation
type videoRow struct {
	VideoID       string    `json:"video_id"`
	ChannelID     string    `json:"channel_id"`
	ChannelName   string    `json:"channel_name"`
	VideoTitle    string    `json:"video_title"`
	VideoURL      string    `json:"video_url"`
	ThumbnailURL  string    `json:"thumbnail_url"`
	PublishedAt   time.Time `json:"published_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Views         int64     `json:"views"`
	RatingCount   int64     `json:"rating_count"`
	RatingAverage float64   `json:"rating_average"`
	RatingMin     int       `json:"rating_min"`
	RatingMax     int       `json:"rating_max"`
}

const videoColumns = "video_id,channel_id,channel_name,video_title,video_url,thumbnail_url,published_at,updated_at,views,rating_count,rating_average,rating_min,rating_max"

func toVideoRow(r domain.VideoRecord) videoRow {
	return videoRow{
		VideoID:       r.VideoID,
		ChannelID:     r.ChannelID,
		ChannelName:   r.ChannelName,
		VideoTitle:    r.Title,
		VideoURL:      r.URL,
		ThumbnailURL:  r.ThumbnailURL,
		PublishedAt:   r.PublishedAt,
		UpdatedAt:     r.UpdatedAt,
		Views:         r.Views,
		RatingCount:   r.RatingCount,
		RatingAverage: r.RatingAverage,
		RatingMin:     r.RatingMin,
		RatingMax:     r.RatingMax,
	}
}

func (v videoRow) record() domain.VideoRecord {
	return domain.VideoRecord{
		VideoID:       v.VideoID,
		ChannelID:     v.ChannelID,
		ChannelName:   v.ChannelName,
		Title:         v.VideoTitle,
		URL:           v.VideoURL,
		ThumbnailURL:  v.ThumbnailURL,
		PublishedAt:   v.PublishedAt,
		UpdatedAt:     v.UpdatedAt,
		Views:         v.Views,
		RatingCount:   v.RatingCount,
		RatingAverage: v.RatingAverage,
		RatingMin:     v.RatingMin,
		RatingMax:     v.RatingMax,
	}
}

type creatorRow struct {
	ChannelID        string     `json:"channel_id"`
	Name             string     `json:"name"`
	ChannelURL       string     `json:"channel_url"`
	ChannelThumbnail string     `json:"channel_thumbnail,omitempty"`
	SubscribersCount int64      `json:"subscribers_count,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
}

const creatorColumns = "channel_id,name,channel_url,channel_thumbnail,subscribers_count,created_at"

func (c creatorRow) creator() *domain.Creator {
	creator := &domain.Creator{
		ChannelID:        c.ChannelID,
		Name:             c.Name,
		ChannelURL:       c.ChannelURL,
		ThumbnailURL:     c.ChannelThumbnail,
		SubscribersCount: c.SubscribersCount,
	}
	if c.CreatedAt != nil {
		creator.CreatedAt = *c.CreatedAt
	}
	return creator
}

func toCreators(rows []creatorRow) []*domain.Creator {
	creators := make([]*domain.Creator, len(rows))
	for i, r := range rows {
		creators[i] = r.creator()
	}
	return creators
}

// restError is a non-2xx PostgREST response
type restError struct {
	StatusCode int
	Body       string
}

func (e *restError) Error() string {
	return fmt.Sprintf("Supabase returned status %d: %s", e.StatusCode, e.Body)
}

// do sends one PostgREST request and decodes a JSON response into out when
// out is non-nil
func (s *SupabaseStore) do(ctx context.Context, method, table string, params url.Values, body interface{}, prefer string, out interface{}) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", s.baseURL, table)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call Supabase: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.WithFields(map[string]interface{}{
			"table":       table,
			"method":      method,
			"status_code": resp.StatusCode,
		}).Debug("Supabase request failed")
		return &restError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse Supabase response: %w", err)
	}
	return nil
}

func (s *SupabaseStore) ListChannelIDs(ctx context.Context) ([]string, error) {
	var rows []struct {
		ChannelID string `json:"channel_id"`
	}
	params := url.Values{
		"select": {"channel_id"},
		"order":  {"created_at.asc,channel_id.asc"},
	}
	if err := s.do(ctx, http.MethodGet, "creators", params, nil, "", &rows); err != nil {
		return nil, fmt.Errorf("failed to list creators: %w", err)
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ChannelID
	}
	return ids, nil
}

func (s *SupabaseStore) CreatorExists(ctx context.Context, channelID string) (bool, error) {
	c, err := s.Get(ctx, channelID)
	if err != nil {
		return false, err
	}
	return c != nil, nil
}

func (s *SupabaseStore) List(ctx context.Context) ([]*domain.Creator, error) {
	var rows []creatorRow
	params := url.Values{
		"select": {creatorColumns},
		"order":  {"created_at.asc,channel_id.asc"},
	}
	if err := s.do(ctx, http.MethodGet, "creators", params, nil, "", &rows); err != nil {
		return nil, fmt.Errorf("failed to list creators: %w", err)
	}
	return toCreators(rows), nil
}

func (s *SupabaseStore) Get(ctx context.Context, channelID string) (*domain.Creator, error) {
	var rows []creatorRow
	params := url.Values{
		"select":     {creatorColumns},
		"channel_id": {"eq." + channelID},
		"limit":      {"1"},
	}
	if err := s.do(ctx, http.MethodGet, "creators", params, nil, "", &rows); err != nil {
		return nil, fmt.Errorf("failed to get creator: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].creator(), nil
}

func (s *SupabaseStore) Create(ctx context.Context, creator *domain.Creator) error {
	row := creatorRow{
		ChannelID:        creator.ChannelID,
		Name:             creator.Name,
		ChannelURL:       creator.ChannelURL,
		ChannelThumbnail: creator.ThumbnailURL,
	}
	params := url.Values{"select": {creatorColumns}}

	var created []creatorRow
	err := s.do(ctx, http.MethodPost, "creators", params, row, "return=representation", &created)
	if err != nil {
		if re, ok := err.(*restError); ok && re.StatusCode == http.StatusConflict {
			return ErrCreatorExists
		}
		return fmt.Errorf("failed to create creator: %w", err)
	}
	if len(created) > 0 && created[0].CreatedAt != nil {
		creator.CreatedAt = *created[0].CreatedAt
	}
	return nil
}

func (s *SupabaseStore) Delete(ctx context.Context, channelID string) (bool, error) {
	var deleted []struct {
		ChannelID string `json:"channel_id"`
	}
	params := url.Values{
		"channel_id": {"eq." + channelID},
		"select":     {"channel_id"},
	}
	if err := s.do(ctx, http.MethodDelete, "creators", params, nil, "return=representation", &deleted); err != nil {
		return false, fmt.Errorf("failed to delete creator: %w", err)
	}
	return len(deleted) > 0, nil
}

// UpdateSubscribers patches each creator; PostgREST has no bulk update with
// per-row values short of an upsert of full rows
func (s *SupabaseStore) UpdateSubscribers(ctx context.Context, updates []domain.SubscriberUpdate) error {
	for _, u := range updates {
		params := url.Values{"channel_id": {"eq." + u.ChannelID}}
		body := map[string]int64{"subscribers_count": u.SubscribersCount}
		if err := s.do(ctx, http.MethodPatch, "creators", params, body, "return=minimal", nil); err != nil {
			return fmt.Errorf("failed to update subscribers for %s: %w", u.ChannelID, err)
		}
	}
	return nil
}

// UpsertVideos writes all records in one bulk request, merging on video_id
func (s *SupabaseStore) UpsertVideos(ctx context.Context, records []domain.VideoRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]videoRow, len(records))
	for i, r := range records {
		rows[i] = toVideoRow(r)
	}
	params := url.Values{"on_conflict": {"video_id"}}
	if err := s.do(ctx, http.MethodPost, "youtube_videos", params, rows, "resolution=merge-duplicates,return=minimal", nil); err != nil {
		return fmt.Errorf("failed to upsert videos: %w", err)
	}
	return nil
}

func (s *SupabaseStore) ListVideos(ctx context.Context, q domain.VideoQuery) ([]domain.VideoRecord, error) {
	q.Normalize()

	params := url.Values{
		"select": {videoColumns},
		"order":  {"published_at.desc,video_id.asc"},
		"limit":  {strconv.Itoa(q.Limit)},
	}
	if q.ChannelID != "" {
		params.Set("channel_id", "eq."+q.ChannelID)
	}
	if !q.Since.IsZero() {
		params.Set("published_at", "gte."+q.Since.UTC().Format(time.RFC3339))
	}

	var rows []videoRow
	if err := s.do(ctx, http.MethodGet, "youtube_videos", params, nil, "", &rows); err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	videos := make([]domain.VideoRecord, len(rows))
	for i, r := range rows {
		videos[i] = r.record()
	}
	return videos, nil
}

// Health checks that PostgREST answers with the service role key
func (s *SupabaseStore) Health(ctx context.Context) error {
	params := url.Values{"select": {"channel_id"}, "limit": {"1"}}
	var rows []struct{}
	return s.do(ctx, http.MethodGet, "creators", params, nil, "", &rows)
}
